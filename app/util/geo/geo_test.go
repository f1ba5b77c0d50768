package geo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDistanceOneHundredthDegreeLatitude(t *testing.T) {
	d := Distance(0, 0, 0.01, 0)

	// 0.01 degrees of latitude is roughly 1112 meters.
	require.InEpsilon(t, 1113.0, d, 0.01)
}

func TestDistanceZero(t *testing.T) {
	require.Zero(t, Distance(48.85, 2.35, 48.85, 2.35))
}

func TestDistanceSymmetric(t *testing.T) {
	a := Distance(37.7749, -122.4194, 40.7128, -74.006)
	b := Distance(40.7128, -74.006, 37.7749, -122.4194)

	require.InDelta(t, a, b, 0.001)
}
