package location

import (
	"context"
	"time"

	"github.com/rajjagirdar007/platemateuh/app/client/geoip"
	"github.com/rajjagirdar007/platemateuh/app/client/nominatim"
)

// PermissionProvider answers whether the system may acquire location fixes.
type PermissionProvider interface {
	// RequestPermission is idempotent; asking again after a decision
	// returns the same status.
	RequestPermission(ctx context.Context) (PermissionStatus, error)
	CurrentStatus() PermissionStatus
}

// Provider emits location fixes, either continuously or one-shot.
type Provider interface {
	StartUpdates(ctx context.Context, fn func(Fix))
	RequestOnce(ctx context.Context) (Fix, error)
}

// Geocoder resolves a coordinate to a symbolic place.
type Geocoder interface {
	Resolve(ctx context.Context, lat, lon float64) (Place, error)
}

// Clock abstracts timer scheduling so backoff can be tested without
// wall-clock waits.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// staticPermissions models a headless deployment: access is granted iff
// location acquisition is enabled in config.
type staticPermissions struct {
	status PermissionStatus
}

func (p staticPermissions) RequestPermission(context.Context) (PermissionStatus, error) {
	return p.status, nil
}

func (p staticPermissions) CurrentStatus() PermissionStatus {
	return p.status
}

type geoipProvider struct {
	client   *geoip.Client
	interval time.Duration
}

func (p geoipProvider) StartUpdates(ctx context.Context, fn func(Fix)) {
	p.client.StartUpdates(ctx, p.interval, func(pos geoip.Position) {
		fn(positionToFix(pos))
	})
}

func (p geoipProvider) RequestOnce(ctx context.Context) (Fix, error) {
	pos, err := p.client.RequestOnce(ctx)
	if err != nil {
		return Fix{}, err
	}

	return positionToFix(pos), nil
}

func positionToFix(pos geoip.Position) Fix {
	return Fix{
		Latitude:  pos.Latitude,
		Longitude: pos.Longitude,
		Accuracy:  pos.Accuracy,
		Timestamp: pos.Timestamp,
	}
}

type nominatimGeocoder struct {
	client *nominatim.Client
}

func (g nominatimGeocoder) Resolve(ctx context.Context, lat, lon float64) (Place, error) {
	place, err := g.client.Resolve(ctx, lat, lon)
	if err != nil {
		return Place{}, err
	}

	return Place{
		SubLocality: place.SubLocality,
		Locality:    place.Locality,
	}, nil
}
