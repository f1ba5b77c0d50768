package location

import "time"

type PermissionStatus int

const (
	NotDetermined PermissionStatus = iota
	Denied
	Restricted
	AuthorizedWhenInUse
	AuthorizedAlways
)

func (s PermissionStatus) Authorized() bool {
	return s == AuthorizedWhenInUse || s == AuthorizedAlways
}

// Blocked reports whether the user (or policy) has ruled out location access
// for good; the retry schedule halts permanently on it.
func (s PermissionStatus) Blocked() bool {
	return s == Denied || s == Restricted
}

func (s PermissionStatus) String() string {
	switch s {
	case Denied:
		return "denied"
	case Restricted:
		return "restricted"
	case AuthorizedWhenInUse:
		return "authorized_when_in_use"
	case AuthorizedAlways:
		return "authorized_always"
	default:
		return "not_determined"
	}
}

// Fix is a timestamped coordinate reading. It is replaced wholesale on every
// update, never partially mutated.
type Fix struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
	Timestamp time.Time
}

type Place struct {
	SubLocality string
	Locality    string
}

const (
	retryBaseDelay   = 2 * time.Second
	retryDelayCap    = 30 * time.Second
	retryMaxAttempts = 5
)

// retrySchedule yields the bounded exponential backoff sequence
// base, base*2, base*4, ... capped at retryDelayCap, for at most
// retryMaxAttempts attempts.
type retrySchedule struct {
	attempt   int
	nextDelay time.Duration
}

func newRetrySchedule() *retrySchedule {
	return &retrySchedule{nextDelay: retryBaseDelay}
}

func (r *retrySchedule) next() (time.Duration, bool) {
	if r.attempt >= retryMaxAttempts {
		return 0, false
	}

	delay := r.nextDelay
	if delay > retryDelayCap {
		delay = retryDelayCap
	}

	r.attempt++
	r.nextDelay *= 2

	return delay, true
}
