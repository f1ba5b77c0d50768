package location

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rajjagirdar007/platemateuh/app/client/geoip"
	"github.com/rajjagirdar007/platemateuh/app/client/nominatim"
	"github.com/rajjagirdar007/platemateuh/app/config"
	"github.com/rajjagirdar007/platemateuh/app/util/geo"
	"github.com/samber/do"
)

const defaultPlaceName = "your area"

// Service acquires and maintains a single location fix. It owns the
// permission state, a bounded backoff retry schedule that runs until the
// first fix arrives, and a single-flight reverse geocode of the latest fix.
type Service struct {
	permissions PermissionProvider
	provider    Provider
	geocoder    Geocoder
	clock       Clock

	mu             sync.RWMutex
	status         PermissionStatus
	fix            *Fix
	placeName      string
	geocoding      bool
	updatesStarted bool
	deniedSignaled bool
	onFix          []func(Fix)
	onDenied       []func()

	haltOnce  sync.Once
	retryHalt chan struct{}
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewWithProviders(
		staticPermissions{status: permissionFromConfig(cfg)},
		geoipProvider{
			client:   do.MustInvoke[*geoip.Client](di),
			interval: time.Duration(cfg.Location.UpdateIntervalSec) * time.Second,
		},
		nominatimGeocoder{client: do.MustInvoke[*nominatim.Client](di)},
		realClock{},
	), nil
}

// NewWithProviders builds a resolver on custom collaborators.
func NewWithProviders(permissions PermissionProvider, provider Provider, geocoder Geocoder, clock Clock) *Service {
	return &Service{
		permissions: permissions,
		provider:    provider,
		geocoder:    geocoder,
		clock:       clock,
		status:      permissions.CurrentStatus(),
		placeName:   defaultPlaceName,
		retryHalt:   make(chan struct{}),
	}
}

func permissionFromConfig(cfg *config.Config) PermissionStatus {
	if !cfg.Location.Enabled {
		return Denied
	}

	return AuthorizedWhenInUse
}

// Start requests permission and launches the retry schedule. It returns
// immediately; fixes arrive through OnFix callbacks.
func (s *Service) Start(ctx context.Context) {
	s.RequestPermission(ctx)

	go s.retryLoop(ctx)
}

// RequestPermission asks the permission provider and applies the result.
// Safe to call repeatedly.
func (s *Service) RequestPermission(ctx context.Context) {
	status, err := s.permissions.RequestPermission(ctx)
	if err != nil {
		slog.Warn("permission request failed", "error", err)
		return
	}

	s.applyStatus(ctx, status)
}

func (s *Service) applyStatus(ctx context.Context, status PermissionStatus) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()

	switch {
	case status.Authorized():
		s.beginUpdates(ctx)
		go s.requestOnce(ctx)
	case status.Blocked():
		s.signalDenied()
	}
}

func (s *Service) beginUpdates(ctx context.Context) {
	s.mu.Lock()
	if s.updatesStarted {
		s.mu.Unlock()
		return
	}
	s.updatesStarted = true
	s.mu.Unlock()

	s.provider.StartUpdates(ctx, func(fix Fix) {
		s.handleFix(ctx, fix)
	})
}

func (s *Service) requestOnce(ctx context.Context) {
	fix, err := s.provider.RequestOnce(ctx)
	if err != nil {
		slog.Debug("one-shot fix request failed", "error", err)
		return
	}

	s.handleFix(ctx, fix)
}

func (s *Service) retryLoop(ctx context.Context) {
	sched := newRetrySchedule()

	for {
		if s.haveFix() {
			return
		}

		if s.Status().Blocked() {
			s.signalDenied()
			return
		}

		delay, ok := sched.next()
		if !ok {
			slog.Warn("location retry attempts exhausted")
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-s.retryHalt:
			return
		case <-s.clock.After(delay):
		}

		if s.haveFix() {
			return
		}

		status := s.Status()
		switch {
		case status.Blocked():
			s.signalDenied()
			return
		case status.Authorized():
			s.beginUpdates(ctx)
			s.requestOnce(ctx)
		default:
			s.RequestPermission(ctx)
		}
	}
}

func (s *Service) handleFix(ctx context.Context, fix Fix) {
	s.mu.Lock()
	f := fix
	s.fix = &f
	listeners := append([]func(Fix){}, s.onFix...)
	startGeocode := !s.geocoding
	if startGeocode {
		s.geocoding = true
	}
	s.mu.Unlock()

	s.haltOnce.Do(func() {
		close(s.retryHalt)
	})

	for _, fn := range listeners {
		fn(fix)
	}

	if startGeocode {
		go s.resolvePlace(ctx, fix)
	}
}

func (s *Service) resolvePlace(ctx context.Context, fix Fix) {
	place, err := s.geocoder.Resolve(ctx, fix.Latitude, fix.Longitude)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.geocoding = false

	if err != nil {
		// Place name keeps its previous value; the fix itself is unaffected.
		slog.Debug("reverse geocode failed", "error", err)
		return
	}

	switch {
	case place.SubLocality != "":
		s.placeName = place.SubLocality
	case place.Locality != "":
		s.placeName = place.Locality
	}
}

func (s *Service) signalDenied() {
	s.mu.Lock()
	if s.deniedSignaled {
		s.mu.Unlock()
		return
	}
	s.deniedSignaled = true
	listeners := append([]func(){}, s.onDenied...)
	s.mu.Unlock()

	slog.Info("location permission denied, giving up on fixes")

	for _, fn := range listeners {
		fn()
	}
}

// OnFix registers a callback invoked for every new fix.
func (s *Service) OnFix(fn func(Fix)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.onFix = append(s.onFix, fn)
}

// OnPermissionDenied registers a callback invoked at most once, when the
// permission state settles on Denied or Restricted.
func (s *Service) OnPermissionDenied(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.onDenied = append(s.onDenied, fn)
}

func (s *Service) CurrentFix() (Fix, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.fix == nil {
		return Fix{}, false
	}

	return *s.fix, true
}

func (s *Service) PlaceName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.placeName
}

func (s *Service) Status() PermissionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.status
}

func (s *Service) haveFix() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.fix != nil
}

// DistanceTo returns the great-circle distance in meters from the current
// fix to the given coordinate, or false if no fix exists yet.
func (s *Service) DistanceTo(lat, lon float64) (float64, bool) {
	fix, ok := s.CurrentFix()
	if !ok {
		return 0, false
	}

	return geo.Distance(fix.Latitude, fix.Longitude, lat, lon), true
}
