// Package scheduler drives the periodic health and catalog refresh and owns
// the catalog fallback policy.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ashendes/commerce-console/internal/catalog"
	"github.com/ashendes/commerce-console/internal/clock"
	"github.com/ashendes/commerce-console/internal/metrics"
	"github.com/ashendes/commerce-console/internal/models"
	"github.com/ashendes/commerce-console/internal/patterns"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Default cadence and grace delay
const (
	DefaultInterval      = 30 * time.Second
	DefaultFallbackDelay = 2 * time.Second
)

// HealthChecker produces one snapshot per call
type HealthChecker interface {
	ProbeAll(ctx context.Context, endpoints []models.Endpoint) models.HealthSnapshot
}

// CatalogSource loads the live catalog
type CatalogSource interface {
	Load(ctx context.Context) (models.Catalog, error)
}

// Publisher receives refresh results. *state.Coordinator implements it.
type Publisher interface {
	PublishSnapshot(ctx context.Context, snapshot models.HealthSnapshot)
	PublishCatalog(ctx context.Context, catalog models.Catalog)
	PublishCatalogError(ctx context.Context, err error)
}

// Options tunes a Scheduler
type Options struct {
	Interval      time.Duration
	FallbackDelay time.Duration
	Clock         clock.Clock
}

// Scheduler refreshes health and catalog on a fixed cadence. A tick that
// fires while the previous one is still running is skipped.
type Scheduler struct {
	health        HealthChecker
	endpoints     []models.Endpoint
	loader        CatalogSource
	pub           Publisher
	interval      time.Duration
	fallbackDelay time.Duration
	clock         clock.Clock
	guard         *patterns.Bulkhead

	// publishMu orders catalog publications against the fallback generation
	publishMu   sync.Mutex
	mu          sync.Mutex
	running     bool
	ctx         context.Context
	cancel      context.CancelFunc
	tickTimer   clock.Timer
	fallback    clock.Timer
	fallbackGen int
}

// New creates a stopped Scheduler
func New(health HealthChecker, endpoints []models.Endpoint, loader CatalogSource, pub Publisher, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.FallbackDelay <= 0 {
		opts.FallbackDelay = DefaultFallbackDelay
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Scheduler{
		health:        health,
		endpoints:     endpoints,
		loader:        loader,
		pub:           pub,
		interval:      opts.Interval,
		fallbackDelay: opts.FallbackDelay,
		clock:         opts.Clock,
		guard:         patterns.NewBulkhead(1, 0, "refresh", "console"),
	}
}

// Start runs one tick immediately and then one every interval until Stop
// is called or ctx is done. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	runCtx := s.ctx
	s.arm()
	s.mu.Unlock()

	log.WithFields(log.Fields{
		"interval":  s.interval,
		"endpoints": len(s.endpoints),
	}).Info("Refresh scheduler started")

	s.Tick(runCtx)
}

// arm schedules the next tick. Must hold s.mu.
func (s *Scheduler) arm() {
	s.tickTimer = s.clock.AfterFunc(s.interval, func() {
		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			return
		}
		runCtx := s.ctx
		s.arm()
		s.mu.Unlock()

		s.Tick(runCtx)
	})
}

// Stop cancels the cadence, any pending fallback and in-flight refreshes.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	if s.tickTimer != nil {
		s.tickTimer.Stop()
	}
	s.cancelFallbackLocked()
	s.cancel()
	log.Info("Refresh scheduler stopped")
}

// Tick refreshes health and catalog concurrently and waits for both. It
// reports false when skipped because a previous tick is still running.
func (s *Scheduler) Tick(ctx context.Context) bool {
	err := s.guard.Execute(func() error {
		var g errgroup.Group
		g.Go(func() error {
			s.RefreshHealth(ctx)
			return nil
		})
		g.Go(func() error {
			// Catalog failures are already published
			_ = s.RefreshCatalog(ctx)
			return nil
		})
		return g.Wait()
	})
	if errors.Is(err, patterns.ErrBulkheadFull) {
		metrics.RefreshTicksTotal.WithLabelValues("skipped").Inc()
		log.Debug("Refresh tick skipped: previous tick still running")
		return false
	}

	metrics.RefreshTicksTotal.WithLabelValues("completed").Inc()
	return true
}

// RefreshHealth probes every endpoint and publishes the snapshot
func (s *Scheduler) RefreshHealth(ctx context.Context) models.HealthSnapshot {
	snapshot := s.health.ProbeAll(ctx, s.endpoints)
	s.pub.PublishSnapshot(ctx, snapshot)

	if !snapshot.AllUp() {
		log.WithFields(log.Fields{
			"up":    snapshot.UpCount(),
			"total": len(snapshot.Outcomes),
		}).Warn("Some services are down")
	}
	return snapshot
}

// RefreshCatalog loads the live catalog. On failure the error is published
// at once and the fallback catalog follows after the grace delay unless a
// later load succeeds first.
func (s *Scheduler) RefreshCatalog(ctx context.Context) error {
	c, err := s.loader.Load(ctx)
	if err != nil {
		log.WithField("error", err.Error()).Error("Failed to load catalog")
		s.pub.PublishCatalogError(ctx, err)
		s.armFallback()
		return err
	}

	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	s.cancelFallbackLocked()
	s.mu.Unlock()

	s.pub.PublishCatalog(ctx, c)
	return nil
}

func (s *Scheduler) armFallback() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelFallbackLocked()
	gen := s.fallbackGen
	s.fallback = s.clock.AfterFunc(s.fallbackDelay, func() {
		s.publishMu.Lock()
		defer s.publishMu.Unlock()

		s.mu.Lock()
		if gen != s.fallbackGen {
			s.mu.Unlock()
			return
		}
		s.fallback = nil
		s.mu.Unlock()

		log.WithField("delay", s.fallbackDelay).Warn("Showing fallback catalog")
		metrics.CatalogLoadsTotal.WithLabelValues("fallback").Inc()
		s.pub.PublishCatalog(context.Background(), catalog.Fallback(s.clock.Now()))
	})
}

// Must hold s.mu.
func (s *Scheduler) cancelFallbackLocked() {
	s.fallbackGen++
	if s.fallback != nil {
		s.fallback.Stop()
		s.fallback = nil
	}
}

// FallbackPending reports whether a fallback catalog is scheduled
func (s *Scheduler) FallbackPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fallback != nil
}
