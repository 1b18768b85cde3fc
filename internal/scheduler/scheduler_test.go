package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ashendes/commerce-console/internal/apperr"
	"github.com/ashendes/commerce-console/internal/clock"
	"github.com/ashendes/commerce-console/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHealth struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (h *fakeHealth) ProbeAll(ctx context.Context, endpoints []models.Endpoint) models.HealthSnapshot {
	h.calls.Add(1)
	if h.started != nil {
		h.once.Do(func() { close(h.started) })
	}
	if h.release != nil {
		<-h.release
	}
	out := make([]models.HealthOutcome, 0, len(endpoints))
	for _, ep := range endpoints {
		out = append(out, models.Up(ep, time.Millisecond))
	}
	return models.HealthSnapshot{Outcomes: out}
}

type fakeLoader struct {
	mu    sync.Mutex
	errs  []error
	calls int
}

// Load pops the next queued error; an empty queue loads successfully.
func (l *fakeLoader) Load(ctx context.Context) (models.Catalog, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if len(l.errs) > 0 {
		err := l.errs[0]
		l.errs = l.errs[1:]
		if err != nil {
			return models.Catalog{}, err
		}
	}
	return models.Catalog{
		Source: models.CatalogSourceLive,
		Items:  []models.CatalogItem{{ItemID: "live-1", AvailableQuantity: 4}},
	}, nil
}

type recordingPub struct {
	mu        sync.Mutex
	snapshots int
	catalogs  []models.Catalog
	errs      []error
}

func (p *recordingPub) PublishSnapshot(context.Context, models.HealthSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots++
}

func (p *recordingPub) PublishCatalog(_ context.Context, c models.Catalog) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.catalogs = append(p.catalogs, c)
}

func (p *recordingPub) PublishCatalogError(_ context.Context, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs = append(p.errs, err)
}

func (p *recordingPub) sources() []models.CatalogSource {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.CatalogSource, 0, len(p.catalogs))
	for _, c := range p.catalogs {
		out = append(out, c.Source)
	}
	return out
}

var endpoints = []models.Endpoint{
	{ID: models.EndpointInventory, BaseURL: "http://localhost:8081"},
	{ID: models.EndpointOrders, BaseURL: "http://localhost:8082"},
}

var errRefused = fmt.Errorf("%w: %w", apperr.ErrCatalogFetch, apperr.Transport(errors.New("connection refused")))

func newScheduler(h HealthChecker, l CatalogSource, p Publisher) (*Scheduler, *clock.Fake) {
	fake := clock.NewFake(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	s := New(h, endpoints, l, p, Options{
		Interval:      30 * time.Second,
		FallbackDelay: 2 * time.Second,
		Clock:         fake,
	})
	return s, fake
}

func TestStart_TicksImmediatelyThenOnCadence(t *testing.T) {
	t.Parallel()

	h := &fakeHealth{}
	pub := &recordingPub{}
	s, fake := newScheduler(h, &fakeLoader{}, pub)

	s.Start(context.Background())
	s.Start(context.Background())
	assert.Equal(t, int32(1), h.calls.Load())
	assert.Equal(t, []models.CatalogSource{models.CatalogSourceLive}, pub.sources())

	fake.Advance(29 * time.Second)
	assert.Equal(t, int32(1), h.calls.Load())

	fake.Advance(time.Second)
	assert.Equal(t, int32(2), h.calls.Load())

	fake.Advance(60 * time.Second)
	assert.Equal(t, int32(4), h.calls.Load())
	assert.Equal(t, 4, pub.snapshots)

	s.Stop()
	fake.Advance(5 * time.Minute)
	assert.Equal(t, int32(4), h.calls.Load())
	assert.Zero(t, fake.Pending())
}

func TestRefreshCatalog_FallbackAfterGraceDelay(t *testing.T) {
	t.Parallel()

	pub := &recordingPub{}
	s, fake := newScheduler(&fakeHealth{}, &fakeLoader{errs: []error{errRefused}}, pub)

	err := s.RefreshCatalog(context.Background())
	require.ErrorIs(t, err, apperr.ErrCatalogFetch)

	// Error is visible at once, fallback only after the delay
	require.Len(t, pub.errs, 1)
	assert.Equal(t, "transport", apperr.Kind(pub.errs[0]))
	assert.Empty(t, pub.catalogs)
	assert.True(t, s.FallbackPending())

	fake.Advance(1999 * time.Millisecond)
	assert.Empty(t, pub.catalogs)

	fake.Advance(time.Millisecond)
	require.Len(t, pub.catalogs, 1)
	fb := pub.catalogs[0]
	assert.Equal(t, models.CatalogSourceFallback, fb.Source)
	require.Equal(t, 3, fb.Len())
	assert.Equal(t, "Gaming Laptop Pro", fb.Items[0].Name)
	assert.Equal(t, 13, fb.Items[0].AvailableQuantity)
	assert.Equal(t, 27, fb.Items[1].AvailableQuantity)
	assert.Equal(t, 7, fb.Items[2].AvailableQuantity)
	assert.False(t, s.FallbackPending())
}

func TestRefreshCatalog_SuccessCancelsFallback(t *testing.T) {
	t.Parallel()

	pub := &recordingPub{}
	s, fake := newScheduler(&fakeHealth{}, &fakeLoader{errs: []error{errRefused}}, pub)

	require.Error(t, s.RefreshCatalog(context.Background()))
	fake.Advance(time.Second)
	require.NoError(t, s.RefreshCatalog(context.Background()))

	fake.Advance(time.Minute)
	assert.Equal(t, []models.CatalogSource{models.CatalogSourceLive}, pub.sources())
	assert.False(t, s.FallbackPending())
}

func TestRefreshCatalog_RepeatedFailuresRearmFallback(t *testing.T) {
	t.Parallel()

	pub := &recordingPub{}
	s, fake := newScheduler(&fakeHealth{}, &fakeLoader{errs: []error{errRefused, errRefused}}, pub)

	require.Error(t, s.RefreshCatalog(context.Background()))
	fake.Advance(1500 * time.Millisecond)
	require.Error(t, s.RefreshCatalog(context.Background()))

	fake.Advance(500 * time.Millisecond)
	assert.Empty(t, pub.catalogs)

	fake.Advance(1500 * time.Millisecond)
	assert.Equal(t, []models.CatalogSource{models.CatalogSourceFallback}, pub.sources())
	assert.Len(t, pub.errs, 2)
}

func TestTick_SkipsWhilePreviousTickRuns(t *testing.T) {
	t.Parallel()

	h := &fakeHealth{started: make(chan struct{}), release: make(chan struct{})}
	loader := &fakeLoader{}
	s, _ := newScheduler(h, loader, &recordingPub{})

	done := make(chan bool)
	go func() { done <- s.Tick(context.Background()) }()

	<-h.started
	assert.False(t, s.Tick(context.Background()))

	close(h.release)
	assert.True(t, <-done)
	assert.Equal(t, int32(1), h.calls.Load())

	// Guard is released once the tick completes
	assert.True(t, s.Tick(context.Background()))
	assert.Equal(t, int32(2), h.calls.Load())
}

func TestStop_CancelsPendingFallback(t *testing.T) {
	t.Parallel()

	pub := &recordingPub{}
	s, fake := newScheduler(&fakeHealth{}, &fakeLoader{errs: []error{errRefused}}, pub)

	s.Start(context.Background())
	require.Len(t, pub.errs, 1)
	assert.True(t, s.FallbackPending())

	s.Stop()
	fake.Advance(time.Minute)
	assert.Empty(t, pub.catalogs)
}

// blockingPub holds the fallback publication open until released.
type blockingPub struct {
	recordingPub
	entered chan struct{}
	release chan struct{}
}

func (p *blockingPub) PublishCatalog(ctx context.Context, c models.Catalog) {
	if c.IsFallback() {
		close(p.entered)
		<-p.release
	}
	p.recordingPub.PublishCatalog(ctx, c)
}

func TestRefreshCatalog_LiveLoadNotOverwrittenByFallback(t *testing.T) {
	t.Parallel()

	pub := &blockingPub{entered: make(chan struct{}), release: make(chan struct{})}
	s, fake := newScheduler(&fakeHealth{}, &fakeLoader{errs: []error{errRefused}}, pub)

	require.Error(t, s.RefreshCatalog(context.Background()))

	fired := make(chan struct{})
	go func() {
		fake.Advance(2 * time.Second)
		close(fired)
	}()
	<-pub.entered

	loaded := make(chan error)
	go func() { loaded <- s.RefreshCatalog(context.Background()) }()

	// The live load waits for the fallback publication to finish
	select {
	case <-loaded:
		t.Fatal("live catalog published while fallback was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(pub.release)
	<-fired
	require.NoError(t, <-loaded)

	assert.Equal(t, []models.CatalogSource{models.CatalogSourceFallback, models.CatalogSourceLive}, pub.sources())
}
