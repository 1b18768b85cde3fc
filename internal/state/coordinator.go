// Package state owns the process-wide console state: the current catalog,
// the last health snapshot and the last submission result.
package state

import (
	"context"
	"sync"

	"github.com/ashendes/commerce-console/internal/metrics"
	"github.com/ashendes/commerce-console/internal/models"
	"github.com/ashendes/commerce-console/internal/sink"
	log "github.com/sirupsen/logrus"
)

// Coordinator holds the latest records and forwards every update to the
// registered sinks. Values are replaced wholesale, never mutated in place.
type Coordinator struct {
	mu          sync.RWMutex
	catalog     models.Catalog
	catalogErr  error
	snapshot    models.HealthSnapshot
	hasSnapshot bool
	last        models.SubmissionResult
	hasLast     bool

	sinks []sink.Sink
}

// New creates a Coordinator with the given sinks.
func New(sinks ...sink.Sink) *Coordinator {
	return &Coordinator{sinks: sinks}
}

// Catalog returns the current catalog. It may be stale relative to an
// in-flight reload.
func (c *Coordinator) Catalog() models.Catalog {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.catalog
}

// CatalogError returns the error of the last failed load, cleared by the
// next published catalog.
func (c *Coordinator) CatalogError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.catalogErr
}

// Snapshot returns the latest health snapshot.
func (c *Coordinator) Snapshot() (models.HealthSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot, c.hasSnapshot
}

// LastSubmission returns the latest submission result.
func (c *Coordinator) LastSubmission() (models.SubmissionResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last, c.hasLast
}

// PublishCatalog replaces the current catalog.
func (c *Coordinator) PublishCatalog(ctx context.Context, catalog models.Catalog) {
	c.mu.Lock()
	c.catalog = catalog
	c.catalogErr = nil
	c.mu.Unlock()

	metrics.CatalogItems.Reset()
	metrics.CatalogItems.WithLabelValues(string(catalog.Source)).Set(float64(catalog.Len()))

	c.each(sink.RecordCatalog, func(s sink.Sink) error { return s.ShowCatalog(ctx, catalog) })
}

// PublishCatalogError records a failed load. The current catalog is kept.
func (c *Coordinator) PublishCatalogError(ctx context.Context, err error) {
	c.mu.Lock()
	c.catalogErr = err
	c.mu.Unlock()

	c.each(sink.RecordCatalogError, func(s sink.Sink) error { return s.ShowCatalogError(ctx, err) })
}

// PublishSnapshot replaces the latest health snapshot.
func (c *Coordinator) PublishSnapshot(ctx context.Context, snapshot models.HealthSnapshot) {
	c.mu.Lock()
	c.snapshot = snapshot
	c.hasSnapshot = true
	c.mu.Unlock()

	c.each(sink.RecordHealth, func(s sink.Sink) error { return s.ShowHealth(ctx, snapshot) })
}

// PublishSubmission records a submission result.
func (c *Coordinator) PublishSubmission(ctx context.Context, result models.SubmissionResult) {
	c.mu.Lock()
	c.last = result
	c.hasLast = true
	c.mu.Unlock()

	c.each(sink.RecordSubmission, func(s sink.Sink) error { return s.ShowSubmission(ctx, result) })
}

// Sink failures are logged and counted; they never reach the publisher.
func (c *Coordinator) each(record string, fn func(sink.Sink) error) {
	for _, s := range c.sinks {
		if err := fn(s); err != nil {
			metrics.SinkErrorsTotal.WithLabelValues(s.Name(), record).Inc()
			log.WithFields(log.Fields{
				"sink":   s.Name(),
				"record": record,
			}).Warn("Display sink failed: ", err)
		}
	}
}
