// Package health fans out status probes to every registered endpoint and
// joins them into one snapshot.
package health

import (
	"context"
	"fmt"
	"time"

	"github.com/ashendes/commerce-console/internal/apperr"
	"github.com/ashendes/commerce-console/internal/clock"
	"github.com/ashendes/commerce-console/internal/metrics"
	"github.com/ashendes/commerce-console/internal/models"
	"github.com/ashendes/commerce-console/internal/patterns"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Options tunes an Aggregator.
type Options struct {
	// Timeout bounds each probe individually.
	Timeout time.Duration
	// Concurrency caps in-flight probes; zero means one goroutine per endpoint.
	Concurrency int
	Clock       clock.Clock
}

// Aggregator runs one probe per endpoint and waits for all of them.
type Aggregator struct {
	prober      Prober
	timeout     time.Duration
	concurrency int
	clock       clock.Clock
}

// NewAggregator creates an Aggregator around the given prober.
func NewAggregator(prober Prober, opts Options) *Aggregator {
	if prober == nil {
		panic("health.NewAggregator: nil prober")
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Aggregator{
		prober:      prober,
		timeout:     opts.Timeout,
		concurrency: opts.Concurrency,
		clock:       opts.Clock,
	}
}

// ProbeAll probes every endpoint concurrently and returns only after each
// probe has settled. Outcomes keep the order of endpoints regardless of
// completion order. Probe failures never escape as errors.
func (a *Aggregator) ProbeAll(ctx context.Context, endpoints []models.Endpoint) models.HealthSnapshot {
	started := a.clock.Now()
	outcomes := make([]models.HealthOutcome, len(endpoints))

	// Plain Group: a failing probe must not cancel its siblings.
	var g errgroup.Group
	if a.concurrency > 0 {
		g.SetLimit(a.concurrency)
	}

	for i, ep := range endpoints {
		g.Go(func() error {
			outcomes[i] = a.probeOne(ctx, ep)
			return nil
		})
	}
	_ = g.Wait()

	snapshot := models.HealthSnapshot{
		Outcomes:    outcomes,
		StartedAt:   started,
		CompletedAt: a.clock.Now(),
	}

	log.WithFields(log.Fields{
		"endpoints": len(outcomes),
		"up":        snapshot.UpCount(),
	}).Debug("Health snapshot assembled")

	return snapshot
}

func (a *Aggregator) probeOne(ctx context.Context, ep models.Endpoint) (outcome models.HealthOutcome) {
	start := a.clock.Now()

	defer func() {
		if r := recover(); r != nil {
			outcome = models.Down(ep, fmt.Sprintf("probe panicked: %v", r))
		}
		record(outcome)
	}()

	probeCtx, cancel := patterns.WithTimeout(ctx, a.timeout)
	defer cancel()

	if err := a.prober.Probe(probeCtx, ep); err != nil {
		log.WithFields(log.Fields{
			"endpoint": ep.ID,
			"url":      ep.HealthURL(),
			"kind":     apperr.Kind(err),
		}).Warn("Health probe failed: ", err)
		return models.Down(ep, err.Error())
	}

	return models.Up(ep, a.clock.Since(start))
}

func record(o models.HealthOutcome) {
	metrics.ProbesTotal.WithLabelValues(o.Endpoint.ID, string(o.Status)).Inc()
	if o.IsUp() {
		metrics.EndpointUp.WithLabelValues(o.Endpoint.ID).Set(1)
		metrics.ProbeLatency.WithLabelValues(o.Endpoint.ID).Observe(float64(*o.LatencyMs) / 1000)
		return
	}
	metrics.EndpointUp.WithLabelValues(o.Endpoint.ID).Set(0)
}
