// Package catalog fetches the item/stock catalog from the inventory service.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ashendes/commerce-console/internal/apperr"
	"github.com/ashendes/commerce-console/internal/clock"
	"github.com/ashendes/commerce-console/internal/metrics"
	"github.com/ashendes/commerce-console/internal/models"
	"github.com/ashendes/commerce-console/internal/patterns"
	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"
)

// ProductsPath is the inventory route returning every catalog item
const ProductsPath = "/api/v1/inventory/products"

// Loader fetches the live catalog from one designated endpoint
type Loader struct {
	client  *resty.Client
	circuit *patterns.CircuitBreakerWrapper
	baseURL string
	timeout time.Duration
	clock   clock.Clock
}

// Options tunes a Loader
type Options struct {
	Timeout time.Duration
	Breaker patterns.BreakerConfig
	Clock   clock.Clock
}

// NewLoader creates a Loader targeting the inventory endpoint
func NewLoader(ep models.Endpoint, opts Options) *Loader {
	if opts.Timeout <= 0 {
		opts.Timeout = patterns.DefaultTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Breaker == (patterns.BreakerConfig{}) {
		opts.Breaker = patterns.DefaultBreakerConfig()
	}
	return &Loader{
		client: resty.New().
			SetTimeout(opts.Timeout).
			SetRetryCount(0), // Failures are handled by the fallback policy
		circuit: patterns.NewCircuitBreakerWithConfig("Catalog", "console", opts.Breaker),
		baseURL: strings.TrimRight(ep.BaseURL, "/"),
		timeout: opts.Timeout,
		clock:   opts.Clock,
	}
}

// Load fetches the current catalog. Every failure wraps apperr.ErrCatalogFetch.
func (l *Loader) Load(ctx context.Context) (models.Catalog, error) {
	ctx, cancel := patterns.WithTimeout(ctx, l.timeout)
	defer cancel()

	result, err := l.circuit.Execute(func() (interface{}, error) {
		resp, httpErr := l.client.R().
			SetContext(ctx).
			SetHeader("Accept", "application/json").
			Get(l.baseURL + ProductsPath)

		if httpErr != nil {
			return nil, apperr.Transport(httpErr)
		}

		if !resp.IsSuccess() {
			return nil, apperr.HTTPCode(resp.StatusCode())
		}

		var items []models.CatalogItem
		if err := json.Unmarshal(resp.Body(), &items); err != nil {
			return nil, apperr.Transport(fmt.Errorf("failed to parse catalog: %w", err))
		}

		return items, nil
	})
	if err != nil {
		metrics.CatalogLoadsTotal.WithLabelValues("error").Inc()
		return models.Catalog{}, fmt.Errorf("%w: %w", apperr.ErrCatalogFetch, err)
	}

	raw := result.([]models.CatalogItem)
	items := make([]models.CatalogItem, 0, len(raw))
	for _, item := range raw {
		normalized := item.Normalized()
		if normalized.AvailableQuantity != item.AvailableQuantity {
			log.WithFields(log.Fields{
				"item_id":  item.ItemID,
				"reported": item.AvailableQuantity,
				"derived":  normalized.AvailableQuantity,
				"total":    item.TotalQuantity,
				"reserved": item.ReservedQuantity,
			}).Warn("Available quantity disagrees with total - reserved")
		}
		items = append(items, normalized)
	}

	metrics.CatalogLoadsTotal.WithLabelValues("live").Inc()

	return models.Catalog{
		Items:    items,
		Source:   models.CatalogSourceLive,
		LoadedAt: l.clock.Now(),
	}, nil
}

// CircuitStatus reports the catalog breaker
func (l *Loader) CircuitStatus() patterns.CircuitStatus {
	return l.circuit.Status()
}
