// Package registry holds the static list of backend services the console
// probes and talks to.
package registry

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/ashendes/commerce-console/internal/config"
	"github.com/ashendes/commerce-console/internal/models"
)

// Registry is an immutable, ordered set of endpoints.
type Registry struct {
	endpoints []models.Endpoint
}

// New validates the endpoints and returns a Registry preserving their order.
func New(endpoints ...models.Endpoint) (*Registry, error) {
	seen := make(map[string]struct{}, len(endpoints))
	out := make([]models.Endpoint, 0, len(endpoints))
	for _, ep := range endpoints {
		if ep.ID == "" {
			return nil, fmt.Errorf("endpoint %q: id is required", ep.Label)
		}
		if _, dup := seen[ep.ID]; dup {
			return nil, fmt.Errorf("endpoint %q: duplicate id", ep.ID)
		}
		u, err := url.Parse(ep.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("endpoint %q: invalid base url %q", ep.ID, ep.BaseURL)
		}
		if ep.HealthPath == "" {
			ep.HealthPath = models.DefaultHealthPath
		}
		if ep.Port == 0 {
			ep.Port = portOf(u)
		}
		if ep.Label == "" {
			ep.Label = ep.ID
		}
		seen[ep.ID] = struct{}{}
		out = append(out, ep)
	}
	return &Registry{endpoints: out}, nil
}

// FromConfig registers the four commerce services.
func FromConfig(cfg config.Config) (*Registry, error) {
	return New(
		models.Endpoint{ID: models.EndpointInventory, Label: "Inventory", BaseURL: cfg.InventoryServiceURL, HealthPath: cfg.HealthPath},
		models.Endpoint{ID: models.EndpointOrders, Label: "Orders", BaseURL: cfg.OrderServiceURL, HealthPath: cfg.HealthPath},
		models.Endpoint{ID: models.EndpointPayments, Label: "Payments", BaseURL: cfg.PaymentServiceURL, HealthPath: cfg.HealthPath},
		models.Endpoint{ID: models.EndpointCheckout, Label: "Checkout", BaseURL: cfg.CheckoutServiceURL, HealthPath: cfg.HealthPath},
	)
}

// Endpoints returns a copy of the registered endpoints in order.
func (r *Registry) Endpoints() []models.Endpoint {
	out := make([]models.Endpoint, len(r.endpoints))
	copy(out, r.endpoints)
	return out
}

// Lookup finds an endpoint by id.
func (r *Registry) Lookup(id string) (models.Endpoint, bool) {
	for _, ep := range r.endpoints {
		if ep.ID == id {
			return ep, true
		}
	}
	return models.Endpoint{}, false
}

// MustLookup is Lookup for endpoints required at startup.
func (r *Registry) MustLookup(id string) models.Endpoint {
	ep, ok := r.Lookup(id)
	if !ok {
		panic("registry: endpoint " + id + " not registered")
	}
	return ep
}

// Len returns the number of endpoints.
func (r *Registry) Len() int {
	return len(r.endpoints)
}

func portOf(u *url.URL) int {
	if p := u.Port(); p != "" {
		n, _ := strconv.Atoi(p)
		return n
	}
	if u.Scheme == "https" {
		return 443
	}
	return 80
}
