package models

import "strings"

// Endpoint represents a backend service the console talks to
type Endpoint struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	Port       int    `json:"port"`
	BaseURL    string `json:"base_url"`
	HealthPath string `json:"health_path"`
}

// DefaultHealthPath is the actuator health route exposed by every service
const DefaultHealthPath = "/actuator/health"

// Endpoint IDs used to pick the catalog and checkout targets
const (
	EndpointInventory = "inventory"
	EndpointOrders    = "orders"
	EndpointPayments  = "payments"
	EndpointCheckout  = "checkout"
)

// HealthURL returns the absolute URL probed for this endpoint
func (e Endpoint) HealthURL() string {
	path := e.HealthPath
	if path == "" {
		path = DefaultHealthPath
	}
	return strings.TrimRight(e.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}
