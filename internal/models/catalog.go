package models

import "time"

// LowStockThreshold marks items with fewer available units as low on stock
const LowStockThreshold = 10

// CatalogItem represents one product line as reported by the inventory service
type CatalogItem struct {
	ItemID            string `json:"productId"`
	SKU               string `json:"sku"`
	Name              string `json:"productName"`
	TotalQuantity     int    `json:"quantity"`
	ReservedQuantity  int    `json:"reservedQuantity"`
	AvailableQuantity int    `json:"availableQuantity"`
}

// LowStock reports whether the item is below the low stock threshold
func (i CatalogItem) LowStock() bool {
	return i.AvailableQuantity < LowStockThreshold
}

// Normalized returns a copy whose available quantity is derived from
// total and reserved, never below zero.
func (i CatalogItem) Normalized() CatalogItem {
	available := i.TotalQuantity - i.ReservedQuantity
	if available < 0 {
		available = 0
	}
	i.AvailableQuantity = available
	return i
}

// CatalogSource tells whether a catalog came from the service or the offline dataset
type CatalogSource string

// CatalogSource constants
const (
	CatalogSourceLive     CatalogSource = "live"
	CatalogSourceFallback CatalogSource = "fallback"
)

// Catalog is an ordered, immutable view of the inventory at load time
type Catalog struct {
	Items    []CatalogItem `json:"items"`
	Source   CatalogSource `json:"source"`
	LoadedAt time.Time     `json:"loaded_at"`
}

// Find returns the item with the given ID
func (c Catalog) Find(itemID string) (CatalogItem, bool) {
	for _, item := range c.Items {
		if item.ItemID == itemID {
			return item, true
		}
	}
	return CatalogItem{}, false
}

// Len returns the number of items
func (c Catalog) Len() int {
	return len(c.Items)
}

// IsFallback reports whether the catalog is the offline dataset
func (c Catalog) IsFallback() bool {
	return c.Source == CatalogSourceFallback
}

// InspectResult is the response of a read-only call against the inventory API
type InspectResult struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	StatusCode int    `json:"status_code"`
	Status     string `json:"status"`
	ElapsedMs  int64  `json:"elapsed_ms"`
	Body       []byte `json:"-"`
}
