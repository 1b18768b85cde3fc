package catalog

import (
	"time"

	"github.com/ashendes/commerce-console/internal/models"
)

// fallbackItems is the offline dataset shown while the inventory service is unreachable.
var fallbackItems = []models.CatalogItem{
	{
		ItemID:            "a1b2c3d4-e5f6-4a78-9b0c-1d2e3f4a5b6c",
		SKU:               "LAPTOP-001",
		Name:              "Gaming Laptop Pro",
		TotalQuantity:     15,
		ReservedQuantity:  2,
		AvailableQuantity: 13,
	},
	{
		ItemID:            "b2c3d4e5-f6a7-4b89-8c0d-2e3f4a5b6c7d",
		SKU:               "PHONE-001",
		Name:              "Smartphone X",
		TotalQuantity:     32,
		ReservedQuantity:  5,
		AvailableQuantity: 27,
	},
	{
		ItemID:            "c3d4e5f6-a7b8-4c90-9d1e-3f4a5b6c7d8e",
		SKU:               "BOOK-001",
		Name:              "Clean Code",
		TotalQuantity:     8,
		ReservedQuantity:  1,
		AvailableQuantity: 7,
	},
}

// Fallback returns the fixed offline catalog. It never fails and always
// returns a fresh copy.
func Fallback(now time.Time) models.Catalog {
	items := make([]models.CatalogItem, len(fallbackItems))
	copy(items, fallbackItems)
	return models.Catalog{
		Items:    items,
		Source:   models.CatalogSourceFallback,
		LoadedAt: now,
	}
}
