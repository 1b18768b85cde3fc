// Package sink contains the display sinks that receive the records produced
// by the console: health snapshots, catalogs and submission results.
package sink

import (
	"context"

	"github.com/ashendes/commerce-console/internal/models"
)

// Record kinds, used as keys, headers and metric labels
const (
	RecordHealth       = "health"
	RecordCatalog      = "catalog"
	RecordCatalogError = "catalog_error"
	RecordSubmission   = "submission"
)

// Sink renders records. Implementations must not retain or mutate the values.
type Sink interface {
	Name() string
	ShowHealth(ctx context.Context, snapshot models.HealthSnapshot) error
	ShowCatalog(ctx context.Context, catalog models.Catalog) error
	ShowCatalogError(ctx context.Context, err error) error
	ShowSubmission(ctx context.Context, result models.SubmissionResult) error
}

// CatalogErrorRecord is the serialized form of a failed catalog load
type CatalogErrorRecord struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}
