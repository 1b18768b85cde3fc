package catalog

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ashendes/commerce-console/internal/apperr"
	"github.com/ashendes/commerce-console/internal/models"
	"github.com/ashendes/commerce-console/internal/patterns"
)

// InspectPaths lists the read-only inventory routes that may be inspected
var InspectPaths = map[string]string{
	"products":  ProductsPath,
	"value":     "/api/v1/inventory/value",
	"low-stock": "/api/v1/inventory/low-stock",
}

// Inspect performs a one-off GET against a named inventory route and
// reports status and response time. It bypasses the catalog breaker.
func (l *Loader) Inspect(ctx context.Context, name string) (models.InspectResult, error) {
	path, ok := InspectPaths[name]
	if !ok {
		return models.InspectResult{}, apperr.Validation(fmt.Sprintf("unknown inventory endpoint %q", name))
	}

	ctx, cancel := patterns.WithTimeout(ctx, l.timeout)
	defer cancel()

	start := l.clock.Now()
	resp, err := l.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get(l.baseURL + path)
	elapsed := l.clock.Since(start)

	if err != nil {
		return models.InspectResult{}, apperr.Transport(err)
	}

	result := models.InspectResult{
		Method:     http.MethodGet,
		Path:       path,
		StatusCode: resp.StatusCode(),
		Status:     resp.Status(),
		ElapsedMs:  elapsed.Milliseconds(),
		Body:       resp.Body(),
	}
	if !resp.IsSuccess() {
		return result, apperr.HTTPCode(resp.StatusCode())
	}
	return result, nil
}
