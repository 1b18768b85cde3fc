package health

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ashendes/commerce-console/internal/apperr"
	"github.com/ashendes/commerce-console/internal/models"
	"github.com/ashendes/commerce-console/internal/patterns"
	"github.com/go-resty/resty/v2"
)

// Prober checks a single endpoint. A nil error means the endpoint is UP.
type Prober interface {
	Probe(ctx context.Context, ep models.Endpoint) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, ep models.Endpoint) error

func (f ProberFunc) Probe(ctx context.Context, ep models.Endpoint) error { return f(ctx, ep) }

var errInvalidPayload = errors.New("health endpoint returned a non-JSON body")

// HTTPProber issues GET {base}{healthPath} and expects a 2xx JSON body.
type HTTPProber struct {
	client *resty.Client
}

// NewHTTPProber builds a prober whose transport gives up after timeout.
func NewHTTPProber(timeout time.Duration) *HTTPProber {
	if timeout <= 0 {
		timeout = patterns.DefaultTimeout
	}
	return &HTTPProber{
		client: resty.New().
			SetTimeout(timeout).
			SetRetryCount(0), // One probe per cycle, no retries
	}
}

func (p *HTTPProber) Probe(ctx context.Context, ep models.Endpoint) error {
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get(ep.HealthURL())
	if err != nil {
		return apperr.Transport(err)
	}

	if !resp.IsSuccess() {
		return apperr.HTTPCode(resp.StatusCode())
	}

	if !json.Valid(resp.Body()) {
		return errInvalidPayload
	}

	return nil
}
