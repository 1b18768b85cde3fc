package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ashendes/commerce-console/internal/clock"
	"github.com/ashendes/commerce-console/internal/models"
	"github.com/ashendes/commerce-console/internal/patterns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCatalog = models.Catalog{
	Source: models.CatalogSourceLive,
	Items: []models.CatalogItem{
		{ItemID: "p-1", Name: "Gaming Laptop Pro", TotalQuantity: 5, ReservedQuantity: 2, AvailableQuantity: 3},
	},
}

type recordingPublisher struct {
	mu      sync.Mutex
	results []models.SubmissionResult
}

func (p *recordingPublisher) PublishSubmission(_ context.Context, r models.SubmissionResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, r)
}

type fixture struct {
	sub     *Submitter
	clock   *clock.Fake
	pub     *recordingPublisher
	reloads *atomic.Int32
}

func newFixture(t *testing.T, url string, breaker patterns.BreakerConfig) fixture {
	t.Helper()

	fake := clock.NewFake(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	pub := &recordingPublisher{}
	reloads := &atomic.Int32{}

	sub := NewSubmitter(models.Endpoint{ID: models.EndpointCheckout, BaseURL: url}, Options{
		Timeout:     time.Second,
		ReloadDelay: time.Second,
		Breaker:     breaker,
		Clock:       fake,
		Publisher:   pub,
		Reload:      func(context.Context) { reloads.Add(1) },
	})
	t.Cleanup(sub.Close)

	return fixture{sub: sub, clock: fake, pub: pub, reloads: reloads}
}

func TestSubmit_ValidationFailsWithoutNetwork(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	tests := []struct {
		name     string
		itemID   string
		quantity int
		message  string
	}{
		{"no item", "", 1, "Please select a product"},
		{"zero quantity", "p-1", 0, "Please enter a valid quantity"},
		{"negative quantity", "p-1", -2, "Please enter a valid quantity"},
		{"insufficient stock", "p-1", 5, "Insufficient stock! Only 3 available."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, srv.URL, patterns.BreakerConfig{})

			res := f.sub.Submit(context.Background(), tt.itemID, tt.quantity, "", testCatalog)

			assert.Equal(t, models.OutcomeRejected, res.Outcome)
			assert.Equal(t, models.SubmissionStatusInvalid, res.Status)
			assert.Equal(t, tt.message, res.ErrorMessage)
			assert.Equal(t, "validation", res.ErrorKind)
			assert.Empty(t, res.IdempotencyKey)
			assert.Len(t, f.pub.results, 1)
			assert.Zero(t, f.sub.PendingReloads())
		})
	}

	assert.Zero(t, calls.Load())
}

func TestSubmit_Success(t *testing.T) {
	t.Parallel()

	var got models.SubmissionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, ProcessPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, got.IdempotencyKey, r.Header.Get("Idempotency-Key"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"orderId":"O1","checkoutId":"C1","totalAmount":42,"currency":"USD","status":"COMPLETED"}`))
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL, patterns.BreakerConfig{})
	res := f.sub.Submit(context.Background(), "p-1", 2, "", testCatalog)

	require.Equal(t, models.OutcomeSuccess, res.Outcome, res.ErrorMessage)
	assert.Equal(t, "O1", res.OrderID)
	assert.Equal(t, "C1", res.TransactionID)
	require.NotNil(t, res.TotalAmount)
	assert.Equal(t, 42.0, *res.TotalAmount)
	assert.Equal(t, "USD", res.Currency)
	assert.Equal(t, "COMPLETED", res.Status)
	assert.Equal(t, models.RatingExcellent, res.Rating)

	assert.NotEmpty(t, got.CustomerID)
	assert.Equal(t, res.CustomerID, got.CustomerID)
	assert.Equal(t, res.IdempotencyKey, got.IdempotencyKey)
	assert.Equal(t, models.DefaultPaymentMethod, got.PaymentMethod)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "p-1", got.Items[0].ItemID)
	assert.Equal(t, 2, got.Items[0].Quantity)

	require.Len(t, f.pub.results, 1)
	assert.Equal(t, models.OutcomeSuccess, f.pub.results[0].Outcome)

	// Exactly one reload, one second later
	assert.Zero(t, f.reloads.Load())
	assert.Equal(t, 1, f.sub.PendingReloads())
	f.clock.Advance(999 * time.Millisecond)
	assert.Zero(t, f.reloads.Load())
	f.clock.Advance(time.Millisecond)
	assert.Equal(t, int32(1), f.reloads.Load())
	f.clock.Advance(time.Minute)
	assert.Equal(t, int32(1), f.reloads.Load())
	assert.Zero(t, f.sub.PendingReloads())
}

func TestSubmit_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		code    int
		body    string
		outcome models.SubmissionOutcome
		message string
		status  string
		kind    string
	}{
		{
			name: "business rejection", code: http.StatusOK,
			body:    `{"success":false,"errorMessage":"Payment declined","status":"DECLINED"}`,
			outcome: models.OutcomeRejected, message: "Payment declined", status: "DECLINED", kind: "business",
		},
		{
			name: "rejection without details", code: http.StatusOK,
			body:    `{"success":false}`,
			outcome: models.OutcomeRejected, message: "Unknown error", status: models.SubmissionStatusFailed, kind: "business",
		},
		{
			name: "conflict with json body", code: http.StatusConflict,
			body:    `{"success":false,"errorMessage":"Insufficient inventory"}`,
			outcome: models.OutcomeRejected, message: "Insufficient inventory", status: models.SubmissionStatusFailed, kind: "http",
		},
		{
			name: "server error with text body", code: http.StatusInternalServerError,
			body:    `upstream exploded`,
			outcome: models.OutcomeRejected, message: "HTTP 500", status: models.SubmissionStatusFailed, kind: "http",
		},
		{
			name: "malformed success body", code: http.StatusOK,
			body:    `<html>`,
			outcome: models.OutcomeTransportFailure, status: models.SubmissionStatusFailed, kind: "transport",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			f := newFixture(t, srv.URL, patterns.BreakerConfig{})
			res := f.sub.Submit(context.Background(), "p-1", 1, "PAYPAL", testCatalog)

			assert.Equal(t, tt.outcome, res.Outcome)
			if tt.message != "" {
				assert.Equal(t, tt.message, res.ErrorMessage)
			} else {
				assert.NotEmpty(t, res.ErrorMessage)
			}
			assert.Equal(t, tt.status, res.Status)
			assert.Equal(t, tt.kind, res.ErrorKind)
			assert.Zero(t, f.sub.PendingReloads())

			f.clock.Advance(time.Minute)
			assert.Zero(t, f.reloads.Load())
		})
	}
}

func TestSubmit_TransportFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	f := newFixture(t, url, patterns.BreakerConfig{})
	res := f.sub.Submit(context.Background(), "p-1", 1, "", testCatalog)

	assert.Equal(t, models.OutcomeTransportFailure, res.Outcome)
	assert.Equal(t, "transport", res.ErrorKind)
	assert.Equal(t, models.SubmissionStatusFailed, res.Status)
	assert.NotEmpty(t, res.ErrorMessage)
	assert.NotEmpty(t, res.IdempotencyKey)

	f.clock.Advance(time.Minute)
	assert.Zero(t, f.reloads.Load())
}

func TestSubmit_OpenBreakerSkipsNetwork(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL, patterns.BreakerConfig{
		MaxRequests:  1,
		Interval:     time.Minute,
		OpenTimeout:  time.Minute,
		MinRequests:  1,
		FailureRatio: 0.5,
	})

	first := f.sub.Submit(context.Background(), "p-1", 1, "", testCatalog)
	assert.Equal(t, models.OutcomeRejected, first.Outcome)
	assert.Equal(t, "HTTP 503", first.ErrorMessage)
	assert.Equal(t, "open", f.sub.CircuitStatus().State)

	second := f.sub.Submit(context.Background(), "p-1", 1, "", testCatalog)
	assert.Equal(t, models.OutcomeTransportFailure, second.Outcome)
	assert.Contains(t, second.ErrorMessage, "circuit breaker Checkout is open")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSubmit_FreshKeysPerAttempt(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	keys := map[string]bool{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req models.SubmissionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		keys[req.IdempotencyKey] = true
		mu.Unlock()
		_, _ = w.Write([]byte(`{"success":false,"errorMessage":"Payment declined"}`))
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL, patterns.BreakerConfig{})
	a := f.sub.Submit(context.Background(), "p-1", 1, "", testCatalog)
	b := f.sub.Submit(context.Background(), "p-1", 1, "", testCatalog)

	assert.NotEqual(t, a.IdempotencyKey, b.IdempotencyKey)
	assert.NotEqual(t, a.CustomerID, b.CustomerID)
	assert.Len(t, keys, 2)
}

func TestSubmit_UnknownItemIsLeftToService(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"success":true,"orderId":"O9"}`))
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL, patterns.BreakerConfig{})
	res := f.sub.Submit(context.Background(), "p-404", 1, "", testCatalog)

	assert.Equal(t, models.OutcomeSuccess, res.Outcome)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClose_CancelsPendingReloads(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"orderId":"O1"}`))
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL, patterns.BreakerConfig{})
	for i := 0; i < 3; i++ {
		res := f.sub.Submit(context.Background(), "p-1", 1, "", testCatalog)
		require.True(t, res.Succeeded(), fmt.Sprintf("attempt %d: %s", i, res.ErrorMessage))
	}
	assert.Equal(t, 3, f.sub.PendingReloads())

	f.sub.Close()
	assert.Zero(t, f.sub.PendingReloads())
	assert.Zero(t, f.clock.Pending())

	f.clock.Advance(time.Minute)
	assert.Zero(t, f.reloads.Load())

	// Submissions still work but no longer schedule reloads
	res := f.sub.Submit(context.Background(), "p-1", 1, "", testCatalog)
	assert.True(t, res.Succeeded())
	assert.Zero(t, f.sub.PendingReloads())
}

func TestSubmit_TrimsItemID(t *testing.T) {
	t.Parallel()

	var got models.SubmissionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true,"orderId":"O2"}`))
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL, patterns.BreakerConfig{})

	// Stock check finds the padded id in the catalog
	rejected := f.sub.Submit(context.Background(), "  p-1 ", 5, "", testCatalog)
	assert.Equal(t, models.OutcomeRejected, rejected.Outcome)
	assert.Equal(t, "Insufficient stock! Only 3 available.", rejected.ErrorMessage)
	assert.Equal(t, models.RatingExcellent, rejected.Rating)

	res := f.sub.Submit(context.Background(), " p-1\t", 1, "", testCatalog)
	require.True(t, res.Succeeded(), res.ErrorMessage)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "p-1", got.Items[0].ItemID)
}
