// Package checkout submits single-shot checkout requests and classifies
// their outcome.
package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ashendes/commerce-console/internal/apperr"
	"github.com/ashendes/commerce-console/internal/clock"
	"github.com/ashendes/commerce-console/internal/metrics"
	"github.com/ashendes/commerce-console/internal/models"
	"github.com/ashendes/commerce-console/internal/patterns"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ProcessPath is the checkout route on the checkout service
const ProcessPath = "/api/v1/checkout/process"

// Publisher receives every terminal result
type Publisher interface {
	PublishSubmission(ctx context.Context, result models.SubmissionResult)
}

// ReloadFunc refreshes the catalog after a successful checkout
type ReloadFunc func(ctx context.Context)

// Options tunes a Submitter
type Options struct {
	Timeout     time.Duration
	ReloadDelay time.Duration
	Concurrency int
	Breaker     patterns.BreakerConfig
	Clock       clock.Clock
	Publisher   Publisher
	Reload      ReloadFunc
	// NewID generates customer ids and idempotency keys. Defaults to UUIDv4.
	NewID func() string
}

// Submitter drives the checkout workflow against one endpoint
type Submitter struct {
	client      *resty.Client
	circuit     *patterns.CircuitBreakerWrapper
	bulkhead    *patterns.Bulkhead
	url         string
	timeout     time.Duration
	reloadDelay time.Duration
	clock       clock.Clock
	publisher   Publisher
	reload      ReloadFunc
	newID       func() string

	mu      sync.Mutex
	nextID  int
	pending map[int]clock.Timer
	closed  bool
}

// NewSubmitter creates a Submitter targeting the checkout endpoint
func NewSubmitter(ep models.Endpoint, opts Options) *Submitter {
	if opts.Timeout <= 0 {
		opts.Timeout = patterns.SlowServiceTimeout
	}
	if opts.ReloadDelay <= 0 {
		opts.ReloadDelay = time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 10
	}
	if opts.Breaker == (patterns.BreakerConfig{}) {
		opts.Breaker = patterns.DefaultBreakerConfig()
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	return &Submitter{
		client: resty.New().
			SetTimeout(opts.Timeout).
			SetRetryCount(0), // Every retry is an explicit new submission
		circuit:     patterns.NewCircuitBreakerWithConfig("Checkout", "console", opts.Breaker),
		bulkhead:    patterns.NewBulkhead(opts.Concurrency, time.Second, "checkout", "console"),
		url:         strings.TrimRight(ep.BaseURL, "/") + ProcessPath,
		timeout:     opts.Timeout,
		reloadDelay: opts.ReloadDelay,
		clock:       opts.Clock,
		publisher:   opts.Publisher,
		reload:      opts.Reload,
		newID:       opts.NewID,
		pending:     make(map[int]clock.Timer),
	}
}

// Submit validates the request against the given catalog, posts it once and
// returns a classified result. It never returns an error: every failure is
// a REJECTED or TRANSPORT_FAILURE result.
func (s *Submitter) Submit(ctx context.Context, itemID string, quantity int, paymentMethod string, catalog models.Catalog) models.SubmissionResult {
	start := s.clock.Now()
	itemID = strings.TrimSpace(itemID)

	// FAIL FAST: no network call when local checks fail
	if err := validate(itemID, quantity, catalog); err != nil {
		elapsed := s.clock.Since(start)
		return s.finish(ctx, models.SubmissionResult{
			Outcome:      models.OutcomeRejected,
			Status:       models.SubmissionStatusInvalid,
			ErrorMessage: strings.TrimPrefix(err.Error(), apperr.ErrValidation.Error()+": "),
			ErrorKind:    apperr.Kind(err),
			ElapsedMs:    elapsed.Milliseconds(),
			Rating:       models.RateLatency(elapsed),
			SubmittedAt:  start,
		})
	}

	if paymentMethod == "" {
		paymentMethod = models.DefaultPaymentMethod
	}

	req := models.SubmissionRequest{
		CustomerID:     s.newID(),
		Items:          []models.SubmissionItem{{ItemID: itemID, Quantity: quantity}},
		PaymentMethod:  paymentMethod,
		IdempotencyKey: s.newID(),
	}

	log.WithFields(log.Fields{
		"item_id":         itemID,
		"quantity":        quantity,
		"payment_method":  paymentMethod,
		"idempotency_key": req.IdempotencyKey,
	}).Info("Processing checkout")

	var result models.SubmissionResult
	err := s.bulkhead.Execute(func() error {
		result = s.post(ctx, req)
		return nil
	})
	if err != nil {
		result = transportFailure(err)
	}

	result.CustomerID = req.CustomerID
	result.IdempotencyKey = req.IdempotencyKey
	result.SubmittedAt = start
	elapsed := s.clock.Since(start)
	result.ElapsedMs = elapsed.Milliseconds()
	result.Rating = models.RateLatency(elapsed)

	result = s.finish(ctx, result)

	if result.Succeeded() {
		s.scheduleReload()
	}
	return result
}

func (s *Submitter) post(ctx context.Context, req models.SubmissionRequest) models.SubmissionResult {
	ctx, cancel := patterns.WithTimeout(ctx, s.timeout)
	defer cancel()

	var resp *resty.Response
	_, err := s.circuit.Execute(func() (interface{}, error) {
		r, httpErr := s.client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetHeader("Idempotency-Key", req.IdempotencyKey).
			SetBody(req).
			Post(s.url)

		if httpErr != nil {
			return nil, apperr.Transport(httpErr)
		}
		resp = r

		// Server errors count against the breaker; the body is still classified below.
		if r.StatusCode() >= 500 {
			return nil, apperr.HTTPCode(r.StatusCode())
		}
		return nil, nil
	})

	if resp == nil {
		return transportFailure(err)
	}

	return classify(resp)
}

func classify(resp *resty.Response) models.SubmissionResult {
	var body models.CheckoutResponse
	parseErr := json.Unmarshal(resp.Body(), &body)

	if resp.IsSuccess() {
		if parseErr != nil {
			return transportFailure(apperr.Transport(fmt.Errorf("malformed checkout response: %w", parseErr)))
		}
		if body.Success {
			status := body.Status
			if status == "" {
				status = "COMPLETED"
			}
			return models.SubmissionResult{
				Outcome:       models.OutcomeSuccess,
				OrderID:       body.OrderID,
				TransactionID: body.CheckoutID,
				TotalAmount:   body.TotalAmount,
				Currency:      body.Currency,
				Status:        status,
			}
		}
		return rejected(body, apperr.Kind(apperr.ErrBusinessRejection), "Unknown error")
	}

	return rejected(body, apperr.Kind(apperr.HTTPCode(resp.StatusCode())), fmt.Sprintf("HTTP %d", resp.StatusCode()))
}

func rejected(body models.CheckoutResponse, kind, defaultMessage string) models.SubmissionResult {
	msg := body.ErrorMessage
	if msg == "" {
		msg = defaultMessage
	}
	status := body.Status
	if status == "" {
		status = models.SubmissionStatusFailed
	}
	return models.SubmissionResult{
		Outcome:       models.OutcomeRejected,
		OrderID:       body.OrderID,
		TransactionID: body.CheckoutID,
		Status:        status,
		ErrorMessage:  msg,
		ErrorKind:     kind,
	}
}

func transportFailure(err error) models.SubmissionResult {
	kind := apperr.Kind(err)
	if kind == "internal" {
		kind = "transport"
	}
	return models.SubmissionResult{
		Outcome:      models.OutcomeTransportFailure,
		Status:       models.SubmissionStatusFailed,
		ErrorMessage: err.Error(),
		ErrorKind:    kind,
	}
}

func (s *Submitter) finish(ctx context.Context, result models.SubmissionResult) models.SubmissionResult {
	metrics.CheckoutsTotal.WithLabelValues(string(result.Outcome), result.ErrorKind).Inc()
	metrics.CheckoutDuration.WithLabelValues(string(result.Outcome)).Observe(float64(result.ElapsedMs) / 1000)

	fields := log.Fields{
		"outcome":    result.Outcome,
		"status":     result.Status,
		"elapsed_ms": result.ElapsedMs,
	}
	if result.Succeeded() {
		if result.TotalAmount != nil {
			metrics.CheckoutAmount.Observe(*result.TotalAmount)
		}
		fields["order_id"] = result.OrderID
		log.WithFields(fields).Info("Checkout completed successfully")
	} else {
		fields["kind"] = result.ErrorKind
		log.WithFields(fields).Warn("Checkout failed: ", result.ErrorMessage)
	}

	if s.publisher != nil {
		s.publisher.PublishSubmission(ctx, result)
	}
	return result
}

// scheduleReload arms one catalog reload. Its outcome never touches the
// already reported result.
func (s *Submitter) scheduleReload() {
	if s.reload == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	id := s.nextID
	s.nextID++
	s.pending[id] = s.clock.AfterFunc(s.reloadDelay, func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()

		log.Debug("Reloading catalog after checkout")
		s.reload(context.Background())
	})
}

// PendingReloads returns the number of armed post-checkout reloads
func (s *Submitter) PendingReloads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// CircuitStatus reports the checkout breaker
func (s *Submitter) CircuitStatus() patterns.CircuitStatus {
	return s.circuit.Status()
}

// Close cancels pending reloads. Submit keeps working but no longer
// schedules reloads.
func (s *Submitter) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, t := range s.pending {
		t.Stop()
		delete(s.pending, id)
	}
}

func validate(itemID string, quantity int, catalog models.Catalog) error {
	if itemID == "" {
		return apperr.Validation("Please select a product")
	}
	if quantity < 1 {
		return apperr.Validation("Please enter a valid quantity")
	}
	// Items missing from a stale catalog are left for the service to judge.
	if item, ok := catalog.Find(itemID); ok && quantity > item.AvailableQuantity {
		return apperr.Validation(fmt.Sprintf("Insufficient stock! Only %d available.", item.AvailableQuantity))
	}
	return nil
}
