package models

import "time"

// DefaultPaymentMethod is used when the caller leaves the method empty
const DefaultPaymentMethod = "CREDIT_CARD"

// SubmissionItem represents one line of a checkout request
type SubmissionItem struct {
	ItemID   string `json:"productId"`
	Quantity int    `json:"quantity"`
}

// SubmissionRequest is the body posted to the checkout service
type SubmissionRequest struct {
	CustomerID     string           `json:"customerId"`
	Items          []SubmissionItem `json:"items"`
	PaymentMethod  string           `json:"paymentMethod"`
	IdempotencyKey string           `json:"idempotencyKey"`
}

// CheckoutResponse is the body returned by the checkout service
type CheckoutResponse struct {
	Success          bool     `json:"success"`
	OrderID          string   `json:"orderId,omitempty"`
	CheckoutID       string   `json:"checkoutId,omitempty"`
	TotalAmount      *float64 `json:"totalAmount,omitempty"`
	Currency         string   `json:"currency,omitempty"`
	Status           string   `json:"status,omitempty"`
	ErrorMessage     string   `json:"errorMessage,omitempty"`
	ProcessingTimeMs *int64   `json:"processingTimeMs,omitempty"`
}

// SubmissionOutcome classifies a checkout attempt
type SubmissionOutcome string

// SubmissionOutcome constants
const (
	OutcomeSuccess          SubmissionOutcome = "SUCCESS"
	OutcomeRejected         SubmissionOutcome = "REJECTED"
	OutcomeTransportFailure SubmissionOutcome = "TRANSPORT_FAILURE"
)

// Submission statuses used when the service does not report one
const (
	SubmissionStatusFailed  = "FAILED"
	SubmissionStatusInvalid = "INVALID"
)

// Latency ratings shown next to a checkout result
const (
	RatingExcellent  = "excellent"
	RatingGood       = "good"
	RatingAcceptable = "acceptable"
)

// RateLatency grades a checkout round trip
func RateLatency(elapsed time.Duration) string {
	switch {
	case elapsed < 300*time.Millisecond:
		return RatingExcellent
	case elapsed < 800*time.Millisecond:
		return RatingGood
	default:
		return RatingAcceptable
	}
}

// SubmissionResult is the terminal, renderable outcome of a checkout attempt
type SubmissionResult struct {
	Outcome        SubmissionOutcome `json:"outcome"`
	OrderID        string            `json:"order_id,omitempty"`
	TransactionID  string            `json:"transaction_id,omitempty"`
	TotalAmount    *float64          `json:"total_amount,omitempty"`
	Currency       string            `json:"currency,omitempty"`
	Status         string            `json:"status"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	ErrorKind      string            `json:"error_kind,omitempty"`
	ElapsedMs      int64             `json:"elapsed_ms"`
	Rating         string            `json:"rating,omitempty"`
	CustomerID     string            `json:"customer_id,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	SubmittedAt    time.Time         `json:"submitted_at"`
}

// Succeeded reports whether the checkout completed
func (r SubmissionResult) Succeeded() bool {
	return r.Outcome == OutcomeSuccess
}
