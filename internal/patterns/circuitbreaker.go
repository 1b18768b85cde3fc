package patterns

import (
	"errors"
	"fmt"
	"time"

	"github.com/ashendes/commerce-console/internal/metrics"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// BreakerConfig tunes a circuit breaker
type BreakerConfig struct {
	MaxRequests  uint32        // Max requests allowed in half-open state
	Interval     time.Duration // Window to track failures
	OpenTimeout  time.Duration // Time to wait before half-open
	MinRequests  uint32        // Requests needed before the breaker may trip
	FailureRatio float64       // Failure ratio that trips the breaker
}

// DefaultBreakerConfig trips after 3 requests with at least 60% failures
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:  3,
		Interval:     15 * time.Second,
		OpenTimeout:  30 * time.Second,
		MinRequests:  3,
		FailureRatio: 0.6,
	}
}

// CircuitBreakerWrapper wraps gobreaker with metrics
type CircuitBreakerWrapper struct {
	*gobreaker.CircuitBreaker
	name    string
	service string
}

// NewCircuitBreaker creates a circuit breaker with the default settings
func NewCircuitBreaker(name, service string) *CircuitBreakerWrapper {
	return NewCircuitBreakerWithConfig(name, service, DefaultBreakerConfig())
}

// NewCircuitBreakerWithConfig creates a new circuit breaker with Prometheus metrics
func NewCircuitBreakerWithConfig(name, service string, cfg BreakerConfig) *CircuitBreakerWrapper {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		},
		OnStateChange: func(cbName string, from gobreaker.State, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(service, cbName).Set(float64(stateValue(to)))

			log.WithFields(log.Fields{
				"circuit": cbName,
				"from":    from.String(),
				"to":      to.String(),
			}).Info("Circuit breaker state changed")
		},
	})

	// Closed by default
	metrics.CircuitBreakerState.WithLabelValues(service, name).Set(0)

	return &CircuitBreakerWrapper{
		CircuitBreaker: cb,
		name:           name,
		service:        service,
	}
}

// Execute runs a function through the circuit breaker with metrics
func (cb *CircuitBreakerWrapper) Execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := cb.CircuitBreaker.Execute(fn)

	if err != nil {
		metrics.CircuitBreakerFailures.WithLabelValues(cb.service, cb.name).Inc()
	}

	return result, FormatError(cb.name, err)
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreakerWrapper) GetState() string {
	return cb.State().String()
}

// CircuitStatus is the reportable state of one breaker
type CircuitStatus struct {
	Name  string `json:"name"`
	State string `json:"state"`
	Value int    `json:"value"`
}

// Status returns the breaker name, state and numeric state value
func (cb *CircuitBreakerWrapper) Status() CircuitStatus {
	return CircuitStatus{
		Name:  cb.name,
		State: cb.GetState(),
		Value: cb.GetStateValue(),
	}
}

// GetStateValue returns numeric value for the state (0=closed, 1=open, 2=half-open)
func (cb *CircuitBreakerWrapper) GetStateValue() int {
	return stateValue(cb.State())
}

func stateValue(s gobreaker.State) int {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return -1
	}
}

// IsOpen reports whether err was produced by a breaker refusing the call
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// FormatError adds circuit breaker info while keeping the breaker error matchable
func FormatError(circuitName string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) {
		return fmt.Errorf("circuit breaker %s is open (service unavailable): %w", circuitName, err)
	}
	if errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("circuit breaker %s: too many requests in half-open state: %w", circuitName, err)
	}
	return err
}
