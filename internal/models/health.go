package models

import "time"

// HealthStatus is the state of a probed endpoint
type HealthStatus string

// HealthStatus constants
const (
	HealthUp   HealthStatus = "UP"
	HealthDown HealthStatus = "DOWN"
)

// HealthOutcome is the result of a single probe. Exactly one of
// LatencyMs and ErrorDetail is set.
type HealthOutcome struct {
	Endpoint    Endpoint     `json:"endpoint"`
	Status      HealthStatus `json:"status"`
	LatencyMs   *int64       `json:"latency_ms,omitempty"`
	ErrorDetail string       `json:"error,omitempty"`
}

// Up builds a healthy outcome
func Up(ep Endpoint, latency time.Duration) HealthOutcome {
	ms := latency.Milliseconds()
	return HealthOutcome{Endpoint: ep, Status: HealthUp, LatencyMs: &ms}
}

// Down builds an unhealthy outcome
func Down(ep Endpoint, detail string) HealthOutcome {
	if detail == "" {
		detail = "unknown error"
	}
	return HealthOutcome{Endpoint: ep, Status: HealthDown, ErrorDetail: detail}
}

// IsUp reports whether the endpoint answered successfully
func (o HealthOutcome) IsUp() bool {
	return o.Status == HealthUp
}

// HealthSnapshot holds one outcome per registered endpoint, in registry order
type HealthSnapshot struct {
	Outcomes    []HealthOutcome `json:"outcomes"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt time.Time       `json:"completed_at"`
}

// UpCount returns the number of healthy endpoints
func (s HealthSnapshot) UpCount() int {
	n := 0
	for _, o := range s.Outcomes {
		if o.IsUp() {
			n++
		}
	}
	return n
}

// AllUp reports whether every endpoint is healthy
func (s HealthSnapshot) AllUp() bool {
	return len(s.Outcomes) > 0 && s.UpCount() == len(s.Outcomes)
}
