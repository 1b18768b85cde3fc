package sink

import (
	"context"

	"github.com/ashendes/commerce-console/internal/apperr"
	"github.com/ashendes/commerce-console/internal/models"
	log "github.com/sirupsen/logrus"
)

// LogSink writes every record as a structured log line
type LogSink struct {
	logger log.FieldLogger
}

// NewLogSink creates a LogSink. A nil logger uses the standard logrus logger.
func NewLogSink(logger log.FieldLogger) *LogSink {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) ShowHealth(_ context.Context, snapshot models.HealthSnapshot) error {
	for _, o := range snapshot.Outcomes {
		fields := log.Fields{
			"endpoint": o.Endpoint.Label,
			"port":     o.Endpoint.Port,
			"status":   o.Status,
		}
		if o.LatencyMs != nil {
			fields["latency_ms"] = *o.LatencyMs
		}
		if o.ErrorDetail != "" {
			fields["error"] = o.ErrorDetail
		}
		s.logger.WithFields(fields).Info("Service health")
	}
	return nil
}

func (s *LogSink) ShowCatalog(_ context.Context, catalog models.Catalog) error {
	low := 0
	for _, item := range catalog.Items {
		if item.LowStock() {
			low++
		}
	}
	entry := s.logger.WithFields(log.Fields{
		"source":    catalog.Source,
		"items":     catalog.Len(),
		"low_stock": low,
	})
	if catalog.IsFallback() {
		entry.Warn("Showing offline sample catalog")
		return nil
	}
	entry.Info("Catalog loaded")
	return nil
}

func (s *LogSink) ShowCatalogError(_ context.Context, err error) error {
	s.logger.WithFields(log.Fields{
		"kind": apperr.Kind(err),
	}).Error("Error loading products: ", err)
	return nil
}

func (s *LogSink) ShowSubmission(_ context.Context, result models.SubmissionResult) error {
	entry := s.logger.WithFields(log.Fields{
		"outcome":    result.Outcome,
		"status":     result.Status,
		"elapsed_ms": result.ElapsedMs,
		"rating":     result.Rating,
	})
	if result.Succeeded() {
		entry.WithFields(log.Fields{
			"order_id":       result.OrderID,
			"transaction_id": result.TransactionID,
		}).Info("Checkout successful")
		return nil
	}
	entry.WithField("kind", result.ErrorKind).Warn("Checkout failed: ", result.ErrorMessage)
	return nil
}
