package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ashendes/commerce-console/internal/apperr"
	"github.com/ashendes/commerce-console/internal/models"
	"github.com/segmentio/kafka-go"
)

// messageWriter is satisfied by *kafka.Writer
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes every record as an event on one topic. The record kind
// is the message key and the x-record-type header.
type KafkaSink struct {
	w       messageWriter
	service string
}

// NewKafkaWriter builds a synchronous writer for topic
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: 5 * time.Second,
	}
}

// NewKafkaSink wraps a writer
func NewKafkaSink(w messageWriter, service string) *KafkaSink {
	return &KafkaSink{w: w, service: service}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) ShowHealth(ctx context.Context, snapshot models.HealthSnapshot) error {
	return s.publish(ctx, RecordHealth, snapshot)
}

func (s *KafkaSink) ShowCatalog(ctx context.Context, catalog models.Catalog) error {
	return s.publish(ctx, RecordCatalog, catalog)
}

func (s *KafkaSink) ShowCatalogError(ctx context.Context, err error) error {
	return s.publish(ctx, RecordCatalogError, CatalogErrorRecord{Error: err.Error(), Kind: apperr.Kind(err)})
}

func (s *KafkaSink) ShowSubmission(ctx context.Context, result models.SubmissionResult) error {
	return s.publish(ctx, RecordSubmission, result)
}

// Close flushes and closes the writer
func (s *KafkaSink) Close() error {
	return s.w.Close()
}

func (s *KafkaSink) publish(ctx context.Context, kind string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	msg := kafka.Message{
		Key:   []byte(kind),
		Value: b,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "x-record-type", Value: []byte(kind)},
			{Key: "x-producer", Value: []byte(s.service)},
		},
	}
	if err := s.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish %s: %w", kind, err)
	}
	return nil
}
