package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Ramsey-B/laurel/pkg/tracing"
)

// Config holds Kafka configuration
type Config struct {
	Brokers           []string
	SyncResultTopic   string
	BookingEventTopic string
}

// ParseConfig parses a comma-separated broker string
func ParseConfig(brokers, syncResultTopic, bookingEventTopic string) Config {
	brokerList := strings.Split(brokers, ",")
	for i := range brokerList {
		brokerList[i] = strings.TrimSpace(brokerList[i])
	}

	return Config{
		Brokers:           brokerList,
		SyncResultTopic:   syncResultTopic,
		BookingEventTopic: bookingEventTopic,
	}
}

// Producer publishes sync results and booking lifecycle events for
// downstream consumers (dashboard, reporting)
type Producer struct {
	resultWriter *kafka.Writer
	eventWriter  *kafka.Writer
	logger       ectologger.Logger
	resultTopic  string
	eventTopic   string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg Config, logger ectologger.Logger) *Producer {
	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchSize:    100,
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
			Async:        false,
			// Allow Kafka to auto-create the topic in dev environments when it doesn't exist yet.
			// Without this, a first publish may fail with "Unknown Topic Or Partition".
			AllowAutoTopicCreation: true,
		}
	}

	return &Producer{
		resultWriter: newWriter(cfg.SyncResultTopic),
		eventWriter:  newWriter(cfg.BookingEventTopic),
		logger:       logger,
		resultTopic:  cfg.SyncResultTopic,
		eventTopic:   cfg.BookingEventTopic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	var firstErr error
	if err := p.resultWriter.Close(); err != nil {
		firstErr = err
	}
	if err := p.eventWriter.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// SyncResultMessage summarizes one finished sync run
type SyncResultMessage struct {
	SyncLogID       string    `json:"sync_log_id"`
	SyncType        string    `json:"sync_type"`
	Status          string    `json:"status"`
	WindowStart     string    `json:"window_start"`
	WindowEnd       string    `json:"window_end"`
	BookingsFound   int       `json:"bookings_found"`
	BookingsCreated int       `json:"bookings_created"`
	BookingsUpdated int       `json:"bookings_updated"`
	BookingsFailed  int       `json:"bookings_failed"`
	TriggeredBy     string    `json:"triggered_by"`
	DurationMs      int64     `json:"duration_ms"`
	Timestamp       time.Time `json:"timestamp"`

	// Tracing
	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`
}

// BookingEventMessage is a booking lifecycle event applied by the webhook
// ingestor or detected by the reconciler
type BookingEventMessage struct {
	Type              string    `json:"type"` // "booking.created" | "booking.updated" | "booking.cancelled" | "booking.rescheduled"
	ExternalBookingID string    `json:"external_booking_id"`
	TourID            string    `json:"tour_id,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// PublishSyncResult publishes a finished run to the sync-result topic
func (p *Producer) PublishSyncResult(ctx context.Context, msg *SyncResultMessage) error {
	ctx, span := tracing.StartSpan(ctx, "Kafka.PublishSyncResult")
	defer span.End()

	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", p.resultTopic),
		attribute.String("messaging.operation", "publish"),
		attribute.String("sync_log_id", msg.SyncLogID),
		attribute.String("sync_type", msg.SyncType),
	)

	msg.TraceID = tracing.GetTraceID(ctx)
	msg.SpanID = tracing.GetSpanID(ctx)
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal message")
		return fmt.Errorf("failed to marshal sync result: %w", err)
	}

	headers := []kafka.Header{
		{Key: "sync_log_id", Value: []byte(msg.SyncLogID)},
		{Key: "sync_type", Value: []byte(msg.SyncType)},
	}
	if traceparent := tracing.GetTraceParent(ctx); traceparent != "" {
		headers = append(headers, kafka.Header{Key: "traceparent", Value: []byte(traceparent)})
	}
	if tracestate := tracing.GetTraceState(ctx); tracestate != "" {
		headers = append(headers, kafka.Header{Key: "tracestate", Value: []byte(tracestate)})
	}

	if err := p.resultWriter.WriteMessages(ctx, kafka.Message{
		Key:     []byte(msg.SyncLogID),
		Value:   data,
		Headers: headers,
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to publish message")
		p.logger.WithContext(ctx).WithError(err).Errorf("Failed to publish to Kafka topic %s", p.resultTopic)
		return err
	}

	span.SetStatus(codes.Ok, "message published")
	p.logger.WithContext(ctx).Debugf("Published sync result to Kafka: run=%s status=%s", msg.SyncLogID, msg.Status)
	return nil
}

// PublishBookingEvent publishes a booking lifecycle event
func (p *Producer) PublishBookingEvent(ctx context.Context, evt *BookingEventMessage) error {
	ctx, span := tracing.StartSpan(ctx, "Kafka.PublishBookingEvent")
	defer span.End()

	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", p.eventTopic),
		attribute.String("messaging.operation", "publish"),
		attribute.String("type", evt.Type),
	)

	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(evt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal message")
		return fmt.Errorf("failed to marshal booking event: %w", err)
	}

	headers := []kafka.Header{
		{Key: "type", Value: []byte(evt.Type)},
		{Key: "external_booking_id", Value: []byte(evt.ExternalBookingID)},
	}
	if traceparent := tracing.GetTraceParent(ctx); traceparent != "" {
		headers = append(headers, kafka.Header{Key: "traceparent", Value: []byte(traceparent)})
	}

	if err := p.eventWriter.WriteMessages(ctx, kafka.Message{
		Key:     []byte(evt.ExternalBookingID),
		Value:   data,
		Headers: headers,
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to publish message")
		p.logger.WithContext(ctx).WithError(err).Errorf("Failed to publish to Kafka topic %s", p.eventTopic)
		return err
	}

	span.SetStatus(codes.Ok, "message published")
	return nil
}
