// Package eventlog writes committed chat events to a durable log.
package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Event types
const (
	TypeSessionOpened   = "session.opened"
	TypeMessageAppended = "message.appended"
	TypeStatusChanged   = "session.status_changed"
	TypeSessionAssigned = "session.assigned"
	TypeSessionRated    = "session.rated"
	TypeSessionDetached = "session.department_detached"
)

// Event one committed change
type Event struct {
	ID         uuid.UUID   `json:"id"`
	Type       string      `json:"type"`
	SessionID  uuid.UUID   `json:"session_id"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data,omitempty"`
}

// NewEvent creates an event with a fresh id
func NewEvent(eventType string, sessionID uuid.UUID, at time.Time, data interface{}) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		SessionID:  sessionID,
		OccurredAt: at,
		Data:       data,
	}
}

// Sink receives committed events
type Sink interface {
	Emit(ctx context.Context, events ...Event) error
	Close() error
}

// ===========================================================================
// Kafka Sink
// Messages are keyed by session id so one session's events stay on one
// partition and keep their order
// ===========================================================================

// KafkaSink writes events to a Kafka topic
type KafkaSink struct {
	writer *kafka.Writer
	log    *zap.Logger
}

// NewKafkaSink creates a sink for the given brokers and topic
func NewKafkaSink(brokers []string, topic string, log *zap.Logger) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
		},
		log: log,
	}
}

// Emit writes events in one batch
func (s *KafkaSink) Emit(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}

	msgs, err := encode(events)
	if err != nil {
		return err
	}

	if err := s.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write events: %w", err)
	}

	s.log.Debug("events written to kafka",
		zap.Int("count", len(msgs)),
		zap.String("topic", s.writer.Topic),
	)
	return nil
}

// Close flushes and closes the writer
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

func encode(events []Event) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			return nil, fmt.Errorf("marshal event %s: %w", ev.Type, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(ev.SessionID.String()),
			Value: data,
			Time:  ev.OccurredAt,
			Headers: []kafka.Header{
				{Key: "type", Value: []byte(ev.Type)},
			},
		})
	}
	return msgs, nil
}

// ===========================================================================
// Noop Sink (for when Kafka is not configured)
// ===========================================================================

// NoopSink drops every event
type NoopSink struct{}

func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (NoopSink) Emit(ctx context.Context, events ...Event) error { return nil }
func (NoopSink) Close() error                                   { return nil }
