// Package events publishes notification lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"teamhub-notifications/internal/common/logger"
	"teamhub-notifications/internal/notifications"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var ErrPublishFailed = errors.New("EVENT_PUBLISH_FAILED")

const (
	EventCreated = "notification.created"
	EventDeleted = "notification.deleted"
)

// Event is the JSON value of every message. Messages are keyed by
// NotificationID.
type Event struct {
	ID             string                      `json:"id"`
	Type           string                      `json:"type"`
	NotificationID string                      `json:"notificationId"`
	OccurredAt     time.Time                   `json:"occurredAt"`
	Notification   *notifications.Notification `json:"notification,omitempty"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher implements notifications.EventPublisher over a kafka.Writer.
type Publisher struct {
	w     messageWriter
	topic string
	now   func() time.Time
	log   logger.Logger
}

func NewPublisher(brokers []string, topic string, log logger.Logger) *Publisher {
	return newPublisher(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
	}, topic, log)
}

func newPublisher(w messageWriter, topic string, log logger.Logger) *Publisher {
	return &Publisher{
		w:     w,
		topic: topic,
		now:   time.Now,
		log:   log.WithFields(map[string]interface{}{"component": "kafka.producer", "topic": topic}),
	}
}

func (p *Publisher) PublishCreated(ctx context.Context, items []notifications.Notification) error {
	events := make([]Event, 0, len(items))
	for i := range items {
		n := items[i]
		events = append(events, p.newEvent(EventCreated, n.ID, &n))
	}
	return p.publish(ctx, EventCreated, events)
}

func (p *Publisher) PublishDeleted(ctx context.Context, id string) error {
	return p.publish(ctx, EventDeleted, []Event{p.newEvent(EventDeleted, id, nil)})
}

func (p *Publisher) newEvent(eventType, notificationID string, n *notifications.Notification) Event {
	return Event{
		ID:             uuid.NewString(),
		Type:           eventType,
		NotificationID: notificationID,
		OccurredAt:     p.now().UTC(),
		Notification:   n,
	}
}

func (p *Publisher) publish(ctx context.Context, eventType string, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	ctx, span := otel.Tracer("kafka.producer").Start(ctx, "kafka.produce "+p.topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", p.topic),
			attribute.String("event.type", eventType),
		),
	)
	defer span.End()

	hdrs := mapCarrierHeaders{}
	otel.GetTextMapPropagator().Inject(ctx, hdrs)
	headers := append(hdrs.ToKafka(), kafka.Header{Key: "event-type", Value: []byte(eventType)})

	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		value, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("%w: marshal %s: %v", ErrPublishFailed, ev.NotificationID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:     []byte(ev.NotificationID),
			Value:   value,
			Headers: headers,
		})
	}

	if err := p.w.WriteMessages(ctx, msgs...); err != nil {
		span.RecordError(err)
		p.log.Error("kafka write failed", map[string]interface{}{"error": err, "eventType": eventType})
		return fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	p.log.Debug("events published", map[string]interface{}{"eventType": eventType, "count": len(msgs)})
	return nil
}

func (p *Publisher) Close() error { return p.w.Close() }

// Noop is used when Kafka is disabled.
type Noop struct{}

func (Noop) PublishCreated(context.Context, []notifications.Notification) error { return nil }
func (Noop) PublishDeleted(context.Context, string) error                       { return nil }
func (Noop) Close() error                                                       { return nil }

type mapCarrierHeaders map[string]string

func (m mapCarrierHeaders) Get(k string) string { return m[k] }
func (m mapCarrierHeaders) Set(k, v string)     { m[k] = v }
func (m mapCarrierHeaders) Keys() []string {
	ks := make([]string, 0, len(m))
	for k := range m {
		ks = append(ks, k)
	}
	return ks
}
func (m mapCarrierHeaders) ToKafka() []kafka.Header {
	hs := make([]kafka.Header, 0, len(m)+1)
	for k, v := range m {
		hs = append(hs, kafka.Header{Key: k, Value: []byte(v)})
	}
	return hs
}
