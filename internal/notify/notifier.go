package notify

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/pasoklink/pasoklink/internal/kafka"
	"github.com/pasoklink/pasoklink/internal/market"
)

// Notifier is the best-effort side channel every state transition rings.
// Implementations must never fail the caller: a lost notification is
// acceptable, a rolled-back order is not.
type Notifier interface {
	Notify(ctx context.Context, userID, eventType, title, message string, data map[string]any)
}

// KafkaNotifier publishes notification envelopes through the async
// producer. Publish never blocks on the broker, so the calling
// operation finishes regardless of Kafka health.
type KafkaNotifier struct {
	Producer *kafkax.Producer
	Service  string
}

func (n *KafkaNotifier) Notify(ctx context.Context, userID, eventType, title, message string, data map[string]any) {
	ev := market.Envelope{
		EventID:       uuid.NewString(),
		EventType:     market.EventNotification,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      n.Service,
		CorrelationID: userID,
		Payload: kafkax.MustMarshal(market.NotificationPayload{
			UserID:    userID,
			EventType: eventType,
			Title:     title,
			Message:   message,
			Data:      data,
		}),
	}
	n.Producer.Publish(market.PartitionKey(userID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(market.EventNotification)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

// LogNotifier is the fallback when no broker is configured, and the
// test double of choice.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, userID, eventType, title, _ string, _ map[string]any) {
	log.Printf("notify user=%s type=%s title=%q", userID, eventType, title)
}
