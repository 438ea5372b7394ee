package market

import (
	"encoding/json"
	"time"
)

const (
	EventNotification = "Notification"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// NotificationPayload carries a best-effort notification for a single
// user. Delivery channels live behind the notifier consumer.
type NotificationPayload struct {
	UserID    string         `json:"user_id"`
	EventType string         `json:"event_type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
}
