package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/pasoklink/pasoklink/internal/kafka"
	"github.com/pasoklink/pasoklink/internal/market"
	"github.com/pasoklink/pasoklink/internal/redisx"
)

// Delivery consumes notification envelopes and hands them to the
// delivery channels. Push/email integrations hang off here; the core
// only guarantees at-most-once, deduped by event id.
type Delivery struct {
	Redis       *redis.Client
	ServiceName string
}

func (d *Delivery) HandleNotification(ctx context.Context, m kafkago.Message) error {
	var env market.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != market.EventNotification {
		return nil // ignore foreign events on the topic
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, d.ServiceName, env.EventID)
	exists, _ := redisx.Exists(ctx, d.Redis, dkey)
	if exists {
		return nil
	}
	_ = d.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	p, err := kafkax.UnwrapPayload[market.NotificationPayload](env.Payload)
	if err != nil {
		return err
	}

	// Delivery is best-effort by contract, so channel errors are logged
	// and the offset is still committed.
	log.Printf("deliver notification user=%s type=%s title=%q msg=%q",
		p.UserID, p.EventType, p.Title, p.Message)
	return nil
}
