package authsdk

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// TopicAuthEvents is the topic all session lifecycle events publish to.
const TopicAuthEvents = "authsdk.events"

// EventType enumerates session lifecycle events.
type EventType string

const (
	EventLogin          EventType = "login"
	EventLogout         EventType = "logout"
	EventRefreshed      EventType = "refreshed"
	EventSessionExpired EventType = "session_expired"
)

// Event is one session lifecycle notification. Embedding applications
// subscribe through [Client.Events] instead of an ambient global signal.
type Event struct {
	Type   EventType `json:"type"`
	Email  string    `json:"email,omitempty"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

// eventBus wraps an in-process watermill pub/sub. Publishing is best-effort:
// a full or closed bus never fails an authentication operation.
type eventBus struct {
	pubsub *gochannel.GoChannel
}

func newEventBus() *eventBus {
	return &eventBus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 16,
		}, watermill.NopLogger{}),
	}
}

func (b *eventBus) publish(eventType EventType, email, reason string) {
	if b == nil {
		return
	}
	payload, err := json.Marshal(Event{
		Type:   eventType,
		Email:  email,
		Reason: reason,
		At:     time.Now().UTC(),
	})
	if err != nil {
		return
	}
	_ = b.pubsub.Publish(TopicAuthEvents, message.NewMessage(watermill.NewUUID(), payload))
}

// subscribe returns a typed event stream bound to ctx. The channel closes
// when ctx is cancelled or the bus shuts down.
func (b *eventBus) subscribe(ctx context.Context) (<-chan Event, error) {
	msgs, err := b.pubsub.Subscribe(ctx, TopicAuthEvents)
	if err != nil {
		return nil, err
	}

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		for msg := range msgs {
			var ev Event
			if err := json.Unmarshal(msg.Payload, &ev); err == nil {
				select {
				case out <- ev:
				case <-ctx.Done():
					msg.Ack()
					return
				}
			}
			msg.Ack()
		}
	}()
	return out, nil
}

func (b *eventBus) close() {
	if b != nil {
		_ = b.pubsub.Close()
	}
}
