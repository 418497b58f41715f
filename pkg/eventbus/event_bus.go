// Package eventbus routes engine events over a watermill pub/sub channel.
package eventbus

import (
	"context"

	"github.com/tabwright/tabwright/pkg/events"
)

// EventHandler processes one decoded event.
type EventHandler func(ctx context.Context, event any) error

// EventBus decouples the page host and run observers from the engine:
// interactions are published as messages and consumed by whoever is
// subscribed, regardless of the transport underneath.
type EventBus interface {
	Publish(ctx context.Context, key string, event events.Event) error

	// Handle registers a handler for one event type. Registration must
	// happen before Subscribe.
	Handle(eventType events.EventType, handler EventHandler)

	// Subscribe starts consuming events until the context is cancelled.
	Subscribe(ctx context.Context) error

	GenerateID() string

	Close() error
}
