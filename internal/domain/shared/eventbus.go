package shared

import "context"

// EventHandler consumes domain events, e.g. to forward them to a broker.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes lists the types the handler wants when it is subscribed
	// without explicit types. Nil means every type.
	EventTypes() []string
}

// EventPublisher is what the importer needs to announce product changes.
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventBus fans published events out to subscribed handlers.
type EventBus interface {
	EventPublisher
	Subscribe(handler EventHandler, eventTypes ...string)
	Unsubscribe(handler EventHandler)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
