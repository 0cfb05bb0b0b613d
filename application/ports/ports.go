package ports

import (
	"context"

	"blogify/domain/events"
)

// AuthListener receives session transitions from a SessionProvider.
type AuthListener func(change events.AuthStateChange)

// Subscription is a disposable listener registration. Unsubscribe is safe
// to call more than once; only the first call has an effect.
type Subscription interface {
	Unsubscribe()
}

// SessionProvider owns the signed-in user's credentials.
type SessionProvider interface {
	// GetSession returns the current session, or nil when signed out.
	GetSession(ctx context.Context) (*events.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*events.Session, error)
	SignOut(ctx context.Context) error
	OnAuthStateChange(listener AuthListener) Subscription
}

// Navigator is the shell's history: the current location and the two ways
// of leaving it.
type Navigator interface {
	// Location returns the current path including any query string.
	Location() string
	// Assign navigates to path, pushing a history entry.
	Assign(path string)
	// Reload re-renders the current location from scratch.
	Reload()
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	Publish(ctx context.Context, event events.DomainEvent) error
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}
