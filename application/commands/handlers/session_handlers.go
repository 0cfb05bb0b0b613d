package handlers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"blogify/application/commands"
	"blogify/application/commands/bus"
	"blogify/application/ports"
)

// SessionView is the part of a session shown to the shell's front end.
// Tokens stay inside the process.
type SessionView struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionHandler signs the shell in and out. Navigation that follows is
// left to the auth reconciler, which hears the resulting events.
type SessionHandler struct {
	sessions ports.SessionProvider
	logger   *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions ports.SessionProvider, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

// SignIn handles SignInCommand.
func (h *SessionHandler) SignIn(ctx context.Context, cmd commands.SignInCommand) (*SessionView, error) {
	session, err := h.sessions.SignInWithPassword(ctx, cmd.Email, cmd.Password)
	if err != nil {
		return nil, err
	}
	return &SessionView{
		UserID:    session.User.ID,
		Email:     session.User.Email,
		Name:      session.User.Name,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// SignOut handles SignOutCommand.
func (h *SessionHandler) SignOut(ctx context.Context, _ commands.SignOutCommand) error {
	return h.sessions.SignOut(ctx)
}

// Register wires both commands into b.
func (h *SessionHandler) Register(b *bus.CommandBus) error {
	if err := b.Register(commands.SignInCommand{}, bus.CommandHandlerFunc(func(ctx context.Context, cmd bus.Command) (interface{}, error) {
		c, ok := cmd.(commands.SignInCommand)
		if !ok {
			return nil, fmt.Errorf("unexpected command %T", cmd)
		}
		return h.SignIn(ctx, c)
	})); err != nil {
		return err
	}

	return b.Register(commands.SignOutCommand{}, bus.CommandHandlerFunc(func(ctx context.Context, cmd bus.Command) (interface{}, error) {
		return nil, h.SignOut(ctx, commands.SignOutCommand{})
	}))
}
