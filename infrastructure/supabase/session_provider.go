package supabase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"blogify/application/ports"
	"blogify/domain/events"
	pkgerrors "blogify/pkg/errors"
)

// DefaultRefreshMargin is how long before expiry a session is refreshed.
const DefaultRefreshMargin = 60 * time.Second

// Provider holds one user's session and notifies listeners as it changes.
// It is safe for concurrent use. Listeners run synchronously on the
// goroutine that caused the change, never under the provider's lock.
type Provider struct {
	api    AuthAPI
	logger *zap.Logger

	refreshMargin time.Duration
	now           func() time.Time

	mu         sync.Mutex
	session    *events.Session
	refreshing *refreshCall
	listeners  map[uint64]ports.AuthListener
	nextID     uint64
}

// Option configures a Provider.
type Option func(*Provider)

// WithRefreshMargin overrides DefaultRefreshMargin.
func WithRefreshMargin(d time.Duration) Option {
	return func(p *Provider) { p.refreshMargin = d }
}

// WithInitialSession restores a previously issued session.
func WithInitialSession(s *events.Session) Option {
	return func(p *Provider) { p.session = s }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// NewProvider creates a signed-out provider over api.
func NewProvider(api AuthAPI, logger *zap.Logger, opts ...Option) *Provider {
	p := &Provider{
		api:           api,
		logger:        logger,
		refreshMargin: DefaultRefreshMargin,
		now:           time.Now,
		listeners:     make(map[uint64]ports.AuthListener),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GetSession returns the current session, refreshing it first when it is
// about to expire. A failed refresh keeps a still-valid token; an expired
// one is dropped and the user is treated as signed out. Concurrent callers
// share one refresh, and the lock is not held while it runs.
func (p *Provider) GetSession(ctx context.Context) (*events.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	current := p.session
	now := p.now()
	if current == nil || !current.ExpiresWithin(now, p.refreshMargin) {
		p.mu.Unlock()
		return copySession(current), nil
	}
	call := p.refreshing
	if call == nil {
		call = &refreshCall{done: make(chan struct{})}
		p.refreshing = call
		go p.refresh(call, current, now)
	}
	p.mu.Unlock()

	select {
	case <-call.done:
		return copySession(call.session), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// refreshCall is one refresh shared by every GetSession waiting on it.
type refreshCall struct {
	done    chan struct{}
	session *events.Session
}

func (p *Provider) refresh(call *refreshCall, current *events.Session, now time.Time) {
	defer close(call.done)

	grant, err := p.api.Refresh(current.RefreshToken)

	p.mu.Lock()
	p.refreshing = nil
	if p.session != current {
		// Signed in or out while the refresh ran; that change wins.
		call.session = p.session
		p.mu.Unlock()
		return
	}

	if err != nil {
		if now.Before(current.ExpiresAt) {
			call.session = current
			p.mu.Unlock()
			p.logger.Warn("Session refresh failed, using current token",
				zap.String("userID", current.User.ID),
				zap.Error(err),
			)
			return
		}
		p.session = nil
		p.mu.Unlock()
		p.logger.Warn("Session expired and could not be refreshed",
			zap.String("userID", current.User.ID),
			zap.Error(err),
		)
		p.emit(events.AuthSignedOut, nil)
		return
	}

	refreshed := p.sessionFromGrant(grant, current.User)
	p.session = refreshed
	call.session = refreshed
	p.mu.Unlock()

	p.logger.Debug("Session refreshed",
		zap.String("userID", refreshed.User.ID),
		zap.Time("expiresAt", refreshed.ExpiresAt),
	)
	p.emit(events.AuthTokenRefreshed, refreshed)
}

// SignInWithPassword exchanges credentials for a session.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*events.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	grant, err := p.api.SignInWithPassword(email, password)
	if err != nil {
		p.logger.Info("Sign-in rejected", zap.String("email", email), zap.Error(err))
		return nil, pkgerrors.ErrInvalidCredentials.Because(err)
	}

	session := p.sessionFromGrant(grant, events.SessionUser{Email: email})

	p.mu.Lock()
	p.session = session
	p.mu.Unlock()

	p.logger.Info("Signed in", zap.String("userID", session.User.ID))
	p.emit(events.AuthSignedIn, session)
	return copySession(session), nil
}

// SignOut drops the session. The server-side logout is best effort; the
// local session is cleared either way.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	current := p.session
	p.session = nil
	p.mu.Unlock()

	if current != nil && ctx.Err() == nil {
		if err := p.api.Logout(current.AccessToken); err != nil {
			p.logger.Warn("Server logout failed", zap.String("userID", current.User.ID), zap.Error(err))
		}
	}

	p.emit(events.AuthSignedOut, nil)
	return nil
}

// OnAuthStateChange registers listener. It is called immediately with
// INITIAL_SESSION and the current session, then with every later change.
func (p *Provider) OnAuthStateChange(listener ports.AuthListener) ports.Subscription {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = listener
	current := copySession(p.session)
	p.mu.Unlock()

	listener(events.AuthStateChange{
		Event:      events.AuthInitialSession,
		Session:    current,
		OccurredAt: p.now(),
	})

	return &subscription{unsubscribe: func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}}
}

// Listeners returns the number of live registrations.
func (p *Provider) Listeners() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

func (p *Provider) emit(event events.AuthChangeEvent, session *events.Session) {
	p.mu.Lock()
	listeners := make([]ports.AuthListener, 0, len(p.listeners))
	for _, l := range p.listeners {
		listeners = append(listeners, l)
	}
	p.mu.Unlock()

	change := events.AuthStateChange{Event: event, OccurredAt: p.now()}
	for _, l := range listeners {
		change.Session = copySession(session)
		l(change)
	}
}

func (p *Provider) sessionFromGrant(g *Grant, known events.SessionUser) *events.Session {
	s := &events.Session{
		AccessToken:  g.AccessToken,
		RefreshToken: g.RefreshToken,
		TokenType:    g.TokenType,
		ExpiresAt:    g.ExpiresAt,
		User:         known,
	}
	if g.UserID != "" {
		s.User.ID = g.UserID
	}
	if g.Email != "" {
		s.User.Email = g.Email
	}

	claims, err := parseAccessToken(g.AccessToken)
	if err != nil {
		p.logger.Debug("Access token claims unavailable", zap.Error(err))
		return s
	}
	if s.User.ID == "" {
		s.User.ID = claims.Subject
	}
	if s.User.Email == "" {
		s.User.Email = claims.Email
	}
	if s.User.Name == "" {
		s.User.Name = claims.Name
	}
	if s.ExpiresAt.IsZero() {
		s.ExpiresAt = claims.ExpiresAt
	}
	return s
}

func copySession(s *events.Session) *events.Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

type subscription struct {
	once        sync.Once
	unsubscribe func()
}

func (s *subscription) Unsubscribe() {
	s.once.Do(s.unsubscribe)
}

// RequireSession returns the current session or ErrNotSignedIn.
func RequireSession(ctx context.Context, sessions ports.SessionProvider) (*events.Session, error) {
	session, err := sessions.GetSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, pkgerrors.ErrNotSignedIn
	}
	return session, nil
}

var _ ports.SessionProvider = (*Provider)(nil)

// IsNotSignedIn reports whether err means no user is signed in.
func IsNotSignedIn(err error) bool {
	return errors.Is(err, pkgerrors.ErrNotSignedIn)
}
