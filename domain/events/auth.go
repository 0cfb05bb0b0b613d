package events

import "time"

// AuthChangeEvent names a session transition reported by the auth provider.
type AuthChangeEvent string

const (
	AuthInitialSession   AuthChangeEvent = "INITIAL_SESSION"
	AuthSignedIn         AuthChangeEvent = "SIGNED_IN"
	AuthSignedOut        AuthChangeEvent = "SIGNED_OUT"
	AuthTokenRefreshed   AuthChangeEvent = "TOKEN_REFRESHED"
	AuthUserUpdated      AuthChangeEvent = "USER_UPDATED"
	AuthPasswordRecovery AuthChangeEvent = "PASSWORD_RECOVERY"
)

// SessionUser is the subset of the authenticated user the client relies on.
type SessionUser struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Session is the credential held for the signed-in user.
type Session struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token,omitempty"`
	TokenType    string      `json:"token_type,omitempty"`
	ExpiresAt    time.Time   `json:"expires_at"`
	User         SessionUser `json:"user"`
}

// ExpiresWithin reports whether the session lapses within d of now. A zero
// expiry never lapses.
func (s *Session) ExpiresWithin(now time.Time, d time.Duration) bool {
	if s == nil || s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(d).Before(s.ExpiresAt)
}

// AuthStateChange is delivered to auth listeners. Session is nil when the
// user is signed out.
type AuthStateChange struct {
	Event      AuthChangeEvent
	Session    *Session
	OccurredAt time.Time
}
