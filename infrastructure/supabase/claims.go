package supabase

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenClaims is what the client reads out of a GoTrue access token. The
// signature is not checked here; the backend verifies it on every request.
type tokenClaims struct {
	Subject   string
	Email     string
	Name      string
	ExpiresAt time.Time
}

func parseAccessToken(token string) (*tokenClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}

	out := &tokenClaims{}
	out.Subject, _ = claims.GetSubject()
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time.UTC()
	}
	if email, ok := claims["email"].(string); ok {
		out.Email = email
	}
	if meta, ok := claims["user_metadata"].(map[string]interface{}); ok {
		if name, ok := meta["name"].(string); ok {
			out.Name = name
		} else if name, ok := meta["full_name"].(string); ok {
			out.Name = name
		}
	}
	return out, nil
}
