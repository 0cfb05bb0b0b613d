// Package supabase adapts Supabase GoTrue to the session provider the
// shell depends on.
package supabase

import (
	"fmt"
	"time"

	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
	supa "github.com/supabase-community/supabase-go"
)

// Grant is a token pair issued by the auth server.
type Grant struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time
	UserID       string
	Email        string
}

// AuthAPI is the slice of GoTrue the provider calls.
type AuthAPI interface {
	SignInWithPassword(email, password string) (*Grant, error)
	Refresh(refreshToken string) (*Grant, error)
	Logout(accessToken string) error
}

type goTrueAPI struct {
	client gotrue.Client
}

// NewGoTrueAPI connects to the project at url with its anon key.
func NewGoTrueAPI(url, anonKey string) (AuthAPI, error) {
	client, err := supa.NewClient(url, anonKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return &goTrueAPI{client: client.Auth}, nil
}

func (a *goTrueAPI) SignInWithPassword(email, password string) (*Grant, error) {
	resp, err := a.client.SignInWithEmailPassword(email, password)
	if err != nil {
		return nil, err
	}
	return grantFromSession(resp.Session), nil
}

func (a *goTrueAPI) Refresh(refreshToken string) (*Grant, error) {
	resp, err := a.client.RefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}
	return grantFromSession(resp.Session), nil
}

func (a *goTrueAPI) Logout(accessToken string) error {
	return a.client.WithToken(accessToken).Logout()
}

func grantFromSession(s types.Session) *Grant {
	g := &Grant{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
		UserID:       s.User.ID.String(),
		Email:        s.User.Email,
	}
	if s.ExpiresAt > 0 {
		g.ExpiresAt = time.Unix(s.ExpiresAt, 0).UTC()
	}
	return g
}
