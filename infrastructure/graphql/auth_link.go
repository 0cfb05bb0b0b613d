package graphql

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"blogify/domain/events"
)

// SessionSource yields the current session, or nil when signed out.
type SessionSource interface {
	GetSession(ctx context.Context) (*events.Session, error)
}

const (
	HeaderAuthorization = "Authorization"
	HeaderAPIKey        = "apikey"
	HeaderClientInfo    = "X-Client-Info"
)

// AuthLink stamps each operation with the caller's credentials. The session
// is looked up per operation so a refreshed token is always used. With no
// session the Authorization header is sent empty and the request still
// proceeds; a failing lookup fails the request.
func AuthLink(sessions SessionSource, apiKey, clientInfo string, logger *zap.Logger) Middleware {
	return func(next Link) Link {
		return LinkFunc(func(ctx context.Context, op *Operation) (*Response, error) {
			session, err := sessions.GetSession(ctx)
			if err != nil {
				return nil, fmt.Errorf("get session for %s: %w", op.Name, err)
			}

			if op.Headers == nil {
				op.Headers = make(map[string][]string)
			}

			authorization := ""
			if session != nil && session.AccessToken != "" {
				authorization = "Bearer " + session.AccessToken
			} else {
				logger.Debug("No access token for GraphQL request", zap.String("operation", op.Name))
			}

			op.Headers.Set(HeaderAuthorization, authorization)
			op.Headers.Set(HeaderAPIKey, apiKey)
			if clientInfo != "" {
				op.Headers.Set(HeaderClientInfo, clientInfo)
			}

			return next.Execute(ctx, op)
		})
	}
}
