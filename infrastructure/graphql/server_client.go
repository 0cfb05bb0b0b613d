package graphql

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"blogify/infrastructure/cache"
)

// DefaultRevalidate is the window, in seconds, for server query results
// when the caller does not choose one.
const DefaultRevalidate = 600

// StaticKeyLink authenticates every operation with the project API key,
// for code paths that run without a user session.
func StaticKeyLink(apiKey string) Middleware {
	return func(next Link) Link {
		return LinkFunc(func(ctx context.Context, op *Operation) (*Response, error) {
			if op.Headers == nil {
				op.Headers = make(map[string][]string)
			}
			op.Headers.Set(HeaderAPIKey, apiKey)
			op.Headers.Set(HeaderAuthorization, "Bearer "+apiKey)
			return next.Execute(ctx, op)
		})
	}
}

type execOptions struct {
	revalidate int
}

// ExecOption tunes a single ServerClient.Execute call.
type ExecOption func(*execOptions)

// WithRevalidate keeps the result for seconds; zero disables caching.
func WithRevalidate(seconds int) ExecOption {
	return func(o *execOptions) { o.revalidate = seconds }
}

// WithoutExpiry keeps the result until the process restarts.
func WithoutExpiry() ExecOption {
	return func(o *execOptions) { o.revalidate = -1 }
}

// ServerClient executes queries outside any user session, caching results
// for a revalidation window.
type ServerClient struct {
	link              Link
	results           *cache.RevalidationCache
	defaultRevalidate int
	logger            *zap.Logger
}

// NewServerClient creates a client over link. results may be nil to
// disable caching.
func NewServerClient(link Link, results *cache.RevalidationCache, defaultRevalidate int, logger *zap.Logger) *ServerClient {
	if defaultRevalidate == 0 {
		defaultRevalidate = DefaultRevalidate
	}
	return &ServerClient{
		link:              link,
		results:           results,
		defaultRevalidate: defaultRevalidate,
		logger:            logger,
	}
}

// Execute runs query and decodes its data into out. It fails with a
// *TransportError on a non-2xx status, *GraphQLErrors when the response
// lists errors, and ErrNoData when data is missing.
func (c *ServerClient) Execute(ctx context.Context, query string, vars map[string]any, out any, opts ...ExecOption) error {
	o := execOptions{revalidate: c.defaultRevalidate}
	for _, opt := range opts {
		opt(&o)
	}

	key, err := resultKey(query, vars)
	if err != nil {
		return err
	}

	if c.results != nil && o.revalidate != 0 {
		if cached, ok := c.results.Get(ctx, key); ok {
			c.logger.Debug("Serving revalidated GraphQL result", zap.String("operation", OperationName(query)))
			return decodeData(cached.(json.RawMessage), out)
		}
	}

	op := NewOperation(OperationName(query), query, vars)
	resp, err := c.link.Execute(ctx, op)
	if err != nil {
		return err
	}
	if len(resp.Errors) > 0 {
		return &GraphQLErrors{Errors: resp.Errors}
	}
	if !resp.HasData() {
		return ErrNoData
	}

	if c.results != nil {
		if err := c.results.Set(ctx, key, resp.Data, o.revalidate); err != nil {
			c.logger.Debug("GraphQL result not cached",
				zap.String("operation", op.Name),
				zap.Error(err),
			)
		}
	}
	return decodeData(resp.Data, out)
}

func decodeData(data json.RawMessage, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode GraphQL data: %w", err)
	}
	return nil
}

func resultKey(query string, vars map[string]any) (string, error) {
	b, err := json.Marshal(vars)
	if err != nil {
		return "", fmt.Errorf("encode variables: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(query))
	h.Write([]byte{0})
	h.Write(b)
	return hex.EncodeToString(h.Sum(nil)), nil
}

var operationNamePattern = regexp.MustCompile(`(?m)^\s*(?:query|mutation|subscription)\s+([_A-Za-z][_0-9A-Za-z]*)`)

// OperationName extracts the name of the first named operation in query.
func OperationName(query string) string {
	if m := operationNamePattern.FindStringSubmatch(query); m != nil {
		return m[1]
	}
	return ""
}
