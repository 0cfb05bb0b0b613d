// Package graphql is the transport to the Supabase GraphQL endpoint: a
// chain of links for the signed-in client, a session-less server client
// with revalidation windows, and a cache-aware Client.
package graphql

import (
	"context"
	"encoding/json"
	"net/http"
)

// Operation is one GraphQL request travelling down the link chain. Links
// may add headers before forwarding it.
type Operation struct {
	Name      string
	Query     string
	Variables map[string]any
	Headers   http.Header
}

// NewOperation creates an operation with an empty header set.
func NewOperation(name, query string, vars map[string]any) *Operation {
	return &Operation{Name: name, Query: query, Variables: vars, Headers: make(http.Header)}
}

// Location points into the query text.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// GraphQLError is one entry of a response's errors list.
type GraphQLError struct {
	Message    string         `json:"message"`
	Locations  []Location     `json:"locations,omitempty"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Response is a decoded GraphQL response envelope.
type Response struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors,omitempty"`
}

// HasData reports whether the envelope carries a non-null data member.
func (r *Response) HasData() bool {
	return r != nil && len(r.Data) > 0 && string(r.Data) != "null"
}

// Link executes an operation, usually by forwarding to the next link.
type Link interface {
	Execute(ctx context.Context, op *Operation) (*Response, error)
}

// LinkFunc is an adapter to allow functions to be used as links
type LinkFunc func(ctx context.Context, op *Operation) (*Response, error)

// Execute implements Link
func (f LinkFunc) Execute(ctx context.Context, op *Operation) (*Response, error) {
	return f(ctx, op)
}

// Middleware wraps a link with additional behavior.
type Middleware func(next Link) Link

// Chain composes middlewares around a terminating link. The first
// middleware is the outermost and sees every operation first.
func Chain(terminal Link, middlewares ...Middleware) Link {
	link := terminal
	for i := len(middlewares) - 1; i >= 0; i-- {
		link = middlewares[i](link)
	}
	return link
}
