package graphql

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sony/gobreaker"

	pkgerrors "blogify/pkg/errors"
)

// ErrNoData is returned when a response has neither errors nor data.
var ErrNoData = errors.New("No data returned from GraphQL query")

// TransportError is a failure to get a usable HTTP response: the request
// could not be sent, or the server answered with a non-2xx status.
type TransportError struct {
	StatusCode int
	Status     string
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("GraphQL request failed: %v", e.Err)
	}
	return fmt.Sprintf("GraphQL request failed: %s", e.Status)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// GraphQLErrors is a response whose errors list was non-empty.
type GraphQLErrors struct {
	Errors []GraphQLError
}

func (e *GraphQLErrors) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ge := range e.Errors {
		msgs[i] = ge.Message
	}
	return "GraphQL errors: " + strings.Join(msgs, ", ")
}

// statusText renders a status line the way servers report it, falling
// back to the code when the reason phrase is unknown.
func statusText(code int) string {
	if text := http.StatusText(code); text != "" {
		return text
	}
	return fmt.Sprintf("%d", code)
}

// ToAppError classifies a transport failure for the HTTP layer. Errors
// that are not transport errors are returned as they are.
func ToAppError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return pkgerrors.NewUnavailableError("graphql").WithCause(err).WithCode("GRAPHQL_CIRCUIT_OPEN")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.NewTimeoutError("graphql request").WithCause(err).WithCode("GRAPHQL_TIMEOUT")
	}

	var te *TransportError
	if errors.As(err, &te) {
		return pkgerrors.NewNetworkError(te.Error(), err).WithCode("GRAPHQL_TRANSPORT")
	}

	var ge *GraphQLErrors
	if errors.As(err, &ge) {
		return pkgerrors.NewGraphQLError(ge.Error(), err).WithCode("GRAPHQL_ERRORS")
	}

	if errors.Is(err, ErrNoData) {
		return pkgerrors.NewGraphQLError(ErrNoData.Error(), err).WithCode("GRAPHQL_NO_DATA")
	}

	return err
}
