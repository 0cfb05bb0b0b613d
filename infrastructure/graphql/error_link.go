package graphql

import (
	"context"

	"go.uber.org/zap"
)

// ErrorMetrics counts errors observed by the error link.
type ErrorMetrics interface {
	RecordGraphQLErrors(operation string, n int)
}

// ErrorLink logs every GraphQL error and transport failure passing through
// it. Results and errors are forwarded unchanged.
func ErrorLink(logger *zap.Logger, metrics ErrorMetrics) Middleware {
	return func(next Link) Link {
		return LinkFunc(func(ctx context.Context, op *Operation) (*Response, error) {
			resp, err := next.Execute(ctx, op)
			if err != nil {
				logger.Error("[Network error]",
					zap.String("operation", op.Name),
					zap.Error(err),
				)
				return resp, err
			}

			if resp != nil && len(resp.Errors) > 0 {
				for _, ge := range resp.Errors {
					logger.Error("[GraphQL error]",
						zap.String("message", ge.Message),
						zap.Any("locations", ge.Locations),
						zap.Any("path", ge.Path),
						zap.String("operation", op.Name),
						zap.Any("extensions", ge.Extensions),
					)
				}
				if metrics != nil {
					metrics.RecordGraphQLErrors(op.Name, len(resp.Errors))
				}
			}

			return resp, nil
		})
	}
}
