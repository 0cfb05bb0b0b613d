package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"blogify/pkg/observability"
)

const maxResponseBytes = 10 << 20

// TransportMetrics observes upstream round trips.
type TransportMetrics interface {
	RecordGraphQL(operation, outcome string, d time.Duration)
	SetBreakerState(name string, state int)
}

// BreakerConfig holds configuration for the upstream circuit breaker
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns a default configuration for the circuit breaker
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// HTTPLink is the terminating link: it POSTs the operation as JSON to the
// GraphQL endpoint and decodes the response envelope.
type HTTPLink struct {
	endpoint string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
	tracer   *observability.Tracer
	metrics  TransportMetrics
	logger   *zap.Logger
}

// HTTPLinkOption configures an HTTPLink.
type HTTPLinkOption func(*HTTPLink)

// WithHTTPClient sets the client used to send requests.
func WithHTTPClient(c *http.Client) HTTPLinkOption {
	return func(l *HTTPLink) { l.client = c }
}

// WithTracer traces each round trip as an X-Ray subsegment.
func WithTracer(t *observability.Tracer) HTTPLinkOption {
	return func(l *HTTPLink) { l.tracer = t }
}

// WithTransportMetrics records round trips and breaker transitions.
func WithTransportMetrics(m TransportMetrics) HTTPLinkOption {
	return func(l *HTTPLink) { l.metrics = m }
}

// WithLogger sets the link's logger.
func WithLogger(logger *zap.Logger) HTTPLinkOption {
	return func(l *HTTPLink) { l.logger = logger }
}

// WithBreaker guards the endpoint with a circuit breaker. Only network
// failures and 5xx responses count against it.
func WithBreaker(cfg BreakerConfig) HTTPLinkOption {
	return func(l *HTTPLink) {
		l.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        cfg.Name,
			MaxRequests: cfg.MaxRequests,
			Interval:    cfg.Interval,
			Timeout:     cfg.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				if counts.Requests < cfg.MinRequests {
					return false
				}
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return failureRatio >= cfg.FailureThreshold
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				l.logger.Warn("Circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
				if l.metrics != nil {
					l.metrics.SetBreakerState(name, int(to))
				}
			},
			IsSuccessful: func(err error) bool {
				var te *TransportError
				if errors.As(err, &te) && te.StatusCode >= 400 && te.StatusCode < 500 {
					return true
				}
				return err == nil
			},
		})
	}
}

// NewHTTPLink creates the terminating link for endpoint.
func NewHTTPLink(endpoint string, opts ...HTTPLinkOption) *HTTPLink {
	l := &HTTPLink{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type requestBody struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

// Execute implements Link
func (l *HTTPLink) Execute(ctx context.Context, op *Operation) (*Response, error) {
	start := time.Now()

	var resp *Response
	err := l.tracer.TraceFunction(ctx, "graphql."+op.Name, func(ctx context.Context) error {
		l.tracer.AddAnnotation(ctx, "graphql_operation", op.Name)

		if l.breaker == nil {
			var err error
			resp, err = l.roundTrip(ctx, op)
			return err
		}

		out, err := l.breaker.Execute(func() (interface{}, error) {
			return l.roundTrip(ctx, op)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return &TransportError{Err: fmt.Errorf("circuit %s: %w", l.breaker.Name(), err)}
		}
		if r, ok := out.(*Response); ok {
			resp = r
		}
		return err
	})

	if l.metrics != nil {
		l.metrics.RecordGraphQL(op.Name, outcome(resp, err), time.Since(start))
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (l *HTTPLink) roundTrip(ctx context.Context, op *Operation) (*Response, error) {
	payload, err := json.Marshal(requestBody{
		Query:         op.Query,
		Variables:     op.Variables,
		OperationName: op.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", op.Name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	for k, vs := range op.Headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	httpResp, err := l.client.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{StatusCode: httpResp.StatusCode, Status: statusText(httpResp.StatusCode), Err: err}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &TransportError{
			StatusCode: httpResp.StatusCode,
			Status:     statusText(httpResp.StatusCode),
			Body:       truncate(string(body), 512),
		}
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &TransportError{
			StatusCode: httpResp.StatusCode,
			Status:     statusText(httpResp.StatusCode),
			Err:        fmt.Errorf("decode response: %w", err),
		}
	}
	return &out, nil
}

func outcome(resp *Response, err error) string {
	switch {
	case err != nil:
		return "transport_error"
	case resp != nil && len(resp.Errors) > 0:
		return "graphql_error"
	default:
		return "ok"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
