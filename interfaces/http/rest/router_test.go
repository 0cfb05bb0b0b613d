package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"blogify/application/commands"
	"blogify/application/commands/bus"
	"blogify/application/ports"
	"blogify/application/queries"
	querybus "blogify/application/queries/bus"
	"blogify/domain/events"
	"blogify/infrastructure/navigation"
	pkgerrors "blogify/pkg/errors"
	"blogify/pkg/observability"
	"blogify/pkg/ratelimit"
)

type fakeSessions struct {
	session *events.Session
}

func (f *fakeSessions) GetSession(context.Context) (*events.Session, error) { return f.session, nil }

func (f *fakeSessions) SignInWithPassword(_ context.Context, email, _ string) (*events.Session, error) {
	f.session = &events.Session{AccessToken: "tok", User: events.SessionUser{ID: "user-1", Email: email}}
	return f.session, nil
}

func (f *fakeSessions) SignOut(context.Context) error {
	f.session = nil
	return nil
}

func (f *fakeSessions) OnAuthStateChange(ports.AuthListener) ports.Subscription { return nil }

type testServer struct {
	*httptest.Server
	sessions *fakeSessions
	history  *navigation.History
	metrics  *observability.Collector
}

func newTestServer(t *testing.T, limit int) *testServer {
	t.Helper()
	sessions := &fakeSessions{}
	history := navigation.NewHistory("/", zap.NewNop())

	cmds := bus.NewCommandBus()
	require.NoError(t, cmds.Register(commands.CreatePostCommand{}, bus.CommandHandlerFunc(func(context.Context, bus.Command) (interface{}, error) {
		return commands.CreatePostResult{PostID: "p1", RedirectTo: "/posts/p1"}, nil
	})))
	require.NoError(t, cmds.Register(commands.SignInCommand{}, bus.CommandHandlerFunc(func(ctx context.Context, c bus.Command) (interface{}, error) {
		cmd := c.(commands.SignInCommand)
		return sessions.SignInWithPassword(ctx, cmd.Email, cmd.Password)
	})))
	require.NoError(t, cmds.Register(commands.SignOutCommand{}, bus.CommandHandlerFunc(func(ctx context.Context, _ bus.Command) (interface{}, error) {
		return nil, sessions.SignOut(ctx)
	})))

	qs := querybus.NewQueryBus()
	require.NoError(t, qs.Register(queries.ListPostIDsQuery{}, querybus.QueryHandlerFunc(func(context.Context, querybus.Query) (interface{}, error) {
		return &queries.ListPostIDsResult{IDs: []string{"p2", "p1"}}, nil
	})))
	require.NoError(t, qs.Register(queries.GetPostQuery{}, querybus.QueryHandlerFunc(func(context.Context, querybus.Query) (interface{}, error) {
		return nil, pkgerrors.ErrPostNotFound
	})))
	require.NoError(t, qs.Register(queries.GetFeedQuery{}, querybus.QueryHandlerFunc(func(context.Context, querybus.Query) (interface{}, error) {
		return &queries.FeedResult{HasMore: true, EndCursor: "c5"}, nil
	})))

	metrics := observability.NewCollector("test")
	router := NewRouter(Options{
		CommandBus: cmds,
		QueryBus:   qs,
		Sessions:   sessions,
		Navigator:  history,
		Limiter:    ratelimit.NewWindowLimiter(limit, time.Minute),
		Metrics:    metrics,
		Ready:      func(context.Context) error { return nil },
	}, zap.NewNop())

	srv := httptest.NewServer(router.Setup())
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, sessions: sessions, history: history, metrics: metrics}
}

func (s *testServer) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, s.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	s := newTestServer(t, 10)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", "").StatusCode)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/ready", "").StatusCode)

	resp := s.do(t, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	resp = s.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_CreatePostRequiresSession(t *testing.T) {
	s := newTestServer(t, 10)
	body := `{"title":"Hello","body":"A body long enough"}`

	resp := s.do(t, http.MethodPost, "/api/v1/posts", body)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var errResp pkgerrors.ErrorResponse
	decodeBody(t, resp, &errResp)
	assert.Equal(t, "NOT_SIGNED_IN", errResp.Code)

	resp = s.do(t, http.MethodPost, "/api/v1/session", `{"email":"ada@example.com","password":"secret123"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/api/v1/posts", body)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "/posts/p1", resp.Header.Get("Location"))

	resp = s.do(t, http.MethodGet, "/api/v1/session", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(t, http.MethodDelete, "/api/v1/session", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Nil(t, s.sessions.session)
}

func TestRouter_SignInValidation(t *testing.T) {
	s := newTestServer(t, 10)

	resp := s.do(t, http.MethodPost, "/api/v1/session", `{"email":"not-an-email","password":"x"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var errResp pkgerrors.ErrorResponse
	decodeBody(t, resp, &errResp)
	assert.Contains(t, errResp.Fields, "email")
	assert.Contains(t, errResp.Fields, "password")
}

func TestRouter_Location(t *testing.T) {
	s := newTestServer(t, 10)

	resp := s.do(t, http.MethodPut, "/api/v1/location", `{"path":"/home"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/home", s.history.Location())

	resp = s.do(t, http.MethodPut, "/api/v1/location", `{"path":"https://evil.example"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "/home", s.history.Location())

	var body struct {
		Data struct {
			Path string `json:"path"`
		} `json:"data"`
	}
	decodeBody(t, s.do(t, http.MethodGet, "/api/v1/location", ""), &body)
	assert.Equal(t, "/home", body.Data.Path)
}

func TestRouter_FeedPageMeta(t *testing.T) {
	s := newTestServer(t, 10)

	var body struct {
		Meta struct {
			Page struct {
				HasMore   bool   `json:"has_more"`
				EndCursor string `json:"end_cursor"`
			} `json:"page"`
		} `json:"meta"`
	}
	decodeBody(t, s.do(t, http.MethodGet, "/api/v1/feed", ""), &body)
	assert.True(t, body.Meta.Page.HasMore)
	assert.Equal(t, "c5", body.Meta.Page.EndCursor)
}

func TestRouter_PublicPostsRateLimited(t *testing.T) {
	s := newTestServer(t, 2)

	var ids struct {
		Data queries.ListPostIDsResult `json:"data"`
	}
	resp := s.do(t, http.MethodGet, "/api/v1/public/posts/ids", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2", resp.Header.Get("X-RateLimit-Limit"))
	decodeBody(t, resp, &ids)
	assert.Equal(t, []string{"p2", "p1"}, ids.Data.IDs)

	resp = s.do(t, http.MethodGet, "/api/v1/public/posts/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/v1/public/posts/ids", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	var errResp pkgerrors.ErrorResponse
	decodeBody(t, resp, &errResp)
	assert.Equal(t, string(pkgerrors.ErrorTypeRateLimit), errResp.Type)
}

func TestRouter_SetupPublicOmitsShell(t *testing.T) {
	router := NewRouter(Options{QueryBus: querybus.NewQueryBus()}, zap.NewNop())
	srv := httptest.NewServer(router.SetupPublic())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/posts", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
