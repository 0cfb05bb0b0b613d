package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"blogify/application/commands"
	"blogify/application/commands/bus"
	"blogify/application/ports"
	"blogify/domain/config"
	"blogify/domain/core/entities"
	"blogify/domain/events"
	"blogify/infrastructure/cache"
	"blogify/infrastructure/graphql"
	"blogify/infrastructure/navigation"
	pkgerrors "blogify/pkg/errors"
	"blogify/pkg/extensions"
)

type staticSessions struct {
	session *events.Session
}

func (s *staticSessions) GetSession(context.Context) (*events.Session, error) { return s.session, nil }

func (s *staticSessions) SignInWithPassword(context.Context, string, string) (*events.Session, error) {
	return nil, errors.New("not supported")
}

func (s *staticSessions) SignOut(context.Context) error { return nil }

func (s *staticSessions) OnAuthStateChange(ports.AuthListener) ports.Subscription { return noSub{} }

type noSub struct{}

func (noSub) Unsubscribe() {}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e events.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) PublishBatch(ctx context.Context, es []events.DomainEvent) error {
	for _, e := range es {
		_ = p.Publish(ctx, e)
	}
	return nil
}

type outcomeCounter struct {
	mu       sync.Mutex
	outcomes []string
}

func (c *outcomeCounter) RecordMutation(outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, outcome)
}

var author = &events.Session{
	AccessToken: "tok",
	User:        events.SessionUser{ID: "user-1", Email: "ada@example.com"},
}

func seedPost(id string) map[string]any {
	return map[string]any{
		"__typename": "posts",
		"id":         id,
		"title":      "Post " + id,
		"body":       "Body of post " + id,
		"author_id":  "user-2",
		"created_at": "2024-01-01T00:00:00Z",
		"updated_at": "2024-01-01T00:00:00Z",
	}
}

func feedData(ids ...string) map[string]any {
	edges := make([]any, 0, len(ids))
	for _, id := range ids {
		edges = append(edges, map[string]any{"__typename": "postsEdge", "cursor": id, "node": seedPost(id)})
	}
	return map[string]any{"postsCollection": map[string]any{
		"__typename": "postsConnection",
		"edges":      edges,
		"pageInfo":   map[string]any{"__typename": "PageInfo", "hasNextPage": true, "hasPreviousPage": false, "startCursor": nil, "endCursor": "b"},
	}}
}

func createdResponse(id string) *graphql.Response {
	post := seedPost(id)
	post["author_id"] = "user-1"
	post["title"] = "Hello world"
	b, _ := json.Marshal(map[string]any{"insertIntopostsCollection": map[string]any{
		"__typename": "postsInsertResponse",
		"records":    []any{post},
	}})
	return &graphql.Response{Data: b}
}

func feedResponse(ids ...string) *graphql.Response {
	b, _ := json.Marshal(feedData(ids...))
	return &graphql.Response{Data: b}
}

type fixture struct {
	client    *graphql.Client
	history   *navigation.History
	publisher *recordingPublisher
	metrics   *outcomeCounter
	hooks     *extensions.HookManager
	orch      *CreatePostOrchestrator
}

func newFixture(t *testing.T, link graphql.Link, session *events.Session, mutate func(*config.DomainConfig)) *fixture {
	t.Helper()
	cfg := config.DefaultDomainConfig()
	cfg.RefetchAfterCreate = false
	if mutate != nil {
		mutate(cfg)
	}

	f := &fixture{
		client:    graphql.NewClient(link, cache.New(cache.DefaultOptions()...), zap.NewNop()),
		history:   navigation.NewHistory("/home/posts/new", zap.NewNop()),
		publisher: &recordingPublisher{},
		metrics:   &outcomeCounter{},
		hooks:     extensions.NewHookManager(),
	}
	f.orch = NewCreatePostOrchestrator(f.client, &staticSessions{session: session}, f.history,
		f.publisher, cfg, f.hooks, f.metrics, zap.NewNop())
	return f
}

func (f *fixture) seedFeed(t *testing.T, ids ...string) {
	t.Helper()
	require.NoError(t, f.client.Cache().WriteQuery(graphql.GetPostsDocument, graphql.FeedVariables(5, ""), feedData(ids...)))
}

func (f *fixture) feed(t *testing.T) *entities.PostsConnection {
	t.Helper()
	data, err := f.client.Cache().ReadQuery(graphql.GetPostsDocument, graphql.FeedVariables(5, ""))
	require.NoError(t, err)
	conn, err := entities.ConnectionFromMap(data["postsCollection"])
	require.NoError(t, err)
	return conn
}

func edgeIDs(conn *entities.PostsConnection) []string {
	ids := make([]string, 0, len(conn.Edges))
	for _, e := range conn.Edges {
		ids = append(ids, e.Node.ID.String())
	}
	return ids
}

func hasProvisional(conn *entities.PostsConnection) bool {
	for _, e := range conn.Edges {
		if e.Node.ID.IsProvisional() {
			return true
		}
	}
	return false
}

var validCommand = commands.CreatePostCommand{Title: "  Hello world  ", Body: "A body that is long enough."}

func TestCreatePost_PlaceholderFirstThenConfirmed(t *testing.T) {
	started := make(chan *graphql.Operation, 1)
	release := make(chan struct{})
	link := graphql.LinkFunc(func(_ context.Context, op *graphql.Operation) (*graphql.Response, error) {
		started <- op
		<-release
		return createdResponse("p-new"), nil
	})

	f := newFixture(t, link, author, nil)
	f.seedFeed(t, "a", "b")

	type result struct {
		post *entities.Post
		err  error
	}
	done := make(chan result, 1)
	go func() {
		post, err := f.orch.Handle(context.Background(), validCommand)
		done <- result{post, err}
	}()

	var op *graphql.Operation
	select {
	case op = <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("mutation was never sent")
	}
	assert.Equal(t, "CreatePost", op.Name)
	assert.Equal(t, "Hello world", op.Variables["title"])
	assert.Equal(t, "user-1", op.Variables["author_id"])

	// In flight: the placeholder heads the first page.
	inFlight := f.feed(t)
	require.Len(t, inFlight.Edges, 3)
	head := inFlight.Edges[0].Node
	assert.True(t, head.ID.IsProvisional())
	assert.Equal(t, "Hello world", head.Title)
	assert.Equal(t, "ada", head.Account.Name)
	assert.Equal(t, head.ID.String(), inFlight.Edges[0].Cursor)
	assert.Equal(t, []string{"a", "b"}, edgeIDs(inFlight)[1:])
	require.NotNil(t, inFlight.PageInfo)
	assert.Equal(t, "b", *inFlight.PageInfo.EndCursor)
	assert.Len(t, f.client.Cache().OptimisticLayers(), 1)

	close(release)
	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, "p-new", res.post.ID.String())
	assert.False(t, res.post.ID.IsProvisional())

	settled := f.feed(t)
	assert.Equal(t, []string{"p-new", "a", "b"}, edgeIDs(settled))
	assert.Equal(t, "p-new", settled.Edges[0].Cursor)
	assert.False(t, hasProvisional(settled))
	assert.Empty(t, f.client.Cache().OptimisticLayers())

	assert.Equal(t, "/posts/p-new", f.history.Location())
	assert.Equal(t, []string{"confirmed"}, f.metrics.outcomes)
	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, events.EventTypePostCreated, f.publisher.events[0].GetEventType())
	assert.Equal(t, "p-new", f.publisher.events[0].GetAggregateID())
}

func TestCreatePost_FailureRemovesPlaceholder(t *testing.T) {
	tests := []struct {
		name    string
		respond func() (*graphql.Response, error)
		check   func(t *testing.T, err error)
	}{
		{
			name: "graphql errors",
			respond: func() (*graphql.Response, error) {
				return &graphql.Response{Errors: []graphql.GraphQLError{{Message: "new row violates row-level security policy"}}}, nil
			},
			check: func(t *testing.T, err error) {
				var ge *graphql.GraphQLErrors
				assert.True(t, errors.As(err, &ge))
			},
		},
		{
			name: "transport error",
			respond: func() (*graphql.Response, error) {
				return nil, &graphql.TransportError{StatusCode: 503, Status: "Service Unavailable"}
			},
			check: func(t *testing.T, err error) {
				assert.Equal(t, "GraphQL request failed: Service Unavailable", err.Error())
			},
		},
		{
			name: "empty records",
			respond: func() (*graphql.Response, error) {
				return &graphql.Response{Data: json.RawMessage(`{"insertIntopostsCollection":{"records":[]}}`)}, nil
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, graphql.ErrNoData)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sawPlaceholder atomic.Bool
			var f *fixture
			link := graphql.LinkFunc(func(context.Context, *graphql.Operation) (*graphql.Response, error) {
				sawPlaceholder.Store(hasProvisional(f.feed(t)))
				return tt.respond()
			})
			f = newFixture(t, link, author, nil)
			f.seedFeed(t, "a", "b")

			var failedHook extensions.HookData
			f.hooks.Register(extensions.HookMutationFailed, func(_ context.Context, data interface{}) error {
				failedHook = data.(extensions.HookData)
				return nil
			})

			post, err := f.orch.Handle(context.Background(), validCommand)
			require.Error(t, err)
			assert.Nil(t, post)
			tt.check(t, err)

			assert.True(t, sawPlaceholder.Load(), "placeholder was visible while the request was in flight")
			settled := f.feed(t)
			assert.Equal(t, []string{"a", "b"}, edgeIDs(settled))
			assert.False(t, hasProvisional(settled))
			assert.Empty(t, f.client.Cache().OptimisticLayers())

			assert.Equal(t, "/home/posts/new", f.history.Location(), "no navigation on failure")
			assert.Equal(t, []string{"failed"}, f.metrics.outcomes)
			assert.Empty(t, f.publisher.events)
			assert.NotEmpty(t, failedHook.Metadata["error"])
		})
	}
}

func TestCreatePost_RejectsBeforeSending(t *testing.T) {
	var sent atomic.Int32
	link := graphql.LinkFunc(func(context.Context, *graphql.Operation) (*graphql.Response, error) {
		sent.Add(1)
		return createdResponse("x"), nil
	})

	f := newFixture(t, link, nil, nil)
	_, err := f.orch.Handle(context.Background(), validCommand)
	assert.ErrorIs(t, err, pkgerrors.ErrNotSignedIn)

	f = newFixture(t, link, author, nil)
	_, err = f.orch.Handle(context.Background(), commands.CreatePostCommand{Title: "Hi", Body: "short"})
	var verrs *pkgerrors.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs.ToMap()["title"], 1)
	assert.Len(t, verrs.ToMap()["body"], 1)

	assert.Equal(t, int32(0), sent.Load())
}

func TestCreatePost_NoCachedFeed(t *testing.T) {
	link := graphql.LinkFunc(func(context.Context, *graphql.Operation) (*graphql.Response, error) {
		return createdResponse("p-new"), nil
	})
	f := newFixture(t, link, author, nil)

	post, err := f.orch.Handle(context.Background(), validCommand)
	require.NoError(t, err)
	assert.Equal(t, "p-new", post.ID.String())

	_, err = f.client.Cache().ReadQuery(graphql.GetPostsDocument, graphql.FeedVariables(5, ""))
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
	assert.Equal(t, "/posts/p-new", f.history.Location())
}

func TestCreatePost_MissingIDNavigatesHome(t *testing.T) {
	link := graphql.LinkFunc(func(context.Context, *graphql.Operation) (*graphql.Response, error) {
		return &graphql.Response{Data: json.RawMessage(`{"insertIntopostsCollection":{"records":[{"title":"Hello world"}]}}`)}, nil
	})
	f := newFixture(t, link, author, nil)

	_, err := f.orch.Handle(context.Background(), validCommand)
	require.NoError(t, err)
	assert.Equal(t, "/", f.history.Location())
	assert.Empty(t, f.publisher.events)
}

func TestCreatePost_RefetchesFirstPage(t *testing.T) {
	var calls atomic.Int32
	link := graphql.LinkFunc(func(_ context.Context, op *graphql.Operation) (*graphql.Response, error) {
		calls.Add(1)
		if op.Name == "GetPosts" {
			return feedResponse("p-new", "z", "a"), nil
		}
		return createdResponse("p-new"), nil
	})
	f := newFixture(t, link, author, func(c *config.DomainConfig) { c.RefetchAfterCreate = true })
	f.seedFeed(t, "a", "b")

	_, err := f.orch.Handle(context.Background(), validCommand)
	require.NoError(t, err)
	f.client.Wait()

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []string{"p-new", "z", "a"}, edgeIDs(f.feed(t)))
}

func TestCreatePost_ThroughCommandBus(t *testing.T) {
	link := graphql.LinkFunc(func(context.Context, *graphql.Operation) (*graphql.Response, error) {
		return createdResponse("p-new"), nil
	})
	f := newFixture(t, link, author, nil)

	b := bus.NewCommandBus()
	require.NoError(t, b.Register(commands.CreatePostCommand{}, f.orch.AsCommandHandler()))

	out, err := b.Send(context.Background(), validCommand)
	require.NoError(t, err)
	assert.Equal(t, commands.CreatePostResult{PostID: "p-new", RedirectTo: "/posts/p-new"}, out)

	_, err = b.Send(context.Background(), commands.CreatePostCommand{})
	assert.ErrorIs(t, err, bus.ErrValidationFailed)
	assert.Contains(t, fmt.Sprint(err), "title")
}

func TestCreatePost_OverlappingCreatesSettleClean(t *testing.T) {
	type reply struct {
		resp *graphql.Response
		err  error
	}
	started := map[string]chan struct{}{"First post": make(chan struct{}), "Second post": make(chan struct{})}
	replies := map[string]chan reply{"First post": make(chan reply), "Second post": make(chan reply)}
	link := graphql.LinkFunc(func(_ context.Context, op *graphql.Operation) (*graphql.Response, error) {
		title := op.Variables["title"].(string)
		close(started[title])
		r := <-replies[title]
		return r.resp, r.err
	})

	f := newFixture(t, link, author, nil)
	f.seedFeed(t, "a", "b")

	run := func(title string) <-chan error {
		done := make(chan error, 1)
		go func() {
			_, err := f.orch.Handle(context.Background(), commands.CreatePostCommand{Title: title, Body: validCommand.Body})
			done <- err
		}()
		return done
	}
	wait := func(ch <-chan struct{}) {
		select {
		case <-ch:
		case <-time.After(5 * time.Second):
			t.Fatal("mutation was never sent")
		}
	}

	doneA := run("First post")
	wait(started["First post"])
	doneB := run("Second post")
	wait(started["Second post"])

	inFlight := f.feed(t)
	require.Len(t, inFlight.Edges, 4)
	assert.True(t, inFlight.Edges[0].Node.ID.IsProvisional())
	assert.True(t, inFlight.Edges[1].Node.ID.IsProvisional())
	assert.Len(t, f.client.Cache().OptimisticLayers(), 2)

	replies["First post"] <- reply{resp: createdResponse("p-a")}
	require.NoError(t, <-doneA)

	// B is still pending: its placeholder stays on top of the confirmed post.
	midway := f.feed(t)
	require.Len(t, midway.Edges, 4)
	assert.True(t, midway.Edges[0].Node.ID.IsProvisional())
	assert.Equal(t, []string{"p-a", "a", "b"}, edgeIDs(midway)[1:])
	assert.Len(t, f.client.Cache().OptimisticLayers(), 1)

	replies["Second post"] <- reply{err: &graphql.TransportError{StatusCode: 503, Status: "Service Unavailable"}}
	require.Error(t, <-doneB)

	settled := f.feed(t)
	assert.Equal(t, []string{"p-a", "a", "b"}, edgeIDs(settled))
	assert.False(t, hasProvisional(settled))
	assert.Empty(t, f.client.Cache().OptimisticLayers())
	for key := range f.client.Cache().Snapshot() {
		assert.NotContains(t, key, "temp-")
	}
	assert.Equal(t, []string{"confirmed", "failed"}, f.metrics.outcomes)
}
