package handlers

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"blogify/application/queries"
	"blogify/application/queries/bus"
	"blogify/domain/config"
	"blogify/infrastructure/cache"
	"blogify/infrastructure/graphql"
	pkgerrors "blogify/pkg/errors"
)

// scriptedLink answers each operation with the next payload and records
// the variables it was sent.
type scriptedLink struct {
	mu       sync.Mutex
	payloads []string
	sent     []map[string]any
}

func (l *scriptedLink) Execute(_ context.Context, op *graphql.Operation) (*graphql.Response, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sent = append(l.sent, op.Variables)
	payload := l.payloads[0]
	if len(l.payloads) > 1 {
		l.payloads = l.payloads[1:]
	}
	var resp graphql.Response
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (l *scriptedLink) calls() []map[string]any {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]map[string]any(nil), l.sent...)
}

func feedPage(hasNext bool, end string, ids ...string) string {
	edges := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		edges = append(edges, map[string]any{
			"__typename": "postsEdge",
			"cursor":     id,
			"node": map[string]any{
				"__typename": "posts", "id": id, "title": "Post " + id,
				"created_at": "2024-03-01T10:00:00+00:00",
			},
		})
	}
	b, _ := json.Marshal(map[string]any{"data": map[string]any{"postsCollection": map[string]any{
		"__typename": "postsConnection",
		"edges":      edges,
		"pageInfo":   map[string]any{"__typename": "PageInfo", "hasNextPage": hasNext, "endCursor": end},
	}}})
	return string(b)
}

func postIDs(r *queries.FeedResult) []string {
	ids := make([]string, 0, len(r.Posts))
	for _, p := range r.Posts {
		ids = append(ids, p.ID.String())
	}
	return ids
}

func newFeedHandler(link graphql.Link) (*FeedHandler, *graphql.Client) {
	cfg := config.DefaultDomainConfig()
	cfg.PostsPerPage = 2
	client := graphql.NewClient(link, cache.New(cache.DefaultOptions()...), zap.NewNop())
	return NewFeedHandler(client, cfg, zap.NewNop()), client
}

func TestFeedHandler_LoadMoreFollowsEndCursor(t *testing.T) {
	link := &scriptedLink{payloads: []string{
		feedPage(true, "b", "a", "b"),
		feedPage(false, "c", "c"),
	}}
	h, _ := newFeedHandler(link)
	ctx := context.Background()

	feed, err := h.Feed(ctx, queries.GetFeedQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, postIDs(feed))
	assert.True(t, feed.HasMore)
	assert.Equal(t, "b", feed.EndCursor)

	more, err := h.LoadMore(ctx, queries.LoadMoreFeedQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, postIDs(more))
	assert.False(t, more.HasMore)

	sent := link.calls()
	require.Len(t, sent, 2)
	assert.NotContains(t, sent[0], "after")
	assert.Equal(t, "b", sent[1]["after"])
	assert.EqualValues(t, 2, sent[1]["first"])

	// Nothing further: the feed comes back without another request.
	again, err := h.LoadMore(ctx, queries.LoadMoreFeedQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, postIDs(again))
	assert.Len(t, link.calls(), 2)
}

func TestFeedHandler_LoadMoreWithoutCachedFeed(t *testing.T) {
	link := &scriptedLink{payloads: []string{feedPage(true, "b", "a", "b")}}
	h, _ := newFeedHandler(link)

	feed, err := h.LoadMore(context.Background(), queries.LoadMoreFeedQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, postIDs(feed))
	assert.NotContains(t, link.calls()[0], "after")
}

func TestFeedHandler_CachedFeedRefreshesInBackground(t *testing.T) {
	link := &scriptedLink{payloads: []string{
		feedPage(false, "a", "a"),
		feedPage(false, "z", "z", "a"),
	}}
	h, client := newFeedHandler(link)
	ctx := context.Background()

	_, err := h.Feed(ctx, queries.GetFeedQuery{})
	require.NoError(t, err)

	feed, err := h.Feed(ctx, queries.GetFeedQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, postIDs(feed), "answered from cache")

	client.Wait()
	feed, err = h.Feed(ctx, queries.GetFeedQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a"}, postIDs(feed))
}

func newPostHandler(link graphql.Link) *PostHandler {
	results := cache.NewRevalidationCache()
	return NewPostHandler(graphql.NewServerClient(link, results, 0, zap.NewNop()), nil, zap.NewNop())
}

func TestPostHandler_Post(t *testing.T) {
	link := &scriptedLink{payloads: []string{`{"data":{"postsCollection":{"edges":[{"node":{
		"__typename":"posts","id":"p1","title":"Hello","body":"First post body",
		"author_id":"user-1","created_at":"2024-03-01T10:00:00+00:00",
		"accounts":{"__typename":"accounts","id":"user-1","name":"Ada"}}}]}}}`}}
	h := newPostHandler(link)
	ctx := context.Background()

	post, err := h.Post(ctx, queries.GetPostQuery{PostID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, "p1", post.ID.String())
	assert.False(t, post.ID.IsProvisional())
	assert.Equal(t, "Ada", post.Account.Name)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), post.CreatedAt.UTC())

	_, err = h.Post(ctx, queries.GetPostQuery{PostID: "p1"})
	require.NoError(t, err)
	assert.Len(t, link.calls(), 1, "second read is inside the revalidation window")
}

func TestPostHandler_PostNotFound(t *testing.T) {
	link := &scriptedLink{payloads: []string{`{"data":{"postsCollection":{"edges":[]}}}`}}
	_, err := newPostHandler(link).Post(context.Background(), queries.GetPostQuery{PostID: "missing"})
	assert.ErrorIs(t, err, pkgerrors.ErrPostNotFound)
}

func TestPostHandler_ListIDs(t *testing.T) {
	link := &scriptedLink{payloads: []string{
		`{"data":{"postsCollection":{"edges":[{"node":{"id":"p2"}},{"node":{"id":"p1"}}]}}}`,
	}}
	result, err := newPostHandler(link).ListIDs(context.Background(), queries.ListPostIDsQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p1"}, result.IDs)
}

func TestQueryBus_PostQueries(t *testing.T) {
	link := &scriptedLink{payloads: []string{`{"data":{"postsCollection":{"edges":[{"node":{"id":"p9"}}]}}}`}}
	b := bus.NewQueryBus(bus.LoggingMiddleware(zap.NewNop()))
	require.NoError(t, newPostHandler(link).Register(b))

	_, err := b.Ask(context.Background(), queries.GetPostQuery{})
	assert.ErrorIs(t, err, bus.ErrValidationFailed)

	out, err := b.Ask(context.Background(), queries.ListPostIDsQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"p9"}, out.(*queries.ListPostIDsResult).IDs)
}
