package handlers

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"blogify/application/queries"
	"blogify/application/queries/bus"
	"blogify/domain/config"
	"blogify/domain/core/entities"
	"blogify/infrastructure/cache"
	"blogify/infrastructure/graphql"
)

// FeedHandler serves the paginated feed from the normalized cache.
type FeedHandler struct {
	client *graphql.Client
	cfg    *config.DomainConfig
	logger *zap.Logger
}

// NewFeedHandler creates a new feed handler
func NewFeedHandler(client *graphql.Client, cfg *config.DomainConfig, logger *zap.Logger) *FeedHandler {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &FeedHandler{client: client, cfg: cfg, logger: logger}
}

// Feed answers GetFeedQuery. The cached feed is returned at once and
// refreshed in the background; with nothing cached it waits for the
// network.
func (h *FeedHandler) Feed(ctx context.Context, q queries.GetFeedQuery) (*queries.FeedResult, error) {
	policy := graphql.CacheAndNetwork
	if q.Fresh {
		policy = graphql.NetworkOnly
	}

	data, err := h.client.Query(ctx, graphql.GetPostsDocument, graphql.FeedVariables(h.cfg.PostsPerPage, ""), policy)
	if err != nil {
		return nil, err
	}
	return feedResult(data)
}

// LoadMore answers LoadMoreFeedQuery. It asks for the page after the
// cached end cursor only when the server reported more pages; otherwise it
// returns the feed as it is.
func (h *FeedHandler) LoadMore(ctx context.Context, _ queries.LoadMoreFeedQuery) (*queries.FeedResult, error) {
	first := graphql.FeedVariables(h.cfg.PostsPerPage, "")

	data, err := h.client.Query(ctx, graphql.GetPostsDocument, first, graphql.CacheOnly)
	if errors.Is(err, cache.ErrCacheMiss) {
		return h.Feed(ctx, queries.GetFeedQuery{Fresh: true})
	}
	if err != nil {
		return nil, err
	}

	conn, err := entities.ConnectionFromMap(data[graphql.GetPostsDocument.RootField])
	if err != nil {
		return nil, err
	}
	cursor, ok := conn.NextCursor()
	if !ok {
		h.logger.Debug("Feed has no further pages")
		return resultFromConnection(conn), nil
	}

	data, err = h.client.Query(ctx, graphql.GetPostsDocument,
		graphql.FeedVariables(h.cfg.PostsPerPage, cursor), graphql.NetworkOnly)
	if err != nil {
		return nil, err
	}
	return feedResult(data)
}

// Register wires both feed queries into b.
func (h *FeedHandler) Register(b *bus.QueryBus) error {
	if err := b.Register(queries.GetFeedQuery{}, bus.QueryHandlerFunc(func(ctx context.Context, q bus.Query) (interface{}, error) {
		query, ok := q.(queries.GetFeedQuery)
		if !ok {
			return nil, fmt.Errorf("unexpected query %T", q)
		}
		return h.Feed(ctx, query)
	})); err != nil {
		return err
	}
	return b.Register(queries.LoadMoreFeedQuery{}, bus.QueryHandlerFunc(func(ctx context.Context, q bus.Query) (interface{}, error) {
		query, ok := q.(queries.LoadMoreFeedQuery)
		if !ok {
			return nil, fmt.Errorf("unexpected query %T", q)
		}
		return h.LoadMore(ctx, query)
	}))
}

func feedResult(data map[string]any) (*queries.FeedResult, error) {
	conn, err := entities.ConnectionFromMap(data[graphql.GetPostsDocument.RootField])
	if err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	return resultFromConnection(conn), nil
}

func resultFromConnection(conn *entities.PostsConnection) *queries.FeedResult {
	result := &queries.FeedResult{Posts: make([]*entities.Post, 0, len(conn.Edges))}
	for _, edge := range conn.Edges {
		if edge.Node != nil {
			result.Posts = append(result.Posts, edge.Node)
		}
	}
	result.EndCursor, result.HasMore = conn.NextCursor()
	return result
}
