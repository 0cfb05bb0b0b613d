package handlers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"blogify/application/queries"
	"blogify/application/queries/bus"
	"blogify/domain/config"
	"blogify/domain/core/entities"
	"blogify/infrastructure/graphql"
	pkgerrors "blogify/pkg/errors"
)

// PostHandler reads posts outside any user session through the
// revalidating server client.
type PostHandler struct {
	server *graphql.ServerClient
	cfg    *config.DomainConfig
	logger *zap.Logger
}

// NewPostHandler creates a new post handler
func NewPostHandler(server *graphql.ServerClient, cfg *config.DomainConfig, logger *zap.Logger) *PostHandler {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &PostHandler{server: server, cfg: cfg, logger: logger}
}

type postsPayload struct {
	PostsCollection struct {
		Edges []struct {
			Node map[string]any `json:"node"`
		} `json:"edges"`
	} `json:"postsCollection"`
}

// Post answers GetPostQuery. A filter that matches nothing is
// ErrPostNotFound.
func (h *PostHandler) Post(ctx context.Context, q queries.GetPostQuery) (*entities.Post, error) {
	var out postsPayload
	err := h.server.Execute(ctx, graphql.GetPostByIDQuery, map[string]any{"id": q.PostID}, &out,
		graphql.WithRevalidate(h.cfg.PostRevalidate))
	if err != nil {
		return nil, err
	}

	edges := out.PostsCollection.Edges
	if len(edges) == 0 || edges[0].Node == nil {
		h.logger.Debug("Post not found", zap.String("postID", q.PostID))
		return nil, pkgerrors.ErrPostNotFound
	}

	post, err := entities.PostFromMap(edges[0].Node)
	if err != nil {
		return nil, fmt.Errorf("decode post %s: %w", q.PostID, err)
	}
	return post, nil
}

// ListIDs answers ListPostIDsQuery.
func (h *PostHandler) ListIDs(ctx context.Context, _ queries.ListPostIDsQuery) (*queries.ListPostIDsResult, error) {
	var out postsPayload
	err := h.server.Execute(ctx, graphql.GetPostIDsQuery, nil, &out,
		graphql.WithRevalidate(h.cfg.PostListRevalidate))
	if err != nil {
		return nil, err
	}

	result := &queries.ListPostIDsResult{IDs: make([]string, 0, len(out.PostsCollection.Edges))}
	for _, edge := range out.PostsCollection.Edges {
		if id, ok := edge.Node["id"].(string); ok && id != "" {
			result.IDs = append(result.IDs, id)
		}
	}
	return result, nil
}

// Register wires both post queries into b.
func (h *PostHandler) Register(b *bus.QueryBus) error {
	if err := b.Register(queries.GetPostQuery{}, bus.QueryHandlerFunc(func(ctx context.Context, q bus.Query) (interface{}, error) {
		query, ok := q.(queries.GetPostQuery)
		if !ok {
			return nil, fmt.Errorf("unexpected query %T", q)
		}
		return h.Post(ctx, query)
	})); err != nil {
		return err
	}
	return b.Register(queries.ListPostIDsQuery{}, bus.QueryHandlerFunc(func(ctx context.Context, q bus.Query) (interface{}, error) {
		query, ok := q.(queries.ListPostIDsQuery)
		if !ok {
			return nil, fmt.Errorf("unexpected query %T", q)
		}
		return h.ListIDs(ctx, query)
	}))
}
