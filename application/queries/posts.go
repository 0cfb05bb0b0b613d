package queries

import (
	"blogify/domain/core/entities"
	"blogify/pkg/utils"
)

// GetFeedQuery reads the first page of the feed. Fresh forces a network
// round trip instead of answering from the cache.
type GetFeedQuery struct {
	Fresh bool `json:"fresh"`
}

// Validate validates the query
func (q GetFeedQuery) Validate() error { return nil }

// LoadMoreFeedQuery appends the next page to the cached feed.
type LoadMoreFeedQuery struct{}

// Validate validates the query
func (q LoadMoreFeedQuery) Validate() error { return nil }

// FeedResult is the feed as currently cached, all loaded pages merged.
type FeedResult struct {
	Posts     []*entities.Post `json:"posts"`
	HasMore   bool             `json:"has_more"`
	EndCursor string           `json:"end_cursor,omitempty"`
}

// GetPostQuery reads one post through the server path.
type GetPostQuery struct {
	PostID string `json:"post_id" validate:"required"`
}

// Validate validates the query
func (q GetPostQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// ListPostIDsQuery lists every post id through the server path.
type ListPostIDsQuery struct{}

// Validate validates the query
func (q ListPostIDsQuery) Validate() error { return nil }

// ListPostIDsResult holds the ids in server order.
type ListPostIDsResult struct {
	IDs []string `json:"ids"`
}
