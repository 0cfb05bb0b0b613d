package entities

import (
	"fmt"
	"strings"
	"time"

	"blogify/domain/core/valueobjects"
	"blogify/pkg/utils"
)

// GraphQL type names as reported in __typename by the backend.
const (
	TypenamePost       = "posts"
	TypenameAccount    = "accounts"
	TypenameConnection = "postsConnection"
	TypenameEdge       = "postsEdge"
	TypenamePageInfo   = "PageInfo"
)

// Account is the author profile attached to a post.
type Account struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Email      *string `json:"email"`
	PictureURL *string `json:"picture_url"`
}

// Post is a blog post as exchanged with the GraphQL backend and stored in
// the normalized cache.
type Post struct {
	ID        valueobjects.PostID `json:"id"`
	Title     string              `json:"title"`
	Body      string              `json:"body"`
	AuthorID  string              `json:"author_id"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
	Account   *Account            `json:"accounts,omitempty"`
}

// PostEdge pairs a post with its pagination cursor.
type PostEdge struct {
	Cursor string `json:"cursor"`
	Node   *Post  `json:"node"`
}

// PageInfo is the relay-style pagination block of a connection.
type PageInfo struct {
	HasNextPage     bool    `json:"hasNextPage"`
	HasPreviousPage bool    `json:"hasPreviousPage"`
	StartCursor     *string `json:"startCursor"`
	EndCursor       *string `json:"endCursor"`
}

// PostsConnection is one (or several merged) pages of posts.
type PostsConnection struct {
	Edges    []PostEdge `json:"edges"`
	PageInfo *PageInfo  `json:"pageInfo,omitempty"`
}

// NextCursor returns the cursor to request the following page with, or
// false when the server reported no further pages.
func (c *PostsConnection) NextCursor() (string, bool) {
	if c == nil || c.PageInfo == nil || !c.PageInfo.HasNextPage || c.PageInfo.EndCursor == nil {
		return "", false
	}
	return *c.PageInfo.EndCursor, true
}

// Prepend returns a copy of the connection with edge at the head. PageInfo
// is carried over untouched.
func (c PostsConnection) Prepend(edge PostEdge) PostsConnection {
	edges := make([]PostEdge, 0, len(c.Edges)+1)
	edges = append(edges, edge)
	edges = append(edges, c.Edges...)
	return PostsConnection{Edges: edges, PageInfo: c.PageInfo}
}

// DisplayName picks the name shown for a freshly written post before the
// server has answered: an explicit name, else the email local part, else
// fallback.
func DisplayName(name, email, fallback string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	if local, _, _ := strings.Cut(email, "@"); strings.TrimSpace(local) != "" {
		return local
	}
	return fallback
}

// NewPlaceholderPost builds the optimistic stand-in for a post being
// created. Both timestamps are now.
func NewPlaceholderPost(id valueobjects.PostID, content valueobjects.PostContent, author Account, now time.Time) *Post {
	now = now.UTC()
	acct := author
	return &Post{
		ID:        id,
		Title:     content.Title(),
		Body:      content.Body(),
		AuthorID:  author.ID,
		CreatedAt: now,
		UpdatedAt: now,
		Account:   &acct,
	}
}

// ToMap renders the post as a cache result tree. The identifier is kept as
// a PostID so its kind survives a round trip through the cache.
func (p *Post) ToMap() map[string]any {
	m := map[string]any{
		"__typename": TypenamePost,
		"id":         p.ID,
		"title":      p.Title,
		"body":       p.Body,
		"author_id":  p.AuthorID,
		"created_at": utils.FormatTimestamp(p.CreatedAt),
		"updated_at": utils.FormatTimestamp(p.UpdatedAt),
	}
	if p.Account != nil {
		m["accounts"] = p.Account.ToMap()
	}
	return m
}

// ToMap renders the account as a cache result tree.
func (a *Account) ToMap() map[string]any {
	return map[string]any{
		"__typename":  TypenameAccount,
		"id":          a.ID,
		"name":        a.Name,
		"email":       optionalString(a.Email),
		"picture_url": optionalString(a.PictureURL),
	}
}

// ToMap renders the connection as a cache result tree.
func (c PostsConnection) ToMap() map[string]any {
	edges := make([]any, 0, len(c.Edges))
	for _, e := range c.Edges {
		edge := map[string]any{"__typename": TypenameEdge, "cursor": e.Cursor}
		if e.Node != nil {
			edge["node"] = e.Node.ToMap()
		} else {
			edge["node"] = nil
		}
		edges = append(edges, edge)
	}
	m := map[string]any{"__typename": TypenameConnection, "edges": edges}
	if c.PageInfo != nil {
		m["pageInfo"] = map[string]any{
			"__typename":      TypenamePageInfo,
			"hasNextPage":     c.PageInfo.HasNextPage,
			"hasPreviousPage": c.PageInfo.HasPreviousPage,
			"startCursor":     optionalString(c.PageInfo.StartCursor),
			"endCursor":       optionalString(c.PageInfo.EndCursor),
		}
	}
	return m
}

// PostFromMap converts a cache or wire result tree back into a Post.
func PostFromMap(v any) (*Post, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("post: expected object, got %T", v)
	}

	p := &Post{
		Title:    stringField(m, "title"),
		Body:     stringField(m, "body"),
		AuthorID: stringField(m, "author_id"),
	}

	switch id := m["id"].(type) {
	case valueobjects.PostID:
		p.ID = id
	case string:
		if id != "" {
			p.ID = valueobjects.MustConfirmedID(id)
		}
	case nil:
	default:
		return nil, fmt.Errorf("post: unexpected id type %T", id)
	}

	var err error
	if s := stringField(m, "created_at"); s != "" {
		if p.CreatedAt, err = utils.ParseTimestamp(s); err != nil {
			return nil, fmt.Errorf("post %s: created_at: %w", p.ID, err)
		}
	}
	if s := stringField(m, "updated_at"); s != "" {
		if p.UpdatedAt, err = utils.ParseTimestamp(s); err != nil {
			return nil, fmt.Errorf("post %s: updated_at: %w", p.ID, err)
		}
	}

	if raw, ok := m["accounts"].(map[string]any); ok {
		p.Account = &Account{
			ID:         stringField(raw, "id"),
			Name:       stringField(raw, "name"),
			Email:      optionalField(raw, "email"),
			PictureURL: optionalField(raw, "picture_url"),
		}
	}

	return p, nil
}

// ConnectionFromMap converts a postsCollection result tree into a
// PostsConnection.
func ConnectionFromMap(v any) (*PostsConnection, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("postsCollection: expected object, got %T", v)
	}

	rawEdges, _ := m["edges"].([]any)
	conn := &PostsConnection{Edges: make([]PostEdge, 0, len(rawEdges))}
	for i, re := range rawEdges {
		em, ok := re.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("postsCollection.edges[%d]: expected object, got %T", i, re)
		}
		edge := PostEdge{Cursor: stringField(em, "cursor")}
		if em["node"] != nil {
			node, err := PostFromMap(em["node"])
			if err != nil {
				return nil, fmt.Errorf("postsCollection.edges[%d]: %w", i, err)
			}
			edge.Node = node
		}
		conn.Edges = append(conn.Edges, edge)
	}

	if pi, ok := m["pageInfo"].(map[string]any); ok {
		conn.PageInfo = &PageInfo{
			HasNextPage:     boolField(pi, "hasNextPage"),
			HasPreviousPage: boolField(pi, "hasPreviousPage"),
			StartCursor:     optionalField(pi, "startCursor"),
			EndCursor:       optionalField(pi, "endCursor"),
		}
	}

	return conn, nil
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}

func boolField(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func optionalField(m map[string]any, key string) *string {
	s, ok := m[key].(string)
	if !ok {
		return nil
	}
	return &s
}

func optionalString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
