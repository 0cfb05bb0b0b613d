package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"blogify/infrastructure/cache"
)

// FetchPolicy decides how a query consults the cache and the network.
type FetchPolicy int

const (
	// CacheFirst answers from the cache and goes to the network on a miss.
	CacheFirst FetchPolicy = iota
	// CacheAndNetwork answers from the cache when it can and refreshes in
	// the background; on a miss it waits for the network.
	CacheAndNetwork
	// NetworkOnly always fetches, writes the result and reads it back.
	NetworkOnly
	// CacheOnly never touches the network.
	CacheOnly
)

func (p FetchPolicy) String() string {
	switch p {
	case CacheFirst:
		return "cache-first"
	case CacheAndNetwork:
		return "cache-and-network"
	case NetworkOnly:
		return "network-only"
	case CacheOnly:
		return "cache-only"
	default:
		return fmt.Sprintf("FetchPolicy(%d)", int(p))
	}
}

// Client runs documents through a link and keeps their results in a
// normalized cache.
type Client struct {
	link   Link
	cache  *cache.Cache
	logger *zap.Logger

	background sync.WaitGroup
}

// NewClient creates a client over link and c.
func NewClient(link Link, c *cache.Cache, logger *zap.Logger) *Client {
	return &Client{link: link, cache: c, logger: logger}
}

// Cache returns the client's normalized cache.
func (c *Client) Cache() *cache.Cache {
	return c.cache
}

// Link returns the client's link chain.
func (c *Client) Link() Link {
	return c.link
}

// Query resolves doc according to policy. Results written from the
// network pass through the root field's merge policy and are read back, so
// the caller sees the merged value.
func (c *Client) Query(ctx context.Context, doc cache.Document, vars cache.Variables, policy FetchPolicy) (map[string]any, error) {
	switch policy {
	case CacheOnly:
		return c.cache.ReadQuery(doc, vars)

	case CacheFirst, CacheAndNetwork:
		data, err := c.cache.ReadQuery(doc, vars)
		if err == nil {
			if policy == CacheAndNetwork {
				c.refresh(ctx, doc, vars)
			}
			return data, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn("Cache read failed, falling back to network",
				zap.String("operation", doc.Name),
				zap.Error(err),
			)
		}
		return c.fetchAndRead(ctx, doc, vars)

	case NetworkOnly:
		return c.fetchAndRead(ctx, doc, vars)

	default:
		return nil, fmt.Errorf("unknown fetch policy %v", policy)
	}
}

// Mutate sends doc and returns its data without touching the cache.
func (c *Client) Mutate(ctx context.Context, doc cache.Document, vars map[string]any) (map[string]any, error) {
	return c.fetch(ctx, doc, vars)
}

// Refetch re-runs doc against the network in the background and writes the
// result through the merge policy. Failures are logged.
func (c *Client) Refetch(ctx context.Context, doc cache.Document, vars cache.Variables) {
	c.refresh(ctx, doc, vars)
}

// Wait blocks until background refreshes have finished.
func (c *Client) Wait() {
	c.background.Wait()
}

func (c *Client) refresh(ctx context.Context, doc cache.Document, vars cache.Variables) {
	ctx = context.WithoutCancel(ctx)
	c.background.Add(1)
	go func() {
		defer c.background.Done()
		data, err := c.fetch(ctx, doc, vars)
		if err != nil {
			c.logger.Debug("Background refresh failed", zap.String("operation", doc.Name), zap.Error(err))
			return
		}
		if err := c.cache.WriteQuery(doc, vars, data); err != nil {
			c.logger.Warn("Background refresh write failed", zap.String("operation", doc.Name), zap.Error(err))
		}
	}()
}

func (c *Client) fetchAndRead(ctx context.Context, doc cache.Document, vars cache.Variables) (map[string]any, error) {
	data, err := c.fetch(ctx, doc, vars)
	if err != nil {
		return nil, err
	}
	if err := c.cache.WriteQuery(doc, vars, data); err != nil {
		return nil, fmt.Errorf("write %s: %w", doc.Name, err)
	}
	return c.cache.ReadQuery(doc, vars)
}

func (c *Client) fetch(ctx context.Context, doc cache.Document, vars map[string]any) (map[string]any, error) {
	op := NewOperation(doc.Name, doc.Query, vars)
	resp, err := c.link.Execute(ctx, op)
	if err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, &GraphQLErrors{Errors: resp.Errors}
	}
	if !resp.HasData() {
		return nil, ErrNoData
	}

	var data map[string]any
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("decode %s data: %w", doc.Name, err)
	}
	return data, nil
}
