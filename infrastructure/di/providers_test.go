package di

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"blogify/infrastructure/cache"
	"blogify/infrastructure/config"
	"blogify/infrastructure/graphql"
	"blogify/infrastructure/messaging/eventbridge"
	"blogify/pkg/extensions"
	"blogify/pkg/ratelimit"
)

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Supabase.URL = "https://abc.supabase.co"
	cfg.Supabase.AnonKey = "anon"
	return cfg
}

func TestProvideLogger_RejectsUnknownLevel(t *testing.T) {
	cfg := testConfig()
	cfg.LogLevel = "loud"
	_, err := ProvideLogger(cfg)
	assert.ErrorContains(t, err, "invalid log level")

	cfg.LogLevel = "warn"
	logger, err := ProvideLogger(cfg)
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
}

func TestProvideDomainConfig_EventsFlag(t *testing.T) {
	cfg := testConfig()
	cfg.PublishEvents = false
	dc, err := ProvideDomainConfig(cfg)
	require.NoError(t, err)
	assert.False(t, dc.PublishPostEvents)
}

func TestProvideEventPublisher_NoBus(t *testing.T) {
	pub := ProvideEventPublisher(testConfig(), aws.Config{}, zap.NewNop())
	assert.IsType(t, &eventbridge.NoopPublisher{}, pub)
}

func TestProvideRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig()
	assert.IsType(t, &ratelimit.WindowLimiter{}, ProvideRateLimiter(ctx, cfg, aws.Config{Region: "us-west-2"}))

	cfg.AWS.RateLimitTable = "blogify-ratelimit"
	assert.IsType(t, &ratelimit.DynamoDBLimiter{}, ProvideRateLimiter(ctx, cfg, aws.Config{Region: "us-west-2"}))
}

func TestProvideRoutePolicy(t *testing.T) {
	cfg := testConfig()
	policy, err := ProvideRoutePolicy(cfg)
	require.NoError(t, err)
	assert.Equal(t, "/home", policy.HomePath)

	cfg.Routes.HomePath = "home"
	_, err = ProvideRoutePolicy(cfg)
	assert.ErrorContains(t, err, "route policy")
}

func TestProvideHistory_ReloadResetsCache(t *testing.T) {
	hooks := ProvideHooks()
	var reset []string
	hooks.Register(extensions.HookCacheReset, func(_ context.Context, data interface{}) error {
		reset = append(reset, data.(string))
		return nil
	})

	c := ProvideNormalizedCache(ProvideMetrics(), zap.NewNop())
	require.NoError(t, c.WriteQuery(graphql.GetPostsDocument, graphql.FeedVariables(5, ""), map[string]any{
		"postsCollection": map[string]any{
			"__typename": "postsConnection",
			"edges": []any{map[string]any{
				"__typename": "postsEdge",
				"cursor":     "1",
				"node":       map[string]any{"__typename": "posts", "id": "1", "title": "Hello"},
			}},
			"pageInfo": map[string]any{"__typename": "PageInfo", "hasNextPage": false, "endCursor": "1"},
		},
	}))
	_, err := c.ReadQuery(graphql.GetPostsDocument, graphql.FeedVariables(5, ""))
	require.NoError(t, err)

	h := ProvideHistory(testConfig(), c, hooks, zap.NewNop())
	h.Reload()

	_, err = c.ReadQuery(graphql.GetPostsDocument, graphql.FeedVariables(5, ""))
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
	assert.Equal(t, []string{"/"}, reset)
}
