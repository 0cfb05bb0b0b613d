package di

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"

	"blogify/application/commands"
	"blogify/application/commands/bus"
	cmdhandlers "blogify/application/commands/handlers"
	"blogify/application/ports"
	querybus "blogify/application/queries/bus"
	queryhandlers "blogify/application/queries/handlers"
	"blogify/application/services"
	domainconfig "blogify/domain/config"
	"blogify/infrastructure/cache"
	"blogify/infrastructure/config"
	"blogify/infrastructure/graphql"
	"blogify/infrastructure/messaging/eventbridge"
	"blogify/infrastructure/navigation"
	"blogify/infrastructure/supabase"
	"blogify/pkg/extensions"
	"blogify/pkg/observability"
	"blogify/pkg/ratelimit"
)

// metricsNamespace prefixes every exported metric.
const metricsNamespace = "blogify"

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	if cfg.LogLevel != "" {
		level, err := zap.ParseAtomicLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
		}
		zcfg.Level = level
	}

	return zcfg.Build(zap.Fields(zap.String("environment", cfg.Environment)))
}

// ProvideDomainConfig selects the business rules for the environment.
func ProvideDomainConfig(cfg *config.Config) (*domainconfig.DomainConfig, error) {
	dc := domainconfig.LoadDomainConfig(cfg.Environment)
	if !cfg.PublishEvents {
		dc.PublishPostEvents = false
	}
	if err := dc.Validate(); err != nil {
		return nil, fmt.Errorf("domain config: %w", err)
	}
	return dc, nil
}

// ProvideMetrics creates the Prometheus collector.
func ProvideMetrics() *observability.Collector {
	return observability.NewCollector(metricsNamespace)
}

// ProvideTracer creates the X-Ray tracer.
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	return observability.NewTracer(metricsNamespace, cfg.EnableTracing)
}

// ProvideHooks creates the extension hook registry.
func ProvideHooks() *extensions.HookManager {
	return extensions.NewHookManager()
}

// ProvideAuthAPI creates the GoTrue client.
func ProvideAuthAPI(cfg *config.Config) (supabase.AuthAPI, error) {
	return supabase.NewGoTrueAPI(cfg.Supabase.URL, cfg.Supabase.AnonKey)
}

// ProvideSessionProvider creates the session provider.
func ProvideSessionProvider(api supabase.AuthAPI, dc *domainconfig.DomainConfig, logger *zap.Logger) *supabase.Provider {
	return supabase.NewProvider(api, logger.Named("session"), supabase.WithRefreshMargin(dc.SessionRefreshMargin))
}

// ProvideNormalizedCache creates the client cache with the feed merge
// policy installed.
func ProvideNormalizedCache(metrics *observability.Collector, logger *zap.Logger) *cache.Cache {
	opts := append(cache.DefaultOptions(),
		cache.WithLogger(logger.Named("cache")),
		cache.WithMetrics(metrics),
	)
	return cache.New(opts...)
}

// ProvideHistory creates the shell's location. A reload drops the
// normalized cache, as a browser reload would.
func ProvideHistory(cfg *config.Config, c *cache.Cache, hooks *extensions.HookManager, logger *zap.Logger) *navigation.History {
	log := logger.Named("navigation")
	h := navigation.NewHistory(cfg.InitialLocation, log)
	h.OnReload(func() {
		c.Reset()
		if err := hooks.Execute(context.Background(), extensions.HookCacheReset, h.Location()); err != nil {
			log.Warn("Cache reset hook failed", zap.Error(err))
		}
	})
	return h
}

// ProvideHTTPLink creates the terminating link shared by both clients.
func ProvideHTTPLink(cfg *config.Config, metrics *observability.Collector, tracer *observability.Tracer, logger *zap.Logger) *graphql.HTTPLink {
	breaker := graphql.DefaultBreakerConfig("supabase-graphql")
	breaker.MaxRequests = cfg.Transport.BreakerRequests
	breaker.Interval = cfg.Transport.BreakerInterval
	breaker.Timeout = cfg.Transport.BreakerTimeout
	breaker.FailureThreshold = cfg.Transport.BreakerThreshold

	return graphql.NewHTTPLink(cfg.GraphQLEndpoint(),
		graphql.WithHTTPClient(&http.Client{Timeout: cfg.Transport.Timeout}),
		graphql.WithBreaker(breaker),
		graphql.WithTracer(tracer),
		graphql.WithTransportMetrics(metrics),
		graphql.WithLogger(logger.Named("graphql")),
	)
}

// ProvideClient creates the session-bound client: errors, then auth, then
// HTTP.
func ProvideClient(
	cfg *config.Config,
	sessions *supabase.Provider,
	httpLink *graphql.HTTPLink,
	c *cache.Cache,
	metrics *observability.Collector,
	logger *zap.Logger,
) *graphql.Client {
	link := graphql.Chain(httpLink,
		graphql.ErrorLink(logger.Named("graphql"), metrics),
		graphql.AuthLink(sessions, cfg.Supabase.AnonKey, cfg.Supabase.ClientInfo, logger.Named("graphql")),
	)
	return graphql.NewClient(link, c, logger.Named("graphql"))
}

// ProvideRevalidationCache creates the server result cache.
func ProvideRevalidationCache() *cache.RevalidationCache {
	return cache.NewRevalidationCache()
}

// ProvideServerClient creates the session-free client used for public
// reads.
func ProvideServerClient(
	cfg *config.Config,
	dc *domainconfig.DomainConfig,
	httpLink *graphql.HTTPLink,
	results *cache.RevalidationCache,
	metrics *observability.Collector,
	logger *zap.Logger,
) *graphql.ServerClient {
	link := graphql.Chain(httpLink,
		graphql.ErrorLink(logger.Named("graphql"), metrics),
		graphql.StaticKeyLink(cfg.Supabase.AnonKey),
	)
	return graphql.NewServerClient(link, results, dc.DefaultRevalidate, logger.Named("graphql"))
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
}

// ProvideEventPublisher publishes to EventBridge when a bus is configured
// and discards events otherwise.
func ProvideEventPublisher(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) ports.EventPublisher {
	if cfg.AWS.EventBusName == "" {
		return eventbridge.NewNoopPublisher(logger.Named("events"))
	}
	return eventbridge.NewPublisher(awseventbridge.NewFromConfig(awsCfg), cfg.AWS.EventBusName, logger.Named("events"))
}

// ProvideRateLimiter shares the public API budget through DynamoDB when a
// table is configured and keeps it per process otherwise.
func ProvideRateLimiter(ctx context.Context, cfg *config.Config, awsCfg aws.Config) ratelimit.Limiter {
	if cfg.AWS.RateLimitTable == "" {
		l := ratelimit.NewWindowLimiter(cfg.RateLimit.RequestsPerMinute, time.Minute)
		go l.RunSweeper(ctx, 5*time.Minute)
		return l
	}
	return ratelimit.NewDynamoDBLimiter(awsdynamodb.NewFromConfig(awsCfg),
		cfg.AWS.RateLimitTable, "public", cfg.RateLimit.RequestsPerMinute, time.Minute)
}

// ProvideCreatePostOrchestrator creates the optimistic create flow.
func ProvideCreatePostOrchestrator(
	client *graphql.Client,
	sessions *supabase.Provider,
	history *navigation.History,
	publisher ports.EventPublisher,
	dc *domainconfig.DomainConfig,
	hooks *extensions.HookManager,
	metrics *observability.Collector,
	logger *zap.Logger,
) *cmdhandlers.CreatePostOrchestrator {
	return cmdhandlers.NewCreatePostOrchestrator(client, sessions, history, publisher, dc, hooks, metrics, logger.Named("create-post"))
}

// ProvideSessionHandler creates the sign-in and sign-out handler.
func ProvideSessionHandler(sessions *supabase.Provider, logger *zap.Logger) *cmdhandlers.SessionHandler {
	return cmdhandlers.NewSessionHandler(sessions, logger)
}

// ProvideCommandBus creates the command bus with every handler registered.
func ProvideCommandBus(
	orchestrator *cmdhandlers.CreatePostOrchestrator,
	sessionHandler *cmdhandlers.SessionHandler,
	hooks *extensions.HookManager,
	logger *zap.Logger,
) (*bus.CommandBus, error) {
	b := bus.NewCommandBus(
		bus.LoggingMiddleware(logger.Named("commands")),
		bus.HooksMiddleware(hooks, logger.Named("commands")),
	)
	if err := b.Register(commands.CreatePostCommand{}, orchestrator.AsCommandHandler()); err != nil {
		return nil, err
	}
	if err := sessionHandler.Register(b); err != nil {
		return nil, err
	}
	return b, nil
}

// ProvideFeedHandler creates the feed query handler.
func ProvideFeedHandler(client *graphql.Client, dc *domainconfig.DomainConfig, logger *zap.Logger) *queryhandlers.FeedHandler {
	return queryhandlers.NewFeedHandler(client, dc, logger.Named("feed"))
}

// ProvidePostHandler creates the public post query handler.
func ProvidePostHandler(server *graphql.ServerClient, dc *domainconfig.DomainConfig, logger *zap.Logger) *queryhandlers.PostHandler {
	return queryhandlers.NewPostHandler(server, dc, logger.Named("posts"))
}

// ProvideQueryBus creates the query bus with every handler registered.
func ProvideQueryBus(
	feed *queryhandlers.FeedHandler,
	posts *queryhandlers.PostHandler,
	metrics *observability.Collector,
	logger *zap.Logger,
) (*querybus.QueryBus, error) {
	b := querybus.NewQueryBus(
		querybus.LoggingMiddleware(logger.Named("queries")),
		querybus.MetricsMiddleware(metrics),
	)
	if err := feed.Register(b); err != nil {
		return nil, err
	}
	if err := posts.Register(b); err != nil {
		return nil, err
	}
	return b, nil
}

// ProvideRoutePolicy builds and checks the reconciler's route policy.
func ProvideRoutePolicy(cfg *config.Config) (services.RoutePolicy, error) {
	policy := services.RoutePolicy{
		PrivatePrefixes: cfg.Routes.PrivatePrefixes,
		AuthPrefixes:    cfg.Routes.AuthPrefixes,
		HomePath:        cfg.Routes.HomePath,
		PublicRoot:      cfg.Routes.PublicRoot,
	}
	if err := policy.Validate(); err != nil {
		return services.RoutePolicy{}, fmt.Errorf("route policy: %w", err)
	}
	return policy, nil
}

// ProvideAuthReconciler creates the auth reconciler, unmounted.
func ProvideAuthReconciler(
	sessions *supabase.Provider,
	history *navigation.History,
	policy services.RoutePolicy,
	hooks *extensions.HookManager,
	metrics *observability.Collector,
	logger *zap.Logger,
) *services.AuthReconciler {
	return services.NewAuthReconciler(sessions, history, policy, hooks, metrics, logger.Named("auth"))
}
