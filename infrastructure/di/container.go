package di

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"blogify/application/commands/bus"
	"blogify/application/ports"
	querybus "blogify/application/queries/bus"
	"blogify/application/services"
	domainconfig "blogify/domain/config"
	"blogify/infrastructure/cache"
	"blogify/infrastructure/config"
	"blogify/infrastructure/graphql"
	"blogify/infrastructure/navigation"
	"blogify/infrastructure/supabase"
	"blogify/interfaces/http/rest"
	"blogify/pkg/extensions"
	"blogify/pkg/observability"
	"blogify/pkg/ratelimit"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	DomainConfig *domainconfig.DomainConfig
	Logger       *zap.Logger
	Metrics      *observability.Collector
	Hooks        *extensions.HookManager
	Sessions     *supabase.Provider
	History      *navigation.History
	Cache        *cache.Cache
	Client       *graphql.Client
	Results      *cache.RevalidationCache
	ServerClient *graphql.ServerClient
	Publisher    ports.EventPublisher
	RateLimiter  ratelimit.Limiter
	CommandBus   *bus.CommandBus
	QueryBus     *querybus.QueryBus
	Reconciler   *services.AuthReconciler
}

// Ready reports whether the upstream GraphQL endpoint answers. It is used
// by the readiness probe.
func (c *Container) Ready(ctx context.Context) error {
	err := c.ServerClient.Execute(ctx, graphql.GetPostIDsQuery, nil, nil, graphql.WithRevalidate(0))
	if errors.Is(err, graphql.ErrNoData) {
		return nil
	}
	return err
}

// RouterOptions collects the HTTP router's collaborators.
func (c *Container) RouterOptions() rest.Options {
	opts := rest.Options{
		CommandBus:     c.CommandBus,
		QueryBus:       c.QueryBus,
		Sessions:       c.Sessions,
		Navigator:      c.History,
		Limiter:        c.RateLimiter,
		Ready:          c.Ready,
		AllowedOrigins: c.Config.AllowedOrigins,
		Debug:          c.Config.IsDevelopment(),
	}
	if c.Config.EnableMetrics {
		opts.Metrics = c.Metrics
	}
	return opts
}

// Shutdown unmounts the reconciler, waits for background cache refreshes
// and flushes the logger.
func (c *Container) Shutdown() {
	c.Reconciler.Unmount()
	c.Client.Wait()
	c.Results.Stop()
	_ = c.Logger.Sync()
}
