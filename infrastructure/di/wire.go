//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"blogify/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideDomainConfig,
	ProvideMetrics,
	ProvideTracer,
	ProvideHooks,
	ProvideAuthAPI,
	ProvideSessionProvider,
	ProvideNormalizedCache,
	ProvideHistory,
	ProvideHTTPLink,
	ProvideClient,
	ProvideRevalidationCache,
	ProvideServerClient,
	ProvideAWSConfig,
	ProvideEventPublisher,
	ProvideRateLimiter,
	ProvideCreatePostOrchestrator,
	ProvideSessionHandler,
	ProvideCommandBus,
	ProvideFeedHandler,
	ProvidePostHandler,
	ProvideQueryBus,
	ProvideRoutePolicy,
	ProvideAuthReconciler,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil // Wire will replace this
}
