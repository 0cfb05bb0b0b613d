package main

import (
	"context"
	"os"

	"blogify/infrastructure/config"
	"blogify/infrastructure/di"
	"blogify/interfaces/cli"
	"blogify/interfaces/http/rest"
)

func open(ctx context.Context) (*cli.App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	container, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		return nil, err
	}
	container.Reconciler.Mount()

	return &cli.App{
		Commands: container.CommandBus,
		Queries:  container.QueryBus,
		Handler:  rest.NewRouter(container.RouterOptions(), container.Logger).Setup(),
		Address:  cfg.ServerAddress,
		Logger:   container.Logger,
		Close:    container.Shutdown,
	}, nil
}

func main() {
	if err := cli.NewRootCommand(open).Execute(); err != nil {
		os.Exit(1)
	}
}
