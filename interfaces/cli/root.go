package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"blogify/application/commands/bus"
	querybus "blogify/application/queries/bus"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// App is what a command needs from a running backend.
type App struct {
	Commands *bus.CommandBus
	Queries  *querybus.QueryBus
	Handler  http.Handler
	Address  string
	Logger   *zap.Logger
	Close    func()
}

// Opener builds an App. It is called once per command invocation.
type Opener func(ctx context.Context) (*App, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string
	open   Opener
}

// NewRootCommand creates the root command for blogctl.
func NewRootCommand(open Opener) *cobra.Command {
	opts := &RootOptions{open: open}

	cmd := &cobra.Command{
		Use:   "blogctl",
		Short: "Operate the blogify backend",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewPostsCommand(opts))

	return cmd
}

// withApp opens the backend for the duration of fn.
func (o *RootOptions) withApp(ctx context.Context, fn func(app *App) error) error {
	app, err := o.open(ctx)
	if err != nil {
		return fmt.Errorf("open backend: %w", err)
	}
	if app.Close != nil {
		defer app.Close()
	}
	return fn(app)
}

func (o *RootOptions) printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
