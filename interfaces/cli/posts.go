package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"blogify/application/commands"
	cmdhandlers "blogify/application/commands/handlers"
	"blogify/application/queries"
	"blogify/domain/core/entities"
)

// NewPostsCommand groups the post subcommands.
func NewPostsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "posts",
		Short: "Read and publish posts",
	}

	cmd.AddCommand(newPostIDsCommand(rootOpts))
	cmd.AddCommand(newPostShowCommand(rootOpts))
	cmd.AddCommand(newPostCreateCommand(rootOpts))

	return cmd
}

func newPostIDsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ids",
		Short: "List the identifiers of every published post",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(app *App) error {
				out, err := app.Queries.Ask(cmd.Context(), queries.ListPostIDsQuery{})
				if err != nil {
					return err
				}
				result := out.(*queries.ListPostIDsResult)

				if opts.Format == "json" {
					return opts.printJSON(cmd.OutOrStdout(), result)
				}
				for _, id := range result.IDs {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			})
		},
	}
}

func newPostShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <post-id>",
		Short: "Print one post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(app *App) error {
				out, err := app.Queries.Ask(cmd.Context(), queries.GetPostQuery{PostID: args[0]})
				if err != nil {
					return err
				}
				post := out.(*entities.Post)

				if opts.Format == "json" {
					return opts.printJSON(cmd.OutOrStdout(), post)
				}
				printPost(cmd.OutOrStdout(), post)
				return nil
			})
		},
	}
}

// CreateOptions holds flags for posts create.
type CreateOptions struct {
	*RootOptions
	Email    string
	Password string
	Title    string
	Body     string
}

func newPostCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Sign in and publish a post",
		Long: `Sign in with a password, publish a post as that user and sign out.

Example:
  blogctl posts create --email me@example.com --password secret \
    --title "Hello" --body "First post"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(app *App) error {
				return createPost(cmd, opts, app)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "account email")
	cmd.Flags().StringVar(&opts.Password, "password", "", "account password")
	cmd.Flags().StringVar(&opts.Title, "title", "", "post title")
	cmd.Flags().StringVar(&opts.Body, "body", "", "post body")
	for _, name := range []string{"email", "password", "title", "body"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func createPost(cmd *cobra.Command, opts *CreateOptions, app *App) error {
	ctx := cmd.Context()

	out, err := app.Commands.Send(ctx, commands.SignInCommand{Email: opts.Email, Password: opts.Password})
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	session := out.(*cmdhandlers.SessionView)
	defer func() { _, _ = app.Commands.Send(ctx, commands.SignOutCommand{}) }()

	out, err = app.Commands.Send(ctx, commands.CreatePostCommand{Title: opts.Title, Body: opts.Body})
	if err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	result := out.(commands.CreatePostResult)

	if opts.Format == "json" {
		return opts.printJSON(cmd.OutOrStdout(), result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created post %s as %s\n", result.PostID, session.Email)
	return nil
}

func printPost(w io.Writer, post *entities.Post) {
	fmt.Fprintf(w, "%s\n", post.Title)
	author := post.AuthorID
	if post.Account != nil && post.Account.Name != "" {
		author = post.Account.Name
	}
	fmt.Fprintf(w, "by %s on %s\n\n", author, post.CreatedAt.Format(time.RFC1123))
	fmt.Fprintln(w, post.Body)
}
