package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"blogify/application/commands"
	"blogify/application/commands/bus"
	"blogify/application/ports"
	"blogify/application/sagas"
	"blogify/domain/config"
	"blogify/domain/core/entities"
	"blogify/domain/core/valueobjects"
	"blogify/domain/events"
	"blogify/infrastructure/cache"
	"blogify/infrastructure/graphql"
	pkgerrors "blogify/pkg/errors"
	"blogify/pkg/extensions"
)

// MutationMetrics counts mutation outcomes.
type MutationMetrics interface {
	RecordMutation(outcome string)
}

// CreatePostOrchestrator creates a post with an optimistic placeholder at
// the head of the cached feed. The placeholder is visible before the
// request is sent and is gone once the request resolves, either way.
type CreatePostOrchestrator struct {
	client    *graphql.Client
	sessions  ports.SessionProvider
	navigator ports.Navigator
	publisher ports.EventPublisher
	ids       *valueobjects.ProvisionalIDSource
	cfg       *config.DomainConfig
	hooks     *extensions.HookManager
	metrics   MutationMetrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewCreatePostOrchestrator creates a new orchestrator instance. publisher,
// hooks and metrics may be nil.
func NewCreatePostOrchestrator(
	client *graphql.Client,
	sessions ports.SessionProvider,
	navigator ports.Navigator,
	publisher ports.EventPublisher,
	cfg *config.DomainConfig,
	hooks *extensions.HookManager,
	metrics MutationMetrics,
	logger *zap.Logger,
) *CreatePostOrchestrator {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &CreatePostOrchestrator{
		client:    client,
		sessions:  sessions,
		navigator: navigator,
		publisher: publisher,
		ids:       valueobjects.NewProvisionalIDSource(cfg.ProvisionalIDPrefix),
		cfg:       cfg,
		hooks:     hooks,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// firstPage is the feed page the placeholder goes into.
func (o *CreatePostOrchestrator) firstPage() cache.Variables {
	return graphql.FeedVariables(o.cfg.PostsPerPage, "")
}

// Handle runs the creation. On success the shell has navigated to the new
// post and the confirmed post is returned.
func (o *CreatePostOrchestrator) Handle(ctx context.Context, cmd commands.CreatePostCommand) (*entities.Post, error) {
	content, err := valueobjects.NewPostContentWithConfig(cmd.Title, cmd.Body, o.cfg)
	if err != nil {
		return nil, err
	}

	session, err := o.sessions.GetSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, pkgerrors.ErrNotSignedIn
	}

	placeholder := o.placeholder(content, session.User)
	layerID := "create-post:" + placeholder.ID.String()

	saga := sagas.New("create-post", o.logger).
		AddStep(sagas.Step{
			Name: "optimistic_insert",
			Execute: func(ctx context.Context, _ interface{}) (interface{}, error) {
				return nil, o.insertPlaceholder(ctx, layerID, placeholder)
			},
			Compensate: func(context.Context, interface{}) error {
				o.client.Cache().RemoveOptimistic(layerID)
				return nil
			},
		}).
		AddStep(sagas.Step{
			Name: "send_mutation",
			Execute: func(ctx context.Context, _ interface{}) (interface{}, error) {
				return o.send(ctx, content, session.User.ID)
			},
		})

	out, err := saga.Execute(ctx, nil)
	if err != nil {
		o.failed(ctx, placeholder, err)
		return nil, unwrapStep(err)
	}
	confirmed := out.(*entities.Post)

	o.client.Cache().RemoveOptimistic(layerID)
	o.reconcile(confirmed)
	if o.cfg.RefetchAfterCreate {
		o.client.Refetch(ctx, graphql.GetPostsDocument, o.firstPage())
	}
	o.confirmed(ctx, placeholder, confirmed)

	o.navigator.Assign(redirectFor(confirmed))
	return confirmed, nil
}

func (o *CreatePostOrchestrator) placeholder(content valueobjects.PostContent, user events.SessionUser) *entities.Post {
	author := entities.Account{
		ID:   user.ID,
		Name: entities.DisplayName(user.Name, user.Email, o.cfg.AnonymousDisplayName),
	}
	if user.Email != "" {
		email := user.Email
		author.Email = &email
	}
	return entities.NewPlaceholderPost(o.ids.Next(), content, author, o.now())
}

// insertPlaceholder records the optimistic layer. With no first page
// cached the layer is recorded empty; it fills in if the page arrives
// while the request is in flight.
func (o *CreatePostOrchestrator) insertPlaceholder(ctx context.Context, layerID string, placeholder *entities.Post) error {
	vars := o.firstPage()
	edge := entities.PostEdge{Cursor: placeholder.ID.String(), Node: placeholder}

	err := o.client.Cache().RecordOptimistic(layerID, func(tx cache.Tx) error {
		data, err := tx.ReadQuery(graphql.GetPostsDocument, vars)
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil
		}
		if err != nil {
			return err
		}
		conn, err := entities.ConnectionFromMap(data[graphql.GetPostsDocument.RootField])
		if err != nil {
			return err
		}
		updated := conn.Prepend(edge)
		return tx.WriteQuery(graphql.GetPostsDocument, vars, map[string]any{
			graphql.GetPostsDocument.RootField: updated.ToMap(),
		})
	})
	if err != nil {
		return fmt.Errorf("record optimistic post: %w", err)
	}

	if err := o.hooks.Execute(ctx, extensions.HookOptimisticInsert, o.hookData(placeholder, nil)); err != nil {
		o.logger.Warn("Optimistic insert hook failed", zap.Error(err))
	}
	return nil
}

func (o *CreatePostOrchestrator) send(ctx context.Context, content valueobjects.PostContent, authorID string) (*entities.Post, error) {
	data, err := o.client.Mutate(ctx, graphql.CreatePostDocument,
		graphql.CreatePostVariables(content.Title(), content.Body(), authorID))
	if err != nil {
		return nil, err
	}

	root, _ := data[graphql.CreatePostDocument.RootField].(map[string]any)
	records, _ := root["records"].([]any)
	if len(records) == 0 {
		return nil, fmt.Errorf("%s returned no records: %w", graphql.CreatePostDocument.RootField, graphql.ErrNoData)
	}

	post, err := entities.PostFromMap(records[0])
	if err != nil {
		return nil, fmt.Errorf("decode created post: %w", err)
	}
	return post, nil
}

// reconcile puts the confirmed post at the head of the cached first page.
// It works on the base store so placeholders of other in-flight creates
// never reach it, and it never fails the mutation.
func (o *CreatePostOrchestrator) reconcile(confirmed *entities.Post) {
	vars := o.firstPage()

	err := o.client.Cache().UpdateBase(func(tx cache.Tx) error {
		data, err := tx.ReadQuery(graphql.GetPostsDocument, vars)
		if err != nil {
			return err
		}
		conn, err := entities.ConnectionFromMap(data[graphql.GetPostsDocument.RootField])
		if err != nil {
			return err
		}
		updated := conn.Prepend(entities.PostEdge{Cursor: confirmed.ID.String(), Node: confirmed})
		return tx.WriteQuery(graphql.GetPostsDocument, vars, map[string]any{
			graphql.GetPostsDocument.RootField: updated.ToMap(),
		})
	})
	if err != nil {
		o.logger.Debug("Feed not reconciled after create", zap.Error(err))
	}
}

func (o *CreatePostOrchestrator) confirmed(ctx context.Context, placeholder, post *entities.Post) {
	o.logger.Info("Post created",
		zap.String("postID", post.ID.String()),
		zap.String("provisionalID", placeholder.ID.String()),
	)
	if o.metrics != nil {
		o.metrics.RecordMutation("confirmed")
	}

	if o.publisher != nil && o.cfg.PublishPostEvents && !post.ID.IsZero() {
		event := events.NewPostCreated(post.ID, post.AuthorID, post.Title, o.now().UTC())
		if err := o.publisher.Publish(ctx, event); err != nil {
			o.logger.Error("Failed to publish domain event",
				zap.String("postID", post.ID.String()),
				zap.Error(pkgerrors.ErrEventPublishFailed.Because(err)),
			)
		}
	}

	if err := o.hooks.Execute(ctx, extensions.HookMutationConfirmed, o.hookData(placeholder, post)); err != nil {
		o.logger.Warn("Mutation confirmed hook failed", zap.Error(err))
	}
}

func (o *CreatePostOrchestrator) failed(ctx context.Context, placeholder *entities.Post, err error) {
	o.logger.Warn("Post creation failed",
		zap.String("provisionalID", placeholder.ID.String()),
		zap.Error(err),
	)
	if o.metrics != nil {
		o.metrics.RecordMutation("failed")
	}

	data := o.hookData(placeholder, nil)
	data.Metadata["error"] = err.Error()
	if hookErr := o.hooks.Execute(ctx, extensions.HookMutationFailed, data); hookErr != nil {
		o.logger.Warn("Mutation failed hook failed", zap.Error(hookErr))
	}
}

func (o *CreatePostOrchestrator) hookData(placeholder, confirmed *entities.Post) extensions.HookData {
	data := extensions.HookData{
		EntityType: entities.TypenamePost,
		EntityID:   placeholder.ID.String(),
		Operation:  graphql.CreatePostDocument.Name,
		UserID:     placeholder.AuthorID,
		Before:     placeholder,
		Metadata:   map[string]interface{}{},
	}
	if confirmed != nil {
		data.EntityID = confirmed.ID.String()
		data.After = confirmed
		data.Metadata["provisional_id"] = placeholder.ID.String()
	}
	return data
}

// AsCommandHandler adapts the orchestrator to the command bus.
func (o *CreatePostOrchestrator) AsCommandHandler() bus.CommandHandler {
	return bus.CommandHandlerFunc(func(ctx context.Context, cmd bus.Command) (interface{}, error) {
		c, ok := cmd.(commands.CreatePostCommand)
		if !ok {
			return nil, fmt.Errorf("unexpected command %T", cmd)
		}
		post, err := o.Handle(ctx, c)
		if err != nil {
			return nil, err
		}
		return commands.CreatePostResult{
			PostID:     post.ID.String(),
			RedirectTo: redirectFor(post),
		}, nil
	})
}

func redirectFor(post *entities.Post) string {
	if post == nil || post.ID.IsZero() {
		return "/"
	}
	return "/posts/" + post.ID.String()
}

// unwrapStep returns the error a saga step failed with, so callers see the
// transport taxonomy rather than the saga wrapper.
func unwrapStep(err error) error {
	var stepErr *sagas.StepError
	if errors.As(err, &stepErr) {
		return stepErr.Err
	}
	return err
}
