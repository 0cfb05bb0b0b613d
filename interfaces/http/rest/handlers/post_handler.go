package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"blogify/application/commands"
	"blogify/application/commands/bus"
	"blogify/application/queries"
	querybus "blogify/application/queries/bus"
	"blogify/pkg/common"
	pkgerrors "blogify/pkg/errors"
)

// PostHandler creates posts for the signed-in user and serves the public
// post reads.
type PostHandler struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	errs       *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewPostHandler creates a new post handler
func NewPostHandler(commandBus *bus.CommandBus, queryBus *querybus.QueryBus, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *PostHandler {
	return &PostHandler{commandBus: commandBus, queryBus: queryBus, errs: errs, logger: logger}
}

// Create handles POST /posts
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	var cmd commands.CreatePostCommand
	if err := common.DecodeJSONBody(w, r, &cmd, maxBodyBytes); err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	out, err := h.commandBus.Send(r.Context(), cmd)
	if err != nil {
		fail(h.errs, w, r, err)
		return
	}

	result := out.(commands.CreatePostResult)
	w.Header().Set("Location", result.RedirectTo)
	common.RespondJSON(w, r, http.StatusCreated, result)
}

// Get handles GET /public/posts/{postID}
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	out, err := h.queryBus.Ask(r.Context(), queries.GetPostQuery{PostID: chi.URLParam(r, "postID")})
	if err != nil {
		fail(h.errs, w, r, err)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, out)
}

// ListIDs handles GET /public/posts/ids
func (h *PostHandler) ListIDs(w http.ResponseWriter, r *http.Request) {
	out, err := h.queryBus.Ask(r.Context(), queries.ListPostIDsQuery{})
	if err != nil {
		fail(h.errs, w, r, err)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, out)
}
