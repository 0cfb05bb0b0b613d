package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"blogify/application/queries"
	querybus "blogify/application/queries/bus"
	"blogify/pkg/common"
	pkgerrors "blogify/pkg/errors"
)

// FeedHandler serves the shell's cached feed.
type FeedHandler struct {
	queryBus *querybus.QueryBus
	errs     *pkgerrors.ErrorHandler
	logger   *zap.Logger
}

// NewFeedHandler creates a new feed handler
func NewFeedHandler(queryBus *querybus.QueryBus, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *FeedHandler {
	return &FeedHandler{queryBus: queryBus, errs: errs, logger: logger}
}

// Feed handles GET /feed. ?fresh=true skips the cache.
func (h *FeedHandler) Feed(w http.ResponseWriter, r *http.Request) {
	fresh, _ := strconv.ParseBool(r.URL.Query().Get("fresh"))
	h.respond(w, r, queries.GetFeedQuery{Fresh: fresh})
}

// LoadMore handles POST /feed/more
func (h *FeedHandler) LoadMore(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, queries.LoadMoreFeedQuery{})
}

func (h *FeedHandler) respond(w http.ResponseWriter, r *http.Request, q querybus.Query) {
	out, err := h.queryBus.Ask(r.Context(), q)
	if err != nil {
		fail(h.errs, w, r, err)
		return
	}
	feed := out.(*queries.FeedResult)
	common.RespondWithMeta(w, r, http.StatusOK, feed.Posts, &common.CursorInfo{
		HasMore:   feed.HasMore,
		EndCursor: feed.EndCursor,
	})
}
