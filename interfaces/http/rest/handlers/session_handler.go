package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"blogify/application/commands"
	"blogify/application/commands/bus"
	cmdhandlers "blogify/application/commands/handlers"
	"blogify/application/ports"
	"blogify/infrastructure/supabase"
	"blogify/pkg/common"
	pkgerrors "blogify/pkg/errors"
)

// SessionHandler exposes sign-in and sign-out to the shell's front end.
type SessionHandler struct {
	commandBus *bus.CommandBus
	sessions   ports.SessionProvider
	errs       *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(commandBus *bus.CommandBus, sessions ports.SessionProvider, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{commandBus: commandBus, sessions: sessions, errs: errs, logger: logger}
}

// SignIn handles POST /session
func (h *SessionHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var cmd commands.SignInCommand
	if err := common.DecodeJSONBody(w, r, &cmd, maxBodyBytes); err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	out, err := h.commandBus.Send(r.Context(), cmd)
	if err != nil {
		fail(h.errs, w, r, err)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, out)
}

// SignOut handles DELETE /session
func (h *SessionHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if _, err := h.commandBus.Send(r.Context(), commands.SignOutCommand{}); err != nil {
		fail(h.errs, w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Current handles GET /session
func (h *SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	session, err := supabase.RequireSession(r.Context(), h.sessions)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, cmdhandlers.SessionView{
		UserID:    session.User.ID,
		Email:     session.User.Email,
		Name:      session.User.Name,
		ExpiresAt: session.ExpiresAt,
	})
}
