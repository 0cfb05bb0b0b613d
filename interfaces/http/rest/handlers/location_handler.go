package handlers

import (
	"net/http"

	"blogify/application/ports"
	"blogify/domain/core/validators"
	"blogify/pkg/common"
	pkgerrors "blogify/pkg/errors"
)

// LocationView is the shell's current location.
type LocationView struct {
	Path string `json:"path"`
}

// LocationHandler lets the front end read and move the shell's location.
type LocationHandler struct {
	navigator ports.Navigator
	paths     *validators.PathValidator
	errs      *pkgerrors.ErrorHandler
}

// NewLocationHandler creates a new location handler
func NewLocationHandler(navigator ports.Navigator, errs *pkgerrors.ErrorHandler) *LocationHandler {
	return &LocationHandler{navigator: navigator, paths: validators.NewPathValidator(), errs: errs}
}

// Get handles GET /location
func (h *LocationHandler) Get(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, r, http.StatusOK, LocationView{Path: h.navigator.Location()})
}

// Put handles PUT /location
func (h *LocationHandler) Put(w http.ResponseWriter, r *http.Request) {
	var req LocationView
	if err := common.DecodeJSONBody(w, r, &req, maxBodyBytes); err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	if err := h.paths.ValidateLocation(req.Path); err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	h.navigator.Assign(req.Path)
	common.RespondJSON(w, r, http.StatusOK, LocationView{Path: h.navigator.Location()})
}
