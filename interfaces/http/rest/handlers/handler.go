package handlers

import (
	"net/http"

	"blogify/infrastructure/graphql"
	pkgerrors "blogify/pkg/errors"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// fail classifies transport failures before rendering err.
func fail(errs *pkgerrors.ErrorHandler, w http.ResponseWriter, r *http.Request, err error) {
	errs.Handle(w, r, graphql.ToAppError(err))
}
