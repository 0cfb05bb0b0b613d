package middleware

import (
	"net/http"

	"blogify/application/ports"
	"blogify/infrastructure/supabase"
	"blogify/pkg/common"
	pkgerrors "blogify/pkg/errors"
)

// RequireSession answers 401 unless the shell holds a live session, and
// records the signed-in user on the request context.
func RequireSession(sessions ports.SessionProvider, errs *pkgerrors.ErrorHandler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := supabase.RequireSession(r.Context(), sessions)
			if err != nil {
				errs.Handle(w, r, err)
				return
			}
			ctx := common.WithUserID(r.Context(), session.User.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
