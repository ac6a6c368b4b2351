package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/thevault/register/api/responses"
	"github.com/thevault/register/internal/register"
	"github.com/thevault/register/pkg/logger"
)

// RegisterContext validates the {registerID} path parameter and attaches it
// to the request context and log fields.
func RegisterContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			registerID := chi.URLParam(r, "registerID")
			if err := register.ValidateID(registerID); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			ctx := WithRegisterID(r.Context(), registerID)
			if logg != nil {
				ctx = logg.WithRegisterID(ctx, registerID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
