package middleware

import (
	"net/http"
	"time"

	"github.com/thevault/register/api/responses"
	"github.com/thevault/register/pkg/auth"
	"github.com/thevault/register/pkg/config"
	"github.com/thevault/register/pkg/logger"
)

// Session reads the back-office bearer token into an auth.Session. An expired
// token is refused here, before any back-office call.
func Session(cfg config.AuthConfig, logg *logger.Logger, now func() time.Time) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := auth.ParseBearer(cfg, r.Header.Get("Authorization"), now())
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			ctx := WithSession(r.Context(), sess)
			if logg != nil {
				ctx = logg.WithEmployeeID(ctx, sess.EmployeeID)
				if sess.Role != "" {
					ctx = logg.WithField(ctx, "employee_role", sess.Role)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
