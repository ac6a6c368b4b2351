package controllers

import (
	"net/http"

	"github.com/thevault/register/api/middleware"
	"github.com/thevault/register/api/responses"
	"github.com/thevault/register/internal/register"
	"github.com/thevault/register/pkg/auth"
	pkgerrors "github.com/thevault/register/pkg/errors"
	"github.com/thevault/register/pkg/logger"
)

// Sessions resolves the in-memory state of a till.
type Sessions interface {
	Get(registerID string) (*register.Session, error)
	Close(registerID string) error
}

// tillFor resolves the caller's session and till from the request context.
func tillFor(r *http.Request, sessions Sessions) (*register.Session, auth.Session, error) {
	if sessions == nil {
		return nil, auth.Session{}, pkgerrors.New(pkgerrors.CodeInternal, "register sessions unavailable")
	}
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		return nil, auth.Session{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session")
	}
	registerID := middleware.RegisterIDFromContext(r.Context())
	if registerID == "" {
		return nil, auth.Session{}, pkgerrors.New(pkgerrors.CodeValidation, "register id missing")
	}
	till, err := sessions.Get(registerID)
	if err != nil {
		return nil, auth.Session{}, err
	}
	return till, sess, nil
}

// RegisterClose drops the till's in-memory state, cart included.
func RegisterClose(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sessions == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "register sessions unavailable"))
			return
		}
		registerID := middleware.RegisterIDFromContext(r.Context())
		if err := sessions.Close(registerID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"register_id": registerID, "status": "closed"})
	}
}
