package controllers

import (
	"context"
	"net/http"

	"github.com/thevault/register/api/middleware"
	"github.com/thevault/register/api/responses"
	"github.com/thevault/register/api/validators"
	"github.com/thevault/register/internal/journal"
	pkgerrors "github.com/thevault/register/pkg/errors"
	"github.com/thevault/register/pkg/logger"
	"github.com/thevault/register/pkg/pagination"
)

// JournalLister pages through the local record of completed sales.
type JournalLister interface {
	List(ctx context.Context, registerID string, params pagination.Params) (pagination.Page[journal.Entry], error)
}

// JournalList returns the till's journal, newest first, with a cursor for
// the next page.
func JournalList(lister JournalLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if lister == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "journal unavailable"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := lister.List(r.Context(), middleware.RegisterIDFromContext(r.Context()), pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}
