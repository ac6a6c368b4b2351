package controllers

import (
	"net/http"

	"github.com/thevault/register/api/middleware"
	"github.com/thevault/register/api/responses"
	"github.com/thevault/register/api/validators"
	"github.com/thevault/register/internal/catalog"
	pkgerrors "github.com/thevault/register/pkg/errors"
	"github.com/thevault/register/pkg/logger"
)

type catalogQueryRequest struct {
	Text     *string `json:"text" validate:"omitempty,max=120"`
	Category *string `json:"category" validate:"omitempty,max=80"`
	Page     *int    `json:"page" validate:"omitempty,min=1"`
}

// CatalogView returns the product pane as last loaded.
func CatalogView(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		till, _, err := tillFor(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, till.Catalog.View())
	}
}

// CatalogQuery applies category, text and page changes in that order. Text
// edits are debounced, so the returned view may still be loading. An empty
// body reloads the current query.
func CatalogQuery(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		till, sess, err := tillFor(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload catalogQueryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		view := till.Catalog.View()
		if payload.Category == nil && payload.Text == nil && payload.Page == nil {
			view = till.Catalog.Refresh(ctx, sess)
		}
		if payload.Category != nil {
			view = till.Catalog.SetCategory(ctx, sess, validators.SanitizeString(*payload.Category, 80))
		}
		if payload.Text != nil {
			view = till.Catalog.SetText(ctx, sess, validators.SanitizeString(*payload.Text, 120))
		}
		if payload.Page != nil {
			view = till.Catalog.SetPage(ctx, sess, *payload.Page)
		}
		responses.WriteSuccess(w, view)
	}
}

// CatalogCategories lists the category strip. It does not need a till.
func CatalogCategories(lister catalog.CategoryLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if lister == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}
		sess, ok := middleware.SessionFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session"))
			return
		}
		categories, err := lister.Categories(r.Context(), sess)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"categories": categories})
	}
}
