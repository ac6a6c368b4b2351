package controllers

import (
	"net/http"
	"strings"

	"github.com/thevault/register/api/responses"
	"github.com/thevault/register/api/validators"
	"github.com/thevault/register/internal/sales"
	"github.com/thevault/register/pkg/enums"
	pkgerrors "github.com/thevault/register/pkg/errors"
	"github.com/thevault/register/pkg/logger"
)

// SalesList loads one page of the sales history. A failed load keeps the
// previous page and reports the problem in the view's error field.
func SalesList(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		till, sess, err := tillFor(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter, err := parseSalesFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, till.History.Load(r.Context(), sess, filter))
	}
}

func parseSalesFilter(r *http.Request) (sales.Filter, error) {
	q := r.URL.Query()
	filter := sales.Filter{Search: validators.SanitizeString(q.Get("search"), 120)}

	if raw := strings.TrimSpace(q.Get("payment_method")); raw != "" && raw != "all" {
		pm, err := enums.ParsePaymentMethod(raw)
		if err != nil {
			return sales.Filter{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported payment method").WithDetails(map[string]any{"field": "payment_method"})
		}
		filter.PaymentMethod = pm
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" && raw != "all" {
		status, err := enums.ParseSaleStatus(raw)
		if err != nil {
			return sales.Filter{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported sale status").WithDetails(map[string]any{"field": "status"})
		}
		filter.Status = status
	}

	var err error
	if filter.From, err = validators.ParseQueryDate(r, "from"); err != nil {
		return sales.Filter{}, err
	}
	if filter.To, err = validators.ParseQueryDate(r, "to"); err != nil {
		return sales.Filter{}, err
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return sales.Filter{}, pkgerrors.New(pkgerrors.CodeValidation, "to must not be before from")
	}
	if filter.Page, err = validators.ParseQueryInt(r, "page", 1, 1, 100000); err != nil {
		return sales.Filter{}, err
	}
	if filter.PerPage, err = validators.ParseQueryInt(r, "per_page", 0, 1, sales.MaxPerPage); err != nil {
		return sales.Filter{}, err
	}
	return filter, nil
}

func SalesFollowLatest(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		till, _, err := tillFor(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, till.History.FollowLatest())
	}
}

// SalesSelect pins a sale and stops following the newest one.
func SalesSelect(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		till, _, err := tillFor(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		saleID, err := validators.ParsePathID(r, "saleID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := till.History.Select(saleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// SalesSelected returns the selected sale with its items.
func SalesSelected(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		till, sess, err := tillFor(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sale, err := till.History.Detail(r.Context(), sess)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sale)
	}
}
