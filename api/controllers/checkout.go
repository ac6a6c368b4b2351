package controllers

import (
	"net/http"

	"github.com/thevault/register/api/responses"
	"github.com/thevault/register/api/validators"
	"github.com/thevault/register/internal/checkout"
	"github.com/thevault/register/pkg/logger"
)

type submitRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required,payment_method"`
}

func CheckoutFetch(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		till, _, err := tillFor(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, till.Checkout.View())
	}
}

// CheckoutOpen moves the till to payment selection.
func CheckoutOpen(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return transition(sessions, logg, (*checkout.Orchestrator).Open)
}

// CheckoutCancel returns to the cart without touching it.
func CheckoutCancel(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return transition(sessions, logg, (*checkout.Orchestrator).Cancel)
}

func transition(sessions Sessions, logg *logger.Logger, step func(*checkout.Orchestrator) (checkout.View, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		till, _, err := tillFor(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := step(till.Checkout)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CheckoutSubmit records the cart as a sale. On failure the cart is kept and
// the error is returned; GET /checkout shows the failed state.
func CheckoutSubmit(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		till, sess, err := tillFor(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload submitRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := till.Checkout.Submit(r.Context(), sess, payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}
