package controllers

import (
	"net/http"

	"github.com/thevault/register/api/responses"
	"github.com/thevault/register/api/validators"
	"github.com/thevault/register/internal/cart"
	"github.com/thevault/register/internal/catalog"
	pkgerrors "github.com/thevault/register/pkg/errors"
	"github.com/thevault/register/pkg/logger"
)

type addItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,min=1"`
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,min=0,max=9999"`
}

type customerRequest struct {
	Name  string `json:"name" validate:"omitempty,max=120"`
	Phone string `json:"phone" validate:"omitempty,max=32"`
	Email string `json:"email" validate:"omitempty,email,max=254"`
}

// CartFetch returns the till's checkout view, which carries the cart.
func CartFetch(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		till, _, err := tillFor(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, till.Checkout.View())
	}
}

// CartAddItem loads the product from the back office and adds one unit. The
// price is captured at this moment.
func CartAddItem(sessions Sessions, products catalog.ProductLoader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if products == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}
		till, sess, err := tillFor(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := products.Product(r.Context(), sess, payload.ProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !product.Active {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "product is not available for sale"))
			return
		}

		view, err := till.Checkout.Mutate(func(c *cart.Cart) error {
			_, err := c.AddItem(product)
			return err
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CartSetQuantity sets a line's quantity; zero removes the line.
func CartSetQuantity(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		till, _, err := tillFor(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.ParsePathID(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload setQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := till.Checkout.Mutate(func(c *cart.Cart) error {
			if !c.SetQuantity(productID, *payload.Quantity) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not in cart")
			}
			return nil
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func CartRemoveItem(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		till, _, err := tillFor(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.ParsePathID(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := till.Checkout.Mutate(func(c *cart.Cart) error {
			c.RemoveItem(productID)
			return nil
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CartSetCustomer replaces the optional customer details. A blank name sells
// to the walk-in customer.
func CartSetCustomer(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		till, _, err := tillFor(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload customerRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		info := cart.CustomerInfo{
			Name:  validators.SanitizeString(payload.Name, 120),
			Phone: validators.SanitizeString(payload.Phone, 32),
			Email: validators.SanitizeString(payload.Email, 254),
		}

		view, err := till.Checkout.Mutate(func(c *cart.Cart) error {
			c.SetCustomer(info)
			return nil
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func CartClear(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		till, _, err := tillFor(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := till.Checkout.Mutate(func(c *cart.Cart) error {
			c.Clear()
			return nil
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}
