package controllers

import (
	"net/http"

	"github.com/angelmondragon/pcstore-storefront/api/responses"
	"github.com/angelmondragon/pcstore-storefront/api/validators"
	"github.com/angelmondragon/pcstore-storefront/pkg/logger"
)

type checkoutRequest struct {
	TypePayment string `json:"typePayment" validate:"required,max=32"`
}

// Checkout places the order for the current cart. Online payments answer with the
// gateway redirect.
func Checkout(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := currentWorkspace(w, r, logg)
		if !ok {
			return
		}

		var body checkoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := ws.Checkout.Checkout(r.Context(), body.TypePayment)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
