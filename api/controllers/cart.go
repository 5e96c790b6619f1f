package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/pcstore-storefront/api/responses"
	"github.com/angelmondragon/pcstore-storefront/api/validators"
	"github.com/angelmondragon/pcstore-storefront/internal/cartpolicy"
	"github.com/angelmondragon/pcstore-storefront/internal/cartsync"
	pkgerrors "github.com/angelmondragon/pcstore-storefront/pkg/errors"
	"github.com/angelmondragon/pcstore-storefront/pkg/logger"
)

const maxIDLength = 64

type addItemRequest struct {
	Product  productPayload `json:"product" validate:"required"`
	Quantity *int           `json:"quantity"`
}

type setQuantityRequest struct {
	Quantity json.RawMessage `json:"quantity"`
}

type cartEditResponse struct {
	Result cartpolicy.Result `json:"result"`
	Cart   cartsync.View     `json:"cart"`
}

func CartGet(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := currentWorkspace(w, r, logg)
		if !ok {
			return
		}
		view, err := ws.Cart.Load(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CartAddItem flushes pending edits and adds the product straight away.
func CartAddItem(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := currentWorkspace(w, r, logg)
		if !ok {
			return
		}

		var body addItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := body.Product.toProduct()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := ws.Cart.Add(r.Context(), product, quantityOrDefault(body.Quantity))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cartEditResponse{Result: result, Cart: ws.Cart.View()})
	}
}

// CartSetQuantity applies the edit locally and schedules the commit. A rejected
// edit still answers 200 with the reason in the result.
func CartSetQuantity(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := currentWorkspace(w, r, logg)
		if !ok {
			return
		}

		productID, err := validators.PathParam(chi.URLParam(r, "productId"), "productId", maxIDLength)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body setQuantityRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if len(body.Quantity) == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "quantity is required"))
			return
		}

		result, err := ws.Cart.SetQuantityRaw(r.Context(), productID, rawQuantity(body.Quantity))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cartEditResponse{Result: result, Cart: ws.Cart.View()})
	}
}

func CartRemove(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := currentWorkspace(w, r, logg)
		if !ok {
			return
		}

		cartID, err := validators.PathParam(chi.URLParam(r, "cartId"), "cartId", maxIDLength)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := ws.Cart.Remove(r.Context(), cartID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ws.Cart.View())
	}
}

// CartSync commits pending edits now instead of waiting for the debounce.
func CartSync(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := currentWorkspace(w, r, logg)
		if !ok {
			return
		}
		if err := ws.Cart.Sync(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ws.Cart.View())
	}
}
