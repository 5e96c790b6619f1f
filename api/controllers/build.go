package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/pcstore-storefront/api/responses"
	"github.com/angelmondragon/pcstore-storefront/api/validators"
	"github.com/angelmondragon/pcstore-storefront/internal/buildpc"
	"github.com/angelmondragon/pcstore-storefront/internal/cartpolicy"
	"github.com/angelmondragon/pcstore-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/pcstore-storefront/pkg/errors"
	"github.com/angelmondragon/pcstore-storefront/pkg/logger"
)

type chooseComponentRequest struct {
	Product  productPayload `json:"product" validate:"required"`
	Quantity *int           `json:"quantity"`
}

type buildEditResponse struct {
	Result cartpolicy.Result `json:"result"`
	Build  buildpc.View      `json:"build"`
}

func componentParam(r *http.Request) (enums.ComponentType, error) {
	component, err := enums.ParseComponentType(chi.URLParam(r, "componentType"))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown component type")
	}
	return component, nil
}

func BuildGet(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := currentWorkspace(w, r, logg)
		if !ok {
			return
		}
		view, err := ws.Build.Load(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// BuildChoose puts a product into the slot, replacing whatever occupied it.
func BuildChoose(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := currentWorkspace(w, r, logg)
		if !ok {
			return
		}

		component, err := componentParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body chooseComponentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := body.Product.toProduct()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := ws.Build.Choose(r.Context(), component, product, quantityOrDefault(body.Quantity))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, buildEditResponse{Result: result, Build: ws.Build.View()})
	}
}

func BuildSetQuantity(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := currentWorkspace(w, r, logg)
		if !ok {
			return
		}

		component, err := componentParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body setQuantityRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := ws.Build.SetQuantityRaw(r.Context(), component, rawQuantity(body.Quantity))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, buildEditResponse{Result: result, Build: ws.Build.View()})
	}
}

func BuildRemove(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := currentWorkspace(w, r, logg)
		if !ok {
			return
		}

		component, err := componentParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := ws.Build.Remove(r.Context(), component); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ws.Build.View())
	}
}

// BuildReset empties every slot.
func BuildReset(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := currentWorkspace(w, r, logg)
		if !ok {
			return
		}
		if err := ws.Build.Reset(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ws.Build.View())
	}
}
