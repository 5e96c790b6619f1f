package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/pcstore-storefront/api/responses"
	"github.com/angelmondragon/pcstore-storefront/api/validators"
	"github.com/angelmondragon/pcstore-storefront/pkg/logger"
)

const (
	maxQueryLength   = 200
	maxPlaceIDLength = 256
)

func SearchProducts(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := currentWorkspace(w, r, logg)
		if !ok {
			return
		}

		keyword := validators.QueryString(r, "q", maxQueryLength)
		products, err := ws.Search.Products(r.Context(), keyword)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"products": products})
	}
}

func SearchAddresses(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := currentWorkspace(w, r, logg)
		if !ok {
			return
		}

		query := validators.QueryString(r, "q", maxQueryLength)
		suggestions, err := ws.Search.Addresses(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"suggestions": suggestions})
	}
}

func ResolveAddress(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := currentWorkspace(w, r, logg)
		if !ok {
			return
		}

		placeID, err := validators.PathParam(chi.URLParam(r, "placeId"), "placeId", maxPlaceIDLength)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		addr, err := ws.Search.ResolveAddress(r.Context(), placeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, addr)
	}
}
