package controllers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/pcstore-storefront/api/responses"
	"github.com/angelmondragon/pcstore-storefront/internal/appstate"
	"github.com/angelmondragon/pcstore-storefront/pkg/logger"
)

func StateGet(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := currentWorkspace(w, r, logg)
		if !ok {
			return
		}
		responses.WriteSuccess(w, ws.State.Snapshot())
	}
}

// StateRefresh re-reads one slice from the backend and returns the whole snapshot.
func StateRefresh(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := currentWorkspace(w, r, logg)
		if !ok {
			return
		}

		slice, err := appstate.ParseSlice(chi.URLParam(r, "slice"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if slice == appstate.SliceCategories {
			// an explicit refresh skips the shared category cache
			if err := ws.State.InvalidateCategories(r.Context()); err != nil {
				logg.Warn(r.Context(), fmt.Sprintf("category cache invalidate failed: %v", err))
			}
		}
		if err := ws.State.Refresh(r.Context(), slice); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ws.State.Snapshot())
	}
}
