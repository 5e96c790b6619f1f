package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/pcstore-storefront/api/middleware"
	"github.com/angelmondragon/pcstore-storefront/api/responses"
	"github.com/angelmondragon/pcstore-storefront/api/validators"
	"github.com/angelmondragon/pcstore-storefront/internal/appstate"
	"github.com/angelmondragon/pcstore-storefront/internal/workspace"
	"github.com/angelmondragon/pcstore-storefront/pkg/auth"
	pkgerrors "github.com/angelmondragon/pcstore-storefront/pkg/errors"
	"github.com/angelmondragon/pcstore-storefront/pkg/logger"
)

type sessionOpener interface {
	Open(ctx context.Context, tokens auth.Tokens) (*workspace.Workspace, error)
}

type sessionCloser interface {
	Close(ctx context.Context, id string) error
}

type openSessionRequest struct {
	AccessToken  string `json:"accessToken" validate:"required"`
	RefreshToken string `json:"refreshToken"`
}

type sessionResponse struct {
	SessionID string            `json:"sessionId"`
	State     appstate.Snapshot `json:"state"`
}

// SessionOpen hands the backend credentials of a freshly signed-in shopper to the
// storefront and returns the session id the UI sends back in X-Session-Id.
func SessionOpen(registry sessionOpener, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if registry == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session registry unavailable"))
			return
		}

		var body openSessionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ws, err := registry.Open(r.Context(), auth.Tokens{Access: body.AccessToken, Refresh: body.RefreshToken})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set(middleware.SessionHeader, ws.ID)
		responses.WriteSuccessStatus(w, http.StatusCreated, sessionResponse{
			SessionID: ws.ID,
			State:     ws.State.Snapshot(),
		})
	}
}

// SessionClose commits what the session still holds and forgets it.
func SessionClose(registry sessionCloser, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if registry == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session registry unavailable"))
			return
		}

		id := middleware.SessionID(r)
		if id == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session"))
			return
		}
		if err := registry.Close(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "closed"})
	}
}
