package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/pcstore-storefront/api/responses"
	"github.com/angelmondragon/pcstore-storefront/internal/workspace"
	pkgerrors "github.com/angelmondragon/pcstore-storefront/pkg/errors"
	"github.com/angelmondragon/pcstore-storefront/pkg/logger"
)

const SessionHeader = "X-Session-Id"

type workspaceGetter interface {
	Get(ctx context.Context, id string) (*workspace.Workspace, error)
}

// SessionID reads the storefront session id from the request.
func SessionID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(SessionHeader))
}

// Session resolves the X-Session-Id header into a live workspace.
func Session(registry workspaceGetter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if registry == nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session registry unavailable"))
				return
			}

			id := SessionID(r)
			if id == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session"))
				return
			}

			ws, err := registry.Get(ctx, id)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}

			if logg != nil {
				ctx = logg.WithSessionID(ctx, ws.ID)
			}
			ctx = WithWorkspace(ctx, ws)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
