package middleware

import (
	"context"

	"github.com/angelmondragon/pcstore-storefront/internal/workspace"
)

type contextKey string

const ctxWorkspace contextKey = "workspace"

// WorkspaceFromContext returns the session resolved by the Session middleware, or nil.
func WorkspaceFromContext(ctx context.Context) *workspace.Workspace {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxWorkspace).(*workspace.Workspace); ok {
		return v
	}
	return nil
}

func WithWorkspace(ctx context.Context, ws *workspace.Workspace) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxWorkspace, ws)
}
