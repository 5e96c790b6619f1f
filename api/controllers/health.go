package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/pcstore-storefront/api/responses"
	"github.com/angelmondragon/pcstore-storefront/pkg/config"
	pkgerrors "github.com/angelmondragon/pcstore-storefront/pkg/errors"
	"github.com/angelmondragon/pcstore-storefront/pkg/logger"
	redisclient "github.com/angelmondragon/pcstore-storefront/pkg/redis"
)

const (
	envHeader    = "X-Storefront-Env"
	readyTimeout = 2 * time.Second
)

type sessionCounter interface {
	Len() int
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady checks Redis when it is configured. redis may be nil.
func HealthReady(cfg *config.Config, logg *logger.Logger, redis redisclient.Pinger, sessions sessionCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		payload := map[string]any{"status": "ready", "redis": "disabled"}
		if redis != nil {
			ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
			defer cancel()
			if err := redis.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unavailable"))
				return
			}
			payload["redis"] = "ok"
		}
		if sessions != nil {
			payload["sessions"] = sessions.Len()
		}
		responses.WriteSuccess(w, payload)
	}
}
