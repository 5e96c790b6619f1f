package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/pcstore-storefront/api/controllers"
	"github.com/angelmondragon/pcstore-storefront/api/middleware"
	"github.com/angelmondragon/pcstore-storefront/internal/workspace"
	"github.com/angelmondragon/pcstore-storefront/pkg/auth"
	"github.com/angelmondragon/pcstore-storefront/pkg/config"
	"github.com/angelmondragon/pcstore-storefront/pkg/logger"
	"github.com/angelmondragon/pcstore-storefront/pkg/metrics"
	"github.com/angelmondragon/pcstore-storefront/pkg/redis"
)

type sessionRegistry interface {
	Open(ctx context.Context, tokens auth.Tokens) (*workspace.Workspace, error)
	Get(ctx context.Context, id string) (*workspace.Workspace, error)
	Close(ctx context.Context, id string) error
	Len() int
}

// NewRouter wires the storefront API. redisClient, httpMetrics and metricsHandler may be nil.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	registry sessionRegistry,
	redisClient *redis.Client,
	httpMetrics *metrics.HTTPMetrics,
	metricsHandler http.Handler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(cfg.App.CORSAllowedOrigins),
	)

	// A nil *redis.Client must not reach the middleware as a non-nil interface.
	var (
		pinger     redis.Pinger
		rateStore  middleware.RateLimitStore
		idempotent redis.IdempotencyStore
	)
	if redisClient != nil {
		pinger = redisClient
		rateStore = redisClient
		idempotent = redisClient
	}

	openPolicy := middleware.NewRateLimitPolicy("session_open", cfg.Session.OpenWindow, cfg.Session.OpenLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, pinger, registry))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.With(middleware.RateLimit(openPolicy, rateStore, logg)).Post("/session", controllers.SessionOpen(registry, logg))
		r.Delete("/session", controllers.SessionClose(registry, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Session(registry, logg))

			r.Get("/state", controllers.StateGet(logg))
			r.Post("/state/{slice}/refresh", controllers.StateRefresh(logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartGet(logg))
				r.Post("/items", controllers.CartAddItem(logg))
				r.Put("/items/{productId}", controllers.CartSetQuantity(logg))
				r.Delete("/lines/{cartId}", controllers.CartRemove(logg))
				r.Post("/sync", controllers.CartSync(logg))
			})

			r.Route("/build", func(r chi.Router) {
				r.Get("/", controllers.BuildGet(logg))
				r.Delete("/", controllers.BuildReset(logg))
				r.Put("/{componentType}", controllers.BuildChoose(logg))
				r.Patch("/{componentType}", controllers.BuildSetQuantity(logg))
				r.Delete("/{componentType}", controllers.BuildRemove(logg))
			})

			r.With(middleware.Idempotency(idempotent, cfg.Session.IdempotencyTTL, logg)).Post("/checkout", controllers.Checkout(logg))

			r.Route("/search", func(r chi.Router) {
				r.Get("/products", controllers.SearchProducts(logg))
				r.Get("/addresses", controllers.SearchAddresses(logg))
				r.Get("/addresses/{placeId}", controllers.ResolveAddress(logg))
			})

			r.Get("/notifications", controllers.Notifications(logg))
		})
	})

	return r
}
