package config

// EnvPrefix is handed to envconfig; every field carries its full variable name in its tag.
const EnvPrefix = "STOREFRONT"

const (
	AppEnvProd       = "prod"
	AppEnvProduction = "production"
)

const (
	EnvAppEnv           = "STOREFRONT_APP_ENV"
	EnvPort             = "STOREFRONT_APP_PORT"
	EnvLogLevel         = "STOREFRONT_LOG_LEVEL"
	EnvLogFormat        = "STOREFRONT_LOG_FORMAT"
	EnvBackendBaseURL   = "STOREFRONT_BACKEND_BASE_URL"
	EnvBackendTimeout   = "STOREFRONT_BACKEND_TIMEOUT"
	EnvCartDebounce     = "STOREFRONT_CART_COMMIT_DEBOUNCE"
	EnvSearchDebounce   = "STOREFRONT_SEARCH_DEBOUNCE"
	EnvSearchResultTTL  = "STOREFRONT_SEARCH_RESULT_TTL"
	EnvRedisURL         = "STOREFRONT_REDIS_URL"
	EnvGoogleMapsAPIKey = "STOREFRONT_GOOGLE_MAPS_API_KEY"
	EnvCategoryCacheTTL = "STOREFRONT_CATEGORY_CACHE_TTL"
	EnvSessionTTL       = "STOREFRONT_SESSION_TTL"
	EnvCORSOrigins      = "STOREFRONT_CORS_ALLOWED_ORIGINS"
)
