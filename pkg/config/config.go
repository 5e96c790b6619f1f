package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App        AppConfig
	Backend    BackendConfig
	Cart       CartConfig
	Search     SearchConfig
	Session    SessionConfig
	Redis      RedisConfig
	GoogleMaps GoogleMapsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.App.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Backend.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"STOREFRONT_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`

	// CORSAllowedOrigins lists the browser origins allowed to call the storefront API.
	CORSAllowedOrigins []string `envconfig:"STOREFRONT_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, AppEnvProduction)
}

func (a AppConfig) validate() error {
	if !a.IsProd() {
		return nil
	}
	for _, origin := range a.CORSAllowedOrigins {
		if strings.TrimSpace(origin) == "*" {
			return fmt.Errorf("%s must list explicit origins in production", EnvCORSOrigins)
		}
	}
	return nil
}

// BackendConfig points at the e-commerce REST backend that owns carts, stock and orders.
type BackendConfig struct {
	BaseURL     string        `envconfig:"STOREFRONT_BACKEND_BASE_URL" required:"true"`
	Timeout     time.Duration `envconfig:"STOREFRONT_BACKEND_TIMEOUT" default:"10s"`
	RefreshPath string        `envconfig:"STOREFRONT_BACKEND_REFRESH_PATH" default:"/api/auth/refresh-token"`
	RefreshSkew time.Duration `envconfig:"STOREFRONT_BACKEND_REFRESH_SKEW" default:"30s"`
}

func (b BackendConfig) validate() error {
	parsed, err := url.Parse(strings.TrimSpace(b.BaseURL))
	if err != nil {
		return fmt.Errorf("parsing %s: %w", EnvBackendBaseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) url", EnvBackendBaseURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s is missing a host", EnvBackendBaseURL)
	}
	return nil
}

type CartConfig struct {
	CommitDebounce     time.Duration `envconfig:"STOREFRONT_CART_COMMIT_DEBOUNCE" default:"500ms"`
	CommitTimeout      time.Duration `envconfig:"STOREFRONT_CART_COMMIT_TIMEOUT" default:"10s"`
	NotificationBuffer int           `envconfig:"STOREFRONT_CART_NOTIFICATION_BUFFER" default:"50"`
}

type SearchConfig struct {
	Debounce    time.Duration `envconfig:"STOREFRONT_SEARCH_DEBOUNCE" default:"500ms"`
	ResultTTL   time.Duration `envconfig:"STOREFRONT_SEARCH_RESULT_TTL" default:"1m"`
	CategoryTTL time.Duration `envconfig:"STOREFRONT_CATEGORY_CACHE_TTL" default:"10m"`
}

// SessionConfig bounds how long an idle storefront session is kept.
type SessionConfig struct {
	TTL           time.Duration `envconfig:"STOREFRONT_SESSION_TTL" default:"24h"`
	SweepInterval time.Duration `envconfig:"STOREFRONT_SESSION_SWEEP_INTERVAL" default:"5m"`

	// OpenLimit caps session opens per client IP within OpenWindow. Needs Redis.
	OpenLimit  int           `envconfig:"STOREFRONT_SESSION_OPEN_LIMIT" default:"20"`
	OpenWindow time.Duration `envconfig:"STOREFRONT_SESSION_OPEN_WINDOW" default:"1m"`

	// IdempotencyTTL is how long a checkout response is replayed for its Idempotency-Key.
	IdempotencyTTL time.Duration `envconfig:"STOREFRONT_CHECKOUT_IDEMPOTENCY_TTL" default:"24h"`
}

// RedisConfig is optional; without a URL or address the category cache stays per session.
type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether enough settings exist to dial Redis.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type GoogleMapsConfig struct {
	APIKey   string `envconfig:"STOREFRONT_GOOGLE_MAPS_API_KEY"`
	Region   string `envconfig:"STOREFRONT_GOOGLE_MAPS_REGION" default:"VN"`
	Language string `envconfig:"STOREFRONT_GOOGLE_MAPS_LANGUAGE" default:"vi"`
}
