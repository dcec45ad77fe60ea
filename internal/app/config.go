package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (BYTEBUY_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (BYTEBUY_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ImageBaseURL string `default:"" usage:"Base URL prepended to relative product image paths" flag:"image-base-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (BYTEBUY_API_KEY_PEPPER)" flag:"api-key-pepper"`
	Mongo        MongoConfig
	Redis        RedisConfig
	Stripe       StripeConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// MongoConfig locates the cart document store.
type MongoConfig struct {
	URL      string `usage:"MongoDB connection URI (BYTEBUY_MONGO_URL or MONGO_URL)"`
	Database string `default:"bytebuy" usage:"MongoDB database name"`
}

// RedisConfig controls the cart read cache. An empty URL disables caching.
type RedisConfig struct {
	URL string        `usage:"Redis URL, e.g. redis://localhost:6379/0 (BYTEBUY_REDIS_URL or REDIS_URL)"`
	TTL time.Duration `default:"10m" usage:"Cart cache TTL before jitter"`
}

// StripeConfig configures hosted checkout sessions.
type StripeConfig struct {
	SecretKey  string        `usage:"Stripe secret key (BYTEBUY_STRIPE_SECRET_KEY or STRIPE_SECRET)" flag:"stripe-secret-key"`
	BaseURL    string        `default:"https://api.stripe.com" usage:"Stripe API base URL"`
	Currency   string        `default:"usd" usage:"ISO currency code for line items"`
	SuccessURL string        `default:"http://localhost:3000/success" usage:"Redirect after successful payment"`
	CancelURL  string        `default:"http://localhost:3000/cart" usage:"Redirect after cancelled payment"`
	Timeout    time.Duration `default:"10s" usage:"Stripe request timeout"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
	Shared bool          `default:"true" usage:"Share counters through Redis when configured" flag:"rate-limit-shared"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "BYTEBUY",
		Files:     []string{"config.yaml", "/etc/bytebuy/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first missing or inconsistent setting.
func (c *Config) Validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set BYTEBUY_DATABASE_URL or DATABASE_URL")
	case c.Mongo.URL == "":
		return errors.New("mongo URL is required: set BYTEBUY_MONGO_URL or MONGO_URL")
	case c.Stripe.SecretKey == "":
		return errors.New("stripe secret key is required: set BYTEBUY_STRIPE_SECRET_KEY or STRIPE_SECRET")
	case c.APIKeyPepper == "":
		return errors.New("api key pepper is required: set BYTEBUY_API_KEY_PEPPER")
	case c.RateLimit.Max < 1 || c.RateLimit.Window <= 0:
		return errors.Errorf("invalid rate limit %d per %s", c.RateLimit.Max, c.RateLimit.Window)
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables that use
// conventional names to the BYTEBUY_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	fallback := func(dst *string, env string) {
		if *dst != "" {
			return
		}
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	fallback(&c.DatabaseURL, "DATABASE_URL")
	fallback(&c.Mongo.URL, "MONGO_URL")
	fallback(&c.Redis.URL, "REDIS_URL")
	fallback(&c.Stripe.SecretKey, "STRIPE_SECRET")

	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
