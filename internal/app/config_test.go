package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Addr:         defaultAddr,
		DatabaseURL:  "postgres://localhost/bytebuy",
		APIKeyPepper: "pepper",
		Mongo:        MongoConfig{URL: "mongodb://localhost:27017", Database: "bytebuy"},
		Stripe:       StripeConfig{SecretKey: "sk_test_1"},
		RateLimit:    RateLimitConfig{Max: 10, Window: time.Minute},
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "no database", mutate: func(c *Config) { c.DatabaseURL = "" }, wantErr: "database URL"},
		{name: "no mongo", mutate: func(c *Config) { c.Mongo.URL = "" }, wantErr: "mongo URL"},
		{name: "no stripe", mutate: func(c *Config) { c.Stripe.SecretKey = "" }, wantErr: "stripe secret key"},
		{name: "no pepper", mutate: func(c *Config) { c.APIKeyPepper = "" }, wantErr: "pepper"},
		{name: "bad rate limit", mutate: func(c *Config) { c.RateLimit.Max = 0 }, wantErr: "rate limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApplyPlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("MONGO_URL", "mongodb://platform")
	t.Setenv("REDIS_URL", "redis://platform:6379/0")
	t.Setenv("STRIPE_SECRET", "sk_platform")
	t.Setenv("PORT", "9000")

	cfg := Config{Addr: defaultAddr, Mongo: MongoConfig{URL: "mongodb://explicit"}}
	cfg.applyPlatformDefaults()

	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	assert.Equal(t, "mongodb://explicit", cfg.Mongo.URL)
	assert.Equal(t, "redis://platform:6379/0", cfg.Redis.URL)
	assert.Equal(t, "sk_platform", cfg.Stripe.SecretKey)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)
}

func TestApplyPlatformDefaults_ExplicitAddrWins(t *testing.T) {
	t.Setenv("PORT", "9000")

	cfg := Config{Addr: "127.0.0.1:7000"}
	cfg.applyPlatformDefaults()
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
}
