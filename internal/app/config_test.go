package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		args    []string
		check   func(t *testing.T, cfg *Config)
		wantErr string
	}{
		{
			name: "defaults",
			env: map[string]string{
				"SWAG_DATABASE_URL": "postgres://localhost/swag",
				"SWAG_REDIS_URL":    "redis://localhost:6379/0",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, defaultAddr, cfg.Addr)
				assert.Equal(t, 100, cfg.RateLimit.Max)
				assert.Equal(t, time.Minute, cfg.RateLimit.Window)
				assert.Equal(t, []string{"*"}, cfg.CORS.Origins)
				assert.Equal(t, 168*time.Hour, cfg.Cart.TTL)
				assert.Equal(t, 5*time.Minute, cfg.Analytics.CacheTTL)
				assert.Equal(t, 3*time.Second, cfg.Graceful.ReadinessDelay)
				assert.Equal(t, 15*time.Second, cfg.Graceful.ShutdownTimeout)
			},
		},
		{
			name: "platform variables",
			env: map[string]string{
				"DATABASE_URL": "postgres://platform/db",
				"REDIS_URL":    "redis://platform:6379",
				"PORT":         "9000",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
				assert.Equal(t, "redis://platform:6379", cfg.RedisURL)
				assert.Equal(t, "0.0.0.0:9000", cfg.Addr)
			},
		},
		{
			name: "prefixed variables win",
			env: map[string]string{
				"SWAG_DATABASE_URL":   "postgres://swag/db",
				"DATABASE_URL":        "postgres://platform/db",
				"SWAG_REDIS_URL":      "redis://swag",
				"SWAG_CART_TTL":       "1h",
				"SWAG_RATE_LIMIT_MAX": "5",
				"SWAG_API_KEY_PEPPER": "pepper",
				"SWAG_SEED_API_KEY":   "unrelated",
				"SWAG_IMAGE_BASE_URL": "https://cdn.example.com",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "postgres://swag/db", cfg.DatabaseURL)
				assert.Equal(t, time.Hour, cfg.Cart.TTL)
				assert.Equal(t, 5, cfg.RateLimit.Max)
				assert.Equal(t, "pepper", cfg.APIKeyPepper)
				assert.Equal(t, "https://cdn.example.com", cfg.ImageBaseURL)
			},
		},
		{
			name: "flags",
			env:  map[string]string{"SWAG_REDIS_URL": "redis://swag"},
			args: []string{"-database-url=postgres://flag/db"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "postgres://flag/db", cfg.DatabaseURL)
			},
		},
		{
			name:    "missing database",
			env:     map[string]string{"SWAG_REDIS_URL": "redis://swag"},
			wantErr: "database URL is required",
		},
		{
			name:    "missing redis",
			env:     map[string]string{"SWAG_DATABASE_URL": "postgres://swag/db"},
			wantErr: "redis URL is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"DATABASE_URL", "REDIS_URL", "PORT"} {
				t.Setenv(k, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := loadConfig(append([]string{}, tt.args...))
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}
