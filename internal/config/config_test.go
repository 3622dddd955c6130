package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	v.Set("DB_DSN", "file::memory:")
	v.Set("JWT_ACCESS_SECRET", "secret")

	cfg, err := fromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 7090, cfg.HTTP.Port)
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 10*time.Minute, cfg.BOQ.VigentCacheTTL)
	assert.Equal(t, int32(2), cfg.BOQ.AmountScale)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	v.Set("DB_DSN", "file::memory:")
	v.Set("DB_DRIVER", "SQLite")
	v.Set("JWT_ACCESS_SECRET", "secret")
	v.Set("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	v.Set("VIGENT_CACHE_TTL", "90s")
	v.Set("BOQ_AMOUNT_SCALE", "0")

	cfg, err := fromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 90*time.Second, cfg.BOQ.VigentCacheTTL)
	assert.Equal(t, int32(0), cfg.BOQ.AmountScale)
}

func TestFromViperValidation(t *testing.T) {
	tests := []struct {
		name string
		set  map[string]string
		want string
	}{
		{"missing dsn", map[string]string{"JWT_ACCESS_SECRET": "s"}, "DB_DSN"},
		{"missing secret", map[string]string{"DB_DSN": "x"}, "JWT_ACCESS_SECRET"},
		{"bad driver", map[string]string{"DB_DSN": "x", "JWT_ACCESS_SECRET": "s", "DB_DRIVER": "mysql"}, "DB_DRIVER"},
		{"bad scale", map[string]string{"DB_DSN": "x", "JWT_ACCESS_SECRET": "s", "BOQ_AMOUNT_SCALE": "12"}, "BOQ_AMOUNT_SCALE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			for key, value := range tt.set {
				v.Set(key, value)
			}
			_, err := fromViper(v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
