package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadWith(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "http://localhost:8080/api", cfg.API.BaseURL)
	assert.Equal(t, 3, cfg.Cache.Retry)
	assert.Equal(t, 30*time.Second, Duration(cfg.Cache.StaleTime))
	assert.Equal(t, 5*time.Minute, Duration(cfg.Cache.GCTime))
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CLINIC_API_BASE_URL", "https://clinic.example.com/api")
	t.Setenv("CLINIC_API_TOKEN", "abc")
	t.Setenv("CLINIC_CACHE_RETRY", "0")
	t.Setenv("PORT", "9001")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("JWT_SECRET_KEY", "s3cret")

	cfg, err := LoadWith(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "https://clinic.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, "abc", cfg.API.Token)
	assert.Equal(t, 0, cfg.Cache.Retry)
	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "s3cret", cfg.Auth.SecretKey)
}

func TestLoad_Invalid(t *testing.T) {
	testCases := []struct {
		name string
		env  map[string]string
	}{
		{name: "bad_base_url", env: map[string]string{"CLINIC_API_BASE_URL": "not a url"}},
		{name: "negative_retry", env: map[string]string{"CLINIC_CACHE_RETRY": "-1"}},
		{name: "port_out_of_range", env: map[string]string{"PORT": "70000"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := LoadWith(viper.New())
			assert.Error(t, err)
		})
	}
}
