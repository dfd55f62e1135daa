package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "./site", cfg.SiteDir)
	assert.Equal(t, "./site/catalog.db", cfg.CatalogPath)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 6*time.Hour, cfg.RefreshInterval)
	assert.Equal(t, 12, cfg.LookbackHours)
	assert.Equal(t, 960, cfg.RenderWidth)
	assert.Equal(t, "us-east-1", cfg.S3Region)
	assert.Equal(t, "https://nomads.ncep.noaa.gov", cfg.NOMADSBase)
	assert.Equal(t, 60*time.Second, cfg.FetchTimeout)
	assert.False(t, cfg.KafkaEnabled)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "model-imagery-published", cfg.KafkaTopic)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("SITE_DIR", "/var/www/models")
	t.Setenv("CATALOG_PATH", "/var/lib/imagery/catalog.db")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("REFRESH_INTERVAL", "1h")
	t.Setenv("LOOKBACK_HOURS", "6")
	t.Setenv("RENDER_WIDTH", "1280")
	t.Setenv("NOMADS_BASE_URL", "https://mirror.example.com")
	t.Setenv("FETCH_TIMEOUT", "15s")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_TOPIC", "custom-topic")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/www/models", cfg.SiteDir)
	assert.Equal(t, "/var/lib/imagery/catalog.db", cfg.CatalogPath)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, time.Hour, cfg.RefreshInterval)
	assert.Equal(t, 6, cfg.LookbackHours)
	assert.Equal(t, 1280, cfg.RenderWidth)
	assert.Equal(t, "https://mirror.example.com", cfg.NOMADSBase)
	assert.Equal(t, 15*time.Second, cfg.FetchTimeout)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-topic", cfg.KafkaTopic)
	assert.True(t, cfg.KafkaEnabled, "kafka auto-enables when brokers are set")
}

func TestLoad_KafkaExplicitlyDisabled(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker1:9092")
	t.Setenv("KAFKA_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.KafkaEnabled)
}

func TestLoad_KafkaEnabledWithoutBrokers(t *testing.T) {
	t.Setenv("KAFKA_ENABLED", "true")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"zero refresh interval", "REFRESH_INTERVAL", "0s", "REFRESH_INTERVAL"},
		{"negative lookback", "LOOKBACK_HOURS", "-1", "LOOKBACK_HOURS"},
		{"huge lookback", "LOOKBACK_HOURS", "96", "LOOKBACK_HOURS"},
		{"tiny render width", "RENDER_WIDTH", "10", "RENDER_WIDTH"},
		{"zero fetch timeout", "FETCH_TIMEOUT", "0s", "FETCH_TIMEOUT"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoad_MalformedDuration(t *testing.T) {
	t.Setenv("REFRESH_INTERVAL", "six hours")
	_, err := Load()
	require.Error(t, err)
}
