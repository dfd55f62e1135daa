package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	SiteDir         string        `env:"SITE_DIR" envDefault:"./site"`
	CatalogPath     string        `env:"CATALOG_PATH" envDefault:""`
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"json"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" envDefault:"6h"`
	LookbackHours   int           `env:"LOOKBACK_HOURS" envDefault:"12"`
	RenderWidth     int           `env:"RENDER_WIDTH" envDefault:"960"`

	// Data sources.
	S3Region     string        `env:"S3_REGION" envDefault:"us-east-1"`
	NOMADSBase   string        `env:"NOMADS_BASE_URL" envDefault:"https://nomads.ncep.noaa.gov"`
	FetchTimeout time.Duration `env:"FETCH_TIMEOUT" envDefault:"60s"`

	// Kafka publish notifications (feature-flagged via KAFKA_BROKERS / KAFKA_ENABLED).
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"model-imagery-published"`
	KafkaEnabled bool     `env:"KAFKA_ENABLED"`
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	// Kafka turns on when brokers are configured, unless explicitly toggled.
	if _, set := os.LookupEnv("KAFKA_ENABLED"); !set {
		cfg.KafkaEnabled = len(cfg.KafkaBrokers) > 0
	}

	if cfg.CatalogPath == "" {
		cfg.CatalogPath = cfg.SiteDir + "/catalog.db"
	}

	if cfg.SiteDir == "" {
		return nil, errors.New("SITE_DIR is required")
	}
	if cfg.RefreshInterval <= 0 {
		return nil, errors.New("invalid REFRESH_INTERVAL")
	}
	if cfg.LookbackHours <= 0 || cfg.LookbackHours > 48 {
		return nil, errors.New("LOOKBACK_HOURS must be between 1 and 48")
	}
	if cfg.RenderWidth < 64 {
		return nil, errors.New("RENDER_WIDTH must be at least 64")
	}
	if cfg.FetchTimeout <= 0 {
		return nil, errors.New("invalid FETCH_TIMEOUT")
	}
	if cfg.NOMADSBase == "" {
		return nil, errors.New("NOMADS_BASE_URL is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}

	return cfg, nil
}
