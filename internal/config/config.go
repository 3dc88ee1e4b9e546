// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces every configuration variable (XERT_USERNAME etc.).
const envPrefix = "XERT_"

// Defaults for optional variables.
const (
	defaultHAURL        = "http://homeassistant:8123"
	defaultInterval     = 15 * time.Minute
	defaultLookbackDays = 90
	defaultMargin       = 5 * time.Minute
	defaultDBPath       = "xertbridge.db"
	defaultListenAddr   = "127.0.0.1:8093"
	defaultLogLevel     = "info"
)

// Config holds the validated application configuration.
type Config struct {
	Username    string
	Password    string
	HAURL       string
	HAWebhookID string
	HAToken     string

	TrainingInfoInterval time.Duration
	ActivitiesInterval   time.Duration
	LookbackDays         int
	TokenRefreshMargin   time.Duration

	DBPath     string
	SecretKey  []byte // 32-byte AES key, nil when XERT_SECRET_KEY is unset.
	ListenAddr string
	LogLevel   string
}

// rawConfig is the flat shape unmarshaled from the environment. Interval
// variables are plain seconds, matching the add-on's option schema.
type rawConfig struct {
	Username             string `koanf:"username"`
	Password             string `koanf:"password"`
	HAURL                string `koanf:"ha_url"`
	HAWebhookID          string `koanf:"ha_webhook_id"`
	HAToken              string `koanf:"ha_token"`
	TrainingInfoInterval int    `koanf:"training_info_interval"`
	ActivitiesInterval   int    `koanf:"activities_interval"`
	LookbackDays         int    `koanf:"lookback_days"`
	TokenRefreshMargin   int    `koanf:"token_refresh_margin"`
	DBPath               string `koanf:"db_path"`
	SecretKey            string `koanf:"secret_key"`
	ListenAddr           string `koanf:"listen_addr"`
	LogLevel             string `koanf:"log_level"`
}

// Load reads configuration from XERT_-prefixed environment variables and
// returns a validated Config. Required: XERT_USERNAME, XERT_PASSWORD,
// XERT_HA_WEBHOOK_ID. Everything else has a documented default.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, envPrefix)), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var raw rawConfig
	if err := k.UnmarshalWithConf("", &raw, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &raw,
			WeaklyTypedInput: true,
			TagName:          "koanf",
		},
	}); err != nil {
		return nil, fmt.Errorf("unmarshal environment: %w", err)
	}

	cfg := &Config{
		Username:             raw.Username,
		Password:             raw.Password,
		HAURL:                raw.HAURL,
		HAWebhookID:          raw.HAWebhookID,
		HAToken:              raw.HAToken,
		TrainingInfoInterval: time.Duration(raw.TrainingInfoInterval) * time.Second,
		ActivitiesInterval:   time.Duration(raw.ActivitiesInterval) * time.Second,
		LookbackDays:         raw.LookbackDays,
		TokenRefreshMargin:   time.Duration(raw.TokenRefreshMargin) * time.Second,
		DBPath:               raw.DBPath,
		ListenAddr:           raw.ListenAddr,
		LogLevel:             raw.LogLevel,
	}

	applyDefaults(cfg)

	if cfg.Username == "" {
		return nil, fmt.Errorf("XERT_USERNAME is required")
	}
	if cfg.Password == "" {
		return nil, fmt.Errorf("XERT_PASSWORD is required")
	}
	if cfg.HAWebhookID == "" {
		return nil, fmt.Errorf("XERT_HA_WEBHOOK_ID is required")
	}
	if cfg.TrainingInfoInterval <= 0 || cfg.ActivitiesInterval <= 0 {
		return nil, fmt.Errorf("poll intervals must be positive")
	}
	if cfg.LookbackDays <= 0 {
		return nil, fmt.Errorf("XERT_LOOKBACK_DAYS must be positive")
	}

	if raw.SecretKey != "" {
		key, err := hex.DecodeString(raw.SecretKey)
		if err != nil {
			return nil, fmt.Errorf("XERT_SECRET_KEY is not valid hex: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("XERT_SECRET_KEY must decode to 32 bytes, got %d", len(key))
		}
		cfg.SecretKey = key
	}

	return cfg, nil
}

// applyDefaults fills in defaults for unset optional fields.
func applyDefaults(cfg *Config) {
	if cfg.HAURL == "" {
		cfg.HAURL = defaultHAURL
	}
	if cfg.TrainingInfoInterval == 0 {
		cfg.TrainingInfoInterval = defaultInterval
	}
	if cfg.ActivitiesInterval == 0 {
		cfg.ActivitiesInterval = defaultInterval
	}
	if cfg.LookbackDays == 0 {
		cfg.LookbackDays = defaultLookbackDays
	}
	if cfg.TokenRefreshMargin == 0 {
		cfg.TokenRefreshMargin = defaultMargin
	}
	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
}

// Level maps the configured log level to a slog.Level, defaulting to Info
// for unrecognized values.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
