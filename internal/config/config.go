// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.pagepal/config.yaml or ./config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - AI: model selection and history window for response synthesis
//   - Sessions: Redis cache connection and idle TTL (see validation.go for ranges)
//   - Server: listen address, allowed origins, rate limiting
//   - Weather: upstream geocoding/forecast endpoints
//
// Security: the Redis password is never logged; masked in MarshalJSON/String.
// Validation: fail-fast range checks in validation.go with sentinel errors
// checked via errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	// DefaultModelName is the default Gemini model for response synthesis.
	DefaultModelName = "gemini-2.5-flash"

	// DefaultMaxHistoryMessages bounds the history window sent to the model.
	// History in the session store itself is unbounded; only the synthesis
	// window is capped.
	DefaultMaxHistoryMessages = 40

	// MaxAllowedHistoryMessages is the absolute maximum to prevent blowing
	// the model context window.
	MaxAllowedHistoryMessages = 500

	// DefaultSessionTTLMinutes is the idle expiry for cached sessions.
	DefaultSessionTTLMinutes = 30
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, API keys), update MarshalJSON.
type Config struct {
	// AI model configuration
	ModelName          string `mapstructure:"model_name" json:"model_name"`
	MaxHistoryMessages int    `mapstructure:"max_history_messages" json:"max_history_messages"`

	// Session cache configuration
	RedisAddr         string `mapstructure:"redis_addr" json:"redis_addr"`
	RedisPassword     string `mapstructure:"redis_password" json:"redis_password"` // SENSITIVE: masked in MarshalJSON
	RedisDB           int    `mapstructure:"redis_db" json:"redis_db"`
	SessionTTLMinutes int    `mapstructure:"session_ttl_minutes" json:"session_ttl_minutes"`

	// Server configuration
	Host           string   `mapstructure:"host" json:"host"`
	Port           int      `mapstructure:"port" json:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins" json:"allowed_origins"`
	RatePerSecond  float64  `mapstructure:"rate_per_second" json:"rate_per_second"`
	RateBurst      int      `mapstructure:"rate_burst" json:"rate_burst"`

	// Weather tool upstream endpoints (overridable for testing / proxies)
	WeatherGeocodeURL  string `mapstructure:"weather_geocode_url" json:"weather_geocode_url"`
	WeatherForecastURL string `mapstructure:"weather_forecast_url" json:"weather_forecast_url"`
	WeatherTimeoutMS   int    `mapstructure:"weather_timeout_ms" json:"weather_timeout_ms"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".pagepal")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("model_name", DefaultModelName)
	viper.SetDefault("max_history_messages", DefaultMaxHistoryMessages)

	// Session cache defaults. An unreachable Redis is tolerated at runtime
	// (the store falls back to its in-process tier), so a default local addr
	// keeps development zero-config.
	viper.SetDefault("redis_addr", "localhost:6379")
	viper.SetDefault("redis_db", 0)
	viper.SetDefault("session_ttl_minutes", DefaultSessionTTLMinutes)

	// Server defaults
	viper.SetDefault("host", "0.0.0.0")
	viper.SetDefault("port", 3001)
	viper.SetDefault("allowed_origins", []string{"*"})
	viper.SetDefault("rate_per_second", 10.0)
	viper.SetDefault("rate_burst", 60)

	// Weather tool defaults (Open-Meteo, no API key required)
	viper.SetDefault("weather_geocode_url", "https://geocoding-api.open-meteo.com/v1/search")
	viper.SetDefault("weather_forecast_url", "https://api.open-meteo.com/v1/forecast")
	viper.SetDefault("weather_timeout_ms", 10000)
}

// bindEnvVariables binds environment variables explicitly.
//
// NOTE: GEMINI_API_KEY is read directly by Genkit, not via Viper. The app
// container checks its presence to decide whether synthesis is available.
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail).
	// If this panics, it's a BUG in our code, not a runtime error.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("model_name", "PAGEPAL_MODEL_NAME")
	mustBind("redis_addr", "PAGEPAL_REDIS_ADDR")
	mustBind("redis_password", "PAGEPAL_REDIS_PASSWORD")
	mustBind("redis_db", "PAGEPAL_REDIS_DB")
	mustBind("host", "PAGEPAL_HOST")
	mustBind("port", "PAGEPAL_PORT")
	mustBind("allowed_origins", "PAGEPAL_ALLOWED_ORIGINS")
	mustBind("rate_burst", "PAGEPAL_RATE_BURST")
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 chars or fewer are fully masked; longer secrets show the first
// and last 2 characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.RedisPassword = maskSecret(a.RedisPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
