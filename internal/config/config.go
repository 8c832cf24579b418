// Package config loads and validates configuration for the route data
// service and the playback client. Values come from defaults, then an
// optional YAML file named by CONFIG_FILE, then environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config holds all configuration values for the API server.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string `yaml:"port" validate:"required,numeric"`

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string `yaml:"database_url"`

	// LogLevel controls the minimum log level. Defaults to "info".
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:5173"]. CORS_ORIGINS is comma-separated.
	CORSOrigins []string `yaml:"cors_origins" validate:"dive,url"`

	// Timezone is the IANA zone route windows and labels are expressed in.
	// Defaults to "UTC".
	Timezone string `yaml:"timezone" validate:"required"`

	// StopRadiusM and StopMinDwell tune stop detection.
	StopRadiusM  float64       `yaml:"stop_radius_m" validate:"gt=0"`
	StopMinDwell time.Duration `yaml:"stop_min_dwell" validate:"gt=0"`
}

// PlaybackConfig holds the configuration of the playback client.
type PlaybackConfig struct {
	// RouteAPIURL is the base URL of the route data service. Required.
	RouteAPIURL string `yaml:"route_api_url"`

	// Speed is the interval between playback ticks. Defaults to 500ms.
	Speed time.Duration `yaml:"speed" validate:"gt=0"`

	// HTTPTimeout bounds each request to the route data service.
	// Defaults to 15s.
	HTTPTimeout time.Duration `yaml:"http_timeout" validate:"gt=0"`

	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`
}

// file is the layout of the CONFIG_FILE document.
type file struct {
	Server   Config         `yaml:"server"`
	Playback PlaybackConfig `yaml:"playback"`
}

// Load reads the server configuration.
// Returns an error listing any required variables that are not set, or
// describing the first invalid value.
func Load() (Config, error) {
	f := file{Server: Config{
		Port:         "8080",
		LogLevel:     "info",
		CORSOrigins:  []string{"http://localhost:5173"},
		Timezone:     "UTC",
		StopRadiusM:  100,
		StopMinDwell: 5 * time.Minute,
	}}
	if err := readFile(&f); err != nil {
		return Config{}, err
	}
	cfg := f.Server

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.Timezone = getEnv("TIMEZONE", cfg.Timezone)
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitCSV(v)
	}

	var err error
	if cfg.StopRadiusM, err = getFloat("STOP_RADIUS_M", cfg.StopRadiusM); err != nil {
		return Config{}, err
	}
	if cfg.StopMinDwell, err = getDuration("STOP_MIN_DWELL", cfg.StopMinDwell); err != nil {
		return Config{}, err
	}

	var missing []string
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	if err := check(cfg); err != nil {
		return Config{}, err
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: TIMEZONE: %w", err)
	}
	return cfg, nil
}

// Location returns the configured time zone. Load has already verified it.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LoadPlayback reads the playback client configuration.
func LoadPlayback() (PlaybackConfig, error) {
	f := file{Playback: PlaybackConfig{
		Speed:       500 * time.Millisecond,
		HTTPTimeout: 15 * time.Second,
		LogLevel:    "info",
	}}
	if err := readFile(&f); err != nil {
		return PlaybackConfig{}, err
	}
	cfg := f.Playback

	cfg.RouteAPIURL = getEnv("ROUTE_API_URL", cfg.RouteAPIURL)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	var err error
	if cfg.Speed, err = getDuration("PLAYBACK_SPEED", cfg.Speed); err != nil {
		return PlaybackConfig{}, err
	}
	if cfg.HTTPTimeout, err = getDuration("HTTP_TIMEOUT", cfg.HTTPTimeout); err != nil {
		return PlaybackConfig{}, err
	}

	if cfg.RouteAPIURL == "" {
		return PlaybackConfig{}, errors.New("required environment variables not set: ROUTE_API_URL")
	}
	if err := validate.Var(cfg.RouteAPIURL, "url"); err != nil {
		return PlaybackConfig{}, fmt.Errorf("invalid configuration: ROUTE_API_URL %q is not a URL", cfg.RouteAPIURL)
	}
	if err := check(cfg); err != nil {
		return PlaybackConfig{}, err
	}
	return cfg, nil
}

// readFile decodes CONFIG_FILE over f. Fields absent from the file keep
// their defaults.
func readFile(f *file) error {
	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config.readFile: %w", err)
	}
	if err := yaml.Unmarshal(b, f); err != nil {
		return fmt.Errorf("config.readFile: %s: %w", path, err)
	}
	return nil
}

func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("invalid configuration: %s fails %q (got %v)", fe.Field(), fe.Tag(), fe.Value())
	}
	return fmt.Errorf("invalid configuration: %w", err)
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid configuration: %s: %w", key, err)
	}
	return f, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid configuration: %s: %w", key, err)
	}
	return d, nil
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
