package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML (or YAML) file.
type Config struct {
	Source      SourceConfig      `toml:"source" yaml:"source"`
	Destination DestinationConfig `toml:"destination" yaml:"destination"`
	Sync        SyncConfig        `toml:"sync" yaml:"sync"`
	Notify      NotifyConfig      `toml:"notify" yaml:"notify"`
	Database    DatabaseConfig    `toml:"database" yaml:"database"`
	Log         LogConfig         `toml:"log" yaml:"log"`
}

// SourceConfig contains the MonClub registry connection settings.
type SourceConfig struct {
	BaseURL  string     `toml:"base_url" yaml:"base_url"`
	Email    string     `toml:"email" yaml:"email"`
	Password string     `toml:"password" yaml:"password"`
	CustomID string     `toml:"custom_id" yaml:"custom_id"`
	SeasonID string     `toml:"season_id" yaml:"season_id"`
	HTTP     HTTPConfig `toml:"http" yaml:"http"`
}

// DestinationConfig contains the Brevo API connection settings.
type DestinationConfig struct {
	BaseURL string     `toml:"base_url" yaml:"base_url"`
	APIKey  string     `toml:"api_key" yaml:"api_key"`
	HTTP    HTTPConfig `toml:"http" yaml:"http"`
}

// HTTPConfig tunes a single API client.
type HTTPConfig struct {
	TimeoutSeconds int     `toml:"timeout_seconds" yaml:"timeout_seconds"`
	RateLimit      float64 `toml:"rate_limit" yaml:"rate_limit"` // requests per second
	RateBurst      int     `toml:"rate_burst" yaml:"rate_burst"`
	MaxRetries     int     `toml:"max_retries" yaml:"max_retries"`
}

// Timeout returns the configured timeout as a [time.Duration].
func (h HTTPConfig) Timeout() time.Duration {
	return time.Duration(h.TimeoutSeconds) * time.Second
}

// SyncConfig contains reconciliation settings.
type SyncConfig struct {
	FolderName string `toml:"folder_name" yaml:"folder_name"`
	ListPrefix string `toml:"list_prefix" yaml:"list_prefix"`
	PageSize   int    `toml:"page_size" yaml:"page_size"`
	BatchSize  int    `toml:"batch_size" yaml:"batch_size"`
}

// NotifyConfig contains the run notification settings.
type NotifyConfig struct {
	Enabled     bool   `toml:"enabled" yaml:"enabled"`
	AdminEmail  string `toml:"admin_email" yaml:"admin_email"`
	SenderEmail string `toml:"sender_email" yaml:"sender_email"`
	SenderName  string `toml:"sender_name" yaml:"sender_name"`
	OnErrorOnly bool   `toml:"on_error_only" yaml:"on_error_only"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path" yaml:"path"`
	MaxOpenConns int    `toml:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns" yaml:"max_idle_conns"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level" yaml:"level"`
	File  string `toml:"file" yaml:"file"`
}

// LoadConfig reads a configuration file from path and overlays it on [DefaultConfig].
//
// Files ending in .yaml or .yml are parsed as YAML, everything else as TOML.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	default:
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnvFiles loads dotenv files into the process environment.
//
// Missing files are ignored. Variables that are already set are never overwritten, so earlier files win.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overlays environment variables onto the config.
//
// lookup is usually [os.LookupEnv]; tests pass a map-backed func instead.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	set(&c.Source.BaseURL, "MONCLUB_BASE_URL")
	set(&c.Source.Email, "MONCLUB_EMAIL")
	set(&c.Source.Password, "MONCLUB_PASSWORD")
	set(&c.Source.CustomID, "MONCLUB_CUSTOM_ID")
	set(&c.Destination.APIKey, "BREVO_API_KEY")
	set(&c.Notify.AdminEmail, "ADMIN_EMAIL")
	set(&c.Notify.SenderEmail, "BREVO_SENDER_EMAIL")
	set(&c.Notify.SenderName, "BREVO_SENDER_NAME")

	if v, ok := lookup("BREVO_EMAIL_ON_ERROR_ONLY"); ok {
		c.Notify.OnErrorOnly = ParseBool(v)
	}

	c.Source.BaseURL = strings.TrimRight(c.Source.BaseURL, "/")
	c.Destination.BaseURL = strings.TrimRight(c.Destination.BaseURL, "/")
}

// Validate reports every missing value needed to run a sync.
func (c *Config) Validate() error {
	var errs []error
	require := func(v, name string) {
		if strings.TrimSpace(v) == "" {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingCredentials, name))
		}
	}

	require(c.Source.BaseURL, "source.base_url")
	require(c.Source.Email, "source.email")
	require(c.Source.Password, "source.password")
	require(c.Source.CustomID, "source.custom_id")
	require(c.Destination.BaseURL, "destination.base_url")
	require(c.Destination.APIKey, "destination.api_key")

	if c.Sync.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: sync.page_size must be positive", ErrInvalidConfig))
	}
	if c.Sync.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: sync.batch_size must be positive", ErrInvalidConfig))
	}

	return errors.Join(errs...)
}

// ParseBool accepts the truthy spellings used in env files ("true", "1", "yes").
func ParseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		return true
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return false
}
