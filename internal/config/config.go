// Package config provides configuration loading and validation for the CLI and server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
)

// Extraction providers
const (
	ProviderBackend = "backend"
	ProviderGemini  = "gemini"
)

// Config represents the configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
type Config struct {
	// Backend
	BackendURL       string `json:"backend_url,omitempty" validate:"omitempty,url"` // Base URL of the ML backend REST API
	APIToken         string `json:"api_token,omitempty"`                            // Bearer token sent to the backend
	RequestTimeout   string `json:"request_timeout,omitempty"`                      // Per-request HTTP timeout ("" or "0" = none)
	ProjectID        int    `json:"project_id,omitempty" validate:"gte=0"`          // Project new models belong to
	ModelName        string `json:"model_name,omitempty"`                           // Name given to trained models
	DefaultDatasetID int    `json:"default_dataset_id,omitempty" validate:"gte=0"`  // Last-resort training dataset id

	// Intent extraction
	ExtractionProvider string `json:"extraction_provider,omitempty" validate:"omitempty,oneof=backend gemini"`
	GeminiAPIKey       string `json:"gemini_api_key,omitempty"`
	GeminiTier         string `json:"gemini_tier,omitempty" validate:"omitempty,oneof=lite standard advanced"`

	// Storage
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL URL for saved sessions
	RedisAddr   string `json:"redis_addr,omitempty"`   // Redis address for session snapshots and dataset cache
	SessionTTL  string `json:"session_ttl,omitempty"`  // Lifetime of cached session snapshots

	// Server
	Port int `json:"port,omitempty" validate:"gte=0,lte=65535"`

	// Logging
	LogMode  string `json:"log_mode,omitempty" validate:"omitempty,oneof=dev prod"`
	LogLevel string `json:"log_level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	LogFile  string `json:"log_file,omitempty"`
	Verbose  bool   `json:"verbose,omitempty"`
}

// Defaults returns the built-in configuration
func Defaults() Config {
	return Config{
		BackendURL:         "http://localhost:8000/api",
		ModelName:          "Untitled model",
		DefaultDatasetID:   1,
		ExtractionProvider: ProviderBackend,
		GeminiTier:         "standard",
		SessionTTL:         "24h",
		Port:               8080,
		LogMode:            "dev",
		LogLevel:           "info",
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// FromEnv overlays values from environment variables onto c.
// Empty variables leave the existing value untouched.
func (c *Config) FromEnv() error {
	setString(&c.BackendURL, "MODEL_BUILDER_BACKEND_URL")
	setString(&c.APIToken, "MODEL_BUILDER_API_TOKEN")
	setString(&c.RequestTimeout, "MODEL_BUILDER_REQUEST_TIMEOUT")
	setString(&c.ModelName, "MODEL_BUILDER_MODEL_NAME")
	setString(&c.ExtractionProvider, "MODEL_BUILDER_EXTRACTION_PROVIDER")
	setString(&c.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.RedisAddr, "REDIS_ADDR")
	setString(&c.SessionTTL, "MODEL_BUILDER_SESSION_TTL")
	setString(&c.LogMode, "MODEL_BUILDER_LOG_MODE")
	setString(&c.LogLevel, "MODEL_BUILDER_LOG_LEVEL")
	setString(&c.LogFile, "MODEL_BUILDER_LOG_FILE")

	var result *multierror.Error
	if err := setInt(&c.ProjectID, "MODEL_BUILDER_PROJECT_ID"); err != nil {
		result = multierror.Append(result, err)
	}
	if err := setInt(&c.DefaultDatasetID, "MODEL_BUILDER_DEFAULT_DATASET_ID"); err != nil {
		result = multierror.Append(result, err)
	}
	if err := setInt(&c.Port, "PORT"); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// Validate checks that the configuration has valid values.
// Every problem is reported, not just the first.
// Note: This doesn't check for required fields since those are handled
// by CLI flag validation after merging.
func (c *Config) Validate() error {
	var result *multierror.Error

	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				result = multierror.Append(result,
					fmt.Errorf("config error: '%s' failed '%s' validation", jsonName(fe.Field()), fe.Tag()))
			}
		} else {
			result = multierror.Append(result, err)
		}
	}

	if _, err := parseDuration(c.RequestTimeout); err != nil {
		result = multierror.Append(result, fmt.Errorf("config error: 'request_timeout': %w", err))
	}
	if _, err := parseDuration(c.SessionTTL); err != nil {
		result = multierror.Append(result, fmt.Errorf("config error: 'session_ttl': %w", err))
	}

	if c.ExtractionProvider == ProviderGemini && c.GeminiAPIKey == "" {
		result = multierror.Append(result, fmt.Errorf("config error: 'gemini_api_key' is required when extraction_provider is gemini"))
	}

	return result.ErrorOrNil()
}

// Timeout returns the parsed request timeout (zero means no timeout)
func (c *Config) Timeout() time.Duration {
	d, _ := parseDuration(c.RequestTimeout)
	return d
}

// TTL returns the parsed session snapshot lifetime
func (c *Config) TTL() time.Duration {
	d, _ := parseDuration(c.SessionTTL)
	return d
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	mergeString(&result.BackendURL, defaults.BackendURL)
	mergeString(&result.APIToken, defaults.APIToken)
	mergeString(&result.RequestTimeout, defaults.RequestTimeout)
	mergeString(&result.ModelName, defaults.ModelName)
	mergeString(&result.ExtractionProvider, defaults.ExtractionProvider)
	mergeString(&result.GeminiAPIKey, defaults.GeminiAPIKey)
	mergeString(&result.GeminiTier, defaults.GeminiTier)
	mergeString(&result.DatabaseURL, defaults.DatabaseURL)
	mergeString(&result.RedisAddr, defaults.RedisAddr)
	mergeString(&result.SessionTTL, defaults.SessionTTL)
	mergeString(&result.LogMode, defaults.LogMode)
	mergeString(&result.LogLevel, defaults.LogLevel)
	mergeString(&result.LogFile, defaults.LogFile)

	// Int fields: use default if zero
	if result.ProjectID == 0 {
		result.ProjectID = defaults.ProjectID
	}
	if result.DefaultDatasetID == 0 {
		result.DefaultDatasetID = defaults.DefaultDatasetID
	}
	if result.Port == 0 {
		result.Port = defaults.Port
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

func mergeString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return d, nil
}

// jsonName maps a struct field name to its JSON key for error messages
func jsonName(field string) string {
	var sb strings.Builder
	for i, r := range field {
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := field[i-1]
			if prev >= 'a' && prev <= 'z' {
				sb.WriteByte('_')
			}
		}
		sb.WriteRune(r)
	}
	return strings.ToLower(sb.String())
}
