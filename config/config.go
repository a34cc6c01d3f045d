// Package config loads and validates repolex's configuration: the
// storage root, the optional forge bearer token, and the bounds that
// govern ingestion (timeouts, file-size caps, parser concurrency,
// query timeouts) and the CLI's destructive-operation confirmation
// policy. Loading goes through viper the way the teacher's cli/root.go
// wires --config, so the same file/env/flag precedence applies here:
// flags override environment variables, which override the config
// file, which overrides the defaults below.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/repolex-dev/repolex/rerrors"
	"github.com/spf13/viper"
)

// LogLevel mirrors common.LogLevel's string values so config.json can
// name a level without importing the common package's logrus coupling.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Config is the validated, defaulted shape of {root}/config/config.json
// (spec.md section 6). Every bound is enforced by Validate before the
// value is used anywhere else in the engine.
type Config struct {
	StorageRoot                       string   `mapstructure:"storage_root"`
	AuthToken                         string   `mapstructure:"auth_token"`
	ForgeBaseURL                      string   `mapstructure:"forge_base_url"`
	LogLevel                          LogLevel `mapstructure:"log_level"`
	ProcessingTimeoutSeconds          int      `mapstructure:"processing_timeout_seconds"`
	MaxFileSizeMB                     int      `mapstructure:"max_file_size_mb"`
	MaxConcurrentParsers              int      `mapstructure:"max_concurrent_parsers"`
	QueryTimeoutSeconds               int      `mapstructure:"query_timeout_seconds"`
	RequireConfirmationForDestructive bool     `mapstructure:"require_confirmation_for_destructive"`
}

// ProcessingTimeout returns ProcessingTimeoutSeconds as a time.Duration.
func (c Config) ProcessingTimeout() time.Duration {
	return time.Duration(c.ProcessingTimeoutSeconds) * time.Second
}

// QueryTimeout returns QueryTimeoutSeconds as a time.Duration.
func (c Config) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutSeconds) * time.Second
}

// Defaults returns the configuration applied when config.json omits a
// field, per spec.md section 6.
func Defaults() Config {
	return Config{
		StorageRoot:                       "./repolex-data",
		AuthToken:                         "",
		ForgeBaseURL:                      "",
		LogLevel:                          LogLevelInfo,
		ProcessingTimeoutSeconds:          300,
		MaxFileSizeMB:                     10,
		MaxConcurrentParsers:              4,
		QueryTimeoutSeconds:               30,
		RequireConfirmationForDestructive: true,
	}
}

// Load reads configuration from path (if non-empty), environment
// variables prefixed REPOLEX_, and flags already bound to v, layering
// all three over Defaults, then validates the result. v may be nil, in
// which case a package-private viper.Viper is used -- callers that want
// flag precedence must pass the same *viper.Viper their cobra command
// bound flags to with viper.BindPFlag.
func Load(path string, v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	d := Defaults()
	v.SetDefault("storage_root", d.StorageRoot)
	v.SetDefault("auth_token", d.AuthToken)
	v.SetDefault("forge_base_url", d.ForgeBaseURL)
	v.SetDefault("log_level", string(d.LogLevel))
	v.SetDefault("processing_timeout_seconds", d.ProcessingTimeoutSeconds)
	v.SetDefault("max_file_size_mb", d.MaxFileSizeMB)
	v.SetDefault("max_concurrent_parsers", d.MaxConcurrentParsers)
	v.SetDefault("query_timeout_seconds", d.QueryTimeoutSeconds)
	v.SetDefault("require_confirmation_for_destructive", d.RequireConfirmationForDestructive)

	v.SetEnvPrefix("REPOLEX")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, rerrors.Wrap(rerrors.Configuration, err, fmt.Sprintf("read config %s", path))
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, rerrors.Wrap(rerrors.Configuration, err, "decode config")
	}

	if err := Validate(*cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces spec.md section 6's bounds. Every violation is
// collected and reported together in one Configuration error, per the
// error taxonomy's "reject change; prior config retained" recovery policy.
func Validate(c Config) error {
	v := NewValidator()
	v.RequireString("storage_root", c.StorageRoot)
	v.RequireOneOf("log_level", string(c.LogLevel), []string{"debug", "info", "warn", "error"})
	v.RequireInt("processing_timeout_seconds", c.ProcessingTimeoutSeconds, 30, 3600)
	v.RequireInt("max_file_size_mb", c.MaxFileSizeMB, 1, 100)
	v.RequireInt("max_concurrent_parsers", c.MaxConcurrentParsers, 1, 16)
	v.RequireInt("query_timeout_seconds", c.QueryTimeoutSeconds, 5, 300)
	return v.Validate()
}

// Validator accumulates configuration validation errors so a single
// Load call can report every violation at once instead of one field
// per failed attempt.
type Validator struct {
	errors []string
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{errors: make([]string, 0)}
}

// RequireString validates that a string field is not empty.
func (v *Validator) RequireString(field, value string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
	}
}

// RequireInt validates that an integer field is within [min, max].
func (v *Validator) RequireInt(field string, value, min, max int) {
	if value < min || value > max {
		v.errors = append(v.errors, fmt.Sprintf("%s must be between %d and %d, got %d", field, min, max, value))
	}
}

// RequireOneOf validates that a value is one of the allowed options.
func (v *Validator) RequireOneOf(field, value string, allowed []string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
		return
	}
	for _, option := range allowed {
		if value == option {
			return
		}
	}
	v.errors = append(v.errors, fmt.Sprintf("%s must be one of: %s", field, strings.Join(allowed, ", ")))
}

// IsValid returns true if there are no validation errors.
func (v *Validator) IsValid() bool { return len(v.errors) == 0 }

// Errors returns all validation errors.
func (v *Validator) Errors() []string { return v.errors }

// Validate runs validation and returns a Configuration error if invalid.
func (v *Validator) Validate() error {
	if v.IsValid() {
		return nil
	}
	return rerrors.New(rerrors.Configuration, strings.Join(v.errors, "; "), "fix the listed fields and reload; the prior configuration remains in effect")
}
