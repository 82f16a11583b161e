package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// Config holds the defaults a conversion runs with, in the absence of an
// overriding CLI flag.
// Configure via YAML file (recbz.yaml or CONFIG_FILE) or environment
// variables. Environment variables use uppercase with underscores (e.g.
// FORMAT_BLACKLIST).
type Config struct {
	Quality         int    `koanf:"quality" json:"quality" validate:"min=1,max=100"`
	Parallelism     int    `koanf:"parallelism" json:"parallelism"`
	SampleCount     int    `koanf:"sample_count" json:"sample_count" validate:"min=1"`
	CompressZip     bool   `koanf:"compress_zip" json:"compress_zip"`
	IgnorePageError bool   `koanf:"ignore_page_error" json:"ignore_page_error"`
	RTL             bool   `koanf:"rtl" json:"rtl"`
	FormatBlacklist string `koanf:"format_blacklist" json:"format_blacklist"`
	OutputFormat    string `koanf:"output_format" json:"output_format" validate:"required"`
}

// defaults returns a Config with default values.
func defaults() *Config {
	return &Config{
		Quality:      80,
		Parallelism:  0, // 0 means runtime.NumCPU(), resolved by the worker pool
		SampleCount:  12,
		CompressZip:  false,
		OutputFormat: "cbz",
	}
}

// New creates a new Config by loading from file and environment variables.
// Load order (later sources override earlier):
//  1. Defaults
//  2. Config file (recbz.yaml or CONFIG_FILE env var)
//  3. Environment variables
func New() (*Config, error) {
	k := koanf.New(".")

	// 1. Load defaults
	cfg := defaults()

	// 2. Load from config file (if exists)
	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = "recbz.yaml"
	}
	if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
		// File not existing is fine - we'll use defaults and env vars
		if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to load config file %s", configPath)
		}
	}

	// 3. Load environment variables (FORMAT_BLACKLIST -> format_blacklist)
	err := k.Load(env.Provider("", ".", strings.ToLower), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load environment variables")
	}

	// Unmarshal into config struct
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	// Validate required fields
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewForTest creates a Config for testing with minimal required fields.
func NewForTest() *Config {
	cfg := defaults()
	cfg.Parallelism = 1
	return cfg
}

// validateConfig validates the config and returns user-friendly error messages.
func validateConfig(cfg *Config) error {
	validate := validator.New()
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Wrap(err, "config validation failed")
	}

	var msgs []string
	for _, e := range validationErrors {
		field := e.StructField()
		tag := e.Tag()

		switch tag {
		case "required":
			envVar := strings.ToUpper(toSnakeCase(field))
			yamlKey := toSnakeCase(field)
			msgs = append(msgs, fmt.Sprintf(
				"missing required config: %s\n  Set via environment variable: %s\n  Or in config file: %s",
				field, envVar, yamlKey,
			))
		default:
			msgs = append(msgs, fmt.Sprintf("invalid config %s: %s", field, tag))
		}
	}

	return errors.New("configuration validation failed:\n\n" + strings.Join(msgs, "\n\n"))
}

// toSnakeCase converts PascalCase to snake_case.
func toSnakeCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result.WriteRune('_')
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}
