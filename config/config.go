// Package config loads potranslate settings from a YAML file and the
// environment.
//
// Sources are applied in this order, later ones winning:
//
//  1. built-in defaults
//  2. $XDG_CONFIG_HOME/potranslate/config.yaml (or the --config path)
//  3. POTRANSLATE_* environment variables, including a .env file
//  4. command-line flags (applied by the caller)
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/minios-linux/potranslate/provider"
	"github.com/minios-linux/potranslate/translate"
)

const (
	dirName  = "potranslate"
	fileName = "config.yaml"

	// EnvPrefix prefixes every environment variable read by LoadEnv.
	EnvPrefix = "POTRANSLATE_"
)

// ---------------------------------------------------------------------------
// Schema
// ---------------------------------------------------------------------------

// Config holds the settings of a translation run.
type Config struct {
	Provider string `yaml:"provider,omitempty" env:"PROVIDER"`
	Model    string `yaml:"model,omitempty" env:"MODEL"`
	// APIKey is never read from the config file; keys belong in the
	// credential store.
	APIKey  string `yaml:"-" env:"API_KEY"`
	BaseURL string `yaml:"base_url,omitempty" env:"BASE_URL"`

	SourceLang string `yaml:"source_lang,omitempty"`
	TargetLang string `yaml:"target_lang,omitempty"`

	BatchSize   int           `yaml:"batch_size,omitempty" env:"BATCH_SIZE"`
	MaxAttempts int           `yaml:"max_attempts,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty" env:"TIMEOUT"`
	Temperature float64       `yaml:"temperature,omitempty"`
	MaxTokens   int           `yaml:"max_tokens,omitempty"`

	Proxy string `yaml:"proxy,omitempty" env:"PROXY"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Provider:    provider.OpenAI,
		SourceLang:  "en",
		BatchSize:   translate.DefaultBatchSize,
		MaxAttempts: translate.DefaultMaxAttempts,
		Timeout:     provider.DefaultTimeout,
		Temperature: provider.DefaultTemperature,
		MaxTokens:   provider.DefaultMaxTokens,
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// DefaultPath returns the config file location. It respects
// $XDG_CONFIG_HOME and falls back to ~/.config.
func DefaultPath() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, dirName, fileName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", dirName, fileName), nil
}

// Load reads the config file at path over the defaults. An empty path
// selects DefaultPath, which may be missing; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return cfg, nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// LoadEnv overlays POTRANSLATE_* variables on cfg. The given dotenv files
// (".env" when none) are loaded first; missing files are ignored and
// variables already set in the environment are not overridden.
func LoadEnv(cfg *Config, dotenv ...string) error {
	if len(dotenv) == 0 {
		dotenv = []string{".env"}
	}
	for _, name := range dotenv {
		if err := godotenv.Load(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", name, err)
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// Validate checks cfg and returns warnings for settings that work but are
// unusual.
func (c *Config) Validate() (warnings []string, err error) {
	spec, ok := provider.Lookup(c.Provider)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (available: %s)", c.Provider, strings.Join(provider.IDs(), ", "))
	}
	if spec.Endpoint == "" && c.BaseURL == "" {
		return nil, fmt.Errorf("provider %s requires base_url", spec.ID)
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.MaxAttempts <= 0 {
		return nil, fmt.Errorf("max_attempts must be positive, got %d", c.MaxAttempts)
	}
	if c.Timeout < 0 {
		return nil, fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2, got %g", c.Temperature)
	}

	if !provider.IsRecommendedBatchSize(c.BatchSize) {
		warnings = append(warnings, fmt.Sprintf("batch size %d is not one of the recommended sizes %v", c.BatchSize, provider.RecommendedBatchSizes))
	}
	if c.Model != "" && spec.ID != provider.Custom && !slices.Contains(spec.Models, c.Model) {
		warnings = append(warnings, fmt.Sprintf("model %q is not a known %s model", c.Model, spec.Name))
	}
	return warnings, nil
}

// ProviderConfig converts c into a provider.Config.
func (c *Config) ProviderConfig() provider.Config {
	return provider.Config{
		Provider:    c.Provider,
		Endpoint:    c.BaseURL,
		APIKey:      c.APIKey,
		Model:       c.Model,
		Timeout:     c.Timeout,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
		Proxy:       c.Proxy,
	}
}
