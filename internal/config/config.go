// Package config provides configuration loading and validation for the
// analysis pipeline.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Defaults for the analysis pipeline
const (
	DefaultMaxTokens       = 80000
	DefaultOverlapFraction = 0.20
	DefaultFastTierTTL     = 60 * 24 * time.Hour
	DefaultMaxConcurrency  = 4
	DefaultLLMTimeout      = 45 * time.Second
	DefaultOverallBudget   = 5 * time.Minute
)

// Config holds the runtime configuration for the analysis pipeline. All
// fields are optional in the JSON file; missing values use defaults or come
// from the environment.
type Config struct {
	// Upstream LLM provider
	Provider string `json:"provider,omitempty" validate:"omitempty,oneof=openai gemini"`
	APIKey   string `json:"api_key,omitempty"`
	BaseURL  string `json:"base_url,omitempty"` // OpenAI-compatible gateway override

	// Persistence
	DatabaseURL string `json:"database_url,omitempty"`

	// Chunking
	MaxTokens       int     `json:"max_tokens,omitempty" validate:"gte=0"`
	OverlapFraction float64 `json:"overlap_fraction,omitempty" validate:"gte=0,lt=1"`

	// Caching
	FastTierTTL Duration `json:"fast_tier_ttl,omitempty"`

	// Concurrency and budgets
	MaxConcurrency int      `json:"max_concurrency,omitempty" validate:"gte=0,lte=64"`
	LLMTimeout     Duration `json:"llm_timeout,omitempty"`
	OverallBudget  Duration `json:"overall_budget,omitempty"`

	// Telemetry
	OTLPEndpoint string `json:"otlp_endpoint,omitempty"`
}

// Duration wraps time.Duration with JSON string support ("30s", "45m")
type Duration time.Duration

// UnmarshalJSON accepts either a duration string or nanoseconds
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid duration value: %s", string(data))
	}
	*d = Duration(n)
	return nil
}

// MarshalJSON renders the duration as a string
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Load reads configuration from a JSON file, then applies environment
// overrides and defaults. Path may be empty to use environment only.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
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
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LLM_PROVIDER"); v != "" && c.Provider == "" {
		c.Provider = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" && c.APIKey == "" {
		c.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" && c.BaseURL == "" {
		c.BaseURL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" && c.DatabaseURL == "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("OTLP_ENDPOINT"); v != "" && c.OTLPEndpoint == "" {
		c.OTLPEndpoint = v
	}
	if v := os.Getenv("MAX_CONCURRENCY"); v != "" && c.MaxConcurrency == 0 {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxConcurrency = n
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.OverlapFraction == 0 {
		c.OverlapFraction = DefaultOverlapFraction
	}
	if c.FastTierTTL == 0 {
		c.FastTierTTL = Duration(DefaultFastTierTTL)
	}
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.LLMTimeout == 0 {
		c.LLMTimeout = Duration(DefaultLLMTimeout)
	}
	if c.OverallBudget == 0 {
		c.OverallBudget = Duration(DefaultOverallBudget)
	}
}

// Validate checks field constraints via struct tags plus cross-field rules
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			v := verrs[0]
			return fmt.Errorf("config error: field %s failed %q validation", v.Field(), v.Tag())
		}
		return fmt.Errorf("config validation failed: %w", err)
	}
	if c.OverlapFraction >= 0.5 {
		return fmt.Errorf("config error: 'overlap_fraction' must be below 0.5, got %.2f", c.OverlapFraction)
	}
	if time.Duration(c.LLMTimeout) > time.Duration(c.OverallBudget) {
		return fmt.Errorf("config error: 'llm_timeout' exceeds 'overall_budget'")
	}
	return nil
}
