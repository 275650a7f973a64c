// Package config holds the endpoint settings a provider needs to reach an
// OpenAI-compatible server: API key, base URL and default model.
//
// Settings come from a YAML file, environment variables, or both. Environment
// variables always take precedence over the file.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/i2y/oaicompat/provider"
)

// Environment variables read by ApplyEnv.
const (
	EnvAPIKey  = "OPENAI_API_KEY"
	EnvBaseURL = "OPENAI_BASE_URL"
	EnvModel   = "OPENAI_MODEL"
	EnvTimeout = "OPENAI_TIMEOUT"
)

// Default values.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
)

// Endpoint describes one OpenAI-compatible endpoint.
type Endpoint struct {
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url"`
	DefaultModel string        `yaml:"default_model"`
	Timeout      time.Duration `yaml:"timeout"`
}

// Default returns an Endpoint for api.openai.com with no API key.
func Default() Endpoint {
	return Endpoint{
		BaseURL:      DefaultBaseURL,
		DefaultModel: DefaultModel,
	}
}

// FromEnv returns Default with environment overrides applied. The result is
// not validated.
func FromEnv() Endpoint {
	e := Default()
	e.ApplyEnv()
	return e
}

// Load reads an Endpoint from a YAML file, applies environment overrides and
// validates the result. Fields missing from the file keep their defaults.
func Load(path string) (*Endpoint, error) {
	return LoadOnto(path, Default())
}

// LoadOnto is Load with base in place of Default: fields missing from the
// file keep base's values. Environment variables still win over both.
func LoadOnto(path string, base Endpoint) (*Endpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %q: %w", path, err)
	}

	e := base
	if err := yaml.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("parsing config file %q: %w", path, err)
	}

	e.ApplyEnv()

	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

// ApplyEnv overrides fields from the OPENAI_* environment variables. Unset or
// empty variables leave the field alone; an unparsable timeout is ignored.
func (e *Endpoint) ApplyEnv() {
	if v := os.Getenv(EnvAPIKey); v != "" {
		e.APIKey = v
	}
	if v := os.Getenv(EnvBaseURL); v != "" {
		e.BaseURL = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		e.DefaultModel = v
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			e.Timeout = d
		}
	}
}

// Validate checks that the endpoint can be used to send a request. It returns
// a *provider.ConfigError naming the first bad field.
func (e *Endpoint) Validate() error {
	if e.APIKey == "" {
		return &provider.ConfigError{Field: "api_key", Message: "not set (use " + EnvAPIKey + " or api_key)"}
	}
	if e.BaseURL == "" {
		return &provider.ConfigError{Field: "base_url", Message: "not set (use " + EnvBaseURL + " or base_url)"}
	}
	u, err := url.Parse(e.BaseURL)
	if err != nil {
		return &provider.ConfigError{Field: "base_url", Message: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &provider.ConfigError{Field: "base_url", Message: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	if u.Host == "" {
		return &provider.ConfigError{Field: "base_url", Message: "missing host"}
	}
	if e.Timeout < 0 {
		return &provider.ConfigError{Field: "timeout", Message: "must not be negative"}
	}
	return nil
}

// Redacted returns a copy safe to log or print.
func (e Endpoint) Redacted() Endpoint {
	if len(e.APIKey) > 8 {
		e.APIKey = e.APIKey[:3] + "..." + e.APIKey[len(e.APIKey)-4:]
	} else if e.APIKey != "" {
		e.APIKey = "***"
	}
	return e
}
