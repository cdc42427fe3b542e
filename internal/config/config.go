// Package config loads the pulptool client configuration.
//
// Configuration is TOML with a [cli] section, supplied either as a file
// path or as base64-encoded content. The base64 form exists for CI
// pipelines that inject the whole config through a single environment
// variable or secret.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// DefaultPath is used when no --config flag is given.
const DefaultPath = "~/.config/pulp/cli.toml"

// Config holds the resolved client configuration.
type Config struct {
	CLI CLISettings `toml:"cli"`
}

// CLISettings represents the [cli] section.
type CLISettings struct {
	BaseURL string `toml:"base_url"`
	APIRoot string `toml:"api_root"`
	Domain  string `toml:"domain"`

	// Optional OAuth2 client-credentials settings. When all three are set
	// requests carry a bearer token refreshed transparently.
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	TokenURL     string `toml:"token_url"`
}

// Load reads configuration from a file path or base64-encoded TOML content.
// An empty source falls back to DefaultPath.
func Load(source string) (*Config, error) {
	if source == "" {
		source = DefaultPath
	}

	data, err := loadContent(source)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that the required connection settings are present.
func (c *Config) Validate() error {
	switch {
	case c.CLI.BaseURL == "":
		return fmt.Errorf("config is missing cli.base_url")
	case c.CLI.APIRoot == "":
		return fmt.Errorf("config is missing cli.api_root")
	case c.CLI.Domain == "":
		return fmt.Errorf("config is missing cli.domain")
	}
	return nil
}

// HasAuth reports whether the OAuth2 client-credentials settings are complete.
func (c *Config) HasAuth() bool {
	return c.CLI.ClientID != "" && c.CLI.ClientSecret != "" && c.CLI.TokenURL != ""
}

func loadContent(source string) ([]byte, error) {
	if isBase64(source) {
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(source))
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 config: %w", err)
		}
		return decoded, nil
	}

	path := expandHome(source)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// Some environments store the file itself base64-encoded.
	if content := strings.TrimSpace(string(data)); isBase64(content) {
		if decoded, err := base64.StdEncoding.DecodeString(content); err == nil {
			return decoded, nil
		}
	}

	return data, nil
}

// isBase64 is a heuristic: base64 config blobs are long, use only the
// base64 alphabet, and never look like filesystem paths.
func isBase64(s string) bool {
	if len(s) < 50 {
		return false
	}
	if strings.ContainsAny(s, "/\\") {
		return false
	}
	if strings.HasPrefix(s, "~") || strings.HasPrefix(s, ".") {
		return false
	}
	n := 0
	for _, r := range s {
		if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
			continue
		}
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '+', r == '=':
			n++
		default:
			return false
		}
	}
	return n > 50
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
