package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `[cli]
base_url = "https://pulp.example.com"
api_root = "/pulp/"
domain = "build-team"
client_id = "ci-bot"
client_secret = "hunter2"
token_url = "https://sso.example.com/token"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cli.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)
	assert.Equal(t, "https://pulp.example.com", cfg.CLI.BaseURL)
	assert.Equal(t, "/pulp/", cfg.CLI.APIRoot)
	assert.Equal(t, "build-team", cfg.CLI.Domain)
	assert.True(t, cfg.HasAuth())
}

func TestLoadFromBase64(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte(validConfig))
	require.GreaterOrEqual(t, len(encoded), 50, "blob must be long enough for the heuristic")

	cfg, err := Load(encoded)
	require.NoError(t, err)
	assert.Equal(t, "https://pulp.example.com", cfg.CLI.BaseURL)
	assert.Equal(t, "build-team", cfg.CLI.Domain)
}

func TestLoadFileContainingBase64(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte(validConfig))
	cfg, err := Load(writeConfig(t, encoded))
	require.NoError(t, err)
	assert.Equal(t, "https://pulp.example.com", cfg.CLI.BaseURL)
}

func TestLoadMissingRequiredKeys(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"no base_url", "[cli]\napi_root = \"/pulp/\"\ndomain = \"d\"\n", "base_url"},
		{"no api_root", "[cli]\nbase_url = \"https://p\"\ndomain = \"d\"\n", "api_root"},
		{"no domain", "[cli]\nbase_url = \"https://p\"\napi_root = \"/pulp/\"\n", "domain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestHasAuthRequiresAllThree(t *testing.T) {
	cfg := &Config{CLI: CLISettings{ClientID: "id", ClientSecret: "secret"}}
	assert.False(t, cfg.HasAuth())
	cfg.CLI.TokenURL = "https://sso.example.com/token"
	assert.True(t, cfg.HasAuth())
}

func TestIsBase64Heuristic(t *testing.T) {
	assert.False(t, isBase64("~/.config/pulp/cli.toml"), "paths are never base64")
	assert.False(t, isBase64("./relative/path"), "dot prefix is a path")
	assert.False(t, isBase64("c2hvcnQ="), "short strings are ambiguous, treat as path")
	long := base64.StdEncoding.EncodeToString([]byte(validConfig))
	assert.True(t, isBase64(long))
}
