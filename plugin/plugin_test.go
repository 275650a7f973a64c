package plugin

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/oaicompat/config"
)

func TestMetadata(t *testing.T) {
	md := Metadata()
	assert.Equal(t, "openai-unofficial", md.ID)
	assert.Equal(t, "0.1.0", md.Version)
	assert.Equal(t, "0.3.0", md.APIVersion)
	assert.NotEmpty(t, md.Name)
	assert.Equal(t, []string{"provider"}, Capabilities())
}

func TestProviderMetadataJSON(t *testing.T) {
	raw, err := ProviderMetadataJSON()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	assert.Equal(t, "openai-unofficial", doc["name"])
	assert.Equal(t, "any", doc["supported_models"])
	assert.Equal(t, "gpt-4o-mini", doc["default_model"])
	assert.Equal(t, map[string]any{
		"streaming":        true,
		"function_calling": true,
		"vision":           false,
	}, doc["features"])
}

func TestAPIURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"https://api.openai.com/v1", "https://api.openai.com/v1/chat/completions"},
		{"http://localhost:11434/v1/", "http://localhost:11434/v1/chat/completions"},
		{"https://proxy.example/v1/chat/completions", "https://proxy.example/v1/chat/completions"},
	}

	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			assert.Equal(t, tt.want, APIURL(tt.base, "gpt-4o-mini"))
		})
	}
}

func TestSupportsStreaming(t *testing.T) {
	assert.True(t, SupportsStreaming("gpt-4o-mini"))
	assert.True(t, SupportsStreaming(""))
}

func TestManifest_RoundTrip(t *testing.T) {
	m := DefaultManifest()
	m.Provider.BaseURL = "http://localhost:11434/v1"

	data, err := m.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), "api_version: 0.3.0")

	got, err := ParseManifest(data)
	require.NoError(t, err)
	assert.Equal(t, m, *got)
}

func TestParseManifest_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr []string
	}{
		{"bad yaml", "extension: [", []string{"parsing manifest"}},
		{"empty", "{}", []string{"extension.id", "extension.api_version", "capabilities"}},
		{
			name:    "no provider capability",
			data:    "extension: {id: x, api_version: 0.3.0}\ncapabilities: [tools]\n",
			wantErr: []string{`"provider"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tt.data))
			require.Error(t, err)
			for _, s := range tt.wantErr {
				assert.ErrorContains(t, err, s)
			}
		})
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ManifestFile)
	require.NoError(t, os.WriteFile(path, []byte(`
extension:
  id: openai-unofficial
  name: Local
  version: 0.1.0
  api_version: 0.3.0
capabilities: [provider]
provider:
  base_url: http://localhost:11434/v1
  default_model: llama3.1
`), 0o600))

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "Local", m.Extension.Name)

	ep := config.Default()
	m.ApplyTo(&ep)
	assert.Equal(t, "http://localhost:11434/v1", ep.BaseURL)
	assert.Equal(t, "llama3.1", ep.DefaultModel)

	_, err = LoadManifest(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestManifest_ApplyToKeepsEmpty(t *testing.T) {
	ep := config.Endpoint{BaseURL: "https://a.example/v1", DefaultModel: "m"}
	Manifest{}.ApplyTo(&ep)
	assert.Equal(t, "https://a.example/v1", ep.BaseURL)
	assert.Equal(t, "m", ep.DefaultModel)
}
