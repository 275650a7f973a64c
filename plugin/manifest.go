package plugin

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/i2y/oaicompat/config"
)

// ManifestFile is the conventional manifest name inside an extension
// directory.
const ManifestFile = "extension.yaml"

// Manifest is the on-disk description of the extension.
//
//	extension:
//	  id: openai-unofficial
//	  name: OpenAI Unofficial Provider
//	  version: 0.1.0
//	  api_version: 0.3.0
//	capabilities: [provider]
//	provider:
//	  base_url: http://localhost:11434/v1
//	  default_model: llama3.1
//	  features:
//	    streaming: true
//	    function_calling: true
//	    vision: false
type Manifest struct {
	Extension    ExtensionMetadata `yaml:"extension"`
	Capabilities []string          `yaml:"capabilities"`
	Provider     ProviderSection   `yaml:"provider"`
}

// ProviderSection holds provider defaults. Empty fields leave the endpoint
// configuration alone.
type ProviderSection struct {
	BaseURL      string   `yaml:"base_url,omitempty"`
	DefaultModel string   `yaml:"default_model,omitempty"`
	Features     Features `yaml:"features"`
}

// DefaultManifest describes this extension with no endpoint overrides.
func DefaultManifest() Manifest {
	return Manifest{
		Extension:    Metadata(),
		Capabilities: Capabilities(),
		Provider: ProviderSection{
			DefaultModel: config.DefaultModel,
			Features:     Provider().Features,
		},
	}
}

// ParseManifest decodes and validates a YAML manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadManifest reads the manifest at path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Marshal encodes the manifest as YAML.
func (m Manifest) Marshal() ([]byte, error) {
	b, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	return b, nil
}

// Validate checks the fields a host needs to load the extension.
func (m Manifest) Validate() error {
	var errs []error
	if m.Extension.ID == "" {
		errs = append(errs, errors.New("extension.id is required"))
	}
	if m.Extension.APIVersion == "" {
		errs = append(errs, errors.New("extension.api_version is required"))
	}
	if !slices.Contains(m.Capabilities, CapabilityProvider) {
		errs = append(errs, fmt.Errorf("capabilities must include %q", CapabilityProvider))
	}
	return errors.Join(errs...)
}

// ApplyTo overrides endpoint defaults with the manifest's provider section.
// Apply it before the config file and environment so that those still win.
func (m Manifest) ApplyTo(e *config.Endpoint) {
	if m.Provider.BaseURL != "" {
		e.BaseURL = m.Provider.BaseURL
	}
	if m.Provider.DefaultModel != "" {
		e.DefaultModel = m.Provider.DefaultModel
	}
}
