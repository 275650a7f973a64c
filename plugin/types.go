// Package plugin describes the adapter as a host extension: its identity,
// capabilities, provider metadata and a YAML manifest.
package plugin

// ExtensionMetadata identifies the extension to a host.
type ExtensionMetadata struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Version     string `json:"version" yaml:"version"`
	APIVersion  string `json:"api_version" yaml:"api_version"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Features lists what the provider can do.
type Features struct {
	Streaming       bool `json:"streaming" yaml:"streaming"`
	FunctionCalling bool `json:"function_calling" yaml:"function_calling"`
	Vision          bool `json:"vision" yaml:"vision"`
}

// ProviderMetadata is the provider description handed to hosts as JSON.
type ProviderMetadata struct {
	Name            string   `json:"name"`
	Version         string   `json:"version"`
	Description     string   `json:"description"`
	SupportedModels string   `json:"supported_models"`
	Features        Features `json:"features"`
	DefaultModel    string   `json:"default_model"`
}

// CapabilityProvider is the only capability this extension offers.
const CapabilityProvider = "provider"
