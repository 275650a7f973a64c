package plugin

import (
	"encoding/json"
	"fmt"

	"github.com/i2y/oaicompat/config"
	"github.com/i2y/oaicompat/openai"
)

const (
	ID         = "openai-unofficial"
	Version    = "0.1.0"
	APIVersion = "0.3.0"
)

// Metadata returns the extension's identity.
func Metadata() ExtensionMetadata {
	return ExtensionMetadata{
		ID:          ID,
		Name:        "OpenAI Unofficial Provider",
		Version:     Version,
		APIVersion:  APIVersion,
		Description: "OpenAI-compatible API provider with streaming and function calling",
	}
}

// Capabilities lists the extension's capabilities.
func Capabilities() []string {
	return []string{CapabilityProvider}
}

// Provider returns the provider description.
func Provider() ProviderMetadata {
	return ProviderMetadata{
		Name:            ID,
		Version:         Version,
		Description:     "OpenAI-compatible API provider - works with any OpenAI-compatible endpoint",
		SupportedModels: "any",
		Features:        Features{Streaming: true, FunctionCalling: true},
		DefaultModel:    config.DefaultModel,
	}
}

// ProviderMetadataJSON returns Provider encoded as JSON.
func ProviderMetadataJSON() (string, error) {
	b, err := json.Marshal(Provider())
	if err != nil {
		return "", fmt.Errorf("encoding provider metadata: %w", err)
	}
	return string(b), nil
}

// APIURL returns the chat completions URL for base. Every model shares it.
func APIURL(base, _ string) string {
	return openai.ChatCompletionsURL(base)
}

// SupportsStreaming reports whether model can stream. Every model can.
func SupportsStreaming(_ string) bool {
	return true
}
