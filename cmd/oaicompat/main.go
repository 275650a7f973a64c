// Command oaicompat talks to OpenAI-compatible chat endpoints and replays
// recorded streams through the same aggregation code.
//
// Usage:
//
//	# Stream a reply (reads OPENAI_API_KEY and OPENAI_BASE_URL)
//	oaicompat chat --prompt "Say hello"
//
//	# Use a config file and a local server manifest
//	oaicompat chat --config endpoint.yaml --manifest extension.yaml -p "Hi"
//
//	# Aggregate recorded SSE captures, one byte at a time
//	oaicompat replay "**/*.sse" --dir testdata --chunk-size 1
//
//	# Show extension metadata
//	oaicompat info
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
