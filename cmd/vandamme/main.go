// Vandamme is a translating proxy for LLM traffic.
//
// It accepts Anthropic Messages API requests and fulfils them against
// upstreams speaking either the Anthropic or the OpenAI Chat Completions
// wire format, translating requests, responses and SSE streams in both
// directions.
//
// Usage:
//
//	# Start the proxy with the default configuration file
//	vandamme serve
//
//	# Start with a custom configuration file
//	vandamme serve --config /etc/vandamme/config.yaml
//
//	# Authenticate an OAuth provider
//	vandamme login --provider gemini
//
//	# Inspect stored credentials
//	vandamme auth status
//
//	# Show version information
//	vandamme version
package main

func main() {
	Execute()
}
