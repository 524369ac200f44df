// Package config loads and validates the proxy configuration.
//
// Configuration comes from a YAML file with environment variable overrides:
//
//	cfg, err := config.Load("config.yaml")
//
// Environment variables follow the naming convention VANDAMME_SECTION_FIELD
// and always win over file values. For example:
//
//   - VANDAMME_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - VANDAMME_AUTH_PROXY_KEY overrides auth.proxy_key
//   - VANDAMME_PROVIDERS_OPENROUTER_API_KEY overrides
//     providers.openrouter.api_key
//
// Values are applied in order: YAML file, environment overrides, defaults for
// whatever is still zero, then validation. Validation collects every error:
//
//	configuration validation failed with 2 errors:
//	  - providers.openrouter.base_url: must be an absolute URL
//	  - aliases.fast: provider "gemini" is not configured
//
// A minimal configuration:
//
//	server:
//	  listen_address: "127.0.0.1:8082"
//
//	providers:
//	  openrouter:
//	    api_format: "openai-wire"
//	    base_url: "https://openrouter.ai/api/v1"
//	    api_key: "sk-or-..."
//
// Config.Descriptors converts the provider section into the immutable
// registry descriptors the rest of the proxy consumes.
package config
