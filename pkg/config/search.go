package config

import (
	"scicontent/pkg/logx"
)

// Search provider secret names.
// Add new providers here as they're supported.
const (
	// EnvGoogleSearchAPIKey is the secret name for the Google Custom Search API key.
	EnvGoogleSearchAPIKey = "GOOGLE_SEARCH_API_KEY"
	// EnvGoogleSearchCX is the secret name for the Google Custom Search Engine ID.
	EnvGoogleSearchCX = "GOOGLE_SEARCH_CX"
	// EnvBraveSearchAPIKey is the secret name for the Brave Search API subscription token.
	EnvBraveSearchAPIKey = "BRAVE_SEARCH_API_KEY"
)

// SearchProviderType identifies which search provider is available.
type SearchProviderType string

// Search provider type constants.
const (
	SearchProviderGoogle     SearchProviderType = "google"
	SearchProviderBrave      SearchProviderType = "brave"
	SearchProviderDuckDuckGo SearchProviderType = "duckduckgo"

	// SearchProviderAuto picks the first provider with credentials.
	SearchProviderAuto = "auto"
)

// SearchAPIStatus contains information about available search APIs.
type SearchAPIStatus struct {
	Provider     SearchProviderType // Which provider to use
	GoogleAPIKey string             // Google API key (if available)
	GoogleCX     string             // Google Custom Search Engine ID (if available)
	BraveAPIKey  string             // Brave subscription token (if available)
}

// SecretSource looks up secrets by name.
type SecretSource interface {
	Get(name string) (string, error)
}

func lookup(src SecretSource, name string) string {
	if src == nil {
		return ""
	}
	value, err := src.Get(name)
	if err != nil {
		return ""
	}
	return value
}

// DetectSearchAPIs returns the preferred search provider given the configured choice and
// available credentials. Priority for "auto": Google CSE, then Brave, then DuckDuckGo,
// which needs no key and is always available.
func DetectSearchAPIs(cfg SearchConfig, secrets SecretSource) SearchAPIStatus {
	logger := logx.NewLogger("config")
	status := SearchAPIStatus{
		GoogleAPIKey: lookup(secrets, EnvGoogleSearchAPIKey),
		GoogleCX:     lookup(secrets, EnvGoogleSearchCX),
		BraveAPIKey:  lookup(secrets, EnvBraveSearchAPIKey),
	}
	googleReady := status.GoogleAPIKey != "" && status.GoogleCX != ""
	braveReady := status.BraveAPIKey != ""

	switch SearchProviderType(cfg.Provider) {
	case SearchProviderGoogle:
		if googleReady {
			status.Provider = SearchProviderGoogle
			return status
		}
		logger.Warn("Google search configured but %s/%s missing; falling back to DuckDuckGo",
			EnvGoogleSearchAPIKey, EnvGoogleSearchCX)
	case SearchProviderBrave:
		if braveReady {
			status.Provider = SearchProviderBrave
			return status
		}
		logger.Warn("Brave search configured but %s missing; falling back to DuckDuckGo", EnvBraveSearchAPIKey)
	case SearchProviderDuckDuckGo:
	default:
		if googleReady {
			status.Provider = SearchProviderGoogle
			return status
		}
		if braveReady {
			status.Provider = SearchProviderBrave
			return status
		}
	}

	status.Provider = SearchProviderDuckDuckGo
	return status
}
