package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Setting names, shared by config files (case-insensitive) and the environment.
const (
	KeyTavilyAPIKey       = "TAVILY_API_KEY"
	KeySearchMaxResults   = "SEARCH_MAX_RESULTS"
	KeyAzureAPIKey        = "AZURE_OPENAI_API_KEY"
	KeyAzureEndpoint      = "AZURE_OPENAI_ENDPOINT"
	KeyAzureDeployment    = "AZURE_OPENAI_DEPLOYMENT"
	KeyAzureAPIVersion    = "AZURE_OPENAI_API_VERSION"
	KeyOpenAIAPIKey       = "OPENAI_API_KEY"
	KeyOpenAIModel        = "OPENAI_MODEL"
	KeyGoogleAPIKey       = "GOOGLE_API_KEY"
	KeyGoogleStudioAPIKey = "GOOGLE_STUDIO_API_KEY"
	KeyGeminiModel        = "GEMINI_MODEL"
	KeyProviderOrder      = "PROVIDER_ORDER"
	KeyMinRequestInterval = "MIN_REQUEST_INTERVAL"
	KeyMaxRetries         = "MAX_RETRIES"
	KeyRetryBackoffStep   = "RETRY_BACKOFF_STEP"
	KeyChunkSize          = "CHUNK_SIZE"
	KeyChunkOverlap       = "CHUNK_OVERLAP"
	KeySnapshotDB         = "SNAPSHOT_DB"
	KeyListenAddr         = "LISTEN_ADDR"
)

// Provider names accepted in PROVIDER_ORDER.
const (
	ProviderAzure  = "azure-openai"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Defaults.
const (
	DefaultSearchMaxResults   = 10
	DefaultMinRequestInterval = time.Second
	DefaultMaxRetries         = 3
	DefaultRetryBackoffStep   = 10 * time.Second
	DefaultGeminiModel        = "gemini-1.5-flash"
	DefaultOpenAIModel        = "gpt-4o-mini"
	DefaultListenAddr         = ":8080"
)

// DefaultProviderOrder tries the commercial chat provider before Gemini.
var DefaultProviderOrder = []string{ProviderAzure, ProviderOpenAI, ProviderGemini}

// ErrInvalidSettings wraps every validation failure.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings is the resolved runtime configuration.
type Settings struct {
	TavilyAPIKey     string
	SearchMaxResults int

	AzureAPIKey     string
	AzureEndpoint   string
	AzureDeployment string
	AzureAPIVersion string

	OpenAIAPIKey string
	OpenAIModel  string

	GoogleAPIKey string
	GeminiModel  string

	ProviderOrder      []string
	MinRequestInterval time.Duration
	MaxRetries         int
	RetryBackoffStep   time.Duration

	ChunkSize    int
	ChunkOverlap int

	SnapshotDB string
	ListenAddr string
}

// SettingsFrom reads Settings out of c, applying defaults.
func SettingsFrom(c Config) Settings {
	return Settings{
		TavilyAPIKey:     c.String(KeyTavilyAPIKey, ""),
		SearchMaxResults: c.Int(KeySearchMaxResults, DefaultSearchMaxResults),

		AzureAPIKey:     c.String(KeyAzureAPIKey, ""),
		AzureEndpoint:   c.String(KeyAzureEndpoint, ""),
		AzureDeployment: c.String(KeyAzureDeployment, ""),
		AzureAPIVersion: c.String(KeyAzureAPIVersion, ""),

		OpenAIAPIKey: c.String(KeyOpenAIAPIKey, ""),
		OpenAIModel:  c.String(KeyOpenAIModel, DefaultOpenAIModel),

		GoogleAPIKey: c.String(KeyGoogleAPIKey, c.String(KeyGoogleStudioAPIKey, "")),
		GeminiModel:  c.String(KeyGeminiModel, DefaultGeminiModel),

		ProviderOrder:      c.StringSlice(KeyProviderOrder, slices.Clone(DefaultProviderOrder)),
		MinRequestInterval: c.Duration(KeyMinRequestInterval, DefaultMinRequestInterval),
		MaxRetries:         c.Int(KeyMaxRetries, DefaultMaxRetries),
		RetryBackoffStep:   c.Duration(KeyRetryBackoffStep, DefaultRetryBackoffStep),

		ChunkSize:    c.Int(KeyChunkSize, 0),
		ChunkOverlap: c.Int(KeyChunkOverlap, 0),

		SnapshotDB: c.String(KeySnapshotDB, ""),
		ListenAddr: c.String(KeyListenAddr, DefaultListenAddr),
	}
}

// Load resolves Settings from an optional config file and the environment.
// Environment values (including those from envFiles) win over file values,
// and file values may reference them as ${NAME}.
func Load(path string, envFiles ...string) (Settings, error) {
	env, err := FromEnv(envFiles...)
	if err != nil {
		return Settings{}, err
	}

	base := New(nil)
	if path != "" {
		fileCfg, err := FromFile(path)
		if err != nil {
			return Settings{}, err
		}
		base = fileCfg.UpperKeys().Expand(env)
	}

	s := SettingsFrom(base.Merge(env))
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate reports every inconsistent setting.
func (s Settings) Validate() error {
	var errs []error
	if s.SearchMaxResults <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", KeySearchMaxResults, s.SearchMaxResults))
	}
	if s.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1, got %d", KeyMaxRetries, s.MaxRetries))
	}
	if s.MinRequestInterval < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyMinRequestInterval))
	}
	if s.RetryBackoffStep < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyRetryBackoffStep))
	}
	if s.ChunkSize < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyChunkSize))
	}
	if s.ChunkSize > 0 && (s.ChunkOverlap < 0 || s.ChunkOverlap >= s.ChunkSize) {
		errs = append(errs, fmt.Errorf("%s must be in [0, %s)", KeyChunkOverlap, KeyChunkSize))
	}
	for _, name := range s.ProviderOrder {
		switch strings.ToLower(name) {
		case ProviderAzure, ProviderOpenAI, ProviderGemini:
		default:
			errs = append(errs, fmt.Errorf("%s: unknown provider %q", KeyProviderOrder, name))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidSettings, errors.Join(errs...))
}

// AzureConfigured reports whether Azure OpenAI credentials are complete.
func (s Settings) AzureConfigured() bool {
	return s.AzureAPIKey != "" && s.AzureEndpoint != "" && s.AzureDeployment != ""
}

// OpenAIConfigured reports whether an OpenAI key is set.
func (s Settings) OpenAIConfigured() bool {
	return s.OpenAIAPIKey != ""
}

// GeminiConfigured reports whether a Google API key is set.
func (s Settings) GeminiConfigured() bool {
	return s.GoogleAPIKey != ""
}
