package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/randalmurphal/researchflow/pkg/config"
	"github.com/randalmurphal/researchflow/pkg/document"
	"github.com/randalmurphal/researchflow/pkg/invoke"
	"github.com/randalmurphal/researchflow/pkg/llm"
	"github.com/randalmurphal/researchflow/pkg/pipeline/observability"
	"github.com/randalmurphal/researchflow/pkg/pipeline/snapshot"
	"github.com/randalmurphal/researchflow/pkg/research"
	"github.com/randalmurphal/researchflow/pkg/search"
)

const (
	openAIEndpoint  = "https://api.openai.com"
	providerTimeout = 2 * time.Minute
)

// loadSettings resolves Settings from the --config and --env-file flags.
func loadSettings() (config.Settings, error) {
	s, err := config.Load(rootFlags.configPath, rootFlags.envFiles...)
	if err != nil {
		return config.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return s, nil
}

// buildProviders creates the configured providers in PROVIDER_ORDER.
// Providers without credentials are skipped.
func buildProviders(s config.Settings, client *http.Client, logger *slog.Logger) []invoke.Provider {
	if client == nil {
		client = &http.Client{Timeout: providerTimeout}
	}

	var providers []invoke.Provider
	for _, name := range s.ProviderOrder {
		switch strings.ToLower(name) {
		case config.ProviderAzure:
			if !s.AzureConfigured() {
				logger.Debug("provider not configured, skipping", "provider", name)
				continue
			}
			providers = append(providers, llm.NewChatClient(llm.ChatConfig{
				Name:       config.ProviderAzure,
				Endpoint:   s.AzureEndpoint,
				APIKey:     s.AzureAPIKey,
				Deployment: s.AzureDeployment,
				APIVersion: s.AzureAPIVersion,
				HTTPClient: client,
			}))
		case config.ProviderOpenAI:
			if !s.OpenAIConfigured() {
				logger.Debug("provider not configured, skipping", "provider", name)
				continue
			}
			providers = append(providers, llm.NewChatClient(llm.ChatConfig{
				Name:       config.ProviderOpenAI,
				Endpoint:   openAIEndpoint,
				APIKey:     s.OpenAIAPIKey,
				Model:      s.OpenAIModel,
				HTTPClient: client,
			}))
		case config.ProviderGemini:
			if !s.GeminiConfigured() {
				logger.Debug("provider not configured, skipping", "provider", name)
				continue
			}
			providers = append(providers, llm.NewPromptClient(llm.PromptConfig{
				Name:       config.ProviderGemini,
				APIKey:     s.GoogleAPIKey,
				Model:      s.GeminiModel,
				HTTPClient: client,
			}))
		}
	}
	return providers
}

// buildInvoker wires providers behind one shared rate gate.
func buildInvoker(s config.Settings, providers []invoke.Provider, logger *slog.Logger) *invoke.Invoker {
	policy := invoke.RetryPolicy{
		MaxAttempts: s.MaxRetries,
		BackoffStep: s.RetryBackoffStep,
		MaxBackoff:  invoke.DefaultRetry.MaxBackoff,
	}
	return invoke.New(providers,
		invoke.WithRateGate(invoke.NewRateGate(s.MinRequestInterval)),
		invoke.WithRetryPolicy(policy),
		invoke.WithLogger(logger),
		invoke.WithMetrics(observability.NewMetricsRecorder()),
		invoke.WithTracing(true),
	)
}

// app is a fully wired workflow plus the resources it owns.
type app struct {
	settings config.Settings
	workflow *research.Workflow
	store    *snapshot.SQLiteStore
}

// Close releases the snapshot store, if any.
func (a *app) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// buildApp wires search, providers, invoker, and workflow from settings.
func buildApp(s config.Settings, logger *slog.Logger) (*app, error) {
	if s.TavilyAPIKey == "" {
		return nil, fmt.Errorf("%w: set %s", search.ErrMissingAPIKey, config.KeyTavilyAPIKey)
	}

	providers := buildProviders(s, nil, logger)
	if len(providers) == 0 {
		logger.Warn("no LLM provider configured, answers will use fallback mode")
	}

	a := &app{settings: s}
	opts := []research.Option{
		research.WithMaxResults(s.SearchMaxResults),
		research.WithLogger(logger),
		research.WithMetrics(true),
		research.WithTracing(true),
	}
	if s.ChunkSize > 0 {
		splitter, err := document.NewSplitter(s.ChunkSize, s.ChunkOverlap)
		if err != nil {
			return nil, err
		}
		opts = append(opts, research.WithSplitter(splitter))
	}
	if s.SnapshotDB != "" {
		store, err := snapshot.NewSQLiteStore(s.SnapshotDB)
		if err != nil {
			return nil, fmt.Errorf("open snapshot store: %w", err)
		}
		a.store = store
		opts = append(opts, research.WithSnapshots(store))
	}

	wf, err := research.New(search.NewTavily(s.TavilyAPIKey), buildInvoker(s, providers, logger), opts...)
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}
	a.workflow = wf
	return a, nil
}
