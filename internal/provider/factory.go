package provider

import (
	"net/http"
	"sync"

	"github.com/synthome-dev/synthome/internal/domain"
	"github.com/synthome-dev/synthome/internal/infra"
	"github.com/synthome-dev/synthome/internal/registry"
)

// Factory hands out adapters cached per (provider, credential) pair, so
// executions carrying their own API keys get isolated adapters while
// executions on ambient credentials share one.
type Factory struct {
	cfg        *infra.Config
	logger     *infra.Logger
	httpClient *http.Client

	mu    sync.Mutex
	cache map[string]Adapter
}

// NewFactory builds a factory over the ambient configuration. httpClient may
// be nil; adapters then construct their own with per-provider timeouts.
func NewFactory(cfg *infra.Config, logger *infra.Logger, httpClient *http.Client) *Factory {
	return &Factory{
		cfg:        cfg,
		logger:     logger,
		httpClient: httpClient,
		cache:      map[string]Adapter{},
	}
}

// Adapter returns the adapter for a provider. An explicit key (from the
// execution's own credentials) wins over the environment key. A provider with
// no credential at all is a configuration error surfaced before any remote
// call is attempted.
func (f *Factory) Adapter(provider, explicitKey string) (Adapter, error) {
	key := explicitKey
	if key == "" {
		key = f.envKey(provider)
	}
	if key == "" {
		return nil, domain.NewError(domain.KindConfiguration, "", "no API key configured for provider %q", provider)
	}

	cacheKey := provider + "\x00" + key
	f.mu.Lock()
	defer f.mu.Unlock()
	if adapter, ok := f.cache[cacheKey]; ok {
		return adapter, nil
	}

	adapter, err := f.build(provider, key)
	if err != nil {
		return nil, err
	}
	f.cache[cacheKey] = adapter
	return adapter, nil
}

func (f *Factory) build(provider, key string) (Adapter, error) {
	switch provider {
	case registry.ProviderReplicate:
		return NewReplicate(ReplicateOptions{APIKey: key, HTTPClient: f.httpClient, Logger: f.logger})
	case registry.ProviderFal:
		return NewFal(FalOptions{APIKey: key, HTTPClient: f.httpClient, Logger: f.logger})
	case registry.ProviderDashScope:
		return NewDashScope(DashScopeOptions{APIKey: key, HTTPClient: f.httpClient, Logger: f.logger})
	case registry.ProviderGemini:
		runner, err := NewGemini(GeminiOptions{APIKey: key, HTTPClient: f.httpClient, Logger: f.logger})
		if err != nil {
			return nil, err
		}
		return NewSynchronous(runner), nil
	case registry.ProviderElevenLabs:
		runner, err := NewElevenLabs(ElevenLabsOptions{APIKey: key, HTTPClient: f.httpClient, Logger: f.logger})
		if err != nil {
			return nil, err
		}
		return NewSynchronous(runner), nil
	default:
		return nil, domain.NewError(domain.KindConfiguration, "", "unknown provider %q", provider)
	}
}

func (f *Factory) envKey(provider string) string {
	if f.cfg == nil {
		return ""
	}
	switch provider {
	case registry.ProviderReplicate:
		return f.cfg.ReplicateAPIKey
	case registry.ProviderFal:
		return f.cfg.FalAPIKey
	case registry.ProviderDashScope:
		return f.cfg.DashScopeAPIKey
	case registry.ProviderGemini:
		return f.cfg.GeminiAPIKey
	case registry.ProviderElevenLabs:
		return f.cfg.ElevenLabsAPIKey
	default:
		return ""
	}
}
