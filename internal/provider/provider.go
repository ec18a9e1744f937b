// Package provider holds the adapters that talk to external generative media
// APIs. Each adapter normalizes one provider's start/status surface; the
// synchronous providers are wrapped so every adapter exposes the same
// start-then-observe contract.
package provider

import (
	"context"

	"github.com/synthome-dev/synthome/internal/registry"
)

// StartRequest carries everything an adapter needs to begin a generation.
// Options is already in the provider's exact shape.
type StartRequest struct {
	JobID           string
	ProviderModelID string
	Options         map[string]any
	// WebhookURL, when set, asks the provider to deliver completion there
	// instead of being polled.
	WebhookURL string
}

// StartResult reports the provider-side handle and how completion will be
// learned.
type StartResult struct {
	ProviderJobID string
	Strategy      registry.Strategy
}

// Adapter is the uniform surface over one provider. GetRawJobResponse returns
// the provider's payload untouched; the caller applies the model's parser so
// webhook and polling paths share one normalization.
type Adapter interface {
	StartGeneration(ctx context.Context, req StartRequest) (StartResult, error)
	GetRawJobResponse(ctx context.Context, providerModelID, providerJobID string) ([]byte, error)
	Capabilities() registry.Capabilities
}
