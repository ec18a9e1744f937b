package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synthome-dev/synthome/internal/domain"
	"github.com/synthome-dev/synthome/internal/infra"
	"github.com/synthome-dev/synthome/internal/registry"
)

func TestReplicateStartWithWebhook(t *testing.T) {
	var captured struct {
		Webhook string         `json:"webhook"`
		Events  []string       `json:"webhook_events_filter"`
		Input   map[string]any `json:"input"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/wan-video/wan-2.2-t2v-fast/predictions", r.URL.Path)
		assert.Equal(t, "Token secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "pred-1", "status": "starting"})
	}))
	defer srv.Close()

	adapter, err := NewReplicate(ReplicateOptions{APIKey: "secret", BaseURL: srv.URL})
	require.NoError(t, err)

	result, err := adapter.StartGeneration(context.Background(), StartRequest{
		JobID:           "job1",
		ProviderModelID: "wan-video/wan-2.2-t2v-fast",
		Options:         map[string]any{"prompt": "a storm"},
		WebhookURL:      "https://engine.example/v1/webhooks/exec/job1",
	})
	require.NoError(t, err)
	assert.Equal(t, "pred-1", result.ProviderJobID)
	assert.Equal(t, registry.StrategyWebhook, result.Strategy)
	assert.Equal(t, "https://engine.example/v1/webhooks/exec/job1", captured.Webhook)
	assert.Equal(t, []string{"completed"}, captured.Events)
	assert.Equal(t, "a storm", captured.Input["prompt"])
}

func TestReplicateStartWithoutWebhookIsPolling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "pred-2", "status": "starting"})
	}))
	defer srv.Close()

	adapter, err := NewReplicate(ReplicateOptions{APIKey: "secret", BaseURL: srv.URL})
	require.NoError(t, err)

	result, err := adapter.StartGeneration(context.Background(), StartRequest{
		ProviderModelID: "black-forest-labs/flux-dev",
		Options:         map[string]any{"prompt": "a fox"},
	})
	require.NoError(t, err)
	assert.Equal(t, registry.StrategyPolling, result.Strategy)
}

func TestReplicateSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_ = json.NewEncoder(w).Encode(map[string]any{"detail": "insufficient credit"})
	}))
	defer srv.Close()

	adapter, err := NewReplicate(ReplicateOptions{APIKey: "secret", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = adapter.StartGeneration(context.Background(), StartRequest{ProviderModelID: "m", Options: map[string]any{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient credit")
}

func TestFalStatusFetchesResultWhenCompleted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Key secret", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/fal-ai/kling-video/requests/req-1/status":
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "COMPLETED"})
		case "/fal-ai/kling-video/requests/req-1":
			_ = json.NewEncoder(w).Encode(map[string]any{"video": map[string]any{"url": "https://fal.media/out.mp4"}})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	adapter, err := NewFal(FalOptions{APIKey: "secret", BaseURL: srv.URL})
	require.NoError(t, err)

	raw, err := adapter.GetRawJobResponse(context.Background(), "fal-ai/kling-video/v2.1/standard/image-to-video", "req-1")
	require.NoError(t, err)
	resp, err := registry.ParseFal(raw)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, resp.Status)
	assert.Equal(t, []string{"https://fal.media/out.mp4"}, resp.Outputs)
}

func TestFalStatusPassesThroughInFlight(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "IN_QUEUE", "queue_position": 2})
	}))
	defer srv.Close()

	adapter, err := NewFal(FalOptions{APIKey: "secret", BaseURL: srv.URL})
	require.NoError(t, err)

	raw, err := adapter.GetRawJobResponse(context.Background(), "fal-ai/auto-caption", "req-2")
	require.NoError(t, err)
	resp, err := registry.ParseFal(raw)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, resp.Status)
}

func TestFalStartAttachesWebhookQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "https://engine.example/hook", r.URL.Query().Get("fal_webhook"))
		_ = json.NewEncoder(w).Encode(map[string]any{"request_id": "req-3", "status": "IN_QUEUE"})
	}))
	defer srv.Close()

	adapter, err := NewFal(FalOptions{APIKey: "secret", BaseURL: srv.URL})
	require.NoError(t, err)

	result, err := adapter.StartGeneration(context.Background(), StartRequest{
		ProviderModelID: "fal-ai/ffmpeg-api/merge-videos",
		Options:         map[string]any{"video_urls": []string{"https://a", "https://b"}},
		WebhookURL:      "https://engine.example/hook",
	})
	require.NoError(t, err)
	assert.Equal(t, "req-3", result.ProviderJobID)
	assert.Equal(t, registry.StrategyWebhook, result.Strategy)
}

func TestDashScopeStartSplitsInputAndParameters(t *testing.T) {
	var captured struct {
		Model      string         `json:"model"`
		Input      map[string]any `json:"input"`
		Parameters map[string]any `json:"parameters"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "enable", r.Header.Get("X-DashScope-Async"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(map[string]any{"output": map[string]any{"task_id": "task-1", "task_status": "PENDING"}})
	}))
	defer srv.Close()

	adapter, err := NewDashScope(DashScopeOptions{APIKey: "secret", BaseURL: srv.URL})
	require.NoError(t, err)

	result, err := adapter.StartGeneration(context.Background(), StartRequest{
		ProviderModelID: "qwen-image-plus",
		Options:         map[string]any{"prompt": "a fox", "size": "1328*1328"},
	})
	require.NoError(t, err)
	assert.Equal(t, "task-1", result.ProviderJobID)
	assert.Equal(t, "qwen-image-plus", captured.Model)
	assert.Equal(t, "a fox", captured.Input["prompt"])
	assert.Equal(t, "1328*1328", captured.Parameters["size"])
}

type stubRunner struct {
	resp registry.NormalizedResponse
	err  error
}

func (s stubRunner) Generate(context.Context, StartRequest) (registry.NormalizedResponse, error) {
	return s.resp, s.err
}

func TestSynchronousCachesResultForOneFetch(t *testing.T) {
	adapter := NewSynchronous(stubRunner{resp: registry.NormalizedResponse{
		Status:  domain.JobStatusCompleted,
		Outputs: []string{"data:audio/mpeg;base64,AAAA"},
	}})

	result, err := adapter.StartGeneration(context.Background(), StartRequest{JobID: "job1"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.ProviderJobID)
	assert.Equal(t, registry.StrategyPolling, result.Strategy)

	raw, err := adapter.GetRawJobResponse(context.Background(), "", result.ProviderJobID)
	require.NoError(t, err)
	resp, err := registry.ParseNormalized(raw)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, resp.Status)
	assert.Equal(t, []string{"data:audio/mpeg;base64,AAAA"}, resp.Outputs)

	// The fetch consumed the entry; a second read finds nothing.
	_, err = adapter.GetRawJobResponse(context.Background(), "", result.ProviderJobID)
	require.Error(t, err)

	_, err = adapter.GetRawJobResponse(context.Background(), "", "missing")
	require.Error(t, err)
}

func TestSynchronousDoesNotRetainConsumedResults(t *testing.T) {
	adapter := NewSynchronous(stubRunner{resp: registry.NormalizedResponse{
		Status:  domain.JobStatusCompleted,
		Outputs: []string{"data:audio/mpeg;base64,AAAA"},
	}})

	for i := 0; i < 100; i++ {
		result, err := adapter.StartGeneration(context.Background(), StartRequest{JobID: "job1"})
		require.NoError(t, err)
		_, err = adapter.GetRawJobResponse(context.Background(), "", result.ProviderJobID)
		require.NoError(t, err)
	}

	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	assert.Empty(t, adapter.results)
}

func TestFactoryFailsFastWithoutCredential(t *testing.T) {
	factory := NewFactory(&infra.Config{}, nil, nil)
	_, err := factory.Adapter(registry.ProviderReplicate, "")
	require.Error(t, err)
	assert.Equal(t, domain.KindConfiguration, domain.KindOf(err))
}

func TestFactoryCachesPerCredential(t *testing.T) {
	factory := NewFactory(&infra.Config{ReplicateAPIKey: "env-key"}, nil, nil)

	shared1, err := factory.Adapter(registry.ProviderReplicate, "")
	require.NoError(t, err)
	shared2, err := factory.Adapter(registry.ProviderReplicate, "")
	require.NoError(t, err)
	assert.Same(t, shared1, shared2)

	own, err := factory.Adapter(registry.ProviderReplicate, "execution-key")
	require.NoError(t, err)
	assert.NotSame(t, shared1, own)
}

func TestFactoryRejectsUnknownProvider(t *testing.T) {
	factory := NewFactory(&infra.Config{}, nil, nil)
	_, err := factory.Adapter("midjourney", "key")
	require.Error(t, err)
	assert.Equal(t, domain.KindConfiguration, domain.KindOf(err))
}
