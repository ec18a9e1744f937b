package orchestrator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synthome-dev/synthome/internal/domain"
	"github.com/synthome-dev/synthome/internal/infra"
	"github.com/synthome-dev/synthome/internal/notify"
	"github.com/synthome-dev/synthome/internal/provider"
	"github.com/synthome-dev/synthome/internal/queue"
	"github.com/synthome-dev/synthome/internal/registry"
	"github.com/synthome-dev/synthome/internal/storage"
	"github.com/synthome-dev/synthome/internal/store"
)

type fakeAdapter struct {
	mu      sync.Mutex
	starts  []provider.StartRequest
	onStart func(req provider.StartRequest) (provider.StartResult, error)
	onRaw   func(providerModelID, providerJobID string) ([]byte, error)
}

func (f *fakeAdapter) StartGeneration(_ context.Context, req provider.StartRequest) (provider.StartResult, error) {
	f.mu.Lock()
	f.starts = append(f.starts, req)
	f.mu.Unlock()
	if f.onStart != nil {
		return f.onStart(req)
	}
	strategy := registry.StrategyPolling
	if req.WebhookURL != "" {
		strategy = registry.StrategyWebhook
	}
	return provider.StartResult{ProviderJobID: "p-" + req.JobID, Strategy: strategy}, nil
}

func (f *fakeAdapter) GetRawJobResponse(_ context.Context, providerModelID, providerJobID string) ([]byte, error) {
	if f.onRaw != nil {
		return f.onRaw(providerModelID, providerJobID)
	}
	return nil, fmt.Errorf("no raw response scripted")
}

func (f *fakeAdapter) Capabilities() registry.Capabilities {
	return registry.Capabilities{SupportsWebhooks: true, SupportsPolling: true, DefaultStrategy: registry.StrategyPolling}
}

func (f *fakeAdapter) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.starts)
}

type fakeSource struct{ adapter *fakeAdapter }

func (s fakeSource) Adapter(string, string) (provider.Adapter, error) { return s.adapter, nil }

func newTestOrchestrator(t *testing.T, adapter *fakeAdapter, media storage.Store) (*Orchestrator, *store.MemoryStore, *queue.MemoryQueue) {
	t.Helper()
	st := store.NewMemoryStore()
	q := queue.NewMemoryQueue()
	o, err := New(Options{
		Store:     st,
		Queue:     q,
		Registry:  registry.NewDefault(),
		Providers: fakeSource{adapter: adapter},
		Media:     media,
		Config: &infra.Config{
			WorkerConcurrency: 2,
			AudioPollInterval: time.Millisecond,
			AudioPollAttempts: 5,
			VideoPollInterval: time.Millisecond,
			VideoPollAttempts: 5,
			PublicBaseURL:     "https://engine.example",
		},
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	return o, st, q
}

// drive alternates dispatch scans and worker turns until the execution is
// terminal or the iteration cap is hit.
func drive(t *testing.T, o *Orchestrator, st *store.MemoryStore, q *queue.MemoryQueue, executionID string) *domain.Execution {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		require.NoError(t, o.scan(ctx))
		for {
			item, ok, err := q.Dequeue(ctx)
			require.NoError(t, err)
			if !ok {
				break
			}
			o.runJob(ctx, item)
		}
		exec, err := st.GetExecution(ctx, executionID)
		require.NoError(t, err)
		if exec.Status.Terminal() {
			return exec
		}
	}
	exec, err := st.GetExecution(ctx, executionID)
	require.NoError(t, err)
	return exec
}

func seedExecution(t *testing.T, st *store.MemoryStore, jobs []domain.Job) *domain.Execution {
	t.Helper()
	exec := &domain.Execution{
		ID:     "exec-1",
		Status: domain.ExecutionStatusPending,
	}
	require.NoError(t, st.CreateExecution(context.Background(), exec, jobs))
	return exec
}

func TestLinearChainCarriesOutputForward(t *testing.T) {
	adapter := &fakeAdapter{
		onRaw: func(providerModelID, providerJobID string) ([]byte, error) {
			switch providerJobID {
			case "p-job1":
				return []byte(`{"status":"succeeded","output":"https://replicate.delivery/frame.png"}`), nil
			case "p-job2":
				return []byte(`{"video":{"url":"https://fal.media/captioned.mp4"}}`), nil
			}
			return nil, fmt.Errorf("unknown provider job %s", providerJobID)
		},
	}
	o, st, q := newTestOrchestrator(t, adapter, nil)
	// No public base URL: every job goes through the poll path.
	o.cfg.PublicBaseURL = ""

	seedExecution(t, st, []domain.Job{
		{ID: "job1", Type: domain.JobTypeGenerateImage, Params: map[string]any{"model": "flux-dev", "prompt": "a fox"}, Output: "job1_output"},
		{ID: "job2", Type: domain.JobTypeCaption, Params: map[string]any{"input": domain.DependencyToken("job1")}, DependsOn: []string{"job1"}, Output: "job2_output"},
	})

	exec := drive(t, o, st, q, "exec-1")
	assert.Equal(t, domain.ExecutionStatusCompleted, exec.Status)
	require.NotNil(t, exec.Result)
	assert.Equal(t, "https://fal.media/captioned.mp4", exec.Result.URL)

	// The caption job saw the generated frame, not the token.
	require.Equal(t, 2, adapter.startCount())
	assert.Equal(t, "https://replicate.delivery/frame.png", adapter.starts[1].Options["video_url"])
}

func TestMergeReceivesAllSceneURLs(t *testing.T) {
	adapter := &fakeAdapter{
		onRaw: func(providerModelID, providerJobID string) ([]byte, error) {
			switch providerJobID {
			case "p-job1", "p-job2":
				return []byte(fmt.Sprintf(`{"status":"succeeded","output":"https://replicate.delivery/%s.mp4"}`, providerJobID)), nil
			case "p-job3":
				return []byte(`{"video":{"url":"https://fal.media/merged.mp4"}}`), nil
			}
			return nil, fmt.Errorf("unknown provider job %s", providerJobID)
		},
	}
	o, st, q := newTestOrchestrator(t, adapter, nil)
	o.cfg.PublicBaseURL = ""

	seedExecution(t, st, []domain.Job{
		{ID: "job1", Type: domain.JobTypeGenerateVideo, Params: map[string]any{"model": "wan-2.2", "prompt": "scene one"}, Output: "job1_output"},
		{ID: "job2", Type: domain.JobTypeGenerateVideo, Params: map[string]any{"model": "wan-2.2", "prompt": "scene two"}, Output: "job2_output"},
		{ID: "job3", Type: domain.JobTypeMerge, Params: map[string]any{
			"inputs": []any{domain.DependencyToken("job1"), domain.DependencyToken("job2")},
		}, DependsOn: []string{"job1", "job2"}, Output: "job3_output"},
	})

	exec := drive(t, o, st, q, "exec-1")
	assert.Equal(t, domain.ExecutionStatusCompleted, exec.Status)

	var mergeStart provider.StartRequest
	for _, s := range adapter.starts {
		if s.JobID == "job3" {
			mergeStart = s
		}
	}
	require.Equal(t, "fal-ai/ffmpeg-api/merge-videos", mergeStart.ProviderModelID)
	assert.Equal(t, []string{
		"https://replicate.delivery/p-job1.mp4",
		"https://replicate.delivery/p-job2.mp4",
	}, mergeStart.Options["video_urls"])
}

func TestFailFastSkipsDependents(t *testing.T) {
	adapter := &fakeAdapter{
		onRaw: func(_, providerJobID string) ([]byte, error) {
			return []byte(`{"status":"failed","error":"NSFW content detected"}`), nil
		},
	}
	o, st, q := newTestOrchestrator(t, adapter, nil)
	o.cfg.PublicBaseURL = ""

	seedExecution(t, st, []domain.Job{
		{ID: "job1", Type: domain.JobTypeGenerateImage, Params: map[string]any{"model": "flux-dev", "prompt": "a fox"}, Output: "job1_output"},
		{ID: "job2", Type: domain.JobTypeCaption, Params: map[string]any{"input": domain.DependencyToken("job1")}, DependsOn: []string{"job1"}, Output: "job2_output"},
	})

	exec := drive(t, o, st, q, "exec-1")
	assert.Equal(t, domain.ExecutionStatusFailed, exec.Status)
	assert.Contains(t, exec.ErrorMessage, "NSFW content detected")

	// The dependent never reached a provider.
	assert.Equal(t, 1, adapter.startCount())
	job2, err := st.GetJob(context.Background(), "exec-1", "job2")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, job2.Status)
	assert.Equal(t, "dependency job1 failed", job2.ErrorMessage)
}

func TestWebhookFinalizationIsIdempotent(t *testing.T) {
	adapter := &fakeAdapter{}
	o, st, q := newTestOrchestrator(t, adapter, nil)
	ctx := context.Background()

	seedExecution(t, st, []domain.Job{
		{ID: "job1", Type: domain.JobTypeGenerateVideo, Params: map[string]any{"model": "wan-2.2", "prompt": "a storm"}, Output: "job1_output"},
	})

	require.NoError(t, o.scan(ctx))
	item, ok, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	o.runJob(ctx, item)

	// wan-2.2 defaults to webhooks; the job stays processing after start.
	job, err := st.GetJob(ctx, "exec-1", "job1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, job.Status)
	require.Equal(t, 1, adapter.startCount())
	assert.Equal(t, "https://engine.example/v1/webhooks/exec-1/job1", adapter.starts[0].WebhookURL)

	payload := []byte(`{"status":"succeeded","output":"https://replicate.delivery/storm.mp4"}`)
	require.NoError(t, o.HandleProviderCallback(ctx, "exec-1", "job1", payload))

	job, err = st.GetJob(ctx, "exec-1", "job1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)

	// A contradictory duplicate delivery must not overwrite the result.
	dup := []byte(`{"status":"failed","error":"late failure"}`)
	require.NoError(t, o.HandleProviderCallback(ctx, "exec-1", "job1", dup))
	job, err = st.GetJob(ctx, "exec-1", "job1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, "https://replicate.delivery/storm.mp4", job.Result.URL)

	exec := drive(t, o, st, q, "exec-1")
	assert.Equal(t, domain.ExecutionStatusCompleted, exec.Status)
}

func TestPollTimeoutFailsJob(t *testing.T) {
	adapter := &fakeAdapter{
		onRaw: func(_, _ string) ([]byte, error) {
			return []byte(`{"status":"processing"}`), nil
		},
	}
	o, st, q := newTestOrchestrator(t, adapter, nil)
	o.cfg.PublicBaseURL = ""
	o.cfg.VideoPollAttempts = 3

	seedExecution(t, st, []domain.Job{
		{ID: "job1", Type: domain.JobTypeGenerateImage, Params: map[string]any{"model": "flux-dev", "prompt": "a fox"}, Output: "job1_output"},
	})

	exec := drive(t, o, st, q, "exec-1")
	assert.Equal(t, domain.ExecutionStatusFailed, exec.Status)

	job, err := st.GetJob(context.Background(), "exec-1", "job1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "timeout")
}

func TestInlinePayloadUploadedBeforeCompletion(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("png-bytes"))
	adapter := &fakeAdapter{
		onRaw: func(_, _ string) ([]byte, error) {
			return []byte(fmt.Sprintf(`{"status":"completed","outputs":["data:image/png;base64,%s"]}`, encoded)), nil
		},
	}
	media, err := storage.NewFileStore(t.TempDir(), "http://localhost:8080/static")
	require.NoError(t, err)
	o, st, q := newTestOrchestrator(t, adapter, media)
	o.cfg.PublicBaseURL = ""

	seedExecution(t, st, []domain.Job{
		{ID: "job1", Type: domain.JobTypeGenerateImage, Params: map[string]any{"model": "gemini-image", "prompt": "a fox"}, Output: "job1_output"},
	})

	exec := drive(t, o, st, q, "exec-1")
	assert.Equal(t, domain.ExecutionStatusCompleted, exec.Status)
	require.NotNil(t, exec.Result)
	assert.Equal(t, "http://localhost:8080/static/exec-1/job1.png", exec.Result.URL)
	assert.Equal(t, "image/png", exec.Result.MimeType)
}

func TestCachedResultSettlesWithoutPollDelay(t *testing.T) {
	adapter := &fakeAdapter{
		onRaw: func(_, _ string) ([]byte, error) {
			return []byte(`{"status":"succeeded","output":"https://replicate.delivery/fox.png"}`), nil
		},
	}
	o, st, q := newTestOrchestrator(t, adapter, nil)
	o.cfg.PublicBaseURL = ""
	// A result available on the first fetch must settle immediately; if the
	// loop slept before polling, this interval would stall the test.
	o.cfg.VideoPollInterval = time.Hour

	seedExecution(t, st, []domain.Job{
		{ID: "job1", Type: domain.JobTypeGenerateImage, Params: map[string]any{"model": "flux-dev", "prompt": "a fox"}, Output: "job1_output"},
	})

	exec := drive(t, o, st, q, "exec-1")
	assert.Equal(t, domain.ExecutionStatusCompleted, exec.Status)
	require.NotNil(t, exec.Result)
	assert.Equal(t, "https://replicate.delivery/fox.png", exec.Result.URL)
}

func TestFinalizationNotifiesCallerWithMirroredCounts(t *testing.T) {
	adapter := &fakeAdapter{
		onRaw: func(_, providerJobID string) ([]byte, error) {
			return []byte(fmt.Sprintf(`{"status":"succeeded","output":"https://replicate.delivery/%s.png"}`, providerJobID)), nil
		},
	}

	var mu sync.Mutex
	var delivered []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		delivered = body
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	o, st, q := newTestOrchestrator(t, adapter, nil)
	o.cfg.PublicBaseURL = ""
	o.notifier = notify.NewNotifier(srv.Client(), nil)

	exec := &domain.Execution{
		ID:         "exec-1",
		Status:     domain.ExecutionStatusPending,
		WebhookURL: srv.URL,
	}
	require.NoError(t, st.CreateExecution(context.Background(), exec, []domain.Job{
		{ID: "job1", Type: domain.JobTypeGenerateImage, Params: map[string]any{"model": "flux-dev", "prompt": "a fox"}, Output: "job1_output"},
		{ID: "job2", Type: domain.JobTypeGenerateImage, Params: map[string]any{"model": "flux-dev", "prompt": "a hen"}, Output: "job2_output"},
	}))

	final := drive(t, o, st, q, "exec-1")
	assert.Equal(t, domain.ExecutionStatusCompleted, final.Status)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, delivered)
	var event notify.Event
	require.NoError(t, json.Unmarshal(delivered, &event))
	assert.Equal(t, "completed", event.Status)
	assert.Equal(t, 100, event.Progress)
	assert.Equal(t, 2, event.TotalJobs)
	assert.Equal(t, 2, event.CompletedJobs)
}

func TestInvalidModelFailsWithoutProviderCall(t *testing.T) {
	adapter := &fakeAdapter{}
	o, st, q := newTestOrchestrator(t, adapter, nil)

	seedExecution(t, st, []domain.Job{
		{ID: "job1", Type: domain.JobTypeGenerateImage, Params: map[string]any{"model": "nope", "prompt": "a fox"}, Output: "job1_output"},
	})

	exec := drive(t, o, st, q, "exec-1")
	assert.Equal(t, domain.ExecutionStatusFailed, exec.Status)
	assert.Equal(t, 0, adapter.startCount())
	assert.Contains(t, exec.ErrorMessage, "unknown model")
}
