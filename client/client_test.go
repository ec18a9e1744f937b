package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plan() Plan {
	return Plan{Jobs: []Job{
		{ID: "job1", Type: "generateVideo", Params: map[string]any{"prompt": "a harbor"}, Output: "job1_output"},
	}}
}

func TestExecuteWebhookModeReturnsImmediately(t *testing.T) {
	var statusCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/execute":
			// Decode as loose JSON to pin the wire shape, not the struct.
			var req map[string]json.RawMessage
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Contains(t, req, "executionPlan")
			require.Contains(t, req, "options")
			var opts submitOptions
			require.NoError(t, json.Unmarshal(req["options"], &opts))
			assert.Equal(t, "https://caller.example/done", opts.Webhook)
			var sent Plan
			require.NoError(t, json.Unmarshal(req["executionPlan"], &sent))
			require.Len(t, sent.Jobs, 1)
			assert.Equal(t, "job1", sent.Jobs[0].ID)
			assert.Equal(t, "acme", r.Header.Get(OrganizationHeader))
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(Handle{ExecutionID: "exec-1", Status: "pending", TotalJobs: 1})
		default:
			statusCalls.Add(1)
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL, Organization: "acme"})
	require.NoError(t, err)

	handle, result, err := c.Execute(context.Background(), plan(), Config{
		WebhookURL:    "https://caller.example/done",
		WebhookSecret: "s3cret",
	})
	require.NoError(t, err)
	assert.Equal(t, "exec-1", handle.ExecutionID)
	assert.Nil(t, result)
	assert.Zero(t, statusCalls.Load())
}

func TestExecutePollsUntilCompleted(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/execute":
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(Handle{ExecutionID: "exec-1", Status: "pending", TotalJobs: 2})
		case r.URL.Path == "/v1/executions/exec-1/status":
			n := polls.Add(1)
			progress := Progress{Status: "processing", TotalJobs: 2, CompletedJobs: 1, Progress: 50, CurrentJob: "job2"}
			if n >= 3 {
				progress = Progress{
					Status: "completed", TotalJobs: 2, CompletedJobs: 2, Progress: 100,
					Result: &Result{Type: "video", URL: "https://cdn.example/final.mp4"},
				}
			}
			_ = json.NewEncoder(w).Encode(progress)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL, PollInterval: time.Millisecond})
	require.NoError(t, err)

	var seen []Progress
	handle, result, err := c.Execute(context.Background(), plan(), Config{
		OnProgress: func(p Progress) { seen = append(seen, p) },
	})
	require.NoError(t, err)
	assert.Equal(t, "exec-1", handle.ExecutionID)
	require.NotNil(t, result)
	assert.Equal(t, "https://cdn.example/final.mp4", result.URL)

	require.GreaterOrEqual(t, len(seen), 3)
	assert.Equal(t, "job2", seen[0].CurrentJob)
	assert.Equal(t, "completed", seen[len(seen)-1].Status)
}

func TestExecuteSurfacesFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(Handle{ExecutionID: "exec-1", Status: "pending", TotalJobs: 1})
			return
		}
		_ = json.NewEncoder(w).Encode(Progress{Status: "failed", TotalJobs: 1, Error: "job job1 failed: provider rejected prompt"})
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL, PollInterval: time.Millisecond})
	require.NoError(t, err)

	_, _, err = c.Execute(context.Background(), plan(), Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider rejected prompt")
}

func TestSubmitSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "duplicate job id \"job1\""})
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Submit(context.Background(), plan(), Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate job id")
}

func TestWaitHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Progress{Status: "processing", TotalJobs: 1})
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL, PollInterval: 10 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = c.Wait(ctx, "exec-1", nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}
