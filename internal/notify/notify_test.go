package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendSignsBody(t *testing.T) {
	var gotSignature string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get(SignatureHeader)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(srv.Client(), nil)
	err := n.Send(context.Background(), srv.URL, "topsecret", Event{
		ExecutionID:   "exec-1",
		Status:        "completed",
		Progress:      100,
		TotalJobs:     3,
		CompletedJobs: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, Sign("topsecret", gotBody), gotSignature)
	assert.Contains(t, string(gotBody), `"exec-1"`)
	assert.Contains(t, string(gotBody), `"totalJobs":3`)
	assert.Contains(t, string(gotBody), `"completedJobs":3`)
}

func TestSendRetriesThenFails(t *testing.T) {
	orig := retryBaseDelay
	retryBaseDelay = time.Millisecond
	defer func() { retryBaseDelay = orig }()

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewNotifier(srv.Client(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	err := n.Send(ctx, srv.URL, "s", Event{ExecutionID: "exec-1", Status: "failed"})
	require.Error(t, err)
	assert.Equal(t, deliveryAttempts, calls)
}

func TestSendReturnsPromptlyAfterFinalAttempt(t *testing.T) {
	orig := retryBaseDelay
	retryBaseDelay = 30 * time.Millisecond
	defer func() { retryBaseDelay = orig }()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewNotifier(srv.Client(), nil)
	start := time.Now()
	err := n.Send(context.Background(), srv.URL, "s", Event{ExecutionID: "exec-1", Status: "failed"})
	require.Error(t, err)

	// Two inter-attempt backoffs (30ms + 60ms); no sleep after the last try.
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}

func TestSendNoopWithoutURL(t *testing.T) {
	n := NewNotifier(nil, nil)
	require.NoError(t, n.Send(context.Background(), "", "s", Event{}))
}
