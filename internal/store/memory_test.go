package store

import (
	"context"
	"testing"

	"github.com/synthome-dev/synthome/internal/domain"
)

func seedExecution(t *testing.T, s *MemoryStore) {
	t.Helper()
	exec := &domain.Execution{ID: "exec-1", Status: domain.ExecutionStatusPending}
	jobs := []domain.Job{
		{ID: "job1", Type: domain.JobTypeGenerateImage, Output: "job1_output"},
		{ID: "job2", Type: domain.JobTypeGenerateVideo, DependsOn: []string{"job1"}, Output: "job2_output"},
	}
	if err := s.CreateExecution(context.Background(), exec, jobs); err != nil {
		t.Fatalf("CreateExecution error: %v", err)
	}
}

func TestClaimJobOnlyOnce(t *testing.T) {
	s := NewMemoryStore()
	seedExecution(t, s)
	ctx := context.Background()

	ok, err := s.ClaimJob(ctx, "exec-1", "job1")
	if err != nil || !ok {
		t.Fatalf("first claim: ok=%v err=%v", ok, err)
	}
	ok, err = s.ClaimJob(ctx, "exec-1", "job1")
	if err != nil {
		t.Fatalf("second claim error: %v", err)
	}
	if ok {
		t.Fatal("second claim should lose")
	}
}

func TestCompleteJobIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	seedExecution(t, s)
	ctx := context.Background()

	if _, err := s.ClaimJob(ctx, "exec-1", "job1"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	out := &domain.MediaOutput{Type: domain.MediaTypeImage, URL: "https://cdn/x.png"}
	ok, err := s.CompleteJob(ctx, "exec-1", "job1", out)
	if err != nil || !ok {
		t.Fatalf("complete: ok=%v err=%v", ok, err)
	}
	// A second terminal write, regardless of direction, is a no-op.
	ok, err = s.FailJob(ctx, "exec-1", "job1", "late webhook disagreement")
	if err != nil {
		t.Fatalf("fail after complete error: %v", err)
	}
	if ok {
		t.Fatal("terminal job must not transition again")
	}
	j, err := s.GetJob(ctx, "exec-1", "job1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if j.Status != domain.JobStatusCompleted || j.Result == nil || j.Result.URL != "https://cdn/x.png" {
		t.Fatalf("unexpected job after conflicting write: %+v", j)
	}
}

func TestProgressNeverDecreases(t *testing.T) {
	s := NewMemoryStore()
	seedExecution(t, s)
	ctx := context.Background()

	if _, err := s.ClaimJob(ctx, "exec-1", "job1"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	for _, p := range []int{10, 40, 25} {
		if err := s.UpdateJobProgress(ctx, "exec-1", "job1", p); err != nil {
			t.Fatalf("UpdateJobProgress(%d): %v", p, err)
		}
	}
	j, err := s.GetJob(ctx, "exec-1", "job1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if j.Progress != 40 {
		t.Fatalf("expected progress 40, got %d", j.Progress)
	}
}

func TestExecutionTerminalOnce(t *testing.T) {
	s := NewMemoryStore()
	seedExecution(t, s)
	ctx := context.Background()

	ok, err := s.FailExecution(ctx, "exec-1", "job job1 failed: boom")
	if err != nil || !ok {
		t.Fatalf("fail execution: ok=%v err=%v", ok, err)
	}
	ok, err = s.CompleteExecution(ctx, "exec-1", &domain.MediaOutput{URL: "https://cdn/final.mp4"})
	if err != nil {
		t.Fatalf("complete after fail error: %v", err)
	}
	if ok {
		t.Fatal("execution already terminal")
	}
	exec, err := s.GetExecution(ctx, "exec-1")
	if err != nil {
		t.Fatalf("GetExecution: %v", err)
	}
	if exec.Status != domain.ExecutionStatusFailed || exec.CompletedAt == nil {
		t.Fatalf("unexpected execution: %+v", exec)
	}
}

func TestGetExecutionUnknown(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.GetExecution(context.Background(), "nope"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
