package domain

import "testing"

// TestCanTransitionHappyPath verifies the monotonic progression.
func TestCanTransitionHappyPath(t *testing.T) {
	steps := []struct {
		from, to TaskStatus
	}{
		{TaskStatusQueued, TaskStatusTranscribing},
		{TaskStatusTranscribing, TaskStatusTranscribed},
		{TaskStatusTranscribed, TaskStatusReviewed},
	}
	for _, step := range steps {
		if !CanTransition(step.from, step.to) {
			t.Fatalf("transition %s -> %s should be allowed", step.from, step.to)
		}
	}
}

// TestCanTransitionErrorReachability checks error edges.
func TestCanTransitionErrorReachability(t *testing.T) {
	for _, from := range []TaskStatus{
		TaskStatusQueued,
		TaskStatusTranscribing,
		TaskStatusTranscribed,
		TaskStatusReviewed,
	} {
		if !CanTransition(from, TaskStatusError) {
			t.Fatalf("transition %s -> error should be allowed", from)
		}
	}

	if CanTransition(TaskStatusError, TaskStatusQueued) {
		t.Fatal("error must have no outgoing edges")
	}
	if CanTransition(TaskStatusError, TaskStatusError) {
		t.Fatal("error -> error must be rejected")
	}
}

// TestCanTransitionRejectsSkips checks that stages cannot be skipped.
func TestCanTransitionRejectsSkips(t *testing.T) {
	if CanTransition(TaskStatusQueued, TaskStatusTranscribed) {
		t.Fatal("queued -> transcribed must be rejected")
	}
	if CanTransition(TaskStatusTranscribed, TaskStatusTranscribing) {
		t.Fatal("backward transition must be rejected")
	}
	if !CanTransition(TaskStatusReviewed, TaskStatusReviewed) {
		t.Fatal("reviewed -> reviewed should be an allowed no-op")
	}
}
