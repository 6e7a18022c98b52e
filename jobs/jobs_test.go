package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func waitTerminal(t *testing.T, r *Runner, id string) Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		j, ok := r.Status(id)
		if !ok {
			t.Fatalf("job %s vanished", id)
		}
		if j.State.Terminal() {
			return j
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never finished", id)
	return Job{}
}

func TestSubmitSucceeds(t *testing.T) {
	r := NewRunner(zap.NewNop())

	id := r.Submit(context.Background(), func(ctx context.Context) (interface{}, error) {
		return "done", nil
	})

	j := waitTerminal(t, r, id)
	if j.State != StateSucceeded {
		t.Errorf("state = %s, want succeeded", j.State)
	}
	if j.Result != "done" {
		t.Errorf("result = %v", j.Result)
	}
	if j.StartedAt == nil || j.FinishedAt == nil {
		t.Error("timestamps not recorded")
	}
}

func TestSubmitFails(t *testing.T) {
	r := NewRunner(zap.NewNop())

	id := r.Submit(context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("origin unreachable")
	})

	j := waitTerminal(t, r, id)
	if j.State != StateFailed {
		t.Errorf("state = %s, want failed", j.State)
	}
	if j.Error != "origin unreachable" {
		t.Errorf("error = %q", j.Error)
	}
}

func TestCancelRunningJob(t *testing.T) {
	r := NewRunner(zap.NewNop())
	started := make(chan struct{})

	id := r.Submit(context.Background(), func(ctx context.Context) (interface{}, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	<-started

	if !r.Cancel(id) {
		t.Fatal("Cancel returned false for a running job")
	}

	j := waitTerminal(t, r, id)
	if j.State != StateCancelled {
		t.Errorf("state = %s, want cancelled", j.State)
	}
}

func TestCancelFinishedJobIsNoop(t *testing.T) {
	r := NewRunner(zap.NewNop())

	id := r.Submit(context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, nil
	})
	waitTerminal(t, r, id)

	if r.Cancel(id) {
		t.Error("Cancel returned true for a finished job")
	}
}

func TestStatusUnknownJob(t *testing.T) {
	r := NewRunner(zap.NewNop())
	if _, ok := r.Status("job-0-0"); ok {
		t.Error("unknown id reported as tracked")
	}
}
