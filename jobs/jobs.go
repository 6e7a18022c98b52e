// Package jobs runs long scraping work in the background and tracks
// its lifecycle so API callers can poll or cancel it.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether the job will not change state again.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

// Job is an observable snapshot of one submitted task.
type Job struct {
	ID          string      `json:"id"`
	State       State       `json:"state"`
	SubmittedAt time.Time   `json:"submittedAt"`
	StartedAt   *time.Time  `json:"startedAt,omitempty"`
	FinishedAt  *time.Time  `json:"finishedAt,omitempty"`
	Error       string      `json:"error,omitempty"`
	Result      interface{} `json:"result,omitempty"`
}

// Task is the work a job performs. The returned value becomes the job
// result; a non-nil error marks the job failed.
type Task func(ctx context.Context) (interface{}, error)

type job struct {
	snapshot Job
	cancel   context.CancelFunc
}

// Runner executes tasks one goroutine each and keeps their snapshots
// in memory until evicted.
type Runner struct {
	mu   sync.Mutex
	jobs map[string]*job
	seq  int
	log  *zap.Logger
}

func NewRunner(log *zap.Logger) *Runner {
	return &Runner{
		jobs: make(map[string]*job),
		log:  log,
	}
}

// Submit registers the task and starts it immediately. The job id is
// returned right away; callers poll Status for the outcome.
func (r *Runner) Submit(ctx context.Context, task Task) string {
	r.mu.Lock()
	r.seq++
	id := fmt.Sprintf("job-%d-%d", time.Now().Unix(), r.seq)
	jobCtx, cancel := context.WithCancel(ctx)
	j := &job{
		snapshot: Job{
			ID:          id,
			State:       StatePending,
			SubmittedAt: time.Now(),
		},
		cancel: cancel,
	}
	r.jobs[id] = j
	r.mu.Unlock()

	go r.run(jobCtx, id, task)
	return id
}

func (r *Runner) run(ctx context.Context, id string, task Task) {
	now := time.Now()
	r.update(id, func(j *Job) {
		j.State = StateRunning
		j.StartedAt = &now
	})
	r.log.Info("job started", zap.String("job", id))

	result, err := task(ctx)

	done := time.Now()
	r.update(id, func(j *Job) {
		j.FinishedAt = &done
		switch {
		case ctx.Err() != nil:
			j.State = StateCancelled
			j.Error = ctx.Err().Error()
		case err != nil:
			j.State = StateFailed
			j.Error = err.Error()
		default:
			j.State = StateSucceeded
			j.Result = result
		}
	})

	if err != nil && ctx.Err() == nil {
		r.log.Error("job failed", zap.String("job", id), zap.Error(err))
		return
	}
	r.log.Info("job finished", zap.String("job", id), zap.Duration("took", done.Sub(now)))
}

func (r *Runner) update(id string, fn func(*Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[id]; ok {
		fn(&j.snapshot)
	}
}

// Status returns a copy of the job snapshot.
func (r *Runner) Status(id string) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return j.snapshot, true
}

// Cancel signals the job's context. Finished jobs are left alone.
func (r *Runner) Cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.snapshot.State.Terminal() {
		return false
	}
	j.cancel()
	return true
}

// List returns every tracked job, newest submissions last.
func (r *Runner) List() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j.snapshot)
	}
	return out
}
