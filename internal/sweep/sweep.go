package sweep

import (
	"context"
	"log"
	"sync"
	"time"
)

// Task is one recurring sweep. The mutex makes ticks non-reentrant: a tick
// is skipped while the previous invocation of the same task is still
// running.
type Task struct {
	Name string
	Run  func(ctx context.Context) error

	mu sync.Mutex
}

// Runner drives the registered tasks at a fixed interval, decoupled from
// the request/response cycle. Task failures are logged, never propagated.
type Runner struct {
	interval time.Duration
	tasks    []*Task
}

// NewRunner creates a runner that fires every interval.
func NewRunner(interval time.Duration) *Runner {
	return &Runner{interval: interval}
}

// Register adds a recurring task.
func (r *Runner) Register(name string, run func(ctx context.Context) error) {
	r.tasks = append(r.tasks, &Task{Name: name, Run: run})
}

// Run executes all tasks once immediately, then on every interval tick
// until the context is cancelled.
func (r *Runner) Run(ctx context.Context) {
	log.Printf("sweep runner starting (interval %s, %d tasks)", r.interval, len(r.tasks))

	r.tick(ctx)

	timer := time.NewTimer(r.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("sweep runner shutting down")
			return
		case <-timer.C:
			r.tick(ctx)
			timer.Reset(r.interval)
		}
	}
}

// tick launches each task concurrently. Tasks guard themselves against
// overlapping invocations, so a slow sweep delays only itself.
func (r *Runner) tick(ctx context.Context) {
	for _, t := range r.tasks {
		go r.runTask(ctx, t)
	}
}

func (r *Runner) runTask(ctx context.Context, t *Task) {
	if !t.mu.TryLock() {
		log.Printf("sweep %s still running, skipping tick", t.Name)
		return
	}
	defer t.mu.Unlock()

	if err := t.Run(ctx); err != nil {
		log.Printf("sweep %s failed: %v", t.Name, err)
	}
}
