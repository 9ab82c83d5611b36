package reminder

import (
	"sync"

	"github.com/ssaito/mute-reminder/internal/domain/voice"
)

// Task is the handle of one running reminder task. It is owned by the
// Registry entry for its key from creation until the task removes
// itself or an external cancel evicts it.
type Task struct {
	// key identifies the member the task watches.
	key voice.Key
	// cancel requests cooperative cancellation of the task goroutine.
	cancel func()
	// done is closed when the task goroutine has fully terminated,
	// including its registry self-removal.
	done chan struct{}
}

// Cancel requests cancellation. Cancelling a finished task is a no-op.
func (t *Task) Cancel() {
	t.cancel()
}

// Done returns a channel closed once the task has terminated.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Registry maps members to their single live reminder task. All
// mutations go through its methods under one mutex; a key is present
// exactly while a task for it is sleeping or executing.
type Registry struct {
	// mu serializes all map mutations.
	mu sync.Mutex
	// tasks holds the live task handle per member key.
	tasks map[voice.Key]*Task
}

// NewRegistry creates an empty task registry.
func NewRegistry() *Registry {
	return &Registry{
		tasks: make(map[voice.Key]*Task),
	}
}

// StartOrReplace installs the task produced by spawn as the single
// live task for key. A previous task, if any, is cancelled first, so
// back-to-back rising edges never leave two timers running. spawn is
// called under the registry lock: the new task cannot observe the map
// before its own handle is installed.
func (r *Registry) StartOrReplace(key voice.Key, spawn func() *Task) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.tasks[key]; ok {
		prev.Cancel()
	}

	r.tasks[key] = spawn()
}

// Cancel cancels and removes the task for key. Absent keys are a no-op.
func (r *Registry) Cancel(key voice.Key) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.tasks[key]; ok {
		t.Cancel()
		delete(r.tasks, key)
	}
}

// removeIfCurrent removes the entry for key only while it still points
// at t. Called by a task on self-termination; the identity check keeps
// a stale removal from evicting a newer task that already replaced it.
func (r *Registry) removeIfCurrent(key voice.Key, t *Task) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.tasks[key] == t {
		delete(r.tasks, key)
	}
}

// Len returns the number of live tasks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.tasks)
}

// active reports whether key currently has a live task.
func (r *Registry) active(key voice.Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.tasks[key]

	return ok
}

// snapshot returns the current task handles, for shutdown draining.
func (r *Registry) snapshot() []*Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	tasks := make([]*Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		tasks = append(tasks, t)
	}

	return tasks
}
