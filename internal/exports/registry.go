// Package exports drives asynchronous report exports from submission to
// download: polling runs in background tasks keyed by job id and progress
// is reported through the user's notification inbox.
package exports

import (
	"context"
	"sort"
	"sync"
)

// Registry is a keyed set of cancelable background tasks. A key never has
// more than one running task.
type Registry struct {
	mu       sync.Mutex
	tasks    map[string]task
	next     uint64
	draining int
	wg       sync.WaitGroup
}

type task struct {
	id     uint64
	cancel context.CancelFunc
}

func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]task)}
}

// Start runs fn in its own goroutine under key unless a task is already
// registered for key or the registry is draining. The task deregisters
// itself when fn returns.
func (r *Registry) Start(parent context.Context, key string, fn func(ctx context.Context)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.draining > 0 {
		return false
	}
	if _, running := r.tasks[key]; running {
		return false
	}

	ctx, cancel := context.WithCancel(parent)
	r.next++
	t := task{id: r.next, cancel: cancel}
	r.tasks[key] = t
	activePollers.Inc()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.release(key, t.id)
		fn(ctx)
	}()
	return true
}

// release drops key if it still belongs to the task with id.
func (r *Registry) release(key string, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[key]; ok && t.id == id {
		t.cancel()
		delete(r.tasks, key)
		activePollers.Dec()
	}
}

// Cancel stops the task registered for key.
func (r *Registry) Cancel(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[key]
	if !ok {
		return false
	}
	t.cancel()
	delete(r.tasks, key)
	activePollers.Dec()
	return true
}

// CancelAll stops every registered task and returns how many there were.
func (r *Registry) CancelAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.tasks)
	for key, t := range r.tasks {
		t.cancel()
		delete(r.tasks, key)
	}
	activePollers.Sub(float64(n))
	return n
}

// Drain cancels every task and waits for all of them to return. Start is
// refused until Drain returns.
func (r *Registry) Drain() int {
	r.mu.Lock()
	r.draining++
	r.mu.Unlock()

	n := r.CancelAll()
	r.wg.Wait()

	r.mu.Lock()
	r.draining--
	r.mu.Unlock()
	return n
}

// Active reports whether a task is registered for key.
func (r *Registry) Active(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tasks[key]
	return ok
}

// Keys returns the registered keys, sorted.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.tasks))
	for k := range r.tasks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// Wait blocks until every task goroutine has returned.
func (r *Registry) Wait() {
	r.wg.Wait()
}
