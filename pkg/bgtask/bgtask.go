// Package bgtask is the one place in this module allowed to launch a
// goroutine that outlives the request that triggered it. Every
// fire-and-forget job — the scheduler's poll loop, the retention sweep,
// anything started from main rather than from a request handler — goes
// through a Tracker so the process can wait for it to stop cleanly on
// shutdown and so a panicking job is logged instead of taking the whole
// process down. Shaped after pkg/cleanup.Service's own
// Start/cancel/done-channel pattern, generalized from "one named job"
// to "however many named jobs a deployment wants to run".
package bgtask

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Job is one long-running background function. It must return promptly
// once ctx is cancelled.
type Job func(ctx context.Context) error

// Tracker supervises a set of named jobs, started together and stopped
// together. The zero value is not usable; construct with New.
type Tracker struct {
	mu     sync.Mutex
	wg     sync.WaitGroup
	cancel context.CancelFunc
	jobs   map[string]struct{}
}

// New constructs an empty Tracker.
func New() *Tracker {
	return &Tracker{jobs: map[string]struct{}{}}
}

// Go launches job under name, tracked until Stop or the job returns on
// its own. A job that panics is recovered and logged rather than
// crashing the process — the same failure mode a missed error return
// would have, just louder. Calling Go after Stop is a no-op.
func (t *Tracker) Go(ctx context.Context, name string, job Job) {
	t.mu.Lock()
	if t.cancel == nil {
		t.mu.Unlock()
		slog.Error("bgtask: Go called before Start, job dropped", "job", name)
		return
	}
	if _, dup := t.jobs[name]; dup {
		t.mu.Unlock()
		slog.Error("bgtask: duplicate job name, not launched", "job", name)
		return
	}
	t.jobs[name] = struct{}{}
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("bgtask: job panicked", "job", name, "panic", fmt.Sprint(r))
			}
			t.mu.Lock()
			delete(t.jobs, name)
			t.mu.Unlock()
		}()

		slog.Info("bgtask: job started", "job", name)
		if err := job(ctx); err != nil && ctx.Err() == nil {
			slog.Error("bgtask: job exited with error", "job", name, "error", err)
			return
		}
		slog.Info("bgtask: job stopped", "job", name)
	}()
}

// Start arms the Tracker against parent, returning a context every future
// Go call should honor for cancellation. Call once at process startup.
func (t *Tracker) Start(parent context.Context) context.Context {
	t.mu.Lock()
	defer t.mu.Unlock()
	ctx, cancel := context.WithCancel(parent)
	t.cancel = cancel
	return ctx
}

// Stop cancels every tracked job's context and blocks until all of them
// have returned.
func (t *Tracker) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	t.wg.Wait()
}

// Running reports the names of jobs currently in flight, for health
// reporting.
func (t *Tracker) Running() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	names := make([]string, 0, len(t.jobs))
	for name := range t.jobs {
		names = append(names, name)
	}
	return names
}
