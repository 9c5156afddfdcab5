// Package registry is the external actor-system facade the core
// scheduler leaves out of scope. It owns the actor registry, mints
// opaque IDs when the caller doesn't supply one, and is the thing that
// calls Scheduler.Enqueue whenever a dormant actor receives a Post.
package registry

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lguibr/tollywood"
)

// entry tracks one registered actor. alive lets Remove give a stricter
// guarantee than the scheduler offers on its own: once Remove runs, a
// racing in-flight episode's re-enqueue will push the executor back
// into a queue, but the registry will never hand it out again via
// Post.
type entry struct {
	executor *tollywood.Executor
	alive    bool
}

// System is the actor registry facade. IDs are opaque strings chosen by
// the caller or minted as UUIDs — this is ID generation, not a naming
// policy: no aliasing, no attribute lookup.
type System struct {
	mu        sync.Mutex
	scheduler *tollywood.Scheduler
	executors map[string]*entry
	logger    *zap.SugaredLogger
}

// Option configures a System at construction time.
type Option func(*System)

// WithLogger overrides the default no-op logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *System) { s.logger = l }
}

// New builds a registry facade over an existing Scheduler.
func New(scheduler *tollywood.Scheduler, opts ...Option) *System {
	s := &System{
		scheduler: scheduler,
		executors: make(map[string]*entry),
		logger:    zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Spawn registers a new actor under id (or a generated UUID if id is
// empty) and returns the opaque id actually used. The actor starts
// Dormant; it only becomes Runnable once something Posts to it.
func (s *System) Spawn(id string, actor tollywood.Actor, initialState interface{}, opts ...tollywood.ExecutorOption) string {
	if id == "" {
		id = uuid.NewString()
	}
	exec := tollywood.NewExecutor(id, actor, initialState, opts...)

	s.mu.Lock()
	s.executors[id] = &entry{executor: exec, alive: true}
	s.mu.Unlock()

	return id
}

// Post delivers a message to the named actor and hands it to the
// scheduler. Scheduler.Enqueue is idempotent against an
// already-runnable-or-running executor, so Post can call it
// unconditionally after every message without risking a double queue
// entry.
func (s *System) Post(id string, msg interface{}) bool {
	s.mu.Lock()
	e, ok := s.executors[id]
	s.mu.Unlock()
	if !ok || !e.alive {
		s.logger.Warnw("post to unknown actor", "actor", id)
		return false
	}

	e.executor.Post(msg)
	s.scheduler.Enqueue(e.executor)
	return true
}

// Remove marks the actor dead in the registry and asks the scheduler to
// drop its queued entries. It reports whether id was a registered actor,
// whether or not the scheduler had a queued entry for it. Best-effort
// against an in-flight episode — see the entry type's doc.
func (s *System) Remove(id string) bool {
	s.mu.Lock()
	e, ok := s.executors[id]
	if ok {
		e.alive = false
		delete(s.executors, id)
	}
	s.mu.Unlock()
	if !ok {
		s.logger.Warnw("remove: unknown actor", "actor", id)
		return false
	}
	s.scheduler.RemoveActor(id)
	return true
}

// Count returns the number of currently registered (alive) actors.
func (s *System) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.executors)
}

// State returns the current state of a registered actor, for
// inspection/tests. The second return is false if id is unknown.
func (s *System) State(id string) (interface{}, bool) {
	s.mu.Lock()
	e, ok := s.executors[id]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	return e.executor.State(), true
}
