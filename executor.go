package tollywood

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// PersistenceAdapter is an optional external collaborator. An Executor
// may consult it around suspend/resume, at its own discretion; the
// Scheduler never calls it directly.
type PersistenceAdapter interface {
	Load(id string) (interface{}, error)
	Save(id string, state interface{}) error
}

// Executor binds one Actor to one Mailbox plus the flags that drive
// scheduling. It is the only thing that ever reads or writes the
// actor's private state — single-writer, no user-visible locking.
//
// Grounded on bollywood's process: the panic-catch-and-log posture in
// ProcessMessage below comes from process.invokeReceive, but the
// outcome on a fault differs on purpose — bollywood stops the actor,
// here the previous state is retained and the actor stays scheduled.
type Executor struct {
	ID string

	actor       Actor
	mailbox     *Mailbox
	state       interface{}
	reply       ReplySink
	persistence PersistenceAdapter
	logger      *zap.SugaredLogger

	active    atomic.Bool
	suspended atomic.Bool
	// scheduled is true from the moment the executor is pushed onto a
	// worker queue until the episode that pops it decides whether to
	// re-enqueue. It is the guard that keeps an executor out of a
	// second queue while already runnable or running, independent of
	// the suspended/resume bookkeeping.
	scheduled atomic.Bool
}

// ExecutorOption configures an Executor at construction time.
type ExecutorOption func(*Executor)

// WithReplySink sets the out-of-band reply destination.
func WithReplySink(sink ReplySink) ExecutorOption {
	return func(e *Executor) { e.reply = sink }
}

// WithPersistence attaches an optional persistence adapter.
func WithPersistence(p PersistenceAdapter) ExecutorOption {
	return func(e *Executor) { e.persistence = p }
}

// WithExecutorLogger overrides the default no-op logger.
func WithExecutorLogger(l *zap.SugaredLogger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// NewExecutor creates an executor bound to a fresh mailbox, starting
// active and dormant (not yet scheduled, not yet suspended-and-parked —
// it simply has never run).
func NewExecutor(id string, actor Actor, initialState interface{}, opts ...ExecutorOption) *Executor {
	e := &Executor{
		ID:      id,
		actor:   actor,
		mailbox: NewMailbox(),
		state:   initialState,
		logger:  zap.NewNop().Sugar(),
	}
	e.active.Store(true)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Mailbox returns the executor's mailbox.
func (e *Executor) Mailbox() *Mailbox { return e.mailbox }

// Post appends a message to the mailbox. Callers that want the actor
// scheduled afterward still need to call Scheduler.Enqueue — Executor
// itself never touches a Scheduler.
func (e *Executor) Post(msg interface{}) { e.mailbox.Post(msg) }

// DequeueMessage is a thin delegation to the mailbox.
func (e *Executor) DequeueMessage() (interface{}, bool) { return e.mailbox.Dequeue() }

// HasMessages reports whether the mailbox is non-empty.
func (e *Executor) HasMessages() bool { return e.mailbox.HasMessages() }

// IsActive reports whether the executor is administratively eligible to
// run (not paused).
func (e *Executor) IsActive() bool { return e.active.Load() }

// SetActive administratively pauses or unpauses the executor.
func (e *Executor) SetActive(v bool) { e.active.Store(v) }

// State returns the current actor state. Safe to call only when no
// episode for this executor is in flight (e.g. from tests, or from the
// registry facade between messages).
func (e *Executor) State() interface{} { return e.state }

// SuspendExecution parks the executor between message batches.
// Idempotent: only the transition from resumed to suspended performs
// the persistence side effect.
func (e *Executor) SuspendExecution() {
	if !e.suspended.CompareAndSwap(false, true) {
		return
	}
	if e.persistence != nil {
		if err := e.persistence.Save(e.ID, e.state); err != nil {
			e.logger.Warnw("persistence save failed on suspend", "actor", e.ID, "error", err)
		}
	}
}

// ResumeExecution un-parks the executor. Idempotent. Called from both
// Scheduler.Enqueue and the head of processActor — both call sites are
// intentional, not a mistake; the second is a no-op whenever the first
// already ran.
func (e *Executor) ResumeExecution() {
	if !e.suspended.CompareAndSwap(true, false) {
		return
	}
	if e.persistence != nil {
		if loaded, err := e.persistence.Load(e.ID); err != nil {
			e.logger.Warnw("persistence load failed on resume", "actor", e.ID, "error", err)
		} else if loaded != nil {
			e.state = loaded
		}
	}
}

// ProcessMessage invokes the user handler, absorbing any panic as a
// logged fault that preserves the previous state. One bad message
// never removes the actor from scheduling.
func (e *Executor) ProcessMessage(msg interface{}) {
	prevState := e.state
	func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Errorw("actor handler fault, previous state retained",
					"actor", e.ID, "panic", r)
				e.state = prevState
			}
		}()
		nextState, reply := e.actor.Receive(msg, e.state)
		e.state = nextState
		if e.reply != nil {
			e.reply(e.ID, reply)
		}
	}()
}
