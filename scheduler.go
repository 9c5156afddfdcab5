package tollywood

import (
	"context"
	"math/rand/v2"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Scheduler owns N worker queues, assigns executors on enqueue,
// coordinates stealing, and enforces the reduction budget.
//
// Grounded on bollywood's Engine for the shape (owns the running
// workers, exposes a small imperative API, has a graceful Shutdown) but
// replaces Engine's one-goroutine-per-actor model with BEAM-style
// worker queues and preemptive, budgeted episodes.
type Scheduler struct {
	maxReductions          int
	numWorkers             int
	processTimeThresholdMS int64
	timePenaltyFactor      int

	queues  []*workQueue
	workers []*Worker

	logger  *zap.SugaredLogger
	metrics *Metrics

	cancel context.CancelFunc
	group  *errgroup.Group
}

// SchedulerOption configures a Scheduler at construction time.
type SchedulerOption func(*Scheduler)

// WithLogger overrides the default no-op logger.
func WithLogger(l *zap.SugaredLogger) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

// WithMetrics attaches a Prometheus-backed recorder. Nil-safe when
// omitted.
func WithMetrics(m *Metrics) SchedulerOption {
	return func(s *Scheduler) { s.metrics = m }
}

// WithNumWorkers overrides the default of runtime.NumCPU().
func WithNumWorkers(n int) SchedulerOption {
	return func(s *Scheduler) { s.numWorkers = n }
}

// WithProcessTimeThreshold overrides the default 10ms threshold used to
// decide whether a message ran long enough to incur a time penalty.
func WithProcessTimeThreshold(ms int64) SchedulerOption {
	return func(s *Scheduler) { s.processTimeThresholdMS = ms }
}

// WithTimePenaltyFactor overrides the default penalty factor of 2
// applied to reductions once a message runs past the threshold.
func WithTimePenaltyFactor(factor int) SchedulerOption {
	return func(s *Scheduler) { s.timePenaltyFactor = factor }
}

// NewScheduler constructs the worker queues and launches the workers.
// max_reductions is required; num_workers defaults to CPU count,
// process_time_threshold_ms to 10, and time_penalty_factor to 2.
func NewScheduler(maxReductions int, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		maxReductions:          maxReductions,
		numWorkers:             runtime.NumCPU(),
		processTimeThresholdMS: 10,
		timePenaltyFactor:      2,
		logger:                 zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.numWorkers < 1 {
		s.numWorkers = 1
	}
	if s.processTimeThresholdMS < 1 {
		s.processTimeThresholdMS = 1
	}

	s.queues = make([]*workQueue, s.numWorkers)
	for i := range s.queues {
		s.queues[i] = &workQueue{}
	}
	s.workers = make([]*Worker, s.numWorkers)
	for i := range s.workers {
		s.workers[i] = newWorker(i, s)
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(ctx)
	s.cancel = cancel
	s.group = group
	for _, w := range s.workers {
		worker := w
		s.group.Go(func() error {
			worker.run(gctx)
			return nil
		})
	}

	return s
}

// Enqueue resumes the executor and offers it to a uniformly random
// worker queue. Guarded so an executor already Runnable or Running is
// never pushed a second time: the guard is independent of, and in
// addition to, the idempotent suspend/resume bookkeeping on Executor.
func (s *Scheduler) Enqueue(e *Executor) {
	e.ResumeExecution() // also called at the head of processActor; harmless, idempotent
	if !e.scheduled.CompareAndSwap(false, true) {
		return
	}
	idx := rand.IntN(s.numWorkers)
	s.queues[idx].pushBack(e)
	if s.metrics != nil {
		s.metrics.ObserveQueueDepth(idx, s.queues[idx].len())
	}
}

// RemoveActor scans all queues and removes every entry whose actor id
// matches, returning whether at least one was removed. Does not touch
// an in-flight executor — that episode will finish normally and may
// benignly re-enqueue the executor afterward, which a later RemoveActor
// or CleanAllWorkerQueues call cleans up.
func (s *Scheduler) RemoveActor(id string) bool {
	removedAny := false
	for _, q := range s.queues {
		if q.removeByID(id) > 0 {
			removedAny = true
		}
	}
	if !removedAny {
		s.logger.Warnw("remove_actor: unknown actor", "actor", id)
	}
	return removedAny
}

// CleanAllWorkerQueues removes every pending executor from every queue.
// Does not cancel in-flight work.
func (s *Scheduler) CleanAllWorkerQueues() {
	for _, q := range s.queues {
		q.drain()
	}
}

// Shutdown stops accepting new work from the workers' point of view and
// waits for all worker loops to exit. Pending (not in-flight) executors
// are dropped.
//
// Grounded on bollywood's Engine.Shutdown (stop, drain, wait) but swaps
// its manual WaitGroup and polling loop for golang.org/x/sync's
// errgroup, which ties worker-loop exit directly to context
// cancellation instead of a side-channel stop flag.
func (s *Scheduler) Shutdown() {
	s.CleanAllWorkerQueues()
	s.cancel()
	_ = s.group.Wait()
}

// stealWork iterates queues in index order, skipping workerID, and
// returns the first hit. Linear scan is acceptable: num_workers is
// tiny.
func (s *Scheduler) stealWork(workerID int) (*Executor, bool) {
	for i := 0; i < s.numWorkers; i++ {
		if i == workerID {
			continue
		}
		if e, ok := s.queues[i].popFront(); ok {
			if s.metrics != nil {
				s.metrics.IncSteals()
			}
			return e, true
		}
	}
	return nil, false
}

// processActor runs one episode for executor e: drain messages while
// active, non-empty, and under budget, charging reductions per message,
// then either suspend-and-re-enqueue because messages remain, or go
// dormant because the mailbox emptied. An empty mailbox always wins over
// a spent budget: an episode that drains the mailbox exactly as the
// budget runs out goes dormant rather than being re-enqueued.
func (s *Scheduler) processActor(e *Executor) {
	e.ResumeExecution() // also called from Enqueue; harmless, both idempotent

	reductions := 0
	for e.IsActive() && e.HasMessages() && reductions < s.maxReductions {
		msg, ok := e.DequeueMessage()
		if !ok {
			// Lost the message to a concurrent removal; treat as empty.
			break
		}

		start := time.Now()
		e.ProcessMessage(msg)
		elapsed := time.Since(start)

		charge := s.reductionCharge(elapsed)
		reductions += charge
		if s.metrics != nil {
			s.metrics.IncMessagesProcessed()
			s.metrics.AddReductions(charge)
		}
	}

	if e.HasMessages() {
		e.SuspendExecution()
		e.scheduled.Store(false)
		s.Enqueue(e)
		return
	}

	// Mailbox looked drained: publish the dormant state by
	// clearing scheduled first, then re-check for a message that a
	// concurrent Post raced in during the gap between the loop's last
	// HasMessages() and this point. Clearing before the recheck, not
	// after, closes the lost-wakeup window: a concurrent Enqueue that
	// lands before the Store below sees scheduled still true and its CAS
	// harmlessly no-ops (the recheck below catches the message instead);
	// one that lands after sees scheduled==false and queues the executor
	// itself. Either way the message is never stranded in a dormant
	// mailbox with nothing watching it.
	e.scheduled.Store(false)
	if e.HasMessages() {
		s.Enqueue(e)
	}
}

// reductionCharge charges 1 reduction for a message handled within the
// time threshold, otherwise 1 + floor(elapsed/threshold) * penalty, so a
// slow actor burns budget proportional to wall time instead of message
// count.
func (s *Scheduler) reductionCharge(elapsed time.Duration) int {
	thresholdMS := s.processTimeThresholdMS
	if thresholdMS < 1 {
		thresholdMS = 1
	}
	thresholdNS := thresholdMS * int64(time.Millisecond)
	elapsedNS := elapsed.Nanoseconds()
	if elapsedNS <= thresholdNS {
		return 1
	}
	return 1 + int(elapsedNS/thresholdNS)*s.timePenaltyFactor
}
