package tasks

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/orbitune/internal/shared"
)

// Task describes one scheduled callback.
type Task struct {
	ID    string
	Name  string
	Epoch uint64
	Due   time.Time
}

type scheduled struct {
	task  Task
	timer *time.Timer
}

type epochScope struct {
	ctx    context.Context
	cancel context.CancelFunc
	tasks  map[string]*scheduled
}

// Scheduler runs delayed callbacks grouped by session epoch.
//
// Cancelling an epoch stops its pending timers and cancels the context handed to callbacks
// that already started. Epochs only move forward: once cancelled, an epoch and every earlier one stay dead.
type Scheduler struct {
	mu     sync.Mutex
	scopes map[uint64]*epochScope
	floor  uint64 // lowest epoch still accepted
	closed bool
	logger *log.Logger
}

// NewScheduler creates an empty scheduler.
func NewScheduler(logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Scheduler{scopes: make(map[uint64]*epochScope), logger: logger}
}

func (s *Scheduler) dead(epoch uint64) bool {
	return s.closed || epoch < s.floor
}

// scope returns the live scope for epoch, creating it lazily. Callers hold mu.
func (s *Scheduler) scope(epoch uint64) *epochScope {
	sc, ok := s.scopes[epoch]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		sc = &epochScope{ctx: ctx, cancel: cancel, tasks: make(map[string]*scheduled)}
		s.scopes[epoch] = sc
	}
	return sc
}

// Context derives a context from parent that is also cancelled when epoch is.
func (s *Scheduler) Context(parent context.Context, epoch uint64) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dead(epoch) {
		cancel()
		return ctx, cancel
	}

	stop := context.AfterFunc(s.scope(epoch).ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Schedule runs fn once after delay unless epoch is cancelled first.
func (s *Scheduler) Schedule(epoch uint64, delay time.Duration, name string, fn func(context.Context)) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dead(epoch) {
		return Task{}, fmt.Errorf("%w: cannot schedule %s for epoch %d", shared.ErrStaleEpoch, name, epoch)
	}

	sc := s.scope(epoch)
	task := Task{ID: shared.GenerateID(), Name: name, Epoch: epoch, Due: time.Now().Add(delay)}
	entry := &scheduled{task: task}
	entry.timer = time.AfterFunc(delay, func() { s.fire(sc, task, fn) })
	sc.tasks[task.ID] = entry

	s.logger.Debug("task scheduled", "task", name, "id", task.ID, "epoch", epoch, "delay", delay)
	return task, nil
}

func (s *Scheduler) fire(sc *epochScope, task Task, fn func(context.Context)) {
	s.mu.Lock()
	delete(sc.tasks, task.ID)
	ctx := sc.ctx
	s.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	s.logger.Debug("task running", "task", task.Name, "id", task.ID, "epoch", task.Epoch)
	fn(ctx)
}

// Pending lists tasks that have not fired yet.
func (s *Scheduler) Pending() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Task
	for _, sc := range s.scopes {
		for _, e := range sc.tasks {
			out = append(out, e.task)
		}
	}
	return out
}

// Cancel stops every task of epoch and of earlier epochs. It returns the number of timers stopped.
func (s *Scheduler) Cancel(epoch uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch+1 > s.floor {
		s.floor = epoch + 1
	}
	n := 0
	for e, sc := range s.scopes {
		if e >= s.floor {
			continue
		}
		n += s.stop(sc)
		delete(s.scopes, e)
	}
	if n > 0 {
		s.logger.Debug("tasks cancelled", "epoch", epoch, "count", n)
	}
	return n
}

// Shutdown cancels everything and refuses further scheduling.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for e, sc := range s.scopes {
		s.stop(sc)
		delete(s.scopes, e)
	}
}

func (s *Scheduler) stop(sc *epochScope) int {
	n := 0
	for id, e := range sc.tasks {
		if e.timer.Stop() {
			n++
		}
		delete(sc.tasks, id)
	}
	sc.cancel()
	return n
}
