package debounce

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// MinDelay is the shortest delay Register accepts. Anything below it is
// a caller error, not something to clamp.
const MinDelay = time.Second

var (
	ErrDelayTooShort = errors.New("debounce: delay cannot be less than one second")
	ErrShutDown      = errors.New("debounce: scheduler is shut down")
)

type task struct {
	timer *time.Timer
	done  chan struct{}
	// pred is the done channel of an execution of the same key that
	// already started when this task was registered. The new execution
	// waits for it, so two callbacks for one key never overlap.
	pred chan struct{}
}

// Scheduler is a registry of deferred callbacks keyed by an arbitrary
// string. Registering a key that is already pending cancels the pending
// callback and starts the delay over, which is how rapid re-triggers
// coalesce into a single execution.
type Scheduler struct {
	logger *zap.Logger

	mu      sync.Mutex
	pending map[string]*task
	closed  bool
}

func NewScheduler(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		logger:  logger,
		pending: make(map[string]*task),
	}
}

// Register schedules callback to run once delay has elapsed. An empty
// key gets a random one. The returned key is whatever the callback
// ended up registered under.
func (s *Scheduler) Register(key string, delay time.Duration, callback func()) (string, error) {
	if delay < MinDelay {
		return "", ErrDelayTooShort
	}
	if key == "" {
		key = uuid.New().String()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrShutDown
	}

	t := &task{
		done: make(chan struct{}),
	}

	if prev, ok := s.pending[key]; ok {
		if prev.timer.Stop() {
			// prev never fires, inherit whatever it was chained behind
			t.pred = prev.pred
		} else {
			// already firing, chain behind it
			t.pred = prev.done
		}
	}

	t.timer = time.AfterFunc(delay, func() {
		s.run(key, t, callback)
	})
	s.pending[key] = t

	s.logger.Debug("registered task",
		zap.String("key", key),
		zap.Duration("delay", delay),
	)

	return key, nil
}

// Deregister cancels the pending callback for key, if any.
func (s *Scheduler) Deregister(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.pending[key]
	if !ok {
		return
	}

	t.timer.Stop()
	delete(s.pending, key)

	s.logger.Debug("deregistered task",
		zap.String("key", key),
	)
}

// Shutdown cancels every pending callback. Register fails afterwards.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, t := range s.pending {
		t.timer.Stop()
		delete(s.pending, key)
	}
	s.closed = true

	s.logger.Info("scheduler shut down")
}

// Pending returns the number of callbacks waiting to fire.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.pending)
}

func (s *Scheduler) run(key string, t *task, callback func()) {
	defer close(t.done)

	s.mu.Lock()
	if s.pending[key] != t {
		// cancelled or replaced between firing and starting
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if t.pred != nil {
		<-t.pred
	}

	s.logger.Debug("running task",
		zap.String("key", key),
	)

	callback()

	s.mu.Lock()
	if s.pending[key] == t {
		delete(s.pending, key)
	}
	s.mu.Unlock()
}
