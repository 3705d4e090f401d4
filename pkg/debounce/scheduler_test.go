package debounce

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRegisterCoalescesRepeatedKeys(t *testing.T) {
	scheduler := NewScheduler(zap.NewNop())
	defer scheduler.Shutdown()

	var mu sync.Mutex
	var calls []int

	for i := 1; i <= 5; i++ {
		value := i
		_, err := scheduler.Register("ad-1", time.Second, func() {
			mu.Lock()
			calls = append(calls, value)
			mu.Unlock()
		})
		if err != nil {
			t.Fatalf("register failed: %v", err)
		}
	}

	if scheduler.Pending() != 1 {
		t.Fatalf("expected one pending task, got %d", scheduler.Pending())
	}

	time.Sleep(1500 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 1 {
		t.Fatalf("expected exactly one execution, got %d", len(calls))
	}
	if calls[0] != 5 {
		t.Fatalf("expected the last registration to win, got %d", calls[0])
	}
	if scheduler.Pending() != 0 {
		t.Fatalf("completed task should leave the pending set")
	}
}

func TestReplacementDuringExecutionStaysSerial(t *testing.T) {
	scheduler := NewScheduler(zap.NewNop())
	defer scheduler.Shutdown()

	var mu sync.Mutex
	active := 0
	maxActive := 0
	enter := func() {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()
	}
	leave := func() {
		mu.Lock()
		active--
		mu.Unlock()
	}

	started := make(chan struct{})
	_, err := scheduler.Register("ad-1", time.Second, func() {
		enter()
		defer leave()
		close(started)
		time.Sleep(2 * time.Second)
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	<-started

	// the first callback is still running; the next registration chains
	// behind it, and replacing that one again must keep the chain
	var fired int32
	for i := 0; i < 2; i++ {
		_, err = scheduler.Register("ad-1", time.Second, func() {
			enter()
			defer leave()
			atomic.AddInt32(&fired, 1)
		})
		if err != nil {
			t.Fatalf("register failed: %v", err)
		}
		time.Sleep(200 * time.Millisecond)
	}

	time.Sleep(3 * time.Second)

	if atomic.LoadInt32(&fired) != 1 {
		t.Fatalf("expected one replacement execution, got %d", fired)
	}
	mu.Lock()
	defer mu.Unlock()
	if maxActive != 1 {
		t.Fatalf("executions of one key overlapped, max concurrency %d", maxActive)
	}
}

func TestRegisterRejectsShortDelay(t *testing.T) {
	scheduler := NewScheduler(zap.NewNop())
	defer scheduler.Shutdown()

	_, err := scheduler.Register("ad-1", 100*time.Millisecond, func() {})
	if err != ErrDelayTooShort {
		t.Fatalf("expected ErrDelayTooShort, got %v", err)
	}
}

func TestRegisterGeneratesKey(t *testing.T) {
	scheduler := NewScheduler(zap.NewNop())
	defer scheduler.Shutdown()

	key, err := scheduler.Register("", time.Second, func() {})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if key == "" {
		t.Fatalf("expected a generated key")
	}
}

func TestDeregisterCancels(t *testing.T) {
	scheduler := NewScheduler(zap.NewNop())
	defer scheduler.Shutdown()

	var fired int32
	_, err := scheduler.Register("ad-1", time.Second, func() {
		atomic.AddInt32(&fired, 1)
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	scheduler.Deregister("ad-1")

	// absent keys are a no-op
	scheduler.Deregister("never-registered")

	time.Sleep(1500 * time.Millisecond)

	if atomic.LoadInt32(&fired) != 0 {
		t.Fatalf("deregistered callback must not fire")
	}
	if scheduler.Pending() != 0 {
		t.Fatalf("pending set should be empty")
	}
}

func TestShutdownCancelsEverything(t *testing.T) {
	scheduler := NewScheduler(zap.NewNop())

	var fired int32
	for _, key := range []string{"a", "b", "c"} {
		_, err := scheduler.Register(key, time.Second, func() {
			atomic.AddInt32(&fired, 1)
		})
		if err != nil {
			t.Fatalf("register failed: %v", err)
		}
	}

	scheduler.Shutdown()

	if scheduler.Pending() != 0 {
		t.Fatalf("shutdown should clear the pending set")
	}

	_, err := scheduler.Register("d", time.Second, func() {})
	if err != ErrShutDown {
		t.Fatalf("expected ErrShutDown after shutdown, got %v", err)
	}

	time.Sleep(1500 * time.Millisecond)

	if atomic.LoadInt32(&fired) != 0 {
		t.Fatalf("no callback may fire after shutdown")
	}
}
