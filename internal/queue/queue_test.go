package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type payload struct {
	EventID string `json:"eventId"`
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestEnqueue_DispatchesToHandler(t *testing.T) {
	q := New("test", Options{Workers: 2, Capacity: 8})

	var mu sync.Mutex
	var got []payload
	q.Handle("analyze", func(ctx context.Context, job *Job) error {
		var p payload
		if err := job.Decode(&p); err != nil {
			t.Errorf("decode: %v", err)
			return nil
		}
		mu.Lock()
		got = append(got, p)
		mu.Unlock()
		return nil
	})
	q.Start()
	defer q.Shutdown(context.Background())

	id, err := q.Enqueue(context.Background(), "analyze", payload{EventID: "e1"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if id == "" {
		t.Fatalf("expected job id")
	}

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	})
	mu.Lock()
	defer mu.Unlock()
	if got[0].EventID != "e1" {
		t.Fatalf("payload = %+v", got[0])
	}
}

func TestFailingHandler_IsRedelivered(t *testing.T) {
	q := New("test", Options{Workers: 1, MaxAttempts: 3, Backoff: time.Millisecond})

	var attempts int32
	q.Handle("analyze", func(ctx context.Context, job *Job) error {
		n := atomic.AddInt32(&attempts, 1)
		if int(n) != job.Attempt {
			t.Errorf("attempt %d delivered as %d", n, job.Attempt)
		}
		if n < 3 {
			return errors.New("transient")
		}
		return nil
	})
	q.Start()
	defer q.Shutdown(context.Background())

	if _, err := q.Enqueue(context.Background(), "analyze", payload{EventID: "e1"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	waitFor(t, time.Second, func() bool { return atomic.LoadInt32(&attempts) == 3 })

	// No further deliveries after success.
	time.Sleep(20 * time.Millisecond)
	if n := atomic.LoadInt32(&attempts); n != 3 {
		t.Fatalf("attempts = %d; want exactly 3", n)
	}
}

func TestAttemptBudget_Exhausted(t *testing.T) {
	q := New("test", Options{Workers: 1, MaxAttempts: 2, Backoff: time.Millisecond})

	var attempts int32
	q.Handle("analyze", func(ctx context.Context, job *Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("permanent")
	})
	q.Start()
	defer q.Shutdown(context.Background())

	if _, err := q.Enqueue(context.Background(), "analyze", payload{}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	waitFor(t, time.Second, func() bool { return atomic.LoadInt32(&attempts) == 2 })
	time.Sleep(20 * time.Millisecond)
	if n := atomic.LoadInt32(&attempts); n != 2 {
		t.Fatalf("attempts = %d; want exactly MaxAttempts", n)
	}
}

func TestHandlerPanic_DoesNotKillWorker(t *testing.T) {
	q := New("test", Options{Workers: 1, MaxAttempts: 1})

	var handled int32
	q.Handle("boom", func(ctx context.Context, job *Job) error {
		panic("bad payload")
	})
	q.Handle("ok", func(ctx context.Context, job *Job) error {
		atomic.AddInt32(&handled, 1)
		return nil
	})
	q.Start()
	defer q.Shutdown(context.Background())

	if _, err := q.Enqueue(context.Background(), "boom", payload{}); err != nil {
		t.Fatalf("Enqueue boom: %v", err)
	}
	if _, err := q.Enqueue(context.Background(), "ok", payload{}); err != nil {
		t.Fatalf("Enqueue ok: %v", err)
	}

	waitFor(t, time.Second, func() bool { return atomic.LoadInt32(&handled) == 1 })
}

func TestEnqueue_FullQueue(t *testing.T) {
	// No workers started, capacity 1: second enqueue must not block.
	q := New("test", Options{Workers: 1, Capacity: 1})
	q.Handle("analyze", func(ctx context.Context, job *Job) error { return nil })

	if _, err := q.Enqueue(context.Background(), "analyze", payload{}); err != nil {
		t.Fatalf("first Enqueue: %v", err)
	}
	if _, err := q.Enqueue(context.Background(), "analyze", payload{}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestEnqueue_AfterShutdown(t *testing.T) {
	q := New("test", Options{Workers: 1})
	q.Handle("analyze", func(ctx context.Context, job *Job) error { return nil })
	q.Start()

	if err := q.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if _, err := q.Enqueue(context.Background(), "analyze", payload{}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
	// Shutdown is idempotent.
	if err := q.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
}

func TestShutdown_DrainsBufferedJobs(t *testing.T) {
	q := New("test", Options{Workers: 1, Capacity: 16})

	var handled int32
	q.Handle("analyze", func(ctx context.Context, job *Job) error {
		atomic.AddInt32(&handled, 1)
		return nil
	})

	for i := 0; i < 5; i++ {
		if _, err := q.Enqueue(context.Background(), "analyze", payload{}); err != nil {
			t.Fatalf("Enqueue %d: %v", i, err)
		}
	}
	q.Start()

	if err := q.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if n := atomic.LoadInt32(&handled); n != 5 {
		t.Fatalf("handled = %d; want all 5 buffered jobs drained", n)
	}
}

func TestShutdownDeadline_CancelsHandlerContext(t *testing.T) {
	q := New("test", Options{Workers: 1, MaxAttempts: 1})

	started := make(chan struct{})
	cancelled := make(chan struct{})
	q.Handle("analyze", func(ctx context.Context, job *Job) error {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	})
	q.Start()

	if _, err := q.Enqueue(context.Background(), "analyze", payload{}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	<-started

	sctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := q.Shutdown(sctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Shutdown = %v; want deadline exceeded", err)
	}

	// Abandoning the drain must unblock the handler.
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("handler context was not cancelled after shutdown deadline")
	}
}

func TestHandlerContext_LiveDuringDispatch(t *testing.T) {
	q := New("test", Options{Workers: 1})

	ctxErr := make(chan error, 1)
	q.Handle("analyze", func(ctx context.Context, job *Job) error {
		ctxErr <- ctx.Err()
		return nil
	})
	q.Start()
	defer q.Shutdown(context.Background())

	if _, err := q.Enqueue(context.Background(), "analyze", payload{}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	select {
	case err := <-ctxErr:
		if err != nil {
			t.Fatalf("handler ctx already done: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("handler not invoked")
	}
}

func TestUnknownKind_IsDropped(t *testing.T) {
	q := New("test", Options{Workers: 1})
	q.Start()
	defer q.Shutdown(context.Background())

	if _, err := q.Enqueue(context.Background(), "mystery", payload{}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	// Nothing to assert beyond "does not hang or panic"; drain on shutdown.
}
