package tasks

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/offline/internal/models"
	"github.com/desertthunder/offline/internal/shared"
)

// passLog is a [PassRecorder] that keeps final pass states in memory
type passLog struct {
	mu       sync.Mutex
	created  int
	finished []*models.Pass
	err      error
}

func (r *passLog) Create(pass *models.Pass) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created++
	return r.err
}

func (r *passLog) Update(pass *models.Pass) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, pass)
	return r.err
}

func (r *passLog) statuses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, p := range r.finished {
		out = append(out, p.Status())
	}
	return out
}

func quietLoop(name string, fn PassFunc, recorder PassRecorder) *Loop {
	return NewLoop(name, fn, recorder, shared.NewRecordingReporter(nil), shared.NewLogger(io.Discard))
}

// runLoop starts l's worker for the duration of the test.
func runLoop(t *testing.T, l *Loop) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitIdle(t *testing.T, w interface{ WaitIdle(context.Context) error }) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.WaitIdle(ctx); err != nil {
		t.Fatalf("never became idle: %v", err)
	}
}

func TestLoopState(t *testing.T) {
	tests := []struct {
		state LoopState
		want  string
	}{
		{Idle, "idle"},
		{Running, "running"},
		{RunningWithPendingRerun, "running (rerun pending)"},
		{LoopState(42), ""},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}

func TestLoop(t *testing.T) {
	t.Run("Request From Idle Runs One Pass", func(t *testing.T) {
		l := quietLoop("test", func(ctx context.Context, pass *models.Pass) error { return nil }, nil)
		runLoop(t, l)

		if l.State() != Idle {
			t.Fatalf("expected new loop to be idle, got %s", l.State())
		}
		l.Request()
		waitIdle(t, l)

		if l.Passes() != 1 {
			t.Errorf("expected 1 pass, got %d", l.Passes())
		}
	})

	t.Run("Requests During A Pass Coalesce Into One Rerun", func(t *testing.T) {
		started := make(chan struct{}, 10)
		release := make(chan struct{})
		l := quietLoop("test", func(ctx context.Context, pass *models.Pass) error {
			started <- struct{}{}
			<-release
			return nil
		}, nil)
		runLoop(t, l)

		l.Request()
		<-started
		if l.State() != Running {
			t.Fatalf("expected running, got %s", l.State())
		}

		for range 50 {
			l.Request()
		}
		if l.State() != RunningWithPendingRerun {
			t.Fatalf("expected pending rerun, got %s", l.State())
		}

		close(release)
		waitIdle(t, l)

		if l.Passes() != 2 {
			t.Errorf("expected exactly 2 passes, got %d", l.Passes())
		}
	})

	t.Run("Requests Before The Worker Starts Are Kept", func(t *testing.T) {
		l := quietLoop("test", func(ctx context.Context, pass *models.Pass) error { return nil }, nil)
		l.Request()
		if l.State() != Running {
			t.Fatalf("expected running, got %s", l.State())
		}
		l.Request()
		if l.State() != RunningWithPendingRerun {
			t.Fatalf("expected pending rerun, got %s", l.State())
		}

		runLoop(t, l)
		waitIdle(t, l)
		if l.Passes() != 2 {
			t.Errorf("expected exactly 2 passes, got %d", l.Passes())
		}
	})

	t.Run("Passes Never Overlap", func(t *testing.T) {
		var mu sync.Mutex
		active, maxActive := 0, 0
		l := quietLoop("test", func(ctx context.Context, pass *models.Pass) error {
			mu.Lock()
			active++
			maxActive = max(maxActive, active)
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
			return nil
		}, nil)
		runLoop(t, l)

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 25 {
					l.Request()
				}
			}()
		}
		wg.Wait()
		waitIdle(t, l)

		if maxActive != 1 {
			t.Errorf("expected at most one pass at a time, saw %d", maxActive)
		}
	})

	t.Run("Cancel Aborts The Running Pass", func(t *testing.T) {
		started := make(chan struct{}, 1)
		log := &passLog{}
		l := quietLoop("test", func(ctx context.Context, pass *models.Pass) error {
			started <- struct{}{}
			<-ctx.Done()
			return ctx.Err()
		}, log)
		runLoop(t, l)

		l.Request()
		<-started
		l.Request()
		l.Cancel()
		waitIdle(t, l)

		if l.Passes() != 1 {
			t.Errorf("expected the pending rerun to be dropped, got %d passes", l.Passes())
		}
		if got := log.statuses(); len(got) != 1 || got[0] != models.PassCancelled {
			t.Errorf("expected one cancelled pass, got %v", got)
		}
	})

	t.Run("Request After Cancel Is Honored", func(t *testing.T) {
		started := make(chan struct{}, 2)
		var calls atomic.Int32
		l := quietLoop("test", func(ctx context.Context, pass *models.Pass) error {
			started <- struct{}{}
			if calls.Add(1) == 1 {
				<-ctx.Done()
				return ctx.Err()
			}
			return nil
		}, nil)
		runLoop(t, l)

		l.Request()
		<-started
		l.Cancel()
		l.Request()
		waitIdle(t, l)

		if l.Passes() != 2 {
			t.Errorf("expected a fresh pass after cancel, got %d passes", l.Passes())
		}
	})

	t.Run("Cancel Drops Queued Work", func(t *testing.T) {
		l := quietLoop("test", func(ctx context.Context, pass *models.Pass) error { return nil }, nil)
		l.Request()
		l.Cancel()
		if l.State() != Idle {
			t.Fatalf("expected idle after cancel, got %s", l.State())
		}

		runLoop(t, l)
		l.Request()
		waitIdle(t, l)
		if l.Passes() != 1 {
			t.Errorf("expected only the later request to run, got %d passes", l.Passes())
		}
	})

	t.Run("Cancel While Idle Is A No-op", func(t *testing.T) {
		l := quietLoop("test", func(ctx context.Context, pass *models.Pass) error { return nil }, nil)
		l.Cancel()
		if l.State() != Idle {
			t.Errorf("expected idle, got %s", l.State())
		}
	})

	t.Run("WaitIdle Honors Context", func(t *testing.T) {
		l := quietLoop("test", func(ctx context.Context, pass *models.Pass) error { return nil }, nil)
		l.Request()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if err := l.WaitIdle(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	})

	t.Run("Records Pass Outcomes", func(t *testing.T) {
		calls := 0
		log := &passLog{}
		l := quietLoop("test", func(ctx context.Context, pass *models.Pass) error {
			calls++
			if calls == 2 {
				return errors.New("catalog down")
			}
			pass.SetCounts(1, 2, 0)
			return nil
		}, log)
		runLoop(t, l)

		l.Request()
		waitIdle(t, l)
		l.Request()
		waitIdle(t, l)

		if log.created != 2 {
			t.Errorf("expected 2 created passes, got %d", log.created)
		}
		got := log.statuses()
		if len(got) != 2 || got[0] != models.PassCompleted || got[1] != models.PassFailed {
			t.Fatalf("unexpected statuses %v", got)
		}

		first, second := log.finished[0], log.finished[1]
		if first.Loop() != "test" || first.Downloaded() != 2 || first.Deleted() != 1 {
			t.Errorf("unexpected first pass %+v", first)
		}
		if first.FinishedAt() == nil {
			t.Error("expected finish time to be set")
		}
		if second.ErrorMessage() != "catalog down" {
			t.Errorf("expected error message, got %q", second.ErrorMessage())
		}
		if first.ID() == "" || first.ID() == second.ID() {
			t.Error("expected distinct pass IDs")
		}
	})

	t.Run("History Failures Are Reported", func(t *testing.T) {
		reporter := shared.NewRecordingReporter(nil)
		l := NewLoop("test", func(ctx context.Context, pass *models.Pass) error { return nil },
			&passLog{err: errors.New("database locked")}, reporter, shared.NewLogger(io.Discard))
		runLoop(t, l)

		l.Request()
		waitIdle(t, l)

		if reporter.Count("pass history write failed") != 2 {
			t.Errorf("expected create and update failures to be reported, got %v", reporter.Reports())
		}
		if l.Passes() != 1 {
			t.Error("a history failure must not stop the pass")
		}
	})

	t.Run("Run Stops With Context", func(t *testing.T) {
		started := make(chan struct{})
		l := quietLoop("test", func(ctx context.Context, pass *models.Pass) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		}, nil)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error)
		go func() { done <- l.Run(ctx) }()

		l.Request()
		<-started
		cancel()

		select {
		case err := <-done:
			if err != nil {
				t.Errorf("expected nil error, got %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Run did not return")
		}
		if l.State() != Idle {
			t.Errorf("expected idle after shutdown, got %s", l.State())
		}
	})
}

func TestQueue(t *testing.T) {
	q := NewQueue()

	if !q.Push("a") || !q.Push("b") {
		t.Fatal("expected new IDs to be added")
	}
	if q.Push("a") {
		t.Error("expected duplicate push to be ignored")
	}
	q.Push("c")
	if got := q.Items(); len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Fatalf("unexpected items %v", got)
	}

	q.Remove("b")
	q.Remove("missing")
	if q.Len() != 2 {
		t.Errorf("expected 2 items, got %d", q.Len())
	}

	id, ok := q.Pop()
	if !ok || id != "a" {
		t.Errorf("expected a, got %q", id)
	}
	if !q.Push("a") {
		t.Error("expected a popped ID to be pushable again")
	}

	q.Clear()
	if _, ok := q.Pop(); ok {
		t.Error("expected empty queue after clear")
	}
}
