package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/offline/internal/formatter"
	"github.com/desertthunder/offline/internal/models"
	"github.com/desertthunder/offline/internal/offline"
	"github.com/desertthunder/offline/internal/shared"
	"github.com/desertthunder/offline/internal/tasks"
)

type fakeEngine struct {
	mu        sync.Mutex
	status    tasks.Status
	err       error
	refreshes int
	syncs     int
}

func (e *fakeEngine) Status() (tasks.Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status, e.err
}

func (e *fakeEngine) Refresh() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refreshes++
}

func (e *fakeEngine) RequestSync() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.syncs++
}

type fakePasses struct {
	passes   []*models.Pass
	err      error
	criteria map[string]any
}

func (f *fakePasses) List(criteria map[string]any) ([]*models.Pass, error) {
	f.criteria = criteria
	return f.passes, f.err
}

func newTestRouter(engine Engine, passes PassLister) *BasicRouter {
	logger := shared.NewLogger(io.Discard)
	r := NewBasicRouter()
	r.Use(Recover(logger), Logging(logger))
	r.Handler(NewControlHandler(engine, passes, logger))
	return r
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestControlHandler(t *testing.T) {
	t.Run("Status", func(t *testing.T) {
		engine := &fakeEngine{status: tasks.Status{
			Summary:          offline.Summary{Tracks: 2},
			OnDisk:           1,
			PendingDownloads: 1,
		}}
		w := do(t, newTestRouter(engine, nil), http.MethodGet, "/status")

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		if ct := w.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		var st formatter.StatusJSON
		if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if st.Tracks != 2 || st.PendingDownloads != 1 || st.Converged {
			t.Errorf("unexpected status %+v", st)
		}
	})

	t.Run("Status Error", func(t *testing.T) {
		engine := &fakeEngine{err: errors.New("disk gone")}
		w := do(t, newTestRouter(engine, nil), http.MethodGet, "/status")

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "disk gone") {
			t.Errorf("expected error in body, got %s", w.Body.String())
		}
	})

	t.Run("Refresh And Sync", func(t *testing.T) {
		engine := &fakeEngine{}
		r := newTestRouter(engine, nil)

		if w := do(t, r, http.MethodPost, "/refresh"); w.Code != http.StatusAccepted {
			t.Errorf("expected 202 for refresh, got %d", w.Code)
		}
		if w := do(t, r, http.MethodPost, "/sync"); w.Code != http.StatusAccepted {
			t.Errorf("expected 202 for sync, got %d", w.Code)
		}
		if engine.refreshes != 1 || engine.syncs != 1 {
			t.Errorf("expected one refresh and one sync, got %d and %d", engine.refreshes, engine.syncs)
		}
	})

	t.Run("Wrong Method", func(t *testing.T) {
		engine := &fakeEngine{}
		r := newTestRouter(engine, nil)

		if w := do(t, r, http.MethodGet, "/sync"); w.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", w.Code)
		}
		if engine.syncs != 0 {
			t.Error("GET must not schedule a sync")
		}
	})

	t.Run("History", func(t *testing.T) {
		p := models.NewPass(1, tasks.LoopTracks)
		p.SetID("p-1")
		p.SetStatus(models.PassCompleted)
		passes := &fakePasses{passes: []*models.Pass{p}}

		w := do(t, newTestRouter(&fakeEngine{}, passes), http.MethodGet, "/history?loop=tracks&limit=5")
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var got []formatter.PassJSON
		if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(got) != 1 || got[0].ID != "p-1" || got[0].Status != "completed" {
			t.Errorf("unexpected history %+v", got)
		}
		if passes.criteria["loop"] != "tracks" || passes.criteria["limit"] != 5 {
			t.Errorf("unexpected criteria %v", passes.criteria)
		}
	})

	t.Run("History Defaults And Errors", func(t *testing.T) {
		passes := &fakePasses{}
		r := newTestRouter(&fakeEngine{}, passes)

		if w := do(t, r, http.MethodGet, "/history"); w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "[]" {
			t.Errorf("expected empty list, got %d %s", w.Code, w.Body.String())
		}
		if passes.criteria["limit"] != defaultHistoryLimit {
			t.Errorf("expected default limit, got %v", passes.criteria["limit"])
		}

		if w := do(t, r, http.MethodGet, "/history?limit=zero"); w.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for a bad limit, got %d", w.Code)
		}

		passes.err = errors.New("db closed")
		if w := do(t, r, http.MethodGet, "/history"); w.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", w.Code)
		}

		if w := do(t, newTestRouter(&fakeEngine{}, nil), http.MethodGet, "/history"); w.Code != http.StatusNotFound {
			t.Errorf("expected 404 without history, got %d", w.Code)
		}
	})
}

func TestBasicRouter(t *testing.T) {
	t.Run("Middleware Order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		r := NewBasicRouter()
		r.Use(mark("first"), mark("second"))
		r.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			order = append(order, "handler")
		}))

		do(t, r, http.MethodGet, "/ping")
		if strings.Join(order, ",") != "first,second,handler" {
			t.Errorf("unexpected order %v", order)
		}

		if w := do(t, r, http.MethodPost, "/ping"); w.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", w.Code)
		}
	})

	t.Run("Recover", func(t *testing.T) {
		r := NewBasicRouter()
		r.Use(Recover(shared.NewLogger(io.Discard)))
		r.Handle(http.MethodGet, "/boom", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))

		if w := do(t, r, http.MethodGet, "/boom"); w.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", w.Code)
		}
	})
}

func TestServe(t *testing.T) {
	t.Run("Serves Until Cancelled", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatal(err)
		}

		engine := &fakeEngine{}
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- serve(ctx, ln, newTestRouter(engine, nil), shared.NewLogger(io.Discard)) }()

		resp, err := http.Post("http://"+ln.Addr().String()+"/sync", "application/json", nil)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Errorf("expected 202, got %d", resp.StatusCode)
		}

		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("expected clean shutdown, got %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("server did not stop")
		}
	})

	t.Run("Bad Address", func(t *testing.T) {
		err := Serve(context.Background(), "256.0.0.1:bad", http.NotFoundHandler(), shared.NewLogger(io.Discard))
		if err == nil {
			t.Error("expected listen error")
		}
	})
}
