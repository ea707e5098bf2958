package tasks

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/offline/internal/models"
	"github.com/desertthunder/offline/internal/shared"
)

// LoopState is the coalescing state of a [Loop].
type LoopState int

const (
	Idle LoopState = iota
	Running
	RunningWithPendingRerun
)

func (s LoopState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case RunningWithPendingRerun:
		return "running (rerun pending)"
	default:
		return ""
	}
}

// PassFunc performs one reconciliation pass. It records outcome counts on pass.
type PassFunc func(ctx context.Context, pass *models.Pass) error

// PassRecorder stores pass history. [repositories.PassRepository] implements it.
type PassRecorder interface {
	Create(pass *models.Pass) error
	Update(pass *models.Pass) error
}

// Loop runs a [PassFunc] on a single long-lived worker, coalescing requests.
//
// Requests made while idle start a pass. Requests made while a pass runs collapse into exactly one rerun after it.
// At most one pass runs at a time.
type Loop struct {
	name     string
	fn       PassFunc
	recorder PassRecorder
	reporter shared.Reporter
	logger   *log.Logger

	mu         sync.Mutex
	state      LoopState
	signal     chan struct{}
	idle       chan struct{}
	passCancel context.CancelFunc
	passes     int
}

// NewLoop creates an idle loop. recorder and reporter may be nil.
func NewLoop(name string, fn PassFunc, recorder PassRecorder, reporter shared.Reporter, logger *log.Logger) *Loop {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if reporter == nil {
		reporter = shared.NewLogReporter(logger)
	}

	idle := make(chan struct{})
	close(idle)
	return &Loop{
		name:     name,
		fn:       fn,
		recorder: recorder,
		reporter: reporter,
		logger:   shared.WithLogger(logger, "loop", name),
		signal:   make(chan struct{}, 1),
		idle:     idle,
	}
}

// Name returns the loop name used in logs and pass history.
func (l *Loop) Name() string { return l.name }

// Request asks for a pass. It never blocks.
func (l *Loop) Request() {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case Idle:
		l.state = Running
		l.idle = make(chan struct{})
		select {
		case l.signal <- struct{}{}:
		default:
		}
	case Running:
		l.state = RunningWithPendingRerun
	}
}

// Cancel aborts the in-flight pass and drops any pending rerun or queued dispatch.
// A [Loop.Request] made after Cancel returns is honored.
func (l *Loop) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.passCancel != nil {
		l.passCancel()
		if l.state == RunningWithPendingRerun {
			l.state = Running
		}
		return
	}

	if l.state != Idle {
		select {
		case <-l.signal:
		default:
		}
		l.setIdle()
	}
}

// State returns the current coalescing state.
func (l *Loop) State() LoopState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Passes returns how many passes have run.
func (l *Loop) Passes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.passes
}

// WaitIdle blocks until the loop is idle or ctx is done.
func (l *Loop) WaitIdle(ctx context.Context) error {
	for {
		l.mu.Lock()
		if l.state == Idle {
			l.mu.Unlock()
			return nil
		}
		idle := l.idle
		l.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Run is the worker. It returns when ctx is done, leaving the loop idle.
func (l *Loop) Run(ctx context.Context) error {
	defer func() {
		l.mu.Lock()
		if l.state != Idle {
			l.setIdle()
		}
		l.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.signal:
			l.drain(ctx)
		}
	}
}

// drain runs passes until no rerun is pending.
func (l *Loop) drain(ctx context.Context) {
	for {
		l.mu.Lock()
		if l.state == Idle || ctx.Err() != nil {
			l.mu.Unlock()
			return
		}
		passCtx, cancel := context.WithCancel(ctx)
		l.passCancel = cancel
		l.passes++
		l.mu.Unlock()

		l.runPass(passCtx)
		cancel()

		l.mu.Lock()
		l.passCancel = nil
		if l.state == RunningWithPendingRerun && ctx.Err() == nil {
			l.state = Running
			l.mu.Unlock()
			continue
		}
		l.setIdle()
		l.mu.Unlock()
		return
	}
}

// runPass executes one pass and records its outcome.
func (l *Loop) runPass(ctx context.Context) {
	pass := models.NewPass(0, l.name)
	pass.SetID(shared.GenerateID())
	logger := shared.WithLogger(l.logger, "pass", pass.ID())

	if l.recorder != nil {
		if err := l.recorder.Create(pass); err != nil {
			l.reporter.Report("pass history write failed", err.Error())
		}
	}

	logger.Debug("pass started")
	err := l.fn(ctx, pass)

	switch {
	case err == nil:
		pass.Finish(models.PassCompleted)
		logger.Debug("pass complete", "deleted", pass.Deleted(), "downloaded", pass.Downloaded(), "failed", pass.Failed(), "took", pass.Duration())
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		pass.Finish(models.PassCancelled)
		logger.Info("pass cancelled")
	default:
		pass.SetErrorMessage(err.Error())
		pass.Finish(models.PassFailed)
		logger.Warn("pass failed", "error", err)
	}

	if l.recorder != nil {
		if err := l.recorder.Update(pass); err != nil {
			l.reporter.Report("pass history write failed", err.Error())
		}
	}
}

// setIdle marks the loop idle and wakes WaitIdle callers. Callers hold mu.
func (l *Loop) setIdle() {
	l.state = Idle
	select {
	case <-l.idle:
	default:
		close(l.idle)
	}
}
