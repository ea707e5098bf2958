package models

import (
	"fmt"
	"time"
)

// Pass statuses
const (
	PassRunning   = "running"
	PassCompleted = "completed"
	PassCancelled = "cancelled"
	PassFailed    = "failed"
)

// Pass records one run of a reconciliation loop.
type Pass struct {
	id           string
	sequence     int
	loop         string
	status       string
	deleted      int
	downloaded   int
	failed       int
	errorMessage string
	startedAt    time.Time
	finishedAt   *time.Time
}

// NewPass creates a running pass for the named loop, started now.
func NewPass(sequence int, loop string) *Pass {
	return &Pass{
		sequence:  sequence,
		loop:      loop,
		status:    PassRunning,
		startedAt: time.Now(),
	}
}

func (p *Pass) ID() string             { return p.id }
func (p *Pass) Sequence() int          { return p.sequence }
func (p *Pass) Loop() string           { return p.loop }
func (p *Pass) Status() string         { return p.status }
func (p *Pass) Deleted() int           { return p.deleted }
func (p *Pass) Downloaded() int        { return p.downloaded }
func (p *Pass) Failed() int            { return p.failed }
func (p *Pass) ErrorMessage() string   { return p.errorMessage }
func (p *Pass) StartedAt() time.Time   { return p.startedAt }
func (p *Pass) FinishedAt() *time.Time { return p.finishedAt }

// CreatedAt is the time the pass started.
func (p *Pass) CreatedAt() time.Time { return p.startedAt }

// UpdatedAt is the finish time, or the start time while the pass is running.
func (p *Pass) UpdatedAt() time.Time {
	if p.finishedAt != nil {
		return *p.finishedAt
	}
	return p.startedAt
}

// Duration is the elapsed time of a finished pass, or zero while it runs.
func (p *Pass) Duration() time.Duration {
	if p.finishedAt == nil {
		return 0
	}
	return p.finishedAt.Sub(p.startedAt)
}

func (p *Pass) SetID(id string)            { p.id = id }
func (p *Pass) SetSequence(seq int)        { p.sequence = seq }
func (p *Pass) SetStartedAt(t time.Time)   { p.startedAt = t }
func (p *Pass) SetFinishedAt(t *time.Time) { p.finishedAt = t }
func (p *Pass) SetErrorMessage(msg string) { p.errorMessage = msg }
func (p *Pass) SetStatus(status string)    { p.status = status }
func (p *Pass) SetCounts(deleted, downloaded, failed int) {
	p.deleted, p.downloaded, p.failed = deleted, downloaded, failed
}

// Finish stamps the pass with status and the current time.
func (p *Pass) Finish(status string) {
	now := time.Now()
	p.status = status
	p.finishedAt = &now
}

// Validate checks that the pass names a loop and carries a known status.
func (p *Pass) Validate() error {
	if p.loop == "" {
		return fmt.Errorf("loop is required")
	}
	switch p.status {
	case PassRunning, PassCompleted, PassCancelled, PassFailed:
	default:
		return fmt.Errorf("invalid status: %q", p.status)
	}
	if p.deleted < 0 || p.downloaded < 0 || p.failed < 0 {
		return fmt.Errorf("counts must not be negative")
	}
	return nil
}
