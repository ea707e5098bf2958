package shared

import (
	"sync"

	"github.com/charmbracelet/log"
)

// Reporter is the single sink for errors that are handled locally and never returned to a caller.
//
// Title is a short summary ("download failed"), detail carries the item and cause.
type Reporter interface {
	Report(title, detail string)
}

// ReporterFunc adapts a plain function to [Reporter].
type ReporterFunc func(title, detail string)

func (f ReporterFunc) Report(title, detail string) { f(title, detail) }

// LogReporter writes reports to a [log.Logger] at warn level.
type LogReporter struct {
	logger *log.Logger
}

// NewLogReporter creates a [LogReporter]. A nil logger falls back to [NewLogger].
func NewLogReporter(l *log.Logger) *LogReporter {
	if l == nil {
		l = NewLogger(nil)
	}
	return &LogReporter{logger: l}
}

func (r *LogReporter) Report(title, detail string) {
	r.logger.Warn(title, "detail", detail)
}

// Report is a recorded call to [RecordingReporter].
type Report struct {
	Title  string
	Detail string
}

// RecordingReporter keeps every report in memory; safe for concurrent use.
//
// The CLI uses it to summarize failures after a sync, tests use it for assertions.
type RecordingReporter struct {
	mu      sync.Mutex
	next    Reporter
	reports []Report
}

// NewRecordingReporter creates a [RecordingReporter] that also forwards to next when non-nil.
func NewRecordingReporter(next Reporter) *RecordingReporter {
	return &RecordingReporter{next: next}
}

func (r *RecordingReporter) Report(title, detail string) {
	r.mu.Lock()
	r.reports = append(r.reports, Report{Title: title, Detail: detail})
	r.mu.Unlock()

	if r.next != nil {
		r.next.Report(title, detail)
	}
}

// Reports returns a copy of all recorded reports.
func (r *RecordingReporter) Reports() []Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Report, len(r.reports))
	copy(out, r.reports)
	return out
}

// Count returns the number of recorded reports with the given title.
func (r *RecordingReporter) Count(title string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rep := range r.reports {
		if rep.Title == title {
			n++
		}
	}
	return n
}
