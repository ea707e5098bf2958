package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/offline/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgStatusLoaded MsgKind = iota
	MsgChanged
	MsgProgressUpdate
	MsgTick
)

type statusResult struct {
	status tasks.Status
	err    error
}

// statusLoadedMsg is the constructor for [MsgStatusLoaded]
func statusLoadedMsg(st tasks.Status, err error) Msg {
	return Msg{kind: MsgStatusLoaded, data: statusResult{st, err}}
}

// changedMsg is the constructor for [MsgChanged]
func changedMsg() Msg {
	return Msg{kind: MsgChanged}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// tickMsg is the constructor for [MsgTick]
func tickMsg() Msg {
	return Msg{kind: MsgTick}
}

// Notifier turns the coordinator's change hook into a channel the view can wait on.
// Bursts of notifications collapse into one.
type Notifier struct {
	ch chan struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan struct{}, 1)}
}

// Notify never blocks.
func (n *Notifier) Notify() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

// C returns the notification channel.
func (n *Notifier) C() <-chan struct{} { return n.ch }
