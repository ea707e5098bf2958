package ui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/desertthunder/offline/internal/tasks"
)

const (
	maxLogLines  = 8
	tickInterval = time.Second
)

// Engine is the part of [tasks.Coordinator] the view drives.
type Engine interface {
	Status() (tasks.Status, error)
	Refresh()
	RequestSync()
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	engine   Engine
	changes  <-chan struct{}
	progress <-chan tasks.ProgressUpdate

	width   int
	height  int
	status  tasks.Status
	loaded  bool
	err     error
	log     []string
	pinned  list.Model
	spinner spinner.Model
	help    help.Model
	keys    keyMap
}

// NewModel creates a watch view over engine. changes and progress may be nil.
func NewModel(ctx context.Context, engine Engine, changes <-chan struct{}, progress <-chan tasks.ProgressUpdate) *Model {
	pinned := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	pinned.Title = "Pinned"
	pinned.SetShowHelp(false)
	pinned.SetFilteringEnabled(false)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.ok

	return &Model{
		ctx:      ctx,
		engine:   engine,
		changes:  changes,
		progress: progress,
		pinned:   pinned,
		spinner:  sp,
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init loads the first status and starts listening.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.loadStatus(), m.waitForChange(), m.waitForProgress(), m.tick(), m.spinner.Tick)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.pinned.SetSize(msg.Width-4, max(msg.Height-22, 5))
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgStatusLoaded:
		res := msg.data.(statusResult)
		m.err = res.err
		if res.err == nil {
			m.status = res.status
			m.loaded = true
			m.setPinned(res.status)
		}
		return m, nil

	case MsgChanged:
		return m, tea.Batch(m.loadStatus(), m.waitForChange())

	case MsgProgressUpdate:
		update := msg.data.(tasks.ProgressUpdate)
		if update.Message != "" {
			m.appendLog(fmt.Sprintf("%-9s %s", update.Loop, update.Message))
		}
		return m, m.waitForProgress()

	case MsgTick:
		return m, tea.Batch(m.loadStatus(), m.tick())
	}
	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.refresh):
		m.engine.Refresh()
		m.appendLog("refresh requested")
		return m, nil
	case key.Matches(msg, m.keys.sync):
		m.engine.RequestSync()
		m.appendLog("sync requested")
		return m, nil
	}

	var cmd tea.Cmd
	m.pinned, cmd = m.pinned.Update(msg)
	return m, cmd
}

func (m *Model) appendLog(line string) {
	m.log = append(m.log, line)
	if len(m.log) > maxLogLines {
		m.log = m.log[len(m.log)-maxLogLines:]
	}
}

func (m *Model) setPinned(st tasks.Status) {
	items := make([]list.Item, 0, len(st.PinnedAlbums)+len(st.PinnedPlaylists))
	for _, a := range st.PinnedAlbums {
		items = append(items, albumItem{album: a})
	}
	for _, p := range st.PinnedPlaylists {
		items = append(items, playlistItem{playlist: p, tracks: st.PlaylistTracks[p.ID]})
	}
	m.pinned.SetItems(items)
}

// busy reports whether any loop is running.
func (m *Model) busy() bool {
	for _, state := range m.status.Loops {
		if state != tasks.Idle {
			return true
		}
	}
	return false
}

func (m *Model) loadStatus() tea.Cmd {
	return func() tea.Msg {
		st, err := m.engine.Status()
		return statusLoadedMsg(st, err)
	}
}

func (m *Model) waitForChange() tea.Cmd {
	if m.changes == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case <-m.changes:
			return changedMsg()
		case <-m.ctx.Done():
			return tea.Quit()
		}
	}
}

func (m *Model) waitForProgress() tea.Cmd {
	if m.progress == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case update, ok := <-m.progress:
			if !ok {
				return nil
			}
			return progressUpdateMsg(update)
		case <-m.ctx.Done():
			return tea.Quit()
		}
	}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(tickInterval, func(time.Time) tea.Msg { return tickMsg() })
}

// View renders the summary, the progress log and the pinned list.
func (m *Model) View() string {
	var b strings.Builder

	title := "Offline"
	if m.busy() {
		title = fmt.Sprintf("Offline %s syncing", m.spinner.View())
	}
	b.WriteString(styles.title.Render(title) + "\n")

	if m.err != nil {
		b.WriteString(styles.err.Render(fmt.Sprintf("Error: %v", m.err)) + "\n\n")
	}

	if !m.loaded {
		b.WriteString("Loading status...\n")
	} else {
		b.WriteString(m.renderSummary())
	}

	if len(m.log) > 0 {
		b.WriteString("\n")
		for _, line := range m.log {
			b.WriteString(styles.help.Render(line) + "\n")
		}
	}

	if len(m.pinned.Items()) > 0 {
		b.WriteString("\n" + m.pinned.View() + "\n")
	}

	b.WriteString("\n" + m.help.ShortHelpView(m.keys.ShortHelp()))
	return b.String()
}

func (m *Model) renderSummary() string {
	st := m.status
	var b strings.Builder

	row := func(label, value string) {
		b.WriteString(styles.label.Render(label) + value + "\n")
	}

	if st.Converged() {
		row("Sync", styles.ok.Render("✓ converged"))
	} else {
		row("Sync", styles.warn.Render(fmt.Sprintf("%d to download, %d to delete", st.PendingDownloads, st.Orphans)))
	}
	row("Desired tracks", humanize.Comma(int64(st.Tracks)))
	row("On disk", fmt.Sprintf("%s (%s)", humanize.Comma(int64(st.OnDisk)), humanize.IBytes(uint64(max(st.Bytes, 0)))))

	if st.FavoritesEnabled {
		row("Favorites", fmt.Sprintf("on, %d tracks", st.Favorites))
	} else {
		row("Favorites", "off")
	}
	row("Albums", fmt.Sprintf("%d pinned, %d pending", st.Albums, st.PendingAlbums))
	row("Playlists", fmt.Sprintf("%d pinned", st.Playlists))

	names := make([]string, 0, len(st.Loops))
	for name := range st.Loops {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s %s", name, st.Loops[name]))
	}
	if len(parts) > 0 {
		row("Loops", strings.Join(parts, " · "))
	}

	return b.String()
}
