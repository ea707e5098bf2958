// package formatter renders offline status and pass history as terminal tables or JSON
package formatter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/desertthunder/offline/internal/models"
	"github.com/desertthunder/offline/internal/tasks"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
)

const (
	ansiReset  = "\x1b[0m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const statusLabelWidth = 20

// ShouldColorize reports whether w is a terminal.
func ShouldColorize(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func statusLine(label string, kind statusKind, message string, colorize bool) string {
	line := fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", message)
	if !colorize {
		return line
	}
	switch kind {
	case statusOK:
		return ansiGreen + line + ansiReset
	case statusWarn:
		return ansiYellow + line + ansiReset
	default:
		return line
	}
}

func sectionHeader(title string, colorize bool) string {
	line := fmt.Sprintf("== %s ==", title)
	if colorize {
		return ansiBlue + line + ansiReset
	}
	return line
}

// RenderStatus renders a status report: a summary block followed by pinned albums and playlists.
func RenderStatus(st tasks.Status, colorize bool) string {
	var b strings.Builder

	b.WriteString(sectionHeader("Offline", colorize) + "\n")

	syncKind, syncMsg := statusOK, "converged"
	if !st.Converged() {
		syncKind = statusWarn
		syncMsg = fmt.Sprintf("%d to download, %d to delete", st.PendingDownloads, st.Orphans)
	}
	b.WriteString(statusLine("Sync", syncKind, syncMsg, colorize) + "\n")
	b.WriteString(statusLine("Desired tracks", statusInfo, humanize.Comma(int64(st.Tracks)), colorize) + "\n")
	b.WriteString(statusLine("On disk", statusInfo,
		fmt.Sprintf("%s (%s)", humanize.Comma(int64(st.OnDisk)), humanize.IBytes(uint64(max(st.Bytes, 0)))), colorize) + "\n")

	favKind, favMsg := statusInfo, "disabled"
	if st.FavoritesEnabled {
		favKind = statusOK
		favMsg = fmt.Sprintf("enabled, %d tracks", st.Favorites)
	}
	b.WriteString(statusLine("Favorites", favKind, favMsg, colorize) + "\n")

	albumKind := statusInfo
	if st.PendingAlbums > 0 {
		albumKind = statusWarn
	}
	b.WriteString(statusLine("Albums", albumKind, fmt.Sprintf("%d pinned, %d awaiting tracks", st.Albums, st.PendingAlbums), colorize) + "\n")
	b.WriteString(statusLine("Playlists", statusInfo, fmt.Sprintf("%d pinned", st.Playlists), colorize) + "\n")

	if len(st.Loops) > 0 {
		names := make([]string, 0, len(st.Loops))
		for name := range st.Loops {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, name+"="+st.Loops[name].String())
		}
		b.WriteString(statusLine("Loops", statusInfo, strings.Join(parts, " "), colorize) + "\n")
	}

	if len(st.PinnedAlbums) > 0 {
		rows := make([][]string, 0, len(st.PinnedAlbums))
		for _, a := range st.PinnedAlbums {
			tracks := strconv.Itoa(len(a.Tracks))
			if !a.Attached {
				tracks = "pending"
			}
			rows = append(rows, []string{a.Album.ID, a.Album.Title, a.Album.Artist, tracks})
		}
		b.WriteString("\n" + renderTable([]string{"Album", "Title", "Artist", "Tracks"}, rows, []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight}) + "\n")
	}

	if len(st.PinnedPlaylists) > 0 {
		rows := make([][]string, 0, len(st.PinnedPlaylists))
		for _, p := range st.PinnedPlaylists {
			rows = append(rows, []string{p.ID, p.Name})
		}
		b.WriteString("\n" + renderTable([]string{"Playlist", "Name"}, rows, nil) + "\n")
	}

	return b.String()
}

// RenderHistory renders passes as a table, newest first as given. Start times are relative to now.
func RenderHistory(passes []*models.Pass, now time.Time) string {
	if len(passes) == 0 {
		return "No passes recorded.\n"
	}

	rows := make([][]string, 0, len(passes))
	for _, p := range passes {
		took := "-"
		if p.FinishedAt() != nil {
			took = p.Duration().Round(time.Millisecond).String()
		}
		rows = append(rows, []string{
			strconv.Itoa(p.Sequence()),
			p.Loop(),
			p.Status(),
			humanize.RelTime(p.StartedAt(), now, "ago", "from now"),
			took,
			strconv.Itoa(p.Deleted()),
			strconv.Itoa(p.Downloaded()),
			strconv.Itoa(p.Failed()),
			truncate(p.ErrorMessage(), 40),
		})
	}

	return renderTable(
		[]string{"#", "Loop", "Status", "Started", "Took", "Deleted", "Downloaded", "Failed", "Error"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
	) + "\n"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// StatusJSON is the machine-readable form of [tasks.Status].
type StatusJSON struct {
	Converged        bool              `json:"converged"`
	Tracks           int               `json:"tracks"`
	OnDisk           int               `json:"on_disk"`
	PendingDownloads int               `json:"pending_downloads"`
	Orphans          int               `json:"orphans"`
	Bytes            int64             `json:"bytes"`
	FavoritesEnabled bool              `json:"favorites_enabled"`
	Favorites        int               `json:"favorites"`
	Albums           []AlbumJSON       `json:"albums"`
	Playlists        []models.Playlist `json:"playlists"`
	Loops            map[string]string `json:"loops"`
}

// AlbumJSON is a pinned album in [StatusJSON].
type AlbumJSON struct {
	models.Album
	Attached bool `json:"attached"`
	Tracks   int  `json:"tracks"`
}

// MarshalStatus encodes st as indented JSON.
func MarshalStatus(st tasks.Status) ([]byte, error) {
	out := StatusJSON{
		Converged:        st.Converged(),
		Tracks:           st.Tracks,
		OnDisk:           st.OnDisk,
		PendingDownloads: st.PendingDownloads,
		Orphans:          st.Orphans,
		Bytes:            st.Bytes,
		FavoritesEnabled: st.FavoritesEnabled,
		Favorites:        st.Favorites,
		Albums:           make([]AlbumJSON, 0, len(st.PinnedAlbums)),
		Playlists:        append([]models.Playlist{}, st.PinnedPlaylists...),
		Loops:            make(map[string]string, len(st.Loops)),
	}
	for _, a := range st.PinnedAlbums {
		out.Albums = append(out.Albums, AlbumJSON{Album: a.Album, Attached: a.Attached, Tracks: len(a.Tracks)})
	}
	for name, state := range st.Loops {
		out.Loops[name] = state.String()
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal status: %w", err)
	}
	return data, nil
}

// PassJSON is the machine-readable form of a [models.Pass].
type PassJSON struct {
	ID         string     `json:"id"`
	Sequence   int        `json:"sequence"`
	Loop       string     `json:"loop"`
	Status     string     `json:"status"`
	Deleted    int        `json:"deleted"`
	Downloaded int        `json:"downloaded"`
	Failed     int        `json:"failed"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// HistoryJSON converts passes, keeping their order.
func HistoryJSON(passes []*models.Pass) []PassJSON {
	out := make([]PassJSON, 0, len(passes))
	for _, p := range passes {
		out = append(out, PassJSON{
			ID:         p.ID(),
			Sequence:   p.Sequence(),
			Loop:       p.Loop(),
			Status:     p.Status(),
			Deleted:    p.Deleted(),
			Downloaded: p.Downloaded(),
			Failed:     p.Failed(),
			Error:      p.ErrorMessage(),
			StartedAt:  p.StartedAt(),
			FinishedAt: p.FinishedAt(),
		})
	}
	return out
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}
