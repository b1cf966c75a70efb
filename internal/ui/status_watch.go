package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// StatusRefreshFunc recomputes StatusInfo for the watched project. It is
// called once per tick from the bubbletea update loop.
type StatusRefreshFunc func() (StatusInfo, error)

// statusTickMsg drives the watch loop's polling cadence.
type statusTickMsg time.Time

// StatusWatchModel is the bubbletea model behind `codeindex status --watch`.
// It polls refresh on an interval and plots total chunk count on a
// Sparkline so growth/shrinkage during a long-running reindex is visible
// at a glance, the same block-character visualization tui.go uses for
// indexing throughput.
type StatusWatchModel struct {
	refresh  StatusRefreshFunc
	interval time.Duration
	styles   Styles

	info      StatusInfo
	err       error
	chunks    *Sparkline
	ticks     int
	quitAfter int // 0 means run until interrupted
}

// NewStatusWatchModel builds a watch model polling refresh every interval.
func NewStatusWatchModel(refresh StatusRefreshFunc, interval time.Duration, noColor bool) *StatusWatchModel {
	return &StatusWatchModel{
		refresh:  refresh,
		interval: interval,
		styles:   GetStyles(noColor),
		chunks:   NewSparkline(60),
	}
}

func (m *StatusWatchModel) Init() tea.Cmd {
	return tea.Batch(m.tickCmd(), m.refreshCmd())
}

func (m *StatusWatchModel) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return statusTickMsg(t) })
}

type statusRefreshedMsg struct {
	info StatusInfo
	err  error
}

func (m *StatusWatchModel) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		info, err := m.refresh()
		return statusRefreshedMsg{info: info, err: err}
	}
}

func (m *StatusWatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case statusTickMsg:
		m.ticks++
		if m.quitAfter > 0 && m.ticks >= m.quitAfter {
			return m, tea.Quit
		}
		return m, tea.Batch(m.tickCmd(), m.refreshCmd())
	case statusRefreshedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.info = msg.info
			m.chunks.Add(float64(msg.info.TotalChunks))
		}
	}
	return m, nil
}

func (m *StatusWatchModel) View() string {
	var b strings.Builder

	b.WriteString(m.styles.Header.Render("Index Status: "+m.info.ProjectName) + "  (press q to quit)\n\n")

	if m.err != nil {
		b.WriteString(m.styles.Error.Render(fmt.Sprintf("refresh failed: %v", m.err)) + "\n")
	}

	fmt.Fprintf(&b, "  Files:        %d\n", m.info.TotalFiles)
	fmt.Fprintf(&b, "  Chunks:       %d  %s\n", m.info.TotalChunks, m.chunks.Render())
	if !m.info.LastIndexed.IsZero() {
		fmt.Fprintf(&b, "  Last indexed: %s\n", formatTime(m.info.LastIndexed))
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "  Storage: %s (meta %s, bm25 %s, vectors %s)\n",
		FormatBytes(m.info.TotalSize), FormatBytes(m.info.MetadataSize), FormatBytes(m.info.BM25Size), FormatBytes(m.info.VectorSize))

	embedderLine := fmt.Sprintf("  Embedder: %s/%s — %s", m.info.EmbedderType, m.info.EmbedderModel, m.info.EmbedderStatus)
	b.WriteString(embedderLine + "\n")

	if m.info.WatcherStatus != "" && m.info.WatcherStatus != "n/a" {
		fmt.Fprintf(&b, "  Watcher: %s\n", m.info.WatcherStatus)
	}

	return b.String()
}
