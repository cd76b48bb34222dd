// Package live is the dashboard shown while a run is in progress.
package live

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"chainq/internal/runner"
	"chainq/internal/tui/components"
	"chainq/internal/tui/styles"
)

// StatsMsg carries one snapshot from the runner.
type StatsMsg runner.StatsSnapshot

// FinishedMsg tells the dashboard the run has returned.
type FinishedMsg struct{}

type Model struct {
	Title    string
	Stats    runner.StatsSnapshot
	Progress progress.Model

	RpsLine     components.Sparkline
	LatencyLine components.Sparkline

	LastElapsed time.Duration
	LastReqs    uint64

	Updates runner.StatsUpdateChan
	// Abort is called when the user quits before the run ends.
	Abort func()

	Width    int
	Height   int
	Quitting bool
	Aborted  bool
}

func NewModel(title string, updates runner.StatsUpdateChan, abort func()) Model {
	slRps := components.NewSparkline(
		40,
		"RPS",
		styles.Active,
	)

	slLat := components.NewSparkline(
		40,
		"Latency P95 (ms)",
		styles.Warn,
	)

	return Model{
		Title:       title,
		Progress:    progress.New(progress.WithDefaultGradient()),
		RpsLine:     slRps,
		LatencyLine: slLat,
		Updates:     updates,
		Abort:       abort,
	}
}

func waitForUpdate(sub runner.StatsUpdateChan) tea.Cmd {
	if sub == nil {
		return nil
	}
	return func() tea.Msg {
		s, ok := <-sub
		if !ok {
			return FinishedMsg{}
		}
		return StatsMsg(s)
	}
}

func (m Model) Init() tea.Cmd {
	return waitForUpdate(m.Updates)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case StatsMsg:
		snap := runner.StatsSnapshot(msg)

		dt := (snap.Elapsed - m.LastElapsed).Seconds()
		if dt < 0.01 {
			dt = 0.01
		}
		var rps float64
		if snap.Requests >= m.LastReqs {
			rps = float64(snap.Requests-m.LastReqs) / dt
		}
		m.RpsLine.Add(uint64(rps))
		m.LatencyLine.Add(uint64(snap.P95Ms))

		m.Stats = snap
		m.LastReqs = snap.Requests
		m.LastElapsed = snap.Elapsed

		if snap.Done {
			m.Quitting = true
			return m, tea.Quit
		}

		cmd := m.Progress.SetPercent(percent(snap))
		return m, tea.Batch(cmd, waitForUpdate(m.Updates))

	case FinishedMsg:
		m.Quitting = true
		return m, tea.Quit

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.Quitting = true
			m.Aborted = true
			if m.Abort != nil {
				m.Abort()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Progress.Width = msg.Width - 4

		half := (msg.Width / 2) - 4
		if half < 10 {
			half = 10
		}
		m.RpsLine.Width = half
		m.LatencyLine.Width = half
		return m, nil

	case progress.FrameMsg:
		prog, cmd := m.Progress.Update(msg)
		m.Progress = prog.(progress.Model)
		return m, cmd
	}

	return m, nil
}

// percent is the share of the injection profile already elapsed.
func percent(s runner.StatsSnapshot) float64 {
	if s.Expected <= 0 {
		if s.Scheduled == 0 {
			return 1
		}
		return float64(s.Started) / float64(s.Scheduled)
	}
	pct := float64(s.Elapsed) / float64(s.Expected)
	if pct > 1.0 {
		pct = 1.0
	}
	return pct
}

func (m Model) View() string {
	if m.Quitting {
		if m.Aborted {
			return styles.Warn.Render("Aborting run...") + "\n"
		}
		return ""
	}

	s := strings.Builder{}
	s.WriteString(styles.Title.Render("🚀 " + m.Title))
	s.WriteString("\n")
	s.WriteString(styles.Subtle.Render(fmt.Sprintf("Elapsed: %s / %s", m.Stats.Elapsed.Round(time.Second), m.Stats.Expected.Round(time.Second))))
	s.WriteString("\n\n")

	errRate := m.Stats.ErrorRate * 100

	var errColor lipgloss.Style
	if errRate > 5.0 {
		errColor = styles.Error
	} else if errRate > 1.0 {
		errColor = styles.Warn
	} else {
		errColor = styles.Active
	}

	col1 := fmt.Sprintf("REQ: %d\nOK: %d", m.Stats.Requests, m.Stats.Success)
	col2 := fmt.Sprintf("ERR: %.2f%%\nKO: %d", errRate, m.Stats.Fail)
	col3 := fmt.Sprintf("USERS: %d/%d\nACTIVE: %d", m.Stats.Started, m.Stats.Scheduled, m.Stats.Inflight)
	col4 := fmt.Sprintf("KB: %d\nCANCELLED: %d", m.Stats.Bytes/1024, m.Stats.Cancelled)

	grid := lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(col1),
		styles.Box.Render(errColor.Render(col2)),
		styles.Box.Render(col3),
		styles.Box.Render(col4),
	)
	s.WriteString(grid)
	s.WriteString("\n\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(m.RpsLine.View()),
		styles.Box.Render(m.LatencyLine.View()),
	))
	s.WriteString("\n\n")

	latencies := fmt.Sprintf(
		"P50: %.0f ms  |  P90: %.0f ms  |  P95: %.0f ms  |  P99: %.0f ms  |  Max: %.0f ms",
		m.Stats.P50Ms,
		m.Stats.P90Ms,
		m.Stats.P95Ms,
		m.Stats.P99Ms,
		m.Stats.MaxMs,
	)
	width := m.Width - 4
	if width < 20 {
		width = 80
	}
	s.WriteString(styles.Box.Width(width).Render(latencies))
	s.WriteString("\n\n")

	s.WriteString(m.Progress.View())
	s.WriteString("\n")
	s.WriteString(styles.RenderKey("q", "abort"))

	return s.String()
}
