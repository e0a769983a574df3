// Package tui shows a live status panel for a running signal generator.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"audiotv/pump"
)

// RefreshInterval is how often the panel polls the counters.
const RefreshInterval = 100 * time.Millisecond

// Stats is one sample of the counters shown.
type Stats struct {
	Pump       pump.Metrics
	Underruns  uint64
	SyncErrors uint64
}

// Done tells the model the pump has returned.
type Done struct{ Err error }

type tickMsg time.Time

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// Model is the bubbletea model of the status panel.
type Model struct {
	title     string
	linesPerS float64
	stats     func() Stats
	stop      func()
	cur       Stats
	started   time.Time
	now       time.Time
	err       error
	done      bool
	stopping  bool
}

// New creates the panel. stats is polled every RefreshInterval; stop is
// called once when the user quits.
func New(title string, linesPerSecond float64, stats func() Stats, stop func()) Model {
	now := time.Now()
	return Model{
		title:     title,
		linesPerS: linesPerSecond,
		stats:     stats,
		stop:      stop,
		started:   now,
		now:       now,
	}
}

func tick() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tick()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if !m.stopping && m.stop != nil {
				m.stop()
			}
			m.stopping = true
		}
	case tickMsg:
		m.now = time.Time(msg)
		if m.stats != nil {
			m.cur = m.stats()
		}
		return m, tick()
	case Done:
		m.done = true
		m.err = msg.Err
		if m.stats != nil {
			m.cur = m.stats()
		}
		return m, tea.Quit
	}
	return m, nil
}

// Err is the error the pump returned, if any.
func (m Model) Err() error { return m.err }

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(value)
		b.WriteString("\n")
	}
	p := m.cur.Pump
	row("field", p.Field.String())
	row("line", fmt.Sprintf("%d", p.Line))
	row("scanlines", fmt.Sprintf("%d", p.Scanlines))
	row("pairs", fmt.Sprintf("%d", p.Pairs))
	if elapsed := m.now.Sub(m.started).Seconds(); elapsed > 0 && m.linesPerS > 0 {
		row("speed", fmt.Sprintf("%.1f%%", 100*float64(p.Scanlines)/elapsed/m.linesPerS))
	}
	if m.cur.Underruns > 0 {
		row("underruns", fmt.Sprintf("%d", m.cur.Underruns))
	}
	if m.cur.SyncErrors > 0 {
		row("sync errors", errStyle.Render(fmt.Sprintf("%d", m.cur.SyncErrors)))
	}

	switch {
	case m.err != nil:
		b.WriteString("\n" + errStyle.Render(m.err.Error()))
	case m.done:
		b.WriteString("\nstopped")
	case m.stopping:
		b.WriteString("\nfinishing scanline...")
	default:
		b.WriteString("\nq to stop")
	}
	return boxStyle.Render(b.String()) + "\n"
}

// NewProgram wraps the model in a bubbletea program.
func NewProgram(m Model) *tea.Program {
	return tea.NewProgram(m)
}
