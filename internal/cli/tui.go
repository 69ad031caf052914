package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/metalroute/pkg/pipeline"
	"github.com/matzehuels/metalroute/pkg/router"
)

// TUI styles
var (
	tuiBarStyle   = lipgloss.NewStyle().Foreground(colorCyan)
	tuiEmptyStyle = lipgloss.NewStyle().Foreground(colorDim)
	tuiDimStyle   = lipgloss.NewStyle().Foreground(colorDim)
)

const (
	tuiBarWidth   = 40
	tuiRecentRows = 8
)

// =============================================================================
// routeModel - Live routing progress
// =============================================================================

// progressMsg reports one finished request.
type progressMsg router.Progress

// routeDoneMsg ends the program with the pipeline result.
type routeDoneMsg struct {
	res *pipeline.Result
	err error
}

// routeModel is the bubbletea model shown while a batch routes.
type routeModel struct {
	name   string
	cancel context.CancelFunc
	start  time.Time

	done, total int
	failed      int
	recent      []router.Progress

	finished  bool
	cancelled bool
	err       error
}

func newRouteModel(name string, cancel context.CancelFunc) routeModel {
	return routeModel{name: name, cancel: cancel, start: time.Now()}
}

func (m routeModel) Init() tea.Cmd {
	return nil
}

func (m routeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.cancelled = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case progressMsg:
		p := router.Progress(msg)
		m.done, m.total = p.Done, p.Total
		if p.Status != "found" {
			m.failed++
		}
		m.recent = append(m.recent, p)
		if len(m.recent) > tuiRecentRows {
			m.recent = m.recent[len(m.recent)-tuiRecentRows:]
		}
	case routeDoneMsg:
		m.finished = true
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m routeModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Routing " + m.name))
	b.WriteString("\n")
	b.WriteString(tuiDimStyle.Render("q cancel"))
	b.WriteString("\n\n")

	b.WriteString(progressBar(m.done, m.total, tuiBarWidth))
	b.WriteString(fmt.Sprintf("  %d/%d", m.done, m.total))
	if m.failed > 0 {
		b.WriteString("  " + StyleError.Render(fmt.Sprintf("%d not found", m.failed)))
	}
	b.WriteString("  " + tuiDimStyle.Render(time.Since(m.start).Round(100*time.Millisecond).String()))
	b.WriteString("\n\n")

	if len(m.recent) > 0 {
		rows := make([][]string, 0, len(m.recent))
		for i := len(m.recent) - 1; i >= 0; i-- {
			p := m.recent[i]
			rows = append(rows, []string{p.Request, p.Status})
		}
		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
			Headers("Request", "Status").
			Rows(rows...).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == -1 {
					return styleHeader.Padding(0, 1)
				}
				if col == 1 && row >= 0 && row < len(rows) && rows[row][1] != "found" {
					return StyleError.Padding(0, 1)
				}
				return lipgloss.NewStyle().Padding(0, 1)
			})
		b.WriteString(t.Render())
		b.WriteString("\n")
	}

	switch {
	case m.cancelled:
		b.WriteString(StyleWarning.Render("cancelling…") + "\n")
	case m.finished && m.err != nil:
		b.WriteString(StyleError.Render(m.err.Error()) + "\n")
	}
	return b.String()
}

// progressBar renders done/total as a bar of width cells.
func progressBar(done, total, width int) string {
	filled := 0
	if total > 0 {
		filled = min(width, done*width/total)
	}
	return tuiBarStyle.Render(strings.Repeat("█", filled)) +
		tuiEmptyStyle.Render(strings.Repeat("░", width-filled))
}

// runWithTUI runs fn while showing routing progress. Quitting the TUI
// cancels the context passed to fn; the partial result is still returned.
func runWithTUI(ctx context.Context, name string, fn func(context.Context, func(router.Progress)) (*pipeline.Result, error)) (*pipeline.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newRouteModel(name, cancel), tea.WithOutput(os.Stderr))
	done := make(chan routeDoneMsg, 1)
	go func() {
		res, err := fn(ctx, func(pr router.Progress) { p.Send(progressMsg(pr)) })
		msg := routeDoneMsg{res: res, err: err}
		done <- msg
		p.Send(msg)
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("tui: %w", err)
	}
	msg := <-done
	return msg.res, msg.err
}
