package cli

import (
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/metalroute/pkg/router"
)

func TestRouteModelProgress(t *testing.T) {
	var m tea.Model = newRouteModel("demo", nil)
	for i, status := range []string{"found", "exhausted", "found"} {
		m, _ = m.Update(progressMsg(router.Progress{Done: i + 1, Total: 4, Request: fmt.Sprintf("r%d", i), Status: status}))
	}

	rm := m.(routeModel)
	if rm.done != 3 || rm.total != 4 || rm.failed != 1 {
		t.Errorf("done=%d total=%d failed=%d", rm.done, rm.total, rm.failed)
	}
	view := rm.View()
	for _, want := range []string{"Routing demo", "3/4", "r2", "exhausted"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestRouteModelKeepsRecentRows(t *testing.T) {
	var m tea.Model = newRouteModel("demo", nil)
	for i := range tuiRecentRows + 5 {
		m, _ = m.Update(progressMsg(router.Progress{Done: i + 1, Total: 100, Request: fmt.Sprintf("r%d", i), Status: "found"}))
	}
	if got := len(m.(routeModel).recent); got != tuiRecentRows {
		t.Errorf("recent = %d, want %d", got, tuiRecentRows)
	}
}

func TestRouteModelQuitCancels(t *testing.T) {
	cancelled := false
	var m tea.Model = newRouteModel("demo", func() { cancelled = true })
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !cancelled {
		t.Error("q did not cancel the run")
	}
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if !strings.Contains(m.View(), "cancelling") {
		t.Error("view should show cancellation")
	}
}

func TestRouteModelDone(t *testing.T) {
	var m tea.Model = newRouteModel("demo", nil)
	m, cmd := m.Update(routeDoneMsg{})
	if cmd == nil || !m.(routeModel).finished {
		t.Error("done message should finish and quit")
	}
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		done, total, filled int
	}{
		{0, 0, 0},
		{0, 10, 0},
		{5, 10, 5},
		{10, 10, 10},
		{12, 10, 10},
	}
	for _, tt := range tests {
		bar := progressBar(tt.done, tt.total, 10)
		if got := strings.Count(bar, "█"); got != tt.filled {
			t.Errorf("progressBar(%d, %d) filled = %d, want %d", tt.done, tt.total, got, tt.filled)
		}
		if got := strings.Count(bar, "░"); got != 10-tt.filled {
			t.Errorf("progressBar(%d, %d) empty = %d", tt.done, tt.total, got)
		}
	}
}
