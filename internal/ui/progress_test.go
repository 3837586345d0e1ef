package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"borrowck/internal/driver"
)

func TestProgressModelTracksFunctions(t *testing.T) {
	events := make(chan driver.Event)
	m := NewProgressModel("checking demo", events).(*progressModel)

	feed := []driver.Event{
		{Module: "demo", Func: "a", Stage: driver.StageAnalyze, Status: driver.StatusQueued},
		{Module: "demo", Func: "b", Stage: driver.StageAnalyze, Status: driver.StatusQueued},
		{Module: "demo", Stage: driver.StageParse, Status: driver.StatusDone},
		{Module: "demo", Func: "a", Stage: driver.StageAnalyze, Status: driver.StatusWorking},
		{Module: "demo", Func: "a", Stage: driver.StageAnalyze, Status: driver.StatusDone, Diagnostics: 2},
		{Module: "demo", Func: "b", Stage: driver.StageCache, Status: driver.StatusDone, Cached: true},
	}
	for _, ev := range feed {
		m.Update(eventMsg(ev))
	}

	if len(m.items) != 2 {
		t.Fatalf("items = %d, want 2 (module-level events are not rows)", len(m.items))
	}
	if m.items[0].key != "demo::a" || m.items[1].key != "demo::b" {
		t.Fatalf("rows out of order: %+v", m.items)
	}
	if m.items[0].status != "done" || m.items[0].diagnostics != 2 {
		t.Fatalf("unexpected row a: %+v", m.items[0])
	}
	if !m.items[1].cached {
		t.Fatalf("row b should be cached: %+v", m.items[1])
	}
	if got := m.percent(); got != 1.0 {
		t.Fatalf("percent = %v, want 1", got)
	}

	view := m.View()
	for _, want := range []string{"checking demo (2/2)", "demo::a", "(2 diag)", "(cached)"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view lacks %q:\n%s", want, view)
		}
	}
}

func TestProgressModelPartialPercent(t *testing.T) {
	m := NewProgressModel("x", nil).(*progressModel)
	m.Update(eventMsg{Module: "m", Func: "f", Stage: driver.StageAnalyze, Status: driver.StatusWorking})
	m.Update(eventMsg{Module: "m", Func: "g", Stage: driver.StageAnalyze, Status: driver.StatusQueued})
	if got := m.percent(); got != 0.25 {
		t.Fatalf("percent = %v, want 0.25", got)
	}
}

func TestProgressModelQuitsWhenClosed(t *testing.T) {
	events := make(chan driver.Event)
	close(events)
	m := NewProgressModel("x", events).(*progressModel)
	msg := m.listenForEvent()()
	if _, ok := msg.(doneMsg); !ok {
		t.Fatalf("got %T, want doneMsg", msg)
	}
	_, cmd := m.Update(msg)
	if !m.done || cmd == nil {
		t.Fatal("model should finish on doneMsg")
	}
	if m.View() != "" {
		t.Fatal("empty model renders nothing")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected tea.Quit")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("demo::very_long_function_name", 12); got != "demo::..." {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("short", 12); got != "short" {
		t.Fatalf("truncate = %q", got)
	}
}
