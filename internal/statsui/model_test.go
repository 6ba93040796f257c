package statsui

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/iblreplay/internal/model"
	"github.com/verte-zerg/iblreplay/internal/store"
)

const (
	firstEID  = "4b00df29-3769-43be-bb40-128b1cba6d35"
	secondEID = "aad23144-0e52-4eac-80c5-c4ee2decb198"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "iblreplay.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	ctx := context.Background()
	for i, eid := range []string{firstEID, firstEID, secondEID} {
		start := time.Unix(0, 0).UTC().Add(time.Duration(i) * time.Hour)
		run := model.RunStats{
			EID:       eid,
			StartedAt: start,
			EndedAt:   start.Add(time.Minute),
			TaskTime:  60,
			Rate:      1,
			Mode:      "spiking",
			Counts:    model.EventCounts{Spikes: 600, Rewards: 2},
		}
		if _, err := st.InsertRun(ctx, run); err != nil {
			t.Fatalf("insert run: %v", err)
		}
	}
	return st
}

func TestModelLoadsHistory(t *testing.T) {
	m := NewModel(openStore(t), store.RunFilter{}, 2)
	if len(m.report.Runs) != 3 || len(m.report.Sessions) != 2 {
		t.Fatalf("unexpected report: %d runs, %d sessions", len(m.report.Runs), len(m.report.Sessions))
	}
	if len(m.runs.Rows()) != 3 {
		t.Fatalf("expected 3 run rows, got %d", len(m.runs.Rows()))
	}
	if got := m.runs.Rows()[0][1]; got != "aad23144" {
		t.Fatalf("expected newest run first, got %s", got)
	}
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	view := m.View()
	for _, want := range []string{"Overview", "Runs", "Sessions", "Avg spikes/s", "10.0", "window=2"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in view:\n%s", want, view)
		}
	}
}

func TestModelFilterBySession(t *testing.T) {
	m := NewModel(openStore(t), store.RunFilter{}, 2)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/")})
	if !m.filterMode {
		t.Fatalf("expected filter mode")
	}
	m.filterInput.SetValue(secondEID)
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.filterMode {
		t.Fatalf("expected filter applied")
	}
	if len(m.report.Runs) != 1 || len(m.report.Sessions) != 1 {
		t.Fatalf("expected filtered report, got %d runs %d sessions", len(m.report.Runs), len(m.report.Sessions))
	}
}

func TestModelTabsAndWindow(t *testing.T) {
	m := NewModel(openStore(t), store.RunFilter{}, 2)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m.Update(tea.KeyMsg{Type: tea.KeyLeft})
	if m.activeTab != tabSessions {
		t.Fatalf("expected wrap to sessions tab, got %d", m.activeTab)
	}
	if !strings.Contains(m.View(), secondEID) {
		t.Fatalf("expected session ids in sessions tab")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("-")})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("-")})
	if m.window != 1 {
		t.Fatalf("expected window floor 1, got %d", m.window)
	}
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
}

func TestTruncateLine(t *testing.T) {
	if got := truncateLine("abcdefgh", 6); got != "abc..." {
		t.Fatalf("unexpected truncation %q", got)
	}
}
