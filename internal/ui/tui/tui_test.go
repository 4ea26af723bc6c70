package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/tiecoon/b7/internal/brute"
)

func TestModelViewRendersOutlierDistinctly(t *testing.T) {
	m := model{}
	updated, _ := m.Update(roundMsg{
		results: []brute.Result{
			{ID: 1, Measurement: 100},
			{ID: 2, Measurement: 9000},
		},
		min: 100,
	})
	view := updated.View()
	require.Contains(t, view, "min=100")
	require.Contains(t, view, "9000")
}

func TestModelQuitsOnDoneMsg(t *testing.T) {
	m := model{}
	updated, cmd := m.Update(doneMsg{})
	require.True(t, updated.(model).done)
	require.NotNil(t, cmd)
	require.Equal(t, tea.Quit(), cmd())
}

func TestModelAdvancesOnEnterKey(t *testing.T) {
	advance := make(chan struct{}, 1)
	m := model{advance: advance}
	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	select {
	case <-advance:
	default:
		t.Fatal("expected enter key to signal advance channel")
	}
}

func TestModelViewBeforeFirstRound(t *testing.T) {
	m := model{}
	require.True(t, strings.Contains(m.View(), "waiting"))
}

func TestModelTracksTimeout(t *testing.T) {
	m := model{}
	updated, _ := m.Update(timeoutMsg(5 * time.Second))
	require.Equal(t, 5*time.Second, updated.(model).timeout)
}
