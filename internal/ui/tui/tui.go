// Package tui implements a bar-chart terminal observer with bubbletea and
// lipgloss: one horizontal bar per candidate in the current round, length
// proportional to the candidate's measurement relative to the round's
// minimum.
package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tiecoon/b7/internal/brute"
)

var (
	barStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	outlierStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	maxBarWidth  = 40
)

type roundMsg struct {
	results []brute.Result
	min     int64
}

type doneMsg struct{}

type timeoutMsg time.Duration

type model struct {
	results []brute.Result
	min     int64
	timeout time.Duration
	done    bool

	advance chan struct{}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case roundMsg:
		m.results = msg.results
		m.min = msg.min
		return m, nil
	case timeoutMsg:
		m.timeout = time.Duration(msg)
		return m, nil
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "enter", " ":
			if m.advance != nil {
				select {
				case m.advance <- struct{}{}:
				default:
				}
			}
			return m, nil
		}
	}
	return m, nil
}

func (m model) View() string {
	if m.done {
		return "b7: solved\n"
	}
	if len(m.results) == 0 {
		return headerStyle.Render("b7: waiting for first round...") + "\n"
	}

	sorted := append([]brute.Result(nil), m.results...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Measurement < sorted[j].Measurement })

	maxV := sorted[len(sorted)-1].Measurement
	var b strings.Builder
	fmt.Fprintf(&b, headerStyle.Render("timeout=%s  min=%d  candidates=%d")+"\n", m.timeout, m.min, len(sorted))
	for _, r := range sorted {
		width := 1
		if maxV > m.min {
			width = 1 + int(float64(r.Measurement-m.min)/float64(maxV-m.min)*float64(maxBarWidth))
		}
		bar := strings.Repeat("█", width)
		style := barStyle
		if r.Measurement == maxV {
			style = outlierStyle
		}
		fmt.Fprintf(&b, "%3d | %s %d\n", r.ID, style.Render(bar), r.Measurement)
	}
	fmt.Fprint(&b, headerStyle.Render("[enter] advance  [q] quit"))
	return b.String()
}

// Observer drives a bubbletea program from the brute-force driver's
// goroutine. Wait blocks until the user presses enter/space, letting a
// human inspect each round's bar chart before the next one runs.
type Observer struct {
	program *tea.Program
	advance chan struct{}
	done    chan struct{}
}

// New starts the bubbletea program in the background and returns an
// Observer ready to report rounds to it.
func New() *Observer {
	advance := make(chan struct{}, 1)
	p := tea.NewProgram(model{advance: advance})
	o := &Observer{program: p, advance: advance, done: make(chan struct{})}
	go func() {
		defer close(o.done)
		p.Run()
	}()
	return o
}

func (o *Observer) SetTimeout(d time.Duration) {
	o.program.Send(timeoutMsg(d))
}

func (o *Observer) Update(results []brute.Result, min int64) {
	o.program.Send(roundMsg{results: results, min: min})
}

func (o *Observer) Wait() {
	select {
	case <-o.advance:
	case <-o.done:
	}
}

func (o *Observer) Done() {
	o.program.Send(doneMsg{})
	<-o.done
}
