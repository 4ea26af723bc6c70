package generators

import (
	"fmt"

	"github.com/tiecoon/b7/internal/model"
)

// ArgvLenGenerator searches for the byte length of each argv slot in turn,
// one slot per round, terminating after argc rounds. argc == 0 means no
// slots to solve — Round returns nil immediately.
type ArgvLenGenerator struct {
	Argc     int
	Min, Max int
	Pad      byte

	slot int
	lens []int
}

var _ Generator = (*ArgvLenGenerator)(nil)

// NewArgvLenGenerator builds an ArgvLenGenerator for argc slots, each
// searched over length range [min, max].
func NewArgvLenGenerator(argc, min, max int) *ArgvLenGenerator {
	return &ArgvLenGenerator{Argc: argc, Min: min, Max: max, Pad: defaultPad, lens: make([]int, argc)}
}

func (g *ArgvLenGenerator) done() bool { return g.slot >= g.Argc }

func (g *ArgvLenGenerator) Round() []Candidate {
	if g.done() {
		return nil
	}
	out := make([]Candidate, 0, g.Max-g.Min+1)
	for v := g.Min; v <= g.Max; v++ {
		out = append(out, Candidate{ID: uint32(v), Input: model.Input{Argv: g.buildArgv(v)}})
	}
	return out
}

// buildArgv fills every already-solved slot with its solved length of pad
// bytes (real bytes aren't known yet at this phase) and the slot under
// test with candidateLen pad bytes.
func (g *ArgvLenGenerator) buildArgv(candidateLen int) [][]byte {
	argv := make([][]byte, g.Argc)
	for i := 0; i < g.Argc; i++ {
		l := 1
		switch {
		case i < g.slot:
			l = g.lens[i]
		case i == g.slot:
			l = candidateLen
		}
		argv[i] = make([]byte, l)
		for j := range argv[i] {
			argv[i][j] = g.Pad
		}
	}
	return argv
}

func (g *ArgvLenGenerator) Update(winningID uint32) bool {
	g.lens[g.slot] = int(winningID)
	g.slot++
	return !g.done()
}

func (g *ArgvLenGenerator) Display() string { return fmt.Sprint(g.lens) }

// Lens returns the per-slot lengths discovered so far.
func (g *ArgvLenGenerator) Lens() []int { return g.lens }
