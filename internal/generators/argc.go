package generators

import (
	"strconv"

	"github.com/tiecoon/b7/internal/model"
)

// ArgcGenerator searches for the target's argument count. It yields
// candidate argcs from Min through Max, expects exactly one Update call,
// and then terminates.
type ArgcGenerator struct {
	Min, Max int
	solved   int
}

var _ Generator = (*ArgcGenerator)(nil)

// NewArgcGenerator builds an ArgcGenerator over [min, max].
func NewArgcGenerator(min, max int) *ArgcGenerator {
	return &ArgcGenerator{Min: min, Max: max}
}

func (g *ArgcGenerator) Round() []Candidate {
	out := make([]Candidate, 0, g.Max-g.Min+1)
	for v := g.Min; v <= g.Max; v++ {
		out = append(out, Candidate{ID: uint32(v), Input: model.Input{Argc: model.IntPtr(v)}})
	}
	return out
}

func (g *ArgcGenerator) Update(winningID uint32) bool {
	g.solved = int(winningID)
	return false
}

func (g *ArgcGenerator) Display() string { return strconv.Itoa(g.solved) }

// Argc returns the converged value. Only meaningful after Update has run.
func (g *ArgcGenerator) Argc() int { return g.solved }
