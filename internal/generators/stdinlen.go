package generators

import (
	"bytes"
	"strconv"

	"github.com/tiecoon/b7/internal/model"
)

// StdinLenGenerator searches for the target's expected stdin length. One
// round, Min through Max.
type StdinLenGenerator struct {
	Min, Max int
	Pad      byte

	solved int
}

var _ Generator = (*StdinLenGenerator)(nil)

// NewStdinLenGenerator builds a StdinLenGenerator over [min, max].
func NewStdinLenGenerator(min, max int) *StdinLenGenerator {
	return &StdinLenGenerator{Min: min, Max: max, Pad: defaultPad}
}

func (g *StdinLenGenerator) Round() []Candidate {
	out := make([]Candidate, 0, g.Max-g.Min+1)
	for v := g.Min; v <= g.Max; v++ {
		buf := bytes.Repeat([]byte{g.Pad}, v)
		out = append(out, Candidate{ID: uint32(v), Input: model.Input{StdinLen: model.IntPtr(v), Stdin: buf}})
	}
	return out
}

func (g *StdinLenGenerator) Update(winningID uint32) bool {
	g.solved = int(winningID)
	return false
}

func (g *StdinLenGenerator) Display() string { return strconv.Itoa(g.solved) }

// StdinLen returns the converged value. Only meaningful after Update.
func (g *StdinLenGenerator) StdinLen() int { return g.solved }
