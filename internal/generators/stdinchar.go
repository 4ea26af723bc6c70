package generators

import "github.com/tiecoon/b7/internal/model"

// StdinCharGenerator searches stdin byte positions one at a time, left to
// right, yielding full-length padded candidate buffers each round. The
// prefix passed to NewStdinCharGenerator seeds a known-correct leading run
// of bytes (from the CLI's --start flag,
// or from bytes already recovered); solving resumes right after it.
type StdinCharGenerator struct {
	Len      int
	Min, Max byte
	Pad      byte

	solved []byte
}

var _ Generator = (*StdinCharGenerator)(nil)

// NewStdinCharGenerator builds a StdinCharGenerator for a buffer of length
// l, with prefix bytes already known, searching [min, max] for the rest.
func NewStdinCharGenerator(l int, prefix []byte, min, max byte) *StdinCharGenerator {
	g := &StdinCharGenerator{Len: l, Min: min, Max: max, Pad: defaultPad}
	g.solved = append([]byte(nil), prefix...)
	if len(g.solved) > l {
		g.solved = g.solved[:l]
	}
	return g
}

func (g *StdinCharGenerator) idx() int  { return len(g.solved) }
func (g *StdinCharGenerator) done() bool { return g.idx() >= g.Len }

func (g *StdinCharGenerator) Round() []Candidate {
	if g.done() {
		return nil
	}
	out := make([]Candidate, 0, int(g.Max)-int(g.Min)+1)
	for v := int(g.Min); v <= int(g.Max); v++ {
		buf := make([]byte, g.Len)
		copy(buf, g.solved)
		buf[g.idx()] = byte(v)
		for j := g.idx() + 1; j < g.Len; j++ {
			buf[j] = g.Pad
		}
		out = append(out, Candidate{ID: uint32(v), Input: model.Input{Stdin: buf, StdinLen: model.IntPtr(g.Len)}})
	}
	return out
}

func (g *StdinCharGenerator) Update(winningID uint32) bool {
	g.solved = append(g.solved, byte(winningID))
	return !g.done()
}

func (g *StdinCharGenerator) Display() string { return string(g.solved) }

// Stdin returns the solved bytes so far.
func (g *StdinCharGenerator) Stdin() []byte { return g.solved }
