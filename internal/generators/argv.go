package generators

import (
	"fmt"
	"strings"

	"github.com/tiecoon/b7/internal/model"
)

// ArgvGenerator searches argv byte positions left to right, slot by slot,
// terminating after the sum of all slot lengths. Zero-length slots are
// skipped entirely.
type ArgvGenerator struct {
	Lens     []int
	Min, Max byte
	Pad      byte

	slot   int
	idx    int
	solved [][]byte
}

var _ Generator = (*ArgvGenerator)(nil)

// NewArgvGenerator builds an ArgvGenerator over the given per-slot lengths
// and byte range [min, max].
func NewArgvGenerator(lens []int, min, max byte) *ArgvGenerator {
	g := &ArgvGenerator{
		Lens:   append([]int(nil), lens...),
		Min:    min,
		Max:    max,
		Pad:    defaultPad,
		solved: make([][]byte, len(lens)),
	}
	for i := range g.solved {
		g.solved[i] = make([]byte, 0, lens[i])
	}
	g.skipEmptySlots()
	return g
}

func (g *ArgvGenerator) skipEmptySlots() {
	for g.slot < len(g.Lens) && g.Lens[g.slot] == 0 {
		g.slot++
	}
}

func (g *ArgvGenerator) done() bool { return g.slot >= len(g.Lens) }

func (g *ArgvGenerator) Round() []Candidate {
	if g.done() {
		return nil
	}
	out := make([]Candidate, 0, int(g.Max)-int(g.Min)+1)
	for v := int(g.Min); v <= int(g.Max); v++ {
		out = append(out, Candidate{
			ID:    uint32(v),
			Input: model.Input{Argc: model.IntPtr(len(g.Lens)), Argv: g.buildArgv(byte(v))},
		})
	}
	return out
}

func (g *ArgvGenerator) buildArgv(cur byte) [][]byte {
	argv := make([][]byte, len(g.Lens))
	for i, l := range g.Lens {
		buf := make([]byte, l)
		copy(buf, g.solved[i])
		for j := len(g.solved[i]); j < l; j++ {
			buf[j] = g.Pad
		}
		if i == g.slot && g.idx < l {
			buf[g.idx] = cur
		}
		argv[i] = buf
	}
	return argv
}

func (g *ArgvGenerator) Update(winningID uint32) bool {
	g.solved[g.slot] = append(g.solved[g.slot], byte(winningID))
	g.idx++
	if g.idx >= g.Lens[g.slot] {
		g.slot++
		g.idx = 0
		g.skipEmptySlots()
	}
	return !g.done()
}

func (g *ArgvGenerator) Display() string {
	parts := make([]string, len(g.solved))
	for i, s := range g.solved {
		parts[i] = fmt.Sprintf("%q", string(s))
	}
	return strings.Join(parts, " ")
}

// Argv returns the solved bytes for every slot so far.
func (g *ArgvGenerator) Argv() [][]byte { return g.solved }
