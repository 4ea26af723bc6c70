package generators

import (
	"encoding/hex"

	"github.com/tiecoon/b7/internal/model"
)

// MemGenerator searches one memory region a single byte at a time, 256
// candidates per round, terminating after Region.Size rounds.
type MemGenerator struct {
	Region model.MemInput

	solved []byte
}

var _ Generator = (*MemGenerator)(nil)

// NewMemGenerator builds a MemGenerator for region, resuming after
// whatever bytes it already carries.
func NewMemGenerator(region model.MemInput) *MemGenerator {
	return &MemGenerator{Region: region, solved: append([]byte(nil), region.Bytes...)}
}

func (g *MemGenerator) done() bool { return len(g.solved) >= g.Region.Size }

func (g *MemGenerator) Round() []Candidate {
	if g.done() {
		return nil
	}
	out := make([]Candidate, 0, 256)
	for v := 0; v < 256; v++ {
		region := g.Region
		region.Bytes = append(append([]byte(nil), g.solved...), byte(v))
		out = append(out, Candidate{ID: uint32(v), Input: model.Input{Mem: []model.MemInput{region}}})
	}
	return out
}

func (g *MemGenerator) Update(winningID uint32) bool {
	g.solved = append(g.solved, byte(winningID))
	return !g.done()
}

func (g *MemGenerator) Display() string { return hex.EncodeToString(g.solved) }

// Bytes returns the solved bytes so far.
func (g *MemGenerator) Bytes() []byte { return g.solved }
