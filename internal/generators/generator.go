// Package generators implements the six candidate-input generators B7's
// orchestrator composes into its searches. Every generator is a small
// explicit state machine satisfying the same Generator interface; there is
// no attempt to unify the per-candidate id type beyond uint32 — some ids
// are argument counts, some are byte values, and casting between them at
// the edges is simpler than a parametric abstraction would be here.
package generators

import "github.com/tiecoon/b7/internal/model"

// Candidate is one (id, Input) pair a generator yields within a round.
type Candidate struct {
	ID    uint32
	Input model.Input
}

// Generator is satisfied by every concrete generator in this package.
type Generator interface {
	// Round drains the generator for the current round. ArgvLen, Argv,
	// StdinChar and Mem return nil once converged; Argc and StdinLen yield
	// their single round again on every call, so callers stop as soon as
	// Update returns false.
	Round() []Candidate
	// Update feeds back the winning candidate's id. It returns true if
	// another round should run.
	Update(winningID uint32) bool
	// Display renders the best-known value so far, for the observer and
	// the result cache.
	Display() string
}

const defaultPad byte = 0x20

