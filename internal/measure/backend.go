// Package measure implements the InstCounter contract: running one child
// to completion and returning the number of retired CPU instructions it
// executed. Two backends are provided: a hardware performance-counter
// backend (the primary path) and an external dynamic-instrumentation
// backend for hosts where perf_event_open is unavailable or disallowed.
package measure

import (
	"time"

	"github.com/tiecoon/b7/internal/model"
)

// InstCountData carries everything a backend needs to run and measure one
// candidate.
type InstCountData struct {
	Path    string
	Argv    []string
	Input   model.Input
	Timeout time.Duration
	PIE     bool
	// Is64 selects the 64-bit external-instrumentation driver when true,
	// the 32-bit one otherwise. Meaningless to the hardware backend.
	Is64 bool
	// Vars carries backend-specific miscellaneous named variables, e.g.
	// the external-instrumentation backend's driver install root.
	Vars map[string]string
}

// InstCounter is satisfied by every measurement backend.
type InstCounter interface {
	GetInstCount(data InstCountData) (int64, error)
}

// buildArgv assembles the argv the child should be exec'd with: explicit
// per-index bytes from data.Input.Argv where present, otherwise data.Argv.
func buildArgv(data InstCountData) []string {
	if len(data.Input.Argv) == 0 {
		return data.Argv
	}
	argv := make([]string, len(data.Input.Argv))
	for i, a := range data.Input.Argv {
		argv[i] = string(a)
	}
	return argv
}
