//go:build linux && !amd64

package proc

import "github.com/tiecoon/b7/internal/b7err"

// BreakpointsSupported is false on every architecture but x86-64: SpawnConfig.Validate
// rejects breakpoint requests before a process is ever spawned on these hosts.
const BreakpointsSupported = false

type ptraceRegsStub struct{ rip uint64 }

func getRegs(pid int) (*ptraceRegsStub, error) {
	return nil, b7err.Argf("proc: breakpoints are not supported on this architecture")
}

func setRegs(pid int, regs *ptraceRegsStub) error {
	return b7err.Argf("proc: breakpoints are not supported on this architecture")
}

func ripOf(regs *ptraceRegsStub) uint64 { return regs.rip }

func setRip(regs *ptraceRegsStub, addr uint64) { regs.rip = addr }
