//go:build linux && amd64

package proc

import (
	"golang.org/x/sys/unix"

	"github.com/tiecoon/b7/internal/b7err"
)

// BreakpointsSupported is true only on x86-64 Linux hosts: breakpoints are
// x86-only by design (spec.md §1 Non-goals).
const BreakpointsSupported = true

func getRegs(pid int) (*unix.PtraceRegs, error) {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(pid, &regs); err != nil {
		return nil, b7err.Nixf(err, "proc: reading registers of pid %d", pid)
	}
	return &regs, nil
}

func setRegs(pid int, regs *unix.PtraceRegs) error {
	if err := unix.PtraceSetRegs(pid, regs); err != nil {
		return b7err.Nixf(err, "proc: writing registers of pid %d", pid)
	}
	return nil
}

func ripOf(regs *unix.PtraceRegs) uint64 { return regs.Rip }

func setRip(regs *unix.PtraceRegs, addr uint64) { regs.Rip = addr }
