// Package proc implements the measured-process runtime: spawning a traced
// child, the one-shot post-exec ptrace initialization (base-address lookup,
// pre-execution memory patching, breakpoint installation), and the
// timeout-supervised wait loop that drives the child to completion.
//
// A ProcessHandle is owned by exactly one goroutine for its entire life,
// and that goroutine must have called runtime.LockOSThread: every ptrace
// call for a given tracee must come from the same OS thread that attached
// to it.
package proc

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/tiecoon/b7/internal/b7err"
	"github.com/tiecoon/b7/internal/model"
	"github.com/tiecoon/b7/internal/sigdispatch"
)

// trapOpcode is the x86 single-byte breakpoint instruction, INT3.
const trapOpcode = 0xCC

// SpawnConfig describes how to start one measured child.
type SpawnConfig struct {
	Path       string
	Argv       []string
	Stdin      []byte
	Trace      bool
	DropPtrace bool
	PIE        bool
	Mem        []model.MemInput
}

// Validate checks the architecture/mode constraints spec.md §4.1 requires,
// before any process is spawned.
func (c SpawnConfig) Validate() error {
	for _, m := range c.Mem {
		if m.Breakpoint == nil {
			continue
		}
		if !BreakpointsSupported {
			return b7err.Argf("proc: breakpoint requested at 0x%x but this host architecture does not support x86 breakpoints", *m.Breakpoint)
		}
		if c.DropPtrace {
			return b7err.Argf("proc: breakpoint-based memory input is incompatible with --drop-ptrace")
		}
	}
	return nil
}

// BreakpointInfo is a saved-original-word / target-region pair, keyed by
// absolute breakpoint address, for one installed breakpoint.
type BreakpointInfo struct {
	OrigWord uint64
	Mem      *model.MemInput
}

// ProcessHandle supervises one spawned child.
type ProcessHandle struct {
	cfg         SpawnConfig
	pid         int
	started     bool
	exited      bool
	initialized bool
	detached    bool

	base      uint64
	baseKnown bool

	breakpoints map[uint64]*BreakpointInfo

	waitCh  <-chan sigdispatch.WaitData
	stdoutR *os.File
	stdinW  *os.File
}

// Spawn forks and execs the configured child. If cfg.Trace is set, the
// child requests tracing of itself before exec and will stop immediately
// after the exec syscall returns.
func Spawn(cfg SpawnConfig) (*ProcessHandle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return nil, b7err.IOf(err, "proc: creating stdin pipe")
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		return nil, b7err.IOf(err, "proc: creating stdout pipe")
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		stdoutR.Close()
		stdoutW.Close()
		return nil, b7err.IOf(err, "proc: creating stderr pipe")
	}
	defer stderrR.Close()

	if cfg.Trace {
		if err := sigdispatch.BlockChildSignal(); err != nil {
			return nil, b7err.Unknownf(err, "proc: could not block SIGCHLD on spawning thread")
		}
	}

	attr := &syscall.ProcAttr{
		Files: []uintptr{stdinR.Fd(), stdoutW.Fd(), stderrW.Fd()},
		Sys:   &syscall.SysProcAttr{Ptrace: cfg.Trace},
	}

	argv := append([]string{cfg.Path}, cfg.Argv...)
	pid, err := syscall.ForkExec(cfg.Path, argv, attr)

	stdinR.Close()
	stdoutW.Close()
	stderrW.Close()

	if err != nil {
		stdoutR.Close()
		stdinW.Close()
		return nil, b7err.Nixf(err, "proc: fork/exec %s", cfg.Path)
	}

	h := &ProcessHandle{
		cfg:         cfg,
		pid:         pid,
		started:     true,
		breakpoints: make(map[uint64]*BreakpointInfo),
		stdoutR:     stdoutR,
		stdinW:      stdinW,
	}

	if len(cfg.Stdin) > 0 {
		if _, err := h.stdinW.Write(cfg.Stdin); err != nil {
			logrus.WithError(err).WithField("pid", pid).Warn("proc: short write to child stdin")
		}
	}
	h.stdinW.Close()
	h.stdinW = nil

	h.waitCh = sigdispatch.Global().Attach(pid)

	return h, nil
}

// Pid returns the child's process id.
func (h *ProcessHandle) Pid() int {
	if !h.started {
		panic(b7err.Runnerf("proc: Pid called on a handle whose child never started"))
	}
	return h.pid
}

// Finish runs the supervision loop until the child exits or timeout
// elapses. It returns a Timeout-kind *b7err.Error on expiry; the child is
// left running (and will be reaped later by the dispatcher) rather than
// killed, matching spec.md §5's cancellation model.
func (h *ProcessHandle) Finish(timeout time.Duration) error {
	if !h.started {
		return b7err.Runnerf("proc: Finish called on a handle whose child never started")
	}

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return b7err.Timeoutf("proc: pid %d exceeded %s", h.pid, timeout)
		}

		wd, ok := sigdispatch.Receive(h.waitCh, remaining)
		if !ok {
			return b7err.Timeoutf("proc: pid %d exceeded %s", h.pid, timeout)
		}

		switch {
		case wd.Status.Exited() || wd.Status.Signaled():
			sigdispatch.Global().Forget(h.pid)
			h.exited = true
			return nil
		case wd.Status.Stopped():
			if err := h.handleStop(wd.Status.StopSignal()); err != nil {
				return err
			}
		}
	}
}

func (h *ProcessHandle) handleStop(sig unix.Signal) error {
	if h.cfg.DropPtrace && !h.detached {
		if err := unix.PtraceDetach(h.pid); err != nil {
			return b7err.Nixf(err, "proc: detaching pid %d", h.pid)
		}
		h.detached = true
		return nil
	}
	if h.detached || !h.cfg.Trace {
		return nil
	}

	if !h.initialized {
		if err := h.initTrace(); err != nil {
			return err
		}
		h.initialized = true
		return contNoSignal(h.pid)
	}

	if sig == unix.SIGTRAP {
		return h.handleBreakpointTrap()
	}

	if err := unix.PtraceCont(h.pid, int(sig)); err != nil {
		return b7err.Nixf(err, "proc: forwarding signal %v to pid %d", sig, h.pid)
	}
	return nil
}

func contNoSignal(pid int) error {
	if err := unix.PtraceCont(pid, 0); err != nil {
		return b7err.Nixf(err, "proc: continuing pid %d", pid)
	}
	return nil
}

// initTrace runs exactly once, on the first post-exec stop: it resolves the
// executable base (for PIE translation), writes every non-breakpoint
// MemInput immediately, and installs a breakpoint for every MemInput that
// requested one.
func (h *ProcessHandle) initTrace() error {
	if h.cfg.PIE {
		base, err := h.executableBase()
		if err != nil {
			return err
		}
		h.base = base
		h.baseKnown = true
	}

	for i := range h.cfg.Mem {
		m := &h.cfg.Mem[i]
		if m.Breakpoint != nil {
			if err := h.installBreakpoint(m); err != nil {
				return err
			}
			continue
		}
		addr, err := h.absAddr(m.Addr)
		if err != nil {
			return err
		}
		if err := h.writeMem(addr, m.Bytes); err != nil {
			return err
		}
	}
	return nil
}

func (h *ProcessHandle) installBreakpoint(m *model.MemInput) error {
	bpAddr, err := h.absAddr(*m.Breakpoint)
	if err != nil {
		return err
	}
	orig, err := peekWord(h.pid, bpAddr)
	if err != nil {
		return err
	}
	patched := (orig &^ 0xff) | trapOpcode
	if err := pokeWord(h.pid, bpAddr, patched); err != nil {
		return err
	}
	h.breakpoints[bpAddr] = &BreakpointInfo{OrigWord: orig, Mem: m}
	return nil
}

// handleBreakpointTrap is reached when the child traps after hitting one of
// our installed breakpoints. x86 leaves the instruction pointer one byte
// past the trap; we rewind it, write the region's bytes, restore the
// original word, and remove the breakpoint.
func (h *ProcessHandle) handleBreakpointTrap() error {
	regs, err := getRegs(h.pid)
	if err != nil {
		return err
	}
	trapAddr := ripOf(regs) - 1

	bp, ok := h.breakpoints[trapAddr]
	if !ok {
		// Not one of ours; never forward SIGTRAP, just resume.
		return contNoSignal(h.pid)
	}

	addr, err := h.absAddr(bp.Mem.Addr)
	if err != nil {
		return err
	}
	if err := h.writeMem(addr, bp.Mem.Bytes); err != nil {
		return err
	}
	if err := pokeWord(h.pid, trapAddr, bp.OrigWord); err != nil {
		return err
	}

	setRip(regs, trapAddr)
	if err := setRegs(h.pid, regs); err != nil {
		return err
	}

	delete(h.breakpoints, trapAddr)
	return contNoSignal(h.pid)
}

func (h *ProcessHandle) writeMem(addr uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if _, err := unix.PtracePokeData(h.pid, uintptr(addr), data); err != nil {
		return b7err.Nixf(err, "proc: writing %d bytes to pid %d at 0x%x", len(data), h.pid, addr)
	}
	return nil
}

// absAddr translates x into an absolute address: x + base for PIE targets,
// x unchanged otherwise.
func (h *ProcessHandle) absAddr(x uint64) (uint64, error) {
	if !h.cfg.PIE {
		return x, nil
	}
	base, err := h.executableBase()
	if err != nil {
		return 0, err
	}
	return x + base, nil
}

// RelAddr is the inverse of absAddr, exposed for callers (and tests) that
// need to report recovered addresses back in the binary's own numbering.
func (h *ProcessHandle) RelAddr(x uint64) (uint64, error) {
	if !h.cfg.PIE {
		return x, nil
	}
	base, err := h.executableBase()
	if err != nil {
		return 0, err
	}
	return x - base, nil
}

// executableBase looks up, and caches, the load address of the child's own
// executable image from its /proc/<pid>/maps table: the first mapping
// whose backing path equals the child's executable path.
func (h *ProcessHandle) executableBase() (uint64, error) {
	if h.baseKnown {
		return h.base, nil
	}

	exePath, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", h.pid))
	if err != nil {
		return 0, b7err.Procfsf(err, "proc: reading /proc/%d/exe", h.pid)
	}

	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/maps", h.pid))
	if err != nil {
		return 0, b7err.Procfsf(err, "proc: reading /proc/%d/maps", h.pid)
	}

	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 6 {
			continue
		}
		if fields[5] != exePath {
			continue
		}
		parts := strings.SplitN(fields[0], "-", 2)
		if len(parts) != 2 {
			continue
		}
		start, err := strconv.ParseUint(parts[0], 16, 64)
		if err != nil {
			continue
		}
		h.base = start
		h.baseKnown = true
		return start, nil
	}

	return 0, b7err.Procfsf(nil, "proc: no mapping for %s found in /proc/%d/maps", exePath, h.pid)
}

// ReadStdout drains the child's stdout pipe. Only meaningful after the
// child has exited (Finish returned nil).
func (h *ProcessHandle) ReadStdout() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(h.stdoutR); err != nil {
		return nil, b7err.IOf(err, "proc: reading stdout of pid %d", h.pid)
	}
	return buf.Bytes(), nil
}

// Close releases the pipe file descriptors held by this handle.
func (h *ProcessHandle) Close() error {
	return h.stdoutR.Close()
}

func peekWord(pid int, addr uint64) (uint64, error) {
	var buf [8]byte
	if _, err := unix.PtracePeekData(pid, uintptr(addr), buf[:]); err != nil {
		return 0, b7err.Nixf(err, "proc: peeking word at 0x%x in pid %d", addr, pid)
	}
	return leUint64(buf[:]), nil
}

func pokeWord(pid int, addr uint64, word uint64) error {
	var buf [8]byte
	putLeUint64(buf[:], word)
	if _, err := unix.PtracePokeData(pid, uintptr(addr), buf[:]); err != nil {
		return b7err.Nixf(err, "proc: poking word at 0x%x in pid %d", addr, pid)
	}
	return nil
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func putLeUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v)
		v >>= 8
	}
}
