//go:build linux

package measure

import (
	"encoding/binary"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/tiecoon/b7/internal/b7err"
	"github.com/tiecoon/b7/internal/proc"
)

// PerfBackend is the primary InstCounter: it opens a hardware
// PERF_COUNT_HW_INSTRUCTIONS counter on the child immediately after the
// post-exec stop and before the child is allowed to run, so every retired
// instruction from the program's real entry point onward is counted.
type PerfBackend struct{}

var _ InstCounter = PerfBackend{}

func (PerfBackend) GetInstCount(data InstCountData) (int64, error) {
	cfg := proc.SpawnConfig{
		Path:  data.Path,
		Argv:  buildArgv(data),
		Stdin: data.Input.Stdin,
		Trace: true,
		PIE:   data.PIE,
		Mem:   data.Input.Mem,
	}

	h, err := proc.Spawn(cfg)
	if err != nil {
		return 0, err
	}
	defer h.Close()

	fd, err := openInstructionCounter(h.Pid())
	if err != nil {
		return 0, err
	}
	defer unix.Close(fd)

	if err := resetAndEnable(fd); err != nil {
		return 0, err
	}

	if err := h.Finish(data.Timeout); err != nil {
		return 0, err
	}

	return readCounter(fd)
}

// openInstructionCounter opens a hardware retired-instruction counter
// attached to pid, on any CPU, with no group leader and no flags.
func openInstructionCounter(pid int) (int, error) {
	attr := unix.PerfEventAttr{
		Type:   unix.PERF_TYPE_HARDWARE,
		Config: unix.PERF_COUNT_HW_INSTRUCTIONS,
		Size:   uint32(unsafe.Sizeof(unix.PerfEventAttr{})),
		Bits: unix.PerfBitDisabled |
			unix.PerfBitExcludeKernel |
			unix.PerfBitExcludeHv |
			unix.PerfBitExcludeIdle |
			unix.PerfBitExcludeCallchainKernel,
	}

	fd, err := unix.PerfEventOpen(&attr, pid, -1, -1, 0)
	if err != nil {
		return -1, b7err.IOf(err, "measure: perf_event_open for pid %d", pid)
	}
	return fd, nil
}

func resetAndEnable(fd int) error {
	if err := unix.IoctlSetInt(fd, unix.PERF_EVENT_IOC_RESET, 0); err != nil {
		return b7err.IOf(err, "measure: PERF_EVENT_IOC_RESET")
	}
	if err := unix.IoctlSetInt(fd, unix.PERF_EVENT_IOC_ENABLE, 0); err != nil {
		return b7err.IOf(err, "measure: PERF_EVENT_IOC_ENABLE")
	}
	return nil
}

// readCounter reads exactly 8 bytes (the counter value) from fd. Anything
// else — a short read, an open failure already surfaced above, any I/O
// error — is an IO-kind error per spec.md §4.2.1.
func readCounter(fd int) (int64, error) {
	var buf [8]byte
	n, err := unix.Read(fd, buf[:])
	if err != nil {
		return 0, b7err.IOf(err, "measure: reading perf counter")
	}
	if n != 8 {
		return 0, b7err.IOf(nil, "measure: short read from perf counter fd: got %d bytes, want 8", n)
	}
	return int64(binary.LittleEndian.Uint64(buf[:])), nil
}
