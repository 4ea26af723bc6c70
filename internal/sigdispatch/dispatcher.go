// Package sigdispatch implements the process-wide SIGCHLD dispatcher: a
// single waiter goroutine, pinned to its own OS thread with SIGCHLD blocked
// everywhere else, that is the only place in the process where the kernel
// can deliver a child-state-change signal.
//
// Every other OS thread the process creates — in particular every worker
// goroutine that will itself fork/exec a child — must also have SIGCHLD
// blocked before it does so, by calling BlockChildSignal after
// runtime.LockOSThread. Otherwise the kernel may choose that thread to
// deliver the signal to instead of the dispatcher's waiter, and the waiter
// will never wake up for that child.
package sigdispatch

import (
	"fmt"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// WaitData is one completed status transition of a known child pid.
type WaitData struct {
	Pid    int
	Status unix.WaitStatus
}

type chanPair struct {
	ch    chan WaitData
	taken bool
}

// Dispatcher owns the pid -> channel map and the waiter goroutine. There is
// exactly one live Dispatcher per process; use Global to get it.
type Dispatcher struct {
	mu      sync.Mutex
	chans   map[int]*chanPair
	started sync.Once
}

var (
	globalOnce sync.Once
	global     *Dispatcher
)

// Global returns the process-wide Dispatcher singleton, starting its waiter
// goroutine on first use.
func Global() *Dispatcher {
	globalOnce.Do(func() {
		global = &Dispatcher{chans: make(map[int]*chanPair)}
		global.start()
	})
	return global
}

func (d *Dispatcher) start() {
	d.started.Do(func() {
		ready := make(chan struct{})
		go d.waiterLoop(ready)
		<-ready
	})
}

// chldMask is a signal set containing only SIGCHLD, used both to block the
// signal and as the wait set for rt_sigtimedwait.
func chldMask() unix.Sigset_t {
	var set unix.Sigset_t
	bit := uint(unix.SIGCHLD) - 1
	set.Val[bit/64] |= 1 << (bit % 64)
	return set
}

// BlockChildSignal blocks SIGCHLD on the calling OS thread. Any thread that
// may fork/exec a traced child must call this (after runtime.LockOSThread)
// before doing so, so the kernel has nowhere to deliver SIGCHLD except the
// dispatcher's waiter thread.
func BlockChildSignal() error {
	mask := chldMask()
	if err := unix.PthreadSigmask(unix.SIG_BLOCK, &mask, nil); err != nil {
		return fmt.Errorf("sigdispatch: blocking SIGCHLD: %w", err)
	}
	return nil
}

func (d *Dispatcher) waiterLoop(ready chan<- struct{}) {
	runtime.LockOSThread()
	// The waiter thread never unblocks SIGCHLD; it only ever observes
	// delivery via the synchronous rt_sigtimedwait primitive below, so
	// the signal is never handled asynchronously on this thread either.
	if err := BlockChildSignal(); err != nil {
		logrus.WithError(err).Fatal("sigdispatch: waiter thread could not block SIGCHLD")
	}
	close(ready)

	mask := chldMask()
	timeout := unix.Timespec{Sec: 1}
	for {
		_, err := sigtimedwait(&mask, &timeout)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				// Bounded timeout expiring, or a spurious wakeup; loop.
				continue
			}
			logrus.WithError(err).Warn("sigdispatch: rt_sigtimedwait failed")
			continue
		}
		d.drainExits()
	}
}

// drainExits repeatedly calls waitpid(-1, WNOHANG) until no more child
// state changes are ready. SIGCHLD is not queued while already pending, so
// a burst of several children exiting in close succession can collapse into
// a single wakeup; draining fully here is what keeps that from losing
// events.
func (d *Dispatcher) drainExits() {
	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG, nil)
		if err != nil {
			// ECHILD means no children at all right now; anything else
			// we just stop draining and wait for the next wakeup.
			return
		}
		if pid <= 0 {
			return
		}
		d.push(pid, ws)
	}
}

func (d *Dispatcher) push(pid int, ws unix.WaitStatus) {
	cp := d.pairFor(pid)
	cp.ch <- WaitData{Pid: pid, Status: ws}
}

// pairFor returns the chanPair for pid, creating it if neither the waiter
// nor the spawning thread has indexed it yet. Whichever side calls this
// first wins; the channel's buffer holds any WaitData until a consumer
// attaches.
func (d *Dispatcher) pairFor(pid int) *chanPair {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp, ok := d.chans[pid]
	if !ok {
		cp = &chanPair{ch: make(chan WaitData, 32)}
		d.chans[pid] = cp
	}
	return cp
}

// Attach registers interest in pid and returns its receive channel. It must
// be called exactly once per pid; a second call panics, since the channel's
// receiver end can only be taken once.
func (d *Dispatcher) Attach(pid int) <-chan WaitData {
	cp := d.pairFor(pid)
	d.mu.Lock()
	defer d.mu.Unlock()
	if cp.taken {
		panic(fmt.Sprintf("sigdispatch: channel for pid %d attached twice", pid))
	}
	cp.taken = true
	return cp.ch
}

// Forget drops pid's entry once the caller knows it will never be
// referenced again (the child has exited and its final WaitData has been
// consumed).
func (d *Dispatcher) Forget(pid int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.chans, pid)
}

// Receive blocks until a WaitData for pid arrives or timeout elapses.
func Receive(ch <-chan WaitData, timeout time.Duration) (WaitData, bool) {
	select {
	case wd := <-ch:
		return wd, true
	case <-time.After(timeout):
		return WaitData{}, false
	}
}

// sigtimedwait is the raw rt_sigtimedwait(2) syscall: x/sys/unix does not
// expose a typed wrapper for it, so we issue it directly, the same way the
// gvisor ptrace platform issues SYS_CLONE/SYS_WAIT4 directly for calls its
// higher-level wrapper doesn't cover.
func sigtimedwait(set *unix.Sigset_t, timeout *unix.Timespec) (int, error) {
	r1, _, errno := unix.Syscall6(unix.SYS_RT_SIGTIMEDWAIT,
		uintptr(unsafe.Pointer(set)), 0, uintptr(unsafe.Pointer(timeout)),
		unsafe.Sizeof(*set), 0, 0)
	if errno != 0 {
		return 0, errno
	}
	return int(r1), nil
}
