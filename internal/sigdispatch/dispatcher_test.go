package sigdispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestAttachThenPushDeliversEvent(t *testing.T) {
	d := &Dispatcher{chans: make(map[int]*chanPair)}
	ch := d.Attach(4242)

	d.push(4242, unix.WaitStatus(0))

	wd, ok := Receive(ch, time.Second)
	require.True(t, ok)
	require.Equal(t, 4242, wd.Pid)
}

func TestPushBeforeAttachBuffers(t *testing.T) {
	// The waiter may observe an exit before the spawning side has
	// indexed the pid; the event must not be lost.
	d := &Dispatcher{chans: make(map[int]*chanPair)}
	d.push(99, unix.WaitStatus(0))

	ch := d.Attach(99)
	wd, ok := Receive(ch, time.Second)
	require.True(t, ok)
	require.Equal(t, 99, wd.Pid)
}

func TestAttachTwicePanics(t *testing.T) {
	d := &Dispatcher{chans: make(map[int]*chanPair)}
	d.Attach(1)
	require.Panics(t, func() { d.Attach(1) })
}

func TestForgetRemovesEntry(t *testing.T) {
	d := &Dispatcher{chans: make(map[int]*chanPair)}
	d.Attach(7)
	d.Forget(7)
	require.NotPanics(t, func() { d.Attach(7) })
}

func TestChldMaskOnlySetsSIGCHLDBit(t *testing.T) {
	mask := chldMask()
	bit := uint(unix.SIGCHLD) - 1
	require.NotZero(t, mask.Val[bit/64]&(1<<(bit%64)))

	// every other word should be zero
	mask.Val[bit/64] &^= 1 << (bit % 64)
	for _, w := range mask.Val {
		require.Zero(t, w)
	}
}
