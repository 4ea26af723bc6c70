package proc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tiecoon/b7/internal/model"
)

func TestLeUint64RoundTrip(t *testing.T) {
	var buf [8]byte
	putLeUint64(buf[:], 0x0102030405060708)
	require.Equal(t, uint64(0x0102030405060708), leUint64(buf[:]))
}

func TestValidateRejectsBreakpointWithDropPtrace(t *testing.T) {
	if !BreakpointsSupported {
		t.Skip("breakpoints unsupported on this architecture")
	}
	bp := uint64(0x401000)
	cfg := SpawnConfig{
		DropPtrace: true,
		Mem:        []model.MemInput{{Size: 1, Breakpoint: &bp}},
	}
	require.Error(t, cfg.Validate())
}

func TestValidateAcceptsBreakpointWithoutDropPtrace(t *testing.T) {
	if !BreakpointsSupported {
		t.Skip("breakpoints unsupported on this architecture")
	}
	bp := uint64(0x401000)
	cfg := SpawnConfig{
		Mem: []model.MemInput{{Size: 1, Breakpoint: &bp}},
	}
	require.NoError(t, cfg.Validate())
}

func TestAbsRelAddrRoundTripNonPIE(t *testing.T) {
	h := &ProcessHandle{cfg: SpawnConfig{PIE: false}}
	addr, err := h.absAddr(0x1234)
	require.NoError(t, err)
	require.Equal(t, uint64(0x1234), addr)

	rel, err := h.RelAddr(addr)
	require.NoError(t, err)
	require.Equal(t, uint64(0x1234), rel)
}

func TestAbsRelAddrRoundTripPIEWithKnownBase(t *testing.T) {
	h := &ProcessHandle{cfg: SpawnConfig{PIE: true}, base: 0x555500000000, baseKnown: true}
	abs, err := h.absAddr(0x4050)
	require.NoError(t, err)
	require.Equal(t, uint64(0x555500004050), abs)

	rel, err := h.RelAddr(abs)
	require.NoError(t, err)
	require.Equal(t, uint64(0x4050), rel)
}
