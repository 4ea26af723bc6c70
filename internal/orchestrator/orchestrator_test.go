package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tiecoon/b7/internal/measure"
	"github.com/tiecoon/b7/internal/model"
)

// directFieldBackend scores a candidate high when match accepts it and low
// otherwise. The tests below use it only for rounds a single field decides:
// the argc round, the stdin-length round, and one-byte mem regions. They
// stop before the argv-len, argv-byte and stdin-char phases.
type directFieldBackend struct {
	match func(data measure.InstCountData) bool
}

func (b directFieldBackend) GetInstCount(data measure.InstCountData) (int64, error) {
	if b.match(data) {
		return 10000, nil
	}
	return 100, nil
}

func TestRunSkipsArgvPhaseWhenArgcIsZero(t *testing.T) {
	backend := directFieldBackend{match: func(data measure.InstCountData) bool {
		return data.Input.Argc != nil && *data.Input.Argc == 0
	}}

	result, err := Run(Config{
		Path:        "/bin/true",
		Backend:     backend,
		EnableArgv:  true,
		EnableStdin: false,
		Timeout:     time.Second,
	})

	require.NoError(t, err)
	require.NotNil(t, result.Argc)
	require.Equal(t, 0, *result.Argc)
	require.Nil(t, result.Argv)
}

func TestRunSkipsStdinCharPhaseWhenLenIsZero(t *testing.T) {
	backend := directFieldBackend{match: func(data measure.InstCountData) bool {
		return data.Input.StdinLen != nil && *data.Input.StdinLen == 0
	}}

	result, err := Run(Config{
		Path:        "/bin/true",
		Backend:     backend,
		EnableArgv:  false,
		EnableStdin: true,
		Timeout:     time.Second,
	})

	require.NoError(t, err)
	require.NotNil(t, result.StdinLen)
	require.Equal(t, 0, *result.StdinLen)
}

func TestRunSolvesEveryMemRegionWithoutLosingEarlierOnes(t *testing.T) {
	want := map[uint64]byte{0x1000: 0x11, 0x2000: 0x22}

	backend := directFieldBackend{match: func(data measure.InstCountData) bool {
		if len(data.Input.Mem) != 1 {
			return false
		}
		m := data.Input.Mem[0]
		return len(m.Bytes) == 1 && m.Bytes[0] == want[m.Addr]
	}}

	result, err := Run(Config{
		Path:    "/bin/true",
		Backend: backend,
		Initial: model.Input{Mem: []model.MemInput{
			{Size: 1, Addr: 0x1000},
			{Size: 1, Addr: 0x2000},
		}},
		Timeout: time.Second,
	})

	require.NoError(t, err)
	require.Len(t, result.Mem, 2)
	require.Equal(t, []byte{0x11}, result.Mem[0].Bytes)
	require.Equal(t, []byte{0x22}, result.Mem[1].Bytes)
}
