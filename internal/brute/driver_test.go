package brute

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tiecoon/b7/internal/b7err"
	"github.com/tiecoon/b7/internal/generators"
	"github.com/tiecoon/b7/internal/measure"
	"github.com/tiecoon/b7/internal/model"
)

// fakeGenerator converges to the candidate whose byte value is `target`,
// one round, ids 0-255.
type fakeGenerator struct {
	target byte
	done   bool
}

func (g *fakeGenerator) Round() []generators.Candidate {
	if g.done {
		return nil
	}
	out := make([]generators.Candidate, 0, 256)
	for v := 0; v < 256; v++ {
		out = append(out, generators.Candidate{
			ID:    uint32(v),
			Input: model.Input{Stdin: []byte{byte(v)}},
		})
	}
	return out
}

func (g *fakeGenerator) Update(winningID uint32) bool {
	g.done = true
	return false
}

func (g *fakeGenerator) Display() string { return "" }

// fakeBackend reports a high instruction count for the target byte and a
// flat low count for everything else, so the outlier is deterministic.
type fakeBackend struct {
	target byte
}

func (b fakeBackend) GetInstCount(data measure.InstCountData) (int64, error) {
	if len(data.Input.Stdin) == 1 && data.Input.Stdin[0] == b.target {
		return 10000, nil
	}
	return 100, nil
}

type failingBackend struct{}

func (failingBackend) GetInstCount(data measure.InstCountData) (int64, error) {
	return 0, b7err.IOf(nil, "synthetic failure")
}

type recordingObserver struct {
	updates int
	waits   int
	dones   int
	lastMin int64
}

func (o *recordingObserver) Update(results []Result, min int64) {
	o.updates++
	o.lastMin = min
}
func (o *recordingObserver) Wait() { o.waits++ }
func (o *recordingObserver) Done() { o.dones++ }

func TestRunConvergesOnOutlier(t *testing.T) {
	gen := &fakeGenerator{target: 0x41}
	obs := &recordingObserver{}

	result, err := Run(gen, Config{
		Path:     "/bin/true",
		Backend:  fakeBackend{target: 0x41},
		Repeat:   2,
		Timeout:  time.Second,
		Observer: obs,
	})

	require.NoError(t, err)
	require.Equal(t, []byte{0x41}, result.Stdin)
	require.Equal(t, 1, obs.updates)
	require.Equal(t, 1, obs.waits)
	require.Equal(t, int64(100), obs.lastMin)
}

func TestRunReturnsNoResultsWhenEveryCandidateFails(t *testing.T) {
	gen := &fakeGenerator{target: 0x41}

	_, err := Run(gen, Config{
		Path:    "/bin/true",
		Backend: failingBackend{},
		Repeat:  1,
		Timeout: time.Second,
	})

	require.Error(t, err)
	require.Equal(t, b7err.NoResults, b7err.KindOf(err))
}

// lastWriteBackend counts calls per distinct candidate and returns a count
// that depends on how many times it has already been called for that
// candidate, so the test can assert only the final call's value is kept.
type lastWriteBackend struct {
	calls map[byte]int
}

func (b *lastWriteBackend) GetInstCount(data measure.InstCountData) (int64, error) {
	v := data.Input.Stdin[0]
	b.calls[v]++
	if v == 0x5a {
		// Early calls return a low count; only the final call (the
		// repeat-th) returns the outlier-making high count.
		if b.calls[v] < 3 {
			return 100, nil
		}
		return 10000, nil
	}
	return 100, nil
}

func TestRunKeepsOnlyFinalRepeatMeasurement(t *testing.T) {
	gen := &fakeGenerator{target: 0x5a}
	backend := &lastWriteBackend{calls: make(map[byte]int)}

	result, err := Run(gen, Config{
		Path:    "/bin/true",
		Backend: backend,
		Repeat:  3,
		Timeout: time.Second,
	})

	require.NoError(t, err)
	require.Equal(t, []byte{0x5a}, result.Stdin)
}
