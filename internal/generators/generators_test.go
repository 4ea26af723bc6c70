package generators

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tiecoon/b7/internal/model"
)

func distinctIDs(t *testing.T, cands []Candidate) {
	t.Helper()
	seen := make(map[uint32]bool)
	for _, c := range cands {
		require.False(t, seen[c.ID], "duplicate id %d in round", c.ID)
		seen[c.ID] = true
	}
}

func TestArgcGenerator(t *testing.T) {
	g := NewArgcGenerator(0, 5)
	round := g.Round()
	require.Len(t, round, 6)
	distinctIDs(t, round)

	more := g.Update(3)
	require.False(t, more)
	require.Equal(t, 3, g.Argc())
	require.Equal(t, "3", g.Display())
}

func TestArgvLenGeneratorTerminatesAfterArgcRounds(t *testing.T) {
	g := NewArgvLenGenerator(2, 0, 4)
	rounds := 0
	for {
		round := g.Round()
		if round == nil {
			break
		}
		distinctIDs(t, round)
		rounds++
		if !g.Update(uint32(rounds)) {
			break
		}
	}
	require.Equal(t, 2, rounds)
	require.Equal(t, []int{1, 2}, g.Lens())
}

func TestArgvLenGeneratorZeroArgcConverges(t *testing.T) {
	g := NewArgvLenGenerator(0, 0, 4)
	require.Nil(t, g.Round())
}

func TestArgvGeneratorSkipsEmptySlots(t *testing.T) {
	g := NewArgvGenerator([]int{0, 2}, 0x20, 0x7e)
	round := g.Round()
	require.NotNil(t, round)
	// slot 0 has length 0, so the first round should already be
	// targeting slot 1, byte 0.
	require.Equal(t, []byte{byte(round[0].ID), 0x20}, round[0].Input.Argv[1])

	more := g.Update(uint32('a'))
	require.True(t, more)
	more = g.Update(uint32('b'))
	require.False(t, more)
	require.Equal(t, [][]byte{{}, {'a', 'b'}}, g.Argv())
}

func TestArgvGeneratorRoundsEqualSumOfLens(t *testing.T) {
	g := NewArgvGenerator([]int{1, 2}, 'a', 'a')
	rounds := 0
	for {
		round := g.Round()
		if round == nil {
			break
		}
		rounds++
		if !g.Update(uint32('a')) {
			break
		}
	}
	require.Equal(t, 3, rounds)
}

func TestStdinLenGenerator(t *testing.T) {
	g := NewStdinLenGenerator(0, 10)
	round := g.Round()
	require.Len(t, round, 11)
	distinctIDs(t, round)
	require.False(t, g.Update(5))
	require.Equal(t, 5, g.StdinLen())
}

func TestStdinCharGeneratorWithPrefix(t *testing.T) {
	g := NewStdinCharGenerator(4, []byte("ab"), 0x20, 0x7e)
	round := g.Round()
	require.NotNil(t, round)
	for _, c := range round {
		require.Equal(t, []byte("ab"), c.Input.Stdin[:2])
	}
	distinctIDs(t, round)

	require.True(t, g.Update('c'))
	require.False(t, g.Update('d'))
	require.Equal(t, "abcd", g.Display())
}

func TestStdinCharGeneratorTerminatesAfterLenRounds(t *testing.T) {
	g := NewStdinCharGenerator(3, nil, 'x', 'x')
	rounds := 0
	for g.Round() != nil {
		rounds++
		if !g.Update('x') {
			break
		}
	}
	require.Equal(t, 3, rounds)
}

func TestMemGenerator(t *testing.T) {
	g := NewMemGenerator(model.MemInput{Size: 2})
	round := g.Round()
	require.Len(t, round, 256)
	distinctIDs(t, round)

	require.True(t, g.Update(0x41))
	require.False(t, g.Update(0x42))
	require.Equal(t, []byte{0x41, 0x42}, g.Bytes())
}
