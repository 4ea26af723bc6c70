package elfinfo

import (
	"debug/elf"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsPIE(t *testing.T) {
	pie := &Binary{Path: "pie", EType: elf.ET_DYN}
	ok, err := pie.IsPIE()
	require.NoError(t, err)
	require.True(t, ok)

	exec := &Binary{Path: "exec", EType: elf.ET_EXEC}
	ok, err = exec.IsPIE()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIsPIERejectsOtherTypes(t *testing.T) {
	b := &Binary{Path: "core", EType: elf.ET_CORE}
	_, err := b.IsPIE()
	require.Error(t, err)
}

func TestIs64(t *testing.T) {
	require.True(t, (&Binary{Class: elf.ELFCLASS64}).Is64())
	require.False(t, (&Binary{Class: elf.ELFCLASS32}).Is64())
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open("/nonexistent/path/to/binary")
	require.Error(t, err)
}
