// Package elfinfo parses the handful of ELF header fields the solver needs:
// whether a binary is position-independent, and whether it is 64-bit. Where
// a running child's image was loaded is looked up separately, by
// internal/proc from /proc/<pid>/maps. Parsing happens once at construction;
// Binary is immutable after that.
package elfinfo

import (
	"debug/elf"

	"github.com/tiecoon/b7/internal/b7err"
)

// Binary is the observed ELF metadata for one target executable.
type Binary struct {
	Path  string
	EType elf.Type
	Class elf.Class
}

// Open parses path's ELF header and returns a Binary. Any failure to read or
// parse the file is an Arg-kind error: an unparseable target is a bad
// invocation, not an internal fault.
func Open(path string) (*Binary, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, b7err.Argf("elfinfo: %s is not a readable ELF file: %v", path, err)
	}
	defer f.Close()

	return &Binary{
		Path:  path,
		EType: f.Type,
		Class: f.Class,
	}, nil
}

// IsPIE reports whether the binary is a position-independent executable
// (ET_DYN) as opposed to a traditional fixed-address executable (ET_EXEC).
// Any other e_type is a fatal argument error: B7 only targets regular
// Linux ELF programs.
func (b *Binary) IsPIE() (bool, error) {
	switch b.EType {
	case elf.ET_DYN:
		return true, nil
	case elf.ET_EXEC:
		return false, nil
	default:
		return false, b7err.Argf("elfinfo: %s has unsupported e_type %s (only ET_EXEC and ET_DYN are supported)", b.Path, b.EType)
	}
}

// Is64 reports whether the binary is a 64-bit ELF (ELFCLASS64) as opposed to
// 32-bit (ELFCLASS32). Used to select the external-instrumentation driver.
func (b *Binary) Is64() bool {
	return b.Class == elf.ELFCLASS64
}
