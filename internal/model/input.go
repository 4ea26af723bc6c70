// Package model holds the candidate-input data the generators produce and
// the brute-force driver feeds to the measured-process runtime.
package model

// MemInput describes one memory region to brute-force.
type MemInput struct {
	// Size is the target byte count for this region.
	Size int
	// Addr is the target address. For PIE binaries this is an offset
	// from the executable's load base; for non-PIE it is absolute.
	Addr uint64
	// Bytes holds the bytes discovered so far. len(Bytes) == Size means
	// the region is fully solved.
	Bytes []byte
	// Breakpoint, if non-nil, is the instruction address at which Bytes
	// must be written into the child's memory. If nil, the bytes are
	// written immediately after the child stops following exec.
	Breakpoint *uint64
}

// Clone returns a deep copy of m.
func (m MemInput) Clone() MemInput {
	out := m
	if m.Bytes != nil {
		out.Bytes = append([]byte(nil), m.Bytes...)
	}
	if m.Breakpoint != nil {
		bp := *m.Breakpoint
		out.Breakpoint = &bp
	}
	return out
}

// Solved reports whether every byte of the region has been recovered.
func (m MemInput) Solved() bool { return len(m.Bytes) >= m.Size }

// Input is the full candidate an execution is built from. Every field is
// optional; a nil slice/pointer means "not yet known". Input is treated as
// immutable once built — callers that need a modified copy use Combine.
type Input struct {
	Argc     *int
	ArgvLens []int
	Argv     [][]byte
	StdinLen *int
	Stdin    []byte
	Mem      []MemInput
}

// Clone returns a deep copy of in, safe for a worker to mutate without
// affecting the base Input a round was built from.
func (in Input) Clone() Input {
	out := Input{}
	if in.Argc != nil {
		v := *in.Argc
		out.Argc = &v
	}
	if in.ArgvLens != nil {
		out.ArgvLens = append([]int(nil), in.ArgvLens...)
	}
	if in.Argv != nil {
		out.Argv = make([][]byte, len(in.Argv))
		for i, a := range in.Argv {
			out.Argv[i] = append([]byte(nil), a...)
		}
	}
	if in.StdinLen != nil {
		v := *in.StdinLen
		out.StdinLen = &v
	}
	if in.Stdin != nil {
		out.Stdin = append([]byte(nil), in.Stdin...)
	}
	if in.Mem != nil {
		out.Mem = make([]MemInput, len(in.Mem))
		for i, m := range in.Mem {
			out.Mem[i] = m.Clone()
		}
	}
	return out
}

// Combine returns a new Input in which every field present in overlay
// replaces the corresponding field of base; fields overlay leaves unset
// fall through to base's value.
//
// Several versions of the original implementation this was ported from
// wrote `res.argc = res.argc` here — a no-op that silently dropped argc
// updates coming from the overlay. That is treated as a bug, not an
// intentional design: argc is combined like every other field.
func Combine(base, overlay Input) Input {
	res := base.Clone()

	if overlay.Argc != nil {
		v := *overlay.Argc
		res.Argc = &v
	}
	if overlay.ArgvLens != nil {
		res.ArgvLens = append([]int(nil), overlay.ArgvLens...)
	}
	if overlay.Argv != nil {
		res.Argv = make([][]byte, len(overlay.Argv))
		for i, a := range overlay.Argv {
			res.Argv[i] = append([]byte(nil), a...)
		}
	}
	if overlay.StdinLen != nil {
		v := *overlay.StdinLen
		res.StdinLen = &v
	}
	if overlay.Stdin != nil {
		res.Stdin = append([]byte(nil), overlay.Stdin...)
	}
	if overlay.Mem != nil {
		res.Mem = make([]MemInput, len(overlay.Mem))
		for i, m := range overlay.Mem {
			res.Mem[i] = m.Clone()
		}
	}

	return res
}

// IntPtr is a small convenience constructor generators use constantly to
// populate *int fields.
func IntPtr(v int) *int { return &v }
