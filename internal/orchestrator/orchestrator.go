// Package orchestrator composes the six generators into the three phases
// spec.md describes: argv, stdin, and mem. Each phase threads its converged
// Input into the next; the observer's Done is invoked exactly once, after
// every enabled phase completes.
package orchestrator

import (
	"time"

	"github.com/tiecoon/b7/internal/brute"
	"github.com/tiecoon/b7/internal/generators"
	"github.com/tiecoon/b7/internal/measure"
	"github.com/tiecoon/b7/internal/model"
	"github.com/tiecoon/b7/internal/observer"
)

// Config describes one full solving run.
type Config struct {
	Path    string
	Argv    []string
	PIE     bool
	Is64    bool
	Backend measure.InstCounter
	Vars    map[string]string

	Initial model.Input

	EnableArgv  bool
	EnableStdin bool

	// StdinPrefix seeds StdinCharGenerator with already-known leading
	// bytes, e.g. from the CLI's --start flag.
	StdinPrefix []byte

	Timeout  time.Duration
	Observer observer.Observer
}

const (
	argcMin, argcMax           = 0, 5
	argvLenMin, argvLenMax     = 0, 20
	argvByteMin, argvByteMax   = 0x20, 0x7e
	stdinLenMin, stdinLenMax   = 0, 51
	stdinByteMin, stdinByteMax = 0x20, 0x7e
)

// Run executes every enabled phase in order and returns the fully combined
// Input. The caller is responsible for persisting the result to the cache;
// Run only drives the search.
func Run(cfg Config) (model.Input, error) {
	base := cfg.Initial

	if cfg.EnableArgv && base.Argc == nil {
		next, err := runArgvPhase(base, cfg)
		if err != nil {
			return model.Input{}, err
		}
		base = next
	}

	if cfg.EnableStdin && base.StdinLen == nil {
		next, err := runStdinPhase(base, cfg)
		if err != nil {
			return model.Input{}, err
		}
		base = next
	}

	if len(base.Mem) > 0 {
		next, err := runMemPhase(base, cfg)
		if err != nil {
			return model.Input{}, err
		}
		base = next
	}

	if cfg.Observer != nil {
		cfg.Observer.Done()
	}
	return base, nil
}

func runArgvPhase(base model.Input, cfg Config) (model.Input, error) {
	argcGen := generators.NewArgcGenerator(argcMin, argcMax)
	base, err := runGenerator(argcGen, base, cfg, 1)
	if err != nil {
		return model.Input{}, err
	}
	if argcGen.Argc() == 0 {
		return base, nil
	}

	lenGen := generators.NewArgvLenGenerator(argcGen.Argc(), argvLenMin, argvLenMax)
	base, err = runGenerator(lenGen, base, cfg, 5)
	if err != nil {
		return model.Input{}, err
	}

	argvGen := generators.NewArgvGenerator(lenGen.Lens(), argvByteMin, argvByteMax)
	return runGenerator(argvGen, base, cfg, 5)
}

func runStdinPhase(base model.Input, cfg Config) (model.Input, error) {
	lenGen := generators.NewStdinLenGenerator(stdinLenMin, stdinLenMax)
	base, err := runGenerator(lenGen, base, cfg, 1)
	if err != nil {
		return model.Input{}, err
	}
	if lenGen.StdinLen() == 0 {
		return base, nil
	}

	charGen := generators.NewStdinCharGenerator(lenGen.StdinLen(), cfg.StdinPrefix, stdinByteMin, stdinByteMax)
	return runGenerator(charGen, base, cfg, 1)
}

// runMemPhase solves each configured region in turn. A MemGenerator's round
// only carries the one region under test, and Combine replaces the whole
// Mem slice with whatever the overlay carries — so after each region
// converges, its solved bytes are grafted back into the full region list
// before the next region's phase runs, instead of letting the other
// regions' already-solved bytes be discarded.
func runMemPhase(base model.Input, cfg Config) (model.Input, error) {
	regions := append([]model.MemInput(nil), base.Mem...)
	for i, region := range regions {
		memGen := generators.NewMemGenerator(region)
		next, err := runGenerator(memGen, base, cfg, 1)
		if err != nil {
			return model.Input{}, err
		}
		regions[i] = next.Mem[0]
		next.Mem = append([]model.MemInput(nil), regions...)
		base = next
	}
	return base, nil
}

func runGenerator(gen generators.Generator, base model.Input, cfg Config, repeat int) (model.Input, error) {
	if cfg.Observer != nil {
		cfg.Observer.SetTimeout(cfg.Timeout)
	}
	return brute.Run(gen, brute.Config{
		Path:     cfg.Path,
		Argv:     cfg.Argv,
		PIE:      cfg.PIE,
		Is64:     cfg.Is64,
		Backend:  cfg.Backend,
		Base:     base,
		Repeat:   repeat,
		Timeout:  cfg.Timeout,
		Observer: cfg.Observer,
		Vars:     cfg.Vars,
	})
}
