// Command b7 is the CLI entrypoint for the side-channel brute-force
// solver: it wires the CLI flags onto an orchestrator.Config and runs the
// chosen generators against a target binary.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/sirupsen/logrus"

	"github.com/tiecoon/b7/internal/b7err"
	"github.com/tiecoon/b7/internal/elfinfo"
	"github.com/tiecoon/b7/internal/measure"
	"github.com/tiecoon/b7/internal/model"
	"github.com/tiecoon/b7/internal/observer"
	"github.com/tiecoon/b7/internal/orchestrator"
	"github.com/tiecoon/b7/internal/ui/envui"
	"github.com/tiecoon/b7/internal/ui/tui"
)

func main() {
	os.Exit(run())
}

func run() int {
	cmd := newCommand()
	if err := cmd.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return -1
	}
	if len(cmd.FlagSet.Args()) == 0 {
		fmt.Fprintln(os.Stderr, "b7: missing required argument: binary")
		return -1
	}
	if err := cmd.Run(context.Background()); err != nil {
		logrus.WithError(err).Error("b7: solve failed")
		return 1
	}
	return 0
}

type memSpecs []model.MemInput

func (m *memSpecs) String() string {
	parts := make([]string, len(*m))
	for i, r := range *m {
		parts[i] = formatMemSpec(r)
	}
	return strings.Join(parts, " ")
}

// formatMemSpec renders one MemInput the way Set parses it, so that
// Set(formatMemSpec(r)) round-trips: every field Set recognizes is emitted,
// not just addr/size.
func formatMemSpec(r model.MemInput) string {
	s := fmt.Sprintf("addr=%x,size=%x,init=%s", r.Addr, r.Size, hex.EncodeToString(r.Bytes))
	if r.Breakpoint != nil {
		s += fmt.Sprintf(",breakpoint=%x", *r.Breakpoint)
	}
	return s
}

// Set parses one --mem-brute value: addr=HEX,size=HEX,init=HEX[,breakpoint=HEX].
func (m *memSpecs) Set(s string) error {
	var r model.MemInput
	var haveAddr, haveSize bool
	for _, field := range strings.Split(s, ",") {
		key, val, ok := strings.Cut(field, "=")
		if !ok {
			return b7err.Argf("--mem-brute: malformed field %q, want key=value", field)
		}
		switch key {
		case "addr":
			v, err := strconv.ParseUint(val, 16, 64)
			if err != nil {
				return b7err.Argf("--mem-brute: bad addr %q: %v", val, err)
			}
			r.Addr = v
			haveAddr = true
		case "size":
			v, err := strconv.ParseUint(val, 16, 64)
			if err != nil {
				return b7err.Argf("--mem-brute: bad size %q: %v", val, err)
			}
			r.Size = int(v)
			haveSize = true
		case "init":
			b, err := hex.DecodeString(val)
			if err != nil {
				return b7err.Argf("--mem-brute: bad init %q: %v", val, err)
			}
			r.Bytes = b
		case "breakpoint":
			v, err := strconv.ParseUint(val, 16, 64)
			if err != nil {
				return b7err.Argf("--mem-brute: bad breakpoint %q: %v", val, err)
			}
			r.Breakpoint = &v
		default:
			return b7err.Argf("--mem-brute: unknown field %q", key)
		}
	}
	if !haveAddr || !haveSize {
		return b7err.Argf("--mem-brute: addr and size are required")
	}
	*m = append(*m, r)
	return nil
}

type command struct {
	ffcli.Command
	flags struct {
		solver     *string
		ui         *string
		start      *string
		noArg      *bool
		noStdin    *bool
		stdinLen   *int
		dynpath    *string
		timeout    *float64
		dropPtrace *bool
	}
	mem memSpecs
}

func newCommand() *ffcli.Command {
	c := new(command)

	c.Name = "b7"
	c.ShortUsage = "b7 [flags] <binary> [args...]"
	c.ShortHelp = "recover secret argv/stdin/memory inputs via instruction-count side channel"

	fs := flag.NewFlagSet("b7", flag.ContinueOnError)
	c.flags.solver = fs.String("solver", "perf", "measurement backend: perf or dynamorio")
	c.flags.ui = fs.String("ui", "tui", "observer UI: tui or env")
	c.flags.start = fs.String("start", "", "known prefix of stdin to seed the search with")
	c.flags.noArg = fs.Bool("no-arg", false, "disable the argv-recovery phase")
	c.flags.noStdin = fs.Bool("no-stdin", false, "disable the stdin-recovery phase")
	c.flags.stdinLen = fs.Int("stdin-len", -1, "skip stdin-length search and use this length")
	c.flags.dynpath = fs.String("dynpath", "", "dynamorio install root (for --solver dynamorio)")
	c.flags.timeout = fs.Float64("timeout", 5, "per-candidate timeout, in seconds")
	c.flags.dropPtrace = fs.Bool("drop-ptrace", false, "rejected together with --mem-brute; otherwise has no effect: measured children are always traced to completion")
	fs.Var(&c.mem, "mem-brute", "addr=HEX,size=HEX,init=HEX[,breakpoint=HEX] (repeatable)")

	c.FlagSet = fs
	c.Options = []ff.Option{ff.WithEnvVarPrefix("B7")}
	c.Exec = c.exec
	return &c.Command
}

func (c *command) exec(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return b7err.Argf("missing required argument: binary")
	}
	path, extraArgv := args[0], args[1:]

	if _, err := os.Stat(path); err != nil {
		return b7err.Argf("b7: %s: %v", path, err)
	}

	bin, err := elfinfo.Open(path)
	if err != nil {
		return err
	}
	pie, err := bin.IsPIE()
	if err != nil {
		return err
	}

	var backend measure.InstCounter
	switch *c.flags.solver {
	case "perf":
		backend = measure.PerfBackend{}
	case "dynamorio":
		backend = measure.DynamoRIOBackend{}
	default:
		return b7err.Argf("--solver: unknown backend %q", *c.flags.solver)
	}

	if *c.flags.dropPtrace && len(c.mem) > 0 {
		return b7err.Argf("--drop-ptrace is incompatible with --mem-brute")
	}

	var obs observer.Observer
	switch *c.flags.ui {
	case "tui":
		obs = tui.New()
	case "env":
		obs = envui.New(nil)
	default:
		return b7err.Argf("--ui: unknown UI %q", *c.flags.ui)
	}

	if prev, err := observer.ReadCache(path); err == nil {
		for _, e := range prev {
			logrus.WithFields(logrus.Fields{"kind": e.Kind, "value": e.Display}).Info("b7: previously recovered value")
		}
	}

	initial := model.Input{Mem: []model.MemInput(c.mem)}
	if *c.flags.stdinLen >= 0 {
		initial.StdinLen = model.IntPtr(*c.flags.stdinLen)
	}

	cfg := orchestrator.Config{
		Path:        path,
		Argv:        extraArgv,
		PIE:         pie,
		Is64:        bin.Is64(),
		Backend:     backend,
		Vars:        map[string]string{"dynpath": *c.flags.dynpath},
		Initial:     initial,
		EnableArgv:  !*c.flags.noArg,
		EnableStdin: !*c.flags.noStdin,
		StdinPrefix: []byte(*c.flags.start),
		Timeout:     time.Duration(*c.flags.timeout * float64(time.Second)),
		Observer:    obs,
	}

	result, err := orchestrator.Run(cfg)
	if err != nil {
		return err
	}

	if result.Argv != nil {
		display := strings.Join(quoteAll(result.Argv), " ")
		if err := observer.AppendCache(path, "argv", display); err != nil {
			logrus.WithError(err).Warn("b7: failed to write argv to cache")
		}
	}
	if result.Stdin != nil {
		if err := observer.AppendCache(path, "stdin", string(result.Stdin)); err != nil {
			logrus.WithError(err).Warn("b7: failed to write stdin to cache")
		}
	}

	return nil
}

func quoteAll(argv [][]byte) []string {
	out := make([]string, len(argv))
	for i, a := range argv {
		out[i] = strconv.Quote(string(a))
	}
	return out
}
