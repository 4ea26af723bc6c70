package measure

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/tiecoon/b7/internal/b7err"
)

// DynamoRIOBackend is the secondary, optional InstCounter: it delegates
// instruction counting to an external dynamic-instrumentation driver
// instead of a hardware counter, for hosts where perf_event_open is
// unavailable or locked down. It expects the install root given via
// data.Vars["dynpath"] to contain bin32/bin64 driver directories and a
// prebuilt libcounter.so plugin, mirroring dynamorio-sys's layout.
type DynamoRIOBackend struct{}

var _ InstCounter = DynamoRIOBackend{}

var instrumentationResultRE = regexp.MustCompile(`Instrumentation results:\s*(\d+)\s*instructions executed`)

func (DynamoRIOBackend) GetInstCount(data InstCountData) (int64, error) {
	dynpath, ok := data.Vars["dynpath"]
	if !ok || dynpath == "" {
		return 0, b7err.Argf("measure: dynamorio backend requires --dynpath")
	}

	driver, plugin := driverPaths(dynpath, data.Is64)

	ctx, cancel := context.WithTimeout(context.Background(), data.Timeout)
	defer cancel()

	args := append([]string{"-c", plugin, "--", data.Path}, buildArgv(data)...)
	cmd := exec.CommandContext(ctx, driver, args...)
	if len(data.Input.Stdin) > 0 {
		cmd.Stdin = bytes.NewReader(data.Input.Stdin)
	}

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return 0, b7err.Timeoutf("measure: instrumentation driver %s exceeded %s", driver, data.Timeout)
		}
		return 0, b7err.IOf(err, "measure: running instrumentation driver %s", driver)
	}

	m := instrumentationResultRE.FindSubmatch(out)
	if m == nil {
		return 0, b7err.IOf(nil, "measure: could not find instruction count in driver output")
	}

	n, err := strconv.ParseInt(string(m[1]), 10, 64)
	if err != nil {
		return 0, b7err.IOf(err, "measure: parsing instrumentation result %q", string(m[1]))
	}
	return n, nil
}

// driverPaths picks the 32-bit or 64-bit driver binary and plugin shared
// object under dynpath, based on the target's ELF class.
func driverPaths(dynpath string, is64 bool) (driver, plugin string) {
	bindir := "bin32"
	if is64 {
		bindir = "bin64"
	}
	driver = filepath.Join(dynpath, bindir, "drrun")
	plugin = filepath.Join(dynpath, bindir, "libcounter.so")
	return driver, plugin
}
