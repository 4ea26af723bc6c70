// Package observer defines the Observer contract the brute-force driver
// reports round progress through, plus the on-disk result cache that cmd/b7
// reads back at startup and appends to after a successful run.
package observer

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tiecoon/b7/internal/b7err"
	"github.com/tiecoon/b7/internal/brute"
)

// Observer is satisfied by every UI collaborator (internal/ui/tui,
// internal/ui/envui). SetTimeout is called once per phase, Update once per
// round, Wait once per round immediately after Update, and Done once at the
// very end of the orchestrator's run.
type Observer interface {
	SetTimeout(d time.Duration)
	Update(results []brute.Result, min int64)
	Wait()
	Done()
}

// CachePath returns the cache file path for a target binary: the binary's
// own path with ".cache" appended.
func CachePath(binaryPath string) string {
	return binaryPath + ".cache"
}

// AppendCache appends one "kind: display\n" line to the cache file next to
// binaryPath, creating it if necessary. The format has no escaping —
// binaries whose recovered values contain newlines or colons will produce a
// cache file later reads can't parse unambiguously. That limitation is
// preserved intentionally, for compatibility with existing cache readers.
func AppendCache(binaryPath, kind, display string) error {
	f, err := os.OpenFile(CachePath(binaryPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return b7err.IOf(err, "observer: opening cache file for %s", binaryPath)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s: %s\n", kind, display); err != nil {
		return b7err.IOf(err, "observer: writing cache entry for %s", binaryPath)
	}
	return nil
}

// CacheEntry is one previously recovered value, as read back by ReadCache.
type CacheEntry struct {
	Kind    string
	Display string
}

// ReadCache reads back a previous run's cache file, if any. Missing files
// are not an error — a fresh target simply has no prior entries. This is a
// pure display convenience: callers never feed ReadCache's output back into
// solving.
func ReadCache(binaryPath string) ([]CacheEntry, error) {
	f, err := os.Open(CachePath(binaryPath))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, b7err.IOf(err, "observer: reading cache file for %s", binaryPath)
	}
	defer f.Close()

	var entries []CacheEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		kind, display, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		entries = append(entries, CacheEntry{Kind: kind, Display: display})
	}
	if err := scanner.Err(); err != nil {
		return nil, b7err.IOf(err, "observer: scanning cache file for %s", binaryPath)
	}
	return entries, nil
}
