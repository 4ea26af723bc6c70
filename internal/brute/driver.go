// Package brute implements the round-based brute-force loop: drain a
// generator, measure every candidate across a worker pool, pick the
// statistical outlier, and feed it back until the generator converges.
package brute

import (
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tiecoon/b7/internal/b7err"
	"github.com/tiecoon/b7/internal/generators"
	"github.com/tiecoon/b7/internal/measure"
	"github.com/tiecoon/b7/internal/model"
	"github.com/tiecoon/b7/internal/stats"
)

// Result is one candidate's outcome within a round, in the shape the
// observer consumes: sorted by Measurement before delivery.
type Result struct {
	ID          uint32
	Measurement int64
}

// Observer receives round-by-round progress. Implementations may block in
// Wait to let a human inspect a round before the driver continues.
type Observer interface {
	Update(results []Result, min int64)
	Wait()
	Done()
}

// Config describes one generator's run to completion.
type Config struct {
	Path     string
	Argv     []string
	PIE      bool
	Backend  measure.InstCounter
	Base     model.Input
	Repeat   int
	Timeout  time.Duration
	Observer Observer
	Vars     map[string]string
	Is64     bool
}

type candidateJob struct {
	id    uint32
	input model.Input
}

type candidateOutcome struct {
	id  uint32
	n   int64
	err error
}

// Run drives gen to convergence, returning the combined Input the converged
// generator produced on top of cfg.Base.
func Run(gen generators.Generator, cfg Config) (model.Input, error) {
	base := cfg.Base
	for {
		round := gen.Round()
		if round == nil {
			return base, nil
		}

		jobs := make([]candidateJob, len(round))
		for i, c := range round {
			jobs[i] = candidateJob{id: c.ID, input: model.Combine(base, c.Input)}
		}

		outcomes := runRound(jobs, cfg)

		successes, failures := partition(outcomes)
		for _, f := range failures {
			entry := logrus.WithFields(logrus.Fields{
				"candidate": f.id,
				"err":       f.err,
			})
			if b7err.KindOf(f.err) == b7err.Timeout {
				entry.Info("brute: candidate timed out")
				continue
			}
			entry.Warn("brute: candidate measurement failed")
		}
		if len(successes) == 0 {
			return model.Input{}, b7err.NoResultsf("brute: all %d candidates in round failed", len(round))
		}

		winner := pickWinner(successes, cfg.Observer)

		more := gen.Update(winner.id)
		base = inputFor(jobs, winner.id)
		if !more {
			return base, nil
		}
	}
}

// runRound fans jobs out to a worker pool sized to the host CPU count. Each
// worker measures its candidate Repeat times, keeping only the last count.
func runRound(jobs []candidateJob, cfg Config) []candidateOutcome {
	workers := runtime.NumCPU()
	if workers > len(jobs) {
		workers = len(jobs)
	}
	if workers < 1 {
		workers = 1
	}

	jobCh := make(chan candidateJob)
	outCh := make(chan candidateOutcome, len(jobs))

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			// Every ptrace call for a tracee must come from the OS thread
			// that attached to it (internal/proc's package doc). Pinning
			// the goroutine to one OS thread for its whole lifetime keeps
			// the scheduler from migrating it mid-Spawn/Finish, which
			// would otherwise surface as an intermittent ESRCH the moment
			// two candidates are in flight at once.
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()
			for job := range jobCh {
				outCh <- measureCandidate(job, cfg)
			}
		}()
	}

	go func() {
		for _, j := range jobs {
			jobCh <- j
		}
		close(jobCh)
	}()

	go func() {
		wg.Wait()
		close(outCh)
	}()

	outcomes := make([]candidateOutcome, 0, len(jobs))
	for o := range outCh {
		outcomes = append(outcomes, o)
	}
	return outcomes
}

// measureCandidate runs the backend Repeat times for one candidate, keeping
// only the final measurement per spec: last write wins, not best-of.
func measureCandidate(job candidateJob, cfg Config) candidateOutcome {
	data := measure.InstCountData{
		Path:    cfg.Path,
		Argv:    cfg.Argv,
		Input:   job.input,
		Timeout: cfg.Timeout,
		PIE:     cfg.PIE,
		Is64:    cfg.Is64,
		Vars:    cfg.Vars,
	}

	repeat := cfg.Repeat
	if repeat < 1 {
		repeat = 1
	}

	var n int64
	var err error
	for i := 0; i < repeat; i++ {
		n, err = cfg.Backend.GetInstCount(data)
		if err != nil {
			return candidateOutcome{id: job.id, err: err}
		}
	}
	return candidateOutcome{id: job.id, n: n}
}

func partition(outcomes []candidateOutcome) (successes, failures []candidateOutcome) {
	for _, o := range outcomes {
		if o.err != nil {
			failures = append(failures, o)
		} else {
			successes = append(successes, o)
		}
	}
	return successes, failures
}

// pickWinner sorts successes by measurement, reports them to the observer,
// and returns the statistical-outlier candidate.
func pickWinner(successes []candidateOutcome, obs Observer) candidateOutcome {
	sort.Slice(successes, func(i, j int) bool { return successes[i].n < successes[j].n })

	measurements := make([]int64, len(successes))
	results := make([]Result, len(successes))
	for i, s := range successes {
		measurements[i] = s.n
		results[i] = Result{ID: s.id, Measurement: s.n}
	}

	if obs != nil {
		obs.Update(results, measurements[0])
		obs.Wait()
	}

	idx := stats.OutlierIndex(measurements)
	return successes[idx]
}

func inputFor(jobs []candidateJob, id uint32) model.Input {
	for _, j := range jobs {
		if j.id == id {
			return j.input
		}
	}
	return model.Input{}
}
