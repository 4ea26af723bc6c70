// Package envui implements the plain-log observer: every round is printed
// as a logrus entry instead of driving a terminal UI. Useful in CI and
// non-interactive environments where the tui collaborator can't attach to
// a terminal.
package envui

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tiecoon/b7/internal/brute"
	"github.com/tiecoon/b7/internal/stats"
)

// Observer logs each round through logrus and never blocks in Wait —
// there's no human watching a plain log stream to advance past.
type Observer struct {
	log *logrus.Entry
}

// New builds an envui Observer logging through logger, or logrus's
// standard logger if logger is nil.
func New(logger *logrus.Logger) *Observer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Observer{log: logger.WithField("component", "b7")}
}

func (o *Observer) SetTimeout(d time.Duration) {
	o.log.WithField("timeout", d).Info("phase starting")
}

func (o *Observer) Update(results []brute.Result, min int64) {
	if len(results) == 0 {
		o.log.WithField("min", min).Warn("round complete with no results")
		return
	}
	measurements := make([]int64, len(results))
	for i, r := range results {
		measurements[i] = r.Measurement
	}
	leader := results[stats.OutlierIndex(measurements)]
	o.log.WithFields(logrus.Fields{
		"candidates": len(results),
		"min":        min,
		"leader_id":  leader.ID,
		"leader_n":   leader.Measurement,
	}).Info("round complete")
}

func (o *Observer) Wait() {}

func (o *Observer) Done() {
	o.log.Info("solve complete")
}
