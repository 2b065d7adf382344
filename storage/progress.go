package storage

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
)

// Progress describes how far a long scan has advanced.
type Progress struct {
	Phase     string
	Processed uint64
	Total     uint64
}

// Percent returns the completed share in [0, 100]. A scan with nothing to do
// is complete.
func (p Progress) Percent() float64 {
	if p.Total == 0 || p.Processed >= p.Total {
		return 100
	}
	return float64(p.Processed) * 100 / float64(p.Total)
}

// ProgressReporter observes long running scans. Errors returned by a
// reporter are logged by the scan and never abort it.
type ProgressReporter interface {
	ReportProgress(progress Progress) error
}

// ReporterFunc adapts a function to ProgressReporter.
type ReporterFunc func(progress Progress) error

func (f ReporterFunc) ReportProgress(progress Progress) error {
	return f(progress)
}

// NoopReporter discards every report.
var NoopReporter ProgressReporter = ReporterFunc(func(Progress) error { return nil })

type compositeReporter struct {
	reporters []ProgressReporter
}

// NewCompositeReporter fans every report out to reporters. A reporter that
// fails or panics is logged and skipped for that report only.
func NewCompositeReporter(reporters ...ProgressReporter) ProgressReporter {
	filtered := make([]ProgressReporter, 0, len(reporters))
	for _, r := range reporters {
		if r != nil {
			filtered = append(filtered, r)
		}
	}
	return &compositeReporter{reporters: filtered}
}

func (c *compositeReporter) ReportProgress(progress Progress) error {
	for i, r := range c.reporters {
		if err := safeReport(r, progress); err != nil {
			log.Warn("Progress reporter failed", "reporter", i, "phase", progress.Phase, "err", err)
		}
	}
	return nil
}

// safeReport calls r and converts a panic into an error.
func safeReport(r ProgressReporter, progress Progress) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Errorf("reporter panicked: %v", p)
		}
	}()
	return r.ReportProgress(progress)
}

type throttledReporter struct {
	inner    ProgressReporter
	interval float64

	lock sync.Mutex
	last map[string]float64
}

// NewThrottledReporter forwards a report to inner only once the scan has
// advanced by at least intervalPercent since the last forwarded report of the
// same phase. The first (0%) and last (100%) reports always pass.
func NewThrottledReporter(inner ProgressReporter, intervalPercent float64) ProgressReporter {
	return &throttledReporter{
		inner:    inner,
		interval: intervalPercent,
		last:     make(map[string]float64),
	}
}

func (t *throttledReporter) ReportProgress(progress Progress) error {
	percent := progress.Percent()

	t.lock.Lock()
	last, seen := t.last[progress.Phase]
	forward := progress.Processed == 0 || percent >= 100 || !seen || percent-last >= t.interval
	if forward {
		t.last[progress.Phase] = percent
	}
	t.lock.Unlock()

	if !forward {
		return nil
	}
	return t.inner.ReportProgress(progress)
}

type loggingReporter struct {
	phase string
}

// NewLoggingReporter logs every report at info level, tagged with phase.
func NewLoggingReporter(phase string) ProgressReporter {
	return &loggingReporter{phase: phase}
}

func (l *loggingReporter) ReportProgress(progress Progress) error {
	log.Info("Scan progress", "component", l.phase, "phase", progress.Phase,
		"processed", progress.Processed, "total", progress.Total,
		"percent", fmt.Sprintf("%.1f", progress.Percent()))
	return nil
}

// report delivers progress to r, logging failures instead of returning them.
func report(r ProgressReporter, progress Progress) {
	if r == nil {
		return
	}
	if err := safeReport(r, progress); err != nil {
		log.Warn("Progress reporter failed", "phase", progress.Phase, "err", err)
	}
}
