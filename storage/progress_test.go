package storage

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	reports []Progress
}

func (r *recordingReporter) ReportProgress(p Progress) error {
	r.reports = append(r.reports, p)
	return nil
}

func TestProgress_Percent(t *testing.T) {
	assert.Equal(t, float64(0), Progress{Processed: 0, Total: 4}.Percent())
	assert.Equal(t, float64(25), Progress{Processed: 1, Total: 4}.Percent())
	assert.Equal(t, float64(100), Progress{Processed: 4, Total: 4}.Percent())
	assert.Equal(t, float64(100), Progress{}.Percent())
}

func TestCompositeReporter_IsolatesFailures(t *testing.T) {
	recorder := &recordingReporter{}
	failing := ReporterFunc(func(Progress) error { return errors.New("observer down") })
	panicking := ReporterFunc(func(Progress) error { panic("observer bug") })

	composite := NewCompositeReporter(failing, nil, panicking, recorder, NoopReporter)
	for i := uint64(0); i <= 3; i++ {
		require.NoError(t, composite.ReportProgress(Progress{Phase: "scan", Processed: i, Total: 3}))
	}
	assert.Len(t, recorder.reports, 4)
}

func TestThrottledReporter(t *testing.T) {
	recorder := &recordingReporter{}
	throttled := NewThrottledReporter(recorder, 25)
	for i := uint64(0); i <= 100; i++ {
		require.NoError(t, throttled.ReportProgress(Progress{Phase: "scan", Processed: i, Total: 100}))
	}

	var percents []float64
	for _, p := range recorder.reports {
		percents = append(percents, p.Percent())
	}
	assert.Equal(t, []float64{0, 25, 50, 75, 100}, percents)
}

func TestThrottledReporter_AlwaysReportsBounds(t *testing.T) {
	recorder := &recordingReporter{}
	throttled := NewThrottledReporter(recorder, 50)
	for _, processed := range []uint64{0, 30, 60, 99, 100} {
		require.NoError(t, throttled.ReportProgress(Progress{Phase: "a", Processed: processed, Total: 100}))
	}
	require.Len(t, recorder.reports, 3)
	assert.Equal(t, []uint64{0, 60, 100}, []uint64{
		recorder.reports[0].Processed,
		recorder.reports[1].Processed,
		recorder.reports[2].Processed,
	})

	// phases are throttled independently
	require.NoError(t, throttled.ReportProgress(Progress{Phase: "b", Processed: 1, Total: 100}))
	assert.Len(t, recorder.reports, 4)
}

func TestLoggingReporter(t *testing.T) {
	reporter := NewLoggingReporter("test")
	assert.NoError(t, reporter.ReportProgress(Progress{Phase: "scan", Processed: 1, Total: 2}))
	assert.NoError(t, NoopReporter.ReportProgress(Progress{}))
}
