package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/scan-attendance/internal/application"
)

func TestMetrics_Counters(t *testing.T) {
	t.Parallel()

	m := New()
	m.AttendanceRecorded(application.ModeScan)
	m.AttendanceRecorded(application.ModeScan)
	m.AttendanceRecorded(application.ModeManual)
	m.AttendanceFailed("no_matching_session")
	m.ResolveObserved(3 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Recorded.WithLabelValues("scan")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Recorded.WithLabelValues("manual")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Failures.WithLabelValues("no_matching_session")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ResolveLatency))

	expected := `
# HELP attendance_failures_total Total rejected attendance attempts by error kind
# TYPE attendance_failures_total counter
attendance_failures_total{kind="no_matching_session"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "attendance_failures_total"))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.AttendanceRecorded(application.ModeScan)
		m.AttendanceFailed("x")
		m.ResolveObserved(time.Second)
	})
}

func TestMetrics_WriteTextfile(t *testing.T) {
	t.Parallel()

	m := New()
	m.AttendanceRecorded(application.ModeManual)

	path := filepath.Join(t.TempDir(), "attendance.prom")
	require.NoError(t, m.WriteTextfile(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `attendance_recorded_total{mode="manual"} 1`)
}
