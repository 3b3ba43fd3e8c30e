package application

import "time"

// MetricsRecorder receives attendance outcomes. Implementations must be safe for concurrent use.
type MetricsRecorder interface {
	AttendanceRecorded(mode RecordMode)
	AttendanceFailed(kind string)
	ResolveObserved(duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) AttendanceRecorded(RecordMode) {}
func (noopMetrics) AttendanceFailed(string) {}
func (noopMetrics) ResolveObserved(time.Duration) {}

func defaultMetrics(metrics MetricsRecorder) MetricsRecorder {
	if metrics == nil {
		return noopMetrics{}
	}
	return metrics
}
