// Package metrics records compile and cache activity.
package metrics

import "time"

// Backend labels
const (
	BackendBatch       = "batch"
	BackendIncremental = "incremental"
)

// Outcome labels
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Recorder receives compile and cache events
type Recorder interface {
	ObserveCompile(backend, outcome string, d time.Duration)
	IncCacheLookup(hit bool)
	IncCacheStore()
	SetBusyWorkers(n int)
}

// NoopRecorder discards everything
type NoopRecorder struct{}

func (NoopRecorder) ObserveCompile(string, string, time.Duration) {}
func (NoopRecorder) IncCacheLookup(bool)                          {}
func (NoopRecorder) IncCacheStore()                               {}
func (NoopRecorder) SetBusyWorkers(int)                           {}
