// Package metrics defines the instrumentation hooks used across the service.
// PrometheusRecorder backs /metrics; InMemoryRecorder and the noop recorder
// serve tests and callers that do not care.
package metrics

import "time"

// Recorder captures metric events for the application.
type Recorder interface {
	// Redirect metrics
	IncRedirectCacheHit()
	IncRedirectCacheMiss()
	ObserveRedirectDuration(duration time.Duration)

	// Link management metrics
	IncLinkCreated()
	IncLinkUpdated()
	IncLinkDeleted()

	// Click recorder metrics
	IncClickEnqueued()
	IncClickDropped()
	IncClickProcessed(status string) // status: "success" or "failed"
	SetClickQueueDepth(depth int64)

	// Rate limiting
	IncRateLimited(bucket string)
}
