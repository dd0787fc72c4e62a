package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncRedirectCacheHit()                           {}
func (n *NoopRecorder) IncRedirectCacheMiss()                          {}
func (n *NoopRecorder) ObserveRedirectDuration(duration time.Duration) {}
func (n *NoopRecorder) IncLinkCreated()                                {}
func (n *NoopRecorder) IncLinkUpdated()                                {}
func (n *NoopRecorder) IncLinkDeleted()                                {}
func (n *NoopRecorder) IncClickEnqueued()                              {}
func (n *NoopRecorder) IncClickDropped()                               {}
func (n *NoopRecorder) IncClickProcessed(status string)                {}
func (n *NoopRecorder) SetClickQueueDepth(depth int64)                 {}
func (n *NoopRecorder) IncRateLimited(bucket string)                   {}
