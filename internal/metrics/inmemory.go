package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	RedirectCacheHits       uint64
	RedirectCacheMisses     uint64
	RedirectDurationCount   uint64
	RedirectDurationTotalNs int64
	LinksCreated            uint64
	LinksUpdated            uint64
	LinksDeleted            uint64
	ClicksEnqueued          uint64
	ClicksDropped           uint64
	ClicksRecorded          uint64
	ClicksFailed            uint64
	ClickQueueDepth         int64
	RateLimited             map[string]uint64
}

// InMemoryRecorder stores metrics in memory for assertions in tests.
type InMemoryRecorder struct {
	redirectCacheHits       uint64
	redirectCacheMisses     uint64
	redirectDurationCount   uint64
	redirectDurationTotalNs int64
	linksCreated            uint64
	linksUpdated            uint64
	linksDeleted            uint64
	clicksEnqueued          uint64
	clicksDropped           uint64
	clicksRecorded          uint64
	clicksFailed            uint64
	clickQueueDepth         int64

	mu          sync.Mutex
	rateLimited map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{rateLimited: make(map[string]uint64)}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	limited := make(map[string]uint64, len(m.rateLimited))
	for k, v := range m.rateLimited {
		limited[k] = v
	}
	m.mu.Unlock()

	return Snapshot{
		RedirectCacheHits:       atomic.LoadUint64(&m.redirectCacheHits),
		RedirectCacheMisses:     atomic.LoadUint64(&m.redirectCacheMisses),
		RedirectDurationCount:   atomic.LoadUint64(&m.redirectDurationCount),
		RedirectDurationTotalNs: atomic.LoadInt64(&m.redirectDurationTotalNs),
		LinksCreated:            atomic.LoadUint64(&m.linksCreated),
		LinksUpdated:            atomic.LoadUint64(&m.linksUpdated),
		LinksDeleted:            atomic.LoadUint64(&m.linksDeleted),
		ClicksEnqueued:          atomic.LoadUint64(&m.clicksEnqueued),
		ClicksDropped:           atomic.LoadUint64(&m.clicksDropped),
		ClicksRecorded:          atomic.LoadUint64(&m.clicksRecorded),
		ClicksFailed:            atomic.LoadUint64(&m.clicksFailed),
		ClickQueueDepth:         atomic.LoadInt64(&m.clickQueueDepth),
		RateLimited:             limited,
	}
}

func (m *InMemoryRecorder) IncRedirectCacheHit()  { atomic.AddUint64(&m.redirectCacheHits, 1) }
func (m *InMemoryRecorder) IncRedirectCacheMiss() { atomic.AddUint64(&m.redirectCacheMisses, 1) }

// ObserveRedirectDuration records redirect duration.
func (m *InMemoryRecorder) ObserveRedirectDuration(duration time.Duration) {
	atomic.AddUint64(&m.redirectDurationCount, 1)
	atomic.AddInt64(&m.redirectDurationTotalNs, duration.Nanoseconds())
}

func (m *InMemoryRecorder) IncLinkCreated() { atomic.AddUint64(&m.linksCreated, 1) }
func (m *InMemoryRecorder) IncLinkUpdated() { atomic.AddUint64(&m.linksUpdated, 1) }
func (m *InMemoryRecorder) IncLinkDeleted() { atomic.AddUint64(&m.linksDeleted, 1) }

func (m *InMemoryRecorder) IncClickEnqueued() { atomic.AddUint64(&m.clicksEnqueued, 1) }
func (m *InMemoryRecorder) IncClickDropped()  { atomic.AddUint64(&m.clicksDropped, 1) }

// IncClickProcessed counts a finished click write by outcome.
func (m *InMemoryRecorder) IncClickProcessed(status string) {
	if status == "success" {
		atomic.AddUint64(&m.clicksRecorded, 1)
		return
	}
	atomic.AddUint64(&m.clicksFailed, 1)
}

// SetClickQueueDepth stores the latest observed queue depth.
func (m *InMemoryRecorder) SetClickQueueDepth(depth int64) {
	atomic.StoreInt64(&m.clickQueueDepth, depth)
}

// IncRateLimited counts a denied request per bucket.
func (m *InMemoryRecorder) IncRateLimited(bucket string) {
	m.mu.Lock()
	m.rateLimited[bucket]++
	m.mu.Unlock()
}
