package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/snaplink/snaplink/internal/metrics"
	"github.com/snaplink/snaplink/internal/model"
)

const (
	// DefaultQueueSize is the capacity of the pending click queue.
	DefaultQueueSize = 1024

	// DefaultWorkers is the number of goroutines draining the queue.
	DefaultWorkers = 1
)

// ClickStore persists click events.
type ClickStore interface {
	InsertClick(ctx context.Context, event *model.ClickEvent) error
}

type clickJob struct {
	linkID string
	meta   Metadata
}

// Recorder accepts clicks from the redirect path and persists them in the
// background. Record never blocks: when the queue is full the click is
// dropped and counted. Write failures are logged and swallowed.
type Recorder struct {
	store   ClickStore
	logger  *slog.Logger
	metrics metrics.Recorder
	workers int

	queue chan clickJob
	wg    sync.WaitGroup

	mu      sync.RWMutex
	started bool
	closed  bool
}

// RecorderConfig tunes a Recorder. Zero values pick the defaults.
type RecorderConfig struct {
	QueueSize int
	Workers   int
}

// NewRecorder creates a Recorder. Call Start before recording.
func NewRecorder(store ClickStore, logger *slog.Logger, recorder metrics.Recorder, cfg RecorderConfig) *Recorder {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	return &Recorder{
		store:   store,
		logger:  logger.With("component", "analytics.recorder"),
		metrics: recorder,
		workers: cfg.Workers,
		queue:   make(chan clickJob, cfg.QueueSize),
	}
}

// Start launches the workers.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return errors.New("recorder already started")
	}
	if r.closed {
		return errors.New("recorder is shut down")
	}
	r.started = true

	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.run(i)
	}

	r.logger.Info("click recorder started", "workers", r.workers, "queue_size", cap(r.queue))
	return nil
}

// Record enqueues one click for linkID. It reports whether the click was
// accepted; a false return means it was dropped.
func (r *Recorder) Record(linkID string, meta Metadata) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.metrics.IncClickDropped()
		r.logger.Warn("click_dropped", "link_id", linkID, "reason", "shutdown")
		return false
	}

	select {
	case r.queue <- clickJob{linkID: linkID, meta: meta}:
		r.metrics.IncClickEnqueued()
		r.metrics.SetClickQueueDepth(int64(len(r.queue)))
		return true
	default:
		r.metrics.IncClickDropped()
		r.logger.Warn("click_dropped", "link_id", linkID, "reason", "queue_full")
		return false
	}
}

// Shutdown stops accepting clicks and waits until the queue is drained or ctx ends.
func (r *Recorder) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("click recorder drained")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("click recorder drain: %w (pending %d)", ctx.Err(), len(r.queue))
	}
}

func (r *Recorder) run(worker int) {
	defer r.wg.Done()
	for job := range r.queue {
		r.write(worker, job)
		r.metrics.SetClickQueueDepth(int64(len(r.queue)))
	}
}

// write persists one click. The write has no deadline of its own and is never
// cancelled, so it runs on a background context.
func (r *Recorder) write(worker int, job clickJob) {
	defer func() {
		if rec := recover(); rec != nil {
			r.metrics.IncClickProcessed("failed")
			r.logger.Error("click_record_panic", "worker", worker, "link_id", job.linkID, "panic", rec)
		}
	}()

	event := NewClickEvent(job.linkID, job.meta)
	if err := r.store.InsertClick(context.Background(), event); err != nil {
		r.metrics.IncClickProcessed("failed")
		r.logger.Error("click_record_failed", "worker", worker, "link_id", job.linkID, "error", err)
		return
	}

	r.metrics.IncClickProcessed("success")
	r.logger.Debug("click_recorded", "link_id", job.linkID, "device", event.DeviceType)
}
