package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"guardian-hq/guardian/pkg/guard"
)

// RecorderConfig contains configuration for the async audit recorder.
type RecorderConfig struct {
	// Enabled enables durable audit persistence.
	Enabled bool

	// AsyncBuffer is the size of the async write channel buffer.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout is the timeout for writing an entry to storage.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultRecorderConfig returns the default recorder configuration.
func DefaultRecorderConfig() *RecorderConfig {
	return &RecorderConfig{
		Enabled:      true,
		AsyncBuffer:  1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Recorder persists guard audit entries asynchronously. It implements
// guard.Sink: Record enqueues and returns immediately, a background worker
// drains the channel into storage, and a full channel drops the entry
// rather than stalling the guarded call.
type Recorder struct {
	storage   Storage
	config    *RecorderConfig
	entryChan chan *guard.AuditEntry
	wg        sync.WaitGroup
	done      chan struct{}
	dropped   atomic.Int64
	logger    *slog.Logger
}

// NewRecorder creates an audit recorder with the provided storage backend
// and starts its background writer.
func NewRecorder(storage Storage, config *RecorderConfig) *Recorder {
	if config == nil {
		config = DefaultRecorderConfig()
	}
	if config.AsyncBuffer <= 0 {
		config.AsyncBuffer = 1000
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}

	r := &Recorder{
		storage:   storage,
		config:    config,
		entryChan: make(chan *guard.AuditEntry, config.AsyncBuffer),
		done:      make(chan struct{}),
		logger:    slog.Default().With("component", "audit.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("audit recorder initialized",
		"async_buffer", config.AsyncBuffer,
		"write_timeout", config.WriteTimeout,
	)

	return r
}

// Record enqueues an audit entry for async persistence. It never blocks:
// when the channel is full the entry is dropped and counted.
func (r *Recorder) Record(entry *guard.AuditEntry) {
	if !r.config.Enabled {
		return
	}

	select {
	case r.entryChan <- entry:
	default:
		dropped := r.dropped.Add(1)
		r.logger.Warn("audit channel full, dropping entry",
			"entry_id", entry.ID,
			"tool", entry.Tool,
			"dropped_total", dropped,
		)
	}
}

// Dropped returns the number of entries dropped due to a full channel.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close drains the channel and waits for pending writes to complete.
func (r *Recorder) Close() error {
	r.logger.Info("shutting down audit recorder")
	close(r.done)
	r.wg.Wait()
	r.logger.Info("audit recorder shut down complete")
	return nil
}

// worker drains the entry channel and writes entries to storage.
func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case entry := <-r.entryChan:
			r.writeEntry(entry)

		case <-r.done:
			// Drain remaining entries before exit.
			for {
				select {
				case entry := <-r.entryChan:
					r.writeEntry(entry)
				default:
					return
				}
			}
		}
	}
}

// writeEntry writes a single audit entry to storage.
func (r *Recorder) writeEntry(entry *guard.AuditEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	if err := r.storage.Store(ctx, entry); err != nil {
		r.logger.Error("failed to store audit entry",
			"entry_id", entry.ID,
			"tool", entry.Tool,
			"error", err,
		)
		return
	}

	r.logger.Debug("audit entry persisted",
		"entry_id", entry.ID,
		"tool", entry.Tool,
		"allow", entry.Allow,
	)
}
