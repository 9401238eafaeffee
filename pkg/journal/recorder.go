package journal

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// RecorderConfig configures the async journal recorder.
type RecorderConfig struct {
	// Enabled turns recording on.
	Enabled bool

	// AsyncBuffer is the size of the write channel buffer. Default: 1000.
	AsyncBuffer int

	// WriteTimeout bounds each storage write. Default: 5 seconds.
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

// Recorder writes connection records to storage asynchronously. Record never
// blocks the caller; when the buffer is full the record is dropped and
// counted rather than stalling a connection teardown.
type Recorder struct {
	storage Storage
	config  *RecorderConfig
	recCh   chan *ConnectionRecord
	dropped atomic.Int64
	wg      sync.WaitGroup
	logger  *slog.Logger

	closeOnce sync.Once
}

// NewRecorder creates a recorder and starts its background worker.
func NewRecorder(storage Storage, config *RecorderConfig) *Recorder {
	if config == nil {
		config = DefaultRecorderConfig()
	}

	r := &Recorder{
		storage: storage,
		config:  config,
		recCh:   make(chan *ConnectionRecord, config.AsyncBuffer),
		logger:  slog.Default().With("component", "journal.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("journal recorder initialized",
		"async_buffer", config.AsyncBuffer,
		"write_timeout", config.WriteTimeout,
	)
	return r
}

// Record enqueues one record for async writing. A record with no ID gets a
// fresh UUID.
func (r *Recorder) Record(rec *ConnectionRecord) {
	if !r.config.Enabled {
		return
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	select {
	case r.recCh <- rec:
	default:
		n := r.dropped.Add(1)
		r.logger.Warn("journal buffer full, dropping record",
			"conn_id", rec.ConnID,
			"dropped_total", n,
		)
	}
}

// Dropped returns how many records have been dropped due to a full buffer.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close stops accepting records, drains the buffer and waits for the worker.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		close(r.recCh)
		r.wg.Wait()
	})
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for rec := range r.recCh {
		ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
		if err := r.storage.Store(ctx, rec); err != nil {
			r.logger.Error("failed to write journal record",
				"record_id", rec.ID,
				"conn_id", rec.ConnID,
				"error", err,
			)
		}
		cancel()
	}
}
