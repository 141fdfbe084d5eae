// internal/service/event_writer.go

package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"site_registry/internal/domain"
	"site_registry/internal/repository"
	"site_registry/pkg/logger"
)

// EventRecorder accepts status events for asynchronous storage
type EventRecorder interface {
	Record(event domain.StatusEvent)
}

// StatusEventWriter buffers status events and writes them in batches
type StatusEventWriter struct {
	repo          repository.EventRepository
	batchSize     int
	flushInterval time.Duration

	mu     sync.Mutex
	buffer []domain.StatusEvent
	stop   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once

	// Stats
	batchesWritten uint64
	eventsWritten  uint64
	eventsDropped  uint64
	lastFlushTime  atomic.Value
}

// NewStatusEventWriter creates a writer and starts its flush loop
func NewStatusEventWriter(repo repository.EventRepository, batchSize int, flushInterval time.Duration) *StatusEventWriter {
	w := &StatusEventWriter{
		repo:          repo,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		buffer:        make([]domain.StatusEvent, 0, batchSize),
		stop:          make(chan struct{}),
	}
	w.lastFlushTime.Store(time.Now())

	w.wg.Add(1)
	go w.autoFlush()

	logger.Infof("StatusEventWriter started: %d size, %v interval, %s store", batchSize, flushInterval, repo.Type())
	return w
}

// Record adds an event to the buffer and flushes if needed
func (w *StatusEventWriter) Record(event domain.StatusEvent) {
	w.mu.Lock()
	w.buffer = append(w.buffer, event)
	shouldFlush := len(w.buffer) >= w.batchSize
	w.mu.Unlock()

	if shouldFlush {
		w.Flush()
	}
}

// Flush writes all buffered events. A failed batch is logged and dropped.
func (w *StatusEventWriter) Flush() {
	w.mu.Lock()
	if len(w.buffer) == 0 {
		w.mu.Unlock()
		return
	}

	toWrite := make([]domain.StatusEvent, len(w.buffer))
	copy(toWrite, w.buffer)
	w.buffer = w.buffer[:0]
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	if err := w.repo.Insert(ctx, toWrite); err != nil {
		atomic.AddUint64(&w.eventsDropped, uint64(len(toWrite)))
		logger.Errorf("Status event batch write failed: %d events in %v: %v",
			len(toWrite), time.Since(start), err)
		return
	}

	atomic.AddUint64(&w.batchesWritten, 1)
	atomic.AddUint64(&w.eventsWritten, uint64(len(toWrite)))
	w.lastFlushTime.Store(time.Now())

	logger.Debugf("Flushed %d status events in %v", len(toWrite), time.Since(start).Round(time.Millisecond))
}

// Size returns current buffer size
func (w *StatusEventWriter) Size() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buffer)
}

func (w *StatusEventWriter) autoFlush() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Flush()
		case <-w.stop:
			w.Flush()
			return
		}
	}
}

// Stats returns writer statistics
func (w *StatusEventWriter) Stats() map[string]interface{} {
	return map[string]interface{}{
		"batches_written": atomic.LoadUint64(&w.batchesWritten),
		"events_written":  atomic.LoadUint64(&w.eventsWritten),
		"events_dropped":  atomic.LoadUint64(&w.eventsDropped),
		"buffer_size":     w.Size(),
		"last_flush_time": w.lastFlushTime.Load().(time.Time).Format("15:04:05"),
	}
}

// Close stops the flush loop after a final flush
func (w *StatusEventWriter) Close() {
	w.once.Do(func() {
		close(w.stop)
		w.wg.Wait()
		logger.Infof("StatusEventWriter closed. Total: %d batches, %d events",
			atomic.LoadUint64(&w.batchesWritten),
			atomic.LoadUint64(&w.eventsWritten))
	})
}
