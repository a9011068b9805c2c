package messaging

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type visibilityEntry struct {
	receiptHandle string
	timeout       int
}

// opBuffer accumulates send, delete and change-visibility calls for one
// queue. Appends come from multiple worker goroutines and flushes from the
// queue manager's timer, so all slice access is mutex-guarded; the backend
// round trips themselves happen outside the lock.
type opBuffer struct {
	queue   QueueID
	name    string
	backend QueueBackend
	limit   int
	logger  *slog.Logger
	onError ErrorHandler

	mu         sync.Mutex
	sends      []SendEntry
	deletes    []string
	visibility []visibilityEntry
}

func newOpBuffer(queue QueueID, name string, backend QueueBackend, logger *slog.Logger, onError ErrorHandler) *opBuffer {
	return &opBuffer{
		queue:   queue,
		name:    name,
		backend: backend,
		limit:   batchLimit,
		logger:  logger,
		onError: onError,
	}
}

// AddSend buffers a send, flushing the send batch when it reaches the limit
func (b *opBuffer) AddSend(ctx context.Context, entry SendEntry) {
	b.mu.Lock()
	b.sends = append(b.sends, entry)
	var full []SendEntry
	if len(b.sends) >= b.limit {
		full = b.sends
		b.sends = nil
	}
	b.mu.Unlock()

	if full != nil {
		b.flushSends(ctx, full)
	}
}

// AddDelete buffers an ack, flushing the delete batch when it reaches the limit
func (b *opBuffer) AddDelete(ctx context.Context, receiptHandle string) {
	b.mu.Lock()
	b.deletes = append(b.deletes, receiptHandle)
	var full []string
	if len(b.deletes) >= b.limit {
		full = b.deletes
		b.deletes = nil
	}
	b.mu.Unlock()

	if full != nil {
		b.flushDeletes(ctx, full)
	}
}

// AddVisibility buffers a visibility change, flushing when the batch is full
func (b *opBuffer) AddVisibility(ctx context.Context, receiptHandle string, timeout int) {
	b.mu.Lock()
	b.visibility = append(b.visibility, visibilityEntry{receiptHandle: receiptHandle, timeout: timeout})
	var full []visibilityEntry
	if len(b.visibility) >= b.limit {
		full = b.visibility
		b.visibility = nil
	}
	b.mu.Unlock()

	if full != nil {
		b.flushVisibility(ctx, full)
	}
}

// Flush drains every pending operation
func (b *opBuffer) Flush(ctx context.Context) {
	b.mu.Lock()
	sends := b.sends
	deletes := b.deletes
	visibility := b.visibility
	b.sends = nil
	b.deletes = nil
	b.visibility = nil
	b.mu.Unlock()

	if len(sends) > 0 {
		b.flushSends(ctx, sends)
	}
	if len(deletes) > 0 {
		b.flushDeletes(ctx, deletes)
	}
	if len(visibility) > 0 {
		b.flushVisibility(ctx, visibility)
	}
}

// Pending reports how many operations are waiting to be flushed
func (b *opBuffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sends) + len(b.deletes) + len(b.visibility)
}

func (b *opBuffer) flushSends(ctx context.Context, entries []SendEntry) {
	for start := 0; start < len(entries); start += b.limit {
		end := start + b.limit
		if end > len(entries) {
			end = len(entries)
		}
		if err := b.backend.SendBatch(ctx, b.queue, entries[start:end]); err != nil {
			b.report(&TransportError{Queue: b.name, Op: "sendBatch", Err: err, Timestamp: time.Now()})
		}
	}
}

func (b *opBuffer) flushDeletes(ctx context.Context, handles []string) {
	for start := 0; start < len(handles); start += b.limit {
		end := start + b.limit
		if end > len(handles) {
			end = len(handles)
		}
		if err := b.backend.DeleteBatch(ctx, b.queue, handles[start:end]); err != nil {
			b.report(&TransportError{Queue: b.name, Op: "deleteBatch", Err: err, Timestamp: time.Now()})
		}
	}
}

func (b *opBuffer) flushVisibility(ctx context.Context, entries []visibilityEntry) {
	for _, entry := range entries {
		if err := b.backend.ChangeVisibility(ctx, b.queue, entry.receiptHandle, entry.timeout); err != nil {
			b.report(&TransportError{Queue: b.name, Op: "changeVisibility", Err: err, Timestamp: time.Now()})
		}
	}
}

func (b *opBuffer) report(err error) {
	b.logger.Error("buffered flush failed", "queue", b.name, "error", err)
	if b.onError != nil {
		b.onError(err)
	}
}
