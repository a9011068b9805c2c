package messaging

import (
	"context"
	"time"

	"github.com/relaymq/relay-go/contracts"
)

// QueueID identifies a provisioned queue at the backend (a URL for SQS-style
// backends).
type QueueID string

// RedrivePolicy directs messages to a dead-letter queue after the receive
// count exceeds MaxReceiveCount.
type RedrivePolicy struct {
	TargetARN       string
	MaxReceiveCount int
}

// QueueAttributes are the creation-time parameters for a queue.
// Timeouts are in seconds, matching the backend's own units.
type QueueAttributes struct {
	VisibilityTimeout int
	ReceiveWaitTime   int
	Redrive           *RedrivePolicy
}

// QueueInfo describes a provisioned queue as reported by the backend
type QueueInfo struct {
	ARN               string
	VisibilityTimeout int
	ReceiveWaitTime   int
}

// SendEntry is a single message in a batched send
type SendEntry struct {
	Body       []byte
	Attributes map[string]string
}

// QueueBackend is the capability interface for the hosted queueing service.
// Implementations must be safe for concurrent use by multiple workers.
type QueueBackend interface {
	// CreateQueue creates a queue with the given attributes and returns its ID.
	// Creating an existing queue with identical attributes must succeed.
	CreateQueue(ctx context.Context, name string, attrs QueueAttributes) (QueueID, error)

	// LookupQueue resolves a queue name to its ID. The second return value
	// reports whether the queue exists; a missing queue is not an error.
	LookupQueue(ctx context.Context, name string) (QueueID, bool, error)

	// GetQueueInfo reads the attributes of a provisioned queue
	GetQueueInfo(ctx context.Context, id QueueID) (QueueInfo, error)

	// Send enqueues a single message
	Send(ctx context.Context, id QueueID, body []byte, attrs map[string]string) error

	// SendBatch enqueues up to the backend batch limit of messages
	SendBatch(ctx context.Context, id QueueID, entries []SendEntry) error

	// ReceiveBatch receives up to maxCount messages, blocking up to maxWait.
	// An empty result after the wait elapses is not an error.
	ReceiveBatch(ctx context.Context, id QueueID, maxWait time.Duration, maxCount int) ([]contracts.Delivery, error)

	// Delete acknowledges a received message
	Delete(ctx context.Context, id QueueID, receiptHandle string) error

	// DeleteBatch acknowledges up to the backend batch limit of messages
	DeleteBatch(ctx context.Context, id QueueID, receiptHandles []string) error

	// ChangeVisibility adjusts the visibility timeout of a received message
	ChangeVisibility(ctx context.Context, id QueueID, receiptHandle string, timeout int) error

	// Close releases backend client resources
	Close() error
}

// ConnectionFactory produces a connected queue backend. It exists so that
// credential bootstrapping stays outside the core and test doubles can be
// injected.
type ConnectionFactory interface {
	Connect(ctx context.Context) (QueueBackend, error)
}

// ConnectionFactoryFunc is a function adapter for ConnectionFactory
type ConnectionFactoryFunc func(ctx context.Context) (QueueBackend, error)

// Connect implements ConnectionFactory
func (f ConnectionFactoryFunc) Connect(ctx context.Context) (QueueBackend, error) {
	return f(ctx)
}
