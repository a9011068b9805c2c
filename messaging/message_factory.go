package messaging

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/relaymq/relay-go/contracts"
	"github.com/relaymq/relay-go/serialization"
)

// MessageFactory bundles the shared pieces every worker needs: the queue
// manager, the codec and type registry, the global retry budget and flush
// interval, and the server-wide error sink. It is shared by reference
// between the server and all workers and is read-mostly after Init.
type MessageFactory struct {
	backend  QueueBackend
	queues   *QueueManager
	codec    serialization.MessageCodec
	registry *serialization.TypeRegistry
	logger   *slog.Logger

	retryCount    int
	flushInterval time.Duration
	onError       ErrorHandler
	queueOptions  []QueueManagerOption

	disposed atomic.Bool
}

// MessageFactoryOption configures the MessageFactory
type MessageFactoryOption func(*MessageFactory)

// WithFactoryLogger sets the logger
func WithFactoryLogger(logger *slog.Logger) MessageFactoryOption {
	return func(f *MessageFactory) {
		f.logger = logger
	}
}

// WithGlobalRetryCount sets the retry budget registrations inherit
func WithGlobalRetryCount(count int) MessageFactoryOption {
	return func(f *MessageFactory) {
		f.retryCount = count
	}
}

// WithBufferFlushInterval sets how often buffered operations are flushed.
// Zero disables the timer.
func WithBufferFlushInterval(interval time.Duration) MessageFactoryOption {
	return func(f *MessageFactory) {
		f.flushInterval = interval
	}
}

// WithFactoryErrorHandler sets the sink for otherwise-unhandled failures
func WithFactoryErrorHandler(onError ErrorHandler) MessageFactoryOption {
	return func(f *MessageFactory) {
		f.onError = onError
	}
}

// WithCodec replaces the default JSON codec
func WithCodec(codec serialization.MessageCodec) MessageFactoryOption {
	return func(f *MessageFactory) {
		f.codec = codec
	}
}

// WithQueueOptions forwards options to the factory's QueueManager
func WithQueueOptions(options ...QueueManagerOption) MessageFactoryOption {
	return func(f *MessageFactory) {
		f.queueOptions = append(f.queueOptions, options...)
	}
}

// NewMessageFactory creates the shared factory on top of a connected
// backend. Out-of-range settings fail immediately with
// ArgumentOutOfRangeError.
func NewMessageFactory(backend QueueBackend, options ...MessageFactoryOption) (*MessageFactory, error) {
	f := &MessageFactory{
		backend:       backend,
		registry:      serialization.NewTypeRegistry(),
		logger:        slog.Default(),
		retryCount:    DefaultRetryCount,
		flushInterval: DefaultFlushInterval,
	}

	for _, opt := range options {
		opt(f)
	}

	if err := validateRetryCount(f.retryCount); err != nil {
		return nil, err
	}
	if err := validateFlushInterval(f.flushInterval); err != nil {
		return nil, err
	}

	if f.codec == nil {
		f.codec = serialization.NewJSONCodec(f.registry)
	}

	queueOpts := append([]QueueManagerOption{
		WithQueueManagerLogger(f.logger),
		WithFlushInterval(f.flushInterval),
		WithQueueManagerErrorHandler(f.ReportError),
	}, f.queueOptions...)

	queues, err := NewQueueManager(backend, queueOpts...)
	if err != nil {
		return nil, err
	}
	f.queues = queues

	return f, nil
}

// Queues returns the shared queue manager
func (f *MessageFactory) Queues() *QueueManager {
	return f.queues
}

// Codec returns the message codec
func (f *MessageFactory) Codec() serialization.MessageCodec {
	return f.codec
}

// Registry returns the codec's type registry
func (f *MessageFactory) Registry() *serialization.TypeRegistry {
	return f.registry
}

// RetryCount returns the global retry budget
func (f *MessageFactory) RetryCount() int {
	return f.retryCount
}

// ReportError routes a failure to the configured error sink. It is the
// terminal hook: errors arriving here are observable but never propagate.
func (f *MessageFactory) ReportError(err error) {
	if err == nil {
		return
	}
	f.logger.Error("unhandled messaging error", "error", err)
	if f.onError != nil {
		f.onError(err)
	}
}

// Sender produces a message sender bound to a provisioned queue
func (f *MessageFactory) Sender(def QueueDefinition, buffered bool) *QueueSender {
	return &QueueSender{factory: f, def: def, buffered: buffered}
}

// Dispose flushes buffered operations and releases the backend client.
// It is safe to call once; disposal failures are routed to the error sink
// rather than returned so shutdown is never blocked by a transport error.
func (f *MessageFactory) Dispose(ctx context.Context) {
	if !f.disposed.CompareAndSwap(false, true) {
		return
	}

	if err := f.queues.Close(ctx); err != nil {
		f.ReportError(err)
	}
	if err := f.backend.Close(); err != nil {
		f.ReportError(&TransportError{Op: "close", Err: err, Timestamp: time.Now()})
	}

	f.logger.Info("message factory disposed")
}

// Disposed reports whether Dispose has run
func (f *MessageFactory) Disposed() bool {
	return f.disposed.Load()
}

// QueueSender sends typed messages to one bound queue
type QueueSender struct {
	factory  *MessageFactory
	def      QueueDefinition
	buffered bool
}

// Queue returns the bound queue definition
func (s *QueueSender) Queue() QueueDefinition {
	return s.def
}

// Send encodes and enqueues a message
func (s *QueueSender) Send(ctx context.Context, msg contracts.Message) error {
	if s.factory.disposed.Load() {
		return ErrFactoryDisposed
	}

	body, err := s.factory.codec.Encode(msg)
	if err != nil {
		return err
	}

	attrs := map[string]string{"messageType": msg.GetType()}
	return s.factory.queues.Send(ctx, s.def, body, attrs, s.buffered)
}
