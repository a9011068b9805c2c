package messaging

import (
	"context"

	"github.com/relaymq/relay-go/contracts"
	"github.com/relaymq/relay-go/serialization"
)

// MessageHandler processes a decoded message. A non-nil response is
// published to the type's out queue when one is provisioned; returning
// (nil, nil) acknowledges the message without a response.
type MessageHandler interface {
	Handle(ctx context.Context, msg contracts.Message) (contracts.Message, error)
}

// MessageHandlerFunc is a function adapter for MessageHandler
type MessageHandlerFunc func(ctx context.Context, msg contracts.Message) (contracts.Message, error)

// Handle implements MessageHandler
func (f MessageHandlerFunc) Handle(ctx context.Context, msg contracts.Message) (contracts.Message, error) {
	return f(ctx, msg)
}

// ExceptionHandler observes a processing failure for one delivery. When a
// registration supplies one, it is invoked before the failure is considered
// handled; registrations without one have failures forwarded to the
// server-wide error handler instead. msg is nil when the body could not be
// decoded.
type ExceptionHandler func(ctx context.Context, delivery contracts.Delivery, msg contracts.Message, err error)

// ErrorHandler is the server-wide sink for failures that no other hook
// handled: worker processing errors, transport errors and disposal errors.
type ErrorHandler func(err error)

// WorkerInfo is the immutable registration record for one message type.
// It is built by RegisterHandler from the server defaults captured at
// registration time and never mutated once workers exist.
type WorkerInfo struct {
	MessageType       string
	Factory           serialization.MessageFactory
	Handler           MessageHandler
	ExceptionHandler  ExceptionHandler
	ThreadCount       int
	RetryCount        int
	VisibilityTimeout int
	ReceiveWaitTime   int
	DisableBuffering  bool
	QueueNames        QueueNameSet
}

// validate checks all bounded fields, failing fast on the first violation
func (w *WorkerInfo) validate() error {
	if err := validateThreadCount(w.ThreadCount); err != nil {
		return err
	}
	if err := validateRetryCount(w.RetryCount); err != nil {
		return err
	}
	if err := validateVisibilityTimeout(w.VisibilityTimeout); err != nil {
		return err
	}
	return validateReceiveWaitTime(w.ReceiveWaitTime)
}

// HandlerOption configures one handler registration
type HandlerOption func(*WorkerInfo)

// WithExceptionHandler sets the per-type failure observer
func WithExceptionHandler(handler ExceptionHandler) HandlerOption {
	return func(w *WorkerInfo) {
		w.ExceptionHandler = handler
	}
}

// WithThreadCount sets how many workers consume the type's in queue
// (and its priority queue, when one is provisioned)
func WithThreadCount(count int) HandlerOption {
	return func(w *WorkerInfo) {
		w.ThreadCount = count
	}
}

// WithRetryCount overrides the server-wide retry budget for this type
func WithRetryCount(count int) HandlerOption {
	return func(w *WorkerInfo) {
		w.RetryCount = count
	}
}

// WithVisibilityTimeout overrides the visibility timeout, in seconds
func WithVisibilityTimeout(seconds int) HandlerOption {
	return func(w *WorkerInfo) {
		w.VisibilityTimeout = seconds
	}
}

// WithReceiveWaitTime overrides the long-poll wait, in seconds
func WithReceiveWaitTime(seconds int) HandlerOption {
	return func(w *WorkerInfo) {
		w.ReceiveWaitTime = seconds
	}
}

// WithBufferingDisabled forces immediate round trips for this type's
// send/delete/visibility calls regardless of the server default
func WithBufferingDisabled(disabled bool) HandlerOption {
	return func(w *WorkerInfo) {
		w.DisableBuffering = disabled
	}
}
