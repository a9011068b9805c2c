package messaging

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Registration errors
	ErrDuplicateRegistration = errors.New("messaging: message type already registered")
	ErrEmptyMessageType      = errors.New("messaging: message type cannot be empty")
	ErrNilHandler            = errors.New("messaging: handler cannot be nil")
	ErrNilMessageFactory     = errors.New("messaging: message factory function cannot be nil")

	// Lifecycle errors
	ErrFactoryDisposed = errors.New("messaging: message factory is disposed")
	ErrNotInitialized  = errors.New("messaging: server is not initialized")
	ErrServerStopped   = errors.New("messaging: server is stopped")
	ErrUnknownQueue    = errors.New("messaging: queue is not provisioned")
)

// ArgumentOutOfRangeError indicates a configuration value outside its
// permitted bounds. Values are rejected at set time, never clamped.
type ArgumentOutOfRangeError struct {
	Param string
	Value int
	Min   int
	Max   int
}

func (e *ArgumentOutOfRangeError) Error() string {
	return fmt.Sprintf("messaging: %s must be between %d and %d, got %d", e.Param, e.Min, e.Max, e.Value)
}

// ProvisioningError indicates a queue could not be created or inspected at
// Init time. It is fatal to Init and surfaced synchronously.
type ProvisioningError struct {
	Queue     string
	Op        string
	Err       error
	Timestamp time.Time
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("messaging: provisioning %s failed for queue %s: %v", e.Op, e.Queue, e.Err)
}

func (e *ProvisioningError) Unwrap() error {
	return e.Err
}

// TransportError wraps a backend call failure during steady-state
// processing. Workers report it and retry on their next loop iteration.
type TransportError struct {
	Queue     string
	Op        string
	Err       error
	Timestamp time.Time
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("messaging: transport %s failed on queue %s: %v", e.Op, e.Queue, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// HandlerError wraps a failure raised by user handler code while processing
// a message. The retry/DLQ decision is driven by the delivery receive count,
// not by the error itself.
type HandlerError struct {
	MessageType  string
	MessageID    string
	Queue        string
	ReceiveCount int
	RetryCount   int
	Err          error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("messaging: handler failed for %s message %s on queue %s (receive %d/%d): %v",
		e.MessageType, e.MessageID, e.Queue, e.ReceiveCount, e.RetryCount, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
