package contracts

import (
	"time"
)

// Message is the base interface for all messages
type Message interface {
	GetID() string
	GetTimestamp() time.Time
	GetType() string
	GetCorrelationID() string
	SetCorrelationID(correlationID string)
}

// Response is a message produced by a handler in reply to another message
type Response interface {
	Message
	IsSuccess() bool
	GetError() error
}
