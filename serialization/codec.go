package serialization

import (
	"encoding/json"
	"fmt"

	"github.com/relaymq/relay-go/contracts"
)

// MessageCodec encodes and decodes message bodies for transport
type MessageCodec interface {
	// Encode serializes a message to bytes
	Encode(msg contracts.Message) ([]byte, error)

	// Decode deserializes bytes into an instance of the named type
	Decode(data []byte, messageType string) (contracts.Message, error)
}

// DecodeError indicates a message body that could not be decoded.
// The message itself must remain ack-able and DLQ-able so that a poison
// payload cannot block its queue.
type DecodeError struct {
	MessageType string
	Err         error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("serialization: failed to decode %s: %v", e.MessageType, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// JSONCodec is a MessageCodec using JSON bodies and a type registry
type JSONCodec struct {
	registry *TypeRegistry
}

// NewJSONCodec creates a codec backed by the given registry
func NewJSONCodec(registry *TypeRegistry) *JSONCodec {
	if registry == nil {
		registry = NewTypeRegistry()
	}
	return &JSONCodec{registry: registry}
}

// Registry returns the codec's type registry
func (c *JSONCodec) Registry() *TypeRegistry {
	return c.registry
}

// Encode implements MessageCodec
func (c *JSONCodec) Encode(msg contracts.Message) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("serialization: message cannot be nil")
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("serialization: failed to encode %s: %w", msg.GetType(), err)
	}
	return data, nil
}

// Decode implements MessageCodec
func (c *JSONCodec) Decode(data []byte, messageType string) (contracts.Message, error) {
	instance, err := c.registry.CreateInstance(messageType)
	if err != nil {
		return nil, &DecodeError{MessageType: messageType, Err: err}
	}

	if err := json.Unmarshal(data, instance); err != nil {
		return nil, &DecodeError{MessageType: messageType, Err: err}
	}
	return instance, nil
}
