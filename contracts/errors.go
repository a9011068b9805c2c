package contracts

import (
	"fmt"
)

// ErrorReply represents an error response published to an out queue
type ErrorReply struct {
	BaseResponse
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// NewErrorReply creates a new error reply correlated to a failed request
func NewErrorReply(messageType string, correlationID string, errorCode string, errorMessage string) *ErrorReply {
	reply := &ErrorReply{
		BaseResponse: BaseResponse{BaseMessage: NewBaseMessage(messageType), Success: false},
		ErrorCode:    errorCode,
		ErrorMessage: errorMessage,
	}
	reply.SetCorrelationID(correlationID)
	return reply
}

// IsSuccess returns false for error replies
func (e ErrorReply) IsSuccess() bool {
	return false
}

// GetError returns the error
func (e ErrorReply) GetError() error {
	return fmt.Errorf("%s: %s", e.ErrorCode, e.ErrorMessage)
}
