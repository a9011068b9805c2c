package messaging

import (
	"time"
)

// Configuration bounds enforced at set time. The visibility and wait limits
// mirror the backend's own hard limits.
const (
	MinVisibilityTimeout = 0
	MaxVisibilityTimeout = 43200 // 12 hours, the backend ceiling
	MinReceiveWaitTime   = 0
	MaxReceiveWaitTime   = 20
	MinRetryCount        = 0
	MaxRetryCount        = 1000
)

// Defaults applied when a registration or server leaves a value unset
const (
	DefaultVisibilityTimeout = 30
	DefaultReceiveWaitTime   = 0
	DefaultRetryCount        = 5
	DefaultThreadCount       = 1
	DefaultFlushInterval     = 5 * time.Second

	// batchLimit is the backend ceiling for batched send/delete entries
	batchLimit = 10
)

func validateVisibilityTimeout(v int) error {
	if v < MinVisibilityTimeout || v > MaxVisibilityTimeout {
		return &ArgumentOutOfRangeError{Param: "visibilityTimeout", Value: v, Min: MinVisibilityTimeout, Max: MaxVisibilityTimeout}
	}
	return nil
}

func validateReceiveWaitTime(v int) error {
	if v < MinReceiveWaitTime || v > MaxReceiveWaitTime {
		return &ArgumentOutOfRangeError{Param: "receiveWaitTime", Value: v, Min: MinReceiveWaitTime, Max: MaxReceiveWaitTime}
	}
	return nil
}

func validateRetryCount(v int) error {
	if v < MinRetryCount || v > MaxRetryCount {
		return &ArgumentOutOfRangeError{Param: "retryCount", Value: v, Min: MinRetryCount, Max: MaxRetryCount}
	}
	return nil
}

func validateThreadCount(v int) error {
	if v < 1 {
		return &ArgumentOutOfRangeError{Param: "threadCount", Value: v, Min: 1, Max: int(^uint(0) >> 1)}
	}
	return nil
}

func validateFlushInterval(v time.Duration) error {
	if v < 0 {
		return &ArgumentOutOfRangeError{Param: "bufferFlushInterval", Value: int(v.Seconds()), Min: 0, Max: int(^uint(0) >> 1)}
	}
	return nil
}
