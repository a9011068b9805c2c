package messaging

import (
	"context"

	"github.com/relaymq/relay-go/contracts"
)

// MessageFilter is a pure transformation applied to a message before handler
// dispatch (request filter) or after handler success (response filter).
// Filters are captured into each worker at Init and invoked concurrently
// from worker goroutines, so implementations must not rely on shared
// mutable state.
type MessageFilter func(ctx context.Context, msg contracts.Message) (contracts.Message, error)

// ChainFilters composes filters left to right into a single filter
func ChainFilters(filters ...MessageFilter) MessageFilter {
	switch len(filters) {
	case 0:
		return nil
	case 1:
		return filters[0]
	}

	return func(ctx context.Context, msg contracts.Message) (contracts.Message, error) {
		var err error
		for _, filter := range filters {
			msg, err = filter(ctx, msg)
			if err != nil {
				return nil, err
			}
		}
		return msg, nil
	}
}
