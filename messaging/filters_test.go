package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/relaymq/relay-go/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainFilters(t *testing.T) {
	ctx := context.Background()

	tag := func(suffix string) MessageFilter {
		return func(ctx context.Context, msg contracts.Message) (contracts.Message, error) {
			msg.SetCorrelationID(msg.GetCorrelationID() + suffix)
			return msg, nil
		}
	}

	t.Run("empty chain is nil", func(t *testing.T) {
		assert.Nil(t, ChainFilters())
	})

	t.Run("single filter is returned as-is", func(t *testing.T) {
		f := tag("a")
		chained := ChainFilters(f)

		msg := contracts.NewBaseMessage("Ping")
		out, err := chained(ctx, &msg)
		require.NoError(t, err)
		assert.Equal(t, "a", out.GetCorrelationID())
	})

	t.Run("filters run left to right", func(t *testing.T) {
		chained := ChainFilters(tag("a"), tag("b"), tag("c"))

		msg := contracts.NewBaseMessage("Ping")
		out, err := chained(ctx, &msg)
		require.NoError(t, err)
		assert.Equal(t, "abc", out.GetCorrelationID())
	})

	t.Run("first error stops the chain", func(t *testing.T) {
		boom := errors.New("boom")
		failing := func(ctx context.Context, msg contracts.Message) (contracts.Message, error) {
			return nil, boom
		}
		chained := ChainFilters(tag("a"), failing, tag("c"))

		msg := contracts.NewBaseMessage("Ping")
		_, err := chained(ctx, &msg)
		assert.ErrorIs(t, err, boom)
	})
}
