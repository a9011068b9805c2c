package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/relaymq/relay-go/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNewMessageFactory(t *testing.T) {
	t.Run("rejects out of range retry count", func(t *testing.T) {
		_, err := NewMessageFactory(newFakeBackend(), WithGlobalRetryCount(1001))
		var rangeErr *ArgumentOutOfRangeError
		assert.True(t, errors.As(err, &rangeErr))
	})

	t.Run("rejects negative flush interval", func(t *testing.T) {
		_, err := NewMessageFactory(newFakeBackend(), WithBufferFlushInterval(-1))
		var rangeErr *ArgumentOutOfRangeError
		assert.True(t, errors.As(err, &rangeErr))
	})

	t.Run("defaults to a JSON codec over its own registry", func(t *testing.T) {
		f, err := NewMessageFactory(newFakeBackend(), WithBufferFlushInterval(0))
		require.NoError(t, err)

		require.NoError(t, f.Registry().Register("Order", newServerTestOrder))
		msg, err := f.Codec().Decode([]byte(`{"type":"Order","item":"widget"}`), "Order")
		require.NoError(t, err)
		assert.Equal(t, "widget", msg.(*serverTestOrder).Item)
	})
}

func TestMessageFactoryDispose(t *testing.T) {
	ctx := context.Background()

	t.Run("closes the backend exactly once", func(t *testing.T) {
		backend := newFakeBackend()
		f, err := NewMessageFactory(backend, WithBufferFlushInterval(0))
		require.NoError(t, err)

		f.Dispose(ctx)
		f.Dispose(ctx)

		assert.True(t, f.Disposed())
		assert.True(t, backend.closed)
	})

	t.Run("routes close failures to the error sink", func(t *testing.T) {
		backend := &mockBackend{}
		backend.On("Close").Return(errors.New("socket gone")).Once()

		var sunk []error
		f, err := NewMessageFactory(backend,
			WithBufferFlushInterval(0),
			WithFactoryErrorHandler(func(err error) { sunk = append(sunk, err) }),
		)
		require.NoError(t, err)

		f.Dispose(ctx)

		require.Len(t, sunk, 1)
		var transportErr *TransportError
		require.True(t, errors.As(sunk[0], &transportErr))
		assert.Equal(t, "close", transportErr.Op)
		backend.AssertExpectations(t)
	})

	t.Run("flushes buffered sends before closing", func(t *testing.T) {
		backend := &mockBackend{}
		backend.On("LookupQueue", mock.Anything, "Order").Return(QueueID("q"), true, nil)
		backend.On("GetQueueInfo", mock.Anything, QueueID("q")).Return(QueueInfo{ARN: "arn:q"}, nil)
		backend.On("SendBatch", mock.Anything, QueueID("q"), mock.Anything).Return(nil).Once()
		backend.On("Close").Return(nil).Once()

		f, err := NewMessageFactory(backend, WithBufferFlushInterval(0))
		require.NoError(t, err)

		def, err := f.Queues().CreateQueue(ctx, "Order", testWorkerInfo("Order"), "")
		require.NoError(t, err)

		msg := &serverTestOrder{BaseMessage: contracts.NewBaseMessage("Order")}
		require.NoError(t, f.Sender(def, true).Send(ctx, msg))

		f.Dispose(ctx)
		backend.AssertExpectations(t)
	})

	t.Run("senders refuse to send after dispose", func(t *testing.T) {
		backend := newFakeBackend()
		f, err := NewMessageFactory(backend, WithBufferFlushInterval(0))
		require.NoError(t, err)

		def, err := f.Queues().CreateQueue(ctx, "Order", testWorkerInfo("Order"), "")
		require.NoError(t, err)
		sender := f.Sender(def, false)

		f.Dispose(ctx)

		msg := &serverTestOrder{BaseMessage: contracts.NewBaseMessage("Order")}
		assert.ErrorIs(t, sender.Send(ctx, msg), ErrFactoryDisposed)
	})
}
