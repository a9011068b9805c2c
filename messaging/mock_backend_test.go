package messaging

import (
	"context"
	"time"

	"github.com/relaymq/relay-go/contracts"
	"github.com/stretchr/testify/mock"
)

// mockBackend is a testify double for QueueBackend
type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) CreateQueue(ctx context.Context, name string, attrs QueueAttributes) (QueueID, error) {
	args := m.Called(ctx, name, attrs)
	return args.Get(0).(QueueID), args.Error(1)
}

func (m *mockBackend) LookupQueue(ctx context.Context, name string) (QueueID, bool, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(QueueID), args.Bool(1), args.Error(2)
}

func (m *mockBackend) GetQueueInfo(ctx context.Context, id QueueID) (QueueInfo, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(QueueInfo), args.Error(1)
}

func (m *mockBackend) Send(ctx context.Context, id QueueID, body []byte, attrs map[string]string) error {
	args := m.Called(ctx, id, body, attrs)
	return args.Error(0)
}

func (m *mockBackend) SendBatch(ctx context.Context, id QueueID, entries []SendEntry) error {
	args := m.Called(ctx, id, entries)
	return args.Error(0)
}

func (m *mockBackend) ReceiveBatch(ctx context.Context, id QueueID, maxWait time.Duration, maxCount int) ([]contracts.Delivery, error) {
	args := m.Called(ctx, id, maxWait, maxCount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]contracts.Delivery), args.Error(1)
}

func (m *mockBackend) Delete(ctx context.Context, id QueueID, receiptHandle string) error {
	args := m.Called(ctx, id, receiptHandle)
	return args.Error(0)
}

func (m *mockBackend) DeleteBatch(ctx context.Context, id QueueID, receiptHandles []string) error {
	args := m.Called(ctx, id, receiptHandles)
	return args.Error(0)
}

func (m *mockBackend) ChangeVisibility(ctx context.Context, id QueueID, receiptHandle string, timeout int) error {
	args := m.Called(ctx, id, receiptHandle, timeout)
	return args.Error(0)
}

func (m *mockBackend) Close() error {
	args := m.Called()
	return args.Error(0)
}
