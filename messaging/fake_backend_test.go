package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/relaymq/relay-go/contracts"
)

// fakeBackend is an in-memory QueueBackend with SQS-like semantics:
// visibility windows, receive counts and redrive to a DLQ once the
// receive count exceeds the policy's maxReceiveCount.
type fakeBackend struct {
	mu      sync.Mutex
	queues  map[string]*fakeQueue
	created []string
	seq     int
	closed  bool
}

type fakeQueue struct {
	name     string
	attrs    QueueAttributes
	messages []*fakeMessage
}

type fakeMessage struct {
	id           string
	body         []byte
	attrs        map[string]string
	receipt      string
	receiveCount int
	visibleAt    time.Time
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		queues: make(map[string]*fakeQueue),
	}
}

func fakeQueueID(name string) QueueID {
	return QueueID("fake://" + name)
}

func fakeQueueARN(name string) string {
	return "arn:fake:sqs:" + name
}

func (f *fakeBackend) CreateQueue(ctx context.Context, name string, attrs QueueAttributes) (QueueID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.queues[name]; !exists {
		f.queues[name] = &fakeQueue{name: name, attrs: attrs}
		f.created = append(f.created, name)
	}
	return fakeQueueID(name), nil
}

func (f *fakeBackend) LookupQueue(ctx context.Context, name string) (QueueID, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.queues[name]; !exists {
		return "", false, nil
	}
	return fakeQueueID(name), true, nil
}

func (f *fakeBackend) GetQueueInfo(ctx context.Context, id QueueID) (QueueInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	q, err := f.queueByIDLocked(id)
	if err != nil {
		return QueueInfo{}, err
	}
	return QueueInfo{
		ARN:               fakeQueueARN(q.name),
		VisibilityTimeout: q.attrs.VisibilityTimeout,
		ReceiveWaitTime:   q.attrs.ReceiveWaitTime,
	}, nil
}

func (f *fakeBackend) Send(ctx context.Context, id QueueID, body []byte, attrs map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	q, err := f.queueByIDLocked(id)
	if err != nil {
		return err
	}
	f.seq++
	q.messages = append(q.messages, &fakeMessage{
		id:    fmt.Sprintf("m-%d", f.seq),
		body:  append([]byte(nil), body...),
		attrs: attrs,
	})
	return nil
}

func (f *fakeBackend) SendBatch(ctx context.Context, id QueueID, entries []SendEntry) error {
	for _, entry := range entries {
		if err := f.Send(ctx, id, entry.Body, entry.Attributes); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeBackend) ReceiveBatch(ctx context.Context, id QueueID, maxWait time.Duration, maxCount int) ([]contracts.Delivery, error) {
	deadline := time.Now().Add(maxWait)

	for {
		deliveries, err := f.receiveOnce(id, maxCount)
		if err != nil {
			return nil, err
		}
		if len(deliveries) > 0 || !time.Now().Before(deadline) {
			return deliveries, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func (f *fakeBackend) receiveOnce(id QueueID, maxCount int) ([]contracts.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	q, err := f.queueByIDLocked(id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	f.redriveLocked(q, now)

	var deliveries []contracts.Delivery
	for _, msg := range q.messages {
		if len(deliveries) >= maxCount {
			break
		}
		if now.Before(msg.visibleAt) {
			continue
		}
		msg.receiveCount++
		f.seq++
		msg.receipt = fmt.Sprintf("r-%d", f.seq)
		msg.visibleAt = now.Add(time.Duration(q.attrs.VisibilityTimeout) * time.Second)

		deliveries = append(deliveries, contracts.Delivery{
			ID:            msg.id,
			Body:          append([]byte(nil), msg.body...),
			ReceiptHandle: msg.receipt,
			ReceiveCount:  msg.receiveCount,
			Attributes:    msg.attrs,
		})
	}
	return deliveries, nil
}

// redriveLocked moves exhausted, visible messages to the DLQ the way the
// backend's redrive policy would
func (f *fakeBackend) redriveLocked(q *fakeQueue, now time.Time) {
	if q.attrs.Redrive == nil {
		return
	}
	target := f.queueByARNLocked(q.attrs.Redrive.TargetARN)
	if target == nil {
		return
	}

	var kept []*fakeMessage
	for _, msg := range q.messages {
		if !now.Before(msg.visibleAt) && msg.receiveCount >= q.attrs.Redrive.MaxReceiveCount {
			target.messages = append(target.messages, msg)
			continue
		}
		kept = append(kept, msg)
	}
	q.messages = kept
}

func (f *fakeBackend) Delete(ctx context.Context, id QueueID, receiptHandle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	q, err := f.queueByIDLocked(id)
	if err != nil {
		return err
	}
	for i, msg := range q.messages {
		if msg.receipt == receiptHandle {
			q.messages = append(q.messages[:i], q.messages[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeBackend) DeleteBatch(ctx context.Context, id QueueID, receiptHandles []string) error {
	for _, handle := range receiptHandles {
		if err := f.Delete(ctx, id, handle); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeBackend) ChangeVisibility(ctx context.Context, id QueueID, receiptHandle string, timeout int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	q, err := f.queueByIDLocked(id)
	if err != nil {
		return err
	}
	for _, msg := range q.messages {
		if msg.receipt == receiptHandle {
			msg.visibleAt = time.Now().Add(time.Duration(timeout) * time.Second)
			return nil
		}
	}
	return nil
}

func (f *fakeBackend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeBackend) queueByIDLocked(id QueueID) (*fakeQueue, error) {
	for _, q := range f.queues {
		if fakeQueueID(q.name) == id {
			return q, nil
		}
	}
	return nil, fmt.Errorf("fake: unknown queue %s", id)
}

func (f *fakeBackend) queueByARNLocked(arn string) *fakeQueue {
	for _, q := range f.queues {
		if fakeQueueARN(q.name) == arn {
			return q
		}
	}
	return nil
}

// messageCount returns how many messages are currently in the named queue
func (f *fakeBackend) messageCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.queues[name]
	if !ok {
		return 0
	}
	return len(q.messages)
}

// messageBodies returns the bodies currently in the named queue
func (f *fakeBackend) messageBodies(name string) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.queues[name]
	if !ok {
		return nil
	}
	bodies := make([][]byte, 0, len(q.messages))
	for _, msg := range q.messages {
		bodies = append(bodies, append([]byte(nil), msg.body...))
	}
	return bodies
}

// creationOrder returns queue names in the order they were created
func (f *fakeBackend) creationOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.created...)
}

// queueAttrs returns the attributes a queue was created with
func (f *fakeBackend) queueAttrs(name string) (QueueAttributes, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.queues[name]
	if !ok {
		return QueueAttributes{}, false
	}
	return q.attrs, true
}
