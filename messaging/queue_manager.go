package messaging

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/relaymq/relay-go/contracts"
)

// QueueDefinition describes one provisioned queue
type QueueDefinition struct {
	Name              string
	ID                QueueID
	ARN               string
	VisibilityTimeout int
	ReceiveWaitTime   int
	RedriveTarget     string
}

// QueueManager owns the queue topology: it creates and memoizes queue
// definitions and exposes the low-level send/receive/delete/visibility
// operations, optionally buffered client-side.
type QueueManager struct {
	backend QueueBackend
	logger  *slog.Logger
	onError ErrorHandler

	defaultVisibilityTimeout int
	defaultReceiveWaitTime   int
	disableBuffering         bool
	flushInterval            time.Duration

	mu      sync.RWMutex
	queues  map[string]QueueDefinition
	buffers map[QueueID]*opBuffer

	flushStop chan struct{}
	flushDone chan struct{}
	closeOnce sync.Once
}

// QueueManagerOption configures the QueueManager
type QueueManagerOption func(*QueueManager)

// WithQueueManagerLogger sets the logger
func WithQueueManagerLogger(logger *slog.Logger) QueueManagerOption {
	return func(m *QueueManager) {
		m.logger = logger
	}
}

// WithDefaultVisibilityTimeout sets the visibility timeout applied to
// registrations that do not override it, in seconds
func WithDefaultVisibilityTimeout(seconds int) QueueManagerOption {
	return func(m *QueueManager) {
		m.defaultVisibilityTimeout = seconds
	}
}

// WithDefaultReceiveWaitTime sets the long-poll wait applied to
// registrations that do not override it, in seconds
func WithDefaultReceiveWaitTime(seconds int) QueueManagerOption {
	return func(m *QueueManager) {
		m.defaultReceiveWaitTime = seconds
	}
}

// WithManagerBufferingDisabled disables client-side buffering by default
func WithManagerBufferingDisabled(disabled bool) QueueManagerOption {
	return func(m *QueueManager) {
		m.disableBuffering = disabled
	}
}

// WithFlushInterval sets the periodic buffer flush interval. Zero disables
// the timer; buffers then flush only on the batch threshold and on close.
func WithFlushInterval(interval time.Duration) QueueManagerOption {
	return func(m *QueueManager) {
		m.flushInterval = interval
	}
}

// WithQueueManagerErrorHandler sets the sink for buffered flush failures
func WithQueueManagerErrorHandler(onError ErrorHandler) QueueManagerOption {
	return func(m *QueueManager) {
		m.onError = onError
	}
}

// NewQueueManager creates a queue manager on top of a connected backend.
// Out-of-range defaults fail immediately with ArgumentOutOfRangeError.
func NewQueueManager(backend QueueBackend, options ...QueueManagerOption) (*QueueManager, error) {
	m := &QueueManager{
		backend:                  backend,
		logger:                   slog.Default(),
		defaultVisibilityTimeout: DefaultVisibilityTimeout,
		defaultReceiveWaitTime:   DefaultReceiveWaitTime,
		flushInterval:            DefaultFlushInterval,
		queues:                   make(map[string]QueueDefinition),
		buffers:                  make(map[QueueID]*opBuffer),
		flushStop:                make(chan struct{}),
		flushDone:                make(chan struct{}),
	}

	for _, opt := range options {
		opt(m)
	}

	if err := validateVisibilityTimeout(m.defaultVisibilityTimeout); err != nil {
		return nil, err
	}
	if err := validateReceiveWaitTime(m.defaultReceiveWaitTime); err != nil {
		return nil, err
	}
	if err := validateFlushInterval(m.flushInterval); err != nil {
		return nil, err
	}

	if m.flushInterval > 0 {
		go m.flushLoop()
	} else {
		close(m.flushDone)
	}

	return m, nil
}

// DefaultVisibilityTimeout returns the manager-wide visibility timeout
func (m *QueueManager) DefaultVisibilityTimeout() int {
	return m.defaultVisibilityTimeout
}

// DefaultReceiveWaitTime returns the manager-wide long-poll wait
func (m *QueueManager) DefaultReceiveWaitTime() int {
	return m.defaultReceiveWaitTime
}

// BufferingDisabled returns the manager-wide buffering default
func (m *QueueManager) BufferingDisabled() bool {
	return m.disableBuffering
}

// CreateQueue creates or looks up the named queue. Provisioning is
// idempotent: an existing queue is adopted as-is. When redriveTargetARN is
// set, the queue is created with a redrive policy whose maxReceiveCount is
// the worker's retry budget.
func (m *QueueManager) CreateQueue(ctx context.Context, name string, info *WorkerInfo, redriveTargetARN string) (QueueDefinition, error) {
	m.mu.RLock()
	def, cached := m.queues[name]
	m.mu.RUnlock()
	if cached {
		return def, nil
	}

	visibility := m.defaultVisibilityTimeout
	wait := m.defaultReceiveWaitTime
	retry := DefaultRetryCount
	if info != nil {
		visibility = info.VisibilityTimeout
		wait = info.ReceiveWaitTime
		retry = info.RetryCount
	}

	id, exists, err := m.backend.LookupQueue(ctx, name)
	if err != nil {
		return QueueDefinition{}, &ProvisioningError{Queue: name, Op: "lookup", Err: err, Timestamp: time.Now()}
	}

	if !exists {
		attrs := QueueAttributes{
			VisibilityTimeout: visibility,
			ReceiveWaitTime:   wait,
		}
		if redriveTargetARN != "" {
			attrs.Redrive = &RedrivePolicy{TargetARN: redriveTargetARN, MaxReceiveCount: retry}
		}

		id, err = m.backend.CreateQueue(ctx, name, attrs)
		if err != nil {
			return QueueDefinition{}, &ProvisioningError{Queue: name, Op: "create", Err: err, Timestamp: time.Now()}
		}
	}

	queueInfo, err := m.backend.GetQueueInfo(ctx, id)
	if err != nil {
		return QueueDefinition{}, &ProvisioningError{Queue: name, Op: "describe", Err: err, Timestamp: time.Now()}
	}

	def = QueueDefinition{
		Name:              name,
		ID:                id,
		ARN:               queueInfo.ARN,
		VisibilityTimeout: visibility,
		ReceiveWaitTime:   wait,
		RedriveTarget:     redriveTargetARN,
	}

	m.mu.Lock()
	m.queues[name] = def
	m.mu.Unlock()

	m.logger.Info("queue provisioned",
		"queue", name,
		"existed", exists,
		"visibilityTimeout", visibility,
		"receiveWaitTime", wait,
		"redriveTarget", redriveTargetARN,
	)

	return def, nil
}

// Definition returns the cached definition for a provisioned queue
func (m *QueueManager) Definition(name string) (QueueDefinition, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	def, ok := m.queues[name]
	return def, ok
}

// Send enqueues one encoded message, buffered or as an immediate round trip
func (m *QueueManager) Send(ctx context.Context, def QueueDefinition, body []byte, attrs map[string]string, buffered bool) error {
	if buffered {
		m.buffer(def).AddSend(ctx, SendEntry{Body: body, Attributes: attrs})
		return nil
	}
	if err := m.backend.Send(ctx, def.ID, body, attrs); err != nil {
		return &TransportError{Queue: def.Name, Op: "send", Err: err, Timestamp: time.Now()}
	}
	return nil
}

// Receive pulls up to maxCount deliveries, blocking up to wait
func (m *QueueManager) Receive(ctx context.Context, def QueueDefinition, wait time.Duration, maxCount int) ([]contracts.Delivery, error) {
	deliveries, err := m.backend.ReceiveBatch(ctx, def.ID, wait, maxCount)
	if err != nil {
		return nil, &TransportError{Queue: def.Name, Op: "receive", Err: err, Timestamp: time.Now()}
	}
	return deliveries, nil
}

// Delete acknowledges one delivery, buffered or as an immediate round trip
func (m *QueueManager) Delete(ctx context.Context, def QueueDefinition, receiptHandle string, buffered bool) error {
	if buffered {
		m.buffer(def).AddDelete(ctx, receiptHandle)
		return nil
	}
	if err := m.backend.Delete(ctx, def.ID, receiptHandle); err != nil {
		return &TransportError{Queue: def.Name, Op: "delete", Err: err, Timestamp: time.Now()}
	}
	return nil
}

// ChangeVisibility adjusts the visibility window of one delivery
func (m *QueueManager) ChangeVisibility(ctx context.Context, def QueueDefinition, receiptHandle string, timeout int, buffered bool) error {
	if err := validateVisibilityTimeout(timeout); err != nil {
		return err
	}
	if buffered {
		m.buffer(def).AddVisibility(ctx, receiptHandle, timeout)
		return nil
	}
	if err := m.backend.ChangeVisibility(ctx, def.ID, receiptHandle, timeout); err != nil {
		return &TransportError{Queue: def.Name, Op: "changeVisibility", Err: err, Timestamp: time.Now()}
	}
	return nil
}

// Flush drains every queue's pending buffered operations
func (m *QueueManager) Flush(ctx context.Context) {
	m.mu.RLock()
	buffers := make([]*opBuffer, 0, len(m.buffers))
	for _, buf := range m.buffers {
		buffers = append(buffers, buf)
	}
	m.mu.RUnlock()

	for _, buf := range buffers {
		buf.Flush(ctx)
	}
}

// Close stops the flush timer and drains all buffers. It does not close the
// backend; the owning MessageFactory does that.
func (m *QueueManager) Close(ctx context.Context) error {
	m.closeOnce.Do(func() {
		close(m.flushStop)
		<-m.flushDone
		m.Flush(ctx)
	})
	return nil
}

func (m *QueueManager) buffer(def QueueDefinition) *opBuffer {
	m.mu.RLock()
	buf, ok := m.buffers[def.ID]
	m.mu.RUnlock()
	if ok {
		return buf
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if buf, ok = m.buffers[def.ID]; ok {
		return buf
	}
	buf = newOpBuffer(def.ID, def.Name, m.backend, m.logger, m.onError)
	m.buffers[def.ID] = buf
	return buf
}

func (m *QueueManager) flushLoop() {
	defer close(m.flushDone)

	ticker := time.NewTicker(m.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.flushStop:
			return
		case <-ticker.C:
			m.Flush(context.Background())
		}
	}
}
