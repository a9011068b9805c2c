package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/relaymq/relay-go/contracts"
	"github.com/relaymq/relay-go/serialization"
)

// serverDefaults are the per-registration settings captured at registration
// time. Captured, not referenced: a registration never sees a default value
// mutated after it was made.
type serverDefaults struct {
	threadCount       int
	retryCount        int
	visibilityTimeout int
	receiveWaitTime   int
	disableBuffering  bool
}

// Server orchestrates handler registration, queue topology creation and the
// worker pools. It exclusively owns the handler map and worker list.
type Server struct {
	factory *MessageFactory
	logger  *slog.Logger

	defaults       serverDefaults
	requestFilter  MessageFilter
	responseFilter MessageFilter

	// nil whitelist means every type; empty means none
	responseTypes map[string]struct{}
	priorityTypes map[string]struct{}

	mu          sync.Mutex
	handlers    map[string]*WorkerInfo
	order       []string
	workers     []*Worker
	initialized bool
	started     bool
	stopped     bool
}

// ServerOption configures the Server
type ServerOption func(*Server)

// WithServerLogger sets the logger
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithServerRetryCount sets the default retry budget for registrations
func WithServerRetryCount(count int) ServerOption {
	return func(s *Server) {
		s.defaults.retryCount = count
	}
}

// WithServerVisibilityTimeout sets the default visibility timeout, in seconds
func WithServerVisibilityTimeout(seconds int) ServerOption {
	return func(s *Server) {
		s.defaults.visibilityTimeout = seconds
	}
}

// WithServerReceiveWaitTime sets the default long-poll wait, in seconds
func WithServerReceiveWaitTime(seconds int) ServerOption {
	return func(s *Server) {
		s.defaults.receiveWaitTime = seconds
	}
}

// WithServerBufferingDisabled disables client-side buffering by default
func WithServerBufferingDisabled(disabled bool) ServerOption {
	return func(s *Server) {
		s.defaults.disableBuffering = disabled
	}
}

// WithRequestFilter sets the transform applied to every inbound message
// before handler dispatch. The filter is invoked concurrently from worker
// goroutines and must be thread-safe.
func WithRequestFilter(filter MessageFilter) ServerOption {
	return func(s *Server) {
		s.requestFilter = filter
	}
}

// WithResponseFilter sets the transform applied to every handler response
// before publication
func WithResponseFilter(filter MessageFilter) ServerOption {
	return func(s *Server) {
		s.responseFilter = filter
	}
}

// WithResponseTypes restricts out-queue provisioning to the named types.
// Without this option every registered type gets an out queue.
func WithResponseTypes(types ...string) ServerOption {
	return func(s *Server) {
		s.responseTypes = make(map[string]struct{}, len(types))
		for _, t := range types {
			s.responseTypes[t] = struct{}{}
		}
	}
}

// WithPriorityTypes restricts priority-queue provisioning to the named
// types. Without this option every registered type gets a priority lane.
func WithPriorityTypes(types ...string) ServerOption {
	return func(s *Server) {
		s.priorityTypes = make(map[string]struct{}, len(types))
		for _, t := range types {
			s.priorityTypes[t] = struct{}{}
		}
	}
}

// NewServer creates a server on top of a message factory. Out-of-range
// defaults fail immediately with ArgumentOutOfRangeError.
func NewServer(factory *MessageFactory, options ...ServerOption) (*Server, error) {
	s := &Server{
		factory: factory,
		logger:  factory.logger,
		defaults: serverDefaults{
			threadCount:       DefaultThreadCount,
			retryCount:        factory.RetryCount(),
			visibilityTimeout: factory.Queues().DefaultVisibilityTimeout(),
			receiveWaitTime:   factory.Queues().DefaultReceiveWaitTime(),
			disableBuffering:  factory.Queues().BufferingDisabled(),
		},
		handlers: make(map[string]*WorkerInfo),
	}

	for _, opt := range options {
		opt(s)
	}

	if err := validateRetryCount(s.defaults.retryCount); err != nil {
		return nil, err
	}
	if err := validateVisibilityTimeout(s.defaults.visibilityTimeout); err != nil {
		return nil, err
	}
	if err := validateReceiveWaitTime(s.defaults.receiveWaitTime); err != nil {
		return nil, err
	}

	return s, nil
}

// Factory returns the shared message factory
func (s *Server) Factory() *MessageFactory {
	return s.factory
}

// RegisterHandler registers exactly one handler for a message type. Unset
// options inherit the server defaults as they are at this moment. The
// handler map is left unchanged when registration fails.
func (s *Server) RegisterHandler(messageType string, factory serialization.MessageFactory, handler MessageHandler, options ...HandlerOption) error {
	if messageType == "" {
		return ErrEmptyMessageType
	}
	if factory == nil {
		return ErrNilMessageFactory
	}
	if handler == nil {
		return ErrNilHandler
	}

	info := &WorkerInfo{
		MessageType:       messageType,
		Factory:           factory,
		Handler:           handler,
		ThreadCount:       s.defaults.threadCount,
		RetryCount:        s.defaults.retryCount,
		VisibilityTimeout: s.defaults.visibilityTimeout,
		ReceiveWaitTime:   s.defaults.receiveWaitTime,
		DisableBuffering:  s.defaults.disableBuffering,
		QueueNames:        QueueNamesFor(messageType),
	}

	for _, opt := range options {
		opt(info)
	}

	if err := info.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.handlers[messageType]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRegistration, messageType)
	}

	if err := s.factory.Registry().Register(messageType, factory); err != nil {
		return err
	}

	s.handlers[messageType] = info
	s.order = append(s.order, messageType)

	s.logger.Info("registered message handler",
		"messageType", messageType,
		"threadCount", info.ThreadCount,
		"retryCount", info.RetryCount,
		"visibilityTimeout", info.VisibilityTimeout,
		"receiveWaitTime", info.ReceiveWaitTime,
	)

	return nil
}

// Init provisions the queue topology and builds the worker pools. It is
// idempotent: a second call on an initialized server is a no-op. For every
// type the DLQ is created strictly first, since both the in queue and the
// priority queue redrive to it.
func (s *Server) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initLocked(ctx)
}

func (s *Server) initLocked(ctx context.Context) error {
	if s.initialized {
		return nil
	}

	queues := s.factory.Queues()

	// Built locally so a provisioning failure mid-loop leaves no workers
	// behind; a retried Init starts from an empty list.
	var workers []*Worker

	for _, messageType := range s.order {
		info := s.handlers[messageType]

		dlq, err := queues.CreateQueue(ctx, info.QueueNames.Dlq, info, "")
		if err != nil {
			return err
		}

		in, err := queues.CreateQueue(ctx, info.QueueNames.In, info, dlq.ARN)
		if err != nil {
			return err
		}

		var outSender *QueueSender
		if s.typeEnabled(s.responseTypes, messageType) {
			out, err := queues.CreateQueue(ctx, info.QueueNames.Out, info, "")
			if err != nil {
				return err
			}
			outSender = s.factory.Sender(out, !info.DisableBuffering)
		}

		for i := 0; i < info.ThreadCount; i++ {
			workers = append(workers, newWorker(in, info, s.factory, outSender, s.requestFilter, s.responseFilter))
		}

		if s.typeEnabled(s.priorityTypes, messageType) {
			priority, err := queues.CreateQueue(ctx, info.QueueNames.Priority, info, dlq.ARN)
			if err != nil {
				return err
			}
			for i := 0; i < info.ThreadCount; i++ {
				workers = append(workers, newWorker(priority, info, s.factory, outSender, s.requestFilter, s.responseFilter))
			}
		}
	}

	s.workers = workers
	s.initialized = true

	s.logger.Info("server initialized",
		"handlerCount", len(s.handlers),
		"workerCount", len(s.workers),
	)

	return nil
}

// typeEnabled applies whitelist semantics: nil means every type
func (s *Server) typeEnabled(whitelist map[string]struct{}, messageType string) bool {
	if whitelist == nil {
		return true
	}
	_, ok := whitelist[messageType]
	return ok
}

// Start initializes the topology if needed and starts all workers. The
// lifecycle is one-shot: workers cannot be restarted, so starting a server
// that has been stopped fails with ErrServerStopped.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrServerStopped
	}

	if err := s.initLocked(ctx); err != nil {
		return err
	}
	if s.started {
		return nil
	}

	for _, worker := range s.workers {
		worker.Start(ctx)
	}
	s.started = true

	s.logger.Info("server started", "workerCount", len(s.workers))
	return nil
}

// Stop signals every worker to finish its in-flight message and waits for
// all of them to exit
func (s *Server) Stop() {
	s.mu.Lock()
	workers := make([]*Worker, len(s.workers))
	copy(workers, s.workers)
	s.started = false
	s.stopped = true
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, worker := range workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			w.Stop()
		}(worker)
	}
	wg.Wait()

	s.logger.Info("server stopped", "workerCount", len(workers))
}

// Dispose stops all workers and disposes the message factory. Disposal
// failures are routed to the error sink, never returned.
func (s *Server) Dispose(ctx context.Context) {
	s.Stop()
	s.factory.Dispose(ctx)
}

// Workers returns the built workers (empty before Init)
func (s *Server) Workers() []*Worker {
	s.mu.Lock()
	defer s.mu.Unlock()
	workers := make([]*Worker, len(s.workers))
	copy(workers, s.workers)
	return workers
}

// Registration returns the registration record for a message type
func (s *Server) Registration(messageType string) (*WorkerInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.handlers[messageType]
	return info, ok
}

// Send enqueues a message onto its type's in queue. The server must be
// initialized so the queue definition is known.
func (s *Server) Send(ctx context.Context, msg contracts.Message) error {
	return s.send(ctx, msg, func(names QueueNameSet) string { return names.In })
}

// SendPriority enqueues a message onto its type's priority queue
func (s *Server) SendPriority(ctx context.Context, msg contracts.Message) error {
	return s.send(ctx, msg, func(names QueueNameSet) string { return names.Priority })
}

func (s *Server) send(ctx context.Context, msg contracts.Message, pick func(QueueNameSet) string) error {
	s.mu.Lock()
	initialized := s.initialized
	info, registered := s.handlers[msg.GetType()]
	s.mu.Unlock()

	if !initialized {
		return ErrNotInitialized
	}
	if !registered {
		return fmt.Errorf("%w: no handler for type %s", ErrUnknownQueue, msg.GetType())
	}

	def, ok := s.factory.Queues().Definition(pick(info.QueueNames))
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQueue, pick(info.QueueNames))
	}

	return s.factory.Sender(def, !info.DisableBuffering).Send(ctx, msg)
}
