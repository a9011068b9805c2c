package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/relaymq/relay-go/contracts"
)

// WorkerState is the lifecycle state of a worker
type WorkerState int32

const (
	WorkerCreated WorkerState = iota
	WorkerRunning
	WorkerStopping
	WorkerStopped
)

// String returns the state name
func (s WorkerState) String() string {
	switch s {
	case WorkerCreated:
		return "created"
	case WorkerRunning:
		return "running"
	case WorkerStopping:
		return "stopping"
	case WorkerStopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// receiveErrorBackoff bounds the loop rate when the backend itself is
// failing, since a failed receive returns without blocking.
const receiveErrorBackoff = time.Second

// Worker is one goroutine-affine processing loop bound to exactly one
// queue. It pulls, decodes, filters and dispatches messages, acking on
// success and leaving failures to visibility expiry so that retry state
// stays in the backend.
type Worker struct {
	queue          QueueDefinition
	info           *WorkerInfo
	factory        *MessageFactory
	outSender      *QueueSender
	requestFilter  MessageFilter
	responseFilter MessageFilter
	logger         *slog.Logger

	state  atomic.Int32
	stopCh chan struct{}
	done   chan struct{}
}

func newWorker(queue QueueDefinition, info *WorkerInfo, factory *MessageFactory, outSender *QueueSender, requestFilter, responseFilter MessageFilter) *Worker {
	return &Worker{
		queue:          queue,
		info:           info,
		factory:        factory,
		outSender:      outSender,
		requestFilter:  requestFilter,
		responseFilter: responseFilter,
		logger: factory.logger.With(
			"queue", queue.Name,
			"messageType", info.MessageType,
		),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Queue returns the queue this worker is bound to
func (w *Worker) Queue() QueueDefinition {
	return w.queue
}

// State returns the worker's lifecycle state
func (w *Worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

// Start launches the worker goroutine. Starting a worker that is not in the
// created state is a no-op.
func (w *Worker) Start(ctx context.Context) {
	if !w.state.CompareAndSwap(int32(WorkerCreated), int32(WorkerRunning)) {
		return
	}
	go w.run(ctx)
}

// Stop requests the worker to finish its in-flight message and exit, and
// waits for it to do so. A message being processed is never abandoned.
func (w *Worker) Stop() {
	if w.state.CompareAndSwap(int32(WorkerRunning), int32(WorkerStopping)) {
		close(w.stopCh)
		<-w.done
		return
	}
	if w.state.CompareAndSwap(int32(WorkerCreated), int32(WorkerStopped)) {
		return
	}
	if WorkerState(w.state.Load()) == WorkerStopping {
		<-w.done
	}
}

func (w *Worker) run(ctx context.Context) {
	defer func() {
		w.state.Store(int32(WorkerStopped))
		close(w.done)
		w.logger.Info("worker stopped")
	}()

	w.logger.Info("worker started", "receiveWaitTime", w.info.ReceiveWaitTime)

	wait := time.Duration(w.info.ReceiveWaitTime) * time.Second

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		deliveries, err := w.factory.queues.Receive(ctx, w.queue, wait, 1)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.factory.ReportError(err)
			select {
			case <-w.stopCh:
				return
			case <-time.After(receiveErrorBackoff):
			}
			continue
		}

		// Empty receive just means the long poll timed out.
		if len(deliveries) == 0 {
			continue
		}

		w.process(ctx, deliveries[0])
	}
}

// process runs one delivery through decode, filters and the handler
func (w *Worker) process(ctx context.Context, delivery contracts.Delivery) {
	msg, err := w.factory.codec.Decode(delivery.Body, w.info.MessageType)
	if err != nil {
		w.fail(ctx, delivery, nil, err)
		return
	}

	if w.requestFilter != nil {
		msg, err = w.requestFilter(ctx, msg)
		if err != nil {
			w.fail(ctx, delivery, msg, err)
			return
		}
	}

	response, err := w.info.Handler.Handle(ctx, msg)
	if err != nil {
		w.fail(ctx, delivery, msg, err)
		return
	}

	if response != nil && w.outSender != nil {
		if w.responseFilter != nil {
			response, err = w.responseFilter(ctx, response)
			if err != nil {
				w.fail(ctx, delivery, msg, err)
				return
			}
		}
		if response != nil {
			if response.GetCorrelationID() == "" {
				response.SetCorrelationID(msg.GetID())
			}
			if err := w.outSender.Send(ctx, response); err != nil {
				// Leave the message to redelivery rather than ack a
				// success whose response was lost.
				w.factory.ReportError(err)
				return
			}
		}
	}

	if err := w.factory.queues.Delete(ctx, w.queue, delivery.ReceiptHandle, !w.info.DisableBuffering); err != nil {
		w.factory.ReportError(err)
		return
	}

	w.logger.Debug("message processed", "messageId", msg.GetID(), "receiveCount", delivery.ReceiveCount)
}

// fail records a processing failure. The message is deliberately not
// deleted: visibility expiry redelivers it, and once the receive count
// exceeds the retry budget the redrive policy moves it to the DLQ.
func (w *Worker) fail(ctx context.Context, delivery contracts.Delivery, msg contracts.Message, cause error) {
	handlerErr := &HandlerError{
		MessageType:  w.info.MessageType,
		MessageID:    delivery.ID,
		Queue:        w.queue.Name,
		ReceiveCount: delivery.ReceiveCount,
		RetryCount:   w.info.RetryCount,
		Err:          cause,
	}

	exhausted := delivery.ReceiveCount >= w.info.RetryCount

	w.logger.Warn("message processing failed",
		"messageId", delivery.ID,
		"receiveCount", delivery.ReceiveCount,
		"retryCount", w.info.RetryCount,
		"exhausted", exhausted,
		"error", cause,
	)

	if w.info.ExceptionHandler != nil {
		w.info.ExceptionHandler(ctx, delivery, msg, handlerErr)
		if !exhausted {
			return
		}
	}

	w.factory.ReportError(handlerErr)
}
