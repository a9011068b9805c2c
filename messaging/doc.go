// Package messaging provides the core of the relay managed message-queue
// server.
//
// The package implements the primary processing pipeline:
//   - QueueBackend: the capability interface the hosted queueing service
//     must provide (send, receive, delete, visibility, provisioning)
//   - QueueManager: idempotent queue topology provisioning with redrive
//     policies, plus buffered or unbuffered backend I/O
//   - MessageFactory: shared configuration, codec and error sink, with
//     flush-on-dispose semantics
//   - Worker: a goroutine-affine receive/decode/dispatch loop bound to a
//     single queue
//   - Server: handler registration, topology orchestration and lifecycle
//
// Retry state lives entirely in the backend: a failed message is never
// re-enqueued by the worker. Its visibility window expires, the backend
// redelivers it with an incremented receive count, and the redrive policy
// attached at provisioning time moves it to the dead-letter queue once the
// receive count exceeds the registered retry budget.
package messaging
