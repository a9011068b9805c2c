// Package contracts provides the core message types and interfaces for the relay messaging server.
//
// This package defines the contracts for messages that flow through the system:
//   - Message: Base interface for all messages
//   - BaseMessage: Embeddable implementation with generated IDs and timestamps
//   - Delivery: The transport envelope a backend hands to a worker
//   - ErrorReply: A failure response suitable for publishing to an out queue
//
// All message types are designed to be serializable so that producers and
// consumers written against different runtimes can interoperate.
package contracts
