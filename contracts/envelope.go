package contracts

// Delivery is the envelope a queue backend hands over for a received message.
// The backend creates it on receive; the worker either deletes the message
// (ack), lets its visibility window expire (implicit nack and redelivery), or
// leaves it to the redrive policy once the receive count is exhausted.
type Delivery struct {
	// ID is the backend-assigned message identifier.
	ID string

	// Body is the opaque encoded message payload.
	Body []byte

	// ReceiptHandle is the opaque token used to ack, extend or nack
	// this particular receive of the message.
	ReceiptHandle string

	// ReceiveCount is the approximate number of times the message has
	// been delivered, including this delivery.
	ReceiveCount int

	// Attributes carries backend message attributes such as retry markers.
	Attributes map[string]string
}
