package messaging

// Queue role suffixes. External tooling and alerting key off these exact
// names, so the scheme must stay stable across releases.
const (
	dlqSuffix      = "_dlq"
	outSuffix      = "_out"
	prioritySuffix = "_priority"
)

// QueueNameSet holds the deterministic queue names for one message type
type QueueNameSet struct {
	In       string
	Priority string
	Out      string
	Dlq      string
}

// QueueNamesFor derives the queue names for a message type. The derivation
// is pure, so provisioning stays idempotent across process restarts.
func QueueNamesFor(messageType string) QueueNameSet {
	return QueueNameSet{
		In:       messageType,
		Priority: messageType + prioritySuffix,
		Out:      messageType + outSuffix,
		Dlq:      messageType + dlqSuffix,
	}
}
