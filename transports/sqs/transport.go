// Package sqs implements the messaging.QueueBackend capability on top of
// Amazon SQS using the AWS SDK v2.
package sqs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/relaymq/relay-go/contracts"
	"github.com/relaymq/relay-go/messaging"
)

// redrivePolicy is the SQS wire format for a redrive policy attribute
type redrivePolicy struct {
	DeadLetterTargetArn string `json:"deadLetterTargetArn"`
	MaxReceiveCount     string `json:"maxReceiveCount"`
}

// Backend is a messaging.QueueBackend over Amazon SQS. Queue IDs are queue
// URLs. The SQS client is stateless and safe to share across workers.
type Backend struct {
	client *awssqs.Client
	logger *slog.Logger
}

// BackendOption configures the Backend
type BackendOption func(*Backend)

// WithBackendLogger sets the logger
func WithBackendLogger(logger *slog.Logger) BackendOption {
	return func(b *Backend) {
		b.logger = logger
	}
}

// NewBackend creates a backend around an SQS client
func NewBackend(client *awssqs.Client, options ...BackendOption) *Backend {
	b := &Backend{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// CreateQueue implements messaging.QueueBackend
func (b *Backend) CreateQueue(ctx context.Context, name string, attrs messaging.QueueAttributes) (messaging.QueueID, error) {
	attributes := map[string]string{
		string(types.QueueAttributeNameVisibilityTimeout):             strconv.Itoa(attrs.VisibilityTimeout),
		string(types.QueueAttributeNameReceiveMessageWaitTimeSeconds): strconv.Itoa(attrs.ReceiveWaitTime),
	}

	if attrs.Redrive != nil {
		policy, err := redriveAttribute(attrs.Redrive)
		if err != nil {
			return "", err
		}
		attributes[string(types.QueueAttributeNameRedrivePolicy)] = policy
	}

	out, err := b.client.CreateQueue(ctx, &awssqs.CreateQueueInput{
		QueueName:  aws.String(name),
		Attributes: attributes,
	})
	if err != nil {
		return "", fmt.Errorf("sqs: failed to create queue %s: %w", name, err)
	}

	b.logger.Info("sqs queue created", "queue", name, "url", aws.ToString(out.QueueUrl))
	return messaging.QueueID(aws.ToString(out.QueueUrl)), nil
}

// LookupQueue implements messaging.QueueBackend. A missing queue is
// reported via the boolean, not as an error.
func (b *Backend) LookupQueue(ctx context.Context, name string) (messaging.QueueID, bool, error) {
	out, err := b.client.GetQueueUrl(ctx, &awssqs.GetQueueUrlInput{
		QueueName: aws.String(name),
	})
	if err != nil {
		var notFound *types.QueueDoesNotExist
		if errors.As(err, &notFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("sqs: failed to look up queue %s: %w", name, err)
	}
	return messaging.QueueID(aws.ToString(out.QueueUrl)), true, nil
}

// GetQueueInfo implements messaging.QueueBackend
func (b *Backend) GetQueueInfo(ctx context.Context, id messaging.QueueID) (messaging.QueueInfo, error) {
	out, err := b.client.GetQueueAttributes(ctx, &awssqs.GetQueueAttributesInput{
		QueueUrl: aws.String(string(id)),
		AttributeNames: []types.QueueAttributeName{
			types.QueueAttributeNameQueueArn,
			types.QueueAttributeNameVisibilityTimeout,
			types.QueueAttributeNameReceiveMessageWaitTimeSeconds,
		},
	})
	if err != nil {
		return messaging.QueueInfo{}, fmt.Errorf("sqs: failed to read attributes for %s: %w", id, err)
	}

	info := messaging.QueueInfo{
		ARN: out.Attributes[string(types.QueueAttributeNameQueueArn)],
	}
	if v, err := strconv.Atoi(out.Attributes[string(types.QueueAttributeNameVisibilityTimeout)]); err == nil {
		info.VisibilityTimeout = v
	}
	if v, err := strconv.Atoi(out.Attributes[string(types.QueueAttributeNameReceiveMessageWaitTimeSeconds)]); err == nil {
		info.ReceiveWaitTime = v
	}
	return info, nil
}

// Send implements messaging.QueueBackend
func (b *Backend) Send(ctx context.Context, id messaging.QueueID, body []byte, attrs map[string]string) error {
	_, err := b.client.SendMessage(ctx, &awssqs.SendMessageInput{
		QueueUrl:          aws.String(string(id)),
		MessageBody:       aws.String(string(body)),
		MessageAttributes: toMessageAttributes(attrs),
	})
	if err != nil {
		return fmt.Errorf("sqs: failed to send to %s: %w", id, err)
	}
	return nil
}

// SendBatch implements messaging.QueueBackend
func (b *Backend) SendBatch(ctx context.Context, id messaging.QueueID, entries []messaging.SendEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := make([]types.SendMessageBatchRequestEntry, len(entries))
	for i, entry := range entries {
		batch[i] = types.SendMessageBatchRequestEntry{
			Id:                aws.String(strconv.Itoa(i)),
			MessageBody:       aws.String(string(entry.Body)),
			MessageAttributes: toMessageAttributes(entry.Attributes),
		}
	}

	out, err := b.client.SendMessageBatch(ctx, &awssqs.SendMessageBatchInput{
		QueueUrl: aws.String(string(id)),
		Entries:  batch,
	})
	if err != nil {
		return fmt.Errorf("sqs: failed to batch-send to %s: %w", id, err)
	}
	if len(out.Failed) > 0 {
		first := out.Failed[0]
		return fmt.Errorf("sqs: %d/%d batch entries failed on %s, first: %s %s",
			len(out.Failed), len(entries), id, aws.ToString(first.Code), aws.ToString(first.Message))
	}
	return nil
}

// ReceiveBatch implements messaging.QueueBackend. maxWait is rounded down
// to whole seconds as SQS long polling requires.
func (b *Backend) ReceiveBatch(ctx context.Context, id messaging.QueueID, maxWait time.Duration, maxCount int) ([]contracts.Delivery, error) {
	out, err := b.client.ReceiveMessage(ctx, &awssqs.ReceiveMessageInput{
		QueueUrl:            aws.String(string(id)),
		MaxNumberOfMessages: int32(maxCount),
		WaitTimeSeconds:     int32(maxWait / time.Second),
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
		},
		MessageAttributeNames: []string{"All"},
	})
	if err != nil {
		return nil, fmt.Errorf("sqs: failed to receive from %s: %w", id, err)
	}

	deliveries := make([]contracts.Delivery, 0, len(out.Messages))
	for _, msg := range out.Messages {
		delivery := contracts.Delivery{
			ID:            aws.ToString(msg.MessageId),
			Body:          []byte(aws.ToString(msg.Body)),
			ReceiptHandle: aws.ToString(msg.ReceiptHandle),
			Attributes:    make(map[string]string, len(msg.Attributes)+len(msg.MessageAttributes)),
		}
		for k, v := range msg.Attributes {
			delivery.Attributes[k] = v
		}
		for k, v := range msg.MessageAttributes {
			delivery.Attributes[k] = aws.ToString(v.StringValue)
		}
		if count, err := strconv.Atoi(msg.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)]); err == nil {
			delivery.ReceiveCount = count
		}
		deliveries = append(deliveries, delivery)
	}
	return deliveries, nil
}

// Delete implements messaging.QueueBackend
func (b *Backend) Delete(ctx context.Context, id messaging.QueueID, receiptHandle string) error {
	_, err := b.client.DeleteMessage(ctx, &awssqs.DeleteMessageInput{
		QueueUrl:      aws.String(string(id)),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("sqs: failed to delete from %s: %w", id, err)
	}
	return nil
}

// DeleteBatch implements messaging.QueueBackend
func (b *Backend) DeleteBatch(ctx context.Context, id messaging.QueueID, receiptHandles []string) error {
	if len(receiptHandles) == 0 {
		return nil
	}

	batch := make([]types.DeleteMessageBatchRequestEntry, len(receiptHandles))
	for i, handle := range receiptHandles {
		batch[i] = types.DeleteMessageBatchRequestEntry{
			Id:            aws.String(strconv.Itoa(i)),
			ReceiptHandle: aws.String(handle),
		}
	}

	out, err := b.client.DeleteMessageBatch(ctx, &awssqs.DeleteMessageBatchInput{
		QueueUrl: aws.String(string(id)),
		Entries:  batch,
	})
	if err != nil {
		return fmt.Errorf("sqs: failed to batch-delete from %s: %w", id, err)
	}
	if len(out.Failed) > 0 {
		first := out.Failed[0]
		return fmt.Errorf("sqs: %d/%d delete entries failed on %s, first: %s %s",
			len(out.Failed), len(receiptHandles), id, aws.ToString(first.Code), aws.ToString(first.Message))
	}
	return nil
}

// ChangeVisibility implements messaging.QueueBackend
func (b *Backend) ChangeVisibility(ctx context.Context, id messaging.QueueID, receiptHandle string, timeout int) error {
	_, err := b.client.ChangeMessageVisibility(ctx, &awssqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(string(id)),
		ReceiptHandle:     aws.String(receiptHandle),
		VisibilityTimeout: int32(timeout),
	})
	if err != nil {
		return fmt.Errorf("sqs: failed to change visibility on %s: %w", id, err)
	}
	return nil
}

// Close implements messaging.QueueBackend. The SQS client holds no
// long-lived connections of its own.
func (b *Backend) Close() error {
	return nil
}

// redriveAttribute renders the redrive policy attribute value. SQS only
// accepts maxReceiveCount between 1 and 1000, so a zero retry budget still
// maps to one delivery before the dead-letter queue.
func redriveAttribute(redrive *messaging.RedrivePolicy) (string, error) {
	count := redrive.MaxReceiveCount
	if count < 1 {
		count = 1
	}
	policy, err := json.Marshal(redrivePolicy{
		DeadLetterTargetArn: redrive.TargetARN,
		MaxReceiveCount:     strconv.Itoa(count),
	})
	if err != nil {
		return "", fmt.Errorf("sqs: failed to marshal redrive policy: %w", err)
	}
	return string(policy), nil
}

func toMessageAttributes(attrs map[string]string) map[string]types.MessageAttributeValue {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]types.MessageAttributeValue, len(attrs))
	for k, v := range attrs {
		out[k] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(v),
		}
	}
	return out
}
