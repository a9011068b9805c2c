package sqs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/relaymq/relay-go/messaging"
)

// ConnectionFactory produces SQS-backed queue backends using the default
// AWS credential chain
type ConnectionFactory struct {
	region   string
	endpoint string
	logger   *slog.Logger
}

// ConnectionOption configures the ConnectionFactory
type ConnectionOption func(*ConnectionFactory)

// WithRegion overrides the AWS region from the environment
func WithRegion(region string) ConnectionOption {
	return func(f *ConnectionFactory) {
		f.region = region
	}
}

// WithEndpoint overrides the SQS endpoint, for local or self-hosted
// SQS-compatible services
func WithEndpoint(endpoint string) ConnectionOption {
	return func(f *ConnectionFactory) {
		f.endpoint = endpoint
	}
}

// WithConnectionLogger sets the logger passed to created backends
func WithConnectionLogger(logger *slog.Logger) ConnectionOption {
	return func(f *ConnectionFactory) {
		f.logger = logger
	}
}

// NewConnectionFactory creates a connection factory
func NewConnectionFactory(options ...ConnectionOption) *ConnectionFactory {
	f := &ConnectionFactory{
		logger: slog.Default(),
	}
	for _, opt := range options {
		opt(f)
	}
	return f
}

// Connect implements messaging.ConnectionFactory
func (f *ConnectionFactory) Connect(ctx context.Context) (messaging.QueueBackend, error) {
	var loadOpts []func(*config.LoadOptions) error
	if f.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(f.region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("sqs: failed to load AWS configuration: %w", err)
	}

	client := awssqs.NewFromConfig(cfg, func(o *awssqs.Options) {
		if f.endpoint != "" {
			o.BaseEndpoint = aws.String(f.endpoint)
		}
	})

	return NewBackend(client, WithBackendLogger(f.logger)), nil
}
