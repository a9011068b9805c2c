// Copyright 2024 Relay Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package relay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/relaymq/relay-go/messaging"
	sqsTransport "github.com/relaymq/relay-go/transports/sqs"
)

// Client is the main entry point for relay-go. It connects a queue backend
// and assembles the message factory and server around it.
type Client struct {
	backend messaging.QueueBackend
	factory *messaging.MessageFactory
	server  *messaging.Server
}

// NewClient creates a client backed by Amazon SQS with default options
func NewClient(ctx context.Context, options ...ClientOption) (*Client, error) {
	return NewClientWithFactory(ctx, sqsTransport.NewConnectionFactory(), options...)
}

// NewClientWithFactory creates a client on top of any connection factory,
// which is how test doubles and alternative backends are injected
func NewClientWithFactory(ctx context.Context, connections messaging.ConnectionFactory, options ...ClientOption) (*Client, error) {
	cfg := &clientConfig{
		logger: slog.Default(),
	}
	for _, opt := range options {
		opt(cfg)
	}

	backend, err := connections.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("relay: failed to connect backend: %w", err)
	}

	factoryOpts := append([]messaging.MessageFactoryOption{
		messaging.WithFactoryLogger(cfg.logger),
	}, cfg.factoryOptions...)

	factory, err := messaging.NewMessageFactory(backend, factoryOpts...)
	if err != nil {
		return nil, err
	}

	serverOpts := append([]messaging.ServerOption{
		messaging.WithServerLogger(cfg.logger),
	}, cfg.serverOptions...)

	server, err := messaging.NewServer(factory, serverOpts...)
	if err != nil {
		return nil, err
	}

	return &Client{
		backend: backend,
		factory: factory,
		server:  server,
	}, nil
}

// Server returns the message server
func (c *Client) Server() *messaging.Server {
	return c.server
}

// Factory returns the shared message factory
func (c *Client) Factory() *messaging.MessageFactory {
	return c.factory
}

// Close stops all workers and disposes the factory and backend
func (c *Client) Close(ctx context.Context) {
	c.server.Dispose(ctx)
}

// clientConfig holds client configuration
type clientConfig struct {
	logger         *slog.Logger
	factoryOptions []messaging.MessageFactoryOption
	serverOptions  []messaging.ServerOption
}

// ClientOption configures the client
type ClientOption func(*clientConfig)

// WithLogger sets the logger for all components
func WithLogger(logger *slog.Logger) ClientOption {
	return func(cfg *clientConfig) {
		cfg.logger = logger
	}
}

// WithFactoryOptions forwards options to the message factory
func WithFactoryOptions(options ...messaging.MessageFactoryOption) ClientOption {
	return func(cfg *clientConfig) {
		cfg.factoryOptions = append(cfg.factoryOptions, options...)
	}
}

// WithServerOptions forwards options to the server
func WithServerOptions(options ...messaging.ServerOption) ClientOption {
	return func(cfg *clientConfig) {
		cfg.serverOptions = append(cfg.serverOptions, options...)
	}
}
