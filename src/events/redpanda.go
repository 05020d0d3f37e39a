// Package events provides the Redpanda/Kafka publisher implementation.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"
)

// RedpandaPublisher publishes build events to Kafka-compatible brokers using
// franz-go.
type RedpandaPublisher struct {
	client *kgo.Client
	mu     sync.Mutex
	closed bool
}

// NewRedpandaPublisher creates a publisher connected to the given brokers
// (e.g. ["localhost:19092"]).
func NewRedpandaPublisher(brokers []string) (*RedpandaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker address is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka client: %w", err)
	}

	return &RedpandaPublisher{client: client}, nil
}

// Publish sends the event to the build status topic, keyed by project/target
// so per-target ordering holds.
func (p *RedpandaPublisher) Publish(ctx context.Context, event BuildEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("publisher is closed")
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	record := &kgo.Record{
		Topic: TopicBuildStatus,
		Key:   []byte(event.Key()),
		Value: value,
	}

	// Synchronous produce; build polling is slow enough that the round trip
	// does not matter.
	results := p.client.ProduceSync(ctx, record)
	if err := results.FirstErr(); err != nil {
		return fmt.Errorf("failed to produce event: %w", err)
	}

	return nil
}

// Close shuts down the underlying client.
func (p *RedpandaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	p.client.Close()
	return nil
}
