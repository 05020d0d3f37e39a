package events

import (
	"context"
	"sync"
)

// InMemoryPublisher records events in memory. Used in tests.
type InMemoryPublisher struct {
	mu     sync.Mutex
	events []BuildEvent
}

func NewInMemoryPublisher() *InMemoryPublisher {
	return &InMemoryPublisher{}
}

// Publish appends the event to the in-memory log.
func (p *InMemoryPublisher) Publish(ctx context.Context, event BuildEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events returns a copy of everything published so far.
func (p *InMemoryPublisher) Events() []BuildEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]BuildEvent, len(p.events))
	copy(out, p.events)
	return out
}

func (p *InMemoryPublisher) Close() error {
	return nil
}
