// Package events publishes build lifecycle events so other systems (metrics
// collectors, chat notifiers) can follow build progress without polling the
// service themselves.
package events

import "context"

// TopicBuildStatus is the topic build status transitions are published to.
const TopicBuildStatus = "ucb.build.status"

// BuildEvent is one observed status transition of a build.
type BuildEvent struct {
	OrgID       string `json:"org_id"`
	ProjectID   string `json:"project_id"`
	TargetID    string `json:"target_id"`
	BuildNumber int    `json:"build_number"`
	Status      string `json:"status"`
	Commit      string `json:"commit,omitempty"`
	Timestamp   string `json:"timestamp"`
}

// Key returns the partition key, so events of one target stay ordered.
func (e BuildEvent) Key() string {
	return e.ProjectID + "/" + e.TargetID
}

// Publisher abstracts event publishing. Implementations: NullPublisher,
// InMemoryPublisher (tests), RedpandaPublisher (Kafka-compatible brokers).
type Publisher interface {
	Publish(ctx context.Context, event BuildEvent) error
	Close() error
}

// NullPublisher discards all events. Used when no broker is configured.
type NullPublisher struct{}

func NewNullPublisher() *NullPublisher {
	return &NullPublisher{}
}

func (p *NullPublisher) Publish(ctx context.Context, event BuildEvent) error { return nil }
func (p *NullPublisher) Close() error                                        { return nil }
