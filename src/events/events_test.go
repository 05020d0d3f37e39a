package events

import (
	"context"
	"testing"
)

func TestInMemoryPublisher(t *testing.T) {
	pub := NewInMemoryPublisher()

	first := BuildEvent{ProjectID: "my-game", TargetID: "ios-main", BuildNumber: 3, Status: "queued"}
	second := BuildEvent{ProjectID: "my-game", TargetID: "ios-main", BuildNumber: 3, Status: "success"}

	if err := pub.Publish(context.Background(), first); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := pub.Publish(context.Background(), second); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	got := pub.Events()
	if len(got) != 2 {
		t.Fatalf("Events() len = %d, want 2", len(got))
	}
	if got[0].Status != "queued" || got[1].Status != "success" {
		t.Errorf("events out of order: %+v", got)
	}
}

func TestBuildEvent_Key(t *testing.T) {
	event := BuildEvent{ProjectID: "my-game", TargetID: "ios-main"}
	if event.Key() != "my-game/ios-main" {
		t.Errorf("Key() = %q, want my-game/ios-main", event.Key())
	}
}

func TestNullPublisher(t *testing.T) {
	pub := NewNullPublisher()
	if err := pub.Publish(context.Background(), BuildEvent{}); err != nil {
		t.Errorf("Publish() error = %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestNewRedpandaPublisher_RequiresBrokers(t *testing.T) {
	if _, err := NewRedpandaPublisher(nil); err == nil {
		t.Error("NewRedpandaPublisher() expected error for empty broker list")
	}
}
