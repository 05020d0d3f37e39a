package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"ucb-agent/src/orchestrator"
)

func TestWatchModel_InitialState(t *testing.T) {
	model := NewWatchModel("my-game", "ios")

	if model.done {
		t.Error("expected not done initially")
	}

	view := model.View()
	if !strings.Contains(view, "my-game / ios") {
		t.Errorf("expected view to name the project and target, got: %s", view)
	}
	if !strings.Contains(view, "waiting for build") {
		t.Errorf("expected waiting line before any progress, got: %s", view)
	}
}

func TestWatchModel_Progress(t *testing.T) {
	model := NewWatchModel("my-game", "ios")

	updated, _ := model.Update(ProgressMsg(orchestrator.Progress{
		State:       orchestrator.StatePolling,
		Status:      "started",
		BuildNumber: 12,
		Polls:       3,
		Elapsed:     2 * time.Minute,
	}))

	view := updated.(WatchModel).View()
	if !strings.Contains(view, "started") {
		t.Errorf("expected view to contain status, got: %s", view)
	}
	if !strings.Contains(view, "#12") {
		t.Errorf("expected view to contain build number, got: %s", view)
	}
	if !strings.Contains(view, "2m0s") {
		t.Errorf("expected view to contain elapsed time, got: %s", view)
	}
}

func TestWatchModel_Done(t *testing.T) {
	model := NewWatchModel("my-game", "ios")

	updated, cmd := model.Update(DoneMsg{})
	if cmd == nil {
		t.Fatal("expected quit command on DoneMsg")
	}

	m := updated.(WatchModel)
	if !m.done {
		t.Error("expected model to be done")
	}
	if !strings.Contains(m.View(), "succeeded") {
		t.Errorf("expected success line, got: %s", m.View())
	}
}

func TestWatchModel_DoneWithError(t *testing.T) {
	model := NewWatchModel("my-game", "ios")

	updated, _ := model.Update(DoneMsg{Err: errors.New("build 12 failed with status: failure")})

	m := updated.(WatchModel)
	if m.Err() == nil {
		t.Fatal("expected Err() to report the failure")
	}
	if !strings.Contains(m.View(), "failed with status: failure") {
		t.Errorf("expected failure line, got: %s", m.View())
	}
}
