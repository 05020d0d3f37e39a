// Package orchestrator drives one build from trigger to terminal state.
//
// The control flow is a small state machine: Triggering -> Polling ->
// {Succeeded, Failed, Canceled}. The only suspension point is the wait
// between status polls, so cancellation comes straight from the caller's
// context; the orchestrator imposes no deadline of its own and relies on the
// CI job timeout to bound total wait time.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ucb-agent/src/events"
	"ucb-agent/src/logger"
	"ucb-agent/src/unitycloud"
)

// State of the build orchestration.
type State int

const (
	StateTriggering State = iota
	StatePolling
	StateSucceeded
	StateFailed
	StateCanceled
)

func (s State) String() string {
	switch s {
	case StateTriggering:
		return "triggering"
	case StatePolling:
		return "polling"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateCanceled:
		return "canceled"
	}
	return "unknown"
}

// DefaultMaxTransientFailures is how many consecutive transport failures the
// poll loop tolerates before giving up. The counter resets on any successful
// fetch so the loop rides out blips during long builds.
const DefaultMaxTransientFailures = 6

// BuildFailedError reports a build that reached a terminal failure state. The
// build is not re-triggered; the run exits non-zero.
type BuildFailedError struct {
	ProjectID   string
	TargetID    string
	BuildNumber int
	Status      string
}

func (e *BuildFailedError) Error() string {
	return fmt.Sprintf("build %s/%s/%d failed with status: %s", e.ProjectID, e.TargetID, e.BuildNumber, e.Status)
}

// Progress is delivered to the OnProgress callback after every status fetch.
type Progress struct {
	State       State
	Status      string
	BuildNumber int
	Polls       int
	Elapsed     time.Duration
}

// Options configures an Orchestrator.
type Options struct {
	Client    *unitycloud.Client
	ProjectID string
	TargetID  string
	// Interval is the wait between status polls.
	Interval time.Duration
	Logger   logger.Logger
	// Publisher receives a BuildEvent on every observed status change.
	// Defaults to the null publisher.
	Publisher events.Publisher
	// OnProgress, when set, is called after every status fetch. Used by the
	// watch TUI.
	OnProgress func(Progress)
	// MaxTransientFailures overrides DefaultMaxTransientFailures when > 0.
	MaxTransientFailures int
}

// Orchestrator triggers and polls a single build.
type Orchestrator struct {
	client        *unitycloud.Client
	projectID     string
	targetID      string
	interval      time.Duration
	log           logger.Logger
	publisher     events.Publisher
	onProgress    func(Progress)
	maxTransient  int
	triggerCommit string
}

// New creates an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("orchestrator requires a client")
	}
	if opts.ProjectID == "" || opts.TargetID == "" {
		return nil, fmt.Errorf("orchestrator requires project and target ids")
	}
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("orchestrator requires a positive polling interval")
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewConsoleLogger()
	}
	if opts.Publisher == nil {
		opts.Publisher = events.NewNullPublisher()
	}
	maxTransient := opts.MaxTransientFailures
	if maxTransient <= 0 {
		maxTransient = DefaultMaxTransientFailures
	}
	return &Orchestrator{
		client:       opts.Client,
		projectID:    opts.ProjectID,
		targetID:     opts.TargetID,
		interval:     opts.Interval,
		log:          opts.Logger,
		publisher:    opts.Publisher,
		onProgress:   opts.OnProgress,
		maxTransient: maxTransient,
	}, nil
}

// Run drives a build to a terminal state and returns its final metadata.
//
// When existingBuildNumber >= 0 that build is polled directly and no build is
// triggered. Otherwise a new build is started with the given options. A
// terminal failure or cancellation returns *BuildFailedError together with
// the final build metadata, so callers can still record the outcome.
func (o *Orchestrator) Run(ctx context.Context, existingBuildNumber int, trigger unitycloud.StartBuildOptions) (*unitycloud.Build, error) {
	o.triggerCommit = trigger.Commit

	buildNumber := existingBuildNumber
	lastStatus := ""
	if buildNumber >= 0 {
		o.log.Info("Using existing build %s/%s/%d...", o.projectID, o.targetID, buildNumber)
	} else {
		o.log.Info("Creating a build of %s on target %s (clean=%v)...", o.projectID, o.targetID, trigger.Clean)
		build, err := o.client.StartBuild(ctx, o.projectID, o.targetID, trigger)
		if err != nil {
			return nil, err
		}
		buildNumber = build.Number
		o.log.Info("Build %d created successfully!", buildNumber)
		o.publishStatus(ctx, buildNumber, unitycloud.StatusQueued)
		lastStatus = unitycloud.StatusQueued
	}

	return o.poll(ctx, buildNumber, lastStatus)
}

// poll fetches build status at a fixed interval until a terminal state.
// Transient transport failures are retried with the interval as the natural
// backoff; anything else aborts.
func (o *Orchestrator) poll(ctx context.Context, buildNumber int, lastStatus string) (*unitycloud.Build, error) {
	start := time.Now()
	polls := 0
	transientFailures := 0

	for {
		build, err := o.client.GetBuild(ctx, o.projectID, o.targetID, buildNumber)
		if err != nil {
			if !errors.Is(err, unitycloud.ErrTransport) {
				return nil, err
			}
			transientFailures++
			if transientFailures >= o.maxTransient {
				return nil, fmt.Errorf("giving up after %d consecutive transport failures: %w", transientFailures, err)
			}
			o.log.Info("Transport failure fetching build status (%d/%d tries). Waiting %s...",
				transientFailures, o.maxTransient, o.interval)
			if err := o.sleep(ctx); err != nil {
				return nil, err
			}
			continue
		}
		transientFailures = 0
		polls++

		if build.Status != lastStatus {
			o.publishStatus(ctx, buildNumber, build.Status)
			lastStatus = build.Status
		}
		o.reportProgress(build, polls, time.Since(start))

		switch {
		case unitycloud.IsSuccessStatus(build.Status):
			o.log.Info("Build %s/%s/%d completed successfully; total=%.0fs working=%.0fs",
				o.projectID, o.targetID, buildNumber, build.TotalTimeInSeconds, build.WorkingTimeInSeconds)
			return build, nil

		case unitycloud.IsFailureStatus(build.Status):
			o.log.Info("Build %s/%s/%d reached terminal status %s", o.projectID, o.targetID, buildNumber, build.Status)
			return build, &BuildFailedError{
				ProjectID:   o.projectID,
				TargetID:    o.targetID,
				BuildNumber: buildNumber,
				Status:      build.Status,
			}

		default:
			o.log.Info("Build not finished (%s)... checkout=%.0fs working=%.0fs",
				build.Status, build.CheckoutTimeInSeconds, build.WorkingTimeInSeconds)
		}

		if err := o.sleep(ctx); err != nil {
			return nil, err
		}
	}
}

// sleep waits one polling interval, or returns early when the context is
// canceled (the CI runner killing the job).
func (o *Orchestrator) sleep(ctx context.Context) error {
	select {
	case <-time.After(o.interval):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) reportProgress(build *unitycloud.Build, polls int, elapsed time.Duration) {
	if o.onProgress == nil {
		return
	}
	state := StatePolling
	switch {
	case unitycloud.IsSuccessStatus(build.Status):
		state = StateSucceeded
	case unitycloud.IsCanceledStatus(build.Status):
		state = StateCanceled
	case unitycloud.IsFailureStatus(build.Status):
		state = StateFailed
	}
	o.onProgress(Progress{
		State:       state,
		Status:      build.Status,
		BuildNumber: build.Number,
		Polls:       polls,
		Elapsed:     elapsed,
	})
}

// publishStatus emits a build event; publishing failures are logged and
// swallowed, events are best effort.
func (o *Orchestrator) publishStatus(ctx context.Context, buildNumber int, status string) {
	event := events.BuildEvent{
		OrgID:       o.client.OrgID(),
		ProjectID:   o.projectID,
		TargetID:    o.targetID,
		BuildNumber: buildNumber,
		Status:      status,
		Commit:      o.triggerCommit,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	if err := o.publisher.Publish(ctx, event); err != nil {
		o.log.Error("Failed to publish build event: %v", err)
	}
}
