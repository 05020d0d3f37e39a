// Package pipeline runs the full build orchestration flow: diagnostics,
// target resolution, trigger and poll, then the optional artifact and share
// post-steps. The CLI is a thin wrapper around this package.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ucb-agent/src/artifact"
	"ucb-agent/src/config"
	"ucb-agent/src/events"
	"ucb-agent/src/gitref"
	"ucb-agent/src/githubactions"
	"ucb-agent/src/logger"
	"ucb-agent/src/orchestrator"
	"ucb-agent/src/store"
	"ucb-agent/src/target"
	"ucb-agent/src/unitycloud"
)

// Options configures a Pipeline.
type Options struct {
	Config *config.Config
	Logger logger.Logger
	// Client overrides the API client built from Config. Used by tests.
	Client *unitycloud.Client
	// Publisher receives build lifecycle events. Defaults to the null
	// publisher.
	Publisher events.Publisher
	// Store, when non-nil, records build outcomes.
	Store store.Store
	// Outputs receives the ARTIFACT_*/SHARE_URL values. Defaults to the
	// GitHub Actions output files.
	Outputs *githubactions.Outputs
	// OnProgress is passed through to the orchestrator (watch TUI).
	OnProgress func(orchestrator.Progress)
}

// Pipeline executes one orchestration run.
type Pipeline struct {
	cfg        *config.Config
	client     *unitycloud.Client
	log        logger.Logger
	publisher  events.Publisher
	store      store.Store
	outputs    *githubactions.Outputs
	onProgress func(orchestrator.Progress)
}

// New creates a Pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("pipeline requires a config")
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewConsoleLogger()
	}
	if opts.Client == nil {
		opts.Client = unitycloud.NewClient(opts.Config.APIKey, opts.Config.OrgID)
	}
	if opts.Publisher == nil {
		opts.Publisher = events.NewNullPublisher()
	}
	if opts.Outputs == nil {
		opts.Outputs = githubactions.NewOutputs(opts.Logger)
	}
	return &Pipeline{
		cfg:        opts.Config,
		client:     opts.Client,
		log:        opts.Logger,
		publisher:  opts.Publisher,
		store:      opts.Store,
		outputs:    opts.Outputs,
		onProgress: opts.OnProgress,
	}, nil
}

// Run executes the requested pipeline. Either the full sequence
// (trigger/reuse -> poll -> optional download -> optional share) completes,
// or an error is returned after the first unrecoverable step.
func (p *Pipeline) Run(ctx context.Context) error {
	cfg := p.cfg

	// Fail early when the output files are unwritable, not after a long build.
	if err := p.outputs.Verify(); err != nil {
		return err
	}

	// List visible projects first: it verifies credentials and shows users
	// the ids they might be looking for before anything else can fail.
	projects, err := p.listProjects(ctx)
	if err != nil {
		return err
	}

	if cfg.UseExistingBuildNumber >= 0 && cfg.ProjectID == "" {
		return fmt.Errorf("use_existing_build_number(%d) supplied, but missing required project_id", cfg.UseExistingBuildNumber)
	}

	if cfg.ProjectID != "" {
		if err := p.listBuildTargets(ctx, cfg.ProjectID); err != nil {
			return err
		}
	} else {
		for _, project := range projects {
			if err := p.listBuildTargets(ctx, project.ProjectID); err != nil {
				return err
			}
		}
		return fmt.Errorf("no project_id specified, don't know what to build/fetch")
	}

	if cfg.PrimaryBuildTarget == "" {
		return fmt.Errorf("primary_build_target is required")
	}

	ref, err := gitref.Resolve(cfg.BranchRef, cfg.HeadRef)
	if err != nil {
		return err
	}
	p.log.Info("Input branch refs -> label=%s branch=%s (from github_branch_ref=%s github_head_ref=%s)",
		ref.Label, ref.Branch, cfg.BranchRef, cfg.HeadRef)

	resolver, err := target.NewResolver(p.client, cfg.ProjectID, cfg.PrimaryBuildTarget, ref, p.log)
	if err != nil {
		return err
	}

	targetName, err := resolver.Name(ctx)
	if err != nil {
		return err
	}
	p.log.Info("Input -> build_target_name=%s", targetName)

	// allow_new_target=false turns the run into a diagnostic listing of the
	// target's existing builds, matching the action's documented behavior.
	if !cfg.AllowNewTarget {
		return p.listBuilds(ctx, cfg.ProjectID, targetName)
	}

	if cfg.UseExistingBuildNumber < 0 {
		resolved, err := resolver.Resolve(ctx, true)
		if err != nil {
			return err
		}
		if resolved.ID != "" {
			targetName = resolved.ID
		}
	}

	orch, err := orchestrator.New(orchestrator.Options{
		Client:     p.client,
		ProjectID:  cfg.ProjectID,
		TargetID:   targetName,
		Interval:   cfg.PollingInterval,
		Logger:     p.log,
		Publisher:  p.publisher,
		OnProgress: p.onProgress,
	})
	if err != nil {
		return err
	}

	started := time.Now()
	build, err := orch.Run(ctx, cfg.UseExistingBuildNumber, unitycloud.StartBuildOptions{
		Commit: cfg.CommitSHA,
		Label:  ref.Label,
	})
	p.record(ctx, build, ref, targetName, started)
	if err != nil {
		return err
	}

	return p.postSteps(ctx, build, targetName)
}

// postSteps runs the optional artifact download and share creation. Both are
// independent; the first failure aborts the run.
func (p *Pipeline) postSteps(ctx context.Context, build *unitycloud.Build, targetName string) error {
	cfg := p.cfg

	if cfg.DownloadBinary {
		workspace, err := githubactions.Workspace()
		if err != nil {
			return err
		}
		if build.Links.DownloadPrimary == nil || build.Links.DownloadPrimary.Href == "" {
			return fmt.Errorf("build %s/%s/%d has no primary download link", cfg.ProjectID, targetName, build.Number)
		}

		dl, err := artifact.ToWorkspace(ctx, p.client, build.Links.DownloadPrimary.Href, workspace, p.log)
		if err != nil {
			return err
		}
		if err := p.outputs.Set(githubactions.KeyArtifactFilename, dl.Filename); err != nil {
			return err
		}
		if err := p.outputs.Set(githubactions.KeyArtifactFilepath, dl.Filepath); err != nil {
			return err
		}
	}

	if cfg.CreateShareURL {
		shareURL, err := p.client.CreateShare(ctx, cfg.ProjectID, targetName, build.Number)
		if err != nil {
			return err
		}
		p.log.Info("Got sharing url %s", shareURL)
		if err := p.outputs.Set(githubactions.KeyShareURL, shareURL); err != nil {
			return err
		}
	}

	return nil
}

// record saves the build outcome to the history store when one is configured.
// Best effort: a history failure never fails the run.
func (p *Pipeline) record(ctx context.Context, build *unitycloud.Build, ref gitref.Ref, targetName string, started time.Time) {
	if p.store == nil || build == nil {
		return
	}
	duration := build.TotalTimeInSeconds
	if duration == 0 {
		duration = time.Since(started).Seconds()
	}
	err := p.store.RecordBuild(ctx, &store.BuildRecord{
		OrgID:           p.cfg.OrgID,
		ProjectID:       p.cfg.ProjectID,
		TargetID:        targetName,
		BuildNumber:     build.Number,
		Status:          build.Status,
		Branch:          ref.Branch,
		Commit:          p.cfg.CommitSHA,
		DurationSeconds: duration,
		FinishedAt:      time.Now().UTC(),
	})
	if err != nil {
		p.log.Error("Failed to record build history: %v", err)
	}
}

// listProjects logs every project the credentials can see. A 401/403 here
// almost always means a bad API key or org id, so say so explicitly.
func (p *Pipeline) listProjects(ctx context.Context) ([]unitycloud.Project, error) {
	p.log.Info("Fetching projects for %s...", p.cfg.OrgID)
	projects, err := p.client.ListProjects(ctx)
	if err != nil {
		if errors.Is(err, unitycloud.ErrUnauthorized) {
			p.log.Error("Unauthorized listing projects: org id %q or the API key is the likely cause", p.cfg.OrgID)
		}
		return nil, err
	}

	ids := make([]string, len(projects))
	for i, project := range projects {
		ids[i] = project.ProjectID
	}
	p.log.Info("Found organisation projects; %s", strings.Join(ids, ", "))
	return projects, nil
}

// listBuildTargets logs the build targets of one project.
func (p *Pipeline) listBuildTargets(ctx context.Context, projectID string) error {
	p.log.Info("Fetching build targets for %s/%s...", p.cfg.OrgID, projectID)
	targets, err := p.client.ListBuildTargets(ctx, projectID)
	if err != nil {
		return err
	}

	ids := make([]string, len(targets))
	for i, t := range targets {
		ids[i] = t.ID
	}
	p.log.Info("Project %s build targets; %s", projectID, strings.Join(ids, ", "))
	return nil
}

// listBuilds logs build numbers and statuses for a target.
func (p *Pipeline) listBuilds(ctx context.Context, projectID, targetName string) error {
	p.log.Info("Fetching builds for build target %s for %s/%s...", targetName, p.cfg.OrgID, projectID)
	builds, err := p.client.ListBuilds(ctx, projectID, targetName)
	if err != nil {
		return err
	}
	for _, build := range builds {
		p.log.Info("  build %d: %s", build.Number, build.Status)
	}
	return nil
}
