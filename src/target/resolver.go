// Package target resolves which Unity Cloud Build target a run should use.
//
// Direct pushes to the primary target's branch build on the primary target.
// Pull request branches get a derived target named after the PR, cloned from
// the primary target's configuration. The derived name is deterministic, so
// repeated runs for the same branch converge on the same target and keep the
// service's build cache warm.
package target

import (
	"context"
	"errors"
	"fmt"

	"ucb-agent/src/gitref"
	"ucb-agent/src/logger"
	"ucb-agent/src/unitycloud"
)

// Resolver determines and, when allowed, creates the build target for a run.
type Resolver struct {
	client             *unitycloud.Client
	projectID          string
	primaryBuildTarget string
	ref                gitref.Ref
	log                logger.Logger
}

// NewResolver creates a Resolver. All arguments are required.
func NewResolver(client *unitycloud.Client, projectID, primaryBuildTarget string, ref gitref.Ref, log logger.Logger) (*Resolver, error) {
	if client == nil {
		return nil, fmt.Errorf("resolver requires a client")
	}
	if projectID == "" {
		return nil, fmt.Errorf("resolver requires a project id")
	}
	if primaryBuildTarget == "" {
		return nil, fmt.Errorf("resolver requires a primary build target")
	}
	return &Resolver{
		client:             client,
		projectID:          projectID,
		primaryBuildTarget: primaryBuildTarget,
		ref:                ref,
		log:                log,
	}, nil
}

// Name resolves the build target name for this run. When the primary target
// already builds the resolved branch the primary is used as-is, so a push to
// main lands on "mac" rather than "mac-main".
func (r *Resolver) Name(ctx context.Context) (string, error) {
	primary, err := r.client.GetBuildTarget(ctx, r.projectID, r.primaryBuildTarget)
	if err != nil {
		return "", err
	}
	if primary.SCMBranch() == r.ref.Branch {
		return r.primaryBuildTarget, nil
	}
	return gitref.TargetName(r.primaryBuildTarget, r.ref), nil
}

// Resolve returns the build target for this run. An existing target with the
// resolved name is reused without mutation; otherwise, when allowNew is set, a
// new target is created by cloning the primary target onto the run's branch.
//
// The lookup-then-create sequence is not transactional: two concurrent runs
// for the same branch can race. The service-side name collision is caught and
// downgraded to reuse.
func (r *Resolver) Resolve(ctx context.Context, allowNew bool) (*unitycloud.BuildTarget, error) {
	name, err := r.Name(ctx)
	if err != nil {
		return nil, err
	}

	existing, err := r.client.GetBuildTarget(ctx, r.projectID, name)
	if err == nil {
		r.log.Info("Reusing existing build target %s/%s", r.projectID, name)
		return existing, nil
	}
	if !errors.Is(err, unitycloud.ErrNotFound) {
		return nil, err
	}

	if !allowNew {
		return nil, fmt.Errorf("no build target named %q and not allowed to create a new one", name)
	}

	return r.create(ctx, name)
}

// create clones the primary target's configuration onto the run's branch.
func (r *Resolver) create(ctx context.Context, name string) (*unitycloud.BuildTarget, error) {
	r.log.Info("Fetching primary build target meta: %s...", r.primaryBuildTarget)
	primary, err := r.client.GetBuildTarget(ctx, r.projectID, r.primaryBuildTarget)
	if err != nil {
		return nil, err
	}

	r.log.Info("Creating new build target %q for branch %s...", name, r.ref.Branch)

	clone := &unitycloud.BuildTarget{
		Name:        name,
		Enabled:     true,
		Platform:    primary.Platform,
		Settings:    primary.Settings,
		Credentials: primary.Credentials,
	}
	clone.SetSCMBranch(r.ref.Branch)
	clone.ClearBuildSchedule()

	created, err := r.client.CreateBuildTarget(ctx, r.projectID, clone)
	if err != nil {
		if errors.Is(err, unitycloud.ErrTargetExists) {
			// Lost a creation race with a concurrent run; the target is there
			// now, so use it.
			r.log.Info("Build target %q already exists, reusing...", name)
			return r.client.GetBuildTarget(ctx, r.projectID, name)
		}
		return nil, err
	}

	return created, nil
}
