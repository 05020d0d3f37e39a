// Package gitref resolves GitHub ref strings into the branch and label used
// for Unity Cloud Build targets.
//
// Unity Cloud Build clones with `git clone --branch <branch>`, which works for
// branch names and tags but not for pull request refs (refs/pull/6/merge). For
// pull requests the head ref supplies the real source branch, while the pull
// ref is kept as the label so the derived target name identifies the PR.
package gitref

import (
	"fmt"
	"regexp"
	"strings"
)

// maxTargetNameLen is Unity Cloud Build's limit for build target ids, minus a
// char of headroom.
const maxTargetNameLen = 63

var disallowedChars = regexp.MustCompile("[^0-9a-zA-Z]+")

// Ref is the resolved branch/label pair for one invocation.
type Ref struct {
	// Branch is what Unity Cloud Build will pass to git clone --branch.
	Branch string
	// Label names the build target; for pull requests it reflects the PR ref
	// rather than the source branch.
	Label string
	// IsPullRequest reports whether the branch ref was a refs/pull/ ref.
	IsPullRequest bool
}

// Resolve turns a GitHub branch ref (and head ref, for pull requests) into a
// Ref. Returns an error for a pull request ref with no head ref, since the
// source branch cannot be determined.
func Resolve(branchRef, headRef string) (Ref, error) {
	isPullRequest := strings.HasPrefix(branchRef, "refs/pull/")

	if isPullRequest && headRef == "" {
		return Ref{}, fmt.Errorf("detected pull request from %q but github_head_ref is empty; it should hold the source branch", branchRef)
	}

	branch := branchRef
	branch = strings.ReplaceAll(branch, "refs/tags/", "")
	branch = strings.ReplaceAll(branch, "refs/heads/", "")
	branch = strings.ReplaceAll(branch, "refs/pull/", "pull request ")

	// The label keeps the pull-request form so the target name indicates a PR.
	label := branch

	if isPullRequest {
		branch = strings.TrimPrefix(headRef, "refs/heads/")
	}

	return Ref{Branch: branch, Label: label, IsPullRequest: isPullRequest}, nil
}

// TargetName derives a deterministic build target name from the primary
// target and a resolved ref. Repeated invocations for the same branch yield
// the same name, which is what lets the resolver reuse an existing target.
//
// Unity Cloud Build target ids must be lowercase alphanumerics and hyphens
// with a 64 char cap.
func TargetName(primaryBuildTarget string, ref Ref) string {
	label := disallowedChars.ReplaceAllString(ref.Label, "-")
	name := primaryBuildTarget + "-" + label
	if len(name) > maxTargetNameLen {
		name = name[:maxTargetNameLen]
	}
	return strings.ToLower(name)
}

// SanitizeID rewrites an org/project id into the form the remote service
// accepts: lowercase, spaces replaced with hyphens.
func SanitizeID(id string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(id), " ", "-"))
}
