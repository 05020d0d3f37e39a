//go:build integration

package integration

import (
	"context"
	"os"
	"testing"

	"ucb-agent/src/unitycloud"
)

// Requires real Unity Cloud Build credentials:
//
//	go test -tags integration ./tests/integration
func newClient(t *testing.T) *unitycloud.Client {
	t.Helper()

	apiKey := os.Getenv("UCB_API_KEY")
	if apiKey == "" {
		t.Skip("UCB_API_KEY not set, skipping integration test")
	}
	orgID := os.Getenv("UCB_ORG_ID")
	if orgID == "" {
		t.Skip("UCB_ORG_ID not set, skipping integration test")
	}
	return unitycloud.NewClient(apiKey, orgID)
}

func TestListProjectsIntegration(t *testing.T) {
	client := newClient(t)

	projects, err := client.ListProjects(context.Background())
	if err != nil {
		t.Fatalf("ListProjects failed: %v", err)
	}
	if len(projects) == 0 {
		t.Error("Expected projects, got 0")
	}

	for _, p := range projects {
		t.Logf("Project %s (%s)", p.ProjectID, p.Name)
	}
}

func TestListBuildTargetsIntegration(t *testing.T) {
	client := newClient(t)

	projectID := os.Getenv("UCB_PROJECT_ID")
	if projectID == "" {
		t.Skip("UCB_PROJECT_ID not set, skipping integration test")
	}

	targets, err := client.ListBuildTargets(context.Background(), projectID)
	if err != nil {
		t.Fatalf("ListBuildTargets failed: %v", err)
	}

	for _, bt := range targets {
		t.Logf("Target %s platform=%s enabled=%v branch=%s", bt.ID, bt.Platform, bt.Enabled, bt.SCMBranch())
	}
}

func TestListBuildsIntegration(t *testing.T) {
	client := newClient(t)

	projectID := os.Getenv("UCB_PROJECT_ID")
	targetID := os.Getenv("UCB_PRIMARY_TARGET")
	if projectID == "" || targetID == "" {
		t.Skip("UCB_PROJECT_ID or UCB_PRIMARY_TARGET not set, skipping integration test")
	}

	builds, err := client.ListBuilds(context.Background(), projectID, targetID)
	if err != nil {
		t.Fatalf("ListBuilds failed: %v", err)
	}

	for _, b := range builds {
		t.Logf("Build %d status=%s", b.Number, b.Status)
	}
}
