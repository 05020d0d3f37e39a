package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"ucb-agent/src/config"
	"ucb-agent/src/githubactions"
	"ucb-agent/src/orchestrator"
	"ucb-agent/src/store"
	"ucb-agent/src/unitycloud"
)

// captureLogger records log lines for assertions.
type captureLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (l *captureLogger) Info(msg string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, fmt.Sprintf(msg, args...))
}

func (l *captureLogger) Error(msg string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fmt.Sprintf(msg, args...))
}

func (l *captureLogger) Debug(msg string, args ...interface{}) {}

func (l *captureLogger) errorLines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.errors...)
}

// fakeService fakes the subset of the Unity Cloud Build API the pipeline
// touches, with a scripted status sequence and call counters.
type fakeService struct {
	mu        sync.Mutex
	statuses  []string
	gets      int
	triggers  int
	shares    int
	downloads int
	server    *httptest.Server
}

func newFakeService(t *testing.T, statuses []string) *fakeService {
	t.Helper()
	f := &fakeService{statuses: statuses}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeService) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	switch {
	case path == "/download":
		f.downloads++
		w.Header().Set("Content-Disposition", "attachment; filename=game.ipa")
		w.Write([]byte("ipa-bytes"))

	case path == "/orgs/test-org/projects":
		json.NewEncoder(w).Encode([]map[string]string{{"projectid": "my-game"}})

	case path == "/orgs/test-org/projects/my-game/buildtargets" && r.Method == http.MethodGet:
		json.NewEncoder(w).Encode([]map[string]string{{"buildtargetid": "ios"}})

	case path == "/orgs/test-org/projects/my-game/buildtargets/ios" && r.Method == http.MethodGet:
		json.NewEncoder(w).Encode(map[string]interface{}{
			"buildtargetid": "ios",
			"name":          "ios",
			"platform":      "ios",
			"enabled":       true,
			"settings":      map[string]interface{}{"scm": map[string]interface{}{"branch": "main"}},
		})

	case path == "/orgs/test-org/projects/my-game/buildtargets/ios/builds" && r.Method == http.MethodPost:
		f.triggers++
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode([]map[string]interface{}{{"build": 9, "buildtargetid": "ios", "buildStatus": "queued"}})

	case path == "/orgs/test-org/projects/my-game/buildtargets/ios/builds" && r.Method == http.MethodGet:
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"build": 8, "buildStatus": "success"},
			{"build": 7, "buildStatus": "failure"},
		})

	case strings.HasPrefix(path, "/orgs/test-org/projects/my-game/buildtargets/ios/builds/") && strings.HasSuffix(path, "/share"):
		f.shares++
		json.NewEncoder(w).Encode(map[string]string{"shareid": "-1k77srZTd"})

	case strings.HasPrefix(path, "/orgs/test-org/projects/my-game/buildtargets/ios/builds/") && r.Method == http.MethodGet:
		idx := f.gets
		if idx >= len(f.statuses) {
			idx = len(f.statuses) - 1
		}
		f.gets++
		json.NewEncoder(w).Encode(map[string]interface{}{
			"build":              9,
			"buildtargetid":      "ios",
			"buildStatus":        f.statuses[idx],
			"totalTimeInSeconds": 120.0,
			"links": map[string]interface{}{
				"download_primary": map[string]string{"method": "get", "href": f.server.URL + "/download"},
			},
		})

	default:
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
	}
}

func (f *fakeService) counts() (triggers, shares, downloads int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.triggers, f.shares, f.downloads
}

func testConfig() *config.Config {
	return &config.Config{
		APIKey:                 "test-key",
		OrgID:                  "test-org",
		ProjectID:              "my-game",
		PrimaryBuildTarget:     "ios",
		BranchRef:              "refs/heads/main",
		CommitSHA:              "abc123",
		PollingInterval:        time.Millisecond,
		UseExistingBuildNumber: -1,
		AllowNewTarget:         true,
	}
}

func newTestPipeline(t *testing.T, f *fakeService, cfg *config.Config, opts Options) *Pipeline {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("GITHUB_WORKSPACE", dir)
	t.Setenv("GITHUB_OUTPUT", filepath.Join(dir, "github_output"))
	t.Setenv("GITHUB_ENV", filepath.Join(dir, "github_env"))

	client := unitycloud.NewClient(cfg.APIKey, cfg.OrgID)
	client.SetBaseURL(f.server.URL)

	opts.Config = cfg
	opts.Client = client
	if opts.Logger == nil {
		opts.Logger = &captureLogger{}
	}
	opts.Outputs = githubactions.NewOutputs(opts.Logger)

	p, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func readOutputs(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(os.Getenv("GITHUB_OUTPUT"))
	if err != nil {
		t.Fatalf("reading outputs: %v", err)
	}
	return string(data)
}

func TestPipeline_SuccessWithDownloadAndShare(t *testing.T) {
	f := newFakeService(t, []string{"queued", "started", "success"})
	cfg := testConfig()
	cfg.DownloadBinary = true
	cfg.CreateShareURL = true

	p := newTestPipeline(t, f, cfg, Options{})
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	outputs := readOutputs(t)
	if !strings.Contains(outputs, "ARTIFACT_FILENAME=game.ipa\n") {
		t.Errorf("outputs missing ARTIFACT_FILENAME, got %q", outputs)
	}
	wantPath := "ARTIFACT_FILEPATH=" + filepath.Join("artifacts", "game.ipa") + "\n"
	if !strings.Contains(outputs, wantPath) {
		t.Errorf("outputs missing %q, got %q", wantPath, outputs)
	}
	if !strings.Contains(outputs, "SHARE_URL="+unitycloud.ShareURLPrefix+"-1k77srZTd\n") {
		t.Errorf("outputs missing SHARE_URL, got %q", outputs)
	}

	// The artifact must exist on disk where ARTIFACT_FILEPATH points.
	artifactPath := filepath.Join(os.Getenv("GITHUB_WORKSPACE"), "artifacts", "game.ipa")
	if _, err := os.Stat(artifactPath); err != nil {
		t.Errorf("artifact file missing: %v", err)
	}
}

func TestPipeline_FailedBuildSkipsPostSteps(t *testing.T) {
	f := newFakeService(t, []string{"queued", "failure"})
	cfg := testConfig()
	cfg.DownloadBinary = true
	cfg.CreateShareURL = true

	p := newTestPipeline(t, f, cfg, Options{})
	err := p.Run(context.Background())

	var failed *orchestrator.BuildFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("Run() error = %v, want *BuildFailedError", err)
	}

	_, shares, downloads := f.counts()
	if downloads != 0 {
		t.Errorf("downloads = %d, want 0 after failed build", downloads)
	}
	if shares != 0 {
		t.Errorf("shares = %d, want 0 after failed build", shares)
	}
}

func TestPipeline_ExistingBuildNumberNeverTriggers(t *testing.T) {
	f := newFakeService(t, []string{"started", "success"})
	cfg := testConfig()
	cfg.UseExistingBuildNumber = 31

	p := newTestPipeline(t, f, cfg, Options{})
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	triggers, _, _ := f.counts()
	if triggers != 0 {
		t.Errorf("triggers = %d, want 0 when reusing build number", triggers)
	}
}

func TestPipeline_UnauthorizedNamesOrgID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"error": "forbidden"})
	}))
	t.Cleanup(server.Close)

	cfg := testConfig()
	log := &captureLogger{}

	dir := t.TempDir()
	t.Setenv("GITHUB_OUTPUT", filepath.Join(dir, "github_output"))
	t.Setenv("GITHUB_ENV", filepath.Join(dir, "github_env"))

	client := unitycloud.NewClient(cfg.APIKey, cfg.OrgID)
	client.SetBaseURL(server.URL)

	p, err := New(Options{Config: cfg, Client: client, Logger: log, Outputs: githubactions.NewOutputs(log)})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	err = p.Run(context.Background())
	if !errors.Is(err, unitycloud.ErrUnauthorized) {
		t.Fatalf("Run() error = %v, want ErrUnauthorized", err)
	}

	var found bool
	for _, line := range log.errorLines() {
		if strings.Contains(line, "test-org") {
			found = true
		}
	}
	if !found {
		t.Errorf("no error log line names the org id; got %v", log.errorLines())
	}
}

func TestPipeline_AllowNewTargetFalseOnlyLists(t *testing.T) {
	f := newFakeService(t, []string{"success"})
	cfg := testConfig()
	cfg.AllowNewTarget = false

	p := newTestPipeline(t, f, cfg, Options{})
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	triggers, _, _ := f.counts()
	if triggers != 0 {
		t.Errorf("triggers = %d, want 0 in list-only mode", triggers)
	}
}

func TestPipeline_RecordsBuildHistory(t *testing.T) {
	f := newFakeService(t, []string{"success"})
	cfg := testConfig()
	st := store.NewInMemoryStore()

	p := newTestPipeline(t, f, cfg, Options{Store: st})
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	history, err := st.History(context.Background(), "my-game", "ios", 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history len = %d, want 1", len(history))
	}
	record := history[0]
	if record.Status != "success" || record.BuildNumber != 9 {
		t.Errorf("record = %+v, want build 9 success", record)
	}
	if record.Commit != "abc123" {
		t.Errorf("record commit = %q, want abc123", record.Commit)
	}
	if record.Branch != "main" {
		t.Errorf("record branch = %q, want main", record.Branch)
	}
}

func TestPipeline_MissingProjectIDFails(t *testing.T) {
	f := newFakeService(t, []string{"success"})
	cfg := testConfig()
	cfg.ProjectID = ""

	p := newTestPipeline(t, f, cfg, Options{})
	if err := p.Run(context.Background()); err == nil {
		t.Fatal("Run() expected error for missing project id")
	}
}
