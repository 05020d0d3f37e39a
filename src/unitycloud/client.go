// Package unitycloud provides a client for the Unity Cloud Build API.
//
// The client only does standard API calls; project-specific behavior such as
// deriving PR target names lives in the target and orchestrator packages.
package unitycloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"
)

const (
	// APIBaseURL is the base URL for the Unity Cloud Build API.
	APIBaseURL = "https://build-api.cloud.unity3d.com/api/v1"

	// ShareURLPrefix is where share ids become installable links.
	ShareURLPrefix = "https://developer.cloud.unity3d.com/share/share.html?shareId="
)

// Client is a Unity Cloud Build API client scoped to one organisation.
type Client struct {
	apiKey     string
	orgID      string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Unity Cloud Build API client. The org id must
// already be sanitized (lowercase, no spaces).
func NewClient(apiKey, orgID string) *Client {
	return &Client{
		apiKey:  apiKey,
		orgID:   orgID,
		baseURL: APIBaseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// OrgID returns the organisation id the client is scoped to.
func (c *Client) OrgID() string {
	return c.orgID
}

// SetBaseURL overrides the API endpoint. Used by tests to point the client at
// a fake server.
func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

// orgURL builds a full URL under the org-scoped API prefix.
func (c *Client) orgURL(path string) string {
	return fmt.Sprintf("%s/orgs/%s%s", c.baseURL, c.orgID, path)
}

func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	// Unity Cloud Build API keys go in a Basic authorization header as-is.
	req.Header.Set("Authorization", "Basic "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// get performs a GET against an org-scoped path and decodes the JSON response.
func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	url := c.orgURL(path)

	req, err := c.newRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v (url=%s)", ErrTransport, err, url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, URL: url, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", url, err)
	}
	return nil
}

// post performs a POST against an org-scoped path and decodes the JSON
// response when the status matches wantStatus.
func (c *Client) post(ctx context.Context, path string, payload, out interface{}, wantStatus int) error {
	url := c.orgURL(path)

	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v (url=%s)", ErrTransport, err, url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, URL: url, Body: string(body)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response from %s: %w", url, err)
		}
	}
	return nil
}

// ListProjects returns all projects visible to the org. Used to verify
// credentials and to help users find the id they meant.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := c.get(ctx, "/projects", &projects); err != nil {
		return nil, fmt.Errorf("listing projects for org %s: %w", c.orgID, err)
	}
	return projects, nil
}

// ListBuildTargets returns all build targets of a project.
func (c *Client) ListBuildTargets(ctx context.Context, projectID string) ([]BuildTarget, error) {
	var targets []BuildTarget
	if err := c.get(ctx, fmt.Sprintf("/projects/%s/buildtargets", projectID), &targets); err != nil {
		return nil, fmt.Errorf("listing build targets for %s/%s: %w", c.orgID, projectID, err)
	}
	return targets, nil
}

// GetBuildTarget fetches a single build target's full configuration.
func (c *Client) GetBuildTarget(ctx context.Context, projectID, targetID string) (*BuildTarget, error) {
	var target BuildTarget
	if err := c.get(ctx, fmt.Sprintf("/projects/%s/buildtargets/%s", projectID, targetID), &target); err != nil {
		return nil, fmt.Errorf("fetching build target %s/%s: %w", projectID, targetID, err)
	}
	return &target, nil
}

// targetExistsError is the body the service sends with a 500 when the target
// name is taken.
const targetExistsError = "Build target name already in use for this project!"

// CreateBuildTarget creates a new build target. A name collision surfaces as
// ErrTargetExists so callers can fall back to reuse; the resolver normally
// checks first, so hitting it means two runs raced.
func (c *Client) CreateBuildTarget(ctx context.Context, projectID string, target *BuildTarget) (*BuildTarget, error) {
	var created BuildTarget
	err := c.post(ctx, fmt.Sprintf("/projects/%s/buildtargets", projectID), target, &created, http.StatusCreated)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusInternalServerError {
			var body struct {
				Error string `json:"error"`
			}
			if json.Unmarshal([]byte(apiErr.Body), &body) == nil && body.Error == targetExistsError {
				return nil, fmt.Errorf("%w: %s", ErrTargetExists, target.Name)
			}
		}
		return nil, fmt.Errorf("creating build target %q in %s: %w", target.Name, projectID, err)
	}
	return &created, nil
}

// StartBuildOptions carries trigger metadata so the remote build log traces
// back to the CI run.
type StartBuildOptions struct {
	Clean  bool
	Delay  int
	Commit string
	Label  string
}

// StartBuild triggers a new build of a target and returns its build number.
func (c *Client) StartBuild(ctx context.Context, projectID, targetID string, opts StartBuildOptions) (*Build, error) {
	payload := map[string]interface{}{
		"clean": opts.Clean,
		"delay": opts.Delay,
	}
	if opts.Commit != "" {
		payload["commit"] = opts.Commit
	}
	if opts.Label != "" {
		payload["label"] = opts.Label
	}

	// The service responds 202 with an array: one entry per triggered target.
	var builds []Build
	err := c.post(ctx, fmt.Sprintf("/projects/%s/buildtargets/%s/builds", projectID, targetID), payload, &builds, http.StatusAccepted)
	if err != nil {
		return nil, fmt.Errorf("starting build of %s/%s: %w", projectID, targetID, err)
	}
	if len(builds) == 0 {
		return nil, fmt.Errorf("starting build of %s/%s: empty response", projectID, targetID)
	}

	build := builds[0]
	if build.Error != "" {
		return nil, fmt.Errorf("starting build of %s/%s: service reported %q", projectID, targetID, build.Error)
	}
	if build.Number <= 0 {
		return nil, fmt.Errorf("starting build of %s/%s: response has no build number", projectID, targetID)
	}
	return &build, nil
}

// GetBuild fetches the current metadata of one build.
func (c *Client) GetBuild(ctx context.Context, projectID, targetID string, buildNumber int) (*Build, error) {
	var build Build
	if err := c.get(ctx, fmt.Sprintf("/projects/%s/buildtargets/%s/builds/%d", projectID, targetID, buildNumber), &build); err != nil {
		return nil, fmt.Errorf("fetching build %s/%s/%d: %w", projectID, targetID, buildNumber, err)
	}
	return &build, nil
}

// ListBuilds returns all builds of a target, newest first.
func (c *Client) ListBuilds(ctx context.Context, projectID, targetID string) ([]Build, error) {
	var builds []Build
	if err := c.get(ctx, fmt.Sprintf("/projects/%s/buildtargets/%s/builds", projectID, targetID), &builds); err != nil {
		return nil, fmt.Errorf("listing builds of %s/%s: %w", projectID, targetID, err)
	}
	return builds, nil
}

// CreateShare creates (or rotates) a share link for a build and returns the
// installable URL. An existing share for the build is revoked by the service.
func (c *Client) CreateShare(ctx context.Context, projectID, targetID string, buildNumber int) (string, error) {
	payload := map[string]string{"shareExpiry": ""}

	var share Share
	err := c.post(ctx, fmt.Sprintf("/projects/%s/buildtargets/%s/builds/%d/share", projectID, targetID, buildNumber), payload, &share, http.StatusOK)
	if err != nil {
		return "", fmt.Errorf("creating share for %s/%s/%d: %w", projectID, targetID, buildNumber, err)
	}
	return ShareURLPrefix + share.ShareID, nil
}

// GetShare returns the existing share URL for a build, or ErrNotFound when no
// share exists.
func (c *Client) GetShare(ctx context.Context, projectID, targetID string, buildNumber int) (string, error) {
	var share Share
	if err := c.get(ctx, fmt.Sprintf("/projects/%s/buildtargets/%s/builds/%d/share", projectID, targetID, buildNumber), &share); err != nil {
		return "", fmt.Errorf("fetching share for %s/%s/%d: %w", projectID, targetID, buildNumber, err)
	}
	return ShareURLPrefix + share.ShareID, nil
}

// Download fetches an artifact URL and returns the response body along with
// the filename from the Content-Disposition header. The caller must close the
// reader. Artifact URLs are pre-signed, so no auth header is sent.
func (c *Client) Download(ctx context.Context, url string) (io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v (url=%s)", ErrTransport, err, url)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, "", &APIError{StatusCode: resp.StatusCode, URL: url, Body: string(body)}
	}

	filename, err := filenameFromContentDisposition(resp.Header.Get("Content-Disposition"))
	if err != nil {
		resp.Body.Close()
		return nil, "", err
	}

	return resp.Body, filename, nil
}

// filenameFromContentDisposition extracts the attachment filename. The
// download endpoints always respond with "attachment; filename=...".
func filenameFromContentDisposition(header string) (string, error) {
	if header == "" {
		return "", fmt.Errorf("response has no Content-Disposition header, cannot determine artifact filename")
	}
	disposition, params, err := mime.ParseMediaType(header)
	if err != nil {
		return "", fmt.Errorf("failed to parse Content-Disposition %q: %w", header, err)
	}
	filename := params["filename"]
	if disposition != "attachment" || filename == "" {
		return "", fmt.Errorf("unexpected Content-Disposition %q, cannot determine artifact filename", header)
	}
	return filename, nil
}
