package unitycloud

// Build statuses reported by the Unity Cloud Build API.
const (
	StatusQueued        = "queued"
	StatusSentToBuilder = "sentToBuilder"
	StatusStarted       = "started"
	StatusRestarted     = "restarted"
	StatusSuccess       = "success"
	StatusFailure       = "failure"
	StatusCanceled      = "canceled"
	StatusUnknown       = "unknown"
)

// IsSuccessStatus reports whether status is the terminal success state.
func IsSuccessStatus(status string) bool {
	return status == StatusSuccess
}

// IsFailureStatus reports whether status is a terminal failure state.
// The API has been seen spelling cancellation both ways.
func IsFailureStatus(status string) bool {
	switch status {
	case StatusFailure, StatusCanceled, "cancelled", StatusUnknown:
		return true
	}
	return false
}

// IsCanceledStatus reports whether status is a cancellation specifically.
func IsCanceledStatus(status string) bool {
	return status == StatusCanceled || status == "cancelled"
}

// IsTerminalStatus reports whether the build has stopped running.
func IsTerminalStatus(status string) bool {
	return IsSuccessStatus(status) || IsFailureStatus(status)
}

// Project is one project visible to the org.
type Project struct {
	ProjectID string `json:"projectid"`
	Name      string `json:"name"`
	OrgID     string `json:"orgid"`
}

// BuildTarget is a build configuration on Unity Cloud Build, scoped to a
// branch. Settings and Credentials are kept as loose maps so a clone of the
// primary target round-trips every field the service knows about, not just
// the ones this tool understands.
type BuildTarget struct {
	ID          string                 `json:"buildtargetid,omitempty"`
	Name        string                 `json:"name"`
	Platform    string                 `json:"platform"`
	Enabled     bool                   `json:"enabled"`
	Settings    map[string]interface{} `json:"settings,omitempty"`
	Credentials map[string]interface{} `json:"credentials,omitempty"`
}

// SCMBranch returns settings.scm.branch, or "" when absent.
func (t *BuildTarget) SCMBranch() string {
	scm, ok := t.Settings["scm"].(map[string]interface{})
	if !ok {
		return ""
	}
	branch, _ := scm["branch"].(string)
	return branch
}

// SetSCMBranch overrides settings.scm.branch, creating the scm block if the
// primary target somehow lacked one.
func (t *BuildTarget) SetSCMBranch(branch string) {
	if t.Settings == nil {
		t.Settings = make(map[string]interface{})
	}
	scm, ok := t.Settings["scm"].(map[string]interface{})
	if !ok {
		scm = make(map[string]interface{})
		t.Settings["scm"] = scm
	}
	scm["branch"] = branch
}

// ClearBuildSchedule drops any schedule cloned from the primary target, so
// PR targets only build when triggered.
func (t *BuildTarget) ClearBuildSchedule() {
	if t.Settings == nil {
		return
	}
	t.Settings["buildSchedule"] = map[string]interface{}{}
}

// Build is one executed instance of a build target.
type Build struct {
	Number   int    `json:"build"`
	TargetID string `json:"buildtargetid"`
	Status   string `json:"buildStatus"`
	Error    string `json:"error,omitempty"`

	CheckoutTimeInSeconds float64 `json:"checkoutTimeInSeconds,omitempty"`
	WorkingTimeInSeconds  float64 `json:"workingTimeInSeconds,omitempty"`
	TotalTimeInSeconds    float64 `json:"totalTimeInSeconds,omitempty"`

	Links BuildLinks `json:"links"`
}

// BuildLinks holds the hypermedia links attached to a build.
type BuildLinks struct {
	DownloadPrimary *Link `json:"download_primary,omitempty"`
}

// Link is a single hypermedia link.
type Link struct {
	Method string `json:"method,omitempty"`
	Href   string `json:"href"`
}

// Share is the share metadata returned by the share endpoints.
type Share struct {
	ShareID     string `json:"shareid"`
	ShareExpiry string `json:"shareExpiry,omitempty"`
}
