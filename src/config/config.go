// Package config provides configuration management for the Unity Cloud Build
// agent. All invocation state lives in one immutable Config value built from
// flags and environment variables; nothing reads globals after startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"ucb-agent/src/gitref"
)

// Platforms accepted for --target_platform.
var validPlatforms = map[string]bool{
	"ios":     true,
	"android": true,
	"webgl":   true,
}

// Config holds the full invocation configuration for one run.
type Config struct {
	// APIKey is the Unity Cloud Build API key, used as a bearer credential on
	// every call and never persisted.
	APIKey string
	// OrgID and ProjectID identify the Unity Cloud Build project.
	OrgID     string
	ProjectID string
	// PrimaryBuildTarget is the long-lived target PR targets are cloned from.
	PrimaryBuildTarget string
	// TargetPlatform is ios, android, or webgl. Informational: the platform of
	// a cloned target always comes from the primary target.
	TargetPlatform string

	// BranchRef/HeadRef/CommitSHA come from the GitHub event context.
	BranchRef string
	HeadRef   string
	CommitSHA string

	// PollingInterval is the wait between build status fetches.
	PollingInterval time.Duration
	// DownloadBinary requests the artifact download post-step.
	DownloadBinary bool
	// CreateShareURL requests the share-link post-step.
	CreateShareURL bool
	// UseExistingBuildNumber >= 0 polls that build instead of triggering a
	// new one. -1 means trigger.
	UseExistingBuildNumber int
	// AllowNewTarget permits creating a PR target when none exists. When
	// false the run only lists existing builds for the resolved target.
	AllowNewTarget bool
	// Watch enables the interactive TUI instead of log output.
	Watch bool

	// RedpandaBrokers enables build lifecycle event publishing when set
	// (comma-separated broker addresses).
	RedpandaBrokers string
	// PostgresDSN enables build history recording when set.
	PostgresDSN string
}

// LoadFromEnv returns a Config populated with defaults and UCB_* environment
// overrides. Flag values are bound on top of this by the CLI.
func LoadFromEnv() *Config {
	return &Config{
		APIKey:                 os.Getenv("UCB_API_KEY"),
		OrgID:                  os.Getenv("UCB_ORG_ID"),
		ProjectID:              os.Getenv("UCB_PROJECT_ID"),
		PrimaryBuildTarget:     os.Getenv("UCB_PRIMARY_TARGET"),
		TargetPlatform:         os.Getenv("UCB_TARGET_PLATFORM"),
		BranchRef:              os.Getenv("UCB_BRANCH_REF"),
		HeadRef:                os.Getenv("UCB_HEAD_REF"),
		CommitSHA:              os.Getenv("UCB_COMMIT_SHA"),
		PollingInterval:        envDuration("UCB_POLLING_INTERVAL", 60*time.Second),
		DownloadBinary:         envBool("UCB_DOWNLOAD_BINARY", false),
		CreateShareURL:         envBool("UCB_CREATE_SHARE_URL", false),
		UseExistingBuildNumber: envInt("UCB_USE_EXISTING_BUILD_NUMBER", -1),
		AllowNewTarget:         envBool("UCB_ALLOW_NEW_TARGET", true),
		RedpandaBrokers:        os.Getenv("REDPANDA_BROKERS"),
		PostgresDSN:            os.Getenv("POSTGRES_DSN"),
	}
}

// Sanitize rewrites ids into the form the remote service accepts. The service
// rejects ids with spaces or uppercase, so fixing them here beats a confusing
// 403 later.
func (c *Config) Sanitize() {
	c.OrgID = gitref.SanitizeID(c.OrgID)
	c.ProjectID = gitref.SanitizeID(c.ProjectID)
	c.PrimaryBuildTarget = gitref.SanitizeID(c.PrimaryBuildTarget)
}

// Validate checks the fields every run needs. Project/target requirements
// depend on the subcommand and are checked there.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("api_key is required (set --api_key or UCB_API_KEY)")
	}
	if c.OrgID == "" {
		return fmt.Errorf("org_id is required (set --org_id or UCB_ORG_ID)")
	}
	if c.TargetPlatform != "" && !validPlatforms[c.TargetPlatform] {
		return fmt.Errorf("target_platform %q is not one of ios, android, webgl", c.TargetPlatform)
	}
	if c.PollingInterval <= 0 {
		return fmt.Errorf("polling_interval must be positive, got %s", c.PollingInterval)
	}
	return nil
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// envDuration reads an interval in seconds, matching the action input format.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs <= 0 {
		return fallback
	}
	return time.Duration(secs * float64(time.Second))
}
