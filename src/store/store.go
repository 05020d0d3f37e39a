// Package store defines the interface for build history persistence.
//
// Recording is optional: runs without POSTGRES_DSN use no store at all. The
// history exists so teams can query build durations and failure rates across
// CI runs, which the service's own dashboard only keeps for a limited window.
package store

import (
	"context"
	"time"
)

// BuildRecord is one finished (or abandoned) build as observed by a run.
type BuildRecord struct {
	OrgID           string
	ProjectID       string
	TargetID        string
	BuildNumber     int
	Status          string
	Branch          string
	Commit          string
	DurationSeconds float64
	ShareURL        string
	ArtifactName    string
	FinishedAt      time.Time
}

// Store persists build records.
type Store interface {
	// RecordBuild saves one build outcome. Re-recording the same build
	// (project, target, number) overwrites the previous row.
	RecordBuild(ctx context.Context, record *BuildRecord) error

	// History returns the most recent records for a target, newest first.
	// limit <= 0 means no limit.
	History(ctx context.Context, projectID, targetID string, limit int) ([]BuildRecord, error)

	// Close closes the store connection.
	Close() error
}
