// Package store provides the durable repository behind the ingestion
// pipeline: property records, the checkpoint ledger, manual classification
// overrides, and the append-only event log. The orchestrator is the single
// writer for checkpoints and events.
package store

import (
	"context"

	"github.com/keystone-estates/ingest-cli/internal/model"
)

// PropertyActivity summarizes one property's ledger for the status command.
type PropertyActivity struct {
	Property    model.Property `json:"property"`
	Checkpoints int            `json:"checkpoints"`
	Events      int            `json:"events"`
}

// Store defines the persistence interface for the ingestion pipeline. It is
// opened once by the top-level run orchestrator, passed explicitly into
// each component, and closed on run exit.
type Store interface {
	// Properties
	GetPropertyByName(ctx context.Context, name string) (*model.Property, error)
	ListActiveProperties(ctx context.Context) ([]model.Property, error)
	CreateProperty(ctx context.Context, name string) (*model.Property, error)
	UpdatePropertyMetadata(ctx context.Context, propertyID string, meta model.PropertyMetadata) error

	// Checkpoint ledger. At most one entry exists per source path; the
	// existence of an entry is the sole "do not reprocess" signal.
	CheckpointExists(ctx context.Context, filePath string) (bool, error)
	RecordCheckpoint(ctx context.Context, cp model.Checkpoint) error

	// Manual overrides. LookupOverride returns "" when no override exists.
	LookupOverride(ctx context.Context, filePath string) (string, error)
	UpsertOverride(ctx context.Context, filePath, category, comment string) error

	// Events. Append failures must be treated as non-fatal by callers.
	AppendEvent(ctx context.Context, propertyID string, kind model.EventKind, description, eventDate string) error
	ListRecentEvents(ctx context.Context, limit int) ([]model.Event, error)
	ListActivity(ctx context.Context) ([]PropertyActivity, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
