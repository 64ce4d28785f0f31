package model

import "time"

// EventKind identifies a pipeline audit event.
type EventKind string

const (
	EventStaged     EventKind = "PIPELINE_STAGED"
	EventExtracted  EventKind = "PIPELINE_EXTRACTED"
	EventClassified EventKind = "PIPELINE_CLASSIFIED"
	EventFinalized  EventKind = "PIPELINE_FINALIZED"
	EventError      EventKind = "PIPELINE_ERROR"
)

// Event is one append-only audit record. Events are never mutated or
// deleted; ordering is by EventDate with insertion order breaking ties.
type Event struct {
	ID          string    `json:"id"`
	PropertyID  string    `json:"property_id"`
	Kind        EventKind `json:"event_type"`
	Description string    `json:"description"`
	EventDate   string    `json:"event_date"`
	CreatedAt   time.Time `json:"created_at"`
}
