package types

import "time"

// EventType names a job board event published to the message broker.
type EventType string

const (
	EventJobCreated               EventType = "job.created"
	EventJobDeleted               EventType = "job.deleted"
	EventApplicationSubmitted     EventType = "application.submitted"
	EventApplicationStatusUpdated EventType = "application.status_updated"
)

// Event is the broker payload for job and application changes.
type Event struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`

	// Type is the kind of change.
	Type EventType `json:"type"`

	// JobID is the affected job.
	JobID string `json:"job_id"`

	// ApplicationID is set for application events.
	ApplicationID string `json:"application_id,omitempty"`

	// ActorID is the user who caused the change.
	ActorID string `json:"actor_id"`

	// Status is the application status after the change, when relevant.
	Status ApplicationStatus `json:"status,omitempty"`

	// OccurredAt is when the change was committed.
	OccurredAt time.Time `json:"occurred_at"`
}
