package types

import (
	"strings"
	"time"
)

// ApplicationStatus is the review state of an application.
type ApplicationStatus string

const (
	// StatusPending is the initial state of every application.
	StatusPending  ApplicationStatus = "pending"
	StatusReviewed ApplicationStatus = "reviewed"
	StatusAccepted ApplicationStatus = "accepted"
	StatusRejected ApplicationStatus = "rejected"
)

// ParseApplicationStatus normalizes a raw status value. It returns false
// when the value is not one of the four known states.
func ParseApplicationStatus(raw string) (ApplicationStatus, bool) {
	status := ApplicationStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case StatusPending, StatusReviewed, StatusAccepted, StatusRejected:
		return status, true
	}
	return "", false
}

// Application is a job seeker's application to a single job.
// It is stored inside its parent Job and never exists on its own.
type Application struct {
	// ID is unique within the parent job's application list.
	ID string `json:"id"`

	// ApplicantID references the applying job seeker.
	ApplicantID string `json:"applicant_id"`

	// Applicant carries the applicant's name, email, skills and experience
	// on detail views. It is not persisted.
	Applicant *UserSummary `json:"applicant,omitempty"`

	// AppliedAt is set when the application is created and never changes.
	AppliedAt time.Time `json:"applied_at"`

	// Status is the current review state. Any of the four states may follow
	// any other; only the owning employer may change it.
	Status ApplicationStatus `json:"status"`

	// Resume is the object storage key (or external reference) of the
	// resume submitted with the application.
	Resume string `json:"resume,omitempty"`

	// CoverLetter is free text supplied by the applicant.
	CoverLetter string `json:"cover_letter,omitempty"`
}

// JobApplication pairs an application with a summary of the job it belongs
// to. It is the row shape of the per-seeker and per-employer listings.
type JobApplication struct {
	// JobID is the parent job's identifier.
	JobID string `json:"job_id"`

	// JobTitle is the parent job's title.
	JobTitle string `json:"job_title"`

	// CompanyName is the parent job's company name.
	CompanyName string `json:"company_name"`

	// IsActive mirrors the parent job's activation flag.
	IsActive bool `json:"is_active"`

	// Application is the embedded application itself.
	Application Application `json:"application"`
}
