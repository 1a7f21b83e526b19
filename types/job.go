package types

import "time"

// Experience labels shared by seeker profiles and job postings, in
// ascending order of seniority.
const (
	ExperienceInternship = "Internship"
	ExperienceFresher    = "Fresher"
	ExperienceEntryLevel = "Entry Level"
	ExperienceMidLevel   = "Mid Level"
	ExperienceSenior     = "Senior Level"
	ExperienceExecutive  = "Executive"
)

// Job represents a posting published by an employer.
// Applications are embedded and share the job's lifetime: deleting a job
// removes every application made to it.
type Job struct {
	// ID is the unique identifier of the job.
	ID string `json:"id" db:"id"`

	// Title is the human-readable name of the position.
	Title string `json:"title" db:"title"`

	// Description contains the full posting text.
	Description string `json:"description" db:"description"`

	// Skills lists the required skills in the order the employer gave them.
	Skills []string `json:"skills" db:"skills"`

	// Experience is the required experience label (see the Experience*
	// constants). Unknown labels are kept as-is.
	Experience string `json:"experience" db:"experience"`

	// Location is where the job is based.
	Location string `json:"location" db:"location"`

	// CompanyName is the hiring company's display name.
	CompanyName string `json:"company_name" db:"company_name"`

	// JobType describes the engagement (e.g. "Full-time", "Contract").
	JobType string `json:"job_type" db:"job_type"`

	// Salary is a free-form compensation description.
	Salary string `json:"salary" db:"salary"`

	// IsActive reports whether the job accepts applications and is eligible
	// for recommendations. New jobs are always active.
	IsActive bool `json:"is_active" db:"is_active"`

	// EmployerID references the owning user, whose role must be employer.
	EmployerID string `json:"employer_id" db:"employer_id"`

	// Employer carries the owner's name and email on read paths.
	// It is not persisted.
	Employer *UserSummary `json:"employer,omitempty" db:"-"`

	// Applications is the ordered list of applications to this job.
	// Insertion order is application order.
	Applications []Application `json:"applications" db:"applications"`

	// CreatedAt is the timestamp at which the job was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the job.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasApplicant reports whether userID has already applied to the job.
func (j Job) HasApplicant(userID string) bool {
	for _, app := range j.Applications {
		if app.ApplicantID == userID {
			return true
		}
	}
	return false
}

// FindApplication returns the index of the application with the given ID,
// or -1 if the job has no such application.
func (j Job) FindApplication(applicationID string) int {
	for i, app := range j.Applications {
		if app.ID == applicationID {
			return i
		}
	}
	return -1
}

// JobFilter narrows job listings. The zero value matches every job.
type JobFilter struct {
	// EmployerID restricts results to jobs owned by this employer.
	EmployerID string

	// ActiveOnly restricts results to jobs with IsActive set.
	ActiveOnly bool
}

// JobPage is one page of a job listing together with the total number of
// jobs matching the same filter.
type JobPage struct {
	Jobs  []Job `json:"jobs"`
	Total int   `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}
