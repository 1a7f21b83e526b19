package types

import (
	"strings"
	"time"
)

// Role is the authorization role attached to every account.
type Role string

const (
	RoleJobseeker Role = "jobseeker"
	RoleEmployer  Role = "employer"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleJobseeker, RoleEmployer, RoleAdmin:
		return true
	}
	return false
}

// ParseRole normalizes a raw role string. It returns false for unknown roles.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	return role, role.Valid()
}

// User represents an account in the system.
// It contains identity, role, the seeker profile used for matching and,
// for employers, the company profile.
type User struct {
	// ID is the unique identifier of the user.
	ID string `json:"id" db:"id"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name"`

	// Email is the user's email address. It is stored lower-cased and is
	// unique across all users.
	Email string `json:"email" db:"email"`

	// Role indicates the user's authorization level within the system.
	// It is fixed at registration and never changed afterwards.
	Role Role `json:"role" db:"role"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Skills lists the skills a job seeker declares on their profile.
	Skills []string `json:"skills" db:"skills"`

	// Experience is the seeker's experience label (e.g. "Mid Level").
	Experience string `json:"experience,omitempty" db:"experience"`

	// Resume is the object storage key of the seeker's uploaded resume.
	// Applications default to this reference when none is supplied.
	Resume string `json:"resume,omitempty" db:"resume"`

	// Phone is an optional contact number.
	Phone string `json:"phone,omitempty" db:"phone"`

	// Location is the user's preferred or current location.
	Location string `json:"location,omitempty" db:"location"`

	// CompanyName is the employer's company name.
	// Only meaningful when Role is employer.
	CompanyName string `json:"company_name,omitempty" db:"company_name"`

	// CompanySize is a free-form size bracket (e.g. "11-50").
	// Only meaningful when Role is employer.
	CompanySize string `json:"company_size,omitempty" db:"company_size"`

	// Industry is the employer's industry.
	// Only meaningful when Role is employer.
	Industry string `json:"industry,omitempty" db:"industry"`

	// CompanyDescription is the employer's company blurb.
	// Only meaningful when Role is employer.
	CompanyDescription string `json:"company_description,omitempty" db:"company_description"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// UserSummary is the public projection of a user attached to jobs
// (the owning employer) and to applications (the applicant).
type UserSummary struct {
	// ID is the unique identifier of the user.
	ID string `json:"id"`

	// Name is the user's display name.
	Name string `json:"name"`

	// Email is the user's email address.
	Email string `json:"email"`

	// Skills is populated for applicants only.
	Skills []string `json:"skills,omitempty"`

	// Experience is populated for applicants only.
	Experience string `json:"experience,omitempty"`
}

// Summary projects the user onto its public summary. Skills and experience
// are included when includeProfile is set.
func (u User) Summary(includeProfile bool) *UserSummary {
	summary := &UserSummary{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
	}
	if includeProfile {
		summary.Skills = u.Skills
		summary.Experience = u.Experience
	}
	return summary
}
