package services

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jobnest/apiserver/internal/store"
	"github.com/jobnest/apiserver/types"
)

// ApplyInput carries the optional parts of an application.
type ApplyInput struct {
	Resume      string `json:"resume"`
	CoverLetter string `json:"cover_letter"`
}

// ApplicationService manages applications embedded in jobs.
type ApplicationService struct {
	jobs   JobRepository
	users  UserRepository
	events notifier
	logger *slog.Logger
	now    func() time.Time
}

func NewApplicationService(jobs JobRepository, users UserRepository, publisher EventPublisher, logger *slog.Logger) *ApplicationService {
	logger = loggerOrDefault(logger)
	return &ApplicationService{
		jobs:   jobs,
		users:  users,
		events: notifier{publisher: publisher, logger: logger},
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ApplyForJob appends a pending application from seekerID to an active job.
// A seeker can apply to a job at most once. When no resume is supplied the
// seeker's profile resume is used.
func (s *ApplicationService) ApplyForJob(ctx context.Context, jobID, seekerID string, input ApplyInput) (types.Job, error) {
	resume := strings.TrimSpace(input.Resume)
	if resume == "" {
		seeker, err := s.users.GetByID(ctx, seekerID)
		switch {
		case err == nil:
			resume = seeker.Resume
		case errors.Is(err, store.ErrNotFound):
			return types.Job{}, notFound("user not found")
		default:
			return types.Job{}, internal("failed to load user", err)
		}
	}

	var created types.Application
	job, err := s.jobs.Modify(ctx, jobID, func(job *types.Job) error {
		if !job.IsActive {
			return conflict("job is no longer active")
		}
		if job.HasApplicant(seekerID) {
			return conflict("you have already applied to this job")
		}
		created = types.Application{
			ID:          uuid.NewString(),
			ApplicantID: seekerID,
			AppliedAt:   s.now(),
			Status:      types.StatusPending,
			Resume:      resume,
			CoverLetter: strings.TrimSpace(input.CoverLetter),
		}
		job.Applications = append(job.Applications, created)
		return nil
	})
	if err != nil {
		return types.Job{}, translateJobErr(err, "failed to apply for job")
	}

	s.events.notify(ctx, types.Event{
		Type:          types.EventApplicationSubmitted,
		JobID:         job.ID,
		ApplicationID: created.ID,
		ActorID:       seekerID,
		Status:        created.Status,
	})
	return job, nil
}

// UpdateApplicationStatus moves an application to status. Any state may
// follow any other; only the job's owner may change it.
func (s *ApplicationService) UpdateApplicationStatus(ctx context.Context, jobID, applicationID, employerID, rawStatus string) (types.Application, error) {
	status, ok := types.ParseApplicationStatus(rawStatus)
	if !ok {
		return types.Application{}, &Error{
			Kind:    KindValidation,
			Message: "status must be one of pending, reviewed, accepted, rejected",
			Fields:  []string{"status"},
		}
	}

	var updated types.Application
	_, err := s.jobs.Modify(ctx, jobID, func(job *types.Job) error {
		if job.EmployerID != employerID {
			return forbidden("you can only manage applications for your own jobs")
		}
		idx := job.FindApplication(applicationID)
		if idx < 0 {
			return notFound("application not found")
		}
		job.Applications[idx].Status = status
		updated = job.Applications[idx]
		return nil
	})
	if err != nil {
		return types.Application{}, translateJobErr(err, "failed to update application status")
	}

	s.events.notify(ctx, types.Event{
		Type:          types.EventApplicationStatusUpdated,
		JobID:         jobID,
		ApplicationID: updated.ID,
		ActorID:       employerID,
		Status:        updated.Status,
	})
	return updated, nil
}

// ApplicationResume returns the resume reference of an application to a job
// owned by employerID.
func (s *ApplicationService) ApplicationResume(ctx context.Context, jobID, applicationID, employerID string) (string, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return "", translateJobErr(err, "failed to load job")
	}
	if job.EmployerID != employerID {
		return "", forbidden("you can only view applications for your own jobs")
	}
	idx := job.FindApplication(applicationID)
	if idx < 0 {
		return "", notFound("application not found")
	}
	if job.Applications[idx].Resume == "" {
		return "", notFound("resume not found")
	}
	return job.Applications[idx].Resume, nil
}

// ListMyApplications returns every application seekerID has made, newest first.
func (s *ApplicationService) ListMyApplications(ctx context.Context, seekerID string) ([]types.JobApplication, error) {
	jobs, err := s.jobs.ListByApplicant(ctx, seekerID)
	if err != nil {
		return nil, internal("failed to list applications", err)
	}

	out := make([]types.JobApplication, 0, len(jobs))
	for _, job := range jobs {
		for _, app := range job.Applications {
			if app.ApplicantID == seekerID {
				out = append(out, jobApplication(job, app))
			}
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// ListEmployerApplications returns every application made to jobs owned by
// employerID, with applicant details attached, newest first.
func (s *ApplicationService) ListEmployerApplications(ctx context.Context, employerID string) ([]types.JobApplication, error) {
	jobs, err := s.jobs.ListAll(ctx, types.JobFilter{EmployerID: employerID})
	if err != nil {
		return nil, internal("failed to list applications", err)
	}
	if err := attachApplicants(ctx, s.users, jobs); err != nil {
		return nil, internal("failed to load applicants", err)
	}

	var out []types.JobApplication
	for _, job := range jobs {
		for _, app := range job.Applications {
			out = append(out, jobApplication(job, app))
		}
	}
	sortNewestFirst(out)
	if out == nil {
		out = []types.JobApplication{}
	}
	return out, nil
}

func jobApplication(job types.Job, app types.Application) types.JobApplication {
	return types.JobApplication{
		JobID:       job.ID,
		JobTitle:    job.Title,
		CompanyName: job.CompanyName,
		IsActive:    job.IsActive,
		Application: app,
	}
}

func sortNewestFirst(apps []types.JobApplication) {
	slices.SortStableFunc(apps, func(a, b types.JobApplication) int {
		return b.Application.AppliedAt.Compare(a.Application.AppliedAt)
	})
}

func translateJobErr(err error, message string) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFound("job not found")
	}
	var serviceErr *Error
	if errors.As(err, &serviceErr) {
		return serviceErr
	}
	return internal(message, err)
}
