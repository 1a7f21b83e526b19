package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jobnest/apiserver/internal/store"
	"github.com/jobnest/apiserver/types"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// JobRepository defines persistence operations for jobs and their
// embedded applications.
type JobRepository interface {
	Create(ctx context.Context, job types.Job) (types.Job, error)
	Get(ctx context.Context, id string) (types.Job, error)
	// Modify loads the job, applies fn and saves the result as one unit.
	// Concurrent Modify calls on the same job are serialized. When fn
	// returns an error nothing is saved and that error is returned.
	Modify(ctx context.Context, id string, fn func(job *types.Job) error) (types.Job, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter types.JobFilter, offset, limit int) ([]types.Job, int, error)
	ListAll(ctx context.Context, filter types.JobFilter) ([]types.Job, error)
	ListByApplicant(ctx context.Context, applicantID string) ([]types.Job, error)
}

// JobInput carries the fields of a new job posting.
type JobInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Skills      []string `json:"skills"`
	Experience  string   `json:"experience"`
	Location    string   `json:"location"`
	CompanyName string   `json:"company_name"`
	JobType     string   `json:"job_type"`
	Salary      string   `json:"salary"`
}

// JobPatch is a partial update. Nil fields are left unchanged.
type JobPatch struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Skills      *[]string `json:"skills"`
	Experience  *string   `json:"experience"`
	Location    *string   `json:"location"`
	CompanyName *string   `json:"company_name"`
	JobType     *string   `json:"job_type"`
	Salary      *string   `json:"salary"`
	IsActive    *bool     `json:"is_active"`
}

// JobService manages the lifecycle of job postings.
type JobService struct {
	jobs   JobRepository
	users  UserRepository
	events notifier
	logger *slog.Logger
}

func NewJobService(jobs JobRepository, users UserRepository, publisher EventPublisher, logger *slog.Logger) *JobService {
	logger = loggerOrDefault(logger)
	return &JobService{
		jobs:   jobs,
		users:  users,
		events: notifier{publisher: publisher, logger: logger},
		logger: logger,
	}
}

// CreateJob publishes a new active job owned by employerID.
func (s *JobService) CreateJob(ctx context.Context, employerID string, input JobInput) (types.Job, error) {
	input = normalizeJobInput(input)
	if missing := input.missingFields(); len(missing) > 0 {
		return types.Job{}, missingFields(missing)
	}

	employer, err := s.users.GetByID(ctx, employerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Job{}, notFound("employer not found")
		}
		return types.Job{}, internal("failed to load employer", err)
	}
	if employer.Role != types.RoleEmployer {
		return types.Job{}, forbidden("only employers can post jobs")
	}

	created, err := s.jobs.Create(ctx, types.Job{
		ID:           uuid.NewString(),
		Title:        input.Title,
		Description:  input.Description,
		Skills:       input.Skills,
		Experience:   input.Experience,
		Location:     input.Location,
		CompanyName:  input.CompanyName,
		JobType:      input.JobType,
		Salary:       input.Salary,
		IsActive:     true,
		EmployerID:   employer.ID,
		Applications: []types.Application{},
	})
	if err != nil {
		return types.Job{}, internal("failed to create job", err)
	}
	created.Employer = employer.Summary(false)

	s.events.notify(ctx, types.Event{
		Type:    types.EventJobCreated,
		JobID:   created.ID,
		ActorID: employer.ID,
	})
	return created, nil
}

// UpdateJob applies patch to a job owned by employerID.
func (s *JobService) UpdateJob(ctx context.Context, jobID, employerID string, patch JobPatch) (types.Job, error) {
	if err := patch.validate(); err != nil {
		return types.Job{}, err
	}

	updated, err := s.jobs.Modify(ctx, jobID, func(job *types.Job) error {
		if job.EmployerID != employerID {
			return forbidden("you can only modify your own jobs")
		}
		patch.apply(job)
		return nil
	})
	if err != nil {
		return types.Job{}, translateJobErr(err, "failed to update job")
	}
	return s.withEmployer(ctx, updated), nil
}

// DeactivateJob stops a job from accepting applications and removes it from
// the recommendation pool.
func (s *JobService) DeactivateJob(ctx context.Context, jobID, employerID string) (types.Job, error) {
	inactive := false
	return s.UpdateJob(ctx, jobID, employerID, JobPatch{IsActive: &inactive})
}

// DeleteJob removes a job owned by employerID together with its applications.
func (s *JobService) DeleteJob(ctx context.Context, jobID, employerID string) error {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return translateJobErr(err, "failed to load job")
	}
	if job.EmployerID != employerID {
		return forbidden("you can only delete your own jobs")
	}
	if err := s.jobs.Delete(ctx, jobID); err != nil {
		return translateJobErr(err, "failed to delete job")
	}

	s.events.notify(ctx, types.Event{
		Type:    types.EventJobDeleted,
		JobID:   jobID,
		ActorID: employerID,
	})
	return nil
}

// ListJobs returns one page of jobs visible to the caller. Employers see
// their own jobs; every other role sees active jobs only.
func (s *JobService) ListJobs(ctx context.Context, role types.Role, callerID string, page, limit int) (types.JobPage, error) {
	page, limit = clampPage(page, limit)

	filter := types.JobFilter{ActiveOnly: true}
	if role == types.RoleEmployer {
		filter = types.JobFilter{EmployerID: callerID}
	}

	jobs, total, err := s.jobs.List(ctx, filter, (page-1)*limit, limit)
	if err != nil {
		return types.JobPage{}, internal("failed to list jobs", err)
	}
	return types.JobPage{
		Jobs:  jobs,
		Total: total,
		Page:  page,
		Limit: limit,
	}, nil
}

// GetJob returns a job with its owner and applicant details attached.
func (s *JobService) GetJob(ctx context.Context, jobID string) (types.Job, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return types.Job{}, translateJobErr(err, "failed to load job")
	}
	if err := attachApplicants(ctx, s.users, []types.Job{job}); err != nil {
		return types.Job{}, internal("failed to load applicants", err)
	}
	return job, nil
}

func (s *JobService) withEmployer(ctx context.Context, job types.Job) types.Job {
	if job.Employer != nil {
		return job
	}
	employer, err := s.users.GetByID(ctx, job.EmployerID)
	if err != nil {
		s.logger.WarnContext(ctx, "load job employer failed",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
		return job
	}
	job.Employer = employer.Summary(false)
	return job
}

// attachApplicants fills the Applicant summary of every application in jobs.
func attachApplicants(ctx context.Context, users UserRepository, jobs []types.Job) error {
	var ids []string
	seen := make(map[string]struct{})
	for _, job := range jobs {
		for _, app := range job.Applications {
			if _, ok := seen[app.ApplicantID]; ok {
				continue
			}
			seen[app.ApplicantID] = struct{}{}
			ids = append(ids, app.ApplicantID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	applicants, err := users.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for i := range jobs {
		for j := range jobs[i].Applications {
			if user, ok := applicants[jobs[i].Applications[j].ApplicantID]; ok {
				jobs[i].Applications[j].Applicant = user.Summary(true)
			}
		}
	}
	return nil
}

func clampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

func normalizeJobInput(input JobInput) JobInput {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	input.Skills = cleanStrings(input.Skills)
	input.Experience = strings.TrimSpace(input.Experience)
	input.Location = strings.TrimSpace(input.Location)
	input.CompanyName = strings.TrimSpace(input.CompanyName)
	input.JobType = strings.TrimSpace(input.JobType)
	input.Salary = strings.TrimSpace(input.Salary)
	return input
}

func (in JobInput) missingFields() []string {
	var missing []string
	check := func(name string, empty bool) {
		if empty {
			missing = append(missing, name)
		}
	}
	check("title", in.Title == "")
	check("description", in.Description == "")
	check("skills", len(in.Skills) == 0)
	check("experience", in.Experience == "")
	check("location", in.Location == "")
	check("company_name", in.CompanyName == "")
	check("job_type", in.JobType == "")
	check("salary", in.Salary == "")
	return missing
}

// validate rejects patches that would blank out a required text field.
func (p JobPatch) validate() error {
	var blank []string
	check := func(name string, value *string) {
		if value != nil && strings.TrimSpace(*value) == "" {
			blank = append(blank, name)
		}
	}
	check("title", p.Title)
	check("description", p.Description)
	check("location", p.Location)
	check("company_name", p.CompanyName)
	if len(blank) > 0 {
		err := missingFields(blank)
		err.Message = "fields cannot be empty: " + strings.Join(blank, ", ")
		return err
	}
	return nil
}

func (p JobPatch) apply(job *types.Job) {
	set := func(dst *string, value *string) {
		if value != nil {
			*dst = strings.TrimSpace(*value)
		}
	}
	set(&job.Title, p.Title)
	set(&job.Description, p.Description)
	set(&job.Experience, p.Experience)
	set(&job.Location, p.Location)
	set(&job.CompanyName, p.CompanyName)
	set(&job.JobType, p.JobType)
	set(&job.Salary, p.Salary)
	if p.Skills != nil {
		job.Skills = cleanStrings(*p.Skills)
	}
	if p.IsActive != nil {
		job.IsActive = *p.IsActive
	}
}

func cleanStrings(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
