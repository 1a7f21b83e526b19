package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jobnest/apiserver/types"
)

const jobColumns = `
	j.id, j.title, j.description, j.skills, j.experience, j.location, j.company_name,
	j.job_type, j.salary, j.is_active, j.employer_id, j.applications, j.created_at, j.updated_at`

// JobRepository handles persistence for jobs. Applications live in the
// jobs.applications JSONB column and are always written with their job.
type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(ctx context.Context, job types.Job) (types.Job, error) {
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now

	skillsJSON, appsJSON, err := encodeJob(job)
	if err != nil {
		return types.Job{}, err
	}

	const query = `
		INSERT INTO jobs (id, title, description, skills, experience, location, company_name, job_type,
			salary, is_active, employer_id, applications, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		job.ID,
		job.Title,
		job.Description,
		string(skillsJSON),
		job.Experience,
		job.Location,
		job.CompanyName,
		job.JobType,
		job.Salary,
		job.IsActive,
		job.EmployerID,
		string(appsJSON),
		job.CreatedAt,
		job.UpdatedAt,
	); err != nil {
		return types.Job{}, err
	}
	if job.Applications == nil {
		job.Applications = []types.Application{}
	}
	return job, nil
}

// Get returns a job with its employer summary attached.
func (r *JobRepository) Get(ctx context.Context, id string) (types.Job, error) {
	query := `SELECT ` + jobColumns + `, u.name, u.email
		FROM jobs j
		JOIN users u ON u.id = j.employer_id
		WHERE j.id = $1`
	job, err := scanJobWithEmployer(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Job{}, ErrNotFound
		}
		return types.Job{}, err
	}
	return job, nil
}

// Modify locks the job row for the duration of fn so that concurrent
// modifications of the same job are applied one after another.
func (r *JobRepository) Modify(ctx context.Context, id string, fn func(job *types.Job) error) (types.Job, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Job{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `SELECT ` + jobColumns + ` FROM jobs j WHERE j.id = $1 FOR UPDATE`
	job, err := scanJob(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Job{}, ErrNotFound
		}
		return types.Job{}, err
	}

	if err := fn(&job); err != nil {
		return types.Job{}, err
	}
	job.UpdatedAt = time.Now().UTC()

	skillsJSON, appsJSON, err := encodeJob(job)
	if err != nil {
		return types.Job{}, err
	}

	const update = `
		UPDATE jobs
		SET title = $1,
			description = $2,
			skills = $3,
			experience = $4,
			location = $5,
			company_name = $6,
			job_type = $7,
			salary = $8,
			is_active = $9,
			applications = $10,
			updated_at = $11
		WHERE id = $12`
	if _, err := tx.ExecContext(
		ctx,
		update,
		job.Title,
		job.Description,
		string(skillsJSON),
		job.Experience,
		job.Location,
		job.CompanyName,
		job.JobType,
		job.Salary,
		job.IsActive,
		string(appsJSON),
		job.UpdatedAt,
		job.ID,
	); err != nil {
		return types.Job{}, err
	}

	if err := tx.Commit(); err != nil {
		return types.Job{}, err
	}
	return job, nil
}

func (r *JobRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM jobs WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns one page of jobs matching filter, newest first, and the total
// number of jobs matching the same filter.
func (r *JobRepository) List(ctx context.Context, filter types.JobFilter, offset, limit int) ([]types.Job, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 10
	}

	where, args := filterClause(filter)

	countQuery := `SELECT COUNT(1) FROM jobs j` + where
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := fmt.Sprintf(`SELECT %s, u.name, u.email
		FROM jobs j
		JOIN users u ON u.id = j.employer_id%s
		ORDER BY j.created_at DESC, j.id
		OFFSET $%d LIMIT $%d`, jobColumns, where, len(args)+1, len(args)+2)
	args = append(args, offset, limit)

	jobs, err := r.queryJobs(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

// ListAll returns every job matching filter, newest first.
func (r *JobRepository) ListAll(ctx context.Context, filter types.JobFilter) ([]types.Job, error) {
	where, args := filterClause(filter)
	query := `SELECT ` + jobColumns + `, u.name, u.email
		FROM jobs j
		JOIN users u ON u.id = j.employer_id` + where + `
		ORDER BY j.created_at DESC, j.id`
	return r.queryJobs(ctx, query, args...)
}

// ListByApplicant returns every job that applicantID has applied to.
func (r *JobRepository) ListByApplicant(ctx context.Context, applicantID string) ([]types.Job, error) {
	needle, err := json.Marshal([]map[string]string{{"applicant_id": applicantID}})
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + jobColumns + `, u.name, u.email
		FROM jobs j
		JOIN users u ON u.id = j.employer_id
		WHERE j.applications @> $1::jsonb
		ORDER BY j.created_at DESC, j.id`
	return r.queryJobs(ctx, query, string(needle))
}

func (r *JobRepository) queryJobs(ctx context.Context, query string, args ...any) ([]types.Job, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := make([]types.Job, 0)
	for rows.Next() {
		job, err := scanJobWithEmployer(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return jobs, nil
}

func filterClause(filter types.JobFilter) (string, []any) {
	var conds []string
	var args []any
	if filter.EmployerID != "" {
		args = append(args, filter.EmployerID)
		conds = append(conds, fmt.Sprintf("j.employer_id = $%d", len(args)))
	}
	if filter.ActiveOnly {
		conds = append(conds, "j.is_active")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanJob(row rowScanner) (types.Job, error) {
	var job types.Job
	var skillsJSON, appsJSON []byte
	if err := row.Scan(
		&job.ID,
		&job.Title,
		&job.Description,
		&skillsJSON,
		&job.Experience,
		&job.Location,
		&job.CompanyName,
		&job.JobType,
		&job.Salary,
		&job.IsActive,
		&job.EmployerID,
		&appsJSON,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return types.Job{}, err
	}
	return decodeJob(job, skillsJSON, appsJSON)
}

func scanJobWithEmployer(row rowScanner) (types.Job, error) {
	var job types.Job
	var skillsJSON, appsJSON []byte
	var employerName, employerEmail string
	if err := row.Scan(
		&job.ID,
		&job.Title,
		&job.Description,
		&skillsJSON,
		&job.Experience,
		&job.Location,
		&job.CompanyName,
		&job.JobType,
		&job.Salary,
		&job.IsActive,
		&job.EmployerID,
		&appsJSON,
		&job.CreatedAt,
		&job.UpdatedAt,
		&employerName,
		&employerEmail,
	); err != nil {
		return types.Job{}, err
	}
	job.Employer = &types.UserSummary{
		ID:    job.EmployerID,
		Name:  employerName,
		Email: employerEmail,
	}
	return decodeJob(job, skillsJSON, appsJSON)
}

func decodeJob(job types.Job, skillsJSON, appsJSON []byte) (types.Job, error) {
	if err := json.Unmarshal(skillsJSON, &job.Skills); err != nil {
		return types.Job{}, fmt.Errorf("decode job skills: %w", err)
	}
	if err := json.Unmarshal(appsJSON, &job.Applications); err != nil {
		return types.Job{}, fmt.Errorf("decode job applications: %w", err)
	}
	if job.Applications == nil {
		job.Applications = []types.Application{}
	}
	return job, nil
}

// encodeJob marshals the JSONB columns of a job. Applicant summaries are
// read-side decoration and are not persisted.
func encodeJob(job types.Job) ([]byte, []byte, error) {
	skills := job.Skills
	if skills == nil {
		skills = []string{}
	}
	skillsJSON, err := json.Marshal(skills)
	if err != nil {
		return nil, nil, err
	}

	apps := make([]types.Application, len(job.Applications))
	for i, app := range job.Applications {
		app.Applicant = nil
		apps[i] = app
	}
	appsJSON, err := json.Marshal(apps)
	if err != nil {
		return nil, nil, err
	}
	return skillsJSON, appsJSON, nil
}
