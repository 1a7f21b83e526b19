package services

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/jobnest/apiserver/internal/store"
	"github.com/jobnest/apiserver/types"
)

type memoryJobs struct {
	mu   sync.Mutex
	jobs map[string]types.Job
	seq  int
}

func newMemoryJobs() *memoryJobs {
	return &memoryJobs{jobs: make(map[string]types.Job)}
}

func cloneJob(job types.Job) types.Job {
	job.Skills = append([]string(nil), job.Skills...)
	job.Applications = append([]types.Application{}, job.Applications...)
	return job
}

func (m *memoryJobs) Create(_ context.Context, job types.Job) (types.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	job.CreatedAt = time.Unix(int64(m.seq), 0).UTC()
	job.UpdatedAt = job.CreatedAt
	m.jobs[job.ID] = cloneJob(job)
	return cloneJob(job), nil
}

func (m *memoryJobs) Get(_ context.Context, id string) (types.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return types.Job{}, store.ErrNotFound
	}
	return cloneJob(job), nil
}

func (m *memoryJobs) Modify(_ context.Context, id string, fn func(job *types.Job) error) (types.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return types.Job{}, store.ErrNotFound
	}
	job = cloneJob(job)
	if err := fn(&job); err != nil {
		return types.Job{}, err
	}
	m.jobs[id] = cloneJob(job)
	return job, nil
}

func (m *memoryJobs) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.jobs, id)
	return nil
}

func (m *memoryJobs) matching(filter types.JobFilter) []types.Job {
	var out []types.Job
	for _, job := range m.jobs {
		if filter.EmployerID != "" && job.EmployerID != filter.EmployerID {
			continue
		}
		if filter.ActiveOnly && !job.IsActive {
			continue
		}
		out = append(out, cloneJob(job))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memoryJobs) List(_ context.Context, filter types.JobFilter, offset, limit int) ([]types.Job, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.matching(filter)
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (m *memoryJobs) ListAll(_ context.Context, filter types.JobFilter) ([]types.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matching(filter), nil
}

func (m *memoryJobs) ListByApplicant(_ context.Context, applicantID string) ([]types.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Job
	for _, job := range m.matching(types.JobFilter{}) {
		if job.HasApplicant(applicantID) {
			out = append(out, job)
		}
	}
	return out, nil
}

type memoryUsers struct {
	mu    sync.Mutex
	users map[string]types.User
}

func newMemoryUsers(users ...types.User) *memoryUsers {
	m := &memoryUsers{users: make(map[string]types.User)}
	for _, user := range users {
		m.users[user.ID] = user
	}
	return m
}

func (m *memoryUsers) GetByID(_ context.Context, id string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (m *memoryUsers) GetByEmail(_ context.Context, email string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memoryUsers) GetByIDs(_ context.Context, ids []string) (map[string]types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]types.User)
	for _, id := range ids {
		if user, ok := m.users[id]; ok {
			out[id] = user
		}
	}
	return out, nil
}

func (m *memoryUsers) Create(_ context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return user, nil
}

func (m *memoryUsers) Update(_ context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	m.users[user.ID] = user
	return user, nil
}

// echoScorer returns the candidate jobs in reverse order and records the
// last request.
type echoScorer struct {
	mu   sync.Mutex
	last MatchRequest
	err  error
	keep int
}

func (s *echoScorer) Rank(_ context.Context, req MatchRequest) ([]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	out := make([]json.RawMessage, 0, len(req.Jobs))
	for i := len(req.Jobs) - 1; i >= 0; i-- {
		raw, err := json.Marshal(req.Jobs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	if s.keep > 0 && s.keep < len(out) {
		out = out[:s.keep]
	}
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []types.Event
	err    error
}

func (p *recordingPublisher) PublishEvent(_ context.Context, event types.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) eventTypes() []types.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.EventType, 0, len(p.events))
	for _, event := range p.events {
		out = append(out, event.Type)
	}
	return out
}

var (
	employerX = types.User{ID: "11111111-1111-1111-1111-111111111111", Name: "Acme", Email: "x@acme.test", Role: types.RoleEmployer}
	employerY = types.User{ID: "22222222-2222-2222-2222-222222222222", Name: "Globex", Email: "y@globex.test", Role: types.RoleEmployer}
	seekerA   = types.User{ID: "33333333-3333-3333-3333-333333333333", Name: "Ada", Email: "ada@example.test", Role: types.RoleJobseeker, Skills: []string{"go", "sql"}, Experience: types.ExperienceSenior, Resume: "resumes/ada/cv.pdf"}
	seekerB   = types.User{ID: "44444444-4444-4444-4444-444444444444", Name: "Bob", Email: "bob@example.test", Role: types.RoleJobseeker, Skills: []string{"react"}, Experience: "Guru"}
)

func validJobInput() JobInput {
	return JobInput{
		Title:       "Backend Engineer",
		Description: "Build APIs",
		Skills:      []string{"go", "postgres"},
		Experience:  types.ExperienceMidLevel,
		Location:    "Remote",
		CompanyName: "Acme",
		JobType:     "Full-time",
		Salary:      "100k",
	}
}
