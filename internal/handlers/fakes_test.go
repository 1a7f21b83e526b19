package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jobnest/apiserver/internal/services"
	"github.com/jobnest/apiserver/internal/storage"
	"github.com/jobnest/apiserver/internal/store"
	"github.com/jobnest/apiserver/types"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type memoryJobs struct {
	mu   sync.Mutex
	jobs map[string]types.Job
	seq  int
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
	out := []types.Job{}
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
	offset = min(offset, len(all))
	end := min(offset+limit, len(all))
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
		if strings.EqualFold(user.Email, email) {
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

type memoryObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	kinds   map[string]string
}

func (m *memoryObjects) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.kinds[key] = contentType
	return nil
}

func (m *memoryObjects) Get(_ context.Context, key string) (storage.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return storage.Object{}, storage.ErrObjectNotFound
	}
	return storage.Object{
		Body:        io.NopCloser(bytes.NewReader(data)),
		ContentType: m.kinds[key],
		Size:        int64(len(data)),
	}, nil
}

func (m *memoryObjects) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// reverseScorer ranks candidates in reverse pool order.
type reverseScorer struct{}

func (reverseScorer) Rank(_ context.Context, req services.MatchRequest) ([]json.RawMessage, error) {
	out := []json.RawMessage{}
	for i := len(req.Jobs) - 1; i >= 0; i-- {
		raw, err := json.Marshal(req.Jobs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}

var (
	employerX = types.User{ID: "11111111-1111-1111-1111-111111111111", Name: "Acme", Email: "x@acme.test", Role: types.RoleEmployer}
	employerY = types.User{ID: "22222222-2222-2222-2222-222222222222", Name: "Globex", Email: "y@globex.test", Role: types.RoleEmployer}
	seekerA   = types.User{ID: "33333333-3333-3333-3333-333333333333", Name: "Ada", Email: "ada@example.test", Role: types.RoleJobseeker, Skills: []string{"go"}, Experience: types.ExperienceSenior}
)

type testAPI struct {
	router  http.Handler
	logs    *bytes.Buffer
	jobs    *memoryJobs
	users   *memoryUsers
	objects *memoryObjects
}

type apiOptions struct {
	scorer  services.Scorer
	limiter *LoginLimiter
}

func newTestAPI(t *testing.T, opts apiOptions) *testAPI {
	t.Helper()
	if opts.scorer == nil {
		opts.scorer = reverseScorer{}
	}

	api := &testAPI{
		logs: &bytes.Buffer{},
		jobs: &memoryJobs{jobs: make(map[string]types.Job)},
		users: &memoryUsers{users: map[string]types.User{
			employerX.ID: employerX,
			employerY.ID: employerY,
			seekerA.ID:   seekerA,
		}},
		objects: &memoryObjects{objects: make(map[string][]byte), kinds: make(map[string]string)},
	}
	logger := slog.New(slog.NewTextHandler(api.logs, nil))

	userService := services.NewUserService(api.users, api.objects, logger)
	jobService := services.NewJobService(api.jobs, api.users, nil, logger)
	applicationService := services.NewApplicationService(api.jobs, api.users, nil, logger)
	recommendationService := services.NewRecommendationService(api.jobs, api.users, opts.scorer, logger)

	authHandler := NewAuthHandler(userService, testSecret, time.Hour, opts.limiter)
	jobHandler := NewJobHandler(jobService, applicationService, recommendationService, userService)
	userHandler := NewUserHandler(userService)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, RequestLogger(logger))
	r.Get("/healthz", Healthz)
	r.Route("/auth", func(r chi.Router) { AuthRouter(r, authHandler) })
	r.Route("/jobs", func(r chi.Router) { JobRouter(r, jobHandler, authHandler.RequireAuth) })
	r.Route("/users", func(r chi.Router) { UserRouter(r, userHandler, authHandler.RequireAuth) })
	api.router = r
	return api
}

func tokenFor(t *testing.T, user types.User) string {
	t.Helper()
	token, err := issueToken(user, []byte(testSecret), time.Hour)
	require.NoError(t, err)
	return token
}

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Meta       json.RawMessage `json:"meta"`
}

func (api *testAPI) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func jobPayload() map[string]any {
	return map[string]any{
		"title":        "Backend Engineer",
		"description":  "Build APIs",
		"skills":       []string{"go", "postgres"},
		"experience":   types.ExperienceMidLevel,
		"location":     "Remote",
		"company_name": "Acme",
		"job_type":     "Full-time",
		"salary":       "100k",
	}
}

func (api *testAPI) createJob(t *testing.T, employer types.User) types.Job {
	t.Helper()
	rec, env := api.do(t, http.MethodPost, "/jobs", tokenFor(t, employer), jobPayload())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var job types.Job
	require.NoError(t, json.Unmarshal(env.Data, &job))
	return job
}
