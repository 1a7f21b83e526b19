//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jobnest/apiserver/config"
	"github.com/jobnest/apiserver/internal/db"
	"github.com/jobnest/apiserver/internal/server"
	_ "github.com/lib/pq"
)

const (
	serverPort = 18080
)

var baseURL = fmt.Sprintf("http://localhost:%d", serverPort)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d", "postgres"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	setEnv()

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	matcherSrv := httptest.NewServer(http.HandlerFunc(fakeMatcher))
	_ = os.Setenv("MATCHER_BASE_URL", matcherSrv.URL)

	srv, err := startServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		matcherSrv.Close()
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown()
		matcherSrv.Close()
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown()
	matcherSrv.Close()
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestJobLifecycle(t *testing.T) {
	employer := register(t, "employer")
	rival := register(t, "employer")
	seeker := register(t, "jobseeker")

	job := createJob(t, employer.Token)
	if !job.IsActive {
		t.Fatalf("expected new job to be active")
	}

	status, env := call(t, http.MethodPut, "/jobs/"+job.ID, rival.Token, map[string]string{"title": "Taken over"})
	if status != http.StatusForbidden {
		t.Fatalf("rival update: expected 403, got %d: %s", status, env.Message)
	}

	status, env = call(t, http.MethodPost, "/jobs/"+job.ID+"/apply", seeker.Token, map[string]string{"cover_letter": "hi"})
	if status != http.StatusCreated {
		t.Fatalf("apply: expected 201, got %d: %s", status, env.Message)
	}
	var applied jobResponse
	decodeData(t, env, &applied)
	if len(applied.Applications) != 1 || applied.Applications[0].Status != "pending" {
		t.Fatalf("unexpected applications after apply: %+v", applied.Applications)
	}

	status, env = call(t, http.MethodPost, "/jobs/"+job.ID+"/apply", seeker.Token, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("duplicate apply: expected 400, got %d: %s", status, env.Message)
	}

	appID := applied.Applications[0].ID
	status, env = call(t, http.MethodPut, "/jobs/"+job.ID+"/applications/"+appID+"/status", employer.Token, map[string]string{"status": "reviewed"})
	if status != http.StatusOK {
		t.Fatalf("update status: expected 200, got %d: %s", status, env.Message)
	}

	status, env = call(t, http.MethodGet, "/jobs/"+job.ID, employer.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("get job: expected 200, got %d: %s", status, env.Message)
	}
	var detail jobResponse
	decodeData(t, env, &detail)
	if len(detail.Applications) != 1 || detail.Applications[0].Status != "reviewed" {
		t.Fatalf("unexpected applications on detail: %+v", detail.Applications)
	}
	if detail.Applications[0].Applicant == nil || detail.Applications[0].Applicant.Email != seeker.User.Email {
		t.Fatalf("expected applicant details on detail view")
	}

	status, env = call(t, http.MethodDelete, "/jobs/"+job.ID, employer.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("delete job: expected 200, got %d: %s", status, env.Message)
	}

	status, _ = call(t, http.MethodGet, "/jobs/"+job.ID, employer.Token, nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", status)
	}
}

func TestApplyToInactiveJob(t *testing.T) {
	employer := register(t, "employer")
	seeker := register(t, "jobseeker")
	job := createJob(t, employer.Token)

	status, env := call(t, http.MethodPut, "/jobs/"+job.ID+"/deactivate", employer.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("deactivate: expected 200, got %d: %s", status, env.Message)
	}

	status, env = call(t, http.MethodPost, "/jobs/"+job.ID+"/apply", seeker.Token, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("apply to inactive job: expected 400, got %d: %s", status, env.Message)
	}

	status, env = call(t, http.MethodGet, "/jobs/"+job.ID, employer.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("get job: expected 200, got %d", status)
	}
	var detail jobResponse
	decodeData(t, env, &detail)
	if len(detail.Applications) != 0 {
		t.Fatalf("expected no applications, got %d", len(detail.Applications))
	}
}

func TestConcurrentApplyRecordsOnce(t *testing.T) {
	employer := register(t, "employer")
	seeker := register(t, "jobseeker")
	job := createJob(t, employer.Token)

	const attempts = 8
	var wg sync.WaitGroup
	statuses := make([]int, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			statuses[i], _ = call(t, http.MethodPost, "/jobs/"+job.ID+"/apply", seeker.Token, nil)
		}(i)
	}
	wg.Wait()

	created := 0
	for _, status := range statuses {
		if status == http.StatusCreated {
			created++
		}
	}
	if created != 1 {
		t.Fatalf("expected exactly one successful apply, got %d (%v)", created, statuses)
	}

	_, env := call(t, http.MethodGet, "/jobs/"+job.ID, employer.Token, nil)
	var detail jobResponse
	decodeData(t, env, &detail)
	if len(detail.Applications) != 1 {
		t.Fatalf("expected one stored application, got %d", len(detail.Applications))
	}
}

func TestRecommendedJobs(t *testing.T) {
	employer := register(t, "employer")
	seeker := register(t, "jobseeker")
	job := createJob(t, employer.Token)

	status, env := call(t, http.MethodGet, "/jobs/recommended", seeker.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("recommended: expected 200, got %d: %s", status, env.Message)
	}

	var ranked []struct {
		ID              string `json:"id"`
		ExperienceLevel int    `json:"experience_level"`
	}
	decodeData(t, env, &ranked)
	found := false
	for _, entry := range ranked {
		if entry.ID == job.ID {
			found = true
			if entry.ExperienceLevel != 3 {
				t.Fatalf("expected experience_level 3, got %d", entry.ExperienceLevel)
			}
		}
	}
	if !found {
		t.Fatalf("expected job %s among recommendations", job.ID)
	}

	status, _ = call(t, http.MethodGet, "/jobs/recommended", employer.Token, nil)
	if status != http.StatusForbidden {
		t.Fatalf("employer recommendations: expected 403, got %d", status)
	}
}

// fakeMatcher echoes the candidate jobs back in pool order.
func fakeMatcher(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Jobs []json.RawMessage `json:"jobs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if req.Jobs == nil {
		req.Jobs = []json.RawMessage{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"matched_jobs": req.Jobs})
}

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type applicationResponse struct {
	ID        string        `json:"id"`
	Status    string        `json:"status"`
	Applicant *userResponse `json:"applicant"`
}

type jobResponse struct {
	ID           string                `json:"id"`
	Title        string                `json:"title"`
	IsActive     bool                  `json:"is_active"`
	Applications []applicationResponse `json:"applications"`
}

func register(t *testing.T, role string) authResponse {
	t.Helper()

	name := fmt.Sprintf("%s_%d", role, time.Now().UnixNano())
	status, env := call(t, http.MethodPost, "/auth/register", "", map[string]string{
		"name":     name,
		"email":    name + "@example.com",
		"password": "testpass123!",
		"role":     role,
	})
	if status != http.StatusCreated {
		t.Fatalf("register %s: status %d: %s", role, status, env.Message)
	}

	var parsed authResponse
	decodeData(t, env, &parsed)
	if parsed.Token == "" {
		t.Fatalf("missing token in register response")
	}
	return parsed
}

func createJob(t *testing.T, token string) jobResponse {
	t.Helper()

	status, env := call(t, http.MethodPost, "/jobs", token, map[string]any{
		"title":        "Backend Engineer",
		"description":  "Build and run the job board APIs.",
		"skills":       []string{"go", "postgres"},
		"experience":   "Mid Level",
		"location":     "Remote",
		"company_name": "Nest Inc",
		"job_type":     "Full-time",
		"salary":       "100k",
	})
	if status != http.StatusCreated {
		t.Fatalf("create job: status %d: %s", status, env.Message)
	}

	var parsed jobResponse
	decodeData(t, env, &parsed)
	if parsed.ID == "" {
		t.Fatalf("expected job ID to be set")
	}
	return parsed
}

func call(t *testing.T, method, path, token string, payload any) (int, envelope) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Errorf("encode payload: %v", err)
			return 0, envelope{}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, baseURL+path, body)
	if err != nil {
		t.Errorf("build request: %v", err)
		return 0, envelope{}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Errorf("%s %s: %v", method, path, err)
		return 0, envelope{}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Errorf("read response: %v", err)
		return resp.StatusCode, envelope{}
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Errorf("%s %s: decode envelope: %v: %s", method, path, err, strings.TrimSpace(string(raw)))
		return resp.StatusCode, envelope{}
	}
	if env.StatusCode != resp.StatusCode {
		t.Errorf("%s %s: envelope status %d does not match %d", method, path, env.StatusCode, resp.StatusCode)
	}
	return resp.StatusCode, env
}

func decodeData(t *testing.T, env envelope, dst any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func setEnv() {
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "jobnest")
	_ = os.Setenv("DB_PASSWORD", "jobnest")
	_ = os.Setenv("DB_NAME", "jobnest")
	_ = os.Setenv("DB_USE_SSL", "false")
	_ = os.Setenv("STORAGE_BACKEND", "")
	_ = os.Setenv("MQ_BACKEND", "")
	_ = os.Setenv("REDIS_ADDR", "")
}

func waitForPostgres(ctx context.Context) error {
	cfg := config.LoadConfig()
	conn, err := sql.Open("postgres", db.URL(cfg.Database))
	if err != nil {
		return err
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := conn.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	cfg := config.LoadConfig()
	migrationsURL := "file://" + filepath.Join(root, "internal", "db", "migrations")

	migrator, err := migrate.New(migrationsURL, db.URL(cfg.Database))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func startServer() (*server.Server, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	srv, err := server.New(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
