package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/jobnest/apiserver/internal/store"
	"github.com/jobnest/apiserver/types"
)

// MatchRequest is the profile and candidate pool sent to a Scorer.
type MatchRequest struct {
	Skills     []string       `json:"skills"`
	Experience int            `json:"experience"`
	Jobs       []CandidateJob `json:"jobs"`
}

// CandidateJob is a job from the eligible pool with its experience label
// mapped onto the numeric scale. The label itself stays in Experience.
type CandidateJob struct {
	types.Job
	ExperienceLevel int `json:"experience_level"`
}

// Scorer ranks candidate jobs against a seeker profile. The returned entries
// are passed to the client unchanged and in order.
type Scorer interface {
	Rank(ctx context.Context, req MatchRequest) ([]json.RawMessage, error)
}

// Recommendations is the result of GetRecommendedJobs. Total counts the
// eligible pool, not the ranked entries.
type Recommendations struct {
	Jobs  []json.RawMessage `json:"jobs"`
	Total int               `json:"total"`
}

// RecommendationService ranks active jobs for a job seeker by delegating to
// an external Scorer.
type RecommendationService struct {
	jobs   JobRepository
	users  UserRepository
	scorer Scorer
	logger *slog.Logger
}

func NewRecommendationService(jobs JobRepository, users UserRepository, scorer Scorer, logger *slog.Logger) *RecommendationService {
	return &RecommendationService{
		jobs:   jobs,
		users:  users,
		scorer: scorer,
		logger: loggerOrDefault(logger),
	}
}

// GetRecommendedJobs returns the active jobs ranked for seekerID.
// A scorer failure fails the whole request; there is no fallback ranking.
func (s *RecommendationService) GetRecommendedJobs(ctx context.Context, seekerID string) (Recommendations, error) {
	seeker, err := s.users.GetByID(ctx, seekerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Recommendations{}, notFound("user not found")
		}
		return Recommendations{}, internal("failed to load user", err)
	}

	pool, err := s.jobs.ListAll(ctx, types.JobFilter{ActiveOnly: true})
	if err != nil {
		return Recommendations{}, internal("failed to load jobs", err)
	}

	req := BuildMatchRequest(seeker, pool)
	ranked, err := s.scorer.Rank(ctx, req)
	if err != nil {
		s.logger.ErrorContext(ctx, "job matcher failed",
			slog.String("user_id", seekerID),
			slog.Int("pool_size", len(pool)),
			slog.Any("error", err),
		)
		return Recommendations{}, internal("failed to rank jobs", err)
	}
	if ranked == nil {
		ranked = []json.RawMessage{}
	}

	return Recommendations{
		Jobs:  ranked,
		Total: len(pool),
	}, nil
}

// BuildMatchRequest shapes a seeker profile and a job pool into a matcher
// request. Applications are not sent to the matcher.
func BuildMatchRequest(seeker types.User, pool []types.Job) MatchRequest {
	skills := seeker.Skills
	if skills == nil {
		skills = []string{}
	}
	candidates := make([]CandidateJob, 0, len(pool))
	for _, job := range pool {
		job.Applications = nil
		candidates = append(candidates, CandidateJob{
			Job:             job,
			ExperienceLevel: ExperienceLevel(job.Experience),
		})
	}
	return MatchRequest{
		Skills:     skills,
		Experience: ExperienceLevel(seeker.Experience),
		Jobs:       candidates,
	}
}
