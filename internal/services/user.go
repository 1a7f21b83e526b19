package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/jobnest/apiserver/internal/storage"
	"github.com/jobnest/apiserver/internal/store"
	"github.com/jobnest/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	// GetByIDs returns the users found among ids keyed by ID. Missing ids
	// are omitted rather than reported.
	GetByIDs(ctx context.Context, ids []string) (map[string]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
}

// ObjectStore stores uploaded resume files.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (storage.Object, error)
	Delete(ctx context.Context, key string) error
}

// resumePrefix marks resume references that live in object storage. Other
// references (for example links supplied when applying) are opaque.
const resumePrefix = "resumes/"

// ProfileInput is a partial profile update. Nil fields are left unchanged.
type ProfileInput struct {
	Name               *string   `json:"name"`
	Skills             *[]string `json:"skills"`
	Experience         *string   `json:"experience"`
	Phone              *string   `json:"phone"`
	Location           *string   `json:"location"`
	CompanyName        *string   `json:"company_name"`
	CompanySize        *string   `json:"company_size"`
	Industry           *string   `json:"industry"`
	CompanyDescription *string   `json:"company_description"`
}

// ResumeUpload is a resume file received from a client.
type ResumeUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

var resumeExtensions = map[string]struct{}{
	".pdf":  {},
	".doc":  {},
	".docx": {},
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo    UserRepository
	storage ObjectStore
	logger  *slog.Logger
}

// NewUserService constructs a UserService. storage may be nil, in which case
// resume uploads are rejected.
func NewUserService(repo UserRepository, storage ObjectStore, logger *slog.Logger) *UserService {
	return &UserService{
		repo:    repo,
		storage: storage,
		logger:  loggerOrDefault(logger),
	}
}

func (s *UserService) GetByID(ctx context.Context, id string) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return s.repo.GetByEmail(ctx, normalizeEmail(email))
}

// Create registers a new account. The email is stored lower-cased and must
// not already be in use.
func (s *UserService) Create(ctx context.Context, user types.User) (types.User, error) {
	user.ID = uuid.NewString()
	user.Email = normalizeEmail(user.Email)
	user.Name = strings.TrimSpace(user.Name)
	user.Skills = cleanStrings(user.Skills)

	if _, err := s.repo.GetByEmail(ctx, user.Email); err == nil {
		return types.User{}, conflict("email already registered")
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, internal("failed to check user", err)
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, conflict("email already registered")
		}
		return types.User{}, internal("failed to create user", err)
	}
	return created, nil
}

// UpdateProfile applies a partial profile update. Company fields are only
// accepted from employers and the role never changes.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, input ProfileInput) (types.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, notFound("user not found")
		}
		return types.User{}, internal("failed to load user", err)
	}

	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return types.User{}, &Error{Kind: KindValidation, Message: "name cannot be empty", Fields: []string{"name"}}
	}
	if input.Experience != nil && strings.TrimSpace(*input.Experience) != "" && !ValidExperience(*input.Experience) {
		return types.User{}, &Error{Kind: KindValidation, Message: "unknown experience level", Fields: []string{"experience"}}
	}
	if user.Role != types.RoleEmployer && input.hasCompanyFields() {
		return types.User{}, forbidden("only employers have a company profile")
	}

	set := func(dst *string, value *string) {
		if value != nil {
			*dst = strings.TrimSpace(*value)
		}
	}
	set(&user.Name, input.Name)
	set(&user.Experience, input.Experience)
	set(&user.Phone, input.Phone)
	set(&user.Location, input.Location)
	set(&user.CompanyName, input.CompanyName)
	set(&user.CompanySize, input.CompanySize)
	set(&user.Industry, input.Industry)
	set(&user.CompanyDescription, input.CompanyDescription)
	if input.Skills != nil {
		user.Skills = cleanStrings(*input.Skills)
	}

	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return types.User{}, internal("failed to update profile", err)
	}
	return updated, nil
}

// UploadResume stores a resume file and records its key on the profile.
func (s *UserService) UploadResume(ctx context.Context, userID string, upload ResumeUpload) (types.User, error) {
	if s.storage == nil {
		return types.User{}, internal("resume storage is not configured", errors.New("no storage backend"))
	}

	ext := strings.ToLower(path.Ext(upload.Filename))
	if _, ok := resumeExtensions[ext]; !ok {
		return types.User{}, &Error{Kind: KindValidation, Message: "resume must be a pdf, doc or docx file", Fields: []string{"file"}}
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, notFound("user not found")
		}
		return types.User{}, internal("failed to load user", err)
	}

	key := fmt.Sprintf("%s%s/%s%s", resumePrefix, user.ID, uuid.NewString(), ext)
	if err := s.storage.Put(ctx, key, upload.Body, upload.Size, upload.ContentType); err != nil {
		return types.User{}, internal("failed to store resume", err)
	}

	previous := user.Resume
	user.Resume = key
	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		_ = s.storage.Delete(ctx, key)
		return types.User{}, internal("failed to update profile", err)
	}
	if strings.HasPrefix(previous, resumePrefix+user.ID+"/") {
		if err := s.storage.Delete(ctx, previous); err != nil {
			s.logger.WarnContext(ctx, "delete previous resume failed",
				slog.String("key", previous),
				slog.Any("error", err),
			)
		}
	}
	s.logger.InfoContext(ctx, "resume uploaded",
		slog.String("user_id", user.ID),
		slog.String("key", key),
		slog.Int64("size", upload.Size),
	)
	return updated, nil
}

// OpenResume opens a stored resume. The caller closes the body.
func (s *UserService) OpenResume(ctx context.Context, key string) (storage.Object, error) {
	if !strings.HasPrefix(key, resumePrefix) {
		return storage.Object{}, notFound("resume not found")
	}
	if s.storage == nil {
		return storage.Object{}, internal("resume storage is not configured", errors.New("no storage backend"))
	}
	obj, err := s.storage.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return storage.Object{}, notFound("resume not found")
		}
		return storage.Object{}, internal("failed to open resume", err)
	}
	return obj, nil
}

func (in ProfileInput) hasCompanyFields() bool {
	return in.CompanyName != nil || in.CompanySize != nil || in.Industry != nil || in.CompanyDescription != nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
