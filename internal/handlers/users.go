package handlers

import (
	"errors"
	"io"
	"net/http"
	"path"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jobnest/apiserver/internal/services"
	"github.com/jobnest/apiserver/internal/store"
)

const (
	maxResumeBytes  = 10 << 20
	formFieldResume = "file"
)

// UserHandler provides profile endpoints for the authenticated user.
type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// UserRouter registers profile routes on the given router.
func UserRouter(r chi.Router, handler *UserHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)
	r.Put("/me/profile", handler.UpdateProfile)
	r.Post("/me/resume", handler.UploadResume)
	r.Get("/me/resume", handler.DownloadResume)
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())

	var req services.ProfileInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), identity.UserID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "profile updated", user)
}

func (h *UserHandler) UploadResume(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxResumeBytes+(1<<20))
	if err := r.ParseMultipartForm(maxResumeBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile(formFieldResume)
	if err != nil {
		writeError(w, http.StatusBadRequest, "resume file is required")
		return
	}
	defer file.Close()

	if header.Size > maxResumeBytes {
		writeError(w, http.StatusBadRequest, "uploaded file too large")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	user, err := h.userService.UploadResume(r.Context(), identity.UserID, services.ResumeUpload{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "resume uploaded", user)
}

func (h *UserHandler) DownloadResume(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())

	user, err := h.userService.GetByID(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeServiceError(w, r, err)
		return
	}
	if user.Resume == "" {
		writeError(w, http.StatusNotFound, "resume not found")
		return
	}
	streamResume(w, r, h.userService, user.Resume)
}

func streamResume(w http.ResponseWriter, r *http.Request, userService *services.UserService, key string) {
	obj, err := userService.OpenResume(r.Context(), key)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	defer obj.Body.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+path.Base(key)+`"`)
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj.Body); err != nil && !errors.Is(err, r.Context().Err()) {
		LoggerFromContext(r.Context()).WarnContext(r.Context(), "stream resume failed", "error", err)
	}
}
