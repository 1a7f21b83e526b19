package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jobnest/apiserver/internal/services"
	"github.com/jobnest/apiserver/types"
)

// JobHandler provides HTTP handlers for jobs, applications and
// recommendations.
type JobHandler struct {
	jobService            *services.JobService
	applicationService    *services.ApplicationService
	recommendationService *services.RecommendationService
	userService           *services.UserService
}

// NewJobHandler constructs a handler with the provided services.
func NewJobHandler(
	jobService *services.JobService,
	applicationService *services.ApplicationService,
	recommendationService *services.RecommendationService,
	userService *services.UserService,
) *JobHandler {
	return &JobHandler{
		jobService:            jobService,
		applicationService:    applicationService,
		recommendationService: recommendationService,
		userService:           userService,
	}
}

// JobRouter registers job routes on the given router. Every route requires
// authentication; mutating routes are further restricted by role and
// ownership.
func JobRouter(r chi.Router, handler *JobHandler, authMiddleware func(http.Handler) http.Handler) {
	employerOnly := RequireRole(types.RoleEmployer)
	seekerOnly := RequireRole(types.RoleJobseeker)

	r.Use(authMiddleware)

	r.With(employerOnly).Post("/", handler.CreateJob)
	r.Get("/", handler.ListJobs)
	r.With(seekerOnly).Get("/recommended", handler.GetRecommendedJobs)
	r.With(seekerOnly).Get("/my-applications", handler.ListMyApplications)
	r.With(employerOnly).Get("/employer-applications", handler.ListEmployerApplications)

	r.Route("/{jobID}", func(r chi.Router) {
		r.Get("/", handler.GetJob)
		r.With(employerOnly).Put("/", handler.UpdateJob)
		r.With(employerOnly).Delete("/", handler.DeleteJob)
		r.With(employerOnly).Put("/deactivate", handler.DeactivateJob)
		r.With(seekerOnly).Post("/apply", handler.ApplyForJob)
		r.With(employerOnly).Put("/applications/{applicationID}/status", handler.UpdateApplicationStatus)
		r.With(employerOnly).Get("/applications/{applicationID}/resume", handler.DownloadApplicationResume)
	})
}

func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())

	var req services.JobInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.jobService.CreateJob(r.Context(), identity.UserID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "job created", job)
}

func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())

	page, limit, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.jobService.ListJobs(r.Context(), identity.Role, identity.UserID, page, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writePage(w, "jobs fetched", result.Jobs, newPageMeta(result.Page, result.Limit, result.Total))
}

func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := parseID(r, "jobID", "job")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.jobService.GetJob(r.Context(), jobID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "job fetched", job)
}

func (h *JobHandler) UpdateJob(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	jobID, err := parseID(r, "jobID", "job")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var patch services.JobPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.jobService.UpdateJob(r.Context(), jobID, identity.UserID, patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "job updated", job)
}

func (h *JobHandler) DeactivateJob(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	jobID, err := parseID(r, "jobID", "job")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.jobService.DeactivateJob(r.Context(), jobID, identity.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "job deactivated", job)
}

func (h *JobHandler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	jobID, err := parseID(r, "jobID", "job")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.jobService.DeleteJob(r.Context(), jobID, identity.UserID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "job deleted", nil)
}

func (h *JobHandler) ApplyForJob(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	jobID, err := parseID(r, "jobID", "job")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req services.ApplyInput
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	job, err := h.applicationService.ApplyForJob(r.Context(), jobID, identity.UserID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "application submitted", job)
}

func (h *JobHandler) UpdateApplicationStatus(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	jobID, err := parseID(r, "jobID", "job")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	applicationID, err := parseID(r, "applicationID", "application")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req UpdateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	app, err := h.applicationService.UpdateApplicationStatus(r.Context(), jobID, applicationID, identity.UserID, req.Status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "application status updated", app)
}

func (h *JobHandler) DownloadApplicationResume(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	jobID, err := parseID(r, "jobID", "job")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	applicationID, err := parseID(r, "applicationID", "application")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key, err := h.applicationService.ApplicationResume(r.Context(), jobID, applicationID, identity.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	streamResume(w, r, h.userService, key)
}

func (h *JobHandler) GetRecommendedJobs(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())

	result, err := h.recommendationService.GetRecommendedJobs(r.Context(), identity.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{
		StatusCode: http.StatusOK,
		Message:    "recommended jobs fetched",
		Data:       result.Jobs,
		Meta:       RecommendationMeta{Total: result.Total, Returned: len(result.Jobs)},
	})
}

func (h *JobHandler) ListMyApplications(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())

	apps, err := h.applicationService.ListMyApplications(r.Context(), identity.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "applications fetched", apps)
}

func (h *JobHandler) ListEmployerApplications(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())

	apps, err := h.applicationService.ListEmployerApplications(r.Context(), identity.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "applications fetched", apps)
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// RecommendationMeta reports the size of the eligible pool next to the
// number of ranked entries returned.
type RecommendationMeta struct {
	Total    int `json:"total"`
	Returned int `json:"returned"`
}
