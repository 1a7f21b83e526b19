package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jobnest/apiserver/internal/services"
	"github.com/jobnest/apiserver/types"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
	maxJSONBytes = 1 << 20
)

type contextKey string

const (
	contextIdentityKey contextKey = "identity"
	contextLoggerKey   contextKey = "logger"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Role   types.Role
}

func withIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, contextIdentityKey, identity)
}

func identityFromContext(ctx context.Context) (Identity, error) {
	identity, ok := ctx.Value(contextIdentityKey).(Identity)
	if !ok || identity.UserID == "" {
		return Identity{}, errors.New("missing identity")
	}
	return identity, nil
}

// Envelope wraps every response body.
type Envelope struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Data       any    `json:"data"`
	Meta       any    `json:"meta,omitempty"`
}

// PageMeta describes the page returned by a paginated listing.
type PageMeta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// ErrorMeta carries the offending fields of a validation error.
type ErrorMeta struct {
	Fields []string `json:"fields,omitempty"`
}

func newPageMeta(page, limit, total int) PageMeta {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return PageMeta{Page: page, Limit: limit, Total: total, TotalPages: totalPages}
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeData(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Envelope{StatusCode: status, Message: message, Data: data})
}

func writePage(w http.ResponseWriter, message string, data any, meta PageMeta) {
	writeJSON(w, http.StatusOK, Envelope{
		StatusCode: http.StatusOK,
		Message:    message,
		Data:       data,
		Meta:       meta,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Envelope{StatusCode: status, Message: message})
}

// writeServiceError maps a service error onto its status code. Internal
// errors are logged with their cause and reported generically.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := services.KindOf(err)
	status := statusForKind(kind)
	if kind == services.KindInternal {
		LoggerFromContext(r.Context()).ErrorContext(r.Context(), "request failed", slog.Any("error", err))
	}

	env := Envelope{StatusCode: status, Message: services.PublicMessage(err)}
	if fields := services.FieldsOf(err); len(fields) > 0 {
		env.Meta = ErrorMeta{Fields: fields}
	}
	writeJSON(w, status, env)
}

func statusForKind(kind services.Kind) int {
	switch kind {
	case services.KindValidation, services.KindConflict:
		return http.StatusBadRequest
	case services.KindForbidden:
		return http.StatusForbidden
	case services.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes))
	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid request body")
	}
	return nil
}

func parsePagination(r *http.Request) (page, limit int, err error) {
	page = defaultPage
	limit = defaultLimit

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, errors.New("invalid page")
		}
	}

	rawLimit := strings.TrimSpace(r.URL.Query().Get("limit"))
	if rawLimit == "" {
		rawLimit = strings.TrimSpace(r.URL.Query().Get("per_page"))
	}
	if rawLimit != "" {
		limit, err = strconv.Atoi(rawLimit)
		if err != nil || limit < 1 {
			return 0, 0, errors.New("invalid limit")
		}
	}

	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit, nil
}

func parseID(r *http.Request, param, name string) (string, error) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		return "", errors.New("invalid " + name + " id")
	}
	return id.String(), nil
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, "ok", nil)
}
