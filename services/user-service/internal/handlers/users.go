package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/libs/httpx"
	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/services/user-service/internal/mailer"
	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/services/user-service/internal/model"
	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/services/user-service/internal/query"
	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/services/user-service/internal/service"
)

const (
	maxNameLen  = 15
	maxEmailLen = 30
	minAge      = 1
	maxAge      = 150
)

// Lifecycle is the slice of the user service the HTTP boundary uses.
type Lifecycle interface {
	Get(ctx context.Context, id int64) (model.User, error)
	Create(ctx context.Context, name, email string, age int) (model.User, error)
	Update(ctx context.Context, id int64, patch model.UserUpdate) (model.User, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f query.Filter, p query.Page) ([]model.User, int, error)
	CheckEmail(ctx context.Context, email string) error
}

// Mailer is the breaker-guarded email collaborator.
type Mailer interface {
	CheckExists(ctx context.Context, email string) error
	Send(ctx context.Context, email, message string) (mailer.SendResult, error)
}

type Handler struct {
	svc    Lifecycle
	mail   Mailer
	logger *slog.Logger
}

func New(svc Lifecycle, mail Mailer, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, mail: mail, logger: logger}
}

// Register wires the API routes onto the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/users/{id}", h.GetUser)
	mux.HandleFunc("GET /api/users", h.ListUsers)
	mux.HandleFunc("POST /api/users", h.CreateUser)
	mux.HandleFunc("PUT /api/users/{id}", h.UpdateUser)
	mux.HandleFunc("DELETE /api/users/{id}", h.DeleteUser)
	mux.HandleFunc("POST /api/users/checkemail", h.CheckEmail)
	mux.HandleFunc("POST /api/email", h.SendEmail)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	u, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Age   *int   `json:"age"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if msg := validateName(req.Name); msg != "" {
		httpx.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", msg)
		return
	}
	if msg := validateEmail(req.Email); msg != "" {
		httpx.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", msg)
		return
	}
	if req.Age == nil {
		httpx.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "age is required")
		return
	}
	if msg := validateAge(*req.Age); msg != "" {
		httpx.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", msg)
		return
	}

	u, err := h.svc.Create(r.Context(), req.Name, req.Email, *req.Age)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, u)
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch model.UserUpdate
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json body")
		return
	}
	if patch.Name != nil {
		trimmed := strings.TrimSpace(*patch.Name)
		patch.Name = &trimmed
		if msg := validateName(trimmed); msg != "" {
			httpx.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", msg)
			return
		}
	}
	if patch.Email != nil {
		trimmed := strings.TrimSpace(*patch.Email)
		patch.Email = &trimmed
		if msg := validateEmail(trimmed); msg != "" {
			httpx.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", msg)
			return
		}
	}
	if patch.Age != nil {
		if msg := validateAge(*patch.Age); msg != "" {
			httpx.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", msg)
			return
		}
	}

	u, err := h.svc.Update(r.Context(), id, patch)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	f, p, errMsg := parseListParams(r)
	if errMsg != "" {
		httpx.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", errMsg)
		return
	}
	users, total, err := h.svc.List(r.Context(), f, p)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	httpx.WriteJSON(w, http.StatusOK, users)
}

func (h *Handler) CheckEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		httpx.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "email is required")
		return
	}
	if err := h.svc.CheckEmail(r.Context(), req.Email); err != nil {
		h.writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"email": req.Email})
}

// SendEmail relays a message through the email collaborator. The
// recipient check and the send both run behind circuit breakers; a
// downed collaborator degrades to a QUEUED answer instead of failing
// the request.
func (h *Handler) SendEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email   string `json:"email"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || strings.TrimSpace(req.Message) == "" {
		httpx.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "email and message are required")
		return
	}

	if err := h.mail.CheckExists(r.Context(), req.Email); err != nil {
		h.writeMailerError(w, err)
		return
	}
	res, err := h.mail.Send(r.Context(), req.Email, req.Message)
	if err != nil {
		h.writeMailerError(w, err)
		return
	}
	status := http.StatusOK
	if res.Status == "QUEUED" {
		status = http.StatusAccepted
	}
	httpx.WriteJSON(w, status, res)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case service.IsNotFound(err):
		httpx.WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, service.ErrConflict):
		httpx.WriteError(w, http.StatusConflict, "CONFLICT", "Email already exists")
	default:
		// Already logged at the point of origin; no internals leak out.
		httpx.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

func (h *Handler) writeMailerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, mailer.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Recipient not found")
	case errors.Is(err, mailer.ErrUnavailable):
		httpx.WriteError(w, http.StatusServiceUnavailable, "EXTERNAL_SERVICE_ERROR",
			"Service 'email-service' temporarily unavailable")
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func validateName(name string) string {
	if name == "" {
		return "name is required"
	}
	if len(name) > maxNameLen {
		return "name must be at most 15 characters"
	}
	return ""
}

func validateEmail(email string) string {
	if email == "" {
		return "email is required"
	}
	if len(email) > maxEmailLen {
		return "email must be at most 30 characters"
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "email must be a valid address"
	}
	return ""
}

func validateAge(age int) string {
	if age < minAge || age > maxAge {
		return "age must be between 1 and 150"
	}
	return ""
}

// parseListParams builds the filter and page from query parameters.
// Timestamps accept RFC 3339 or a bare local datetime.
func parseListParams(r *http.Request) (query.Filter, query.Page, string) {
	q := r.URL.Query()
	var f query.Filter
	p := query.DefaultPage()

	if v := q.Get("name"); v != "" {
		f.Name = &v
	}
	if v := q.Get("ageGt"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return f, p, "ageGt must be a positive integer"
		}
		f.AgeGt = &n
	}
	if v := q.Get("ageLt"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return f, p, "ageLt must be a positive integer"
		}
		f.AgeLt = &n
	}
	if v := q.Get("createdAtGt"); v != "" {
		ts, err := parseTimestamp(v)
		if err != nil {
			return f, p, "createdAtGt must be a timestamp"
		}
		f.CreatedAfter = &ts
	}
	if v := q.Get("createdAtLt"); v != "" {
		ts, err := parseTimestamp(v)
		if err != nil {
			return f, p, "createdAtLt must be a timestamp"
		}
		f.CreatedBefore = &ts
	}

	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, p, "page must be a non-negative integer"
		}
		p.Number = n
	}
	if v := q.Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > query.MaxPageSize {
			return f, p, "size must be between 1 and 100"
		}
		p.Size = n
	}
	if v := q.Get("sortBy"); v != "" {
		if !query.SortableField(v) {
			return f, p, "sortBy must be one of: id, createdAt, name, age, email"
		}
		p.SortBy = v
	}
	if v := q.Get("sortDirection"); v != "" {
		if !strings.EqualFold(v, "asc") && !strings.EqualFold(v, "desc") {
			return f, p, "sortDirection must be 'asc' or 'desc'"
		}
		p.SortDir = strings.ToLower(v)
	}
	return f, p, ""
}

func parseTimestamp(v string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, v); err == nil {
		return ts, nil
	}
	return time.Parse("2006-01-02T15:04:05", v)
}
