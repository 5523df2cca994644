// internal/admin/handlers.go

package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/imadgeboyega/gratitude-backend/internal/common/utils"
	"github.com/imadgeboyega/gratitude-backend/internal/models"
	"github.com/imadgeboyega/gratitude-backend/internal/scheduler"
	"github.com/imadgeboyega/gratitude-backend/internal/storage"
)

// JobRunner triggers a dispatch job on demand
type JobRunner interface {
	Run(ctx context.Context, kind models.DispatchKind, force bool) (*scheduler.JobResult, error)
}

// DefaultRunWait is how long RunJob waits for a result before answering 202.
// It stays below the server's write timeout.
const DefaultRunWait = 10 * time.Second

// Handler holds dependencies for admin endpoints
type Handler struct {
	users   storage.UserStore
	entries storage.EntryStore
	jobs    JobRunner
	auth    *Authenticator
	log     *zap.Logger
	runWait time.Duration
}

// HandlerOption configures a Handler
type HandlerOption func(*Handler)

// WithRunWait overrides DefaultRunWait
func WithRunWait(d time.Duration) HandlerOption {
	return func(h *Handler) { h.runWait = d }
}

// NewHandler creates a new admin handler
func NewHandler(repo storage.Repository, jobs JobRunner, auth *Authenticator, log *zap.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{
		users:   repo,
		entries: repo,
		jobs:    jobs,
		auth:    auth,
		log:     log,
		runWait: DefaultRunWait,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Login exchanges the admin password for a token
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	token, expiresAt, err := h.auth.Login(req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			h.log.Warn("admin login failed", zap.String("remote", r.RemoteAddr))
			utils.ErrorResponse(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}
		h.writeError(w, err)
		return
	}

	utils.SuccessResponse(w, LoginResponse{Token: token, ExpiresAt: expiresAt}, http.StatusOK)
}

// ListUsers returns every user
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	utils.SuccessResponse(w, users, http.StatusOK)
}

// CreateUser registers a subscriber; timezone and preferred time have defaults
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req models.NewUser
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.ApplyDefaults()

	user, err := h.users.CreateUser(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.log.Info("user created", zap.String("phone", user.Phone))
	utils.SuccessResponse(w, user, http.StatusCreated)
}

// GetUser returns one user
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	phone, ok := h.phoneParam(w, r)
	if !ok {
		return
	}

	user, err := h.users.GetUser(r.Context(), phone)
	if err != nil {
		h.writeError(w, err)
		return
	}
	utils.SuccessResponse(w, user, http.StatusOK)
}

// UpdateUser applies a partial update
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	phone, ok := h.phoneParam(w, r)
	if !ok {
		return
	}

	var req models.UserUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.users.UpdateUser(r.Context(), phone, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	utils.SuccessResponse(w, user, http.StatusOK)
}

// DeleteUser removes a user; their entries are kept
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	phone, ok := h.phoneParam(w, r)
	if !ok {
		return
	}

	if err := h.users.DeleteUser(r.Context(), phone); err != nil {
		h.writeError(w, err)
		return
	}

	h.log.Info("user deleted", zap.String("phone", phone))
	utils.MessageResponse(w, "User deleted", http.StatusOK)
}

// ListEntries returns the user's entries for the last ?days= days (default 7)
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	phone, ok := h.phoneParam(w, r)
	if !ok {
		return
	}

	days := models.DefaultEntryWindowDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			utils.FieldErrorResponse(w, "days", "days must be a positive integer", http.StatusBadRequest)
			return
		}
		days = n
	}

	entries, err := h.entries.RecentEntries(r.Context(), phone, days)
	if err != nil {
		h.writeError(w, err)
		return
	}
	utils.SuccessResponse(w, EntriesResponse{Phone: phone, Days: days, Entries: entries}, http.StatusOK)
}

type jobOutcome struct {
	res *scheduler.JobResult
	err error
}

// RunJob triggers the daily or weekly job; ?force=true bypasses the time window.
// The run is detached from the request. When it outlasts runWait the caller
// gets 202 and the job finishes in the background.
func (h *Handler) RunJob(w http.ResponseWriter, r *http.Request) {
	kind := models.DispatchKind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		utils.FieldErrorResponse(w, "kind", "kind must be daily or weekly", http.StatusBadRequest)
		return
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	done := make(chan jobOutcome, 1)
	go func(ctx context.Context) {
		res, err := h.jobs.Run(ctx, kind, force)
		done <- jobOutcome{res: res, err: err}
	}(context.WithoutCancel(r.Context()))

	timer := time.NewTimer(h.runWait)
	defer timer.Stop()

	var out jobOutcome
	select {
	case out = <-done:
	case <-timer.C:
		h.log.Info("manual job still running", zap.String("job", string(kind)), zap.Bool("force", force))
		utils.MessageResponse(w, "Job is still running", http.StatusAccepted)
		return
	}

	if out.err != nil {
		if errors.Is(out.err, scheduler.ErrJobRunning) {
			utils.ErrorResponse(w, "Job is already running", http.StatusConflict)
			return
		}
		h.writeError(w, out.err)
		return
	}
	utils.SuccessResponse(w, out.res, http.StatusOK)
}

func (h *Handler) phoneParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	phone, err := url.PathUnescape(chi.URLParam(r, "phone"))
	if err == nil {
		err = models.ValidatePhone(phone)
	}
	if err != nil {
		utils.FieldErrorResponse(w, "phone", "phone must start with + followed by digits only", http.StatusBadRequest)
		return "", false
	}
	return phone, true
}

// writeError maps the error taxonomy to status codes
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		utils.FieldErrorResponse(w, verr.Field, verr.Error(), http.StatusBadRequest)
	case models.IsConflict(err):
		utils.ErrorResponse(w, err.Error(), http.StatusConflict)
	case models.IsNotFound(err):
		utils.ErrorResponse(w, err.Error(), http.StatusNotFound)
	case models.IsTransient(err):
		h.log.Warn("upstream failure", zap.Error(err))
		utils.ErrorResponse(w, err.Error(), http.StatusBadGateway)
	default:
		h.log.Error("admin request failed", zap.Error(err))
		utils.ErrorResponse(w, "Internal server error", http.StatusInternalServerError)
	}
}
