// Package api provides HTTP handlers for the Launchpad API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/launchpadhq/launchpad/internal/core/auth"
	"github.com/launchpadhq/launchpad/internal/core/domain"
	"github.com/launchpadhq/launchpad/internal/shell/orchestrator"
	"github.com/launchpadhq/launchpad/internal/shell/store"
)

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for the API.
type Handler struct {
	store        store.Store
	orchestrator *orchestrator.Orchestrator
	logger       *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, o *orchestrator.Orchestrator, l *slog.Logger) *Handler {
	if l == nil {
		l = slog.Default()
	}
	return &Handler{
		store:        s,
		orchestrator: o,
		logger:       l,
	}
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.jsonContentType)
	r.Use(h.requestIDHeader)

	// Health endpoints
	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.requirePrincipal)

		r.Route("/projects", func(r chi.Router) {
			r.Post("/", h.handleCreateProject)
			r.Get("/", h.handleListProjects)
			r.Get("/{id}", h.handleGetProject)
			r.Delete("/{id}", h.handleDeleteProject)
			r.Put("/{id}/domain", h.handleUpdateDomain)
			r.Post("/{id}/deploy", h.handleStartDeployment)
			r.Get("/{id}/deployments", h.handleListDeployments)
		})

		r.Route("/deployments", func(r chi.Router) {
			r.Get("/{id}", h.handleGetDeployment)
			r.Post("/{id}/retry", h.handleRetryDeployment)
		})
	})

	return r
}

// =============================================================================
// Middleware
// =============================================================================

// jsonContentType sets Content-Type header to application/json.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// requirePrincipal rejects requests without an identified principal.
func (h *Handler) requirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx := auth.ExtractFromRequest(r)
		if !authCtx.Authenticated {
			h.writeError(w, http.StatusUnauthorized, "missing "+auth.HeaderUserID+" header", "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithContext(r.Context(), authCtx)))
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	if _, err := h.store.ListProjectsByOwner(r.Context(), "readiness-probe", store.ListOptions{Limit: 1}); err != nil {
		checks["database"] = "failed"
		h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{
			Status: "not_ready",
			Checks: checks,
		})
		return
	}
	checks["database"] = "ok"

	h.writeJSON(w, http.StatusOK, ReadyResponse{
		Status: "ready",
		Checks: checks,
	})
}

// =============================================================================
// Project Handlers
// =============================================================================

func (h *Handler) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	authCtx := auth.FromContext(r.Context())

	input := orchestrator.CreateProjectInput{
		OwnerID: authCtx.PrincipalID,
		Name:    req.Name,
	}
	if req.RepoURL != "" {
		input.Git = &domain.GitSource{RepoURL: req.RepoURL, Branch: req.Branch}
	}
	if len(req.Files) > 0 {
		files := make([]domain.SourceFile, 0, len(req.Files))
		for _, f := range req.Files {
			files = append(files, domain.SourceFile{Path: f.Path, Content: f.Content})
		}
		input.Upload = &domain.UploadSource{Files: files}
	}

	project, deployment, err := h.orchestrator.CreateProject(r.Context(), input)
	if err != nil {
		h.writeOrchestratorError(w, err, "failed to create project")
		return
	}

	h.writeJSON(w, http.StatusCreated, CreateProjectResponse{
		Project:    projectToResponse(project),
		Deployment: deploymentToResponse(deployment),
	})
}

func (h *Handler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.FromContext(r.Context())

	projects, err := h.store.ListProjectsByOwner(r.Context(), authCtx.PrincipalID, listOptions(r))
	if err != nil {
		h.logger.Error("failed to list projects", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list projects", "internal_error")
		return
	}

	resp := ProjectListResponse{Projects: make([]ProjectResponse, 0, len(projects))}
	for i := range projects {
		resp.Projects = append(resp.Projects, projectToResponse(&projects[i]))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, ok := h.visibleProject(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, projectToResponse(project))
}

func (h *Handler) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	project, ok := h.visibleProject(w, r)
	if !ok {
		return
	}

	if err := h.orchestrator.DeleteProject(r.Context(), project.ID); err != nil {
		h.writeOrchestratorError(w, err, "failed to delete project")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUpdateDomain(w http.ResponseWriter, r *http.Request) {
	project, ok := h.visibleProject(w, r)
	if !ok {
		return
	}

	var req UpdateDomainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	updated, err := h.orchestrator.UpdateDomain(r.Context(), project.ID, req.Domain)
	if err != nil {
		h.writeOrchestratorError(w, err, "failed to update domain")
		return
	}
	h.writeJSON(w, http.StatusOK, projectToResponse(updated))
}

func (h *Handler) handleStartDeployment(w http.ResponseWriter, r *http.Request) {
	project, ok := h.visibleProject(w, r)
	if !ok {
		return
	}

	deployment, err := h.orchestrator.StartDeployment(r.Context(), project.ID)
	if err != nil {
		h.writeOrchestratorError(w, err, "failed to start deployment")
		return
	}
	h.writeJSON(w, http.StatusAccepted, deploymentToResponse(deployment))
}

func (h *Handler) handleListDeployments(w http.ResponseWriter, r *http.Request) {
	project, ok := h.visibleProject(w, r)
	if !ok {
		return
	}

	deployments, err := h.store.ListDeploymentsByProject(r.Context(), project.ID, listOptions(r))
	if err != nil {
		h.logger.Error("failed to list deployments", "project_id", project.ID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list deployments", "internal_error")
		return
	}

	resp := DeploymentListResponse{Deployments: make([]DeploymentResponse, 0, len(deployments))}
	for i := range deployments {
		resp.Deployments = append(resp.Deployments, deploymentToResponse(&deployments[i]))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// Deployment Handlers
// =============================================================================

func (h *Handler) handleGetDeployment(w http.ResponseWriter, r *http.Request) {
	deployment, ok := h.visibleDeployment(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, deploymentToResponse(deployment))
}

func (h *Handler) handleRetryDeployment(w http.ResponseWriter, r *http.Request) {
	deployment, ok := h.visibleDeployment(w, r)
	if !ok {
		return
	}

	retried, err := h.orchestrator.RetryDeployment(r.Context(), deployment.ID)
	if err != nil {
		h.writeOrchestratorError(w, err, "failed to retry deployment")
		return
	}
	h.writeJSON(w, http.StatusAccepted, deploymentToResponse(retried))
}

// =============================================================================
// Helpers
// =============================================================================

// visibleProject loads the project from the id route param and enforces
// ownership. Projects the principal cannot view read as not found.
func (h *Handler) visibleProject(w http.ResponseWriter, r *http.Request) (*domain.Project, bool) {
	id := chi.URLParam(r, "id")

	project, err := h.store.GetProject(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "project not found", "not_found")
		} else {
			h.logger.Error("failed to get project", "project_id", id, "error", err)
			h.writeError(w, http.StatusInternalServerError, "failed to get project", "internal_error")
		}
		return nil, false
	}

	if !auth.CanViewProject(auth.FromContext(r.Context()), *project) {
		h.writeError(w, http.StatusNotFound, "project not found", "not_found")
		return nil, false
	}
	return project, true
}

// visibleDeployment loads the deployment from the id route param and
// enforces ownership through its project.
func (h *Handler) visibleDeployment(w http.ResponseWriter, r *http.Request) (*domain.Deployment, bool) {
	id := chi.URLParam(r, "id")

	deployment, err := h.store.GetDeployment(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "deployment not found", "not_found")
		} else {
			h.logger.Error("failed to get deployment", "deployment_id", id, "error", err)
			h.writeError(w, http.StatusInternalServerError, "failed to get deployment", "internal_error")
		}
		return nil, false
	}

	project, err := h.store.GetProject(r.Context(), deployment.ProjectID)
	if err != nil {
		h.logger.Error("failed to get deployment project", "deployment_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get deployment", "internal_error")
		return nil, false
	}
	if !auth.CanViewProject(auth.FromContext(r.Context()), *project) {
		h.writeError(w, http.StatusNotFound, "deployment not found", "not_found")
		return nil, false
	}
	return deployment, true
}

// writeOrchestratorError maps orchestration errors onto HTTP status codes.
func (h *Handler) writeOrchestratorError(w http.ResponseWriter, err error, fallback string) {
	var vErr *orchestrator.ValidationError
	if errors.As(err, &vErr) {
		h.writeError(w, http.StatusBadRequest, vErr.Error(), "validation_error")
		return
	}

	var cErr *orchestrator.ConflictError
	if errors.As(err, &cErr) {
		h.writeError(w, http.StatusConflict, cErr.Error(), "conflict")
		return
	}

	if isNotFound(err) {
		h.writeError(w, http.StatusNotFound, "not found", "not_found")
		return
	}

	h.logger.Error(fallback, "error", err)
	h.writeError(w, http.StatusInternalServerError, fallback, "internal_error")
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func listOptions(r *http.Request) store.ListOptions {
	opts := store.DefaultListOptions()
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		opts.Limit = limit
	}
	if offset, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil {
		opts.Offset = offset
	}
	return opts.Normalize()
}

func projectToResponse(p *domain.Project) ProjectResponse {
	resp := ProjectResponse{
		ID:            p.ID,
		Name:          p.Name,
		Slug:          p.Slug,
		Domain:        p.Domain,
		DeploymentURL: p.DeploymentURL,
		Status:        string(p.Status),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if p.Git != nil {
		resp.RepoURL = p.Git.RepoURL
		resp.Branch = p.Git.Branch
	}
	return resp
}

func deploymentToResponse(d *domain.Deployment) DeploymentResponse {
	return DeploymentResponse{
		ID:         d.ID,
		ProjectID:  d.ProjectID,
		Status:     string(d.Status),
		BuildLogs:  d.BuildLogs,
		CreatedAt:  d.CreatedAt,
		DeployedAt: d.DeployedAt,
	}
}

// isNotFound checks if an error is a not found error.
func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
