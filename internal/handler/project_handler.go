package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/plincohq/onboarding-service/internal/domain"
	"github.com/plincohq/onboarding-service/internal/services/project"
	"github.com/plincohq/onboarding-service/pkg/logger"
)

// ProjectHandler serves read access to the projects the assistant created
type ProjectHandler struct {
	projectService *project.Service
}

// NewProjectHandler creates a project handler
func NewProjectHandler(projectService *project.Service) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
	}
}

type projectListResponse struct {
	Projects []*domain.Project `json:"projects"`
	Total    int               `json:"total"`
}

// ListProjects returns the authenticated user's projects, newest first.
func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	clerkID := ClerkIDFromContext(r.Context())

	projects, err := h.projectService.ListForUser(r.Context(), clerkID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if projects == nil {
		projects = []*domain.Project{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(projectListResponse{
		Projects: projects,
		Total:    len(projects),
	})
}

// GetProject returns a single project owned by the authenticated user.
func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	clerkID := ClerkIDFromContext(r.Context())
	projectID := mux.Vars(r)["id"]

	proj, err := h.projectService.Get(r.Context(), clerkID, projectID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(proj)
}

// SetupProjectRoutes sets up project read routes
func (h *ProjectHandler) SetupProjectRoutes(apiRouter *mux.Router) {
	apiRouter.HandleFunc("/projects", h.ListProjects).Methods("GET")
	apiRouter.HandleFunc("/projects/{id}", h.GetProject).Methods("GET")

	logger.Base().Info("project routes registered")
}
