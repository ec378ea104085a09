package handlers

import (
	"net/http"

	"crowdsource-backend/internal/auth"
	"crowdsource-backend/internal/models"
	"crowdsource-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ProjectHandler handles project, prompt, reviewer pool and allocation
// endpoints
type ProjectHandler struct {
	projectService *services.ProjectService
	allocator      *services.AllocatorService
	assigner       *services.ReviewerAssignmentService
}

// NewProjectHandler creates a new ProjectHandler
func NewProjectHandler(
	projectService *services.ProjectService,
	allocator *services.AllocatorService,
	assigner *services.ReviewerAssignmentService,
) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
		allocator:      allocator,
		assigner:       assigner,
	}
}

// CreateProject creates a project
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	actorID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User not authenticated",
		})
		return
	}

	var req models.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	project, err := h.projectService.CreateProject(c.Request.Context(), actorID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"project": project,
	})
}

// GetProject returns one project by id or name
func (h *ProjectHandler) GetProject(c *gin.Context) {
	project, err := h.projectService.GetProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Project not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"project": project,
	})
}

// ListProjects returns projects; private ones only for admins
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	limit, offset := pagination(c)

	role, _ := auth.GetUserRole(c)
	includePrivate := role == models.RoleAdmin

	projects, total, err := h.projectService.ListProjects(c.Request.Context(), includePrivate, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve projects",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"projects": projects,
		"total":    total,
	})
}

// UpdateProject patches a project
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	actorID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User not authenticated",
		})
		return
	}

	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid project id",
		})
		return
	}

	var req models.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	project, err := h.projectService.UpdateProject(c.Request.Context(), actorID, projectID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"project": project,
	})
}

// CreatePrompt adds a prompt to a project
func (h *ProjectHandler) CreatePrompt(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid project id",
		})
		return
	}

	var req models.CreatePromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	prompt, err := h.projectService.CreatePrompt(c.Request.Context(), projectID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"prompt": prompt,
	})
}

// ListPrompts returns a project's prompts
func (h *ProjectHandler) ListPrompts(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid project id",
		})
		return
	}

	prompts, err := h.projectService.ListPrompts(c.Request.Context(), projectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve prompts",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"prompts": prompts,
	})
}

// AddReviewers adds reviewers to the project pool by email
func (h *ProjectHandler) AddReviewers(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid project id",
		})
		return
	}

	var req models.AddReviewersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	summary, err := h.projectService.AddReviewers(c.Request.Context(), projectID, req.Emails)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// RemoveReviewer deactivates a pool membership
func (h *ProjectHandler) RemoveReviewer(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid project id",
		})
		return
	}

	if err := h.projectService.RemoveReviewer(c.Request.Context(), projectID, c.Param("reviewer")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Reviewer removed from pool",
	})
}

// ListReviewers returns the project's reviewer pool
func (h *ProjectHandler) ListReviewers(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid project id",
		})
		return
	}

	pool, err := h.projectService.ListReviewers(c.Request.Context(), projectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve reviewer pool",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reviewers": pool,
	})
}

// Allocate runs an allocation round for the named candidates
func (h *ProjectHandler) Allocate(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid project id",
		})
		return
	}

	var req models.AllocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	allocations, err := h.allocator.AllocateProject(c.Request.Context(), projectID, req.Candidates)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"allocations": allocations,
		"created":     len(allocations),
	})
}

// BulkAllocate consumes validated (prompt, agent email) rows
func (h *ProjectHandler) BulkAllocate(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid project id",
		})
		return
	}

	var req struct {
		Rows []models.PromptAssignment `json:"rows" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	summary, err := h.allocator.BulkAllocate(c.Request.Context(), projectID, req.Rows)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// AssignReviewer manually assigns a submission to a named reviewer
func (h *ProjectHandler) AssignReviewer(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid project id",
		})
		return
	}

	var req models.AssignReviewerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	allocation, err := h.assigner.AssignSubmission(c.Request.Context(), projectID, req.SubmissionID, req.Reviewer)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"reviewer_allocation": allocation,
	})
}

// BulkAssignReviewers consumes validated (submission, reviewer email) rows
func (h *ProjectHandler) BulkAssignReviewers(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid project id",
		})
		return
	}

	var req models.BulkAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	summary, err := h.assigner.BulkAssign(c.Request.Context(), projectID, req.Rows)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
