package handlers

import (
	"errors"
	"io"
	"net/http"

	"crowdsource-backend/internal/auth"
	"crowdsource-backend/internal/models"
	"crowdsource-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SubmissionHandler handles submission intake and read endpoints
type SubmissionHandler struct {
	submissionService *services.SubmissionService
}

// NewSubmissionHandler creates a new SubmissionHandler
func NewSubmissionHandler(submissionService *services.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{submissionService: submissionService}
}

// CreateSubmission stores an agent's work against an allocation. The payload
// arrives as a multipart form; media submissions carry the file part, text
// submissions carry payload_text. A stored submission that could not be
// routed to a reviewer returns 202 with the assignment error attached.
func (h *SubmissionHandler) CreateSubmission(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid project id",
		})
		return
	}

	var req models.CreateSubmissionRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	// The caller identity pins the allocation check
	if userID, exists := auth.GetUserID(c); exists && req.UserID == nil {
		req.UserID = &userID
	}

	file, err := readUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	submission, err := h.submissionService.CreateSubmission(c.Request.Context(), projectID, &req, file)
	if err != nil {
		var pending *services.AssignmentPendingError
		if errors.As(err, &pending) {
			c.JSON(http.StatusAccepted, gin.H{
				"submission":       pending.Submission,
				"assignment_error": pending.Err.Error(),
			})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"submission": submission,
	})
}

// GetSubmission returns one submission
func (h *SubmissionHandler) GetSubmission(c *gin.Context) {
	submissionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid submission id",
		})
		return
	}

	submission, err := h.submissionService.GetSubmission(c.Request.Context(), submissionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Submission not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"submission": submission,
	})
}

// ListSubmissions returns submissions matching the query filters
func (h *SubmissionHandler) ListSubmissions(c *gin.Context) {
	limit, offset := pagination(c)

	filter := &models.SubmissionFilter{
		Limit:     limit,
		Offset:    offset,
		UserEmail: c.Query("user_email"),
	}

	if value := c.Query("project_id"); value != "" {
		projectID, err := uuid.Parse(value)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid project id",
			})
			return
		}
		filter.ProjectID = &projectID
	}

	if value := c.Query("user_id"); value != "" {
		userID, err := uuid.Parse(value)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid user id",
			})
			return
		}
		filter.UserID = &userID
	}

	for _, value := range c.QueryArray("status") {
		filter.Statuses = append(filter.Statuses, models.Status(value))
	}

	submissions, total, err := h.submissionService.ListSubmissions(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve submissions",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"submissions": submissions,
		"total":       total,
	})
}

// readUpload extracts the optional file part from the multipart form
func readUpload(c *gin.Context) (*services.SubmissionFile, error) {
	header, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, errors.New("invalid file upload: " + err.Error())
	}

	opened, err := header.Open()
	if err != nil {
		return nil, errors.New("failed to open upload: " + err.Error())
	}
	defer opened.Close()

	data, err := io.ReadAll(opened)
	if err != nil {
		return nil, errors.New("failed to read upload: " + err.Error())
	}

	return &services.SubmissionFile{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
