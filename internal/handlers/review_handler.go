package handlers

import (
	"net/http"

	"crowdsource-backend/internal/models"
	"crowdsource-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ReviewHandler handles review scoring, overrides, the reviewer worklist and
// the manual reward endpoint
type ReviewHandler struct {
	reviewService  *services.ReviewService
	paymentService *services.PaymentService
}

// NewReviewHandler creates a new ReviewHandler
func NewReviewHandler(reviewService *services.ReviewService, paymentService *services.PaymentService) *ReviewHandler {
	return &ReviewHandler{
		reviewService:  reviewService,
		paymentService: paymentService,
	}
}

// SubmitReview scores a submission against the project's parameters
func (h *ReviewHandler) SubmitReview(c *gin.Context) {
	projectID, submissionID, ok := h.pathIDs(c)
	if !ok {
		return
	}

	var req models.SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	outcome, err := h.reviewService.SubmitReview(c.Request.Context(), projectID, submissionID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// OverrideReview sets a review status directly, bypassing scoring
func (h *ReviewHandler) OverrideReview(c *gin.Context) {
	projectID, submissionID, ok := h.pathIDs(c)
	if !ok {
		return
	}

	var req models.OverrideReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	if err := h.reviewService.OverrideReviewStatus(c.Request.Context(), projectID, submissionID, &req); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Review status updated",
		"status":  req.Status,
	})
}

// RewardAgent retries the agent reward for a submission. Idempotent: an
// already paid allocation returns the existing ledger row.
func (h *ReviewHandler) RewardAgent(c *gin.Context) {
	submissionID, err := uuid.Parse(c.Param("sid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid submission id",
		})
		return
	}

	payment, err := h.paymentService.AwardAgentCoins(c.Request.Context(), submissionID)
	if err != nil {
		respondError(c, err)
		return
	}

	if payment == nil {
		c.JSON(http.StatusOK, gin.H{
			"message": "Submission is not accepted yet; no payment due",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payment": payment,
	})
}

// ReviewerQueue returns the caller-named reviewer's open worklist
func (h *ReviewHandler) ReviewerQueue(c *gin.Context) {
	reviewer := c.Param("reviewer")

	projectID, ok := h.optionalProject(c)
	if !ok {
		return
	}

	var statuses []models.Status
	for _, value := range c.QueryArray("status") {
		statuses = append(statuses, models.Status(value))
	}

	items, err := h.reviewService.ListReviewerQueue(c.Request.Context(), reviewer, projectID, statuses)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"queue": items,
	})
}

// ReviewerHistory returns everything a reviewer has been assigned
func (h *ReviewHandler) ReviewerHistory(c *gin.Context) {
	reviewer := c.Param("reviewer")

	projectID, ok := h.optionalProject(c)
	if !ok {
		return
	}

	items, err := h.reviewService.ReviewerHistory(c.Request.Context(), reviewer, projectID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"history": items,
	})
}

func (h *ReviewHandler) pathIDs(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid project id",
		})
		return uuid.Nil, uuid.Nil, false
	}

	submissionID, err := uuid.Parse(c.Param("sid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid submission id",
		})
		return uuid.Nil, uuid.Nil, false
	}

	return projectID, submissionID, true
}

func (h *ReviewHandler) optionalProject(c *gin.Context) (*uuid.UUID, bool) {
	value := c.Query("project_id")
	if value == "" {
		return nil, true
	}

	projectID, err := uuid.Parse(value)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid project id",
		})
		return nil, false
	}

	return &projectID, true
}
