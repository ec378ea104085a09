package handlers

import (
	"net/http"

	"crowdsource-backend/internal/models"
	"crowdsource-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TaskHandler handles the task read/update surface
type TaskHandler struct {
	taskService *services.TaskService
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

// GetTask returns one task
func (h *TaskHandler) GetTask(c *gin.Context) {
	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid task id",
		})
		return
	}

	task, err := h.taskService.GetTask(c.Request.Context(), taskID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Task not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"task": task,
	})
}

// ListTasks returns tasks matching the query filters
func (h *TaskHandler) ListTasks(c *gin.Context) {
	limit, offset := pagination(c)

	filter := &models.TaskFilter{
		Limit:  limit,
		Offset: offset,
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

	if value := c.Query("status"); value != "" {
		status := models.Status(value)
		filter.Status = &status
	}

	if value := c.Query("type"); value != "" {
		taskType := models.TaskType(value)
		filter.Type = &taskType
	}

	tasks, total, err := h.taskService.ListTasks(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve tasks",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks": tasks,
		"total": total,
	})
}

// UpdateTask patches a task
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid task id",
		})
		return
	}

	var req models.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	task, err := h.taskService.UpdateTask(c.Request.Context(), taskID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"task": task,
	})
}

// DeleteTask removes a task
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid task id",
		})
		return
	}

	if err := h.taskService.DeleteTask(c.Request.Context(), taskID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Task deleted",
	})
}
