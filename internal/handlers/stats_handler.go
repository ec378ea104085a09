package handlers

import (
	"net/http"
	"strconv"
	"time"

	"crowdsource-backend/internal/services"

	"github.com/gin-gonic/gin"
)

// StatsHandler handles the read-only analytics endpoints
type StatsHandler struct {
	analytics *services.AnalyticsService
}

// NewStatsHandler creates a new StatsHandler
func NewStatsHandler(analytics *services.AnalyticsService) *StatsHandler {
	return &StatsHandler{analytics: analytics}
}

// ContributorStats returns an agent's rollup by email
func (h *StatsHandler) ContributorStats(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "email query parameter is required",
		})
		return
	}

	start, end, ok := h.dateRange(c)
	if !ok {
		return
	}

	stats, err := h.analytics.ContributorStats(c.Request.Context(), email, start, end)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ReviewerStats returns a reviewer's rollup by email
func (h *StatsHandler) ReviewerStats(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "email query parameter is required",
		})
		return
	}

	start, end, ok := h.dateRange(c)
	if !ok {
		return
	}

	stats, err := h.analytics.ReviewerStats(c.Request.Context(), email, start, end)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// PlatformStats returns the live platform-wide rollup
func (h *StatsHandler) PlatformStats(c *gin.Context) {
	stats, err := h.analytics.PlatformStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to compute platform stats",
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// DailyStats returns the last-N-days submission series
func (h *StatsHandler) DailyStats(c *gin.Context) {
	days := 7
	if value := c.Query("days"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			days = parsed
		}
	}

	stats, err := h.analytics.DailyStats(c.Request.Context(), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to compute daily stats",
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// dateRange parses optional start/end date query params (YYYY-MM-DD)
func (h *StatsHandler) dateRange(c *gin.Context) (*time.Time, *time.Time, bool) {
	var start, end *time.Time

	if value := c.Query("start"); value != "" {
		parsed, err := time.Parse("2006-01-02", value)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid start date, expected YYYY-MM-DD",
			})
			return nil, nil, false
		}
		start = &parsed
	}

	if value := c.Query("end"); value != "" {
		parsed, err := time.Parse("2006-01-02", value)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid end date, expected YYYY-MM-DD",
			})
			return nil, nil, false
		}
		// Include the whole end day
		inclusive := parsed.Add(24*time.Hour - time.Nanosecond)
		end = &inclusive
	}

	return start, end, true
}
