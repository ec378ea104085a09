package services

import (
	"fmt"
	"time"

	"crowdsource-backend/internal/models"

	"gorm.io/gorm"
)

// cascadeReviewerStatus is the only writer of the denormalized status chain:
// reviewer allocation -> submission -> agent allocation -> task. Every hop is
// a targeted column update scoped by primary key, so unrelated fields never
// move and the cascade cannot loop back on itself. A nil reviewer allocation
// skips the first hop; a submission without an agent allocation stops the
// chain after the submission hop.
//
// reviewed_at and completed_at are stamped only when the status is a decision
// (accepted, rejected, redo). Propagating pending on assignment leaves the
// timestamps untouched.
func cascadeReviewerStatus(
	tx *gorm.DB,
	allocation *models.ReviewerAllocation,
	submission *models.Submission,
	status models.Status,
) error {
	now := time.Now()

	if allocation != nil {
		updates := map[string]interface{}{"status": status}
		if status.IsDecision() {
			updates["reviewed_at"] = now
		}
		if err := tx.Model(&models.ReviewerAllocation{}).
			Where("id = ?", allocation.ID).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update reviewer allocation status: %w", err)
		}
	}

	if err := tx.Model(&models.Submission{}).
		Where("id = ?", submission.ID).
		Updates(map[string]interface{}{"status": status}).Error; err != nil {
		return fmt.Errorf("failed to update submission status: %w", err)
	}

	if submission.AssignmentID == nil {
		return nil
	}

	var agentAllocation models.Allocation
	err := tx.Where("id = ?", *submission.AssignmentID).First(&agentAllocation).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load allocation for cascade: %w", err)
	}

	updates := map[string]interface{}{"status": status}
	if status.IsDecision() {
		updates["completed_at"] = now
	}
	if err := tx.Model(&models.Allocation{}).
		Where("id = ?", agentAllocation.ID).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update allocation status: %w", err)
	}

	if err := tx.Model(&models.Task{}).
		Where("id = ?", agentAllocation.TaskID).
		Updates(map[string]interface{}{"status": status}).Error; err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}

	return nil
}
