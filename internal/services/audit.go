package services

import (
	"log"

	"crowdsource-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// logAction appends an admin mutation to the audit trail. Best effort: a
// failed insert is logged and never fails the mutation it describes.
func logAction(tx *gorm.DB, userID uuid.UUID, actionType, details string) {
	entry := &models.AuditLog{
		ID:         uuid.New(),
		UserID:     userID,
		ActionType: actionType,
	}
	if details != "" {
		entry.Details = &details
	}

	if err := tx.Create(entry).Error; err != nil {
		log.Printf("Failed to record audit entry %s: %v", actionType, err)
	}
}
