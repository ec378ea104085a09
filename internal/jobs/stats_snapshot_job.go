package jobs

import (
	"context"
	"log"
	"time"

	"crowdsource-backend/internal/models"
	"crowdsource-backend/internal/services"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StatsSnapshotJob materializes the live platform rollup into one snapshot
// row per day. It only ever writes its own snapshot table; the workflow
// entities stay read-only to analytics.
type StatsSnapshotJob struct {
	db        *gorm.DB
	analytics *services.AnalyticsService
}

func NewStatsSnapshotJob(db *gorm.DB) *StatsSnapshotJob {
	return &StatsSnapshotJob{
		db:        db,
		analytics: services.NewAnalyticsService(db),
	}
}

// Start begins the periodic snapshot job
func (j *StatsSnapshotJob) Start(interval time.Duration) {
	go func() {
		// Run immediately on start
		ctx := context.Background()
		if err := j.Snapshot(ctx); err != nil {
			log.Printf("Initial snapshot error: %v", err)
		}

		// Then run periodically
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			if err := j.Snapshot(ctx); err != nil {
				log.Printf("Snapshot error: %v", err)
			}
		}
	}()
}

// Snapshot computes the live platform stats and upserts today's row
func (j *StatsSnapshotJob) Snapshot(ctx context.Context) error {
	stats, err := j.analytics.PlatformStats(ctx)
	if err != nil {
		return err
	}

	today := time.Now().Truncate(24 * time.Hour)

	snapshot := &models.PlatformSnapshot{
		ID:                  uuid.New(),
		Date:                today,
		TotalUsers:          stats.TotalUsers,
		TotalProjects:       stats.TotalProjects,
		TotalAllocations:    stats.TotalAllocations,
		TotalSubmissions:    stats.TotalSubmissions,
		AcceptedSubmissions: stats.ApprovedSubmissions,
		RejectedSubmissions: stats.RejectedSubmissions,
		PendingSubmissions:  stats.PendingReviewSubmissions,
		TotalCoinsPaid:      stats.TotalCoinsPaid,
	}

	err = j.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"total_users", "total_projects", "total_allocations", "total_submissions",
				"accepted_submissions", "rejected_submissions", "pending_submissions",
				"total_coins_paid", "updated_at",
			}),
		}).
		Create(snapshot).Error
	if err != nil {
		return err
	}

	log.Printf("Platform snapshot for %s: %d submissions, %s coins paid",
		today.Format("2006-01-02"), stats.TotalSubmissions, stats.TotalCoinsPaid)

	return nil
}
