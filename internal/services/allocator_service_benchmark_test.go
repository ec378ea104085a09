package services

import (
	"context"
	"fmt"
	"testing"

	"crowdsource-backend/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func benchmarkDB(b *testing.B) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		b.Fatalf("failed to connect database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.Prompt{},
		&models.Task{},
		&models.Allocation{},
	)
	if err != nil {
		b.Fatalf("failed to migrate database: %v", err)
	}

	return db
}

// BenchmarkAllocationRound measures a full allocation pass over a project
// whose reuse slots are already spent: the round loads the project, prompts
// and existing allocations and finds no open slot, so no rows are written.
func BenchmarkAllocationRound(b *testing.B) {
	db := benchmarkDB(b)
	service := NewAllocatorService(db)
	ctx := context.Background()

	reuse := 1
	project := &models.Project{
		ID:         uuid.New(),
		Name:       "bench-allocation",
		AgentQuota: 100,
		ReuseCount: &reuse,
	}
	if err := db.Create(project).Error; err != nil {
		b.Fatalf("failed to seed project: %v", err)
	}

	var candidates []models.AllocationCandidate
	for i := 0; i < 20; i++ {
		user := &models.User{
			ID:    uuid.New(),
			Name:  fmt.Sprintf("bench-agent-%d", i),
			Email: fmt.Sprintf("bench-agent-%d@test.com", i),
			Role:  models.RoleAgent,
		}
		if err := db.Create(user).Error; err != nil {
			b.Fatalf("failed to seed agent: %v", err)
		}
		candidates = append(candidates, models.AllocationCandidate{UserID: user.ID, Email: user.Email})
	}

	for i := 0; i < 50; i++ {
		prompt := &models.Prompt{
			ID:        uuid.New(),
			ProjectID: project.ID,
			Text:      fmt.Sprintf("bench prompt %d", i),
		}
		if err := db.Create(prompt).Error; err != nil {
			b.Fatalf("failed to seed prompt: %v", err)
		}
	}

	// First round consumes every slot; the timed rounds hit the dedup path
	if _, err := service.AllocateProject(ctx, project.ID, candidates); err != nil {
		b.Fatalf("failed to saturate project: %v", err)
	}

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := service.AllocateProject(ctx, project.ID, candidates); err != nil {
			b.Fatalf("allocation round failed: %v", err)
		}
	}
}

func BenchmarkScoreAgainstParameters(b *testing.B) {
	params := []string{"accuracy", "clarity", "fluency", "completeness"}
	scores := map[string]int{"accuracy": 4, "clarity": 3, "fluency": 5, "completeness": 2}

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		scoreAgainstParameters(params, scores, 5, 60)
	}
}
