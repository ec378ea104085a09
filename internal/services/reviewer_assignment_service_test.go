package services

import (
	"context"
	"errors"
	"testing"

	"crowdsource-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func createTestTask(t *testing.T, db *gorm.DB, projectID uuid.UUID) *models.Task {
	task := &models.Task{
		ID:        uuid.New(),
		ProjectID: projectID,
		Type:      models.TaskTypeText,
		Status:    models.StatusPending,
	}
	if err := db.Create(task).Error; err != nil {
		t.Fatalf("failed to create task: %v", err)
	}
	return task
}

func createTestAllocation(t *testing.T, db *gorm.DB, projectID uuid.UUID, task *models.Task, agent *models.User) *models.Allocation {
	allocation := &models.Allocation{
		ID:        uuid.New(),
		ProjectID: projectID,
		TaskID:    task.ID,
		UserID:    agent.ID,
		UserEmail: agent.Email,
		Status:    models.StatusAssigned,
	}
	if err := db.Create(allocation).Error; err != nil {
		t.Fatalf("failed to create allocation: %v", err)
	}
	return allocation
}

func createTestSubmission(t *testing.T, db *gorm.DB, task *models.Task, allocation *models.Allocation) *models.Submission {
	text := "submitted text"
	submission := &models.Submission{
		ID:           uuid.New(),
		TaskID:       task.ID,
		AssignmentID: &allocation.ID,
		UserID:       allocation.UserID,
		Type:         models.TaskTypeText,
		PayloadText:  &text,
		Status:       models.StatusSubmitted,
	}
	if err := db.Create(submission).Error; err != nil {
		t.Fatalf("failed to create submission: %v", err)
	}
	return submission
}

func addProjectReviewer(t *testing.T, db *gorm.DB, projectID uuid.UUID, reviewer *models.User) *models.ProjectReviewer {
	member := &models.ProjectReviewer{
		ID:         uuid.New(),
		ProjectID:  projectID,
		ReviewerID: reviewer.ID,
		Active:     true,
	}
	if err := db.Create(member).Error; err != nil {
		t.Fatalf("failed to add project reviewer: %v", err)
	}
	return member
}

// newSubmission builds the full agent chain for one fresh submission.
func newSubmission(t *testing.T, db *gorm.DB, project *models.Project, agentEmail string) *models.Submission {
	agent := createTestUser(t, db, agentEmail, models.RoleAgent)
	task := createTestTask(t, db, project.ID)
	allocation := createTestAllocation(t, db, project.ID, task, agent)
	return createTestSubmission(t, db, task, allocation)
}

func TestAssignReviewerNoActiveReviewers(t *testing.T) {
	db := setupTestDB(t)
	service := NewReviewerAssignmentService(db)

	project := createTestProject(t, db, "assign-no-pool", nil)
	submission := newSubmission(t, db, project, "agent-np@test.com")

	_, err := service.AssignReviewer(context.Background(), project.ID, submission.ID)
	if !errors.Is(err, ErrNoActiveReviewers) {
		t.Errorf("expected ErrNoActiveReviewers, got %v", err)
	}
}

func TestAssignReviewerBalancesLoad(t *testing.T) {
	db := setupTestDB(t)
	service := NewReviewerAssignmentService(db)
	ctx := context.Background()

	project := createTestProject(t, db, "assign-balance", nil)
	first := createTestUser(t, db, "rev1@test.com", models.RoleReviewer)
	second := createTestUser(t, db, "rev2@test.com", models.RoleReviewer)
	addProjectReviewer(t, db, project.ID, first)
	addProjectReviewer(t, db, project.ID, second)

	// With equal loads the earliest pool member wins the tie
	subA := newSubmission(t, db, project, "agent-a@test.com")
	allocA, err := service.AssignReviewer(ctx, project.ID, subA.ID)
	if err != nil {
		t.Fatalf("first AssignReviewer failed: %v", err)
	}
	if allocA.ReviewerID != first.ID {
		t.Errorf("expected earliest reviewer %s, got %s", first.ID, allocA.ReviewerID)
	}

	// The next submission goes to the now less loaded reviewer
	subB := newSubmission(t, db, project, "agent-b@test.com")
	allocB, err := service.AssignReviewer(ctx, project.ID, subB.ID)
	if err != nil {
		t.Fatalf("second AssignReviewer failed: %v", err)
	}
	if allocB.ReviewerID != second.ID {
		t.Errorf("expected less loaded reviewer %s, got %s", second.ID, allocB.ReviewerID)
	}

	if allocB.Status != models.StatusPending {
		t.Errorf("expected pending reviewer allocation, got %s", allocB.Status)
	}
}

func TestAssignReviewerCapacity(t *testing.T) {
	db := setupTestDB(t)
	service := NewReviewerAssignmentService(db)
	ctx := context.Background()

	project := createTestProject(t, db, "assign-capacity", func(p *models.Project) {
		p.ReviewerQuota = 1
	})
	reviewer := createTestUser(t, db, "only-rev@test.com", models.RoleReviewer)
	addProjectReviewer(t, db, project.ID, reviewer)

	subA := newSubmission(t, db, project, "agent-c1@test.com")
	if _, err := service.AssignReviewer(ctx, project.ID, subA.ID); err != nil {
		t.Fatalf("AssignReviewer failed: %v", err)
	}

	subB := newSubmission(t, db, project, "agent-c2@test.com")
	_, err := service.AssignReviewer(ctx, project.ID, subB.ID)
	if !errors.Is(err, ErrReviewerCapacity) {
		t.Errorf("expected ErrReviewerCapacity, got %v", err)
	}
}

func TestAssignReviewerDuplicateActiveAllocation(t *testing.T) {
	db := setupTestDB(t)
	service := NewReviewerAssignmentService(db)
	ctx := context.Background()

	project := createTestProject(t, db, "assign-duplicate", nil)
	reviewer := createTestUser(t, db, "dup-rev@test.com", models.RoleReviewer)
	addProjectReviewer(t, db, project.ID, reviewer)

	submission := newSubmission(t, db, project, "agent-d@test.com")
	if _, err := service.AssignReviewer(ctx, project.ID, submission.ID); err != nil {
		t.Fatalf("AssignReviewer failed: %v", err)
	}

	_, err := service.AssignReviewer(ctx, project.ID, submission.ID)
	if !errors.Is(err, ErrSubmissionAlreadyAssigned) {
		t.Errorf("expected ErrSubmissionAlreadyAssigned, got %v", err)
	}

	var count int64
	db.Model(&models.ReviewerAllocation{}).Where("submission_id = ?", submission.ID).Count(&count)
	if count != 1 {
		t.Errorf("expected 1 reviewer allocation, got %d", count)
	}
}

func TestAssignSubmissionByEmail(t *testing.T) {
	db := setupTestDB(t)
	service := NewReviewerAssignmentService(db)
	ctx := context.Background()

	project := createTestProject(t, db, "assign-manual", nil)
	reviewer := createTestUser(t, db, "manual-rev@test.com", models.RoleReviewer)

	submission := newSubmission(t, db, project, "agent-m@test.com")

	// Manual assignment does not require pool membership
	allocation, err := service.AssignSubmission(ctx, project.ID, submission.ID, reviewer.Email)
	if err != nil {
		t.Fatalf("AssignSubmission failed: %v", err)
	}
	if allocation.ReviewerID != reviewer.ID {
		t.Errorf("expected reviewer %s, got %s", reviewer.ID, allocation.ReviewerID)
	}
}

func TestAssignSubmissionRejectsAgentRole(t *testing.T) {
	db := setupTestDB(t)
	service := NewReviewerAssignmentService(db)

	project := createTestProject(t, db, "assign-agent-role", nil)
	agent := createTestUser(t, db, "not-a-rev@test.com", models.RoleAgent)
	submission := newSubmission(t, db, project, "agent-r@test.com")

	_, err := service.AssignSubmission(context.Background(), project.ID, submission.ID, agent.Email)
	if err == nil {
		t.Fatal("expected error assigning to a non-reviewer")
	}
}

func TestBulkAssignSkipsBadRows(t *testing.T) {
	db := setupTestDB(t)
	service := NewReviewerAssignmentService(db)
	ctx := context.Background()

	project := createTestProject(t, db, "assign-bulk", nil)
	reviewer := createTestUser(t, db, "bulk-rev@test.com", models.RoleReviewer)

	subA := newSubmission(t, db, project, "agent-bk1@test.com")
	subB := newSubmission(t, db, project, "agent-bk2@test.com")

	rows := []models.ReviewerAssignmentRow{
		{SubmissionID: subA.ID, ReviewerEmail: reviewer.Email},
		{SubmissionID: subA.ID, ReviewerEmail: reviewer.Email}, // duplicate
		{SubmissionID: subB.ID, ReviewerEmail: "missing@test.com"},
	}

	summary, err := service.BulkAssign(ctx, project.ID, rows)
	if err != nil {
		t.Fatalf("BulkAssign failed: %v", err)
	}

	if summary.Uploaded != 1 {
		t.Errorf("expected 1 assignment, got %d", summary.Uploaded)
	}
	if len(summary.Skipped) != 2 {
		t.Errorf("expected 2 skipped rows, got %d: %v", len(summary.Skipped), summary.Skipped)
	}
}
