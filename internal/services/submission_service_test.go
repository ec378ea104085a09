package services

import (
	"context"
	"errors"
	"testing"

	"crowdsource-backend/internal/models"

	"gorm.io/gorm"
)

// memorySink keeps uploads in a map instead of shipping them anywhere.
type memorySink struct {
	uploads map[string][]byte
}

func (s *memorySink) Upload(_ context.Context, name, _ string, data []byte) (string, error) {
	if s.uploads == nil {
		s.uploads = make(map[string][]byte)
	}
	s.uploads[name] = data
	return "https://files.test/" + name, nil
}

func newSubmissionService(db *gorm.DB) (*SubmissionService, *memorySink) {
	sink := &memorySink{}
	return NewSubmissionService(db, sink, NewReviewerAssignmentService(db)), sink
}

func TestCreateSubmissionTextFlow(t *testing.T) {
	db := setupTestDB(t)
	service, _ := newSubmissionService(db)
	ctx := context.Background()

	project := createTestProject(t, db, "intake-text", nil)
	reviewer := createTestUser(t, db, "intake-rev@test.com", models.RoleReviewer)
	addProjectReviewer(t, db, project.ID, reviewer)

	agent := createTestUser(t, db, "intake-agent@test.com", models.RoleAgent)
	task := createTestTask(t, db, project.ID)
	allocation := createTestAllocation(t, db, project.ID, task, agent)

	response, err := service.CreateSubmission(ctx, project.ID, &models.CreateSubmissionRequest{
		TaskID:       task.ID,
		AssignmentID: allocation.ID,
		UserEmail:    agent.Email,
		Type:         models.TaskTypeText,
		PayloadText:  "the transcribed sentence",
	}, nil)
	if err != nil {
		t.Fatalf("CreateSubmission failed: %v", err)
	}
	if response.Status != models.StatusSubmitted {
		t.Errorf("expected submitted, got %s", response.Status)
	}

	// Intake flips the allocation and auto-assigns the reviewer
	var reloaded models.Allocation
	db.First(&reloaded, "id = ?", allocation.ID)
	if reloaded.Status != models.StatusSubmitted {
		t.Errorf("expected allocation submitted, got %s", reloaded.Status)
	}
	if reloaded.SubmittedAt == nil {
		t.Error("expected submitted_at stamped")
	}

	var reviewerAllocation models.ReviewerAllocation
	if err := db.First(&reviewerAllocation, "submission_id = ?", response.SubmissionID).Error; err != nil {
		t.Fatalf("expected auto-assigned reviewer allocation: %v", err)
	}
	if reviewerAllocation.ReviewerID != reviewer.ID {
		t.Errorf("expected reviewer %s, got %s", reviewer.ID, reviewerAllocation.ReviewerID)
	}

	var reloadedTask models.Task
	db.First(&reloadedTask, "id = ?", task.ID)
	if reloadedTask.SubmissionCount != 1 {
		t.Errorf("expected submission_count 1, got %d", reloadedTask.SubmissionCount)
	}
}

func TestCreateSubmissionAssignmentPending(t *testing.T) {
	db := setupTestDB(t)
	service, _ := newSubmissionService(db)
	ctx := context.Background()

	// No reviewer pool: the submission lands but assignment stays pending
	project := createTestProject(t, db, "intake-pending", nil)
	agent := createTestUser(t, db, "pending-agent@test.com", models.RoleAgent)
	task := createTestTask(t, db, project.ID)
	allocation := createTestAllocation(t, db, project.ID, task, agent)

	response, err := service.CreateSubmission(ctx, project.ID, &models.CreateSubmissionRequest{
		TaskID:       task.ID,
		AssignmentID: allocation.ID,
		Type:         models.TaskTypeText,
		PayloadText:  "stored either way",
	}, nil)

	var pending *AssignmentPendingError
	if !errors.As(err, &pending) {
		t.Fatalf("expected AssignmentPendingError, got %v", err)
	}
	if !errors.Is(err, ErrNoActiveReviewers) {
		t.Errorf("expected wrapped ErrNoActiveReviewers, got %v", pending.Err)
	}
	if response == nil || pending.Submission == nil {
		t.Fatal("expected the stored submission back alongside the error")
	}

	var count int64
	db.Model(&models.Submission{}).Where("id = ?", response.SubmissionID).Count(&count)
	if count != 1 {
		t.Errorf("expected submission persisted, found %d rows", count)
	}
}

func TestCreateSubmissionDuplicate(t *testing.T) {
	db := setupTestDB(t)
	service, _ := newSubmissionService(db)
	ctx := context.Background()

	project := createTestProject(t, db, "intake-duplicate", nil)
	reviewer := createTestUser(t, db, "dup-intake-rev@test.com", models.RoleReviewer)
	addProjectReviewer(t, db, project.ID, reviewer)

	agent := createTestUser(t, db, "dup-agent@test.com", models.RoleAgent)
	task := createTestTask(t, db, project.ID)
	allocation := createTestAllocation(t, db, project.ID, task, agent)

	req := &models.CreateSubmissionRequest{
		TaskID:       task.ID,
		AssignmentID: allocation.ID,
		Type:         models.TaskTypeText,
		PayloadText:  "first attempt",
	}

	if _, err := service.CreateSubmission(ctx, project.ID, req, nil); err != nil {
		t.Fatalf("first CreateSubmission failed: %v", err)
	}

	_, err := service.CreateSubmission(ctx, project.ID, req, nil)
	if !errors.Is(err, ErrDuplicateSubmission) {
		t.Errorf("expected ErrDuplicateSubmission, got %v", err)
	}
}

func TestCreateSubmissionRedoRevisesInPlace(t *testing.T) {
	db := setupTestDB(t)
	service, _ := newSubmissionService(db)
	ctx := context.Background()

	project := createTestProject(t, db, "intake-redo", nil)
	agent := createTestUser(t, db, "redo-intake@test.com", models.RoleAgent)
	task := createTestTask(t, db, project.ID)
	allocation := createTestAllocation(t, db, project.ID, task, agent)

	req := &models.CreateSubmissionRequest{
		TaskID:       task.ID,
		AssignmentID: allocation.ID,
		Type:         models.TaskTypeText,
		PayloadText:  "first try",
	}

	first, err := service.CreateSubmission(ctx, project.ID, req, nil)
	var pending *AssignmentPendingError
	if err != nil && !errors.As(err, &pending) {
		t.Fatalf("first CreateSubmission failed: %v", err)
	}

	// Review sent it back for another round
	db.Model(&models.Submission{}).Where("id = ?", first.SubmissionID).
		Updates(map[string]interface{}{"status": models.StatusRedo, "redo_count": 1})

	req.PayloadText = "second try"
	revised, err := service.CreateSubmission(ctx, project.ID, req, nil)
	if err != nil && !errors.As(err, &pending) {
		t.Fatalf("revised CreateSubmission failed: %v", err)
	}

	if revised.SubmissionID != first.SubmissionID {
		t.Errorf("expected the same submission revised, got a new row")
	}
	if revised.Status != models.StatusSubmitted {
		t.Errorf("expected submitted after revision, got %s", revised.Status)
	}
	if revised.RedoCount != 1 {
		t.Errorf("expected redo_count preserved at 1, got %d", revised.RedoCount)
	}
	if revised.PayloadText == nil || *revised.PayloadText != "second try" {
		t.Errorf("expected revised payload, got %v", revised.PayloadText)
	}

	var count int64
	db.Model(&models.Submission{}).Where("assignment_id = ?", allocation.ID).Count(&count)
	if count != 1 {
		t.Errorf("expected 1 submission row, got %d", count)
	}
}

func TestCreateSubmissionUserMismatch(t *testing.T) {
	db := setupTestDB(t)
	service, _ := newSubmissionService(db)

	project := createTestProject(t, db, "intake-mismatch", nil)
	agent := createTestUser(t, db, "owner@test.com", models.RoleAgent)
	task := createTestTask(t, db, project.ID)
	allocation := createTestAllocation(t, db, project.ID, task, agent)

	_, err := service.CreateSubmission(context.Background(), project.ID, &models.CreateSubmissionRequest{
		TaskID:       task.ID,
		AssignmentID: allocation.ID,
		UserEmail:    "impostor@test.com",
		Type:         models.TaskTypeText,
		PayloadText:  "not mine",
	}, nil)
	if !errors.Is(err, ErrUserMismatch) {
		t.Errorf("expected ErrUserMismatch, got %v", err)
	}
}

func TestCreateSubmissionPayloadRules(t *testing.T) {
	db := setupTestDB(t)
	service, _ := newSubmissionService(db)
	ctx := context.Background()

	project := createTestProject(t, db, "intake-payload", nil)
	agent := createTestUser(t, db, "payload-agent@test.com", models.RoleAgent)
	task := createTestTask(t, db, project.ID)
	allocation := createTestAllocation(t, db, project.ID, task, agent)

	// Text without a payload
	_, err := service.CreateSubmission(ctx, project.ID, &models.CreateSubmissionRequest{
		TaskID:       task.ID,
		AssignmentID: allocation.ID,
		Type:         models.TaskTypeText,
		PayloadText:  "   ",
	}, nil)
	if err == nil {
		t.Error("expected error for blank text payload")
	}

	// Audio without any file
	_, err = service.CreateSubmission(ctx, project.ID, &models.CreateSubmissionRequest{
		TaskID:       task.ID,
		AssignmentID: allocation.ID,
		Type:         models.TaskTypeAudio,
	}, nil)
	if err == nil {
		t.Error("expected error for audio submission without a file")
	}

	// Audio with a disallowed content type
	_, err = service.CreateSubmission(ctx, project.ID, &models.CreateSubmissionRequest{
		TaskID:       task.ID,
		AssignmentID: allocation.ID,
		Type:         models.TaskTypeAudio,
	}, &SubmissionFile{Name: "clip.txt", ContentType: "text/plain", Data: []byte("nope")})
	if err == nil {
		t.Error("expected error for disallowed content type")
	}
}

func TestCreateSubmissionUploadsFile(t *testing.T) {
	db := setupTestDB(t)
	service, sink := newSubmissionService(db)
	ctx := context.Background()

	project := createTestProject(t, db, "intake-upload", nil)
	reviewer := createTestUser(t, db, "upl-rev@test.com", models.RoleReviewer)
	addProjectReviewer(t, db, project.ID, reviewer)

	agent := createTestUser(t, db, "upl-agent@test.com", models.RoleAgent)
	task := createTestTask(t, db, project.ID)
	allocation := createTestAllocation(t, db, project.ID, task, agent)

	response, err := service.CreateSubmission(ctx, project.ID, &models.CreateSubmissionRequest{
		TaskID:       task.ID,
		AssignmentID: allocation.ID,
		Type:         models.TaskTypeAudio,
	}, &SubmissionFile{Name: "clip.mp3", ContentType: "audio/mpeg", Data: []byte("bytes")})
	if err != nil {
		t.Fatalf("CreateSubmission failed: %v", err)
	}

	if response.FileURL == nil {
		t.Fatal("expected file_url on response")
	}
	if len(sink.uploads) != 1 {
		t.Errorf("expected 1 upload in sink, got %d", len(sink.uploads))
	}
}
