package service

import (
	"context"
	"errors"
	"testing"

	"classtutor_backend/internal/model"
	"classtutor_backend/internal/util"
)

func TestAssignmentStatus(t *testing.T) {
	assignment := &model.Assignment{ProcessingStatus: model.StatusGeneratingAnswers}
	assignment.ID = "a1"

	questions := makeQuestions("a1", 5)
	questions[0].Status = model.QuestionReady
	questions[1].Status = model.QuestionApproved
	questions[2].Status = model.QuestionProcessing

	svc := NewAssignmentService(newFakeAssignmentStore(assignment), newFakeQuestionStore(questions...))

	got, err := svc.Status(context.Background(), "a1")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if got.Status != model.StatusGeneratingAnswers {
		t.Errorf("status = %q, want generating_answers", got.Status)
	}
	if got.TotalQuestions != 5 {
		t.Errorf("total = %d, want 5", got.TotalQuestions)
	}
	if got.ReadyQuestions != 2 {
		t.Errorf("ready = %d, want 2 (ready + approved)", got.ReadyQuestions)
	}
	if got.PendingAnswers != 3 {
		t.Errorf("pending = %d, want 3 (pending + processing)", got.PendingAnswers)
	}
}

func TestAssignmentStatusNotFound(t *testing.T) {
	svc := NewAssignmentService(newFakeAssignmentStore(), newFakeQuestionStore())
	if _, err := svc.Status(context.Background(), "missing"); !errors.Is(err, util.ErrAssignmentNotFound) {
		t.Errorf("error = %v, want ErrAssignmentNotFound", err)
	}
}
