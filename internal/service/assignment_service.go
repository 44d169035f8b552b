package service

import (
	"classtutor_backend/internal/model"
	"context"
)

// AssignmentStatus 作业处理进度视图
type AssignmentStatus struct {
	AssignmentID    string                 `json:"assignmentId"`
	Status          model.ProcessingStatus `json:"status"`
	ProcessingError string                 `json:"processingError,omitempty"`
	TotalQuestions  int64                  `json:"totalQuestions"`
	ReadyQuestions  int64                  `json:"readyQuestions"`
	PendingAnswers  int64                  `json:"pendingAnswers"`
}

// AssignmentService 作业的只读查询面，写路径都走 PipelineService
type AssignmentService struct {
	assignments AssignmentStore
	questions   QuestionStore
}

func NewAssignmentService(assignments AssignmentStore, questions QuestionStore) *AssignmentService {
	return &AssignmentService{assignments: assignments, questions: questions}
}

// Status 返回作业当前处理状态与题目进度
func (s *AssignmentService) Status(ctx context.Context, assignmentID string) (*AssignmentStatus, error) {
	status, procErr, err := s.assignments.GetProcessingState(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	counts, err := s.questions.CountByStatus(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	result := &AssignmentStatus{
		AssignmentID:    assignmentID,
		Status:          status,
		ProcessingError: procErr,
		ReadyQuestions:  counts[model.QuestionReady] + counts[model.QuestionApproved],
		PendingAnswers:  counts[model.QuestionPending] + counts[model.QuestionProcessing],
	}
	for _, n := range counts {
		result.TotalQuestions += n
	}
	return result, nil
}
