package service

import (
	"classtutor_backend/internal/model"
	"context"
	"time"
)

// 核心引擎只通过这些接口触达外部协作者（存储、文件、推理服务），
// 由 repository 与存储 provider 提供实现，单元测试用假实现替换。

type AssignmentStore interface {
	GetByID(ctx context.Context, id string) (*model.Assignment, error)
	// GetProcessingState 返回当前状态与 processingError，调度器轮询它感知停止
	GetProcessingState(ctx context.Context, id string) (model.ProcessingStatus, string, error)
	// BeginProcessing 原子地将非活跃作业置为 extracting，返回是否抢到处理权
	BeginProcessing(ctx context.Context, id string) (bool, error)
	SetStatus(ctx context.Context, id string, status model.ProcessingStatus) error
	SetError(ctx context.Context, id string, message string) error
	ClearError(ctx context.Context, id string) error
}

type QuestionStore interface {
	GetByID(ctx context.Context, id string) (*model.Question, error)
	ReplaceForAssignment(ctx context.Context, assignmentID string, questions []model.Question) error
	ListPending(ctx context.Context, assignmentID string) ([]model.Question, error)
	SetStatus(ctx context.Context, id string, status model.QuestionStatus) error
	SaveAnswer(ctx context.Context, id string, answer model.AnswerValue, keyPoints []string, source model.SourceValue) error
	// CountByStatus 按状态统计一个作业的题目数量，用于进度查询
	CountByStatus(ctx context.Context, assignmentID string) (map[model.QuestionStatus]int64, error)
}

type ChatStore interface {
	GetSession(ctx context.Context, id string) (*model.ChatSession, error)
	CreateSession(ctx context.Context, session *model.ChatSession) error
	CreateMessage(ctx context.Context, msg *model.ChatMessage) error
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]model.ChatMessage, error)
	StudentMessageTimes(ctx context.Context, sessionID string, since time.Time) ([]time.Time, error)
}

// FileFetcher 把存储文件引用解析为字节流与内容类型
type FileFetcher interface {
	Fetch(ctx context.Context, objectKey string) ([]byte, string, error)
}

// InferenceClient 一次远程推理调用
type InferenceClient interface {
	Complete(ctx context.Context, req InferenceRequest) (*InferenceResult, error)
}
