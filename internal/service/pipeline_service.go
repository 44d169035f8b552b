package service

import (
	"classtutor_backend/internal/config"
	"classtutor_backend/internal/model"
	"classtutor_backend/internal/util"
	"classtutor_backend/pkg/logger"
	"classtutor_backend/pkg/monitoring"
	"classtutor_backend/pkg/tracing"
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ProcessResult 公开操作统一的结构化返回，流水线错误不跨边界抛出
type ProcessResult struct {
	Success            bool   `json:"success"`
	QuestionsExtracted int    `json:"questionsExtracted,omitempty"`
	AnswersGenerated   int    `json:"answersGenerated,omitempty"`
	AnswersFailed      int    `json:"answersFailed,omitempty"`
	Error              string `json:"error,omitempty"`
}

// extractedQuestion 抽取阶段模型输出的单个题目
type extractedQuestion struct {
	QuestionNumber string   `json:"questionNumber"`
	QuestionType   string   `json:"questionType"`
	Content        string   `json:"content"`
	AnswerOptions  []string `json:"answerOptionsMCQ"`
	Instructions   string   `json:"instructions"`
}

// generatedFields 生成阶段模型输出的答案字段，answer/source 是动态形状
type generatedFields struct {
	Answer    interface{} `json:"answer"`
	KeyPoints []string    `json:"keyPoints"`
	Source    interface{} `json:"source"`
}

// PipelineService 驱动作业的处理状态机：
// pending → extracting → generating_answers → ready | error。
// error 可由显式 resume 清除，回到 pending。
type PipelineService struct {
	assignments AssignmentStore
	questions   QuestionStore
	files       FileFetcher
	ai          InferenceClient
	scheduler   *BatchScheduler
	retry       RetryPolicy
}

func NewPipelineService(
	assignments AssignmentStore,
	questions QuestionStore,
	files FileFetcher,
	ai InferenceClient,
	cfg config.PipelineConfig,
) *PipelineService {
	return &PipelineService{
		assignments: assignments,
		questions:   questions,
		files:       files,
		ai:          ai,
		scheduler:   NewBatchScheduler(assignments, questions, cfg.BatchSize, cfg.MaxParallelBatches),
		retry:       RetryPolicy{MaxAttempts: cfg.RetryAttempts, BaseDelay: cfg.RetryBaseDelay},
	}
}

// Process 跑完一个作业的完整处理。可重复调用：已有处理任务在飞时
// 返回 "already in progress" 而不是并行双跑。任何未捕获的恐慌都被
// 收敛为 error 状态加结构化返回。
func (s *PipelineService) Process(ctx context.Context, assignmentID string) (result ProcessResult) {
	ctx, span := tracing.Tracer.Start(ctx, "pipeline.process")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("internal pipeline panic: %v", r)
			logger.L().Error("pipeline panicked", zap.String("assignment", assignmentID), zap.Any("panic", r))
			s.failAssignment(ctx, assignmentID, msg)
			result = ProcessResult{Error: msg}
		}
	}()

	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		return ProcessResult{Error: err.Error()}
	}

	// 状态互斥：CAS 抢占，输掉的并发触发直接返回，不改任何状态
	acquired, err := s.assignments.BeginProcessing(ctx, assignmentID)
	if err != nil {
		return ProcessResult{Error: err.Error()}
	}
	if !acquired {
		return ProcessResult{Error: util.ErrProcessingInProgress.Error()}
	}

	logger.L().Info("assignment processing started", zap.String("assignment", assignmentID))

	// ---- 抽取阶段 ----
	extracted, err := s.runExtraction(ctx, assignment)
	if err != nil {
		s.failAssignment(ctx, assignmentID, err.Error())
		monitoring.PipelineRuns.WithLabelValues("error").Inc()
		return ProcessResult{Error: err.Error()}
	}
	result.QuestionsExtracted = len(extracted)

	if err := s.assignments.SetStatus(ctx, assignmentID, model.StatusGeneratingAnswers); err != nil {
		s.failAssignment(ctx, assignmentID, err.Error())
		monitoring.PipelineRuns.WithLabelValues("error").Inc()
		return ProcessResult{QuestionsExtracted: result.QuestionsExtracted, Error: err.Error()}
	}

	// ---- 生成阶段 ----
	// 上下文载荷（题目文档 + 课堂笔记）只组装一次，所有批次共享只读
	payload, err := s.buildContextPayload(ctx, assignment, true)
	if err != nil {
		msg := "context assembly failed: " + err.Error()
		s.failAssignment(ctx, assignmentID, msg)
		monitoring.PipelineRuns.WithLabelValues("error").Inc()
		return ProcessResult{QuestionsExtracted: result.QuestionsExtracted, Error: msg}
	}

	pending, err := s.questions.ListPending(ctx, assignmentID)
	if err != nil {
		s.failAssignment(ctx, assignmentID, err.Error())
		monitoring.PipelineRuns.WithLabelValues("error").Inc()
		return ProcessResult{QuestionsExtracted: result.QuestionsExtracted, Error: err.Error()}
	}

	report := s.scheduler.Run(ctx, assignmentID, pending, &answerProcessor{svc: s, payload: payload})
	result.AnswersGenerated = report.Processed
	result.AnswersFailed = report.Errored

	if report.Aborted {
		// 停止请求或致命中止：保留已完成的工作，状态转 error
		s.failAssignment(ctx, assignmentID, report.AbortReason)
		monitoring.PipelineRuns.WithLabelValues("aborted").Inc()
		result.Error = report.AbortReason
		return result
	}

	// 个别题目失败不算流水线失败，留在 pending 可重试
	if err := s.assignments.SetStatus(ctx, assignmentID, model.StatusReady); err != nil {
		s.failAssignment(ctx, assignmentID, err.Error())
		monitoring.PipelineRuns.WithLabelValues("error").Inc()
		result.Error = err.Error()
		return result
	}

	monitoring.PipelineRuns.WithLabelValues("ready").Inc()
	logger.L().Info("assignment processing finished",
		zap.String("assignment", assignmentID),
		zap.Int("extracted", result.QuestionsExtracted),
		zap.Int("generated", result.AnswersGenerated),
		zap.Int("failed", result.AnswersFailed))
	result.Success = true
	return result
}

// runExtraction 调一次推理抽取题目列表，替换旧题集（重复抽取幂等）
func (s *PipelineService) runExtraction(ctx context.Context, assignment *model.Assignment) ([]model.Question, error) {
	ctx, span := tracing.Tracer.Start(ctx, "pipeline.extract")
	defer span.End()

	payload, err := s.buildContextPayload(ctx, assignment, false)
	if err != nil {
		return nil, fmt.Errorf("context assembly failed: %w", err)
	}

	prompt := buildExtractionPrompt(assignment.Title)
	label := "question extraction"

	items, err := InvokeWithRetry(ctx, label, s.retry, func(ctx context.Context) ([]extractedQuestion, error) {
		resp, err := s.ai.Complete(ctx, InferenceRequest{
			Prompt:      prompt,
			Attachments: payload,
			JSONOutput:  true,
		})
		if err != nil {
			return nil, err
		}
		var items []extractedQuestion
		if err := ParseModelOutput(resp.Text, &items); err != nil {
			return nil, err
		}
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, errors.New("extraction produced no questions")
	}

	questions := make([]model.Question, 0, len(items))
	for i, item := range items {
		q := model.Question{
			AssignmentID:    assignment.ID,
			QuestionNumber:  strings.TrimSpace(item.QuestionNumber),
			ExtractionOrder: i,
			QuestionType:    normalizeQuestionType(item.QuestionType),
			Content:         strings.TrimSpace(item.Content),
			AnswerOptions:   item.AnswerOptions,
			Instructions:    strings.TrimSpace(item.Instructions),
			Status:          model.QuestionPending,
		}
		// skipped 题目没有可生成的答案，直接落为 ready，不进调度
		if q.QuestionType == model.TypeSkipped {
			q.Status = model.QuestionReady
		}
		questions = append(questions, q)
	}

	if err := s.questions.ReplaceForAssignment(ctx, assignment.ID, questions); err != nil {
		return nil, fmt.Errorf("persist extracted questions: %w", err)
	}
	return questions, nil
}

// Regenerate 单题重生成，绕过调度器。失败时恢复之前的答案内容
// （绝不毁掉已有的好结果），并仍置回 ready。
func (s *PipelineService) Regenerate(ctx context.Context, questionID string, feedback string) (result ProcessResult) {
	ctx, span := tracing.Tracer.Start(ctx, "pipeline.regenerate")
	defer span.End()

	var prev GeneratedAnswer
	var inProgress bool

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("internal pipeline panic: %v", r)
			logger.L().Error("regeneration panicked", zap.String("question", questionID), zap.Any("panic", r))
			// 恐慌也不能把题目留在 processing：写回旧内容收敛回 ready
			if inProgress {
				if restoreErr := s.questions.SaveAnswer(context.WithoutCancel(ctx), questionID, prev.Answer, prev.KeyPoints, prev.Source); restoreErr != nil {
					logger.L().Error("failed to restore previous answer",
						zap.String("question", questionID), zap.Error(restoreErr))
				}
			}
			result = ProcessResult{Error: msg}
		}
	}()

	q, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		return ProcessResult{Error: err.Error()}
	}
	assignment, err := s.assignments.GetByID(ctx, q.AssignmentID)
	if err != nil {
		return ProcessResult{Error: err.Error()}
	}

	prev = GeneratedAnswer{Answer: q.Answer, KeyPoints: q.KeyPoints, Source: q.Source}

	if err := s.questions.SetStatus(ctx, questionID, model.QuestionProcessing); err != nil {
		return ProcessResult{Error: err.Error()}
	}
	inProgress = true

	payload, err := s.buildContextPayload(ctx, assignment, true)
	if err == nil {
		var ans *GeneratedAnswer
		ans, err = s.generateAnswer(ctx, q, payload, feedback)
		if err == nil {
			if err = s.questions.SaveAnswer(ctx, questionID, ans.Answer, ans.KeyPoints, ans.Source); err == nil {
				return ProcessResult{Success: true, AnswersGenerated: 1}
			}
		}
	}

	// 失败路径：写回旧内容，SaveAnswer 同时把状态置回 ready
	logger.L().Warn("regeneration failed, previous answer restored",
		zap.String("question", questionID), zap.Error(err))
	if restoreErr := s.questions.SaveAnswer(ctx, questionID, prev.Answer, prev.KeyPoints, prev.Source); restoreErr != nil {
		logger.L().Error("failed to restore previous answer",
			zap.String("question", questionID), zap.Error(restoreErr))
	}
	return ProcessResult{Error: err.Error()}
}

// Stop 外部停止请求：对活跃运行写入哨兵错误，调度器在下一个检查点
// 观察到后协作式退出。对非活跃作业报错。
func (s *PipelineService) Stop(ctx context.Context, assignmentID string) error {
	status, _, err := s.assignments.GetProcessingState(ctx, assignmentID)
	if err != nil {
		return err
	}
	if !status.Active() {
		return fmt.Errorf("assignment %s has no active processing run", assignmentID)
	}
	return s.assignments.SetError(ctx, assignmentID, util.StopRequestedMessage)
}

// Resume 清除 error 状态回到 pending；之后由调用方再次触发 Process
func (s *PipelineService) Resume(ctx context.Context, assignmentID string) error {
	return s.assignments.ClearError(ctx, assignmentID)
}

// failAssignment 把作业置为 error。这里的写入不能随 ctx 一起取消。
func (s *PipelineService) failAssignment(ctx context.Context, assignmentID, message string) {
	ctx = context.WithoutCancel(ctx)
	// 停止请求早已把状态写成 error＋哨兵，不要覆盖掉用户的停止原因
	status, procErr, err := s.assignments.GetProcessingState(ctx, assignmentID)
	if err == nil && status == model.StatusError && procErr != "" {
		return
	}
	if err := s.assignments.SetError(ctx, assignmentID, message); err != nil {
		logger.L().Error("failed to record assignment error",
			zap.String("assignment", assignmentID), zap.Error(err))
	}
}

// buildContextPayload 逐个拉取文件并封装为附件。withNotes 控制是否
// 带上课堂笔记（生成阶段带，抽取阶段只要题目文档）。
func (s *PipelineService) buildContextPayload(ctx context.Context, assignment *model.Assignment, withNotes bool) ([]Attachment, error) {
	var payload []Attachment
	for _, f := range assignment.Files {
		if f.Role == model.FileRoleNotes && !withNotes {
			continue
		}
		data, contentType, err := s.files.Fetch(ctx, f.ObjectKey)
		if err != nil {
			return nil, fmt.Errorf("fetch file %s: %w", f.Name, err)
		}
		if contentType == "" {
			contentType = f.ContentType
		}
		payload = append(payload, Attachment{
			Name:        f.Name,
			ContentType: contentType,
			Data:        data,
		})
	}
	if len(payload) == 0 {
		return nil, util.ErrNoSourceFiles
	}
	return payload, nil
}

// generateAnswer 一道题的"调用+解析+规范化"，整体处于重试保护下。
// 重试标签是固定值（进指标维度），题号只进错误信息和日志。
func (s *PipelineService) generateAnswer(ctx context.Context, q *model.Question, payload []Attachment, feedback string) (*GeneratedAnswer, error) {
	prompt := buildAnswerPrompt(q, feedback)

	ans, err := InvokeWithRetry(ctx, "answer generation", s.retry, func(ctx context.Context) (*GeneratedAnswer, error) {
		resp, err := s.ai.Complete(ctx, InferenceRequest{
			Prompt:      prompt,
			Attachments: payload,
			JSONOutput:  true,
			UseSearch:   true,
		})
		if err != nil {
			return nil, err
		}

		var fields generatedFields
		if err := ParseModelOutput(resp.Text, &fields); err != nil {
			return nil, err
		}

		ans := &GeneratedAnswer{
			KeyPoints: fields.KeyPoints,
			Source:    NormalizeSource(fields.Source, resp.GroundingURLs),
		}
		if q.QuestionType == model.TypeMultipleChoice {
			// 映射不到选项字母是硬错误，绝不默认猜一个
			letter, err := NormalizeMCQAnswer(fields.Answer, q.AnswerOptions)
			if err != nil {
				return nil, err
			}
			ans.Answer = model.ScalarAnswer(letter)
		} else {
			ans.Answer = NormalizeAnswer(fields.Answer, q.QuestionType)
		}
		return ans, nil
	})
	if err != nil {
		return nil, fmt.Errorf("question %s: %w", q.QuestionNumber, err)
	}
	return ans, nil
}

// answerProcessor 把共享载荷闭包进调度器的逐题回调
type answerProcessor struct {
	svc     *PipelineService
	payload []Attachment
}

func (p *answerProcessor) Generate(ctx context.Context, q *model.Question) (*GeneratedAnswer, error) {
	return p.svc.generateAnswer(ctx, q, p.payload, "")
}

func (p *answerProcessor) Commit(ctx context.Context, q *model.Question, ans *GeneratedAnswer) error {
	return p.svc.questions.SaveAnswer(ctx, q.ID, ans.Answer, ans.KeyPoints, ans.Source)
}

// normalizeQuestionType 未知类型按简答题处理，不让脏枚举进库
func normalizeQuestionType(raw string) model.QuestionType {
	switch model.QuestionType(strings.TrimSpace(strings.ToLower(raw))) {
	case model.TypeMultipleChoice:
		return model.TypeMultipleChoice
	case model.TypeSingleValue:
		return model.TypeSingleValue
	case model.TypeShortAnswer:
		return model.TypeShortAnswer
	case model.TypeFreeResponse:
		return model.TypeFreeResponse
	case model.TypeSkipped:
		return model.TypeSkipped
	default:
		logger.L().Warn("unknown question type from extraction, defaulting to short_answer",
			zap.String("questionType", raw))
		return model.TypeShortAnswer
	}
}
