package service

import (
	"classtutor_backend/internal/model"
	"classtutor_backend/internal/util"
	"classtutor_backend/pkg/logger"
	"classtutor_backend/pkg/monitoring"
	"context"
	"sync"

	"go.uber.org/zap"
)

// GeneratedAnswer 一道题的生成结果，提交前暂存在内存里
type GeneratedAnswer struct {
	Answer    model.AnswerValue
	KeyPoints []string
	Source    model.SourceValue
}

// QuestionProcessor 生成与提交分离：停止信号要在远程调用结束后、
// 提交结果之前再检查一次，被停止的调用结果直接丢弃。
type QuestionProcessor interface {
	Generate(ctx context.Context, q *model.Question) (*GeneratedAnswer, error)
	Commit(ctx context.Context, q *model.Question, ans *GeneratedAnswer) error
}

// SchedulerReport 调度器的聚合结果
type SchedulerReport struct {
	Processed   int
	Errored     int
	Aborted     bool
	AbortReason string
}

// BatchScheduler 把待生成的题目切成定长批次，滑动窗口式地并发运行
// 有限个批次；批内严格串行（共享同一份上下文载荷，串行避免重复传输，
// 也压住峰值内存）。取消是协作式的：每道题前后轮询作业状态。
type BatchScheduler struct {
	assignments AssignmentStore
	questions   QuestionStore
	batchSize   int
	maxParallel int
}

func NewBatchScheduler(assignments AssignmentStore, questions QuestionStore, batchSize, maxParallel int) *BatchScheduler {
	if batchSize <= 0 {
		batchSize = 4
	}
	if maxParallel <= 0 {
		maxParallel = 2
	}
	return &BatchScheduler{
		assignments: assignments,
		questions:   questions,
		batchSize:   batchSize,
		maxParallel: maxParallel,
	}
}

// abortState 记录第一个观察到的中止原因；后续批次只读标志位
type abortState struct {
	mu     sync.Mutex
	set    bool
	reason string
}

func (a *abortState) trigger(reason string) {
	a.mu.Lock()
	if !a.set {
		a.set = true
		a.reason = reason
	}
	a.mu.Unlock()
}

func (a *abortState) aborted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.set
}

func (a *abortState) state() (bool, string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.set, a.reason
}

// Run 处理一组 pending 题目。批次启动采用信号量滑动窗口：任一在飞
// 批次完成即放行下一批，而不是整波对齐。返回聚合计数与首个中止原因。
func (s *BatchScheduler) Run(ctx context.Context, assignmentID string, questions []model.Question, proc QuestionProcessor) SchedulerReport {
	batches := partition(questions, s.batchSize)

	var (
		abort abortState
		wg    sync.WaitGroup
		mu    sync.Mutex
		rep   SchedulerReport
	)

	sem := make(chan struct{}, s.maxParallel)
	for i := range batches {
		if abort.aborted() {
			break
		}
		sem <- struct{}{}
		if abort.aborted() {
			<-sem
			break
		}

		wg.Add(1)
		go func(batch []model.Question, index int) {
			defer wg.Done()
			defer func() { <-sem }()

			processed, errored := s.runBatch(ctx, assignmentID, batch, proc, &abort)

			mu.Lock()
			rep.Processed += processed
			rep.Errored += errored
			mu.Unlock()
		}(batches[i], i)
	}
	wg.Wait()

	rep.Aborted, rep.AbortReason = abort.state()
	return rep
}

// runBatch 批内严格串行。返回本批成功与失败的题目数。
func (s *BatchScheduler) runBatch(ctx context.Context, assignmentID string, batch []model.Question, proc QuestionProcessor, abort *abortState) (processed, errored int) {
	for i := range batch {
		q := &batch[i]

		// 取消检查点 1：开始一道题之前
		if reason, stopped := s.stopRequested(ctx, assignmentID); stopped {
			abort.trigger(reason)
			return
		}
		if abort.aborted() {
			return
		}

		if err := s.questions.SetStatus(ctx, q.ID, model.QuestionProcessing); err != nil {
			logger.L().Error("failed to mark question processing",
				zap.String("question", q.ID), zap.Error(err))
			errored++
			continue
		}

		ans, genErr := proc.Generate(ctx, q)

		// 取消检查点 2：远程调用已结束、结果尚未提交。
		// 在飞调用不硬中断，观察到停止就丢弃结果、回退 pending。
		if reason, stopped := s.stopRequested(ctx, assignmentID); stopped {
			s.revertToPending(ctx, q.ID)
			monitoring.QuestionsProcessed.WithLabelValues("reverted").Inc()
			abort.trigger(reason)
			return
		}

		if genErr != nil {
			// 单题失败不拖垮批次：回退 pending 留待重试，计数后继续
			logger.L().Warn("answer generation failed, question reverted to pending",
				zap.String("question", q.ID),
				zap.String("questionNumber", q.QuestionNumber),
				zap.Error(genErr))
			s.revertToPending(ctx, q.ID)
			monitoring.QuestionsProcessed.WithLabelValues("error").Inc()
			errored++
			continue
		}

		if err := proc.Commit(ctx, q, ans); err != nil {
			logger.L().Error("failed to commit generated answer",
				zap.String("question", q.ID), zap.Error(err))
			s.revertToPending(ctx, q.ID)
			monitoring.QuestionsProcessed.WithLabelValues("error").Inc()
			errored++
			continue
		}

		monitoring.QuestionsProcessed.WithLabelValues("success").Inc()
		processed++
	}
	return
}

// stopRequested 轮询持久化状态：作业转入 error 即视为外部请求停止。
// ctx 取消等价于停止。
func (s *BatchScheduler) stopRequested(ctx context.Context, assignmentID string) (string, bool) {
	if err := ctx.Err(); err != nil {
		return err.Error(), true
	}

	status, procErr, err := s.assignments.GetProcessingState(ctx, assignmentID)
	if err != nil {
		// 状态读不到时宁可停下，也不要在未知状态下继续写
		logger.L().Error("failed to poll assignment status, aborting batch",
			zap.String("assignment", assignmentID), zap.Error(err))
		return "assignment status unavailable: " + err.Error(), true
	}
	if status == model.StatusError {
		reason := procErr
		if reason == "" {
			reason = util.StopRequestedMessage
		}
		return reason, true
	}
	return "", false
}

// revertToPending 任何非成功路径都必须离开 processing 状态。
// ctx 可能已被取消，回退写入不能跟着取消。
func (s *BatchScheduler) revertToPending(ctx context.Context, questionID string) {
	ctx = context.WithoutCancel(ctx)
	if err := s.questions.SetStatus(ctx, questionID, model.QuestionPending); err != nil {
		logger.L().Error("failed to revert question to pending",
			zap.String("question", questionID), zap.Error(err))
	}
}

// partition 连续切分，末批允许不满
func partition(questions []model.Question, size int) [][]model.Question {
	if len(questions) == 0 {
		return nil
	}
	batches := make([][]model.Question, 0, (len(questions)+size-1)/size)
	for start := 0; start < len(questions); start += size {
		end := start + size
		if end > len(questions) {
			end = len(questions)
		}
		batches = append(batches, questions[start:end])
	}
	return batches
}
