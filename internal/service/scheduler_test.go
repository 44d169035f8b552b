package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"classtutor_backend/internal/model"
	"classtutor_backend/internal/util"
)

func makeQuestions(assignmentID string, n int) []*model.Question {
	out := make([]*model.Question, 0, n)
	for i := 0; i < n; i++ {
		q := &model.Question{
			AssignmentID:    assignmentID,
			QuestionNumber:  fmt.Sprintf("%d", i+1),
			ExtractionOrder: i,
			QuestionType:    model.TypeShortAnswer,
			Content:         fmt.Sprintf("question %d", i+1),
			Status:          model.QuestionPending,
		}
		q.ID = fmt.Sprintf("q-%d", i)
		out = append(out, q)
	}
	return out
}

func questionValues(questions []*model.Question) []model.Question {
	out := make([]model.Question, 0, len(questions))
	for _, q := range questions {
		out = append(out, *q)
	}
	return out
}

// countingProcessor 记录并发度与处理过的题目
type countingProcessor struct {
	mu        sync.Mutex
	inFly     int
	maxFly    int
	generated []string
	genErr    func(q *model.Question) error
	onGen     func(q *model.Question)
	commit    func(ctx context.Context, q *model.Question, ans *GeneratedAnswer) error
}

func (p *countingProcessor) Generate(ctx context.Context, q *model.Question) (*GeneratedAnswer, error) {
	p.mu.Lock()
	p.inFly++
	if p.inFly > p.maxFly {
		p.maxFly = p.inFly
	}
	p.generated = append(p.generated, q.ID)
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.inFly--
		p.mu.Unlock()
	}()

	if p.onGen != nil {
		p.onGen(q)
	}
	if p.genErr != nil {
		if err := p.genErr(q); err != nil {
			return nil, err
		}
	}
	return &GeneratedAnswer{Answer: model.ScalarAnswer("answer for " + q.QuestionNumber)}, nil
}

func (p *countingProcessor) Commit(ctx context.Context, q *model.Question, ans *GeneratedAnswer) error {
	if p.commit != nil {
		return p.commit(ctx, q, ans)
	}
	return nil
}

func (p *countingProcessor) generatedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.generated)
}

func newSchedulerFixture(n int) (*fakeAssignmentStore, *fakeQuestionStore, []model.Question) {
	assignment := &model.Assignment{ProcessingStatus: model.StatusGeneratingAnswers}
	assignment.ID = "a1"
	questions := makeQuestions("a1", n)
	return newFakeAssignmentStore(assignment), newFakeQuestionStore(questions...), questionValues(questions)
}

func TestSchedulerProcessesAllQuestions(t *testing.T) {
	assignments, questions, pending := newSchedulerFixture(10)
	proc := &countingProcessor{}
	s := NewBatchScheduler(assignments, questions, 4, 2)

	rep := s.Run(context.Background(), "a1", pending, proc)

	if rep.Aborted {
		t.Fatalf("report aborted with reason %q, want clean run", rep.AbortReason)
	}
	if rep.Processed != 10 || rep.Errored != 0 {
		t.Errorf("report = %+v, want 10 processed, 0 errored", rep)
	}
	if proc.generatedCount() != 10 {
		t.Errorf("generated %d questions, want 10", proc.generatedCount())
	}
	if proc.maxFly > 2 {
		t.Errorf("max in-flight generations = %d, want <= 2 (batch-serial, window of 2)", proc.maxFly)
	}
}

func TestSchedulerEmptyInput(t *testing.T) {
	assignments, questions, _ := newSchedulerFixture(0)
	proc := &countingProcessor{}
	s := NewBatchScheduler(assignments, questions, 4, 2)

	rep := s.Run(context.Background(), "a1", nil, proc)
	if rep.Processed != 0 || rep.Errored != 0 || rep.Aborted {
		t.Errorf("report = %+v, want zero report", rep)
	}
}

func TestSchedulerSingleFailureDoesNotAbort(t *testing.T) {
	assignments, questions, pending := newSchedulerFixture(6)
	proc := &countingProcessor{
		genErr: func(q *model.Question) error {
			if q.ID == "q-2" {
				return errors.New("model returned garbage")
			}
			return nil
		},
		commit: func(ctx context.Context, q *model.Question, ans *GeneratedAnswer) error {
			return questions.SaveAnswer(ctx, q.ID, ans.Answer, ans.KeyPoints, ans.Source)
		},
	}
	s := NewBatchScheduler(assignments, questions, 2, 2)

	rep := s.Run(context.Background(), "a1", pending, proc)

	if rep.Aborted {
		t.Fatalf("aborted on single question failure: %q", rep.AbortReason)
	}
	if rep.Processed != 5 || rep.Errored != 1 {
		t.Errorf("report = %+v, want 5 processed, 1 errored", rep)
	}
	// 失败的题必须回退 pending 而不是卡在 processing
	if got := questions.statusOf("q-2"); got != model.QuestionPending {
		t.Errorf("failed question status = %q, want pending", got)
	}
	if got := questions.statusOf("q-1"); got != model.QuestionReady {
		t.Errorf("succeeded question status = %q, want ready", got)
	}
}

func TestSchedulerStopsOnPersistedError(t *testing.T) {
	assignments, questions, pending := newSchedulerFixture(10)

	var once sync.Once
	proc := &countingProcessor{
		onGen: func(q *model.Question) {
			// 第一道题生成期间外部写入停止请求
			once.Do(func() {
				assignments.SetError(context.Background(), "a1", util.StopRequestedMessage)
			})
		},
	}
	s := NewBatchScheduler(assignments, questions, 4, 1)

	rep := s.Run(context.Background(), "a1", pending, proc)

	if !rep.Aborted {
		t.Fatal("report not aborted after stop request")
	}
	if rep.AbortReason != util.StopRequestedMessage {
		t.Errorf("abort reason = %q, want stop sentinel", rep.AbortReason)
	}
	if rep.Processed != 0 {
		t.Errorf("processed = %d, want 0 (in-flight result discarded)", rep.Processed)
	}
	// 在飞的那道题必须回退 pending
	if got := questions.statusOf("q-0"); got != model.QuestionPending {
		t.Errorf("in-flight question status = %q, want pending", got)
	}
	// 后续批次不再启动
	if proc.generatedCount() > 4 {
		t.Errorf("generated %d questions after stop, want at most the first batch", proc.generatedCount())
	}
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	assignments, questions, pending := newSchedulerFixture(8)
	ctx, cancel := context.WithCancel(context.Background())

	var once sync.Once
	proc := &countingProcessor{
		onGen: func(q *model.Question) {
			once.Do(cancel)
		},
	}
	s := NewBatchScheduler(assignments, questions, 4, 1)

	rep := s.Run(ctx, "a1", pending, proc)

	if !rep.Aborted {
		t.Fatal("report not aborted after context cancel")
	}
	if rep.Processed != 0 {
		t.Errorf("processed = %d, want 0", rep.Processed)
	}
	if got := questions.statusOf("q-0"); got != model.QuestionPending {
		t.Errorf("in-flight question status = %q, want pending", got)
	}
}

func TestPartition(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		batchSize int
		wantSizes []int
	}{
		{"empty", 0, 4, nil},
		{"exact multiple", 8, 4, []int{4, 4}},
		{"remainder batch", 10, 4, []int{4, 4, 2}},
		{"single short batch", 3, 4, []int{3}},
		{"batch of one", 3, 1, []int{1, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			questions := questionValues(makeQuestions("a1", tt.total))
			got := partition(questions, tt.batchSize)
			if len(got) != len(tt.wantSizes) {
				t.Fatalf("partition() produced %d batches, want %d", len(got), len(tt.wantSizes))
			}
			for i, b := range got {
				if len(b) != tt.wantSizes[i] {
					t.Errorf("batch %d size = %d, want %d", i, len(b), tt.wantSizes[i])
				}
			}
		})
	}
}
