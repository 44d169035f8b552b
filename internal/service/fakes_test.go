package service

import (
	"classtutor_backend/internal/model"
	"classtutor_backend/internal/util"
	"context"
	"fmt"
	"sync"
	"time"
)

// 内存假实现，替代 gorm/redis 仓储供单元测试使用

type fakeAssignmentStore struct {
	mu          sync.Mutex
	assignments map[string]*model.Assignment
}

func newFakeAssignmentStore(assignments ...*model.Assignment) *fakeAssignmentStore {
	s := &fakeAssignmentStore{assignments: make(map[string]*model.Assignment)}
	for _, a := range assignments {
		s.assignments[a.ID] = a
	}
	return s
}

func (s *fakeAssignmentStore) GetByID(ctx context.Context, id string) (*model.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[id]
	if !ok {
		return nil, util.ErrAssignmentNotFound
	}
	copied := *a
	return &copied, nil
}

func (s *fakeAssignmentStore) GetProcessingState(ctx context.Context, id string) (model.ProcessingStatus, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[id]
	if !ok {
		return "", "", util.ErrAssignmentNotFound
	}
	return a.ProcessingStatus, a.ProcessingError, nil
}

func (s *fakeAssignmentStore) BeginProcessing(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[id]
	if !ok {
		return false, util.ErrAssignmentNotFound
	}
	if a.ProcessingStatus.Active() {
		return false, nil
	}
	a.ProcessingStatus = model.StatusExtracting
	a.ProcessingError = ""
	return true, nil
}

func (s *fakeAssignmentStore) SetStatus(ctx context.Context, id string, status model.ProcessingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[id]
	if !ok {
		return util.ErrAssignmentNotFound
	}
	a.ProcessingStatus = status
	return nil
}

func (s *fakeAssignmentStore) SetError(ctx context.Context, id string, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[id]
	if !ok {
		return util.ErrAssignmentNotFound
	}
	a.ProcessingStatus = model.StatusError
	a.ProcessingError = message
	return nil
}

func (s *fakeAssignmentStore) ClearError(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[id]
	if !ok {
		return util.ErrAssignmentNotFound
	}
	if a.ProcessingStatus != model.StatusError {
		return util.ErrNotStopped
	}
	a.ProcessingStatus = model.StatusPending
	a.ProcessingError = ""
	return nil
}

type fakeQuestionStore struct {
	mu        sync.Mutex
	questions map[string]*model.Question
	order     []string
}

func newFakeQuestionStore(questions ...*model.Question) *fakeQuestionStore {
	s := &fakeQuestionStore{questions: make(map[string]*model.Question)}
	for _, q := range questions {
		s.questions[q.ID] = q
		s.order = append(s.order, q.ID)
	}
	return s
}

func (s *fakeQuestionStore) GetByID(ctx context.Context, id string) (*model.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[id]
	if !ok {
		return nil, util.ErrQuestionNotFound
	}
	copied := *q
	return &copied, nil
}

func (s *fakeQuestionStore) ReplaceForAssignment(ctx context.Context, assignmentID string, questions []model.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, q := range s.questions {
		if q.AssignmentID == assignmentID {
			delete(s.questions, id)
		}
	}
	s.order = s.order[:0]
	for i := range questions {
		q := questions[i]
		if q.ID == "" {
			q.ID = fmt.Sprintf("q-%d", i)
		}
		s.questions[q.ID] = &q
		s.order = append(s.order, q.ID)
	}
	return nil
}

func (s *fakeQuestionStore) ListPending(ctx context.Context, assignmentID string) ([]model.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Question
	for _, id := range s.order {
		q := s.questions[id]
		if q.AssignmentID == assignmentID && q.Status == model.QuestionPending {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (s *fakeQuestionStore) SetStatus(ctx context.Context, id string, status model.QuestionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[id]
	if !ok {
		return util.ErrQuestionNotFound
	}
	q.Status = status
	return nil
}

func (s *fakeQuestionStore) SaveAnswer(ctx context.Context, id string, answer model.AnswerValue, keyPoints []string, source model.SourceValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[id]
	if !ok {
		return util.ErrQuestionNotFound
	}
	q.Answer = answer
	q.KeyPoints = keyPoints
	q.Source = source
	q.Status = model.QuestionReady
	return nil
}

func (s *fakeQuestionStore) CountByStatus(ctx context.Context, assignmentID string) (map[model.QuestionStatus]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[model.QuestionStatus]int64)
	for _, q := range s.questions {
		if q.AssignmentID == assignmentID {
			counts[q.Status]++
		}
	}
	return counts, nil
}

func (s *fakeQuestionStore) statusOf(id string) model.QuestionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.questions[id].Status
}

type fakeChatStore struct {
	mu           sync.Mutex
	sessions     map[string]*model.ChatSession
	messages     map[string][]model.ChatMessage
	studentTimes map[string][]time.Time
	nextID       int
}

func newFakeChatStore(sessions ...*model.ChatSession) *fakeChatStore {
	s := &fakeChatStore{
		sessions:     make(map[string]*model.ChatSession),
		messages:     make(map[string][]model.ChatMessage),
		studentTimes: make(map[string][]time.Time),
	}
	for _, sess := range sessions {
		s.sessions[sess.ID] = sess
	}
	return s
}

func (s *fakeChatStore) GetSession(ctx context.Context, id string) (*model.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, util.ErrSessionNotFound
	}
	copied := *sess
	return &copied, nil
}

func (s *fakeChatStore) CreateSession(ctx context.Context, session *model.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

func (s *fakeChatStore) CreateMessage(ctx context.Context, msg *model.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	if msg.ID == "" {
		msg.ID = fmt.Sprintf("msg-%d", s.nextID)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	s.messages[msg.SessionID] = append(s.messages[msg.SessionID], *msg)
	if msg.Role == model.RoleStudent {
		s.studentTimes[msg.SessionID] = append(s.studentTimes[msg.SessionID], msg.CreatedAt)
	}
	return nil
}

func (s *fakeChatStore) RecentMessages(ctx context.Context, sessionID string, limit int) ([]model.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[sessionID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]model.ChatMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *fakeChatStore) StudentMessageTimes(ctx context.Context, sessionID string, since time.Time) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []time.Time
	for _, t := range s.studentTimes[sessionID] {
		if t.After(since) {
			out = append(out, t)
		}
	}
	return out, nil
}

// seedStudentTimes 直接注入窗口时间戳，绕过消息持久化
func (s *fakeChatStore) seedStudentTimes(sessionID string, times []time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.studentTimes[sessionID] = times
}

// fakeInference 按调用顺序返回预置结果
type fakeInference struct {
	mu      sync.Mutex
	fn      func(req InferenceRequest) (*InferenceResult, error)
	calls   int
	inFly   int
	maxFly  int
	blockCh chan struct{}
}

func (f *fakeInference) Complete(ctx context.Context, req InferenceRequest) (*InferenceResult, error) {
	f.mu.Lock()
	f.calls++
	f.inFly++
	if f.inFly > f.maxFly {
		f.maxFly = f.inFly
	}
	f.mu.Unlock()

	if f.blockCh != nil {
		select {
		case <-f.blockCh:
		case <-ctx.Done():
		}
	}

	defer func() {
		f.mu.Lock()
		f.inFly--
		f.mu.Unlock()
	}()
	return f.fn(req)
}

func (f *fakeInference) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeFetcher 简单的内存文件表
type fakeFetcher struct {
	files map[string][]byte
}

func (f *fakeFetcher) Fetch(ctx context.Context, objectKey string) ([]byte, string, error) {
	data, ok := f.files[objectKey]
	if !ok {
		return nil, "", fmt.Errorf("object %s not found", objectKey)
	}
	return data, "application/pdf", nil
}
