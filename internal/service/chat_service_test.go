package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"classtutor_backend/internal/config"
	"classtutor_backend/internal/model"
	"classtutor_backend/internal/util"
)

func newChatFixture(t *testing.T, fn func(req InferenceRequest) (*InferenceResult, error), perMinute, perDay int) (*ChatService, *fakeChatStore, *fakeInference) {
	t.Helper()

	question := &model.Question{
		QuestionType: model.TypeShortAnswer,
		Content:      "Explain osmosis.",
		Answer:       model.ScalarAnswer("Water crosses a membrane."),
		Status:       model.QuestionReady,
	}
	question.ID = "q-1"

	session := &model.ChatSession{QuestionID: "q-1", StudentID: "stu-1"}
	session.ID = "sess-1"

	chats := newFakeChatStore(session)
	questions := newFakeQuestionStore(question)
	ai := &fakeInference{fn: fn}
	limiter := NewRateLimitService(chats, config.ChatLimitConfig{PerMinute: perMinute, PerDay: perDay})

	svc := NewChatService(chats, questions, ai, limiter, RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond})
	return svc, chats, ai
}

func TestChatSendMessage(t *testing.T) {
	var captured InferenceRequest
	svc, chats, _ := newChatFixture(t, func(req InferenceRequest) (*InferenceResult, error) {
		captured = req
		return &InferenceResult{Text: "Think about where the water concentration is higher."}, nil
	}, 5, 50)

	result, err := svc.SendMessage(context.Background(), SendMessageInput{
		SessionID: "sess-1",
		Content:   "I don't understand osmosis",
	})
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if result.Limited != nil {
		t.Fatalf("result limited: %+v", result.Limited)
	}
	if result.Reply == nil || result.Reply.Role != model.RoleTutor {
		t.Fatalf("reply = %+v, want tutor message", result.Reply)
	}

	// 辅导提示不得把参考答案透给学生
	if captured.System == "" || !strings.Contains(captured.System, "Explain osmosis.") {
		t.Errorf("system prompt %q should carry the question content", captured.System)
	}
	if captured.Prompt != "I don't understand osmosis" {
		t.Errorf("prompt = %q, want student message", captured.Prompt)
	}

	// 学生消息与回复都已落库
	msgs, _ := chats.RecentMessages(context.Background(), "sess-1", 10)
	if len(msgs) != 2 {
		t.Fatalf("persisted %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != model.RoleStudent || msgs[1].Role != model.RoleTutor {
		t.Errorf("roles = %q/%q, want student then tutor", msgs[0].Role, msgs[1].Role)
	}
}

func TestChatSendMessageHistoryExcludesCurrent(t *testing.T) {
	var captured InferenceRequest
	svc, chats, _ := newChatFixture(t, func(req InferenceRequest) (*InferenceResult, error) {
		captured = req
		return &InferenceResult{Text: "reply"}, nil
	}, 50, 500)

	seed := []struct {
		role    string
		content string
	}{
		{model.RoleStudent, "first question"},
		{model.RoleTutor, "first hint"},
		{model.RoleSystem, "rate limit notice"},
	}
	for _, m := range seed {
		chats.CreateMessage(context.Background(), &model.ChatMessage{
			SessionID: "sess-1", Role: m.role, Content: m.content,
		})
	}

	if _, err := svc.SendMessage(context.Background(), SendMessageInput{
		SessionID: "sess-1",
		Content:   "second question",
	}); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	// 历史只含 student/tutor 两条，当前消息不在其中
	if len(captured.History) != 2 {
		t.Fatalf("history length = %d, want 2", len(captured.History))
	}
	for _, turn := range captured.History {
		if turn.Content == "second question" {
			t.Error("current message leaked into history")
		}
		if turn.Role == model.RoleSystem {
			t.Error("system notice leaked into model history")
		}
	}
}

func TestChatSendMessageRateLimited(t *testing.T) {
	svc, chats, ai := newChatFixture(t, func(req InferenceRequest) (*InferenceResult, error) {
		return &InferenceResult{Text: "should not be called"}, nil
	}, 1, 50)

	now := time.Now()
	chats.seedStudentTimes("sess-1", []time.Time{now.Add(-10 * time.Second)})

	result, err := svc.SendMessage(context.Background(), SendMessageInput{
		SessionID: "sess-1",
		Content:   "one more question",
	})
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if result.Limited == nil || result.Limited.Scope != ScopeMinute {
		t.Fatalf("result = %+v, want minute-scope limit", result)
	}
	if ai.callCount() != 0 {
		t.Errorf("inference called %d times, want 0 when limited", ai.callCount())
	}

	// 被拦的学生消息不落库，只有一条 system 提示
	msgs, _ := chats.RecentMessages(context.Background(), "sess-1", 10)
	if len(msgs) != 1 || msgs[0].Role != model.RoleSystem {
		t.Fatalf("messages = %+v, want single system notice", msgs)
	}
	// system 提示不计入限流窗口
	times, _ := chats.StudentMessageTimes(context.Background(), "sess-1", now.Add(-time.Hour))
	if len(times) != 1 {
		t.Errorf("student times = %d, want 1 (notice not counted)", len(times))
	}
}

func TestChatSendMessageCreatesSession(t *testing.T) {
	svc, chats, _ := newChatFixture(t, func(req InferenceRequest) (*InferenceResult, error) {
		return &InferenceResult{Text: "hint"}, nil
	}, 5, 50)

	result, err := svc.SendMessage(context.Background(), SendMessageInput{
		SessionID:  "sess-new",
		QuestionID: "q-1",
		StudentID:  "stu-2",
		Content:    "help",
	})
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if result.Reply == nil {
		t.Fatal("no reply for newly created session")
	}

	sess, err := chats.GetSession(context.Background(), "sess-new")
	if err != nil {
		t.Fatalf("session not created: %v", err)
	}
	if sess.QuestionID != "q-1" || sess.StudentID != "stu-2" {
		t.Errorf("session = %+v, want q-1/stu-2", sess)
	}
}

func TestChatSendMessageUnknownSession(t *testing.T) {
	svc, _, _ := newChatFixture(t, func(req InferenceRequest) (*InferenceResult, error) {
		return &InferenceResult{Text: "hint"}, nil
	}, 5, 50)

	// 没有 questionId 时不隐式建会话
	_, err := svc.SendMessage(context.Background(), SendMessageInput{
		SessionID: "sess-unknown",
		Content:   "help",
	})
	if !errors.Is(err, util.ErrSessionNotFound) {
		t.Errorf("error = %v, want ErrSessionNotFound", err)
	}

	// questionId 指向不存在的题目同样报错
	_, err = svc.SendMessage(context.Background(), SendMessageInput{
		SessionID:  "sess-unknown",
		QuestionID: "q-missing",
		Content:    "help",
	})
	if !errors.Is(err, util.ErrQuestionNotFound) {
		t.Errorf("error = %v, want ErrQuestionNotFound", err)
	}
}

func TestChatLimitStatus(t *testing.T) {
	svc, chats, _ := newChatFixture(t, nil, 1, 50)

	got, err := svc.LimitStatus(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("LimitStatus() error = %v", err)
	}
	if got != nil {
		t.Errorf("LimitStatus() = %+v, want nil before any message", got)
	}

	chats.seedStudentTimes("sess-1", []time.Time{time.Now().Add(-5 * time.Second)})
	got, err = svc.LimitStatus(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("LimitStatus() error = %v", err)
	}
	if got == nil || got.Scope != ScopeMinute {
		t.Errorf("LimitStatus() = %+v, want minute-scope limit", got)
	}

	if _, err := svc.LimitStatus(context.Background(), "nope"); !errors.Is(err, util.ErrSessionNotFound) {
		t.Errorf("error = %v, want ErrSessionNotFound", err)
	}
}
