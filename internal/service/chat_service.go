package service

import (
	"classtutor_backend/internal/model"
	"classtutor_backend/internal/util"
	"classtutor_backend/pkg/logger"
	"classtutor_backend/pkg/tracing"
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// 带给模型的历史轮次上限，超出的旧消息不进上下文
const chatHistoryLimit = 30

// ChatResult SendMessage 的结构化返回。Limited 非空表示这条消息被
// 限流拦下，Reply 此时是写入会话的提示消息。
type ChatResult struct {
	Reply   *model.ChatMessage `json:"reply"`
	Limited *RateLimitResult   `json:"limited,omitempty"`
}

// ChatService 按题目维度的辅导会话：学生提问，模型给提示不给答案
type ChatService struct {
	chats     ChatStore
	questions QuestionStore
	ai        InferenceClient
	limiter   *RateLimitService
	retry     RetryPolicy
}

func NewChatService(chats ChatStore, questions QuestionStore, ai InferenceClient, limiter *RateLimitService, retry RetryPolicy) *ChatService {
	return &ChatService{
		chats:     chats,
		questions: questions,
		ai:        ai,
		limiter:   limiter,
		retry:     retry,
	}
}

// SendMessageInput 一条学生消息。QuestionID 仅在会话尚不存在时
// 用于隐式创建会话。
type SendMessageInput struct {
	SessionID  string
	QuestionID string
	StudentID  string
	Content    string
}

// SendMessage 处理一条学生消息。限流在持久化之前判定，被拦的消息
// 不落库也不计入窗口，只写一条 system 提示进会话。
func (s *ChatService) SendMessage(ctx context.Context, in SendMessageInput) (*ChatResult, error) {
	ctx, span := tracing.Tracer.Start(ctx, "chat.send_message")
	defer span.End()

	sessionID := in.SessionID
	content := in.Content

	session, err := s.resolveSession(ctx, in)
	if err != nil {
		return nil, err
	}

	limited, err := s.limiter.Check(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if limited != nil {
		notice := &model.ChatMessage{
			SessionID: sessionID,
			Role:      model.RoleSystem,
			Content:   limitNotice(limited),
		}
		if err := s.chats.CreateMessage(ctx, notice); err != nil {
			return nil, err
		}
		logger.L().Info("chat message rate limited",
			zap.String("session", sessionID), zap.String("scope", limited.Scope))
		return &ChatResult{Reply: notice, Limited: limited}, nil
	}

	question, err := s.questions.GetByID(ctx, session.QuestionID)
	if err != nil {
		return nil, err
	}

	// 历史在持久化当前消息之前读取，避免当前消息在上下文里出现两次
	history, err := s.loadHistory(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	studentMsg := &model.ChatMessage{
		SessionID: sessionID,
		Role:      model.RoleStudent,
		Content:   content,
	}
	if err := s.chats.CreateMessage(ctx, studentMsg); err != nil {
		return nil, err
	}

	resp, err := InvokeWithRetry(ctx, "tutor chat", s.retry, func(ctx context.Context) (*InferenceResult, error) {
		return s.ai.Complete(ctx, InferenceRequest{
			System:  buildTutorSystemPrompt(question),
			History: history,
			Prompt:  content,
		})
	})
	if err != nil {
		// 学生消息已落库，窗口照常计数；回复失败由前端重试展示
		return nil, err
	}

	reply := &model.ChatMessage{
		SessionID: sessionID,
		Role:      model.RoleTutor,
		Content:   resp.Text,
	}
	if err := s.chats.CreateMessage(ctx, reply); err != nil {
		return nil, err
	}
	return &ChatResult{Reply: reply}, nil
}

// History 返回会话最近的消息，按时间正序
func (s *ChatService) History(ctx context.Context, sessionID string, limit int) ([]model.ChatMessage, error) {
	if _, err := s.chats.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = chatHistoryLimit
	}
	return s.chats.RecentMessages(ctx, sessionID, limit)
}

// LimitStatus 查询会话当前的限流判定，不产生副作用
func (s *ChatService) LimitStatus(ctx context.Context, sessionID string) (*RateLimitResult, error) {
	if _, err := s.chats.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.limiter.Check(ctx, sessionID)
}

// resolveSession 查找会话；不存在且给了题目 ID 时隐式创建，会话 ID
// 由客户端指定以便同一题目的对话保持稳定
func (s *ChatService) resolveSession(ctx context.Context, in SendMessageInput) (*model.ChatSession, error) {
	session, err := s.chats.GetSession(ctx, in.SessionID)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, util.ErrSessionNotFound) || in.QuestionID == "" {
		return nil, err
	}
	if _, err := s.questions.GetByID(ctx, in.QuestionID); err != nil {
		return nil, err
	}
	session = &model.ChatSession{
		QuestionID: in.QuestionID,
		StudentID:  in.StudentID,
	}
	session.ID = in.SessionID
	if err := s.chats.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// loadHistory 把持久化消息转成推理轮次，system 提示不进模型上下文
func (s *ChatService) loadHistory(ctx context.Context, sessionID string) ([]ChatTurn, error) {
	msgs, err := s.chats.RecentMessages(ctx, sessionID, chatHistoryLimit)
	if err != nil {
		return nil, err
	}
	turns := make([]ChatTurn, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == model.RoleSystem {
			continue
		}
		turns = append(turns, ChatTurn{Role: m.Role, Content: m.Content})
	}
	return turns, nil
}

func limitNotice(r *RateLimitResult) string {
	if r.Scope == ScopeDay {
		return fmt.Sprintf("你今天的提问次数已达上限（%d 条），明天再来吧。", r.Limit)
	}
	return fmt.Sprintf("提问太频繁了（每分钟最多 %d 条），稍等片刻再发送。", r.Limit)
}
