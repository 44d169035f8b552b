package model

import (
	"encoding/json"
	"time"
)

// 辅导会话中的消息角色
const (
	RoleStudent = "student"
	RoleTutor   = "tutor"
	RoleSystem  = "system"
)

// ChatSession 学生针对某道题的辅导会话
type ChatSession struct {
	UUIDBase
	QuestionID string        `gorm:"size:36;index;not null" json:"questionId"`
	StudentID  string        `gorm:"size:36;index" json:"studentId"`
	Messages   []ChatMessage `gorm:"foreignKey:SessionID" json:"messages,omitempty"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}

// ChatMessage 辅导会话消息。学生消息的时间戳是限流窗口的唯一输入。
type ChatMessage struct {
	UUIDBase
	SessionID   string          `gorm:"size:36;index;index:idx_session_role_created;not null" json:"sessionId"`
	Role        string          `gorm:"type:enum('student','tutor','system');index:idx_session_role_created" json:"role"`
	Content     string          `gorm:"type:text" json:"content"`
	CreatedAt   time.Time       `gorm:"index:idx_session_role_created" json:"createdAt"`
	Attachments StringList      `gorm:"type:json" json:"attachments,omitempty"`
	ToolCall    json.RawMessage `gorm:"type:json" json:"toolCall,omitempty"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
