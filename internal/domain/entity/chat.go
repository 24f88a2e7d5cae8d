package entity

import (
	"time"

	"github.com/google/uuid"
)

// Role 对话角色
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatTurn 会话中的一轮发言。助手轮携带引用来源；历史记录只追加、不改写。
type ChatTurn struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	// Citation 助手轮的来源标注，用户轮为空
	Citation  string    `json:"citation,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewChatTurn 创建一轮发言
func NewChatTurn(sessionID string, role Role, content, citation string) *ChatTurn {
	return &ChatTurn{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Citation:  citation,
		CreatedAt: time.Now(),
	}
}
