package dto

import (
	"time"

	"lecture-rag-api/internal/domain/entity"
)

// CreateSessionResponse 创建会话响应
type CreateSessionResponse struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatRequest 对话请求
type ChatRequest struct {
	Query string `json:"query" binding:"required"`
}

// TurnResponse 单轮发言
type TurnResponse struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Citation  string    `json:"citation,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FromTurn 由领域实体构建
func FromTurn(t *entity.ChatTurn) TurnResponse {
	return TurnResponse{
		ID:        t.ID,
		Role:      string(t.Role),
		Content:   t.Content,
		Citation:  t.Citation,
		CreatedAt: t.CreatedAt,
	}
}

// HistoryResponse 会话历史
type HistoryResponse struct {
	SessionID string         `json:"session_id"`
	Turns     []TurnResponse `json:"turns"`
}

// ChunkEvent SSE content 事件载荷
type ChunkEvent struct {
	Index int    `json:"index"`
	Chunk string `json:"chunk"`
}

// AnswerEvent SSE answer 事件载荷,一轮的最终结果
type AnswerEvent struct {
	TurnID   string `json:"turn_id"`
	Answer   string `json:"answer"`
	Citation string `json:"citation"`
}

// ErrorEvent SSE error 事件载荷
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SearchRequest 检索调试请求
type SearchRequest struct {
	Query string `json:"query" binding:"required"`
	TopK  int    `json:"top_k"`
}

// SearchHit 检索调试命中
type SearchHit struct {
	Number int     `json:"number"`
	Title  string  `json:"title"`
	Start  float64 `json:"start"`
	Text   string  `json:"text"`
	Score  float64 `json:"score"`
}

// SearchResponse 检索调试响应
type SearchResponse struct {
	Hits []SearchHit `json:"hits"`
}
