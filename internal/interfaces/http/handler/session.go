// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"lecture-rag-api/internal/application/chat"
	"lecture-rag-api/internal/interfaces/http/dto"
)

// SessionHandler 会话管理处理器
type SessionHandler struct {
	sessions *chat.SessionManager
}

// NewSessionHandler 创建会话处理器
func NewSessionHandler(sessions *chat.SessionManager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Create 创建会话
// @Summary 创建对话会话
// @Tags Sessions
// @Produce json
// @Success 201 {object} dto.Response[dto.CreateSessionResponse]
// @Router /v1/sessions [post]
func (h *SessionHandler) Create(c *gin.Context) {
	sess := h.sessions.Create()
	dto.Created(c, dto.CreateSessionResponse{
		SessionID: sess.ID,
		CreatedAt: sess.CreatedAt,
	})
}

// History 获取会话历史
// @Summary 获取会话历史
// @Tags Sessions
// @Produce json
// @Param sid path string true "会话 ID"
// @Success 200 {object} dto.Response[dto.HistoryResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/sessions/{sid}/turns [get]
func (h *SessionHandler) History(c *gin.Context) {
	sess, ok := h.sessions.Get(c.Param("sid"))
	if !ok {
		dto.NotFound(c, "session not found")
		return
	}

	turns := sess.Turns()
	out := make([]dto.TurnResponse, 0, len(turns))
	for _, t := range turns {
		out = append(out, dto.FromTurn(t))
	}
	dto.Success(c, dto.HistoryResponse{
		SessionID: sess.ID,
		Turns:     out,
	})
}
