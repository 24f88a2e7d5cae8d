package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	"lecture-rag-api/internal/application/chat"
	"lecture-rag-api/internal/domain/entity"
	"lecture-rag-api/internal/interfaces/http/dto"
	apperrors "lecture-rag-api/pkg/errors"
)

// ChatHandler 对话处理器,以 SSE 推送流式生成
type ChatHandler struct {
	sessions     *chat.SessionManager
	orchestrator *chat.Orchestrator
}

// NewChatHandler 创建对话处理器
func NewChatHandler(sessions *chat.SessionManager, orchestrator *chat.Orchestrator) *ChatHandler {
	return &ChatHandler{
		sessions:     sessions,
		orchestrator: orchestrator,
	}
}

// Chat 发起一轮对话
// @Summary 发起一轮对话（SSE 流式）
// @Description content 事件逐片推送生成文本，answer 事件给出后处理的最终回答与引用，error 事件表示本轮失败
// @Tags Chat
// @Accept json
// @Produce text/event-stream
// @Param sid path string true "会话 ID"
// @Param request body dto.ChatRequest true "对话请求"
// @Success 200 "SSE stream"
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /v1/sessions/{sid}/chat [post]
func (h *ChatHandler) Chat(c *gin.Context) {
	sess, ok := h.sessions.Get(c.Param("sid"))
	if !ok {
		dto.NotFound(c, "session not found")
		return
	}

	var req dto.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "query is required")
		return
	}

	// 在写出任何 SSE 内容前占用会话,同会话并发轮次直接 409
	release, err := sess.BeginTurn()
	if err != nil {
		dto.Conflict(c, apperrors.AsAppError(err).Message)
		return
	}

	// 设置 SSE 响应头
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	chunkChan := make(chan string, 16)
	resultChan := make(chan turnResult, 1)

	go func() {
		defer release()
		turn, err := h.orchestrator.HandleTurn(ctx, sess, req.Query, func(chunk string) {
			select {
			case chunkChan <- chunk:
			case <-ctx.Done():
			}
		})
		close(chunkChan)
		resultChan <- turnResult{turn: turn, err: err}
	}()

	index := 0
	c.Stream(func(w io.Writer) bool {
		select {
		case chunk, ok := <-chunkChan:
			if !ok {
				h.finish(c, resultChan)
				return false
			}
			c.SSEvent("content", dto.ChunkEvent{
				Index: index,
				Chunk: chunk,
			})
			index++
			return true

		case <-ctx.Done():
			// 客户端断开,编排侧随 context 终止并丢弃未完成的轮次
			return false
		}
	})
}

type turnResult struct {
	turn *entity.ChatTurn
	err  error
}

// finish 流结束后发终态事件:成功发 answer,失败先发 error 再附上错误轮内容
func (h *ChatHandler) finish(c *gin.Context, resultChan <-chan turnResult) {
	select {
	case res := <-resultChan:
		if res.err != nil {
			appErr := apperrors.AsAppError(res.err)
			c.SSEvent("error", dto.ErrorEvent{
				Code:    string(appErr.Code),
				Message: appErr.Message,
			})
		}
		// 服务故障时历史里已有错误轮,一并给到前端展示
		if res.turn != nil {
			c.SSEvent("answer", dto.AnswerEvent{
				TurnID:   res.turn.ID,
				Answer:   res.turn.Content,
				Citation: res.turn.Citation,
			})
		}

	case <-c.Request.Context().Done():
	}
}
