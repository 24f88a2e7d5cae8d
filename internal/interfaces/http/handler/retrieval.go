package handler

import (
	"github.com/gin-gonic/gin"

	"lecture-rag-api/internal/application/chat"
	"lecture-rag-api/internal/application/retrieval"
	"lecture-rag-api/internal/interfaces/http/dto"
	apperrors "lecture-rag-api/pkg/errors"
)

// RetrievalHandler 检索调试处理器,绕过生成直接查看召回结果
type RetrievalHandler struct {
	embedder chat.Embedder
	searcher retrieval.Searcher
}

// NewRetrievalHandler 创建检索处理器
func NewRetrievalHandler(embedder chat.Embedder, searcher retrieval.Searcher) *RetrievalHandler {
	return &RetrievalHandler{
		embedder: embedder,
		searcher: searcher,
	}
}

// Search 对嵌入库执行一次检索
// @Summary 检索字幕片段
// @Tags Retrieval
// @Accept json
// @Produce json
// @Param request body dto.SearchRequest true "检索请求"
// @Success 200 {object} dto.Response[dto.SearchResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /v1/retrieval/search [post]
func (h *RetrievalHandler) Search(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "query is required")
		return
	}
	if req.TopK <= 0 {
		req.TopK = retrieval.DefaultTopK
	}

	ctx := c.Request.Context()
	vecs, err := h.embedder.Embed(ctx, []string{req.Query})
	if err != nil {
		dto.ServiceUnavailable(c, apperrors.AsAppError(err).Message)
		return
	}
	if len(vecs) != 1 {
		dto.ServiceUnavailable(c, "embedding service returned no vector")
		return
	}

	hits, err := h.searcher.Search(ctx, vecs[0], req.TopK)
	if err != nil {
		appErr := apperrors.AsAppError(err)
		dto.Error(c, appErr.HTTPStatus, appErr.Message)
		return
	}

	out := make([]dto.SearchHit, 0, len(hits))
	for _, hit := range hits {
		out = append(out, dto.SearchHit{
			Number: hit.Segment.Number,
			Title:  hit.Segment.Title,
			Start:  hit.Segment.Start,
			Text:   hit.Segment.Text,
			Score:  hit.Score,
		})
	}
	dto.Success(c, dto.SearchResponse{Hits: out})
}
