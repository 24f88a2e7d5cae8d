package retrieval

import (
	"context"

	"lecture-rag-api/internal/domain/entity"
)

// Hit 一条检索命中,Score 为余弦相似度
type Hit struct {
	Segment entity.SubtitleSegment `json:"segment"`
	Score   float64                `json:"score"`
}

// Searcher 向量检索端口,内存实现为默认后端,Milvus 为可选后端
type Searcher interface {
	// Search 返回与查询向量最相似的至多 topK 个片段,按相似度降序
	Search(ctx context.Context, query []float32, topK int) ([]Hit, error)
}

// DefaultTopK 未显式指定时的检索条数
const DefaultTopK = 5
