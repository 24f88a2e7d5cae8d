// Package retrieval 实现对字幕嵌入库的相似度检索
package retrieval

import (
	"math"
	"sort"

	"lecture-rag-api/internal/domain/entity"
)

// CosineSimilarity 计算两个向量的余弦相似度: dot(a,b) / (|a|*|b|)
// 任一向量范数为零时定义为 0,不会返回 NaN
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// TopK 对全量片段做相似度排序,返回前 min(k, len(segments)) 条
// 相似度相等时保持片段在库中的原始顺序,结果确定
func TopK(query []float32, segments []entity.SubtitleSegment, k int) []Hit {
	if k <= 0 {
		k = DefaultTopK
	}

	hits := make([]Hit, 0, len(segments))
	for _, seg := range segments {
		hits = append(hits, Hit{
			Segment: seg,
			Score:   CosineSimilarity(query, seg.Embedding),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
