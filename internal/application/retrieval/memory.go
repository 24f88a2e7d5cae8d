package retrieval

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"lecture-rag-api/internal/infrastructure/store"
	"lecture-rag-api/pkg/metrics"
	"lecture-rag-api/pkg/tracer"
)

// MemorySearcher 在进程内对嵌入库做全量余弦扫描,库规模为千级片段时足够快
type MemorySearcher struct {
	store *store.Store
}

// NewMemorySearcher 创建内存检索器
func NewMemorySearcher(s *store.Store) *MemorySearcher {
	return &MemorySearcher{store: s}
}

// Search 实现 Searcher 接口
func (m *MemorySearcher) Search(ctx context.Context, query []float32, topK int) ([]Hit, error) {
	_, span := tracer.Start(ctx, "retrieval.memory.search",
		trace.WithAttributes(
			attribute.Int("retrieval.top_k", topK),
			attribute.Int("retrieval.store_size", m.store.Len()),
		),
	)
	defer span.End()

	start := time.Now()
	hits := TopK(query, m.store.Segments(), topK)
	metrics.RetrievalDuration.WithLabelValues("memory").Observe(time.Since(start).Seconds())

	return hits, nil
}
