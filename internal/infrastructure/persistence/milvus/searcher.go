package milvus

import (
	"context"
	"time"

	milvusentity "github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"lecture-rag-api/internal/application/retrieval"
	"lecture-rag-api/internal/config"
	"lecture-rag-api/internal/domain/entity"
	apperrors "lecture-rag-api/pkg/errors"
	"lecture-rag-api/pkg/metrics"
)

// 字幕片段集合的字段定义
const (
	collectionSegments = "subtitle_segments"

	fieldID        = "id"
	fieldNumber    = "number"
	fieldTitle     = "title"
	fieldStart     = "start"
	fieldText      = "text"
	fieldEmbedding = "embedding"

	maxTitleLength = 512
	maxTextLength  = 8192
)

// Searcher 把嵌入库同步进 Milvus 并用 HNSW/COSINE 做近似检索
// 大规模嵌入库时替代进程内全量扫描,实现 retrieval.Searcher
type Searcher struct {
	client *Client
	cfg    *config.MilvusConfig
}

// NewSearcher 创建 Milvus 检索器
func NewSearcher(client *Client, cfg *config.MilvusConfig) *Searcher {
	return &Searcher{client: client, cfg: cfg}
}

// Sync 确保集合存在并已灌入嵌入库内容
// 集合已存在时视为之前同步过,直接加载;库内容变化需先删除集合再同步
func (s *Searcher) Sync(ctx context.Context, segments []entity.SubtitleSegment) error {
	ctx, span := tracer.Start(ctx, "milvus.Sync",
		trace.WithAttributes(attribute.Int("milvus.segments", len(segments))))
	defer span.End()

	if len(segments) == 0 {
		return apperrors.New(apperrors.CodeVectorDBError, "no segments to sync")
	}
	dim := len(segments[0].Embedding)

	has, err := s.client.HasCollection(ctx, collectionSegments)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeVectorDBError, "check collection")
	}
	if !has {
		if err := s.createCollection(ctx, dim); err != nil {
			return err
		}
		if err := s.insert(ctx, segments, dim); err != nil {
			return err
		}
	}

	if err := s.client.LoadCollection(ctx, collectionSegments); err != nil {
		return apperrors.Wrap(err, apperrors.CodeVectorDBError, "load collection")
	}
	return nil
}

// createCollection 建集合并建 HNSW/COSINE 索引
func (s *Searcher) createCollection(ctx context.Context, dim int) error {
	name := s.client.CollectionName(collectionSegments)

	schema := milvusentity.NewSchema().
		WithName(name).
		WithDescription("lecture subtitle segments with embeddings").
		WithField(milvusentity.NewField().
			WithName(fieldID).
			WithDataType(milvusentity.FieldTypeInt64).
			WithIsPrimaryKey(true).
			WithIsAutoID(true)).
		WithField(milvusentity.NewField().
			WithName(fieldNumber).
			WithDataType(milvusentity.FieldTypeInt64)).
		WithField(milvusentity.NewField().
			WithName(fieldTitle).
			WithDataType(milvusentity.FieldTypeVarChar).
			WithMaxLength(maxTitleLength)).
		WithField(milvusentity.NewField().
			WithName(fieldStart).
			WithDataType(milvusentity.FieldTypeDouble)).
		WithField(milvusentity.NewField().
			WithName(fieldText).
			WithDataType(milvusentity.FieldTypeVarChar).
			WithMaxLength(maxTextLength)).
		WithField(milvusentity.NewField().
			WithName(fieldEmbedding).
			WithDataType(milvusentity.FieldTypeFloatVector).
			WithDim(int64(dim)))

	if err := s.client.Milvus().CreateCollection(ctx, schema, 1); err != nil {
		return apperrors.Wrap(err, apperrors.CodeVectorDBError, "create collection")
	}

	hnswM := s.cfg.HNSWM
	if hnswM <= 0 {
		hnswM = 16
	}
	efConstruction := s.cfg.HNSWEfConstruction
	if efConstruction <= 0 {
		efConstruction = 200
	}
	idx, err := milvusentity.NewIndexHNSW(milvusentity.COSINE, hnswM, efConstruction)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeVectorDBError, "build index definition")
	}
	if err := s.client.Milvus().CreateIndex(ctx, name, fieldEmbedding, idx, false); err != nil {
		return apperrors.Wrap(err, apperrors.CodeVectorDBError, "create index")
	}
	return nil
}

// insert 批量写入片段并 flush
func (s *Searcher) insert(ctx context.Context, segments []entity.SubtitleSegment, dim int) error {
	name := s.client.CollectionName(collectionSegments)

	numbers := make([]int64, 0, len(segments))
	titles := make([]string, 0, len(segments))
	starts := make([]float64, 0, len(segments))
	texts := make([]string, 0, len(segments))
	vectors := make([][]float32, 0, len(segments))
	for _, seg := range segments {
		numbers = append(numbers, int64(seg.Number))
		titles = append(titles, seg.Title)
		starts = append(starts, seg.Start)
		texts = append(texts, seg.Text)
		vectors = append(vectors, seg.Embedding)
	}

	_, err := s.client.Milvus().Insert(ctx, name, "",
		milvusentity.NewColumnInt64(fieldNumber, numbers),
		milvusentity.NewColumnVarChar(fieldTitle, titles),
		milvusentity.NewColumnDouble(fieldStart, starts),
		milvusentity.NewColumnVarChar(fieldText, texts),
		milvusentity.NewColumnFloatVector(fieldEmbedding, dim, vectors),
	)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeVectorDBError, "insert segments")
	}

	if err := s.client.Milvus().Flush(ctx, name, false); err != nil {
		return apperrors.Wrap(err, apperrors.CodeVectorDBError, "flush collection")
	}
	return nil
}

// Search 实现 retrieval.Searcher,COSINE 度量下分数即相似度,结果已按相似度降序
func (s *Searcher) Search(ctx context.Context, query []float32, topK int) ([]retrieval.Hit, error) {
	ctx, span := tracer.Start(ctx, "milvus.Search",
		trace.WithAttributes(attribute.Int("milvus.top_k", topK)))
	defer span.End()

	if topK <= 0 {
		topK = retrieval.DefaultTopK
	}

	sp, err := milvusentity.NewIndexHNSWSearchParam(64)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeVectorDBError, "build search param")
	}

	start := time.Now()
	results, err := s.client.Milvus().Search(ctx,
		s.client.CollectionName(collectionSegments),
		nil, "",
		[]string{fieldNumber, fieldTitle, fieldStart, fieldText},
		[]milvusentity.Vector{milvusentity.FloatVector(query)},
		fieldEmbedding,
		milvusentity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeVectorDBError, "search segments")
	}
	metrics.RetrievalDuration.WithLabelValues("milvus").Observe(time.Since(start).Seconds())

	// 解析结果
	var hits []retrieval.Hit
	for _, result := range results {
		for i := 0; i < result.ResultCount; i++ {
			hit := retrieval.Hit{
				Score: float64(result.Scores[i]),
			}

			// 提取字段值
			if numberCol, ok := result.Fields.GetColumn(fieldNumber).(*milvusentity.ColumnInt64); ok {
				hit.Segment.Number = int(numberCol.Data()[i])
			}
			if titleCol, ok := result.Fields.GetColumn(fieldTitle).(*milvusentity.ColumnVarChar); ok {
				hit.Segment.Title = titleCol.Data()[i]
			}
			if startCol, ok := result.Fields.GetColumn(fieldStart).(*milvusentity.ColumnDouble); ok {
				hit.Segment.Start = startCol.Data()[i]
			}
			if textCol, ok := result.Fields.GetColumn(fieldText).(*milvusentity.ColumnVarChar); ok {
				hit.Segment.Text = textCol.Data()[i]
			}

			hits = append(hits, hit)
		}
	}
	return hits, nil
}
