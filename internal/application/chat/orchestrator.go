package chat

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"lecture-rag-api/internal/application/retrieval"
	"lecture-rag-api/internal/domain/entity"
	apperrors "lecture-rag-api/pkg/errors"
	"lecture-rag-api/pkg/logger"
	"lecture-rag-api/pkg/metrics"
	"lecture-rag-api/pkg/tracer"
)

// 服务故障时写入历史的错误轮文案
const (
	embedErrorMessage    = "Error: could not reach the embedding service. Please try again later."
	retrieveErrorMessage = "Error: could not search the lecture store. Please try again later."
	generateErrorMessage = "Error: could not reach the generation service. Please try again later."
)

// Orchestrator 按 嵌入 → 检索 → 提示词 → 流式生成 → 后处理 的顺序驱动一轮对话
type Orchestrator struct {
	embedder Embedder
	searcher retrieval.Searcher
	gen      Generator
	cache    EmbedCache // 可为 nil
	topK     int
}

// NewOrchestrator 创建对话编排器,cache 传 nil 表示不启用查询嵌入缓存
func NewOrchestrator(embedder Embedder, searcher retrieval.Searcher, gen Generator, cache EmbedCache, topK int) *Orchestrator {
	if topK <= 0 {
		topK = retrieval.DefaultTopK
	}
	return &Orchestrator{
		embedder: embedder,
		searcher: searcher,
		gen:      gen,
		cache:    cache,
		topK:     topK,
	}
}

// HandleTurn 执行一轮对话。调用方必须已通过 Session.BeginTurn 占用会话。
//
// 嵌入或检索失败时不调用生成;任何服务故障都会向历史追加一条错误轮并连同
// AppError 返回,会话本身保持可用。ctx 取消(客户端断开)时丢弃未完成的
// 助手轮,不追加任何内容,返回 ctx 的错误。
func (o *Orchestrator) HandleTurn(ctx context.Context, sess *Session, query string, onChunk func(string)) (*entity.ChatTurn, error) {
	ctx, span := tracer.Start(ctx, "chat.handle_turn",
		trace.WithAttributes(attribute.String("chat.session_id", sess.ID)),
	)
	defer span.End()

	ctx = logger.WithContext(ctx, logger.SessionIDKey, sess.ID)
	turnStart := time.Now()

	sess.AppendTurn(entity.NewChatTurn(sess.ID, entity.RoleUser, query, ""))

	// 1. 查询嵌入
	queryVec, err := o.embedQuery(ctx, query)
	if err != nil {
		logger.Error(ctx, "embed query failed", err)
		return o.failTurn(sess, "embedding_error", embedErrorMessage, turnStart,
			apperrors.AsAppError(err))
	}

	// 2. 检索
	hits, err := o.searcher.Search(ctx, queryVec, o.topK)
	if err != nil {
		logger.Error(ctx, "retrieval failed", err)
		return o.failTurn(sess, "retrieval_error", retrieveErrorMessage, turnStart,
			apperrors.Wrap(err, apperrors.CodeRetrievalFailed, "search subtitle segments"))
	}

	// 3+4. 提示词与流式生成
	prompt := BuildPrompt(query, hits)
	chunks, err := o.gen.Stream(ctx, prompt)
	if err != nil {
		logger.Error(ctx, "open generation stream failed", err)
		return o.failTurn(sess, "generation_error", generateErrorMessage, turnStart,
			apperrors.AsAppError(err))
	}

	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	var full strings.Builder
	for chunk := range chunks {
		full.WriteString(chunk)
		if onChunk != nil {
			onChunk(chunk)
		}
	}

	// 客户端断开:丢弃部分输出,不追加助手轮
	if ctx.Err() != nil {
		metrics.ChatTurnsTotal.WithLabelValues("cancelled").Inc()
		metrics.ChatTurnDuration.WithLabelValues("cancelled").Observe(time.Since(turnStart).Seconds())
		logger.Info(ctx, "turn cancelled, partial output discarded")
		return nil, ctx.Err()
	}

	// 一个片段都没产出,视为生成失败而非空回答
	if full.Len() == 0 {
		logger.Error(ctx, "generation stream produced no chunks", nil)
		return o.failTurn(sess, "generation_error", generateErrorMessage, turnStart,
			apperrors.ErrGenerationFailed)
	}

	// 5. 后处理
	answer, citation := Process(full.String())
	turn := entity.NewChatTurn(sess.ID, entity.RoleAssistant, answer, citation)
	sess.AppendTurn(turn)

	metrics.ChatTurnsTotal.WithLabelValues("ok").Inc()
	metrics.ChatTurnDuration.WithLabelValues("ok").Observe(time.Since(turnStart).Seconds())
	logger.Info(ctx, "turn completed",
		"turn_id", turn.ID,
		"hits", len(hits),
		"answer_len", len(answer),
	)
	return turn, nil
}

// embedQuery 取查询向量,启用缓存时经由缓存回源
func (o *Orchestrator) embedQuery(ctx context.Context, query string) ([]float32, error) {
	compute := func() ([]float32, error) {
		vecs, err := o.embedder.Embed(ctx, []string{query})
		if err != nil {
			return nil, err
		}
		if len(vecs) != 1 {
			return nil, apperrors.New(apperrors.CodeEmbeddingUnavailable,
				"embedding service returned wrong vector count")
		}
		return vecs[0], nil
	}
	if o.cache == nil {
		metrics.EmbedCacheHits.WithLabelValues("bypass").Inc()
		return compute()
	}
	return o.cache.GetOrCompute(ctx, query, compute)
}

// failTurn 记录失败指标并向历史追加错误轮,错误轮与 AppError 一起返回
func (o *Orchestrator) failTurn(sess *Session, status, message string, start time.Time, appErr *apperrors.AppError) (*entity.ChatTurn, error) {
	metrics.ChatTurnsTotal.WithLabelValues(status).Inc()
	metrics.ChatTurnDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	turn := entity.NewChatTurn(sess.ID, entity.RoleAssistant, message, UncitedCitation)
	sess.AppendTurn(turn)
	return turn, appErr
}
