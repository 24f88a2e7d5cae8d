package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lecture-rag-api/internal/application/retrieval"
	"lecture-rag-api/internal/domain/entity"
	apperrors "lecture-rag-api/pkg/errors"
)

type fakeEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

type fakeSearcher struct {
	hits  []retrieval.Hit
	err   error
	calls int
}

func (f *fakeSearcher) Search(ctx context.Context, query []float32, topK int) ([]retrieval.Hit, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

// funcGenerator 用闭包脚本化流式生成行为
type funcGenerator func(ctx context.Context, prompt string) (<-chan string, error)

func (f funcGenerator) Stream(ctx context.Context, prompt string) (<-chan string, error) {
	return f(ctx, prompt)
}

func chunksGenerator(chunks ...string) funcGenerator {
	return func(ctx context.Context, prompt string) (<-chan string, error) {
		ch := make(chan string)
		go func() {
			defer close(ch)
			for _, c := range chunks {
				select {
				case ch <- c:
				case <-ctx.Done():
					return
				}
			}
		}()
		return ch, nil
	}
}

func newTestOrchestrator(e Embedder, s retrieval.Searcher, g Generator) *Orchestrator {
	return NewOrchestrator(e, s, g, nil, 5)
}

func TestHandleTurn_Success(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{1, 0}}
	searcher := &fakeSearcher{hits: []retrieval.Hit{
		{Segment: entity.SubtitleSegment{Number: 2, Title: "Lecture 2", Start: 50.08, Text: "some fact"}, Score: 0.9},
	}}
	gen := chunksGenerator("The answer", " is here. [Lecture 2, 50.08]")

	o := newTestOrchestrator(embedder, searcher, gen)
	sess := NewSessionManager().Create()

	var streamed []string
	turn, err := o.HandleTurn(context.Background(), sess, "where is it?", func(chunk string) {
		streamed = append(streamed, chunk)
	})
	require.NoError(t, err)
	require.NotNil(t, turn)

	assert.Equal(t, []string{"The answer", " is here. [Lecture 2, 50.08]"}, streamed)
	assert.Equal(t, entity.RoleAssistant, turn.Role)
	assert.Equal(t, "The answer is here.", turn.Content)
	assert.Equal(t, "Source: Lecture 2 | Time: 00:50 (50.08s)", turn.Citation)

	turns := sess.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, entity.RoleUser, turns[0].Role)
	assert.Equal(t, "where is it?", turns[0].Content)
	assert.Same(t, turn, turns[1])
}

func TestHandleTurn_EmbeddingFailureSkipsGeneration(t *testing.T) {
	embedder := &fakeEmbedder{err: apperrors.ErrEmbeddingUnavailable}
	searcher := &fakeSearcher{}
	genCalled := false
	gen := funcGenerator(func(ctx context.Context, prompt string) (<-chan string, error) {
		genCalled = true
		return nil, nil
	})

	o := newTestOrchestrator(embedder, searcher, gen)
	sess := NewSessionManager().Create()

	turn, err := o.HandleTurn(context.Background(), sess, "q", nil)
	require.Error(t, err)
	require.NotNil(t, turn)

	assert.Equal(t, apperrors.CodeEmbeddingUnavailable, apperrors.AsAppError(err).Code)
	assert.False(t, genCalled)
	assert.Zero(t, searcher.calls)

	// 错误轮已入历史,会话保持可用
	turns := sess.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, embedErrorMessage, turns[1].Content)
	assert.Equal(t, UncitedCitation, turns[1].Citation)

	release, err := sess.BeginTurn()
	require.NoError(t, err)
	release()
}

func TestHandleTurn_RetrievalFailure(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{1}}
	searcher := &fakeSearcher{err: errors.New("collection not loaded")}
	gen := chunksGenerator("unused")

	o := newTestOrchestrator(embedder, searcher, gen)
	sess := NewSessionManager().Create()

	turn, err := o.HandleTurn(context.Background(), sess, "q", nil)
	require.Error(t, err)
	require.NotNil(t, turn)

	assert.Equal(t, apperrors.CodeRetrievalFailed, apperrors.AsAppError(err).Code)
	assert.Equal(t, retrieveErrorMessage, turn.Content)
}

func TestHandleTurn_GenerationConnectFailure(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{1}}
	searcher := &fakeSearcher{}
	gen := funcGenerator(func(ctx context.Context, prompt string) (<-chan string, error) {
		return nil, apperrors.ErrGenerationFailed
	})

	o := newTestOrchestrator(embedder, searcher, gen)
	sess := NewSessionManager().Create()

	turn, err := o.HandleTurn(context.Background(), sess, "q", nil)
	require.Error(t, err)
	require.NotNil(t, turn)

	assert.Equal(t, apperrors.CodeGenerationFailed, apperrors.AsAppError(err).Code)
	assert.Equal(t, generateErrorMessage, turn.Content)
}

func TestHandleTurn_EmptyStreamIsGenerationFailure(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{1}}
	gen := chunksGenerator() // 一个片段都不产出

	o := newTestOrchestrator(embedder, &fakeSearcher{}, gen)
	sess := NewSessionManager().Create()

	turn, err := o.HandleTurn(context.Background(), sess, "q", nil)
	require.Error(t, err)
	require.NotNil(t, turn)
	assert.Equal(t, apperrors.CodeGenerationFailed, apperrors.AsAppError(err).Code)
}

func TestHandleTurn_CancelDiscardsPartialTurn(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{1}}
	gen := funcGenerator(func(ctx context.Context, prompt string) (<-chan string, error) {
		ch := make(chan string)
		go func() {
			defer close(ch)
			select {
			case ch <- "partial":
			case <-ctx.Done():
				return
			}
			<-ctx.Done()
		}()
		return ch, nil
	})

	o := newTestOrchestrator(embedder, &fakeSearcher{}, gen)
	sess := NewSessionManager().Create()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	turn, err := o.HandleTurn(ctx, sess, "q", func(chunk string) {
		cancel() // 客户端在第一个片段后断开
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, turn)

	// 只有用户轮,未完成的助手轮被丢弃
	turns := sess.Turns()
	require.Len(t, turns, 1)
	assert.Equal(t, entity.RoleUser, turns[0].Role)
}

func TestHandleTurn_UsesEmbedCache(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{1}}
	cached := []float32{9, 9}
	cache := cacheFunc(func(ctx context.Context, text string, compute func() ([]float32, error)) ([]float32, error) {
		return cached, nil
	})
	gen := chunksGenerator("answer without citation")

	o := NewOrchestrator(embedder, &fakeSearcher{}, gen, cache, 5)
	sess := NewSessionManager().Create()

	turn, err := o.HandleTurn(context.Background(), sess, "q", nil)
	require.NoError(t, err)

	assert.Zero(t, embedder.calls, "cached vector should shortcut the embedder")
	assert.Equal(t, "answer without citation", turn.Content)
	assert.Equal(t, UncitedCitation, turn.Citation)
}

type cacheFunc func(ctx context.Context, text string, compute func() ([]float32, error)) ([]float32, error)

func (f cacheFunc) GetOrCompute(ctx context.Context, text string, compute func() ([]float32, error)) ([]float32, error) {
	return f(ctx, text, compute)
}

func TestHandleTurn_TimeoutBudget(t *testing.T) {
	// 生成超时由 ctx 传导,编排器不自带额外定时器
	embedder := &fakeEmbedder{vec: []float32{1}}
	gen := chunksGenerator("fast")

	o := newTestOrchestrator(embedder, &fakeSearcher{}, gen)
	sess := NewSessionManager().Create()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	turn, err := o.HandleTurn(ctx, sess, "q", nil)
	require.NoError(t, err)
	assert.Equal(t, "fast", turn.Content)
}
