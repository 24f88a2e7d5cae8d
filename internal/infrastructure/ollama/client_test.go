package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lecture-rag-api/internal/config"
	apperrors "lecture-rag-api/pkg/errors"
)

func testConfig(baseURL string) config.OllamaConfig {
	return config.OllamaConfig{
		BaseURL:         baseURL,
		EmbedModel:      "test-embed",
		GenerateModel:   "test-generate",
		EmbedTimeout:    2 * time.Second,
		GenerateTimeout: 2 * time.Second,
	}
}

func TestEmbed_Success(t *testing.T) {
	var gotReq embedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/embed", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		_ = json.NewEncoder(w).Encode(embedResponse{
			Embeddings: [][]float32{{0.1, 0.2, 0.3}, {0.4, 0.5, 0.6}},
		})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	vecs, err := c.Embed(context.Background(), []string{"hello", "world"})
	require.NoError(t, err)

	assert.Equal(t, "test-embed", gotReq.Model)
	assert.Equal(t, []string{"hello", "world"}, gotReq.Input)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vecs[0])
	assert.Equal(t, []float32{0.4, 0.5, 0.6}, vecs[1])
}

func TestEmbed_Non2xxIsServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	_, err := c.Embed(context.Background(), []string{"hello"})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeEmbeddingUnavailable, apperrors.AsAppError(err).Code)
}

func TestEmbed_Unreachable(t *testing.T) {
	c := NewClient(testConfig("http://127.0.0.1:1"))
	_, err := c.Embed(context.Background(), []string{"hello"})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeEmbeddingUnavailable, apperrors.AsAppError(err).Code)
}

func TestEmbed_VectorCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{1}}})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	_, err := c.Embed(context.Background(), []string{"a", "b"})
	require.Error(t, err)
}

func TestEmbed_EmptyInput(t *testing.T) {
	c := NewClient(testConfig("http://127.0.0.1:1"))
	vecs, err := c.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func collectStream(t *testing.T, ch <-chan string) []string {
	t.Helper()
	var out []string
	for chunk := range ch {
		out = append(out, chunk)
	}
	return out
}

func TestStream_ParsesNDJSONFrames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-generate", req.Model)
		assert.True(t, req.Stream)

		flusher := w.(http.Flusher)
		for _, line := range []string{
			`{"response":"Hello","done":false}`,
			`{"response":" world","done":false}`,
			`{"response":"","done":true}`,
			`{"response":"after done, must be ignored","done":false}`,
		} {
			_, _ = w.Write([]byte(line + "\n"))
			flusher.Flush()
		}
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	ch, err := c.Stream(context.Background(), "prompt")
	require.NoError(t, err)

	assert.Equal(t, []string{"Hello", " world"}, collectStream(t, ch))
}

func TestStream_SkipsMalformedFrames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for _, line := range []string{
			`{"response":"good","done":false}`,
			`{not json at all`,
			``,
			`{"response":" frames","done":false}`,
			`{"response":"","done":true}`,
		} {
			_, _ = w.Write([]byte(line + "\n"))
			flusher.Flush()
		}
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	ch, err := c.Stream(context.Background(), "prompt")
	require.NoError(t, err)

	// 坏帧被静默跳过,好帧全部到达
	assert.Equal(t, []string{"good", " frames"}, collectStream(t, ch))
}

func TestStream_EOFWithoutDoneEndsEarly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		_, _ = w.Write([]byte(`{"response":"partial","done":false}` + "\n"))
		flusher.Flush()
		// 连接直接结束,没有 done:true
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	ch, err := c.Stream(context.Background(), "prompt")
	require.NoError(t, err)

	assert.Equal(t, []string{"partial"}, collectStream(t, ch))
}

func TestStream_Non2xxFailsBeforeFirstChunk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	_, err := c.Stream(context.Background(), "prompt")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeGenerationFailed, apperrors.AsAppError(err).Code)
}

func TestStream_ContextCancelStopsStream(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		_, _ = w.Write([]byte(`{"response":"first","done":false}` + "\n"))
		flusher.Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	c := NewClient(testConfig(srv.URL))
	ch, err := c.Stream(ctx, "prompt")
	require.NoError(t, err)

	first := <-ch
	assert.Equal(t, "first", first)
	cancel()

	// 取消后通道在有限时间内关闭
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream channel not closed after cancel")
		}
	}
}
