// Package ollama 封装对 Ollama 兼容接口的嵌入与流式生成调用
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"lecture-rag-api/internal/config"
	apperrors "lecture-rag-api/pkg/errors"
	"lecture-rag-api/pkg/logger"
	"lecture-rag-api/pkg/metrics"
	"lecture-rag-api/pkg/tracer"
)

// Client Ollama HTTP 客户端
// 嵌入请求有整体超时;生成请求只限制到响应头返回,流本身可以长时间产出
type Client struct {
	baseURL       string
	embedModel    string
	generateModel string
	embedClient   *http.Client
	genClient     *http.Client
}

// NewClient 创建客户端
func NewClient(cfg config.OllamaConfig) *Client {
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		embedModel:    cfg.EmbedModel,
		generateModel: cfg.GenerateModel,
		embedClient: &http.Client{
			Timeout: cfg.EmbedTimeout,
		},
		genClient: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: cfg.GenerateTimeout,
			},
		},
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed 批量嵌入,每个输入文本对应一个向量,顺序一致
// 服务不可达、超时或非 2xx 返回 ServiceUnavailable 类错误,调用方不得用默认向量继续
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, span := tracer.Start(ctx, "ollama.embed",
		trace.WithAttributes(
			attribute.String("ollama.model", c.embedModel),
			attribute.Int("ollama.input_count", len(texts)),
		),
	)
	defer span.End()

	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embedRequest{Model: c.embedModel, Input: texts})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternalError, "encode embed request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternalError, "build embed request")
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.embedClient.Do(req)
	if err != nil {
		metrics.EmbedCallTotal.WithLabelValues("error").Inc()
		return nil, apperrors.Wrap(err, apperrors.CodeEmbeddingUnavailable, "call embedding service")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.EmbedCallTotal.WithLabelValues("error").Inc()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, apperrors.New(apperrors.CodeEmbeddingUnavailable,
			fmt.Sprintf("embedding service returned %d", resp.StatusCode)).
			WithDetail(string(raw))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.EmbedCallTotal.WithLabelValues("error").Inc()
		return nil, apperrors.Wrap(err, apperrors.CodeEmbeddingUnavailable, "decode embed response")
	}
	if len(out.Embeddings) != len(texts) {
		metrics.EmbedCallTotal.WithLabelValues("error").Inc()
		return nil, apperrors.New(apperrors.CodeEmbeddingUnavailable,
			fmt.Sprintf("embedding service returned %d vectors for %d inputs", len(out.Embeddings), len(texts)))
	}

	metrics.EmbedCallTotal.WithLabelValues("ok").Inc()
	metrics.EmbedCallDuration.WithLabelValues(c.embedModel).Observe(time.Since(start).Seconds())
	return out.Embeddings, nil
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// generateFrame NDJSON 流的单帧
type generateFrame struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Stream 发起流式生成,按 NDJSON 帧解析并经通道产出文本片段
//
// 连接失败或非 2xx 在返回前报错,此时还没有任何片段。无法解析的帧直接跳过
// 并计数,不中断流。done:true、EOF 或读取错误都结束流并关闭通道;中途结束
// 时调用方拿到已产出的部分,流不可重启。
func (c *Client) Stream(ctx context.Context, prompt string) (<-chan string, error) {
	ctx, span := tracer.Start(ctx, "ollama.generate",
		trace.WithAttributes(attribute.String("ollama.model", c.generateModel)),
	)

	body, err := json.Marshal(generateRequest{Model: c.generateModel, Prompt: prompt, Stream: true})
	if err != nil {
		span.End()
		return nil, apperrors.Wrap(err, apperrors.CodeInternalError, "encode generate request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		span.End()
		return nil, apperrors.Wrap(err, apperrors.CodeInternalError, "build generate request")
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.genClient.Do(req)
	if err != nil {
		span.End()
		metrics.GenerateCallTotal.WithLabelValues("error").Inc()
		return nil, apperrors.Wrap(err, apperrors.CodeGenerationFailed, "call generation service")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		span.End()
		metrics.GenerateCallTotal.WithLabelValues("error").Inc()
		return nil, apperrors.New(apperrors.CodeGenerationFailed,
			fmt.Sprintf("generation service returned %d", resp.StatusCode)).
			WithDetail(string(raw))
	}

	metrics.GenerateCallTotal.WithLabelValues("ok").Inc()

	ch := make(chan string)
	go func() {
		defer close(ch)
		defer resp.Body.Close()
		defer span.End()

		first := true
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			var frame generateFrame
			if err := json.Unmarshal(line, &frame); err != nil {
				metrics.GenerateFramesSkipped.Inc()
				logger.Debug(ctx, "skipped malformed stream frame", "len", len(line))
				continue
			}

			if frame.Response != "" {
				if first {
					metrics.GenerateFirstChunkDuration.WithLabelValues(c.generateModel).
						Observe(time.Since(start).Seconds())
					first = false
				}
				select {
				case ch <- frame.Response:
				case <-ctx.Done():
					return
				}
			}
			if frame.Done {
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			// 流中途断开:已产出的片段保留,调用方自行判断完整性
			logger.Warn(ctx, "generation stream ended abnormally", "error", err.Error())
		}
	}()

	return ch, nil
}

// Ping 探活,就绪检查用
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/version", nil)
	if err != nil {
		return err
	}
	resp, err := c.embedClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned %d", resp.StatusCode)
	}
	return nil
}
