// Package metrics 提供 Prometheus 指标采集功能
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "lecture_rag"
)

var (
	// HTTP 请求指标
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// 业务指标 - 对话轮次
	ChatTurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Total number of chat turns",
		},
		[]string{"status"}, // ok / embedding_error / generation_error / cancelled
	)

	ChatTurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "turn_duration_seconds",
			Help:      "End-to-end chat turn duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"status"},
	)

	ActiveStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "active_streams",
			Help:      "Current number of in-flight generation streams",
		},
	)

	// 检索指标
	RetrievalDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Retrieval duration in seconds",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1},
		},
		[]string{"backend"}, // memory / milvus
	)

	// Ollama 调用指标
	EmbedCallTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ollama",
			Name:      "embed_total",
			Help:      "Total number of embedding calls",
		},
		[]string{"status"},
	)

	EmbedCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ollama",
			Name:      "embed_duration_seconds",
			Help:      "Embedding call duration in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"model"},
	)

	GenerateCallTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ollama",
			Name:      "generate_total",
			Help:      "Total number of generation calls",
		},
		[]string{"status"},
	)

	GenerateFirstChunkDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ollama",
			Name:      "generate_first_chunk_seconds",
			Help:      "Time to first generation chunk in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"model"},
	)

	// 无法解析而被跳过的流式帧计数。上游偶发输出坏帧，跳帧是既定的恢复策略，
	// 此计数器让丢帧率可观测。
	GenerateFramesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ollama",
			Name:      "generate_frames_skipped_total",
			Help:      "Total number of malformed stream frames skipped",
		},
	)

	// 嵌入缓存指标
	EmbedCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "embed_requests_total",
			Help:      "Query embedding cache lookups",
		},
		[]string{"result"}, // hit / miss / bypass
	)
)
