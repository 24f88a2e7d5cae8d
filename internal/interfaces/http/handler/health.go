package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"lecture-rag-api/internal/infrastructure/ollama"
	"lecture-rag-api/internal/infrastructure/persistence/milvus"
	"lecture-rag-api/internal/infrastructure/persistence/redis"
	"lecture-rag-api/internal/infrastructure/store"
)

// HealthHandler 健康检查处理器
// 嵌入库和 Ollama 是必需依赖;Redis 与 Milvus 可选,故障只标记 degraded
type HealthHandler struct {
	store  *store.Store
	ollama *ollama.Client
	redis  *redis.Client
	milvus *milvus.Client
}

// NewHealthHandler 创建健康检查处理器,redis/milvus 可为 nil
func NewHealthHandler(s *store.Store, ollamaClient *ollama.Client, redisClient *redis.Client, milvusClient *milvus.Client) *HealthHandler {
	return &HealthHandler{
		store:  s,
		ollama: ollamaClient,
		redis:  redisClient,
		milvus: milvusClient,
	}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

type readinessCheck struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
	Segments  int    `json:"segments,omitempty"`
}

type readinessResponse struct {
	Status string                     `json:"status"`
	Checks map[string]*readinessCheck `json:"checks,omitempty"`
}

// Health 健康检查接口
// @Summary 健康检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
	})
}

// Ready 就绪检查接口
// @Summary 就绪检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]*readinessCheck{
		"store":  {Status: "unknown"},
		"ollama": {Status: "unknown"},
	}

	ready := true

	// 嵌入库（必需，启动即加载）
	if h.store == nil {
		checks["store"].Status = "missing"
		checks["store"].Error = "embedding store not loaded"
		ready = false
	} else {
		checks["store"].Status = "ok"
		checks["store"].Segments = h.store.Len()
	}

	// Ollama（必需）
	if h.ollama == nil {
		checks["ollama"].Status = "missing"
		checks["ollama"].Error = "ollama client not configured"
		ready = false
	} else {
		start := time.Now()
		err := h.ollama.Ping(ctx)
		checks["ollama"].LatencyMs = time.Since(start).Milliseconds()
		if err != nil {
			checks["ollama"].Status = "error"
			checks["ollama"].Error = err.Error()
			ready = false
		} else {
			checks["ollama"].Status = "ok"
		}
	}

	// Redis（可选，不影响就绪态）
	if h.redis != nil {
		checks["redis"] = &readinessCheck{Status: "unknown"}
		start := time.Now()
		err := h.redis.Ping(ctx)
		checks["redis"].LatencyMs = time.Since(start).Milliseconds()
		if err != nil {
			checks["redis"].Status = "degraded"
			checks["redis"].Error = err.Error()
		} else {
			checks["redis"].Status = "ok"
		}
	}

	// Milvus（可选，不影响就绪态）
	if h.milvus != nil {
		checks["milvus"] = &readinessCheck{Status: "unknown"}
		start := time.Now()
		err := h.milvus.HealthCheck(ctx)
		checks["milvus"].LatencyMs = time.Since(start).Milliseconds()
		if err != nil {
			checks["milvus"].Status = "degraded"
			checks["milvus"].Error = err.Error()
		} else {
			checks["milvus"].Status = "ok"
		}
	}

	resp := readinessResponse{
		Status: "ok",
		Checks: checks,
	}
	if !ready {
		resp.Status = "not_ready"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Live 存活检查接口
// @Summary 存活检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /live [get]
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
	})
}
