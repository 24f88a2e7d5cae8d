// Package main 讲座字幕 RAG 对话服务入口
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"lecture-rag-api/internal/application/chat"
	"lecture-rag-api/internal/application/retrieval"
	"lecture-rag-api/internal/config"
	"lecture-rag-api/internal/infrastructure/ollama"
	"lecture-rag-api/internal/infrastructure/persistence/milvus"
	redisinfra "lecture-rag-api/internal/infrastructure/persistence/redis"
	"lecture-rag-api/internal/infrastructure/store"
	"lecture-rag-api/internal/interfaces/http/handler"
	"lecture-rag-api/internal/interfaces/http/middleware"
	"lecture-rag-api/internal/interfaces/http/router"
	"lecture-rag-api/pkg/logger"
	"lecture-rag-api/pkg/tracer"
)

// Version 版本信息，构建时注入
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件（如果存在）
	_ = godotenv.Load()

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger.Init(
		cfg.Observability.Logging.Level,
		cfg.Observability.Logging.Format,
	)

	ctx := context.Background()
	log := logger.FromContext(ctx)
	log.Info("starting chat-svc",
		"version", Version,
		"build_time", BuildTime,
		"env", cfg.App.Env,
	)

	// 初始化追踪
	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: cfg.App.Name,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		log.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			log.Error("failed to shutdown tracer", "error", err)
		}
	}()

	// 加载字幕嵌入库,资产缺失直接退出,绝不带着空库提供服务
	embStore, err := store.Load(cfg.Store.Path)
	if err != nil {
		logger.Fatal(ctx, "failed to load embedding store", err, "path", cfg.Store.Path)
	}
	log.Info("embedding store loaded",
		"path", cfg.Store.Path,
		"segments", embStore.Len(),
		"dimension", embStore.Dimension(),
	)

	ollamaClient := ollama.NewClient(cfg.Ollama)

	// Redis 可选:限流与嵌入缓存,连不上降级运行
	var (
		redisClient *redisinfra.Client
		limiter     middleware.RateLimiter
		embedCache  chat.EmbedCache
	)
	if cfg.Cache.Enabled {
		redisClient, err = redisinfra.NewClient(&cfg.Cache.Redis)
		if err != nil {
			log.Warn("redis unavailable, rate limit and embed cache disabled", "error", err)
		} else {
			defer func() { _ = redisClient.Close() }()
			limiter = redisinfra.NewRateLimiter(redisClient)
			embedCache = redisinfra.NewEmbedCache(redisClient, cfg.Ollama.EmbedModel, cfg.Chat.EmbedCacheTTL)
		}
	}

	// 检索后端:默认进程内余弦扫描,配置 milvus 时换近似检索
	var (
		searcher     retrieval.Searcher
		milvusClient *milvus.Client
	)
	switch cfg.Vector.Backend {
	case "milvus":
		milvusClient, err = milvus.NewClient(ctx, &cfg.Vector.Milvus)
		if err != nil {
			logger.Fatal(ctx, "failed to init milvus", err)
		}
		defer func() { _ = milvusClient.Close() }()

		milvusSearcher := milvus.NewSearcher(milvusClient, &cfg.Vector.Milvus)
		if err := milvusSearcher.Sync(ctx, embStore.Segments()); err != nil {
			logger.Fatal(ctx, "failed to sync embedding store into milvus", err)
		}
		searcher = milvusSearcher
	default:
		searcher = retrieval.NewMemorySearcher(embStore)
	}
	log.Info("retrieval backend ready", "backend", cfg.Vector.Backend)

	// 组装对话管线
	sessions := chat.NewSessionManager()
	orchestrator := chat.NewOrchestrator(ollamaClient, searcher, ollamaClient, embedCache, cfg.Chat.TopK)

	handlers := router.Handlers{
		Health:    handler.NewHealthHandler(embStore, ollamaClient, redisClient, milvusClient),
		Session:   handler.NewSessionHandler(sessions),
		Chat:      handler.NewChatHandler(sessions, orchestrator),
		Retrieval: handler.NewRetrievalHandler(ollamaClient, searcher),
	}
	r := router.New(cfg, handlers, limiter)

	// 创建 HTTP 服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.HTTP.Host, cfg.Server.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
		IdleTimeout:  cfg.Server.HTTP.IdleTimeout,
	}

	// 启动服务器
	go func() {
		log.Info("http server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// 优雅关闭
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server exited")
}
