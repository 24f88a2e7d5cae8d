// Package main 讲座视频批量转音频入口
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"lecture-rag-api/internal/config"
	"lecture-rag-api/internal/infrastructure/transcode"
	"lecture-rag-api/pkg/logger"
)

func main() {
	var (
		videosDir = flag.String("videos", "", "videos directory (overrides config)")
		audiosDir = flag.String("audios", "", "audios output directory (overrides config)")
	)
	flag.Parse()

	// 加载 .env 文件（如果存在）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(
		cfg.Observability.Logging.Level,
		cfg.Observability.Logging.Format,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	in := cfg.Transcode.VideosDir
	if *videosDir != "" {
		in = *videosDir
	}
	out := cfg.Transcode.AudiosDir
	if *audiosDir != "" {
		out = *audiosDir
	}

	// ffmpeg 缺失是环境问题,一个文件都不处理,直接报给操作者
	converter, err := transcode.NewConverter(cfg.Transcode.FFmpegBin)
	if err != nil {
		logger.Fatal(ctx, "ffmpeg not available, aborting batch", err)
	}

	log := logger.FromContext(ctx)
	log.Info("starting transcode batch", "videos", in, "audios", out)

	result, err := converter.ConvertDir(ctx, in, out)
	if err != nil {
		logger.Fatal(ctx, "transcode batch failed", err)
	}

	log.Info("transcode batch finished",
		"converted", result.Converted,
		"failed", result.Failed,
		"skipped", result.Skipped,
	)
	if result.Failed > 0 {
		os.Exit(1)
	}
}
