// Package transcode 实现讲座视频到音频的批量转码
package transcode

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	apperrors "lecture-rag-api/pkg/errors"
	"lecture-rag-api/pkg/logger"
)

// Converter 基于 ffmpeg 子进程的转码器
type Converter struct {
	bin string
}

// BatchResult 一次批处理的统计
type BatchResult struct {
	Converted int
	Failed    int
	Skipped   int
}

// NewConverter 创建转码器并确认 ffmpeg 可执行文件存在
// 二进制缺失是环境性错误,整个批次不应开始
func NewConverter(bin string) (*Converter, error) {
	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeExternalToolMissed,
			fmt.Sprintf("ffmpeg binary %q not found", bin))
	}
	return &Converter{bin: path}, nil
}

// OutputName 由视频文件名推导音频输出名:<编号>_<原名>.mp3
// 编号取基础名按空格切分后的第二段,切不出来就用整个基础名
func OutputName(filename string) string {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	number := base
	if parts := strings.Split(base, " "); len(parts) > 1 {
		number = parts[1]
	}
	return fmt.Sprintf("%s_%s.mp3", number, base)
}

// ConvertDir 转换视频目录下的所有普通文件,输出到音频目录
// 单个文件失败记录日志后继续,目录不可读才让整个批次失败
func (c *Converter) ConvertDir(ctx context.Context, videosDir, audiosDir string) (*BatchResult, error) {
	entries, err := os.ReadDir(videosDir)
	if err != nil {
		return nil, fmt.Errorf("read videos dir %s: %w", videosDir, err)
	}
	if err := os.MkdirAll(audiosDir, 0o755); err != nil {
		return nil, fmt.Errorf("create audios dir %s: %w", audiosDir, err)
	}

	result := &BatchResult{}
	for _, entry := range entries {
		if entry.IsDir() {
			result.Skipped++
			continue
		}

		in := filepath.Join(videosDir, entry.Name())
		out := filepath.Join(audiosDir, OutputName(entry.Name()))

		if err := c.convertFile(ctx, in, out); err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Failed++
			logger.Error(ctx, "convert failed, skipping file", err, "input", in)
			continue
		}
		result.Converted++
		logger.Info(ctx, "converted", "input", in, "output", out)
	}
	return result, nil
}

// convertFile 对单个文件执行 ffmpeg:抽音轨,MP3 VBR 质量 2
func (c *Converter) convertFile(ctx context.Context, in, out string) error {
	cmd := exec.CommandContext(ctx, c.bin,
		"-i", in,
		"-vn",
		"-acodec", "libmp3lame",
		"-q:a", "2",
		"-y",
		out,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg %s: %w: %s", in, err, lastLine(stderr.String()))
	}
	return nil
}

// lastLine ffmpeg 的报错原因通常在 stderr 最后一行
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
