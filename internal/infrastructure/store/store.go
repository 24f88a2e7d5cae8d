// Package store 提供字幕嵌入库资产的加载与只读访问
package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"lecture-rag-api/internal/domain/entity"
	apperrors "lecture-rag-api/pkg/errors"
)

// Store 启动时加载一次的字幕嵌入库,加载后不可变,可被多个会话共享只读访问
type Store struct {
	segments []entity.SubtitleSegment
	dim      int
}

// Load 从 JSONL 文件加载嵌入库,每行一条字幕片段记录
// 文件缺失、解析失败或嵌入维度不一致均为致命错误,由调用方决定进程退出
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeAssetLoadFailed,
			fmt.Sprintf("open embedding store %s", path))
	}
	defer f.Close()

	var (
		segments []entity.SubtitleSegment
		dim      int
		lineNo   int
	)

	scanner := bufio.NewScanner(f)
	// 单条记录含整条嵌入向量,默认 64KB 行缓冲不够用
	scanner.Buffer(make([]byte, 0, 256*1024), 16*1024*1024)

	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var seg entity.SubtitleSegment
		if err := json.Unmarshal(line, &seg); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeAssetLoadFailed,
				fmt.Sprintf("decode segment at line %d", lineNo))
		}
		if len(seg.Embedding) == 0 {
			return nil, apperrors.New(apperrors.CodeAssetLoadFailed,
				fmt.Sprintf("segment at line %d has no embedding", lineNo))
		}
		if dim == 0 {
			dim = len(seg.Embedding)
		} else if len(seg.Embedding) != dim {
			return nil, apperrors.New(apperrors.CodeAssetLoadFailed,
				fmt.Sprintf("segment at line %d has dimension %d, want %d", lineNo, len(seg.Embedding), dim))
		}
		segments = append(segments, seg)
	}
	if err := scanner.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeAssetLoadFailed, "read embedding store")
	}
	if len(segments) == 0 {
		return nil, apperrors.New(apperrors.CodeAssetLoadFailed,
			fmt.Sprintf("embedding store %s contains no segments", path))
	}

	return &Store{segments: segments, dim: dim}, nil
}

// Segments 返回全部片段,调用方不得修改
func (s *Store) Segments() []entity.SubtitleSegment {
	return s.segments
}

// Dimension 返回嵌入向量维度
func (s *Store) Dimension() int {
	return s.dim
}

// Len 返回片段总数
func (s *Store) Len() int {
	return len(s.segments)
}
