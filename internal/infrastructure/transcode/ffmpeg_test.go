package transcode

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "lecture-rag-api/pkg/errors"
)

func TestOutputName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Lecture 2.mp4", "2_Lecture 2.mp3"},
		{"Tutorial 10 part two.mkv", "10_Tutorial 10 part two.mp3"},
		{"intro.mp4", "intro_intro.mp3"},
		{"no-extension", "no-extension_no-extension.mp3"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, OutputName(tc.in), "in=%q", tc.in)
	}
}

func TestNewConverter_MissingBinaryAbortsBatch(t *testing.T) {
	_, err := NewConverter("definitely-not-a-real-binary-xyz")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeExternalToolMissed, apperrors.AsAppError(err).Code)
}

// stubFFmpeg 写一个代替 ffmpeg 的脚本,exitCode 控制单文件成功或失败
func stubFFmpeg(t *testing.T, exitCode int) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stub not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\necho 'stub error' >&2\nexit " + strconv.Itoa(exitCode) + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestConvertDir_ConvertsRegularFiles(t *testing.T) {
	videos := t.TempDir()
	audios := filepath.Join(t.TempDir(), "audios")
	require.NoError(t, os.WriteFile(filepath.Join(videos, "Lecture 1.mp4"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(videos, "Lecture 2.mp4"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(videos, "subdir"), 0o755))

	c, err := NewConverter(stubFFmpeg(t, 0))
	require.NoError(t, err)

	result, err := c.ConvertDir(context.Background(), videos, audios)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Converted)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 1, result.Skipped)

	// 输出目录已创建
	_, err = os.Stat(audios)
	assert.NoError(t, err)
}

func TestConvertDir_PerFileFailureContinuesBatch(t *testing.T) {
	videos := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(videos, "a.mp4"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(videos, "b.mp4"), []byte("x"), 0o644))

	c, err := NewConverter(stubFFmpeg(t, 1))
	require.NoError(t, err)

	result, err := c.ConvertDir(context.Background(), videos, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 0, result.Converted)
	assert.Equal(t, 2, result.Failed)
}

func TestConvertDir_MissingVideosDir(t *testing.T) {
	c, err := NewConverter(stubFFmpeg(t, 0))
	require.NoError(t, err)

	_, err = c.ConvertDir(context.Background(), filepath.Join(t.TempDir(), "missing"), t.TempDir())
	require.Error(t, err)
}
