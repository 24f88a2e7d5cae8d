package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "lecture-rag-api/pkg/errors"
)

func writeAsset(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "embeddings.jsonl")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Success(t *testing.T) {
	path := writeAsset(t,
		`{"number":1,"title":"Lecture 1","start":0,"text":"intro","embedding":[0.1,0.2,0.3]}`,
		``,
		`{"number":2,"title":"Lecture 2","start":417.68,"text":"fuzzy sets","embedding":[0.4,0.5,0.6]}`,
	)

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 3, s.Dimension())

	segs := s.Segments()
	require.Len(t, segs, 2)
	assert.Equal(t, 1, segs[0].Number)
	assert.Equal(t, "Lecture 2", segs[1].Title)
	assert.Equal(t, 417.68, segs[1].Start)
	assert.Equal(t, []float32{0.4, 0.5, 0.6}, segs[1].Embedding)
}

func TestLoad_MissingFileIsFatalClassError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "no-such-file.jsonl"))
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeAssetLoadFailed, apperrors.AsAppError(err).Code)
}

func TestLoad_DimensionMismatch(t *testing.T) {
	path := writeAsset(t,
		`{"number":1,"title":"a","start":0,"text":"x","embedding":[0.1,0.2]}`,
		`{"number":2,"title":"b","start":1,"text":"y","embedding":[0.1,0.2,0.3]}`,
	)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension")
}

func TestLoad_MissingEmbedding(t *testing.T) {
	path := writeAsset(t, `{"number":1,"title":"a","start":0,"text":"x"}`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_MalformedLine(t *testing.T) {
	path := writeAsset(t, `{"number":1,`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_EmptyAsset(t *testing.T) {
	path := writeAsset(t)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no segments")
}
