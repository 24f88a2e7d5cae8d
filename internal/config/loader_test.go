package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestExpandEnv(t *testing.T) {
	t.Run("default used when unset", func(t *testing.T) {
		assert.Equal(t, "bar", expandEnv("${TEST_EXPAND_FOO:bar}"))
	})

	t.Run("env value wins over default", func(t *testing.T) {
		t.Setenv("TEST_EXPAND_FOO", "from-env")
		assert.Equal(t, "from-env", expandEnv("${TEST_EXPAND_FOO:bar}"))
	})

	t.Run("empty default", func(t *testing.T) {
		assert.Equal(t, "", expandEnv("${TEST_EXPAND_FOO:}"))
	})

	t.Run("undefined without default kept verbatim", func(t *testing.T) {
		assert.Equal(t, "${TEST_EXPAND_FOO}", expandEnv("${TEST_EXPAND_FOO}"))
	})

	t.Run("mixed content", func(t *testing.T) {
		t.Setenv("TEST_EXPAND_HOST", "ollama.internal")
		got := expandEnv("base_url: http://${TEST_EXPAND_HOST}:${TEST_EXPAND_PORT:11434}")
		assert.Equal(t, "base_url: http://ollama.internal:11434", got)
	})
}

func TestSetDefaults(t *testing.T) {
	// 缺省配置必须给出完整可运行的管线参数
	v := viper.New()
	setDefaults(v)

	assert.Equal(t, 5, v.GetInt("chat.top_k"))
	assert.Equal(t, "memory", v.GetString("vector.backend"))
	assert.Equal(t, "http://localhost:11434", v.GetString("ollama.base_url"))
	assert.Equal(t, "10s", v.GetString("ollama.embed_timeout"))
	assert.Equal(t, "120s", v.GetString("ollama.generate_timeout"))
	assert.Equal(t, "data/embeddings.jsonl", v.GetString("store.path"))
	assert.Equal(t, "ffmpeg", v.GetString("transcode.ffmpeg_bin"))
}
