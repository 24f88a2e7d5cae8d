// Package config 提供配置加载和管理功能
package config

import (
	"time"
)

// Config 应用配置根结构
type Config struct {
	App           AppConfig           `yaml:"app" mapstructure:"app"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Store         StoreConfig         `yaml:"store" mapstructure:"store"`
	Ollama        OllamaConfig        `yaml:"ollama" mapstructure:"ollama"`
	Chat          ChatConfig          `yaml:"chat" mapstructure:"chat"`
	Vector        VectorConfig        `yaml:"vector" mapstructure:"vector"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	Transcode     TranscodeConfig     `yaml:"transcode" mapstructure:"transcode"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Security      SecurityConfig      `yaml:"security" mapstructure:"security"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Version string `yaml:"version" mapstructure:"version"`
	Env     string `yaml:"env" mapstructure:"env"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPServerConfig `yaml:"http" mapstructure:"http"`
}

// HTTPServerConfig HTTP 服务器配置
type HTTPServerConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// StoreConfig 字幕嵌入库资产配置
type StoreConfig struct {
	// Path 预处理生成的 JSONL 资产路径。文件缺失视为启动致命错误。
	Path string `yaml:"path" mapstructure:"path"`
}

// OllamaConfig 本地模型服务配置
type OllamaConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	// EmbedModel 嵌入模型名称
	EmbedModel string `yaml:"embed_model" mapstructure:"embed_model"`
	// GenerateModel 生成模型名称
	GenerateModel string `yaml:"generate_model" mapstructure:"generate_model"`
	// EmbedTimeout 嵌入请求超时
	EmbedTimeout time.Duration `yaml:"embed_timeout" mapstructure:"embed_timeout"`
	// GenerateTimeout 生成请求（整个流）超时
	GenerateTimeout time.Duration `yaml:"generate_timeout" mapstructure:"generate_timeout"`
}

// ChatConfig 对话管线配置
type ChatConfig struct {
	// TopK 召回片段数量
	TopK int `yaml:"top_k" mapstructure:"top_k"`
	// EmbedCacheTTL 查询向量缓存 TTL（Redis 可用时生效）
	EmbedCacheTTL time.Duration `yaml:"embed_cache_ttl" mapstructure:"embed_cache_ttl"`
}

// VectorConfig 向量检索配置
type VectorConfig struct {
	// Backend 检索后端：memory（默认，进程内余弦相似度）或 milvus
	Backend string       `yaml:"backend" mapstructure:"backend"`
	Milvus  MilvusConfig `yaml:"milvus" mapstructure:"milvus"`
}

// MilvusConfig Milvus 配置
type MilvusConfig struct {
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	CollectionPrefix   string `yaml:"collection_prefix" mapstructure:"collection_prefix"`
	HNSWM              int    `yaml:"hnsw_m" mapstructure:"hnsw_m"`
	HNSWEfConstruction int    `yaml:"hnsw_ef_construction" mapstructure:"hnsw_ef_construction"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	// Enabled 为 false 时完全跳过 Redis（限流与嵌入缓存随之停用）
	Enabled bool        `yaml:"enabled" mapstructure:"enabled"`
	Redis   RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// TranscodeConfig 视频转音频批处理配置
type TranscodeConfig struct {
	VideosDir string `yaml:"videos_dir" mapstructure:"videos_dir"`
	AudiosDir string `yaml:"audios_dir" mapstructure:"audios_dir"`
	// FFmpegBin ffmpeg 可执行文件名或路径
	FFmpegBin string `yaml:"ffmpeg_bin" mapstructure:"ffmpeg_bin"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	Output string `yaml:"output" mapstructure:"output"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Exporter   string  `yaml:"exporter" mapstructure:"exporter"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors" mapstructure:"cors"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerSecond int  `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int  `yaml:"burst" mapstructure:"burst"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" mapstructure:"allowed_headers"`
}
