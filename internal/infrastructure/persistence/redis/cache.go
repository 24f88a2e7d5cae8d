package redis

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"lecture-rag-api/pkg/logger"
	"lecture-rag-api/pkg/metrics"
)

// EmbedCache 查询嵌入缓存
// 同一问题反复出现时省掉一次嵌入调用;singleflight 合并并发的同题回源,
// 避免缓存未命中时对嵌入服务打出重复请求。Redis 任何故障都降级为直接回源。
type EmbedCache struct {
	client *Client
	model  string
	ttl    time.Duration
	group  singleflight.Group
}

// NewEmbedCache 创建嵌入缓存,key 按模型名隔离,换模型不会读到旧向量
func NewEmbedCache(client *Client, model string, ttl time.Duration) *EmbedCache {
	return &EmbedCache{
		client: client,
		model:  model,
		ttl:    ttl,
	}
}

// GetOrCompute 命中返回缓存向量,未命中经 singleflight 回源并写回
func (c *EmbedCache) GetOrCompute(ctx context.Context, text string, compute func() ([]float32, error)) ([]float32, error) {
	key := c.key(text)

	raw, err := c.client.Get(ctx, key)
	if err == nil {
		var vec []float32
		if jerr := json.Unmarshal([]byte(raw), &vec); jerr == nil && len(vec) > 0 {
			metrics.EmbedCacheHits.WithLabelValues("hit").Inc()
			return vec, nil
		}
	} else if !IsNil(err) {
		// Redis 故障,绕过缓存
		metrics.EmbedCacheHits.WithLabelValues("bypass").Inc()
		logger.Warn(ctx, "embed cache read failed, bypassing", "error", err.Error())
		return compute()
	}

	metrics.EmbedCacheHits.WithLabelValues("miss").Inc()

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		vec, err := compute()
		if err != nil {
			return nil, err
		}
		if encoded, merr := json.Marshal(vec); merr == nil {
			if serr := c.client.Set(ctx, key, encoded, c.ttl); serr != nil {
				logger.Warn(ctx, "embed cache write failed", "error", serr.Error())
			}
		}
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

func (c *EmbedCache) key(text string) string {
	return fmt.Sprintf("embed:%s:%x", c.model, sha256.Sum256([]byte(text)))
}
