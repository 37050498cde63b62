package store

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"wavespeed2api/internal/wavespeed"
	"wavespeed2api/pkg/logger"
)

const keyPrefix = "wavespeed2api:result:"

// ResultCache 缓存已完成任务的最终图片 URL。
// 生成过程只有在调用方显式固定 seed 时才是可复现的,
// 因此只有带 seed 的请求会被写入和命中。
type ResultCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewResultCache 创建一个 ResultCache。
func NewResultCache(client *redis.Client, ttl time.Duration, log *logger.Logger) *ResultCache {
	return &ResultCache{client: client, ttl: ttl, log: log}
}

// Key 根据任务的全部生成参数计算缓存键。
// seed 未固定时返回空串, 表示该请求不参与缓存。
func Key(modelID string, opts wavespeed.TaskOptions) string {
	if opts.Seed == nil || *opts.Seed < 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(modelID)
	sb.WriteByte('|')
	sb.WriteString(opts.Prompt)
	sb.WriteByte('|')
	sb.WriteString(opts.Size)
	fmt.Fprintf(&sb, "|%d|%s", *opts.Seed, opts.OutputFormat)
	for _, l := range opts.Loras {
		fmt.Fprintf(&sb, "|%s:%g", l.Path, l.Scale)
	}
	for _, img := range opts.Images {
		sb.WriteByte('|')
		sb.WriteString(img)
	}

	return keyPrefix + fmt.Sprintf("%x", sha256.Sum256([]byte(sb.String())))
}

// Get 查询缓存的图片 URL, 未命中或缓存不可用时返回空串。
func (c *ResultCache) Get(ctx context.Context, key string) string {
	if c == nil || key == "" {
		return ""
	}

	url, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			c.log.WithError(err).Warn("读取结果缓存失败")
		}
		return ""
	}
	c.log.WithPayload(map[string]interface{}{"key": key}).Debug("结果缓存命中")
	return url
}

// Set 写入缓存。缓存故障只记录日志, 不影响请求。
func (c *ResultCache) Set(ctx context.Context, key, url string) {
	if c == nil || key == "" || url == "" {
		return
	}
	if err := c.client.Set(ctx, key, url, c.ttl).Err(); err != nil {
		c.log.WithError(err).Warn("写入结果缓存失败")
	}
}
