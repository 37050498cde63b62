package minio

import (
	"context"
	"fmt"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"wavespeed2api/internal/config"
)

var (
	client  *minio.Client
	once    sync.Once
	initErr error
)

// GetClient 使用单例模式初始化并返回一个指向 Cloudflare R2 的 S3 客户端。
// R2 兼容 S3 API, 端点为 https://<账户ID>.r2.cloudflarestorage.com, 区域固定为 "auto"。
// 它确保连接在整个应用生命周期中只被建立一次。
func GetClient(cfg *config.R2Config) (*minio.Client, error) {
	once.Do(func() {
		endpoint := fmt.Sprintf("%s.r2.cloudflarestorage.com", cfg.AccountID)
		c, err := minio.New(endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
			Secure: true,
			Region: "auto",
		})
		if err != nil {
			initErr = fmt.Errorf("无法创建 R2 客户端: %w", err)
			return
		}

		// 初始化时执行简单的健康检查
		if _, err := c.ListBuckets(context.Background()); err != nil {
			initErr = fmt.Errorf("R2 初始化健康检查失败: %w", err)
			return
		}
		client = c
	})

	return client, initErr
}
