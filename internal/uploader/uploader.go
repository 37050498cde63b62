package uploader

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/minio/minio-go/v7"

	"wavespeed2api/internal/config"
	minioclient "wavespeed2api/internal/database/minio"
	"wavespeed2api/pkg/logger"
)

// extMap 将常见图片 MIME 类型映射到文件扩展名，未知类型回退到 png。
var extMap = map[string]string{
	"image/png":     "png",
	"image/jpeg":    "jpg",
	"image/jpg":     "jpg",
	"image/gif":     "gif",
	"image/webp":    "webp",
	"image/bmp":     "bmp",
	"image/svg+xml": "svg",
}

// Uploader 将生成的图片转存到 Cloudflare R2 并返回公开访问地址。
// 任何一步失败都不会让请求失败: 调用方拿回原始 URL 继续使用。
type Uploader struct {
	enabled    bool
	client     *minio.Client
	bucket     string
	publicURL  string
	httpClient *http.Client
	log        *logger.Logger
}

// New 根据配置创建 Uploader。
// R2 未启用、配置不完整或客户端初始化失败时返回一个关闭状态的 Uploader。
func New(cfg *config.R2Config, log *logger.Logger) *Uploader {
	u := &Uploader{
		bucket:     cfg.Bucket,
		publicURL:  strings.TrimRight(cfg.PublicURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}

	if !cfg.Enabled {
		return u
	}

	if cfg.AccountID == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" ||
		cfg.Bucket == "" || cfg.PublicURL == "" {
		log.Warn("R2 已启用但配置不完整, 图片转存将被关闭")
		return u
	}

	client, err := minioclient.GetClient(cfg)
	if err != nil {
		log.WithError(err).Error("R2 客户端初始化失败, 图片转存将被关闭")
		return u
	}

	u.client = client
	u.enabled = true
	log.WithPayload(map[string]interface{}{"bucket": cfg.Bucket}).Info("R2 图片转存已启用")
	return u
}

// Enabled 返回图片转存是否已启用。
func (u *Uploader) Enabled() bool {
	return u.enabled
}

// UploadFromURL 下载 imageURL 指向的图片并转存到 R2。
// 未启用或任何一步失败时返回原始 URL。
func (u *Uploader) UploadFromURL(ctx context.Context, imageURL string) string {
	if !u.enabled {
		return imageURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		u.log.WithError(err).Warn("构造图片下载请求失败, 回退到原始 URL")
		return imageURL
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		u.log.WithError(err).Warn("图片下载失败, 回退到原始 URL")
		return imageURL
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		u.log.WithPayload(map[string]interface{}{"status": resp.StatusCode}).
			Warn("图片下载返回非 200 状态, 回退到原始 URL")
		return imageURL
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		u.log.WithError(err).Warn("读取图片内容失败, 回退到原始 URL")
		return imageURL
	}

	mime := resp.Header.Get("Content-Type")
	uploaded, err := u.Upload(ctx, data, mime)
	if err != nil {
		u.log.WithError(err).Warn("图片转存失败, 回退到原始 URL")
		return imageURL
	}
	return uploaded
}

// Upload 将图片字节上传到 R2 并返回公开访问 URL。
// mime 为空时根据内容自动识别。
func (u *Uploader) Upload(ctx context.Context, data []byte, mime string) (string, error) {
	if !u.enabled {
		return "", fmt.Errorf("R2 图片转存未启用")
	}

	if mime == "" {
		mime = mimetype.Detect(data).String()
	}
	key := objectKey(data, mime)

	_, err := u.client.PutObject(ctx, u.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{
			ContentType:  mime,
			CacheControl: "public, max-age=31536000",
		})
	if err != nil {
		return "", fmt.Errorf("上传图片到 R2 失败: %w", err)
	}

	url := u.publicURL + "/" + key
	u.log.WithPayload(map[string]interface{}{"url": url}).Debug("图片已转存到 R2")
	return url, nil
}

// objectKey 根据图片内容生成唯一对象键: images/年月/内容哈希_毫秒时间戳.扩展名。
func objectKey(data []byte, mime string) string {
	ext, ok := extMap[strings.ToLower(mime)]
	if !ok {
		ext = "png"
	}

	hash := fmt.Sprintf("%x", md5.Sum(data))[:16]
	now := time.Now()
	return fmt.Sprintf("images/%s/%s_%d.%s", now.Format("200601"), hash, now.UnixMilli(), ext)
}
