package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"wavespeed2api/internal/chat_service/store"
	"wavespeed2api/internal/config"
	"wavespeed2api/internal/prompt"
	"wavespeed2api/internal/uploader"
	"wavespeed2api/internal/wavespeed"
	"wavespeed2api/pkg/logger"
)

// ErrNoPrompt 表示消息列表中找不到可用的 Prompt。
var ErrNoPrompt = errors.New("消息中没有找到 prompt")

// Service 负责一次图片生成的完整编排:
// Prompt 解析 -> 源图片处理 -> 任务创建 -> 轮询 -> 结果转存。
type Service struct {
	cfg      *config.Manager
	client   *wavespeed.Client
	uploader *uploader.Uploader
	cache    *store.ResultCache // 可以为 nil
	log      *logger.Logger
}

// NewService 创建一个 Service 实例。cache 传 nil 表示不启用结果缓存。
func NewService(cfg *config.Manager, client *wavespeed.Client, up *uploader.Uploader, cache *store.ResultCache, log *logger.Logger) *Service {
	return &Service{cfg: cfg, client: client, uploader: up, cache: cache, log: log}
}

// Generation 是一次经过解析、可以提交的生成任务。
type Generation struct {
	ModelID  string
	Prompt   string // 剥离标签后的干净 Prompt
	Opts     wavespeed.TaskOptions
	cacheKey string
}

// Prepare 解析聊天消息并构造生成任务。
// LoRA 标签只对模型 ID 含 "lora" 的模型生效; 源图片只对含 "edit" 的模型提取。
func (s *Service) Prepare(ctx context.Context, modelID string, messages []openai.ChatCompletionMessage) (*Generation, error) {
	raw := prompt.ExtractPrompt(messages)
	if raw == "" {
		return nil, ErrNoPrompt
	}

	cleaned, loras, params := prompt.ExtractParams(raw)
	lowerModel := strings.ToLower(modelID)

	if len(loras) > 0 && !strings.Contains(lowerModel, "lora") {
		s.log.WithPayload(map[string]interface{}{
			"model": modelID, "ignored_loras": len(loras),
		}).Info("模型不支持 LoRA, 忽略 Prompt 中的 LoRA 标签")
		loras = nil
	}

	// 宽高标签各自独立生效, 缺失的维度用默认尺寸补齐。
	cfg := s.cfg.Current()
	size := cfg.Wavespeed.DefaultSize
	if params.Width > 0 || params.Height > 0 {
		w, h := parseSize(size)
		if params.Width > 0 {
			w = params.Width
		}
		if params.Height > 0 {
			h = params.Height
		}
		size = fmt.Sprintf("%d*%d", w, h)
	}

	var images []string
	if strings.Contains(lowerModel, "edit") {
		refs := prompt.ExtractImages(messages)
		images = s.processSourceImages(ctx, refs)
		s.log.WithPayload(map[string]interface{}{
			"model": modelID, "source_images": len(images),
		}).Info("检测到修图模型, 已提取源图片")
	}

	gen := &Generation{
		ModelID: modelID,
		Prompt:  cleaned,
		Opts: wavespeed.TaskOptions{
			Prompt:       cleaned,
			Size:         size,
			Loras:        loras,
			OutputFormat: params.OutputFormat,
			Seed:         params.Seed,
			Images:       images,
		},
	}
	gen.cacheKey = store.Key(modelID, gen.Opts)
	return gen, nil
}

// parseSize 解析形如 "宽*高" 的尺寸字符串, 无法解析的维度回退到 1536。
func parseSize(s string) (width, height int) {
	width, height = 1536, 1536
	if left, right, ok := strings.Cut(s, "*"); ok {
		if w, err := strconv.Atoi(left); err == nil && w > 0 {
			width = w
		}
		if h, err := strconv.Atoi(right); err == nil && h > 0 {
			height = h
		}
	}
	return width, height
}

// processSourceImages 将源图片整理为 Wavespeed 可访问的 URL。
// base64 data URL 会被解码后转存到 R2; 普通 URL 会被重新托管以防原链接失效。
// 任何失败都回退到原始引用。
func (s *Service) processSourceImages(ctx context.Context, raw []string) []string {
	images := make([]string, 0, len(raw))
	for _, img := range raw {
		if !s.uploader.Enabled() {
			images = append(images, img)
			continue
		}

		if strings.HasPrefix(img, "data:image") {
			uploaded, err := s.uploadDataURL(ctx, img)
			if err != nil {
				s.log.WithError(err).Warn("base64 图片转存失败, 回退到原始内容")
				images = append(images, img)
				continue
			}
			images = append(images, uploaded)
		} else {
			images = append(images, s.uploader.UploadFromURL(ctx, img))
		}
	}
	return images
}

// uploadDataURL 解码 data:image/...;base64,... 形式的 URL 并上传。
func (s *Service) uploadDataURL(ctx context.Context, dataURL string) (string, error) {
	header, encoded, ok := strings.Cut(dataURL, ",")
	if !ok {
		return "", fmt.Errorf("无效的 data URL")
	}

	mime := strings.TrimPrefix(header, "data:")
	if idx := strings.IndexByte(mime, ';'); idx >= 0 {
		mime = mime[:idx]
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("解码 base64 图片失败: %w", err)
	}
	return s.uploader.Upload(ctx, data, mime)
}

// Start 提交生成任务。命中结果缓存时直接返回最终 URL, 不创建任务。
func (s *Service) Start(ctx context.Context, gen *Generation) (taskID, cachedURL string, err error) {
	if url := s.cache.Get(ctx, gen.cacheKey); url != "" {
		return "", url, nil
	}

	taskID, err = s.client.CreateTask(ctx, gen.ModelID, gen.Opts)
	if err != nil {
		return "", "", err
	}
	return taskID, "", nil
}

// Await 轮询任务直到完成, 转存结果图片并写入缓存, 返回最终图片 URL。
func (s *Service) Await(ctx context.Context, gen *Generation, taskID string, timeout time.Duration) (string, error) {
	imageURL, err := s.client.PollResult(ctx, taskID, timeout)
	if err != nil {
		return "", err
	}

	finalURL := s.uploader.UploadFromURL(ctx, imageURL)
	s.cache.Set(ctx, gen.cacheKey, finalURL)
	return finalURL, nil
}

// Markdown 将图片 URL 包装为助手回复的 Markdown 内容。
func Markdown(imageURL string) string {
	return fmt.Sprintf("![image](%s)", imageURL)
}

// Usage 按字符数统计用量, 与上游的计费口径保持一致。
func Usage(cleanedPrompt, content string) openai.Usage {
	promptTokens := utf8.RuneCountInString(cleanedPrompt)
	completionTokens := utf8.RuneCountInString(content)
	return openai.Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
}

// ListModels 从模型目录文件读取可用模型列表。
// 每次调用都重新读取, 因此目录文件可以在运行期更新。
func (s *Service) ListModels() ([]openai.Model, error) {
	path := s.cfg.Current().ModelsFile
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取模型目录 '%s' 失败: %w", path, err)
	}

	var list []openai.Model
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("解析模型目录失败: %w", err)
	}
	return list, nil
}
