package wavespeed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"wavespeed2api/internal/models"
	"wavespeed2api/pkg/httpclient"
	"wavespeed2api/pkg/logger"
)

// CookieSource 提供当前可用的会话 Cookie 池。
// config.Manager 实现了该接口, 因此 Cookie 可以在运行期热更新。
type CookieSource interface {
	Cookies() []string
}

// TaskOptions 是一次生图/修图任务的参数。
type TaskOptions struct {
	Prompt       string
	Size         string // 出图尺寸; 存在源图片时不下发
	Loras        []models.LoRA
	OutputFormat string
	Seed         *int // nil 或负数时随机生成
	Images       []string
}

// Client 是 wavespeed.ai 的上游客户端。
// 它通过浏览器会话 Cookie 认证, 多个 Cookie 之间按请求轮换。
type Client struct {
	apiURL       string
	referer      string
	cookies      CookieSource
	httpClient   *httpclient.Client
	pollInterval time.Duration
	log          *logger.Logger

	next uint64 // Cookie 轮换游标
}

// NewClient 创建一个 Wavespeed 客户端。
func NewClient(apiURL, referer string, pollInterval time.Duration, cookies CookieSource, hc *httpclient.Client, log *logger.Logger) *Client {
	return &Client{
		apiURL:       apiURL,
		referer:      referer,
		cookies:      cookies,
		httpClient:   hc,
		pollInterval: pollInterval,
		log:          log,
	}
}

// setHeaders 为请求设置浏览器特征头和当前轮换到的 Cookie。
func (c *Client) setHeaders(req *http.Request) error {
	pool := c.cookies.Cookies()
	if len(pool) == 0 {
		return fmt.Errorf("未配置任何 Wavespeed Cookie")
	}
	cookie := pool[int(atomic.AddUint64(&c.next, 1)-1)%len(pool)]

	req.Header.Set("accept", "application/json, text/plain, */*")
	req.Header.Set("accept-language", "zh-CN,zh;q=0.9")
	req.Header.Set("content-type", "application/json")
	req.Header.Set("sec-ch-ua", `"Chromium";v="142", "Google Chrome";v="142", "Not_A Brand";v="99"`)
	req.Header.Set("sec-ch-ua-mobile", "?0")
	req.Header.Set("sec-ch-ua-platform", `"Windows"`)
	req.Header.Set("sec-fetch-dest", "empty")
	req.Header.Set("sec-fetch-mode", "cors")
	req.Header.Set("sec-fetch-site", "same-origin")
	req.Header.Set("Referer", c.referer)
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36")
	req.Header.Set("cookie", cookie)
	return nil
}

// baseURL 返回任务接口的前缀, 即 apiURL 中最后一个 /model_run/ 之前的部分。
func (c *Client) baseURL() string {
	if idx := strings.LastIndex(c.apiURL, "/model_run/"); idx >= 0 {
		return c.apiURL[:idx]
	}
	return c.apiURL
}

// CreateTask 创建生图/修图任务并返回任务 ID。
// 未指定或为负的 seed 会被替换为 [0, 2^31) 内的随机值。
func (c *Client) CreateTask(ctx context.Context, modelID string, opts TaskOptions) (string, error) {
	seed := -1
	if opts.Seed != nil {
		seed = *opts.Seed
	}
	if seed < 0 {
		seed = int(rand.Int31())
	}

	payload := models.TaskRequest{
		EnableBase64Output: false,
		EnableSyncMode:     false,
		Prompt:             opts.Prompt,
		Seed:               seed,
		Loras:              opts.Loras,
		OutputFormat:       opts.OutputFormat,
		Images:             opts.Images,
	}
	// 有源图片时尺寸由原图决定, 不下发 size。
	if len(opts.Images) == 0 {
		payload.Size = opts.Size
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("序列化任务载荷失败: %w", err)
	}

	target := c.baseURL() + "/model_run/" + modelID
	c.log.WithPayload(map[string]interface{}{
		"model": modelID, "prompt": opts.Prompt, "seed": seed,
	}).Info("创建 Wavespeed 任务")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	if err := c.setHeaders(req); err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("创建 Wavespeed 任务失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("创建 Wavespeed 任务失败: 状态码 %d, 响应 %s", resp.StatusCode, respBody)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &created); err != nil {
		return "", fmt.Errorf("解析任务创建响应失败: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("任务创建响应中没有任务 ID: %s", respBody)
	}
	return created.ID, nil
}

// predictionResponse 兼容结果接口的两种返回结构: 带 data 信封或直接平铺。
type predictionResponse struct {
	models.PredictionResult
	Data *models.PredictionResult `json:"data"`
}

// CheckStatus 查询任务状态并归一化结果。
// 传输层错误被标记为 Retryable, 轮询方应当继续重试。
func (c *Client) CheckStatus(ctx context.Context, taskID string) models.TaskStatus {
	resultURL := c.baseURL() + "/predictions/" + taskID + "/result"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resultURL, nil)
	if err != nil {
		return models.TaskStatus{Status: "error", Err: err.Error(), Retryable: true}
	}
	if err := c.setHeaders(req); err != nil {
		return models.TaskStatus{Status: "error", Err: err.Error(), Retryable: true}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.WithError(err).Warn("查询任务状态失败")
		return models.TaskStatus{Status: "error", Err: err.Error(), Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("查询任务状态失败: 状态码 %d", resp.StatusCode)
		c.log.WithError(err).Warn("查询任务状态失败")
		return models.TaskStatus{Status: "error", Err: err.Error(), Retryable: true}
	}

	var parsed predictionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		c.log.WithError(err).Warn("解析任务状态响应失败")
		return models.TaskStatus{Status: "error", Err: err.Error(), Retryable: true}
	}

	result := &parsed.PredictionResult
	if parsed.Data != nil {
		result = parsed.Data
	}

	switch result.Status {
	case models.StatusSucceeded, models.StatusCompleted:
		if len(result.HasNSFWContents) > 0 {
			c.log.WithPayload(map[string]interface{}{
				"task_id": taskID, "has_nsfw_contents": result.HasNSFWContents,
			}).Warn("任务输出包含 NSFW 标记")
		}
		if len(result.Outputs) == 0 {
			return models.TaskStatus{Status: models.StatusFailed, Err: "任务成功但没有任何输出"}
		}
		return models.TaskStatus{Status: models.StatusSucceeded, Output: result.Outputs[0]}
	case models.StatusFailed:
		msg := result.Error
		if msg == "" {
			msg = "未知错误"
		}
		return models.TaskStatus{Status: models.StatusFailed, Err: msg}
	default:
		// processing, created 等中间状态。
		return models.TaskStatus{Status: result.Status}
	}
}

// PollResult 轮询任务直到成功、失败或超时, 成功时返回图片 URL。
// 可重试的错误 (传输层故障) 不会终止轮询。
func (c *Client) PollResult(ctx context.Context, taskID string, timeout time.Duration) (string, error) {
	c.log.WithPayload(map[string]interface{}{"task_id": taskID}).Debug("开始轮询任务结果")

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		status := c.CheckStatus(ctx, taskID)
		if status.Status == models.StatusSucceeded {
			return status.Output, nil
		}
		if status.Err != "" && !status.Retryable {
			return "", fmt.Errorf("任务失败: %s", status.Err)
		}

		if time.Now().After(deadline) {
			return "", fmt.Errorf("轮询任务结果超时")
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}
