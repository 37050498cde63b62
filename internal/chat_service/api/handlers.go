package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	openai "github.com/meguminnnnnnnnn/go-openai"

	"wavespeed2api/internal/chat_service/service"
	"wavespeed2api/internal/config"
	"wavespeed2api/pkg/logger"
)

// Handler 封装了所有 API endpoint 的处理函数。
type Handler struct {
	service *service.Service
	cfg     *config.Manager
	log     *logger.Logger
}

// NewHandler 创建一个新的 Handler 实例。
func NewHandler(s *service.Service, cfg *config.Manager, log *logger.Logger) *Handler {
	return &Handler{service: s, cfg: cfg, log: log}
}

// Health 处理健康检查请求。
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListModels 返回模型目录, 格式与 OpenAI /v1/models 一致。
func (h *Handler) ListModels(c *gin.Context) {
	models, err := h.service.ListModels()
	if err != nil {
		h.log.WithError(err).Error("读取模型目录失败")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"object": "list", "data": models})
}

// ChatCompletions 处理 OpenAI 格式的聊天补全请求, 将其转换为一次图片生成。
func (h *Handler) ChatCompletions(c *gin.Context) {
	var req openai.ChatCompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	gen, err := h.service.Prepare(ctx, req.Model, req.Messages)
	if err != nil {
		if errors.Is(err, service.ErrNoPrompt) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	taskID, cachedURL, err := h.service.Start(ctx, gen)
	if err != nil {
		h.log.WithError(err).Error("创建生成任务失败")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if req.Stream {
		h.streamCompletion(c, &req, gen, taskID, cachedURL)
		return
	}

	wsCfg := h.cfg.Current().Wavespeed
	imageURL := cachedURL
	if imageURL == "" {
		imageURL, err = h.service.Await(ctx, gen, taskID, time.Duration(wsCfg.PollTimeout)*time.Second)
		if err != nil {
			h.log.WithError(err).Error("等待生成结果失败")
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	content := service.Markdown(imageURL)
	c.JSON(http.StatusOK, openai.ChatCompletionResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []openai.ChatCompletionChoice{
			{
				Index: 0,
				Message: openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleAssistant,
					Content: content,
				},
				FinishReason: openai.FinishReasonStop,
			},
		},
		Usage: service.Usage(gen.Prompt, content),
	})
}

// awaitResult 是流式响应等待协程的产出。
type awaitResult struct {
	url string
	err error
}

// streamCompletion 以 SSE 推送 chat.completion.chunk 帧。
// 任务执行期间每隔 keep-alive 间隔发送一个空格内容块, 防止客户端断开连接。
// 失败和超时以 "\n[Error: ...]" 内容块的形式呈现, 随后正常结束流。
func (h *Handler) streamCompletion(c *gin.Context, req *openai.ChatCompletionRequest, gen *service.Generation, taskID, cachedURL string) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	responseID := "chatcmpl-" + uuid.NewString()
	created := time.Now().Unix()

	writeChunk := func(delta openai.ChatCompletionStreamChoiceDelta, finish openai.FinishReason) {
		chunk := openai.ChatCompletionStreamResponse{
			ID:      responseID,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   req.Model,
			Choices: []openai.ChatCompletionStreamChoice{
				{Index: 0, Delta: delta, FinishReason: finish},
			},
		}
		data, err := json.Marshal(chunk)
		if err != nil {
			return
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", data)
		c.Writer.Flush()
	}

	// 初始块: 宣告 assistant 角色。
	writeChunk(openai.ChatCompletionStreamChoiceDelta{Role: openai.ChatMessageRoleAssistant}, "")

	wsCfg := h.cfg.Current().Wavespeed
	if cachedURL != "" {
		writeChunk(openai.ChatCompletionStreamChoiceDelta{Content: service.Markdown(cachedURL)}, "")
		h.finishStream(c, writeChunk)
		return
	}

	ctx := c.Request.Context()
	resultCh := make(chan awaitResult, 1)
	go func() {
		url, err := h.service.Await(ctx, gen, taskID, time.Duration(wsCfg.StreamTimeout)*time.Second)
		resultCh <- awaitResult{url: url, err: err}
	}()

	keepAlive := time.NewTicker(time.Duration(wsCfg.KeepAliveInterval) * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case res := <-resultCh:
			if res.err != nil {
				h.log.WithError(res.err).Error("流式等待生成结果失败")
				writeChunk(openai.ChatCompletionStreamChoiceDelta{
					Content: fmt.Sprintf("\n[Error: %s]", res.err),
				}, "")
			} else {
				writeChunk(openai.ChatCompletionStreamChoiceDelta{Content: service.Markdown(res.url)}, "")
			}
			h.finishStream(c, writeChunk)
			return
		case <-keepAlive.C:
			// 单个空格作为 keep-alive 内容。
			writeChunk(openai.ChatCompletionStreamChoiceDelta{Content: " "}, "")
		case <-ctx.Done():
			return
		}
	}
}

// finishStream 发送结束块和 [DONE] 标记。
func (h *Handler) finishStream(c *gin.Context, writeChunk func(openai.ChatCompletionStreamChoiceDelta, openai.FinishReason)) {
	writeChunk(openai.ChatCompletionStreamChoiceDelta{}, openai.FinishReasonStop)
	fmt.Fprint(c.Writer, "data: [DONE]\n\n")
	c.Writer.Flush()
}
