package api

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"wavespeed2api/internal/config"
)

// SetupRouter 配置并返回一个 Gin 引擎实例。
func SetupRouter(h *Handler, cfg *config.Manager) (*gin.Engine, error) {
	// 使用默认中间件 (logger, recovery) 创建一个 Gin 引擎。
	r := gin.Default()
	r.Use(CORSMiddleware())

	// 按配置启用限流。
	rlCfg := cfg.Current().Middleware.RateLimiter
	if rlCfg.Enabled {
		limiter, err := createRateLimiter(rlCfg)
		if err != nil {
			return nil, fmt.Errorf("初始化限流器失败: %w", err)
		}
		r.Use(RateLimitMiddleware(limiter))
	}

	// 健康检查不需要认证。
	r.GET("/health", h.Health)

	// OpenAI 兼容接口。
	v1 := r.Group("/v1")
	v1.Use(AuthMiddleware(cfg))
	{
		v1.GET("/models", h.ListModels)
		v1.POST("/chat/completions", h.ChatCompletions)
	}

	return r, nil
}
