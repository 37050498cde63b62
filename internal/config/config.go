package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Wavespeed 上游接口的固定地址，模型 ID 会在运行时替换 /model_run/ 之后的部分。
const (
	DefaultAPIURL  = "https://wavespeed.ai/center/default/api/v1/model_run/wavespeed-ai/z-image/turbo"
	DefaultReferer = "https://wavespeed.ai/models/wavespeed-ai/z-image/turbo"
)

// AppInfo 对应 'app' 部分，包含应用程序的基本信息。
type AppInfo struct {
	Name        string `yaml:"name"`        // 应用程序名称
	Version     string `yaml:"version"`     // 应用程序版本
	Environment string `yaml:"environment"` // 运行环境 (例如: "development", "production")
}

// LoggerConfig 定义了日志记录器的配置。
type LoggerConfig struct {
	Level string `yaml:"level"` // 日志级别 (例如: "info", "debug", "warn", "error")
}

// ServerConfig 定义了 HTTP 服务的监听配置。
type ServerConfig struct {
	Port int `yaml:"port"` // 监听端口, 默认 8001
}

// AuthConfig 定义了 API 访问认证的配置。
type AuthConfig struct {
	APIKey string `yaml:"apiKey"` // 静态 Bearer Key; 为空时关闭认证
}

// WavespeedConfig 定义了 Wavespeed 上游的访问配置。
type WavespeedConfig struct {
	APIURL            string   `yaml:"apiURL"`            // 任务创建接口地址
	Referer           string   `yaml:"referer"`           // 请求 Referer
	Cookies           []string `yaml:"cookies"`           // 会话 Cookie 池, 轮询使用
	PollInterval      int      `yaml:"pollInterval"`      // 任务状态轮询间隔 (秒)
	PollTimeout       int      `yaml:"pollTimeout"`       // 非流式请求轮询超时 (秒)
	StreamTimeout     int      `yaml:"streamTimeout"`     // 流式请求超时 (秒)
	KeepAliveInterval int      `yaml:"keepAliveInterval"` // 流式 keep-alive 发送间隔 (秒)
	DefaultSize       string   `yaml:"defaultSize"`       // 默认出图尺寸 (例如: "1536*1536")
}

// R2Config 定义了 Cloudflare R2 对象存储的配置 (S3 兼容接口)。
type R2Config struct {
	Enabled         bool   `yaml:"enabled"`         // 是否启用图片转存
	AccountID       string `yaml:"accountID"`       // Cloudflare 账户 ID
	AccessKeyID     string `yaml:"accessKeyID"`     // 访问密钥
	SecretAccessKey string `yaml:"secretAccessKey"` // Secret 密钥
	Bucket          string `yaml:"bucket"`          // 存储桶名称
	PublicURL       string `yaml:"publicURL"`       // 公开访问地址前缀
}

// RedisConfig 定义了 Redis 的连接配置。
type RedisConfig struct {
	Address  string `yaml:"address"`  // Redis 服务器地址 (例如: "localhost:6379")
	Password string `yaml:"password"` // Redis 密码
	DB       int    `yaml:"db"`       // Redis 数据库编号
}

// CacheConfig 定义了生成结果缓存的配置。
// 只有调用方显式固定 seed 的请求才会命中缓存。
type CacheConfig struct {
	Enabled bool        `yaml:"enabled"` // 是否启用结果缓存
	TTL     int         `yaml:"ttl"`     // 缓存有效期 (秒)
	Redis   RedisConfig `yaml:"redis"`   // Redis 连接配置
}

// RateLimiterConfig 定义了限流器的配置。
type RateLimiterConfig struct {
	Enabled        bool                 `yaml:"enabled"`
	Algorithm      string               `yaml:"algorithm"` // 支持: "tokenBucket", "slidingCounter"
	TokenBucket    TokenBucketConfig    `yaml:"tokenBucket"`
	SlidingCounter SlidingCounterConfig `yaml:"slidingCounter"`
}

// TokenBucketConfig 定义了令牌桶算法的配置。
type TokenBucketConfig struct {
	Rate     float64 `yaml:"rate"` // 每秒速率
	Capacity int     `yaml:"capacity"`
}

// SlidingCounterConfig 定义了滑动窗口计数器算法的配置。
type SlidingCounterConfig struct {
	Limit      int    `yaml:"limit"`
	Window     string `yaml:"window"` // 例如: "1m", "30s"
	NumBuckets int    `yaml:"numBuckets"`
}

// CircuitBreakerConfig 定义了上游熔断器的配置。
type CircuitBreakerConfig struct {
	Enabled          bool   `yaml:"enabled"`
	FailureThreshold uint32 `yaml:"failureThreshold"`
	SuccessThreshold uint32 `yaml:"successThreshold"`
	Timeout          string `yaml:"timeout"` // 例如: "30s"
}

// MiddlewareConfig 包含所有中间件的配置。
type MiddlewareConfig struct {
	RateLimiter    RateLimiterConfig    `yaml:"rateLimiter"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"`
}

// AppConfig 是整个 YAML 文件的根结构，包含了应用程序的所有配置。
type AppConfig struct {
	App        AppInfo          `yaml:"app"`
	Logger     LoggerConfig     `yaml:"logger"`
	Server     ServerConfig     `yaml:"server"`
	Auth       AuthConfig       `yaml:"auth"`
	Wavespeed  WavespeedConfig  `yaml:"wavespeed"`
	R2         R2Config         `yaml:"r2"`
	Cache      CacheConfig      `yaml:"cache"`
	Middleware MiddlewareConfig `yaml:"middleware"`
	ModelsFile string           `yaml:"modelsFile"` // 模型目录 JSON 文件路径
}

// LoadConfig 从指定路径加载并解析 YAML 配置文件，随后应用环境变量覆盖和默认值。
// 配置优先级: 环境变量 > 配置文件 > 默认值。
func LoadConfig(path string) (*AppConfig, error) {
	var cfg AppConfig

	yamlFile, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("无法读取 YAML 文件 '%s': %w", path, err)
		}
		// 配置文件可以不存在, 此时完全依赖环境变量和默认值。
	} else {
		if err := yaml.Unmarshal(yamlFile, &cfg); err != nil {
			return nil, fmt.Errorf("解析 YAML 文件失败: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

// applyEnv 将环境变量覆盖到配置之上。
func (c *AppConfig) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("API_KEY"); v != "" {
		c.Auth.APIKey = v
	}
	if v := os.Getenv("WAVESPEED_COOKIE"); v != "" {
		c.Wavespeed.Cookies = splitCookies(v)
	}
	if v := os.Getenv("R2_ENABLED"); v != "" {
		c.R2.Enabled = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("R2_ACCOUNT_ID"); v != "" {
		c.R2.AccountID = v
	}
	if v := os.Getenv("R2_ACCESS_KEY_ID"); v != "" {
		c.R2.AccessKeyID = v
	}
	if v := os.Getenv("R2_SECRET_ACCESS_KEY"); v != "" {
		c.R2.SecretAccessKey = v
	}
	if v := os.Getenv("R2_BUCKET_NAME"); v != "" {
		c.R2.Bucket = v
	}
	if v := os.Getenv("R2_PUBLIC_URL"); v != "" {
		c.R2.PublicURL = v
	}
	if v := os.Getenv("REDIS_ADDRESS"); v != "" {
		c.Cache.Redis.Address = v
	}
}

// applyDefaults 填充未设置项的默认值。
func (c *AppConfig) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "wavespeed2api"
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8001
	}
	if c.Auth.APIKey == "" {
		c.Auth.APIKey = "sk-123456"
	}
	if c.Wavespeed.APIURL == "" {
		c.Wavespeed.APIURL = DefaultAPIURL
	}
	if c.Wavespeed.Referer == "" {
		c.Wavespeed.Referer = DefaultReferer
	}
	if c.Wavespeed.PollInterval == 0 {
		c.Wavespeed.PollInterval = 2
	}
	if c.Wavespeed.PollTimeout == 0 {
		c.Wavespeed.PollTimeout = 120
	}
	if c.Wavespeed.StreamTimeout == 0 {
		c.Wavespeed.StreamTimeout = 300
	}
	if c.Wavespeed.KeepAliveInterval == 0 {
		c.Wavespeed.KeepAliveInterval = 10
	}
	if c.Wavespeed.DefaultSize == "" {
		c.Wavespeed.DefaultSize = "1536*1536"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 86400
	}
	if c.ModelsFile == "" {
		c.ModelsFile = "models.json"
	}
}

// splitCookies 将逗号分隔的 Cookie 串拆分为 Cookie 池。
func splitCookies(raw string) []string {
	var cookies []string
	for _, c := range strings.Split(raw, ",") {
		if c = strings.TrimSpace(c); c != "" {
			cookies = append(cookies, c)
		}
	}
	return cookies
}
