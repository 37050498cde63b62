package models

// 任务状态取值，与 Wavespeed 结果接口保持一致。
const (
	StatusSucceeded = "succeeded"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// LoRA 描述一个附加到生图任务上的 LoRA 模型及其权重。
type LoRA struct {
	Path  string  `json:"path"`  // LoRA 模型地址
	Scale float64 `json:"scale"` // 权重, 默认 1.0
}

// PromptParams 保存从 Prompt 内联标签中提取出的生成参数。
type PromptParams struct {
	Width        int    // 出图宽度, 0 表示未指定
	Height       int    // 出图高度, 0 表示未指定
	Seed         *int   // 随机种子, nil 表示未指定
	OutputFormat string // 输出格式 (例如: "jpeg", "webp")
}

// TaskRequest 是提交给 Wavespeed 的任务创建载荷。
type TaskRequest struct {
	EnableBase64Output bool     `json:"enable_base64_output"`
	EnableSyncMode     bool     `json:"enable_sync_mode"`
	Prompt             string   `json:"prompt"`
	Seed               int      `json:"seed"`
	Size               string   `json:"size,omitempty"`
	Loras              []LoRA   `json:"loras,omitempty"`
	OutputFormat       string   `json:"output_format,omitempty"`
	Images             []string `json:"images,omitempty"`
}

// PredictionResult 是 Wavespeed 结果接口返回的任务状态。
type PredictionResult struct {
	Status          string   `json:"status"`
	Outputs         []string `json:"outputs"`
	HasNSFWContents []bool   `json:"has_nsfw_contents"`
	Error           string   `json:"error"`
}

// TaskStatus 是对一次状态查询的归一化结果。
// Retryable 为 true 表示本次查询因传输错误失败，可以继续轮询。
type TaskStatus struct {
	Status    string // StatusSucceeded / StatusFailed / 其他中间状态
	Output    string // 成功时的图片 URL
	Err       string // 失败原因
	Retryable bool
}
