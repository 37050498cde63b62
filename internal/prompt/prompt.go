package prompt

import (
	"regexp"
	"strconv"
	"strings"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"wavespeed2api/internal/models"
)

var (
	loraPattern     = regexp.MustCompile(`<lora:([^>]+?)(?::([\d.]+))?>`)
	paramPattern    = regexp.MustCompile(`<(\w+):([^>]+)>`)
	markdownPattern = regexp.MustCompile(`!\[.*?\]\((https?://[^)]+)\)`)
	spacePattern    = regexp.MustCompile(`\s+`)
)

// ExtractPrompt 从 OpenAI 格式的 messages 中提取最后一条 user 消息的文本。
// 多模态内容只拼接其中的 text 部分。
func ExtractPrompt(messages []openai.ChatCompletionMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg.Role != openai.ChatMessageRoleUser {
			continue
		}

		if len(msg.MultiContent) > 0 {
			var parts []string
			for _, part := range msg.MultiContent {
				if part.Type == openai.ChatMessagePartTypeText {
					parts = append(parts, part.Text)
				}
			}
			return strings.Join(parts, "")
		}
		return msg.Content
	}
	return ""
}

// ExtractParams 从 Prompt 中剥离内联标签，返回清洗后的 Prompt、LoRA 列表和生成参数。
//
// 支持的标签:
//   - <lora:url> 或 <lora:url:scale>
//   - <width:980> <height:1280> <seed:42>
//   - <output_format:jpeg>
//
// 未识别的 <key:value> 标签会被剥离并忽略，无效的数值同样忽略。
func ExtractParams(raw string) (string, []models.LoRA, models.PromptParams) {
	var loras []models.LoRA
	var params models.PromptParams

	cleaned := loraPattern.ReplaceAllStringFunc(raw, func(tag string) string {
		m := loraPattern.FindStringSubmatch(tag)
		scale := 1.0
		if m[2] != "" {
			if s, err := strconv.ParseFloat(m[2], 64); err == nil {
				scale = s
			}
		}
		loras = append(loras, models.LoRA{Path: m[1], Scale: scale})
		return ""
	})

	cleaned = paramPattern.ReplaceAllStringFunc(cleaned, func(tag string) string {
		m := paramPattern.FindStringSubmatch(tag)
		key := strings.ToLower(m[1])
		value := strings.TrimSpace(m[2])

		switch key {
		case "width", "height", "seed":
			n, err := strconv.Atoi(value)
			if err != nil {
				return ""
			}
			switch key {
			case "width":
				params.Width = n
			case "height":
				params.Height = n
			case "seed":
				params.Seed = &n
			}
		case "output_format":
			params.OutputFormat = value
		}
		return ""
	})

	cleaned = strings.TrimSpace(spacePattern.ReplaceAllString(cleaned, " "))
	return cleaned, loras, params
}

// ExtractImages 从最后一条 user 消息中提取图片引用，按出现顺序返回。
//
// 支持:
//  1. 字符串内容中的 Markdown 图片: ![alt](url)
//  2. 多模态内容中的 image_url 部分 (包括 data:image base64 URL)
//  3. 多模态 text 部分中的 Markdown 图片
func ExtractImages(messages []openai.ChatCompletionMessage) []string {
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg.Role != openai.ChatMessageRoleUser {
			continue
		}

		var images []string
		if len(msg.MultiContent) > 0 {
			for _, part := range msg.MultiContent {
				switch part.Type {
				case openai.ChatMessagePartTypeImageURL:
					if part.ImageURL != nil && part.ImageURL.URL != "" {
						images = append(images, part.ImageURL.URL)
					}
				case openai.ChatMessagePartTypeText:
					images = append(images, markdownImages(part.Text)...)
				}
			}
		} else {
			images = append(images, markdownImages(msg.Content)...)
		}
		// 只处理最后一条 user 消息。
		return images
	}
	return nil
}

func markdownImages(text string) []string {
	var urls []string
	for _, m := range markdownPattern.FindAllStringSubmatch(text, -1) {
		urls = append(urls, m[1])
	}
	return urls
}
