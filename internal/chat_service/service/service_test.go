package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"wavespeed2api/internal/config"
	"wavespeed2api/internal/uploader"
	"wavespeed2api/pkg/logger"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("wavespeed:\n  cookies: [\"c\"]\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	mgr, err := config.NewManager(path)
	if err != nil {
		t.Fatalf("config.NewManager() error = %v", err)
	}
	log := logger.New("test")
	up := uploader.New(&config.R2Config{Enabled: false}, log)
	return NewService(mgr, nil, up, nil, log)
}

func userMessage(content string) []openai.ChatCompletionMessage {
	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: content},
	}
}

func TestPrepare_NoPrompt(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Prepare(context.Background(), "wavespeed-ai/z-image/turbo", nil)
	if !errors.Is(err, ErrNoPrompt) {
		t.Errorf("Prepare() error = %v, want ErrNoPrompt", err)
	}
}

func TestPrepare_DefaultSize(t *testing.T) {
	svc := newTestService(t)

	gen, err := svc.Prepare(context.Background(), "wavespeed-ai/z-image/turbo", userMessage("a cat"))
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if gen.Opts.Size != "1536*1536" {
		t.Errorf("size = %q, want default 1536*1536", gen.Opts.Size)
	}
}

func TestPrepare_SizeFromTags(t *testing.T) {
	svc := newTestService(t)

	gen, err := svc.Prepare(context.Background(), "wavespeed-ai/z-image/turbo",
		userMessage("a cat <width:980> <height:1280>"))
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if gen.Opts.Size != "980*1280" {
		t.Errorf("size = %q, want 980*1280", gen.Opts.Size)
	}
	if gen.Prompt != "a cat" {
		t.Errorf("prompt = %q, want cleaned", gen.Prompt)
	}
}

func TestPrepare_PartialSizeTags(t *testing.T) {
	svc := newTestService(t)

	// 只给宽或高时, 缺失的维度补默认值。
	cases := []struct {
		prompt string
		want   string
	}{
		{"a cat <width:980>", "980*1536"},
		{"a cat <height:1280>", "1536*1280"},
	}
	for _, tc := range cases {
		gen, err := svc.Prepare(context.Background(), "wavespeed-ai/z-image/turbo", userMessage(tc.prompt))
		if err != nil {
			t.Fatalf("Prepare(%q) error = %v", tc.prompt, err)
		}
		if gen.Opts.Size != tc.want {
			t.Errorf("Prepare(%q) size = %q, want %q", tc.prompt, gen.Opts.Size, tc.want)
		}
	}
}

func TestPrepare_LoraGating(t *testing.T) {
	svc := newTestService(t)
	msg := userMessage("a cat <lora:style:0.5>")

	gen, err := svc.Prepare(context.Background(), "wavespeed-ai/flux-dev-lora", msg)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if len(gen.Opts.Loras) != 1 {
		t.Errorf("loras = %v, want kept for lora model", gen.Opts.Loras)
	}

	gen, err = svc.Prepare(context.Background(), "wavespeed-ai/flux-dev", msg)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if len(gen.Opts.Loras) != 0 {
		t.Errorf("loras = %v, want dropped for plain model", gen.Opts.Loras)
	}
}

func TestPrepare_ImagesOnlyForEditModels(t *testing.T) {
	svc := newTestService(t)
	msg := userMessage("fix it ![src](https://example.com/src.png)")

	gen, err := svc.Prepare(context.Background(), "wavespeed-ai/qwen-image/edit", msg)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	// R2 关闭时源图片原样透传。
	if len(gen.Opts.Images) != 1 || gen.Opts.Images[0] != "https://example.com/src.png" {
		t.Errorf("images = %v", gen.Opts.Images)
	}

	gen, err = svc.Prepare(context.Background(), "wavespeed-ai/z-image/turbo", msg)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if len(gen.Opts.Images) != 0 {
		t.Errorf("images = %v, want none for non-edit model", gen.Opts.Images)
	}
}

func TestMarkdown(t *testing.T) {
	got := Markdown("https://img/x.png")
	if got != "![image](https://img/x.png)" {
		t.Errorf("Markdown() = %q", got)
	}
}

func TestUsage_CountsRunes(t *testing.T) {
	u := Usage("雪地里的猫", "![image](u)")
	if u.PromptTokens != 5 {
		t.Errorf("prompt tokens = %d, want 5 runes", u.PromptTokens)
	}
	if u.TotalTokens != u.PromptTokens+u.CompletionTokens {
		t.Errorf("usage = %+v", u)
	}
}
