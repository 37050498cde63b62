package store

import (
	"context"
	"strings"
	"testing"

	"wavespeed2api/internal/models"
	"wavespeed2api/internal/wavespeed"
)

func TestKey_EmptyWithoutSeed(t *testing.T) {
	if key := Key("m", wavespeed.TaskOptions{Prompt: "p"}); key != "" {
		t.Errorf("Key() = %q, want empty without a pinned seed", key)
	}

	neg := -1
	if key := Key("m", wavespeed.TaskOptions{Prompt: "p", Seed: &neg}); key != "" {
		t.Errorf("Key() = %q, want empty for negative seed", key)
	}
}

func TestKey_Deterministic(t *testing.T) {
	seed := 42
	opts := wavespeed.TaskOptions{
		Prompt: "a cat",
		Size:   "1024*1024",
		Seed:   &seed,
		Loras:  []models.LoRA{{Path: "style", Scale: 0.8}},
	}

	a := Key("wavespeed-ai/flux-dev-lora", opts)
	b := Key("wavespeed-ai/flux-dev-lora", opts)
	if a == "" || a != b {
		t.Errorf("Key() not deterministic: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, keyPrefix) {
		t.Errorf("Key() = %q, want prefix %q", a, keyPrefix)
	}
}

func TestKey_SensitiveToParams(t *testing.T) {
	seed := 42
	base := wavespeed.TaskOptions{Prompt: "a cat", Size: "1024*1024", Seed: &seed}

	variant := base
	variant.Prompt = "a dog"
	if Key("m", base) == Key("m", variant) {
		t.Error("keys should differ for different prompts")
	}

	otherSeed := 43
	variant = base
	variant.Seed = &otherSeed
	if Key("m", base) == Key("m", variant) {
		t.Error("keys should differ for different seeds")
	}

	if Key("m1", base) == Key("m2", base) {
		t.Error("keys should differ for different models")
	}
}

func TestNilCacheIsSafe(t *testing.T) {
	var cache *ResultCache

	if url := cache.Get(context.Background(), "some-key"); url != "" {
		t.Errorf("nil cache Get() = %q, want empty", url)
	}
	// Set 在 nil 缓存上必须是空操作。
	cache.Set(context.Background(), "some-key", "https://img/x.png")
}
