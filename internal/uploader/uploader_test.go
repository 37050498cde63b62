package uploader

import (
	"context"
	"strings"
	"testing"
	"time"

	"wavespeed2api/internal/config"
	"wavespeed2api/pkg/logger"
)

func TestObjectKey(t *testing.T) {
	key := objectKey([]byte("image-bytes"), "image/jpeg")

	wantPrefix := "images/" + time.Now().Format("200601") + "/"
	if !strings.HasPrefix(key, wantPrefix) {
		t.Errorf("key = %q, want prefix %q", key, wantPrefix)
	}
	if !strings.HasSuffix(key, ".jpg") {
		t.Errorf("key = %q, want .jpg suffix", key)
	}
}

func TestObjectKey_UnknownMimeFallsBackToPNG(t *testing.T) {
	key := objectKey([]byte("data"), "application/octet-stream")
	if !strings.HasSuffix(key, ".png") {
		t.Errorf("key = %q, want .png fallback", key)
	}
}

func TestObjectKey_UniquePerContent(t *testing.T) {
	a := objectKey([]byte("one"), "image/png")
	b := objectKey([]byte("two"), "image/png")
	if a == b {
		t.Errorf("keys for different content should differ, both = %q", a)
	}
}

func TestNew_DisabledWhenConfigIncomplete(t *testing.T) {
	up := New(&config.R2Config{
		Enabled:   true,
		AccountID: "acc",
		// 缺少密钥和桶配置。
	}, logger.New("test"))

	if up.Enabled() {
		t.Error("Enabled() = true, want disabled for incomplete config")
	}
}

func TestUploadFromURL_PassThroughWhenDisabled(t *testing.T) {
	up := New(&config.R2Config{Enabled: false}, logger.New("test"))

	url := "https://example.com/original.png"
	if got := up.UploadFromURL(context.Background(), url); got != url {
		t.Errorf("UploadFromURL() = %q, want original url", got)
	}
}

func TestUpload_ErrorWhenDisabled(t *testing.T) {
	up := New(&config.R2Config{Enabled: false}, logger.New("test"))

	if _, err := up.Upload(context.Background(), []byte("x"), "image/png"); err == nil {
		t.Error("Upload() error = nil, want error when disabled")
	}
}
