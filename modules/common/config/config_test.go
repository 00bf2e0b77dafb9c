package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("ENGINE_ADDRESS", "")
	t.Setenv("COMFYUI_SERVER_ADDRESS", "")
	t.Setenv("PREVIEW_FORMAT", "")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.EngineAddress != "localhost:8188" {
		t.Fatalf("engine address = %q", cfg.EngineAddress)
	}
	if cfg.Port != "5000" {
		t.Fatalf("port = %q", cfg.Port)
	}
	if cfg.PreviewMaxSize != 256 || cfg.PreviewFormat != "webp" {
		t.Fatalf("preview defaults = %d %s", cfg.PreviewMaxSize, cfg.PreviewFormat)
	}
	if cfg.RedisEnabled() || cfg.ArchiveEnabled() {
		t.Fatalf("optional integrations should be disabled by default")
	}
}

func TestFromEnvLegacyAddressAndKeys(t *testing.T) {
	t.Setenv("ENGINE_ADDRESS", "")
	t.Setenv("COMFYUI_SERVER_ADDRESS", "gpu-box:8188")
	t.Setenv("GEMINI_API_KEYS", " a , ,b")
	t.Setenv("LIVE_PREVIEW_INTERVAL", "2s")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.EngineAddress != "gpu-box:8188" {
		t.Fatalf("engine address = %q", cfg.EngineAddress)
	}
	if len(cfg.GeminiAPIKeys) != 2 || cfg.GeminiAPIKeys[0] != "a" || cfg.GeminiAPIKeys[1] != "b" {
		t.Fatalf("keys = %v", cfg.GeminiAPIKeys)
	}
	if cfg.LivePreviewInterval != 2*time.Second {
		t.Fatalf("interval = %v", cfg.LivePreviewInterval)
	}
}

func TestFromEnvRejectsHalfSupabase(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://x.supabase.co")
	t.Setenv("SUPABASE_SERVICE_KEY", "")

	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error when only SUPABASE_URL is set")
	}
}

func TestFromEnvRejectsUnknownPreviewFormat(t *testing.T) {
	t.Setenv("PREVIEW_FORMAT", "gif")
	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error for gif preview format")
	}
}
