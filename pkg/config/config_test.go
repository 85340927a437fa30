package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_BOT_TOKEN", "test-token")
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("ASSISTANT_ID", "asst_123")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Sessions.LifetimeHours != 24 {
		t.Fatalf("LifetimeHours = %d, want 24", cfg.Sessions.LifetimeHours)
	}
	if cfg.Access.Users != "*" {
		t.Fatalf("Users = %q, want %q", cfg.Access.Users, "*")
	}
	if cfg.Access.AllowedChats != "*" {
		t.Fatalf("AllowedChats = %q, want %q", cfg.Access.AllowedChats, "*")
	}
	if cfg.Limits.MaxMessageLength != 10000 {
		t.Fatalf("MaxMessageLength = %d, want 10000", cfg.Limits.MaxMessageLength)
	}
	if !cfg.Sanitize.RemoveChunkMarkers {
		t.Fatal("RemoveChunkMarkers = false, want true")
	}
	if len(cfg.Sanitize.RemoveChunksForFiles) != 1 || cfg.Sanitize.RemoveChunksForFiles[0] != "links.txt" {
		t.Fatalf("RemoveChunksForFiles = %v, want [links.txt]", cfg.Sanitize.RemoveChunksForFiles)
	}
	if cfg.Access.RejectionNotices {
		t.Fatal("RejectionNotices = true, want false by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("THREAD_LIFETIME_HOURS", "48")
	t.Setenv("ASSISTANT_TIMEOUT", "30")
	t.Setenv("RATE_LIMIT_MESSAGES", "5")
	t.Setenv("RATE_LIMIT_WINDOW", "10")
	t.Setenv("USERS", "alice, bob")
	t.Setenv("REMOVE_CHUNKS_FOR_FILES", "a.txt, b.txt")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.SessionLifetime() != 48*time.Hour {
		t.Fatalf("SessionLifetime = %v, want 48h", cfg.SessionLifetime())
	}
	if cfg.AssistantTimeout() != 30*time.Second {
		t.Fatalf("AssistantTimeout = %v, want 30s", cfg.AssistantTimeout())
	}
	if cfg.RateWindow() != 10*time.Second {
		t.Fatalf("RateWindow = %v, want 10s", cfg.RateWindow())
	}
	if len(cfg.Sanitize.RemoveChunksForFiles) != 2 {
		t.Fatalf("RemoveChunksForFiles = %v, want 2 entries", cfg.Sanitize.RemoveChunksForFiles)
	}
}

func TestLoadMissingToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("ASSISTANT_ID", "asst_123")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing TELEGRAM_BOT_TOKEN")
	}
}

func TestValidateRejectsBadLimits(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MAX_MESSAGE_LENGTH", "-1")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for negative MAX_MESSAGE_LENGTH")
	}
}

func TestParseCSV(t *testing.T) {
	got := ParseCSV(" a ,, b ,c,")
	if len(got) != 3 {
		t.Fatalf("ParseCSV len = %d, want 3", len(got))
	}
	if got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("ParseCSV = %v, want [a b c]", got)
	}
}
