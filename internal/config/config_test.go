package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("STAGE_POLICY", "")
	t.Setenv("HISTORY_LIMIT", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.StagePolicy != "turn" {
		t.Fatalf("expected default stage policy, got %s", cfg.StagePolicy)
	}
	if cfg.HistoryLimit != 10 {
		t.Fatalf("expected default history limit, got %d", cfg.HistoryLimit)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Fatalf("expected default session ttl, got %s", cfg.SessionTTL)
	}
	if cfg.OpenAIModel != "gpt-4" {
		t.Fatalf("expected default model, got %s", cfg.OpenAIModel)
	}
	if cfg.TelegramAPIBaseURL != "https://api.telegram.org" {
		t.Fatalf("expected default telegram base url, got %s", cfg.TelegramAPIBaseURL)
	}
	if len(cfg.BannedTopics) != 0 {
		t.Fatalf("expected no banned topics by default, got %v", cfg.BannedTopics)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("ENV", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STAGE_POLICY", "Reply")
	t.Setenv("HISTORY_LIMIT", "6")
	t.Setenv("SESSION_TTL", "45m")
	t.Setenv("OPENAI_TIMEOUT", "10s")
	t.Setenv("WORKER_COUNT", "4")
	t.Setenv("BANNED_TOPICS", "оплата, карта ,,")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	cfg := Load()
	if cfg.Port != "3000" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.StagePolicy != "reply" {
		t.Fatalf("expected normalized stage policy, got %s", cfg.StagePolicy)
	}
	if cfg.HistoryLimit != 6 {
		t.Fatalf("expected history limit override, got %d", cfg.HistoryLimit)
	}
	if cfg.SessionTTL != 45*time.Minute {
		t.Fatalf("expected session ttl override, got %s", cfg.SessionTTL)
	}
	if cfg.OpenAITimeout != 10*time.Second {
		t.Fatalf("expected openai timeout override, got %s", cfg.OpenAITimeout)
	}
	if cfg.WorkerCount != 4 {
		t.Fatalf("expected worker count override, got %d", cfg.WorkerCount)
	}
	if len(cfg.BannedTopics) != 2 || cfg.BannedTopics[0] != "оплата" || cfg.BannedTopics[1] != "карта" {
		t.Fatalf("expected trimmed banned topics, got %v", cfg.BannedTopics)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
}

func TestLoadBadValuesFallBack(t *testing.T) {
	t.Setenv("HISTORY_LIMIT", "ten")
	t.Setenv("SESSION_TTL", "soon")
	cfg := Load()
	if cfg.HistoryLimit != 10 {
		t.Fatalf("expected fallback history limit, got %d", cfg.HistoryLimit)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Fatalf("expected fallback session ttl, got %s", cfg.SessionTTL)
	}
}
