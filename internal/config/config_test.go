package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: \"9090\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %q", cfg.Server.Port)
	}
	if cfg.Chat.HistoryLimit != 10 {
		t.Errorf("expected history limit 10, got %d", cfg.Chat.HistoryLimit)
	}
	if cfg.Chat.RecentEntriesLimit != 5 {
		t.Errorf("expected recent entries limit 5, got %d", cfg.Chat.RecentEntriesLimit)
	}
	if cfg.Chat.TitleMaxTokens != 20 || cfg.Chat.TitleTemperature != 0.3 {
		t.Errorf("unexpected title settings: %d %v", cfg.Chat.TitleMaxTokens, cfg.Chat.TitleTemperature)
	}
	if cfg.Chat.DefaultTitle != "New Chat" || cfg.Chat.DefaultName != "friend" {
		t.Errorf("unexpected chat defaults: %q %q", cfg.Chat.DefaultTitle, cfg.Chat.DefaultName)
	}
	if cfg.LLM.Analysis.Temperature != 0.1 {
		t.Errorf("expected analysis temperature 0.1, got %v", cfg.LLM.Analysis.Temperature)
	}
	if len(cfg.Server.PublicPaths) == 0 || cfg.Server.PublicPaths[0] != "/" {
		t.Errorf("expected default public paths, got %v", cfg.Server.PublicPaths)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "llm:\n  api_key: \"from-file\"\n")
	t.Setenv("JOURNAL_LLM_API_KEY", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.APIKey != "from-env" {
		t.Errorf("expected env override, got %q", cfg.LLM.APIKey)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestTurnLockTTLCoversTwoLLMCalls(t *testing.T) {
	tests := []struct {
		name       string
		lockTTL    int
		llmTimeout int
		want       time.Duration
	}{
		{name: "configured below two calls", lockTTL: 120, llmTimeout: 120, want: 270 * time.Second},
		{name: "configured above floor", lockTTL: 600, llmTimeout: 120, want: 600 * time.Second},
		{name: "unset", lockTTL: 0, llmTimeout: 60, want: 150 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Chat: ChatConfig{TurnLockTTLSeconds: tt.lockTTL}, LLM: LLMConfig{TimeoutSeconds: tt.llmTimeout}}
			if got := cfg.TurnLockTTL(); got != tt.want {
				t.Errorf("TurnLockTTL() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadedDefaultsGiveSafeTurnLock(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: \"9090\"\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if calls := time.Duration(2*cfg.LLM.TimeoutSeconds) * time.Second; cfg.TurnLockTTL() <= calls {
		t.Errorf("turn lock %v does not outlive two LLM calls (%v)", cfg.TurnLockTTL(), calls)
	}
}
