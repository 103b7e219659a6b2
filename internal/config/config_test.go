package config

import "testing"

func TestMaxContextTokensExactMatch(t *testing.T) {
	cfg := defaultConfig()
	cfg.Models["claude-opus-4-5"] = 250000

	if got := cfg.MaxContextTokens("claude-opus-4-5"); got != 250000 {
		t.Errorf("MaxContextTokens exact match = %d, want 250000", got)
	}
}

func TestMaxContextTokensPrefixMatch(t *testing.T) {
	cfg := defaultConfig()
	cfg.Models["claude-*"] = 190000
	cfg.Models["claude-opus-*"] = 250000

	if got := cfg.MaxContextTokens("claude-opus-4-5-20251101"); got != 250000 {
		t.Errorf("MaxContextTokens longest prefix = %d, want 250000", got)
	}
	if got := cfg.MaxContextTokens("claude-sonnet-4"); got != 190000 {
		t.Errorf("MaxContextTokens shorter prefix = %d, want 190000", got)
	}
}

func TestMaxContextTokensFallsBackToDefault(t *testing.T) {
	cfg := defaultConfig()
	if got := cfg.MaxContextTokens("unknown-model"); got != DefaultContextWindow {
		t.Errorf("MaxContextTokens fallback = %d, want %d", got, DefaultContextWindow)
	}
}

func TestMaxContextTokensNoDefaultKey(t *testing.T) {
	cfg := &Config{Models: map[string]int{}}
	if got := cfg.MaxContextTokens("anything"); got != DefaultContextWindow {
		t.Errorf("MaxContextTokens empty models = %d, want %d", got, DefaultContextWindow)
	}
}

func TestDiffDetectsMaxSessionsChange(t *testing.T) {
	old := defaultConfig()
	newCfg := defaultConfig()
	newCfg.Registry.MaxSessions = 200

	changes := Diff(old, newCfg)
	if len(changes) != 1 {
		t.Fatalf("Diff = %v, want 1 change", changes)
	}
}

func TestDiffUnchangedProducesNoEntries(t *testing.T) {
	old := defaultConfig()
	newCfg := defaultConfig()

	if changes := Diff(old, newCfg); len(changes) != 0 {
		t.Errorf("Diff of identical configs = %v, want none", changes)
	}
}

func TestDiffIgnoresSocketPath(t *testing.T) {
	old := defaultConfig()
	newCfg := defaultConfig()
	newCfg.Server.SocketPath = "/tmp/other.sock"

	if changes := Diff(old, newCfg); len(changes) != 0 {
		t.Errorf("Diff must not report socket_path changes, got %v", changes)
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault("/nonexistent/path/to/config.yaml")
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.Registry.MaxSessions != 100 {
		t.Errorf("LoadOrDefault() MaxSessions = %d, want 100", cfg.Registry.MaxSessions)
	}
}
