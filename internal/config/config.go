// Package config loads the daemon's YAML configuration, grounded on the
// teacher's internal/config package: LoadOrDefault falls back to built-in
// defaults when no file is present, Diff describes safely reloadable
// changes between two configs, and non-reloadable fields (the socket path)
// require a full restart.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultContextWindow is the fallback context window size (in tokens) used
// when no model-specific entry or "default" key is found in the config.
const DefaultContextWindow = 200000

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Registry  RegistryConfig  `yaml:"registry"`
	Models    map[string]int  `yaml:"models"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Self      SelfConfig      `yaml:"self"`
}

// ServerConfig holds settings that require a full restart to apply.
type ServerConfig struct {
	SocketPath     string `yaml:"socket_path"`
	MaxConnections int    `yaml:"max_connections"`
}

type RegistryConfig struct {
	MaxSessions      int           `yaml:"max_sessions"`
	StaleThreshold   time.Duration `yaml:"stale_threshold"`
	CleanupInterval  time.Duration `yaml:"cleanup_interval"`
	MaxSessionAge    time.Duration `yaml:"max_session_age"`
	QueueCapacity    int           `yaml:"queue_capacity"`
	ToolHistoryLimit int           `yaml:"tool_history_limit"`
}

type DiscoveryConfig struct {
	Enabled         bool     `yaml:"enabled"`
	ExecutableNames []string `yaml:"executable_names"`
}

type SelfConfig struct {
	MetricsInterval time.Duration `yaml:"metrics_interval"`
	MemoryWarnMiB   int           `yaml:"memory_warn_mib"`
}

func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Server.SocketPath == "" {
		cfg.Server.SocketPath = defaultSocketPath()
	}
	return cfg, nil
}

// LoadOrDefault loads config from the given path, or returns the built-in
// defaults if path doesn't exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return defaultConfig(), nil
	}
	return Load(path)
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			SocketPath:     defaultSocketPath(),
			MaxConnections: 10,
		},
		Registry: RegistryConfig{
			MaxSessions:      100,
			StaleThreshold:   90 * time.Second,
			CleanupInterval:  30 * time.Second,
			MaxSessionAge:    24 * time.Hour,
			QueueCapacity:    100,
			ToolHistoryLimit: 50,
		},
		Models: map[string]int{
			"default": DefaultContextWindow,
		},
		Discovery: DiscoveryConfig{
			Enabled:         true,
			ExecutableNames: []string{"claude", "claude-code"},
		},
		Self: SelfConfig{
			MetricsInterval: 60 * time.Second,
			MemoryWarnMiB:   100,
		},
	}
}

// MaxContextTokens resolves the context window size for a model.
// Resolution order: exact match -> longest prefix match -> "default" key ->
// DefaultContextWindow. Config keys ending with "*" are treated as prefix
// patterns (e.g. "claude-*" matches "claude-opus-4-5-20251101"). The
// longest matching prefix wins.
func (c *Config) MaxContextTokens(model string) int {
	if n, ok := c.Models[model]; ok {
		return n
	}

	bestLen := 0
	bestVal := 0
	for key, val := range c.Models {
		if !strings.HasSuffix(key, "*") {
			continue
		}
		prefix := strings.TrimSuffix(key, "*")
		if strings.HasPrefix(model, prefix) && len(prefix) > bestLen {
			bestLen = len(prefix)
			bestVal = val
		}
	}
	if bestLen > 0 {
		return bestVal
	}

	if n, ok := c.Models["default"]; ok {
		return n
	}
	return DefaultContextWindow
}

func defaultConfigDir() string {
	if value := os.Getenv("XDG_CONFIG_HOME"); value != "" {
		return value
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".config")
}

// DefaultConfigPath returns the default XDG-compliant config file path,
// overridable via the ATM_CONFIG environment variable.
func DefaultConfigPath() string {
	if v := os.Getenv("ATM_CONFIG"); v != "" {
		return v
	}
	return filepath.Join(defaultConfigDir(), "atm", "config.yaml")
}

func defaultSocketPath() string {
	if v := os.Getenv("ATM_SOCKET"); v != "" {
		return v
	}
	return "/tmp/atm.sock"
}

// Diff compares two configs and returns human-readable descriptions of what
// changed. Only sections that are safe to reload at runtime are compared
// (models, registry ceilings, discovery, self-metrics). Server.SocketPath
// is intentionally excluded -- it is not reloadable.
func Diff(old, new *Config) []string {
	var changes []string

	for k, v := range new.Models {
		if ov, ok := old.Models[k]; !ok {
			changes = append(changes, fmt.Sprintf("models: added %s=%d", k, v))
		} else if ov != v {
			changes = append(changes, fmt.Sprintf("models: %s changed %d -> %d", k, ov, v))
		}
	}
	for k := range old.Models {
		if _, ok := new.Models[k]; !ok {
			changes = append(changes, fmt.Sprintf("models: removed %s", k))
		}
	}

	if old.Registry.MaxSessions != new.Registry.MaxSessions {
		changes = append(changes, fmt.Sprintf("registry.max_sessions: %d -> %d", old.Registry.MaxSessions, new.Registry.MaxSessions))
	}
	if old.Registry.StaleThreshold != new.Registry.StaleThreshold {
		changes = append(changes, fmt.Sprintf("registry.stale_threshold: %s -> %s", old.Registry.StaleThreshold, new.Registry.StaleThreshold))
	}
	if old.Registry.CleanupInterval != new.Registry.CleanupInterval {
		changes = append(changes, fmt.Sprintf("registry.cleanup_interval: %s -> %s", old.Registry.CleanupInterval, new.Registry.CleanupInterval))
	}
	if old.Registry.MaxSessionAge != new.Registry.MaxSessionAge {
		changes = append(changes, fmt.Sprintf("registry.max_session_age: %s -> %s", old.Registry.MaxSessionAge, new.Registry.MaxSessionAge))
	}
	if old.Registry.QueueCapacity != new.Registry.QueueCapacity {
		changes = append(changes, fmt.Sprintf("registry.queue_capacity: %d -> %d", old.Registry.QueueCapacity, new.Registry.QueueCapacity))
	}
	if old.Registry.ToolHistoryLimit != new.Registry.ToolHistoryLimit {
		changes = append(changes, fmt.Sprintf("registry.tool_history_limit: %d -> %d", old.Registry.ToolHistoryLimit, new.Registry.ToolHistoryLimit))
	}

	if old.Discovery.Enabled != new.Discovery.Enabled {
		changes = append(changes, fmt.Sprintf("discovery.enabled: %v -> %v", old.Discovery.Enabled, new.Discovery.Enabled))
	}
	if !slices.Equal(old.Discovery.ExecutableNames, new.Discovery.ExecutableNames) {
		changes = append(changes, fmt.Sprintf("discovery.executable_names: %v -> %v", old.Discovery.ExecutableNames, new.Discovery.ExecutableNames))
	}

	if old.Self.MetricsInterval != new.Self.MetricsInterval {
		changes = append(changes, fmt.Sprintf("self.metrics_interval: %s -> %s", old.Self.MetricsInterval, new.Self.MetricsInterval))
	}
	if old.Self.MemoryWarnMiB != new.Self.MemoryWarnMiB {
		changes = append(changes, fmt.Sprintf("self.memory_warn_mib: %d -> %d", old.Self.MemoryWarnMiB, new.Self.MemoryWarnMiB))
	}

	return changes
}
