// Package discovery enumerates agent processes by scanning the OS process
// table, per §4.9. It never touches the registry directly; callers turn
// its output into registry.DiscoveredSession records and submit them via
// Registry.Discover.
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Candidate is one process that looks like an agent session.
type Candidate struct {
	PID        int
	WorkingDir string
}

// DefaultExecutableNames is the set of executable basenames treated as an agent
// process. Configurable because the agent's packaging has changed its
// binary name before.
var DefaultExecutableNames = []string{"claude", "claude-code"}

// Scan walks /proc, returning one Candidate per process whose executable
// matches one of execNames. Processes whose cwd cannot be read (exited
// mid-scan, permission denied) are silently skipped -- this is a best
// effort snapshot, not a transactional one.
func Scan(execNames []string) ([]Candidate, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, fmt.Errorf("discovery: reading /proc: %w", err)
	}

	names := make(map[string]bool, len(execNames))
	for _, n := range execNames {
		names[n] = true
	}

	var found []Candidate
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		cmdline, err := os.ReadFile(fmt.Sprintf("/proc/%d/cmdline", pid))
		if err != nil {
			continue
		}
		if !isAgentProcess(string(cmdline), names) {
			continue
		}
		cwd, err := os.Readlink(fmt.Sprintf("/proc/%d/cwd", pid))
		if err != nil {
			continue
		}
		found = append(found, Candidate{PID: pid, WorkingDir: cwd})
	}
	return found, nil
}

// isAgentProcess matches the process's argv[0] basename against names, and
// additionally matches a node process whose arguments mention an agent
// entry point (the agent commonly ships as a node script).
func isAgentProcess(cmdline string, names map[string]bool) bool {
	parts := strings.Split(cmdline, "\x00")
	if len(parts) == 0 || parts[0] == "" {
		return false
	}
	exe := filepath.Base(parts[0])
	if names[exe] {
		return true
	}
	if exe == "node" {
		for _, part := range parts[1:] {
			for name := range names {
				if strings.Contains(part, name) && !strings.Contains(part, "node_modules/.bin") {
					return true
				}
			}
		}
	}
	return false
}
