// Package selfmetrics periodically samples the daemon's own process for
// RSS and CPU usage. It never touches the registry or any connection -- it
// only reads its own pid's stats, so it can never become a source of
// contention for the rest of the daemon.
package selfmetrics

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

const bytesPerMiB = 1024 * 1024

// Sampler owns a ticker that logs the daemon's own memory and CPU usage.
type Sampler struct {
	interval   time.Duration
	memWarnMiB int
	proc       *process.Process
}

// New constructs a Sampler for the current process. It returns an error
// only if gopsutil cannot open a handle on our own pid, which should not
// happen on a supported platform.
func New(interval time.Duration, memWarnMiB int) (*Sampler, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &Sampler{
		interval:   interval,
		memWarnMiB: memWarnMiB,
		proc:       p,
	}, nil
}

// Run samples on every tick until ctx is done. It is meant to be run in its
// own goroutine; it returns when ctx is canceled.
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sample()
		}
	}
}

func (s *Sampler) sample() {
	rssMiB, cpuPercent, err := s.readSelf()
	if err != nil {
		log.Printf("selfmetrics: sample failed: %v", err)
		return
	}
	sysAvailableMiB := s.readSystemAvailable()

	log.Printf("selfmetrics: rss=%.1fMiB cpu=%.1f%% sys_available=%.1fMiB", rssMiB, cpuPercent, sysAvailableMiB)
	if msg, warn := warnMessage(rssMiB, s.memWarnMiB); warn {
		log.Printf("selfmetrics: %s", msg)
	}
}

// warnMessage reports whether rssMiB exceeds memWarnMiB (a threshold of 0
// disables the warning) and the message to log when it does.
func warnMessage(rssMiB float64, memWarnMiB int) (string, bool) {
	if memWarnMiB <= 0 || rssMiB <= float64(memWarnMiB) {
		return "", false
	}
	return fmt.Sprintf("WARN rss %.1fMiB exceeds memory_warn_mib %d", rssMiB, memWarnMiB), true
}

func (s *Sampler) readSelf() (rssMiB float64, cpuPercent float64, err error) {
	info, err := s.proc.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err = s.proc.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return float64(info.RSS) / bytesPerMiB, cpuPercent, nil
}

func (s *Sampler) readSystemAvailable() float64 {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0
	}
	return float64(vm.Available) / bytesPerMiB
}
