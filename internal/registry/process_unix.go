package registry

import (
	"os"
	"strconv"
)

// checkProcessAlive reports whether pid still has a /proc entry. This
// mirrors the discovery package's own process-table scan but only needs a
// single stat, not a full directory walk.
func checkProcessAlive(pid int) bool {
	_, err := os.Stat("/proc/" + strconv.Itoa(pid))
	return err == nil
}
