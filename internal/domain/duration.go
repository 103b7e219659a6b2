package domain

import (
	"fmt"
	"time"
)

// SessionDuration splits a session's wall-clock time into total elapsed time
// and time actually spent waiting on the model API. The difference is
// overhead (tool execution, user think time, etc).
type SessionDuration struct {
	TotalMs int64
	APIMs   int64
}

// OverheadMs returns TotalMs - APIMs, floored at zero so a client reporting
// APIMs slightly ahead of TotalMs (a benign race between two counters
// updated independently) never displays a negative overhead.
func (d SessionDuration) OverheadMs() int64 {
	o := d.TotalMs - d.APIMs
	if o < 0 {
		return 0
	}
	return o
}

// Display renders the total duration as a short human string, e.g. "35s" or
// "2m5s".
func (d SessionDuration) Display() string {
	total := time.Duration(d.TotalMs) * time.Millisecond
	if total < time.Minute {
		return fmt.Sprintf("%ds", int(total.Seconds()))
	}
	m := int(total.Minutes())
	s := int(total.Seconds()) - m*60
	return fmt.Sprintf("%dm%ds", m, s)
}
