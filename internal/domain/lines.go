package domain

import "fmt"

// LinesChanged accumulates line-level diff counters for a session.
type LinesChanged struct {
	Added   int64
	Removed int64
}

// Net returns Added - Removed (may be negative).
func (l LinesChanged) Net() int64 { return l.Added - l.Removed }

// Churn returns Added + Removed, a measure of total edit volume regardless
// of direction.
func (l LinesChanged) Churn() int64 { return l.Added + l.Removed }

// Display renders e.g. "+150 -30".
func (l LinesChanged) Display() string {
	return fmt.Sprintf("+%d -%d", l.Added, l.Removed)
}
