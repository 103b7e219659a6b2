package domain

import "fmt"

// TokenCount is a non-negative token counter. Arithmetic saturates at zero
// on the low end instead of wrapping or going negative.
type TokenCount int64

// Add returns t+other, never going negative (subtracting more than t holds
// saturates at zero).
func (t TokenCount) Add(other TokenCount) TokenCount {
	sum := t + other
	if sum < 0 {
		return 0
	}
	return sum
}

// Sub returns t-other, saturating at zero.
func (t TokenCount) Sub(other TokenCount) TokenCount {
	diff := t - other
	if diff < 0 {
		return 0
	}
	return diff
}

// Format renders the count with K/M suffixes, e.g. 5141 -> "5.1K", 200000 ->
// "200K", 1500000 -> "1.5M".
func (t TokenCount) Format() string {
	n := float64(t)
	switch {
	case n >= 1_000_000:
		return trimFloat(n/1_000_000) + "M"
	case n >= 1_000:
		return trimFloat(n/1_000) + "K"
	default:
		return fmt.Sprintf("%d", int64(t))
	}
}

// trimFloat formats a float with one decimal place, dropping the decimal
// entirely when it is .0 (so "5.0K" reads as "5K").
func trimFloat(f float64) string {
	rounded := fmt.Sprintf("%.1f", f)
	if len(rounded) >= 2 && rounded[len(rounded)-2:] == ".0" {
		return rounded[:len(rounded)-2]
	}
	return rounded
}
