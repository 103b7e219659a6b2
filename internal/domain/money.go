package domain

import (
	"encoding/json"
	"fmt"
	"math"
)

// Money is a signed amount in microdollars (1 USD = 1,000,000 microdollars).
// Cost accumulates over thousands of tiny increments from many short-lived
// clients; storing it as a scaled integer and converting to decimal only at
// serialization removes every reported floating-point drift class a
// float64 accumulator would otherwise introduce.
type Money int64

const microdollarsPerUSD = 1_000_000

// USD constructs a Money value from a decimal USD amount.
func USD(dollars float64) Money {
	return Money(math.Round(dollars * microdollarsPerUSD))
}

// Add returns m+other, saturating at the int64 bounds instead of wrapping.
func (m Money) Add(other Money) Money {
	sum := int64(m) + int64(other)
	if (other > 0 && sum < int64(m)) || (other < 0 && sum > int64(m)) {
		if other > 0 {
			return Money(math.MaxInt64)
		}
		return Money(math.MinInt64)
	}
	return Money(sum)
}

// USD returns the decimal USD value, for display and JSON serialization only
// -- never as an accumulator.
func (m Money) USD() float64 {
	return float64(m) / microdollarsPerUSD
}

// Display renders the amount as "$0.35".
func (m Money) Display() string {
	return fmt.Sprintf("$%.2f", m.USD())
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.USD())
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*m = USD(f)
	return nil
}
