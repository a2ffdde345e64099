// README: Common value objects used across modules.
package types

import "math"

type ID string

// Money holds an amount in minor units (paise for INR).
type Money struct {
	Amount   int64
	Currency string
}

// MinorUnits converts a major-unit amount to minor units, rounding half away from zero.
func MinorUnits(v float64) int64 {
	return int64(math.Round(v * 100))
}

// Major returns the amount in major units for presentation.
func (m Money) Major() float64 {
	return float64(m.Amount) / 100
}
