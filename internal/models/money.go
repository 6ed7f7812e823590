package models

import "fmt"

// Cents is a fixed-point currency amount in whole cents. Fine math stays in
// integer cents end to end; amounts are only formatted as "D.CC" strings at
// the API boundary, so equality comparisons during reconciliation are exact.
type Cents int64

// String formats the amount with exactly two decimal places, e.g. 125 -> "1.25".
func (c Cents) String() string {
	if c < 0 {
		return fmt.Sprintf("-%d.%02d", -c/100, -c%100)
	}
	return fmt.Sprintf("%d.%02d", c/100, c%100)
}
