package types

import "fmt"

// Rate represents a rate in basis points (1 bp = 0.01%).
// Used for discount rates expressed as fixed-point fractions rather than
// floats, so auction comparisons and pricing math stay deterministic
// across platforms. Fraud scores are plain float64 values.
type Rate struct {
	BasisPoints int64 `json:"basis_points"`
}

// NewRate constructs a Rate from a percentage expressed as a float, rounding
// to the nearest basis point. Intended for literals in tests and config,
// not for hot-path arithmetic.
func NewRate(percent float64) Rate {
	return Rate{BasisPoints: int64(percent*100 + 0.5)}
}

// BP constructs a Rate directly from a basis-point count.
func BP(bp int64) Rate { return Rate{BasisPoints: bp} }

// Percent returns the rate as a percentage (6.0 for 600 bp).
func (r Rate) Percent() float64 { return float64(r.BasisPoints) / 100 }

// Fraction returns the rate as a fraction (0.06 for 600 bp).
func (r Rate) Fraction() float64 { return float64(r.BasisPoints) / 10000 }

func (r Rate) String() string { return fmt.Sprintf("%.2f%%", r.Percent()) }

// LessThan compares two rates by basis points.
func (r Rate) LessThan(other Rate) bool { return r.BasisPoints < other.BasisPoints }

// Between reports whether r falls within [lo, hi] inclusive.
func (r Rate) Between(lo, hi Rate) bool {
	return r.BasisPoints >= lo.BasisPoints && r.BasisPoints <= hi.BasisPoints
}
