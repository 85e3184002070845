package params

import (
	"fmt"
	"math"
)

// Limits is a closed interval. Either side may be infinite.
type Limits struct {
	Lower float64 `yaml:"lower" json:"lower"`
	Upper float64 `yaml:"upper" json:"upper"`
}

func Unbounded() Limits {
	return Limits{Lower: math.Inf(-1), Upper: math.Inf(1)}
}

func (l Limits) Validate() error {
	if math.IsNaN(l.Lower) || math.IsNaN(l.Upper) {
		return fmt.Errorf("%w: NaN bound", ErrInvalidLimits)
	}
	if l.Lower > l.Upper {
		return fmt.Errorf("%w: lower %g > upper %g", ErrInvalidLimits, l.Lower, l.Upper)
	}
	return nil
}

func (l Limits) Contains(v float64) bool {
	return v >= l.Lower && v <= l.Upper
}

// Within reports whether l is a subset of outer.
func (l Limits) Within(outer Limits) bool {
	return l.Lower >= outer.Lower && l.Upper <= outer.Upper
}

func (l Limits) Clamp(v float64) float64 {
	return math.Max(l.Lower, math.Min(l.Upper, v))
}

// Bounded reports whether both ends are finite.
func (l Limits) Bounded() bool {
	return !math.IsInf(l.Lower, 0) && !math.IsInf(l.Upper, 0)
}

func (l Limits) Width() float64 {
	return l.Upper - l.Lower
}

func (l Limits) String() string {
	return fmt.Sprintf("[%g, %g]", l.Lower, l.Upper)
}
