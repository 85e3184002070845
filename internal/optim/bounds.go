package optim

import (
	"math"
)

// boundMargin keeps the starting point off the flat ends of the sine map,
// where the gradient with respect to the internal variable vanishes.
const boundMargin = 1e-4

type boundKind int

const (
	boundNone boundKind = iota
	boundLower
	boundUpper
	boundBoth
	boundFixed
)

// boxTransform maps an unconstrained internal vector y to a point x inside
// [lower, upper], so an unconstrained optimizer can search the box.
type boxTransform struct {
	lower, upper []float64
	kinds        []boundKind
}

func newBoxTransform(lower, upper []float64) *boxTransform {
	kinds := make([]boundKind, len(lower))
	for i := range lower {
		lo, hi := !math.IsInf(lower[i], -1), !math.IsInf(upper[i], 1)
		switch {
		case lo && hi && lower[i] == upper[i]:
			kinds[i] = boundFixed
		case lo && hi:
			kinds[i] = boundBoth
		case lo:
			kinds[i] = boundLower
		case hi:
			kinds[i] = boundUpper
		}
	}
	return &boxTransform{lower: lower, upper: upper, kinds: kinds}
}

func (b *boxTransform) toExternal(y []float64) []float64 {
	x := make([]float64, len(y))
	for i, v := range y {
		l, u := b.lower[i], b.upper[i]
		switch b.kinds[i] {
		case boundBoth:
			x[i] = l + (u-l)*(math.Sin(v)+1)/2
		case boundLower:
			x[i] = l - 1 + math.Sqrt(v*v+1)
		case boundUpper:
			x[i] = u + 1 - math.Sqrt(v*v+1)
		case boundFixed:
			x[i] = l
		default:
			x[i] = v
		}
		if b.kinds[i] != boundNone {
			x[i] = math.Max(l, math.Min(u, x[i]))
		}
	}
	return x
}

func (b *boxTransform) toInternal(x []float64) []float64 {
	y := make([]float64, len(x))
	for i, v := range x {
		l, u := b.lower[i], b.upper[i]
		switch b.kinds[i] {
		case boundBoth:
			r := 2*(v-l)/(u-l) - 1
			r = math.Max(-1+boundMargin, math.Min(1-boundMargin, r))
			y[i] = math.Asin(r)
		case boundLower:
			d := math.Max(v-l, boundMargin)
			y[i] = math.Sqrt((d+1)*(d+1) - 1)
		case boundUpper:
			d := math.Max(u-v, boundMargin)
			y[i] = math.Sqrt((d+1)*(d+1) - 1)
		case boundFixed:
			y[i] = 0
		default:
			y[i] = v
		}
	}
	return y
}
