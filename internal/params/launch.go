package params

import (
	"fmt"
	"math"

	"github.com/san-kum/dynopt/internal/dynamo"
)

// LaunchAngle sets the initial velocity direction, in degrees above the
// horizontal, at a fixed speed.
type LaunchAngle struct {
	Base
	Speed     float64
	XVelIndex int
	YVelIndex int
}

func (p *LaunchAngle) Apply(value float64, setup *Setup) error {
	if err := p.check(value); err != nil {
		return err
	}
	return setVelocity(setup, p.name, p.XVelIndex, p.YVelIndex, p.Speed, value)
}

// LaunchSpeed sets the initial speed at a fixed angle in degrees.
type LaunchSpeed struct {
	Base
	AngleDeg  float64
	XVelIndex int
	YVelIndex int
}

func (p *LaunchSpeed) Apply(value float64, setup *Setup) error {
	if err := p.check(value); err != nil {
		return err
	}
	return setVelocity(setup, p.name, p.XVelIndex, p.YVelIndex, value, p.AngleDeg)
}

func setVelocity(setup *Setup, name string, ix, iy int, speed, deg float64) error {
	n := len(setup.X0)
	if ix < 0 || ix >= n || iy < 0 || iy >= n {
		return fmt.Errorf("%w: %s: velocity indexes (%d, %d), state has %d components",
			dynamo.ErrDimensionMismatch, name, ix, iy, n)
	}
	rad := deg * math.Pi / 180
	setup.X0[ix] = speed * math.Cos(rad)
	setup.X0[iy] = speed * math.Sin(rad)
	return nil
}
