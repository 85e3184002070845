package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/dynopt/internal/dynamo"
)

// Projectile state layout: [x, y, vx, vy].
const (
	ProjectileX = iota
	ProjectileY
	ProjectileVX
	ProjectileVY
)

type Projectile struct {
	Mass    float64
	Gravity float64
	// Drag is the quadratic drag coefficient: F = -Drag*|v|*v.
	Drag float64
}

func NewProjectile() *Projectile {
	return &Projectile{
		Mass:    DefaultMass,
		Gravity: DefaultGravity,
	}
}

func (p *Projectile) StateDim() int   { return 4 }
func (p *Projectile) ControlDim() int { return 0 }

func (p *Projectile) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	vx, vy := x[ProjectileVX], x[ProjectileVY]

	k := 0.0
	if p.Drag != 0 {
		k = p.Drag / p.Mass * math.Hypot(vx, vy)
	}

	return dynamo.State{vx, vy, -k * vx, -p.Gravity - k*vy}
}

func (p *Projectile) Energy(x dynamo.State) float64 {
	vx, vy := x[ProjectileVX], x[ProjectileVY]
	return 0.5*p.Mass*(vx*vx+vy*vy) + p.Mass*p.Gravity*x[ProjectileY]
}

func (p *Projectile) GetParams() map[string]float64 {
	return map[string]float64{
		"mass":    p.Mass,
		"gravity": p.Gravity,
		"drag":    p.Drag,
	}
}

func (p *Projectile) SetParam(name string, value float64) error {
	switch name {
	case "mass":
		if value <= 0 {
			return fmt.Errorf("%w: mass must be positive, got %g", dynamo.ErrParameterBounds, value)
		}
		p.Mass = value
	case "gravity":
		p.Gravity = value
	case "drag":
		if value < 0 {
			return fmt.Errorf("%w: drag cannot be negative, got %g", dynamo.ErrParameterBounds, value)
		}
		p.Drag = value
	default:
		return fmt.Errorf("%w: %s", dynamo.ErrUnknownParameter, name)
	}
	return nil
}
