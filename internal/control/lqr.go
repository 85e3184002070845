package control

import (
	"fmt"

	"github.com/san-kum/dynopt/internal/dynamo"
)

// LQR applies u = -K (x - target).
type LQR struct {
	K      [][]float64
	Target dynamo.State
}

func NewLQR(k [][]float64, target dynamo.State) *LQR {
	return &LQR{K: k, Target: target}
}

func NewPendulumLQR() *LQR {
	return NewLQR([][]float64{{31.62, 10.0}}, dynamo.State{0, 0})
}

func NewSpringMassLQR() *LQR {
	return NewLQR([][]float64{{10.0, 6.32}}, dynamo.State{0, 0})
}

func (l *LQR) Compute(x dynamo.State, t float64) dynamo.Control {
	u := make(dynamo.Control, len(l.K))
	for i := range u {
		for j := range x {
			target := 0.0
			if j < len(l.Target) {
				target = l.Target[j]
			}
			if j < len(l.K[i]) {
				u[i] -= l.K[i][j] * (x[j] - target)
			}
		}
	}
	return u
}

// GetParams exposes each gain as "k<row>_<col>".
func (l *LQR) GetParams() map[string]float64 {
	out := make(map[string]float64)
	for i, row := range l.K {
		for j, k := range row {
			out[gainKey(i, j)] = k
		}
	}
	return out
}

func (l *LQR) SetParam(name string, value float64) error {
	var i, j int
	if _, err := fmt.Sscanf(name, "k%d_%d", &i, &j); err != nil {
		return fmt.Errorf("%w: %s", dynamo.ErrUnknownParameter, name)
	}
	if i < 0 || i >= len(l.K) || j < 0 || j >= len(l.K[i]) || name != gainKey(i, j) {
		return fmt.Errorf("%w: %s", dynamo.ErrUnknownParameter, name)
	}
	l.K[i][j] = value
	return nil
}

func gainKey(i, j int) string {
	return fmt.Sprintf("k%d_%d", i, j)
}
