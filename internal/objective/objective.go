// Package objective reduces a simulated trajectory to scalar goals.
//
// Evaluate always returns the physical quantity itself. Whether it should
// be made small or large is carried separately by [Sense]; [Total] folds
// both into one number where lower is better.
package objective

import (
	"errors"
	"fmt"

	"github.com/san-kum/dynopt/internal/dynamo"
	"github.com/san-kum/dynopt/internal/params"
)

var (
	ErrNotHamiltonian = errors.New("objective: system does not expose energy")
	ErrUnknownSense   = errors.New("objective: unknown sense")
)

type Sense int

const (
	Minimize Sense = iota
	Maximize
)

func (s Sense) String() string {
	if s == Maximize {
		return "maximize"
	}
	return "minimize"
}

// Sign is the factor applied to a raw value so that lower is better.
func (s Sense) Sign() float64 {
	if s == Maximize {
		return -1
	}
	return 1
}

func ParseSense(s string) (Sense, error) {
	switch s {
	case "", "min", "minimize":
		return Minimize, nil
	case "max", "maximize":
		return Maximize, nil
	default:
		return Minimize, fmt.Errorf("%w: %q", ErrUnknownSense, s)
	}
}

type Objective interface {
	Name() string
	Weight() float64
	Sense() Sense
	Evaluate(set params.ValueSet, traj *dynamo.Trajectory) (float64, error)
}

type Base struct {
	name   string
	weight float64
	sense  Sense
}

func NewBase(name string, weight float64, sense Sense) Base {
	return Base{name: name, weight: weight, sense: sense}
}

func (b Base) Name() string    { return b.name }
func (b Base) Weight() float64 { return b.weight }
func (b Base) Sense() Sense    { return b.sense }

// Term is one objective's contribution to a total.
type Term struct {
	Name  string
	Sense Sense
	Raw   float64
	// Weighted is Weight * Sign * Raw.
	Weighted float64
}

// Total evaluates every objective and sums their signed, weighted values.
// Objectives with zero weight are still evaluated so they show up in reports.
func Total(objs []Objective, set params.ValueSet, traj *dynamo.Trajectory) (float64, []Term, error) {
	terms := make([]Term, 0, len(objs))
	total := 0.0
	for _, o := range objs {
		raw, err := o.Evaluate(set, traj)
		if err != nil {
			return 0, nil, fmt.Errorf("objective %s: %w", o.Name(), err)
		}
		w := o.Weight() * o.Sense().Sign() * raw
		total += w
		terms = append(terms, Term{Name: o.Name(), Sense: o.Sense(), Raw: raw, Weighted: w})
	}
	return total, terms, nil
}
