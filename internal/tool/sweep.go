package tool

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/dynopt/internal/params"
)

// EvaluateAll simulates every set concurrently with at most workers runs in
// flight (GOMAXPROCS when workers <= 0). Results keep the order of sets. The
// first failure cancels the remaining runs.
func (t *Tool) EvaluateAll(ctx context.Context, sets []params.ValueSet, workers int) ([]*Evaluation, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]*Evaluation, len(sets))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, set := range sets {
		g.Go(func() error {
			ev, err := t.Evaluate(ctx, set)
			if err != nil {
				return fmt.Errorf("set %d %s: %w", i, set, err)
			}
			results[i] = ev
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Sweep varies one parameter over points evenly spaced values inside its
// optimization limits, holding the others at their defaults.
func (t *Tool) Sweep(ctx context.Context, name string, points, workers int) ([]float64, []*Evaluation, error) {
	if err := t.Validate(); err != nil {
		return nil, nil, err
	}
	if points < 2 {
		return nil, nil, fmt.Errorf("sweep needs at least 2 points, got %d", points)
	}

	index := -1
	for i, p := range t.parameters {
		if p.Name() == name {
			index = i
		}
	}
	if index < 0 {
		return nil, nil, fmt.Errorf("%w: no parameter %q", ErrParameterSet, name)
	}
	box := t.parameters[index].OptLimits()
	if !box.Bounded() {
		return nil, nil, fmt.Errorf("sweep of %s needs finite optimization limits, got %s", name, box)
	}

	base, err := t.DefaultParameterValueSet()
	if err != nil {
		return nil, nil, err
	}
	axis := floats.Span(make([]float64, points), box.Lower, box.Upper)
	sets := make([]params.ValueSet, points)
	for i, v := range axis {
		x := base.Values()
		x[index] = v
		if sets[i], err = t.CreateParameterValueSet(x); err != nil {
			return nil, nil, err
		}
	}

	evs, err := t.EvaluateAll(ctx, sets, workers)
	if err != nil {
		return nil, nil, err
	}
	return axis, evs, nil
}
