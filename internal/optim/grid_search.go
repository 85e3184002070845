package optim

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/dynopt/internal/logging"
	"github.com/san-kum/dynopt/internal/params"
)

// maxGridEvaluations bounds Points^N so a typo cannot launch a search that
// never ends.
const maxGridEvaluations = 1_000_000

// GridSearch evaluates every point of a regular grid over the optimization
// box and keeps the best one. Points values are taken per parameter,
// including both limits.
type GridSearch struct {
	Points int
	logger *slog.Logger
}

func NewGridSearch(points int) *GridSearch {
	return &GridSearch{Points: points, logger: logging.Default}
}

func (g *GridSearch) WithLogger(l *slog.Logger) *GridSearch {
	g.logger = l
	return g
}

func (g *GridSearch) Solve(ctx context.Context, p Problem) (params.ValueSet, error) {
	set, _, err := g.SolveReport(ctx, p)
	return set, err
}

func (g *GridSearch) SolveReport(ctx context.Context, p Problem) (params.ValueSet, *RunReport, error) {
	if g.Points < 1 {
		return params.ValueSet{}, nil, &ConfigurationError{Reason: fmt.Sprintf("grid needs at least one point per parameter, got %d", g.Points)}
	}
	st, err := prepare(p)
	if err != nil {
		return params.ValueSet{}, nil, err
	}
	if total := math.Pow(float64(g.Points), float64(len(st.guess))); total > maxGridEvaluations {
		return params.ValueSet{}, nil, &ConfigurationError{Reason: fmt.Sprintf("grid of %.0f points exceeds %d", total, maxGridEvaluations)}
	}

	eval := NewObjectiveEvaluator(p)
	eval.logger = g.logger
	if err := eval.SetParameterLimits(st.lower, st.upper); err != nil {
		return params.ValueSet{}, nil, err
	}

	axes := make([][]float64, len(st.guess))
	for i := range axes {
		axes[i] = g.axis(st.lower[i], st.upper[i], st.guess[i])
	}

	g.logger.Info("grid search started", "parameters", len(axes), "points", g.Points)

	began := time.Now()
	s := &gridState{eval: eval, axes: axes, best: math.Inf(1)}
	err = s.searchRecursive(ctx, 0, make([]float64, len(axes)))

	report := &RunReport{
		Method:      "grid",
		Iterations:  len(s.history),
		Evaluations: eval.Evaluations(),
		Objective:   s.best,
		Runtime:     time.Since(began),
		History:     s.history,
	}
	if err != nil {
		report.Status = "Failure"
		report.Reason = err.Error()
		return params.ValueSet{}, report, err
	}

	set, err := p.CreateParameterValueSet(s.bestX)
	if err != nil {
		return params.ValueSet{}, nil, configErr("create parameter value set", err)
	}
	report.Status = "Success"
	report.Converged = true

	g.logger.Info("grid search finished", "evaluations", report.Evaluations, "objective", s.best, "solution", set.String())
	return set, report, nil
}

func (g *GridSearch) axis(lower, upper, guess float64) []float64 {
	if lower == upper {
		return []float64{lower}
	}
	if math.IsInf(lower, 0) || math.IsInf(upper, 0) || g.Points == 1 {
		return []float64{guess}
	}
	return floats.Span(make([]float64, g.Points), lower, upper)
}

type gridState struct {
	eval    *ObjectiveEvaluator
	axes    [][]float64
	best    float64
	bestX   []float64
	history []Step
}

func (s *gridState) searchRecursive(ctx context.Context, depth int, current []float64) error {
	if depth == len(s.axes) {
		f, err := s.eval.Evaluate(ctx, current)
		if err != nil {
			return err
		}
		if f < s.best {
			s.best = f
			s.bestX = append(s.bestX[:0], current...)
			s.history = append(s.history, Step{
				Iteration:   len(s.history) + 1,
				Evaluations: s.eval.Evaluations(),
				Objective:   f,
				Values:      append([]float64(nil), current...),
			})
		}
		return nil
	}

	for _, val := range s.axes[depth] {
		current[depth] = val
		if err := s.searchRecursive(ctx, depth+1, current); err != nil {
			return err
		}
	}
	return nil
}
