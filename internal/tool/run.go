package tool

import (
	"context"
	"fmt"

	"github.com/san-kum/dynopt/internal/dynamo"
	"github.com/san-kum/dynopt/internal/objective"
	"github.com/san-kum/dynopt/internal/optim"
	"github.com/san-kum/dynopt/internal/params"
)

// RunReport is the outcome of a Run: the solver's account plus a final
// simulation at the solution.
type RunReport struct {
	Tool       string
	Solution   params.ValueSet
	Objective  float64
	Terms      []objective.Term
	Trajectory *dynamo.Trajectory
	Solver     *optim.RunReport
}

// Run optimizes the tool's parameters with solver, then re-simulates at the
// solution so the report carries its trajectory and objective breakdown.
// When the solver fails but produced a report, that report is returned with
// the error.
func (t *Tool) Run(ctx context.Context, solver optim.Solver) (*RunReport, error) {
	t.logger.Info("optimizing", "tool", t.name, "parameters", len(t.parameters), "objectives", len(t.objectives))

	sol, rep, err := solver.SolveReport(ctx, t)
	if err != nil {
		if rep == nil {
			return nil, err
		}
		return &RunReport{Tool: t.name, Objective: rep.Objective, Solver: rep}, err
	}

	ev, err := t.Evaluate(ctx, sol)
	if err != nil {
		return &RunReport{Tool: t.name, Solution: sol, Objective: rep.Objective, Solver: rep},
			fmt.Errorf("evaluate solution: %w", err)
	}

	t.logger.Info("optimization finished",
		"tool", t.name,
		"solution", sol.String(),
		"objective", ev.Objective,
		"evaluations", rep.Evaluations,
		"status", rep.Status,
	)
	return &RunReport{
		Tool:       t.name,
		Solution:   sol,
		Objective:  ev.Objective,
		Terms:      ev.Terms,
		Trajectory: ev.Trajectory,
		Solver:     rep,
	}, nil
}
