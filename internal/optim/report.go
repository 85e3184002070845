package optim

import (
	"time"

	"gonum.org/v1/gonum/optimize"
)

// Step is one accepted iterate of a run, in parameter space.
type Step struct {
	Iteration   int       `json:"iteration"`
	Evaluations int       `json:"evaluations"`
	Objective   float64   `json:"objective"`
	Values      []float64 `json:"values"`
}

type RunReport struct {
	Method      string        `json:"method"`
	Status      string        `json:"status"`
	Converged   bool          `json:"converged"`
	Reason      string        `json:"reason,omitempty"`
	Iterations  int           `json:"iterations"`
	Evaluations int           `json:"evaluations"`
	Objective   float64       `json:"objective"`
	Runtime     time.Duration `json:"runtime"`
	History     []Step        `json:"history"`
}

// historyRecorder captures major iterations from gonum in external
// coordinates.
type historyRecorder struct {
	box      *boxTransform
	eval     *ObjectiveEvaluator
	steps    []Step
	progress func(Step)
}

func (r *historyRecorder) Init() error { return nil }

func (r *historyRecorder) Record(loc *optimize.Location, op optimize.Operation, stats *optimize.Stats) error {
	if op&optimize.MajorIteration == 0 {
		return nil
	}
	step := Step{
		Iteration:   stats.MajorIterations,
		Evaluations: r.eval.Evaluations(),
		Objective:   loc.F,
		Values:      r.box.toExternal(loc.X),
	}
	r.steps = append(r.steps, step)
	if r.progress != nil {
		r.progress(step)
	}
	return nil
}

func converged(s optimize.Status) bool {
	switch s {
	case optimize.Success,
		optimize.FunctionThreshold,
		optimize.FunctionConvergence,
		optimize.GradientThreshold,
		optimize.StepConvergence,
		optimize.MethodConverge:
		return true
	}
	return false
}
