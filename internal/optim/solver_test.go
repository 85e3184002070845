package optim

import (
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/optimize"
)

var _ = Describe("DynamicOptimizationSolver", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("defaults to a 1e-4 convergence tolerance", func() {
		s := NewDynamicOptimizationSolver()
		Expect(s.ConvergenceTolerance()).To(Equal(1e-4))

		s.SetConvergenceTolerance(1e-8)
		Expect(s.Settings().Tolerance).To(Equal(1e-8))
	})

	Context("with a convex quadratic objective", func() {
		It("converges to a target inside the bounds", func() {
			p := newFakeProblem([]float64{0, 0}, []float64{-5, -5}, []float64{5, 5}, quadratic(1, -2))
			s := quietSolver(WithTolerance(1e-6))

			set, err := s.Solve(ctx, p)
			Expect(err).NotTo(HaveOccurred())
			Expect(set.Len()).To(Equal(2))
			Expect(set.Values()[0]).To(BeNumerically("~", 1, 1e-3))
			Expect(set.Values()[1]).To(BeNumerically("~", -2, 1e-3))
		})

		It("returns the nearest feasible point for a target outside the bounds", func() {
			p := newFakeProblem([]float64{2}, []float64{0}, []float64{5}, quadratic(8))

			set, err := quietSolver().Solve(ctx, p)
			Expect(err).NotTo(HaveOccurred())
			Expect(set.Values()[0]).To(BeNumerically("~", 5, 1e-3))
			Expect(set.Values()[0]).To(BeNumerically("<=", 5))
		})

		It("handles one-sided and unbounded parameters", func() {
			inf := math.Inf(1)
			p := newFakeProblem(
				[]float64{3, -3, 0},
				[]float64{1, -inf, -inf},
				[]float64{inf, -1, inf},
				quadratic(-4, 2, 0.5),
			)

			set, err := quietSolver(WithTolerance(1e-6)).Solve(ctx, p)
			Expect(err).NotTo(HaveOccurred())
			Expect(set.Values()[0]).To(BeNumerically("~", 1, 1e-3))
			Expect(set.Values()[1]).To(BeNumerically("~", -1, 1e-3))
			Expect(set.Values()[2]).To(BeNumerically("~", 0.5, 1e-3))
		})

		It("records history and evaluation counts", func() {
			p := newFakeProblem([]float64{-3}, []float64{-5}, []float64{5}, quadratic(2))
			var seen []Step

			_, report, err := quietSolver(WithProgress(func(s Step) { seen = append(seen, s) })).SolveReport(ctx, p)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Converged).To(BeTrue())
			Expect(report.Evaluations).To(Equal(p.calls))
			Expect(report.History).NotTo(BeEmpty())
			Expect(seen).To(HaveLen(len(report.History)))
			Expect(report.Objective).To(BeNumerically("<", 1e-4))

			last := report.History[len(report.History)-1]
			Expect(last.Values[0]).To(BeNumerically("~", 2, 1e-2))
		})

		DescribeTable("works with every method",
			func(method string, tol float64) {
				settings := DefaultSettings()
				settings.Method = method
				settings.Tolerance = tol
				p := newFakeProblem([]float64{0, 0}, []float64{-5, -5}, []float64{5, 5}, quadratic(1, 2))

				set, err := quietSolver(WithSettings(settings)).Solve(ctx, p)
				Expect(err).NotTo(HaveOccurred())
				Expect(set.Values()[0]).To(BeNumerically("~", 1, 1e-2))
				Expect(set.Values()[1]).To(BeNumerically("~", 2, 1e-2))
			},
			Entry("bfgs", "bfgs", 1e-6),
			Entry("lbfgs", "lbfgs", 1e-6),
			Entry("cg", "cg", 1e-6),
			Entry("neldermead", "neldermead", 1e-10),
		)

		It("accepts forward differences", func() {
			settings := DefaultSettings()
			settings.Formula = "forward"
			p := newFakeProblem([]float64{0}, []float64{-5}, []float64{5}, quadratic(-1))

			set, err := quietSolver(WithSettings(settings)).Solve(ctx, p)
			Expect(err).NotTo(HaveOccurred())
			Expect(set.Values()[0]).To(BeNumerically("~", -1, 1e-2))
		})
	})

	It("finds the 45 degree launch angle", func() {
		p := newFakeProblem([]float64{45}, []float64{0}, []float64{90}, func(x []float64) float64 {
			return -math.Sin(2 * x[0] * math.Pi / 180)
		})
		p.names = []string{"angle"}

		set, err := quietSolver().Solve(ctx, p)
		Expect(err).NotTo(HaveOccurred())
		angle, ok := set.Get("angle")
		Expect(ok).To(BeTrue())
		Expect(angle).To(BeNumerically("~", 45, 1e-2))
	})

	It("climbs to 45 degrees from a poor guess", func() {
		p := newFakeProblem([]float64{20}, []float64{0}, []float64{90}, func(x []float64) float64 {
			return -math.Sin(2 * x[0] * math.Pi / 180)
		})

		set, err := quietSolver(WithTolerance(1e-6)).Solve(ctx, p)
		Expect(err).NotTo(HaveOccurred())
		Expect(set.Values()[0]).To(BeNumerically("~", 45, 1e-2))
	})

	Context("configuration errors", func() {
		It("fails before simulating when there are no parameters", func() {
			p := newFakeProblem(nil, nil, nil, quadratic())

			_, report, err := quietSolver().SolveReport(ctx, p)
			Expect(err).To(MatchError(ErrConfiguration))
			Expect(errors.Is(err, ErrNoParameters)).To(BeTrue())
			Expect(report).To(BeNil())
			Expect(p.calls).To(BeZero())
		})

		It("rejects reversed bounds", func() {
			p := newFakeProblem([]float64{0}, []float64{1}, []float64{-1}, quadratic(0))

			_, err := quietSolver().Solve(ctx, p)
			var ce *ConfigurationError
			Expect(errors.As(err, &ce)).To(BeTrue())
			Expect(p.calls).To(BeZero())
		})

		It("rejects a guess outside the bounds", func() {
			p := newFakeProblem([]float64{9}, []float64{0}, []float64{5}, quadratic(0))

			_, err := quietSolver().Solve(ctx, p)
			Expect(err).To(MatchError(ErrConfiguration))
			Expect(p.calls).To(BeZero())
		})

		It("rejects limit vectors of the wrong length", func() {
			p := newFakeProblem([]float64{0, 0}, []float64{0}, []float64{5, 5}, quadratic(0, 0))

			_, err := quietSolver().Solve(ctx, p)
			Expect(err).To(MatchError(ErrConfiguration))
			Expect(p.calls).To(BeZero())
		})

		It("rejects a bad tolerance and unknown methods", func() {
			p := newFakeProblem([]float64{0}, []float64{-1}, []float64{1}, quadratic(0))

			_, err := quietSolver(WithTolerance(0)).Solve(ctx, p)
			Expect(err).To(MatchError(ErrConfiguration))

			settings := DefaultSettings()
			settings.Method = "simplex"
			_, err = quietSolver(WithSettings(settings)).Solve(ctx, p)
			Expect(err).To(MatchError(ErrConfiguration))
			Expect(errors.Is(err, ErrUnknownMethod)).To(BeTrue())
			Expect(p.calls).To(BeZero())
		})
	})

	Context("evaluation errors", func() {
		It("surfaces a failing simulation", func() {
			boom := errors.New("integrator blew up")
			p := newFakeProblem([]float64{0}, []float64{-1}, []float64{1}, quadratic(0))
			p.f = func([]float64) (float64, error) { return 0, boom }

			_, err := quietSolver().Solve(ctx, p)
			Expect(err).To(MatchError(ErrEvaluation))
			Expect(err).To(MatchError(boom))

			var ee *EvaluationError
			Expect(errors.As(err, &ee)).To(BeTrue())
			Expect(ee.Evaluation).To(Equal(1))
			Expect(ee.Values.Len()).To(Equal(1))
			Expect(p.calls).To(Equal(1))
		})

		It("treats a non-finite objective as an evaluation error", func() {
			p := newFakeProblem([]float64{0}, []float64{-1}, []float64{1}, func([]float64) float64 {
				return math.NaN()
			})

			_, err := quietSolver().Solve(ctx, p)
			Expect(err).To(MatchError(ErrEvaluation))
			Expect(errors.Is(err, ErrNonFinite)).To(BeTrue())
		})
	})

	Context("optimization failures", func() {
		It("fails when the evaluation budget runs out", func() {
			settings := DefaultSettings()
			settings.MaxEvaluations = 3
			p := newFakeProblem([]float64{-4}, []float64{-5}, []float64{5}, quadratic(4))

			_, report, err := quietSolver(WithSettings(settings)).SolveReport(ctx, p)
			Expect(err).To(MatchError(ErrOptimizationFailure))
			Expect(errors.Is(err, ErrBudgetExhausted)).To(BeTrue())
			Expect(report).NotTo(BeNil())
			Expect(report.Converged).To(BeFalse())
			Expect(p.calls).To(Equal(3))
			Expect(report.Evaluations).To(Equal(3))
		})

		It("caps every run by default", func() {
			settings := NewDynamicOptimizationSolver().Settings()
			Expect(settings.MaxEvaluations).To(Equal(DefaultMaxEvaluations))
			Expect(settings.MaxIterations).To(Equal(DefaultMaxIterations))
			Expect(settings.gonum(nil).MajorIterations).To(Equal(DefaultMaxIterations))
		})

		It("stops an optimizer that keeps evaluating at the default budget", func() {
			p := newFakeProblem([]float64{0}, []float64{-1}, []float64{1}, quadratic(0.5))
			e := NewObjectiveEvaluator(p)
			e.maxEvaluations = DefaultSettings().MaxEvaluations

			// A line search that never accepts a step calls the objective
			// without finishing an iteration.
			f := e.objective(ctx)
			for i := 0; i < DefaultMaxEvaluations+50; i++ {
				f([]float64{float64(i%7) / 10})
			}
			Expect(p.calls).To(Equal(DefaultMaxEvaluations))
			Expect(e.Evaluations()).To(Equal(DefaultMaxEvaluations))

			status, err := e.status()
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(optimize.FunctionEvaluationLimit))

			err = quietSolver().classify(ctx, e, &optimize.Result{Status: status}, nil)
			Expect(err).To(MatchError(ErrOptimizationFailure))
			Expect(errors.Is(err, ErrBudgetExhausted)).To(BeTrue())
		})

		It("accepts convergence reached on the last budgeted evaluation", func() {
			e := NewObjectiveEvaluator(newFakeProblem([]float64{0}, []float64{-1}, []float64{1}, quadratic(0.5)))
			e.exhausted = true

			err := quietSolver().classify(ctx, e, &optimize.Result{Status: optimize.GradientThreshold}, nil)
			Expect(err).NotTo(HaveOccurred())

			err = quietSolver().classify(ctx, e, &optimize.Result{Status: optimize.FunctionConvergence}, nil)
			Expect(err).NotTo(HaveOccurred())
		})

		It("fails when the iteration limit is reached", func() {
			settings := DefaultSettings()
			settings.MaxIterations = 1
			settings.Tolerance = 1e-12
			p := newFakeProblem([]float64{0, 0}, []float64{-5, -5}, []float64{5, 5}, func(x []float64) float64 {
				a, b := x[0]-1, x[1]-x[0]*x[0]
				return a*a + 100*b*b
			})

			_, err := quietSolver(WithSettings(settings)).Solve(ctx, p)
			var of *OptimizationFailure
			Expect(errors.As(err, &of)).To(BeTrue())
			Expect(of.Status).To(Equal("IterationLimit"))
		})

		It("fails on a canceled context", func() {
			canceled, cancel := context.WithCancel(ctx)
			cancel()
			p := newFakeProblem([]float64{0}, []float64{-1}, []float64{1}, quadratic(0.5))

			_, err := quietSolver().Solve(canceled, p)
			Expect(err).To(MatchError(ErrOptimizationFailure))
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(p.calls).To(BeZero())
		})
	})
})
