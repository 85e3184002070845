package tool

import (
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/dynopt/internal/dynamo"
	"github.com/san-kum/dynopt/internal/integrators"
	"github.com/san-kum/dynopt/internal/logging"
	"github.com/san-kum/dynopt/internal/objective"
	"github.com/san-kum/dynopt/internal/optim"
	"github.com/san-kum/dynopt/internal/params"
	"github.com/san-kum/dynopt/internal/physics"
)

var _ = Describe("Tool", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("problem contract", func() {
		It("reports parameters in declaration order", func() {
			t := presetTool("pendulum/swing")
			Expect(t.NumOptimizerParameters()).To(Equal(2))

			guess, lower, upper, err := t.InitialOptimizerParameterValuesAndLimits()
			Expect(err).NotTo(HaveOccurred())
			Expect(guess).To(Equal([]float64{20, 2}))
			Expect(lower).To(Equal([]float64{0, 0}))
			Expect(upper).To(Equal([]float64{100, 20}))

			set, err := t.CreateParameterValueSet(guess)
			Expect(err).NotTo(HaveOccurred())
			Expect(set.Names()).To(Equal([]string{"kp", "kd"}))
		})

		It("clamps a default outside the optimization limits", func() {
			t := presetTool("projectile/height")
			t.parameters[0] = &params.LaunchAngle{
				Base:  params.NewBase("angle", 0.5, params.Limits{Lower: 0, Upper: 90}, params.Limits{Lower: 1, Upper: 90}),
				Speed: 3, XVelIndex: 2, YVelIndex: 3,
			}

			guess, _, _, err := t.InitialOptimizerParameterValuesAndLimits()
			Expect(err).NotTo(HaveOccurred())
			Expect(guess).To(Equal([]float64{1}))
		})

		It("rejects a vector of the wrong length", func() {
			t := presetTool("projectile/range")
			_, err := t.CreateParameterValueSet([]float64{1, 2})
			Expect(err).To(MatchError(params.ErrLengthMismatch))
		})

		It("rejects a value set whose names do not match", func() {
			t := presetTool("projectile/range")
			set, err := params.NewValueSet(params.Entry{Name: "speed", Value: 10})
			Expect(err).NotTo(HaveOccurred())

			_, err = t.Simulate(ctx, set)
			Expect(err).To(MatchError(ErrParameterSet))
		})

		It("gives the same objective for the same parameters", func() {
			t := presetTool("spring_mass/settle")
			set, err := t.DefaultParameterValueSet()
			Expect(err).NotTo(HaveOccurred())

			first, err := t.Simulate(ctx, set)
			Expect(err).NotTo(HaveOccurred())
			second, err := t.Simulate(ctx, set)
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(Equal(first))
		})

		It("builds a fresh system for every simulation", func() {
			built := 0
			t := New("counter", func() dynamo.System {
				built++
				return physics.NewSpringMass()
			}, WithInitialState(dynamo.State{1, 0}), WithLogger(logging.Discard()))
			t.AppendParameter(&params.SystemParam{
				Base: params.NewBase("damping", 1, params.Limits{Lower: 0, Upper: 10}, params.Limits{Lower: 0, Upper: 10}),
				Key:  "damping0",
			})
			t.AppendObjective(&objective.Integral{Base: objective.NewBase("ise", 1, objective.Minimize), Squared: true})

			set, err := t.CreateParameterValueSet([]float64{2})
			Expect(err).NotTo(HaveOccurred())
			for range 3 {
				_, err := t.Simulate(ctx, set)
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(built).To(Equal(3))
		})

		It("negates maximized objectives", func() {
			t := presetTool("projectile/range")
			set, err := t.CreateParameterValueSet([]float64{45})
			Expect(err).NotTo(HaveOccurred())

			ev, err := t.Evaluate(ctx, set)
			Expect(err).NotTo(HaveOccurred())
			Expect(ev.Terms).To(HaveLen(1))
			// v^2 sin(2a) / g with v = 20
			Expect(ev.Terms[0].Raw).To(BeNumerically("~", 400/physics.DefaultGravity, 1e-3))
			Expect(ev.Objective).To(BeNumerically("~", -ev.Terms[0].Raw, 1e-12))
			Expect(ev.Trajectory.Event).To(Equal("hit_ground"))
		})
	})

	Describe("validation", func() {
		It("refuses a tool without parameters before simulating", func() {
			simulated := false
			t := New("empty", func() dynamo.System {
				simulated = true
				return physics.NewProjectile()
			}, WithLogger(logging.Discard()))
			t.AppendObjective(&objective.Duration{Base: objective.NewBase("t", 1, objective.Minimize)})

			_, err := quietSolver().Solve(ctx, t)
			var ce *optim.ConfigurationError
			Expect(errors.As(err, &ce)).To(BeTrue())
			Expect(err).To(MatchError(optim.ErrConfiguration))
			Expect(simulated).To(BeFalse())
		})

		It("refuses a tool without objectives", func() {
			t := New("no-objectives", func() dynamo.System { return physics.NewProjectile() })
			t.AppendParameter(&params.InitialState{
				Base: params.NewBase("x", 0, params.Unbounded(), params.Unbounded()),
			})

			_, _, _, err := t.InitialOptimizerParameterValuesAndLimits()
			Expect(err).To(MatchError(ErrNoObjectives))
		})

		It("refuses duplicate parameter names", func() {
			t := presetTool("pendulum/swing")
			t.AppendParameter(t.Parameters()[0])
			Expect(t.Validate()).To(MatchError(params.ErrDuplicateName))
		})
	})

	Describe("failed simulations", func() {
		newBlowUp := func(opts ...Option) *Tool {
			opts = append([]Option{
				WithInitialState(dynamo.State{0}),
				WithIntegrator(func() dynamo.Integrator { return integrators.NewEuler() }),
				WithLogger(logging.Discard()),
			}, opts...)
			t := New("blow-up", func() dynamo.System { return &blowUp{limit: 5} }, opts...)
			t.AppendParameter(&params.InitialState{
				Base:  params.NewBase("x0", 1, params.Limits{Lower: -10, Upper: 10}, params.Limits{Lower: -10, Upper: 10}),
				Index: 0,
			})
			t.AppendObjective(&objective.Final{Base: objective.NewBase("final", 1, objective.Minimize)})
			return t
		}

		It("returns the simulation error without a penalty", func() {
			t := newBlowUp()
			set, _ := t.CreateParameterValueSet([]float64{8})

			_, err := t.Simulate(ctx, set)
			Expect(err).To(MatchError(dynamo.ErrInvalidState))
		})

		It("substitutes the failure penalty when one is set", func() {
			t := newBlowUp(WithFailurePenalty(1e6))
			set, _ := t.CreateParameterValueSet([]float64{8})

			ev, err := t.Evaluate(ctx, set)
			Expect(err).NotTo(HaveOccurred())
			Expect(ev.Penalized).To(BeTrue())
			Expect(ev.Objective).To(Equal(1e6))
			Expect(ev.Err).To(MatchError(dynamo.ErrInvalidState))
		})

		It("does not penalize a parameter outside its physical limits", func() {
			t := newBlowUp(WithFailurePenalty(1e6))
			set, _ := t.CreateParameterValueSet([]float64{11})

			_, err := t.Simulate(ctx, set)
			Expect(err).To(MatchError(dynamo.ErrParameterBounds))
		})
	})

	Describe("Run", func() {
		It("finds the 45 degree launch angle for maximum range", func() {
			t := presetTool("projectile/range")

			rep, err := t.Run(ctx, quietSolver())
			Expect(err).NotTo(HaveOccurred())
			angle, ok := rep.Solution.Get("angle")
			Expect(ok).To(BeTrue())
			Expect(angle).To(BeNumerically("~", 45, 0.1))
			Expect(rep.Solver.Converged).To(BeTrue())
			Expect(rep.Trajectory).NotTo(BeNil())
			Expect(rep.Terms[0].Raw).To(BeNumerically("~", 400/physics.DefaultGravity, 1e-3))
		})

		It("fails cleanly when the tolerance is below the finite-difference noise of an event-terminated run", func() {
			t := presetTool("projectile/range")

			rep, err := t.Run(ctx, quietSolver(optim.WithTolerance(1e-10)))
			Expect(err).To(MatchError(optim.ErrOptimizationFailure))
			Expect(rep).NotTo(BeNil())
			Expect(rep.Solver).NotTo(BeNil())
			Expect(rep.Solver.Converged).To(BeFalse())
			Expect(rep.Solver.Evaluations).To(BeNumerically("<=", optim.DefaultMaxEvaluations))
		})

		It("finds the critical-ish damping that minimizes the squared error", func() {
			t := presetTool("spring_mass/settle")

			rep, err := t.Run(ctx, quietSolver(optim.WithTolerance(1e-6)))
			Expect(err).NotTo(HaveOccurred())
			damping, _ := rep.Solution.Get("damping")
			Expect(damping).To(BeNumerically("~", math.Sqrt(10), 0.02))
			// c/20 + 1/(2c) at c = sqrt(10)
			Expect(rep.Objective).To(BeNumerically("~", 1/math.Sqrt(10), 1e-3))
		})

		It("works with the grid solver", func() {
			t := presetTool("projectile/range")

			rep, err := t.Run(ctx, optim.NewGridSearch(91).WithLogger(logging.Discard()))
			Expect(err).NotTo(HaveOccurred())
			angle, _ := rep.Solution.Get("angle")
			Expect(angle).To(BeNumerically("~", 45, 1e-9))
		})

		It("returns the solver report along with a failure", func() {
			t := presetTool("projectile/range")

			rep, err := t.Run(ctx, quietSolver(optim.WithSettings(optim.Settings{
				Tolerance: 1e-12, Method: "bfgs", Formula: "central", MaxEvaluations: 2,
			})))
			Expect(err).To(MatchError(optim.ErrBudgetExhausted))
			Expect(rep).NotTo(BeNil())
			Expect(rep.Solver).NotTo(BeNil())
		})
	})
})

var _ = Describe("Sweep", func() {
	It("evaluates a parameter across its limits in order", func() {
		t := presetTool("projectile/range")

		axis, evs, err := t.Sweep(context.Background(), "angle", 7, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(axis).To(Equal([]float64{0, 15, 30, 45, 60, 75, 90}))
		Expect(evs).To(HaveLen(7))

		best := 0
		for i, ev := range evs {
			got, _ := ev.Values.Get("angle")
			Expect(got).To(Equal(axis[i]))
			if ev.Objective < evs[best].Objective {
				best = i
			}
		}
		Expect(axis[best]).To(Equal(45.0))
		// complementary angles fly equally far
		Expect(evs[2].Objective).To(BeNumerically("~", evs[4].Objective, 1e-6))
	})

	It("gives concurrent evaluations the same result as a sequential one", func() {
		t := presetTool("spring_mass/settle")
		set, err := t.DefaultParameterValueSet()
		Expect(err).NotTo(HaveOccurred())
		want, err := t.Simulate(context.Background(), set)
		Expect(err).NotTo(HaveOccurred())

		sets := make([]params.ValueSet, 16)
		for i := range sets {
			sets[i] = set
		}
		evs, err := t.EvaluateAll(context.Background(), sets, 8)
		Expect(err).NotTo(HaveOccurred())
		Expect(evs).To(HaveLen(16))
		for _, ev := range evs {
			Expect(ev.Objective).To(Equal(want))
		}
	})

	It("rejects unknown parameters", func() {
		t := presetTool("projectile/range")
		_, _, err := t.Sweep(context.Background(), "speed", 5, 0)
		Expect(err).To(MatchError(ErrParameterSet))
	})

	It("stops at the first failed simulation", func() {
		t := New("blow-up", func() dynamo.System { return &blowUp{limit: 5} },
			WithInitialState(dynamo.State{0}), WithLogger(logging.Discard()))
		t.AppendParameter(&params.InitialState{
			Base: params.NewBase("x0", 0, params.Limits{Lower: 0, Upper: 10}, params.Limits{Lower: 0, Upper: 10}),
		})
		t.AppendObjective(&objective.Final{Base: objective.NewBase("final", 1, objective.Minimize)})

		_, _, err := t.Sweep(context.Background(), "x0", 11, 2)
		Expect(err).To(MatchError(dynamo.ErrInvalidState))
	})
})
