package tool

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/dynopt/internal/config"
	"github.com/san-kum/dynopt/internal/control"
	"github.com/san-kum/dynopt/internal/dynamo"
	"github.com/san-kum/dynopt/internal/logging"
	"github.com/san-kum/dynopt/internal/optim"
)

var _ = Describe("Registry", func() {
	It("lists the built-in models and integrators", func() {
		r := NewRegistry()
		Expect(r.ListModels()).To(Equal([]string{"pendulum", "projectile", "spring_chain", "spring_mass"}))
		Expect(r.ListIntegrators()).To(Equal([]string{"euler", "rk4", "rk45", "verlet"}))
	})

	It("configures controllers from settings", func() {
		build, err := NewRegistry().Controller("pid")
		Expect(err).NotTo(HaveOccurred())

		c, err := build(map[string]float64{"kp": 3, "kd": 0.5}, 1)
		Expect(err).NotTo(HaveOccurred())
		pid, ok := c.(*control.PID)
		Expect(ok).To(BeTrue())
		Expect(pid.GetParams()).To(HaveKeyWithValue("kp", 3.0))
		Expect(pid.GetParams()).To(HaveKeyWithValue("kd", 0.5))
	})

	It("rejects unknown controller settings", func() {
		build, _ := NewRegistry().Controller("pid")
		_, err := build(map[string]float64{"gain": 1}, 1)
		Expect(err).To(MatchError(dynamo.ErrUnknownParameter))
	})

	It("reports unknown names", func() {
		r := NewRegistry()
		_, err := r.Model("rocket")
		Expect(err).To(HaveOccurred())
		_, err = r.Integrator("leapfrog")
		Expect(err).To(HaveOccurred())
	})

	It("accepts registered extensions", func() {
		r := NewRegistry()
		r.RegisterModel("decay", func() dynamo.System { return &blowUp{limit: 100} })
		Expect(r.ListModels()).To(ContainElement("decay"))
	})
})

var _ = Describe("FromConfig", func() {
	It("builds every preset", func() {
		for _, model := range config.ListModels() {
			for _, name := range config.ListPresets(model) {
				cfg := config.GetPreset(model, name)
				t, err := FromConfig(cfg, nil, logging.Discard())
				Expect(err).NotTo(HaveOccurred(), "%s/%s", model, name)
				Expect(t.Validate()).To(Succeed())
				Expect(t.Name()).To(Equal(cfg.Name))
			}
		}
	})

	It("applies system settings to every fresh system", func() {
		cfg := config.GetPreset("spring_mass/settle", "")
		cfg.System = map[string]float64{"stiffness0": 40}
		t, err := FromConfig(cfg, nil, logging.Discard())
		Expect(err).NotTo(HaveOccurred())

		setup, err := t.setup()
		Expect(err).NotTo(HaveOccurred())
		c := setup.System.(dynamo.Configurable)
		Expect(c.GetParams()).To(HaveKeyWithValue("stiffness0", 40.0))
	})

	It("fails on an invalid setup", func() {
		cfg := config.GetPreset("projectile/range", "")
		cfg.Objectives = nil
		_, err := FromConfig(cfg, nil, logging.Discard())
		Expect(err).To(MatchError(config.ErrInvalid))
	})

	It("fails on an initial state of the wrong size", func() {
		cfg := config.GetPreset("projectile/range", "")
		cfg.InitialState = []float64{0, 0}
		t, err := FromConfig(cfg, nil, logging.Discard())
		Expect(err).NotTo(HaveOccurred())

		_, err = t.setup()
		Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
	})
})

var _ = Describe("SolverFromConfig", func() {
	It("defaults to the gradient solver", func() {
		oc := config.DefaultOptimizer()
		oc.Tolerance = 1e-7
		s := SolverFromConfig(oc, logging.Discard(), nil)
		d, ok := s.(*optim.DynamicOptimizationSolver)
		Expect(ok).To(BeTrue())
		Expect(d.ConvergenceTolerance()).To(Equal(1e-7))
	})

	It("builds a grid search", func() {
		oc := config.DefaultOptimizer()
		oc.Solver = "grid"
		oc.GridPoints = 5
		g, ok := SolverFromConfig(oc, nil, nil).(*optim.GridSearch)
		Expect(ok).To(BeTrue())
		Expect(g.Points).To(Equal(5))
	})
})
