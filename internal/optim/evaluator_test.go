package optim

import (
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/dynopt/internal/params"
)

var _ = Describe("ObjectiveEvaluator", func() {
	var (
		ctx context.Context
		p   *fakeProblem
		e   *ObjectiveEvaluator
	)

	BeforeEach(func() {
		ctx = context.Background()
		p = newFakeProblem([]float64{0, 0}, []float64{-1, -1}, []float64{1, 1}, quadratic(0.5, -0.5))
		e = NewObjectiveEvaluator(p)
	})

	It("reads the parameter count once", func() {
		Expect(e.NumParameters()).To(Equal(2))
	})

	It("returns the simulated objective unchanged", func() {
		f, err := e.Evaluate(ctx, []float64{0, 0})
		Expect(err).NotTo(HaveOccurred())
		Expect(f).To(Equal(0.5))
		Expect(p.calls).To(Equal(1))
	})

	It("is idempotent and never caches", func() {
		x := []float64{0.2, 0.7}
		a, err := e.Evaluate(ctx, x)
		Expect(err).NotTo(HaveOccurred())
		b, err := e.Evaluate(ctx, x)
		Expect(err).NotTo(HaveOccurred())

		Expect(a).To(Equal(b))
		Expect(p.calls).To(Equal(2))
		Expect(e.Evaluations()).To(Equal(2))
	})

	DescribeTable("rejects vectors of the wrong length without simulating",
		func(x []float64) {
			_, err := e.Evaluate(ctx, x)
			Expect(err).To(MatchError(ErrConfiguration))
			Expect(errors.Is(err, params.ErrLengthMismatch)).To(BeTrue())
			Expect(p.calls).To(BeZero())
		},
		Entry("empty", []float64{}),
		Entry("short", []float64{1}),
		Entry("long", []float64{1, 2, 3}),
	)

	It("validates parameter limits", func() {
		Expect(e.SetParameterLimits([]float64{-1, -1}, []float64{1, 1})).To(Succeed())

		lower, upper := e.Limits()
		Expect(lower).To(Equal([]float64{-1, -1}))
		Expect(upper).To(Equal([]float64{1, 1}))

		Expect(e.SetParameterLimits([]float64{-1}, []float64{1, 1})).To(MatchError(ErrConfiguration))
		Expect(e.SetParameterLimits([]float64{2, -1}, []float64{1, 1})).To(MatchError(params.ErrInvalidLimits))
	})

	It("freezes limits once evaluation has begun", func() {
		_, err := e.Evaluate(ctx, []float64{0, 0})
		Expect(err).NotTo(HaveOccurred())

		Expect(e.SetParameterLimits([]float64{-1, -1}, []float64{1, 1})).To(MatchError(ErrConfiguration))
	})

	It("records the first failure behind the optimizer-facing func", func() {
		p.f = func(x []float64) (float64, error) {
			if x[0] > 0 {
				return 0, errors.New("unstable")
			}
			return 1, nil
		}
		f := e.objective(ctx)

		Expect(f([]float64{-0.5, 0})).To(Equal(1.0))
		Expect(math.IsInf(f([]float64{0.5, 0}), 1)).To(BeTrue())
		Expect(math.IsInf(f([]float64{-0.5, 0}), 1)).To(BeTrue())
		Expect(p.calls).To(Equal(2))

		Expect(e.Err()).To(MatchError(ErrEvaluation))
		status, err := e.status()
		Expect(status.String()).To(Equal("Failure"))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("boxTransform", func() {
	inf := math.Inf(1)

	DescribeTable("round-trips interior points",
		func(lower, upper, x float64) {
			b := newBoxTransform([]float64{lower}, []float64{upper})
			got := b.toExternal(b.toInternal([]float64{x}))
			Expect(got[0]).To(BeNumerically("~", x, 1e-9))
		},
		Entry("both bounds", 0.0, 90.0, 30.0),
		Entry("midpoint", 0.0, 90.0, 45.0),
		Entry("lower only", 1.0, inf, 4.0),
		Entry("upper only", -inf, -1.0, -7.0),
		Entry("unbounded", -inf, inf, 3.5),
		Entry("fixed", 2.0, 2.0, 2.0),
	)

	It("keeps every internal value inside the box", func() {
		b := newBoxTransform([]float64{0, 1, -inf}, []float64{10, inf, 3})
		for _, y := range []float64{-1e6, -3, 0, 2.2, 1e6} {
			x := b.toExternal([]float64{y, y, y})
			Expect(x[0]).To(And(BeNumerically(">=", 0), BeNumerically("<=", 10)))
			Expect(x[1]).To(BeNumerically(">=", 1))
			Expect(x[2]).To(BeNumerically("<=", 3))
		}
	})

	It("nudges points on a bound into the interior", func() {
		b := newBoxTransform([]float64{0}, []float64{10})
		y := b.toInternal([]float64{10})
		Expect(math.Abs(y[0])).To(BeNumerically("<", math.Pi/2))

		x := b.toExternal(y)
		Expect(x[0]).To(BeNumerically("~", 10, 1e-3))
	})
})
