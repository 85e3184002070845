package optim

import (
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/dynopt/internal/logging"
)

var _ = Describe("GridSearch", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("finds the grid point closest to the optimum", func() {
		p := newFakeProblem([]float64{10}, []float64{0}, []float64{90}, func(x []float64) float64 {
			return -math.Sin(2 * x[0] * math.Pi / 180)
		})

		set, report, err := NewGridSearch(91).WithLogger(logging.Discard()).SolveReport(ctx, p)
		Expect(err).NotTo(HaveOccurred())
		Expect(set.Values()[0]).To(BeNumerically("~", 45, 1e-9))
		Expect(report.Evaluations).To(Equal(91))
		Expect(report.Converged).To(BeTrue())
	})

	It("searches every dimension", func() {
		p := newFakeProblem([]float64{0, 0}, []float64{-5, -5}, []float64{5, 5}, quadratic(1, -2))

		set, err := NewGridSearch(11).WithLogger(logging.Discard()).Solve(ctx, p)
		Expect(err).NotTo(HaveOccurred())
		Expect(set.Values()[0]).To(BeNumerically("~", 1, 1e-9))
		Expect(set.Values()[1]).To(BeNumerically("~", -2, 1e-9))
		Expect(p.calls).To(Equal(121))
	})

	It("shares the configuration checks of the gradient solver", func() {
		p := newFakeProblem(nil, nil, nil, quadratic())

		_, err := NewGridSearch(5).WithLogger(logging.Discard()).Solve(ctx, p)
		Expect(err).To(MatchError(ErrConfiguration))
		Expect(p.calls).To(BeZero())

		p = newFakeProblem([]float64{0}, []float64{-1}, []float64{1}, quadratic(0))
		_, err = NewGridSearch(0).Solve(ctx, p)
		Expect(err).To(MatchError(ErrConfiguration))
	})

	It("propagates evaluation errors", func() {
		p := newFakeProblem([]float64{0}, []float64{-1}, []float64{1}, quadratic(0))
		p.f = func([]float64) (float64, error) { return 0, errors.New("diverged") }

		_, report, err := NewGridSearch(3).WithLogger(logging.Discard()).SolveReport(ctx, p)
		Expect(err).To(MatchError(ErrEvaluation))
		Expect(report.Converged).To(BeFalse())
		Expect(p.calls).To(Equal(1))
	})
})
