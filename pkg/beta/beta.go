// Package beta compares Beta distributed conversion rates in closed form.
//
// The recurrence follows J. D. Cook, "Exact calculation of inequality
// probabilities for Beta random variables" (UTMDABTR-005-05): for integer d,
//
//	g(a, b, c, d+1) = g(a, b, c, d) + h(a, b, c, d) / d
//
// with g(a, b, c, 1) known in closed form. Every gamma term is evaluated in log
// space so shape parameters in the tens of thousands do not overflow.
package beta

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrInvalidShape is returned when a shape parameter is not strictly positive.
var ErrInvalidShape = errors.New("beta shape parameters must be positive")

// Posterior is the Beta(A, B) belief about a conversion rate.
type Posterior struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// New returns the Beta(a, b) posterior.
func New(a, b float64) (Posterior, error) {
	if !(a > 0) || !(b > 0) || math.IsInf(a, 0) || math.IsInf(b, 0) {
		return Posterior{}, errors.Wrapf(ErrInvalidShape, "a=%v b=%v", a, b)
	}
	return Posterior{A: a, B: b}, nil
}

// FromCounts applies a uniform Beta(1, 1) prior to a sample of impressions
// containing the given number of conversions.
func FromCounts(impressions, conversions int64) Posterior {
	return Posterior{
		A: float64(conversions) + 1,
		B: float64(impressions-conversions) + 1,
	}
}

// Mean is A / (A + B).
func (p Posterior) Mean() float64 {
	return p.A / (p.A + p.B)
}

// Mode is the peak of the density, NaN when either shape is <= 1.
func (p Posterior) Mode() float64 {
	return Mode(p.A, p.B)
}

func (p Posterior) dist() distuv.Beta {
	return distuv.Beta{Alpha: p.A, Beta: p.B}
}

// Variance of the distribution.
func (p Posterior) Variance() float64 {
	return p.dist().Variance()
}

// CredibleInterval returns the equal tailed interval holding the given
// probability mass, e.g. 0.95.
func (p Posterior) CredibleInterval(mass float64) (float64, float64) {
	if !(mass > 0 && mass < 1) {
		return math.NaN(), math.NaN()
	}
	d := p.dist()
	tail := (1 - mass) / 2
	return d.Quantile(tail), d.Quantile(1 - tail)
}

// Mode returns (a-1)/(a+b-2). The mode is only defined for a > 1 and b > 1,
// NaN is returned otherwise.
func Mode(a, b float64) float64 {
	if a <= 1 || b <= 1 {
		return math.NaN()
	}
	return (a - 1) / (a + b - 2)
}

// LogBetaFunctionRatio is the h term of the recurrence:
//
//	B(a+c, b+d) / (B(a, b) B(c, d))
//
// which equals exp(lgamma(a+c) + lgamma(b+d) + lgamma(a+b) + lgamma(c+d)
// - lgamma(a) - lgamma(b) - lgamma(c) - lgamma(d) - lgamma(a+b+c+d)).
func LogBetaFunctionRatio(a, b, c, d float64) float64 {
	return logBetaFunctionRatio(mathext.Lbeta(a, b), a, b, c, d)
}

// logBetaFunctionRatio takes lbeta(a, b) precomputed, it does not depend on d.
func logBetaFunctionRatio(lbetaAB, a, b, c, d float64) float64 {
	return math.Exp(mathext.Lbeta(a+c, b+d) - lbetaAB - mathext.Lbeta(c, d))
}

// BaseCase is g(a, b, c, 1) = Γ(a+b) Γ(a+c) / (Γ(a+b+c) Γ(a)), the probability
// that Beta(a, b) exceeds Beta(c, 1).
func BaseCase(a, b, c float64) float64 {
	return math.Exp(mathext.Lbeta(a+b, c) - mathext.Lbeta(a, c))
}

// ExactProbabilityGreater returns P(X > Y) for X ~ Beta(a, b) and Y ~ Beta(c, d).
// The recurrence is only exact for integer d >= 1; NaN is returned for any other d.
// The cost is d-1 evaluations of h.
func ExactProbabilityGreater(a, b, c, d float64) float64 {
	if d < 1 || d != math.Trunc(d) || math.IsInf(d, 0) {
		return math.NaN()
	}
	lbetaAB := mathext.Lbeta(a, b)
	sum := BaseCase(a, b, c)
	for k := d - 1; k >= 1; k-- {
		sum += logBetaFunctionRatio(lbetaAB, a, b, c, k) / k
	}
	return sum
}

// ProbabilityGreater returns the probability that the rate behind y exceeds
// the rate behind x. Swapping the arguments gives the complement.
func ProbabilityGreater(x, y Posterior) float64 {
	return ExactProbabilityGreater(y.A, y.B, x.A, x.B)
}
