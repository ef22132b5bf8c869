package beta

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}

func TestLogBetaFunctionRatioMatchesLogGammaForm(t *testing.T) {
	tests := []struct {
		a, b, c, d float64
	}{
		{a: 1, b: 1, c: 1, d: 1},
		{a: 10, b: 1000, c: 10, d: 999},
		{a: 101, b: 9901, c: 121, d: 9881},
		{a: 40, b: 1000, c: 80, d: 12},
	}
	for _, tc := range tests {
		num := lgamma(tc.a+tc.c) + lgamma(tc.b+tc.d) + lgamma(tc.a+tc.b) + lgamma(tc.c+tc.d)
		den := lgamma(tc.a) + lgamma(tc.b) + lgamma(tc.c) + lgamma(tc.d) + lgamma(tc.a+tc.b+tc.c+tc.d)
		expected := math.Exp(num - den)
		assert.InEpsilon(t, expected, LogBetaFunctionRatio(tc.a, tc.b, tc.c, tc.d), 1e-8,
			"h(%v, %v, %v, %v)", tc.a, tc.b, tc.c, tc.d)
	}
}

func TestBaseCase(t *testing.T) {
	// two uniforms
	assert.InDelta(t, 0.5, BaseCase(1, 1, 1), 1e-12)

	a, b, c := 12.0, 340.0, 9.0
	expected := math.Exp(lgamma(a+b) + lgamma(a+c) - lgamma(a+b+c) - lgamma(a))
	assert.InEpsilon(t, expected, BaseCase(a, b, c), 1e-8)
	assert.InDelta(t, BaseCase(a, b, c), ExactProbabilityGreater(a, b, c, 1), 1e-15)
}

func TestExactProbabilityGreaterSameDistribution(t *testing.T) {
	assert.InDelta(t, 0.5, ExactProbabilityGreater(10, 1000, 10, 1000), 1e-6)
}

func TestExactProbabilityGreaterDifferentDistributions(t *testing.T) {
	result := ExactProbabilityGreater(40, 1000, 80, 300)
	assert.Greater(t, result, 0.0)
	assert.InDelta(t, 0.0, result, 1e-8)
}

func TestExactProbabilityGreaterRejectsNonIntegerD(t *testing.T) {
	assert.True(t, math.IsNaN(ExactProbabilityGreater(2, 3, 4, 2.5)))
	assert.True(t, math.IsNaN(ExactProbabilityGreater(2, 3, 4, 0)))
	assert.True(t, math.IsNaN(ExactProbabilityGreater(2, 3, 4, math.Inf(1))))
}

func TestProbabilityGreaterKnownValue(t *testing.T) {
	control := FromCounts(10000, 100)
	test := FromCounts(10000, 120)

	assert.InDelta(t, 0.91201253, ProbabilityGreater(control, test), 1e-6)
}

func TestProbabilityGreaterSymmetry(t *testing.T) {
	pairs := []struct {
		name string
		x, y Posterior
	}{
		{name: "close rates", x: FromCounts(10000, 100), y: FromCounts(10000, 120)},
		{name: "different sizes", x: FromCounts(2500, 40), y: FromCounts(800, 15)},
		{name: "small samples", x: FromCounts(20, 1), y: FromCounts(25, 3)},
		{name: "far apart", x: Posterior{A: 40, B: 1000}, y: Posterior{A: 80, B: 300}},
	}
	for _, tc := range pairs {
		t.Run(tc.name, func(t *testing.T) {
			forward := ProbabilityGreater(tc.x, tc.y)
			backward := ProbabilityGreater(tc.y, tc.x)
			assert.InDelta(t, 1.0, forward+backward, 1e-6)
			assert.GreaterOrEqual(t, forward, -1e-9)
			assert.LessOrEqual(t, forward, 1+1e-9)
		})
	}
}

func TestProbabilityGreaterSelfComparison(t *testing.T) {
	for _, p := range []Posterior{FromCounts(10000, 100), FromCounts(50, 7), {A: 10, B: 1000}} {
		assert.InDelta(t, 0.5, ProbabilityGreater(p, p), 1e-6, "posterior %+v", p)
	}
}

func TestProbabilityGreaterMonotonicInTestConversions(t *testing.T) {
	control := FromCounts(5000, 50)
	previous := -1.0
	for conversions := int64(30); conversions <= 80; conversions += 5 {
		p := ProbabilityGreater(control, FromCounts(5000, conversions))
		assert.Greater(t, p, previous, "conversions=%d", conversions)
		previous = p
	}
}

func TestPosteriorSummaries(t *testing.T) {
	p := FromCounts(10000, 100)
	assert.Equal(t, Posterior{A: 101, B: 9901}, p)
	assert.InDelta(t, 101.0/10002.0, p.Mean(), 1e-12)
	assert.InDelta(t, 0.01, p.Mode(), 1e-12)
	assert.Greater(t, p.Variance(), 0.0)

	lo, hi := p.CredibleInterval(0.95)
	assert.Less(t, lo, p.Mean())
	assert.Greater(t, hi, p.Mean())

	lo, hi = p.CredibleInterval(1.5)
	assert.True(t, math.IsNaN(lo))
	assert.True(t, math.IsNaN(hi))
}

func TestMode(t *testing.T) {
	assert.InDelta(t, 0.25, Mode(2, 4), 1e-12)
	assert.True(t, math.IsNaN(Mode(1, 4)))
	assert.True(t, math.IsNaN(Mode(3, 0.5)))
}

func TestNew(t *testing.T) {
	p, err := New(2, 3)
	require.NoError(t, err)
	assert.Equal(t, Posterior{A: 2, B: 3}, p)

	for _, shapes := range [][2]float64{{0, 1}, {1, -2}, {math.NaN(), 1}, {math.Inf(1), 2}} {
		_, err := New(shapes[0], shapes[1])
		assert.ErrorIs(t, err, ErrInvalidShape)
	}
}

func BenchmarkProbabilityGreater(b *testing.B) {
	control := FromCounts(100000, 1000)
	test := FromCounts(100000, 1100)
	for i := 0; i < b.N; i++ {
		ProbabilityGreater(control, test)
	}
}
