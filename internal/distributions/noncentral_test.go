package distributions

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoncentralTCDFReferenceValues(t *testing.T) {
	tests := []struct {
		x, nu, delta float64
		expected     float64
	}{
		{2, 10, 1, 0.8076115625303},
		{-1, 5, 0.5, 0.0824440910},
		{1.5, 20, -1, 0.9921713874270},
		{3, 4, 2, 0.7105394760},
		{0, 7, 1.3, 0.0968004845856},
		{2.0345, 33, 2.9155, 0.1922128115205},
		{-2.0345, 33, 2.9155, 8.1572e-07},
	}

	for _, tt := range tests {
		got := NoncentralT{Nu: tt.nu, Delta: tt.delta}.CDF(tt.x)
		assert.InDelta(t, tt.expected, got, 1e-9, "CDF(%g; nu=%g, delta=%g)", tt.x, tt.nu, tt.delta)
	}
}

func TestNoncentralTCDFReducesToCentralT(t *testing.T) {
	for _, nu := range []float64{1, 3, 12, 60} {
		central := StudentsT{Nu: nu}
		nct := NoncentralT{Nu: nu, Delta: 0}
		for _, x := range []float64{-3, -1.2, 0, 0.4, 2.5} {
			assert.InDelta(t, central.CDF(x), nct.CDF(x), 1e-12)
		}
	}
}

func TestNoncentralTCDFSymmetry(t *testing.T) {
	// F(x; nu, delta) = 1 - F(-x; nu, -delta)
	for _, tc := range []struct{ x, nu, delta float64 }{
		{1.1, 8, 0.7},
		{-0.3, 15, 2.2},
		{2.9, 40, -1.5},
	} {
		a := NoncentralT{Nu: tc.nu, Delta: tc.delta}.CDF(tc.x)
		b := NoncentralT{Nu: tc.nu, Delta: -tc.delta}.CDF(-tc.x)
		assert.InDelta(t, 1.0, a+b, 1e-10)
	}
}

func TestNoncentralTCDFMonotone(t *testing.T) {
	d := NoncentralT{Nu: 9, Delta: 1.7}
	prev := 0.0
	for x := -6.0; x <= 10; x += 0.25 {
		cur := d.CDF(x)
		if cur < prev-1e-12 {
			t.Fatalf("CDF decreased at x=%g: %g < %g", x, cur, prev)
		}
		if cur < 0 || cur > 1 {
			t.Fatalf("CDF out of [0,1] at x=%g: %g", x, cur)
		}
		prev = cur
	}
}

func TestNoncentralTCDFEdges(t *testing.T) {
	d := NoncentralT{Nu: 5, Delta: 1}
	assert.Equal(t, 1.0, d.CDF(math.Inf(1)))
	assert.Equal(t, 0.0, d.CDF(math.Inf(-1)))
	assert.True(t, math.IsNaN(NoncentralT{Nu: 0, Delta: 1}.CDF(1)))
	assert.True(t, math.IsNaN(d.CDF(math.NaN())))

	// Large delta goes through the normal approximation and stays in range.
	big := NoncentralT{Nu: 30, Delta: 45}.CDF(44)
	assert.True(t, big > 0 && big < 0.5, "got %g", big)
	assert.Equal(t, 0.0, NoncentralT{Nu: 30, Delta: 45}.CDF(-1))
}

func TestNoncentralTProb(t *testing.T) {
	tests := []struct {
		x, nu, delta float64
		expected     float64
	}{
		{1, 10, 1, 0.37984052619},
		{0, 10, 1, 0.23600616483},
		{-0.5, 6, 2, 0.01678725634},
		{2.5, 30, 2.9, 0.35267933060},
	}
	for _, tt := range tests {
		got := NoncentralT{Nu: tt.nu, Delta: tt.delta}.Prob(tt.x)
		assert.InDelta(t, tt.expected, got, 1e-8, "Prob(%g; nu=%g, delta=%g)", tt.x, tt.nu, tt.delta)
	}

	central := StudentsT{Nu: 7}
	assert.InDelta(t, central.Prob(0.8), NoncentralT{Nu: 7, Delta: 0}.Prob(0.8), 1e-12)
	assert.Equal(t, 0.0, NoncentralT{Nu: 7, Delta: 1}.Prob(math.Inf(1)))
}

func TestNoncentralTProbIntegratesToOne(t *testing.T) {
	d := NoncentralT{Nu: 10, Delta: 1}
	const h = 0.005
	mass := 0.0
	for x := -20.0; x < 40; x += h {
		mass += d.Prob(x) * h
	}
	assert.InDelta(t, 1.0, mass, 1e-4)
}
