package models

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
)

func bowl(x []float64) float64 {
	a, b := x[0]-1, x[1]+2
	return a*a + 3*b*b + 0.5*a*b
}

func TestNelderMeadMinimizer(t *testing.T) {
	t.Parallel()
	res, err := NelderMeadMinimizer{Tolerance: 1e-14, MaxIterations: 2000, MaxEvaluations: 6000}.Minimize(bowl, []float64{3, 3})
	if err != nil {
		t.Fatalf("Minimize: %v", err)
	}
	if !res.Converged {
		t.Fatalf("expected convergence, status %s", res.Status)
	}
	if !floats.EqualApprox(res.X, []float64{1, -2}, 1e-4) {
		t.Fatalf("minimum at %v, want [1 -2]", res.X)
	}
}

func TestNelderMeadMinimizerIterationCap(t *testing.T) {
	t.Parallel()
	res, err := NelderMeadMinimizer{Tolerance: 1e-14, MaxIterations: 3}.Minimize(bowl, []float64{30, 30})
	if err != nil {
		t.Fatalf("Minimize: %v", err)
	}
	if res.Converged {
		t.Fatalf("three iterations should not converge, status %s", res.Status)
	}
}

func TestDiffEvoMinimizer(t *testing.T) {
	t.Parallel()
	d := DiffEvoMinimizer{
		Lower:  -5,
		Upper:  5,
		Seed:   7,
		Polish: NelderMeadMinimizer{Tolerance: 1e-14, MaxIterations: 2000, MaxEvaluations: 6000},
	}
	res, err := d.Minimize(bowl, []float64{0, 0})
	if err != nil {
		t.Fatalf("Minimize: %v", err)
	}
	if !res.Converged || math.Abs(res.X[0]-1) > 1e-4 || math.Abs(res.X[1]+2) > 1e-4 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestQuasiRandomSequence(t *testing.T) {
	t.Parallel()
	a := QuasiRandomSequence(1500, 2, 1)
	b := QuasiRandomSequence(1500, 2, 1)
	if len(a) != 1500 {
		t.Fatalf("got %d points", len(a))
	}
	var mean [2]float64
	for i := range a {
		if !floats.Equal(a[i], b[i]) {
			t.Fatalf("point %d differs between runs: %v %v", i, a[i], b[i])
		}
		for d, v := range a[i] {
			if v < 0 || v > 1 {
				t.Fatalf("point %d outside the unit square: %v", i, a[i])
			}
			mean[d] += v / 1500
		}
	}
	for d, m := range mean {
		if math.Abs(m-0.5) > 0.02 {
			t.Fatalf("dimension %d mean %g is not close to 0.5", d, m)
		}
	}
	if QuasiRandomSequence(0, 2, 1) != nil {
		t.Fatalf("empty request should return nil")
	}
}
