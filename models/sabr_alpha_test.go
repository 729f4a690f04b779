package models

import (
	"errors"
	"math"
	"testing"
)

type failingRootFinder struct{}

func (failingRootFinder) FindRoot(func(float64) float64, float64, float64) (float64, error) {
	return 0, ErrNotBracketed
}

func TestSolveAlphaConverges(t *testing.T) {
	t.Parallel()
	sol := SolveAlpha(BrentSolver{Tolerance: 1e-14}, 0.5, -0.3, 0.4, 1, 100, 0.25, 1e-7)
	if sol.Outcome != AlphaConverged || sol.Err != nil {
		t.Fatalf("outcome %s, err %v", sol.Outcome, sol.Err)
	}
	if r := atmCubic(0.5, -0.3, 0.4, 1, 100, 0.25)(sol.Value); math.Abs(r) > 1e-10 {
		t.Fatalf("cubic residual %g at alpha %g", r, sol.Value)
	}

	vol, err := HaganEvaluator{}.ImpliedVolatility(SABRParams{Alpha: sol.Value, Beta: 0.5, Rho: -0.3, Nu: 0.4}, 100, 1, 100)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if math.Abs(vol-0.25) > 1e-12 {
		t.Fatalf("ATM vol %g, want 0.25", vol)
	}
}

func TestSolveAlphaIsIdempotent(t *testing.T) {
	t.Parallel()
	rf := BrentSolver{Tolerance: 1e-14}
	first := SolveAlpha(rf, 0.7, 0.2, 0.9, 3, 0.03, 0.2, 1e-7)
	if first.Outcome != AlphaConverged {
		t.Fatalf("first solve: %s", first.Outcome)
	}
	vol, err := HaganEvaluator{}.ImpliedVolatility(SABRParams{Alpha: first.Value, Beta: 0.7, Rho: 0.2, Nu: 0.9}, 0.03, 3, 0.03)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	second := SolveAlpha(rf, 0.7, 0.2, 0.9, 3, 0.03, vol, 1e-7)
	if math.Abs(second.Value-first.Value) > 1e-12 {
		t.Fatalf("alpha %g then %g", first.Value, second.Value)
	}
}

func TestSolveAlphaFallsBackToApproximation(t *testing.T) {
	t.Parallel()
	sol := SolveAlpha(failingRootFinder{}, 0.5, 0, 0.4, 1, 100, 0.25, 1e-7)
	if sol.Outcome != AlphaApproximated {
		t.Fatalf("outcome %s, want approximated", sol.Outcome)
	}
	if !errors.Is(sol.Err, ErrNotBracketed) {
		t.Fatalf("expected the root finder error, got %v", sol.Err)
	}
	if want := ApproximateAlpha(0.25, 100, 0.5); sol.Value != want {
		t.Fatalf("alpha %g, want approximation %g", sol.Value, want)
	}
}

func TestSolveAlphaFailsOnNonPositiveApproximation(t *testing.T) {
	t.Parallel()
	sol := SolveAlpha(BrentSolver{}, 0.5, 0, 0.4, 1, 100, 0, 1e-7)
	if sol.Outcome != AlphaFailed || !errors.Is(sol.Err, ErrDomain) {
		t.Fatalf("outcome %s err %v, want failed domain error", sol.Outcome, sol.Err)
	}
}
