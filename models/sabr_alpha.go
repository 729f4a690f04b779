package models

import (
	"math"
)

// AlphaOutcome says how an alpha value was obtained.
type AlphaOutcome int

const (
	AlphaFailed AlphaOutcome = iota
	AlphaConverged
	AlphaApproximated
)

func (o AlphaOutcome) String() string {
	switch o {
	case AlphaConverged:
		return "converged"
	case AlphaApproximated:
		return "approximated"
	default:
		return "failed"
	}
}

// AlphaSolution is the result of the ATM alpha solve. Err carries the
// root-finder error behind an approximated value.
type AlphaSolution struct {
	Value   float64
	Outcome AlphaOutcome
	Err     error
}

// ApproximateAlpha is the zeroth-order ATM relation alpha = sigma_atm * F^(1-beta).
func ApproximateAlpha(atmVol, forward, beta float64) float64 {
	return atmVol * math.Pow(forward, 1-beta)
}

// atmCubic is the Hagan ATM volatility identity written as a cubic in alpha.
func atmCubic(beta, rho, nu, exerciseTime, forward, atmVol float64) func(float64) float64 {
	oneMinusBeta := 1 - beta
	fPow := math.Pow(forward, oneMinusBeta)

	c3 := oneMinusBeta * oneMinusBeta * exerciseTime / (24 * fPow * fPow)
	c2 := rho * beta * nu * exerciseTime / (4 * fPow)
	c1 := 1 + (2-3*rho*rho)*nu*nu*exerciseTime/24
	c0 := -atmVol * fPow

	return func(alpha float64) float64 {
		return ((c3*alpha+c2)*alpha+c1)*alpha + c0
	}
}

// SolveAlpha finds the positive root of the ATM cubic between
// min(floor, approx/2) and 2*approx. When the root finder fails the closed-form
// approximation is returned as AlphaApproximated.
func SolveAlpha(rf RootFinder, beta, rho, nu, exerciseTime, forward, atmVol, floor float64) AlphaSolution {
	approx := ApproximateAlpha(atmVol, forward, beta)
	if math.IsNaN(approx) || math.IsInf(approx, 0) || approx <= 0 {
		return AlphaSolution{Outcome: AlphaFailed, Err: domainErrorf("alpha approximation %g is not positive", approx)}
	}

	lower := math.Min(floor, approx/2)
	upper := 2 * approx

	root, err := rf.FindRoot(atmCubic(beta, rho, nu, exerciseTime, forward, atmVol), lower, upper)
	if err != nil || math.IsNaN(root) || root <= 0 {
		return AlphaSolution{Value: approx, Outcome: AlphaApproximated, Err: err}
	}
	return AlphaSolution{Value: root, Outcome: AlphaConverged}
}
