package models

import (
	"math"

	"gonum.org/v1/gonum/optimize"
)

// MinimizeResult is the outcome of one multivariate minimization.
type MinimizeResult struct {
	X         []float64
	F         float64
	Converged bool
	Status    string
}

// Minimizer is a derivative-free multivariate minimizer.
type Minimizer interface {
	Minimize(f func([]float64) float64, initial []float64) (MinimizeResult, error)
}

// NelderMeadMinimizer runs gonum's Nelder-Mead simplex under function-value
// convergence with iteration and evaluation caps.
type NelderMeadMinimizer struct {
	Tolerance      float64
	MaxIterations  int
	MaxEvaluations int
	ConvergeWindow int
	InitialSimplex float64
}

func (n NelderMeadMinimizer) Minimize(f func([]float64) float64, initial []float64) (MinimizeResult, error) {
	tol := n.Tolerance
	if tol <= 0 {
		tol = 1e-12
	}
	window := n.ConvergeWindow
	if window <= 0 {
		window = 50
	}

	settings := &optimize.Settings{
		MajorIterations: n.MaxIterations,
		FuncEvaluations: n.MaxEvaluations,
		Converger: &optimize.FunctionConverge{
			Absolute:   tol,
			Relative:   tol,
			Iterations: window,
		},
	}

	problem := optimize.Problem{Func: f}
	method := &optimize.NelderMead{SimplexSize: n.InitialSimplex}

	result, err := optimize.Minimize(problem, initial, settings, method)
	if result == nil {
		return MinimizeResult{Status: optimize.Failure.String()}, err
	}

	out := MinimizeResult{
		X:      append([]float64(nil), result.X...),
		F:      result.F,
		Status: result.Status.String(),
	}
	out.Converged = err == nil && isLocalOptimum(result.Status) && !math.IsNaN(result.F) && !math.IsInf(result.F, 0)
	return out, nil
}

// isLocalOptimum separates genuine convergence from limits and failures.
func isLocalOptimum(s optimize.Status) bool {
	switch s {
	case optimize.Success,
		optimize.FunctionThreshold,
		optimize.FunctionConvergence,
		optimize.GradientThreshold,
		optimize.StepConvergence,
		optimize.MethodConverge:
		return true
	}
	return false
}
