package models

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/MaxHalford/eaopt"
)

// DiffEvoMinimizer searches globally with differential evolution and polishes
// the best agent with Nelder-Mead. The initial point only seeds the polish
// when it beats the evolved agent.
type DiffEvoMinimizer struct {
	Agents int
	Steps  int
	// Lower and Upper bound the initial population in every dimension.
	Lower, Upper float64
	Seed         int64
	Polish       NelderMeadMinimizer
}

func (d DiffEvoMinimizer) Minimize(f func([]float64) float64, initial []float64) (MinimizeResult, error) {
	agents, steps := d.Agents, d.Steps
	if agents <= 0 {
		agents = 40
	}
	if steps <= 0 {
		steps = 30
	}
	lower, upper := d.Lower, d.Upper
	if !(upper > lower) {
		lower, upper = 0, math.Pi
	}

	de, err := eaopt.NewDiffEvo(uint(agents), uint(steps), lower, upper, 0.5, 0.2, false, rand.New(rand.NewSource(d.Seed)))
	if err != nil {
		return MinimizeResult{}, fmt.Errorf("differential evolution: %w", err)
	}
	x, fx, err := de.Minimize(f, uint(len(initial)))
	if err != nil {
		return MinimizeResult{}, fmt.Errorf("differential evolution: %w", err)
	}

	start := x
	if f0 := f(initial); f0 < fx {
		start = initial
	}
	return d.Polish.Minimize(f, start)
}

func newMinimizer(solver SolverConfig) (Minimizer, error) {
	nm := NelderMeadMinimizer{
		Tolerance:      solver.Tolerance,
		MaxIterations:  solver.MaxIterations,
		MaxEvaluations: solver.MaxEvaluations,
	}
	switch solver.Minimizer {
	case MinimizerNelderMead:
		return nm, nil
	case MinimizerDiffEvo:
		return DiffEvoMinimizer{Seed: int64(solver.RecoverySeed), Polish: nm}, nil
	}
	return nil, domainErrorf("unknown minimizer %q", solver.Minimizer)
}
