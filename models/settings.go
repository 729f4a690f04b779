package models

import (
	"github.com/bcdannyboy/sabrcal/market"
)

// SolverConfig holds the numeric knobs of a calibration session. Zero fields
// fall back to DefaultSolverConfig.
type SolverConfig struct {
	// AlphaFloor is the lower end of the alpha bracket.
	AlphaFloor float64 `yaml:"alpha_floor" json:"alpha_floor"`
	// RhoBoundaryEpsilon moves rho off exactly +/-1 during objective evaluation.
	RhoBoundaryEpsilon float64 `yaml:"rho_boundary_epsilon" json:"rho_boundary_epsilon"`
	// Tolerance is the minimizer's function tolerance and the reported
	// calibration error of a converged session.
	Tolerance      float64 `yaml:"tolerance" json:"tolerance"`
	RootTolerance  float64 `yaml:"root_tolerance" json:"root_tolerance"`
	MaxIterations  int     `yaml:"max_iterations" json:"max_iterations"`
	MaxEvaluations int     `yaml:"max_evaluations" json:"max_evaluations"`
	// RecoveryPoints is the length of the quasi-random restart sequence.
	RecoveryPoints     int    `yaml:"recovery_points" json:"recovery_points"`
	RecoveryCandidates int    `yaml:"recovery_candidates" json:"recovery_candidates"`
	RecoverySeed       uint64 `yaml:"recovery_seed" json:"recovery_seed"`
	// FitTolerance is the largest mean squared volatility error a converged
	// minimizer run may end on. Runs above it count as stalled.
	FitTolerance float64 `yaml:"fit_tolerance" json:"fit_tolerance"`
	// Minimizer names the outer minimizer: MinimizerNelderMead or
	// MinimizerDiffEvo.
	Minimizer string `yaml:"minimizer" json:"minimizer"`
}

const (
	MinimizerNelderMead = "nelder_mead"
	MinimizerDiffEvo    = "differential_evolution"
)

// DefaultSolverConfig provides production defaults.
var DefaultSolverConfig = SolverConfig{
	AlphaFloor:         MinimumAlpha,
	RhoBoundaryEpsilon: 1e-6,
	Tolerance:          1e-12,
	RootTolerance:      1e-14,
	MaxIterations:      2000,
	MaxEvaluations:     6000,
	RecoveryPoints:     1500,
	RecoveryCandidates: 5,
	RecoverySeed:       1,
	FitTolerance:       1e-8,
	Minimizer:          MinimizerNelderMead,
}

func (c SolverConfig) withDefaults() SolverConfig {
	d := DefaultSolverConfig
	if c.AlphaFloor > 0 {
		d.AlphaFloor = c.AlphaFloor
	}
	if c.RhoBoundaryEpsilon > 0 {
		d.RhoBoundaryEpsilon = c.RhoBoundaryEpsilon
	}
	if c.Tolerance > 0 {
		d.Tolerance = c.Tolerance
	}
	if c.RootTolerance > 0 {
		d.RootTolerance = c.RootTolerance
	}
	if c.MaxIterations > 0 {
		d.MaxIterations = c.MaxIterations
	}
	if c.MaxEvaluations > 0 {
		d.MaxEvaluations = c.MaxEvaluations
	}
	if c.RecoveryPoints > 0 {
		d.RecoveryPoints = c.RecoveryPoints
	}
	if c.RecoveryCandidates > 0 {
		d.RecoveryCandidates = c.RecoveryCandidates
	}
	if c.RecoverySeed > 0 {
		d.RecoverySeed = c.RecoverySeed
	}
	if c.FitTolerance > 0 {
		d.FitTolerance = c.FitTolerance
	}
	if c.Minimizer != "" {
		d.Minimizer = c.Minimizer
	}
	return d
}

// CalibrationSettings is shared by every session of one calibration run.
type CalibrationSettings struct {
	Beta               float64
	SmileInterpolation market.InterpolationKind
	Handle             string
	Solver             SolverConfig
}

// NewCalibrationSettings validates beta and returns settings with default solver knobs.
func NewCalibrationSettings(beta float64, kind market.InterpolationKind, handle string) (CalibrationSettings, error) {
	if ok, msg := CheckBeta(beta); !ok {
		return CalibrationSettings{}, domainErrorf("%s", msg)
	}
	return CalibrationSettings{
		Beta:               beta,
		SmileInterpolation: kind,
		Handle:             handle,
		Solver:             DefaultSolverConfig,
	}, nil
}
