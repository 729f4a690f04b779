package models

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/bcdannyboy/sabrcal/logger"
)

// objectivePenalty replaces the residual when the model cannot be evaluated.
const objectivePenalty = 1e10

// CalibrationMode is fixed when a session is constructed.
type CalibrationMode int

const (
	ModeFull CalibrationMode = iota
	ModeATM
	ModeInterpolated
)

func (m CalibrationMode) String() string {
	switch m {
	case ModeFull:
		return "full"
	case ModeATM:
		return "atm"
	case ModeInterpolated:
		return "interpolated"
	default:
		return "unknown"
	}
}

// StrikeVolatilityPoint is one market quote of a smile.
type StrikeVolatilityPoint struct {
	Strike           float64 `json:"strike"`
	MarketVolatility float64 `json:"market_volatility"`
}

type calibrationMode interface {
	kind() CalibrationMode
}

type fullMode struct {
	points []StrikeVolatilityPoint
	market []float64
	model  []float64
}

type atmMode struct {
	nu, rho, atmVol float64
}

type interpolatedMode struct {
	surface *ParameterSurface
	tenor   float64
	nu, rho float64
	atmVol  float64
}

func (fullMode) kind() CalibrationMode         { return ModeFull }
func (atmMode) kind() CalibrationMode          { return ModeATM }
func (interpolatedMode) kind() CalibrationMode { return ModeInterpolated }

// Calibration is one SABR calibration session for a single expiry (or
// expiry/tenor point). It is not safe for concurrent use.
type Calibration struct {
	settings     CalibrationSettings
	solver       SolverConfig
	assetPrice   float64
	exerciseTime float64
	mode         calibrationMode

	params           SABRParams
	calibrated       bool
	calibrationError float64
	residual         float64
	alphaOutcome     AlphaOutcome

	evaluator  Evaluator
	rootFinder RootFinder
	minimizer  Minimizer
	log        *logger.Entry
}

// Option customises the collaborators of a Calibration.
type Option func(*Calibration)

func WithEvaluator(e Evaluator) Option {
	return func(c *Calibration) { c.evaluator = e }
}

func WithRootFinder(rf RootFinder) Option {
	return func(c *Calibration) { c.rootFinder = rf }
}

func WithMinimizer(m Minimizer) Option {
	return func(c *Calibration) { c.minimizer = m }
}

func newCalibration(settings CalibrationSettings, forward, exerciseTime float64, mode calibrationMode, opts []Option) (*Calibration, error) {
	if ok, msg := CheckBeta(settings.Beta); !ok {
		return nil, domainErrorf("%s", msg)
	}
	if !(forward > 0) || math.IsInf(forward, 0) {
		return nil, domainErrorf("forward must be positive and finite, got %g", forward)
	}
	if !(exerciseTime >= 0) || math.IsInf(exerciseTime, 0) {
		return nil, domainErrorf("exercise time must be non-negative and finite, got %g", exerciseTime)
	}

	solver := settings.Solver.withDefaults()
	c := &Calibration{
		settings:     settings,
		solver:       solver,
		assetPrice:   forward,
		exerciseTime: exerciseTime,
		mode:         mode,
		params:       SABRParams{Beta: settings.Beta},
		evaluator:    HaganEvaluator{},
		rootFinder:   BrentSolver{Tolerance: solver.RootTolerance},
	}
	m, err := newMinimizer(solver)
	if err != nil {
		return nil, err
	}
	c.minimizer = m
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.GetLogger().WithComponent("sabr").WithFields(logger.Fields{
		"handle": settings.Handle,
		"mode":   mode.kind().String(),
		"expiry": exerciseTime,
	})
	return c, nil
}

// NewFullCalibration builds a session that fits alpha, rho and nu to a smile.
// Strikes must be ascending; vols are the market volatilities at those strikes.
func NewFullCalibration(settings CalibrationSettings, strikes, vols []float64, forward, exerciseTime float64, opts ...Option) (*Calibration, error) {
	if len(strikes) == 0 {
		return nil, domainErrorf("strike list is empty")
	}
	if len(strikes) != len(vols) {
		return nil, domainErrorf("got %d strikes but %d volatilities", len(strikes), len(vols))
	}

	points := make([]StrikeVolatilityPoint, len(strikes))
	for i := range strikes {
		if !(strikes[i] > 0) || math.IsInf(strikes[i], 0) {
			return nil, domainErrorf("strike %d must be positive and finite, got %g", i, strikes[i])
		}
		if !(vols[i] > 0) || math.IsInf(vols[i], 0) {
			return nil, domainErrorf("volatility at strike %g must be positive and finite, got %g", strikes[i], vols[i])
		}
		if i > 0 && strikes[i] < strikes[i-1] {
			return nil, domainErrorf("strikes must be ascending, %g follows %g", strikes[i], strikes[i-1])
		}
		points[i] = StrikeVolatilityPoint{Strike: strikes[i], MarketVolatility: vols[i]}
	}

	m := &fullMode{points: points, market: append([]float64(nil), vols...), model: make([]float64, len(vols))}
	return newCalibration(settings, forward, exerciseTime, m, opts)
}

// NewATMCalibration builds a session with nu and rho supplied; only alpha is solved.
func NewATMCalibration(settings CalibrationSettings, nu, rho, atmVol, forward, exerciseTime float64, opts ...Option) (*Calibration, error) {
	if ok, msg := CheckNu(nu); !ok {
		return nil, domainErrorf("%s", msg)
	}
	if ok, msg := CheckRho(rho); !ok {
		return nil, domainErrorf("%s", msg)
	}
	if !(atmVol > 0) || math.IsInf(atmVol, 0) {
		return nil, domainErrorf("ATM volatility must be positive and finite, got %g", atmVol)
	}
	return newCalibration(settings, forward, exerciseTime, &atmMode{nu: nu, rho: rho, atmVol: atmVol}, opts)
}

// NewInterpolatedCalibration reads nu and rho off a parameter surface at
// (tenor, exerciseTime) and solves alpha against the ATM volatility.
func NewInterpolatedCalibration(settings CalibrationSettings, surface *ParameterSurface, tenor, atmVol, forward, exerciseTime float64, opts ...Option) (*Calibration, error) {
	if surface == nil {
		return nil, domainErrorf("parameter surface is nil")
	}
	if surface.Beta() != settings.Beta {
		return nil, domainErrorf("surface beta %g does not match settings beta %g", surface.Beta(), settings.Beta)
	}
	if !(atmVol > 0) || math.IsInf(atmVol, 0) {
		return nil, domainErrorf("ATM volatility must be positive and finite, got %g", atmVol)
	}

	nu, rho := surface.Interpolate(tenor, exerciseTime)
	if ok, msg := CheckNu(nu); !ok {
		return nil, domainErrorf("interpolated %s", msg)
	}
	if ok, msg := CheckRho(rho); !ok {
		return nil, domainErrorf("interpolated %s", msg)
	}

	mode := &interpolatedMode{surface: surface, tenor: tenor, nu: nu, rho: rho, atmVol: atmVol}
	return newCalibration(settings, forward, exerciseTime, mode, opts)
}

func (c *Calibration) Settings() CalibrationSettings { return c.settings }
func (c *Calibration) Mode() CalibrationMode         { return c.mode.kind() }
func (c *Calibration) Params() SABRParams            { return c.params }
func (c *Calibration) IsCalibrated() bool            { return c.calibrated }
func (c *Calibration) AssetPrice() float64           { return c.assetPrice }
func (c *Calibration) ExerciseTime() float64         { return c.exerciseTime }
func (c *Calibration) AlphaOutcome() AlphaOutcome    { return c.alphaOutcome }

// CalibrationError is the solver tolerance of a converged full calibration.
func (c *Calibration) CalibrationError() float64 { return c.calibrationError }

// Residual is the sum of squared volatility errors at the calibrated parameters.
func (c *Calibration) Residual() float64 { return c.residual }

// Points returns a copy of the market smile of a full-mode session.
func (c *Calibration) Points() []StrikeVolatilityPoint {
	m, ok := c.mode.(*fullMode)
	if !ok {
		return nil
	}
	return append([]StrikeVolatilityPoint(nil), m.points...)
}

// ImpliedVolatility evaluates the session's current parameters at strike.
func (c *Calibration) ImpliedVolatility(strike float64) (float64, error) {
	return c.evaluator.ImpliedVolatility(c.params, c.assetPrice, c.exerciseTime, strike)
}

// Calibrate runs the mode chosen at construction. A false result without an
// error means the fit did not converge; the parameters are still populated.
func (c *Calibration) Calibrate() (bool, error) {
	switch m := c.mode.(type) {
	case *fullMode:
		return c.calibrateFull(m)
	case *atmMode:
		return c.calibrateAlphaOnly(m.nu, m.rho, m.atmVol), nil
	case *interpolatedMode:
		return c.calibrateAlphaOnly(m.nu, m.rho, m.atmVol), nil
	default:
		return false, domainErrorf("unknown calibration mode %T", m)
	}
}

func (c *Calibration) calibrateAlphaOnly(nu, rho, atmVol float64) bool {
	sol := c.solveAlpha(rho, nu, atmVol)
	c.alphaOutcome = sol.Outcome
	c.params = SABRParams{Alpha: sol.Value, Beta: c.settings.Beta, Rho: rho, Nu: nu}
	c.calibrated = sol.Outcome != AlphaFailed
	c.calibrationError = 0
	c.residual = 0
	return c.calibrated
}

func (c *Calibration) solveAlpha(rho, nu, atmVol float64) AlphaSolution {
	sol := SolveAlpha(c.rootFinder, c.settings.Beta, rho, nu, c.exerciseTime, c.assetPrice, atmVol, c.solver.AlphaFloor)
	if sol.Outcome == AlphaApproximated {
		c.log.WithError(sol.Err).WithFields(logger.Fields{"rho": rho, "nu": nu}).Debug("alpha root solve failed, using approximation")
	}
	return sol
}

type fullSeed struct {
	atmVol float64
	theta  float64
	mu     float64
}

func (c *Calibration) seedFull(m *fullMode) (fullSeed, error) {
	n := len(m.points)
	logMoneyness := make([]float64, n)
	atm := 0
	for i, p := range m.points {
		logMoneyness[i] = math.Log(p.Strike / c.assetPrice)
		if math.Abs(logMoneyness[i]) < math.Abs(logMoneyness[atm]) {
			atm = i
		}
	}
	if atm == 0 || atm == n-1 {
		return fullSeed{}, domainErrorf("ATM strike %g is not strictly inside the strike range [%g, %g]",
			c.assetPrice, m.points[0].Strike, m.points[n-1].Strike)
	}

	dx := logMoneyness[atm+1] - logMoneyness[atm-1]
	if dx == 0 {
		return fullSeed{}, domainErrorf("strikes around the ATM strike %g are identical", m.points[atm].Strike)
	}
	atmVol := m.points[atm].MarketVolatility
	slope := (m.points[atm+1].MarketVolatility - m.points[atm-1].MarketVolatility) / dx

	rho := 0.5 * sign(slope)
	nu := 4 * math.Abs(slope+rho*(1-c.settings.Beta)*atmVol)

	return fullSeed{atmVol: atmVol, theta: math.Acos(rho), mu: math.Sqrt(nu)}, nil
}

func (c *Calibration) calibrateFull(m *fullMode) (bool, error) {
	seed, err := c.seedFull(m)
	if err != nil {
		return false, err
	}
	c.calibrated = false
	c.calibrationError = 0

	c.log.WithFields(logger.Fields{"theta": seed.theta, "mu": seed.mu, "atm_vol": seed.atmVol}).Debug("seeded full calibration")

	objective := func(x []float64) float64 {
		rho, nu := c.rhoNu(x[0], x[1])
		return c.residualAt(m, seed.atmVol, rho, nu)
	}

	var best MinimizeResult
	haveBest := false
	minimize := func(x []float64) (MinimizeResult, bool) {
		res, err := c.minimizer.Minimize(objective, x)
		if err != nil || len(res.X) != 2 {
			return res, false
		}
		if !haveBest || res.F < best.F {
			best, haveBest = res, true
		}
		return res, true
	}
	run := func(theta, mu float64) (MinimizeResult, bool) {
		res, ok := minimize([]float64{theta, mu})
		if !ok || !res.Converged {
			return res, false
		}
		if c.fits(m, res.F) {
			return res, true
		}
		// A collapsed simplex can report convergence on a slope. Rebuild it
		// once around the stopping point.
		c.log.WithFields(logger.Fields{"residual": res.F, "status": res.Status}).Debug("minimizer stopped above the fit tolerance, restarting")
		res, ok = minimize(append([]float64(nil), res.X...))
		return res, ok && res.Converged && c.fits(m, res.F)
	}

	if res, ok := run(seed.theta, seed.mu); ok {
		c.accept(m, seed.atmVol, res.X)
		return true, nil
	}

	candidates := c.recoveryCandidates(m, seed.atmVol)
	c.log.WithFields(logger.Fields{"candidates": len(candidates)}).Debug("minimizer did not converge, starting quasi-random recovery")
	for _, cand := range candidates {
		if res, ok := run(math.Acos(cand.rho), math.Sqrt(cand.nu)); ok {
			c.accept(m, seed.atmVol, res.X)
			return true, nil
		}
	}

	// Leave the session populated from the best point seen.
	theta, mu := seed.theta, seed.mu
	if haveBest {
		theta, mu = best.X[0], best.X[1]
	}
	c.setParams(m, seed.atmVol, theta, mu)
	c.calibrated = false
	c.log.WithFields(logger.Fields{"residual": c.residual}).Warn("full calibration did not converge")
	return false, nil
}

func (c *Calibration) accept(m *fullMode, atmVol float64, x []float64) {
	c.setParams(m, atmVol, x[0], x[1])
	c.calibrated = true
	c.calibrationError = c.solver.Tolerance
}

func (c *Calibration) setParams(m *fullMode, atmVol, theta, mu float64) {
	rho, nu := c.rhoNu(theta, mu)
	sol := c.solveAlpha(rho, nu, atmVol)
	c.alphaOutcome = sol.Outcome
	c.params = SABRParams{Alpha: sol.Value, Beta: c.settings.Beta, Rho: rho, Nu: nu}
	c.residual = c.sumSquares(m, c.params)
}

// rhoNu maps the unconstrained (theta, mu) pair back to (rho, nu).
func (c *Calibration) rhoNu(theta, mu float64) (float64, float64) {
	return c.clampRho(math.Cos(theta)), mu * mu
}

func (c *Calibration) clampRho(rho float64) float64 {
	switch {
	case rho >= 1:
		return 1 - c.solver.RhoBoundaryEpsilon
	case rho <= -1:
		return -1 + c.solver.RhoBoundaryEpsilon
	}
	return rho
}

func (c *Calibration) residualAt(m *fullMode, atmVol, rho, nu float64) float64 {
	sol := SolveAlpha(c.rootFinder, c.settings.Beta, rho, nu, c.exerciseTime, c.assetPrice, atmVol, c.solver.AlphaFloor)
	if sol.Outcome == AlphaFailed {
		return objectivePenalty
	}
	return c.sumSquares(m, SABRParams{Alpha: sol.Value, Beta: c.settings.Beta, Rho: rho, Nu: nu})
}

// fits rejects runs that stopped on the penalty plateau or on a residual
// larger than the fit tolerance.
func (c *Calibration) fits(m *fullMode, residual float64) bool {
	if math.IsNaN(residual) || residual >= objectivePenalty {
		return false
	}
	return residual/float64(len(m.points)) <= c.solver.FitTolerance
}

func (c *Calibration) sumSquares(m *fullMode, p SABRParams) float64 {
	for i, pt := range m.points {
		vol, err := c.evaluator.ImpliedVolatility(p, c.assetPrice, c.exerciseTime, pt.Strike)
		if err != nil {
			return objectivePenalty
		}
		m.model[i] = vol
	}
	floats.Sub(m.model, m.market)
	sum := floats.Dot(m.model, m.model)
	if math.IsNaN(sum) || math.IsInf(sum, 0) {
		return objectivePenalty
	}
	return sum
}

type recoveryCandidate struct {
	rho, nu  float64
	residual float64
}

// recoveryCandidates scores the quasi-random sequence and keeps the lowest
// residuals in ascending order. Equal residuals are kept once.
func (c *Calibration) recoveryCandidates(m *fullMode, atmVol float64) []recoveryCandidate {
	limit := c.solver.RecoveryCandidates
	kept := make([]recoveryCandidate, 0, limit+1)

	for _, p := range QuasiRandomSequence(c.solver.RecoveryPoints, 2, c.solver.RecoverySeed) {
		nu := p[0]
		rho := c.clampRho(2*p[1] - 1)
		r := c.residualAt(m, atmVol, rho, nu)
		// Points where the model cannot be evaluated are never restart candidates.
		if r >= objectivePenalty {
			continue
		}
		kept = insertCandidate(kept, recoveryCandidate{rho: rho, nu: nu, residual: r}, limit)
	}
	return kept
}

func insertCandidate(kept []recoveryCandidate, cand recoveryCandidate, limit int) []recoveryCandidate {
	i := sort.Search(len(kept), func(i int) bool { return kept[i].residual >= cand.residual })
	if i < len(kept) && kept[i].residual == cand.residual {
		return kept
	}
	if i >= limit {
		return kept
	}
	kept = append(kept, recoveryCandidate{})
	copy(kept[i+1:], kept[i:])
	kept[i] = cand
	if len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}
