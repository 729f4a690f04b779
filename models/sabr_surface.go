package models

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/interp"
)

// SurfaceEntry places a calibrated session at an (expiry, tenor) node.
type SurfaceEntry struct {
	Expiry      float64
	Tenor       float64
	Calibration *Calibration
}

// ParameterSurface is a gap-filled expiry x tenor grid of nu and rho values.
// Rows are expiries, columns are tenors.
type ParameterSurface struct {
	beta     float64
	expiries []float64
	tenors   []float64
	nus      [][]float64
	rhos     [][]float64
	known    [][]bool
}

// BuildParameterSurface collects nu and rho from calibrated full or ATM
// sessions sharing beta and fills the remaining nodes by linear interpolation
// along each tenor column, flat outside the known expiries. Columns with no
// known node are then filled along each expiry row.
func BuildParameterSurface(beta float64, entries []SurfaceEntry) (*ParameterSurface, error) {
	if ok, msg := CheckBeta(beta); !ok {
		return nil, domainErrorf("%s", msg)
	}

	var expiries, tenors []float64
	for _, e := range entries {
		if math.IsNaN(e.Expiry) || math.IsInf(e.Expiry, 0) || math.IsNaN(e.Tenor) || math.IsInf(e.Tenor, 0) {
			return nil, domainErrorf("surface node (%g, %g) is not finite", e.Expiry, e.Tenor)
		}
		expiries = append(expiries, e.Expiry)
		tenors = append(tenors, e.Tenor)
	}
	sort.Float64s(expiries)
	sort.Float64s(tenors)
	expiries = removeDuplicates(expiries)
	tenors = removeDuplicates(tenors)

	s := &ParameterSurface{
		beta:     beta,
		expiries: expiries,
		tenors:   tenors,
		nus:      newGrid(len(expiries), len(tenors)),
		rhos:     newGrid(len(expiries), len(tenors)),
		known:    make([][]bool, len(expiries)),
	}
	for i := range s.known {
		s.known[i] = make([]bool, len(tenors))
	}

	found := 0
	for _, e := range entries {
		if !contributes(e.Calibration, beta) {
			continue
		}
		i := sort.SearchFloat64s(expiries, e.Expiry)
		j := sort.SearchFloat64s(tenors, e.Tenor)
		p := e.Calibration.Params()
		s.nus[i][j] = p.Nu
		s.rhos[i][j] = p.Rho
		if !s.known[i][j] {
			s.known[i][j] = true
			found++
		}
	}
	if found == 0 {
		return nil, domainErrorf("parameter surface has no calibrated entries with beta %g", beta)
	}

	if err := s.fill(); err != nil {
		return nil, err
	}
	return s, nil
}

func contributes(c *Calibration, beta float64) bool {
	if c == nil || !c.IsCalibrated() || c.Settings().Beta != beta {
		return false
	}
	m := c.Mode()
	return m == ModeFull || m == ModeATM
}

func newGrid(rows, cols int) [][]float64 {
	g := make([][]float64, rows)
	for i := range g {
		g[i] = make([]float64, cols)
		for j := range g[i] {
			g[i][j] = math.NaN()
		}
	}
	return g
}

func (s *ParameterSurface) fill() error {
	var empty []int
	for j := range s.tenors {
		var xs, nus, rhos []float64
		for i, t := range s.expiries {
			if s.known[i][j] {
				xs = append(xs, t)
				nus = append(nus, s.nus[i][j])
				rhos = append(rhos, s.rhos[i][j])
			}
		}
		if len(xs) == 0 {
			empty = append(empty, j)
			continue
		}

		nuCurve, err := flatLinear(xs, nus)
		if err != nil {
			return fmt.Errorf("fill nu column %g: %w", s.tenors[j], err)
		}
		rhoCurve, err := flatLinear(xs, rhos)
		if err != nil {
			return fmt.Errorf("fill rho column %g: %w", s.tenors[j], err)
		}
		for i, t := range s.expiries {
			if !s.known[i][j] {
				s.nus[i][j] = nuCurve(t)
				s.rhos[i][j] = rhoCurve(t)
			}
		}
	}
	if len(empty) == 0 {
		return nil
	}

	isEmpty := make(map[int]bool, len(empty))
	for _, j := range empty {
		isEmpty[j] = true
	}
	for i := range s.expiries {
		var xs, nus, rhos []float64
		for j, tenor := range s.tenors {
			if !isEmpty[j] {
				xs = append(xs, tenor)
				nus = append(nus, s.nus[i][j])
				rhos = append(rhos, s.rhos[i][j])
			}
		}
		nuCurve, err := flatLinear(xs, nus)
		if err != nil {
			return fmt.Errorf("fill nu row %g: %w", s.expiries[i], err)
		}
		rhoCurve, err := flatLinear(xs, rhos)
		if err != nil {
			return fmt.Errorf("fill rho row %g: %w", s.expiries[i], err)
		}
		for _, j := range empty {
			s.nus[i][j] = nuCurve(s.tenors[j])
			s.rhos[i][j] = rhoCurve(s.tenors[j])
		}
	}
	return nil
}

// flatLinear fits a piecewise-linear curve through strictly increasing xs that
// is flat outside [xs[0], xs[n-1]].
func flatLinear(xs, ys []float64) (func(float64) float64, error) {
	if len(xs) == 1 {
		y := ys[0]
		return func(float64) float64 { return y }, nil
	}
	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return nil, err
	}
	lo, hi := xs[0], xs[len(xs)-1]
	return func(x float64) float64 {
		return pl.Predict(math.Max(lo, math.Min(hi, x)))
	}, nil
}

func (s *ParameterSurface) Beta() float64 { return s.beta }

func (s *ParameterSurface) Expiries() []float64 { return append([]float64(nil), s.expiries...) }

func (s *ParameterSurface) Tenors() []float64 { return append([]float64(nil), s.tenors...) }

// Nu returns the filled nu at expiry index i and tenor index j.
func (s *ParameterSurface) Nu(i, j int) float64 { return s.nus[i][j] }

// Rho returns the filled rho at expiry index i and tenor index j.
func (s *ParameterSurface) Rho(i, j int) float64 { return s.rhos[i][j] }

// Known reports whether node (i, j) came from a calibrated session.
func (s *ParameterSurface) Known(i, j int) bool { return s.known[i][j] }

// Interpolate returns nu and rho at (tenor, expiry) by bilinear interpolation,
// flat outside the grid.
func (s *ParameterSurface) Interpolate(tenor, expiry float64) (nu, rho float64) {
	i0, i1, wi := bracket(s.expiries, expiry)
	j0, j1, wj := bracket(s.tenors, tenor)
	return bilinear(s.nus, i0, i1, j0, j1, wi, wj), bilinear(s.rhos, i0, i1, j0, j1, wi, wj)
}

// bracket locates x on an ascending axis and returns the neighbouring indices
// and the weight of the upper one.
func bracket(axis []float64, x float64) (int, int, float64) {
	n := len(axis)
	if n == 1 || x <= axis[0] {
		return 0, 0, 0
	}
	if x >= axis[n-1] {
		return n - 1, n - 1, 0
	}
	hi := clamp(sort.SearchFloat64s(axis, x), 1, n-1)
	if axis[hi] == x {
		return hi, hi, 0
	}
	lo := hi - 1
	return lo, hi, (x - axis[lo]) / (axis[hi] - axis[lo])
}

func bilinear(g [][]float64, i0, i1, j0, j1 int, wi, wj float64) float64 {
	return (1-wi)*(1-wj)*g[i0][j0] +
		(1-wi)*wj*g[i0][j1] +
		wi*(1-wj)*g[i1][j0] +
		wi*wj*g[i1][j1]
}

func removeDuplicates(sorted []float64) []float64 {
	if len(sorted) == 0 {
		return sorted
	}
	result := []float64{sorted[0]}
	for i := 1; i < len(sorted); i++ {
		if sorted[i] != sorted[i-1] {
			result = append(result, sorted[i])
		}
	}
	return result
}

func clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
