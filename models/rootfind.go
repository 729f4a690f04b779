package models

import (
	"errors"
	"fmt"
	"math"
)

const machineEpsilon = 2.220446049250313e-16

// ErrNotBracketed is returned when f has the same sign at both bounds.
var ErrNotBracketed = errors.New("root not bracketed")

// RootFinder finds a root of f inside [lower, upper].
type RootFinder interface {
	FindRoot(f func(float64) float64, lower, upper float64) (float64, error)
}

// BrentSolver is Brent's bracketing method (inverse quadratic interpolation,
// secant and bisection).
type BrentSolver struct {
	Tolerance     float64
	MaxIterations int
}

func (b BrentSolver) FindRoot(f func(float64) float64, lower, upper float64) (float64, error) {
	tol := b.Tolerance
	if tol <= 0 {
		tol = 1e-12
	}
	maxIter := b.MaxIterations
	if maxIter <= 0 {
		maxIter = 100
	}

	a, c := lower, upper
	fa, fc := f(a), f(c)
	if math.IsNaN(fa) || math.IsNaN(fc) {
		return 0, fmt.Errorf("function is NaN at a bound [%g, %g]", lower, upper)
	}
	if fa == 0 {
		return a, nil
	}
	if fc == 0 {
		return c, nil
	}
	if (fa > 0) == (fc > 0) {
		return 0, fmt.Errorf("%w: f(%g)=%g, f(%g)=%g", ErrNotBracketed, lower, fa, upper, fc)
	}

	// b is the best estimate, a the previous one, c the contrapoint.
	bx, fb := c, fc
	c, fc = a, fa
	d := bx - a
	e := d

	for i := 0; i < maxIter; i++ {
		if (fb > 0) == (fc > 0) {
			c, fc = a, fa
			d = bx - a
			e = d
		}
		if math.Abs(fc) < math.Abs(fb) {
			a, bx, c = bx, c, bx
			fa, fb, fc = fb, fc, fb
		}

		tol1 := 2*machineEpsilon*math.Abs(bx) + 0.5*tol
		m := 0.5 * (c - bx)
		if math.Abs(m) <= tol1 || fb == 0 {
			return bx, nil
		}

		if math.Abs(e) >= tol1 && math.Abs(fa) > math.Abs(fb) {
			var p, q float64
			s := fb / fa
			if a == c {
				p = 2 * m * s
				q = 1 - s
			} else {
				q = fa / fc
				r := fb / fc
				p = s * (2*m*q*(q-r) - (bx-a)*(r-1))
				q = (q - 1) * (r - 1) * (s - 1)
			}
			if p > 0 {
				q = -q
			} else {
				p = -p
			}
			if 2*p < math.Min(3*m*q-math.Abs(tol1*q), math.Abs(e*q)) {
				e = d
				d = p / q
			} else {
				d = m
				e = d
			}
		} else {
			d = m
			e = d
		}

		a, fa = bx, fb
		if math.Abs(d) > tol1 {
			bx += d
		} else {
			bx += math.Copysign(tol1, m)
		}
		fb = f(bx)
		if math.IsNaN(fb) {
			return 0, fmt.Errorf("function is NaN at %g", bx)
		}
	}
	return 0, fmt.Errorf("brent: no convergence after %d iterations", maxIter)
}
