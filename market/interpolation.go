package market

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/interp"
)

// ErrNoData is returned by curves without pillars.
var ErrNoData = errors.New("no market data")

// InterpolationKind selects how a volatility term structure is read between pillars.
type InterpolationKind int

const (
	// Linear interpolates volatility linearly in time.
	Linear InterpolationKind = iota
	// LinearVariance interpolates total variance vol^2 * t linearly in time.
	LinearVariance
	// MonotoneCubic is the Fritsch-Butland monotone cubic on volatility.
	MonotoneCubic
	// Akima is the Akima spline on volatility.
	Akima
)

func (k InterpolationKind) String() string {
	switch k {
	case Linear:
		return "linear"
	case LinearVariance:
		return "linear_variance"
	case MonotoneCubic:
		return "monotone_cubic"
	case Akima:
		return "akima"
	default:
		return fmt.Sprintf("InterpolationKind(%d)", int(k))
	}
}

// ParseInterpolationKind accepts the names produced by String.
func ParseInterpolationKind(s string) (InterpolationKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "linear":
		return Linear, nil
	case "linear_variance", "variance":
		return LinearVariance, nil
	case "monotone_cubic", "fritsch_butland":
		return MonotoneCubic, nil
	case "akima":
		return Akima, nil
	}
	return Linear, fmt.Errorf("unknown interpolation kind %q", s)
}

func (k InterpolationKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *InterpolationKind) UnmarshalText(b []byte) error {
	v, err := ParseInterpolationKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

type fitPredictor interface {
	Fit(xs, ys []float64) error
	Predict(x float64) float64
}

func predictorFor(kind InterpolationKind, n int) fitPredictor {
	switch {
	case kind == MonotoneCubic && n >= 3:
		return &interp.FritschButland{}
	case kind == Akima && n >= 3:
		return &interp.AkimaSpline{}
	}
	return &interp.PiecewiseLinear{}
}

// curveValue evaluates the pillars (xs, ys) at x, flat outside the pillar range.
func curveValue(kind InterpolationKind, xs, ys []float64, x float64) (float64, error) {
	switch len(xs) {
	case 0:
		return 0, ErrNoData
	case 1:
		return ys[0], nil
	}
	x = math.Max(xs[0], math.Min(xs[len(xs)-1], x))

	p := predictorFor(kind, len(xs))
	if err := p.Fit(xs, ys); err != nil {
		return 0, fmt.Errorf("fit %s curve: %w", kind, err)
	}
	return p.Predict(x), nil
}
