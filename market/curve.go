package market

import (
	"fmt"
	"math"
	"time"
)

// YearFraction is ACT/365F between two dates.
func YearFraction(start, end time.Time) float64 {
	return end.Sub(start).Hours() / 24 / 365
}

// VolCurve is an implied volatility term structure indexed by year fraction.
type VolCurve struct {
	Times []float64 `json:"times" yaml:"times"`
	Vols  []float64 `json:"vols" yaml:"vols"`
}

// Validate checks lengths, ordering and positivity of the pillars.
func (c VolCurve) Validate() error {
	if len(c.Times) == 0 {
		return ErrNoData
	}
	if len(c.Times) != len(c.Vols) {
		return fmt.Errorf("vol curve has %d times but %d vols", len(c.Times), len(c.Vols))
	}
	for i := range c.Times {
		if i > 0 && c.Times[i] <= c.Times[i-1] {
			return fmt.Errorf("vol curve times must be strictly increasing at %d", i)
		}
		if !(c.Vols[i] > 0) {
			return fmt.Errorf("vol curve vol at %g must be positive, got %g", c.Times[i], c.Vols[i])
		}
	}
	return nil
}

// At returns the volatility at year fraction t.
func (c VolCurve) At(t float64, kind InterpolationKind) (float64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	if kind != LinearVariance {
		return curveValue(kind, c.Times, c.Vols, t)
	}

	variances := make([]float64, len(c.Times))
	for i, tt := range c.Times {
		variances[i] = c.Vols[i] * c.Vols[i] * tt
	}
	switch {
	case len(c.Times) == 1 || t <= c.Times[0]:
		return c.Vols[0], nil
	case t >= c.Times[len(c.Times)-1]:
		return c.Vols[len(c.Vols)-1], nil
	}
	w, err := curveValue(Linear, c.Times, variances, t)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(w / t), nil
}

// RateCurve is a forward curve built from continuously compounded zero rates
// and a flat dividend (or foreign) yield.
type RateCurve struct {
	Spot          float64   `json:"spot" yaml:"spot"`
	Times         []float64 `json:"times" yaml:"times"`
	ZeroRates     []float64 `json:"zero_rates" yaml:"zero_rates"`
	DividendYield float64   `json:"dividend_yield" yaml:"dividend_yield"`
}

func (c RateCurve) zeroRate(t float64) (float64, error) {
	if len(c.Times) != len(c.ZeroRates) {
		return 0, fmt.Errorf("rate curve has %d times but %d rates", len(c.Times), len(c.ZeroRates))
	}
	if len(c.Times) == 0 {
		return 0, nil
	}
	return curveValue(Linear, c.Times, c.ZeroRates, t)
}

// DiscountFactor returns exp(-r(t) t).
func (c RateCurve) DiscountFactor(baseDate, expiry time.Time) (float64, error) {
	t := YearFraction(baseDate, expiry)
	r, err := c.zeroRate(t)
	if err != nil {
		return 0, err
	}
	return math.Exp(-r * t), nil
}

// ForwardPrice returns S exp((r(t) - q) t).
func (c RateCurve) ForwardPrice(baseDate, expiry time.Time) (float64, error) {
	if !(c.Spot > 0) {
		return 0, fmt.Errorf("spot must be positive, got %g", c.Spot)
	}
	t := YearFraction(baseDate, expiry)
	if t < 0 {
		return 0, fmt.Errorf("expiry %s is before base date %s", expiry.Format("2006-01-02"), baseDate.Format("2006-01-02"))
	}
	r, err := c.zeroRate(t)
	if err != nil {
		return 0, err
	}
	return c.Spot * math.Exp((r-c.DividendYield)*t), nil
}
