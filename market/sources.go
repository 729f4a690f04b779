package market

import (
	"time"
)

// SourceKind tags the structural role of a volatility source.
type SourceKind int

const (
	KindATM SourceKind = iota
	KindFixedStrike
)

func (k SourceKind) String() string {
	switch k {
	case KindATM:
		return "atm"
	case KindFixedStrike:
		return "fixed_strike"
	default:
		return "unknown"
	}
}

// ForwardCurve supplies forward prices of the underlying.
type ForwardCurve interface {
	ForwardPrice(baseDate, expiry time.Time) (float64, error)
}

// FixedStrikeSource is the volatility term structure of one listed strike.
// It reports calibrated when its curve is valid.
type FixedStrikeSource struct {
	currency   string
	strike     float64
	baseDate   time.Time
	curve      VolCurve
	calibrated bool
}

func NewFixedStrikeSource(currency string, strike float64, baseDate time.Time, curve VolCurve) *FixedStrikeSource {
	return &FixedStrikeSource{
		currency:   currency,
		strike:     strike,
		baseDate:   baseDate,
		curve:      curve,
		calibrated: strike > 0 && curve.Validate() == nil,
	}
}

func (s *FixedStrikeSource) IsCalibrated() bool      { return s.calibrated }
func (s *FixedStrikeSource) Kind() SourceKind        { return KindFixedStrike }
func (s *FixedStrikeSource) Strike() (float64, bool) { return s.strike, true }
func (s *FixedStrikeSource) Currency() string        { return s.currency }
func (s *FixedStrikeSource) BaseDate() time.Time     { return s.baseDate }

// InterpolatedVolatility reads the curve at the year fraction of expiry.
func (s *FixedStrikeSource) InterpolatedVolatility(expiry time.Time, kind InterpolationKind) (float64, error) {
	return s.curve.At(YearFraction(s.baseDate, expiry), kind)
}

// ATMVolSource is the at-the-money volatility term structure together with the
// forward curve that locates the ATM strike.
type ATMVolSource struct {
	currency   string
	baseDate   time.Time
	curve      VolCurve
	forward    RateCurve
	calibrated bool
}

func NewATMVolSource(currency string, baseDate time.Time, curve VolCurve, forward RateCurve) *ATMVolSource {
	return &ATMVolSource{
		currency:   currency,
		baseDate:   baseDate,
		curve:      curve,
		forward:    forward,
		calibrated: forward.Spot > 0 && curve.Validate() == nil,
	}
}

func (s *ATMVolSource) IsCalibrated() bool         { return s.calibrated }
func (s *ATMVolSource) Kind() SourceKind           { return KindATM }
func (s *ATMVolSource) Strike() (float64, bool)    { return 0, false }
func (s *ATMVolSource) Currency() string           { return s.currency }
func (s *ATMVolSource) BaseDate() time.Time        { return s.baseDate }
func (s *ATMVolSource) ForwardCurve() ForwardCurve { return s.forward }

func (s *ATMVolSource) InterpolatedVolatility(expiry time.Time, kind InterpolationKind) (float64, error) {
	return s.curve.At(YearFraction(s.baseDate, expiry), kind)
}
