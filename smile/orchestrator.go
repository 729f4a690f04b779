package smile

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bcdannyboy/sabrcal/logger"
	"github.com/bcdannyboy/sabrcal/market"
	"github.com/bcdannyboy/sabrcal/models"
)

const dateLayout = "2006-01-02"

// MinFixedStrikeSources is the fewest fixed-strike sources a smile needs.
const MinFixedStrikeSources = 2

// ErrPrecondition marks a violated construction rule. It wraps models.ErrDomain.
var ErrPrecondition = fmt.Errorf("%w: smile precondition", models.ErrDomain)

func preconditionf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrPrecondition, fmt.Sprintf(format, args...))
}

// VolatilitySource is a calibrated volatility term structure.
type VolatilitySource interface {
	IsCalibrated() bool
	Kind() market.SourceKind
	Strike() (float64, bool)
	Currency() string
	InterpolatedVolatility(expiry time.Time, kind market.InterpolationKind) (float64, error)
}

// ATMSource is the at-the-money source; it owns the forward curve.
type ATMSource interface {
	VolatilitySource
	BaseDate() time.Time
	ForwardCurve() market.ForwardCurve
}

// Orchestrator assembles smiles from one ATM source and several fixed-strike
// sources and calibrates one full SABR session per expiry.
type Orchestrator struct {
	settings     models.CalibrationSettings
	atm          ATMSource
	fixed        []VolatilitySource
	opts         []models.Option
	calibrations map[string]*models.Calibration
	log          *logger.Entry
}

// New validates the sources. Every rule violation is returned as ErrPrecondition.
func New(settings models.CalibrationSettings, atm ATMSource, fixed []VolatilitySource, opts ...models.Option) (*Orchestrator, error) {
	if atm == nil {
		return nil, preconditionf("ATM source is required")
	}
	if atm.Kind() != market.KindATM {
		return nil, preconditionf("ATM source has kind %s, want %s", atm.Kind(), market.KindATM)
	}
	if _, ok := atm.Strike(); ok {
		return nil, preconditionf("ATM source must not report a strike")
	}
	if !atm.IsCalibrated() {
		return nil, preconditionf("ATM source is not calibrated")
	}
	if len(fixed) < MinFixedStrikeSources {
		return nil, preconditionf("need at least %d fixed-strike sources, got %d", MinFixedStrikeSources, len(fixed))
	}

	ccy := atm.Currency()
	for i, src := range fixed {
		if src == nil {
			return nil, preconditionf("fixed-strike source %d is nil", i)
		}
		if src.Kind() != market.KindFixedStrike {
			return nil, preconditionf("fixed-strike source %d has kind %s, want %s", i, src.Kind(), market.KindFixedStrike)
		}
		if !src.IsCalibrated() {
			return nil, preconditionf("fixed-strike source %d is not calibrated", i)
		}
		if _, ok := src.Strike(); !ok {
			return nil, preconditionf("fixed-strike source %d has no strike", i)
		}
		if src.Currency() != ccy {
			return nil, preconditionf("fixed-strike source %d currency %q does not match ATM currency %q", i, src.Currency(), ccy)
		}
	}

	return &Orchestrator{
		settings:     settings,
		atm:          atm,
		fixed:        append([]VolatilitySource(nil), fixed...),
		opts:         opts,
		calibrations: make(map[string]*models.Calibration),
		log:          logger.GetLogger().WithComponent("smile").WithFields(logger.Fields{"handle": settings.Handle, "currency": ccy}),
	}, nil
}

// Points assembles the ascending (strike, vol) smile at expiry and the ATM forward.
// Equal strikes keep declaration order with the ATM point last.
func (o *Orchestrator) Points(expiry time.Time) ([]models.StrikeVolatilityPoint, float64, error) {
	kind := o.settings.SmileInterpolation
	points := make([]models.StrikeVolatilityPoint, 0, len(o.fixed)+1)
	for i, src := range o.fixed {
		strike, _ := src.Strike()
		vol, err := src.InterpolatedVolatility(expiry, kind)
		if err != nil {
			return nil, 0, fmt.Errorf("fixed-strike source %d (strike %g): %w", i, strike, err)
		}
		points = append(points, models.StrikeVolatilityPoint{Strike: strike, MarketVolatility: vol})
	}

	atmVol, err := o.atm.InterpolatedVolatility(expiry, kind)
	if err != nil {
		return nil, 0, fmt.Errorf("ATM source: %w", err)
	}
	forward, err := o.atm.ForwardCurve().ForwardPrice(o.atm.BaseDate(), expiry)
	if err != nil {
		return nil, 0, fmt.Errorf("ATM forward: %w", err)
	}
	points = append(points, models.StrikeVolatilityPoint{Strike: forward, MarketVolatility: atmVol})

	sort.SliceStable(points, func(i, j int) bool { return points[i].Strike < points[j].Strike })
	return points, forward, nil
}

// ComputeSmile calibrates the smile at expiry and evaluates it at strikes, in
// input order. Any evaluation failure fails the whole call.
//
// A fit that did not converge still yields volatilities from the best
// parameters found. Check Calibration(expiry) and IsCalibrated on the
// session before relying on them.
func (o *Orchestrator) ComputeSmile(expiry time.Time, strikes []float64) ([]float64, error) {
	cal, err := o.Calibrate(expiry)
	if err != nil {
		return nil, err
	}

	vols := make([]float64, len(strikes))
	for i, k := range strikes {
		v, err := cal.ImpliedVolatility(k)
		if err != nil {
			return nil, fmt.Errorf("expiry %s strike %g: %w", expiry.Format(dateLayout), k, err)
		}
		vols[i] = v
	}
	return vols, nil
}

// Calibrate builds and runs the full session for expiry and keeps it.
func (o *Orchestrator) Calibrate(expiry time.Time) (*models.Calibration, error) {
	day := expiry.Format(dateLayout)

	points, forward, err := o.Points(expiry)
	if err != nil {
		return nil, fmt.Errorf("expiry %s: %w", day, err)
	}
	strikes := make([]float64, len(points))
	vols := make([]float64, len(points))
	for i, p := range points {
		strikes[i], vols[i] = p.Strike, p.MarketVolatility
	}

	t := market.YearFraction(o.atm.BaseDate(), expiry)
	cal, err := models.NewFullCalibration(o.settings, strikes, vols, forward, t, o.opts...)
	if err != nil {
		return nil, fmt.Errorf("expiry %s: %w", day, err)
	}
	ok, err := cal.Calibrate()
	if err != nil {
		return nil, fmt.Errorf("expiry %s: %w", day, err)
	}
	o.calibrations[day] = cal

	entry := o.log.WithFields(logger.Fields{"expiry": day, "forward": forward, "residual": cal.Residual()})
	if !ok {
		entry.Warn("smile calibration did not converge")
	} else {
		entry.Info("smile calibrated")
	}
	return cal, nil
}

// Calibration returns the session calibrated for expiry, if any.
func (o *Orchestrator) Calibration(expiry time.Time) (*models.Calibration, bool) {
	c, ok := o.calibrations[expiry.Format(dateLayout)]
	return c, ok
}

// IsPrecondition reports whether err is a construction precondition failure.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrPrecondition)
}
