package market

import (
	"fmt"
	"os"
	"time"

	"github.com/xhhuango/json"
)

const dateLayout = "2006-01-02"

// Snapshot is a market data document: the sources for smile calibration plus
// an optional expiry x tenor grid for surface work.
type Snapshot struct {
	BaseDate       string                 `json:"base_date"`
	Currency       string                 `json:"currency"`
	Forward        RateCurve              `json:"forward"`
	ATM            VolCurve               `json:"atm"`
	FixedStrikes   []FixedStrikeQuote     `json:"fixed_strikes"`
	Smiles         []SmileRequest         `json:"smiles"`
	Grid           []GridPoint            `json:"grid"`
	Interpolations []InterpolationRequest `json:"interpolations"`
}

// FixedStrikeQuote is the term structure of one listed strike.
type FixedStrikeQuote struct {
	Strike float64 `json:"strike"`
	VolCurve
}

// SmileRequest asks for the calibrated smile at Expiry evaluated at Strikes.
type SmileRequest struct {
	Expiry  string    `json:"expiry"`
	Strikes []float64 `json:"strikes"`
}

// GridPoint is a full smile at one (expiry, tenor) node, in year fractions.
type GridPoint struct {
	Expiry  float64   `json:"expiry"`
	Tenor   float64   `json:"tenor"`
	Forward float64   `json:"forward"`
	Strikes []float64 `json:"strikes"`
	Vols    []float64 `json:"vols"`
}

// InterpolationRequest asks for a surface-interpolated calibration.
type InterpolationRequest struct {
	Expiry  float64 `json:"expiry"`
	Tenor   float64 `json:"tenor"`
	Forward float64 `json:"forward"`
	ATMVol  float64 `json:"atm_vol"`
}

// LoadSnapshot reads a JSON snapshot from path.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read market snapshot: %w", err)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("cannot parse market snapshot: %w", err)
	}
	return &s, nil
}

// Date parses the snapshot's base date.
func (s *Snapshot) Date() (time.Time, error) {
	return ParseDate(s.BaseDate)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(v string) (time.Time, error) {
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", v, err)
	}
	return t, nil
}

// Sources builds the ATM source and the fixed-strike sources, in document order.
func (s *Snapshot) Sources() (*ATMVolSource, []*FixedStrikeSource, error) {
	base, err := s.Date()
	if err != nil {
		return nil, nil, err
	}
	atm := NewATMVolSource(s.Currency, base, s.ATM, s.Forward)
	fixed := make([]*FixedStrikeSource, 0, len(s.FixedStrikes))
	for _, q := range s.FixedStrikes {
		fixed = append(fixed, NewFixedStrikeSource(s.Currency, q.Strike, base, q.VolCurve))
	}
	return atm, fixed, nil
}
