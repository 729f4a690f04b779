package tradier

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/bcdannyboy/sabrcal/market"
)

type expirySlice struct {
	t       float64
	forward float64
	chain   *OptionChain
}

// midIV returns the mid implied vol at strike, preferring the out-of-the-money
// side and falling back to the other one.
func midIV(chain *OptionChain, strike, forward float64) (float64, bool) {
	preferred, other := "call", "put"
	if strike < forward {
		preferred, other = "put", "call"
	}
	var fallback float64
	for _, o := range chain.Options.Option {
		if o.Strike != strike || !(o.Greeks.MidIv > 0) {
			continue
		}
		switch o.OptionType {
		case preferred:
			return o.Greeks.MidIv, true
		case other:
			fallback = o.Greeks.MidIv
		}
	}
	return fallback, fallback > 0
}

// nearestStrike returns the listed strike closest to forward.
func nearestStrike(chain *OptionChain, forward float64) (float64, bool) {
	best, found := 0.0, false
	for _, o := range chain.Options.Option {
		if !(o.Strike > 0) {
			continue
		}
		if !found || math.Abs(o.Strike-forward) < math.Abs(best-forward) {
			best, found = o.Strike, true
		}
	}
	return best, found
}

func listedStrikes(chain *OptionChain) map[float64]bool {
	out := make(map[float64]bool)
	for _, o := range chain.Options.Option {
		if o.Strike > 0 {
			out[o.Strike] = true
		}
	}
	return out
}

// BuildSources turns option chains into an ATM source and fixed-strike
// sources. The ATM curve uses the mid vol of the strike nearest the forward at
// each expiry. When strikes is empty every strike listed at all expiries is
// used. Strikes without any quoted vol are skipped.
func BuildSources(chains map[string]*OptionChain, curve market.RateCurve, currency string, baseDate time.Time, strikes []float64) (*market.ATMVolSource, []*market.FixedStrikeSource, error) {
	slices := make([]expirySlice, 0, len(chains))
	for date, chain := range chains {
		expiry, err := market.ParseDate(date)
		if err != nil {
			return nil, nil, err
		}
		t := market.YearFraction(baseDate, expiry)
		if t <= 0 || chain == nil {
			continue
		}
		fwd, err := curve.ForwardPrice(baseDate, expiry)
		if err != nil {
			return nil, nil, fmt.Errorf("forward at %s: %w", date, err)
		}
		slices = append(slices, expirySlice{t: t, forward: fwd, chain: chain})
	}
	if len(slices) == 0 {
		return nil, nil, fmt.Errorf("no option chains after %s: %w", baseDate.Format("2006-01-02"), market.ErrNoData)
	}
	sort.Slice(slices, func(i, j int) bool { return slices[i].t < slices[j].t })

	var atm market.VolCurve
	for _, s := range slices {
		k, ok := nearestStrike(s.chain, s.forward)
		if !ok {
			continue
		}
		if v, ok := midIV(s.chain, k, s.forward); ok {
			atm.Times = append(atm.Times, s.t)
			atm.Vols = append(atm.Vols, v)
		}
	}
	if len(atm.Times) == 0 {
		return nil, nil, fmt.Errorf("no at-the-money vols: %w", market.ErrNoData)
	}

	if len(strikes) == 0 {
		strikes = commonStrikes(slices)
	}

	fixed := make([]*market.FixedStrikeSource, 0, len(strikes))
	for _, k := range strikes {
		var c market.VolCurve
		for _, s := range slices {
			if v, ok := midIV(s.chain, k, s.forward); ok {
				c.Times = append(c.Times, s.t)
				c.Vols = append(c.Vols, v)
			}
		}
		if len(c.Times) == 0 {
			continue
		}
		fixed = append(fixed, market.NewFixedStrikeSource(currency, k, baseDate, c))
	}

	return market.NewATMVolSource(currency, baseDate, atm, curve), fixed, nil
}

func commonStrikes(slices []expirySlice) []float64 {
	common := listedStrikes(slices[0].chain)
	for _, s := range slices[1:] {
		listed := listedStrikes(s.chain)
		for k := range common {
			if !listed[k] {
				delete(common, k)
			}
		}
	}
	out := make([]float64, 0, len(common))
	for k := range common {
		out = append(out, k)
	}
	sort.Float64s(out)
	return out
}
