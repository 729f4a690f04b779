package market

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestVolCurveAt(t *testing.T) {
	t.Parallel()
	c := VolCurve{Times: []float64{1, 2}, Vols: []float64{0.2, 0.3}}
	tests := []struct {
		name string
		kind InterpolationKind
		t    float64
		want float64
	}{
		{"linear mid", Linear, 1.5, 0.25},
		{"linear before first", Linear, 0.25, 0.2},
		{"linear after last", Linear, 4, 0.3},
		{"variance mid", LinearVariance, 1.5, math.Sqrt(0.11 / 1.5)},
		{"variance before first", LinearVariance, 0.5, 0.2},
		{"variance after last", LinearVariance, 3, 0.3},
		{"cubic with two pillars is linear", MonotoneCubic, 1.5, 0.25},
		{"akima with two pillars is linear", Akima, 1.25, 0.225},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := c.At(tt.t, tt.kind)
			if err != nil {
				t.Fatalf("At: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Fatalf("At(%g, %s) = %g, want %g", tt.t, tt.kind, got, tt.want)
			}
		})
	}
}

func TestVolCurveCubicKindsHitPillars(t *testing.T) {
	t.Parallel()
	c := VolCurve{Times: []float64{0.25, 0.5, 1, 2, 5}, Vols: []float64{0.3, 0.27, 0.25, 0.24, 0.22}}
	for _, kind := range []InterpolationKind{MonotoneCubic, Akima} {
		for i, tt := range c.Times {
			got, err := c.At(tt, kind)
			if err != nil {
				t.Fatalf("%s: %v", kind, err)
			}
			if math.Abs(got-c.Vols[i]) > 1e-12 {
				t.Fatalf("%s at pillar %g: %g, want %g", kind, tt, got, c.Vols[i])
			}
		}
	}

	got, err := c.At(1.5, MonotoneCubic)
	if err != nil {
		t.Fatalf("At: %v", err)
	}
	if got > 0.25 || got < 0.24 {
		t.Fatalf("monotone cubic overshoots: %g", got)
	}
}

func TestVolCurveValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		c    VolCurve
	}{
		{"mismatched", VolCurve{Times: []float64{1, 2}, Vols: []float64{0.2}}},
		{"unordered", VolCurve{Times: []float64{2, 1}, Vols: []float64{0.2, 0.2}}},
		{"negative vol", VolCurve{Times: []float64{1}, Vols: []float64{-0.2}}},
	}
	for _, tt := range tests {
		if err := tt.c.Validate(); err == nil {
			t.Fatalf("%s: expected error", tt.name)
		}
	}
	if _, err := (VolCurve{}).At(1, Linear); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	v, err := VolCurve{Times: []float64{1}, Vols: []float64{0.2}}.At(7, Akima)
	if err != nil || v != 0.2 {
		t.Fatalf("single pillar: %g, %v", v, err)
	}
}

func TestRateCurveForward(t *testing.T) {
	t.Parallel()
	base := time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC)
	expiry := base.AddDate(0, 0, 365)
	c := RateCurve{Spot: 100, Times: []float64{0.5, 2}, ZeroRates: []float64{0.05, 0.05}, DividendYield: 0.02}

	if yf := YearFraction(base, expiry); yf != 1 {
		t.Fatalf("year fraction %g, want 1", yf)
	}
	f, err := c.ForwardPrice(base, expiry)
	if err != nil {
		t.Fatalf("ForwardPrice: %v", err)
	}
	if want := 100 * math.Exp(0.03); math.Abs(f-want) > 1e-10 {
		t.Fatalf("forward %g, want %g", f, want)
	}
	df, err := c.DiscountFactor(base, expiry)
	if err != nil {
		t.Fatalf("DiscountFactor: %v", err)
	}
	if want := math.Exp(-0.05); math.Abs(df-want) > 1e-12 {
		t.Fatalf("discount factor %g, want %g", df, want)
	}

	if _, err := c.ForwardPrice(expiry, base); err == nil {
		t.Fatalf("expected error for expiry before base date")
	}
	if _, err := (RateCurve{}).ForwardPrice(base, expiry); err == nil {
		t.Fatalf("expected error for zero spot")
	}
	flat, err := RateCurve{Spot: 50}.ForwardPrice(base, expiry)
	if err != nil || flat != 50 {
		t.Fatalf("no rates: forward %g, %v", flat, err)
	}
}

func TestParseInterpolationKind(t *testing.T) {
	t.Parallel()
	for _, k := range []InterpolationKind{Linear, LinearVariance, MonotoneCubic, Akima} {
		got, err := ParseInterpolationKind(k.String())
		if err != nil || got != k {
			t.Fatalf("ParseInterpolationKind(%q) = %v, %v", k.String(), got, err)
		}
		var u InterpolationKind
		b, _ := k.MarshalText()
		if err := u.UnmarshalText(b); err != nil || u != k {
			t.Fatalf("UnmarshalText(%q) = %v, %v", b, u, err)
		}
	}
	if _, err := ParseInterpolationKind("spline"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}
