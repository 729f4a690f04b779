package models

import (
	"errors"
	"math"
	"testing"
)

func atmEntry(t *testing.T, s CalibrationSettings, expiry, tenor, nu, rho float64) SurfaceEntry {
	t.Helper()
	c, err := NewATMCalibration(s, nu, rho, 0.2, 100, expiry)
	if err != nil {
		t.Fatalf("NewATMCalibration: %v", err)
	}
	if ok, err := c.Calibrate(); err != nil || !ok {
		t.Fatalf("Calibrate = %v, %v", ok, err)
	}
	return SurfaceEntry{Expiry: expiry, Tenor: tenor, Calibration: c}
}

func TestSurfaceKeepsKnownNodes(t *testing.T) {
	t.Parallel()
	s := testSettings(t, 0.5)
	entries := []SurfaceEntry{
		atmEntry(t, s, 1, 2, 0.3, -0.1),
		atmEntry(t, s, 1, 5, 0.4, -0.2),
		atmEntry(t, s, 3, 2, 0.5, 0.1),
		atmEntry(t, s, 3, 5, 0.6, 0.2),
	}
	surf, err := BuildParameterSurface(0.5, entries)
	if err != nil {
		t.Fatalf("BuildParameterSurface: %v", err)
	}
	for _, e := range entries {
		nu, rho := surf.Interpolate(e.Tenor, e.Expiry)
		p := e.Calibration.Params()
		if nu != p.Nu || rho != p.Rho {
			t.Fatalf("node (%g, %g): got (%g, %g), want (%g, %g)", e.Expiry, e.Tenor, nu, rho, p.Nu, p.Rho)
		}
	}

	nu, rho := surf.Interpolate(3.5, 2)
	if math.Abs(nu-0.45) > 1e-12 || math.Abs(rho-0) > 1e-12 {
		t.Fatalf("centre: got (%g, %g), want (0.45, 0)", nu, rho)
	}

	nu, _ = surf.Interpolate(10, 0.25)
	if nu != 0.4 {
		t.Fatalf("query outside the grid should be flat, got %g", nu)
	}
}

func TestSurfaceFillsColumnsFlatOutsideKnownExpiries(t *testing.T) {
	t.Parallel()
	s := testSettings(t, 0.5)
	entries := []SurfaceEntry{
		{Expiry: 0.5, Tenor: 2},
		atmEntry(t, s, 1, 2, 0.3, -0.2),
		{Expiry: 2, Tenor: 2},
		atmEntry(t, s, 3, 2, 0.5, 0.2),
		{Expiry: 5, Tenor: 2},
	}
	surf, err := BuildParameterSurface(0.5, entries)
	if err != nil {
		t.Fatalf("BuildParameterSurface: %v", err)
	}

	tests := []struct {
		i       int
		nu, rho float64
		known   bool
	}{
		{0, 0.3, -0.2, false},
		{1, 0.3, -0.2, true},
		{2, 0.4, 0, false},
		{3, 0.5, 0.2, true},
		{4, 0.5, 0.2, false},
	}
	for _, tt := range tests {
		if surf.Known(tt.i, 0) != tt.known {
			t.Fatalf("row %d known = %v", tt.i, surf.Known(tt.i, 0))
		}
		if math.Abs(surf.Nu(tt.i, 0)-tt.nu) > 1e-12 || math.Abs(surf.Rho(tt.i, 0)-tt.rho) > 1e-12 {
			t.Fatalf("row %d: got (%g, %g), want (%g, %g)", tt.i, surf.Nu(tt.i, 0), surf.Rho(tt.i, 0), tt.nu, tt.rho)
		}
	}
}

func TestSurfaceFillsEmptyColumnsAlongRows(t *testing.T) {
	t.Parallel()
	s := testSettings(t, 0.5)
	entries := []SurfaceEntry{
		atmEntry(t, s, 1, 1, 0.2, 0),
		atmEntry(t, s, 1, 5, 0.6, 0.4),
		{Expiry: 1, Tenor: 3},
		{Expiry: 1, Tenor: 10},
	}
	surf, err := BuildParameterSurface(0.5, entries)
	if err != nil {
		t.Fatalf("BuildParameterSurface: %v", err)
	}
	if got := surf.Tenors(); len(got) != 4 {
		t.Fatalf("tenors %v", got)
	}
	if nu := surf.Nu(0, 1); math.Abs(nu-0.4) > 1e-12 {
		t.Fatalf("tenor 3 nu %g, want 0.4", nu)
	}
	if nu := surf.Nu(0, 3); nu != 0.6 {
		t.Fatalf("tenor 10 nu %g, want flat 0.6", nu)
	}
	for i := range surf.Expiries() {
		for j := range surf.Tenors() {
			if math.IsNaN(surf.Nu(i, j)) || math.IsNaN(surf.Rho(i, j)) {
				t.Fatalf("node (%d, %d) left unfilled", i, j)
			}
		}
	}
}

func TestSurfaceNeedsCalibratedEntries(t *testing.T) {
	t.Parallel()
	s := testSettings(t, 0.5)
	other := testSettings(t, 0.7)

	uncal, err := NewATMCalibration(s, 0.3, 0, 0.2, 100, 1)
	if err != nil {
		t.Fatalf("NewATMCalibration: %v", err)
	}

	tests := []struct {
		name    string
		entries []SurfaceEntry
	}{
		{"empty", nil},
		{"uncalibrated", []SurfaceEntry{{Expiry: 1, Tenor: 2, Calibration: uncal}}},
		{"other beta", []SurfaceEntry{atmEntry(t, other, 1, 2, 0.3, 0)}},
	}
	for _, tt := range tests {
		if _, err := BuildParameterSurface(0.5, tt.entries); !errors.Is(err, ErrDomain) {
			t.Fatalf("%s: expected domain error, got %v", tt.name, err)
		}
	}
	if _, err := BuildParameterSurface(0.5, []SurfaceEntry{{Expiry: math.NaN(), Tenor: 1}}); !errors.Is(err, ErrDomain) {
		t.Fatalf("expected domain error for a NaN node, got %v", err)
	}
}

func TestInterpolatedCalibration(t *testing.T) {
	t.Parallel()
	s := testSettings(t, 0.5)
	surf, err := BuildParameterSurface(0.5, []SurfaceEntry{
		atmEntry(t, s, 1, 2, 0.3, -0.2),
		atmEntry(t, s, 3, 2, 0.5, 0.2),
	})
	if err != nil {
		t.Fatalf("BuildParameterSurface: %v", err)
	}

	c, err := NewInterpolatedCalibration(s, surf, 2, 0.22, 100, 2)
	if err != nil {
		t.Fatalf("NewInterpolatedCalibration: %v", err)
	}
	if ok, err := c.Calibrate(); err != nil || !ok {
		t.Fatalf("Calibrate = %v, %v", ok, err)
	}
	p := c.Params()
	if math.Abs(p.Nu-0.4) > 1e-12 || math.Abs(p.Rho) > 1e-12 {
		t.Fatalf("params %+v, want nu 0.4 rho 0", p)
	}
	if v, err := c.ImpliedVolatility(100); err != nil || math.Abs(v-0.22) > 1e-10 {
		t.Fatalf("ATM vol %g, %v", v, err)
	}

	if _, err := NewInterpolatedCalibration(testSettings(t, 0.7), surf, 2, 0.22, 100, 2); !errors.Is(err, ErrDomain) {
		t.Fatalf("expected beta mismatch error, got %v", err)
	}
}
