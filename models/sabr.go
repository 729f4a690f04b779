package models

import (
	"errors"
	"fmt"
	"math"
)

// ErrDomain marks inputs that violate a calibration precondition.
var ErrDomain = errors.New("domain error")

func domainErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrDomain, fmt.Sprintf(format, args...))
}

const (
	// MinimumAlpha is the lower bound accepted for a solved alpha.
	MinimumAlpha = 1e-7
	// zSmall switches z/x(z) to its series expansion.
	zSmall = 1e-7
)

// SABRParams is one SABR parameter set. Beta is an input and is never fitted.
type SABRParams struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
	Rho   float64 `json:"rho"`
	Nu    float64 `json:"nu"`
}

// CheckNu reports whether nu is a usable vol-of-vol.
func CheckNu(nu float64) (bool, string) {
	if math.IsNaN(nu) || math.IsInf(nu, 0) {
		return false, "nu must be finite"
	}
	if nu < 0 {
		return false, fmt.Sprintf("nu must be non-negative, got %g", nu)
	}
	return true, ""
}

// CheckRho reports whether rho is a usable correlation.
func CheckRho(rho float64) (bool, string) {
	if math.IsNaN(rho) {
		return false, "rho must be finite"
	}
	if rho < -1 || rho > 1 {
		return false, fmt.Sprintf("rho must lie in [-1, 1], got %g", rho)
	}
	return true, ""
}

// CheckBeta reports whether beta lies in (0, 1].
func CheckBeta(beta float64) (bool, string) {
	if math.IsNaN(beta) || beta <= 0 || beta > 1 {
		return false, fmt.Sprintf("beta must lie in (0, 1], got %g", beta)
	}
	return true, ""
}

// Evaluator maps a parameter set to a Black implied volatility.
type Evaluator interface {
	ImpliedVolatility(p SABRParams, forward, exerciseTime, strike float64) (float64, error)
}

// HaganEvaluator is the Hagan et al. (2002) lognormal expansion.
type HaganEvaluator struct{}

func (HaganEvaluator) ImpliedVolatility(p SABRParams, forward, exerciseTime, strike float64) (float64, error) {
	switch {
	case exerciseTime < 0:
		return 0, fmt.Errorf("negative exercise time %g", exerciseTime)
	case forward <= 0:
		return 0, fmt.Errorf("forward must be positive, got %g", forward)
	case strike <= 0:
		return 0, fmt.Errorf("strike must be positive, got %g", strike)
	case p.Alpha <= 0:
		return 0, fmt.Errorf("alpha must be positive, got %g", p.Alpha)
	case p.Nu < 0:
		return 0, fmt.Errorf("nu must be non-negative, got %g", p.Nu)
	case p.Rho < -1 || p.Rho > 1:
		return 0, fmt.Errorf("rho must lie in [-1, 1], got %g", p.Rho)
	}

	oneMinusBeta := 1 - p.Beta
	logFK := math.Log(forward / strike)
	fkBeta := math.Pow(forward*strike, oneMinusBeta/2)

	logFK2 := logFK * logFK
	b2 := oneMinusBeta * oneMinusBeta
	denominator := fkBeta * (1 + b2/24*logFK2 + b2*b2/1920*logFK2*logFK2)

	z := p.Nu / p.Alpha * fkBeta * logFK
	ratio := zOverX(z, p.Rho)
	if math.IsNaN(ratio) {
		return 0, fmt.Errorf("degenerate z/x(z) at strike %g", strike)
	}

	correction := 1 + (b2/24*p.Alpha*p.Alpha/(fkBeta*fkBeta)+
		p.Rho*p.Beta*p.Nu*p.Alpha/(4*fkBeta)+
		(2-3*p.Rho*p.Rho)/24*p.Nu*p.Nu)*exerciseTime

	vol := p.Alpha / denominator * ratio * correction
	if math.IsNaN(vol) || math.IsInf(vol, 0) || vol <= 0 {
		return 0, fmt.Errorf("implied volatility %g at strike %g is not positive", vol, strike)
	}
	return vol, nil
}

func zOverX(z, rho float64) float64 {
	if math.Abs(z) < zSmall {
		return 1 - rho*z/2
	}
	var x float64
	switch rho {
	case 1:
		if z >= 1 {
			return math.NaN()
		}
		x = -math.Log(1 - z)
	case -1:
		if z <= -1 {
			return math.NaN()
		}
		x = math.Log(1 + z)
	default:
		num := math.Sqrt(1-2*rho*z+z*z) + z - rho
		if num <= 0 {
			return math.NaN()
		}
		x = math.Log(num / (1 - rho))
	}
	if x == 0 {
		return math.NaN()
	}
	return z / x
}
