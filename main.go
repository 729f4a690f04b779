package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/joho/godotenv"
	mpb "github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"
	"github.com/xhhuango/json"
	"golang.org/x/term"

	"github.com/bcdannyboy/sabrcal/config"
	"github.com/bcdannyboy/sabrcal/logger"
	"github.com/bcdannyboy/sabrcal/market"
	"github.com/bcdannyboy/sabrcal/models"
	"github.com/bcdannyboy/sabrcal/registry"
	"github.com/bcdannyboy/sabrcal/smile"
	"github.com/bcdannyboy/sabrcal/tradier"
)

type SmileResult struct {
	Expiry     string             `json:"expiry"`
	Forward    float64            `json:"forward,omitempty"`
	Strikes    []float64          `json:"strikes"`
	Vols       []float64          `json:"vols,omitempty"`
	Params     *models.SABRParams `json:"params,omitempty"`
	Calibrated bool               `json:"calibrated"`
	Residual   float64            `json:"residual"`
	Error      string             `json:"error,omitempty"`
}

type SessionResult struct {
	Handle     string            `json:"handle"`
	Mode       string            `json:"mode"`
	Expiry     float64           `json:"expiry"`
	Tenor      float64           `json:"tenor"`
	Params     models.SABRParams `json:"params"`
	Calibrated bool              `json:"calibrated"`
	Alpha      string            `json:"alpha"`
	Residual   float64           `json:"residual"`
	Error      string            `json:"error,omitempty"`
}

type Output struct {
	Handle         string          `json:"handle"`
	BaseDate       string          `json:"base_date"`
	Smiles         []SmileResult   `json:"smiles"`
	Grid           []SessionResult `json:"grid,omitempty"`
	Interpolations []SessionResult `json:"interpolations,omitempty"`
}

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	marketPath := flag.String("market", "", "market snapshot JSON")
	chainsPath := flag.String("chains", "", "saved Tradier option chains JSON (used with -symbol)")
	symbol := flag.String("symbol", "", "calibrate against Tradier option chains for this symbol")
	outPath := flag.String("out", "sabr_results.json", "result file")
	flag.Parse()

	log := logger.GetLogger().WithComponent("main")
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file loaded")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	if err := logger.GetLogger().Configure(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.WithError(err).Fatal("invalid log config")
	}
	settings, err := cfg.Settings()
	if err != nil {
		log.WithError(err).Fatal("invalid calibration settings")
	}

	reg := registry.New()
	reg.Settings.Put(settings.Handle, settings)

	var out *Output
	switch {
	case *symbol != "":
		out, err = runTradier(context.Background(), cfg, settings, reg, *symbol, *chainsPath)
	case *marketPath != "":
		out, err = runSnapshot(settings, reg, *marketPath)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.WithError(err).Fatal("calibration run failed")
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		log.WithError(err).Fatal("failed to marshal results")
	}
	if err := os.WriteFile(*outPath, data, 0o644); err != nil {
		log.WithError(err).Fatal("failed to write results")
	}
	log.WithFields(logger.Fields{
		"out":      *outPath,
		"smiles":   len(out.Smiles),
		"sessions": reg.Calibrations.Len(),
	}).Info("calibration run complete")
}

func runSnapshot(settings models.CalibrationSettings, reg *registry.Registry, path string) (*Output, error) {
	snap, err := market.LoadSnapshot(path)
	if err != nil {
		return nil, err
	}
	atm, fixed, err := snap.Sources()
	if err != nil {
		return nil, err
	}

	orch, err := smile.New(settings, atm, volatilitySources(fixed))
	if err != nil {
		return nil, err
	}

	out := &Output{Handle: settings.Handle, BaseDate: snap.BaseDate}
	requests := make([]smileRequest, 0, len(snap.Smiles))
	for _, r := range snap.Smiles {
		expiry, err := market.ParseDate(r.Expiry)
		if err != nil {
			return nil, err
		}
		requests = append(requests, smileRequest{expiry: expiry, strikes: r.Strikes})
	}
	out.Smiles = computeSmiles(orch, reg, settings.Handle, requests)

	if len(snap.Grid) == 0 {
		return out, nil
	}
	surface, grid := calibrateGrid(settings, reg, snap.Grid)
	out.Grid = grid
	if surface == nil {
		return out, nil
	}
	reg.Surfaces.Put(settings.Handle, surface)
	out.Interpolations = interpolate(settings, reg, surface, snap.Interpolations)
	return out, nil
}

func runTradier(ctx context.Context, cfg *config.Config, settings models.CalibrationSettings, reg *registry.Registry, symbol, chainsPath string) (*Output, error) {
	log := logger.GetLogger().WithComponent("tradier").WithFields(logger.Fields{"symbol": symbol})
	client := tradier.NewClient(cfg.Tradier.Token, cfg.Tradier.BaseURL)

	quote, err := client.GetQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}

	var chains map[string]*tradier.OptionChain
	if chainsPath != "" {
		chains, err = tradier.LoadOptionChains(chainsPath)
	} else {
		chains, err = client.GetOptionsChain(ctx, symbol, cfg.Tradier.MinDTE, cfg.Tradier.MaxDTE)
	}
	if err != nil {
		return nil, err
	}
	log.WithFields(logger.Fields{"expirations": len(chains), "last": quote.Last}).Info("loaded option chains")

	today := time.Now().UTC().Truncate(24 * time.Hour)
	curve := market.RateCurve{
		Spot:          quote.Last,
		Times:         []float64{1},
		ZeroRates:     []float64{cfg.Tradier.Rate},
		DividendYield: cfg.Tradier.Dividend,
	}
	atm, fixed, err := tradier.BuildSources(chains, curve, cfg.Tradier.Currency, today, cfg.Tradier.Strikes)
	if err != nil {
		return nil, err
	}
	orch, err := smile.New(settings, atm, volatilitySources(fixed))
	if err != nil {
		return nil, err
	}

	strikes := make([]float64, 0, len(fixed))
	for _, f := range fixed {
		k, _ := f.Strike()
		strikes = append(strikes, k)
	}
	dates := make([]string, 0, len(chains))
	for d := range chains {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	requests := make([]smileRequest, 0, len(dates))
	for _, d := range dates {
		expiry, err := market.ParseDate(d)
		if err != nil {
			return nil, err
		}
		if !expiry.After(today) {
			continue
		}
		requests = append(requests, smileRequest{expiry: expiry, strikes: strikes})
	}

	out := &Output{Handle: settings.Handle, BaseDate: today.Format("2006-01-02")}
	out.Smiles = computeSmiles(orch, reg, settings.Handle, requests)
	return out, nil
}

func volatilitySources(fixed []*market.FixedStrikeSource) []smile.VolatilitySource {
	out := make([]smile.VolatilitySource, len(fixed))
	for i, f := range fixed {
		out[i] = f
	}
	return out
}

type smileRequest struct {
	expiry  time.Time
	strikes []float64
}

func newProgress(total int, name string) (*mpb.Progress, *mpb.Bar) {
	if !term.IsTerminal(int(os.Stderr.Fd())) || total == 0 {
		return nil, nil
	}
	p := mpb.New(mpb.WithWidth(64), mpb.WithOutput(os.Stderr))
	bar := p.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name(name),
			decor.Percentage(decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.CountersNoUnit("(%d / %d)", decor.WCSyncSpace),
		),
	)
	return p, bar
}

func computeSmiles(orch *smile.Orchestrator, reg *registry.Registry, handle string, requests []smileRequest) []SmileResult {
	p, bar := newProgress(len(requests), "Smiles")
	results := make([]SmileResult, 0, len(requests))
	for _, r := range requests {
		day := r.expiry.Format("2006-01-02")
		res := SmileResult{Expiry: day, Strikes: r.strikes}

		vols, err := orch.ComputeSmile(r.expiry, r.strikes)
		if err != nil {
			res.Error = err.Error()
			logger.GetLogger().WithComponent("main").WithError(err).WithFields(logger.Fields{"expiry": day}).Warn("smile failed")
		} else {
			res.Vols = vols
		}
		if c, ok := orch.Calibration(r.expiry); ok {
			params := c.Params()
			res.Params = &params
			res.Forward = c.AssetPrice()
			res.Calibrated = c.IsCalibrated()
			res.Residual = c.Residual()
			reg.Calibrations.Put(fmt.Sprintf("%s/smile/%s", handle, day), c)
		}
		results = append(results, res)
		if bar != nil {
			bar.Increment()
		}
	}
	if p != nil {
		p.Wait()
	}
	return results
}

func sessionResult(handle string, expiry, tenor float64, c *models.Calibration) SessionResult {
	return SessionResult{
		Handle:     handle,
		Mode:       c.Mode().String(),
		Expiry:     expiry,
		Tenor:      tenor,
		Params:     c.Params(),
		Calibrated: c.IsCalibrated(),
		Alpha:      c.AlphaOutcome().String(),
		Residual:   c.Residual(),
	}
}

// calibrateGrid runs a full calibration per grid point and builds the
// parameter surface from the ones that converged.
func calibrateGrid(settings models.CalibrationSettings, reg *registry.Registry, grid []market.GridPoint) (*models.ParameterSurface, []SessionResult) {
	log := logger.GetLogger().WithComponent("main")
	p, bar := newProgress(len(grid), "Grid")

	entries := make([]models.SurfaceEntry, 0, len(grid))
	results := make([]SessionResult, 0, len(grid))
	for _, g := range grid {
		handle := fmt.Sprintf("%s/grid/%gx%g", settings.Handle, g.Expiry, g.Tenor)
		c, err := models.NewFullCalibration(settings, g.Strikes, g.Vols, g.Forward, g.Expiry)
		if err == nil {
			_, err = c.Calibrate()
		}
		if err != nil {
			log.WithError(err).WithFields(logger.Fields{"expiry": g.Expiry, "tenor": g.Tenor}).Warn("grid calibration failed")
			results = append(results, SessionResult{Handle: handle, Mode: models.ModeFull.String(), Expiry: g.Expiry, Tenor: g.Tenor, Error: err.Error()})
			entries = append(entries, models.SurfaceEntry{Expiry: g.Expiry, Tenor: g.Tenor})
		} else {
			reg.Calibrations.Put(handle, c)
			results = append(results, sessionResult(handle, g.Expiry, g.Tenor, c))
			entries = append(entries, models.SurfaceEntry{Expiry: g.Expiry, Tenor: g.Tenor, Calibration: c})
		}
		if bar != nil {
			bar.Increment()
		}
	}
	if p != nil {
		p.Wait()
	}

	surface, err := models.BuildParameterSurface(settings.Beta, entries)
	if err != nil {
		log.WithError(err).Warn("parameter surface not built")
		return nil, results
	}
	return surface, results
}

func interpolate(settings models.CalibrationSettings, reg *registry.Registry, surface *models.ParameterSurface, requests []market.InterpolationRequest) []SessionResult {
	results := make([]SessionResult, 0, len(requests))
	for _, r := range requests {
		handle := fmt.Sprintf("%s/interpolated/%gx%g", settings.Handle, r.Expiry, r.Tenor)
		c, err := models.NewInterpolatedCalibration(settings, surface, r.Tenor, r.ATMVol, r.Forward, r.Expiry)
		if err == nil {
			_, err = c.Calibrate()
		}
		if err != nil {
			results = append(results, SessionResult{Handle: handle, Mode: models.ModeInterpolated.String(), Expiry: r.Expiry, Tenor: r.Tenor, Error: err.Error()})
			continue
		}
		reg.Calibrations.Put(handle, c)
		results = append(results, sessionResult(handle, r.Expiry, r.Tenor, c))
	}
	return results
}
