package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	apihttp "buildsim/internal/api/http"
	"buildsim/internal/auth"
	"buildsim/internal/calendar"
	"buildsim/internal/config"
	"buildsim/internal/emit"
	emitpostgres "buildsim/internal/emit/infrastructure/postgres"
	emitsqlite "buildsim/internal/emit/infrastructure/sqlite"
	"buildsim/internal/engine"
	"buildsim/internal/input"
	"buildsim/internal/logging"
	"buildsim/internal/meter"
	"buildsim/internal/observability/metrics"
	"buildsim/internal/schedule"
	"buildsim/internal/summary"
	"buildsim/internal/units"
	"buildsim/internal/variable"
)

func main() {
	configPath := flag.String("config", "", "path to the yaml configuration file")
	days := flag.Int("days", 7, "number of simulation days to run")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger, *days); err != nil {
		logger.Fatal("run failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger, days int) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	profile, err := config.LoadProfile(cfg.Profile)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}

	startDay, err := cfg.StartDay()
	if err != nil {
		return err
	}
	clock, err := calendar.NewClock(cfg.Sim.CalendarYear, cfg.Sim.StepsPerHour, startDay, cfg.Sim.LeapYear)
	if err != nil {
		return err
	}

	schedules, err := schedule.NewCompiler(cfg.Sim.StepsPerHour, logger)
	if err != nil {
		return err
	}
	if err := schedules.Compile(demoDeck()); err != nil {
		return fmt.Errorf("compile schedules: %w", err)
	}

	ids := emit.NewIDAllocator()
	registry, err := variable.NewRegistry(ids, schedules, logger)
	if err != nil {
		return err
	}
	if floor, ok := cfg.MinimumFrequency(); ok {
		registry.SetMinimumFrequency(floor)
	}
	addVariableRequests(registry, profile)

	meters, err := meter.NewEngine(ids, logger)
	if err != nil {
		return err
	}

	sinks, closeSinks, err := buildSinks(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSinks()

	esoWriter, mtrWriter, closeStreams, err := buildTextStreams(cfg.Output.TextDir)
	if err != nil {
		return err
	}
	defer closeStreams()

	emitter, err := emit.NewEmitter(esoWriter, mtrWriter, sinks, logger)
	if err != nil {
		return err
	}

	eng, err := engine.New(clock, schedules, registry, meters, emitter, engine.Config{
		Environment: cfg.Sim.Environment,
		WarmupDays:  cfg.Sim.WarmupDays,
		TotalYears:  cfg.Sim.TotalYears,
	}, logger)
	if err != nil {
		return err
	}

	model, err := newDemoModel(eng, schedules)
	if err != nil {
		return fmt.Errorf("register demo model: %w", err)
	}
	eng.AddProducer(model)

	if err := addMeterRequests(meters, profile); err != nil {
		return err
	}

	server := buildServer(cfg, eng, schedules, meters)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("simulation starting",
		zap.Int("days", days),
		zap.Int("steps_per_hour", cfg.Sim.StepsPerHour),
		zap.Int("warmup_days", cfg.Sim.WarmupDays))
	if err := eng.Run(ctx, days); err != nil {
		return err
	}
	if err := eng.Finish(ctx); err != nil {
		return err
	}

	registry.ReportUnmatchedRequests()
	schedules.ReportUnused()

	if err := writeReports(cfg, profile, schedules, meters, logger); err != nil {
		return err
	}
	logger.Info("simulation finished")
	return nil
}

// demoDeck is the built-in schedule deck: a weekday occupancy profile
// and an externally driven grid signal.
func demoDeck() *input.Deck {
	return input.NewDeck([]input.Object{
		{
			Class: "Schedule:Compact",
			Name:  "Occupancy",
			Alpha: []string{"",
				"Through: 12/31",
				"For: Weekdays",
				"Until: 08:00", "0.05",
				"Until: 18:00", "0.90",
				"Until: 24:00", "0.10",
				"For: AllOtherDays",
				"Until: 24:00", "0.05",
			},
		},
		{
			Class:  "ExternalInterface:Schedule",
			Name:   "Grid Signal",
			Alpha:  []string{""},
			Number: []float64{1.0},
		},
	})
}

func addVariableRequests(registry *variable.Registry, profile config.Profile) {
	if len(profile.Variables) == 0 {
		registry.AddRequest(variable.Request{Key: "*", Name: "Zone Mean Air Temperature", Frequency: units.FreqHourly})
		registry.AddRequest(variable.Request{Key: "*", Name: "Lights Electricity Energy", Frequency: units.FreqHourly})
		registry.AddRequest(variable.Request{Key: "*", Name: "Heating Electricity Energy", Frequency: units.FreqHourly})
		return
	}
	for _, req := range profile.Variables {
		registry.AddRequest(variable.Request{
			Key:       req.Key,
			Name:      req.Name,
			Frequency: req.ResolvedFrequency(),
			Schedule:  req.Schedule,
		})
	}
}

func addMeterRequests(meters *meter.Engine, profile config.Profile) error {
	if len(profile.Meters) == 0 {
		if _, ok := meters.IndexOf("Electricity:Facility"); !ok {
			return nil
		}
		return meters.RequestReporting("Electricity:Facility", units.FreqHourly, false)
	}
	for _, req := range profile.Meters {
		if err := meters.RequestReporting(req.Name, req.ResolvedFrequency(), req.Cumulative); err != nil {
			return fmt.Errorf("meter request %q: %w", req.Name, err)
		}
	}
	return nil
}

func buildSinks(ctx context.Context, cfg *config.Config) ([]emit.Sink, func(), error) {
	var sinks []emit.Sink
	var closers []func()
	closeAll := func() {
		for _, close := range closers {
			close()
		}
	}

	if cfg.Output.SQLitePath != "" {
		if dir := filepath.Dir(cfg.Output.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, closeAll, err
			}
		}
		store, err := emitsqlite.Open(ctx, cfg.Output.SQLitePath)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("open sqlite sink: %w", err)
		}
		sinks = append(sinks, store)
		closers = append(closers, func() { _ = store.Close() })
	}

	if cfg.Output.PostgresDSN != "" {
		db, err := sql.Open("pgx", cfg.Output.PostgresDSN)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("open postgres sink: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			closeAll()
			return nil, func() {}, fmt.Errorf("ping postgres sink: %w", err)
		}
		store, err := emitpostgres.NewStore(db, cfg.Sim.Environment)
		if err != nil {
			_ = db.Close()
			closeAll()
			return nil, func() {}, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			closeAll()
			return nil, func() {}, fmt.Errorf("postgres sink schema: %w", err)
		}
		sinks = append(sinks, store)
		closers = append(closers, func() { _ = db.Close() })
	}

	return sinks, closeAll, nil
}

func buildTextStreams(dir string) (io.Writer, io.Writer, func(), error) {
	if dir == "" {
		return io.Discard, io.Discard, func() {}, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, func() {}, err
	}
	eso, err := os.Create(filepath.Join(dir, "run.eso"))
	if err != nil {
		return nil, nil, func() {}, err
	}
	mtr, err := os.Create(filepath.Join(dir, "run.mtr"))
	if err != nil {
		_ = eso.Close()
		return nil, nil, func() {}, err
	}
	closeAll := func() {
		_ = eso.Close()
		_ = mtr.Close()
	}
	return eso, mtr, closeAll, nil
}

func buildServer(cfg *config.Config, eng *engine.Engine, schedules *schedule.Compiler, meters *meter.Engine) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/api/v1/schedules/", apihttp.NewScheduleValueHandler(schedules))
	mux.Handle("/api/v1/run", apihttp.NewRunStatusHandler(eng))
	summaryHandler := apihttp.NewSummaryExportHandler(meters, cfg.Sim.Environment, cfg.Sim.CalendarYear)
	mux.Handle("/api/v1/summary/meters.xlsx", summaryHandler)
	mux.Handle("/api/v1/summary/meters.pdf", summaryHandler)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", apihttp.HealthzHandler)

	handler := http.Handler(mux)
	if cfg.HTTP.AuthSecret != "" {
		policy := auth.NewDefaultPolicy([]string{"/healthz"}, []string{"/metrics"})
		handler = auth.NewMiddleware([]byte(cfg.HTTP.AuthSecret), policy).Wrap(mux)
	}
	return &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}
}

func writeReports(cfg *config.Config, profile config.Profile, schedules *schedule.Compiler, meters *meter.Engine, logger *zap.Logger) error {
	if cfg.Output.TextDir == "" {
		return nil
	}

	if profile.ReportSchedules {
		eio, err := os.Create(filepath.Join(cfg.Output.TextDir, "run.eio"))
		if err != nil {
			return err
		}
		if err := schedules.WriteDetails(eio); err != nil {
			_ = eio.Close()
			return err
		}
		_ = eio.Close()
	}

	if profile.ReportDetails || cfg.Output.Details {
		mtd, err := os.Create(filepath.Join(cfg.Output.TextDir, "run.mtd"))
		if err != nil {
			return err
		}
		if err := meters.WriteDetails(mtd); err != nil {
			_ = mtd.Close()
			return err
		}
		_ = mtd.Close()
	}

	report, err := summary.Build(meters, cfg.Sim.Environment, cfg.Sim.CalendarYear)
	if err != nil {
		return err
	}
	if data, err := summary.BuildXLSX(report); err == nil {
		if err := os.WriteFile(filepath.Join(cfg.Output.TextDir, "meters.xlsx"), data, 0o644); err != nil {
			return err
		}
	} else {
		logger.Warn("xlsx summary export failed", zap.Error(err))
	}
	if data, err := summary.BuildPDF(report); err == nil {
		if err := os.WriteFile(filepath.Join(cfg.Output.TextDir, "meters.pdf"), data, 0o644); err != nil {
			return err
		}
	} else {
		logger.Warn("pdf summary export failed", zap.Error(err))
	}
	return nil
}

// demoModel is a small synthetic building: one zone with lights driven
// by the occupancy schedule and electric heating driven by the outdoor
// swing, scaled by the external grid signal.
type demoModel struct {
	schedules   *schedule.Compiler
	occupancyID int
	gridID      int

	tempHandle   int
	lightsHandle int
	heatHandle   int
}

func newDemoModel(eng *engine.Engine, schedules *schedule.Compiler) (*demoModel, error) {
	m := &demoModel{schedules: schedules}

	var ok bool
	if m.occupancyID, ok = schedules.IndexOf("Occupancy"); !ok {
		return nil, fmt.Errorf("occupancy schedule missing from deck")
	}
	if m.gridID, ok = schedules.IndexOf("Grid Signal"); !ok {
		return nil, fmt.Errorf("grid signal schedule missing from deck")
	}
	schedules.MarkUsed(m.occupancyID)
	schedules.MarkUsed(m.gridID)

	var err error
	m.tempHandle, err = eng.RegisterVariable("Zone One", "Zone Mean Air Temperature",
		units.UnitCelsius, variable.StoreAveraged, nil)
	if err != nil {
		return nil, err
	}
	m.lightsHandle, err = eng.RegisterVariable("Zone One Lights", "Lights Electricity Energy",
		units.UnitJoule, variable.StoreSummed, &engine.MeterSpec{
			Resource: "Electricity",
			EndUse:   "InteriorLights",
			Group:    "Building",
			Zone:     "Zone One",
		})
	if err != nil {
		return nil, err
	}
	m.heatHandle, err = eng.RegisterVariable("Zone One Heater", "Heating Electricity Energy",
		units.UnitJoule, variable.StoreSummed, &engine.MeterSpec{
			Resource: "Electricity",
			EndUse:   "Heating",
			Group:    "Building",
			Zone:     "Zone One",
		})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Step produces one timestep of synthetic zone results.
func (m *demoModel) Step(clock *calendar.Clock) []engine.Sample {
	occupancy, err := m.schedules.CurrentValue(m.occupancyID)
	if err != nil {
		occupancy = 0
	}
	grid, err := m.schedules.CurrentValue(m.gridID)
	if err != nil {
		grid = 1
	}

	seconds := float64(clock.MinutesPerStep()) * 60
	hourOfDay := float64(clock.Hour-1) + float64(clock.TimeStep)/float64(clock.StepsPerHour)

	// Outdoor swing peaks mid-afternoon; the zone floats around it.
	outdoor := 10 + 8*math.Sin((hourOfDay-9)*math.Pi/12)
	zoneTemp := 19 + 0.25*outdoor + occupancy

	lightsPower := 1200 * occupancy
	heatingPower := math.Max(0, 21-zoneTemp) * 800 * grid

	return []engine.Sample{
		{Handle: m.tempHandle, Value: zoneTemp},
		{Handle: m.lightsHandle, Value: lightsPower * seconds},
		{Handle: m.heatHandle, Value: heatingPower * seconds},
	}
}
