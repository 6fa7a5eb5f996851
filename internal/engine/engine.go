package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"buildsim/internal/calendar"
	"buildsim/internal/emit"
	"buildsim/internal/meter"
	"buildsim/internal/observability/metrics"
	"buildsim/internal/schedule"
	"buildsim/internal/units"
	"buildsim/internal/variable"
)

// Sample is one producer reading for the current tick.
type Sample struct {
	// Handle is the registry handle returned by RegisterVariable.
	Handle int
	Value  float64
}

// Producer is a physical model feeding the registry once per tick.
type Producer interface {
	Step(clock *calendar.Clock) []Sample
}

// ProducerFunc adapts a function to the Producer interface.
type ProducerFunc func(clock *calendar.Clock) []Sample

func (f ProducerFunc) Step(clock *calendar.Clock) []Sample { return f(clock) }

// Engine drives the simulation clock through the fixed per-tick order:
// schedule refresh, producer sampling, registry update, meter fan-out and,
// at window boundaries, flush then fold. Not safe for concurrent use; run
// one Engine per simulation.
type Engine struct {
	log       *zap.Logger
	clock     *calendar.Clock
	schedules *schedule.Compiler
	variables *variable.Registry
	meters    *meter.Engine
	emitter   *emit.Emitter

	environment string
	warmupDays  int
	totalYears  int

	producers []Producer
	metered   map[int]bool
	deltas    map[int]float64

	warmup      bool
	warmupEnded bool
	yearsClosed int
	wroteDict   bool

	// Open-window flags for Finish: set on every reporting tick, cleared
	// when the boundary flush closes the window.
	monthOpen bool
	yearOpen  bool
	runOpen   bool
	lastStamp int
}

// Config carries the run-level knobs.
type Config struct {
	Environment string
	WarmupDays  int
	// TotalYears is the number of simulated years; the run period of the
	// last one feeds the end-of-run summary.
	TotalYears int
}

// New wires the engine. All collaborators are required.
func New(clock *calendar.Clock, schedules *schedule.Compiler, variables *variable.Registry, meters *meter.Engine, emitter *emit.Emitter, cfg Config, log *zap.Logger) (*Engine, error) {
	if clock == nil {
		return nil, fmt.Errorf("engine: clock is required")
	}
	if schedules == nil {
		return nil, fmt.Errorf("engine: schedule compiler is required")
	}
	if variables == nil {
		return nil, fmt.Errorf("engine: variable registry is required")
	}
	if meters == nil {
		return nil, fmt.Errorf("engine: meter engine is required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("engine: emitter is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Environment == "" {
		cfg.Environment = "RUN PERIOD 1"
	}
	if cfg.TotalYears < 1 {
		cfg.TotalYears = 1
	}
	return &Engine{
		log:         log,
		clock:       clock,
		schedules:   schedules,
		variables:   variables,
		meters:      meters,
		emitter:     emitter,
		environment: cfg.Environment,
		warmupDays:  cfg.WarmupDays,
		totalYears:  cfg.TotalYears,
		producers:   nil,
		metered:     make(map[int]bool),
		deltas:      make(map[int]float64),
		warmup:      cfg.WarmupDays > 0,
	}, nil
}

// AddProducer registers a physical model.
func (e *Engine) AddProducer(p Producer) {
	if p != nil {
		e.producers = append(e.producers, p)
	}
}

// RegisterVariable sets up a producer's scalar and, for summed variables
// with meter specifications, wires it into the standard meter hierarchy.
// The returned handle doubles as the metering id.
func (e *Engine) RegisterVariable(key, name string, unit units.Unit, store variable.StoreType, spec *MeterSpec) (int, error) {
	handle, err := e.variables.Setup(key, name, unit, store)
	if err != nil {
		return 0, err
	}
	if spec == nil {
		return handle, nil
	}
	if store != variable.StoreSummed {
		return 0, fmt.Errorf("engine: variable %q on %q: only summed variables can be metered", name, key)
	}
	id := handle
	if id == 0 {
		// Not requested for output, but it still feeds its meters.
		id = -len(e.metered) - 1
	}
	e.meters.RegisterSource(id, key, name, unit)
	if err := e.meters.AttachStandardMeters(id, key, name, unit, spec.Resource, spec.EndUse, spec.EndUseSub, spec.Group, spec.Zone); err != nil {
		return 0, err
	}
	e.metered[id] = true
	if handle == 0 {
		return id, nil
	}
	return handle, nil
}

// MeterSpec names the meter hierarchy slots a summed variable feeds.
type MeterSpec struct {
	Resource  string
	EndUse    string
	EndUseSub string
	Group     string
	Zone      string
}

// Clock exposes the simulation clock, read-only by convention.
func (e *Engine) Clock() *calendar.Clock { return e.clock }

// Environment returns the run environment label.
func (e *Engine) Environment() string { return e.environment }

// InWarmup reports whether the warm-up convergence phase is active.
func (e *Engine) InWarmup() bool { return e.warmup }

// Run advances the clock for the given number of days, honoring context
// cancellation at day granularity.
func (e *Engine) Run(ctx context.Context, days int) error {
	for d := 0; d < days; d++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := e.RunDay(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RunDay advances the clock through one full day of ticks.
func (e *Engine) RunDay(ctx context.Context) error {
	steps := 24 * e.clock.StepsPerHour
	for i := 0; i < steps; i++ {
		if err := e.Tick(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Tick runs one timestep: schedules, producers, registry, meter fan-out,
// boundary flushes, clock advance.
func (e *Engine) Tick(ctx context.Context) error {
	timer := metrics.StartTickTimer()
	if err := e.ensureDictionaries(ctx); err != nil {
		return err
	}
	if err := e.schedules.UpdateAll(e.clock); err != nil {
		return err
	}

	for k := range e.deltas {
		delete(e.deltas, k)
	}
	for _, p := range e.producers {
		for _, s := range p.Step(e.clock) {
			// Negative handles are meter-only ids for variables no output
			// request matched.
			if s.Handle > 0 {
				if err := e.variables.Update(s.Handle, s.Value, e.clock); err != nil {
					return err
				}
			}
			if e.metered[s.Handle] {
				e.deltas[s.Handle] += s.Value
			}
		}
	}

	stamp := e.clock.TimeStamp()
	e.meters.UpdateAllMeters(e.deltas)
	e.meters.AccumulateTick(stamp)

	e.emitter.BeginCycle()
	if !e.warmup {
		e.monthOpen = true
		e.yearOpen = true
		e.runOpen = true
		e.lastStamp = stamp
		if err := e.flushBoundaries(ctx, stamp); err != nil {
			return err
		}
	} else {
		// Warm-up ticks still fold windows so the state machine stays
		// aligned, but nothing is emitted.
		e.foldBoundaries(stamp)
	}

	endOfDay := e.clock.EndOfDay()
	e.clock.Advance()
	if endOfDay && e.warmup {
		e.warmupDays--
		if e.warmupDays <= 0 {
			e.endWarmup()
		}
	}
	timer.Observe()
	return nil
}

// endWarmup resets the coarse accumulators exactly once.
func (e *Engine) endWarmup() {
	if e.warmupEnded {
		return
	}
	e.warmupEnded = true
	e.warmup = false
	e.variables.ResetAfterWarmup()
	e.meters.ResetAfterWarmup()
	e.clock.DayOfSim = 1
	e.log.Info("warmup converged, accumulators reset")
	metrics.RecordWarmupEnd()
}

func (e *Engine) ensureDictionaries(ctx context.Context) error {
	if e.wroteDict {
		return nil
	}
	e.wroteDict = true
	return e.emitter.WriteDictionaries(ctx, e.variables.Dictionary(), e.meters.Dictionary())
}

// flushBoundaries reports every window closing on this tick, coarsest
// last, and folds each closed window after its report so reporting always
// sees the pre-fold totals.
func (e *Engine) flushBoundaries(ctx context.Context, stamp int) error {
	if err := e.flushWindow(ctx, units.FreqEachCall); err != nil {
		return err
	}
	if err := e.flushWindow(ctx, units.FreqTimeStep); err != nil {
		return err
	}
	if e.clock.EndOfHour() {
		if err := e.flushWindow(ctx, units.FreqHourly); err != nil {
			return err
		}
		e.meters.CloseWindow(units.FreqHourly, stamp, false)
	}
	if e.clock.EndOfDay() {
		if err := e.flushWindow(ctx, units.FreqDaily); err != nil {
			return err
		}
		e.meters.CloseWindow(units.FreqDaily, stamp, false)
	}
	if e.clock.EndOfMonth() {
		if err := e.flushWindow(ctx, units.FreqMonthly); err != nil {
			return err
		}
		e.meters.CloseWindow(units.FreqMonthly, stamp, false)
		e.monthOpen = false
	}
	if e.clock.EndOfYear() {
		if err := e.flushWindow(ctx, units.FreqYearly); err != nil {
			return err
		}
		e.meters.CloseWindow(units.FreqYearly, stamp, false)
		e.yearOpen = false
		if err := e.closeRunPeriod(ctx, stamp); err != nil {
			return err
		}
	}
	return nil
}

// foldBoundaries advances the meter window state without emitting.
func (e *Engine) foldBoundaries(stamp int) {
	e.variables.FlushAndReset(units.FreqEachCall)
	e.variables.FlushAndReset(units.FreqTimeStep)
	if e.clock.EndOfHour() {
		e.variables.FlushAndReset(units.FreqHourly)
		e.meters.CloseWindow(units.FreqHourly, stamp, false)
	}
	if e.clock.EndOfDay() {
		e.variables.FlushAndReset(units.FreqDaily)
		e.meters.CloseWindow(units.FreqDaily, stamp, false)
	}
}

func (e *Engine) closeRunPeriod(ctx context.Context, stamp int) error {
	e.yearsClosed++
	final := e.yearsClosed >= e.totalYears
	if err := e.flushWindow(ctx, units.FreqRunPeriod); err != nil {
		return err
	}
	e.meters.CloseWindow(units.FreqRunPeriod, stamp, final)
	if final {
		e.runOpen = false
	}
	return nil
}

// Finish flushes the monthly, yearly, and run-period windows a short run
// leaves open, so partial months and partial years still report. The run
// period closes as final so the end-of-run summary sees its totals. Call
// once, after Run returns.
func (e *Engine) Finish(ctx context.Context) error {
	if e.lastStamp == 0 {
		return nil
	}
	e.emitter.BeginCycle()
	if e.monthOpen {
		if err := e.flushWindow(ctx, units.FreqMonthly); err != nil {
			return err
		}
		e.meters.CloseWindow(units.FreqMonthly, e.lastStamp, false)
		e.monthOpen = false
	}
	if e.yearOpen {
		if err := e.flushWindow(ctx, units.FreqYearly); err != nil {
			return err
		}
		e.meters.CloseWindow(units.FreqYearly, e.lastStamp, false)
		e.yearOpen = false
	}
	if e.runOpen {
		if err := e.flushWindow(ctx, units.FreqRunPeriod); err != nil {
			return err
		}
		e.meters.CloseWindow(units.FreqRunPeriod, e.lastStamp, true)
		e.runOpen = false
	}
	return nil
}

func (e *Engine) flushWindow(ctx context.Context, freq units.ReportFrequency) error {
	ts := emit.TimeIndexFromClock(e.clock, freq, e.environment, e.warmup)
	if err := e.emitter.EmitVariables(ctx, ts, e.variables.FlushAndReset(freq)); err != nil {
		return err
	}
	if err := e.emitter.EmitMeters(ctx, ts, e.meters.Flush(freq)); err != nil {
		return err
	}
	metrics.RecordFlush(freq.String())
	return nil
}
