// Package schedule compiles the heterogeneous schedule input forms into a
// uniform Year → Week → Day → timestep value table and answers point
// lookups against it.
package schedule

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"buildsim/internal/calendar"
	"buildsim/internal/input"
)

// Sentinel schedule indices: callers holding no real schedule use these.
const (
	// AlwaysOn is the pseudo-schedule that always evaluates to 1.0.
	AlwaysOn = -1
	// AlwaysOff is the pseudo-schedule that always evaluates to 0.0.
	AlwaysOff = 0
)

// Compiler owns every compiled schedule artifact for one simulation run.
// Compilation is single-goroutine; after Compile the live value cache is
// the only mutable state and valuesMu guards it, so external overrides and
// current-value reads may come from other goroutines while the run ticks.
type Compiler struct {
	stepsPerHour int
	log          *zap.Logger
	diags        *Diagnostics

	// valuesMu guards currentValue and externalValue on every YearSchedule.
	valuesMu sync.RWMutex

	typeLimits       []TypeLimits
	typeLimitsByName map[string]int
	days             []DaySchedule
	daysByName       map[string]int
	weeks            []WeekSchedule
	weeksByName      map[string]int
	years            []YearSchedule
	yearsByName      map[string]int
}

// NewCompiler constructs a compiler for the given reporting timestep.
func NewCompiler(stepsPerHour int, log *zap.Logger) (*Compiler, error) {
	if stepsPerHour < 1 || stepsPerHour > 60 || 60%stepsPerHour != 0 {
		return nil, fmt.Errorf("schedule: steps per hour %d must evenly divide 60", stepsPerHour)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Compiler{
		stepsPerHour:     stepsPerHour,
		log:              log,
		diags:            NewDiagnostics(log),
		typeLimitsByName: make(map[string]int),
		daysByName:       make(map[string]int),
		weeksByName:      make(map[string]int),
		yearsByName:      make(map[string]int),
	}, nil
}

// Compile processes every schedule object in the deck. All objects are
// checked before any error is returned, so one run surfaces every schedule
// problem at once.
func (c *Compiler) Compile(deck *input.Deck) error {
	c.compileTypeLimits(deck)

	c.compileHourlyDays(deck)
	c.compileIntervalDays(deck)
	c.compileListDays(deck)

	c.compileDailyWeeks(deck)
	c.compileCompactWeeks(deck)

	c.compileYearSchedules(deck)
	c.compileCompactSchedules(deck)
	c.compileFileSchedules(deck)
	c.compileShadingFileSchedules(deck)
	c.compileConstantSchedules(deck)
	c.compileExternalSchedules(deck)

	if err := c.diags.Err(); err != nil {
		return err
	}
	c.log.Info("schedules compiled",
		zap.Int("schedules", len(c.years)),
		zap.Int("weeks", len(c.weeks)),
		zap.Int("days", len(c.days)),
		zap.Int("warnings", len(c.diags.Warnings())),
	)
	return nil
}

// Diagnostics exposes the findings of the last compile pass.
func (c *Compiler) Diagnostics() *Diagnostics { return c.diags }

// IndexOf resolves a schedule name to its id.
func (c *Compiler) IndexOf(name string) (int, bool) {
	id, ok := c.yearsByName[keyOf(name)]
	return id, ok
}

// NumSchedules returns the number of compiled year schedules.
func (c *Compiler) NumSchedules() int { return len(c.years) }

// StepsPerHour returns the compiled sub-hour resolution.
func (c *Compiler) StepsPerHour() int { return c.stepsPerHour }

// MarkUsed flags a schedule as referenced so the unused-schedule report
// skips it.
func (c *Compiler) MarkUsed(id int) {
	if id >= 1 && id <= len(c.years) {
		c.years[id-1].Used = true
	}
}

// Name returns the schedule name for an id, or "" for the sentinels.
func (c *Compiler) Name(id int) string {
	if id < 1 || id > len(c.years) {
		return ""
	}
	return c.years[id-1].Name
}

// ReportUnused logs every schedule never referenced by a consumer. Gated
// behind a verbosity flag by the caller.
func (c *Compiler) ReportUnused() {
	for _, year := range c.years {
		if !year.Used {
			c.log.Info("schedule never referenced", zap.String("schedule", year.Name))
		}
	}
	for _, week := range c.weeks {
		if !week.Used {
			c.log.Info("week schedule never referenced", zap.String("week", week.Name))
		}
	}
	for _, day := range c.days {
		if !day.Used {
			c.log.Info("day schedule never referenced", zap.String("day", day.Name))
		}
	}
}

// WriteDetails dumps the compiled tables for Output:Schedules: per-day
// timestep values and the year-to-week mapping, one comma-separated line
// per record.
func (c *Compiler) WriteDetails(w io.Writer) error {
	for _, day := range c.days {
		if _, err := fmt.Fprintf(w, "DaySchedule,%s,%s\n", day.Name, interpolationLabel(day.Interpolation)); err != nil {
			return err
		}
		for h := 0; h < 24; h++ {
			if _, err := fmt.Fprintf(w, " Hour %d", h+1); err != nil {
				return err
			}
			for s := 0; s < c.stepsPerHour; s++ {
				if _, err := fmt.Fprintf(w, ",%s", FormatValue(day.Values[h][s])); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
	}
	for _, week := range c.weeks {
		if _, err := fmt.Fprintf(w, "WeekSchedule,%s", week.Name); err != nil {
			return err
		}
		for dt := calendar.DaySunday; dt <= calendar.DayCustom2; dt++ {
			dayName := ""
			if id := week.Days[dt]; id >= 1 && id <= len(c.days) {
				dayName = c.days[id-1].Name
			}
			if _, err := fmt.Fprintf(w, ",%s", dayName); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	for _, year := range c.years {
		if _, err := fmt.Fprintf(w, "Schedule,%s,Through 12/31\n", year.Name); err != nil {
			return err
		}
	}
	return nil
}

func interpolationLabel(mode InterpolationMode) string {
	switch mode {
	case InterpolateAverage:
		return "Average"
	case InterpolateLinear:
		return "Linear"
	default:
		return "No"
	}
}
