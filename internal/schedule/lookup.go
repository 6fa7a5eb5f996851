package schedule

import (
	"fmt"
	"strconv"

	"buildsim/internal/calendar"
)

// Value answers a point query against the compiled tables. The sentinel ids
// resolve without touching any table: AlwaysOn is 1.0, AlwaysOff is 0.0.
func (c *Compiler) Value(id, dayOfYear int, dayType calendar.DayType, hour, timeStep int) (float64, error) {
	switch {
	case id == AlwaysOn:
		return 1.0, nil
	case id == AlwaysOff:
		return 0.0, nil
	case id < 1 || id > len(c.years):
		return 0, fmt.Errorf("%w: schedule id %d of %d", ErrIndexOutOfRange, id, len(c.years))
	}
	if dayOfYear < 1 || dayOfYear > calendar.MaxDayOfYear {
		return 0, fmt.Errorf("%w: day of year %d", ErrIndexOutOfRange, dayOfYear)
	}
	if !dayType.IsValid() {
		return 0, fmt.Errorf("%w: day type %d", ErrIndexOutOfRange, int(dayType))
	}
	if hour < 1 || hour > 24 || timeStep < 1 || timeStep > c.stepsPerHour {
		return 0, fmt.Errorf("%w: hour %d timestep %d", ErrIndexOutOfRange, hour, timeStep)
	}

	year := &c.years[id-1]
	weekID := year.Weeks[dayOfYear]
	if weekID < 1 || weekID > len(c.weeks) {
		return 0, fmt.Errorf("%w: schedule %q day %d has week %d", ErrIndexOutOfRange, year.Name, dayOfYear, weekID)
	}
	dayID := c.weeks[weekID-1].Days[dayType]
	if dayID < 1 || dayID > len(c.days) {
		return 0, fmt.Errorf("%w: week %q day type %s has day %d", ErrIndexOutOfRange, c.weeks[weekID-1].Name, dayType, dayID)
	}
	return c.days[dayID-1].Values[hour-1][timeStep-1], nil
}

// CurrentValue returns the cached value for the current simulation instant.
// The cache is refreshed once per tick by UpdateAll, not per query.
func (c *Compiler) CurrentValue(id int) (float64, error) {
	switch {
	case id == AlwaysOn:
		return 1.0, nil
	case id == AlwaysOff:
		return 0.0, nil
	case id < 1 || id > len(c.years):
		return 0, fmt.Errorf("%w: schedule id %d of %d", ErrIndexOutOfRange, id, len(c.years))
	}
	c.valuesMu.RLock()
	defer c.valuesMu.RUnlock()
	return c.years[id-1].currentValue, nil
}

// UpdateAll recomputes every schedule's cached current value for the clock
// instant. Externally-driven schedules take their live value instead of the
// compiled table.
func (c *Compiler) UpdateAll(clock *calendar.Clock) error {
	dayType := clock.EffectiveDayType()
	c.valuesMu.Lock()
	defer c.valuesMu.Unlock()
	for i := range c.years {
		year := &c.years[i]
		if year.External {
			year.currentValue = year.externalValue
			continue
		}
		value, err := c.Value(i+1, clock.DayOfYear, dayType, clock.Hour, clock.TimeStep)
		if err != nil {
			return err
		}
		year.currentValue = value
	}
	return nil
}

// SetExternalValue overrides the live value of an externally-driven
// schedule. The override takes effect at the next UpdateAll, bypassing
// recompilation.
func (c *Compiler) SetExternalValue(name string, value float64) error {
	id, ok := c.yearsByName[keyOf(name)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSchedule, name)
	}
	year := &c.years[id-1]
	if !year.External {
		return fmt.Errorf("%w: %q", ErrNotExternal, name)
	}
	c.valuesMu.Lock()
	year.externalValue = value
	c.valuesMu.Unlock()
	return nil
}

// FormatValue renders a schedule value for the detail report: "0.0" for the
// common zero case, shortest round-trip decimal otherwise.
func FormatValue(v float64) string {
	if v == 0 {
		return "0.0"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
