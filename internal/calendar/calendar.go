// Package calendar carries the simulation clock state the reporting
// subsystem indexes by: day of year, day type, hour, sub-hour timestep,
// and the coded timestamps recorded next to min/max extremes.
package calendar

import "fmt"

// DayType selects which day schedule applies on a given date. The ordinal
// values are stable; week schedules index their day slots by them.
type DayType int

const (
	DaySunday DayType = iota + 1
	DayMonday
	DayTuesday
	DayWednesday
	DayThursday
	DayFriday
	DaySaturday
	DayHoliday
	DaySummerDesign
	DayWinterDesign
	DayCustom1
	DayCustom2
)

// NumDayTypes is the number of day-type slots in a week schedule.
const NumDayTypes = 12

// MaxDayOfYear is the size of the year table; day 60 is February 29.
const MaxDayOfYear = 366

var dayTypeNames = [NumDayTypes + 1]string{
	"", "Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday",
	"Saturday", "Holiday", "SummerDesignDay", "WinterDesignDay",
	"CustomDay1", "CustomDay2",
}

// String returns the day-type name used in timestamp rows.
func (d DayType) String() string {
	if d < DaySunday || d > DayCustom2 {
		return "Unknown"
	}
	return dayTypeNames[d]
}

// IsValid reports whether d is one of the twelve day types.
func (d DayType) IsValid() bool { return d >= DaySunday && d <= DayCustom2 }

// daysInMonth is for the fixed 366-day reporting calendar (leap ordinals).
var daysInMonth = [13]int{0, 31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// endOfMonth[m] is the ordinal day of the last day of month m in the fixed
// 366-day calendar.
var endOfMonth = func() [13]int {
	var out [13]int
	for m := 1; m <= 12; m++ {
		out[m] = out[m-1] + daysInMonth[m]
	}
	return out
}()

// OrdinalDay converts month/day to a 1..366 ordinal in the fixed calendar.
func OrdinalDay(month, day int) (int, error) {
	if month < 1 || month > 12 {
		return 0, fmt.Errorf("calendar: month %d out of range", month)
	}
	if day < 1 || day > daysInMonth[month] {
		return 0, fmt.Errorf("calendar: day %d out of range for month %d", day, month)
	}
	return endOfMonth[month-1] + day, nil
}

// MonthDay converts a 1..366 ordinal back to month/day.
func MonthDay(ordinal int) (month, day int, err error) {
	if ordinal < 1 || ordinal > MaxDayOfYear {
		return 0, 0, fmt.Errorf("calendar: ordinal day %d out of range", ordinal)
	}
	for m := 1; m <= 12; m++ {
		if ordinal <= endOfMonth[m] {
			return m, ordinal - endOfMonth[m-1], nil
		}
	}
	return 0, 0, fmt.Errorf("calendar: ordinal day %d out of range", ordinal)
}

// CodedTimeStamp packs a calendar instant into the integer stored beside
// min/max extremes: ((month*100+day)*100+hour)*100+minute.
func CodedTimeStamp(month, day, hour, minute int) int {
	return ((month*100+day)*100+hour)*100 + minute
}

// DecodeMonDayHrMin unpacks a coded timestamp.
func DecodeMonDayHrMin(code int) (month, day, hour, minute int) {
	minute = code % 100
	code /= 100
	hour = code % 100
	code /= 100
	day = code % 100
	month = code / 100
	return
}

// Clock is the simulation clock, advanced by the driver once per timestep.
// Hour runs 1..24 and TimeStep 1..StepsPerHour, matching the compiled
// schedule tables.
type Clock struct {
	Year         int
	Month        int
	Day          int
	DayOfYear    int
	Hour         int
	TimeStep     int
	StepsPerHour int
	DayOfWeek    DayType
	// HolidayType overrides DayOfWeek when nonzero (Holiday or a design day).
	HolidayType DayType
	DSTActive   bool
	DayOfSim    int
	LeapYear    bool
	Warmup      bool
}

// NewClock starts a clock at January 1, hour 1, first timestep.
func NewClock(year int, stepsPerHour int, startDayOfWeek DayType, leap bool) (*Clock, error) {
	if stepsPerHour < 1 || stepsPerHour > 60 || 60%stepsPerHour != 0 {
		return nil, fmt.Errorf("calendar: steps per hour %d must evenly divide 60", stepsPerHour)
	}
	if !startDayOfWeek.IsValid() || startDayOfWeek > DaySaturday {
		return nil, fmt.Errorf("calendar: start day of week %d invalid", startDayOfWeek)
	}
	return &Clock{
		Year:         year,
		Month:        1,
		Day:          1,
		DayOfYear:    1,
		Hour:         1,
		TimeStep:     1,
		StepsPerHour: stepsPerHour,
		DayOfWeek:    startDayOfWeek,
		LeapYear:     leap,
		DayOfSim:     1,
	}, nil
}

// MinutesPerStep returns the timestep length in minutes.
func (c *Clock) MinutesPerStep() int { return 60 / c.StepsPerHour }

// EndMinute returns the minute of the hour at which the current step ends.
func (c *Clock) EndMinute() int { return c.TimeStep * c.MinutesPerStep() }

// StartMinute returns the minute of the hour at which the current step starts.
func (c *Clock) StartMinute() int { return (c.TimeStep - 1) * c.MinutesPerStep() }

// EffectiveDayType resolves the day type for schedule lookup, honoring the
// holiday/design-day override.
func (c *Clock) EffectiveDayType() DayType {
	if c.HolidayType.IsValid() {
		return c.HolidayType
	}
	return c.DayOfWeek
}

// TimeStamp returns the coded timestamp for the end of the current step.
func (c *Clock) TimeStamp() int {
	return CodedTimeStamp(c.Month, c.Day, c.Hour, c.EndMinute())
}

// EndOfHour reports whether the current step closes the hour.
func (c *Clock) EndOfHour() bool { return c.TimeStep == c.StepsPerHour }

// EndOfDay reports whether the current step closes the day.
func (c *Clock) EndOfDay() bool { return c.EndOfHour() && c.Hour == 24 }

// EndOfMonth reports whether the current step closes the month.
func (c *Clock) EndOfMonth() bool {
	last := daysInMonth[c.Month]
	if c.Month == 2 && !c.LeapYear {
		last = 28
	}
	return c.EndOfDay() && c.Day == last
}

// EndOfYear reports whether the current step closes the year.
func (c *Clock) EndOfYear() bool { return c.EndOfMonth() && c.Month == 12 }

// Advance steps the clock forward one timestep.
func (c *Clock) Advance() {
	if !c.EndOfHour() {
		c.TimeStep++
		return
	}
	c.TimeStep = 1
	if c.Hour < 24 {
		c.Hour++
		return
	}
	c.Hour = 1
	c.nextDay()
}

func (c *Clock) nextDay() {
	c.DayOfSim++
	c.DayOfWeek++
	if c.DayOfWeek > DaySaturday {
		c.DayOfWeek = DaySunday
	}
	c.HolidayType = 0
	last := daysInMonth[c.Month]
	if c.Month == 2 && !c.LeapYear {
		last = 28
	}
	if c.Day < last {
		c.Day++
	} else if c.Month < 12 {
		c.Month++
		c.Day = 1
	} else {
		c.Year++
		c.Month = 1
		c.Day = 1
	}
	ordinal, err := OrdinalDay(c.Month, c.Day)
	if err == nil {
		c.DayOfYear = ordinal
	}
}
