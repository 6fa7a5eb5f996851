package schedule

import (
	"buildsim/internal/calendar"
	"buildsim/internal/input"
)

// YearSchedule is the compiled artifact of the subsystem: a week schedule
// reference for every day of the 366-day reporting year.
type YearSchedule struct {
	Name       string
	TypeLimits int
	// Weeks is indexed by day of year 1..366; 0 means unassigned, which is
	// a coverage violation once compilation finishes.
	Weeks [calendar.MaxDayOfYear + 1]int
	// External marks schedules driven by an outside actor between ticks.
	External bool
	Used     bool

	currentValue  float64
	externalValue float64
}

const (
	classScheduleYear     = "Schedule:Year"
	classScheduleConstant = "Schedule:Constant"
	classExternal         = "ExternalInterface:Schedule"
	classExternalFMUIm    = "ExternalInterface:FunctionalMockupUnitImport:To:Schedule"
	classExternalFMUEx    = "ExternalInterface:FunctionalMockupUnitExport:To:Schedule"
)

// addYearSchedule registers a compiled year schedule, rejecting duplicates.
func (c *Compiler) addYearSchedule(object string, year YearSchedule) int {
	if _, dup := c.yearsByName[keyOf(year.Name)]; dup {
		c.diags.Severef(object, year.Name, "duplicate schedule name")
		return 0
	}
	c.years = append(c.years, year)
	id := len(c.years)
	c.yearsByName[keyOf(year.Name)] = id
	return id
}

// compileYearSchedules processes Schedule:Year: groups of
// (week name, start month/day, end month/day) tiling the calendar.
func (c *Compiler) compileYearSchedules(deck *input.Deck) {
	for _, obj := range deck.ObjectsOf(classScheduleYear) {
		year := YearSchedule{
			Name:       obj.Name,
			TypeLimits: c.resolveTypeLimits(classScheduleYear, obj.Name, obj.AlphaAt(0)),
		}
		ok := true
		for i := 1; i < len(obj.Alpha); i++ {
			weekName := obj.AlphaAt(i)
			weekID, found := c.weeksByName[keyOf(weekName)]
			if !found {
				c.diags.Severef(classScheduleYear, obj.Name, "week schedule %q not found", weekName)
				ok = false
				continue
			}
			base := (i - 1) * 4
			start, err := calendar.OrdinalDay(int(obj.NumberAt(base)), int(obj.NumberAt(base+1)))
			if err != nil {
				c.diags.Severef(classScheduleYear, obj.Name, "bad range start: %v", err)
				ok = false
				continue
			}
			end, err := calendar.OrdinalDay(int(obj.NumberAt(base+2)), int(obj.NumberAt(base+3)))
			if err != nil {
				c.diags.Severef(classScheduleYear, obj.Name, "bad range end: %v", err)
				ok = false
				continue
			}
			if end < start {
				c.diags.Severef(classScheduleYear, obj.Name, "range end before start")
				ok = false
				continue
			}
			for d := start; d <= end; d++ {
				if year.Weeks[d] != 0 {
					c.diags.Severef(classScheduleYear, obj.Name, "day %d covered by more than one week range", d)
					ok = false
					break
				}
				year.Weeks[d] = weekID
			}
			c.weeks[weekID-1].Used = true
		}
		if !ok {
			continue
		}
		c.finishYearCoverage(classScheduleYear, &year)
		c.addYearSchedule(classScheduleYear, year)
	}
}

// compileConstantSchedules processes Schedule:Constant: a single scalar
// broadcast to every cell of the year.
func (c *Compiler) compileConstantSchedules(deck *input.Deck) {
	for _, obj := range deck.ObjectsOf(classScheduleConstant) {
		c.buildBroadcastSchedule(classScheduleConstant, obj, false)
	}
}

// compileExternalSchedules processes the externally-driven schedule forms.
// They compile like constants but additionally accept live value overrides.
func (c *Compiler) compileExternalSchedules(deck *input.Deck) {
	for _, class := range []string{classExternal, classExternalFMUIm, classExternalFMUEx} {
		for _, obj := range deck.ObjectsOf(class) {
			c.buildBroadcastSchedule(class, obj, true)
		}
	}
}

func (c *Compiler) buildBroadcastSchedule(class string, obj input.Object, external bool) {
	limitsID := c.resolveTypeLimits(class, obj.Name, obj.AlphaAt(0))
	value := obj.NumberAt(0)
	c.checkValueAgainstLimits(class, obj.Name, limitsID, value)

	day := DaySchedule{Name: obj.Name + " Day", TypeLimits: limitsID, Values: c.newDayValues(), Used: true}
	for h := 0; h < 24; h++ {
		for s := 0; s < c.stepsPerHour; s++ {
			day.Values[h][s] = value
		}
	}
	dayID := c.addDaySchedule(class, day)
	if dayID == 0 {
		return
	}

	week := WeekSchedule{Name: obj.Name + " Week", Used: true}
	for dt := calendar.DaySunday; dt <= calendar.DayCustom2; dt++ {
		week.Days[dt] = dayID
	}
	weekID := c.addWeekSchedule(class, week)
	if weekID == 0 {
		return
	}

	year := YearSchedule{
		Name:          obj.Name,
		TypeLimits:    limitsID,
		External:      external,
		externalValue: value,
		currentValue:  value,
	}
	for d := 1; d <= calendar.MaxDayOfYear; d++ {
		year.Weeks[d] = weekID
	}
	c.addYearSchedule(class, year)
}

// finishYearCoverage applies the Feb-29 inheritance rule and reports the
// coverage invariant: every day 1..366 must map to exactly one week.
func (c *Compiler) finishYearCoverage(object string, year *YearSchedule) {
	feb29, _ := calendar.OrdinalDay(2, 29)
	feb28, _ := calendar.OrdinalDay(2, 28)
	if year.Weeks[feb29] == 0 && year.Weeks[feb28] != 0 {
		// Copy, don't re-derive: Feb 29 inherits Feb 28's week.
		year.Weeks[feb29] = year.Weeks[feb28]
	}
	firstGap, missing := 0, 0
	for d := 1; d <= calendar.MaxDayOfYear; d++ {
		if year.Weeks[d] == 0 {
			if firstGap == 0 {
				firstGap = d
			}
			missing++
		}
	}
	if missing > 0 {
		month, day, _ := calendar.MonthDay(firstGap)
		c.diags.Severef(object, year.Name, "%d day(s) have no week schedule assigned, first gap at %d/%d", missing, month, day)
	}
}
