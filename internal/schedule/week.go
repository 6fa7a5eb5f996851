package schedule

import (
	"fmt"
	"strings"

	"buildsim/internal/calendar"
	"buildsim/internal/input"
)

// WeekSchedule maps each of the twelve day types to a day schedule.
type WeekSchedule struct {
	Name string
	// Days is indexed by calendar.DayType; 0 means unset.
	Days [calendar.NumDayTypes + 1]int
	Used bool
}

const (
	classWeekDaily   = "Schedule:Week:Daily"
	classWeekCompact = "Schedule:Week:Compact"
)

// addWeekSchedule registers a compiled week schedule, rejecting duplicates
// and unassigned day-type slots.
func (c *Compiler) addWeekSchedule(object string, week WeekSchedule) int {
	if _, dup := c.weeksByName[keyOf(week.Name)]; dup {
		c.diags.Severef(object, week.Name, "duplicate week schedule name")
		return 0
	}
	for dt := calendar.DaySunday; dt <= calendar.DayCustom2; dt++ {
		if week.Days[dt] == 0 {
			c.diags.Severef(object, week.Name, "day type %s has no day schedule assigned", dt)
			return 0
		}
	}
	c.weeks = append(c.weeks, week)
	id := len(c.weeks)
	c.weeksByName[keyOf(week.Name)] = id
	return id
}

// compileDailyWeeks processes Schedule:Week:Daily: twelve day schedule names
// in fixed day-type order.
func (c *Compiler) compileDailyWeeks(deck *input.Deck) {
	for _, obj := range deck.ObjectsOf(classWeekDaily) {
		week := WeekSchedule{Name: obj.Name}
		ok := true
		for dt := calendar.DaySunday; dt <= calendar.DayCustom2; dt++ {
			dayName := obj.AlphaAt(int(dt) - 1)
			dayID, found := c.daysByName[keyOf(dayName)]
			if !found {
				c.diags.Severef(classWeekDaily, obj.Name, "day schedule %q for %s not found", dayName, dt)
				ok = false
				continue
			}
			week.Days[dt] = dayID
			c.days[dayID-1].Used = true
		}
		if ok {
			c.addWeekSchedule(classWeekDaily, week)
		}
	}
}

// compileCompactWeeks processes Schedule:Week:Compact: repeated
// "For: <day types>" / day-schedule-name pairs. Assigning the same day type
// twice is an error; AllOtherDays fills whatever is left.
func (c *Compiler) compileCompactWeeks(deck *input.Deck) {
	for _, obj := range deck.ObjectsOf(classWeekCompact) {
		week := WeekSchedule{Name: obj.Name}
		ok := true
		for i := 0; i+1 < len(obj.Alpha); i += 2 {
			forField := obj.AlphaAt(i)
			dayName := obj.AlphaAt(i + 1)
			dayID, found := c.daysByName[keyOf(dayName)]
			if !found {
				c.diags.Severef(classWeekCompact, obj.Name, "day schedule %q not found", dayName)
				ok = false
				continue
			}
			dayTypes, err := parseForDayTypes(forField)
			if err != nil {
				c.diags.Severef(classWeekCompact, obj.Name, "%v", err)
				ok = false
				continue
			}
			if dayTypes.allOther {
				for dt := calendar.DaySunday; dt <= calendar.DayCustom2; dt++ {
					if week.Days[dt] == 0 {
						week.Days[dt] = dayID
					}
				}
				c.days[dayID-1].Used = true
				continue
			}
			for _, dt := range dayTypes.list {
				if week.Days[dt] != 0 {
					c.diags.Severef(classWeekCompact, obj.Name, "day type %s assigned twice", dt)
					ok = false
					continue
				}
				week.Days[dt] = dayID
			}
			c.days[dayID-1].Used = true
		}
		if ok {
			c.addWeekSchedule(classWeekCompact, week)
		}
	}
}

type forDayTypes struct {
	list     []calendar.DayType
	allOther bool
}

// parseForDayTypes expands a "For:" field into concrete day types. Group
// names (Weekdays, Weekends, AllDays, AllOtherDays) are accepted alongside
// individual day names.
func parseForDayTypes(field string) (forDayTypes, error) {
	text := strings.TrimSpace(field)
	if idx := strings.Index(strings.ToLower(text), "for"); idx == 0 {
		text = strings.TrimSpace(strings.TrimPrefix(text[len("for"):], ":"))
	}

	var out forDayTypes
	for _, token := range strings.Fields(text) {
		switch strings.ToLower(token) {
		case "alldays":
			for dt := calendar.DaySunday; dt <= calendar.DayCustom2; dt++ {
				out.list = append(out.list, dt)
			}
		case "allotherdays":
			out.allOther = true
		case "weekdays":
			out.list = append(out.list, calendar.DayMonday, calendar.DayTuesday,
				calendar.DayWednesday, calendar.DayThursday, calendar.DayFriday)
		case "weekends":
			out.list = append(out.list, calendar.DaySaturday, calendar.DaySunday)
		case "sunday":
			out.list = append(out.list, calendar.DaySunday)
		case "monday":
			out.list = append(out.list, calendar.DayMonday)
		case "tuesday":
			out.list = append(out.list, calendar.DayTuesday)
		case "wednesday":
			out.list = append(out.list, calendar.DayWednesday)
		case "thursday":
			out.list = append(out.list, calendar.DayThursday)
		case "friday":
			out.list = append(out.list, calendar.DayFriday)
		case "saturday":
			out.list = append(out.list, calendar.DaySaturday)
		case "holiday", "holidays":
			out.list = append(out.list, calendar.DayHoliday)
		case "summerdesignday":
			out.list = append(out.list, calendar.DaySummerDesign)
		case "winterdesignday":
			out.list = append(out.list, calendar.DayWinterDesign)
		case "customday1":
			out.list = append(out.list, calendar.DayCustom1)
		case "customday2":
			out.list = append(out.list, calendar.DayCustom2)
		default:
			return out, &forFieldError{token: token}
		}
	}
	if len(out.list) == 0 && !out.allOther {
		return out, &forFieldError{token: field}
	}
	return out, nil
}

type forFieldError struct{ token string }

func (e *forFieldError) Error() string {
	return fmt.Sprintf("unrecognized day type %q", e.token)
}
