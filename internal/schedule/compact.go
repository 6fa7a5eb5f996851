package schedule

import (
	"fmt"
	"strconv"
	"strings"

	"buildsim/internal/calendar"
	"buildsim/internal/input"
)

const classScheduleCompact = "Schedule:Compact"

// compactGroup is one "Through:" block: a date boundary plus the day rules
// collected under it.
type compactGroup struct {
	endDay int
	rules  []compactRule
}

// compactRule is one "For:" block inside a Through group.
type compactRule struct {
	days  forDayTypes
	mode  InterpolationMode
	pairs []intervalPair
}

// compileCompactSchedules processes the Schedule:Compact DSL: repeated
// Through/For/Until triples. Through ranges must tile the year in order;
// day types never matched by any For default to 0.0 with a warning.
func (c *Compiler) compileCompactSchedules(deck *input.Deck) {
	for _, obj := range deck.ObjectsOf(classScheduleCompact) {
		groups, ok := c.parseCompact(obj)
		if !ok {
			continue
		}
		year := YearSchedule{
			Name:       obj.Name,
			TypeLimits: c.resolveTypeLimits(classScheduleCompact, obj.Name, obj.AlphaAt(0)),
		}

		lastEnd := 0
		valid := true
		for gi, group := range groups {
			if group.endDay <= lastEnd {
				c.diags.Severef(classScheduleCompact, obj.Name, "Through date %d overlaps an earlier range", group.endDay)
				valid = false
				break
			}
			weekID := c.buildCompactWeek(obj.Name, gi, year.TypeLimits, group)
			if weekID == 0 {
				valid = false
				break
			}
			for d := lastEnd + 1; d <= group.endDay; d++ {
				year.Weeks[d] = weekID
			}
			lastEnd = group.endDay
		}
		if !valid {
			continue
		}
		c.finishYearCoverage(classScheduleCompact, &year)
		c.addYearSchedule(classScheduleCompact, year)
	}
}

// parseCompact tokenizes the DSL fields into Through groups.
func (c *Compiler) parseCompact(obj input.Object) ([]compactGroup, bool) {
	var groups []compactGroup
	var rule *compactRule
	pendingUntil := -1

	closeRule := func() bool {
		if rule == nil {
			return true
		}
		if pendingUntil >= 0 {
			c.diags.Severef(classScheduleCompact, obj.Name, "Until %s has no value", formatMinute(pendingUntil))
			return false
		}
		if len(groups) == 0 {
			c.diags.Severef(classScheduleCompact, obj.Name, "For block before any Through block")
			return false
		}
		groups[len(groups)-1].rules = append(groups[len(groups)-1].rules, *rule)
		rule = nil
		return true
	}

	for i := 1; i < len(obj.Alpha); i++ {
		field := obj.AlphaAt(i)
		lower := strings.ToLower(field)
		switch {
		case strings.HasPrefix(lower, "through"):
			if !closeRule() {
				return nil, false
			}
			endDay, err := parseThroughDate(field)
			if err != nil {
				c.diags.Severef(classScheduleCompact, obj.Name, "%v", err)
				return nil, false
			}
			groups = append(groups, compactGroup{endDay: endDay})
		case strings.HasPrefix(lower, "for"):
			if !closeRule() {
				return nil, false
			}
			days, err := parseForDayTypes(field)
			if err != nil {
				c.diags.Severef(classScheduleCompact, obj.Name, "%v", err)
				return nil, false
			}
			rule = &compactRule{days: days}
		case strings.HasPrefix(lower, "interpolate"):
			if rule == nil {
				c.diags.Severef(classScheduleCompact, obj.Name, "Interpolate outside a For block")
				return nil, false
			}
			value := strings.TrimSpace(strings.TrimPrefix(field[len("interpolate"):], ":"))
			mode, ok := interpolationFromString(value)
			if !ok {
				c.diags.Warnf(classScheduleCompact, obj.Name, "unrecognized interpolation %q, assuming No", value)
			}
			rule.mode = mode
		case strings.HasPrefix(lower, "until"):
			if rule == nil {
				c.diags.Severef(classScheduleCompact, obj.Name, "Until outside a For block")
				return nil, false
			}
			if pendingUntil >= 0 {
				c.diags.Severef(classScheduleCompact, obj.Name, "Until %s has no value", formatMinute(pendingUntil))
				return nil, false
			}
			// Allow "Until: 8:00,0.5" in one field.
			body := strings.TrimSpace(strings.TrimPrefix(field[len("until"):], ":"))
			if comma := strings.Index(body, ","); comma >= 0 {
				until, err := parseHHMM(body[:comma])
				if err != nil {
					c.diags.Severef(classScheduleCompact, obj.Name, "%v", err)
					return nil, false
				}
				value, err := strconv.ParseFloat(strings.TrimSpace(body[comma+1:]), 64)
				if err != nil {
					c.diags.Severef(classScheduleCompact, obj.Name, "malformed value %q", body[comma+1:])
					return nil, false
				}
				rule.pairs = append(rule.pairs, intervalPair{until: until, value: value})
				continue
			}
			until, err := parseHHMM(body)
			if err != nil {
				c.diags.Severef(classScheduleCompact, obj.Name, "%v", err)
				return nil, false
			}
			pendingUntil = until
		default:
			if pendingUntil < 0 || rule == nil {
				c.diags.Severef(classScheduleCompact, obj.Name, "unexpected field %q", field)
				return nil, false
			}
			value, err := strconv.ParseFloat(field, 64)
			if err != nil {
				c.diags.Severef(classScheduleCompact, obj.Name, "malformed value %q", field)
				return nil, false
			}
			rule.pairs = append(rule.pairs, intervalPair{until: pendingUntil, value: value})
			pendingUntil = -1
		}
	}
	if !closeRule() {
		return nil, false
	}
	if len(groups) == 0 {
		c.diags.Severef(classScheduleCompact, obj.Name, "no Through blocks found")
		return nil, false
	}
	return groups, true
}

// buildCompactWeek compiles one Through group into a week schedule, filling
// skipped day types with an all-zero day and a warning.
func (c *Compiler) buildCompactWeek(name string, groupIndex, limitsID int, group compactGroup) int {
	week := WeekSchedule{Name: fmt.Sprintf("%s Week %d", name, groupIndex+1), Used: true}
	for ri, rule := range group.rules {
		minutes, err := c.buildIntervalMinutes(classScheduleCompact, name, rule.pairs, rule.mode)
		if err != nil {
			return 0
		}
		day := DaySchedule{
			Name:          fmt.Sprintf("%s Week %d Day %d", name, groupIndex+1, ri+1),
			TypeLimits:    limitsID,
			Interpolation: rule.mode,
			Values:        c.redistribute(minutes, rule.mode),
			Used:          true,
		}
		dayID := c.addDaySchedule(classScheduleCompact, day)
		if dayID == 0 {
			return 0
		}
		if rule.days.allOther {
			for dt := calendar.DaySunday; dt <= calendar.DayCustom2; dt++ {
				if week.Days[dt] == 0 {
					week.Days[dt] = dayID
				}
			}
			continue
		}
		for _, dt := range rule.days.list {
			if week.Days[dt] != 0 {
				c.diags.Severef(classScheduleCompact, name, "day type %s assigned twice in Through group %d", dt, groupIndex+1)
				return 0
			}
			week.Days[dt] = dayID
		}
	}

	var missing []string
	for dt := calendar.DaySunday; dt <= calendar.DayCustom2; dt++ {
		if week.Days[dt] == 0 {
			missing = append(missing, dt.String())
		}
	}
	if len(missing) > 0 {
		c.diags.Warnf(classScheduleCompact, name, "day types %s not covered, defaulting to 0.0", strings.Join(missing, ","))
		zeroDay := DaySchedule{
			Name:   fmt.Sprintf("%s Week %d Default", name, groupIndex+1),
			Values: c.newDayValues(),
			Used:   true,
		}
		zeroID := c.addDaySchedule(classScheduleCompact, zeroDay)
		if zeroID == 0 {
			return 0
		}
		for dt := calendar.DaySunday; dt <= calendar.DayCustom2; dt++ {
			if week.Days[dt] == 0 {
				week.Days[dt] = zeroID
			}
		}
	}
	return c.addWeekSchedule(classScheduleCompact, week)
}

// parseThroughDate extracts the ordinal end day from a "Through: M/D" token.
func parseThroughDate(field string) (int, error) {
	text := strings.TrimSpace(field)
	if idx := strings.Index(strings.ToLower(text), "through"); idx == 0 {
		text = strings.TrimSpace(strings.TrimPrefix(text[len("through"):], ":"))
	}
	parts := strings.SplitN(text, "/", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("malformed Through date %q, expected M/D", field)
	}
	month, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, fmt.Errorf("malformed month in %q", field)
	}
	day, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, fmt.Errorf("malformed day in %q", field)
	}
	return calendar.OrdinalDay(month, day)
}
