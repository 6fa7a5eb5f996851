package schedule

import (
	"fmt"
	"strconv"
	"strings"

	"buildsim/internal/input"
)

// InterpolationMode controls how interval values are spread onto sub-hour
// reporting steps.
type InterpolationMode int

const (
	InterpolateNone InterpolationMode = iota
	InterpolateAverage
	InterpolateLinear
)

const minutesPerDay = 24 * 60

// DaySchedule is one compiled day: a value per [hour][sub-hour step].
type DaySchedule struct {
	Name          string
	TypeLimits    int
	Interpolation InterpolationMode
	// Values is indexed [hour 0..23][step 0..stepsPerHour-1].
	Values [][]float64
	Used   bool
}

const (
	classDayHourly   = "Schedule:Day:Hourly"
	classDayInterval = "Schedule:Day:Interval"
	classDayList     = "Schedule:Day:List"
)

func (c *Compiler) newDayValues() [][]float64 {
	values := make([][]float64, 24)
	for h := range values {
		values[h] = make([]float64, c.stepsPerHour)
	}
	return values
}

// addDaySchedule registers a compiled day schedule, rejecting duplicates.
func (c *Compiler) addDaySchedule(object string, day DaySchedule) int {
	if _, dup := c.daysByName[keyOf(day.Name)]; dup {
		c.diags.Severef(object, day.Name, "duplicate day schedule name")
		return 0
	}
	c.days = append(c.days, day)
	id := len(c.days)
	c.daysByName[keyOf(day.Name)] = id
	return id
}

// compileHourlyDays processes Schedule:Day:Hourly: one value per clock hour,
// replicated to every sub-hour step. Interpolation is forced off.
func (c *Compiler) compileHourlyDays(deck *input.Deck) {
	for _, obj := range deck.ObjectsOf(classDayHourly) {
		day := DaySchedule{
			Name:          obj.Name,
			TypeLimits:    c.resolveTypeLimits(classDayHourly, obj.Name, obj.AlphaAt(0)),
			Interpolation: InterpolateNone,
			Values:        c.newDayValues(),
		}
		if len(obj.Number) < 24 {
			c.diags.Severef(classDayHourly, obj.Name, "expected 24 hourly values, found %d", len(obj.Number))
			continue
		}
		for h := 0; h < 24; h++ {
			value := obj.NumberAt(h)
			c.checkValueAgainstLimits(classDayHourly, obj.Name, day.TypeLimits, value)
			for s := 0; s < c.stepsPerHour; s++ {
				day.Values[h][s] = value
			}
		}
		c.addDaySchedule(classDayHourly, day)
	}
}

// compileIntervalDays processes Schedule:Day:Interval: ordered
// "Until: HH:MM, value" pairs covering the whole day.
func (c *Compiler) compileIntervalDays(deck *input.Deck) {
	for _, obj := range deck.ObjectsOf(classDayInterval) {
		mode, ok := interpolationFromString(obj.AlphaAt(1))
		if !ok {
			c.diags.Warnf(classDayInterval, obj.Name, "unrecognized interpolation %q, assuming No", obj.AlphaAt(1))
		}
		day := DaySchedule{
			Name:          obj.Name,
			TypeLimits:    c.resolveTypeLimits(classDayInterval, obj.Name, obj.AlphaAt(0)),
			Interpolation: mode,
		}

		var pairs []intervalPair
		abort := false
		for i := 2; i < len(obj.Alpha); i++ {
			until, err := parseUntil(obj.AlphaAt(i))
			if err != nil {
				c.diags.Severef(classDayInterval, obj.Name, "field %d: %v", i+1, err)
				abort = true
				break
			}
			pairs = append(pairs, intervalPair{until: until, value: obj.NumberAt(i - 2)})
		}
		if abort {
			continue
		}
		minutes, err := c.buildIntervalMinutes(classDayInterval, obj.Name, pairs, mode)
		if err != nil {
			continue
		}
		day.Values = c.redistribute(minutes, mode)
		for h := 0; h < 24; h++ {
			for s := 0; s < c.stepsPerHour; s++ {
				c.checkValueAgainstLimits(classDayInterval, obj.Name, day.TypeLimits, day.Values[h][s])
			}
		}
		c.addDaySchedule(classDayInterval, day)
	}
}

// compileListDays processes Schedule:Day:List: a fixed minutes-per-item grid
// covering all 1440 minutes with an exact item count.
func (c *Compiler) compileListDays(deck *input.Deck) {
	for _, obj := range deck.ObjectsOf(classDayList) {
		mode, ok := interpolationFromString(obj.AlphaAt(1))
		if !ok {
			c.diags.Warnf(classDayList, obj.Name, "unrecognized interpolation %q, assuming No", obj.AlphaAt(1))
		}
		day := DaySchedule{
			Name:          obj.Name,
			TypeLimits:    c.resolveTypeLimits(classDayList, obj.Name, obj.AlphaAt(0)),
			Interpolation: mode,
		}

		perItem := int(obj.NumberAt(0))
		if perItem <= 0 {
			perItem = 60
		}
		if 60%perItem != 0 {
			c.diags.Severef(classDayList, obj.Name, "minutes per item %d must evenly divide 60", perItem)
			continue
		}
		wantItems := minutesPerDay / perItem
		items := obj.Number[1:]
		if len(items) != wantItems {
			c.diags.Severef(classDayList, obj.Name, "expected %d values for %d minutes per item, found %d", wantItems, perItem, len(items))
			continue
		}

		var minutes [minutesPerDay]float64
		for i, value := range items {
			for m := i * perItem; m < (i+1)*perItem; m++ {
				minutes[m] = value
			}
		}
		day.Values = c.redistribute(minutes, mode)
		c.addDaySchedule(classDayList, day)
	}
}

type intervalPair struct {
	until int // minute of day, 1..1440
	value float64
}

// buildIntervalMinutes fills a minute-resolution day from until/value pairs.
// Coverage must tile 00:00..24:00 with no gaps or overlaps; violations are
// severe. Linear interpolation ramps from the previous interval's value to
// the current one across the interval's minutes.
func (c *Compiler) buildIntervalMinutes(object, owner string, pairs []intervalPair, mode InterpolationMode) ([minutesPerDay]float64, error) {
	var minutes [minutesPerDay]float64
	if len(pairs) == 0 {
		c.diags.Severef(object, owner, "no Until intervals given")
		return minutes, ErrCompileFailed
	}

	minutesPerStep := 60 / c.stepsPerHour
	prevEnd := 0
	prevValue := pairs[0].value
	for _, pair := range pairs {
		if pair.until <= prevEnd {
			c.diags.Severef(object, owner, "Until %s overlaps earlier interval", formatMinute(pair.until))
			return minutes, ErrCompileFailed
		}
		if pair.until > minutesPerDay {
			c.diags.Severef(object, owner, "Until %s is past 24:00", formatMinute(pair.until))
			return minutes, ErrCompileFailed
		}
		if pair.until%minutesPerStep != 0 {
			if mode == InterpolateNone {
				c.diags.Severef(object, owner, "Until %s is not on a timestep boundary", formatMinute(pair.until))
				return minutes, ErrCompileFailed
			}
			c.diags.Warnf(object, owner, "Until %s is off the timestep grid, values resampled", formatMinute(pair.until))
		}

		span := pair.until - prevEnd
		for m := prevEnd; m < pair.until; m++ {
			if mode == InterpolateLinear {
				frac := float64(m-prevEnd+1) / float64(span)
				minutes[m] = prevValue + (pair.value-prevValue)*frac
			} else {
				minutes[m] = pair.value
			}
		}
		prevEnd = pair.until
		prevValue = pair.value
	}
	if prevEnd != minutesPerDay {
		c.diags.Severef(object, owner, "intervals end at %s, day not fully covered", formatMinute(prevEnd))
		return minutes, ErrCompileFailed
	}
	return minutes, nil
}

// redistribute maps minute-resolution values onto the output timestep grid.
// This is the single interpolation point shared by every schedule source:
// Average takes the arithmetic mean of the minutes in a step, everything
// else snaps to the value at the end-of-step minute.
func (c *Compiler) redistribute(minutes [minutesPerDay]float64, mode InterpolationMode) [][]float64 {
	values := c.newDayValues()
	minutesPerStep := 60 / c.stepsPerHour
	for h := 0; h < 24; h++ {
		for s := 0; s < c.stepsPerHour; s++ {
			start := h*60 + s*minutesPerStep
			end := start + minutesPerStep
			if mode == InterpolateAverage {
				sum := 0.0
				for m := start; m < end; m++ {
					sum += minutes[m]
				}
				values[h][s] = sum / float64(minutesPerStep)
			} else {
				values[h][s] = minutes[end-1]
			}
		}
	}
	return values
}

// parseUntil extracts the minute of day from an "Until: HH:MM" token.
func parseUntil(field string) (int, error) {
	text := strings.TrimSpace(field)
	if idx := strings.Index(strings.ToLower(text), "until"); idx >= 0 {
		text = text[idx+len("until"):]
		text = strings.TrimSpace(strings.TrimPrefix(text, ":"))
	}
	return parseHHMM(text)
}

func parseHHMM(text string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(text), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("malformed time %q, expected HH:MM", text)
	}
	hh, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, fmt.Errorf("malformed hour in %q", text)
	}
	mm, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, fmt.Errorf("malformed minute in %q", text)
	}
	if hh < 0 || hh > 24 || mm < 0 || mm > 59 || (hh == 24 && mm != 0) {
		return 0, fmt.Errorf("time %q out of range", text)
	}
	return hh*60 + mm, nil
}

func formatMinute(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

func interpolationFromString(s string) (InterpolationMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "no":
		return InterpolateNone, true
	case "average", "yes":
		return InterpolateAverage, true
	case "linear":
		return InterpolateLinear, true
	default:
		return InterpolateNone, false
	}
}
