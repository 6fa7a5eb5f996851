package schedule

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"buildsim/internal/calendar"
	"buildsim/internal/input"
)

const (
	classScheduleFile        = "Schedule:File"
	classScheduleFileShading = "Schedule:File:Shading"

	hoursStandardYear = 8760
	hoursLeapYear     = 8784
)

// compileFileSchedules processes Schedule:File: an external delimited file
// with one column of values covering a full year at hour or sub-hour
// granularity. Row-count mismatches warn; unparsable cells become 0.0.
func (c *Compiler) compileFileSchedules(deck *input.Deck) {
	for _, obj := range deck.ObjectsOf(classScheduleFile) {
		limitsID := c.resolveTypeLimits(classScheduleFile, obj.Name, obj.AlphaAt(0))
		fileName := obj.AlphaAt(1)
		column := int(obj.NumberAt(0))
		skipRows := int(obj.NumberAt(1))
		hoursOfData := int(obj.NumberAt(2))
		sep, ok := separatorFromString(obj.AlphaAt(2))
		if !ok {
			c.diags.Warnf(classScheduleFile, obj.Name, "unrecognized column separator %q, assuming Comma", obj.AlphaAt(2))
		}
		mode, ok := interpolationFromString(obj.AlphaAt(3))
		if !ok {
			c.diags.Warnf(classScheduleFile, obj.Name, "unrecognized interpolation %q, assuming No", obj.AlphaAt(3))
		}
		perItem := int(obj.NumberAt(3))
		if perItem <= 0 {
			perItem = 60
		}

		if column < 1 {
			c.diags.Severef(classScheduleFile, obj.Name, "column number %d must be 1 or greater", column)
			continue
		}
		if hoursOfData != hoursStandardYear && hoursOfData != hoursLeapYear {
			c.diags.Severef(classScheduleFile, obj.Name, "number of hours of data %d must be %d or %d", hoursOfData, hoursStandardYear, hoursLeapYear)
			continue
		}
		if 60%perItem != 0 {
			c.diags.Severef(classScheduleFile, obj.Name, "minutes per item %d must evenly divide 60", perItem)
			continue
		}

		rows, err := readDelimitedColumn(fileName, sep, column-1, skipRows)
		if err != nil {
			c.diags.Severef(classScheduleFile, obj.Name, "cannot read %q: %v", fileName, err)
			continue
		}
		wantRows := hoursOfData * (60 / perItem)
		if len(rows) != wantRows {
			c.diags.Warnf(classScheduleFile, obj.Name, "file has %d data rows, expected %d", len(rows), wantRows)
		}

		values, badCells := parseCells(rows)
		if badCells > 0 {
			c.diags.Warnf(classScheduleFile, obj.Name, "%d unparsable numeric cell(s) replaced with 0.0", badCells)
		}

		year := YearSchedule{Name: obj.Name, TypeLimits: limitsID}
		c.buildYearFromSeries(classScheduleFile, obj.Name, &year, values, hoursOfData, perItem, mode)
		c.addYearSchedule(classScheduleFile, year)
	}
}

// compileShadingFileSchedules processes Schedule:File:Shading: a single wide
// CSV pivoted into one synthetic schedule per named column. Only one such
// object may appear.
func (c *Compiler) compileShadingFileSchedules(deck *input.Deck) {
	objects := deck.ObjectsOf(classScheduleFileShading)
	if len(objects) == 0 {
		return
	}
	if len(objects) > 1 {
		c.diags.Severef(classScheduleFileShading, objects[1].Name, "only one Schedule:File:Shading object is allowed")
		return
	}
	obj := objects[0]
	fileName := obj.AlphaAt(0)
	if fileName == "" {
		fileName = obj.Name
	}

	lines, err := readLines(fileName)
	if err != nil {
		c.diags.Severef(classScheduleFileShading, obj.Name, "cannot read %q: %v", fileName, err)
		return
	}
	if len(lines) < 2 {
		c.diags.Severef(classScheduleFileShading, obj.Name, "file %q has no data rows", fileName)
		return
	}
	header := strings.Split(lines[0], ",")
	if len(header) < 2 {
		c.diags.Severef(classScheduleFileShading, obj.Name, "file %q has no surface columns", fileName)
		return
	}
	dataRows := lines[1:]

	hoursOfData, perItem, ok := inferShadingGrid(len(dataRows))
	if !ok {
		c.diags.Severef(classScheduleFileShading, obj.Name, "file %q has %d data rows, not a full-year grid", fileName, len(dataRows))
		return
	}

	for col := 1; col < len(header); col++ {
		surface := strings.TrimSpace(header[col])
		if surface == "" {
			continue
		}
		rows := make([]string, len(dataRows))
		for i, line := range dataRows {
			cells := strings.Split(line, ",")
			if col < len(cells) {
				rows[i] = strings.TrimSpace(cells[col])
			}
		}
		values, badCells := parseCells(rows)
		if badCells > 0 {
			c.diags.Warnf(classScheduleFileShading, surface, "%d unparsable numeric cell(s) replaced with 0.0", badCells)
		}
		year := YearSchedule{Name: surface + " Shading"}
		c.buildYearFromSeries(classScheduleFileShading, surface, &year, values, hoursOfData, perItem, InterpolateNone)
		c.addYearSchedule(classScheduleFileShading, year)
	}
}

// buildYearFromSeries pivots a flat year-long series into per-day schedules,
// one generated day/week pair per calendar day.
func (c *Compiler) buildYearFromSeries(object, owner string, year *YearSchedule, values []float64, hoursOfData, perItem int, mode InterpolationMode) {
	itemsPerDay := 24 * (60 / perItem)
	numDays := hoursOfData / 24
	leap := hoursOfData == hoursLeapYear
	feb29, _ := calendar.OrdinalDay(2, 29)

	for dayIndex := 0; dayIndex < numDays; dayIndex++ {
		ordinal := dayIndex + 1
		if !leap && ordinal >= feb29 {
			ordinal++
		}

		var minutes [minutesPerDay]float64
		for item := 0; item < itemsPerDay; item++ {
			flat := dayIndex*itemsPerDay + item
			value := 0.0
			if flat < len(values) {
				value = values[flat]
			}
			for m := item * perItem; m < (item+1)*perItem; m++ {
				minutes[m] = value
			}
		}

		day := DaySchedule{
			Name:          fmt.Sprintf("%s Day %d", owner, ordinal),
			TypeLimits:    year.TypeLimits,
			Interpolation: mode,
			Values:        c.redistribute(minutes, mode),
			Used:          true,
		}
		dayID := c.addDaySchedule(object, day)
		if dayID == 0 {
			return
		}
		week := WeekSchedule{Name: fmt.Sprintf("%s Week %d", owner, ordinal), Used: true}
		for dt := calendar.DaySunday; dt <= calendar.DayCustom2; dt++ {
			week.Days[dt] = dayID
		}
		weekID := c.addWeekSchedule(object, week)
		if weekID == 0 {
			return
		}
		year.Weeks[ordinal] = weekID
	}
	c.finishYearCoverage(object, year)
}

func readLines(fileName string) ([]string, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return nil, err
	}
	raw := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// readDelimitedColumn extracts one column, skipping header rows. Space
// separation splits on runs of whitespace; other separators split on the
// rune, falling back to encoding/csv when a line carries quoted cells.
// Interior blank rows stay in the output as empty cells so the row count
// and the cell diagnostics see them.
func readDelimitedColumn(fileName string, sep rune, column, skipRows int) ([]string, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if skipRows > len(lines) {
		skipRows = len(lines)
	}
	lines = lines[skipRows:]
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		var cells []string
		switch {
		case sep == ' ':
			cells = strings.Fields(line)
		case strings.ContainsRune(line, '"'):
			reader := csv.NewReader(strings.NewReader(line))
			reader.Comma = sep
			reader.FieldsPerRecord = -1
			reader.TrimLeadingSpace = true
			record, err := reader.Read()
			if err != nil {
				return nil, fmt.Errorf("parsing %s: %w", fileName, err)
			}
			cells = record
		default:
			cells = strings.Split(line, string(sep))
		}
		cell := ""
		if column < len(cells) {
			cell = strings.TrimSpace(cells[column])
		}
		out = append(out, cell)
	}
	return out, nil
}

func parseCells(rows []string) ([]float64, int) {
	values := make([]float64, len(rows))
	bad := 0
	for i, cell := range rows {
		if cell == "" {
			bad++
			continue
		}
		value, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			bad++
			continue
		}
		values[i] = value
	}
	return values, bad
}

func separatorFromString(s string) (rune, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "comma":
		return ',', true
	case "semicolon":
		return ';', true
	case "tab":
		return '\t', true
	case "space", "fixed":
		return ' ', true
	default:
		return ',', false
	}
}

// inferShadingGrid derives (hours of data, minutes per item) from the row
// count of a shading file.
func inferShadingGrid(rows int) (hours, perItem int, ok bool) {
	for _, h := range []int{hoursLeapYear, hoursStandardYear} {
		if rows%h != 0 {
			continue
		}
		itemsPerHour := rows / h
		if itemsPerHour >= 1 && itemsPerHour <= 60 && 60%itemsPerHour == 0 {
			return h, 60 / itemsPerHour, true
		}
	}
	return 0, 0, false
}
