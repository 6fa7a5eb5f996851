package schedule

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"buildsim/internal/calendar"
	"buildsim/internal/input"
)

// writeHourlyFile writes an 8760-row single-column file where every row of
// day d (0-based) holds the value d.
func writeHourlyFile(t *testing.T, mutate func(rows []string)) string {
	t.Helper()
	rows := make([]string, hoursStandardYear)
	for i := range rows {
		rows[i] = strconv.Itoa(i / 24)
	}
	if mutate != nil {
		mutate(rows)
	}
	path := filepath.Join(t.TempDir(), "profile.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(rows, "\n")+"\n"), 0o644))
	return path
}

func fileObject(name, path string, hours int) input.Object {
	return input.Object{
		Class:  classScheduleFile,
		Name:   name,
		Alpha:  []string{"", path, "Comma", "No"},
		Number: []float64{1, 0, float64(hours), 60},
	}
}

func TestFileScheduleMapsRowsToCalendarDays(t *testing.T) {
	path := writeHourlyFile(t, nil)
	compiler, err := compileDeck(t, 1, fileObject("Plant Profile", path, hoursStandardYear))
	require.NoError(t, err)

	id, ok := compiler.IndexOf("Plant Profile")
	require.True(t, ok)

	value, err := compiler.Value(id, 1, calendar.DaySunday, 1, 1)
	require.NoError(t, err)
	require.Equal(t, 0.0, value)

	feb28, _ := calendar.OrdinalDay(2, 28)
	value, err = compiler.Value(id, feb28, calendar.DayMonday, 12, 1)
	require.NoError(t, err)
	require.Equal(t, 58.0, value)

	// In a 8760-hour file there is no Feb 29 row; the day inherits Feb 28.
	feb29, _ := calendar.OrdinalDay(2, 29)
	value, err = compiler.Value(id, feb29, calendar.DayMonday, 12, 1)
	require.NoError(t, err)
	require.Equal(t, 58.0, value)

	// Mar 1 takes the next data day, not a shifted copy.
	mar1, _ := calendar.OrdinalDay(3, 1)
	value, err = compiler.Value(id, mar1, calendar.DayTuesday, 12, 1)
	require.NoError(t, err)
	require.Equal(t, 59.0, value)

	dec31, _ := calendar.OrdinalDay(12, 31)
	value, err = compiler.Value(id, dec31, calendar.DayFriday, 24, 1)
	require.NoError(t, err)
	require.Equal(t, 364.0, value)
}

func TestFileScheduleBadCellsBecomeZero(t *testing.T) {
	path := writeHourlyFile(t, func(rows []string) {
		rows[5] = "not-a-number"
		rows[6] = ""
	})
	compiler, err := compileDeck(t, 1, fileObject("Patchy", path, hoursStandardYear))
	require.NoError(t, err)

	warned := false
	for _, msg := range compiler.Diagnostics().Warnings() {
		if strings.Contains(msg, "2 unparsable numeric cell(s)") {
			warned = true
		}
	}
	require.True(t, warned)

	id, _ := compiler.IndexOf("Patchy")
	value, err := compiler.Value(id, 1, calendar.DaySunday, 6, 1)
	require.NoError(t, err)
	require.Equal(t, 0.0, value)
}

func TestFileScheduleRowCountMismatchWarns(t *testing.T) {
	rows := make([]string, 100)
	for i := range rows {
		rows[i] = "1.5"
	}
	path := filepath.Join(t.TempDir(), "short.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(rows, "\n")), 0o644))

	compiler, err := compileDeck(t, 1, fileObject("Truncated", path, hoursStandardYear))
	require.NoError(t, err, "short files warn, they do not fail")

	warned := false
	for _, msg := range compiler.Diagnostics().Warnings() {
		if strings.Contains(msg, "100 data rows") {
			warned = true
		}
	}
	require.True(t, warned)
}

func TestFileScheduleRejectsBadHoursOfData(t *testing.T) {
	path := writeHourlyFile(t, nil)
	_, err := compileDeck(t, 1, fileObject("Odd Year", path, 8000))
	require.ErrorIs(t, err, ErrCompileFailed)
}

func TestFileScheduleMissingFileIsSevere(t *testing.T) {
	_, err := compileDeck(t, 1, fileObject("Ghost", filepath.Join(t.TempDir(), "missing.csv"), hoursStandardYear))
	require.ErrorIs(t, err, ErrCompileFailed)
}

func TestFileScheduleSkipRowsAndColumn(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("timestamp,load\n")
	for i := 0; i < hoursStandardYear; i++ {
		sb.WriteString("x," + strconv.Itoa(i/24) + "\n")
	}
	path := filepath.Join(t.TempDir(), "two-col.csv")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))

	compiler, err := compileDeck(t, 1, input.Object{
		Class:  classScheduleFile,
		Name:   "Second Column",
		Alpha:  []string{"", path, "Comma", "No"},
		Number: []float64{2, 1, hoursStandardYear, 60},
	})
	require.NoError(t, err)

	id, _ := compiler.IndexOf("Second Column")
	value, err := compiler.Value(id, 2, calendar.DayMonday, 1, 1)
	require.NoError(t, err)
	require.Equal(t, 1.0, value)
}

func TestFileScheduleQuotedCellsKeepColumnAlignment(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("\"site, zone\",load\n")
	for i := 0; i < hoursStandardYear; i++ {
		sb.WriteString("\"x, y\"," + strconv.Itoa(i/24) + "\n")
	}
	path := filepath.Join(t.TempDir(), "quoted.csv")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))

	compiler, err := compileDeck(t, 1, input.Object{
		Class:  classScheduleFile,
		Name:   "Quoted Labels",
		Alpha:  []string{"", path, "Comma", "No"},
		Number: []float64{2, 1, hoursStandardYear, 60},
	})
	require.NoError(t, err)

	id, _ := compiler.IndexOf("Quoted Labels")
	value, err := compiler.Value(id, 3, calendar.DayTuesday, 1, 1)
	require.NoError(t, err)
	require.Equal(t, 2.0, value)
}

func TestShadingFilePivotsColumnsToSchedules(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("Time,South Wall,Roof\n")
	for i := 0; i < hoursStandardYear; i++ {
		sb.WriteString("t,0.25,1\n")
	}
	path := filepath.Join(t.TempDir(), "shading.csv")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))

	compiler, err := compileDeck(t, 1, input.Object{
		Class: classScheduleFileShading,
		Name:  path,
		Alpha: []string{path},
	})
	require.NoError(t, err)
	require.Equal(t, 2, compiler.NumSchedules())

	south, ok := compiler.IndexOf("South Wall Shading")
	require.True(t, ok)
	roof, ok := compiler.IndexOf("Roof Shading")
	require.True(t, ok)

	value, err := compiler.Value(south, 180, calendar.DayWednesday, 10, 1)
	require.NoError(t, err)
	require.Equal(t, 0.25, value)
	value, err = compiler.Value(roof, 366, calendar.DaySaturday, 24, 1)
	require.NoError(t, err)
	require.Equal(t, 1.0, value)
}

func TestShadingFileSingleObjectOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "none.csv")
	_, err := compileDeck(t, 1,
		input.Object{Class: classScheduleFileShading, Name: path, Alpha: []string{path}},
		input.Object{Class: classScheduleFileShading, Name: path, Alpha: []string{path}},
	)
	require.ErrorIs(t, err, ErrCompileFailed)
}

func TestInferShadingGrid(t *testing.T) {
	h, perItem, ok := inferShadingGrid(hoursStandardYear)
	require.True(t, ok)
	require.Equal(t, hoursStandardYear, h)
	require.Equal(t, 60, perItem)

	h, perItem, ok = inferShadingGrid(hoursLeapYear * 4)
	require.True(t, ok)
	require.Equal(t, hoursLeapYear, h)
	require.Equal(t, 15, perItem)

	_, _, ok = inferShadingGrid(1000)
	require.False(t, ok)
}
