package schedule

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"buildsim/internal/calendar"
	"buildsim/internal/input"
)

func TestNewCompilerRejectsBadTimestep(t *testing.T) {
	for _, steps := range []int{0, 7, 61} {
		_, err := NewCompiler(steps, nil)
		require.Errorf(t, err, "steps=%d", steps)
	}
	for _, steps := range []int{1, 2, 4, 6, 60} {
		_, err := NewCompiler(steps, nil)
		require.NoErrorf(t, err, "steps=%d", steps)
	}
}

func TestSentinelSchedulesResolveWithoutTables(t *testing.T) {
	compiler, err := compileDeck(t, 4)
	require.NoError(t, err)

	value, err := compiler.Value(AlwaysOn, 200, calendar.DayFriday, 13, 2)
	require.NoError(t, err)
	require.Equal(t, 1.0, value)
	value, err = compiler.Value(AlwaysOff, 200, calendar.DayFriday, 13, 2)
	require.NoError(t, err)
	require.Equal(t, 0.0, value)

	value, err = compiler.CurrentValue(AlwaysOn)
	require.NoError(t, err)
	require.Equal(t, 1.0, value)
}

func TestValueRangeChecks(t *testing.T) {
	compiler, err := compileDeck(t, 4, input.Object{
		Class:  "Schedule:Constant",
		Name:   "Unity",
		Alpha:  []string{""},
		Number: []float64{1.0},
	})
	require.NoError(t, err)

	id, ok := compiler.IndexOf("Unity")
	require.True(t, ok)

	_, err = compiler.Value(id+1, 1, calendar.DaySunday, 1, 1)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = compiler.Value(id, 0, calendar.DaySunday, 1, 1)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = compiler.Value(id, 367, calendar.DaySunday, 1, 1)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = compiler.Value(id, 1, calendar.DayType(13), 1, 1)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = compiler.Value(id, 1, calendar.DaySunday, 25, 1)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = compiler.Value(id, 1, calendar.DaySunday, 1, 5)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestConstantScheduleCoversWholeYear(t *testing.T) {
	compiler, err := compileDeck(t, 2, input.Object{
		Class:  "Schedule:Constant",
		Name:   "Setpoint",
		Alpha:  []string{""},
		Number: []float64{21.5},
	})
	require.NoError(t, err)

	id, ok := compiler.IndexOf("setpoint")
	require.True(t, ok, "lookups are case-insensitive")
	for _, day := range []int{1, 60, 182, 366} {
		for dt := calendar.DaySunday; dt <= calendar.DayCustom2; dt++ {
			value, err := compiler.Value(id, day, dt, 24, 2)
			require.NoError(t, err)
			require.Equal(t, 21.5, value)
		}
	}
}

func TestDuplicateScheduleNameIsFatal(t *testing.T) {
	_, err := compileDeck(t, 1,
		input.Object{Class: "Schedule:Constant", Name: "Twice", Alpha: []string{""}, Number: []float64{1}},
		input.Object{Class: "Schedule:Constant", Name: "TWICE", Alpha: []string{""}, Number: []float64{2}},
	)
	require.ErrorIs(t, err, ErrCompileFailed)
}

func TestTypeLimitsRangeWarning(t *testing.T) {
	compiler, err := compileDeck(t, 1,
		input.Object{
			Class:  "ScheduleTypeLimits",
			Name:   "Fraction",
			Alpha:  []string{"Continuous", "Dimensionless"},
			Number: []float64{0.0, 1.0},
		},
		input.Object{
			Class:  "Schedule:Constant",
			Name:   "Overdriven",
			Alpha:  []string{"Fraction"},
			Number: []float64{1.5},
		},
	)
	require.NoError(t, err, "out-of-range values warn, they do not fail")

	warned := false
	for _, msg := range compiler.Diagnostics().Warnings() {
		if strings.Contains(msg, "Overdriven") {
			warned = true
		}
	}
	require.True(t, warned)
}

func TestTypeLimitsMinAboveMaxIsFatal(t *testing.T) {
	_, err := compileDeck(t, 1, input.Object{
		Class:  "ScheduleTypeLimits",
		Name:   "Inverted",
		Alpha:  []string{"Continuous", "Dimensionless"},
		Number: []float64{5.0, 1.0},
	})
	require.ErrorIs(t, err, ErrCompileFailed)
}

func TestExternalScheduleLiveOverride(t *testing.T) {
	compiler, err := compileDeck(t, 1,
		input.Object{
			Class:  "ExternalInterface:Schedule",
			Name:   "Grid Signal",
			Alpha:  []string{""},
			Number: []float64{0.5},
		},
		input.Object{
			Class:  "Schedule:Constant",
			Name:   "Fixed",
			Alpha:  []string{""},
			Number: []float64{2.0},
		},
	)
	require.NoError(t, err)

	clock, err := calendar.NewClock(2026, 1, calendar.DayThursday, false)
	require.NoError(t, err)
	require.NoError(t, compiler.UpdateAll(clock))

	gridID, _ := compiler.IndexOf("Grid Signal")
	fixedID, _ := compiler.IndexOf("Fixed")

	value, err := compiler.CurrentValue(gridID)
	require.NoError(t, err)
	require.Equal(t, 0.5, value, "initial value comes from the compiled table")

	require.NoError(t, compiler.SetExternalValue("Grid Signal", 0.9))
	value, err = compiler.CurrentValue(gridID)
	require.NoError(t, err)
	require.Equal(t, 0.5, value, "override waits for the next UpdateAll")

	require.NoError(t, compiler.UpdateAll(clock))
	value, err = compiler.CurrentValue(gridID)
	require.NoError(t, err)
	require.Equal(t, 0.9, value)

	value, err = compiler.CurrentValue(fixedID)
	require.NoError(t, err)
	require.Equal(t, 2.0, value)

	require.ErrorIs(t, compiler.SetExternalValue("Fixed", 1.0), ErrNotExternal)
	require.ErrorIs(t, compiler.SetExternalValue("Nobody", 1.0), ErrUnknownSchedule)
}

// Overrides arrive from the HTTP handler goroutine while the run loop
// refreshes the cache, so the race detector must stay quiet here.
func TestExternalOverrideConcurrentWithUpdateAll(t *testing.T) {
	compiler, err := compileDeck(t, 1,
		input.Object{
			Class:  "ExternalInterface:Schedule",
			Name:   "Grid Signal",
			Alpha:  []string{""},
			Number: []float64{0.5},
		},
	)
	require.NoError(t, err)

	clock, err := calendar.NewClock(2026, 1, calendar.DayThursday, false)
	require.NoError(t, err)
	gridID, ok := compiler.IndexOf("Grid Signal")
	require.True(t, ok)

	const rounds = 500
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			require.NoError(t, compiler.SetExternalValue("Grid Signal", float64(i)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			require.NoError(t, compiler.UpdateAll(clock))
			_, err := compiler.CurrentValue(gridID)
			require.NoError(t, err)
		}
	}()
	wg.Wait()

	require.NoError(t, compiler.UpdateAll(clock))
	value, err := compiler.CurrentValue(gridID)
	require.NoError(t, err)
	require.Equal(t, float64(rounds-1), value)
}

func TestUnusedScheduleReporting(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	compiler, err := NewCompiler(1, zap.New(core))
	require.NoError(t, err)
	require.NoError(t, compiler.Compile(input.NewDeck([]input.Object{
		{Class: "Schedule:Constant", Name: "Used", Alpha: []string{""}, Number: []float64{1}},
		{Class: "Schedule:Constant", Name: "Idle", Alpha: []string{""}, Number: []float64{1}},
	})))

	id, _ := compiler.IndexOf("Used")
	compiler.MarkUsed(id)
	compiler.ReportUnused()

	entries := logs.FilterMessage("schedule never referenced").All()
	require.Len(t, entries, 1)
	require.Equal(t, "Idle", entries[0].ContextMap()["schedule"])
}

func TestWriteDetailsEmitsEverySchedule(t *testing.T) {
	compiler, err := compileDeck(t, 1, input.Object{
		Class:  "Schedule:Constant",
		Name:   "Detail Me",
		Alpha:  []string{""},
		Number: []float64{3.25},
	})
	require.NoError(t, err)

	var sb strings.Builder
	require.NoError(t, compiler.WriteDetails(&sb))
	out := sb.String()
	require.Contains(t, out, "Detail Me")
	require.Contains(t, out, "3.25")
}

func TestFormatValue(t *testing.T) {
	require.Equal(t, "0.0", FormatValue(0))
	require.Equal(t, "1", FormatValue(1))
	require.Equal(t, "0.5", FormatValue(0.5))
	require.Equal(t, "-3.25", FormatValue(-3.25))
}
