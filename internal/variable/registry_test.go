package variable

import (
	"testing"

	"buildsim/internal/calendar"
	"buildsim/internal/emit"
	"buildsim/internal/input"
	"buildsim/internal/units"
)

type stubGate struct {
	ids    map[string]int
	values map[int]float64
	marked []int
}

func (g *stubGate) IndexOf(name string) (int, bool) {
	id, ok := g.ids[name]
	return id, ok
}

func (g *stubGate) CurrentValue(id int) (float64, error) {
	return g.values[id], nil
}

func (g *stubGate) MarkUsed(id int) { g.marked = append(g.marked, id) }

func newTestRegistry(t *testing.T, gate ScheduleGate) *Registry {
	t.Helper()
	reg, err := NewRegistry(emit.NewIDAllocator(), gate, nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

func newTestClock(t *testing.T, stepsPerHour int) *calendar.Clock {
	t.Helper()
	clock, err := calendar.NewClock(2026, stepsPerHour, calendar.DayThursday, false)
	if err != nil {
		t.Fatalf("NewClock: %v", err)
	}
	return clock
}

func TestSetupMatchesRequestsByKeyAndName(t *testing.T) {
	reg := newTestRegistry(t, nil)
	reg.AddRequests(input.NewDeck([]input.Object{
		{Class: "Output:Variable", Alpha: []string{"*", "Zone Air Temperature", "Hourly"}},
		{Class: "Output:Variable", Alpha: []string{"NORTH ZONE", "Zone Air Temperature", "Daily"}},
		{Class: "Output:Variable", Alpha: []string{"*", "Fan Electricity Energy", "Monthly"}},
	}))

	handle, err := reg.Setup("North Zone", "Zone Air Temperature", units.UnitCelsius, StoreAveraged)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if handle == 0 {
		t.Fatal("expected a handle, got 0")
	}
	if got := len(reg.GroupRecords(handle)); got != 2 {
		t.Fatalf("expected 2 records (hourly + daily), got %d", got)
	}

	// A key the daily request does not name only matches the wildcard.
	other, err := reg.Setup("South Zone", "Zone Air Temperature", units.UnitCelsius, StoreAveraged)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if got := len(reg.GroupRecords(other)); got != 1 {
		t.Fatalf("expected 1 record for the wildcard request, got %d", got)
	}

	// No request names this variable at all.
	none, err := reg.Setup("North Zone", "Zone Mean Radiant Temperature", units.UnitCelsius, StoreAveraged)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if none != 0 {
		t.Fatalf("expected handle 0 for unrequested variable, got %d", none)
	}
}

func TestSetupIsIdempotentPerTriple(t *testing.T) {
	reg := newTestRegistry(t, nil)
	reg.AddRequest(Request{Key: "*", Name: "Boiler Heating Energy", Frequency: units.FreqHourly})

	first, err := reg.Setup("Boiler 1", "Boiler Heating Energy", units.UnitJoule, StoreSummed)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	second, err := reg.Setup("Boiler 1", "Boiler Heating Energy", units.UnitJoule, StoreSummed)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if reg.NumRecords() != 1 {
		t.Fatalf("expected a single record, got %d", reg.NumRecords())
	}
	if reg.GroupRecords(first)[0] != reg.GroupRecords(second)[0] {
		t.Fatal("repeated Setup must reuse the existing record")
	}
}

func TestAveragedUpdateIsTimeWeighted(t *testing.T) {
	reg := newTestRegistry(t, nil)
	reg.AddRequest(Request{Key: "*", Name: "Zone Air Temperature", Frequency: units.FreqHourly})
	handle, err := reg.Setup("Zone", "Zone Air Temperature", units.UnitCelsius, StoreAveraged)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	clock := newTestClock(t, 4)
	for _, v := range []float64{20, 22, 22, 24} {
		if err := reg.Update(handle, v, clock); err != nil {
			t.Fatalf("Update: %v", err)
		}
		clock.Advance()
	}

	flushed := reg.FlushAndReset(units.FreqHourly)
	if len(flushed) != 1 {
		t.Fatalf("expected 1 flushed record, got %d", len(flushed))
	}
	if flushed[0].Value != 22 {
		t.Fatalf("expected mean 22, got %v", flushed[0].Value)
	}
	if flushed[0].HasExtremes {
		t.Fatal("hourly records must not carry extremes")
	}
}

func TestSummedUpdateAccumulates(t *testing.T) {
	reg := newTestRegistry(t, nil)
	reg.AddRequest(Request{Key: "*", Name: "Fan Electricity Energy", Frequency: units.FreqDaily})
	handle, err := reg.Setup("Fan", "Fan Electricity Energy", units.UnitJoule, StoreSummed)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	clock := newTestClock(t, 1)
	for _, v := range []float64{100, 250, 50} {
		if err := reg.Update(handle, v, clock); err != nil {
			t.Fatalf("Update: %v", err)
		}
		clock.Advance()
	}

	flushed := reg.FlushAndReset(units.FreqDaily)
	if len(flushed) != 1 || flushed[0].Value != 400 {
		t.Fatalf("expected sum 400, got %+v", flushed)
	}
	if !flushed[0].HasExtremes {
		t.Fatal("daily records must carry extremes")
	}
}

func TestMinMaxDatesTrackFirstExtreme(t *testing.T) {
	reg := newTestRegistry(t, nil)
	reg.AddRequest(Request{Key: "*", Name: "Zone Air Temperature", Frequency: units.FreqDaily})
	handle, err := reg.Setup("Zone", "Zone Air Temperature", units.UnitCelsius, StoreAveraged)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	clock := newTestClock(t, 1)
	var stamps []int
	// 18 at hour 1, 25 at hour 2, 25 again at hour 3, 12 at hour 4,
	// 12 again at hour 5. Extremes: max 25 first seen hour 2, min 12
	// first seen hour 4.
	for _, v := range []float64{18, 25, 25, 12, 12} {
		stamps = append(stamps, clock.TimeStamp())
		if err := reg.Update(handle, v, clock); err != nil {
			t.Fatalf("Update: %v", err)
		}
		clock.Advance()
	}

	rec, err := reg.RecordAt(1)
	if err != nil {
		t.Fatalf("RecordAt: %v", err)
	}
	if rec.Max != 25 || rec.MaxDate != stamps[1] {
		t.Fatalf("max = %v at %d, want 25 at %d", rec.Max, rec.MaxDate, stamps[1])
	}
	if rec.Min != 12 || rec.MinDate != stamps[3] {
		t.Fatalf("min = %v at %d, want 12 at %d", rec.Min, rec.MinDate, stamps[3])
	}

	flushed := reg.FlushAndReset(units.FreqDaily)
	if flushed[0].Min != 12 || flushed[0].Max != 25 {
		t.Fatalf("flushed extremes wrong: %+v", flushed[0])
	}

	// Flush resets the extreme state to its sentinels.
	rec, _ = reg.RecordAt(1)
	if rec.Min != initialMin || rec.Max != initialMax || rec.Stored {
		t.Fatalf("record not reset: %+v", rec)
	}
}

func TestScheduleGatingSkipsAccumulation(t *testing.T) {
	gate := &stubGate{
		ids:    map[string]int{"Reporting Window": 7},
		values: map[int]float64{7: 0},
	}
	reg := newTestRegistry(t, gate)
	reg.AddRequest(Request{
		Key:       "*",
		Name:      "Chiller Electricity Rate",
		Frequency: units.FreqHourly,
		Schedule:  "Reporting Window",
	})
	handle, err := reg.Setup("Chiller", "Chiller Electricity Rate", units.UnitWatt, StoreAveraged)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if len(gate.marked) != 1 || gate.marked[0] != 7 {
		t.Fatalf("gating schedule not marked used: %v", gate.marked)
	}

	clock := newTestClock(t, 1)
	if err := reg.Update(handle, 500, clock); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if flushed := reg.FlushAndReset(units.FreqHourly); flushed != nil {
		t.Fatalf("gated-off variable must not store, got %+v", flushed)
	}

	gate.values[7] = 1
	if err := reg.Update(handle, 500, clock); err != nil {
		t.Fatalf("Update: %v", err)
	}
	flushed := reg.FlushAndReset(units.FreqHourly)
	if len(flushed) != 1 || flushed[0].Value != 500 {
		t.Fatalf("gated-on update lost: %+v", flushed)
	}
}

func TestUnknownGatingScheduleFailsSetup(t *testing.T) {
	reg := newTestRegistry(t, &stubGate{ids: map[string]int{}})
	reg.AddRequest(Request{Key: "*", Name: "X", Frequency: units.FreqHourly, Schedule: "Nope"})
	if _, err := reg.Setup("K", "X", units.UnitNone, StoreSummed); err == nil {
		t.Fatal("expected an error for an unknown gating schedule")
	}
}

func TestMinimumFrequencyCoarsensRequests(t *testing.T) {
	reg := newTestRegistry(t, nil)
	reg.SetMinimumFrequency(units.FreqMonthly)
	reg.AddRequest(Request{Key: "*", Name: "A", Frequency: units.FreqTimeStep})
	reg.AddRequest(Request{Key: "*", Name: "B", Frequency: units.FreqYearly})

	ha, err := reg.Setup("K", "A", units.UnitNone, StoreSummed)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	hb, err := reg.Setup("K", "B", units.UnitNone, StoreSummed)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	recA, _ := reg.RecordAt(reg.GroupRecords(ha)[0])
	if recA.Frequency != units.FreqMonthly {
		t.Fatalf("timestep request not raised to monthly, got %v", recA.Frequency)
	}
	recB, _ := reg.RecordAt(reg.GroupRecords(hb)[0])
	if recB.Frequency != units.FreqYearly {
		t.Fatalf("yearly request must not be lowered, got %v", recB.Frequency)
	}
}

func TestResetAfterWarmupSparesSubMonthly(t *testing.T) {
	reg := newTestRegistry(t, nil)
	reg.AddRequest(Request{Key: "*", Name: "E", Frequency: units.FreqHourly})
	reg.AddRequest(Request{Key: "*", Name: "E", Frequency: units.FreqMonthly})
	handle, err := reg.Setup("K", "E", units.UnitJoule, StoreSummed)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	clock := newTestClock(t, 1)
	if err := reg.Update(handle, 42, clock); err != nil {
		t.Fatalf("Update: %v", err)
	}
	reg.ResetAfterWarmup()

	if flushed := reg.FlushAndReset(units.FreqMonthly); flushed != nil {
		t.Fatalf("monthly record must be cleared by warmup reset, got %+v", flushed)
	}
	flushed := reg.FlushAndReset(units.FreqHourly)
	if len(flushed) != 1 || flushed[0].Value != 42 {
		t.Fatalf("hourly record must survive warmup reset, got %+v", flushed)
	}
}

func TestDictionaryListsEveryRecord(t *testing.T) {
	reg := newTestRegistry(t, nil)
	reg.AddRequest(Request{Key: "*", Name: "E", Frequency: units.FreqHourly})
	reg.AddRequest(Request{Key: "*", Name: "E", Frequency: units.FreqDaily})
	if _, err := reg.Setup("K", "E", units.UnitJoule, StoreSummed); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	dict := reg.Dictionary()
	if len(dict) != 2 {
		t.Fatalf("expected 2 dictionary entries, got %d", len(dict))
	}
	if dict[0].ReportID == dict[1].ReportID {
		t.Fatal("report ids must be distinct")
	}
	if dict[0].StoreType != "Summed" {
		t.Fatalf("store type label wrong: %q", dict[0].StoreType)
	}
}
