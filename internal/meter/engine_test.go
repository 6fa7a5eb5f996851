package meter

import (
	"errors"
	"strings"
	"testing"

	"buildsim/internal/emit"
	"buildsim/internal/input"
	"buildsim/internal/units"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(emit.NewIDAllocator(), nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func attachFacility(t *testing.T, e *Engine, variableID int, key string) {
	t.Helper()
	err := e.AttachStandardMeters(variableID, key, "Electricity Energy", units.UnitJoule,
		"Electricity", "Heating", "", "Building", "")
	if err != nil {
		t.Fatalf("AttachStandardMeters: %v", err)
	}
}

func meterByName(t *testing.T, e *Engine, name string) Meter {
	t.Helper()
	id, ok := e.IndexOf(name)
	if !ok {
		t.Fatalf("meter %q not found", name)
	}
	m, err := e.MeterAt(id)
	if err != nil {
		t.Fatalf("MeterAt: %v", err)
	}
	return m
}

func TestAttachStandardMetersCreatesImpliedMeters(t *testing.T) {
	e := newTestEngine(t)
	err := e.AttachStandardMeters(1, "North Zone Baseboard", "Electricity Energy", units.UnitJoule,
		"Electricity", "Heating", "Baseboard", "Building", "North Zone")
	if err != nil {
		t.Fatalf("AttachStandardMeters: %v", err)
	}

	for _, name := range []string{
		"Electricity:Facility",
		"Electricity:Building",
		"Electricity:Zone:North Zone",
		"Heating:Electricity",
		"Heating:Electricity:Zone:North Zone",
		"Baseboard:Heating:Electricity",
	} {
		id, ok := e.IndexOf(name)
		if !ok {
			t.Fatalf("implied meter %q not created", name)
		}
		if !e.Contributes(id, 1) {
			t.Fatalf("variable 1 not recorded on %q", name)
		}
	}
}

func TestAttachRejectsIllegalVocabulary(t *testing.T) {
	e := newTestEngine(t)
	err := e.AttachStandardMeters(1, "K", "N", units.UnitJoule, "Unobtainium", "", "", "", "")
	if !errors.Is(err, ErrIllegalVocabulary) {
		t.Fatalf("expected ErrIllegalVocabulary, got %v", err)
	}
	err = e.AttachStandardMeters(1, "K", "N", units.UnitJoule, "Electricity", "Levitation", "", "", "")
	if !errors.Is(err, ErrIllegalVocabulary) {
		t.Fatalf("expected ErrIllegalVocabulary for end use, got %v", err)
	}
}

func TestDuplicateMeterNameIsFatal(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.AddMeter("Electricity:Facility", units.UnitJoule, MeterNormal, ResourceElectricity, EndUseNone, "", GroupNone); err != nil {
		t.Fatalf("first AddMeter: %v", err)
	}
	_, err := e.AddMeter("Electricity:Facility", units.UnitJoule, MeterNormal, ResourceElectricity, EndUseNone, "", GroupNone)
	if !errors.Is(err, ErrDuplicateMeter) {
		t.Fatalf("expected ErrDuplicateMeter, got %v", err)
	}
}

func TestMeterAdditivity(t *testing.T) {
	e := newTestEngine(t)
	attachFacility(t, e, 1, "Heater A")
	attachFacility(t, e, 2, "Heater B")

	e.UpdateAllMeters(map[int]float64{1: 100, 2: 250})
	facility := meterByName(t, e, "Electricity:Facility")
	if facility.TS.Value != 350 {
		t.Fatalf("TS = %v, want 350", facility.TS.Value)
	}

	// Three ticks accumulate into the hour window; TS recomputes each tick.
	e.AccumulateTick(1010101)
	e.UpdateAllMeters(map[int]float64{1: 50, 2: 50})
	e.AccumulateTick(1010102)
	e.UpdateAllMeters(map[int]float64{1: 0, 2: 25})
	e.AccumulateTick(1010103)

	facility = meterByName(t, e, "Electricity:Facility")
	if facility.TS.Value != 25 {
		t.Fatalf("TS = %v, want 25 from the last tick only", facility.TS.Value)
	}
	if facility.HR.Value != 475 {
		t.Fatalf("HR = %v, want 475", facility.HR.Value)
	}
	if facility.HR.Max != 350 || facility.HR.MaxDate != 1010101 {
		t.Fatalf("HR max = %v at %d, want 350 at 1010101", facility.HR.Max, facility.HR.MaxDate)
	}
	if facility.HR.Min != 25 || facility.HR.MinDate != 1010103 {
		t.Fatalf("HR min = %v at %d, want 25 at 1010103", facility.HR.Min, facility.HR.MinDate)
	}
}

func TestCloseWindowFoldChain(t *testing.T) {
	e := newTestEngine(t)
	attachFacility(t, e, 1, "Heater")

	e.UpdateAllMeters(map[int]float64{1: 10})
	e.AccumulateTick(1011060)
	e.CloseWindow(units.FreqHourly, 1011060, false)

	m := meterByName(t, e, "Electricity:Facility")
	if m.HR.Value != 0 {
		t.Fatalf("HR not reset at hour close: %v", m.HR.Value)
	}
	if m.DY.Value != 10 {
		t.Fatalf("DY = %v, want 10", m.DY.Value)
	}

	e.CloseWindow(units.FreqDaily, 1012460, false)
	e.CloseWindow(units.FreqMonthly, 1312460, false)
	m = meterByName(t, e, "Electricity:Facility")
	if m.DY.Value != 0 || m.MN.Value != 0 {
		t.Fatalf("DY/MN not reset: %v %v", m.DY.Value, m.MN.Value)
	}
	if m.YR.Value != 10 || m.SM.Value != 10 {
		t.Fatalf("YR/SM = %v/%v, want 10/10", m.YR.Value, m.SM.Value)
	}

	e.CloseWindow(units.FreqRunPeriod, 12312460, true)
	m = meterByName(t, e, "Electricity:Facility")
	if m.SM.Value != 0 {
		t.Fatalf("SM not reset at run period close: %v", m.SM.Value)
	}
	if m.FinalYrSM.Value != 10 {
		t.Fatalf("final-year snapshot = %v, want 10", m.FinalYrSM.Value)
	}
}

func TestDecrementConsistency(t *testing.T) {
	e := newTestEngine(t)
	attachFacility(t, e, 1, "Heater A")
	attachFacility(t, e, 2, "Heater B")
	e.RegisterSource(1, "Heater A", "Electricity Energy", units.UnitJoule)

	err := e.CompileCustomMeters(input.NewDeck([]input.Object{{
		Class: classMeterCustomDecrement,
		Name:  "Non Heater A Electricity",
		Alpha: []string{"Electricity", "Electricity:Facility", "Heater A", "Electricity Energy"},
	}}))
	if err != nil {
		t.Fatalf("CompileCustomMeters: %v", err)
	}

	e.UpdateAllMeters(map[int]float64{1: 120, 2: 300})
	source := meterByName(t, e, "Electricity:Facility")
	decrement := meterByName(t, e, "Non Heater A Electricity")
	if decrement.TS.Value+120 != source.TS.Value {
		t.Fatalf("D + delta = %v, want source %v", decrement.TS.Value+120, source.TS.Value)
	}
	if decrement.TS.Value != 300 {
		t.Fatalf("decrement TS = %v, want 300", decrement.TS.Value)
	}
}

func TestDecrementVariableMustBeOnSource(t *testing.T) {
	e := newTestEngine(t)
	attachFacility(t, e, 1, "Heater")
	// A variable metered on natural gas, not on the electric source meter.
	err := e.AttachStandardMeters(2, "Boiler", "NaturalGas Energy", units.UnitJoule,
		"NaturalGas", "Heating", "", "Plant", "")
	if err != nil {
		t.Fatalf("AttachStandardMeters: %v", err)
	}

	err = e.CompileCustomMeters(input.NewDeck([]input.Object{{
		Class: classMeterCustomDecrement,
		Name:  "Bad Decrement",
		Alpha: []string{"Electricity", "Electricity:Facility", "Boiler", "NaturalGas Energy"},
	}}))
	if !errors.Is(err, ErrNotOnSource) {
		t.Fatalf("expected ErrNotOnSource, got %v", err)
	}
}

func TestCustomMeterSumsExplicitSources(t *testing.T) {
	e := newTestEngine(t)
	attachFacility(t, e, 1, "Heater A")
	attachFacility(t, e, 2, "Heater B")
	attachFacility(t, e, 3, "Heater C")

	err := e.CompileCustomMeters(input.NewDeck([]input.Object{{
		Class: classMeterCustom,
		Name:  "Selected Heaters",
		Alpha: []string{"Electricity", "Heater A", "Electricity Energy", "Heater C", "Electricity Energy"},
	}}))
	if err != nil {
		t.Fatalf("CompileCustomMeters: %v", err)
	}

	e.UpdateAllMeters(map[int]float64{1: 5, 2: 7, 3: 11})
	custom := meterByName(t, e, "Selected Heaters")
	if custom.TS.Value != 16 {
		t.Fatalf("custom TS = %v, want 16", custom.TS.Value)
	}
	if custom.Units != units.UnitJoule {
		t.Fatalf("custom meter units = %v, want J", custom.Units)
	}
}

func TestCustomMeterChainingStaysAcyclic(t *testing.T) {
	e := newTestEngine(t)
	attachFacility(t, e, 1, "Heater")

	err := e.CompileCustomMeters(input.NewDeck([]input.Object{
		{
			Class: classMeterCustom,
			Name:  "Level One",
			Alpha: []string{"Electricity", "Heater", "Electricity Energy"},
		},
		{
			Class: classMeterCustom,
			Name:  "Level Two",
			Alpha: []string{"Electricity", "", "Level One"},
		},
	}))
	if err != nil {
		t.Fatalf("acyclic chaining must be accepted: %v", err)
	}

	e.UpdateAllMeters(map[int]float64{1: 9})
	if m := meterByName(t, e, "Level Two"); m.TS.Value != 9 {
		t.Fatalf("chained custom TS = %v, want 9", m.TS.Value)
	}
}

func TestResetAfterWarmup(t *testing.T) {
	e := newTestEngine(t)
	attachFacility(t, e, 1, "Heater")

	e.UpdateAllMeters(map[int]float64{1: 40})
	e.AccumulateTick(1010160)
	e.CloseWindow(units.FreqHourly, 1010160, false)
	e.CloseWindow(units.FreqDaily, 1012460, false)
	e.CloseWindow(units.FreqMonthly, 1312460, false)
	e.ResetAfterWarmup()

	m := meterByName(t, e, "Electricity:Facility")
	for _, p := range []Period{m.HR, m.DY, m.MN, m.YR, m.SM} {
		if p.Value != 0 || p.Min != initialMin || p.Max != initialMax {
			t.Fatalf("window not at sentinels after warmup reset: %+v", p)
		}
	}
	if m.TS.Value != 40 {
		t.Fatalf("TS must survive warmup reset, got %v", m.TS.Value)
	}
	if m.Cumulative != 0 {
		t.Fatalf("cumulative total must clear at warmup end, got %v", m.Cumulative)
	}
}

func TestRequestReportingAndFlush(t *testing.T) {
	e := newTestEngine(t)
	attachFacility(t, e, 1, "Heater")
	if err := e.RequestReporting("Electricity:Facility", units.FreqHourly, false); err != nil {
		t.Fatalf("RequestReporting: %v", err)
	}
	if err := e.RequestReporting("Electricity:Facility", units.FreqHourly, true); err != nil {
		t.Fatalf("RequestReporting cumulative: %v", err)
	}
	if err := e.RequestReporting("Nope:Facility", units.FreqHourly, false); !errors.Is(err, ErrUnknownMeter) {
		t.Fatalf("expected ErrUnknownMeter, got %v", err)
	}

	e.UpdateAllMeters(map[int]float64{1: 30})
	e.AccumulateTick(1010115)
	e.UpdateAllMeters(map[int]float64{1: 20})
	e.AccumulateTick(1010130)

	records := e.Flush(units.FreqHourly)
	if len(records) != 2 {
		t.Fatalf("expected value + cumulative records, got %d", len(records))
	}
	if records[0].Value != 50 || records[0].HasExtremes {
		t.Fatalf("hourly value record wrong: %+v", records[0])
	}
	if records[1].Value != 50 {
		t.Fatalf("cumulative record wrong: %+v", records[1])
	}

	// Nothing requested at daily cadence.
	if daily := e.Flush(units.FreqDaily); daily != nil {
		t.Fatalf("unexpected daily records: %+v", daily)
	}

	dict := e.Dictionary()
	if len(dict) != 2 {
		t.Fatalf("expected 2 dictionary entries, got %d", len(dict))
	}
	if !dict[1].Cumulative || !strings.HasPrefix(dict[1].Name, "Cumulative ") {
		t.Fatalf("cumulative dictionary entry wrong: %+v", dict[1])
	}
}

func TestWriteDetailsListsContributions(t *testing.T) {
	e := newTestEngine(t)
	attachFacility(t, e, 1, "Heater A")

	var sb strings.Builder
	if err := e.WriteDetails(&sb); err != nil {
		t.Fatalf("WriteDetails: %v", err)
	}
	out := sb.String()
	if !strings.Contains(out, "OnMeter=Electricity:Facility") {
		t.Fatalf("missing OnMeter line:\n%s", out)
	}
	if !strings.Contains(out, "For Meter=Electricity:Facility") {
		t.Fatalf("missing For Meter line:\n%s", out)
	}
}

func TestVocabularyRoundTrip(t *testing.T) {
	r, err := ResourceTypeFromString("natural gas")
	if err != nil || r != ResourceNaturalGas {
		t.Fatalf("got %v, %v", r, err)
	}
	u, err := EndUseFromString("Interior Lights")
	if err != nil || u != EndUseInteriorLights {
		t.Fatalf("got %v, %v", u, err)
	}
	g, err := GroupFromString("hvac")
	if err != nil || g != GroupHVAC {
		t.Fatalf("got %v, %v", g, err)
	}
	if _, err := GroupFromString("Spaceship"); !errors.Is(err, ErrIllegalVocabulary) {
		t.Fatalf("expected ErrIllegalVocabulary, got %v", err)
	}
}
