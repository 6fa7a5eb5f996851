package summary

import (
	"strings"
	"testing"

	"buildsim/internal/emit"
	"buildsim/internal/meter"
	"buildsim/internal/units"
)

func buildMeters(t *testing.T) *meter.Engine {
	t.Helper()
	eng, err := meter.NewEngine(emit.NewIDAllocator(), nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if err := eng.AttachStandardMeters(1, "Heater", "Heater Electricity Energy",
		units.UnitJoule, "Electricity", "Heating", "", "Building", ""); err != nil {
		t.Fatalf("AttachStandardMeters: %v", err)
	}

	// One monthly fold, then year close, then a final run period close so
	// the final-year snapshot is taken.
	stamp := 12312400
	eng.UpdateAllMeters(map[int]float64{1: 75})
	eng.AccumulateTick(stamp)
	eng.CloseWindow(units.FreqHourly, stamp, false)
	eng.CloseWindow(units.FreqDaily, stamp, false)
	eng.CloseWindow(units.FreqMonthly, stamp, false)
	eng.CloseWindow(units.FreqYearly, stamp, false)
	eng.CloseWindow(units.FreqRunPeriod, stamp, true)
	return eng
}

func TestBuildCollectsFinalYearTotals(t *testing.T) {
	eng := buildMeters(t)
	report, err := Build(eng, "RUN PERIOD 1", 2026)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(report.Lines) != eng.NumMeters() {
		t.Fatalf("expected %d lines, got %d", eng.NumMeters(), len(report.Lines))
	}
	for i := 1; i < len(report.Lines); i++ {
		if report.Lines[i-1].Name > report.Lines[i].Name {
			t.Fatalf("lines not sorted: %q before %q", report.Lines[i-1].Name, report.Lines[i].Name)
		}
	}
	var facility *Line
	for i := range report.Lines {
		if report.Lines[i].Name == "Electricity:Facility" {
			facility = &report.Lines[i]
		}
	}
	if facility == nil {
		t.Fatal("Electricity:Facility missing from report")
	}
	if facility.Annual != 75 {
		t.Fatalf("facility annual = %v, want 75", facility.Annual)
	}
	if !facility.HasExtremes {
		t.Fatal("facility should carry extremes")
	}
	if facility.MaximumStamp != "12-31 24:00" {
		t.Fatalf("maximum stamp = %q", facility.MaximumStamp)
	}
	if facility.Units != "J" {
		t.Fatalf("units = %q, want J", facility.Units)
	}
}

func TestBuildRequiresEngine(t *testing.T) {
	if _, err := Build(nil, "", 0); err == nil {
		t.Fatal("expected an error for a nil engine")
	}
}

func TestBuildXLSX(t *testing.T) {
	eng := buildMeters(t)
	report, err := Build(eng, "RUN PERIOD 1", 2026)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	data, err := BuildXLSX(report)
	if err != nil {
		t.Fatalf("BuildXLSX: %v", err)
	}
	// XLSX files are zip archives.
	if len(data) < 4 || string(data[:2]) != "PK" {
		t.Fatalf("not a zip archive, got %d bytes", len(data))
	}
}

func TestBuildPDF(t *testing.T) {
	eng := buildMeters(t)
	report, err := Build(eng, "RUN PERIOD 1", 2026)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	data, err := BuildPDF(report)
	if err != nil {
		t.Fatalf("BuildPDF: %v", err)
	}
	if !strings.HasPrefix(string(data), "%PDF") {
		t.Fatalf("missing PDF header in %d bytes", len(data))
	}
}
