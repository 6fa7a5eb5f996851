package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"buildsim/internal/calendar"
	"buildsim/internal/units"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sim.StepsPerHour != 4 {
		t.Fatalf("stepsPerHour = %d, want 4", cfg.Sim.StepsPerHour)
	}
	if cfg.Sim.Environment != "RUN PERIOD 1" {
		t.Fatalf("environment = %q", cfg.Sim.Environment)
	}
	day, err := cfg.StartDay()
	if err != nil {
		t.Fatalf("StartDay: %v", err)
	}
	if day != calendar.DaySunday {
		t.Fatalf("start day = %v, want Sunday", day)
	}
	if _, has := cfg.MinimumFrequency(); has {
		t.Fatal("no frequency floor expected by default")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeFile(t, "config.yaml", `
sim:
  year: 2027
  stepsPerHour: 6
  startDayOfWeek: friday
  warmupDays: 3
  minimumFrequency: daily
output:
  sqlitePath: /tmp/run.sqlite
http:
  addr: ":9090"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sim.CalendarYear != 2027 || cfg.Sim.StepsPerHour != 6 || cfg.Sim.WarmupDays != 3 {
		t.Fatalf("sim config not applied: %+v", cfg.Sim)
	}
	day, err := cfg.StartDay()
	if err != nil {
		t.Fatalf("StartDay: %v", err)
	}
	if day != calendar.DayFriday {
		t.Fatalf("start day = %v, want Friday", day)
	}
	floor, has := cfg.MinimumFrequency()
	if !has || floor != units.FreqDaily {
		t.Fatalf("frequency floor = %v/%v, want Daily/true", floor, has)
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Fatalf("http addr = %q", cfg.HTTP.Addr)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    error
	}{
		{"bad timestep", "sim:\n  stepsPerHour: 7\n", ErrInvalidTimeStep},
		{"bad year", "sim:\n  year: 0\n", ErrInvalidYear},
		{"negative warmup", "sim:\n  warmupDays: -1\n", ErrInvalidWarmup},
		{"bad start day", "sim:\n  startDayOfWeek: Someday\n", ErrInvalidStartDay},
		{"bad floor", "sim:\n  minimumFrequency: fortnightly\n", ErrInvalidFrequency},
		{"no outputs", "output:\n  sqlitePath: \"\"\n  textDir: \"\"\n", ErrNoOutputs},
	}
	for _, tc := range cases {
		path := writeFile(t, "config.yaml", tc.content)
		if _, err := Load(path); !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestLoadProfile(t *testing.T) {
	path := writeFile(t, "profile.yaml", `
variables:
  - key: "*"
    name: Zone Air Temperature
    frequency: hourly
  - name: Heater Electricity Energy
    frequency: timestep
    schedule: Reporting Window
meters:
  - name: Electricity:Facility
    frequency: monthly
  - name: Heating:Electricity
    frequency: runperiod
    cumulative: true
report_schedules: true
`)
	profile, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if len(profile.Variables) != 2 || len(profile.Meters) != 2 {
		t.Fatalf("profile sizes: %d variables, %d meters", len(profile.Variables), len(profile.Meters))
	}
	if profile.Variables[1].ResolvedFrequency() != units.FreqTimeStep {
		t.Fatalf("variable frequency = %v", profile.Variables[1].ResolvedFrequency())
	}
	if profile.Meters[1].ResolvedFrequency() != units.FreqRunPeriod || !profile.Meters[1].Cumulative {
		t.Fatalf("meter request not applied: %+v", profile.Meters[1])
	}
	if !profile.ReportSchedules {
		t.Fatal("report_schedules not applied")
	}
}

func TestLoadProfileEmptyPath(t *testing.T) {
	profile, err := LoadProfile("")
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if len(profile.Variables) != 0 || len(profile.Meters) != 0 {
		t.Fatal("expected an empty profile")
	}
}

func TestLoadProfileBadFrequency(t *testing.T) {
	path := writeFile(t, "profile.yaml", `
meters:
  - name: Electricity:Facility
    frequency: fortnightly
`)
	if _, err := LoadProfile(path); !errors.Is(err, ErrInvalidFrequency) {
		t.Fatalf("got %v, want ErrInvalidFrequency", err)
	}
}
