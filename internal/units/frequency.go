package units

import "strings"

// ReportFrequency is the accumulation window and emission cadence of a
// reported quantity. The numeric order matters: coarser frequencies compare
// greater, which is what the minimum-frequency override relies on.
type ReportFrequency int

const (
	// FreqEachCall reports on every producer call, before timestep averaging.
	FreqEachCall ReportFrequency = iota - 1
	FreqTimeStep
	FreqHourly
	FreqDaily
	FreqMonthly
	FreqRunPeriod
	FreqYearly
)

const (
	freqLabelEachCall  = "Each Call"
	freqLabelTimeStep  = "TimeStep"
	freqLabelHourly    = "Hourly"
	freqLabelDaily     = "Daily"
	freqLabelMonthly   = "Monthly"
	freqLabelRunPeriod = "RunPeriod"
	freqLabelYearly    = "Annual"
)

// String returns the human label used in dictionary rows.
func (f ReportFrequency) String() string {
	switch f {
	case FreqEachCall:
		return freqLabelEachCall
	case FreqTimeStep:
		return freqLabelTimeStep
	case FreqHourly:
		return freqLabelHourly
	case FreqDaily:
		return freqLabelDaily
	case FreqMonthly:
		return freqLabelMonthly
	case FreqRunPeriod:
		return freqLabelRunPeriod
	case FreqYearly:
		return freqLabelYearly
	default:
		return "Hourly"
	}
}

// IsValid tells whether f is one of the declared frequencies.
func (f ReportFrequency) IsValid() bool {
	return f >= FreqEachCall && f <= FreqYearly
}

// SQLInterval returns the numeric interval code recorded by the SQL sink.
func (f ReportFrequency) SQLInterval() int {
	return int(f)
}

// FrequencyFromString resolves a user-facing frequency name. Unrecognized
// strings resolve to FreqHourly with ok=false; callers treat that as a
// default, not an error.
func FrequencyFromString(s string) (ReportFrequency, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "detailed", "each call", "eachcall":
		return FreqEachCall, true
	case "timestep", "zone timestep":
		return FreqTimeStep, true
	case "hourly", "":
		return FreqHourly, true
	case "daily":
		return FreqDaily, true
	case "monthly":
		return FreqMonthly, true
	case "runperiod", "run period", "environment":
		return FreqRunPeriod, true
	case "annual", "yearly":
		return FreqYearly, true
	default:
		return FreqHourly, false
	}
}

// Coarsen applies a configured minimum reporting frequency: a requested
// frequency finer than the floor is raised to the floor. Yearly is never
// forced onto a run-period request.
func Coarsen(requested, floor ReportFrequency) ReportFrequency {
	if !floor.IsValid() || floor <= requested {
		return requested
	}
	return floor
}
