package emit

import (
	"strconv"

	"buildsim/internal/units"
)

// IDAllocator hands out report ids from a single monotonic sequence shared
// by report variables and meters, so every sink row carries an unambiguous
// id regardless of which engine produced it.
type IDAllocator struct {
	next int
}

// NewIDAllocator returns an allocator starting at id 1. Id 0 is reserved as
// the "not allocated" sentinel.
func NewIDAllocator() *IDAllocator { return &IDAllocator{next: 1} }

// Next returns a fresh report id.
func (a *IDAllocator) Next() int {
	id := a.next
	a.next++
	return id
}

// Record is one flushed data point ready for emission. Extremes are carried
// only for daily and coarser windows.
type Record struct {
	ReportID    int
	Value       float64
	HasExtremes bool
	Min         float64
	MinDate     int
	Max         float64
	MaxDate     int
}

// DictionaryEntry declares one reportable quantity to the sinks. Written
// once per (quantity, frequency) before any of its values.
type DictionaryEntry struct {
	ReportID   int
	IsMeter    bool
	Cumulative bool
	Key        string
	Name       string
	Units      units.Unit
	Frequency  units.ReportFrequency
	StoreType  string
	// ScheduleName is set only for schedule-gated report variables.
	ScheduleName string
}

// Label returns the cadence label used on dictionary rows.
func (d DictionaryEntry) Label() string { return d.Frequency.String() }

// FormatValue renders a value for the text streams: "0.0" for the common
// zero case, shortest round-trip decimal otherwise.
func FormatValue(v float64) string {
	if v == 0 {
		return "0.0"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
