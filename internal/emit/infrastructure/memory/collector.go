package memory

import (
	"context"

	"buildsim/internal/emit"
	"buildsim/internal/units"
)

// Row is one collected data point joined with its timestamp context.
type Row struct {
	ReportID  int
	TimeIndex emit.TimeIndex
	Value     float64
	Min       float64
	MinDate   int
	Max       float64
	MaxDate   int
}

// Collector is the in-memory results sink: rows grouped per reporting
// cadence, keyed by report id on demand. Used for downstream export
// independent of the text and SQL sinks.
type Collector struct {
	dictionary []emit.DictionaryEntry
	indexes    []emit.TimeIndex
	rows       map[units.ReportFrequency][]Row
}

// NewCollector builds an empty collector.
func NewCollector() *Collector {
	return &Collector{rows: make(map[units.ReportFrequency][]Row)}
}

// WriteDictionary records a dictionary entry.
func (c *Collector) WriteDictionary(_ context.Context, entry emit.DictionaryEntry) error {
	c.dictionary = append(c.dictionary, entry)
	return nil
}

// WriteTimeIndex records a timestamp context and returns its id.
func (c *Collector) WriteTimeIndex(_ context.Context, ts emit.TimeIndex) (int64, error) {
	c.indexes = append(c.indexes, ts)
	return int64(len(c.indexes)), nil
}

// WriteData appends a data row under its cadence.
func (c *Collector) WriteData(_ context.Context, timeIndexID int64, rec emit.Record, freq units.ReportFrequency) error {
	ts := emit.TimeIndex{}
	if timeIndexID >= 1 && timeIndexID <= int64(len(c.indexes)) {
		ts = c.indexes[timeIndexID-1]
	}
	c.rows[freq] = append(c.rows[freq], Row{
		ReportID:  rec.ReportID,
		TimeIndex: ts,
		Value:     rec.Value,
		Min:       rec.Min,
		MinDate:   rec.MinDate,
		Max:       rec.Max,
		MaxDate:   rec.MaxDate,
	})
	return nil
}

// Close is a no-op; the collector holds no external resources.
func (c *Collector) Close() error { return nil }

// Dictionary returns the collected dictionary entries.
func (c *Collector) Dictionary() []emit.DictionaryEntry { return c.dictionary }

// Rows returns the rows collected at a cadence, in emission order.
func (c *Collector) Rows(freq units.ReportFrequency) []Row { return c.rows[freq] }

// Series returns the values of one report id at a cadence.
func (c *Collector) Series(reportID int, freq units.ReportFrequency) []float64 {
	var out []float64
	for _, row := range c.rows[freq] {
		if row.ReportID == reportID {
			out = append(out, row.Value)
		}
	}
	return out
}
