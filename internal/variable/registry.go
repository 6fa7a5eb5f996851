package variable

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"buildsim/internal/calendar"
	"buildsim/internal/emit"
	"buildsim/internal/input"
	"buildsim/internal/units"
)

// StoreType selects the aggregation rule for a report variable's window.
type StoreType int

const (
	// StoreAveraged folds values as a time-weighted mean over the window.
	StoreAveraged StoreType = iota + 1
	// StoreSummed folds values as a running total over the window.
	StoreSummed
)

func (s StoreType) String() string {
	if s == StoreSummed {
		return "Summed"
	}
	return "Averaged"
}

// Extreme tracking sentinels. Any observed value beats both.
const (
	initialMin = 1e14
	initialMax = -1e14
)

const classOutputVariable = "Output:Variable"

// Request is one Output:Variable row: a key pattern ("*" matches every
// key), a variable name, a frequency and an optional gating schedule.
type Request struct {
	Key       string
	Name      string
	Frequency units.ReportFrequency
	Schedule  string
	Used      bool
}

// Record is one tracked scalar: a (key, name, frequency) triple with its
// window accumulator and min/max-with-date state.
type Record struct {
	Key       string
	Name      string
	Units     units.Unit
	Store     StoreType
	Frequency units.ReportFrequency

	// ScheduleID gates accumulation; 0 means ungated.
	ScheduleID   int
	ScheduleName string

	ReportID int

	Value     float64
	WeightSum float64
	Count     int
	Stored    bool
	Min       float64
	MinDate   int
	Max       float64
	MaxDate   int
}

// ScheduleGate is the slice of the schedule compiler the registry needs for
// gated variables.
type ScheduleGate interface {
	IndexOf(name string) (int, bool)
	CurrentValue(id int) (float64, error)
	MarkUsed(id int)
}

// Registry owns every report variable record. Records are arena-allocated
// and referenced by 1-based index; handles group the records created by one
// Setup call so a producer updates all of them with a single call.
type Registry struct {
	log       *zap.Logger
	ids       *emit.IDAllocator
	schedules ScheduleGate

	minFrequency units.ReportFrequency
	hasMinimum   bool

	requests []Request
	records  []Record
	groups   [][]int
	byTriple map[string]int
}

// NewRegistry builds an empty registry. The schedule gate may be nil when
// no schedule-gated output requests exist.
func NewRegistry(ids *emit.IDAllocator, schedules ScheduleGate, log *zap.Logger) (*Registry, error) {
	if ids == nil {
		return nil, fmt.Errorf("variable: id allocator is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		log:          log,
		ids:          ids,
		schedules:    schedules,
		minFrequency: units.FreqEachCall,
		byTriple:     make(map[string]int),
	}, nil
}

// SetMinimumFrequency raises every subsequently created record to at least
// the given cadence. Requests already materialized are unaffected.
func (r *Registry) SetMinimumFrequency(f units.ReportFrequency) {
	r.minFrequency = f
	r.hasMinimum = true
}

// AddRequests collects the Output:Variable rows from the deck. Fields:
// key pattern, variable name, frequency, optional schedule name.
func (r *Registry) AddRequests(deck *input.Deck) {
	for _, obj := range deck.ObjectsOf(classOutputVariable) {
		key := obj.AlphaAt(0)
		if key == "" {
			key = "*"
		}
		name := obj.AlphaAt(1)
		if name == "" {
			r.log.Warn("output request without a variable name skipped")
			continue
		}
		freq, known := units.FrequencyFromString(obj.AlphaAt(2))
		if !known {
			r.log.Warn("unrecognized reporting frequency, assuming Hourly",
				zap.String("variable", name), zap.String("frequency", obj.AlphaAt(2)))
		}
		r.requests = append(r.requests, Request{
			Key:       key,
			Name:      name,
			Frequency: freq,
			Schedule:  obj.AlphaAt(3),
		})
	}
}

// AddRequest registers a single programmatic output request.
func (r *Registry) AddRequest(req Request) {
	if req.Key == "" {
		req.Key = "*"
	}
	r.requests = append(r.requests, req)
}

func tripleKey(key, name string, freq units.ReportFrequency) string {
	return strings.ToLower(key) + "\x00" + strings.ToLower(name) + "\x00" + freq.String()
}

// Setup registers a producer's scalar under (key, name). One record is
// created per distinct requested frequency matching the pair; repeated
// Setup calls for the same pair return the same handle. A handle of 0
// means no output request matched and updates are no-ops.
func (r *Registry) Setup(key, name string, unit units.Unit, store StoreType) (int, error) {
	var group []int
	for ri := range r.requests {
		req := &r.requests[ri]
		if !strings.EqualFold(req.Name, name) {
			continue
		}
		if req.Key != "*" && !strings.EqualFold(req.Key, key) {
			continue
		}
		req.Used = true

		freq := req.Frequency
		if r.hasMinimum {
			freq = units.Coarsen(freq, r.minFrequency)
		}
		triple := tripleKey(key, name, freq)
		if id, ok := r.byTriple[triple]; ok {
			if !containsID(group, id) {
				group = append(group, id)
			}
			continue
		}

		scheduleID, scheduleName, err := r.resolveGate(req.Schedule)
		if err != nil {
			return 0, fmt.Errorf("output request for %q on %q: %w", name, key, err)
		}

		r.records = append(r.records, Record{
			Key:          key,
			Name:         name,
			Units:        unit,
			Store:        store,
			Frequency:    freq,
			ScheduleID:   scheduleID,
			ScheduleName: scheduleName,
			ReportID:     r.ids.Next(),
			Min:          initialMin,
			Max:          initialMax,
		})
		id := len(r.records)
		r.byTriple[triple] = id
		group = append(group, id)
	}
	if len(group) == 0 {
		return 0, nil
	}
	r.groups = append(r.groups, group)
	return len(r.groups), nil
}

func (r *Registry) resolveGate(name string) (int, string, error) {
	if name == "" {
		return 0, "", nil
	}
	if r.schedules == nil {
		return 0, "", fmt.Errorf("%w: %q", ErrNoScheduleSource, name)
	}
	id, ok := r.schedules.IndexOf(name)
	if !ok {
		return 0, "", fmt.Errorf("%w: %q", ErrUnknownSchedule, name)
	}
	r.schedules.MarkUsed(id)
	return id, name, nil
}

func containsID(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// Update folds an instantaneous value into every record behind the handle.
// The weight is the elapsed minutes of the step. Schedule-gated records
// skip accumulation while their schedule evaluates to zero; gating happens
// here, not at flush.
func (r *Registry) Update(handle int, value float64, clock *calendar.Clock) error {
	if handle == 0 {
		return nil
	}
	if handle < 1 || handle > len(r.groups) {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, handle)
	}
	stamp := clock.TimeStamp()
	weight := float64(clock.MinutesPerStep())
	for _, id := range r.groups[handle-1] {
		rec := &r.records[id-1]
		if rec.ScheduleID != 0 {
			gate, err := r.schedules.CurrentValue(rec.ScheduleID)
			if err != nil {
				return err
			}
			if gate == 0 {
				continue
			}
		}
		if rec.Store == StoreAveraged {
			rec.Value += value * weight
			rec.WeightSum += weight
		} else {
			rec.Value += value
		}
		rec.Count++
		rec.Stored = true
		if value < rec.Min {
			rec.Min = value
			rec.MinDate = stamp
		}
		if value > rec.Max {
			rec.Max = value
			rec.MaxDate = stamp
		}
	}
	return nil
}

// FlushAndReset drains every stored record of the given frequency and
// returns the emission rows in registration order. Accumulator, count and
// extremes are reset so the next window starts clean.
func (r *Registry) FlushAndReset(freq units.ReportFrequency) []emit.Record {
	var out []emit.Record
	for i := range r.records {
		rec := &r.records[i]
		if rec.Frequency != freq || !rec.Stored {
			continue
		}
		value := rec.Value
		if rec.Store == StoreAveraged && rec.WeightSum > 0 {
			value = rec.Value / rec.WeightSum
		}
		out = append(out, emit.Record{
			ReportID:    rec.ReportID,
			Value:       value,
			HasExtremes: freq >= units.FreqDaily,
			Min:         rec.Min,
			MinDate:     rec.MinDate,
			Max:         rec.Max,
			MaxDate:     rec.MaxDate,
		})
		rec.Value = 0
		rec.WeightSum = 0
		rec.Count = 0
		rec.Stored = false
		rec.Min = initialMin
		rec.MinDate = 0
		rec.Max = initialMax
		rec.MaxDate = 0
	}
	return out
}

// ResetAfterWarmup clears the window state of every monthly-and-coarser
// record so warm-up energy never reaches reported annual totals.
func (r *Registry) ResetAfterWarmup() {
	for i := range r.records {
		rec := &r.records[i]
		if rec.Frequency < units.FreqMonthly {
			continue
		}
		rec.Value = 0
		rec.WeightSum = 0
		rec.Count = 0
		rec.Stored = false
		rec.Min = initialMin
		rec.MinDate = 0
		rec.Max = initialMax
		rec.MaxDate = 0
	}
}

// Dictionary returns one entry per record, in registration order.
func (r *Registry) Dictionary() []emit.DictionaryEntry {
	out := make([]emit.DictionaryEntry, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, emit.DictionaryEntry{
			ReportID:     rec.ReportID,
			Key:          rec.Key,
			Name:         rec.Name,
			Units:        rec.Units,
			Frequency:    rec.Frequency,
			StoreType:    rec.Store.String(),
			ScheduleName: rec.ScheduleName,
		})
	}
	return out
}

// ReportUnmatchedRequests warns about output requests no producer ever
// registered a variable for.
func (r *Registry) ReportUnmatchedRequests() {
	for _, req := range r.requests {
		if !req.Used {
			r.log.Warn("output request matched no registered variable",
				zap.String("key", req.Key), zap.String("variable", req.Name))
		}
	}
}

// NumRecords returns the number of materialized records.
func (r *Registry) NumRecords() int { return len(r.records) }

// RecordAt returns a copy of the record with the given 1-based id.
func (r *Registry) RecordAt(id int) (Record, error) {
	if id < 1 || id > len(r.records) {
		return Record{}, fmt.Errorf("variable: record id %d of %d out of range", id, len(r.records))
	}
	return r.records[id-1], nil
}

// GroupRecords returns the record ids behind a handle.
func (r *Registry) GroupRecords(handle int) []int {
	if handle < 1 || handle > len(r.groups) {
		return nil
	}
	return append([]int(nil), r.groups[handle-1]...)
}
