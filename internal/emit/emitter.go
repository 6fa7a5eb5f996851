package emit

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"buildsim/internal/calendar"
	"buildsim/internal/observability/metrics"
	"buildsim/internal/units"
)

// TimeIndex is the timestamp context for one flush of one window.
type TimeIndex struct {
	Frequency    units.ReportFrequency
	DayOfSim     int
	Environment  string
	CalendarYear int
	Month        int
	Day          int
	Hour         int
	StartMinute  int
	EndMinute    int
	DST          bool
	DayType      string
	Warmup       bool
}

// Sink is a structured destination for dictionary, time-index and data
// rows. WriteTimeIndex returns the id data rows reference.
type Sink interface {
	WriteDictionary(ctx context.Context, entry DictionaryEntry) error
	WriteTimeIndex(ctx context.Context, ts TimeIndex) (int64, error)
	WriteData(ctx context.Context, timeIndexID int64, rec Record, freq units.ReportFrequency) error
	Close() error
}

// latch tracks the one-shot timestamp per window within a flush cycle.
type latch struct {
	variables bool
	meters    bool
	sinkID    int64
	haveSink  bool
}

// Emitter formats accumulator flushes onto the text streams and fans the
// structured rows out to every sink. Within one cycle the timestamp row
// for a window is written at most once per stream and always precedes the
// value rows that reference it.
type Emitter struct {
	log       *zap.Logger
	variables io.Writer
	meters    io.Writer
	sinks     []Sink
	latches   map[units.ReportFrequency]*latch
}

// NewEmitter builds an emitter. Either stream may be io.Discard; sinks may
// be empty.
func NewEmitter(variables, meters io.Writer, sinks []Sink, log *zap.Logger) (*Emitter, error) {
	if variables == nil || meters == nil {
		return nil, fmt.Errorf("emit: both text streams are required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Emitter{
		log:       log,
		variables: variables,
		meters:    meters,
		sinks:     sinks,
		latches:   make(map[units.ReportFrequency]*latch),
	}, nil
}

// WriteDictionaries writes the header block declaring every reportable
// quantity, variables to the variable stream and meters to the meter
// stream, mirrored into each sink.
func (em *Emitter) WriteDictionaries(ctx context.Context, variables, meters []DictionaryEntry) error {
	for _, entry := range variables {
		if err := em.writeDictionaryLine(em.variables, entry); err != nil {
			return err
		}
	}
	for _, entry := range meters {
		if err := em.writeDictionaryLine(em.meters, entry); err != nil {
			return err
		}
	}
	for _, sink := range em.sinks {
		for _, entry := range variables {
			if err := sink.WriteDictionary(ctx, entry); err != nil {
				return err
			}
		}
		for _, entry := range meters {
			if err := sink.WriteDictionary(ctx, entry); err != nil {
				return err
			}
		}
	}
	return nil
}

func (em *Emitter) writeDictionaryLine(w io.Writer, entry DictionaryEntry) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d,1,", entry.ReportID)
	if entry.Key != "" {
		fmt.Fprintf(&sb, "%s,", entry.Key)
	}
	fmt.Fprintf(&sb, "%s [%s] !%s", entry.Name, entry.Units, entry.Label())
	if entry.ScheduleName != "" {
		fmt.Fprintf(&sb, ",%s", entry.ScheduleName)
	}
	_, err := fmt.Fprintln(w, sb.String())
	return err
}

// BeginCycle resets the timestamp latches. Called once per simulation
// tick, before any flush of that tick.
func (em *Emitter) BeginCycle() {
	for k := range em.latches {
		delete(em.latches, k)
	}
}

// EmitVariables flushes variable records for one window.
func (em *Emitter) EmitVariables(ctx context.Context, ts TimeIndex, records []Record) error {
	return em.emit(ctx, em.variables, false, ts, records)
}

// EmitMeters flushes meter records for one window.
func (em *Emitter) EmitMeters(ctx context.Context, ts TimeIndex, records []Record) error {
	return em.emit(ctx, em.meters, true, ts, records)
}

func (em *Emitter) emit(ctx context.Context, w io.Writer, meterStream bool, ts TimeIndex, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	l, err := em.stamp(ctx, w, meterStream, ts)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if _, err := fmt.Fprintln(w, formatDataLine(rec, ts.Frequency)); err != nil {
			return err
		}
		if l.haveSink {
			for _, sink := range em.sinks {
				if err := sink.WriteData(ctx, l.sinkID, rec, ts.Frequency); err != nil {
					metrics.RecordSinkError(fmt.Sprintf("%T", sink))
					return err
				}
			}
		}
	}
	return nil
}

// stamp writes the window's timestamp row if this cycle has not yet, on
// this stream and in the sinks.
func (em *Emitter) stamp(ctx context.Context, w io.Writer, meterStream bool, ts TimeIndex) (*latch, error) {
	l := em.latches[ts.Frequency]
	if l == nil {
		l = &latch{}
		em.latches[ts.Frequency] = l
	}
	written := l.variables
	if meterStream {
		written = l.meters
	}
	if !written {
		if _, err := fmt.Fprintln(w, formatTimeStampLine(ts)); err != nil {
			return nil, err
		}
		if meterStream {
			l.meters = true
		} else {
			l.variables = true
		}
	}
	if !l.haveSink && len(em.sinks) > 0 {
		for i, sink := range em.sinks {
			id, err := sink.WriteTimeIndex(ctx, ts)
			if err != nil {
				metrics.RecordSinkError(fmt.Sprintf("%T", sink))
				return nil, err
			}
			if i == 0 {
				l.sinkID = id
			}
		}
		l.haveSink = true
	}
	return l, nil
}

// stampCode is the leading id of a timestamp row; one code per timestamp
// shape, shared by the windows that print identically.
func stampCode(f units.ReportFrequency) int {
	switch f {
	case units.FreqEachCall, units.FreqTimeStep, units.FreqHourly:
		return 1
	case units.FreqDaily:
		return 2
	case units.FreqMonthly:
		return 3
	case units.FreqRunPeriod:
		return 4
	default:
		return 5
	}
}

func dstFlag(dst bool) int {
	if dst {
		return 1
	}
	return 0
}

// formatTimeStampLine renders the fixed-field timestamp whose shape
// depends on the window: sub-daily windows carry the full clock fields,
// daily drops the minutes, monthly keeps only the month, run period
// carries the day-of-simulation counter and yearly the calendar year.
func formatTimeStampLine(ts TimeIndex) string {
	code := stampCode(ts.Frequency)
	switch ts.Frequency {
	case units.FreqEachCall, units.FreqTimeStep, units.FreqHourly:
		return fmt.Sprintf("%d,%d,%d,%d,%d,%d,%d,%d,%s",
			code, ts.DayOfSim, ts.Month, ts.Day, dstFlag(ts.DST),
			ts.Hour, ts.StartMinute, ts.EndMinute, ts.DayType)
	case units.FreqDaily:
		return fmt.Sprintf("%d,%d,%d,%d,%d,%s",
			code, ts.DayOfSim, ts.Month, ts.Day, dstFlag(ts.DST), ts.DayType)
	case units.FreqMonthly:
		return fmt.Sprintf("%d,%d,%d", code, ts.DayOfSim, ts.Month)
	case units.FreqRunPeriod:
		return fmt.Sprintf("%d,%d", code, ts.DayOfSim)
	default:
		return fmt.Sprintf("%d,%d", code, ts.CalendarYear)
	}
}

// formatDataLine renders one value row. Daily and coarser windows append
// the extremes, each suffixed with its decoded date narrowed to the
// window: daily keeps hour and minute, monthly adds the day, yearly and
// run period add the month.
func formatDataLine(rec Record, freq units.ReportFrequency) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d,%s", rec.ReportID, FormatValue(rec.Value))
	if !rec.HasExtremes {
		return sb.String()
	}
	writeExtreme := func(value float64, date int) {
		month, day, hour, minute := calendar.DecodeMonDayHrMin(date)
		fmt.Fprintf(&sb, ",%s", FormatValue(value))
		switch freq {
		case units.FreqDaily:
			fmt.Fprintf(&sb, ",%d,%d", hour, minute)
		case units.FreqMonthly:
			fmt.Fprintf(&sb, ",%d,%d,%d", day, hour, minute)
		default:
			fmt.Fprintf(&sb, ",%d,%d,%d,%d", month, day, hour, minute)
		}
	}
	writeExtreme(rec.Min, rec.MinDate)
	writeExtreme(rec.Max, rec.MaxDate)
	return sb.String()
}

// TimeIndexFromClock fills the timestamp context for a window from the
// simulation clock. Sub-hourly windows carry the closing step's minute
// span; the hourly window always stamps the full 0..60 hour.
func TimeIndexFromClock(clock *calendar.Clock, freq units.ReportFrequency, environment string, warmup bool) TimeIndex {
	startMinute, endMinute := clock.StartMinute(), clock.EndMinute()
	if freq >= units.FreqHourly {
		startMinute, endMinute = 0, 60
	}
	return TimeIndex{
		Frequency:    freq,
		DayOfSim:     clock.DayOfSim,
		Environment:  environment,
		CalendarYear: clock.Year,
		Month:        clock.Month,
		Day:          clock.Day,
		Hour:         clock.Hour,
		StartMinute:  startMinute,
		EndMinute:    endMinute,
		DST:          clock.DSTActive,
		DayType:      clock.EffectiveDayType().String(),
		Warmup:       warmup,
	}
}
