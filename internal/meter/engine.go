package meter

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"

	"buildsim/internal/emit"
	"buildsim/internal/units"
)

// MeterType distinguishes how a meter's timestep value is produced.
type MeterType int

const (
	// MeterNormal sums the deltas of every attached variable.
	MeterNormal MeterType = iota + 1
	// MeterCustom sums an explicitly enumerated attachment set.
	MeterCustom
	// MeterCustomDecrement subtracts its attachment set from a source meter.
	MeterCustomDecrement
	// MeterCustomDifference is reserved; it updates like CustomDecrement but
	// is labeled separately in reports.
	MeterCustomDifference
)

func (t MeterType) String() string {
	switch t {
	case MeterNormal:
		return "Normal"
	case MeterCustom:
		return "Custom"
	case MeterCustomDecrement:
		return "CustomDecrement"
	case MeterCustomDifference:
		return "CustomDifference"
	default:
		return "Unknown"
	}
}

// Extreme tracking sentinels, shared with the variable registry.
const (
	initialMin = 1e14
	initialMax = -1e14
)

// Period is one accumulation window of a meter: the running value, the
// extremes with their coded timestamps, report ids for the value and its
// cumulative variant, and the reporting flags set by output requests.
type Period struct {
	Value   float64
	Min     float64
	MinDate int
	Max     float64
	MaxDate int

	RptID    int
	AccRptID int
	Rpt      bool
	RptAcc   bool
}

func newPeriod(ids *emit.IDAllocator) Period {
	return Period{Min: initialMin, Max: initialMax, RptID: ids.Next(), AccRptID: ids.Next()}
}

// fold adds a just-closed finer window's total and refreshes the extremes
// with the caller's timestamp code.
func (p *Period) fold(value float64, stamp int) {
	p.Value += value
	if value < p.Min {
		p.Min = value
		p.MinDate = stamp
	}
	if value > p.Max {
		p.Max = value
		p.MaxDate = stamp
	}
}

// reset clears the window for the next cycle, keeping ids and flags.
func (p *Period) reset() {
	p.Value = 0
	p.Min = initialMin
	p.MinDate = 0
	p.Max = initialMax
	p.MaxDate = 0
}

// Meter is one aggregation bucket. The six windows nest: TS folds into HR
// every tick, HR into DY at hour close, DY into MN, MN into YR and SM, and
// SM is copied to FinalYrSM when the last simulated year's run period
// closes.
type Meter struct {
	Name      string
	Units     units.Unit
	Type      MeterType
	Resource  ResourceType
	EndUse    EndUse
	EndUseSub string
	Group     Group

	// Source is the meter id a decrement/difference meter subtracts from.
	Source int

	TS        Period
	HR        Period
	DY        Period
	MN        Period
	YR        Period
	SM        Period
	FinalYrSM Period

	// Cumulative is the running total since the run started; it feeds the
	// "Acc" report variants and is never window-reset.
	Cumulative float64

	scratch float64
}

// attachment is the fan-out entry for one metered variable.
type attachment struct {
	variableID int
	key        string
	name       string
	units      units.Unit
	meters     []int
	custom     []int
}

// Engine owns the meter arena and the variable-to-meter join table.
type Engine struct {
	log *zap.Logger
	ids *emit.IDAllocator

	meters []Meter
	byName map[string]int

	attachments  []attachment
	byVariable   map[int]int
	contributors map[int]map[int]struct{}
}

// NewEngine builds an empty meter engine sharing the given report-id
// sequence with the variable registry.
func NewEngine(ids *emit.IDAllocator, log *zap.Logger) (*Engine, error) {
	if ids == nil {
		return nil, fmt.Errorf("meter: id allocator is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		log:          log,
		ids:          ids,
		byName:       make(map[string]int),
		byVariable:   make(map[int]int),
		contributors: make(map[int]map[int]struct{}),
	}, nil
}

// AddMeter creates a meter. Duplicate names are fatal.
func (e *Engine) AddMeter(name string, unit units.Unit, typ MeterType, resource ResourceType, endUse EndUse, endUseSub string, group Group) (int, error) {
	key := strings.ToLower(name)
	if _, ok := e.byName[key]; ok {
		return 0, fmt.Errorf("%w: %q", ErrDuplicateMeter, name)
	}
	m := Meter{
		Name:      name,
		Units:     unit,
		Type:      typ,
		Resource:  resource,
		EndUse:    endUse,
		EndUseSub: endUseSub,
		Group:     group,
		TS:        newPeriod(e.ids),
		HR:        newPeriod(e.ids),
		DY:        newPeriod(e.ids),
		MN:        newPeriod(e.ids),
		YR:        newPeriod(e.ids),
		SM:        newPeriod(e.ids),
		FinalYrSM: Period{Min: initialMin, Max: initialMax},
	}
	e.meters = append(e.meters, m)
	id := len(e.meters)
	e.byName[key] = id
	e.contributors[id] = make(map[int]struct{})
	return id, nil
}

// IndexOf returns the 1-based id for a meter name.
func (e *Engine) IndexOf(name string) (int, bool) {
	id, ok := e.byName[strings.ToLower(name)]
	return id, ok
}

// MeterAt returns a copy of the meter with the given id.
func (e *Engine) MeterAt(id int) (Meter, error) {
	if id < 1 || id > len(e.meters) {
		return Meter{}, fmt.Errorf("%w: id %d of %d", ErrUnknownMeter, id, len(e.meters))
	}
	return e.meters[id-1], nil
}

// NumMeters returns the number of meters in the arena.
func (e *Engine) NumMeters() int { return len(e.meters) }

// AttachStandardMeters validates the resource/end-use/group vocabulary and
// wires the variable into every implied meter, creating missing meters
// lazily: Resource:Facility, Resource:Group, Resource:Zone:Name,
// EndUse:Resource, EndUseSub:EndUse:Resource, and the zone-scoped end-use
// variant.
func (e *Engine) AttachStandardMeters(variableID int, key, name string, unit units.Unit, resource, endUse, endUseSub, group, zoneName string) error {
	res, err := ResourceTypeFromString(resource)
	if err != nil {
		return err
	}
	use, err := EndUseFromString(endUse)
	if err != nil {
		return err
	}
	grp, err := GroupFromString(group)
	if err != nil {
		return err
	}

	type implied struct {
		name   string
		endUse EndUse
		sub    string
		group  Group
	}
	var names []implied
	names = append(names, implied{name: res.String() + ":Facility"})
	if grp != GroupNone {
		names = append(names, implied{name: res.String() + ":" + grp.String(), group: grp})
	}
	if zoneName != "" {
		names = append(names, implied{name: res.String() + ":Zone:" + zoneName, group: GroupBuilding})
	}
	if use != EndUseNone {
		names = append(names, implied{name: use.String() + ":" + res.String(), endUse: use})
		if zoneName != "" {
			names = append(names, implied{name: use.String() + ":" + res.String() + ":Zone:" + zoneName, endUse: use, group: GroupBuilding})
		}
		if endUseSub != "" {
			names = append(names, implied{name: endUseSub + ":" + use.String() + ":" + res.String(), endUse: use, sub: endUseSub})
		}
	}

	att := e.attachmentFor(variableID, key, name, unit)
	for _, im := range names {
		id, ok := e.IndexOf(im.name)
		if !ok {
			id, err = e.AddMeter(im.name, unit, MeterNormal, res, im.endUse, im.sub, im.group)
			if err != nil {
				return err
			}
		}
		e.attach(att, id, false)
	}
	return nil
}

// AttachCustomMeter appends a meter to the variable's custom list.
func (e *Engine) AttachCustomMeter(variableID, meterID int) error {
	if meterID < 1 || meterID > len(e.meters) {
		return fmt.Errorf("%w: id %d of %d", ErrUnknownMeter, meterID, len(e.meters))
	}
	att := e.byVariable[variableID]
	if att == 0 {
		return fmt.Errorf("meter: variable %d has no attachment record", variableID)
	}
	e.attach(att, meterID, true)
	return nil
}

// RegisterSource declares a metered variable so custom-meter compilation
// can resolve (key, name) references. Summed-store variables only; the
// caller enforces that.
func (e *Engine) RegisterSource(variableID int, key, name string, unit units.Unit) {
	e.attachmentFor(variableID, key, name, unit)
}

func (e *Engine) attachmentFor(variableID int, key, name string, unit units.Unit) int {
	if idx, ok := e.byVariable[variableID]; ok && idx != 0 {
		return idx
	}
	e.attachments = append(e.attachments, attachment{
		variableID: variableID,
		key:        key,
		name:       name,
		units:      unit,
	})
	idx := len(e.attachments)
	e.byVariable[variableID] = idx
	return idx
}

func (e *Engine) attach(attIdx, meterID int, custom bool) {
	att := &e.attachments[attIdx-1]
	list := &att.meters
	if custom {
		list = &att.custom
	}
	for _, id := range *list {
		if id == meterID {
			return
		}
	}
	*list = append(*list, meterID)
	e.contributors[meterID][att.variableID] = struct{}{}
}

// Contributes reports whether the variable feeds the meter.
func (e *Engine) Contributes(meterID, variableID int) bool {
	set, ok := e.contributors[meterID]
	if !ok {
		return false
	}
	_, ok = set[variableID]
	return ok
}

// UpdateAllMeters recomputes every meter's timestep value from the
// per-variable deltas. Normal and custom meters sum their attachments;
// decrement and difference meters subtract theirs from the source meter's
// fresh timestep value in a second phase, so evaluation order never double
// counts.
func (e *Engine) UpdateAllMeters(deltas map[int]float64) {
	for i := range e.meters {
		e.meters[i].TS.Value = 0
		e.meters[i].scratch = 0
	}
	for _, att := range e.attachments {
		delta, ok := deltas[att.variableID]
		if !ok || delta == 0 {
			continue
		}
		for _, lists := range [2][]int{att.meters, att.custom} {
			for _, id := range lists {
				m := &e.meters[id-1]
				if m.Type == MeterCustomDecrement || m.Type == MeterCustomDifference {
					m.scratch += delta
				} else {
					m.TS.Value += delta
				}
			}
		}
	}
	for i := range e.meters {
		m := &e.meters[i]
		if m.Type != MeterCustomDecrement && m.Type != MeterCustomDifference {
			continue
		}
		source := 0.0
		if m.Source >= 1 && m.Source <= len(e.meters) {
			source = e.meters[m.Source-1].TS.Value
		}
		m.TS.Value = source - m.scratch
	}
}

// AccumulateTick folds every meter's timestep value into the hour window
// and the running cumulative total. Called once per tick, after
// UpdateAllMeters.
func (e *Engine) AccumulateTick(stamp int) {
	for i := range e.meters {
		m := &e.meters[i]
		m.HR.fold(m.TS.Value, stamp)
		m.Cumulative += m.TS.Value
	}
}

// CloseWindow folds the finished window into the next coarser one and
// resets it. Closing the run period in the final simulated year snapshots
// SM into the final-year variant used by the end-of-run summary.
func (e *Engine) CloseWindow(window units.ReportFrequency, stamp int, finalYear bool) {
	for i := range e.meters {
		m := &e.meters[i]
		switch window {
		case units.FreqHourly:
			m.DY.fold(m.HR.Value, stamp)
			m.HR.reset()
		case units.FreqDaily:
			m.MN.fold(m.DY.Value, stamp)
			m.DY.reset()
		case units.FreqMonthly:
			m.YR.fold(m.MN.Value, stamp)
			m.SM.fold(m.MN.Value, stamp)
			m.MN.reset()
		case units.FreqYearly:
			m.YR.reset()
		case units.FreqRunPeriod:
			if finalYear {
				m.FinalYrSM = m.SM
			}
			m.SM.reset()
		}
	}
}

// ResetAfterWarmup zeroes every window except the live timestep value, for
// meters and their cumulative totals alike. Invoked exactly once, when the
// warm-up convergence phase ends.
func (e *Engine) ResetAfterWarmup() {
	for i := range e.meters {
		m := &e.meters[i]
		m.HR.reset()
		m.DY.reset()
		m.MN.reset()
		m.YR.reset()
		m.SM.reset()
		m.Cumulative = 0
	}
}

func (m *Meter) period(window units.ReportFrequency) *Period {
	switch window {
	case units.FreqEachCall, units.FreqTimeStep:
		return &m.TS
	case units.FreqHourly:
		return &m.HR
	case units.FreqDaily:
		return &m.DY
	case units.FreqMonthly:
		return &m.MN
	case units.FreqYearly:
		return &m.YR
	case units.FreqRunPeriod:
		return &m.SM
	default:
		return nil
	}
}

// RequestReporting enables value emission for a named meter at a cadence.
// Cumulative requests drive the "Acc" variant instead.
func (e *Engine) RequestReporting(name string, freq units.ReportFrequency, cumulative bool) error {
	id, ok := e.IndexOf(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMeter, name)
	}
	p := e.meters[id-1].period(freq)
	if p == nil {
		return fmt.Errorf("meter: frequency %v not reportable", freq)
	}
	if cumulative {
		p.RptAcc = true
	} else {
		p.Rpt = true
	}
	return nil
}

// Flush returns the emission rows for every meter reporting at the given
// window. Values carry extremes for daily and coarser windows; cumulative
// variants carry only the running total. Flush does not reset: CloseWindow
// owns the reset so reporting always precedes folding.
func (e *Engine) Flush(window units.ReportFrequency) []emit.Record {
	var out []emit.Record
	extremes := window >= units.FreqDaily
	for i := range e.meters {
		m := &e.meters[i]
		p := m.period(window)
		if p == nil {
			continue
		}
		if p.Rpt {
			out = append(out, emit.Record{
				ReportID:    p.RptID,
				Value:       p.Value,
				HasExtremes: extremes,
				Min:         p.Min,
				MinDate:     p.MinDate,
				Max:         p.Max,
				MaxDate:     p.MaxDate,
			})
		}
		if p.RptAcc {
			out = append(out, emit.Record{ReportID: p.AccRptID, Value: m.Cumulative})
		}
	}
	return out
}

// Dictionary returns one entry per requested (meter, window) combination.
func (e *Engine) Dictionary() []emit.DictionaryEntry {
	var out []emit.DictionaryEntry
	windows := []units.ReportFrequency{
		units.FreqTimeStep, units.FreqHourly, units.FreqDaily,
		units.FreqMonthly, units.FreqYearly, units.FreqRunPeriod,
	}
	for i := range e.meters {
		m := &e.meters[i]
		for _, w := range windows {
			p := m.period(w)
			if p.Rpt {
				out = append(out, emit.DictionaryEntry{
					ReportID:  p.RptID,
					IsMeter:   true,
					Name:      m.Name,
					Units:     m.Units,
					Frequency: w,
					StoreType: "Summed",
				})
			}
			if p.RptAcc {
				out = append(out, emit.DictionaryEntry{
					ReportID:   p.AccRptID,
					IsMeter:    true,
					Cumulative: true,
					Name:       "Cumulative " + m.Name,
					Units:      m.Units,
					Frequency:  w,
					StoreType:  "Summed",
				})
			}
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ReportID < out[b].ReportID })
	return out
}

// WriteDetails writes the meter cross-reference: for every meter its
// contributing variables, and for every metered variable the meters it
// feeds.
func (e *Engine) WriteDetails(w io.Writer) error {
	for idx, att := range e.attachments {
		if len(att.meters) == 0 && len(att.custom) == 0 {
			continue
		}
		if _, err := fmt.Fprintf(w, "Meters for %d,%s:%s [%s]\n", idx+1, att.key, att.name, att.units); err != nil {
			return err
		}
		for _, id := range att.meters {
			if _, err := fmt.Fprintf(w, "  OnMeter=%s [%s]\n", e.meters[id-1].Name, e.meters[id-1].Units); err != nil {
				return err
			}
		}
		for _, id := range att.custom {
			if _, err := fmt.Fprintf(w, "  OnCustomMeter=%s [%s]\n", e.meters[id-1].Name, e.meters[id-1].Units); err != nil {
				return err
			}
		}
	}
	for i := range e.meters {
		m := &e.meters[i]
		if _, err := fmt.Fprintf(w, "For Meter=%s [%s], ResourceType=%s", m.Name, m.Units, m.Resource); err != nil {
			return err
		}
		if m.EndUse != EndUseNone {
			if _, err := fmt.Fprintf(w, ", EndUse=%s", m.EndUse); err != nil {
				return err
			}
		}
		if m.Group != GroupNone {
			if _, err := fmt.Fprintf(w, ", Group=%s", m.Group); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, ", contents are:\n"); err != nil {
			return err
		}
		for _, att := range e.attachments {
			if e.Contributes(i+1, att.variableID) {
				if _, err := fmt.Fprintf(w, "  %s:%s\n", att.key, att.name); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
