package meter

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"buildsim/internal/input"
	"buildsim/internal/units"
)

const (
	classMeterCustom          = "Meter:Custom"
	classMeterCustomDecrement = "Meter:CustomDecrement"
)

// CompileCustomMeters processes Meter:Custom and Meter:CustomDecrement
// objects. References resolve against the sources registered so far and
// against existing meters; meter-to-meter references form a dependency
// graph that must stay acyclic. All objects are checked before an error is
// returned so one run surfaces every problem.
func (e *Engine) CompileCustomMeters(deck *input.Deck) error {
	var errs []error
	edges := make(map[int][]int)

	for _, obj := range deck.ObjectsOf(classMeterCustom) {
		if err := e.compileCustomMeter(obj, MeterCustom, edges); err != nil {
			errs = append(errs, err)
		}
	}
	for _, obj := range deck.ObjectsOf(classMeterCustomDecrement) {
		if err := e.compileCustomMeter(obj, MeterCustomDecrement, edges); err != nil {
			errs = append(errs, err)
		}
	}

	if cycle := findCycle(edges); cycle != "" {
		errs = append(errs, fmt.Errorf("%w: %s", ErrMeterCycle, cycle))
	}
	return errors.Join(errs...)
}

func (e *Engine) compileCustomMeter(obj input.Object, typ MeterType, edges map[int][]int) error {
	resource, err := ResourceTypeFromString(obj.AlphaAt(0))
	if err != nil {
		return fmt.Errorf("%s %q: %w", obj.Class, obj.Name, err)
	}

	pairStart := 1
	sourceID := 0
	if typ == MeterCustomDecrement {
		sourceName := obj.AlphaAt(1)
		id, ok := e.IndexOf(sourceName)
		if !ok {
			return fmt.Errorf("%s %q: %w: source %q", obj.Class, obj.Name, ErrUnknownMeter, sourceName)
		}
		sourceID = id
		pairStart = 2
	}

	meterID, err := e.AddMeter(obj.Name, units.UnitUnknown, typ, resource, EndUseNone, "", GroupNone)
	if err != nil {
		return fmt.Errorf("%s: %w", obj.Class, err)
	}
	m := &e.meters[meterID-1]
	m.Source = sourceID
	if sourceID != 0 {
		edges[sourceID] = append(edges[sourceID], meterID)
	}

	attached := 0
	var unit units.Unit
	for i := pairStart; i+1 < len(obj.Alpha); i += 2 {
		key := obj.AlphaAt(i)
		name := obj.AlphaAt(i + 1)
		if name == "" {
			continue
		}

		if refID, ok := e.IndexOf(name); ok {
			// A meter reference pulls in every contributor of that meter.
			edges[refID] = append(edges[refID], meterID)
			n, uerr := e.adoptMeterContributors(obj, meterID, refID, sourceID, &unit)
			if uerr != nil {
				return uerr
			}
			attached += n
			continue
		}

		ids := e.findSources(key, name)
		if len(ids) == 0 {
			e.log.Warn("custom meter reference matched nothing",
				zap.String("meter", obj.Name), zap.String("key", key), zap.String("variable", name))
			continue
		}
		for _, att := range ids {
			if err := e.adoptSource(obj, meterID, att, sourceID, &unit); err != nil {
				return err
			}
			attached++
		}
	}

	if attached == 0 {
		e.log.Warn("custom meter has no attached variables and will report zero",
			zap.String("meter", obj.Name))
	}
	if unit != units.UnitUnknown {
		m = &e.meters[meterID-1]
		m.Units = unit
	}
	return nil
}

// adoptSource wires one registered variable into the custom meter, after
// the unit and (for decrements) source-membership checks.
func (e *Engine) adoptSource(obj input.Object, meterID, attIdx, sourceID int, unit *units.Unit) error {
	att := &e.attachments[attIdx-1]
	if *unit == units.UnitUnknown {
		*unit = att.units
	} else if att.units != *unit {
		e.log.Warn("custom meter source unit differs, source skipped",
			zap.String("meter", obj.Name), zap.String("variable", att.name),
			zap.String("unit", att.units.String()), zap.String("meterUnit", unit.String()))
		return nil
	}
	if sourceID != 0 && !e.Contributes(sourceID, att.variableID) {
		return fmt.Errorf("%s %q: %w: %s:%s", obj.Class, obj.Name, ErrNotOnSource, att.key, att.name)
	}
	e.attach(attIdx, meterID, true)
	return nil
}

func (e *Engine) adoptMeterContributors(obj input.Object, meterID, refID, sourceID int, unit *units.Unit) (int, error) {
	ref := &e.meters[refID-1]
	if ref.Type != MeterNormal {
		// Custom-to-custom chaining is allowed as long as the dependency
		// graph stays acyclic; the caller checks that at the end.
		e.log.Info("custom meter chains another custom meter",
			zap.String("meter", obj.Name), zap.String("source", ref.Name))
	}
	n := 0
	for _, att := range e.attachmentsOf(refID) {
		if err := e.adoptSource(obj, meterID, att, sourceID, unit); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// attachmentsOf returns the attachment indices contributing to a meter, in
// registration order.
func (e *Engine) attachmentsOf(meterID int) []int {
	var out []int
	for i := range e.attachments {
		if e.Contributes(meterID, e.attachments[i].variableID) {
			out = append(out, i+1)
		}
	}
	return out
}

// findSources returns attachment indices matching a (key pattern, name)
// reference. An empty or "*" key matches every key.
func (e *Engine) findSources(key, name string) []int {
	wildcard := key == "" || key == "*"
	var out []int
	for i := range e.attachments {
		att := &e.attachments[i]
		if !strings.EqualFold(att.name, name) {
			continue
		}
		if !wildcard && !strings.EqualFold(att.key, key) {
			continue
		}
		out = append(out, i+1)
	}
	return out
}

// findCycle runs a depth-first search over the meter dependency edges and
// names the first cycle found, or returns "".
func findCycle(edges map[int][]int) string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[int]int)
	var cycleAt int

	var visit func(n int) bool
	visit = func(n int) bool {
		color[n] = gray
		for _, next := range edges[n] {
			switch color[next] {
			case gray:
				cycleAt = next
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}
		color[n] = black
		return false
	}

	for n := range edges {
		if color[n] == white && visit(n) {
			return fmt.Sprintf("involving meter id %d", cycleAt)
		}
	}
	return ""
}
