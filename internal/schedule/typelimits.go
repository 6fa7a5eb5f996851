package schedule

import (
	"strings"

	"buildsim/internal/input"
	"buildsim/internal/units"
)

// TypeLimits validates day-schedule values and labels schedules with a unit
// type. It never mutates computed values; out-of-range values only warn.
type TypeLimits struct {
	Name     string
	Limited  bool
	Min      float64
	Max      float64
	Discrete bool
	UnitType units.ScheduleUnitType
}

const classScheduleTypeLimits = "ScheduleTypeLimits"

// compileTypeLimits processes every ScheduleTypeLimits object. Unknown unit
// types warn; min above max is severe.
func (c *Compiler) compileTypeLimits(deck *input.Deck) {
	for _, obj := range deck.ObjectsOf(classScheduleTypeLimits) {
		if obj.Name == "" {
			c.diags.Severef(classScheduleTypeLimits, obj.Name, "blank name")
			continue
		}
		if _, dup := c.typeLimitsByName[keyOf(obj.Name)]; dup {
			c.diags.Severef(classScheduleTypeLimits, obj.Name, "duplicate name")
			continue
		}

		limits := TypeLimits{Name: obj.Name}
		if len(obj.Number) >= 2 {
			limits.Limited = true
			limits.Min = obj.NumberAt(0)
			limits.Max = obj.NumberAt(1)
			if limits.Min > limits.Max {
				c.diags.Severef(classScheduleTypeLimits, obj.Name, "minimum %g exceeds maximum %g", limits.Min, limits.Max)
			}
		}
		switch strings.ToLower(obj.AlphaAt(0)) {
		case "", "continuous", "real":
			limits.Discrete = false
		case "discrete", "integer":
			limits.Discrete = true
		default:
			c.diags.Warnf(classScheduleTypeLimits, obj.Name, "unrecognized numeric type %q, assuming Continuous", obj.AlphaAt(0))
		}
		if unitName := obj.AlphaAt(1); unitName != "" {
			unitType, ok := units.ScheduleUnitFromString(unitName)
			if !ok {
				c.diags.Warnf(classScheduleTypeLimits, obj.Name, "unrecognized unit type %q", unitName)
			}
			limits.UnitType = unitType
		}

		c.typeLimits = append(c.typeLimits, limits)
		c.typeLimitsByName[keyOf(obj.Name)] = len(c.typeLimits)
	}
}

// resolveTypeLimits maps a referenced type-limits name to its id. A missing
// reference warns and leaves the day schedule unconstrained.
func (c *Compiler) resolveTypeLimits(object, owner, name string) int {
	if name == "" {
		return 0
	}
	if id, ok := c.typeLimitsByName[keyOf(name)]; ok {
		return id
	}
	c.diags.Warnf(object, owner, "ScheduleTypeLimits %q not found", name)
	return 0
}

// checkValueAgainstLimits warns when a compiled value violates the limits.
func (c *Compiler) checkValueAgainstLimits(object, owner string, limitsID int, value float64) {
	if limitsID <= 0 || limitsID > len(c.typeLimits) {
		return
	}
	limits := c.typeLimits[limitsID-1]
	if limits.Limited && (value < limits.Min || value > limits.Max) {
		c.diags.Warnf(object, owner, "value %g outside ScheduleTypeLimits %q range [%g,%g]", value, limits.Name, limits.Min, limits.Max)
		return
	}
	if limits.Discrete && value != float64(int64(value)) {
		c.diags.Warnf(object, owner, "value %g is not an integer but ScheduleTypeLimits %q is Discrete", value, limits.Name)
	}
}

func keyOf(name string) string { return strings.ToLower(strings.TrimSpace(name)) }
