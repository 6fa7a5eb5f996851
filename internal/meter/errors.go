package meter

import "errors"

var (
	// ErrDuplicateMeter reports a second AddMeter call for an existing name.
	ErrDuplicateMeter = errors.New("meter: requested to add meter which was already present")
	// ErrIllegalVocabulary reports a resource/end-use/group string outside
	// the closed enumeration.
	ErrIllegalVocabulary = errors.New("meter: illegal vocabulary entered")
	// ErrUnknownMeter reports a lookup for a meter name never added.
	ErrUnknownMeter = errors.New("meter: unknown meter")
	// ErrMeterCycle reports a custom-meter dependency cycle.
	ErrMeterCycle = errors.New("meter: custom meter dependency cycle")
	// ErrNotOnSource reports a decrement variable that does not contribute
	// to the named source meter.
	ErrNotOnSource = errors.New("meter: decrement variable not attached to source meter")
)
