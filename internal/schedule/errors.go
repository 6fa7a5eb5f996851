package schedule

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

var (
	// ErrCompileFailed is returned after all objects have been checked and
	// at least one severe error was collected.
	ErrCompileFailed = errors.New("schedule: compile failed")
	// ErrIndexOutOfRange guards lookups against stale or corrupted handles.
	ErrIndexOutOfRange = errors.New("schedule: index out of range")
	// ErrUnknownSchedule is returned when a name does not resolve.
	ErrUnknownSchedule = errors.New("schedule: unknown schedule")
	// ErrNotExternal is returned when a live setter targets a schedule that
	// is not externally driven.
	ErrNotExternal = errors.New("schedule: not externally driven")
)

// Diagnostics accumulates validation findings across an entire compile pass.
// Severe findings do not abort processing; they are reported together so a
// user can fix every schedule problem in one edit-rerun cycle.
type Diagnostics struct {
	log      *zap.Logger
	warnings []string
	severe   []string
}

// NewDiagnostics builds a collector logging through the given logger.
func NewDiagnostics(log *zap.Logger) *Diagnostics {
	if log == nil {
		log = zap.NewNop()
	}
	return &Diagnostics{log: log}
}

// Warnf records a recoverable finding.
func (d *Diagnostics) Warnf(object, name, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	d.warnings = append(d.warnings, fmt.Sprintf("%s=%s: %s", object, name, msg))
	d.log.Warn(msg, zap.String("object", object), zap.String("name", name))
}

// Severef records a finding that makes the compile pass fatal once all
// objects have been checked.
func (d *Diagnostics) Severef(object, name, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	d.severe = append(d.severe, fmt.Sprintf("%s=%s: %s", object, name, msg))
	d.log.Error(msg, zap.String("object", object), zap.String("name", name))
}

// Warnings returns the recoverable findings collected so far.
func (d *Diagnostics) Warnings() []string { return d.warnings }

// Severe returns the fatal findings collected so far.
func (d *Diagnostics) Severe() []string { return d.severe }

// Err returns nil when no severe finding was collected, otherwise a single
// error naming every severe finding.
func (d *Diagnostics) Err() error {
	if len(d.severe) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d severe error(s): %s", ErrCompileFailed, len(d.severe), strings.Join(d.severe, "; "))
}
