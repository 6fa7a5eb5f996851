package variable

import "errors"

var (
	// ErrUnknownHandle reports an update against a handle Setup never issued.
	ErrUnknownHandle = errors.New("variable: unknown handle")
	// ErrUnknownSchedule reports an output request gated on a schedule the
	// compiler does not know.
	ErrUnknownSchedule = errors.New("variable: unknown gating schedule")
	// ErrNoScheduleSource reports a schedule-gated request in a registry
	// built without a schedule evaluator.
	ErrNoScheduleSource = errors.New("variable: no schedule evaluator configured")
)
