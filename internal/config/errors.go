package config

import "errors"

var (
	ErrReadingConfigFile   = errors.New("failed to read config file")
	ErrUnmarshallingConfig = errors.New("failed to unmarshal config")
	ErrConfigFileMissing   = errors.New("config file not found")
	ErrInvalidTimeStep     = errors.New("simulation stepsPerHour must evenly divide 60")
	ErrInvalidYear         = errors.New("simulation year must be positive")
	ErrInvalidWarmup       = errors.New("simulation warmupDays cannot be negative")
	ErrInvalidStartDay     = errors.New("simulation startDayOfWeek is not a weekday name")
	ErrInvalidFrequency    = errors.New("unrecognized reporting frequency name")
	ErrNoOutputs           = errors.New("at least one output sink must be configured")
)
