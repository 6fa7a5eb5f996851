// Package config loads the simulation configuration from yaml and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"buildsim/internal/calendar"
	"buildsim/internal/units"
)

const (
	defaultStepsPerHour  = 4
	defaultYear          = 2026
	defaultStartDay      = "Sunday"
	defaultEnvironment   = "RUN PERIOD 1"
	defaultTotalYears    = 1
	defaultHTTPAddr      = ":8080"
	defaultSQLitePath    = "out/buildsim.sqlite"
	defaultTextDir       = "out"
	defaultLogLevel      = "info"
	defaultLogFormat     = "console"
	defaultLogFileOn     = false
	defaultLogDirectory  = "log"
	defaultLogFilename   = "buildsim.log"
	defaultLogMaxSizeMB  = 100
	defaultLogMaxBackups = 3
	defaultLogMaxAgeDays = 7
	defaultLogCompress   = false

	envPrefix = "BUILDSIM"
)

type Config struct {
	Sim     SimConfig    `mapstructure:"sim"`
	Output  OutputConfig `mapstructure:"output"`
	HTTP    HTTPConfig   `mapstructure:"http"`
	Log     LogConfig    `mapstructure:"log"`
	Profile string       `mapstructure:"profile"`
}

type SimConfig struct {
	CalendarYear     int    `mapstructure:"year"`
	LeapYear         bool   `mapstructure:"leapYear"`
	StepsPerHour     int    `mapstructure:"stepsPerHour"`
	StartDayOfWeek   string `mapstructure:"startDayOfWeek"`
	WarmupDays       int    `mapstructure:"warmupDays"`
	TotalYears       int    `mapstructure:"totalYears"`
	Environment      string `mapstructure:"environment"`
	MinimumFrequency string `mapstructure:"minimumFrequency"`
}

type OutputConfig struct {
	SQLitePath  string `mapstructure:"sqlitePath"`
	PostgresDSN string `mapstructure:"postgresDSN"`
	TextDir     string `mapstructure:"textDir"`
	Details     bool   `mapstructure:"details"`
}

type HTTPConfig struct {
	Addr       string `mapstructure:"addr"`
	AuthSecret string `mapstructure:"authSecret"`
}

type LogConfig struct {
	Level              string `mapstructure:"level"`
	Format             string `mapstructure:"format"`
	FileLoggingEnabled bool   `mapstructure:"fileLoggingEnabled"`
	Directory          string `mapstructure:"directory"`
	Filename           string `mapstructure:"filename"`
	MaxSize            int    `mapstructure:"maxSize"`
	MaxBackups         int    `mapstructure:"maxBackups"`
	MaxAge             int    `mapstructure:"maxAge"`
	Compress           bool   `mapstructure:"compress"`
}

// Load initializes viper, reads config, applies defaults, unmarshals,
// and validates. An empty path loads defaults and environment only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	configureViper(v, configPath)
	setDefaults(v)

	if configPath != "" {
		if err := readConfigFile(v); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnmarshallingConfig, err)
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func configureViper(v *viper.Viper, configPath string) {
	if configPath != "" {
		v.SetConfigFile(configPath)
	}
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sim.year", defaultYear)
	v.SetDefault("sim.stepsPerHour", defaultStepsPerHour)
	v.SetDefault("sim.startDayOfWeek", defaultStartDay)
	v.SetDefault("sim.totalYears", defaultTotalYears)
	v.SetDefault("sim.environment", defaultEnvironment)
	v.SetDefault("output.sqlitePath", defaultSQLitePath)
	v.SetDefault("output.textDir", defaultTextDir)
	v.SetDefault("http.addr", defaultHTTPAddr)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.format", defaultLogFormat)
	v.SetDefault("log.fileLoggingEnabled", defaultLogFileOn)
	v.SetDefault("log.directory", defaultLogDirectory)
	v.SetDefault("log.filename", defaultLogFilename)
	v.SetDefault("log.maxSize", defaultLogMaxSizeMB)
	v.SetDefault("log.maxBackups", defaultLogMaxBackups)
	v.SetDefault("log.maxAge", defaultLogMaxAgeDays)
	v.SetDefault("log.compress", defaultLogCompress)
}

func readConfigFile(v *viper.Viper) error {
	err := v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return ErrConfigFileMissing
		}
		return fmt.Errorf("%w: %w", ErrReadingConfigFile, err)
	}
	return nil
}

func validateConfig(cfg *Config) error {
	sim := &cfg.Sim
	if sim.CalendarYear < 1 {
		return ErrInvalidYear
	}
	if sim.StepsPerHour < 1 || sim.StepsPerHour > 60 || 60%sim.StepsPerHour != 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidTimeStep, sim.StepsPerHour)
	}
	if sim.WarmupDays < 0 {
		return ErrInvalidWarmup
	}
	if _, err := cfg.StartDay(); err != nil {
		return err
	}
	if sim.MinimumFrequency != "" {
		if _, ok := units.FrequencyFromString(sim.MinimumFrequency); !ok {
			return fmt.Errorf("%w: %q", ErrInvalidFrequency, sim.MinimumFrequency)
		}
	}
	if cfg.Output.SQLitePath == "" && cfg.Output.PostgresDSN == "" && cfg.Output.TextDir == "" {
		return ErrNoOutputs
	}
	return nil
}

// StartDay resolves the configured start weekday name.
func (c *Config) StartDay() (calendar.DayType, error) {
	name := strings.TrimSpace(c.Sim.StartDayOfWeek)
	for dt := calendar.DaySunday; dt <= calendar.DaySaturday; dt++ {
		if strings.EqualFold(dt.String(), name) {
			return dt, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidStartDay, c.Sim.StartDayOfWeek)
}

// MinimumFrequency resolves the configured reporting floor. The second
// return reports whether a floor is configured at all.
func (c *Config) MinimumFrequency() (units.ReportFrequency, bool) {
	if c.Sim.MinimumFrequency == "" {
		return units.FreqHourly, false
	}
	freq, ok := units.FrequencyFromString(c.Sim.MinimumFrequency)
	return freq, ok
}
