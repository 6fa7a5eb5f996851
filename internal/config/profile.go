package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"buildsim/internal/units"
)

// VariableRequest is one Output:Variable line of the reporting profile.
type VariableRequest struct {
	Key       string `yaml:"key"`
	Name      string `yaml:"name"`
	Frequency string `yaml:"frequency"`
	Schedule  string `yaml:"schedule"`
}

// MeterRequest is one Output:Meter line of the reporting profile.
type MeterRequest struct {
	Name       string `yaml:"name"`
	Frequency  string `yaml:"frequency"`
	Cumulative bool   `yaml:"cumulative"`
}

// Profile is the yaml reporting profile: which variables and meters a
// run reports, and at what cadence.
type Profile struct {
	Variables       []VariableRequest `yaml:"variables"`
	Meters          []MeterRequest    `yaml:"meters"`
	ReportSchedules bool              `yaml:"report_schedules"`
	ReportDetails   bool              `yaml:"report_details"`
}

// LoadProfile loads the reporting profile from yaml. The path argument
// wins over the BUILDSIM_PROFILE environment variable; with neither set
// an empty profile is returned.
func LoadProfile(path string) (Profile, error) {
	var profile Profile
	if path == "" {
		path = os.Getenv("BUILDSIM_PROFILE")
	}
	if path == "" {
		return profile, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return profile, err
	}
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return profile, err
	}
	return profile, profile.validate()
}

func (p Profile) validate() error {
	for _, v := range p.Variables {
		if v.Name == "" {
			return fmt.Errorf("config: variable request without a name")
		}
		if _, ok := units.FrequencyFromString(v.Frequency); !ok {
			return fmt.Errorf("%w: %q on variable %q", ErrInvalidFrequency, v.Frequency, v.Name)
		}
	}
	for _, m := range p.Meters {
		if m.Name == "" {
			return fmt.Errorf("config: meter request without a name")
		}
		if _, ok := units.FrequencyFromString(m.Frequency); !ok {
			return fmt.Errorf("%w: %q on meter %q", ErrInvalidFrequency, m.Frequency, m.Name)
		}
	}
	return nil
}

// ResolvedFrequency resolves the request's frequency name, defaulting
// to hourly.
func (v VariableRequest) ResolvedFrequency() units.ReportFrequency {
	freq, _ := units.FrequencyFromString(v.Frequency)
	return freq
}

// ResolvedFrequency resolves the meter request's frequency name.
func (m MeterRequest) ResolvedFrequency() units.ReportFrequency {
	freq, _ := units.FrequencyFromString(m.Frequency)
	return freq
}
