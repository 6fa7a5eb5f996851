package units

import "strings"

// Unit is a closed enumeration of the physical units carried by report
// variables and meters. UnitUnknown and UnitNone are valid results for
// unrecognized or absent unit strings; callers treat them as non-fatal.
type Unit int

const (
	UnitUnknown Unit = iota
	UnitNone
	UnitJoule
	UnitWatt
	UnitCelsius
	UnitKelvin
	UnitDeltaCelsius
	UnitKilogram
	UnitKilogramPerSecond
	UnitKilogramPerCubicMeter
	UnitCubicMeter
	UnitCubicMeterPerSecond
	UnitMeter
	UnitMeterPerSecond
	UnitSquareMeter
	UnitWattPerSquareMeter
	UnitWattPerMeterKelvin
	UnitWattPerSquareMeterKelvin
	UnitJoulePerKilogram
	UnitJoulePerKilogramKelvin
	UnitJoulePerCubicMeter
	UnitPascal
	UnitPercent
	UnitHour
	UnitMinute
	UnitSecond
	UnitLux
	UnitLumen
	UnitCandela
	UnitAmpere
	UnitVolt
	UnitHertz
	UnitKilogramWaterPerKilogramDryAir
	UnitKilogramPerSquareMeter
	UnitAchPerHour
	UnitClo
	UnitMet
	UnitPartsPerMillion
	UnitRadian
	UnitDegree
	UnitKilometerPerHour
	UnitGramPerSecond
	UnitMilligram
	UnitCubicMeterPerSecondPerSquareMeter
	UnitWattHour
	UnitKiloWattHour
	UnitTherm
	UnitRevPerMinute
	UnitJoulePerSecond
	UnitKilogramPerKilogram
	UnitFraction
)

var unitNames = map[Unit]string{
	UnitNone:                              "",
	UnitJoule:                             "J",
	UnitWatt:                              "W",
	UnitCelsius:                           "C",
	UnitKelvin:                            "K",
	UnitDeltaCelsius:                      "deltaC",
	UnitKilogram:                          "kg",
	UnitKilogramPerSecond:                 "kg/s",
	UnitKilogramPerCubicMeter:             "kg/m3",
	UnitCubicMeter:                        "m3",
	UnitCubicMeterPerSecond:               "m3/s",
	UnitMeter:                             "m",
	UnitMeterPerSecond:                    "m/s",
	UnitSquareMeter:                       "m2",
	UnitWattPerSquareMeter:                "W/m2",
	UnitWattPerMeterKelvin:                "W/m-K",
	UnitWattPerSquareMeterKelvin:          "W/m2-K",
	UnitJoulePerKilogram:                  "J/kg",
	UnitJoulePerKilogramKelvin:            "J/kg-K",
	UnitJoulePerCubicMeter:                "J/m3",
	UnitPascal:                            "Pa",
	UnitPercent:                           "%",
	UnitHour:                              "hr",
	UnitMinute:                            "min",
	UnitSecond:                            "s",
	UnitLux:                               "lux",
	UnitLumen:                             "lum",
	UnitCandela:                           "cd",
	UnitAmpere:                            "A",
	UnitVolt:                              "V",
	UnitHertz:                             "Hz",
	UnitKilogramWaterPerKilogramDryAir:    "kgWater/kgDryAir",
	UnitKilogramPerSquareMeter:            "kg/m2",
	UnitAchPerHour:                        "ach",
	UnitClo:                               "clo",
	UnitMet:                               "met",
	UnitPartsPerMillion:                   "ppm",
	UnitRadian:                            "rad",
	UnitDegree:                            "deg",
	UnitKilometerPerHour:                  "km/h",
	UnitGramPerSecond:                     "g/s",
	UnitMilligram:                         "mg",
	UnitCubicMeterPerSecondPerSquareMeter: "m3/s-m2",
	UnitWattHour:                          "Wh",
	UnitKiloWattHour:                      "kWh",
	UnitTherm:                             "therm",
	UnitRevPerMinute:                      "rev/min",
	UnitJoulePerSecond:                    "J/s",
	UnitKilogramPerKilogram:               "kg/kg",
	UnitFraction:                          "fraction",
}

var unitsByName = func() map[string]Unit {
	m := make(map[string]Unit, len(unitNames))
	for unit, name := range unitNames {
		m[strings.ToLower(name)] = unit
	}
	return m
}()

// String returns the canonical unit string.
func (u Unit) String() string {
	if name, ok := unitNames[u]; ok {
		return name
	}
	return "unknown"
}

// UnitFromString maps a canonical unit string to its enum. An empty string is
// UnitNone; anything unrecognized is UnitUnknown, never an error.
func UnitFromString(s string) Unit {
	s = strings.TrimSpace(s)
	if s == "" {
		return UnitNone
	}
	if unit, ok := unitsByName[strings.ToLower(s)]; ok {
		return unit
	}
	return UnitUnknown
}

// ScheduleUnitType is the metadata unit tag carried by ScheduleTypeLimits.
// It only labels schedules; it never changes computed values.
type ScheduleUnitType int

const (
	ScheduleUnitDimensionless ScheduleUnitType = iota
	ScheduleUnitTemperature
	ScheduleUnitDeltaTemperature
	ScheduleUnitPrecipitationRate
	ScheduleUnitAngle
	ScheduleUnitConvectionCoefficient
	ScheduleUnitActivityLevel
	ScheduleUnitVelocity
	ScheduleUnitCapacity
	ScheduleUnitPower
	ScheduleUnitAvailability
	ScheduleUnitPercentUnit
	ScheduleUnitControlMode
	ScheduleUnitMode
)

var scheduleUnitNames = map[string]ScheduleUnitType{
	"dimensionless":         ScheduleUnitDimensionless,
	"temperature":           ScheduleUnitTemperature,
	"deltatemperature":      ScheduleUnitDeltaTemperature,
	"precipitationrate":     ScheduleUnitPrecipitationRate,
	"angle":                 ScheduleUnitAngle,
	"convectioncoefficient": ScheduleUnitConvectionCoefficient,
	"activitylevel":         ScheduleUnitActivityLevel,
	"velocity":              ScheduleUnitVelocity,
	"capacity":              ScheduleUnitCapacity,
	"power":                 ScheduleUnitPower,
	"availability":          ScheduleUnitAvailability,
	"percent":               ScheduleUnitPercentUnit,
	"control":               ScheduleUnitControlMode,
	"mode":                  ScheduleUnitMode,
}

// ScheduleUnitFromString resolves a ScheduleTypeLimits unit-type name.
// Unknown names return ok=false; the caller warns and keeps dimensionless.
func ScheduleUnitFromString(s string) (ScheduleUnitType, bool) {
	unit, ok := scheduleUnitNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return ScheduleUnitDimensionless, false
	}
	return unit, true
}
