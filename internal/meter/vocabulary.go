package meter

import (
	"fmt"
	"strings"
)

// ResourceType identifies the fuel or commodity a meter aggregates.
type ResourceType int

const (
	ResourceElectricity ResourceType = iota + 1
	ResourceNaturalGas
	ResourceGasoline
	ResourceDiesel
	ResourceCoal
	ResourcePropane
	ResourceFuelOilNo1
	ResourceFuelOilNo2
	ResourceOtherFuel1
	ResourceOtherFuel2
	ResourceDistrictCooling
	ResourceDistrictHeating
	ResourceSteam
	ResourceWater
	ResourceMainsWater
	ResourceRainWater
	ResourceWellWater
	ResourceOnSiteWater
	ResourceEnergyTransfer
)

var resourceNames = map[ResourceType]string{
	ResourceElectricity:     "Electricity",
	ResourceNaturalGas:      "NaturalGas",
	ResourceGasoline:        "Gasoline",
	ResourceDiesel:          "Diesel",
	ResourceCoal:            "Coal",
	ResourcePropane:         "Propane",
	ResourceFuelOilNo1:      "FuelOilNo1",
	ResourceFuelOilNo2:      "FuelOilNo2",
	ResourceOtherFuel1:      "OtherFuel1",
	ResourceOtherFuel2:      "OtherFuel2",
	ResourceDistrictCooling: "DistrictCooling",
	ResourceDistrictHeating: "DistrictHeating",
	ResourceSteam:           "Steam",
	ResourceWater:           "Water",
	ResourceMainsWater:      "MainsWater",
	ResourceRainWater:       "RainWater",
	ResourceWellWater:       "WellWater",
	ResourceOnSiteWater:     "OnSiteWater",
	ResourceEnergyTransfer:  "EnergyTransfer",
}

var resourcesByName = buildLookup(resourceNames)

func (r ResourceType) String() string { return resourceNames[r] }

// ResourceTypeFromString resolves a free-text resource type against the
// closed enumeration.
func ResourceTypeFromString(s string) (ResourceType, error) {
	if r, ok := resourcesByName[normalize(s)]; ok {
		return r, nil
	}
	return 0, fmt.Errorf("%w: resource type %q", ErrIllegalVocabulary, s)
}

// EndUse identifies the consumption category within a resource. EndUseNone
// is valid: facility-level variables carry no end use.
type EndUse int

const (
	EndUseNone EndUse = iota
	EndUseHeating
	EndUseCooling
	EndUseInteriorLights
	EndUseExteriorLights
	EndUseInteriorEquipment
	EndUseExteriorEquipment
	EndUseFans
	EndUsePumps
	EndUseHeatRejection
	EndUseHumidifier
	EndUseHeatRecovery
	EndUseWaterSystems
	EndUseRefrigeration
	EndUseCogeneration
)

var endUseNames = map[EndUse]string{
	EndUseHeating:           "Heating",
	EndUseCooling:           "Cooling",
	EndUseInteriorLights:    "InteriorLights",
	EndUseExteriorLights:    "ExteriorLights",
	EndUseInteriorEquipment: "InteriorEquipment",
	EndUseExteriorEquipment: "ExteriorEquipment",
	EndUseFans:              "Fans",
	EndUsePumps:             "Pumps",
	EndUseHeatRejection:     "HeatRejection",
	EndUseHumidifier:        "Humidifier",
	EndUseHeatRecovery:      "HeatRecovery",
	EndUseWaterSystems:      "WaterSystems",
	EndUseRefrigeration:     "Refrigeration",
	EndUseCogeneration:      "Cogeneration",
}

var endUsesByName = buildLookup(endUseNames)

func (e EndUse) String() string { return endUseNames[e] }

// EndUseFromString resolves a free-text end use. The empty string resolves
// to EndUseNone.
func EndUseFromString(s string) (EndUse, error) {
	if strings.TrimSpace(s) == "" {
		return EndUseNone, nil
	}
	if e, ok := endUsesByName[normalize(s)]; ok {
		return e, nil
	}
	return 0, fmt.Errorf("%w: end use %q", ErrIllegalVocabulary, s)
}

// Group identifies the building subsystem a meter belongs to. GroupNone is
// valid for facility-wide meters.
type Group int

const (
	GroupNone Group = iota
	GroupBuilding
	GroupHVAC
	GroupPlant
)

var groupNames = map[Group]string{
	GroupBuilding: "Building",
	GroupHVAC:     "HVAC",
	GroupPlant:    "Plant",
}

var groupsByName = buildLookup(groupNames)

func (g Group) String() string { return groupNames[g] }

// GroupFromString resolves a free-text group. The empty string resolves to
// GroupNone.
func GroupFromString(s string) (Group, error) {
	if strings.TrimSpace(s) == "" {
		return GroupNone, nil
	}
	if g, ok := groupsByName[normalize(s)]; ok {
		return g, nil
	}
	return 0, fmt.Errorf("%w: group %q", ErrIllegalVocabulary, s)
}

func normalize(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
}

func buildLookup[K comparable](names map[K]string) map[string]K {
	m := make(map[string]K, len(names))
	for k, name := range names {
		m[normalize(name)] = k
	}
	return m
}
