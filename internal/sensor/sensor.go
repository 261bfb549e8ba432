// Package sensor samples the virtual detection zones that report vehicle demand
// to the signal controller.
package sensor

import (
	"github.com/cxd309/junction-sim/internal/layout"
	"github.com/cxd309/junction-sim/internal/vehicle"
	"github.com/samber/lo"
)

// Zone is a detection window along one street's travel coordinate. A vehicle
// is inside when its coordinate lies strictly between Min and Max.
type Zone struct {
	Street layout.Street `json:"street"`
	Min    float64       `json:"min"`
	Max    float64       `json:"max"`
}

// Contains reports whether v is detected by the zone.
func (z Zone) Contains(v *vehicle.Vehicle) bool {
	if v.Street != z.Street {
		return false
	}
	c := layout.Longitudinal(z.Street, v.Position)
	return c > z.Min && c < z.Max
}

// Zones holds one zone per street, indexed by layout.Street.Index.
type Zones [2]Zone

// DefaultZones builds the standard zones from the layout constants.
func DefaultZones() Zones {
	return Zones{
		{Street: layout.Vertical, Min: layout.SensorZoneCenterVertical - layout.SensorZoneLength/2, Max: layout.SensorZoneCenterVertical + layout.SensorZoneLength/2},
		{Street: layout.Horizontal, Min: layout.SensorZoneCenterHorizontal - layout.SensorZoneLength/2, Max: layout.SensorZoneCenterHorizontal + layout.SensorZoneLength/2},
	}
}

// Counts is the occupancy of each zone.
type Counts struct {
	Vertical   int `json:"vertical"`
	Horizontal int `json:"horizontal"`
}

// Sample counts the vehicles inside each zone. It has no side effects.
func (zs Zones) Sample(vehicles []*vehicle.Vehicle) Counts {
	return Counts{
		Vertical:   lo.CountBy(vehicles, zs[layout.Vertical.Index()].Contains),
		Horizontal: lo.CountBy(vehicles, zs[layout.Horizontal.Index()].Contains),
	}
}
