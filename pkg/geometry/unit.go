package geometry

import "fmt"

// Unit is a linear distance unit for geodesic measurements
type Unit string

const (
	UnitMeters     Unit = "meters"
	UnitKilometers Unit = "kilometers"
	UnitMiles      Unit = "miles"
	UnitFeet       Unit = "feet"
)

func ParseUnit(value string) (Unit, error) {
	switch Unit(value) {
	case UnitMeters, UnitKilometers, UnitMiles, UnitFeet:
		return Unit(value), nil
	}

	return "", fmt.Errorf("unknown distance unit %q", value)
}

func (u Unit) FromMeters(meters float64) float64 {
	switch u {
	case UnitKilometers:
		return meters / 1000
	case UnitMiles:
		return meters / 1609.344
	case UnitFeet:
		return meters / 0.3048
	default:
		return meters
	}
}
