package domain

import (
	"fmt"
	"math"
)

func ValidateCoordinate(c Coordinate) error {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || math.IsNaN(c.Lng) || math.IsInf(c.Lng, 0) {
		return fmt.Errorf("coordinate not finite")
	}
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("lat out of range")
	}
	if c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("lng out of range")
	}
	return nil
}

func ValidateRole(role string) bool {
	switch role {
	case RoleAdmin, RolePatient, RoleResponder:
		return true
	default:
		return false
	}
}
