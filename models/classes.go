// Package models - Class semantics and label vocabulary for the scooter classifiers.
package models

import "fmt"

// PresenceClass is the output class of the presence model.
type PresenceClass int

const (
	// PresenceAbsent means no scooter is visible in the photo.
	PresenceAbsent PresenceClass = 0
	// PresencePartial means a scooter is partially visible.
	PresencePartial PresenceClass = 1
	// PresenceFull means a scooter is fully visible.
	PresenceFull PresenceClass = 2
)

// String returns the human-readable name of the presence class.
func (c PresenceClass) String() string {
	switch c {
	case PresenceAbsent:
		return "absent"
	case PresencePartial:
		return "partial"
	case PresenceFull:
		return "full"
	default:
		return fmt.Sprintf("presence(%d)", int(c))
	}
}

// Valid reports whether the value is one of the three presence outputs.
func (c PresenceClass) Valid() bool {
	return c >= PresenceAbsent && c <= PresenceFull
}

// ParkingClass is the output class of the parking-status model.
type ParkingClass int

const (
	// ParkingUndetermined means the model could not call inside vs outside.
	ParkingUndetermined ParkingClass = 0
	// ParkingInside means the scooter sits inside a designated zone.
	ParkingInside ParkingClass = 1
	// ParkingOutside means the scooter sits outside every designated zone.
	ParkingOutside ParkingClass = 2
)

// String returns the human-readable name of the parking class.
func (c ParkingClass) String() string {
	switch c {
	case ParkingUndetermined:
		return "undetermined"
	case ParkingInside:
		return "inside"
	case ParkingOutside:
		return "outside"
	default:
		return fmt.Sprintf("parking(%d)", int(c))
	}
}

// Valid reports whether the value is one of the three parking outputs.
func (c ParkingClass) Valid() bool {
	return c >= ParkingUndetermined && c <= ParkingOutside
}

// Final labels surfaced to callers of the classification pipeline.
const (
	// LabelNoScooter is the outcome when the presence model sees no scooter.
	LabelNoScooter = "no_scooter"
	// LabelInside is the outcome when the scooter is parked inside a zone.
	LabelInside = "inside"
	// LabelOutside is the outcome when the scooter is parked outside every zone.
	LabelOutside = "outside"
	// LabelHardToSay is the outcome when parking status cannot be determined.
	LabelHardToSay = "hard_to_say"
)
