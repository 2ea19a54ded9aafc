package domain

import "time"

const (
	RoleAdmin     = "admin"
	RolePatient   = "patient"
	RoleResponder = "responder"
)

type IncidentStatus string

const (
	IncidentStatusActive     IncidentStatus = "ACTIVE"
	IncidentStatusResponding IncidentStatus = "RESPONDING"
	IncidentStatusResolved   IncidentStatus = "RESOLVED"
)

type Coordinate struct {
	Lat float64
	Lng float64
}

// Incident is the shared record for one emergency alert. PatientPosition is
// fixed at filing time; ResponderPosition is mirrored by the responding
// unit's tracker and has exactly one writer at a time.
type Incident struct {
	ID                 string
	PatientID          string
	PatientPosition    Coordinate
	Status             IncidentStatus
	ResponderID        *string
	ResponderPosition  *Coordinate
	ResponderUpdatedAt *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
	RespondedAt        *time.Time
	ResolvedAt         *time.Time
}

func IsTerminal(status IncidentStatus) bool {
	return status == IncidentStatusResolved
}
