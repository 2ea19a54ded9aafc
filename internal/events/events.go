package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"ambutrack/internal/domain"
)

const (
	AggregateIncident = "incident"
)

const (
	EventIncidentCreated         = "incident.created"
	EventIncidentResponded       = "incident.responded"
	EventIncidentPositionUpdated = "incident.position_updated"
	EventIncidentResolved        = "incident.resolved"
)

type Event struct {
	ID            string
	Type          string
	AggregateType string
	AggregateID   string
	Payload       json.RawMessage
	OccurredAt    time.Time
}

func NewEvent(eventType, aggregateType, aggregateID string, payload any, occurredAt time.Time) Event {
	data, _ := json.Marshal(payload)
	return Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Payload:       data,
		OccurredAt:    occurredAt,
	}
}

func NewIncidentEvent(eventType string, incident *domain.Incident, occurredAt time.Time) Event {
	payload := map[string]any{
		"incident_id":  incident.ID,
		"status":       incident.Status,
		"patient_id":   incident.PatientID,
		"responder_id": incident.ResponderID,
		"occurred_at":  occurredAt,
	}
	if incident.ResponderPosition != nil {
		payload["responder_lat"] = incident.ResponderPosition.Lat
		payload["responder_lng"] = incident.ResponderPosition.Lng
	}
	if incident.ResponderUpdatedAt != nil {
		payload["responder_updated_at"] = *incident.ResponderUpdatedAt
	}
	return NewEvent(eventType, AggregateIncident, incident.ID, payload, occurredAt)
}
