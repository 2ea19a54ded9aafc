package transport

import (
	"time"

	"ambutrack/internal/domain"
	"ambutrack/internal/route"
	"ambutrack/internal/service"
)

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type IncidentResponse struct {
	ID                 string      `json:"id"`
	PatientID          string      `json:"patient_id"`
	PatientPosition    Coordinate  `json:"patient_position"`
	Status             string      `json:"status"`
	ResponderID        *string     `json:"responder_id,omitempty"`
	ResponderPosition  *Coordinate `json:"responder_position,omitempty"`
	ResponderUpdatedAt *time.Time  `json:"responder_updated_at,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
	RespondedAt        *time.Time  `json:"responded_at,omitempty"`
	ResolvedAt         *time.Time  `json:"resolved_at,omitempty"`
}

type IncidentViewResponse struct {
	Incident   IncidentResponse `json:"incident"`
	DistanceKm *float64         `json:"distance_km,omitempty"`
	ETASeconds *int64           `json:"eta_seconds,omitempty"`
}

type RouteResponse struct {
	Coordinates   []Coordinate `json:"coordinates"`
	DistanceLabel string       `json:"distance_label"`
	DurationLabel string       `json:"duration_label"`
	ComputedAt    time.Time    `json:"computed_at"`
	IsFallback    bool         `json:"is_fallback"`
}

func FromRouteState(state route.RouteState) RouteResponse {
	coords := make([]Coordinate, 0, len(state.Coordinates))
	for _, c := range state.Coordinates {
		coords = append(coords, Coordinate{Lat: c.Lat, Lng: c.Lng})
	}
	return RouteResponse{
		Coordinates:   coords,
		DistanceLabel: state.DistanceLabel,
		DurationLabel: state.DurationLabel,
		ComputedAt:    state.ComputedAt,
		IsFallback:    state.IsFallback,
	}
}

func FromIncident(incident *domain.Incident) IncidentResponse {
	resp := IncidentResponse{
		ID:                 incident.ID,
		PatientID:          incident.PatientID,
		PatientPosition:    Coordinate{Lat: incident.PatientPosition.Lat, Lng: incident.PatientPosition.Lng},
		Status:             string(incident.Status),
		ResponderID:        incident.ResponderID,
		ResponderUpdatedAt: incident.ResponderUpdatedAt,
		CreatedAt:          incident.CreatedAt,
		UpdatedAt:          incident.UpdatedAt,
		RespondedAt:        incident.RespondedAt,
		ResolvedAt:         incident.ResolvedAt,
	}
	if incident.ResponderPosition != nil {
		resp.ResponderPosition = &Coordinate{Lat: incident.ResponderPosition.Lat, Lng: incident.ResponderPosition.Lng}
	}
	return resp
}

func FromIncidentView(view *service.IncidentView) IncidentViewResponse {
	return IncidentViewResponse{
		Incident:   FromIncident(view.Incident),
		DistanceKm: view.DistanceKm,
		ETASeconds: view.ETASeconds,
	}
}
