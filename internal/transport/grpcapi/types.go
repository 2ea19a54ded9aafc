package grpcapi

import "ambutrack/internal/transport"

type TokenRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

type FileSOSRequest struct {
	Position transport.Coordinate `json:"position"`
}

type IncidentIDRequest struct {
	IncidentID string `json:"incident_id"`
}

type ReportPositionRequest struct {
	IncidentID string  `json:"incident_id"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
}

type ListIncidentsRequest struct {
	Status string `json:"status"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}
