package service

import (
	"ambutrack/internal/domain"
	"ambutrack/internal/geo"
)

// IncidentView is an incident plus derived tracking fields. DistanceKm and
// ETASeconds are straight-line estimates between the responder and the
// patient; the road-accurate route comes from the route endpoint or a
// tracking session.
type IncidentView struct {
	Incident   *domain.Incident
	DistanceKm *float64
	ETASeconds *int64
}

func (s *Service) buildIncidentView(incident *domain.Incident) *IncidentView {
	view := &IncidentView{Incident: incident}
	if incident.ResponderPosition == nil || domain.IsTerminal(incident.Status) {
		return view
	}
	dist := geo.DistanceKm(*incident.ResponderPosition, incident.PatientPosition)
	view.DistanceKm = &dist
	if s.speedMPS > 0 {
		seconds := int64(dist * 1000 / s.speedMPS)
		if seconds < 0 {
			seconds = 0
		}
		view.ETASeconds = &seconds
	}
	return view
}
