package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"ambutrack/internal/domain"
	"ambutrack/internal/events"
	"ambutrack/internal/metrics"
)

// DefaultPositionWriteInterval bounds how often a responder's mirrored
// position may land on the shared record. Writes inside the window are
// dropped, not queued; the next accepted write supersedes them.
const DefaultPositionWriteInterval = 3 * time.Second

type Store interface {
	BeginTx(ctx context.Context) (Tx, error)
	GetIncident(ctx context.Context, id string) (*domain.Incident, error)
	ListIncidents(ctx context.Context, filter IncidentFilter) ([]*domain.Incident, error)
}

type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	GetIncidentForUpdate(ctx context.Context, id string) (*domain.Incident, error)
	CreateIncident(ctx context.Context, incident *domain.Incident) error
	UpdateIncident(ctx context.Context, incident *domain.Incident) error
	EnqueueEvent(ctx context.Context, event events.Event) error
}

type IncidentFilter struct {
	Status *domain.IncidentStatus
	Limit  int
	Offset int
}

type Service struct {
	store         Store
	now           func() time.Time
	writeInterval time.Duration
	speedMPS      float64
	logger        *log.Logger
}

func New(store Store, writeInterval time.Duration, speedMPS float64, logger *log.Logger) *Service {
	if writeInterval <= 0 {
		writeInterval = DefaultPositionWriteInterval
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		store:         store,
		now:           func() time.Time { return time.Now().UTC() },
		writeInterval: writeInterval,
		speedMPS:      speedMPS,
		logger:        logger,
	}
}

// FileSOS creates an ACTIVE incident pinned at the patient's position.
func (s *Service) FileSOS(ctx context.Context, patientID string, pos domain.Coordinate) (*domain.Incident, error) {
	if err := domain.ValidateCoordinate(pos); err != nil {
		return nil, fmt.Errorf("position: %w", domain.ErrInvalid)
	}
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	now := s.now()
	incident := &domain.Incident{
		ID:              uuid.NewString(),
		PatientID:       patientID,
		PatientPosition: pos,
		Status:          domain.IncidentStatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := tx.CreateIncident(ctx, incident); err != nil {
		return nil, err
	}
	if err := tx.EnqueueEvent(ctx, events.NewIncidentEvent(events.EventIncidentCreated, incident, now)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	metrics.IncidentsFiledTotal.Inc()
	return incident, nil
}

// Respond claims an ACTIVE incident for a responder. A second claim on the
// same incident fails with ErrConflict.
func (s *Service) Respond(ctx context.Context, responderID, incidentID string) (*domain.Incident, error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	incident, err := tx.GetIncidentForUpdate(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if domain.IsTerminal(incident.Status) {
		return nil, domain.ErrPrecondition
	}
	if incident.ResponderID != nil {
		if *incident.ResponderID == responderID {
			return incident, nil
		}
		return nil, domain.ErrConflict
	}
	now := s.now()
	incident.Status = domain.IncidentStatusResponding
	incident.ResponderID = &responderID
	incident.RespondedAt = &now
	incident.UpdatedAt = now
	if err := tx.UpdateIncident(ctx, incident); err != nil {
		return nil, err
	}
	if err := tx.EnqueueEvent(ctx, events.NewIncidentEvent(events.EventIncidentResponded, incident, now)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return incident, nil
}

// ReportPosition mirrors a responder position onto the incident record.
// Writes arriving within the write interval of the previous accepted write
// are dropped without error; dropped samples are superseded, never queued.
func (s *Service) ReportPosition(ctx context.Context, responderID, incidentID string, pos domain.Coordinate) (*domain.Incident, error) {
	if err := domain.ValidateCoordinate(pos); err != nil {
		return nil, fmt.Errorf("position: %w", domain.ErrInvalid)
	}
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	incident, err := tx.GetIncidentForUpdate(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if incident.ResponderID == nil || *incident.ResponderID != responderID {
		return nil, domain.ErrForbidden
	}
	if domain.IsTerminal(incident.Status) {
		return nil, domain.ErrPrecondition
	}
	now := s.now()
	if incident.ResponderUpdatedAt != nil && now.Sub(*incident.ResponderUpdatedAt) < s.writeInterval {
		metrics.PositionWritesDroppedTotal.Inc()
		return incident, nil
	}
	incident.ResponderPosition = &pos
	incident.ResponderUpdatedAt = &now
	incident.UpdatedAt = now
	if err := tx.UpdateIncident(ctx, incident); err != nil {
		return nil, err
	}
	if err := tx.EnqueueEvent(ctx, events.NewIncidentEvent(events.EventIncidentPositionUpdated, incident, now)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	metrics.PositionWritesTotal.Inc()
	return incident, nil
}

// Resolve closes an incident. The assigned responder, the filing patient, or
// an admin may resolve; resolving twice is a precondition failure.
func (s *Service) Resolve(ctx context.Context, requesterID, role, incidentID string) (*domain.Incident, error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	incident, err := tx.GetIncidentForUpdate(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if err := authorizeIncidentAccess(incident, requesterID, role); err != nil {
		return nil, err
	}
	if domain.IsTerminal(incident.Status) {
		return nil, domain.ErrPrecondition
	}
	now := s.now()
	incident.Status = domain.IncidentStatusResolved
	incident.ResolvedAt = &now
	incident.UpdatedAt = now
	if err := tx.UpdateIncident(ctx, incident); err != nil {
		return nil, err
	}
	if err := tx.EnqueueEvent(ctx, events.NewIncidentEvent(events.EventIncidentResolved, incident, now)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return incident, nil
}

// GetIncidentView returns the incident with derived tracking fields for the
// requester. Patients see their own incidents, responders the ones they are
// assigned to, admins everything.
func (s *Service) GetIncidentView(ctx context.Context, requesterID, role, incidentID string) (*IncidentView, error) {
	incident, err := s.store.GetIncident(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if err := authorizeIncidentAccess(incident, requesterID, role); err != nil {
		return nil, err
	}
	return s.buildIncidentView(incident), nil
}

// ListOpenIncidents returns unclaimed ACTIVE incidents for the dispatch
// board, oldest first.
func (s *Service) ListOpenIncidents(ctx context.Context) ([]*IncidentView, error) {
	status := domain.IncidentStatusActive
	incidents, err := s.store.ListIncidents(ctx, IncidentFilter{Status: &status})
	if err != nil {
		return nil, err
	}
	views := make([]*IncidentView, 0, len(incidents))
	for _, incident := range incidents {
		if incident.ResponderID != nil {
			continue
		}
		views = append(views, s.buildIncidentView(incident))
	}
	sort.Slice(views, func(i, j int) bool {
		return views[i].Incident.CreatedAt.Before(views[j].Incident.CreatedAt)
	})
	return views, nil
}

func (s *Service) AdminListIncidents(ctx context.Context, filter IncidentFilter) ([]*IncidentView, error) {
	incidents, err := s.store.ListIncidents(ctx, filter)
	if err != nil {
		return nil, err
	}
	views := make([]*IncidentView, 0, len(incidents))
	for _, incident := range incidents {
		views = append(views, s.buildIncidentView(incident))
	}
	sort.Slice(views, func(i, j int) bool {
		return views[i].Incident.CreatedAt.Before(views[j].Incident.CreatedAt)
	})
	return views, nil
}

func authorizeIncidentAccess(incident *domain.Incident, requesterID, role string) error {
	switch role {
	case domain.RoleAdmin:
		return nil
	case domain.RolePatient:
		if incident.PatientID == requesterID {
			return nil
		}
	case domain.RoleResponder:
		if incident.ResponderID != nil && *incident.ResponderID == requesterID {
			return nil
		}
		// Unclaimed incidents are visible to responders so they can respond.
		if incident.ResponderID == nil && incident.Status == domain.IncidentStatusActive {
			return nil
		}
	}
	return domain.ErrForbidden
}
