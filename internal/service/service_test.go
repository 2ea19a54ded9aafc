package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ambutrack/internal/domain"
	"ambutrack/internal/events"
)

type memStore struct {
	mu        sync.Mutex
	incidents map[string]*domain.Incident
	enqueued  []events.Event
}

type memTx struct {
	store  *memStore
	closed bool
}

func newMemStore() *memStore {
	return &memStore{incidents: make(map[string]*domain.Incident)}
}

func (m *memStore) BeginTx(ctx context.Context) (Tx, error) {
	m.mu.Lock()
	return &memTx{store: m}, nil
}

func (m *memStore) GetIncident(ctx context.Context, id string) (*domain.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	incident, ok := m.incidents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copy := *incident
	return &copy, nil
}

func (m *memStore) ListIncidents(ctx context.Context, filter IncidentFilter) ([]*domain.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var incidents []*domain.Incident
	for _, incident := range m.incidents {
		if filter.Status != nil && incident.Status != *filter.Status {
			continue
		}
		copy := *incident
		incidents = append(incidents, &copy)
	}
	return incidents, nil
}

func (t *memTx) Commit(ctx context.Context) error {
	return t.close()
}

func (t *memTx) Rollback(ctx context.Context) error {
	return t.close()
}

func (t *memTx) close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.store.mu.Unlock()
	return nil
}

func (t *memTx) GetIncidentForUpdate(ctx context.Context, id string) (*domain.Incident, error) {
	incident, ok := t.store.incidents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copy := *incident
	return &copy, nil
}

func (t *memTx) CreateIncident(ctx context.Context, incident *domain.Incident) error {
	if _, ok := t.store.incidents[incident.ID]; ok {
		return domain.ErrConflict
	}
	copy := *incident
	t.store.incidents[incident.ID] = &copy
	return nil
}

func (t *memTx) UpdateIncident(ctx context.Context, incident *domain.Incident) error {
	copy := *incident
	t.store.incidents[incident.ID] = &copy
	return nil
}

func (t *memTx) EnqueueEvent(ctx context.Context, event events.Event) error {
	t.store.enqueued = append(t.store.enqueued, event)
	return nil
}

func seedIncident(store *memStore, incident *domain.Incident) {
	copy := *incident
	store.incidents[incident.ID] = &copy
}

func TestFileSOSCreatesActiveIncident(t *testing.T) {
	store := newMemStore()
	svc := New(store, 0, 10, nil)

	incident, err := svc.FileSOS(context.Background(), "patient-1", domain.Coordinate{Lat: 37.77, Lng: -122.42})
	if err != nil {
		t.Fatalf("file sos: %v", err)
	}
	if incident.Status != domain.IncidentStatusActive {
		t.Fatalf("expected ACTIVE, got %s", incident.Status)
	}
	if incident.ResponderID != nil || incident.ResponderPosition != nil {
		t.Fatalf("expected no responder on a fresh incident")
	}
	if len(store.enqueued) != 1 || store.enqueued[0].Type != events.EventIncidentCreated {
		t.Fatalf("expected one incident.created event")
	}
}

func TestFileSOSRejectsBadCoordinate(t *testing.T) {
	svc := New(newMemStore(), 0, 10, nil)
	_, err := svc.FileSOS(context.Background(), "patient-1", domain.Coordinate{Lat: 91, Lng: 0})
	if !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestRespondConcurrency(t *testing.T) {
	store := newMemStore()
	svc := New(store, 0, 10, nil)
	now := time.Now().UTC()
	seedIncident(store, &domain.Incident{
		ID:              "inc-1",
		PatientID:       "patient-1",
		PatientPosition: domain.Coordinate{Lat: 1, Lng: 1},
		Status:          domain.IncidentStatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	})

	var wg sync.WaitGroup
	wg.Add(2)
	results := make(chan error, 2)
	go func() {
		defer wg.Done()
		_, err := svc.Respond(context.Background(), "unit-a", "inc-1")
		results <- err
	}()
	go func() {
		defer wg.Done()
		_, err := svc.Respond(context.Background(), "unit-b", "inc-1")
		results <- err
	}()
	wg.Wait()
	close(results)

	var success, conflict int
	for err := range results {
		if err == nil {
			success++
			continue
		}
		if errors.Is(err, domain.ErrConflict) {
			conflict++
		}
	}
	if success != 1 || conflict != 1 {
		t.Fatalf("expected one claim and one conflict, got success=%d conflict=%d", success, conflict)
	}
}

func TestRespondIsIdempotentForSameResponder(t *testing.T) {
	store := newMemStore()
	svc := New(store, 0, 10, nil)
	now := time.Now().UTC()
	seedIncident(store, &domain.Incident{
		ID:              "inc-1",
		PatientID:       "patient-1",
		PatientPosition: domain.Coordinate{Lat: 1, Lng: 1},
		Status:          domain.IncidentStatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	})

	if _, err := svc.Respond(context.Background(), "unit-a", "inc-1"); err != nil {
		t.Fatalf("first respond: %v", err)
	}
	incident, err := svc.Respond(context.Background(), "unit-a", "inc-1")
	if err != nil {
		t.Fatalf("repeat respond: %v", err)
	}
	if incident.Status != domain.IncidentStatusResponding {
		t.Fatalf("expected RESPONDING, got %s", incident.Status)
	}
}

func TestReportPositionWriteGate(t *testing.T) {
	store := newMemStore()
	svc := New(store, 3*time.Second, 10, nil)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	current := base
	svc.now = func() time.Time { return current }

	responderID := "unit-a"
	seedIncident(store, &domain.Incident{
		ID:              "inc-1",
		PatientID:       "patient-1",
		PatientPosition: domain.Coordinate{Lat: 1, Lng: 1},
		Status:          domain.IncidentStatusResponding,
		ResponderID:     &responderID,
		CreatedAt:       base,
		UpdatedAt:       base,
	})

	first := domain.Coordinate{Lat: 37.78, Lng: -122.41}
	if _, err := svc.ReportPosition(context.Background(), responderID, "inc-1", first); err != nil {
		t.Fatalf("first report: %v", err)
	}

	// 2s later: inside the write window, dropped.
	current = base.Add(2 * time.Second)
	second := domain.Coordinate{Lat: 37.79, Lng: -122.40}
	if _, err := svc.ReportPosition(context.Background(), responderID, "inc-1", second); err != nil {
		t.Fatalf("gated report: %v", err)
	}
	incident, _ := store.GetIncident(context.Background(), "inc-1")
	if incident.ResponderPosition == nil || *incident.ResponderPosition != first {
		t.Fatalf("expected gated write to be dropped")
	}
	if !incident.ResponderUpdatedAt.Equal(base) {
		t.Fatalf("expected responder timestamp unchanged")
	}

	// 3s after the accepted write: gate reopens.
	current = base.Add(3 * time.Second)
	if _, err := svc.ReportPosition(context.Background(), responderID, "inc-1", second); err != nil {
		t.Fatalf("reopened report: %v", err)
	}
	incident, _ = store.GetIncident(context.Background(), "inc-1")
	if incident.ResponderPosition == nil || *incident.ResponderPosition != second {
		t.Fatalf("expected write after the window to land")
	}
}

func TestReportPositionWrongResponder(t *testing.T) {
	store := newMemStore()
	svc := New(store, 0, 10, nil)
	responderID := "unit-a"
	now := time.Now().UTC()
	seedIncident(store, &domain.Incident{
		ID:              "inc-1",
		PatientID:       "patient-1",
		PatientPosition: domain.Coordinate{Lat: 1, Lng: 1},
		Status:          domain.IncidentStatusResponding,
		ResponderID:     &responderID,
		CreatedAt:       now,
		UpdatedAt:       now,
	})

	_, err := svc.ReportPosition(context.Background(), "unit-b", "inc-1", domain.Coordinate{Lat: 2, Lng: 2})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestResolveTwiceFails(t *testing.T) {
	store := newMemStore()
	svc := New(store, 0, 10, nil)
	now := time.Now().UTC()
	seedIncident(store, &domain.Incident{
		ID:              "inc-1",
		PatientID:       "patient-1",
		PatientPosition: domain.Coordinate{Lat: 1, Lng: 1},
		Status:          domain.IncidentStatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	})

	if _, err := svc.Resolve(context.Background(), "patient-1", domain.RolePatient, "inc-1"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	_, err := svc.Resolve(context.Background(), "patient-1", domain.RolePatient, "inc-1")
	if !errors.Is(err, domain.ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition, got %v", err)
	}
}

func TestGetIncidentViewAuthorization(t *testing.T) {
	store := newMemStore()
	svc := New(store, 0, 10, nil)
	responderID := "unit-a"
	now := time.Now().UTC()
	seedIncident(store, &domain.Incident{
		ID:                "inc-1",
		PatientID:         "patient-1",
		PatientPosition:   domain.Coordinate{Lat: 24.7136, Lng: 46.6753},
		Status:            domain.IncidentStatusResponding,
		ResponderID:       &responderID,
		ResponderPosition: &domain.Coordinate{Lat: 24.7743, Lng: 46.7386},
		CreatedAt:         now,
		UpdatedAt:         now,
	})

	view, err := svc.GetIncidentView(context.Background(), "patient-1", domain.RolePatient, "inc-1")
	if err != nil {
		t.Fatalf("patient view: %v", err)
	}
	if view.DistanceKm == nil || *view.DistanceKm <= 0 {
		t.Fatalf("expected positive straight-line distance")
	}
	if view.ETASeconds == nil || *view.ETASeconds <= 0 {
		t.Fatalf("expected positive ETA")
	}

	if _, err := svc.GetIncidentView(context.Background(), "patient-2", domain.RolePatient, "inc-1"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for another patient, got %v", err)
	}
	if _, err := svc.GetIncidentView(context.Background(), "unit-b", domain.RoleResponder, "inc-1"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for unassigned responder, got %v", err)
	}
	if _, err := svc.GetIncidentView(context.Background(), "ops", domain.RoleAdmin, "inc-1"); err != nil {
		t.Fatalf("admin view: %v", err)
	}
}

func TestListOpenIncidentsSkipsClaimed(t *testing.T) {
	store := newMemStore()
	svc := New(store, 0, 10, nil)
	responderID := "unit-a"
	now := time.Now().UTC()
	seedIncident(store, &domain.Incident{
		ID:              "inc-open",
		PatientID:       "patient-1",
		PatientPosition: domain.Coordinate{Lat: 1, Lng: 1},
		Status:          domain.IncidentStatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	seedIncident(store, &domain.Incident{
		ID:              "inc-claimed",
		PatientID:       "patient-2",
		PatientPosition: domain.Coordinate{Lat: 2, Lng: 2},
		Status:          domain.IncidentStatusActive,
		ResponderID:     &responderID,
		CreatedAt:       now,
		UpdatedAt:       now,
	})

	views, err := svc.ListOpenIncidents(context.Background())
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(views) != 1 || views[0].Incident.ID != "inc-open" {
		t.Fatalf("expected only the unclaimed incident, got %d", len(views))
	}
}
