package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"ambutrack/internal/auth"
	"ambutrack/internal/domain"
	"ambutrack/internal/events"
	"ambutrack/internal/route"
	"ambutrack/internal/service"
	"ambutrack/internal/transport"
)

func TestIssueToken(t *testing.T) {
	authenticator := auth.New("secret", time.Hour)
	handler := NewServer(nil, authenticator, nil, nil)

	payload := map[string]string{"name": "alice", "role": "patient"}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/auth/token", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["token"] == "" {
		t.Fatalf("expected token")
	}
}

func TestIssueTokenInvalidRole(t *testing.T) {
	authenticator := auth.New("secret", time.Hour)
	handler := NewServer(nil, authenticator, nil, nil)

	payload := map[string]string{"name": "alice", "role": "dispatcher"}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/auth/token", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestSOSRequiresPatientRole(t *testing.T) {
	authenticator := auth.New("secret", time.Hour)
	handler := NewServer(nil, authenticator, nil, nil)

	token, _, err := authenticator.IssueToken("unit-a", domain.RoleResponder)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	body, _ := json.Marshal(map[string]any{"position": map[string]float64{"lat": 1, "lng": 1}})
	req := httptest.NewRequest(http.MethodPost, "/patient/sos", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

type fakeStore struct {
	mu        sync.Mutex
	incidents map[string]*domain.Incident
}

func newFakeStore() *fakeStore {
	return &fakeStore{incidents: make(map[string]*domain.Incident)}
}

func (s *fakeStore) BeginTx(ctx context.Context) (service.Tx, error) {
	return &fakeTx{store: s}, nil
}

func (s *fakeStore) GetIncident(ctx context.Context, id string) (*domain.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	incident, ok := s.incidents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *incident
	return &copied, nil
}

func (s *fakeStore) ListIncidents(ctx context.Context, filter service.IncidentFilter) ([]*domain.Incident, error) {
	return nil, nil
}

type fakeTx struct{ store *fakeStore }

func (t *fakeTx) Commit(ctx context.Context) error   { return nil }
func (t *fakeTx) Rollback(ctx context.Context) error { return nil }

func (t *fakeTx) GetIncidentForUpdate(ctx context.Context, id string) (*domain.Incident, error) {
	return t.store.GetIncident(ctx, id)
}

func (t *fakeTx) CreateIncident(ctx context.Context, incident *domain.Incident) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	copied := *incident
	t.store.incidents[incident.ID] = &copied
	return nil
}

func (t *fakeTx) UpdateIncident(ctx context.Context, incident *domain.Incident) error {
	return t.CreateIncident(ctx, incident)
}

func (t *fakeTx) EnqueueEvent(ctx context.Context, event events.Event) error { return nil }

type stubFetcher struct {
	mu     sync.Mutex
	origin domain.Coordinate
	dest   domain.Coordinate
}

func (f *stubFetcher) FetchRoute(ctx context.Context, origin, destination domain.Coordinate) route.RouteState {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.origin, f.dest = origin, destination
	return route.RouteState{
		Coordinates:   []domain.Coordinate{origin, destination},
		DistanceLabel: "2.0 km",
		DurationLabel: "4 mins",
		ComputedAt:    time.Now().UTC(),
	}
}

func TestIncidentRouteEndpoint(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := service.New(store, 0, 11, nil)
	authenticator := auth.New("secret", time.Hour)
	fetcher := &stubFetcher{}
	handler := NewServer(svc, authenticator, nil, fetcher)

	incident, err := svc.FileSOS(ctx, "pat-1", domain.Coordinate{Lat: 37.77, Lng: -122.41})
	if err != nil {
		t.Fatalf("file sos: %v", err)
	}
	token, _, err := authenticator.IssueToken("pat-1", domain.RolePatient)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	get := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/patient/incidents/"+incident.ID+"/route", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	// No responder yet: nothing to route to.
	if rec := get(); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 before dispatch, got %d", rec.Code)
	}

	if _, err := svc.Respond(ctx, "unit-1", incident.ID); err != nil {
		t.Fatalf("respond: %v", err)
	}
	responderPos := domain.Coordinate{Lat: 37.79, Lng: -122.43}
	if _, err := svc.ReportPosition(ctx, "unit-1", incident.ID, responderPos); err != nil {
		t.Fatalf("report position: %v", err)
	}

	rec := get()
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp transport.RouteResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.DistanceLabel != "2.0 km" || len(resp.Coordinates) != 2 {
		t.Fatalf("unexpected route %+v", resp)
	}
	fetcher.mu.Lock()
	defer fetcher.mu.Unlock()
	if fetcher.origin != responderPos {
		t.Fatalf("expected origin at responder position, got %+v", fetcher.origin)
	}
	if fetcher.dest != incident.PatientPosition {
		t.Fatalf("expected destination at patient position, got %+v", fetcher.dest)
	}
}

func TestIncidentRouteRequiresIncidentAccess(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := service.New(store, 0, 11, nil)
	authenticator := auth.New("secret", time.Hour)
	handler := NewServer(svc, authenticator, nil, &stubFetcher{})

	incident, err := svc.FileSOS(ctx, "pat-1", domain.Coordinate{Lat: 37.77, Lng: -122.41})
	if err != nil {
		t.Fatalf("file sos: %v", err)
	}
	token, _, err := authenticator.IssueToken("pat-2", domain.RolePatient)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/patient/incidents/"+incident.ID+"/route", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for another patient's incident, got %d", rec.Code)
	}
}

func TestSOSRequiresToken(t *testing.T) {
	authenticator := auth.New("secret", time.Hour)
	handler := NewServer(nil, authenticator, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/patient/sos", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
