package track

import (
	"context"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"ambutrack/internal/domain"
	"ambutrack/internal/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var incidentPos = domain.Coordinate{Lat: 37.7749, Lng: -122.4194}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeFetcher struct {
	mu    sync.Mutex
	calls []domain.Coordinate // origins
}

func (f *fakeFetcher) FetchRoute(ctx context.Context, origin, dest domain.Coordinate) route.RouteState {
	f.mu.Lock()
	f.calls = append(f.calls, origin)
	f.mu.Unlock()
	return route.RouteState{
		Coordinates:   []domain.Coordinate{origin, dest},
		DistanceLabel: "1.0 km",
		DurationLabel: "2 mins",
		ComputedAt:    time.Now().UTC(),
	}
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeWriter struct {
	mu     sync.Mutex
	writes []time.Time
}

func (w *fakeWriter) WriteResponderPosition(ctx context.Context, incidentID string, pos domain.Coordinate, at time.Time) error {
	w.mu.Lock()
	w.writes = append(w.writes, at)
	w.mu.Unlock()
	return nil
}

func (w *fakeWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.writes)
}

type fakeFixSource struct {
	ch  chan Fix
	err error
}

func (s *fakeFixSource) Subscribe(ctx context.Context) (<-chan Fix, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.ch, nil
}

type fakeNotifier struct {
	ch  chan PeerUpdate
	err error

	mu      sync.Mutex
	cancels int
}

func (n *fakeNotifier) Subscribe(ctx context.Context, incidentID string) (<-chan PeerUpdate, func(), error) {
	if n.err != nil {
		return nil, nil, n.err
	}
	return n.ch, func() {
		n.mu.Lock()
		n.cancels++
		n.mu.Unlock()
	}, nil
}

func quietLogger() *log.Logger {
	return log.New(&strings.Builder{}, "", 0)
}

func TestPatientAwaitingDispatch(t *testing.T) {
	notifier := &fakeNotifier{ch: make(chan PeerUpdate)}
	fetcher := &fakeFetcher{}
	s := NewSession(Config{
		Role:          RolePatient,
		IncidentID:    "inc-1",
		FixedEndpoint: incidentPos,
		Fetcher:       fetcher,
		Notifier:      notifier,
		Logger:        quietLogger(),
	})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	notifier.ch <- PeerUpdate{Position: nil, Status: domain.IncidentStatusActive, At: time.Now()}

	require.Eventually(t, func() bool {
		return s.Snapshot().AwaitingDispatch
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, fetcher.count(), "no route fetch before a responder position exists")
	assert.Nil(t, s.Snapshot().Route)
}

func TestPatientPeerUpdateDrivesRoute(t *testing.T) {
	notifier := &fakeNotifier{ch: make(chan PeerUpdate)}
	fetcher := &fakeFetcher{}
	s := NewSession(Config{
		Role:          RolePatient,
		IncidentID:    "inc-1",
		FixedEndpoint: incidentPos,
		Fetcher:       fetcher,
		Notifier:      notifier,
		Logger:        quietLogger(),
	})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	peer := domain.Coordinate{Lat: 37.7849, Lng: -122.4094}
	notifier.ch <- PeerUpdate{Position: &peer, Status: domain.IncidentStatusResponding, At: time.Now()}

	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap.Route != nil && !snap.AwaitingDispatch
	}, time.Second, 5*time.Millisecond)

	snap := s.Snapshot()
	require.Len(t, snap.Route.Coordinates, 2)
	assert.Equal(t, peer, snap.Route.Coordinates[0])
	assert.Equal(t, incidentPos, snap.Route.Coordinates[1])
	assert.Equal(t, domain.IncidentStatusResponding, snap.Status)
}

func TestResponderWriteGate(t *testing.T) {
	clock := newFakeClock()
	fixes := &fakeFixSource{ch: make(chan Fix)}
	writer := &fakeWriter{}
	s := NewSession(Config{
		Role:          RoleResponder,
		IncidentID:    "inc-1",
		FixedEndpoint: incidentPos,
		WriteInterval: 3 * time.Second,
		Fetcher:       &fakeFetcher{},
		Fixes:         fixes,
		Writer:        writer,
		Logger:        quietLogger(),
		Now:           clock.Now,
	})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	at := clock.Now()
	pos := domain.Coordinate{Lat: 37.78, Lng: -122.41}

	// t=0: first write goes through.
	fixes.ch <- Fix{Position: pos, At: at}
	require.Eventually(t, func() bool { return writer.count() == 1 }, time.Second, 5*time.Millisecond)

	// t=2s: inside the write gate, held back.
	clock.Advance(2 * time.Second)
	fixes.ch <- Fix{Position: pos, At: clock.Now()}
	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap.Self.LastUpdated != nil && snap.Self.LastUpdated.Equal(at.Add(2*time.Second))
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, writer.count())

	// t=3s: gate reopens.
	clock.Advance(time.Second)
	fixes.ch <- Fix{Position: pos, At: clock.Now()}
	require.Eventually(t, func() bool { return writer.count() == 2 }, time.Second, 5*time.Millisecond)
}

func TestResponderRefreshGateSuppressesFetch(t *testing.T) {
	clock := newFakeClock()
	fixes := &fakeFixSource{ch: make(chan Fix)}
	fetcher := &fakeFetcher{}
	s := NewSession(Config{
		Role:          RoleResponder,
		IncidentID:    "inc-1",
		FixedEndpoint: incidentPos,
		Gate:          route.NewRefreshGate(15*time.Second, 0.03),
		Fetcher:       fetcher,
		Fixes:         fixes,
		Logger:        quietLogger(),
		Now:           clock.Now,
	})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	pos := domain.Coordinate{Lat: 37.78, Lng: -122.41}
	fixes.ch <- Fix{Position: pos, At: clock.Now()}
	require.Eventually(t, func() bool { return fetcher.count() == 1 }, time.Second, 5*time.Millisecond)

	// 5s later with large displacement: time gate still closed.
	clock.Advance(5 * time.Second)
	moved := domain.Coordinate{Lat: 37.79, Lng: -122.41}
	fixes.ch <- Fix{Position: moved, At: clock.Now()}
	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap.Self.Position != nil && *snap.Self.Position == moved
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, fetcher.count())

	// 16s after the first fetch with sufficient displacement: refetch.
	clock.Advance(11 * time.Second)
	fixes.ch <- Fix{Position: moved, At: clock.Now()}
	require.Eventually(t, func() bool { return fetcher.count() == 2 }, time.Second, 5*time.Millisecond)
}

func TestStaleFetchResultDiscarded(t *testing.T) {
	s := NewSession(Config{
		Role:          RoleResponder,
		FixedEndpoint: incidentPos,
		Fetcher:       &fakeFetcher{},
		Logger:        quietLogger(),
	})
	s.issued = 2
	fresh := route.RouteState{DistanceLabel: "fresh"}
	stale := route.RouteState{DistanceLabel: "stale"}

	s.onFetchResult(fetchResult{seq: 2, state: fresh})
	require.NotNil(t, s.routeState)
	assert.Equal(t, "fresh", s.routeState.DistanceLabel)

	s.onFetchResult(fetchResult{seq: 1, state: stale})
	assert.Equal(t, "fresh", s.routeState.DistanceLabel, "stale response must not overwrite a fresher route")
}

func TestStartPermissionDenied(t *testing.T) {
	s := NewSession(Config{
		Role:    RoleResponder,
		Fetcher: &fakeFetcher{},
		Fixes:   &fakeFixSource{err: domain.ErrPermissionDenied},
		Logger:  quietLogger(),
	})
	err := s.Start(context.Background())
	require.ErrorIs(t, err, domain.ErrPermissionDenied)
}

func TestSubscriptionFallsBackToPolling(t *testing.T) {
	broken := &fakeNotifier{err: ErrSubscriptionSetup}
	fallback := &fakeNotifier{ch: make(chan PeerUpdate)}
	s := NewSession(Config{
		Role:             RolePatient,
		IncidentID:       "inc-1",
		FixedEndpoint:    incidentPos,
		Fetcher:          &fakeFetcher{},
		Notifier:         broken,
		FallbackNotifier: fallback,
		Logger:           quietLogger(),
	})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	assert.True(t, s.Snapshot().Degraded)
}

func TestSubscriptionSetupFailedWithoutFallback(t *testing.T) {
	s := NewSession(Config{
		Role:       RolePatient,
		IncidentID: "inc-1",
		Fetcher:    &fakeFetcher{},
		Notifier:   &fakeNotifier{err: ErrSubscriptionSetup},
		Logger:     quietLogger(),
	})
	require.ErrorIs(t, s.Start(context.Background()), ErrSubscriptionSetup)
}

func TestStopIdempotent(t *testing.T) {
	notifier := &fakeNotifier{ch: make(chan PeerUpdate)}
	s := NewSession(Config{
		Role:          RolePatient,
		IncidentID:    "inc-1",
		FixedEndpoint: incidentPos,
		Fetcher:       &fakeFetcher{},
		Notifier:      notifier,
		Logger:        quietLogger(),
	})
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
	s.Stop()
	notifier.mu.Lock()
	cancels := notifier.cancels
	notifier.mu.Unlock()
	assert.Equal(t, 1, cancels)

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not exit after Stop")
	}

	// Stop on a never-started session is a no-op.
	idle := NewSession(Config{Role: RolePatient, Fetcher: &fakeFetcher{}, Logger: quietLogger()})
	idle.Stop()
}
