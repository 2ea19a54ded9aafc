package track

import (
	"context"
	"log"
	"sync"
	"time"

	"ambutrack/internal/domain"
	"ambutrack/internal/route"
)

// DefaultWriteInterval is the minimum gap between responder mirror writes.
// It is independent of the route-refresh gate and only bounds write
// amplification on the shared record.
const DefaultWriteInterval = 3 * time.Second

// Config wires one tracking session. Fetcher is required; Fixes and Writer
// are responder-side collaborators, Notifier is patient-side.
type Config struct {
	Role          Role
	IncidentID    string
	FixedEndpoint domain.Coordinate
	Gate          route.RefreshGate
	WriteInterval time.Duration
	Fetcher       route.Fetcher
	Fixes         FixSource
	Writer        RecordWriter
	Notifier      Notifier
	// FallbackNotifier is used when Notifier setup fails (degraded
	// polling mode). Optional.
	FallbackNotifier Notifier
	Logger           *log.Logger
	Now              func() time.Time
}

// Snapshot is the render-facing view of a session.
type Snapshot struct {
	Self             Actor
	Peer             Actor
	Route            *route.RouteState
	Status           domain.IncidentStatus
	AwaitingDispatch bool
	Degraded         bool
}

// Session runs the refresh pipeline for one incident. All tracking state is
// confined to a single loop goroutine; fixes, peer updates, and fetch
// results arrive as loop messages. A monotonic request counter orders fetch
// results so a stale response never overwrites a fresher route.
type Session struct {
	cfg Config

	fixes   <-chan Fix
	peers   <-chan PeerUpdate
	results chan fetchResult
	unsub   func()

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	started  bool

	// loop-confined state
	self         Actor
	peer         Actor
	routeState   *route.RouteState
	gate         route.RefreshGate
	lastFetchPos *domain.Coordinate
	lastWriteAt  time.Time
	issued       uint64
	status       domain.IncidentStatus
	degraded     bool

	mu       sync.Mutex
	snapshot Snapshot
}

type fetchResult struct {
	seq   uint64
	state route.RouteState
}

func NewSession(cfg Config) *Session {
	if cfg.WriteInterval <= 0 {
		cfg.WriteInterval = DefaultWriteInterval
	}
	if cfg.Gate.MinInterval <= 0 {
		cfg.Gate = route.NewRefreshGate(cfg.Gate.MinInterval, cfg.Gate.MinDisplacementKm)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Session{
		cfg:     cfg,
		results: make(chan fetchResult, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		gate:    cfg.Gate,
		status:  domain.IncidentStatusActive,
	}
}

// Start acquires the session's event source and launches the loop.
// Permission denial, fix-acquisition failure, and subscription-setup
// failure (with no fallback notifier) are terminal: the error is returned
// and the session stays inactive.
func (s *Session) Start(ctx context.Context) error {
	switch s.cfg.Role {
	case RoleResponder:
		ch, err := s.cfg.Fixes.Subscribe(ctx)
		if err != nil {
			return err
		}
		s.fixes = ch
	case RolePatient:
		ch, unsub, err := s.cfg.Notifier.Subscribe(ctx, s.cfg.IncidentID)
		if err != nil {
			if s.cfg.FallbackNotifier == nil {
				return ErrSubscriptionSetup
			}
			s.cfg.Logger.Printf("live subscription unavailable, polling instead: %v", err)
			ch, unsub, err = s.cfg.FallbackNotifier.Subscribe(ctx, s.cfg.IncidentID)
			if err != nil {
				return ErrSubscriptionSetup
			}
			s.degraded = true
		}
		s.peers = ch
		s.unsub = unsub
	default:
		return domain.ErrInvalid
	}
	s.started = true
	s.publish()
	go s.run(ctx)
	return nil
}

// Stop tears down the event source. Idempotent and safe to call on a
// session that never started. In-flight fetch results are discarded.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		if s.unsub != nil {
			s.unsub()
		}
	})
}

// Done is closed when the loop has exited.
func (s *Session) Done() <-chan struct{} {
	if !s.started {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return s.done
}

// Snapshot returns the latest render-facing state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case fix, ok := <-s.fixes:
			if !ok {
				return
			}
			s.onFix(ctx, fix)
		case update, ok := <-s.peers:
			if !ok {
				return
			}
			s.onPeerUpdate(ctx, update)
		case res := <-s.results:
			s.onFetchResult(res)
		}
	}
}

func (s *Session) onFix(ctx context.Context, fix Fix) {
	pos := fix.Position
	at := fix.At
	s.self = Actor{Position: &pos, LastUpdated: &at}

	if s.cfg.Writer != nil {
		now := s.cfg.Now()
		if s.lastWriteAt.IsZero() || now.Sub(s.lastWriteAt) >= s.cfg.WriteInterval {
			s.lastWriteAt = now
			go func() {
				if err := s.cfg.Writer.WriteResponderPosition(ctx, s.cfg.IncidentID, pos, at); err != nil {
					s.cfg.Logger.Printf("responder position write failed (superseded by next fix): %v", err)
				}
			}()
		}
	}

	s.maybeRefresh(ctx, pos)
	s.publish()
}

func (s *Session) onPeerUpdate(ctx context.Context, update PeerUpdate) {
	if update.Status != "" {
		s.status = update.Status
	}
	if update.Position == nil {
		// Awaiting dispatch: no peer marker, no route fetch.
		s.publish()
		return
	}
	pos := *update.Position
	at := update.At
	s.peer = Actor{Position: &pos, LastUpdated: &at}
	s.maybeRefresh(ctx, pos)
	s.publish()
}

// maybeRefresh evaluates the refresh gate with moving as the moving
// endpoint and the position at the previous fetch as reference. The gate
// timestamp and reference advance only when a fetch is actually issued.
func (s *Session) maybeRefresh(ctx context.Context, moving domain.Coordinate) {
	now := s.cfg.Now()
	if !route.ShouldRefresh(now, moving, s.lastFetchPos, s.gate) {
		return
	}
	s.gate.LastFetchAt = now
	ref := moving
	s.lastFetchPos = &ref
	s.issued++
	seq := s.issued

	origin := moving
	dest := s.cfg.FixedEndpoint
	go func() {
		state := s.cfg.Fetcher.FetchRoute(ctx, origin, dest)
		select {
		case s.results <- fetchResult{seq: seq, state: state}:
		case <-s.stop:
		case <-ctx.Done():
		}
	}()
}

func (s *Session) onFetchResult(res fetchResult) {
	if res.seq != s.issued {
		// A newer request was issued while this one was in flight.
		return
	}
	state := res.state
	s.routeState = &state
	s.publish()
}

func (s *Session) publish() {
	snap := Snapshot{
		Self:     s.self,
		Peer:     s.peer,
		Route:    s.routeState,
		Status:   s.status,
		Degraded: s.degraded,
	}
	if s.cfg.Role == RolePatient && s.peer.Position == nil {
		snap.AwaitingDispatch = true
	}
	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()
}
