// Package track implements the two-party live-tracking pipeline shared by
// the responder (ambulance) and patient sides. Both roles run the same
// session: one endpoint is locally owned and moving, the other is fixed or
// mirrored from the shared incident record; route refreshes are gated by
// time and displacement.
package track

import (
	"context"
	"errors"
	"time"

	"ambutrack/internal/domain"
)

// Role selects which endpoint this session owns.
type Role string

const (
	// RoleResponder owns the moving endpoint and mirrors it upstream.
	RoleResponder Role = "responder"
	// RolePatient sits at the fixed incident location and observes the
	// responder through the shared record.
	RolePatient Role = "patient"
)

var (
	ErrFixAcquisition    = errors.New("fix acquisition failed")
	ErrSubscriptionSetup = errors.New("subscription setup failed")
)

// Fix is one device position sample.
type Fix struct {
	Position domain.Coordinate
	At       time.Time
}

// FixSource delivers the device's position stream. Subscribe acquires
// location permission and an immediate first fix, then reports per the
// source's policy (at least every MaxFixInterval, or on MinFixDisplacementM
// of movement). It returns domain.ErrPermissionDenied or ErrFixAcquisition
// as terminal conditions; the session does not retry.
type FixSource interface {
	Subscribe(ctx context.Context) (<-chan Fix, error)
}

const (
	// MinFixDisplacementM is the movement that forces a fix report.
	MinFixDisplacementM = 10.0
	// MaxFixInterval is the longest gap between fix reports.
	MaxFixInterval = 5 * time.Second
)

// PeerUpdate is one observed change of the shared incident record. Position
// is nil while no responder has reported yet.
type PeerUpdate struct {
	Position *domain.Coordinate
	Status   domain.IncidentStatus
	At       time.Time
}

// Notifier delivers peer updates for one incident. The returned cancel
// function tears down the subscription and is safe to call more than once.
type Notifier interface {
	Subscribe(ctx context.Context, incidentID string) (<-chan PeerUpdate, func(), error)
}

// RecordWriter mirrors a responder position into the shared incident
// record. Writes are best effort; a failure is superseded by the next one.
type RecordWriter interface {
	WriteResponderPosition(ctx context.Context, incidentID string, pos domain.Coordinate, at time.Time) error
}

// Actor is one party's last-known state within a session.
type Actor struct {
	Position    *domain.Coordinate
	LastUpdated *time.Time
}
