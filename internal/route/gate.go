package route

import (
	"time"

	"ambutrack/internal/domain"
	"ambutrack/internal/geo"
)

const (
	// DefaultMinInterval is the minimum time between route fetches for one
	// endpoint pair.
	DefaultMinInterval = 15 * time.Second
	// DefaultMinDisplacementKm is the minimum movement of the moving
	// endpoint before a refetch is worthwhile (~30 m).
	DefaultMinDisplacementKm = 0.03
)

// RefreshGate holds the rate-limit state for route refreshes. The caller
// advances LastFetchAt only after actually invoking a Fetcher, so a skipped
// fetch never pushes the window forward.
type RefreshGate struct {
	LastFetchAt       time.Time
	MinInterval       time.Duration
	MinDisplacementKm float64
}

func NewRefreshGate(minInterval time.Duration, minDisplacementKm float64) RefreshGate {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	if minDisplacementKm <= 0 {
		minDisplacementKm = DefaultMinDisplacementKm
	}
	return RefreshGate{MinInterval: minInterval, MinDisplacementKm: minDisplacementKm}
}

// ShouldRefresh reports whether a new fetch is warranted. The first fetch
// for a pair (no reference position, or no fetch recorded yet) is always
// permitted; afterwards both the interval and the displacement threshold
// must be exceeded.
func ShouldRefresh(now time.Time, moving domain.Coordinate, reference *domain.Coordinate, gate RefreshGate) bool {
	if reference == nil || gate.LastFetchAt.IsZero() {
		return true
	}
	if now.Sub(gate.LastFetchAt) <= gate.MinInterval {
		return false
	}
	return geo.DistanceKm(moving, *reference) > gate.MinDisplacementKm
}
