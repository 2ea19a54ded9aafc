// Package route computes and refreshes the path between a moving unit and
// a fixed incident location. Fetching is delegated to an external
// directions service; every failure degrades to a straight-line fallback
// so callers always hold a renderable route.
package route

import (
	"context"
	"time"

	"ambutrack/internal/domain"
)

// RouteState is the current computed path between one endpoint pair.
// Coordinates is ordered start to end and holds at least two points once a
// route has been computed.
type RouteState struct {
	Coordinates   []domain.Coordinate
	DistanceLabel string
	DurationLabel string
	ComputedAt    time.Time
	IsFallback    bool
}

// Fetcher produces a route for an endpoint pair. Implementations never
// return an unusable state: on any upstream failure they synthesize a
// fallback instead.
type Fetcher interface {
	FetchRoute(ctx context.Context, origin, destination domain.Coordinate) RouteState
}
