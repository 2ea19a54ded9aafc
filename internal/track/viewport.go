package track

import (
	"fmt"
	"math"

	"ambutrack/internal/domain"
	"ambutrack/internal/route"
)

// DefaultEdgePadding is the fractional margin added around framed markers.
const DefaultEdgePadding = 0.3

// Region is a map viewport: a center plus display spans. Spans are for
// framing only and never feed distance calculations.
type Region struct {
	Center   domain.Coordinate
	LatDelta float64
	LngDelta float64
}

// Camera recomputes a bounding viewport when the marker set or route
// identity changes, and holds the previous region otherwise so redundant
// renders do not re-animate the map.
type Camera struct {
	padding float64
	lastKey string
	region  Region
}

func NewCamera(padding float64) *Camera {
	if padding <= 0 {
		padding = DefaultEdgePadding
	}
	return &Camera{padding: padding}
}

// Frame returns the viewport containing all markers and the route, and
// whether the camera moved (i.e. the caller should animate). With no
// markers the previous region is held.
func (c *Camera) Frame(markers []domain.Coordinate, rt *route.RouteState) (Region, bool) {
	if len(markers) == 0 {
		return c.region, false
	}
	key := frameKey(markers, rt)
	if key == c.lastKey {
		return c.region, false
	}
	c.lastKey = key

	points := markers
	if rt != nil {
		points = append(append([]domain.Coordinate{}, markers...), rt.Coordinates...)
	}
	c.region = boundingRegion(points, c.padding)
	return c.region, true
}

func frameKey(markers []domain.Coordinate, rt *route.RouteState) string {
	key := ""
	for _, m := range markers {
		key += fmt.Sprintf("%.5f,%.5f;", m.Lat, m.Lng)
	}
	if rt != nil {
		key += fmt.Sprintf("r%d", rt.ComputedAt.UnixNano())
	}
	return key
}

func boundingRegion(points []domain.Coordinate, padding float64) Region {
	minLat, maxLat := points[0].Lat, points[0].Lat
	minLng, maxLng := points[0].Lng, points[0].Lng
	for _, p := range points[1:] {
		minLat = math.Min(minLat, p.Lat)
		maxLat = math.Max(maxLat, p.Lat)
		minLng = math.Min(minLng, p.Lng)
		maxLng = math.Max(maxLng, p.Lng)
	}
	const minDelta = 0.005
	latDelta := math.Max((maxLat-minLat)*(1+padding), minDelta)
	lngDelta := math.Max((maxLng-minLng)*(1+padding), minDelta)
	return Region{
		Center: domain.Coordinate{
			Lat: (minLat + maxLat) / 2,
			Lng: (minLng + maxLng) / 2,
		},
		LatDelta: latDelta,
		LngDelta: lngDelta,
	}
}
