package route

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"net/url"
	"time"

	"ambutrack/internal/domain"
	"ambutrack/internal/geo"
	"ambutrack/internal/metrics"
	"ambutrack/internal/polyline"
)

// FallbackSpeedKmPerMin is the assumed average speed (30 km/h) used to
// estimate duration when the directions service is unavailable.
const FallbackSpeedKmPerMin = 0.5

// Client fetches routes from a Google-Directions-style HTTP endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *log.Logger
	now        func() time.Time
}

func NewClient(baseURL, apiKey string, timeout time.Duration, logger *log.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

type directionsResponse struct {
	Status string `json:"status"`
	Routes []struct {
		OverviewPolyline struct {
			Points string `json:"points"`
		} `json:"overview_polyline"`
		Legs []struct {
			Distance struct {
				Text string `json:"text"`
			} `json:"distance"`
			Duration struct {
				Text string `json:"text"`
			} `json:"duration"`
		} `json:"legs"`
	} `json:"routes"`
}

// FetchRoute queries the directions service for the origin/destination
// pair. Any failure (transport error, non-OK status, malformed or empty
// response) degrades to a two-point straight-line fallback; the caller
// always receives a usable state. Rate limiting is the caller's concern.
func (c *Client) FetchRoute(ctx context.Context, origin, destination domain.Coordinate) RouteState {
	metrics.RouteFetchesTotal.Inc()
	state, err := c.fetch(ctx, origin, destination)
	if err != nil {
		c.logger.Printf("directions fetch failed, using straight-line fallback: %v", err)
		metrics.RouteFallbacksTotal.Inc()
		return Fallback(origin, destination, c.now())
	}
	return state
}

func (c *Client) fetch(ctx context.Context, origin, destination domain.Coordinate) (RouteState, error) {
	q := url.Values{}
	q.Set("origin", fmt.Sprintf("%f,%f", origin.Lat, origin.Lng))
	q.Set("destination", fmt.Sprintf("%f,%f", destination.Lat, destination.Lng))
	q.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return RouteState{}, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return RouteState{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return RouteState{}, fmt.Errorf("directions http status %d", resp.StatusCode)
	}

	var body directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return RouteState{}, fmt.Errorf("decode response: %w", err)
	}
	if body.Status != "OK" {
		return RouteState{}, fmt.Errorf("directions status %q", body.Status)
	}
	if len(body.Routes) == 0 || len(body.Routes[0].Legs) == 0 {
		return RouteState{}, fmt.Errorf("directions response has no routes")
	}

	coords := polyline.Decode(body.Routes[0].OverviewPolyline.Points)
	if len(coords) < 2 {
		return RouteState{}, fmt.Errorf("polyline decoded to %d points", len(coords))
	}
	leg := body.Routes[0].Legs[0]
	return RouteState{
		Coordinates:   coords,
		DistanceLabel: leg.Distance.Text,
		DurationLabel: leg.Duration.Text,
		ComputedAt:    c.now(),
		IsFallback:    false,
	}, nil
}

// Fallback synthesizes a two-point straight-line route with a duration
// estimate at FallbackSpeedKmPerMin. Deterministic for identical inputs.
func Fallback(origin, destination domain.Coordinate, computedAt time.Time) RouteState {
	distKm := geo.DistanceKm(origin, destination)
	mins := int(math.Ceil(distKm / FallbackSpeedKmPerMin))
	unit := "mins"
	if mins == 1 {
		unit = "min"
	}
	return RouteState{
		Coordinates:   []domain.Coordinate{origin, destination},
		DistanceLabel: fmt.Sprintf("%.1f km (straight line)", distKm),
		DurationLabel: fmt.Sprintf("%d %s", mins, unit),
		ComputedAt:    computedAt,
		IsFallback:    true,
	}
}
