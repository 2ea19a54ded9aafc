// Package client is the HTTP API client used by the device-side tracker.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ambutrack/internal/domain"
	"ambutrack/internal/transport"
)

type Client struct {
	baseURL    string
	token      string
	role       string
	httpClient *http.Client
}

func New(baseURL, token, role string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		role:       role,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetIncident satisfies the polling notifier's reader contract.
func (c *Client) GetIncident(ctx context.Context, id string) (*domain.Incident, error) {
	var view transport.IncidentViewResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/%s/incidents/%s", c.role, id), nil, &view); err != nil {
		return nil, err
	}
	return toDomainIncident(view.Incident), nil
}

// WriteResponderPosition mirrors a fix onto the shared incident record.
func (c *Client) WriteResponderPosition(ctx context.Context, incidentID string, pos domain.Coordinate, at time.Time) error {
	body := map[string]float64{"lat": pos.Lat, "lng": pos.Lng}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/responder/incidents/%s/position", incidentID), body, nil)
}

func (c *Client) FileSOS(ctx context.Context, pos domain.Coordinate) (*domain.Incident, error) {
	body := map[string]any{"position": map[string]float64{"lat": pos.Lat, "lng": pos.Lng}}
	var resp transport.IncidentResponse
	if err := c.do(ctx, http.MethodPost, "/patient/sos", body, &resp); err != nil {
		return nil, err
	}
	return toDomainIncident(resp), nil
}

func (c *Client) Respond(ctx context.Context, incidentID string) (*domain.Incident, error) {
	var resp transport.IncidentResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/responder/incidents/%s/respond", incidentID), struct{}{}, &resp); err != nil {
		return nil, err
	}
	return toDomainIncident(resp), nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case http.StatusForbidden:
		return domain.ErrForbidden
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusConflict:
		return domain.ErrConflict
	case http.StatusUnprocessableEntity:
		return domain.ErrInvalid
	default:
		return fmt.Errorf("http status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func toDomainIncident(resp transport.IncidentResponse) *domain.Incident {
	incident := &domain.Incident{
		ID:                 resp.ID,
		PatientID:          resp.PatientID,
		PatientPosition:    domain.Coordinate{Lat: resp.PatientPosition.Lat, Lng: resp.PatientPosition.Lng},
		Status:             domain.IncidentStatus(resp.Status),
		ResponderID:        resp.ResponderID,
		ResponderUpdatedAt: resp.ResponderUpdatedAt,
		CreatedAt:          resp.CreatedAt,
		UpdatedAt:          resp.UpdatedAt,
		RespondedAt:        resp.RespondedAt,
		ResolvedAt:         resp.ResolvedAt,
	}
	if resp.ResponderPosition != nil {
		incident.ResponderPosition = &domain.Coordinate{Lat: resp.ResponderPosition.Lat, Lng: resp.ResponderPosition.Lng}
	}
	return incident
}
