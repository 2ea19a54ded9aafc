package track

import (
	"context"
	"log"
	"sync"
	"time"

	"ambutrack/internal/domain"
)

// DefaultPollInterval is the degraded-mode polling cadence used when a
// real-time subscription cannot be established.
const DefaultPollInterval = 15 * time.Second

// IncidentReader fetches the current incident record.
type IncidentReader interface {
	GetIncident(ctx context.Context, id string) (*domain.Incident, error)
}

// PollingNotifier adapts periodic incident reads to the Notifier contract,
// feeding the same peer-update path as a live subscription.
type PollingNotifier struct {
	Reader   IncidentReader
	Interval time.Duration
	Logger   *log.Logger
}

func (p *PollingNotifier) Subscribe(ctx context.Context, incidentID string) (<-chan PeerUpdate, func(), error) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	logger := p.Logger
	if logger == nil {
		logger = log.Default()
	}

	// Probe once so setup failure is reported synchronously.
	if _, err := p.Reader.GetIncident(ctx, incidentID); err != nil {
		return nil, nil, err
	}

	ch := make(chan PeerUpdate)
	stop := make(chan struct{})
	var once sync.Once
	cancel := func() { once.Do(func() { close(stop) }) }

	go func() {
		defer close(ch)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				incident, err := p.Reader.GetIncident(ctx, incidentID)
				if err != nil {
					logger.Printf("incident poll failed: %v", err)
					continue
				}
				update := PeerUpdate{
					Position: incident.ResponderPosition,
					Status:   incident.Status,
					At:       time.Now().UTC(),
				}
				if incident.ResponderUpdatedAt != nil {
					update.At = *incident.ResponderUpdatedAt
				}
				select {
				case ch <- update:
				case <-stop:
					return
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, cancel, nil
}
