package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"ambutrack/internal/domain"
	"ambutrack/internal/events"
	"ambutrack/internal/track"
)

// Subscriber turns the per-incident event stream into peer updates for a
// tracking session. It is the live counterpart of the polling notifier.
type Subscriber struct {
	nc     *nats.Conn
	prefix string
	logger *log.Logger
}

func NewSubscriber(url, subjectPrefix string, logger *log.Logger) (*Subscriber, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	if subjectPrefix == "" {
		subjectPrefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Subscriber{nc: nc, prefix: subjectPrefix, logger: logger}, nil
}

type incidentPayload struct {
	Status             domain.IncidentStatus `json:"status"`
	ResponderLat       *float64              `json:"responder_lat"`
	ResponderLng       *float64              `json:"responder_lng"`
	ResponderUpdatedAt *time.Time            `json:"responder_updated_at"`
}

func (s *Subscriber) Subscribe(ctx context.Context, incidentID string) (<-chan track.PeerUpdate, func(), error) {
	ch := make(chan track.PeerUpdate, 8)
	subject := fmt.Sprintf("%s.%s", s.prefix, incidentID)

	sub, err := s.nc.Subscribe(subject, func(msg *nats.Msg) {
		var evt events.Event
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			s.logger.Printf("bad incident event on %s: %v", subject, err)
			return
		}
		var payload incidentPayload
		if err := json.Unmarshal(evt.Payload, &payload); err != nil {
			s.logger.Printf("bad incident payload on %s: %v", subject, err)
			return
		}
		update := track.PeerUpdate{Status: payload.Status, At: evt.OccurredAt}
		if payload.ResponderLat != nil && payload.ResponderLng != nil {
			update.Position = &domain.Coordinate{Lat: *payload.ResponderLat, Lng: *payload.ResponderLng}
		}
		if payload.ResponderUpdatedAt != nil {
			update.At = *payload.ResponderUpdatedAt
		}
		select {
		case ch <- update:
		default:
			// A full buffer means the session is behind; the next update
			// carries the complete state anyway.
		}
	})
	if err != nil {
		return nil, nil, err
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			if err := sub.Unsubscribe(); err != nil {
				s.logger.Printf("unsubscribe %s: %v", subject, err)
			}
			close(ch)
		})
	}
	return ch, cancel, nil
}

func (s *Subscriber) Close() {
	if s.nc != nil {
		s.nc.Close()
	}
}

var _ track.Notifier = (*Subscriber)(nil)
