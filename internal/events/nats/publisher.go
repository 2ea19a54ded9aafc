package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"ambutrack/internal/events"
)

const DefaultSubjectPrefix = "ambutrack.incidents"

// Publisher emits incident events on a per-incident subject so trackers can
// subscribe to exactly one incident.
type Publisher struct {
	nc     *nats.Conn
	prefix string
}

func New(url, subjectPrefix string) (*Publisher, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	if subjectPrefix == "" {
		subjectPrefix = DefaultSubjectPrefix
	}
	return &Publisher{nc: nc, prefix: subjectPrefix}, nil
}

func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.nc.Publish(fmt.Sprintf("%s.%s", p.prefix, event.AggregateID), data)
}

func (p *Publisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}

var _ events.Publisher = (*Publisher)(nil)
