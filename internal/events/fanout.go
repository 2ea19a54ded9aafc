package events

import (
	"context"
	"errors"
)

// FanoutPublisher forwards each event to every sink. A failing sink does not
// stop the others; the joined error is returned so the outbox retries.
type FanoutPublisher struct {
	Sinks []Publisher
}

func (f *FanoutPublisher) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, sink := range f.Sinks {
		if err := sink.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *FanoutPublisher) Close() error {
	var errs []error
	for _, sink := range f.Sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Publisher = (*FanoutPublisher)(nil)
