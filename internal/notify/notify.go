// Package notify delivers new-item alerts to the configured surfaces:
// desktop notification command, alert sound, Slack, and Discord.
package notify

import (
	"context"
	"errors"
	"log"
)

// Alert is one user-facing notification.
type Alert struct {
	Title string
	Body  string
	Count int  // number of new items, when the alert is about arrivals
	Sound bool // request the alert sound (best-effort, command sink only)
}

// Sink delivers alerts to one surface.
type Sink interface {
	// Notify delivers one alert. Implementations should be quick; slow
	// surfaces must buffer internally.
	Notify(ctx context.Context, alert Alert) error

	// Close releases the surface's resources.
	Close() error
}

// Fanout delivers every alert to all sinks, best-effort: a failing sink is
// logged and must not prevent delivery to the others.
type Fanout struct {
	sinks []Sink
}

// NewFanout creates a Fanout over the given sinks.
func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks}
}

// Notify delivers the alert to every sink. Always returns nil: per-sink
// failures are logged, never propagated.
func (f *Fanout) Notify(ctx context.Context, alert Alert) error {
	for _, s := range f.sinks {
		if err := s.Notify(ctx, alert); err != nil {
			log.Printf("notify: sink failed: %v", err)
		}
	}
	return nil
}

// Close closes every sink, reporting any failure after all have been tried.
func (f *Fanout) Close() error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
