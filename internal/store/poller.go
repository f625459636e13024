// Package store holds the client-side working state for conversations,
// threads, and notifications, and keeps it consistent with the server
// through interval polling plus event-bus deltas. Polling is the source of
// truth; bus events only shorten the window between a change and its
// appearance in a view.
package store

import (
	"context"
	"log"
	"sync"
	"time"
)

// FetchFunc performs one refresh cycle. background is true for every cycle
// after the first: background fetches must not toggle loading indicators and
// must not replace state that has not changed.
type FetchFunc func(ctx context.Context, background bool) error

// Poller drives a store's refresh discipline: fetch immediately on start,
// refetch in the background on a fixed interval, pause while the surface is
// hidden, and refetch immediately on resume.
type Poller struct {
	interval time.Duration
	fetch    FetchFunc

	mu      sync.Mutex
	paused  bool
	stopped bool
	kick    chan struct{}
	done    chan struct{}
}

// NewPoller creates a Poller. interval must be positive.
func NewPoller(interval time.Duration, fetch FetchFunc) *Poller {
	return &Poller{
		interval: interval,
		fetch:    fetch,
		kick:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Run blocks until ctx is cancelled or Stop is called, fetching immediately
// and then on every interval tick. Fetch errors are logged, never fatal: a
// failed poll self-corrects on the next tick.
func (p *Poller) Run(ctx context.Context) {
	if err := p.fetch(ctx, false); err != nil {
		log.Printf("poller: initial fetch: %v", err)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case <-p.kick:
			p.backgroundFetch(ctx)
			ticker.Reset(p.interval)
		case <-ticker.C:
			if p.isPaused() {
				continue
			}
			p.backgroundFetch(ctx)
		}
	}
}

func (p *Poller) backgroundFetch(ctx context.Context) {
	if err := p.fetch(ctx, true); err != nil {
		log.Printf("poller: background fetch: %v", err)
	}
}

// Pause suspends interval fetches. In-flight fetches are not cancelled;
// their results land normally.
func (p *Poller) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = true
}

// Resume lifts a pause and triggers an immediate background fetch, so a
// surface becoming visible again catches up without waiting a full interval.
func (p *Poller) Resume() {
	p.mu.Lock()
	wasPaused := p.paused
	p.paused = false
	stopped := p.stopped
	p.mu.Unlock()
	if stopped || !wasPaused {
		return
	}
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Stop terminates Run. Safe to call more than once.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.stopped = true
	close(p.done)
}

func (p *Poller) isPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}
