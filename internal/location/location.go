// Package location models the device location stream as an explicit
// channel of samples with fan-out to independent subscribers, replacing
// the platform's callback-driven location tracker.
package location

import (
	"sync"
	"time"

	"github.com/roadmate-app/navigator/internal/geo"
)

// Sample is one device fix.
type Sample struct {
	Coordinate     geo.Coordinate `json:"coordinate"`
	HeadingDegrees float64        `json:"headingDegrees"`
	AccuracyMeters float64        `json:"accuracyMeters"` // horizontal accuracy; <= 0 means unknown
	Time           time.Time      `json:"time"`
}

// Broadcaster fans a single ordered sample stream out to independent
// subscribers. Every subscriber observes samples in stream order; a slow
// subscriber drops its oldest buffered sample rather than stalling the
// stream or the other subscribers.
type Broadcaster struct {
	mu   sync.Mutex
	subs []chan Sample
	done chan struct{}
}

// NewBroadcaster starts fanning out from in. The broadcaster stops and
// closes all subscriber channels when in is closed.
func NewBroadcaster(in <-chan Sample) *Broadcaster {
	b := &Broadcaster{done: make(chan struct{})}
	go b.run(in)
	return b
}

// Subscribe returns a channel receiving every subsequent sample. The
// buffer absorbs bursts; on overflow the oldest sample is discarded so
// ordering is preserved.
func (b *Broadcaster) Subscribe(buffer int) <-chan Sample {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Sample, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	select {
	case <-b.done:
		close(ch)
		return ch
	default:
	}
	b.subs = append(b.subs, ch)
	return ch
}

func (b *Broadcaster) run(in <-chan Sample) {
	for s := range in {
		b.mu.Lock()
		for _, ch := range b.subs {
			deliver(ch, s)
		}
		b.mu.Unlock()
	}

	b.mu.Lock()
	close(b.done)
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
	b.mu.Unlock()
}

// deliver sends without blocking, discarding the subscriber's oldest
// buffered sample if its channel is full.
func deliver(ch chan Sample, s Sample) {
	select {
	case ch <- s:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}

// PushSource turns externally delivered fixes (e.g. POSTed by the app
// shell) into a sample channel.
type PushSource struct {
	mu     sync.Mutex
	ch     chan Sample
	closed bool
}

// NewPushSource creates a push source with the given buffer.
func NewPushSource(buffer int) *PushSource {
	if buffer < 1 {
		buffer = 1
	}
	return &PushSource{ch: make(chan Sample, buffer)}
}

// Samples returns the sample channel.
func (p *PushSource) Samples() <-chan Sample {
	return p.ch
}

// Push delivers a fix. It never blocks; under backpressure the oldest
// buffered fix is dropped.
func (p *PushSource) Push(s Sample) {
	if s.Time.IsZero() {
		s.Time = time.Now().UTC()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	deliver(p.ch, s)
}

// Stop closes the stream. Safe to call more than once; pushes after Stop
// are discarded.
func (p *PushSource) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.ch)
	}
}
