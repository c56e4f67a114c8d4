// Package reroute turns off-route signals into at-most-one-in-flight
// route recalculations.
package reroute

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/roadmate-app/navigator/internal/directions"
	"github.com/roadmate-app/navigator/internal/geo"
	"github.com/roadmate-app/navigator/internal/route"
)

// Fetcher requests candidate routes. On success the result holds at least
// one route; an empty result without an error is treated as a failed
// attempt. *directions.Client satisfies it.
type Fetcher interface {
	Routes(ctx context.Context, origin, destination geo.Coordinate, opts directions.Options) ([]*route.Route, error)
}

// Config holds controller timing.
type Config struct {
	Debounce time.Duration // collapse off-route bursts into one request
	Timeout  time.Duration // upper bound on one recalculation call
}

func (c Config) withDefaults() Config {
	if c.Debounce <= 0 {
		c.Debounce = time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 20 * time.Second
	}
	return c
}

// Controller debounces off-route signals, recalculates from the current
// position to the preserved destination, and hands the winning route to
// apply. Per session at most one request is ever in flight; signals
// arriving while debouncing or in flight are coalesced, not queued.
type Controller struct {
	cfg      Config
	fetch    Fetcher
	position func() (geo.Coordinate, bool) // freshest fix at request time
	apply    func(*route.Route) bool       // atomic session swap; false = discarded
	failed   func(error)                   // transient failure, eligible for retry

	mu          sync.Mutex
	armed       bool
	generation  uint64
	destination geo.Coordinate
	opts        directions.Options
	debouncing  bool
	inFlight    bool
	cancel      context.CancelFunc
}

// NewController wires a controller to its collaborators. position may be
// nil, in which case the position carried by the off-route signal is used
// as the new origin.
func NewController(fetch Fetcher, position func() (geo.Coordinate, bool), apply func(*route.Route) bool, failed func(error), cfg Config) *Controller {
	return &Controller{
		cfg:      cfg.withDefaults(),
		fetch:    fetch,
		position: position,
		apply:    apply,
		failed:   failed,
	}
}

// Arm binds the controller to a navigation session, preserving the
// original destination and exclusion preferences for recalculations.
func (c *Controller) Arm(destination geo.Coordinate, opts directions.Options) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.armed = true
	c.destination = destination
	c.opts = opts
	c.debouncing = false
	c.inFlight = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Disarm detaches the controller from the session. An in-flight request
// is cancelled; its eventual completion is a no-op.
func (c *Controller) Disarm() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.armed = false
	c.debouncing = false
	c.inFlight = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// InFlight reports whether a recalculation is currently running.
func (c *Controller) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// NotifyOffRoute requests a recalculation from pos to the armed
// destination. Signals during the debounce window or while a request is
// in flight are dropped.
func (c *Controller) NotifyOffRoute(pos geo.Coordinate) {
	c.mu.Lock()
	if !c.armed || c.debouncing || c.inFlight {
		c.mu.Unlock()
		return
	}
	c.debouncing = true
	gen := c.generation
	c.mu.Unlock()

	go c.runAfterDebounce(gen, pos)
}

func (c *Controller) runAfterDebounce(gen uint64, pos geo.Coordinate) {
	time.Sleep(c.cfg.Debounce)

	c.mu.Lock()
	c.debouncing = false
	if !c.armed || gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.inFlight = true
	destination := c.destination
	opts := c.opts
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	c.cancel = cancel
	c.mu.Unlock()

	origin := pos
	if c.position != nil {
		if fresh, ok := c.position(); ok {
			origin = fresh
		}
	}

	log.Printf("Reroute: recalculating from (%.5f, %.5f)", origin.Lon, origin.Lat)
	routes, err := c.fetch.Routes(ctx, origin, destination, opts)
	cancel()
	if err == nil && len(routes) == 0 {
		err = directions.ErrNoRoute
	}

	c.mu.Lock()
	c.inFlight = false
	c.cancel = nil
	stale := gen != c.generation || !c.armed
	c.mu.Unlock()

	if stale {
		// Navigation stopped or restarted while we were fetching.
		return
	}

	if err != nil {
		log.Printf("Reroute: recalculation failed (will retry on next off-route evaluation): %v", err)
		if c.failed != nil {
			c.failed(err)
		}
		return
	}

	if !c.apply(routes[0]) {
		log.Printf("Reroute: new route discarded, session no longer rerouting")
	}
}
