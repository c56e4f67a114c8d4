// Package navigator composes the navigation engine: it owns the event
// loop that feeds the tracker, and wires its events to the reroute
// controller, the instruction coordinator, and the proximity watcher.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/roadmate-app/navigator/internal/alerts"
	"github.com/roadmate-app/navigator/internal/config"
	"github.com/roadmate-app/navigator/internal/directions"
	"github.com/roadmate-app/navigator/internal/geo"
	"github.com/roadmate-app/navigator/internal/guidance"
	"github.com/roadmate-app/navigator/internal/location"
	"github.com/roadmate-app/navigator/internal/reroute"
	"github.com/roadmate-app/navigator/internal/route"
	"github.com/roadmate-app/navigator/internal/tracker"
)

const recalculatingAnnouncement = "Recalculating route"

// PromptSink receives proximity confirmation requests for the external
// UI surface.
type PromptSink func(alerts.PromptRequest)

// ErrNoPlan is returned when navigation is started before a route has
// been planned.
var ErrNoPlan = errors.New("navigator: no planned route")

// Navigator is the engine facade. One logical stream of location samples
// drives both the tracker and the proximity watcher through an ordered
// fan-out; network recalculations never block sample delivery.
type Navigator struct {
	fetch      reroute.Fetcher
	tracker    *tracker.Tracker
	controller *reroute.Controller
	guide      *guidance.Coordinator
	watcher    *alerts.Watcher
	promptSink PromptSink

	maxAccuracyMeters float64

	samples <-chan location.Sample
	events  chan tracker.Event

	mu        sync.Mutex
	result    *directions.Result
	dest      geo.Coordinate
	opts      directions.Options
	lastFixAt time.Time
}

// New wires the engine. samples is the device location stream; it is
// consumed for the navigator's whole lifetime (proximity evaluation runs
// even when no navigation session is active).
func New(cfg *config.Config, fetch reroute.Fetcher, speaker guidance.Speaker, pins alerts.Source, promptSink PromptSink, samples <-chan location.Sample) *Navigator {
	n := &Navigator{
		fetch:             fetch,
		guide:             guidance.NewCoordinator(speaker),
		promptSink:        promptSink,
		samples:           samples,
		events:            make(chan tracker.Event, 32),
		maxAccuracyMeters: cfg.MaxAccuracyMeters,
	}
	if n.maxAccuracyMeters <= 0 {
		n.maxAccuracyMeters = 50
	}

	n.tracker = tracker.New(tracker.Config{
		OnRouteToleranceMeters: cfg.OnRouteToleranceMeters,
		OffRouteMinSamples:     cfg.OffRouteMinSamples,
		OffRouteMinDuration:    cfg.OffRouteMinDuration,
		ArrivalToleranceMeters: cfg.ArrivalToleranceMeters,
		MaxAccuracyMeters:      cfg.MaxAccuracyMeters,
	})

	n.controller = reroute.NewController(
		fetch,
		n.currentPosition,
		n.applyReroute,
		func(error) { n.tracker.RerouteFailed() },
		reroute.Config{
			Debounce: cfg.RerouteDebounce,
			Timeout:  cfg.RerouteTimeout,
		},
	)

	n.watcher = alerts.NewWatcher(pins, alerts.WatcherConfig{
		RadiusMeters:  cfg.PinRadiusMeters,
		Cooldown:      cfg.PromptCooldown,
		PromptTimeout: cfg.PromptTimeout,
	})

	return n
}

// Run consumes the location stream until it closes or ctx is cancelled.
// The tracker and the proximity watcher are independent subscribers of
// the same ordered fan-out.
func (n *Navigator) Run(ctx context.Context) {
	bcast := location.NewBroadcaster(n.samples)
	navSub := bcast.Subscribe(16)
	proxSub := bcast.Subscribe(16)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case sample, ok := <-navSub:
				if !ok {
					return
				}
				n.handleSample(sample)
			}
		}
	}()

	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case sample, ok := <-proxSub:
				if !ok {
					return
				}
				n.evaluateProximity(ctx, sample)
			}
		}
	}()

	wg.Wait()
	close(n.events)
}

// Events exposes step-advance, off-route and arrival events for
// observers (the simulator, a push channel to the UI). Progress events
// are not forwarded; the status snapshot serves display updates.
func (n *Navigator) Events() <-chan tracker.Event {
	return n.events
}

// Plan requests candidate routes and remembers them (and the query) as
// the current plan. Fetch failures surface to the caller untouched;
// retry policy for planning belongs to the user pressing the button
// again.
func (n *Navigator) Plan(ctx context.Context, origin, destination geo.Coordinate, opts directions.Options) (*directions.Result, error) {
	routes, err := n.fetch.Routes(ctx, origin, destination, opts)
	if err != nil {
		return nil, err
	}
	result := &directions.Result{Routes: routes}

	n.mu.Lock()
	n.result = result
	n.dest = destination
	n.opts = opts
	n.mu.Unlock()

	log.Printf("Navigator: planned %d candidate route(s) to (%.5f, %.5f)",
		len(routes), destination.Lon, destination.Lat)
	return result, nil
}

// StartNavigation begins navigating a planned route; routeID selects an
// alternate, empty means the primary. An active session is torn down
// first.
func (n *Navigator) StartNavigation(routeID string) error {
	n.mu.Lock()
	result := n.result
	dest := n.dest
	opts := n.opts
	n.mu.Unlock()

	if result == nil {
		return ErrNoPlan
	}

	var r *route.Route
	if routeID == "" {
		r = result.Primary()
	} else {
		chosen, err := result.Choose(routeID)
		if err != nil {
			return err
		}
		r = chosen
	}
	if r == nil {
		return ErrNoPlan
	}

	// Tear down any previous session before arming the new one.
	n.controller.Disarm()
	n.guide.Silence()

	if _, err := n.tracker.Start(r); err != nil {
		return fmt.Errorf("navigator: start navigation: %w", err)
	}
	n.controller.Arm(dest, opts)

	steps := r.Steps()
	if len(steps) > 0 {
		n.guide.AnnounceForced(steps[0].Instruction)
	}
	return nil
}

// StopNavigation halts speech immediately, discards the session, and
// marks any in-flight reroute response as discardable.
func (n *Navigator) StopNavigation() {
	n.controller.Disarm()
	n.tracker.Stop()
	n.guide.Silence()
}

// Status returns the display snapshot; ok is false while idle.
func (n *Navigator) Status() (tracker.Status, bool) {
	return n.tracker.Status()
}

// RerouteInFlight reports whether a recalculation is currently running.
func (n *Navigator) RerouteInFlight() bool {
	return n.controller.InFlight()
}

// ResolvePrompt forwards the confirmation surface's answer (or timeout
// expiry) to the proximity watcher.
func (n *Navigator) ResolvePrompt(requestID string, stillThere bool) bool {
	return n.watcher.Resolve(requestID, stillThere)
}

// LocationAvailable reports whether a fix arrived within maxAge. A stale
// or absent stream is the user-visible "location unavailable" state;
// tracking itself keeps whatever state it is in and resumes when fixes
// return.
func (n *Navigator) LocationAvailable(maxAge time.Duration) bool {
	n.mu.Lock()
	at := n.lastFixAt
	n.mu.Unlock()
	return !at.IsZero() && time.Since(at) <= maxAge
}

func (n *Navigator) handleSample(sample location.Sample) {
	n.mu.Lock()
	if sample.Time.After(n.lastFixAt) {
		n.lastFixAt = sample.Time
	}
	n.mu.Unlock()

	for _, ev := range n.tracker.OnLocationUpdate(sample) {
		switch ev.Kind {
		case tracker.EventStepAdvanced:
			n.guide.Announce(ev.Step.Instruction)
			n.publish(ev)
		case tracker.EventOffRoute:
			n.guide.AnnounceForced(recalculatingAnnouncement)
			n.controller.NotifyOffRoute(ev.Position)
			n.publish(ev)
		case tracker.EventArrived:
			n.guide.AnnounceForced("You have arrived at your destination")
			n.controller.Disarm()
			n.publish(ev)
		}
	}
}

func (n *Navigator) evaluateProximity(ctx context.Context, sample location.Sample) {
	// Low-confidence fixes never drive pin prompts: a noisy fix near a
	// pin would otherwise burn the shared cooldown on a pin the user may
	// never have approached.
	if sample.AccuracyMeters > n.maxAccuracyMeters {
		return
	}

	req, err := n.watcher.OnLocationUpdate(ctx, sample.Coordinate)
	if err != nil {
		log.Printf("Navigator: proximity evaluation failed: %v", err)
		return
	}
	if req != nil && n.promptSink != nil {
		n.promptSink(*req)
	}
}

// currentPosition gives the reroute controller the freshest fix as the
// recalculation origin.
func (n *Navigator) currentPosition() (geo.Coordinate, bool) {
	status, ok := n.tracker.Status()
	if !ok {
		return geo.Coordinate{}, false
	}
	return status.Position, true
}

// applyReroute swaps the new route into the session. The swap is atomic:
// consumers observe either the old session or the fresh one, never a mix.
func (n *Navigator) applyReroute(r *route.Route) bool {
	if !n.tracker.CompleteReroute(r) {
		return false
	}
	if steps := r.Steps(); len(steps) > 0 {
		n.guide.Announce(steps[0].Instruction)
	}
	return true
}

func (n *Navigator) publish(ev tracker.Event) {
	select {
	case n.events <- ev:
	default:
	}
}
