// Package tracker owns the navigation state machine. It is the single
// writer of session state; everything else observes it through events and
// read-only snapshots.
package tracker

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roadmate-app/navigator/internal/geo"
	"github.com/roadmate-app/navigator/internal/location"
	"github.com/roadmate-app/navigator/internal/route"
)

// State is the tracker's navigation state.
type State int

const (
	StateIdle State = iota
	StateNavigating
	StateRerouting // transient sub-state of navigating, entered on off-route
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateNavigating:
		return "navigating"
	case StateRerouting:
		return "rerouting"
	}
	return "unknown"
}

// EventKind discriminates tracker events.
type EventKind int

const (
	EventProgress EventKind = iota
	EventStepAdvanced
	EventOffRoute
	EventArrived
)

// Event is emitted by OnLocationUpdate for downstream subscribers (the
// reroute controller and the instruction coordinator).
type Event struct {
	Kind             EventKind
	StepIndex        int
	Step             route.Step // set for EventStepAdvanced
	Position         geo.Coordinate
	RemainingMeters  float64
	RemainingSeconds float64
}

// Config holds the tracker thresholds.
type Config struct {
	OnRouteToleranceMeters float64       // lateral deviation considered on-route
	OffRouteMinSamples     int           // consecutive deviating samples before signaling
	OffRouteMinDuration    time.Duration // sustained deviation before signaling
	ArrivalToleranceMeters float64       // distance to the final coordinate counting as arrival
	MaxAccuracyMeters      float64       // fixes worse than this don't drive route decisions
}

func (c Config) withDefaults() Config {
	if c.OnRouteToleranceMeters <= 0 {
		c.OnRouteToleranceMeters = 30
	}
	if c.OffRouteMinSamples <= 0 {
		c.OffRouteMinSamples = 2
	}
	if c.OffRouteMinDuration <= 0 {
		c.OffRouteMinDuration = 5 * time.Second
	}
	if c.ArrivalToleranceMeters <= 0 {
		c.ArrivalToleranceMeters = 20
	}
	if c.MaxAccuracyMeters <= 0 {
		c.MaxAccuracyMeters = 50
	}
	return c
}

// session is the mutable navigation state. Exactly one exists while
// navigating; a reroute replaces it wholesale.
type session struct {
	id    string
	index *route.Index

	stepIndex int // monotonically non-decreasing while on-route

	rawPosition     geo.Coordinate // last fix, including low-confidence ones
	matchedPosition geo.Coordinate
	hasLastRaw      bool

	traveledMeters   float64
	remainingMeters  float64
	remainingSeconds float64

	offRoute         bool
	offRouteSince    time.Time
	offRouteStreak   int
	offRouteSignaled bool // the once-per-excursion latch

	startedAt time.Time
}

// Status is a read-only snapshot of the active session for display. It
// stays current while a reroute is in flight.
type Status struct {
	State            State          `json:"state"`
	SessionID        string         `json:"sessionId"`
	RouteID          string         `json:"routeId"`
	StepIndex        int            `json:"stepIndex"`
	Instruction      string         `json:"instruction"`
	Position         geo.Coordinate `json:"position"`
	MatchedPosition  geo.Coordinate `json:"matchedPosition"`
	TraveledMeters   float64        `json:"traveledMeters"`
	RemainingMeters  float64        `json:"remainingMeters"`
	RemainingSeconds float64        `json:"remainingSeconds"`
	OffRoute         bool           `json:"offRoute"`
	StartedAt        time.Time      `json:"startedAt"`
}

// ErrEmptyRoute is returned when starting navigation on a route without
// usable geometry.
var ErrEmptyRoute = errors.New("tracker: route has no steps")

// Tracker runs the Idle -> Navigating -> (Idle | Rerouting) state machine.
// OnLocationUpdate must be called from a single goroutine; snapshots and
// reroute completion may come from others.
type Tracker struct {
	cfg Config

	mu    sync.RWMutex
	state State
	s     *session
}

// New creates an idle tracker.
func New(cfg Config) *Tracker {
	return &Tracker{cfg: cfg.withDefaults()}
}

// Start begins navigating the given route. An active session, if any, is
// torn down first.
func (t *Tracker) Start(r *route.Route) (string, error) {
	ix := route.NewIndex(r)
	if ix.StepCount() == 0 {
		return "", ErrEmptyRoute
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.s != nil {
		log.Printf("Tracker: replacing active session %s", t.s.id)
	}
	t.s = newSession(ix)
	t.state = StateNavigating

	log.Printf("Tracker: session %s started (route %s, %d steps, %.0fm)",
		t.s.id, r.ID, ix.StepCount(), ix.TotalMeters())
	return t.s.id, nil
}

func newSession(ix *route.Index) *session {
	return &session{
		id:               uuid.New().String(),
		index:            ix,
		remainingMeters:  ix.TotalMeters(),
		remainingSeconds: ix.TotalSeconds(),
		startedAt:        time.Now().UTC(),
	}
}

// Stop ends navigation and discards the session.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.s != nil {
		log.Printf("Tracker: session %s stopped", t.s.id)
	}
	t.s = nil
	t.state = StateIdle
}

// State returns the current navigation state.
func (t *Tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Status returns a display snapshot; ok is false when idle.
func (t *Tracker) Status() (Status, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.state == StateIdle || t.s == nil {
		return Status{State: StateIdle}, false
	}
	s := t.s
	return Status{
		State:            t.state,
		SessionID:        s.id,
		RouteID:          s.index.Route().ID,
		StepIndex:        s.stepIndex,
		Instruction:      s.index.Step(s.stepIndex).Instruction,
		Position:         s.rawPosition,
		MatchedPosition:  s.matchedPosition,
		TraveledMeters:   s.traveledMeters,
		RemainingMeters:  s.remainingMeters,
		RemainingSeconds: s.remainingSeconds,
		OffRoute:         s.offRoute,
		StartedAt:        s.startedAt,
	}, true
}

// OnLocationUpdate feeds one fix through the state machine and returns
// the events it produced, in order.
func (t *Tracker) OnLocationUpdate(sample location.Sample) []Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateIdle || t.s == nil {
		return nil
	}
	s := t.s

	// A stationary device repeats the same fix; nothing to re-evaluate.
	if s.hasLastRaw && sample.Coordinate == s.rawPosition {
		return nil
	}
	s.rawPosition = sample.Coordinate
	s.hasLastRaw = true

	// Low-confidence fixes update the displayed position but never drive
	// off-route or step decisions; noisy fixes must not cause reroutes.
	if sample.AccuracyMeters > t.cfg.MaxAccuracyMeters {
		return nil
	}

	m := s.index.Match(sample.Coordinate, s.stepIndex)

	if m.LateralMeters > t.cfg.OnRouteToleranceMeters {
		return t.onDeviatingLocked(sample)
	}
	return t.onRouteLocked(sample, m)
}

func (t *Tracker) onRouteLocked(sample location.Sample, m route.Match) []Event {
	s := t.s

	s.offRouteStreak = 0
	if !s.offRouteSignaled {
		// Excursions resolve through a new session (or a failed reroute
		// re-arm), never by simply drifting back within tolerance.
		s.offRoute = false
		s.offRouteSince = time.Time{}
	}

	s.matchedPosition = m.Point
	if m.AlongRouteMeters > s.traveledMeters {
		s.traveledMeters = m.AlongRouteMeters
	}
	s.remainingMeters, s.remainingSeconds = s.index.Remaining(s.traveledMeters)

	var events []Event

	if next := s.index.StepForProgress(s.traveledMeters, s.stepIndex); next > s.stepIndex {
		s.stepIndex = next
		events = append(events, Event{
			Kind:             EventStepAdvanced,
			StepIndex:        next,
			Step:             s.index.Step(next),
			Position:         m.Point,
			RemainingMeters:  s.remainingMeters,
			RemainingSeconds: s.remainingSeconds,
		})
	}

	// Arrival needs both nearness to the final coordinate and nearly
	// exhausted progress, so a route that merely passes by the
	// destination early does not end the session.
	if geo.DistanceMeters(sample.Coordinate, s.index.End()) <= t.cfg.ArrivalToleranceMeters &&
		s.remainingMeters <= 3*t.cfg.ArrivalToleranceMeters {
		events = append(events, Event{
			Kind:      EventArrived,
			StepIndex: s.stepIndex,
			Position:  m.Point,
		})
		log.Printf("Tracker: session %s arrived", s.id)
		t.s = nil
		t.state = StateIdle
		return events
	}

	events = append(events, Event{
		Kind:             EventProgress,
		StepIndex:        s.stepIndex,
		Position:         m.Point,
		RemainingMeters:  s.remainingMeters,
		RemainingSeconds: s.remainingSeconds,
	})
	return events
}

func (t *Tracker) onDeviatingLocked(sample location.Sample) []Event {
	s := t.s

	s.offRouteStreak++
	if s.offRouteSince.IsZero() {
		s.offRouteSince = sample.Time
	}
	if s.offRouteSignaled {
		return nil
	}

	sustained := !sample.Time.IsZero() &&
		sample.Time.Sub(s.offRouteSince) >= t.cfg.OffRouteMinDuration
	if s.offRouteStreak < t.cfg.OffRouteMinSamples && !sustained {
		return nil
	}

	s.offRouteSignaled = true
	s.offRoute = true
	t.state = StateRerouting
	log.Printf("Tracker: session %s off route at (%.5f, %.5f)",
		s.id, sample.Coordinate.Lon, sample.Coordinate.Lat)

	return []Event{{
		Kind:             EventOffRoute,
		StepIndex:        s.stepIndex,
		Position:         sample.Coordinate,
		RemainingMeters:  s.remainingMeters,
		RemainingSeconds: s.remainingSeconds,
	}}
}

// CompleteReroute atomically replaces the session with a fresh one bound
// to the new route and returns to navigating. It reports false when the
// tracker is no longer rerouting (e.g. navigation was stopped while the
// request was in flight), in which case the new route is discarded.
func (t *Tracker) CompleteReroute(r *route.Route) bool {
	ix := route.NewIndex(r)
	if ix.StepCount() == 0 {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateRerouting || t.s == nil {
		return false
	}

	old := t.s.id
	t.s = newSession(ix)
	t.state = StateNavigating
	log.Printf("Tracker: session %s rerouted onto %s (new session %s)", old, r.ID, t.s.id)
	return true
}

// RerouteFailed re-arms the off-route latch so that subsequent deviating
// updates can trigger another debounced attempt. The tracker stays in the
// rerouting state.
func (t *Tracker) RerouteFailed() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateRerouting || t.s == nil {
		return
	}
	t.s.offRouteSignaled = false
	t.s.offRouteStreak = 0
	t.s.offRouteSince = time.Time{}
}
