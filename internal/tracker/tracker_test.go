package tracker

import (
	"errors"
	"testing"
	"time"

	"github.com/roadmate-app/navigator/internal/geo"
	"github.com/roadmate-app/navigator/internal/location"
	"github.com/roadmate-app/navigator/internal/route"
)

// navRoute builds a straight route heading north along lon 2.35 from
// lat 48.850 to 48.860 (~1.1 km), split into two maneuvers plus arrival.
func navRoute() *route.Route {
	line := func(fromLat, toLat float64, points int) []geo.Coordinate {
		coords := make([]geo.Coordinate, points)
		for i := 0; i < points; i++ {
			f := float64(i) / float64(points-1)
			coords[i] = geo.Coordinate{Lon: 2.35, Lat: fromLat + (toLat-fromLat)*f}
		}
		return coords
	}

	first := line(48.850, 48.855, 6)
	second := line(48.855, 48.860, 6)
	full := append(append([]geo.Coordinate{}, first...), second[1:]...)

	return &route.Route{
		ID:              route.NewID(),
		DistanceMeters:  geo.PathLength(full),
		DurationSeconds: 180,
		Geometry:        full,
		Legs: []route.Leg{{
			DistanceMeters:  geo.PathLength(full),
			DurationSeconds: 180,
			Steps: []route.Step{
				{
					Instruction:    "Head north on Rue A",
					DistanceMeters: geo.PathLength(first),
					Maneuver:       first[0],
					Geometry:       first,
				},
				{
					Instruction:    "Continue onto Rue B",
					DistanceMeters: geo.PathLength(second),
					Maneuver:       second[0],
					Geometry:       second,
				},
				{
					Instruction: "You have arrived at your destination",
					Maneuver:    second[len(second)-1],
					Geometry:    []geo.Coordinate{second[len(second)-1]},
				},
			},
		}},
	}
}

func fix(lon, lat float64, at time.Time) location.Sample {
	return location.Sample{
		Coordinate:     geo.Coordinate{Lon: lon, Lat: lat},
		AccuracyMeters: 5,
		Time:           at,
	}
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

func countKind(events []Event, kind EventKind) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func TestStart(t *testing.T) {
	tr := New(Config{})

	if tr.State() != StateIdle {
		t.Fatalf("initial state = %s, expected idle", tr.State())
	}

	id, err := tr.Start(navRoute())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if id == "" {
		t.Error("Start returned an empty session id")
	}
	if tr.State() != StateNavigating {
		t.Errorf("state = %s, expected navigating", tr.State())
	}

	status, ok := tr.Status()
	if !ok {
		t.Fatal("Status not available while navigating")
	}
	if status.StepIndex != 0 {
		t.Errorf("StepIndex = %d, expected 0 on a fresh session", status.StepIndex)
	}
	if status.RemainingMeters <= 0 {
		t.Errorf("RemainingMeters = %f, expected > 0", status.RemainingMeters)
	}
}

func TestStartEmptyRoute(t *testing.T) {
	tr := New(Config{})

	_, err := tr.Start(&route.Route{ID: route.NewID()})
	if !errors.Is(err, ErrEmptyRoute) {
		t.Fatalf("Start on empty route = %v, expected ErrEmptyRoute", err)
	}
	if tr.State() != StateIdle {
		t.Errorf("state = %s, expected idle after failed start", tr.State())
	}
}

func TestStartReplacesActiveSession(t *testing.T) {
	tr := New(Config{})

	first, err := tr.Start(navRoute())
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}
	second, err := tr.Start(navRoute())
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if first == second {
		t.Error("second Start reused the previous session id")
	}

	status, _ := tr.Status()
	if status.SessionID != second {
		t.Errorf("active session = %s, expected %s", status.SessionID, second)
	}
}

func TestStepAdvanceIsMonotonic(t *testing.T) {
	tr := New(Config{})
	if _, err := tr.Start(navRoute()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	at := time.Now()

	// Mid first step: no advance yet.
	events := tr.OnLocationUpdate(fix(2.35, 48.852, at))
	if countKind(events, EventStepAdvanced) != 0 {
		t.Errorf("step advanced mid first step: %v", kinds(events))
	}

	// Well into the second step.
	events = tr.OnLocationUpdate(fix(2.35, 48.857, at.Add(time.Second)))
	if countKind(events, EventStepAdvanced) != 1 {
		t.Fatalf("events = %v, expected one stepAdvanced", kinds(events))
	}
	for _, ev := range events {
		if ev.Kind == EventStepAdvanced && ev.StepIndex != 1 {
			t.Errorf("advanced to step %d, expected 1", ev.StepIndex)
		}
	}

	// A position matching earlier geometry must not move the index back.
	events = tr.OnLocationUpdate(fix(2.35, 48.8571, at.Add(2*time.Second)))
	status, _ := tr.Status()
	if status.StepIndex != 1 {
		t.Errorf("StepIndex = %d after later fix, expected 1", status.StepIndex)
	}
	if countKind(events, EventStepAdvanced) != 0 {
		t.Errorf("unexpected step advance: %v", kinds(events))
	}
}

func TestOffRouteSignaledOncePerExcursion(t *testing.T) {
	tr := New(Config{})
	if _, err := tr.Start(navRoute()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	at := time.Now()

	// ~110m east of the polyline, sustained for three updates; positions
	// vary slightly so the stationary dedupe does not swallow them.
	var offRouteEvents int
	for i := 0; i < 3; i++ {
		lat := 48.8520 + float64(i)*0.0001
		events := tr.OnLocationUpdate(fix(2.3515, lat, at.Add(time.Duration(i)*time.Second)))
		offRouteEvents += countKind(events, EventOffRoute)
	}

	if offRouteEvents != 1 {
		t.Fatalf("offRoute events = %d, expected exactly 1 per excursion", offRouteEvents)
	}
	if tr.State() != StateRerouting {
		t.Errorf("state = %s, expected rerouting", tr.State())
	}

	status, _ := tr.Status()
	if !status.OffRoute {
		t.Error("status does not report off-route")
	}
}

func TestOffRouteRequiresDebounce(t *testing.T) {
	tr := New(Config{})
	if _, err := tr.Start(navRoute()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	at := time.Now()

	// A single deviating fix is below the two-sample debounce.
	events := tr.OnLocationUpdate(fix(2.3515, 48.852, at))
	if countKind(events, EventOffRoute) != 0 {
		t.Fatalf("offRoute fired on the first deviating sample")
	}

	// Back on route before the second deviating sample: streak resets.
	tr.OnLocationUpdate(fix(2.35, 48.8521, at.Add(time.Second)))
	events = tr.OnLocationUpdate(fix(2.3515, 48.8522, at.Add(2*time.Second)))
	if countKind(events, EventOffRoute) != 0 {
		t.Fatalf("offRoute fired after the streak was broken")
	}
	if tr.State() != StateNavigating {
		t.Errorf("state = %s, expected navigating", tr.State())
	}
}

func TestLowAccuracyFixesAreDisplayOnly(t *testing.T) {
	tr := New(Config{})
	if _, err := tr.Start(navRoute()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	at := time.Now()

	// Deviating fixes with degraded accuracy must not build an off-route
	// streak, however many arrive.
	for i := 0; i < 5; i++ {
		s := fix(2.3515, 48.8520+float64(i)*0.0001, at.Add(time.Duration(i)*time.Second))
		s.AccuracyMeters = 120
		if events := tr.OnLocationUpdate(s); len(events) != 0 {
			t.Fatalf("low-accuracy fix produced events: %v", kinds(events))
		}
	}
	if tr.State() != StateNavigating {
		t.Errorf("state = %s, expected navigating", tr.State())
	}

	// The displayed position still follows the raw fix.
	status, _ := tr.Status()
	if status.Position.Lon != 2.3515 {
		t.Errorf("displayed position lon = %f, expected 2.3515", status.Position.Lon)
	}
}

func TestStationaryFixIsDeduplicated(t *testing.T) {
	tr := New(Config{})
	if _, err := tr.Start(navRoute()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	at := time.Now()

	first := tr.OnLocationUpdate(fix(2.35, 48.852, at))
	if len(first) == 0 {
		t.Fatal("first fix produced no events")
	}
	repeat := tr.OnLocationUpdate(fix(2.35, 48.852, at.Add(time.Second)))
	if len(repeat) != 0 {
		t.Errorf("identical fix produced events: %v", kinds(repeat))
	}
}

func TestArrival(t *testing.T) {
	tr := New(Config{})
	if _, err := tr.Start(navRoute()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	at := time.Now()

	tr.OnLocationUpdate(fix(2.35, 48.855, at))
	tr.OnLocationUpdate(fix(2.35, 48.859, at.Add(time.Second)))
	events := tr.OnLocationUpdate(fix(2.35, 48.860, at.Add(2*time.Second)))

	if countKind(events, EventArrived) != 1 {
		t.Fatalf("events = %v, expected arrived", kinds(events))
	}
	if tr.State() != StateIdle {
		t.Errorf("state = %s, expected idle after arrival", tr.State())
	}

	// No further evaluation after arrival: deviating fixes are ignored.
	after := tr.OnLocationUpdate(fix(2.3515, 48.861, at.Add(3*time.Second)))
	if len(after) != 0 {
		t.Errorf("events after arrival: %v", kinds(after))
	}
}

func driveOffRoute(t *testing.T, tr *Tracker, at time.Time) {
	t.Helper()
	off := 0
	for i := 0; i < 3; i++ {
		events := tr.OnLocationUpdate(fix(2.3515, 48.8520+float64(i)*0.0001, at.Add(time.Duration(i)*time.Second)))
		off += countKind(events, EventOffRoute)
	}
	if off != 1 {
		t.Fatalf("offRoute events = %d, expected 1", off)
	}
}

func TestCompleteRerouteSwapsSession(t *testing.T) {
	tr := New(Config{})
	first, err := tr.Start(navRoute())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	driveOffRoute(t, tr, time.Now())

	if !tr.CompleteReroute(navRoute()) {
		t.Fatal("CompleteReroute rejected while rerouting")
	}
	if tr.State() != StateNavigating {
		t.Errorf("state = %s, expected navigating after reroute", tr.State())
	}

	status, _ := tr.Status()
	if status.SessionID == first {
		t.Error("reroute kept the old session")
	}
	if status.StepIndex != 0 {
		t.Errorf("StepIndex = %d, expected 0 on the fresh session", status.StepIndex)
	}
	if status.OffRoute {
		t.Error("fresh session still flagged off-route")
	}
}

func TestCompleteRerouteDiscardedWhenNotRerouting(t *testing.T) {
	tr := New(Config{})
	if _, err := tr.Start(navRoute()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if tr.CompleteReroute(navRoute()) {
		t.Error("CompleteReroute accepted while navigating on-route")
	}

	tr.Stop()
	if tr.CompleteReroute(navRoute()) {
		t.Error("CompleteReroute accepted after stop")
	}
	if tr.State() != StateIdle {
		t.Errorf("state = %s, expected idle", tr.State())
	}
}

func TestRerouteFailedReArmsOffRouteLatch(t *testing.T) {
	tr := New(Config{})
	if _, err := tr.Start(navRoute()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	at := time.Now()
	driveOffRoute(t, tr, at)

	// While signaled, further deviating fixes stay silent.
	events := tr.OnLocationUpdate(fix(2.3515, 48.8530, at.Add(5*time.Second)))
	if countKind(events, EventOffRoute) != 0 {
		t.Fatal("offRoute re-fired before the latch was re-armed")
	}

	tr.RerouteFailed()
	if tr.State() != StateRerouting {
		t.Fatalf("state = %s, expected to stay rerouting after a failed attempt", tr.State())
	}

	off := 0
	for i := 0; i < 3; i++ {
		events := tr.OnLocationUpdate(fix(2.3515, 48.8540+float64(i)*0.0001, at.Add(time.Duration(10+i)*time.Second)))
		off += countKind(events, EventOffRoute)
	}
	if off != 1 {
		t.Errorf("offRoute events after re-arm = %d, expected 1", off)
	}
}

func TestStopDiscardsSession(t *testing.T) {
	tr := New(Config{})
	if _, err := tr.Start(navRoute()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	tr.Stop()

	if tr.State() != StateIdle {
		t.Errorf("state = %s, expected idle", tr.State())
	}
	if _, ok := tr.Status(); ok {
		t.Error("Status available after stop")
	}
	if events := tr.OnLocationUpdate(fix(2.35, 48.852, time.Now())); len(events) != 0 {
		t.Errorf("events after stop: %v", kinds(events))
	}
}
