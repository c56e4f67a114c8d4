package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/roadmate-app/navigator/internal/geo"
)

var user = geo.Coordinate{Lon: 2.35, Lat: 48.85}

// twoNearbyPins places one pin 20m and one 40m from the user, both within
// the default 50m radius.
func twoNearbyPins() []Pin {
	return []Pin{
		{ID: "pin-near", Type: PinObstacle, Coordinate: geo.Offset(user, 90, 20)},
		{ID: "pin-far", Type: PinRoadwork, Coordinate: geo.Offset(user, 90, 40)},
	}
}

// testWatcher builds a watcher with a controllable clock and a random
// source that always picks the first eligible pin.
func testWatcher(pins []Pin) (*Watcher, *time.Time) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	w := NewWatcher(NewStaticSource(pins), WatcherConfig{
		RadiusMeters: 50,
		Cooldown:     5 * time.Minute,
		Now:          func() time.Time { return now },
		IntN:         func(int) int { return 0 },
	})
	return w, &now
}

func TestPromptSelectsExactlyOnePin(t *testing.T) {
	w, _ := testWatcher(twoNearbyPins())

	req, err := w.OnLocationUpdate(context.Background(), user)
	if err != nil {
		t.Fatalf("OnLocationUpdate: %v", err)
	}
	if req == nil {
		t.Fatal("expected a prompt with two pins in radius and cooldown lapsed")
	}
	if req.RequestID == "" {
		t.Error("prompt has no request id")
	}
	if req.Pin.ID != "pin-near" && req.Pin.ID != "pin-far" {
		t.Errorf("selected unknown pin %q", req.Pin.ID)
	}
	if !w.PromptOpen() {
		t.Error("PromptOpen = false while the prompt is pending")
	}
}

func TestCooldownBlocksSecondPrompt(t *testing.T) {
	w, now := testWatcher(twoNearbyPins())

	req, _ := w.OnLocationUpdate(context.Background(), user)
	if req == nil {
		t.Fatal("expected the first prompt")
	}
	if !w.Resolve(req.RequestID, true) {
		t.Fatal("Resolve rejected the open prompt")
	}

	// Within the cooldown window nothing fires, including the pin that was
	// never attempted.
	*now = now.Add(time.Minute)
	if again, _ := w.OnLocationUpdate(context.Background(), user); again != nil {
		t.Fatalf("prompt for %q fired inside the cooldown window", again.Pin.ID)
	}

	// Once the shared window lapses the attempted set is cleared wholesale
	// and prompting resumes.
	*now = now.Add(5 * time.Minute)
	again, _ := w.OnLocationUpdate(context.Background(), user)
	if again == nil {
		t.Fatal("expected a prompt after the cooldown lapsed")
	}
}

func TestAttemptedPinClearedWholesale(t *testing.T) {
	w, now := testWatcher(twoNearbyPins())

	first, _ := w.OnLocationUpdate(context.Background(), user)
	if first == nil {
		t.Fatal("expected the first prompt")
	}
	w.Resolve(first.RequestID, false)

	// After the shared reset every pin is eligible again, the previously
	// attempted one included.
	*now = now.Add(6 * time.Minute)
	second, _ := w.OnLocationUpdate(context.Background(), user)
	if second == nil {
		t.Fatal("expected a prompt after the reset")
	}
	if second.Pin.ID != first.Pin.ID {
		// IntN always picks index 0, so getting a different pin would mean
		// the attempted set survived the reset.
		t.Errorf("selected %q, expected %q to be eligible again", second.Pin.ID, first.Pin.ID)
	}
}

func TestOpenPromptGatesEvaluation(t *testing.T) {
	w, now := testWatcher(twoNearbyPins())

	req, _ := w.OnLocationUpdate(context.Background(), user)
	if req == nil {
		t.Fatal("expected the first prompt")
	}

	// Prompt left unresolved: even a lapsed cooldown must not fire another.
	*now = now.Add(10 * time.Minute)
	if again, _ := w.OnLocationUpdate(context.Background(), user); again != nil {
		t.Fatal("a second prompt fired while one was still open")
	}

	w.Resolve(req.RequestID, true)
	again, _ := w.OnLocationUpdate(context.Background(), user)
	if again == nil {
		t.Fatal("expected a prompt after the first was resolved")
	}
}

func TestResolveRequiresMatchingRequest(t *testing.T) {
	w, _ := testWatcher(twoNearbyPins())

	req, _ := w.OnLocationUpdate(context.Background(), user)
	if req == nil {
		t.Fatal("expected a prompt")
	}

	if w.Resolve("some-other-request", true) {
		t.Error("Resolve accepted a mismatched request id")
	}
	if !w.Resolve(req.RequestID, true) {
		t.Error("Resolve rejected the open prompt")
	}
	if w.Resolve(req.RequestID, true) {
		t.Error("Resolve accepted the same prompt twice")
	}
}

func TestNoPromptOutsideRadius(t *testing.T) {
	pins := []Pin{
		{ID: "pin-distant", Type: PinAccident, Coordinate: geo.Offset(user, 90, 200)},
	}
	w, _ := testWatcher(pins)

	if req, _ := w.OnLocationUpdate(context.Background(), user); req != nil {
		t.Errorf("prompted for pin %q 200m away", req.Pin.ID)
	}
}

func TestRandomSelectionIsInjectable(t *testing.T) {
	w, _ := testWatcher(twoNearbyPins())
	w.cfg.IntN = func(n int) int { return n - 1 }

	req, _ := w.OnLocationUpdate(context.Background(), user)
	if req == nil {
		t.Fatal("expected a prompt")
	}
	if req.Pin.ID != "pin-far" {
		t.Errorf("selected %q, expected the random source to pick %q", req.Pin.ID, "pin-far")
	}
}

func TestStaticSourceNearby(t *testing.T) {
	src := NewStaticSource(twoNearbyPins())

	pins, err := src.Nearby(context.Background(), user, 30)
	if err != nil {
		t.Fatalf("Nearby: %v", err)
	}
	if len(pins) != 1 || pins[0].ID != "pin-near" {
		t.Errorf("Nearby(30m) = %v, expected only pin-near", pins)
	}

	pins, _ = src.Nearby(context.Background(), user, 50)
	if len(pins) != 2 {
		t.Errorf("Nearby(50m) returned %d pins, expected 2", len(pins))
	}
}
