package alerts

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roadmate-app/navigator/internal/geo"
)

// PromptRequest asks the external confirmation surface whether a pin is
// still there. The surface must resolve it exactly once, with the user's
// answer or a timeout expiry, within Timeout.
type PromptRequest struct {
	RequestID string        `json:"requestId"`
	Pin       Pin           `json:"pin"`
	Timeout   time.Duration `json:"timeout"`
}

// WatcherConfig holds proximity thresholds and the injectable clock and
// random source used for deterministic tests.
type WatcherConfig struct {
	RadiusMeters  float64
	Cooldown      time.Duration
	PromptTimeout time.Duration

	Now  func() time.Time
	IntN func(n int) int
}

func (c WatcherConfig) withDefaults() WatcherConfig {
	if c.RadiusMeters <= 0 {
		c.RadiusMeters = 50
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 5 * time.Minute
	}
	if c.PromptTimeout <= 0 {
		c.PromptTimeout = 30 * time.Second
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.IntN == nil {
		c.IntN = rand.Intn
	}
	return c
}

// Watcher decides, on each location update, whether to prompt the user to
// confirm a nearby pin. Prompts are gated by a single shared cooldown:
// one global timestamp, and an attempted set that is cleared wholesale
// when the window lapses. A pin already attempted cannot be re-selected
// until that shared reset, even if its own prompt is long gone. That is
// deliberately coarse; one timer keeps the gating trivially predictable.
type Watcher struct {
	cfg WatcherConfig
	src Source

	mu            sync.Mutex
	promptOpen    bool
	openRequestID string
	lastPromptAt  time.Time
	attempted     map[string]struct{}
}

// NewWatcher creates a watcher over the given pin source.
func NewWatcher(src Source, cfg WatcherConfig) *Watcher {
	return &Watcher{
		cfg:       cfg.withDefaults(),
		src:       src,
		attempted: make(map[string]struct{}),
	}
}

// OnLocationUpdate evaluates pins around pos. It returns a prompt request
// when exactly one pin was selected, nil otherwise. Runs independently of
// navigation state; the only gates are the open-prompt flag and the
// shared cooldown.
func (w *Watcher) OnLocationUpdate(ctx context.Context, pos geo.Coordinate) (*PromptRequest, error) {
	w.mu.Lock()
	if w.promptOpen {
		w.mu.Unlock()
		return nil, nil
	}
	now := w.cfg.Now()
	if !w.lastPromptAt.IsZero() && now.Sub(w.lastPromptAt) < w.cfg.Cooldown {
		w.mu.Unlock()
		return nil, nil
	}
	// The cooldown window has lapsed: clear the attempted set wholesale.
	if len(w.attempted) > 0 {
		w.attempted = make(map[string]struct{})
	}
	w.mu.Unlock()

	pins, err := w.src.Nearby(ctx, pos, w.cfg.RadiusMeters)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.promptOpen {
		return nil, nil
	}

	eligible := pins[:0:0]
	for _, pin := range pins {
		if _, tried := w.attempted[pin.ID]; !tried {
			eligible = append(eligible, pin)
		}
	}
	if len(eligible) == 0 {
		return nil, nil
	}

	picked := eligible[w.cfg.IntN(len(eligible))]
	w.attempted[picked.ID] = struct{}{}
	w.lastPromptAt = now
	w.promptOpen = true
	w.openRequestID = uuid.New().String()

	log.Printf("Alerts: prompting for pin %s (%s)", picked.ID, picked.Type)
	return &PromptRequest{
		RequestID: w.openRequestID,
		Pin:       picked,
		Timeout:   w.cfg.PromptTimeout,
	}, nil
}

// Resolve closes the open prompt. stillThere carries the user's answer
// (false also covers timeout expiry); acting on it is the pin backend's
// job, the watcher only releases the gate. It reports false when
// requestID does not match the open prompt.
func (w *Watcher) Resolve(requestID string, stillThere bool) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.promptOpen || requestID != w.openRequestID {
		return false
	}
	w.promptOpen = false
	w.openRequestID = ""
	log.Printf("Alerts: prompt %s resolved (still there: %t)", requestID, stillThere)
	return true
}

// PromptOpen reports whether a confirmation prompt is pending.
func (w *Watcher) PromptOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.promptOpen
}
