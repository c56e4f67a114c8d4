// Package guidance maps navigation events to spoken output.
package guidance

import (
	"log"
	"sync"
)

// Speaker is the external speech surface. Stop must be callable at any
// time and immediately silence output; Speak never assumes synchronous
// completion.
type Speaker interface {
	Speak(text string) error
	Stop()
}

// Coordinator speaks instruction text, suppressing immediate repeats.
// Speech failures are non-fatal: the instruction is dropped and
// navigation continues.
type Coordinator struct {
	speaker Speaker

	mu         sync.Mutex
	lastSpoken string
}

// NewCoordinator creates a coordinator for the given speaker.
func NewCoordinator(speaker Speaker) *Coordinator {
	return &Coordinator{speaker: speaker}
}

// Announce speaks text unless it is identical to the immediately prior
// announcement.
func (c *Coordinator) Announce(text string) {
	c.announce(text, false)
}

// AnnounceForced speaks text even when it repeats the prior announcement.
// Used for reroute notices and arrival.
func (c *Coordinator) AnnounceForced(text string) {
	c.announce(text, true)
}

func (c *Coordinator) announce(text string, forced bool) {
	if text == "" {
		return
	}

	c.mu.Lock()
	if !forced && text == c.lastSpoken {
		c.mu.Unlock()
		return
	}
	c.lastSpoken = text
	c.mu.Unlock()

	if err := c.speaker.Speak(text); err != nil {
		log.Printf("Guidance: speech unavailable, dropping instruction: %v", err)
	}
}

// Silence stops any in-progress speech immediately and clears the repeat
// suppression state.
func (c *Coordinator) Silence() {
	c.mu.Lock()
	c.lastSpoken = ""
	c.mu.Unlock()
	c.speaker.Stop()
}

// LogSpeaker prints announcements to the process log. Used by the
// simulator and anywhere no real speech engine is attached.
type LogSpeaker struct{}

func (LogSpeaker) Speak(text string) error {
	log.Printf("Speech: %q", text)
	return nil
}

func (LogSpeaker) Stop() {}
