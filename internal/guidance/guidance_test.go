package guidance

import (
	"errors"
	"sync"
	"testing"
)

type fakeSpeaker struct {
	mu      sync.Mutex
	spoken  []string
	stopped int
	err     error
}

func (f *fakeSpeaker) Speak(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.spoken = append(f.spoken, text)
	return nil
}

func (f *fakeSpeaker) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
}

func (f *fakeSpeaker) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.spoken...)
}

func TestAnnounceSuppressesImmediateRepeat(t *testing.T) {
	sp := &fakeSpeaker{}
	c := NewCoordinator(sp)

	c.Announce("Turn right onto Rue A")
	c.Announce("Turn right onto Rue A")
	c.Announce("Continue straight")
	c.Announce("Turn right onto Rue A")

	want := []string{"Turn right onto Rue A", "Continue straight", "Turn right onto Rue A"}
	got := sp.all()
	if len(got) != len(want) {
		t.Fatalf("spoken %d times %v, expected %v", len(got), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("spoken[%d] = %q, expected %q", i, got[i], want[i])
		}
	}
}

func TestAnnounceForcedRepeats(t *testing.T) {
	sp := &fakeSpeaker{}
	c := NewCoordinator(sp)

	c.AnnounceForced("Recalculating route")
	c.AnnounceForced("Recalculating route")

	if got := sp.all(); len(got) != 2 {
		t.Errorf("spoken %d times, expected forced announcements to always speak", len(got))
	}
}

func TestAnnounceIgnoresEmptyText(t *testing.T) {
	sp := &fakeSpeaker{}
	c := NewCoordinator(sp)

	c.Announce("")
	c.AnnounceForced("")

	if got := sp.all(); len(got) != 0 {
		t.Errorf("spoken %v, expected nothing for empty text", got)
	}
}

func TestSilenceStopsAndClearsSuppression(t *testing.T) {
	sp := &fakeSpeaker{}
	c := NewCoordinator(sp)

	c.Announce("Turn left onto Rue B")
	c.Silence()
	if sp.stopped != 1 {
		t.Errorf("Stop called %d times, expected 1", sp.stopped)
	}

	// After silence the same instruction may be spoken again.
	c.Announce("Turn left onto Rue B")
	if got := sp.all(); len(got) != 2 {
		t.Errorf("spoken %d times %v, expected the repeat after Silence", len(got), got)
	}
}

func TestSpeechFailureIsNonFatal(t *testing.T) {
	sp := &fakeSpeaker{err: errors.New("engine busy")}
	c := NewCoordinator(sp)

	c.Announce("Turn right onto Rue A")

	// The failure drops the instruction; a later, different announcement
	// still goes through once the engine recovers.
	sp.mu.Lock()
	sp.err = nil
	sp.mu.Unlock()
	c.Announce("Continue straight")

	got := sp.all()
	if len(got) != 1 || got[0] != "Continue straight" {
		t.Errorf("spoken %v, expected only the recovered announcement", got)
	}
}
