// Package alerts evaluates reported hazard pins against the device
// position and decides when to ask the user whether a pin is still there.
package alerts

import (
	"context"
	"sync"
	"time"

	"github.com/roadmate-app/navigator/internal/geo"
)

// PinType enumerates the hazard kinds users can report.
type PinType string

const (
	PinObstacle   PinType = "obstacle"
	PinTrafficJam PinType = "traffic_jam"
	PinPolice     PinType = "police"
	PinAccident   PinType = "accident"
	PinRoadwork   PinType = "roadwork"
)

// Valid reports whether t is a known pin type.
func (t PinType) Valid() bool {
	switch t {
	case PinObstacle, PinTrafficJam, PinPolice, PinAccident, PinRoadwork:
		return true
	}
	return false
}

// Pin is a reported hazard. Pins are owned by the external pin store;
// this package only reads them.
type Pin struct {
	ID          string         `json:"id"`
	Type        PinType        `json:"type"`
	Coordinate  geo.Coordinate `json:"coordinate"`
	Description string         `json:"description,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// Source provides a snapshot of pins within a radius of a point.
type Source interface {
	Nearby(ctx context.Context, center geo.Coordinate, radiusMeters float64) ([]Pin, error)
}

// StaticSource serves pins from an in-memory list. Used by the simulator
// and tests.
type StaticSource struct {
	mu   sync.RWMutex
	pins []Pin
}

// NewStaticSource creates a source over the given pins.
func NewStaticSource(pins []Pin) *StaticSource {
	return &StaticSource{pins: pins}
}

// SetPins replaces the pin list.
func (s *StaticSource) SetPins(pins []Pin) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pins = pins
}

// Nearby returns the pins within radiusMeters of center.
func (s *StaticSource) Nearby(_ context.Context, center geo.Coordinate, radiusMeters float64) ([]Pin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var nearby []Pin
	for _, pin := range s.pins {
		if geo.DistanceMeters(center, pin.Coordinate) <= radiusMeters {
			nearby = append(nearby, pin)
		}
	}
	return nearby, nil
}
