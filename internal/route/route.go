package route

import (
	"github.com/roadmate-app/navigator/internal/geo"

	"github.com/google/uuid"
)

// Step is a single maneuver segment within a leg, the unit of spoken
// instructions.
type Step struct {
	Instruction     string           `json:"instruction"`
	RoadName        string           `json:"roadName,omitempty"`
	DistanceMeters  float64          `json:"distanceMeters"`
	DurationSeconds float64          `json:"durationSeconds"`
	Maneuver        geo.Coordinate   `json:"maneuver"`
	Geometry        []geo.Coordinate `json:"geometry"`
}

// Leg is an ordered sequence of steps between two waypoints.
type Leg struct {
	DistanceMeters  float64 `json:"distanceMeters"`
	DurationSeconds float64 `json:"durationSeconds"`
	Steps           []Step  `json:"steps"`
}

// Route is a computed route. Routes are immutable once built: a reroute
// replaces the active route, it never mutates one in place.
type Route struct {
	ID              string           `json:"id"`
	DistanceMeters  float64          `json:"distanceMeters"`
	DurationSeconds float64          `json:"durationSeconds"`
	Geometry        []geo.Coordinate `json:"geometry"`
	Legs            []Leg            `json:"legs"`
}

// NewID returns an identifier for a freshly built route.
func NewID() string {
	return uuid.New().String()
}

// Steps returns the route's steps flattened across legs, in travel order.
func (r *Route) Steps() []Step {
	var steps []Step
	for _, leg := range r.Legs {
		steps = append(steps, leg.Steps...)
	}
	return steps
}

// End returns the final coordinate of the route.
func (r *Route) End() geo.Coordinate {
	if n := len(r.Geometry); n > 0 {
		return r.Geometry[n-1]
	}
	steps := r.Steps()
	for i := len(steps) - 1; i >= 0; i-- {
		if n := len(steps[i].Geometry); n > 0 {
			return steps[i].Geometry[n-1]
		}
	}
	return geo.Coordinate{}
}
