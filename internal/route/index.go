package route

import (
	"math"

	"github.com/roadmate-app/navigator/internal/geo"
)

// Match is the result of projecting a position onto a route.
type Match struct {
	StepIndex        int            // index into the flattened step sequence
	Point            geo.Coordinate // matched point on the route geometry
	AlongRouteMeters float64        // progress from the route start
	LateralMeters    float64        // perpendicular deviation from the polyline
}

// Index precomputes along-route distances for a route's flattened steps so
// that position matching and step advancement are cheap on every location
// update. An Index is read-only after construction and safe for concurrent
// readers.
type Index struct {
	route     *Route
	steps     []Step
	stepStart []float64   // along-route meters at the start of each step
	stepEnd   []float64   // along-route meters at the end of each step
	segCum    [][]float64 // per step, cumulative meters at each geometry vertex
	totalM    float64
	totalS    float64
	end       geo.Coordinate
}

// NewIndex builds the progress index for a route.
func NewIndex(r *Route) *Index {
	steps := r.Steps()
	ix := &Index{
		route:     r,
		steps:     steps,
		stepStart: make([]float64, len(steps)),
		stepEnd:   make([]float64, len(steps)),
		segCum:    make([][]float64, len(steps)),
		totalM:    r.DistanceMeters,
		totalS:    r.DurationSeconds,
		end:       r.End(),
	}

	var along float64
	for i, step := range steps {
		ix.stepStart[i] = along
		cum := geo.CumulativeDistances(step.Geometry)
		ix.segCum[i] = cum
		if len(cum) > 0 {
			along += cum[len(cum)-1]
		}
		ix.stepEnd[i] = along
	}
	// Prefer measured geometry length when it disagrees with the backend's
	// reported total, so progress fractions stay in [0,1].
	if along > ix.totalM {
		ix.totalM = along
	}
	return ix
}

// StepCount returns the number of flattened steps.
func (ix *Index) StepCount() int { return len(ix.steps) }

// Step returns the flattened step at index i.
func (ix *Index) Step(i int) Step { return ix.steps[i] }

// StepEndMeters returns the along-route distance at which step i ends.
func (ix *Index) StepEndMeters(i int) float64 { return ix.stepEnd[i] }

// TotalMeters returns the route length used for progress math.
func (ix *Index) TotalMeters() float64 { return ix.totalM }

// TotalSeconds returns the backend-reported route duration.
func (ix *Index) TotalSeconds() float64 { return ix.totalS }

// End returns the final coordinate of the route.
func (ix *Index) End() geo.Coordinate { return ix.end }

// Route returns the indexed route.
func (ix *Index) Route() *Route { return ix.route }

// Match projects p onto the route, scanning step geometries in route order
// starting at fromStep. Earlier steps are never revisited: progress is
// assumed monotonic, and a deviation large enough to make that assumption
// wrong is an off-route condition, not a reason to backtrack.
func (ix *Index) Match(p geo.Coordinate, fromStep int) Match {
	if fromStep < 0 {
		fromStep = 0
	}
	best := Match{StepIndex: fromStep, Point: p, LateralMeters: math.MaxFloat64}

	for i := fromStep; i < len(ix.steps); i++ {
		g := ix.steps[i].Geometry
		if len(g) == 0 {
			continue
		}
		if len(g) == 1 {
			d := geo.DistanceMeters(p, g[0])
			if d < best.LateralMeters {
				best = Match{
					StepIndex:        i,
					Point:            g[0],
					AlongRouteMeters: ix.stepStart[i],
					LateralMeters:    d,
				}
			}
			continue
		}
		for s := 0; s < len(g)-1; s++ {
			proj := geo.ProjectOntoSegment(p, g[s], g[s+1])
			if proj.DistanceMeters < best.LateralMeters {
				segLen := ix.segCum[i][s+1] - ix.segCum[i][s]
				best = Match{
					StepIndex:        i,
					Point:            proj.Point,
					AlongRouteMeters: ix.stepStart[i] + ix.segCum[i][s] + proj.Fraction*segLen,
					LateralMeters:    proj.DistanceMeters,
				}
			}
		}
	}
	return best
}

// StepForProgress returns the step index the given along-route progress
// falls in, never below minIndex.
func (ix *Index) StepForProgress(alongMeters float64, minIndex int) int {
	i := minIndex
	for i < len(ix.steps)-1 && alongMeters >= ix.stepEnd[i] {
		i++
	}
	return i
}

// Remaining returns the remaining distance and estimated remaining duration
// for the given along-route progress. The ETA scales the backend duration
// by the remaining distance fraction.
func (ix *Index) Remaining(alongMeters float64) (meters, seconds float64) {
	meters = math.Max(ix.totalM-alongMeters, 0)
	if ix.totalM > 0 {
		seconds = ix.totalS * meters / ix.totalM
	}
	return meters, seconds
}
