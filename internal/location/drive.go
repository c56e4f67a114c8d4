package location

import (
	"context"
	"time"

	"github.com/roadmate-app/navigator/internal/geo"
)

// Deviation forces emitted fixes laterally off the path while the drive
// is within an along-path window, to exercise off-route handling.
type Deviation struct {
	FromMeters   float64
	ToMeters     float64
	OffsetMeters float64 // perpendicular offset, positive = right of travel
}

// Drive emits samples walking a polyline at constant speed, standing in
// for a real device stream in the simulator and in tests.
type Drive struct {
	Path           []geo.Coordinate
	SpeedMPS       float64
	Interval       time.Duration
	AccuracyMeters float64
	Deviations     []Deviation
}

// Start begins the drive and returns its sample channel. The channel is
// closed when the drive reaches the end of the path or ctx is cancelled.
func (d *Drive) Start(ctx context.Context) <-chan Sample {
	out := make(chan Sample, 16)

	speed := d.SpeedMPS
	if speed <= 0 {
		speed = 10
	}
	interval := d.Interval
	if interval <= 0 {
		interval = time.Second
	}
	accuracy := d.AccuracyMeters
	if accuracy <= 0 {
		accuracy = 5
	}

	go func() {
		defer close(out)

		cum := geo.CumulativeDistances(d.Path)
		total := 0.0
		if len(cum) > 0 {
			total = cum[len(cum)-1]
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		traveled := 0.0
		for {
			pos, heading := d.pointAlong(cum, traveled)
			sample := Sample{
				Coordinate:     pos,
				HeadingDegrees: heading,
				AccuracyMeters: accuracy,
				Time:           time.Now().UTC(),
			}
			if offset := d.offsetAt(traveled); offset != 0 {
				sample.Coordinate = geo.Offset(pos, heading+90, offset)
			}

			select {
			case out <- sample:
			case <-ctx.Done():
				return
			}

			if traveled >= total {
				return
			}

			select {
			case <-ticker.C:
				traveled += speed * interval.Seconds()
				if traveled > total {
					traveled = total
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// pointAlong returns the position and travel heading at the given
// along-path distance.
func (d *Drive) pointAlong(cum []float64, meters float64) (geo.Coordinate, float64) {
	if len(d.Path) == 0 {
		return geo.Coordinate{}, 0
	}
	if len(d.Path) == 1 || meters <= 0 {
		heading := 0.0
		if len(d.Path) > 1 {
			heading = geo.BearingDegrees(d.Path[0], d.Path[1])
		}
		return d.Path[0], heading
	}

	for i := 1; i < len(cum); i++ {
		if meters <= cum[i] {
			segLen := cum[i] - cum[i-1]
			fraction := 1.0
			if segLen > 0 {
				fraction = (meters - cum[i-1]) / segLen
			}
			return geo.Interpolate(d.Path[i-1], d.Path[i], fraction),
				geo.BearingDegrees(d.Path[i-1], d.Path[i])
		}
	}

	last := len(d.Path) - 1
	return d.Path[last], geo.BearingDegrees(d.Path[last-1], d.Path[last])
}

func (d *Drive) offsetAt(meters float64) float64 {
	for _, dev := range d.Deviations {
		if meters >= dev.FromMeters && meters <= dev.ToMeters {
			return dev.OffsetMeters
		}
	}
	return 0
}
