package location

import (
	"context"
	"testing"
	"time"

	"github.com/roadmate-app/navigator/internal/geo"
)

func TestDrive_WalksPathToTheEnd(t *testing.T) {
	// ~556m heading north, covered in a handful of fast ticks.
	path := []geo.Coordinate{
		{Lon: 2.35, Lat: 48.850},
		{Lon: 2.35, Lat: 48.855},
	}
	d := &Drive{
		Path:     path,
		SpeedMPS: 2000, // ~10m per 5ms tick keeps the test fast
		Interval: 5 * time.Millisecond,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got []Sample
	for s := range d.Start(ctx) {
		got = append(got, s)
	}

	if len(got) < 2 {
		t.Fatalf("got %d samples, expected at least start and end", len(got))
	}
	if got[0].Coordinate != path[0] {
		t.Errorf("first sample at %+v, expected the path start", got[0].Coordinate)
	}
	last := got[len(got)-1].Coordinate
	if d := geo.DistanceMeters(last, path[1]); d > 1 {
		t.Errorf("last sample %.1fm from the path end", d)
	}

	// Latitude must be non-decreasing on a northbound drive.
	for i := 1; i < len(got); i++ {
		if got[i].Coordinate.Lat < got[i-1].Coordinate.Lat {
			t.Fatal("drive moved backward along the path")
		}
	}
	// Heading north the whole way.
	if h := got[1].HeadingDegrees; h > 1 && h < 359 {
		t.Errorf("heading = %f, expected ~0 (north)", h)
	}
}

func TestDrive_AppliesDeviationWindow(t *testing.T) {
	path := []geo.Coordinate{
		{Lon: 2.35, Lat: 48.850},
		{Lon: 2.35, Lat: 48.855},
	}
	d := &Drive{
		Path:     path,
		SpeedMPS: 2000,
		Interval: 5 * time.Millisecond,
		Deviations: []Deviation{
			{FromMeters: 200, ToMeters: 350, OffsetMeters: 80},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var deviated, clean int
	for s := range d.Start(ctx) {
		// Lateral offset shows up as a longitude shift on a northbound drive.
		off := geo.DistanceMeters(s.Coordinate, geo.Coordinate{Lon: 2.35, Lat: s.Coordinate.Lat})
		if off > 50 {
			deviated++
		} else {
			clean++
		}
	}

	if deviated == 0 {
		t.Error("no samples were offset inside the deviation window")
	}
	if clean == 0 {
		t.Error("every sample was offset; the window should be bounded")
	}
}

func TestDrive_StopsOnCancel(t *testing.T) {
	d := &Drive{
		Path: []geo.Coordinate{
			{Lon: 2.35, Lat: 48.850},
			{Lon: 2.35, Lat: 48.950},
		},
		SpeedMPS: 1, // would take hours without the cancel
		Interval: 10 * time.Millisecond,
	}

	ctx, cancel := context.WithCancel(context.Background())
	ch := d.Start(ctx)
	<-ch
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("drive did not stop after cancel")
		}
	}
}
