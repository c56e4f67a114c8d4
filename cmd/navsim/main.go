package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/spf13/viper"

	"github.com/roadmate-app/navigator/internal/alerts"
	"github.com/roadmate-app/navigator/internal/config"
	"github.com/roadmate-app/navigator/internal/directions"
	"github.com/roadmate-app/navigator/internal/geo"
	"github.com/roadmate-app/navigator/internal/guidance"
	"github.com/roadmate-app/navigator/internal/location"
	"github.com/roadmate-app/navigator/internal/navigator"
	"github.com/roadmate-app/navigator/internal/tracker"
)

// Scenario is a simulated drive, loaded from YAML.
type Scenario struct {
	Directions struct {
		BaseURL string `mapstructure:"base_url"`
	} `mapstructure:"directions"`
	Drive struct {
		Origin       Point    `mapstructure:"origin"`
		Destination  Point    `mapstructure:"destination"`
		SpeedMPS     float64  `mapstructure:"speed_mps"`
		IntervalMS   int      `mapstructure:"interval_ms"`
		AccuracyM    float64  `mapstructure:"accuracy_m"`
		Alternatives bool     `mapstructure:"alternatives"`
		Avoid        []string `mapstructure:"avoid"`
	} `mapstructure:"drive"`
	Deviations []struct {
		FromM   float64 `mapstructure:"from_m"`
		ToM     float64 `mapstructure:"to_m"`
		OffsetM float64 `mapstructure:"offset_m"`
	} `mapstructure:"deviations"`
	Pins []struct {
		ID          string  `mapstructure:"id"`
		Type        string  `mapstructure:"type"`
		Lon         float64 `mapstructure:"lon"`
		Lat         float64 `mapstructure:"lat"`
		Description string  `mapstructure:"description"`
	} `mapstructure:"pins"`
}

// Point is a lon/lat pair in scenario files.
type Point struct {
	Lon float64 `mapstructure:"lon"`
	Lat float64 `mapstructure:"lat"`
}

func loadScenario(path string) (*Scenario, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var sc Scenario
	if err := v.Unmarshal(&sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

func main() {
	scenarioPath := flag.String("scenario", "scenario.yaml", "path to the scenario file")
	flag.Parse()

	sc, err := loadScenario(*scenarioPath)
	if err != nil {
		log.Fatalf("Failed to load scenario: %v", err)
	}

	cfg := config.Load()
	if sc.Directions.BaseURL != "" {
		cfg.DirectionsBaseURL = sc.Directions.BaseURL
	}

	client := directions.NewClient(cfg.DirectionsBaseURL)

	pins := make([]alerts.Pin, 0, len(sc.Pins))
	for _, p := range sc.Pins {
		pins = append(pins, alerts.Pin{
			ID:          p.ID,
			Type:        alerts.PinType(p.Type),
			Coordinate:  geo.Coordinate{Lon: p.Lon, Lat: p.Lat},
			Description: p.Description,
			CreatedAt:   time.Now().UTC(),
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	samples := make(chan location.Sample, 64)

	var nav *navigator.Navigator
	sink := func(req alerts.PromptRequest) {
		// The simulator stands in for the confirmation UI: it always
		// answers "still there" right away.
		log.Printf("Sim: confirming pin %s (%s) %q", req.Pin.ID, req.Pin.Type, req.Pin.Description)
		nav.ResolvePrompt(req.RequestID, true)
	}

	nav = navigator.New(cfg, client, guidance.LogSpeaker{}, alerts.NewStaticSource(pins), sink, samples)

	origin := geo.Coordinate{Lon: sc.Drive.Origin.Lon, Lat: sc.Drive.Origin.Lat}
	destination := geo.Coordinate{Lon: sc.Drive.Destination.Lon, Lat: sc.Drive.Destination.Lat}

	opts := directions.Options{Alternatives: sc.Drive.Alternatives}
	for _, a := range sc.Drive.Avoid {
		opts.Avoid = append(opts.Avoid, directions.Avoid(a))
	}

	result, err := nav.Plan(ctx, origin, destination, opts)
	if err != nil {
		log.Fatalf("Route calculation failed: %v", err)
	}
	primary := result.Primary()
	log.Printf("Sim: primary route %.0fm / %.0fs with %d steps",
		primary.DistanceMeters, primary.DurationSeconds, len(primary.Steps()))

	if err := nav.StartNavigation(""); err != nil {
		log.Fatalf("Failed to start navigation: %v", err)
	}

	drive := &location.Drive{
		Path:           primary.Geometry,
		SpeedMPS:       sc.Drive.SpeedMPS,
		Interval:       time.Duration(sc.Drive.IntervalMS) * time.Millisecond,
		AccuracyMeters: sc.Drive.AccuracyM,
	}
	for _, d := range sc.Deviations {
		drive.Deviations = append(drive.Deviations, location.Deviation{
			FromMeters:   d.FromM,
			ToMeters:     d.ToM,
			OffsetMeters: d.OffsetM,
		})
	}

	// Pipe the simulated drive into the engine's stream.
	go func() {
		defer close(samples)
		for s := range drive.Start(ctx) {
			samples <- s
		}
	}()

	go func() {
		for ev := range nav.Events() {
			switch ev.Kind {
			case tracker.EventStepAdvanced:
				log.Printf("Sim: step %d, %.0fm remaining", ev.StepIndex, ev.RemainingMeters)
			case tracker.EventOffRoute:
				log.Printf("Sim: off route at (%.5f, %.5f)", ev.Position.Lon, ev.Position.Lat)
			case tracker.EventArrived:
				log.Println("Sim: arrived")
				cancel()
			}
		}
	}()

	nav.Run(ctx)

	if status, ok := nav.Status(); ok {
		log.Printf("Sim: finished in state %s, %.0fm remaining", status.State, status.RemainingMeters)
	} else {
		log.Println("Sim: finished, session closed")
	}
}
