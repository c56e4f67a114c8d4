package directions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/roadmate-app/navigator/internal/geo"
	"github.com/roadmate-app/navigator/internal/route"
)

// Fetch failures surfaced to callers. Retry policy belongs to the reroute
// controller, never to this client.
var (
	// ErrNoRoute means the backend answered but found no route between the
	// requested points.
	ErrNoRoute = errors.New("directions: no route found")

	// ErrMalformedResponse means the backend answered with something this
	// client could not decode.
	ErrMalformedResponse = errors.New("directions: malformed response")
)

// Avoid is a road-class exclusion preference.
type Avoid string

const (
	AvoidTolls    Avoid = "tolls"
	AvoidHighways Avoid = "highways"
	AvoidFerries  Avoid = "ferries"
)

// backendClass maps an exclusion preference to the backend's class name.
func (a Avoid) backendClass() string {
	switch a {
	case AvoidTolls:
		return "toll"
	case AvoidHighways:
		return "motorway"
	case AvoidFerries:
		return "ferry"
	}
	return ""
}

// Options control a directions request.
type Options struct {
	Avoid        []Avoid `json:"avoid,omitempty"`
	Alternatives bool    `json:"alternatives,omitempty"`
}

// Cache is an optional read-through cache for directions responses.
// A miss is (nil, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]*route.Route, error)
	Put(ctx context.Context, key string, routes []*route.Route) error
}

// Client talks to an OSRM-compatible directions backend.
type Client struct {
	baseURL string
	profile string
	client  *http.Client
	cache   Cache
}

// NewClient creates a directions client for the given backend base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		profile: "driving",
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// WithCache attaches a read-through response cache.
func (c *Client) WithCache(cache Cache) *Client {
	c.cache = cache
	return c
}

// osrmResponse mirrors the backend's route response shape.
type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64           `json:"distance"`
		Duration float64           `json:"duration"`
		Geometry *geojson.Geometry `json:"geometry"`
		Legs     []struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
			Steps    []struct {
				Distance float64           `json:"distance"`
				Duration float64           `json:"duration"`
				Name     string            `json:"name"`
				Geometry *geojson.Geometry `json:"geometry"`
				Maneuver struct {
					Location [2]float64 `json:"location"`
					Type     string     `json:"type"`
					Modifier string     `json:"modifier"`
					Exit     int        `json:"exit"`
				} `json:"maneuver"`
			} `json:"steps"`
		} `json:"legs"`
	} `json:"routes"`
}

// Routes requests candidate routes from the backend. The first returned
// route is the primary; the rest are alternates. All returned routes are
// immutable.
func (c *Client) Routes(ctx context.Context, origin, destination geo.Coordinate, opts Options) ([]*route.Route, error) {
	key := CacheKey(origin, destination, opts)
	if c.cache != nil {
		cached, err := c.cache.Get(ctx, key)
		if err != nil {
			log.Printf("Directions: cache read failed (continuing to backend): %v", err)
		} else if len(cached) > 0 {
			return cached, nil
		}
	}

	url := c.requestURL(origin, destination, opts)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("directions: build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directions: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directions: backend returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("directions: read response: %w", err)
	}

	var parsed osrmResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if parsed.Code != "" && parsed.Code != "Ok" {
		if parsed.Code == "NoRoute" {
			return nil, ErrNoRoute
		}
		return nil, fmt.Errorf("%w: backend code %q", ErrMalformedResponse, parsed.Code)
	}
	if len(parsed.Routes) == 0 {
		return nil, ErrNoRoute
	}

	routes := make([]*route.Route, 0, len(parsed.Routes))
	for _, raw := range parsed.Routes {
		r := &route.Route{
			ID:              route.NewID(),
			DistanceMeters:  raw.Distance,
			DurationSeconds: raw.Duration,
			Geometry:        lineCoords(raw.Geometry),
		}
		for _, rawLeg := range raw.Legs {
			leg := route.Leg{
				DistanceMeters:  rawLeg.Distance,
				DurationSeconds: rawLeg.Duration,
			}
			for _, rawStep := range rawLeg.Steps {
				leg.Steps = append(leg.Steps, route.Step{
					Instruction:     Instruction(rawStep.Maneuver.Type, rawStep.Maneuver.Modifier, rawStep.Name, rawStep.Maneuver.Exit),
					RoadName:        rawStep.Name,
					DistanceMeters:  rawStep.Distance,
					DurationSeconds: rawStep.Duration,
					Maneuver: geo.Coordinate{
						Lon: rawStep.Maneuver.Location[0],
						Lat: rawStep.Maneuver.Location[1],
					},
					Geometry: lineCoords(rawStep.Geometry),
				})
			}
			r.Legs = append(r.Legs, leg)
		}
		routes = append(routes, r)
	}

	if c.cache != nil {
		if err := c.cache.Put(ctx, key, routes); err != nil {
			log.Printf("Directions: cache write failed: %v", err)
		}
	}
	return routes, nil
}

func (c *Client) requestURL(origin, destination geo.Coordinate, opts Options) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s/route/v1/%s/%.6f,%.6f;%.6f,%.6f?overview=full&geometries=geojson&steps=true",
		c.baseURL, c.profile, origin.Lon, origin.Lat, destination.Lon, destination.Lat)
	if opts.Alternatives {
		b.WriteString("&alternatives=true")
	}
	if classes := excludeClasses(opts.Avoid); classes != "" {
		b.WriteString("&exclude=" + classes)
	}
	return b.String()
}

func excludeClasses(avoid []Avoid) string {
	var classes []string
	for _, a := range avoid {
		if cls := a.backendClass(); cls != "" {
			classes = append(classes, cls)
		}
	}
	return strings.Join(classes, ",")
}

// CacheKey derives a stable cache key for a directions query. Coordinates
// are rounded to ~1m so GPS jitter on the same query still hits.
func CacheKey(origin, destination geo.Coordinate, opts Options) string {
	classes := excludeClasses(opts.Avoid)
	return fmt.Sprintf("%.5f,%.5f;%.5f,%.5f;alt=%t;ex=%s",
		origin.Lon, origin.Lat, destination.Lon, destination.Lat, opts.Alternatives, classes)
}

func lineCoords(g *geojson.Geometry) []geo.Coordinate {
	if g == nil {
		return nil
	}
	ls, ok := g.Geometry().(orb.LineString)
	if !ok {
		return nil
	}
	coords := make([]geo.Coordinate, len(ls))
	for i, pt := range ls {
		coords[i] = geo.Coordinate{Lon: pt[0], Lat: pt[1]}
	}
	return coords
}
