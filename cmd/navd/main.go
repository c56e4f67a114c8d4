package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/roadmate-app/navigator/internal/alerts"
	"github.com/roadmate-app/navigator/internal/config"
	"github.com/roadmate-app/navigator/internal/directions"
	"github.com/roadmate-app/navigator/internal/geo"
	"github.com/roadmate-app/navigator/internal/guidance"
	"github.com/roadmate-app/navigator/internal/location"
	"github.com/roadmate-app/navigator/internal/navigator"
	"github.com/roadmate-app/navigator/internal/routecache"
	"github.com/roadmate-app/navigator/internal/tracker"
)

func main() {
	log.Println("Starting navigation gateway...")

	_ = godotenv.Load()
	cfg := config.Load()

	// Directions client, with the SQLite response cache when available.
	client := directions.NewClient(cfg.DirectionsBaseURL)
	cache, err := routecache.Open(cfg.RouteCachePath, cfg.RouteCacheTTL)
	if err != nil {
		log.Printf("Warning: route cache unavailable, every plan hits the backend: %v", err)
	} else {
		defer cache.Close()
		client.WithCache(cache)
	}

	// Pin store mirror.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Printf("Warning: pin store unreachable, proximity prompts degraded: %v", err)
	}
	pingCancel()

	// The device shell POSTs fixes; they become the engine's one ordered
	// location stream.
	source := location.NewPushSource(64)

	prompts := newPromptBox()
	nav := navigator.New(cfg, client, speakerFromEnv(), alerts.NewRedisSource(rdb), prompts.Offer, source.Samples())
	prompts.resolve = nav.ResolvePrompt

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go nav.Run(ctx)

	// Periodic cache cleanup.
	if cache != nil {
		go func() {
			ticker := time.NewTicker(cfg.RouteCacheTTL)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if err := cache.Cleanup(ctx); err != nil {
						log.Printf("Route cache cleanup error: %v", err)
					}
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	srv := &server{cfg: cfg, nav: nav, source: source, prompts: prompts}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", srv.health)
	r.Post("/api/routes", srv.planRoutes)
	r.Post("/api/navigation/start", srv.startNavigation)
	r.Post("/api/navigation/stop", srv.stopNavigation)
	r.Get("/api/navigation/status", srv.navigationStatus)
	r.Post("/api/location", srv.pushLocation)
	r.Get("/api/prompts/pending", srv.pendingPrompt)
	r.Post("/api/prompts/{requestID}", srv.respondPrompt)

	httpSrv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		log.Printf("Gateway listening on :%s", cfg.Port)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("Shutting down...")
	nav.StopNavigation()
	source.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	log.Println("Goodbye!")
}

// speakerFromEnv returns the speech surface. The real engine lives in the
// app shell; the gateway logs what would be spoken unless muted.
func speakerFromEnv() guidance.Speaker {
	if os.Getenv("SPEECH_MUTED") == "1" {
		return muteSpeaker{}
	}
	return guidance.LogSpeaker{}
}

type muteSpeaker struct{}

func (muteSpeaker) Speak(string) error { return nil }
func (muteSpeaker) Stop()              {}

// promptBox holds the single pending confirmation prompt. If the UI never
// answers, the timeout resolves it as expired so the watcher's gate opens
// again.
type promptBox struct {
	mu      sync.Mutex
	pending *alerts.PromptRequest
	resolve func(requestID string, stillThere bool) bool
}

func newPromptBox() *promptBox {
	return &promptBox{}
}

// Offer stores a new prompt and arms its expiry.
func (b *promptBox) Offer(req alerts.PromptRequest) {
	b.mu.Lock()
	b.pending = &req
	b.mu.Unlock()

	log.Printf("Prompt: pin %s (%s) awaiting confirmation", req.Pin.ID, req.Pin.Type)
	time.AfterFunc(req.Timeout, func() { b.expire(req.RequestID) })
}

// Pending returns the open prompt, if any.
func (b *promptBox) Pending() *alerts.PromptRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

// Answer applies the user's response.
func (b *promptBox) Answer(requestID string, stillThere bool) bool {
	b.mu.Lock()
	if b.pending == nil || b.pending.RequestID != requestID {
		b.mu.Unlock()
		return false
	}
	b.pending = nil
	b.mu.Unlock()
	return b.resolve(requestID, stillThere)
}

func (b *promptBox) expire(requestID string) {
	b.mu.Lock()
	if b.pending == nil || b.pending.RequestID != requestID {
		b.mu.Unlock()
		return
	}
	b.pending = nil
	b.mu.Unlock()

	log.Printf("Prompt: %s expired unanswered", requestID)
	b.resolve(requestID, false)
}

type server struct {
	cfg     *config.Config
	nav     *navigator.Navigator
	source  *location.PushSource
	prompts *promptBox
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

type planRequest struct {
	Origin       geo.Coordinate     `json:"origin"`
	Destination  geo.Coordinate     `json:"destination"`
	Avoid        []directions.Avoid `json:"avoid,omitempty"`
	Alternatives bool               `json:"alternatives,omitempty"`
}

func (s *server) planRoutes(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.nav.Plan(r.Context(), req.Origin, req.Destination, directions.Options{
		Avoid:        req.Avoid,
		Alternatives: req.Alternatives,
	})
	if err != nil {
		if errors.Is(err, directions.ErrNoRoute) {
			writeError(w, http.StatusUnprocessableEntity, "no route found")
			return
		}
		log.Printf("Plan error: %v", err)
		writeError(w, http.StatusBadGateway, "route calculation failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type startRequest struct {
	RouteID string `json:"routeId,omitempty"`
}

func (s *server) startNavigation(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if err := s.nav.StartNavigation(req.RouteID); err != nil {
		if errors.Is(err, navigator.ErrNoPlan) {
			writeError(w, http.StatusConflict, "plan a route first")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "navigating"})
}

func (s *server) stopNavigation(w http.ResponseWriter, _ *http.Request) {
	s.nav.StopNavigation()
	writeJSON(w, http.StatusOK, map[string]string{"status": "idle"})
}

func (s *server) navigationStatus(w http.ResponseWriter, _ *http.Request) {
	available := s.nav.LocationAvailable(s.cfg.LocationStaleAfter)

	status, ok := s.nav.Status()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{
			"state":             tracker.StateIdle.String(),
			"locationAvailable": available,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state":             status.State.String(),
		"status":            status,
		"rerouteInFlight":   s.nav.RerouteInFlight(),
		"locationAvailable": available,
	})
}

type locationFix struct {
	Lon            float64 `json:"lon"`
	Lat            float64 `json:"lat"`
	HeadingDegrees float64 `json:"headingDegrees"`
	AccuracyMeters float64 `json:"accuracyMeters"`
}

func (s *server) pushLocation(w http.ResponseWriter, r *http.Request) {
	var fix locationFix
	if err := json.NewDecoder(r.Body).Decode(&fix); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if fix.Lat < -90 || fix.Lat > 90 || fix.Lon < -180 || fix.Lon > 180 {
		writeError(w, http.StatusBadRequest, "invalid coordinate")
		return
	}

	s.source.Push(location.Sample{
		Coordinate:     geo.Coordinate{Lon: fix.Lon, Lat: fix.Lat},
		HeadingDegrees: fix.HeadingDegrees,
		AccuracyMeters: fix.AccuracyMeters,
		Time:           time.Now().UTC(),
	})
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) pendingPrompt(w http.ResponseWriter, _ *http.Request) {
	if pending := s.prompts.Pending(); pending != nil {
		writeJSON(w, http.StatusOK, pending)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pending": false})
}

type promptResponse struct {
	StillThere bool `json:"stillThere"`
}

func (s *server) respondPrompt(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")

	var resp promptResponse
	if err := json.NewDecoder(r.Body).Decode(&resp); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !s.prompts.Answer(requestID, resp.StillThere) {
		writeError(w, http.StatusNotFound, "no such pending prompt")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
