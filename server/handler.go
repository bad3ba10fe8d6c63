package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"wayfact.ai/config"
	"wayfact.ai/geo"
	"wayfact.ai/tracker"
)

// Handler is the HTTP surface over the registry, the fact producer and
// the geo cache.
type Handler struct {
	registry *tracker.Registry
	producer tracker.Producer
	cache    *geo.Cache
	server   *Server
	track    config.TrackConfig
}

func NewHandler(registry *tracker.Registry, producer tracker.Producer, cache *geo.Cache, server *Server, track config.TrackConfig) *Handler {
	return &Handler{
		registry: registry,
		producer: producer,
		cache:    cache,
		server:   server,
		track:    track,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/location", h.Location)
	mux.HandleFunc("/location/update", h.Update)
	mux.HandleFunc("/location/stop", h.Stop)
	mux.HandleFunc("/session", h.Session)
	mux.HandleFunc("/sessions", h.Sessions)
	mux.HandleFunc("/events", h.Events)
}

type locationRequest struct {
	Subject    string  `json:"subject"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	LivePeriod int     `json:"live_period,omitempty"`
	Interval   int     `json:"interval,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, format string, args ...interface{}) {
	writeJSON(w, code, map[string]string{"error": fmt.Sprintf(format, args...)})
}

func (h *Handler) parseLocation(w http.ResponseWriter, r *http.Request) (locationRequest, bool) {
	var req locationRequest
	if r.Method != "POST" {
		writeError(w, 405, "method not allowed")
		return req, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "bad request: %v", err)
		return req, false
	}
	if req.Subject == "" {
		writeError(w, 400, "subject required")
		return req, false
	}
	return req, true
}

// Location handles an incoming location. A static location stops any
// live session the subject has, otherwise answers a one-shot fact. A
// location with a live period starts a session.
func (h *Handler) Location(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseLocation(w, r)
	if !ok {
		return
	}

	if req.LivePeriod > 0 {
		h.startSession(w, req)
		return
	}

	// sending a static location during live tracking means "stop"
	if h.registry.Active(req.Subject) {
		if err := h.registry.Stop(req.Subject); err == nil {
			log.Printf("[server] %s: live session stopped by static location", req.Subject)
			writeJSON(w, 200, map[string]string{"status": "stopped"})
			return
		}
	}

	h.oneShot(w, r, req)
}

func (h *Handler) startSession(w http.ResponseWriter, req locationRequest) {
	pos := geo.Position{Lat: req.Lat, Lon: req.Lon}
	if !pos.Valid() {
		writeError(w, 400, "invalid position")
		return
	}
	if req.Interval != 0 && !h.track.ValidInterval(req.Interval) {
		writeError(w, 400, "interval must be one of %v seconds", h.track.IntervalsSecs)
		return
	}

	interval := h.track.Interval(req.Interval)
	livePeriod := time.Duration(req.LivePeriod) * time.Second

	s, err := h.registry.Start(req.Subject, req.Lat, req.Lon, livePeriod, interval)
	if err == tracker.ErrAlreadyActive {
		writeError(w, 409, "session already active")
		return
	}
	if err != nil {
		writeError(w, 500, "start: %v", err)
		return
	}

	writeJSON(w, 200, map[string]interface{}{
		"status":  "tracking",
		"expires": s.Expires,
	})
}

func (h *Handler) oneShot(w http.ResponseWriter, r *http.Request, req locationRequest) {
	pos := geo.Position{Lat: req.Lat, Lon: req.Lon}
	if !pos.Valid() {
		writeError(w, 400, "invalid position")
		return
	}

	history := h.cache.Lookup(req.Lat, req.Lon)

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(h.track.ProduceTimeoutSecs)*time.Second)
	defer cancel()

	res, err := h.producer.Produce(ctx, req.Lat, req.Lon, history)
	if err != nil {
		log.Printf("[server] %s: one-shot produce: %v", req.Subject, err)
		writeError(w, 502, "could not produce a fact")
		return
	}

	if !res.Exhausted && res.Place != "near you" {
		h.cache.Record(req.Lat, req.Lon, fmt.Sprintf("%s: %s", res.Place, res.Body))
	}

	writeJSON(w, 200, res)
}

// Update moves a live session. Always 200; an update with no session is
// a no-op.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseLocation(w, r)
	if !ok {
		return
	}

	tracked := h.registry.UpdatePosition(req.Subject, req.Lat, req.Lon)
	writeJSON(w, 200, map[string]bool{"tracked": tracked})
}

func (h *Handler) Stop(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseLocation(w, r)
	if !ok {
		return
	}

	if err := h.registry.Stop(req.Subject); err != nil {
		writeError(w, 404, "no active session")
		return
	}
	writeJSON(w, 200, map[string]string{"status": "stopped"})
}

func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	subject := r.URL.Query().Get("subject")
	if subject == "" {
		writeError(w, 400, "subject required")
		return
	}

	snap, ok := h.registry.Get(subject)
	if !ok {
		writeError(w, 404, "no active session")
		return
	}
	writeJSON(w, 200, snap)
}

func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]int{"active": h.registry.Count()})
}

// Events streams a subject's deliveries over a websocket.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	subject := r.URL.Query().Get("subject")
	if subject == "" {
		writeError(w, 400, "subject required")
		return
	}

	if !IsWebSocket(r) {
		// plain GET returns the stored history
		writeJSON(w, 200, h.server.History(subject))
		return
	}

	o := NewObserver(subject)
	defer close(o.Kill)

	h.server.Observe(o)
	ServeWebSocket(w, r, o)
}
