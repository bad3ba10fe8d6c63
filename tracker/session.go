package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Session is one live tracking session. Position and history are guarded
// by the session's own mutex so updates never contend across sessions.
type Session struct {
	mu sync.Mutex

	Subject  string
	Interval time.Duration
	Started  time.Time
	Expires  time.Time

	lat, lon  float64
	factCount int
	history   []string

	cancel context.CancelFunc
}

// Snapshot is a read-only view of a session for diagnostics.
type Snapshot struct {
	Subject      string    `json:"subject"`
	Lat          float64   `json:"lat"`
	Lon          float64   `json:"lon"`
	IntervalSecs int       `json:"interval_secs"`
	Started      time.Time `json:"started"`
	Expires      time.Time `json:"expires"`
	FactCount    int       `json:"fact_count"`
}

func (s *Session) Position() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lat, s.lon
}

func (s *Session) SetPosition(lat, lon float64) {
	s.mu.Lock()
	s.lat = lat
	s.lon = lon
	s.mu.Unlock()
}

// History returns the places covered so far, each as "place: body".
func (s *Session) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.history))
	copy(out, s.history)
	return out
}

// appendFact records a delivered fact and returns its ordinal, starting
// at 1.
func (s *Session) appendFact(place, body string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factCount++
	s.history = append(s.history, fmt.Sprintf("%s: %s", place, body))
	return s.factCount
}

func (s *Session) snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Subject:      s.Subject,
		Lat:          s.lat,
		Lon:          s.lon,
		IntervalSecs: int(s.Interval / time.Second),
		Started:      s.Started,
		Expires:      s.Expires,
		FactCount:    s.factCount,
	}
}
