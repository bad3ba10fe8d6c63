package tracker

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"wayfact.ai/fact"
)

var (
	// ErrAlreadyActive means the subject already has a live session.
	ErrAlreadyActive = errors.New("session already active")
	// ErrNotFound means the subject has no live session.
	ErrNotFound = errors.New("no active session")
)

// Producer makes one deliverable fact for a position.
type Producer interface {
	Produce(ctx context.Context, lat, lon float64, history []string) (*fact.Result, error)
}

// Delivery receives facts and lifecycle notifications for a subject.
type Delivery interface {
	Deliver(subject string, r *fact.Result) error
	NotifyExpired(subject string)
	NotifyStopped(subject string)
}

// Registry holds the live sessions, one per subject, and runs a
// scheduler goroutine for each.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	producer       Producer
	delivery       Delivery
	produceTimeout time.Duration
}

func NewRegistry(producer Producer, delivery Delivery, produceTimeout time.Duration) *Registry {
	return &Registry{
		sessions:       make(map[string]*Session),
		producer:       producer,
		delivery:       delivery,
		produceTimeout: produceTimeout,
	}
}

// Start begins a live session. Fails with ErrAlreadyActive when the
// subject already has one; the caller must stop it first.
func (r *Registry) Start(subject string, lat, lon float64, livePeriod, interval time.Duration) (*Session, error) {
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()

	s := &Session{
		Subject:  subject,
		Interval: interval,
		Started:  now,
		Expires:  now.Add(livePeriod),
		lat:      lat,
		lon:      lon,
		cancel:   cancel,
	}

	r.mu.Lock()
	if _, ok := r.sessions[subject]; ok {
		r.mu.Unlock()
		cancel()
		return nil, ErrAlreadyActive
	}
	r.sessions[subject] = s
	r.mu.Unlock()

	log.Printf("[tracker] %s: session started, expires %s, interval %s",
		subject, s.Expires.Format(time.RFC3339), interval)

	go r.run(ctx, s)
	return s, nil
}

// UpdatePosition moves a session. Reports whether a session existed; an
// update with no session is a no-op, not an error.
func (r *Registry) UpdatePosition(subject string, lat, lon float64) bool {
	r.mu.RLock()
	s, ok := r.sessions[subject]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	s.SetPosition(lat, lon)
	return true
}

// Stop ends a session. The scheduler goroutine sends the stopped
// notification on its way out.
func (r *Registry) Stop(subject string) error {
	r.mu.Lock()
	s, ok := r.sessions[subject]
	if ok {
		delete(r.sessions, subject)
	}
	r.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	s.cancel()
	return nil
}

// Get returns a diagnostic snapshot of the subject's session.
func (r *Registry) Get(subject string) (Snapshot, bool) {
	r.mu.RLock()
	s, ok := r.sessions[subject]
	r.mu.RUnlock()
	if !ok {
		return Snapshot{}, false
	}
	return s.snapshot(), true
}

// Active reports whether the subject has a live session.
func (r *Registry) Active(subject string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[subject]
	return ok
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// remove drops the session from the map if it is still the registered
// one for its subject. The same subject may have started a new session
// since this one was stopped.
func (r *Registry) remove(s *Session) {
	r.mu.Lock()
	if r.sessions[s.Subject] == s {
		delete(r.sessions, s.Subject)
	}
	r.mu.Unlock()
}
