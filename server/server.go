// Package server is the delivery surface: facts and session lifecycle
// notifications fan out to websocket observers per subject, with a short
// in-memory history for late joiners.
package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"wayfact.ai/fact"
)

const (
	// MaxHistory bounds the per-subject message history
	MaxHistory = 64
)

// Message is one delivery event. Type is "fact", "expired" or "stopped";
// the latter two are terminal for a session.
type Message struct {
	Id       string   `json:"id"`
	Type     string   `json:"type"`
	Subject  string   `json:"subject"`
	Ordinal  int      `json:"ordinal,omitempty"`
	Place    string   `json:"place,omitempty"`
	Text     string   `json:"text,omitempty"`
	Lat      float64  `json:"lat,omitempty"`
	Lon      float64  `json:"lon,omitempty"`
	Verified bool     `json:"verified,omitempty"`
	Images   []string `json:"images,omitempty"`
	Created  int64    `json:"created,string"`
}

// Observer is one attached event stream for a subject.
type Observer struct {
	Id      string
	Subject string
	Events  chan *Message
	Kill    chan bool
}

func NewObserver(subject string) *Observer {
	return &Observer{
		Id:      uuid.New().String(),
		Subject: subject,
		Events:  make(chan *Message, 16),
		Kill:    make(chan bool),
	}
}

type Server struct {
	mtx       sync.RWMutex
	history   map[string][]*Message
	observers map[string]*Observer
}

func New() *Server {
	return &Server{
		history:   make(map[string][]*Message),
		observers: make(map[string]*Observer),
	}
}

// Observe registers an observer until its Kill channel fires.
func (s *Server) Observe(o *Observer) {
	s.mtx.Lock()
	s.observers[o.Id] = o
	s.mtx.Unlock()

	go func() {
		<-o.Kill
		s.mtx.Lock()
		delete(s.observers, o.Id)
		s.mtx.Unlock()
	}()
}

// Broadcast stores the message and fans it out to the subject's
// observers. A slow observer misses messages rather than blocking the
// scheduler.
func (s *Server) Broadcast(m *Message) {
	s.mtx.Lock()
	h := append(s.history[m.Subject], m)
	if len(h) > MaxHistory {
		h = h[1:]
	}
	s.history[m.Subject] = h

	var observers []*Observer
	for _, o := range s.observers {
		observers = append(observers, o)
	}
	s.mtx.Unlock()

	for _, o := range observers {
		if o.Subject != m.Subject {
			continue
		}
		select {
		case o.Events <- m:
		default:
		}
	}
}

// History returns the stored messages for a subject, oldest first.
func (s *Server) History(subject string) []*Message {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	out := make([]*Message, len(s.history[subject]))
	copy(out, s.history[subject])
	return out
}

//
// tracker.Delivery
//

func (s *Server) Deliver(subject string, r *fact.Result) error {
	s.Broadcast(&Message{
		Id:       uuid.New().String(),
		Type:     "fact",
		Subject:  subject,
		Ordinal:  r.Ordinal,
		Place:    r.Place,
		Text:     r.Body,
		Lat:      r.Position.Lat,
		Lon:      r.Position.Lon,
		Verified: r.Verified,
		Images:   r.Images,
		Created:  time.Now().UnixNano(),
	})
	return nil
}

func (s *Server) NotifyExpired(subject string) {
	s.Broadcast(&Message{
		Id:      uuid.New().String(),
		Type:    "expired",
		Subject: subject,
		Created: time.Now().UnixNano(),
	})
}

func (s *Server) NotifyStopped(subject string) {
	s.Broadcast(&Message{
		Id:      uuid.New().String(),
		Type:    "stopped",
		Subject: subject,
		Created: time.Now().UnixNano(),
	})
}
