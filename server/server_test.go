package server

import (
	"testing"
	"time"

	"wayfact.ai/fact"
	"wayfact.ai/geo"
)

func TestBroadcastReachesSubjectObservers(t *testing.T) {
	s := New()

	alice := NewObserver("alice")
	bob := NewObserver("bob")
	s.Observe(alice)
	s.Observe(bob)
	defer close(alice.Kill)
	defer close(bob.Kill)

	s.Deliver("alice", &fact.Result{
		Ordinal:  1,
		Place:    "Eiffel Tower",
		Body:     "it sways",
		Position: geo.Position{Lat: 48.8584, Lon: 2.2945},
		Verified: true,
	})

	select {
	case m := <-alice.Events:
		if m.Type != "fact" || m.Ordinal != 1 || m.Place != "Eiffel Tower" || !m.Verified {
			t.Errorf("message = %+v", m)
		}
	case <-time.After(time.Second):
		t.Fatal("alice never got the fact")
	}

	select {
	case m := <-bob.Events:
		t.Errorf("bob got alice's message: %+v", m)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHistoryKeepsRecentMessages(t *testing.T) {
	s := New()

	s.Deliver("alice", &fact.Result{Ordinal: 1, Place: "Louvre", Body: "fortress"})
	s.NotifyExpired("alice")

	h := s.History("alice")
	if len(h) != 2 {
		t.Fatalf("history has %d messages, want 2", len(h))
	}
	if h[0].Type != "fact" || h[1].Type != "expired" {
		t.Errorf("history types = %s, %s", h[0].Type, h[1].Type)
	}
	if len(s.History("bob")) != 0 {
		t.Error("bob should have no history")
	}
}

func TestObserverRemovedOnKill(t *testing.T) {
	s := New()

	o := NewObserver("alice")
	s.Observe(o)
	close(o.Kill)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		s.mtx.RLock()
		n := len(s.observers)
		s.mtx.RUnlock()
		if n == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("observer still registered after kill")
}

func TestSlowObserverDoesNotBlock(t *testing.T) {
	s := New()

	o := NewObserver("alice")
	s.Observe(o)
	defer close(o.Kill)

	// never drained; broadcasts must still return
	done := make(chan bool)
	go func() {
		for i := 0; i < cap(o.Events)+10; i++ {
			s.NotifyStopped("alice")
		}
		done <- true
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a slow observer")
	}
}
