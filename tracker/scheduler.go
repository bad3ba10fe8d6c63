package tracker

import (
	"context"
	"log"
	"time"
)

// maxConsecutiveFailures is how many produce failures in a row double
// the wait until the next attempt. Failures are otherwise silent; the
// subject only ever sees facts and terminal notifications.
const maxConsecutiveFailures = 3

// run is the per-session scheduler loop. The first fact goes out
// immediately, then one per interval until the session expires or is
// stopped. Exactly one terminal notification is sent either way.
func (r *Registry) run(ctx context.Context, s *Session) {
	failures := 0

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.remove(s)
			log.Printf("[tracker] %s: stopped after %d facts", s.Subject, s.snapshot().FactCount)
			r.delivery.NotifyStopped(s.Subject)
			return
		case <-timer.C:
		}

		// expiry is measured from the session start, checked before
		// any generation work
		if !time.Now().Before(s.Expires) {
			r.remove(s)
			log.Printf("[tracker] %s: session expired after %d facts", s.Subject, s.snapshot().FactCount)
			r.delivery.NotifyExpired(s.Subject)
			return
		}

		lat, lon := s.Position()
		pctx, cancel := context.WithTimeout(ctx, r.produceTimeout)
		res, err := r.producer.Produce(pctx, lat, lon, s.History())
		cancel()

		// stopped while generating: drop the result, the stop wins
		if ctx.Err() != nil {
			r.remove(s)
			r.delivery.NotifyStopped(s.Subject)
			return
		}

		wait := s.Interval
		if err != nil {
			failures++
			log.Printf("[tracker] %s: produce failed (%d in a row): %v", s.Subject, failures, err)
			if failures >= maxConsecutiveFailures {
				wait *= 2
			}
		} else {
			failures = 0
			res.Ordinal = s.appendFact(res.Place, res.Body)
			if err := r.delivery.Deliver(s.Subject, res); err != nil {
				log.Printf("[tracker] %s: deliver: %v", s.Subject, err)
			}
		}

		timer.Reset(wait)
	}
}
