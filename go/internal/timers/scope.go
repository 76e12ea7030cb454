package timers

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Scope owns the one-shot timers registered for a single trial.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Scope struct {
	clock clockwork.Clock
	name  string

	mu     sync.Mutex
	nextID uint64
	// live maps timer id to its timer. The timer is nil until AfterFunc
	// has returned. An id that is no longer present has fired or been cleared.
	live map[uint64]clockwork.Timer
}

// NewScope creates an empty timer scope. name is only used for logging.
func NewScope(clock clockwork.Clock, name string) *Scope {
	return &Scope{
		clock: clock,
		name:  name,
		live:  make(map[uint64]clockwork.Timer),
	}
}

// Clock returns the clock the scope schedules on.
func (s *Scope) Clock() clockwork.Clock {
	return s.clock
}

// SetTimeout registers fn to run once after d. fn never runs if ClearAll is
// called before it starts.
func (s *Scope) SetTimeout(d time.Duration, fn func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.live[id] = nil
	s.mu.Unlock()

	timer := s.clock.AfterFunc(d, func() {
		if !s.take(id) {
			return
		}
		fn()
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live[id]; !ok {
		// Cleared before we could store it; make sure it never fires.
		stopTimer(timer)
		return
	}
	s.live[id] = timer

	log.Debug().
		Str("scope", s.name).
		Uint64("timer_id", id).
		Dur("duration", d).
		Msg("scheduled one-shot timer")
}

// take removes id from the live set and reports whether it was still live.
func (s *Scope) take(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live[id]; !ok {
		return false
	}
	delete(s.live, id)
	return true
}

// ClearAll cancels every outstanding timer in the scope.
func (s *Scope) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, timer := range s.live {
		if timer != nil {
			stopTimer(timer)
		}
		delete(s.live, id)
	}
	log.Debug().Str("scope", s.name).Msg("cleared all timers")
}

// Pending returns the number of timers that have neither fired nor been cleared.
func (s *Scope) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// stopTimer stops a timer and drains its channel if it has one.
func stopTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
