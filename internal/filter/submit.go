package filter

import (
	"sync"
	"sync/atomic"
	"time"
)

// SubmitGuard prevents duplicate submission of a form-style operation.
// Begin wins for exactly one caller until Succeed or Fail releases it;
// a successful submit latches the guard closed for good.
type SubmitGuard struct {
	state atomic.Int32
}

const (
	guardIdle int32 = iota
	guardInFlight
	guardDone
)

// Begin attempts to start a submission. It returns false when another
// submission is in flight or one has already succeeded.
func (g *SubmitGuard) Begin() bool {
	return g.state.CompareAndSwap(guardIdle, guardInFlight)
}

// Succeed marks the in-flight submission as completed. Further Begin
// calls fail permanently.
func (g *SubmitGuard) Succeed() {
	g.state.CompareAndSwap(guardInFlight, guardDone)
}

// Fail releases the guard after a failed submission so the caller can
// retry.
func (g *SubmitGuard) Fail() {
	g.state.CompareAndSwap(guardInFlight, guardIdle)
}

// Done reports whether a submission has completed successfully.
func (g *SubmitGuard) Done() bool {
	return g.state.Load() == guardDone
}

// GuardSet keys submission guards by an opaque client token. Entries
// not looked up within the retention window are swept on a later Get,
// so the set stays bounded by recent submission traffic.
type GuardSet struct {
	retention time.Duration
	now       func() time.Time

	mu        sync.Mutex
	entries   map[string]*guardEntry
	lastSweep time.Time
}

type guardEntry struct {
	guard    *SubmitGuard
	lastSeen time.Time
}

// NewGuardSet builds an empty set that retains idle guards for the
// given duration.
func NewGuardSet(retention time.Duration) *GuardSet {
	return &GuardSet{
		retention: retention,
		now:       time.Now,
		entries:   make(map[string]*guardEntry),
	}
}

// Get returns the guard for key, creating it on first use.
func (s *GuardSet) Get(key string) *SubmitGuard {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Sub(s.lastSweep) >= s.retention {
		for k, e := range s.entries {
			if now.Sub(e.lastSeen) >= s.retention {
				delete(s.entries, k)
			}
		}
		s.lastSweep = now
	}
	e, ok := s.entries[key]
	if !ok {
		e = &guardEntry{guard: &SubmitGuard{}}
		s.entries[key] = e
	}
	e.lastSeen = now
	return e.guard
}

// Len reports how many guards are currently retained.
func (s *GuardSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
