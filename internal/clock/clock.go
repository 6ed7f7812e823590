// Package clock supplies "today" to every date-sensitive computation in the
// circulation core. Nothing in the core reads wall-clock time directly; the
// clock is injected so tests and operators can run against a fixed or
// advancing simulated date.
package clock

import (
	"sync"
	"time"

	"github.com/mmynk/circulation/internal/models"
)

// Clock provides the current calendar date at day precision.
type Clock interface {
	Today() models.Date
}

// System reads the real wall-clock date in local time.
type System struct{}

// Today returns the current calendar date.
func (System) Today() models.Date {
	return models.DateOf(time.Now())
}

// Fixed always returns the same date. Intended for tests.
type Fixed models.Date

// Today returns the fixed date.
func (f Fixed) Today() models.Date {
	return models.Date(f)
}

// Simulated wraps a fallback clock with an operator-settable override.
// The override persists until explicitly reset. Safe for concurrent use.
type Simulated struct {
	fallback Clock

	mu       sync.RWMutex
	override *models.Date
}

// NewSimulated returns a Simulated clock that reads from fallback until an
// override is set.
func NewSimulated(fallback Clock) *Simulated {
	return &Simulated{fallback: fallback}
}

// Today returns the override if one is set, else the fallback clock's date.
func (s *Simulated) Today() models.Date {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.override != nil {
		return *s.override
	}
	return s.fallback.Today()
}

// Set stores a simulated date that Today will return until Reset is called.
func (s *Simulated) Set(d models.Date) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.override = &d
}

// Reset clears the simulated date.
func (s *Simulated) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.override = nil
}

// Simulating reports whether an override is currently set.
func (s *Simulated) Simulating() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.override != nil
}
