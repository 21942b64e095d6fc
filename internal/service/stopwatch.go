package service

import (
	"fmt"
	"sync"
	"time"
)

// Stopwatch measures wall-clock time across start/pause cycles.
type Stopwatch struct {
	now func() time.Time

	mu        sync.Mutex
	running   bool
	startedAt time.Time
	banked    time.Duration
}

func NewStopwatch() *Stopwatch {
	return &Stopwatch{now: time.Now}
}

// Toggle starts a paused stopwatch or pauses a running one, returning the new running state.
func (s *Stopwatch) Toggle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.banked += s.now().Sub(s.startedAt)
		s.running = false
		return false
	}
	s.startedAt = s.now()
	s.running = true
	return true
}

// Reset stops the stopwatch and zeroes it.
func (s *Stopwatch) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.banked = 0
}

func (s *Stopwatch) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Stopwatch) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return s.banked + s.now().Sub(s.startedAt)
	}
	return s.banked
}

// FormatElapsed renders d as HH:MM:SS:CC, CC being hundredths of a second.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	centis := int64(d / (10 * time.Millisecond))
	return fmt.Sprintf("%02d:%02d:%02d:%02d",
		centis/360000, (centis/6000)%60, (centis/100)%60, centis%100)
}
