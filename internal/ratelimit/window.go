package ratelimit

import (
	"sync"
	"time"
)

// Window counts events inside a trailing time window.
type Window struct {
	mu     sync.Mutex
	span   time.Duration
	events []time.Time
	now    func() time.Time
}

// NewWindow creates a counter over the trailing span.
func NewWindow(span time.Duration) *Window {
	return &Window{span: span, now: time.Now}
}

// WithClock replaces the time source.
func (w *Window) WithClock(now func() time.Time) *Window {
	w.now = now
	return w
}

// Add records an event now and returns the count inside the window.
func (w *Window) Add() int {
	return w.AddAt(w.now())
}

// AddAt records an event at t and returns the count inside the window.
func (w *Window) AddAt(t time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, t)
	w.evict(w.now())
	return len(w.events)
}

// Count returns the number of events inside the window.
func (w *Window) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.evict(w.now())
	return len(w.events)
}

// Reset drops all events.
func (w *Window) Reset() {
	w.mu.Lock()
	w.events = w.events[:0]
	w.mu.Unlock()
}

func (w *Window) evict(now time.Time) {
	cutoff := now.Add(-w.span)
	i := 0
	for i < len(w.events) && !w.events[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.events = append(w.events[:0], w.events[i:]...)
	}
}
