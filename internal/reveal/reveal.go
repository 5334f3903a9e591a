// Package reveal animates an already-complete response, exposing it one rune
// at a time to simulate streaming. The backend never streams partial tokens;
// this is purely a presentation state machine.
package reveal

import "time"

// DefaultInterval is the delay between revealed runes.
const DefaultInterval = 30 * time.Millisecond

// Reveal is the in-progress state for one message. It is advanced by the
// caller's timer (e.g. a Bubble Tea tick), never by its own goroutine, so
// each message gets an independent, restartable sequence and a pending
// reveal never blocks submission of the next prompt.
type Reveal struct {
	runes    []rune
	shown    int
	interval time.Duration
}

// New starts a reveal for a complete message text.
func New(text string) *Reveal {
	return &Reveal{
		runes:    []rune(text),
		interval: DefaultInterval,
	}
}

// NewWithInterval starts a reveal with a custom tick interval.
func NewWithInterval(text string, interval time.Duration) *Reveal {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reveal{
		runes:    []rune(text),
		interval: interval,
	}
}

// Advance exposes the next rune. It returns true while the reveal is still
// in progress, false once the full text is shown.
func (r *Reveal) Advance() bool {
	if r.shown < len(r.runes) {
		r.shown++
	}
	return r.shown < len(r.runes)
}

// Visible returns the currently revealed prefix.
func (r *Reveal) Visible() string {
	return string(r.runes[:r.shown])
}

// Settled reports whether the full text is shown.
func (r *Reveal) Settled() bool {
	return r.shown == len(r.runes)
}

// Skip settles the reveal immediately, showing the full text.
func (r *Reveal) Skip() {
	r.shown = len(r.runes)
}

// Restart resets the reveal for a new message text.
func (r *Reveal) Restart(text string) {
	r.runes = []rune(text)
	r.shown = 0
}

// Interval is the delay the driving timer should use between Advance calls.
func (r *Reveal) Interval() time.Duration {
	return r.interval
}
