package model

import "time"

// CalendarEvent is a single VEVENT that passed admission: it has a title,
// a start and an end, and End is strictly after Start.
//
// Events are created once per feed fetch and replaced on the next one.
type CalendarEvent struct {
	Title       string
	Description string

	Start time.Time
	End   time.Time
}

// Duration returns End - Start.
func (e CalendarEvent) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Contains reports whether now falls in [Start, End).
func (e CalendarEvent) Contains(now time.Time) bool {
	return !e.Start.After(now) && e.End.After(now)
}

// Selection is the outcome of one selector run. Current holds the event in
// progress at the selection instant, Next the earliest event starting later
// the same day. Either may be nil.
type Selection struct {
	Current *CalendarEvent
	Next    *CalendarEvent
}

// Idle reports whether there is neither a current nor a next meeting.
func (s Selection) Idle() bool {
	return s.Current == nil && s.Next == nil
}
