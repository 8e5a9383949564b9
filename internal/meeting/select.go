// Package meeting picks the current and next meeting out of a day's events
// and derives the values a badge renderer shows for them.
package meeting

import (
	"sort"
	"time"

	"meetbadge/internal/model"
)

// DayWindow returns [today, tomorrow) for now: midnight of now's calendar
// date in now's location, and that instant plus 24h.
func DayWindow(now time.Time) (today, tomorrow time.Time) {
	y, m, d := now.Date()
	today = time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return today, today.Add(24 * time.Hour)
}

// Today returns the events starting within now's day, sorted by start.
// Events with equal starts keep their feed order. An event that crosses
// midnight is kept whole; only its start is tested.
func Today(events []model.CalendarEvent, now time.Time) []model.CalendarEvent {
	today, tomorrow := DayWindow(now)

	out := make([]model.CalendarEvent, 0, len(events))
	for _, ev := range events {
		if !ev.Start.Before(today) && ev.Start.Before(tomorrow) {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// Select returns the current meeting (first of today's events, by start,
// with start <= now < end) and the next meeting (first with start > now).
//
// Overlapping events are not rejected: the earliest-starting match wins.
// Select does not modify events and returned pointers refer to copies.
func Select(events []model.CalendarEvent, now time.Time) model.Selection {
	var sel model.Selection

	day := Today(events, now)
	for i := range day {
		ev := day[i]
		if sel.Current == nil && ev.Contains(now) {
			sel.Current = &ev
		}
		if sel.Next == nil && ev.Start.After(now) {
			sel.Next = &ev
		}
		if sel.Current != nil && sel.Next != nil {
			break
		}
	}
	return sel
}
