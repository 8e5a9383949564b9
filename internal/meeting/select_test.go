package meeting

import (
	"reflect"
	"testing"
	"time"

	"meetbadge/internal/ics"
	"meetbadge/internal/model"
)

var msk = ics.MoscowZone

func at(hour, min int) time.Time {
	return time.Date(2025, 9, 22, hour, min, 0, 0, msk)
}

func ev(title string, start, end time.Time) model.CalendarEvent {
	return model.CalendarEvent{Title: title, Start: start, End: end}
}

func title(e *model.CalendarEvent) string {
	if e == nil {
		return "<none>"
	}
	return e.Title
}

func TestSelectScenarios(t *testing.T) {
	tests := []struct {
		name        string
		events      []model.CalendarEvent
		now         time.Time
		wantCurrent string
		wantNext    string
	}{
		{
			name:        "single standup in progress",
			events:      []model.CalendarEvent{ev("Standup", at(10, 0), at(10, 15))},
			now:         at(10, 5),
			wantCurrent: "Standup",
			wantNext:    "<none>",
		},
		{
			name: "between meetings",
			events: []model.CalendarEvent{
				ev("A", at(9, 0), at(9, 30)),
				ev("B", at(11, 0), at(11, 30)),
			},
			now:         at(10, 0),
			wantCurrent: "<none>",
			wantNext:    "B",
		},
		{
			name:        "end equals now is neither current nor next",
			events:      []model.CalendarEvent{ev("Done", at(9, 0), at(10, 0))},
			now:         at(10, 0),
			wantCurrent: "<none>",
			wantNext:    "<none>",
		},
		{
			name:        "start equals now is current",
			events:      []model.CalendarEvent{ev("Now", at(10, 0), at(10, 30))},
			now:         at(10, 0),
			wantCurrent: "Now",
			wantNext:    "<none>",
		},
		{
			name: "feed order does not matter",
			events: []model.CalendarEvent{
				ev("Late", at(16, 0), at(17, 0)),
				ev("Soon", at(12, 0), at(13, 0)),
				ev("Current", at(9, 30), at(10, 30)),
			},
			now:         at(10, 0),
			wantCurrent: "Current",
			wantNext:    "Soon",
		},
		{
			name: "tomorrow never selected",
			events: []model.CalendarEvent{
				ev("Tomorrow", at(10, 0).Add(24*time.Hour), at(11, 0).Add(24*time.Hour)),
			},
			now:         at(10, 0),
			wantCurrent: "<none>",
			wantNext:    "<none>",
		},
		{
			name: "yesterday's event spanning midnight is not current",
			events: []model.CalendarEvent{
				ev("Overnight", at(23, 0).Add(-24*time.Hour), at(1, 0)),
			},
			now:         at(0, 30),
			wantCurrent: "<none>",
			wantNext:    "<none>",
		},
		{
			name: "overlapping events pick earliest start",
			events: []model.CalendarEvent{
				ev("Second", at(9, 45), at(11, 0)),
				ev("First", at(9, 30), at(10, 30)),
			},
			now:         at(10, 0),
			wantCurrent: "First",
			wantNext:    "<none>",
		},
		{
			name: "equal starts keep feed order",
			events: []model.CalendarEvent{
				ev("Feed-1", at(11, 0), at(12, 0)),
				ev("Feed-2", at(11, 0), at(11, 30)),
			},
			now:         at(10, 0),
			wantCurrent: "<none>",
			wantNext:    "Feed-1",
		},
		{
			name:        "no events",
			events:      nil,
			now:         at(10, 0),
			wantCurrent: "<none>",
			wantNext:    "<none>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := Select(tt.events, tt.now)
			if got := title(sel.Current); got != tt.wantCurrent {
				t.Errorf("current = %s, want %s", got, tt.wantCurrent)
			}
			if got := title(sel.Next); got != tt.wantNext {
				t.Errorf("next = %s, want %s", got, tt.wantNext)
			}
		})
	}
}

func TestSelectStandupRemaining(t *testing.T) {
	sel := Select([]model.CalendarEvent{ev("Standup", at(10, 0), at(10, 15))}, at(10, 5))
	if sel.Current == nil {
		t.Fatal("expected current meeting")
	}
	if got := sel.Current.End.Sub(at(10, 5)); got.Milliseconds() != 600000 {
		t.Errorf("remaining = %d ms, want 600000", got.Milliseconds())
	}
}

func TestSelectInvariants(t *testing.T) {
	events := []model.CalendarEvent{
		ev("Early", at(0, 0), at(0, 45)),
		ev("A", at(8, 0), at(9, 0)),
		ev("B", at(8, 30), at(9, 15)),
		ev("C", at(9, 15), at(9, 16)),
		ev("D", at(13, 0), at(14, 0)),
		ev("Late", at(23, 30), at(0, 30).Add(24*time.Hour)),
		ev("Tomorrow", at(9, 0).Add(24*time.Hour), at(10, 0).Add(24*time.Hour)),
		ev("Yesterday", at(9, 0).Add(-24*time.Hour), at(10, 0).Add(-24*time.Hour)),
	}
	today, tomorrow := DayWindow(at(12, 0))

	for now := today; now.Before(tomorrow); now = now.Add(7 * time.Minute) {
		sel := Select(events, now)

		if c := sel.Current; c != nil {
			if c.Start.After(now) || !c.End.After(now) {
				t.Fatalf("now=%s: current %s [%s, %s) excludes now", now, c.Title, c.Start, c.End)
			}
			if c.Title == "Tomorrow" || c.Title == "Yesterday" {
				t.Fatalf("now=%s: off-day event %s selected as current", now, c.Title)
			}
		}
		if n := sel.Next; n != nil {
			if !n.Start.After(now) {
				t.Fatalf("now=%s: next %s starts at or before now", now, n.Title)
			}
			if !n.Start.Before(tomorrow) {
				t.Fatalf("now=%s: next %s is not today", now, n.Title)
			}
		}

		again := Select(events, now)
		if !reflect.DeepEqual(sel, again) {
			t.Fatalf("now=%s: Select is not deterministic", now)
		}
	}
}

func TestSelectDoesNotMutateInput(t *testing.T) {
	events := []model.CalendarEvent{
		ev("Late", at(16, 0), at(17, 0)),
		ev("Soon", at(12, 0), at(13, 0)),
	}
	before := append([]model.CalendarEvent(nil), events...)

	sel := Select(events, at(10, 0))
	sel.Next.Title = "changed"

	if !reflect.DeepEqual(events, before) {
		t.Errorf("Select reordered or mutated its input: %+v", events)
	}
}

func TestDayWindow(t *testing.T) {
	today, tomorrow := DayWindow(time.Date(2025, 9, 22, 17, 42, 3, 9, msk))
	if !today.Equal(time.Date(2025, 9, 22, 0, 0, 0, 0, msk)) {
		t.Errorf("today = %s", today)
	}
	if tomorrow.Sub(today) != 24*time.Hour {
		t.Errorf("window length = %s", tomorrow.Sub(today))
	}
}
