package meeting

import (
	"math"
	"testing"
	"time"

	"meetbadge/internal/model"
)

func TestPresentMeetingInProgress(t *testing.T) {
	cur := ev("Standup", at(10, 0), at(10, 15))
	d := Present(model.Selection{Current: &cur}, at(10, 5), PresentOptions{Warning: 5 * time.Minute})

	if d.Mode != ModeMeeting {
		t.Fatalf("mode = %s, want meeting", d.Mode)
	}
	if d.RemainingMs != 600000 {
		t.Errorf("remaining = %d ms, want 600000", d.RemainingMs)
	}
	if d.RemainingText != "10:00" {
		t.Errorf("remaining text = %q", d.RemainingText)
	}
	if d.Warning {
		t.Error("10 minutes left should not warn with a 5 minute threshold")
	}
	if math.Abs(d.Progress-2.0/3.0) > 1e-9 {
		t.Errorf("progress = %f, want 2/3", d.Progress)
	}
	if d.NextStartText != "none" {
		t.Errorf("next start text = %q", d.NextStartText)
	}
}

func TestPresentWarning(t *testing.T) {
	cur := ev("Standup", at(10, 0), at(10, 15))
	d := Present(model.Selection{Current: &cur}, at(10, 11), PresentOptions{Warning: 5 * time.Minute})
	if !d.Warning {
		t.Error("expected warning with 4 minutes left")
	}
}

func TestPresentOverdue(t *testing.T) {
	cur := ev("Standup", at(10, 0), at(10, 15))
	d := Present(model.Selection{Current: &cur}, at(10, 17), PresentOptions{Warning: 5 * time.Minute})

	if d.Mode != ModeOverdue {
		t.Fatalf("mode = %s, want overdue", d.Mode)
	}
	if d.RemainingText != "-02:00" {
		t.Errorf("overdue text = %q", d.RemainingText)
	}
	if d.Progress != 0 || d.FillPercent != 100 {
		t.Errorf("overdue should clamp progress to 0, got %f / %f", d.Progress, d.FillPercent)
	}
	if d.Warning {
		t.Error("overdue should not carry the warning flag")
	}
}

func TestPresentFreeWithNext(t *testing.T) {
	next := ev("B", at(11, 0), at(11, 30))
	d := Present(model.Selection{Next: &next}, at(10, 0), PresentOptions{Location: time.UTC})

	if d.Mode != ModeFree {
		t.Fatalf("mode = %s, want free", d.Mode)
	}
	if d.NextTitle != "B" || d.NextStart == nil || !d.NextStart.Equal(at(11, 0)) {
		t.Errorf("unexpected next fields: %+v", d)
	}
	if d.NextStartText != "08:00" {
		t.Errorf("next start should render in the display location, got %q", d.NextStartText)
	}
	if d.UntilNextText != "01:00:00" || d.RemainingText != "01:00:00" {
		t.Errorf("expected countdown to next start, got %q / %q", d.UntilNextText, d.RemainingText)
	}
}

func TestPresentIdle(t *testing.T) {
	d := Present(model.Selection{}, at(10, 0), PresentOptions{})
	if d.Mode != ModeIdle || d.Headline != "Free-time" || d.NextStartText != "none" {
		t.Errorf("unexpected idle display %+v", d)
	}
}

func TestPresentNextStartDefaultsToMoscow(t *testing.T) {
	next := ev("B", time.Date(2025, 9, 22, 8, 0, 0, 0, time.UTC), time.Date(2025, 9, 22, 9, 0, 0, 0, time.UTC))
	d := Present(model.Selection{Next: &next}, time.Date(2025, 9, 22, 7, 0, 0, 0, time.UTC), PresentOptions{})
	if d.NextStartText != "11:00" {
		t.Errorf("next start text = %q, want 11:00", d.NextStartText)
	}
}

func TestProgress(t *testing.T) {
	tests := []struct {
		remaining, total time.Duration
		want             float64
	}{
		{30 * time.Minute, time.Hour, 0.5},
		{2 * time.Hour, time.Hour, 1},
		{-time.Minute, time.Hour, 0},
		{time.Minute, 0, 0},
	}
	for _, tt := range tests {
		if got := Progress(tt.remaining, tt.total); got != tt.want {
			t.Errorf("Progress(%s, %s) = %f, want %f", tt.remaining, tt.total, got, tt.want)
		}
	}
}

func TestFormatRemaining(t *testing.T) {
	tests := map[time.Duration]string{
		0:                        "00:00",
		999 * time.Millisecond:   "00:00",
		59500 * time.Millisecond: "00:59",
		10 * time.Minute:         "10:00",
		3723 * time.Second:       "01:02:03",
		-5 * time.Second:         "00:00",
	}
	for in, want := range tests {
		if got := FormatRemaining(in); got != want {
			t.Errorf("FormatRemaining(%s) = %q, want %q", in, got, want)
		}
	}
}
