package meeting

import (
	"fmt"
	"time"

	"meetbadge/internal/ics"
	"meetbadge/internal/model"
)

// Mode is the badge presentation state.
type Mode string

const (
	// ModeMeeting: a meeting is in progress and has time left.
	ModeMeeting Mode = "meeting"
	// ModeOverdue: the held current meeting has passed its end.
	ModeOverdue Mode = "overdue"
	// ModeFree: no meeting now, another one later today.
	ModeFree Mode = "free"
	// ModeIdle: nothing now and nothing later today.
	ModeIdle Mode = "idle"
)

const (
	// DefaultWarning is the remaining time below which the countdown is flagged.
	DefaultWarning = 5 * time.Minute
	noneText       = "none"
)

// PresentOptions tunes Present.
type PresentOptions struct {
	// Warning flags the countdown once remaining drops below it.
	Warning time.Duration
	// Location is used for NextStartText. Nil means UTC+03:00.
	Location *time.Location
}

// Display holds everything a renderer needs for one frame.
type Display struct {
	Mode     Mode   `json:"mode"`
	Headline string `json:"headline"`

	Title         string        `json:"title,omitempty"`
	Remaining     time.Duration `json:"-"`
	RemainingMs   int64         `json:"remaining_ms"`
	RemainingText string        `json:"remaining_text"`
	Warning       bool          `json:"warning"`

	// Progress is the remaining share of the meeting, clamped to [0, 1].
	// FillPercent is the elapsed share as a percentage (what the badge paints).
	Progress    float64 `json:"progress"`
	FillPercent float64 `json:"fill_percent"`

	NextTitle     string        `json:"next_title,omitempty"`
	NextStart     *time.Time    `json:"next_start,omitempty"`
	NextStartText string        `json:"next_start_text"`
	UntilNext     time.Duration `json:"-"`
	UntilNextMs   int64         `json:"until_next_ms,omitempty"`
	UntilNextText string        `json:"until_next_text,omitempty"`
}

// Present derives the display values for sel at now. It only reads sel, so
// it can run on every tick against a selection computed earlier.
func Present(sel model.Selection, now time.Time, opts PresentOptions) Display {
	if opts.Location == nil {
		opts.Location = ics.MoscowZone
	}

	d := Display{
		Mode:          ModeIdle,
		Headline:      "Free-time",
		RemainingText: "Free-time",
		NextStartText: noneText,
	}

	if sel.Current != nil {
		cur := sel.Current
		remaining := cur.End.Sub(now)

		d.Headline = "Ends in"
		d.Title = cur.Title
		d.Remaining = remaining
		d.RemainingMs = remaining.Milliseconds()
		d.Progress = Progress(remaining, cur.Duration())
		d.FillPercent = (1 - d.Progress) * 100

		if remaining > 0 {
			d.Mode = ModeMeeting
			d.RemainingText = FormatRemaining(remaining)
			d.Warning = remaining < opts.Warning
		} else {
			d.Mode = ModeOverdue
			d.RemainingText = "-" + FormatRemaining(-remaining)
		}
	} else if sel.Next != nil {
		d.Mode = ModeFree
	}

	if sel.Next != nil {
		next := sel.Next
		start := next.Start
		d.NextTitle = next.Title
		d.NextStart = &start
		d.NextStartText = start.In(opts.Location).Format("15:04")

		if until := start.Sub(now); until > 0 {
			d.UntilNext = until
			d.UntilNextMs = until.Milliseconds()
			d.UntilNextText = FormatRemaining(until)
			if sel.Current == nil {
				d.RemainingText = d.UntilNextText
			}
		}
	}

	return d
}

// Progress returns clamp(remaining/total, 0, 1). A non-positive total or an
// overdue meeting gives 0.
func Progress(remaining, total time.Duration) float64 {
	if total <= 0 || remaining <= 0 {
		return 0
	}
	p := float64(remaining) / float64(total)
	if p > 1 {
		return 1
	}
	return p
}

// FormatRemaining renders d as MM:SS, or HH:MM:SS from one hour up.
// Sub-second parts are truncated; negative durations render as zero.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
