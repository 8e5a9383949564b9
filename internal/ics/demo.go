package ics

import (
	"context"
	"strings"
	"time"
)

// DemoSource is an offline Source that produces a small calendar around
// the current time: one meeting in progress, one later today and one
// tomorrow. Each uses a different DTSTART/DTEND shape so the whole decode
// path is exercised.
type DemoSource struct {
	Now func() time.Time
}

// NewDemoSource returns a DemoSource driven by now (time.Now if nil).
func NewDemoSource(now func() time.Time) *DemoSource {
	if now == nil {
		now = time.Now
	}
	return &DemoSource{Now: now}
}

func (d *DemoSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := d.Now().Truncate(time.Second)

	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//meetbadge//demo//EN\r\n")

	writeDemoEvent(&b, "demo-1", "Demo: Standup", "Daily sync",
		now.Add(-10*time.Minute), now.Add(20*time.Minute), ShapeMoscow)
	writeDemoEvent(&b, "demo-2", "Demo: Planning", "Sprint planning",
		now.Add(90*time.Minute), now.Add(150*time.Minute), ShapeUTC)
	writeDemoEvent(&b, "demo-3", "Demo: Retro", "Tomorrow, never selected today",
		now.Add(24*time.Hour), now.Add(25*time.Hour), ShapeFloating)

	b.WriteString("END:VCALENDAR\r\n")
	return []byte(b.String()), nil
}

func writeDemoEvent(b *strings.Builder, uid, summary, description string, start, end time.Time, shape DateShape) {
	b.WriteString("BEGIN:VEVENT\r\n")
	b.WriteString("UID:" + uid + "@meetbadge\r\n")
	b.WriteString("SUMMARY:" + summary + "\r\n")
	b.WriteString("DESCRIPTION:" + description + "\r\n")
	b.WriteString(EncodeDate("DTSTART", start, shape) + "\r\n")
	b.WriteString(EncodeDate("DTEND", end, shape) + "\r\n")
	b.WriteString("END:VEVENT\r\n")
}
