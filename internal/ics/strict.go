package ics

import (
	"fmt"
	"sort"
	"strings"

	ical "github.com/arran4/golang-ical"

	appLog "meetbadge/internal/log"
	"meetbadge/internal/model"
)

// ParseStrict reads the document with a full RFC 5545 parser (line
// unfolding, VCALENDAR structure) and then applies the same date decoding
// and admission rule as Parse. SUMMARY and DESCRIPTION come back unescaped
// ("A\, B" reads as "A, B"), where Parse keeps the raw text. Unlike Parse
// it fails on a document that is not a calendar at all.
func ParseStrict(raw string) ([]model.CalendarEvent, error) {
	cal, err := ical.ParseCalendar(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("ics: strict parse: %w", err)
	}

	events := make([]model.CalendarEvent, 0)
	for _, ve := range cal.Events() {
		r := &record{}
		for _, prop := range []ical.ComponentProperty{
			ical.ComponentPropertySummary,
			ical.ComponentPropertyDescription,
			ical.ComponentPropertyDtStart,
			ical.ComponentPropertyDtEnd,
		} {
			p := ve.GetProperty(prop)
			if p == nil {
				continue
			}
			r.setField(string(prop), p.Value, fieldLine(string(prop), p.ICalParameters, p.Value))
		}

		ev, err := r.admit()
		if err != nil {
			appLog.Warn("ics: VEVENT dropped", "summary", r.title, "reason", err, "parser", ParserStrict)
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics: strict parse completed", "event_count", len(events))
	return events, nil
}

// fieldLine rebuilds "KEY;P1=A;P2=B:VALUE" so that parameter-sensitive
// decoding (TZID) sees the same text the line scanner would.
func fieldLine(key string, params map[string][]string, value string) string {
	var b strings.Builder
	b.WriteString(key)

	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		b.WriteString(";")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(strings.Join(params[k], ","))
	}

	b.WriteString(":")
	b.WriteString(value)
	return b.String()
}
