package ics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	appLog "meetbadge/internal/log"
	"meetbadge/internal/model"
)

var (
	// ErrEmptyBody is returned by ParseFeed for an empty document.
	ErrEmptyBody = errors.New("ics: empty feed body")
	// ErrHTMLDocument is returned by ParseFeed when the body is an HTML
	// page (typically a login or 404 page) rather than a calendar.
	ErrHTMLDocument = errors.New("ics: feed body is an HTML page, not a calendar")
)

const (
	beginEvent = "BEGIN:VEVENT"
	endEvent   = "END:VEVENT"
)

// ParserMode selects how ParseFeed reads the document.
type ParserMode string

const (
	// ParserLine is the tolerant line scanner (Parse).
	ParserLine ParserMode = "line"
	// ParserStrict goes through a full RFC 5545 reader first (ParseStrict).
	ParserStrict ParserMode = "strict"
)

// record accumulates the fields of one VEVENT while it is open.
type record struct {
	title       string
	description string
	start       time.Time
	end         time.Time
	hasStart    bool
	hasEnd      bool
}

func (r *record) setField(key, value, line string) {
	switch key {
	case "SUMMARY":
		r.title = value
	case "DESCRIPTION":
		r.description = value
	case "DTSTART":
		t, err := DecodeDate(line)
		if err != nil {
			appLog.Warn("ics: DTSTART not decodable", "line", line, "reason", err)
			r.hasStart = false
			return
		}
		r.start, r.hasStart = t, true
	case "DTEND":
		t, err := DecodeDate(line)
		if err != nil {
			appLog.Warn("ics: DTEND not decodable", "line", line, "reason", err)
			r.hasEnd = false
			return
		}
		r.end, r.hasEnd = t, true
	}
}

// admit applies the admission rule: title, start and end set, end after start.
func (r *record) admit() (model.CalendarEvent, error) {
	switch {
	case r.title == "":
		return model.CalendarEvent{}, errors.New("missing SUMMARY")
	case !r.hasStart:
		return model.CalendarEvent{}, errors.New("missing or invalid DTSTART")
	case !r.hasEnd:
		return model.CalendarEvent{}, errors.New("missing or invalid DTEND")
	case !r.end.After(r.start):
		return model.CalendarEvent{}, fmt.Errorf("DTEND %s not after DTSTART %s",
			r.end.Format(time.RFC3339), r.start.Format(time.RFC3339))
	}
	return model.CalendarEvent{
		Title:       r.title,
		Description: r.description,
		Start:       r.start,
		End:         r.end,
	}, nil
}

// Parse scans a calendar document line by line and returns the admitted
// events in feed order. It never fails: incomplete records and undecodable
// dates are logged and dropped.
//
// Only SUMMARY, DESCRIPTION, DTSTART and DTEND are read. A BEGIN:VEVENT
// while a record is open abandons that record; lines outside a record are
// ignored. Folded continuation lines are not unfolded.
func Parse(raw string) []model.CalendarEvent {
	events := make([]model.CalendarEvent, 0)
	var cur *record

	lines := strings.Split(raw, "\n")
	appLog.Debug("ics: parse start", "lines", len(lines))

	for _, l := range lines {
		line := strings.TrimSpace(l)

		switch {
		case line == beginEvent:
			if cur != nil {
				appLog.Debug("ics: abandoning unterminated VEVENT", "summary", cur.title)
			}
			cur = &record{}

		case line == endEvent:
			if cur == nil {
				continue
			}
			ev, err := cur.admit()
			if err != nil {
				appLog.Warn("ics: VEVENT dropped", "summary", cur.title, "reason", err)
			} else {
				appLog.Debug("ics: VEVENT admitted", "summary", ev.Title,
					"start", ev.Start.Format(time.RFC3339), "end", ev.End.Format(time.RFC3339))
				events = append(events, ev)
			}
			cur = nil

		case cur != nil:
			key, value, ok := splitField(line)
			if !ok {
				continue
			}
			cur.setField(key, value, line)
		}
	}

	appLog.Debug("ics: parse completed", "event_count", len(events))
	return events
}

// splitField splits "KEY;PARAM=X:VALUE" into ("KEY", "VALUE").
func splitField(line string) (key, value string, ok bool) {
	colon := strings.IndexByte(line, ':')
	if colon < 0 {
		return "", "", false
	}
	keyPart := line[:colon]
	if semi := strings.IndexByte(keyPart, ';'); semi >= 0 {
		keyPart = keyPart[:semi]
	}
	return keyPart, line[colon+1:], true
}

// LooksLikeHTML reports whether body is an HTML page served in place of a
// calendar feed.
func LooksLikeHTML(body string) bool {
	head := body
	if len(head) > 4096 {
		head = head[:4096]
	}
	lower := strings.ToLower(head)
	return strings.Contains(lower, "<html") ||
		strings.Contains(lower, "<!doctype html") ||
		strings.Contains(body, "Error 404")
}

// ParseFeed is the entry point used by the badge controller. It rejects
// empty bodies and HTML pages up front, then parses with the chosen mode.
// An error means "no usable events"; it is never fatal to the caller.
func ParseFeed(body []byte, mode ParserMode) ([]model.CalendarEvent, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, ErrEmptyBody
	}
	raw := string(body)
	if LooksLikeHTML(raw) {
		return nil, ErrHTMLDocument
	}

	if mode == ParserStrict {
		return ParseStrict(raw)
	}
	return Parse(raw), nil
}
