// Package badge owns the live meeting badge state: it refreshes the feed,
// runs the selector, and recomputes the display on every tick.
package badge

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"meetbadge/internal/ics"
	appLog "meetbadge/internal/log"
	"meetbadge/internal/meeting"
	"meetbadge/internal/model"
)

const (
	// TaskTick is the scheduler task name for display recomputation.
	TaskTick = "tick"
	// TaskRefresh is the scheduler task name for fetch-and-select.
	TaskRefresh = "refresh"

	// DefaultTick is the tick interval used when no TickSpec is given.
	DefaultTick = time.Second
	// DefaultRefresh is the refresh interval used when no RefreshSpec is given.
	DefaultRefresh = 30 * time.Second
)

// Options configures a Controller. Source and Scheduler are required.
type Options struct {
	Source    ics.Source
	Scheduler Scheduler
	Clock     Clock

	Parser ics.ParserMode

	// Location defines "today" and how the next start is shown.
	Location *time.Location
	Warning  time.Duration

	// TickSpec / RefreshSpec are schedule specs; see ParseSchedule.
	TickSpec    string
	RefreshSpec string
}

// Status is a consistent snapshot of the controller state.
type Status struct {
	Now       time.Time
	Display   meeting.Display
	Selection model.Selection

	// Today holds the events of the current day window, sorted by start.
	Today      []model.CalendarEvent
	EventCount int

	LastRefresh   time.Time
	LastRefreshID string
	LastError     string
	Refreshes     int64
}

// Controller holds the latest events and selection. Overlapping refreshes
// are allowed; whichever completes last wins.
type Controller struct {
	opts Options

	mu          sync.RWMutex
	events      []model.CalendarEvent
	selection   model.Selection
	display     meeting.Display
	displayAt   time.Time
	lastRefresh time.Time
	lastID      string
	lastErr     error

	inflight  atomic.Int32
	refreshes atomic.Int64

	runCtx context.Context
}

// New validates opts and fills in defaults.
func New(opts Options) (*Controller, error) {
	if opts.Source == nil {
		return nil, errors.New("badge: source is required")
	}
	if opts.Scheduler == nil {
		return nil, errors.New("badge: scheduler is required")
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Parser == "" {
		opts.Parser = ics.ParserLine
	}
	if opts.Location == nil {
		opts.Location = ics.MoscowZone
	}
	if opts.Warning <= 0 {
		opts.Warning = meeting.DefaultWarning
	}
	if opts.TickSpec == "" {
		opts.TickSpec = EverySpec(DefaultTick)
	}
	if opts.RefreshSpec == "" {
		opts.RefreshSpec = EverySpec(DefaultRefresh)
	}

	c := &Controller{
		opts:   opts,
		runCtx: context.Background(),
	}
	c.display = c.present(model.Selection{}, opts.Clock.Now())
	return c, nil
}

// Start registers the tick and refresh tasks, performs a first refresh,
// and starts the scheduler. ctx bounds scheduled and triggered refreshes.
// A failed first refresh is logged, not returned: the badge stays idle
// until a later refresh succeeds.
func (c *Controller) Start(ctx context.Context) error {
	c.runCtx = ctx

	if err := c.opts.Scheduler.Add(TaskTick, c.opts.TickSpec, c.Tick); err != nil {
		return err
	}
	if err := c.opts.Scheduler.Add(TaskRefresh, c.opts.RefreshSpec, func() {
		_ = c.Refresh(c.runCtx)
	}); err != nil {
		return err
	}

	_ = c.Refresh(ctx)
	c.opts.Scheduler.Start()

	appLog.Info("badge controller started", "tick", c.opts.TickSpec, "refresh", c.opts.RefreshSpec,
		"parser", c.opts.Parser, "timezone", c.opts.Location.String())
	return nil
}

// Stop halts the scheduler.
func (c *Controller) Stop() {
	c.opts.Scheduler.Stop()
	appLog.Info("badge controller stopped", "refreshes", c.refreshes.Load())
}

// Refresh fetches, parses and selects, then replaces the held state.
// Any failure leaves the badge idle and is returned to the caller.
func (c *Controller) Refresh(ctx context.Context) error {
	id := uuid.NewString()
	if n := c.inflight.Add(1); n > 1 {
		appLog.Debug("badge: refresh overlaps another in flight", "refresh_id", id, "inflight", n)
	}
	defer c.inflight.Add(-1)

	start := c.opts.Clock.Now()
	events, err := c.load(ctx)
	now := c.opts.Clock.Now().In(c.opts.Location)

	sel := meeting.Select(events, now)
	display := c.present(sel, now)

	c.mu.Lock()
	c.events = events
	c.selection = sel
	c.display = display
	c.displayAt = now
	c.lastRefresh = now
	c.lastID = id
	c.lastErr = err
	c.mu.Unlock()
	c.refreshes.Add(1)

	if err != nil {
		appLog.Error("badge: refresh failed, showing idle", err, "refresh_id", id)
		return err
	}

	appLog.Info("badge: refresh done",
		"refresh_id", id,
		"events", len(events),
		"current", titleOf(sel.Current),
		"next", titleOf(sel.Next),
		"mode", display.Mode,
		"elapsed", c.opts.Clock.Now().Sub(start).Round(time.Millisecond),
	)
	return nil
}

// TriggerRefresh starts a refresh in the background (hot-key, signal).
func (c *Controller) TriggerRefresh() {
	appLog.Info("badge: forced refresh requested")
	go func() {
		_ = c.Refresh(c.runCtx)
	}()
}

// Tick recomputes the display from the held selection and a fresh now.
// Within a day it does not re-select, so an ended meeting shows as overdue
// until the next refresh. When now has crossed into a new day window the
// held events are re-selected against it.
func (c *Controller) Tick() {
	now := c.opts.Clock.Now().In(c.opts.Location)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.displayAt.IsZero() {
		prevDay, _ := meeting.DayWindow(c.displayAt)
		if day, _ := meeting.DayWindow(now); !day.Equal(prevDay) {
			c.selection = meeting.Select(c.events, now)
			appLog.Info("badge: day rollover, re-selected", "day", day.Format("2006-01-02"),
				"current", titleOf(c.selection.Current), "next", titleOf(c.selection.Next))
		}
	}

	prev := c.display.Mode
	c.display = c.present(c.selection, now)
	c.displayAt = now

	if c.display.Mode != prev {
		appLog.Info("badge: mode changed", "from", prev, "to", c.display.Mode, "title", c.display.Title)
	}
}

// Status returns a snapshot of the held state.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := Status{
		Now:           c.displayAt,
		Display:       c.display,
		Selection:     c.selection,
		EventCount:    len(c.events),
		LastRefresh:   c.lastRefresh,
		LastRefreshID: c.lastID,
		Refreshes:     c.refreshes.Load(),
	}
	if !c.displayAt.IsZero() {
		st.Today = meeting.Today(c.events, c.displayAt)
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	return st
}

func (c *Controller) load(ctx context.Context) ([]model.CalendarEvent, error) {
	body, err := c.opts.Source.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	events, err := ics.ParseFeed(body, c.opts.Parser)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		appLog.Warn("badge: feed parsed but has no usable events", "bytes", len(body))
	}
	return events, nil
}

func (c *Controller) present(sel model.Selection, now time.Time) meeting.Display {
	return meeting.Present(sel, now, meeting.PresentOptions{
		Warning:  c.opts.Warning,
		Location: c.opts.Location,
	})
}

func titleOf(ev *model.CalendarEvent) string {
	if ev == nil {
		return "none"
	}
	return ev.Title
}
