package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"meetbadge/internal/badge"
	"meetbadge/internal/config"
	appLog "meetbadge/internal/log"
	"meetbadge/internal/meeting"
	"meetbadge/internal/model"
)

// StatusSource is the part of the badge controller the API needs.
type StatusSource interface {
	Status() badge.Status
	Refresh(ctx context.Context) error
}

// Server exposes the badge state to renderers (OBS browser source, scripts)
// as JSON.
type Server struct {
	cfg    *config.Config
	badge  StatusSource
	engine *gin.Engine
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, src StatusSource) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:    cfg,
		badge:  src,
		engine: gin.New(),
	}
	s.engine.Use(requestLogger(), gin.Recovery(), allowCORS())
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password means disabled.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

func (s *Server) registerRoutes() {
	// /health is always unauthenticated.
	s.engine.GET("/health", s.handleHealth)

	api := s.engine.Group("/api")
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		api.Use(gin.BasicAuthForRealm(gin.Accounts{
			s.cfg.BasicAuth.Username: s.cfg.BasicAuth.Password,
		}, "meetbadge"))
	}
	api.GET("/status", s.handleStatus)
	api.GET("/events", s.handleEvents)
	api.POST("/refresh", s.handleRefresh)
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// eventDTO is a JSON-friendly view of a CalendarEvent.
type eventDTO struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	DurationMs  int64     `json:"duration_ms"`
}

// statusResponse is the JSON response shape for /api/status.
type statusResponse struct {
	Now           time.Time       `json:"now"`
	Display       meeting.Display `json:"display"`
	Current       *eventDTO       `json:"current"`
	Next          *eventDTO       `json:"next"`
	EventCount    int             `json:"event_count"`
	LastRefresh   time.Time       `json:"last_refresh"`
	LastRefreshID string          `json:"last_refresh_id,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
	Refreshes     int64           `json:"refreshes"`
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Events      []eventDTO `json:"events"`
	DayStart    time.Time  `json:"day_start"`
	DayEnd      time.Time  `json:"day_end"`
	LastRefresh time.Time  `json:"last_refresh"`
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, toStatusResponse(s.badge.Status()))
}

// handleEvents lists today's events (the selector's window), sorted by start.
func (s *Server) handleEvents(c *gin.Context) {
	st := s.badge.Status()

	resp := eventsResponse{
		Events:      make([]eventDTO, 0, len(st.Today)),
		LastRefresh: st.LastRefresh,
	}
	if !st.Now.IsZero() {
		resp.DayStart, resp.DayEnd = meeting.DayWindow(st.Now)
	}
	for _, ev := range st.Today {
		resp.Events = append(resp.Events, *toEventDTO(&ev))
	}
	c.JSON(http.StatusOK, resp)
}

// handleRefresh forces an immediate fetch-and-select. The badge state is
// returned either way; a failed refresh answers 502 with the idle state.
func (s *Server) handleRefresh(c *gin.Context) {
	err := s.badge.Refresh(c.Request.Context())
	resp := toStatusResponse(s.badge.Status())
	if err != nil {
		appLog.Error("api refresh failed", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":  err.Error(),
			"status": resp,
		})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func toStatusResponse(st badge.Status) statusResponse {
	return statusResponse{
		Now:           st.Now,
		Display:       st.Display,
		Current:       toEventDTO(st.Selection.Current),
		Next:          toEventDTO(st.Selection.Next),
		EventCount:    st.EventCount,
		LastRefresh:   st.LastRefresh,
		LastRefreshID: st.LastRefreshID,
		LastError:     st.LastError,
		Refreshes:     st.Refreshes,
	}
}

func toEventDTO(ev *model.CalendarEvent) *eventDTO {
	if ev == nil {
		return nil
	}
	return &eventDTO{
		Title:       ev.Title,
		Description: ev.Description,
		Start:       ev.Start,
		End:         ev.End,
		DurationMs:  ev.Duration().Milliseconds(),
	}
}

// requestLogger logs one line per request through the app logger.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		kv := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).Round(time.Microsecond),
			"client", c.ClientIP(),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			appLog.Warn("http request", kv...)
			return
		}
		appLog.Debug("http request", kv...)
	}
}

// allowCORS lets a browser-source page on another origin poll the API.
func allowCORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
