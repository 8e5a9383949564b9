package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/jessevdk/go-flags"

	"meetbadge/internal/badge"
	"meetbadge/internal/config"
	"meetbadge/internal/ics"
	appLog "meetbadge/internal/log"
	"meetbadge/internal/meeting"
	"meetbadge/internal/web"
)

const version = "0.1.0"

// options holds CLI flag values; they override the config file.
type options struct {
	ConfigPath string `short:"c" long:"config" env:"MEETBADGE_CONFIG" default:"./meetbadge.yaml" description:"Path to config file"`
	Listen     string `long:"listen" env:"MEETBADGE_LISTEN" description:"HTTP listen address (overrides config if set)"`
	FeedURL    string `long:"feed-url" env:"MEETBADGE_FEED_URL" description:"iCal feed URL (overrides config if set)"`
	Once       bool   `long:"once" description:"Run one fetch+select cycle, print the status as JSON and exit"`
	Demo       bool   `long:"demo" description:"Use generated demo meetings instead of the remote feed"`
	Debug      bool   `long:"debug" description:"Enable debug logging"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	appLog.Info("meetbadge starting", "version", version)

	conf, err := config.Load(opts.ConfigPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", opts.ConfigPath)
		os.Exit(1)
	}
	applyOverrides(conf, opts)

	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", opts.ConfigPath)
		os.Exit(1)
	}

	loc, err := conf.Location()
	if err != nil {
		appLog.Error("failed to load timezone; falling back to UTC", err, "name", conf.Timezone)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", loc.String(),
		"parser", conf.Feed.Parser,
		"tick", conf.Schedule.Tick,
		"refresh", conf.Schedule.Refresh,
		"warning", conf.Warning(),
		"mirrors", len(conf.Feed.Mirrors),
		"demo", conf.Demo,
		"once", opts.Once,
	)

	src, err := newSource(conf)
	if err != nil {
		appLog.Error("failed to set up feed source", err)
		os.Exit(1)
	}

	ctrl, err := badge.New(badge.Options{
		Source:      src,
		Scheduler:   badge.NewCronScheduler(loc),
		Parser:      ics.ParserMode(conf.Feed.Parser),
		Location:    loc,
		Warning:     conf.Warning(),
		TickSpec:    badge.EverySpec(conf.TickInterval()),
		RefreshSpec: conf.Schedule.Refresh,
	})
	if err != nil {
		appLog.Error("failed to create badge controller", err)
		os.Exit(1)
	}

	if opts.Once {
		os.Exit(runOnce(ctrl, conf))
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ctrl.Start(ctx); err != nil {
		appLog.Error("failed to start badge controller", err)
		os.Exit(1)
	}
	defer ctrl.Stop()

	go handleSignals(ctx, cancel, ctrl)

	srv := web.NewServer(conf, ctrl)
	if err := srv.Run(ctx); err != nil {
		appLog.Error("HTTP server failed", err, "listen", conf.Listen)
		cancel()
	}

	appLog.Info("meetbadge exiting")
}

func applyOverrides(conf *config.Config, opts options) {
	if opts.Listen != "" {
		conf.Listen = opts.Listen
	}
	if opts.FeedURL != "" {
		conf.Feed.URL = opts.FeedURL
	}
	if opts.Demo {
		conf.Demo = true
	}
	if opts.Debug {
		conf.LogLevel = "debug"
	}
}

func newSource(conf *config.Config) (ics.Source, error) {
	if conf.Demo {
		appLog.Info("demo mode: using generated meetings")
		return ics.NewDemoSource(nil), nil
	}
	return ics.NewFetcher(ics.FetcherOptions{
		URL:       conf.Feed.URL,
		Mirrors:   conf.Feed.Mirrors,
		Timeout:   conf.FetchTimeout(),
		UserAgent: conf.Feed.UserAgent,
	})
}

// runOnce performs a single refresh and prints the status. The exit code
// is 0 even when the feed yields no meetings; 1 only if the refresh failed.
func runOnce(ctrl *badge.Controller, conf *config.Config) int {
	ctx, cancel := context.WithTimeout(context.Background(), conf.FetchTimeout()+5*time.Second)
	defer cancel()

	refreshErr := ctrl.Refresh(ctx)
	st := ctrl.Status()

	out := struct {
		Display meeting.Display `json:"display"`
		Events  int             `json:"events"`
		Error   string          `json:"error,omitempty"`
	}{
		Display: st.Display,
		Events:  st.EventCount,
		Error:   st.LastError,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		appLog.Error("failed to write status", err)
		return 1
	}
	if refreshErr != nil {
		return 1
	}
	return 0
}

// handleSignals cancels on SIGINT/SIGTERM and forces a refresh on SIGHUP.
func handleSignals(ctx context.Context, cancel context.CancelFunc, ctrl *badge.Controller) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				ctrl.TriggerRefresh()
				continue
			}
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
			return
		}
	}
}
