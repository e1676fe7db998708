// oreon/sentinel · watchthelight <wtl>

package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/oreonproject/sentinel/internal/bridge"
	"github.com/oreonproject/sentinel/internal/daemon"
	"github.com/oreonproject/sentinel/internal/dashboard"
	"github.com/oreonproject/sentinel/internal/interceptor"
	"github.com/oreonproject/sentinel/internal/notify"
	"github.com/oreonproject/sentinel/internal/store"
	"github.com/oreonproject/sentinel/pkg/config"
	"github.com/oreonproject/sentinel/pkg/events"
)

var version = "0.1.0-dev"

func main() {
	configPath := flag.String("config", "/etc/oreon/sentinel.toml", "path to config file")
	flag.Parse()

	fmt.Printf("Oreon Sentinel v%s\n", version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	emitter := events.NewEmitter(events.WithSampleRate(cfg.Logging.SampleRate))

	st, err := store.Open(cfg.Daemon.DBPath)
	if err != nil {
		slog.Error("open event store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	var alerter notify.Alerter
	alerter, err = notify.NewDesktop("Sentinel", "security-high")
	if err != nil {
		slog.Warn("desktop notifications unavailable", "error", err)
		alerter = notify.Discard{}
	}
	defer alerter.Close()

	br := bridge.New(cfg.Engine.HostName, cfg.EngineSocket(), emitter)
	d := daemon.New(cfg, st, br, alerter, emitter)

	server := daemon.NewServer(cfg.Daemon.SocketPath, d)
	if err := server.Listen(); err != nil {
		slog.Error("start IPC server", "error", err)
		os.Exit(1)
	}
	go server.Serve()
	defer server.Close()

	// Engine channel is optional at boot; the first scan reconnects.
	if err := br.Connect(); err != nil {
		slog.Warn("analysis engine not reachable", "error", err)
	}
	defer br.Close()

	watcher, err := interceptor.NewWatcher(cfg.Scanning.WatchDirs, st, d, alerter, emitter)
	if err != nil {
		slog.Warn("downloads watcher disabled", "error", err)
	} else {
		defer watcher.Close()
	}

	if cfg.Dashboard.Enabled {
		app := dashboard.New(st)
		go func() {
			if err := app.Listen(cfg.Dashboard.ListenAddr); err != nil {
				slog.Error("dashboard server", "error", err)
			}
		}()
		defer app.Shutdown()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	slog.Info("received interrupt, shutting down")
}
