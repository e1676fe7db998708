// oreon/sentinel · watchthelight <wtl>

package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/oreonproject/sentinel/internal/tray"
	"github.com/oreonproject/sentinel/pkg/ipc"
)

var version = "0.1.0-dev"

func main() {
	socketPath := flag.String("socket", "/run/oreon/sentinel.sock", "daemon IPC socket")
	dashboardURL := flag.String("dashboard", "http://127.0.0.1:7465/", "dashboard URL")
	flag.Parse()

	fmt.Printf("Oreon Sentinel UI v%s\n", version)

	// Create a channel to listen for interrupt signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// IPC clients connect lazily on first call; pushes get their own
	// connection so replies stay unambiguous.
	client := ipc.NewClient(*socketPath)
	subscriber := ipc.NewClient(*socketPath)

	trayApp := tray.New(client, subscriber, *dashboardURL)

	// Run the tray in a goroutine so we can handle shutdown gracefully
	errCh := make(chan error, 1)
	go func() {
		errCh <- trayApp.Run()
	}()

	select {
	case <-sigCh:
		slog.Info("received interrupt, shutting down")
	case err := <-errCh:
		if err != nil {
			slog.Error("tray application error", "error", err)
		}
	}

	client.Close()
	subscriber.Close()
}
