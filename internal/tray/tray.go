// oreon/sentinel · watchthelight <wtl>

// Package tray is the system tray client: protection state, the
// session threat badge and shortcuts into the dashboard.
package tray

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/energye/systray"

	"github.com/oreonproject/sentinel/pkg/ipc"
)

// App drives the tray icon off the daemon's IPC socket. A dedicated
// subscriber connection receives badge and state pushes; the main
// client polls status.
type App struct {
	client       *ipc.Client
	subscriber   *ipc.Client
	dashboardURL string

	statusItem *systray.MenuItem
	badgeItem  *systray.MenuItem
}

// New creates the tray app. client serves request/response calls;
// subscriber is a second connection dedicated to push events.
func New(client, subscriber *ipc.Client, dashboardURL string) *App {
	return &App{client: client, subscriber: subscriber, dashboardURL: dashboardURL}
}

// Run blocks until the tray exits.
func (a *App) Run() error {
	systray.Run(a.onReady, a.onExit)
	return nil
}

func (a *App) onReady() {
	systray.SetTitle("Sentinel")
	systray.SetTooltip("Sentinel protection")

	a.statusItem = systray.AddMenuItem("Status: connecting...", "Daemon state")
	a.statusItem.Disable()
	a.badgeItem = systray.AddMenuItem("Threats this session: 0", "HIGH verdicts since start")
	a.badgeItem.Disable()
	systray.AddSeparator()

	dashboard := systray.AddMenuItem("Open Dashboard", "Scan history and stats")
	dashboard.Click(func() {
		if err := exec.Command("xdg-open", a.dashboardURL).Start(); err != nil {
			slog.Warn("open dashboard", "error", err)
		}
	})

	quit := systray.AddMenuItem("Quit", "Close the tray")
	quit.Click(func() { systray.Quit() })

	if err := a.subscriber.Subscribe(a.onEvent); err != nil {
		slog.Warn("subscribe to daemon events", "error", err)
	}

	go a.pollStatus()
}

func (a *App) onExit() {
	a.client.Close()
	a.subscriber.Close()
}

func (a *App) pollStatus() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for ; ; <-ticker.C {
		resp, err := a.client.Call(ipc.CmdStatus, nil)
		if err != nil {
			a.statusItem.SetTitle("Status: daemon unreachable")
			continue
		}
		var status ipc.StatusResponse
		if err := resp.UnmarshalData(&status); err != nil {
			continue
		}
		a.statusItem.SetTitle("Status: " + status.State)
		a.badgeItem.SetTitle(fmt.Sprintf("Threats this session: %d", status.SessionThreats))
	}
}

func (a *App) onEvent(evt ipc.PushEvent) {
	switch evt.Kind {
	case ipc.EventBadge:
		var badge ipc.BadgeEvent
		if err := json.Unmarshal(evt.Data, &badge); err != nil {
			return
		}
		a.badgeItem.SetTitle(fmt.Sprintf("Threats this session: %d", badge.Count))
	case ipc.EventStateChange:
		var change ipc.StateChangeEvent
		if err := json.Unmarshal(evt.Data, &change); err != nil {
			return
		}
		a.statusItem.SetTitle("Status: " + change.NewState)
	}
}
