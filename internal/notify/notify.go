// oreon/sentinel · watchthelight <wtl>

// Package notify raises user-facing desktop alerts for detected
// threats over the session bus.
package notify

import (
	"fmt"
	"time"

	"github.com/esiqveland/notify"
	"github.com/godbus/dbus/v5"

	"github.com/oreonproject/sentinel/pkg/threat"
)

// Alerter raises user-facing alerts. Implementations must be safe for
// concurrent use.
type Alerter interface {
	// ThreatAlert announces a MEDIUM or HIGH verdict. HIGH alerts are
	// persistent and require interaction.
	ThreatAlert(level threat.Level, score int, indicator string) error
	// DownloadAlert announces a paused suspicious download.
	DownloadAlert(filename string) error
	Close() error
}

// Desktop sends alerts via org.freedesktop.Notifications.
type Desktop struct {
	conn    *dbus.Conn
	appName string
	icon    string
}

// NewDesktop connects to the session bus. The icon is a configurable
// resource; an empty name falls back to the desktop theme default.
func NewDesktop(appName, icon string) (*Desktop, error) {
	conn, err := dbus.SessionBusPrivate()
	if err != nil {
		return nil, fmt.Errorf("session bus: %w", err)
	}
	if err := conn.Auth(nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("session bus auth: %w", err)
	}
	if err := conn.Hello(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("session bus hello: %w", err)
	}
	return &Desktop{conn: conn, appName: appName, icon: icon}, nil
}

// ThreatAlert maps the verdict level onto notification urgency:
// MEDIUM is normal, HIGH is critical and stays until dismissed.
func (d *Desktop) ThreatAlert(level threat.Level, score int, indicator string) error {
	if indicator == "" {
		indicator = "Potential security risk"
	}

	urgency := byte(1)
	timeout := 10 * time.Second
	if level == threat.LevelHigh {
		urgency = 2
		timeout = 0 // persists until the user reacts
	}

	n := notify.Notification{
		AppName: d.appName,
		AppIcon: d.icon,
		Summary: fmt.Sprintf("%s Threat Detected", level),
		Body:    fmt.Sprintf("Risk Score: %d/100\n%s", score, indicator),
		Hints: map[string]dbus.Variant{
			"urgency": dbus.MakeVariant(urgency),
		},
		ExpireTimeout: timeout,
	}
	_, err := notify.SendNotification(d.conn, n)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}

// DownloadAlert is always critical and interaction-required.
func (d *Desktop) DownloadAlert(filename string) error {
	n := notify.Notification{
		AppName: d.appName,
		AppIcon: d.icon,
		Summary: "Suspicious Download Blocked",
		Body:    fmt.Sprintf("File: %s\nClick to review", filename),
		Hints: map[string]dbus.Variant{
			"urgency": dbus.MakeVariant(byte(2)),
		},
		ExpireTimeout: 0,
	}
	_, err := notify.SendNotification(d.conn, n)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}

// Close releases the bus connection.
func (d *Desktop) Close() error {
	return d.conn.Close()
}

// Discard is an Alerter that drops all alerts. Used when no session
// bus is available and in tests.
type Discard struct{}

func (Discard) ThreatAlert(threat.Level, int, string) error { return nil }
func (Discard) DownloadAlert(string) error                  { return nil }
func (Discard) Close() error                                { return nil }
