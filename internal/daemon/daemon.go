// oreon/sentinel · watchthelight <wtl>

// Package daemon ties the sentinel together: the event store, the
// engine bridge, the interceptors and the surface logic, exposed to
// clients over the IPC server.
package daemon

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/oreonproject/sentinel/internal/bridge"
	"github.com/oreonproject/sentinel/internal/interceptor"
	"github.com/oreonproject/sentinel/internal/notify"
	"github.com/oreonproject/sentinel/internal/store"
	"github.com/oreonproject/sentinel/internal/surface"
	"github.com/oreonproject/sentinel/pkg/config"
	"github.com/oreonproject/sentinel/pkg/events"
	"github.com/oreonproject/sentinel/pkg/ipc"
	"github.com/oreonproject/sentinel/pkg/threat"
)

// Daemon is the process-wide session object. It owns the session
// threat counter and the protection state, and acts as the browser
// controller by pushing control events to subscribed shells.
type Daemon struct {
	cfg     *config.Config
	emitter *events.Emitter
	store   *store.Store
	bridge  *bridge.Bridge
	alerter notify.Alerter
	state   *StateTracker

	surface     *surface.Surface
	interceptor *interceptor.Interceptor

	mu             sync.Mutex
	sessionThreats int
	lastScan       time.Time
	publish        func(ipc.PushEvent)
}

// New assembles a daemon around its collaborators. The bridge's
// listeners are registered here; Connect is left to the first scan.
func New(cfg *config.Config, st *store.Store, br *bridge.Bridge, alerter notify.Alerter, emitter *events.Emitter) *Daemon {
	d := &Daemon{
		cfg:     cfg,
		emitter: emitter,
		store:   st,
		bridge:  br,
		alerter: alerter,
		state:   NewStateTracker(),
	}
	d.surface = surface.New(st, br, d, emitter, cfg.Scanning.SafeDomains)
	d.interceptor = interceptor.New(st, d, alerter, emitter)

	br.OnResult(d.handleThreatResult)
	br.OnMessage(d.rebroadcast)
	return d
}

// State returns the protection state tracker.
func (d *Daemon) State() *StateTracker { return d.state }

// Events returns the wide-event emitter.
func (d *Daemon) Events() *events.Emitter { return d.emitter }

// Store returns the event store.
func (d *Daemon) Store() *store.Store { return d.store }

// Surface returns the view collaborator logic.
func (d *Daemon) Surface() *surface.Surface { return d.surface }

// Interceptor returns the lifecycle interceptors.
func (d *Daemon) Interceptor() *interceptor.Interceptor { return d.interceptor }

// Config returns the loaded configuration.
func (d *Daemon) Config() *config.Config { return d.cfg }

// EngineConnected reports bridge channel liveness.
func (d *Daemon) EngineConnected() bool { return d.bridge.Connected() }

// SessionThreats returns the count of HIGH verdicts this session.
func (d *Daemon) SessionThreats() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessionThreats
}

// LastScan returns the completion time of the most recent scan.
func (d *Daemon) LastScan() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastScan
}

// SetPublisher installs the push-event sink (the IPC server).
func (d *Daemon) SetPublisher(fn func(ipc.PushEvent)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.publish = fn
}

// Publish sends a push event to subscribers, best-effort.
func (d *Daemon) Publish(evt ipc.PushEvent) {
	d.mu.Lock()
	fn := d.publish
	d.mu.Unlock()
	if fn != nil {
		fn(evt)
	}
}

func (d *Daemon) publishJSON(kind string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	d.Publish(ipc.PushEvent{Kind: kind, Data: data})
}

// handleThreatResult applies the side effects of an engine verdict:
// HIGH bumps the session counter and the badge, MEDIUM and HIGH raise
// an alert scaled to the level, and the verdict is recorded by the
// surface layer.
func (d *Daemon) handleThreatResult(verdict threat.Verdict) {
	score := verdict.ThreatScore
	if score == nil {
		return
	}

	d.mu.Lock()
	d.lastScan = time.Now()
	if score.Level == threat.LevelHigh {
		d.sessionThreats++
	}
	count := d.sessionThreats
	d.mu.Unlock()

	if score.Level == threat.LevelHigh {
		d.state.SetState(StateAlert)
		d.publishJSON(ipc.EventBadge, ipc.BadgeEvent{Count: count})
	}

	if score.Level == threat.LevelMedium || score.Level == threat.LevelHigh {
		indicator := ""
		if len(score.Indicators) > 0 {
			indicator = score.Indicators[0]
		}
		// Alert failure is not the verdict's problem.
		_ = d.alerter.ThreatAlert(score.Level, score.Score, indicator)
	}

	d.surface.HandleScanResult("", verdict)
}

// rebroadcast forwards every inbound engine payload to subscribed
// views as-is. Absence of a listener is not an error.
func (d *Daemon) rebroadcast(data json.RawMessage) {
	d.publishJSON(ipc.EventScanResult, ipc.ScanResultEvent{Result: data})
}

// Browser controller: every operation becomes a control event pushed
// to the subscribed browser shell.

func (d *Daemon) TabUpdate(tabID int, url string) error {
	d.publishJSON(ipc.EventControl, ipc.ControlEvent{Op: ipc.ControlTabUpdate, TabID: tabID, URL: url})
	return nil
}

func (d *Daemon) OpenTab(url string) error {
	d.publishJSON(ipc.EventControl, ipc.ControlEvent{Op: ipc.ControlOpenTab, URL: url})
	return nil
}

func (d *Daemon) OpenWindow(url string, width, height int) error {
	d.publishJSON(ipc.EventControl, ipc.ControlEvent{Op: ipc.ControlOpenWindow, URL: url, Width: width, Height: height})
	return nil
}

func (d *Daemon) PauseDownload(id int32) error {
	d.publishJSON(ipc.EventControl, ipc.ControlEvent{Op: ipc.ControlPauseDownload, DownloadID: id})
	return nil
}

func (d *Daemon) ResumeDownload(id int32) error {
	d.publishJSON(ipc.EventControl, ipc.ControlEvent{Op: ipc.ControlResumeDownload, DownloadID: id})
	return nil
}

func (d *Daemon) CancelDownload(id int32) error {
	d.publishJSON(ipc.EventControl, ipc.ControlEvent{Op: ipc.ControlCancelDownload, DownloadID: id})
	return nil
}
