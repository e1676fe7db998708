// oreon/sentinel · watchthelight <wtl>

// Package interceptor hooks the browser's navigation and download
// lifecycles, gates them through the local pre-filter, and stages
// threat events for the warning view.
package interceptor

import (
	"fmt"
	"time"

	"github.com/oreonproject/sentinel/internal/heuristic"
	"github.com/oreonproject/sentinel/internal/notify"
	"github.com/oreonproject/sentinel/internal/store"
	"github.com/oreonproject/sentinel/pkg/events"
	"github.com/oreonproject/sentinel/pkg/ipc"
	"github.com/oreonproject/sentinel/pkg/threat"
)

// Warning view locations served by the browser shell.
const (
	WarningURL         = "warning.html?id=current"
	WarningDownloadURL = "warning.html?id=current&type=download"

	// Warning window dimensions for modal interaction.
	WarningWidth  = 500
	WarningHeight = 700
)

// Controller acts on the browser on the daemon's behalf: redirecting
// tabs, opening windows and controlling downloads.
type Controller interface {
	TabUpdate(tabID int, url string) error
	OpenTab(url string) error
	OpenWindow(url string, width, height int) error
	PauseDownload(id int32) error
	ResumeDownload(id int32) error
	CancelDownload(id int32) error
}

// Interceptor applies pre-filter verdicts to lifecycle events. Each
// invocation is independent; repeated events for the same target each
// produce their own threat event.
type Interceptor struct {
	store   *store.Store
	ctrl    Controller
	alerter notify.Alerter
	emitter *events.Emitter
}

// New wires an interceptor to its collaborators.
func New(st *store.Store, ctrl Controller, alerter notify.Alerter, emitter *events.Emitter) *Interceptor {
	return &Interceptor{store: st, ctrl: ctrl, alerter: alerter, emitter: emitter}
}

// OnNavigation handles one navigation attempt. Sub-frame navigations
// are ignored. A MEDIUM-or-above verdict stages a threat event and
// redirects the tab to the warning view; the original navigation is
// not resumed automatically.
func (i *Interceptor) OnNavigation(nav ipc.NavigationEvent) (bool, error) {
	if nav.FrameID != 0 {
		return false, nil
	}

	score := heuristic.ScoreNavigation(nav.URL)
	if score == nil {
		return false, nil
	}

	evt := events.StartNavigation(nav.URL, nav.TabID).Score(score.Score)
	defer func() { i.emitter.Emit(evt.End()) }()

	if err := i.store.SetCurrentThreat(&threat.Event{
		Target:          nav.URL,
		Status:          threat.StatusSuspicious,
		IsolationMethod: threat.IsolationPattern,
		ThreatScore:     *score,
		Timestamp:       now(),
	}); err != nil {
		evt.SetError(err)
		return false, fmt.Errorf("stage threat: %w", err)
	}

	i.emitter.Emit(events.StartThreat(nav.URL, string(score.Level)).
		Score(score.Score).Action("redirected").End())

	if err := i.ctrl.TabUpdate(nav.TabID, WarningURL); err != nil {
		evt.SetError(err)
		return true, fmt.Errorf("redirect tab: %w", err)
	}
	return true, nil
}

// OnDownload handles one newly created download. A denylisted
// extension pauses the download, stages a threat event carrying the
// download identifier, raises a critical alert and opens the warning
// window.
func (i *Interceptor) OnDownload(dl ipc.DownloadEvent) (bool, error) {
	score := heuristic.ScoreDownload(dl.Filename)
	if score == nil {
		return false, nil
	}

	evt := events.StartDownload(dl.Filename, dl.ID).Action("paused")
	defer func() { i.emitter.Emit(evt.End()) }()

	if err := i.ctrl.PauseDownload(dl.ID); err != nil {
		evt.SetError(err)
		return false, fmt.Errorf("pause download: %w", err)
	}

	if err := i.store.SetCurrentThreat(&threat.Event{
		Target:          dl.Filename,
		Status:          threat.StatusDownloadPaused,
		IsolationMethod: threat.IsolationExtension,
		ThreatScore:     *score,
		Timestamp:       now(),
		DownloadID:      dl.ID,
	}); err != nil {
		evt.SetError(err)
		return true, fmt.Errorf("stage threat: %w", err)
	}

	i.emitter.Emit(events.StartThreat(dl.Filename, string(score.Level)).
		Score(score.Score).Action("paused").DownloadID(dl.ID).End())

	if err := i.alerter.DownloadAlert(dl.Filename); err != nil {
		// The pause and the staged event stand on their own.
		evt.Set(events.FieldReason, "alert failed: "+err.Error())
	}

	if err := i.ctrl.OpenWindow(WarningDownloadURL, WarningWidth, WarningHeight); err != nil {
		evt.SetError(err)
		return true, fmt.Errorf("open warning: %w", err)
	}
	return true, nil
}

func now() float64 {
	return float64(time.Now().UnixMilli()) / 1000
}
