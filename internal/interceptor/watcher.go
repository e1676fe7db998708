// oreon/sentinel · watchthelight <wtl>

package interceptor

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/oreonproject/sentinel/internal/heuristic"
	"github.com/oreonproject/sentinel/internal/notify"
	"github.com/oreonproject/sentinel/internal/store"
	"github.com/oreonproject/sentinel/pkg/events"
	"github.com/oreonproject/sentinel/pkg/threat"
)

// Watcher observes download directories and feeds files the browser
// shell never reported (other browsers, curl, torrents) through the
// same static checks.
type Watcher struct {
	watcher *fsnotify.Watcher
	store   *store.Store
	ctrl    Controller
	alerter notify.Alerter
	emitter *events.Emitter
	done    chan struct{}
}

// NewWatcher starts watching dirs. Directories that cannot be watched
// are skipped with a log line.
func NewWatcher(dirs []string, st *store.Store, ctrl Controller, alerter notify.Alerter, emitter *events.Emitter) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	for _, dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			slog.Warn("cannot watch download dir", "dir", dir, "error", err)
		}
	}

	w := &Watcher{
		watcher: fsw,
		store:   st,
		ctrl:    ctrl,
		alerter: alerter,
		emitter: emitter,
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case evt, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if evt.Op&fsnotify.Create == 0 {
				continue
			}
			w.inspect(evt.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("download watcher error", "error", err)
		}
	}
}

// inspect scores a newly created file. Partial downloads are skipped
// by name; browsers rename them into place when complete.
func (w *Watcher) inspect(path string) {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".part") || strings.HasSuffix(lower, ".crdownload") || strings.HasSuffix(lower, ".tmp") {
		return
	}

	quick := heuristic.ScoreDownload(path)
	if quick == nil {
		return
	}

	size := int64(-1)
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}
	deep := heuristic.ScoreFile(path, size)

	// Denylist verdict wins; the deep score only adds indicators.
	score := *quick
	score.Indicators = append(score.Indicators, deep.Indicators...)
	if deep.Score > score.Score {
		score.Score = deep.Score
		score.Level = threat.LevelForScore(deep.Score)
	}

	evt := events.StartDownload(path, 0).Action("flagged")
	defer func() { w.emitter.Emit(evt.End()) }()

	if err := w.store.SetCurrentThreat(&threat.Event{
		Target:          path,
		Status:          threat.StatusDownloadPaused,
		IsolationMethod: threat.IsolationExtension,
		ThreatScore:     score,
		Timestamp:       float64(time.Now().UnixMilli()) / 1000,
	}); err != nil {
		evt.SetError(err)
		return
	}

	w.emitter.Emit(events.StartThreat(path, string(score.Level)).
		Score(score.Score).Action("flagged").End())

	if err := w.alerter.DownloadAlert(path); err != nil {
		evt.Set(events.FieldReason, "alert failed: "+err.Error())
	}
	if err := w.ctrl.OpenWindow(WarningDownloadURL, WarningWidth, WarningHeight); err != nil {
		evt.SetError(err)
	}
}
