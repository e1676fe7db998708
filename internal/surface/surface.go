// oreon/sentinel · watchthelight <wtl>

// Package surface implements the view-facing collaborator logic: the
// popup's scan round-trip, the warning view's allow/block/details
// decisions, and the sample threat shown when nothing is staged.
package surface

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oreonproject/sentinel/internal/bridge"
	"github.com/oreonproject/sentinel/internal/heuristic"
	"github.com/oreonproject/sentinel/internal/interceptor"
	"github.com/oreonproject/sentinel/internal/store"
	"github.com/oreonproject/sentinel/pkg/events"
	"github.com/oreonproject/sentinel/pkg/threat"
)

// Decision actions accepted from the warning view.
const (
	DecisionAllow   = "allow"
	DecisionBlock   = "block"
	DecisionDetails = "details"
)

// DashboardURL is the dashboard page served by the browser shell.
const DashboardURL = "dashboard.html"

// Surface ties the views to the store, the bridge and the browser.
type Surface struct {
	store     *store.Store
	bridge    *bridge.Bridge
	ctrl      interceptor.Controller
	emitter   *events.Emitter
	whitelist heuristic.Whitelist

	mu      sync.Mutex
	pending map[string]string // request ID -> scan target
}

// New wires the surface layer.
func New(st *store.Store, br *bridge.Bridge, ctrl interceptor.Controller, emitter *events.Emitter, whitelist heuristic.Whitelist) *Surface {
	return &Surface{
		store:     st,
		bridge:    br,
		ctrl:      ctrl,
		emitter:   emitter,
		whitelist: whitelist,
		pending:   make(map[string]string),
	}
}

// Scan submits a user-initiated scan. Trusted domains short-circuit
// with an immediate LOW verdict; everything else goes to the engine.
// The verdict arrives asynchronously through HandleScanResult. The
// returned verdict is non-nil only for the short-circuit path.
func (s *Surface) Scan(target string) (requestID string, local *threat.Verdict, err error) {
	requestID = uuid.NewString()
	evt := events.StartScan(target, requestID)
	defer func() {
		evt.SetError(err)
		s.emitter.Emit(evt.End())
	}()

	if isURL(target) && s.whitelist.Contains(target) {
		v := heuristic.WhitelistVerdict(target, nowSeconds())
		v.RequestID = requestID
		s.HandleScanResult(target, *v)
		evt.Level(string(v.ThreatScore.Level)).Score(v.ThreatScore.Score)
		return requestID, v, nil
	}

	if err = s.bridge.Connect(); err != nil {
		// Attach the local assessment for the diagnostic log before
		// surfacing the channel error to the view.
		if isURL(target) {
			deep := heuristic.ScoreURLDeep(target)
			evt.Level(string(deep.Level)).Score(deep.Score)
		}
		return "", nil, err
	}

	s.mu.Lock()
	s.pending[requestID] = target
	s.mu.Unlock()

	if err = s.bridge.Submit(bridge.ScanPayload{
		Action:    "scan",
		Target:    target,
		RequestID: requestID,
	}); err != nil {
		s.mu.Lock()
		delete(s.pending, requestID)
		s.mu.Unlock()
		return "", nil, err
	}
	return requestID, nil, nil
}

// HandleScanResult records an engine verdict against its scan: a
// history entry with action "scanned", and for HIGH verdicts (or
// score >= 70) the warning view is opened on the staged threat.
func (s *Surface) HandleScanResult(target string, verdict threat.Verdict) {
	if verdict.ThreatScore == nil {
		return
	}

	if target == "" {
		target = s.takePending(verdict.RequestID)
	} else {
		s.takePending(verdict.RequestID)
	}

	ts := verdict.Timestamp
	if ts == 0 {
		ts = nowSeconds()
	}
	score := verdict.ThreatScore

	entry := threat.HistoryEntry{
		Timestamp:   ts,
		URL:         target,
		Type:        "url",
		ThreatLevel: score.Level,
		Score:       score.Score,
		Indicators:  score.Indicators,
		Action:      threat.ActionScanned,
		Status:      verdict.Status,
	}
	if err := s.store.AppendHistory(entry); err != nil {
		s.emitter.Emit(events.StartScan(target, verdict.RequestID).SetError(err).End())
		return
	}

	if score.Level == threat.LevelHigh || score.Score >= 70 {
		staged := &threat.Event{
			Target:          target,
			Status:          verdict.Status,
			IsolationMethod: verdict.IsolationMethod,
			ThreatScore:     *score,
			Timestamp:       ts,
		}
		if err := s.store.SetCurrentThreat(staged); err != nil {
			return
		}
		s.ctrl.OpenWindow(interceptor.WarningURL, interceptor.WarningWidth, interceptor.WarningHeight)
	}
}

func (s *Surface) takePending(requestID string) string {
	if requestID == "" {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	target := s.pending[requestID]
	delete(s.pending, requestID)
	return target
}

// Decide resolves the current threat from the warning view.
func (s *Surface) Decide(action string) error {
	data, err := s.store.CurrentThreat()
	if err != nil {
		return fmt.Errorf("load current threat: %w", err)
	}
	if data == nil {
		data = SampleThreat()
	}

	evt := events.StartDecision(data.Target, action)
	defer func() { s.emitter.Emit(evt.End()) }()

	switch action {
	case DecisionBlock:
		if data.DownloadID != 0 {
			if err := s.ctrl.CancelDownload(data.DownloadID); err != nil {
				evt.SetError(err)
			}
		}
		if err := s.store.AppendHistory(data.Entry(threat.ActionBlocked)); err != nil {
			evt.SetError(err)
			return fmt.Errorf("record block: %w", err)
		}

	case DecisionAllow:
		if data.DownloadID != 0 {
			if err := s.ctrl.ResumeDownload(data.DownloadID); err != nil {
				evt.SetError(err)
			}
		} else {
			if err := s.ctrl.TabUpdate(0, data.Target); err != nil {
				evt.SetError(err)
			}
		}
		if err := s.store.AppendHistory(data.Entry(threat.ActionAllowed)); err != nil {
			evt.SetError(err)
			return fmt.Errorf("record allow: %w", err)
		}

	case DecisionDetails:
		// Opens the dashboard; no history entry is recorded.
		if err := s.ctrl.OpenTab(DashboardURL); err != nil {
			evt.SetError(err)
			return fmt.Errorf("open dashboard: %w", err)
		}

	default:
		err := fmt.Errorf("unknown decision action: %s", action)
		evt.SetError(err)
		return err
	}
	return nil
}

// SampleThreat is the illustrative placeholder the warning view falls
// back to when nothing is staged.
func SampleThreat() *threat.Event {
	return &threat.Event{
		Target:          "https://example-phishing-site.com",
		IsolationMethod: threat.IsolationMicroVM,
		ThreatScore: threat.Score{
			Level:      threat.LevelHigh,
			Score:      85,
			Confidence: 0.92,
			Indicators: []string{
				"Suspicious domain pattern",
				"No SSL certificate",
				"Known phishing keywords detected",
				"Domain registered recently",
			},
		},
		Timestamp: nowSeconds(),
	}
}

func isURL(target string) bool {
	return strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://")
}

func nowSeconds() float64 {
	return float64(time.Now().UnixMilli()) / 1000
}
