// oreon/sentinel · watchthelight <wtl>

package threat

// Level buckets a numeric risk score into a coarse severity.
type Level string

const (
	LevelLow    Level = "LOW"
	LevelMedium Level = "MEDIUM"
	LevelHigh   Level = "HIGH"
)

// LevelForScore maps a 0-100 score onto a Level.
// Cutoffs match the analysis backend: <30 LOW, <70 MEDIUM, else HIGH.
func LevelForScore(score int) Level {
	switch {
	case score < 30:
		return LevelLow
	case score < 70:
		return LevelMedium
	default:
		return LevelHigh
	}
}

// Score is a structured verdict for a scanned target.
// Immutable once produced, by either the local heuristics or the
// native analysis engine.
type Score struct {
	Level      Level    `json:"level"`
	Score      int      `json:"score"`
	Confidence float64  `json:"confidence"`
	Indicators []string `json:"indicators"`
}

// Event is a detected threat staged for user review. At most one Event
// is live at a time (the "current threat" slot); a newer detection
// overwrites an older one.
type Event struct {
	Target          string  `json:"target"`
	Status          string  `json:"status"`
	IsolationMethod string  `json:"isolation_method"`
	ThreatScore     Score   `json:"threat_score"`
	Timestamp       float64 `json:"timestamp"`
	DownloadID      int32   `json:"downloadId,omitempty"`
}

// Statuses recorded on Events.
const (
	StatusSuspicious     = "SUSPICIOUS"
	StatusDownloadPaused = "DOWNLOAD_PAUSED"
	StatusAnalyzed       = "ANALYZED"
	StatusError          = "ERROR"
)

// Isolation method tags describing how a target was contained.
const (
	IsolationPattern   = "pattern_detection"
	IsolationExtension = "extension_check"
	IsolationWhitelist = "whitelist_check"
	IsolationMicroVM   = "firecracker_microvm"
	IsolationNone      = "none"
)

// HistoryEntry is a durable record of one scan outcome plus the user
// or system decision that resolved it.
type HistoryEntry struct {
	Timestamp   float64  `json:"timestamp"`
	URL         string   `json:"url"`
	Type        string   `json:"type"`
	ThreatLevel Level    `json:"threat_level"`
	Score       int      `json:"score"`
	Indicators  []string `json:"indicators"`
	Action      Action   `json:"action"`
	Status      string   `json:"status,omitempty"`
}

// Action is the decision recorded with a HistoryEntry.
type Action string

const (
	ActionScanned Action = "scanned"
	ActionAllowed Action = "allowed"
	ActionBlocked Action = "blocked"
)

// Stats are the aggregate counters shown on the dashboard.
// ThreatsBlocked never exceeds TotalScans.
type Stats struct {
	TotalScans     int64 `json:"total_scans"`
	ThreatsBlocked int64 `json:"threats_blocked"`
	LastUpdated    int64 `json:"last_updated"`
}

// Entry derives the history record for an Event resolved by action.
func (e *Event) Entry(action Action) HistoryEntry {
	return HistoryEntry{
		Timestamp:   e.Timestamp,
		URL:         e.Target,
		Type:        "url",
		ThreatLevel: e.ThreatScore.Level,
		Score:       e.ThreatScore.Score,
		Indicators:  e.ThreatScore.Indicators,
		Action:      action,
		Status:      statusFor(e.Status),
	}
}

// statusFor keeps detection statuses off resolved entries; verdict
// statuses from the engine are carried through.
func statusFor(s string) string {
	switch s {
	case StatusSuspicious, StatusDownloadPaused:
		return ""
	default:
		return s
	}
}

// Verdict is the full response shape produced by the analysis engine
// for one scan request.
type Verdict struct {
	RequestID       string  `json:"request_id,omitempty"`
	Status          string  `json:"status"`
	Details         string  `json:"details,omitempty"`
	IsolationMethod string  `json:"isolation_method,omitempty"`
	ThreatScore     *Score  `json:"threat_score,omitempty"`
	Timestamp       float64 `json:"timestamp,omitempty"`
}
