// oreon/sentinel · watchthelight <wtl>

package ipc

import (
	"encoding/json"

	"github.com/oreonproject/sentinel/pkg/threat"
)

// ProtocolVersion is bumped on incompatible wire changes. Version 0 is
// accepted for legacy clients that never sent one.
const ProtocolVersion = 1

// Commands understood by the daemon.
const (
	CmdPing       = "ping"
	CmdStatus     = "status"
	CmdSubscribe  = "subscribe"
	CmdScan       = "scan"
	CmdNavigation = "navigation"
	CmdDownload   = "download"
	CmdDecision   = "decision"
	CmdHistory    = "history"
	CmdStats      = "stats"
	CmdExport     = "export"
)

// Request is one client command. Data carries the command-specific
// payload, if any.
type Request struct {
	Version int             `json:"version,omitempty"`
	ID      string          `json:"id"`
	Command string          `json:"command"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Response answers a Request, or carries a push event when ID is
// "event" (sent to subscribed clients only).
type Response struct {
	ID      string          `json:"id"`
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// UnmarshalData decodes the response payload into v.
func (r *Response) UnmarshalData(v interface{}) error {
	return json.Unmarshal(r.Data, v)
}

// EventID marks a Response as a push event rather than a reply.
const EventID = "event"

// SetData marshals v into the request payload.
func (r *Request) SetData(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	r.Data = data
	return nil
}

// ScanRequest asks the daemon to scan a URL or file path.
type ScanRequest struct {
	Target string `json:"target"`
}

// NavigationEvent reports a navigation attempt observed by the
// browser shell. FrameID 0 denotes the top-level frame.
type NavigationEvent struct {
	TabID   int    `json:"tab_id"`
	FrameID int    `json:"frame_id"`
	URL     string `json:"url"`
}

// DownloadEvent reports a newly created download.
type DownloadEvent struct {
	ID       int32  `json:"id"`
	Filename string `json:"filename"`
}

// DecisionRequest resolves the current threat from the warning view.
// Action is "allow", "block" or "details".
type DecisionRequest struct {
	Action string `json:"action"`
}

// ExportRequest selects a report format, "csv" or "json".
type ExportRequest struct {
	Format string `json:"format"`
}

// ExportResponse carries a rendered report.
type ExportResponse struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// StatusResponse describes daemon health for the tray and shell.
type StatusResponse struct {
	State           string `json:"state"`
	EngineConnected bool   `json:"engine_connected"`
	SessionThreats  int    `json:"session_threats"`
	LastScan        int64  `json:"last_scan,omitempty"`
}

// HistoryResponse returns the persisted scan log, newest first.
type HistoryResponse struct {
	Entries []threat.HistoryEntry `json:"entries"`
}

// Push event kinds delivered to subscribers.
const (
	EventScanResult  = "scan_result"
	EventBadge       = "badge"
	EventControl     = "control"
	EventStateChange = "state_change"
)

// PushEvent is the envelope for daemon-initiated messages.
type PushEvent struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ScanResultEvent forwards an engine payload to listening views. The
// result is passed through untouched; views decode what they need.
type ScanResultEvent struct {
	Result json.RawMessage `json:"result"`
}

// BadgeEvent updates the session threat badge counter.
type BadgeEvent struct {
	Count int `json:"count"`
}

// Control operations pushed to the browser shell.
const (
	ControlTabUpdate      = "tab_update"
	ControlOpenTab        = "open_tab"
	ControlOpenWindow     = "open_window"
	ControlPauseDownload  = "pause_download"
	ControlResumeDownload = "resume_download"
	ControlCancelDownload = "cancel_download"
)

// ControlEvent instructs the browser shell to act on a tab, window or
// download on the daemon's behalf.
type ControlEvent struct {
	Op         string `json:"op"`
	TabID      int    `json:"tab_id,omitempty"`
	URL        string `json:"url,omitempty"`
	DownloadID int32  `json:"download_id,omitempty"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
}

// StateChangeEvent reports a daemon state transition.
type StateChangeEvent struct {
	OldState string `json:"old_state"`
	NewState string `json:"new_state"`
}
