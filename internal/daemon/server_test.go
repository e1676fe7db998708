// oreon/sentinel · watchthelight <wtl>

package daemon

import (
	"bufio"
	"encoding/json"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/oreonproject/sentinel/internal/bridge"
	"github.com/oreonproject/sentinel/internal/notify"
	"github.com/oreonproject/sentinel/internal/report"
	"github.com/oreonproject/sentinel/internal/store"
	"github.com/oreonproject/sentinel/pkg/config"
	"github.com/oreonproject/sentinel/pkg/events"
	"github.com/oreonproject/sentinel/pkg/ipc"
	"github.com/oreonproject/sentinel/pkg/threat"
)

func setupTestServer(t *testing.T) (*Server, *Daemon, string) {
	t.Helper()

	dir := t.TempDir()

	cfg := config.Default()
	cfg.Scanning.SafeDomains = []string{"github.com"}

	st, err := store.Open(filepath.Join(dir, "sentinel.db"))
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	emitter := events.NewEmitter()
	br := bridge.New("com.sentinel.host", filepath.Join(dir, "no-engine.sock"), emitter)
	d := New(cfg, st, br, notify.Discard{}, emitter)

	sockPath := filepath.Join(dir, "test.sock")
	server := NewServer(sockPath, d)

	if err := server.Listen(); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	go server.Serve()
	t.Cleanup(func() { server.Close() })

	// Give server time to start
	time.Sleep(10 * time.Millisecond)

	return server, d, sockPath
}

func sendRequest(t *testing.T, sockPath string, req *ipc.Request) *ipc.Response {
	t.Helper()

	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer conn.Close()

	data, _ := json.Marshal(req)
	data = append(data, '\n')
	conn.Write(data)

	reader := bufio.NewReader(conn)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		t.Fatalf("read error: %v", err)
	}

	var resp ipc.Response
	if err := json.Unmarshal(line, &resp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}

	return &resp
}

func request(t *testing.T, id, command string, payload interface{}) *ipc.Request {
	t.Helper()
	req := &ipc.Request{ID: id, Command: command}
	if payload != nil {
		if err := req.SetData(payload); err != nil {
			t.Fatalf("SetData error: %v", err)
		}
	}
	return req
}

func TestServer_Ping(t *testing.T) {
	_, _, sockPath := setupTestServer(t)

	resp := sendRequest(t, sockPath, request(t, "1", ipc.CmdPing, nil))

	if !resp.Success {
		t.Errorf("Success = false, want true")
	}
}

func TestServer_Status(t *testing.T) {
	_, _, sockPath := setupTestServer(t)

	resp := sendRequest(t, sockPath, request(t, "1", ipc.CmdStatus, nil))

	if !resp.Success {
		t.Fatalf("Success = false, error: %s", resp.Error)
	}

	var status ipc.StatusResponse
	if err := resp.UnmarshalData(&status); err != nil {
		t.Fatalf("UnmarshalData error: %v", err)
	}

	if status.State != "protected" {
		t.Errorf("State = %v, want protected", status.State)
	}
	if status.EngineConnected {
		t.Error("EngineConnected = true with no engine socket")
	}
	if status.SessionThreats != 0 {
		t.Errorf("SessionThreats = %d, want 0", status.SessionThreats)
	}
}

func TestServer_UnknownCommand(t *testing.T) {
	_, _, sockPath := setupTestServer(t)

	resp := sendRequest(t, sockPath, request(t, "1", "unknown_command", nil))

	if resp.Success {
		t.Error("Success = true for unknown command")
	}
	if resp.Error == "" {
		t.Error("Error is empty for unknown command")
	}
}

func TestServer_InvalidJSON(t *testing.T) {
	_, _, sockPath := setupTestServer(t)

	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer conn.Close()

	// Send invalid JSON
	conn.Write([]byte("not valid json\n"))

	reader := bufio.NewReader(conn)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		t.Fatalf("read error: %v", err)
	}

	var resp ipc.Response
	if err := json.Unmarshal(line, &resp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}

	if resp.Success {
		t.Error("Success = true for invalid JSON")
	}
}

func TestServer_ProtocolVersion(t *testing.T) {
	_, _, sockPath := setupTestServer(t)

	req := request(t, "1", ipc.CmdPing, nil)
	req.Version = ipc.ProtocolVersion
	resp := sendRequest(t, sockPath, req)

	if !resp.Success {
		t.Errorf("Success = false with matching version")
	}
}

func TestServer_BadVersion(t *testing.T) {
	_, _, sockPath := setupTestServer(t)

	req := request(t, "1", ipc.CmdPing, nil)
	req.Version = 999 // future version
	resp := sendRequest(t, sockPath, req)

	if resp.Success {
		t.Error("Success = true for mismatched version")
	}
	if resp.Error == "" {
		t.Error("Error is empty for mismatched version")
	}
}

func TestServer_LegacyClient(t *testing.T) {
	_, _, sockPath := setupTestServer(t)

	req := request(t, "1", ipc.CmdPing, nil)
	req.Version = 0 // legacy client
	resp := sendRequest(t, sockPath, req)

	if !resp.Success {
		t.Error("Success = false for version 0 (legacy client)")
	}
}

func TestServer_ScanEngineDown(t *testing.T) {
	_, _, sockPath := setupTestServer(t)

	resp := sendRequest(t, sockPath, request(t, "1", ipc.CmdScan, ipc.ScanRequest{Target: "http://unknown.test"}))

	if resp.Success {
		t.Fatal("Success = true with no engine channel")
	}
	if resp.Error != "Host disconnected" {
		t.Errorf("Error = %q, want %q", resp.Error, "Host disconnected")
	}
}

func TestServer_ScanWhitelisted(t *testing.T) {
	_, d, sockPath := setupTestServer(t)

	resp := sendRequest(t, sockPath, request(t, "1", ipc.CmdScan, ipc.ScanRequest{Target: "https://github.com/x"}))

	if !resp.Success {
		t.Fatalf("Success = false: %s", resp.Error)
	}

	var result struct {
		Status string         `json:"status"`
		Result threat.Verdict `json:"result"`
	}
	if err := resp.UnmarshalData(&result); err != nil {
		t.Fatalf("UnmarshalData error: %v", err)
	}
	if result.Status != "done" {
		t.Errorf("status = %s, want done", result.Status)
	}
	if result.Result.ThreatScore == nil || result.Result.ThreatScore.Level != threat.LevelLow {
		t.Errorf("verdict = %+v, want LOW", result.Result)
	}

	history, err := d.Store().History()
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 || history[0].Action != threat.ActionScanned {
		t.Errorf("history = %+v, want one scanned entry", history)
	}
}

func TestServer_ScanEmptyTarget(t *testing.T) {
	_, _, sockPath := setupTestServer(t)

	resp := sendRequest(t, sockPath, request(t, "1", ipc.CmdScan, ipc.ScanRequest{}))

	if resp.Success {
		t.Error("Success = true for empty target")
	}
}

func TestServer_NavigationBlocks(t *testing.T) {
	_, d, sockPath := setupTestServer(t)

	resp := sendRequest(t, sockPath, request(t, "1", ipc.CmdNavigation, ipc.NavigationEvent{
		TabID: 3, URL: "http://x.com/a.exe?phishing",
	}))

	if !resp.Success {
		t.Fatalf("Success = false: %s", resp.Error)
	}
	var result map[string]bool
	if err := resp.UnmarshalData(&result); err != nil {
		t.Fatalf("UnmarshalData error: %v", err)
	}
	if !result["blocked"] {
		t.Error("blocked = false for suspicious URL")
	}

	evt, err := d.Store().CurrentThreat()
	if err != nil {
		t.Fatalf("CurrentThreat() error = %v", err)
	}
	if evt == nil || evt.Status != threat.StatusSuspicious {
		t.Errorf("staged threat = %+v", evt)
	}
}

func TestServer_NavigationPassThrough(t *testing.T) {
	_, _, sockPath := setupTestServer(t)

	resp := sendRequest(t, sockPath, request(t, "1", ipc.CmdNavigation, ipc.NavigationEvent{
		TabID: 3, URL: "https://news.example.org",
	}))

	if !resp.Success {
		t.Fatalf("Success = false: %s", resp.Error)
	}
	var result map[string]bool
	resp.UnmarshalData(&result)
	if result["blocked"] {
		t.Error("blocked = true for a clean URL")
	}
}

func TestServer_DownloadPauses(t *testing.T) {
	_, d, sockPath := setupTestServer(t)

	resp := sendRequest(t, sockPath, request(t, "1", ipc.CmdDownload, ipc.DownloadEvent{
		ID: 42, Filename: "invoice.scr",
	}))

	if !resp.Success {
		t.Fatalf("Success = false: %s", resp.Error)
	}
	var result map[string]bool
	resp.UnmarshalData(&result)
	if !result["paused"] {
		t.Error("paused = false for denylisted extension")
	}

	evt, _ := d.Store().CurrentThreat()
	if evt == nil || evt.DownloadID != 42 {
		t.Errorf("staged threat = %+v, want downloadId 42", evt)
	}
}

func TestServer_DecisionRecordsHistory(t *testing.T) {
	_, d, sockPath := setupTestServer(t)

	sendRequest(t, sockPath, request(t, "1", ipc.CmdDownload, ipc.DownloadEvent{
		ID: 42, Filename: "invoice.scr",
	}))

	resp := sendRequest(t, sockPath, request(t, "2", ipc.CmdDecision, ipc.DecisionRequest{Action: "blocked"}))
	if resp.Success {
		t.Error("Success = true for unknown decision action")
	}

	resp = sendRequest(t, sockPath, request(t, "3", ipc.CmdDecision, ipc.DecisionRequest{Action: "block"}))
	if !resp.Success {
		t.Fatalf("Success = false: %s", resp.Error)
	}

	history, err := d.Store().History()
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 || history[0].Action != threat.ActionBlocked {
		t.Fatalf("history = %+v, want one blocked entry", history)
	}
	if history[0].URL != "invoice.scr" {
		t.Errorf("URL = %s, want invoice.scr", history[0].URL)
	}
}

func TestServer_HistoryAndStats(t *testing.T) {
	_, d, sockPath := setupTestServer(t)

	if err := d.Store().AppendHistory(threat.HistoryEntry{
		Timestamp: 1700000000, URL: "http://a.test", Type: "url",
		ThreatLevel: threat.LevelHigh, Score: 85,
		Indicators: []string{"x"}, Action: threat.ActionScanned,
	}); err != nil {
		t.Fatalf("AppendHistory() error = %v", err)
	}

	resp := sendRequest(t, sockPath, request(t, "1", ipc.CmdHistory, nil))
	if !resp.Success {
		t.Fatalf("history failed: %s", resp.Error)
	}
	var history ipc.HistoryResponse
	if err := resp.UnmarshalData(&history); err != nil {
		t.Fatalf("UnmarshalData error: %v", err)
	}
	if len(history.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(history.Entries))
	}

	resp = sendRequest(t, sockPath, request(t, "2", ipc.CmdStats, nil))
	if !resp.Success {
		t.Fatalf("stats failed: %s", resp.Error)
	}
	var stats threat.Stats
	if err := resp.UnmarshalData(&stats); err != nil {
		t.Fatalf("UnmarshalData error: %v", err)
	}
	if stats.TotalScans != 1 || stats.ThreatsBlocked != 1 {
		t.Errorf("stats = %+v, want 1/1", stats)
	}
}

func TestServer_ExportCSV(t *testing.T) {
	_, d, sockPath := setupTestServer(t)

	d.Store().AppendHistory(threat.HistoryEntry{
		Timestamp: 1700000000, URL: "http://a.test", Type: "url",
		ThreatLevel: threat.LevelMedium, Score: 40,
		Indicators: []string{"Suspicious URL pattern detected"},
		Action:     threat.ActionBlocked,
	})

	resp := sendRequest(t, sockPath, request(t, "1", ipc.CmdExport, ipc.ExportRequest{Format: "csv"}))
	if !resp.Success {
		t.Fatalf("export failed: %s", resp.Error)
	}
	var export ipc.ExportResponse
	if err := resp.UnmarshalData(&export); err != nil {
		t.Fatalf("UnmarshalData error: %v", err)
	}
	if !strings.HasPrefix(export.Content, "Timestamp,URL,Threat Level,Score,Action,Indicators\n") {
		t.Errorf("CSV header missing: %q", export.Content)
	}
	if !strings.HasPrefix(export.Filename, "sentinel_report_") {
		t.Errorf("Filename = %s", export.Filename)
	}
}

func TestServer_ExportJSONRoundTrip(t *testing.T) {
	_, d, sockPath := setupTestServer(t)

	want := threat.HistoryEntry{
		Timestamp: 1700000000, URL: "http://a.test", Type: "url",
		ThreatLevel: threat.LevelHigh, Score: 85,
		Indicators: []string{"Known phishing keywords detected"},
		Action:     threat.ActionScanned, Status: "ANALYZED",
	}
	d.Store().AppendHistory(want)

	resp := sendRequest(t, sockPath, request(t, "1", ipc.CmdExport, ipc.ExportRequest{Format: "json"}))
	if !resp.Success {
		t.Fatalf("export failed: %s", resp.Error)
	}
	var export ipc.ExportResponse
	if err := resp.UnmarshalData(&export); err != nil {
		t.Fatalf("UnmarshalData error: %v", err)
	}

	var parsed report.Export
	if err := json.Unmarshal([]byte(export.Content), &parsed); err != nil {
		t.Fatalf("re-parse error: %v", err)
	}
	if len(parsed.Scans) != 1 {
		t.Fatalf("scans = %d, want 1", len(parsed.Scans))
	}
	got := parsed.Scans[0]
	if got.URL != want.URL || got.ThreatLevel != want.ThreatLevel ||
		got.Score != want.Score || got.Action != want.Action || got.Status != want.Status {
		t.Errorf("round-trip entry = %+v, want %+v", got, want)
	}
}

func TestServer_ExportUnknownFormat(t *testing.T) {
	_, _, sockPath := setupTestServer(t)

	resp := sendRequest(t, sockPath, request(t, "1", ipc.CmdExport, ipc.ExportRequest{Format: "xml"}))
	if resp.Success {
		t.Error("Success = true for unknown export format")
	}
}

func TestServer_SubscriberReceivesControlEvents(t *testing.T) {
	_, _, sockPath := setupTestServer(t)

	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer conn.Close()

	data, _ := json.Marshal(&ipc.Request{ID: "sub", Command: ipc.CmdSubscribe})
	conn.Write(append(data, '\n'))
	reader := bufio.NewReader(conn)
	if _, err := reader.ReadBytes('\n'); err != nil {
		t.Fatalf("subscribe ack error: %v", err)
	}

	// A suspicious navigation pushes a tab_update control event.
	sendRequest(t, sockPath, request(t, "1", ipc.CmdNavigation, ipc.NavigationEvent{
		TabID: 3, URL: "http://x.com/a.exe?phishing",
	}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := reader.ReadBytes('\n')
	if err != nil {
		t.Fatalf("read push event error: %v", err)
	}

	var push ipc.Response
	if err := json.Unmarshal(line, &push); err != nil {
		t.Fatalf("unmarshal push error: %v", err)
	}
	if push.ID != ipc.EventID {
		t.Fatalf("push ID = %s, want event", push.ID)
	}
	var evt ipc.PushEvent
	if err := push.UnmarshalData(&evt); err != nil {
		t.Fatalf("UnmarshalData error: %v", err)
	}
	if evt.Kind != ipc.EventControl {
		t.Fatalf("Kind = %s, want control", evt.Kind)
	}
	var ctrl ipc.ControlEvent
	if err := json.Unmarshal(evt.Data, &ctrl); err != nil {
		t.Fatalf("decode control error: %v", err)
	}
	if ctrl.Op != ipc.ControlTabUpdate || ctrl.TabID != 3 {
		t.Errorf("control = %+v, want tab_update for tab 3", ctrl)
	}
}

func TestDaemon_HighVerdictBadge(t *testing.T) {
	_, d, _ := setupTestServer(t)

	verdict := threat.Verdict{
		Status:          threat.StatusAnalyzed,
		IsolationMethod: threat.IsolationMicroVM,
		ThreatScore: &threat.Score{
			Level: threat.LevelHigh, Score: 85, Confidence: 0.9,
			Indicators: []string{"Known phishing keywords detected"},
		},
		Timestamp: 1700000000,
	}

	d.handleThreatResult(verdict)
	if d.SessionThreats() != 1 {
		t.Errorf("SessionThreats = %d, want 1", d.SessionThreats())
	}
	if d.State().State() != StateAlert {
		t.Errorf("State = %v, want alert", d.State().State())
	}

	d.handleThreatResult(verdict)
	if d.SessionThreats() != 2 {
		t.Errorf("SessionThreats = %d, want 2 after second HIGH verdict", d.SessionThreats())
	}

	// MEDIUM verdicts alert but do not touch the badge.
	d.handleThreatResult(threat.Verdict{
		ThreatScore: &threat.Score{Level: threat.LevelMedium, Score: 50},
	})
	if d.SessionThreats() != 2 {
		t.Errorf("SessionThreats = %d, want 2 after MEDIUM verdict", d.SessionThreats())
	}
}

func TestServer_RebroadcastWrapsEnginePayload(t *testing.T) {
	_, d, sockPath := setupTestServer(t)

	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer conn.Close()

	data, _ := json.Marshal(&ipc.Request{ID: "sub", Command: ipc.CmdSubscribe})
	conn.Write(append(data, '\n'))
	reader := bufio.NewReader(conn)
	if _, err := reader.ReadBytes('\n'); err != nil {
		t.Fatalf("subscribe ack error: %v", err)
	}

	payload := json.RawMessage(`{"status":"ANALYZED","threat_score":{"level":"LOW","score":10}}`)
	d.rebroadcast(payload)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := reader.ReadBytes('\n')
	if err != nil {
		t.Fatalf("read push event error: %v", err)
	}

	var push ipc.Response
	if err := json.Unmarshal(line, &push); err != nil {
		t.Fatalf("unmarshal push error: %v", err)
	}
	var evt ipc.PushEvent
	if err := push.UnmarshalData(&evt); err != nil {
		t.Fatalf("UnmarshalData error: %v", err)
	}
	if evt.Kind != ipc.EventScanResult {
		t.Fatalf("Kind = %s, want scan_result", evt.Kind)
	}

	var wrapped ipc.ScanResultEvent
	if err := json.Unmarshal(evt.Data, &wrapped); err != nil {
		t.Fatalf("decode envelope error: %v", err)
	}
	var verdict threat.Verdict
	if err := json.Unmarshal(wrapped.Result, &verdict); err != nil {
		t.Fatalf("decode result error: %v", err)
	}
	if verdict.Status != threat.StatusAnalyzed || verdict.ThreatScore == nil {
		t.Errorf("verdict = %+v, want the forwarded payload", verdict)
	}
}
