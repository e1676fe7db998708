// oreon/sentinel · watchthelight <wtl>

package daemon

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/oreonproject/sentinel/internal/bridge"
	"github.com/oreonproject/sentinel/internal/report"
	"github.com/oreonproject/sentinel/pkg/events"
	"github.com/oreonproject/sentinel/pkg/ipc"
)

// Server handles IPC connections from clients (browser shell, tray, CLI).
type Server struct {
	socketPath  string
	listener    net.Listener
	daemon      *Daemon
	done        chan struct{}
	subscribers map[net.Conn]bool
	subMu       sync.Mutex
}

// NewServer creates an IPC server that exposes daemon operations.
func NewServer(socketPath string, daemon *Daemon) *Server {
	s := &Server{
		socketPath:  socketPath,
		daemon:      daemon,
		done:        make(chan struct{}),
		subscribers: make(map[net.Conn]bool),
	}

	// Push events generated anywhere in the daemon go to subscribers.
	daemon.SetPublisher(s.broadcast)
	daemon.State().OnStateChange(func(old, new State) {
		s.broadcastStateChange(old.String(), new.String())
	})

	return s
}

// Listen creates the unix socket and starts accepting connections.
func (s *Server) Listen() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0755); err != nil {
		return err
	}

	// Remove stale socket if it exists
	os.Remove(s.socketPath)

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return err
	}
	s.listener = ln

	// World accessible so the user's browser shell and tray can connect
	if err := os.Chmod(s.socketPath, 0666); err != nil {
		ln.Close()
		return err
	}

	slog.Info("IPC server listening", "socket", s.socketPath)
	return nil
}

// Serve accepts connections until Close is called.
func (s *Server) Serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return // shutdown
			default:
				slog.Warn("accept error", "error", err)
				continue
			}
		}
		go s.handleConnection(conn)
	}
}

// Close shuts down the server.
func (s *Server) Close() error {
	close(s.done)
	if s.listener != nil {
		s.listener.Close()
	}
	os.Remove(s.socketPath)
	return nil
}

// subscribe adds a connection to the subscriber list.
func (s *Server) subscribe(conn net.Conn) {
	s.subMu.Lock()
	s.subscribers[conn] = true
	s.subMu.Unlock()
	slog.Debug("client subscribed", "remote", conn.RemoteAddr())
}

// unsubscribe removes a connection from the subscriber list.
func (s *Server) unsubscribe(conn net.Conn) {
	s.subMu.Lock()
	delete(s.subscribers, conn)
	s.subMu.Unlock()
}

// broadcast sends a push event to all subscribers, best-effort.
func (s *Server) broadcast(evt ipc.PushEvent) {
	resp := makeResponse(ipc.EventID, evt)

	s.subMu.Lock()
	subscribers := make([]net.Conn, 0, len(s.subscribers))
	for conn := range s.subscribers {
		subscribers = append(subscribers, conn)
	}
	s.subMu.Unlock()

	for _, conn := range subscribers {
		encoder := json.NewEncoder(conn)
		if err := encoder.Encode(resp); err != nil {
			slog.Debug("failed to send event to subscriber", "error", err)
			s.unsubscribe(conn)
		}
	}
}

func (s *Server) broadcastStateChange(oldState, newState string) {
	data, err := json.Marshal(ipc.StateChangeEvent{OldState: oldState, NewState: newState})
	if err != nil {
		return
	}
	s.broadcast(ipc.PushEvent{Kind: ipc.EventStateChange, Data: data})
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	defer s.unsubscribe(conn) // clean up subscription on disconnect

	reader := bufio.NewReader(conn)
	encoder := json.NewEncoder(conn)

	for {
		// Read one line (one JSON request)
		line, err := reader.ReadBytes('\n')
		if err != nil {
			return // client disconnected
		}

		var req ipc.Request
		if err := json.Unmarshal(line, &req); err != nil {
			if err := encoder.Encode(ipc.Response{
				Success: false,
				Error:   "invalid JSON",
			}); err != nil {
				slog.Warn("failed to encode error response", "error", err)
				return
			}
			continue
		}

		// Handle subscribe specially - it registers this connection for push events
		if req.Command == ipc.CmdSubscribe {
			s.subscribe(conn)
			resp := makeResponse(req.ID, "subscribed")
			if err := encoder.Encode(resp); err != nil {
				slog.Warn("failed to encode response", "error", err)
				return
			}
			continue
		}

		resp := s.handleRequest(&req)
		if err := encoder.Encode(resp); err != nil {
			slog.Warn("failed to encode response", "error", err)
			return
		}
	}
}

// makeResponse creates a response with properly marshaled data.
func makeResponse(id string, data interface{}) *ipc.Response {
	resp := &ipc.Response{ID: id, Success: true}
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return &ipc.Response{ID: id, Success: false, Error: "marshal error: " + err.Error()}
		}
		resp.Data = jsonData
	}
	return resp
}

func errorResponse(id, msg string) *ipc.Response {
	return &ipc.Response{ID: id, Success: false, Error: msg}
}

func (s *Server) handleRequest(req *ipc.Request) *ipc.Response {
	evt := events.StartIPCRequest(req.Command, req.ID).ClientVersion(req.Version)
	var resp *ipc.Response
	defer func() {
		if resp != nil && !resp.Success {
			evt.SetError(fmt.Errorf("%s", resp.Error))
		}
		if resp != nil {
			evt.ResponseSize(len(resp.Data))
		}
		s.daemon.Events().Emit(evt.End())
	}()

	// Check protocol version (0 means old client that didn't send version)
	if req.Version != 0 && req.Version != ipc.ProtocolVersion {
		resp = errorResponse(req.ID, fmt.Sprintf(
			"protocol version mismatch: client=%d, server=%d", req.Version, ipc.ProtocolVersion))
		return resp
	}

	switch req.Command {
	case ipc.CmdPing:
		resp = makeResponse(req.ID, "pong")

	case ipc.CmdStatus:
		resp = makeResponse(req.ID, ipc.StatusResponse{
			State:           s.daemon.State().State().String(),
			EngineConnected: s.daemon.EngineConnected(),
			SessionThreats:  s.daemon.SessionThreats(),
			LastScan:        s.daemon.LastScan().Unix(),
		})

	case ipc.CmdScan:
		resp = s.handleScan(req)

	case ipc.CmdNavigation:
		resp = s.handleNavigation(req)

	case ipc.CmdDownload:
		resp = s.handleDownload(req)

	case ipc.CmdDecision:
		resp = s.handleDecision(req)

	case ipc.CmdHistory:
		entries, err := s.daemon.Store().History()
		if err != nil {
			resp = errorResponse(req.ID, err.Error())
			break
		}
		resp = makeResponse(req.ID, ipc.HistoryResponse{Entries: entries})

	case ipc.CmdStats:
		stats, err := s.daemon.Store().Stats()
		if err != nil {
			resp = errorResponse(req.ID, err.Error())
			break
		}
		resp = makeResponse(req.ID, stats)

	case ipc.CmdExport:
		resp = s.handleExport(req)

	default:
		resp = errorResponse(req.ID, "unknown command: "+req.Command)
	}

	return resp
}

func (s *Server) handleScan(req *ipc.Request) *ipc.Response {
	var scan ipc.ScanRequest
	if err := json.Unmarshal(req.Data, &scan); err != nil {
		return errorResponse(req.ID, "invalid scan request")
	}
	if scan.Target == "" {
		return errorResponse(req.ID, "empty scan target")
	}

	requestID, local, err := s.daemon.Surface().Scan(scan.Target)
	if err != nil {
		// ChannelUnavailable is a structured error result, never a
		// dropped connection.
		if errors.Is(err, bridge.ErrChannelUnavailable) {
			return errorResponse(req.ID, "Host disconnected")
		}
		return errorResponse(req.ID, err.Error())
	}
	if local != nil {
		return makeResponse(req.ID, map[string]interface{}{
			"status":     "done",
			"request_id": requestID,
			"result":     local,
		})
	}
	return makeResponse(req.ID, map[string]interface{}{
		"status":     "sent",
		"request_id": requestID,
	})
}

func (s *Server) handleNavigation(req *ipc.Request) *ipc.Response {
	var nav ipc.NavigationEvent
	if err := json.Unmarshal(req.Data, &nav); err != nil {
		return errorResponse(req.ID, "invalid navigation event")
	}
	blocked, err := s.daemon.Interceptor().OnNavigation(nav)
	if err != nil {
		return errorResponse(req.ID, err.Error())
	}
	return makeResponse(req.ID, map[string]bool{"blocked": blocked})
}

func (s *Server) handleDownload(req *ipc.Request) *ipc.Response {
	var dl ipc.DownloadEvent
	if err := json.Unmarshal(req.Data, &dl); err != nil {
		return errorResponse(req.ID, "invalid download event")
	}
	paused, err := s.daemon.Interceptor().OnDownload(dl)
	if err != nil {
		return errorResponse(req.ID, err.Error())
	}
	return makeResponse(req.ID, map[string]bool{"paused": paused})
}

func (s *Server) handleDecision(req *ipc.Request) *ipc.Response {
	var dec ipc.DecisionRequest
	if err := json.Unmarshal(req.Data, &dec); err != nil {
		return errorResponse(req.ID, "invalid decision request")
	}
	if err := s.daemon.Surface().Decide(dec.Action); err != nil {
		return errorResponse(req.ID, err.Error())
	}
	return makeResponse(req.ID, "recorded")
}

func (s *Server) handleExport(req *ipc.Request) *ipc.Response {
	var exp ipc.ExportRequest
	if err := json.Unmarshal(req.Data, &exp); err != nil {
		return errorResponse(req.ID, "invalid export request")
	}

	history, err := s.daemon.Store().History()
	if err != nil {
		return errorResponse(req.ID, err.Error())
	}

	evt := events.StartExport(exp.Format).Entries(len(history))
	defer func() { s.daemon.Events().Emit(evt.End()) }()

	switch exp.Format {
	case "csv":
		return makeResponse(req.ID, ipc.ExportResponse{
			Filename: report.CSVFilename(),
			Content:  report.CSV(history),
		})
	case "json":
		stats, err := s.daemon.Store().Stats()
		if err != nil {
			evt.SetError(err)
			return errorResponse(req.ID, err.Error())
		}
		content, err := report.JSON(stats, history)
		if err != nil {
			evt.SetError(err)
			return errorResponse(req.ID, err.Error())
		}
		return makeResponse(req.ID, ipc.ExportResponse{
			Filename: report.JSONFilename(),
			Content:  content,
		})
	default:
		evt.SetError(fmt.Errorf("unknown format %s", exp.Format))
		return errorResponse(req.ID, "unknown export format: "+exp.Format)
	}
}
