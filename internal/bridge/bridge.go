// oreon/sentinel · watchthelight <wtl>

// Package bridge owns the single duplex channel to the external
// analysis engine (the native host). Requests are fire-and-forget;
// verdicts arrive asynchronously through the message listener. A
// closed channel is reopened on the next caller-initiated Submit,
// never automatically.
package bridge

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/oreonproject/sentinel/pkg/events"
	"github.com/oreonproject/sentinel/pkg/threat"
)

// ErrChannelUnavailable reports that no channel to the engine could be
// established. It is surfaced to views as a structured error response,
// never raised across the messaging boundary.
var ErrChannelUnavailable = errors.New("engine channel unavailable")

// maxFrame bounds inbound message size (native messaging caps host
// messages at 1 MB).
const maxFrame = 1 << 20

// ScanPayload is the outbound request shape.
type ScanPayload struct {
	Action    string `json:"action"`
	Target    string `json:"target"`
	RequestID string `json:"request_id,omitempty"`
}

// defaultWriteTimeout bounds a single frame write. An engine that
// stops reading fails the Submit instead of stalling the caller.
const defaultWriteTimeout = 5 * time.Second

// Bridge maintains the engine channel. Safe for concurrent use.
type Bridge struct {
	host         string
	socketPath   string
	emitter      *events.Emitter
	writeTimeout time.Duration

	mu      sync.Mutex
	conn    net.Conn
	pending []string // request IDs awaiting a verdict, oldest first

	// onResult receives every inbound message carrying a threat score.
	onResult func(threat.Verdict)
	// onMessage rebroadcasts every inbound payload to in-process
	// listeners, best-effort.
	onMessage func(json.RawMessage)
}

// New creates a bridge for the named host reachable at socketPath.
// No connection is made until Connect.
func New(host, socketPath string, emitter *events.Emitter) *Bridge {
	return &Bridge{
		host:         host,
		socketPath:   socketPath,
		emitter:      emitter,
		writeTimeout: defaultWriteTimeout,
	}
}

// OnResult registers the threat-result handler. Must be called before
// Connect.
func (b *Bridge) OnResult(fn func(threat.Verdict)) {
	b.onResult = fn
}

// OnMessage registers the rebroadcast handler. Must be called before
// Connect.
func (b *Bridge) OnMessage(fn func(json.RawMessage)) {
	b.onMessage = fn
}

// Connected reports channel liveness.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

// Connect establishes the channel if none exists. Idempotent with
// respect to an already-open channel.
func (b *Bridge) Connect() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		return nil
	}

	evt := events.StartBridge(b.host).Reason("connect")
	conn, err := net.DialTimeout("unix", b.socketPath, 5*time.Second)
	if err != nil {
		evt.SetError(err)
		b.emitter.Emit(evt.End())
		return fmt.Errorf("%w: %v", ErrChannelUnavailable, err)
	}
	b.conn = conn
	b.emitter.Emit(evt.End())

	go b.readLoop(conn)
	return nil
}

// Submit serializes a scan request onto the channel. Requires an open
// channel; callers must Connect first. Does not block for a response.
func (b *Bridge) Submit(payload ScanPayload) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return ErrChannelUnavailable
	}

	data, err := json.Marshal(&payload)
	if err != nil {
		return fmt.Errorf("encode scan request: %w", err)
	}
	b.conn.SetWriteDeadline(time.Now().Add(b.writeTimeout))
	if err := writeFrame(b.conn, data); err != nil {
		// A write failure means the channel is gone; clear the handle
		// so the next Submit triggers reconnection.
		b.dropLocked("write error: " + err.Error())
		return fmt.Errorf("%w: %v", ErrChannelUnavailable, err)
	}
	if payload.RequestID != "" {
		b.pending = append(b.pending, payload.RequestID)
	}
	return nil
}

// readLoop is the message listener: it decodes inbound frames and
// routes them until the channel closes.
func (b *Bridge) readLoop(conn net.Conn) {
	for {
		data, err := readFrame(conn)
		if err != nil {
			reason := "closed"
			if err != io.EOF {
				reason = err.Error()
			}
			b.disconnected(conn, reason)
			return
		}
		b.dispatch(data)
	}
}

// dispatch routes one inbound payload: threat scores go to the result
// handler, everything is rebroadcast to listeners as-is.
func (b *Bridge) dispatch(data json.RawMessage) {
	var verdict threat.Verdict
	if err := json.Unmarshal(data, &verdict); err != nil {
		slog.Warn("malformed engine payload", "error", err)
		// Views still learn that the engine produced garbage.
		if b.onMessage != nil {
			msg, _ := json.Marshal(threat.Verdict{
				Status:          threat.StatusError,
				Details:         "malformed engine payload",
				IsolationMethod: threat.IsolationNone,
			})
			b.onMessage(msg)
		}
		return
	}

	if verdict.ThreatScore != nil {
		b.correlate(&verdict)
		if b.onResult != nil {
			b.onResult(verdict)
		}
	}

	if b.onMessage != nil {
		b.onMessage(data)
	}
}

// correlate matches a verdict to its request. An echoed request ID is
// matched exactly; a verdict without one is attributed to the oldest
// in-flight request, which can misattribute slow out-of-order replies.
func (b *Bridge) correlate(v *threat.Verdict) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if v.RequestID != "" {
		for i, id := range b.pending {
			if id == v.RequestID {
				b.pending = append(b.pending[:i], b.pending[i+1:]...)
				return
			}
		}
		return
	}
	if len(b.pending) > 0 {
		v.RequestID = b.pending[0]
		b.pending = b.pending[1:]
	}
}

// disconnected handles channel closure: log it, clear the handle, no
// user-facing alert and no automatic retry.
func (b *Bridge) disconnected(conn net.Conn, reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	// A reconnect may already have replaced the handle.
	if b.conn != conn {
		return
	}
	b.dropLocked(reason)
}

func (b *Bridge) dropLocked(reason string) {
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
	b.pending = nil
	slog.Info("engine channel closed", "host", b.host, "reason", reason)
}

// Close tears down the channel, if open.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		err := b.conn.Close()
		b.conn = nil
		b.pending = nil
		return err
	}
	return nil
}

// Native messaging framing: a uint32 little-endian length prefix
// followed by that many bytes of JSON.

func writeFrame(w io.Writer, data []byte) error {
	var length [4]byte
	binary.LittleEndian.PutUint32(length[:], uint32(len(data)))
	if _, err := w.Write(length[:]); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var length [4]byte
	if _, err := io.ReadFull(r, length[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(length[:])
	if n == 0 || n > maxFrame {
		return nil, fmt.Errorf("invalid frame length %d", n)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}
