// oreon/sentinel · watchthelight <wtl>

package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"
)

// Client talks to the daemon over its unix socket. The connection is
// established lazily on first use and re-established after a dropped
// connection on the next call.
type Client struct {
	socketPath string

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
	nextID int

	// onEvent receives push events interleaved with replies once the
	// client has subscribed. Best-effort; nil until Subscribe.
	onEvent func(PushEvent)
}

// NewClient creates a client for the daemon socket. No connection is
// made until the first call.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

// Close tears down the connection, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		c.reader = nil
		return err
	}
	return nil
}

func (c *Client) ensureConn() error {
	if c.conn != nil {
		return nil
	}
	conn, err := net.DialTimeout("unix", c.socketPath, 5*time.Second)
	if err != nil {
		return fmt.Errorf("connect to daemon: %w", err)
	}
	c.conn = conn
	c.reader = bufio.NewReader(conn)
	return nil
}

// Call sends one request and waits for its reply. Push events arriving
// while waiting are dispatched to the event handler.
func (c *Client) Call(command string, payload interface{}) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConn(); err != nil {
		return nil, err
	}

	c.nextID++
	req := Request{
		Version: ProtocolVersion,
		ID:      strconv.Itoa(c.nextID),
		Command: command,
	}
	if payload != nil {
		if err := req.SetData(payload); err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}

	data, err := json.Marshal(&req)
	if err != nil {
		return nil, err
	}
	data = append(data, '\n')
	if _, err := c.conn.Write(data); err != nil {
		c.drop()
		return nil, fmt.Errorf("send request: %w", err)
	}

	for {
		line, err := c.reader.ReadBytes('\n')
		if err != nil {
			c.drop()
			return nil, fmt.Errorf("read response: %w", err)
		}
		var resp Response
		if err := json.Unmarshal(line, &resp); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		if resp.ID == EventID {
			c.dispatchEvent(&resp)
			continue
		}
		return &resp, nil
	}
}

// Subscribe registers for push events and starts a reader goroutine.
// After Subscribe, Call must not be used on this client; dedicated
// subscriber connections keep reply matching trivial.
func (c *Client) Subscribe(onEvent func(PushEvent)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConn(); err != nil {
		return err
	}
	c.onEvent = onEvent

	req := Request{Version: ProtocolVersion, ID: "sub", Command: CmdSubscribe}
	data, _ := json.Marshal(&req)
	data = append(data, '\n')
	if _, err := c.conn.Write(data); err != nil {
		c.drop()
		return fmt.Errorf("subscribe: %w", err)
	}

	// Consume the subscribe ack, then stream events.
	if _, err := c.reader.ReadBytes('\n'); err != nil {
		c.drop()
		return fmt.Errorf("subscribe ack: %w", err)
	}

	reader := c.reader
	go func() {
		for {
			line, err := reader.ReadBytes('\n')
			if err != nil {
				return
			}
			var resp Response
			if err := json.Unmarshal(line, &resp); err != nil {
				continue
			}
			if resp.ID == EventID {
				c.dispatchEvent(&resp)
			}
		}
	}()
	return nil
}

func (c *Client) dispatchEvent(resp *Response) {
	if c.onEvent == nil {
		return
	}
	var evt PushEvent
	if err := json.Unmarshal(resp.Data, &evt); err != nil {
		return
	}
	c.onEvent(evt)
}

// drop discards a broken connection so the next call reconnects.
func (c *Client) drop() {
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = nil
	c.reader = nil
}
