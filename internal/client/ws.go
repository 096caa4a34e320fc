package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

const (
	dialBackoffMin = 1 * time.Second
	dialBackoffMax = 30 * time.Second
	controlTimeout = 10 * time.Second
	readIdle       = 60 * time.Second
	keepalive      = 30 * time.Second
)

var errNotConnected = errors.New("status feed not connected")

// WSClient subscribes to the backend's status push feed. It shares the
// HTTP client's cookie jar so the feed reports the same session.
type WSClient struct {
	url    string
	token  string
	dialer *websocket.Dialer

	mu       sync.Mutex
	conn     *websocket.Conn
	stopPing context.CancelFunc
	seq      uint64
}

// NewWSClient creates a feed client for the given ws:// URL.
func NewWSClient(url, token string, jar http.CookieJar) *WSClient {
	d := *websocket.DefaultDialer
	d.Jar = jar
	return &WSClient{url: url, token: token, dialer: &d}
}

// DeriveWSURL maps a backend base URL to its feed endpoint:
// http://host:port becomes ws://host:port/ws.
func DeriveWSURL(httpBase string) string {
	u, err := url.Parse(httpBase)
	if err != nil || u.Host == "" {
		return "ws://127.0.0.1:8080/ws"
	}
	scheme := "ws"
	if strings.HasPrefix(u.Scheme, "https") {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s/ws", scheme, u.Host)
}

// WSConnectedMsg is sent when the feed connects.
type WSConnectedMsg struct{}

// WSDisconnectedMsg is sent when the feed drops.
type WSDisconnectedMsg struct{ Err error }

// WSStatusMsg delivers a pushed session status.
type WSStatusMsg struct{ Status SessionStatus }

// WSErrorMsg wraps an error frame sent by the server.
type WSErrorMsg struct{ Raw json.RawMessage }

// Listen returns a command that dials the feed, backing off between failed
// attempts, until it connects or ctx is done.
func (c *WSClient) Listen(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		delay := dialBackoffMin
		for ctx.Err() == nil {
			conn, err := c.dial(ctx)
			if err == nil {
				c.attach(ctx, conn)
				return WSConnectedMsg{}
			}
			slog.Debug("status feed dial failed", "url", c.url, "error", err, "retry_in", delay)
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil
			case <-t.C:
			}
			delay = min(2*delay, dialBackoffMax)
		}
		return nil
	}
}

func (c *WSClient) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, _, err := c.dialer.DialContext(ctx, c.url, header)
	return conn, err
}

// attach makes conn the current connection and starts its keepalive.
func (c *WSClient) attach(ctx context.Context, conn *websocket.Conn) {
	pingCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	if c.stopPing != nil {
		c.stopPing()
	}
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn, c.stopPing, c.seq = conn, cancel, 0
	c.mu.Unlock()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readIdle))
	})
	go keepAlive(pingCtx, conn)
}

// detach forgets conn if it is still current.
func (c *WSClient) detach(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		if c.stopPing != nil {
			c.stopPing()
			c.stopPing = nil
		}
	}
	c.mu.Unlock()
	conn.Close()
}

// ReadLoop returns a command that blocks until the next status or error
// frame. Re-issue it after each message.
func (c *WSClient) ReadLoop(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return WSDisconnectedMsg{Err: errNotConnected}
		}

		for {
			conn.SetReadDeadline(time.Now().Add(readIdle))
			_, data, err := conn.ReadMessage()
			if err != nil {
				c.detach(conn)
				if ctx.Err() != nil {
					return nil
				}
				return WSDisconnectedMsg{Err: err}
			}
			if msg := c.decode(data); msg != nil {
				return msg
			}
		}
	}
}

// decode turns a frame into a Bubble Tea message. Unknown, malformed and
// invalid frames yield nil.
func (c *WSClient) decode(data []byte) tea.Msg {
	var frame WSMessage
	if err := json.Unmarshal(data, &frame); err != nil {
		slog.Debug("status feed: bad frame", "error", err)
		return nil
	}
	c.mu.Lock()
	c.seq = frame.Seq
	c.mu.Unlock()

	switch frame.Type {
	case MsgStatus:
		var st SessionStatus
		if err := json.Unmarshal(frame.Payload, &st); err != nil {
			return nil
		}
		if err := st.validate(); err != nil {
			slog.Debug("status feed: invalid status", "error", err)
			return nil
		}
		return WSStatusMsg{Status: st}
	case MsgError:
		return WSErrorMsg{Raw: frame.Payload}
	}
	return nil
}

// Close drops the current connection, if any. A pending ReadLoop returns
// WSDisconnectedMsg.
func (c *WSClient) Close() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		c.detach(conn)
	}
}

// Seq returns the sequence number of the last frame.
func (c *WSClient) Seq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// keepAlive pings until ctx ends or a ping fails. WriteControl is safe to
// call concurrently with reads.
func keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(keepalive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(controlTimeout)); err != nil {
				return
			}
		}
	}
}
