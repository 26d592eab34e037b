package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/codefionn/liveshare/internal/logger"
	"github.com/codefionn/liveshare/internal/protocol"
)

var (
	// ErrNotConnected is returned by send operations outside the Joined state.
	// Sends fail fast; nothing is queued for later.
	ErrNotConnected = errors.New("not connected to a session")
	// ErrAlreadyJoined is returned by Join while a join is active or pending.
	ErrAlreadyJoined = errors.New("already joined a session")
	// ErrAuthFailed is returned by Join when the host rejects the password.
	ErrAuthFailed = errors.New("authentication failed")
)

const (
	defaultJoinTimeout = 10 * time.Second
	writeWait          = 10 * time.Second
)

// clientState is the connection lifecycle phase.
type clientState int

const (
	stateIdle clientState = iota
	stateConnecting
	stateAwaitingInit
	stateJoined
	stateDisconnected
)

// Options configures a client-side session.
type Options struct {
	Host     string
	Port     int
	Password string
	Username string

	// Timeout bounds the join handshake (dial + auth + init). Zero means
	// defaultJoinTimeout. Once joined there is no idle timeout.
	Timeout time.Duration

	// OnEvent receives every post-join message verbatim (edit, cursor, chat,
	// peer-joined, peer-left) for UI update. Called from the read loop; may
	// be nil.
	OnEvent func(protocol.Message)

	// OnDisconnect fires once when the transport closes after a successful
	// join. There is no automatic reconnect.
	OnDisconnect func(error)
}

// View is the client-local mirror of session state. It is overwritten by
// inbound messages and never authoritative.
type View struct {
	PeerID string
	Color  string
	Doc    protocol.Document
	Peers  []protocol.PeerInfo
}

// Coordinator joins a hosted session, mirrors its state locally and forwards
// local edits, cursor moves and chat to the host.
type Coordinator struct {
	opts Options

	mu    sync.Mutex
	state clientState
	ws    *websocket.Conn
	view  View

	writeMu sync.Mutex
}

// New creates a Coordinator that has not joined anything yet.
func New(opts Options) *Coordinator {
	return &Coordinator{opts: opts}
}

// Join connects to the host, authenticates and waits for the init snapshot.
// It returns the snapshot on success; on auth rejection the error wraps
// ErrAuthFailed. Joining while already joined fails without side effects.
func (c *Coordinator) Join(ctx context.Context) (View, error) {
	c.mu.Lock()
	switch c.state {
	case stateConnecting, stateAwaitingInit, stateJoined:
		c.mu.Unlock()
		return View{}, ErrAlreadyJoined
	}
	c.state = stateConnecting
	c.mu.Unlock()

	timeout := c.opts.Timeout
	if timeout <= 0 {
		timeout = defaultJoinTimeout
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := fmt.Sprintf("ws://%s:%d/ws", c.opts.Host, c.opts.Port)
	ws, _, err := websocket.DefaultDialer.DialContext(dialCtx, url, nil)
	if err != nil {
		c.setState(stateDisconnected)
		return View{}, fmt.Errorf("connect error: %w", err)
	}

	view, err := c.handshake(ws, timeout)
	if err != nil {
		_ = ws.Close()
		c.setState(stateDisconnected)
		return View{}, err
	}

	c.mu.Lock()
	c.ws = ws
	c.view = view
	c.state = stateJoined
	c.mu.Unlock()

	logger.Info("Joined session at %s as %s", url, view.PeerID)
	go c.readPump(ws)

	return cloneView(view), nil
}

// handshake sends auth and waits for init or auth-failed. Other frames that
// arrive early are ignored, matching the tolerant wire contract.
func (c *Coordinator) handshake(ws *websocket.Conn, timeout time.Duration) (View, error) {
	c.setState(stateAwaitingInit)

	auth := &protocol.Auth{Password: c.opts.Password, Username: c.opts.Username}
	data, err := protocol.Encode(auth)
	if err != nil {
		return View{}, fmt.Errorf("failed to encode auth: %w", err)
	}

	deadline := time.Now().Add(timeout)
	_ = ws.SetWriteDeadline(deadline)
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return View{}, fmt.Errorf("failed to send auth: %w", err)
	}

	_ = ws.SetReadDeadline(deadline)
	for {
		_, frame, err := ws.ReadMessage()
		if err != nil {
			return View{}, fmt.Errorf("join failed: %w", err)
		}

		msg, err := protocol.Decode(frame)
		if err != nil {
			logger.Debug("Dropping frame during join: %v", err)
			continue
		}

		switch m := msg.(type) {
		case *protocol.AuthFailed:
			return View{}, fmt.Errorf("%w: %s", ErrAuthFailed, m.Error)
		case *protocol.Init:
			// Joined: from here on the connection lives until it closes.
			_ = ws.SetReadDeadline(time.Time{})
			return View{
				PeerID: m.PeerID,
				Color:  m.Color,
				Doc:    m.Doc,
				Peers:  append([]protocol.PeerInfo(nil), m.Peers...),
			}, nil
		default:
			logger.Debug("Ignoring %s frame before init", msg.Tag())
		}
	}
}

// readPump mirrors inbound messages into the local view and hands each one
// to the caller verbatim. It exits when the transport closes.
func (c *Coordinator) readPump(ws *websocket.Conn) {
	for {
		_, frame, err := ws.ReadMessage()
		if err != nil {
			c.disconnected(err)
			return
		}

		msg, err := protocol.Decode(frame)
		if err != nil {
			logger.Debug("Dropping frame: %v", err)
			continue
		}

		c.apply(msg)
		if c.opts.OnEvent != nil {
			c.opts.OnEvent(msg)
		}
	}
}

// apply overwrites the local mirror with the literal message content. No
// merging happens here; the host is the single source of truth.
func (c *Coordinator) apply(msg protocol.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch m := msg.(type) {
	case *protocol.Edit:
		c.view.Doc.Content = m.Content
		c.view.Doc.Version = m.Version
	case *protocol.PeerJoined:
		c.view.Peers = append(c.view.Peers, protocol.PeerInfo{
			ID:       m.PeerID,
			Username: m.Username,
			Color:    m.Color,
			Cursor:   protocol.Cursor{Line: 1, Column: 1},
		})
	case *protocol.PeerLeft:
		peers := c.view.Peers[:0]
		for _, p := range c.view.Peers {
			if p.ID != m.PeerID {
				peers = append(peers, p)
			}
		}
		c.view.Peers = peers
	case *protocol.CursorMove:
		for i := range c.view.Peers {
			if c.view.Peers[i].ID == m.PeerID {
				c.view.Peers[i].Cursor = m.Cursor
				break
			}
		}
	}
}

// SendEdit forwards a full-content replacement of the document.
func (c *Coordinator) SendEdit(content string, selection *protocol.Selection) error {
	return c.send(&protocol.Edit{Content: content, Selection: selection})
}

// SendCursor forwards the local cursor position.
func (c *Coordinator) SendCursor(cursor protocol.Cursor) error {
	return c.send(&protocol.CursorMove{Cursor: cursor})
}

// SendChat forwards a chat line. The host echoes it back with a timestamp.
func (c *Coordinator) SendChat(message string) error {
	return c.send(&protocol.Chat{Message: message})
}

func (c *Coordinator) send(msg protocol.Message) error {
	c.mu.Lock()
	ws := c.ws
	joined := c.state == stateJoined
	c.mu.Unlock()

	if !joined || ws == nil {
		return ErrNotConnected
	}

	data, err := protocol.Encode(msg)
	if err != nil {
		return fmt.Errorf("failed to encode %s frame: %w", msg.Tag(), err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send %s frame: %w", msg.Tag(), err)
	}
	return nil
}

// View returns a copy of the local mirror.
func (c *Coordinator) View() (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateJoined {
		return View{}, ErrNotConnected
	}
	return cloneView(c.view), nil
}

// Joined reports whether the session is live.
func (c *Coordinator) Joined() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateJoined
}

// Leave closes the connection deliberately. OnDisconnect does not fire for a
// local leave; rejoining requires a fresh Join.
func (c *Coordinator) Leave() error {
	c.mu.Lock()
	if c.state != stateJoined {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.state = stateDisconnected
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()

	if ws != nil {
		_ = ws.Close()
	}
	return nil
}

// disconnected handles the transport closing underneath a joined session.
func (c *Coordinator) disconnected(err error) {
	c.mu.Lock()
	if c.state != stateJoined {
		c.mu.Unlock()
		return
	}
	c.state = stateDisconnected
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()

	if ws != nil {
		_ = ws.Close()
	}
	logger.Info("Disconnected from session: %v", err)
	if c.opts.OnDisconnect != nil {
		c.opts.OnDisconnect(err)
	}
}

func (c *Coordinator) setState(s clientState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func cloneView(v View) View {
	v.Peers = append([]protocol.PeerInfo(nil), v.Peers...)
	return v
}
