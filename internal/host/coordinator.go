package host

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/codefionn/liveshare/internal/logger"
	"github.com/codefionn/liveshare/internal/netinfo"
	"github.com/codefionn/liveshare/internal/protocol"
	"github.com/codefionn/liveshare/internal/session"
)

var (
	// ErrAlreadyHosting is returned by Start when a session is active.
	ErrAlreadyHosting = errors.New("already hosting a session")
	// ErrNotHosting is returned by operations that require an active session.
	ErrNotHosting = errors.New("not hosting a session")
)

// HostPeerID is the implicit peer id attached to host-local edits.
const HostPeerID = "host"

// defaultUsername replaces an empty username supplied at join time.
const defaultUsername = "anonymous"

// Options configures a hosting session.
type Options struct {
	FilePath string // display label for the shared document
	Content  string // initial document content
	Port     int    // 0 = any free port
	Announce bool   // advertise the session over mDNS

	// OnEvent receives peer-joined, peer-left, edit and chat messages so the
	// hosting user's UI can reflect session activity. Called outside the
	// coordinator lock; may be nil.
	OnEvent func(protocol.Message)
}

// Info describes a started session, ready to be shown to the user.
type Info struct {
	SessionID  string
	Port       int
	Password   string
	LocalIPs   []string
	ShareLinks []string
}

// Coordinator accepts peer connections, owns the authoritative document and
// the peer registry, and fans out every state change. There is at most one
// active session per Coordinator.
type Coordinator struct {
	mu      sync.Mutex
	hosting bool

	sessionID string
	password  string
	port      int

	doc    protocol.Document
	peers  map[string]*peerConn // peerID -> active connection
	conns  map[*peerConn]struct{}
	colors *session.ColorWheel

	httpSrv   *http.Server
	announcer *netinfo.Announcer
	onEvent   func(protocol.Message)
}

// New creates a Coordinator with no active session.
func New() *Coordinator {
	return &Coordinator{}
}

// Start binds the listen port and begins accepting peers. It fails without
// side effects when a session is already active or the port cannot be bound.
func (c *Coordinator) Start(opts Options) (*Info, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hosting {
		return nil, ErrAlreadyHosting
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", opts.Port))
	if err != nil {
		return nil, fmt.Errorf("failed to bind port %d: %w", opts.Port, err)
	}
	port := listener.Addr().(*net.TCPAddr).Port

	c.sessionID = session.GenerateID()
	c.password = session.GeneratePassword()
	c.port = port
	c.doc = protocol.Document{Content: opts.Content, Version: 0, FilePath: opts.FilePath}
	c.peers = make(map[string]*peerConn)
	c.conns = make(map[*peerConn]struct{})
	c.colors = &session.ColorWheel{}
	c.onEvent = opts.OnEvent

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", c.handleWebSocket)
	c.httpSrv = &http.Server{Handler: mux}

	go func(srv *http.Server) {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("Session listener error: %v", err)
		}
	}(c.httpSrv)

	ips, err := netinfo.LocalIPv4s()
	if err != nil {
		logger.Warn("Failed to enumerate local addresses: %v", err)
	}
	links := make([]string, 0, len(ips))
	for _, ip := range ips {
		links = append(links, netinfo.ShareLink(ip, port))
	}

	if opts.Announce {
		announcer, err := netinfo.Announce(c.sessionID, port)
		if err != nil {
			logger.Warn("mDNS announcement failed: %v", err)
		} else {
			c.announcer = announcer
		}
	}

	c.hosting = true
	logger.Info("Hosting session %s on port %d (%q)", c.sessionID, port, opts.FilePath)

	return &Info{
		SessionID:  c.sessionID,
		Port:       port,
		Password:   c.password,
		LocalIPs:   ips,
		ShareLinks: links,
	}, nil
}

// Stop closes every peer connection, releases the listen port and discards
// the document. Per-connection close failures are logged, not propagated.
// Calling Stop without an active session returns ErrNotHosting.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	if !c.hosting {
		c.mu.Unlock()
		return ErrNotHosting
	}
	c.hosting = false

	conns := make([]*peerConn, 0, len(c.conns))
	for pc := range c.conns {
		conns = append(conns, pc)
	}
	// Clear the registry first so connection teardown does not broadcast
	// peer-left frames into a dying session.
	c.peers = make(map[string]*peerConn)
	c.conns = make(map[*peerConn]struct{})
	c.doc = protocol.Document{}

	srv := c.httpSrv
	announcer := c.announcer
	c.httpSrv = nil
	c.announcer = nil
	sessionID := c.sessionID
	c.mu.Unlock()

	for _, pc := range conns {
		pc.close()
	}

	announcer.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("Listener shutdown error: %v", err)
	}

	logger.Info("Stopped session %s", sessionID)
	return nil
}

// Hosting reports whether a session is active.
func (c *Coordinator) Hosting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hosting
}

// Document returns a snapshot of the authoritative document.
func (c *Coordinator) Document() (protocol.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hosting {
		return protocol.Document{}, ErrNotHosting
	}
	return c.doc, nil
}

// Peers returns a snapshot of the peer registry.
func (c *Coordinator) Peers() ([]protocol.PeerInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hosting {
		return nil, ErrNotHosting
	}
	return c.peerListLocked(""), nil
}

// UpdateDocument applies a host-local edit: the hosting user changed the
// document directly, not through a peer connection. The edit is broadcast to
// every peer with no exclusion.
func (c *Coordinator) UpdateDocument(content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hosting {
		return ErrNotHosting
	}

	c.doc.Version++
	c.doc.Content = content
	c.broadcastLocked(&protocol.Edit{
		PeerID:  HostPeerID,
		Content: content,
		Version: c.doc.Version,
	}, "")
	return nil
}

// handleWebSocket upgrades an inbound connection and starts its pumps.
func (c *Coordinator) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true // the session password is the gate, not the origin
		},
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Failed to upgrade connection: %v", err)
		return
	}

	pc := newPeerConn(c, ws)

	c.mu.Lock()
	if !c.hosting {
		c.mu.Unlock()
		_ = ws.Close()
		return
	}
	c.conns[pc] = struct{}{}
	c.mu.Unlock()

	logger.Debug("Connection accepted from %s", ws.RemoteAddr())
	go pc.writePump()
	go pc.readPump()
}

// handleMessage runs the per-connection state machine for one inbound frame.
// Frames that do not fit the connection's state are ignored, not errors.
func (c *Coordinator) handleMessage(pc *peerConn, msg protocol.Message) {
	c.mu.Lock()
	var notify protocol.Message

	if c.hosting {
		switch pc.state {
		case stateAuthenticating:
			if auth, ok := msg.(*protocol.Auth); ok {
				notify = c.authenticateLocked(pc, auth)
			} else {
				logger.Debug("Ignoring %s frame before auth", msg.Tag())
			}
		case stateActive:
			switch m := msg.(type) {
			case *protocol.Edit:
				notify = c.applyEditLocked(pc, m)
			case *protocol.CursorMove:
				c.applyCursorLocked(pc, m)
			case *protocol.Chat:
				notify = c.applyChatLocked(pc, m)
			default:
				logger.Debug("Ignoring %s frame from active peer %s", msg.Tag(), pc.peerID)
			}
		}
	}

	onEvent := c.onEvent
	c.mu.Unlock()

	if notify != nil && onEvent != nil {
		onEvent(notify)
	}
}

// authenticateLocked checks the shared password and, on success, promotes the
// connection to an active peer: registry entry, init snapshot, peer-joined
// broadcast. On failure the connection is rejected and torn down; no registry
// entry is ever created.
func (c *Coordinator) authenticateLocked(pc *peerConn, auth *protocol.Auth) protocol.Message {
	if auth.Password != c.password {
		logger.Warn("Rejected join from %s: invalid password", pc.ws.RemoteAddr())
		pc.trySendLocked(&protocol.AuthFailed{Error: "invalid password"})
		c.rejectLocked(pc)
		return nil
	}

	username := strings.TrimSpace(auth.Username)
	if username == "" {
		username = defaultUsername
	}

	pc.peerID = uuid.NewString()
	pc.username = username
	pc.color = c.colors.Next()
	pc.cursor = protocol.Cursor{Line: 1, Column: 1}
	pc.state = stateActive
	c.peers[pc.peerID] = pc

	// The init snapshot excludes the joining peer itself.
	pc.trySendLocked(&protocol.Init{
		PeerID: pc.peerID,
		Color:  pc.color,
		Doc:    c.doc,
		Peers:  c.peerListLocked(pc.peerID),
	})

	joined := &protocol.PeerJoined{PeerID: pc.peerID, Username: pc.username, Color: pc.color}
	c.broadcastLocked(joined, pc.peerID)

	logger.Info("Peer %s (%s) joined session %s", pc.username, pc.peerID, c.sessionID)
	return joined
}

func (c *Coordinator) applyEditLocked(pc *peerConn, m *protocol.Edit) protocol.Message {
	c.doc.Version++
	c.doc.Content = m.Content

	out := &protocol.Edit{
		PeerID:    pc.peerID,
		Content:   m.Content,
		Version:   c.doc.Version,
		Selection: m.Selection,
	}
	c.broadcastLocked(out, pc.peerID)
	return out
}

func (c *Coordinator) applyCursorLocked(pc *peerConn, m *protocol.CursorMove) {
	pc.cursor = m.Cursor
	c.broadcastLocked(&protocol.CursorMove{PeerID: pc.peerID, Cursor: m.Cursor}, pc.peerID)
}

func (c *Coordinator) applyChatLocked(pc *peerConn, m *protocol.Chat) protocol.Message {
	out := &protocol.Chat{
		PeerID:    pc.peerID,
		Username:  pc.username,
		Message:   m.Message,
		Timestamp: time.Now().UnixMilli(),
	}
	// Chat goes to everyone, the sender included, so all participants see
	// the same host-assigned timestamp.
	c.broadcastLocked(out, "")
	return out
}

// broadcastLocked encodes msg once and hands it to every active peer except
// the excluded one. A peer whose send buffer is full simply misses the frame;
// one stalled connection never delays the rest.
func (c *Coordinator) broadcastLocked(msg protocol.Message, exclude string) {
	data, err := protocol.Encode(msg)
	if err != nil {
		logger.Error("Failed to encode %s broadcast: %v", msg.Tag(), err)
		return
	}
	for id, pc := range c.peers {
		if id == exclude {
			continue
		}
		pc.trySendRaw(data, msg.Tag())
	}
}

func (c *Coordinator) peerListLocked(exclude string) []protocol.PeerInfo {
	peers := make([]protocol.PeerInfo, 0, len(c.peers))
	for id, pc := range c.peers {
		if id == exclude {
			continue
		}
		peers = append(peers, protocol.PeerInfo{
			ID:       id,
			Username: pc.username,
			Color:    pc.color,
			Cursor:   pc.cursor,
		})
	}
	return peers
}

// rejectLocked tears down a connection that never became a peer. The send
// channel is closed so the write pump flushes the auth-failed frame before
// closing the transport.
func (c *Coordinator) rejectLocked(pc *peerConn) {
	pc.closeOnce.Do(func() {
		pc.state = stateClosed
		delete(c.conns, pc)
		close(pc.send)
	})
}

// dropConn removes a connection and, if it was an active peer, removes its
// registry entry and broadcasts peer-left exactly once.
func (c *Coordinator) dropConn(pc *peerConn) {
	c.mu.Lock()
	wasActive := pc.state == stateActive
	pc.state = stateClosed
	delete(c.conns, pc)

	var left *protocol.PeerLeft
	if wasActive {
		if _, ok := c.peers[pc.peerID]; ok {
			delete(c.peers, pc.peerID)
			left = &protocol.PeerLeft{PeerID: pc.peerID, Username: pc.username}
			c.broadcastLocked(left, "")
			logger.Info("Peer %s (%s) left", pc.username, pc.peerID)
		}
	}
	onEvent := c.onEvent
	c.mu.Unlock()

	if left != nil && onEvent != nil {
		onEvent(left)
	}
}
