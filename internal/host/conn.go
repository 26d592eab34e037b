package host

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/codefionn/liveshare/internal/logger"
	"github.com/codefionn/liveshare/internal/protocol"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Maximum frame size allowed from a peer. Edits carry the whole
	// document, so this is generous.
	maxMessageSize = 4 << 20

	// Outbound frames buffered per peer before drops start.
	sendBufferSize = 256
)

// connState is the lifecycle phase of one peer connection.
type connState int

const (
	stateConnecting connState = iota
	stateAuthenticating
	stateActive
	stateClosed
)

// peerConn is one inbound connection. Until authentication succeeds it is
// not a peer and owns no registry entry. All fields below ws are guarded by
// the coordinator mutex.
type peerConn struct {
	coord     *Coordinator
	ws        *websocket.Conn
	send      chan []byte
	closeOnce sync.Once

	state    connState
	peerID   string
	username string
	color    string
	cursor   protocol.Cursor
}

func newPeerConn(c *Coordinator, ws *websocket.Conn) *peerConn {
	return &peerConn{
		coord: c,
		ws:    ws,
		send:  make(chan []byte, sendBufferSize),
		state: stateConnecting,
	}
}

// readPump reads frames off the connection and feeds them to the state
// machine, in arrival order. Unparseable frames are dropped, never fatal.
// There is no read deadline: a connection lives until its transport closes.
func (pc *peerConn) readPump() {
	defer pc.close()

	pc.ws.SetReadLimit(maxMessageSize)

	pc.coord.mu.Lock()
	if pc.state == stateConnecting {
		pc.state = stateAuthenticating
	}
	pc.coord.mu.Unlock()

	for {
		_, data, err := pc.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Debug("Read error on peer connection: %v", err)
			}
			return
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			logger.Debug("Dropping frame: %v", err)
			continue
		}

		pc.coord.handleMessage(pc, msg)
	}
}

// writePump drains the send channel onto the connection. It exits when the
// channel is closed, after flushing whatever is still buffered.
func (pc *peerConn) writePump() {
	defer pc.ws.Close()

	for data := range pc.send {
		_ = pc.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := pc.ws.WriteMessage(websocket.TextMessage, data); err != nil {
			logger.Debug("Write to peer %s failed: %v", pc.peerID, err)
			return
		}
	}

	_ = pc.ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = pc.ws.WriteMessage(websocket.CloseMessage, []byte{})
}

// trySendLocked encodes and queues one frame for this peer. Caller holds the
// coordinator mutex.
func (pc *peerConn) trySendLocked(msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		logger.Error("Failed to encode %s frame: %v", msg.Tag(), err)
		return
	}
	pc.trySendRaw(data, msg.Tag())
}

// trySendRaw queues an encoded frame without blocking. A full buffer means
// the peer is stalled; the frame is dropped rather than holding up the
// sender.
func (pc *peerConn) trySendRaw(data []byte, tag string) {
	select {
	case pc.send <- data:
	default:
		logger.Warn("Send buffer full for peer %s, dropping %s frame", pc.peerID, tag)
	}
}

// close tears the connection down. Idempotent: the transport closing, the
// read pump exiting and Stop may all race here.
func (pc *peerConn) close() {
	pc.closeOnce.Do(func() {
		pc.coord.dropConn(pc)
		close(pc.send)
		_ = pc.ws.Close()
	})
}
