package protocol

// Message type tags carried in the "type" field of every frame.
const (
	TypeAuth       = "auth"
	TypeAuthFailed = "auth-failed"
	TypeInit       = "init"
	TypePeerJoined = "peer-joined"
	TypePeerLeft   = "peer-left"
	TypeEdit       = "edit"
	TypeCursor     = "cursor"
	TypeChat       = "chat"
)

// Message is implemented by every frame that can travel over a session
// connection. The tag is the value of the "type" discriminator.
type Message interface {
	Tag() string
}

// Cursor is a 1-based position inside the shared document.
type Cursor struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Selection is an optional range attached to an edit.
type Selection struct {
	Start Cursor `json:"start"`
	End   Cursor `json:"end"`
}

// Document is the authoritative document snapshot as it appears on the wire.
// Content is always a full replacement, never a patch.
type Document struct {
	Content  string `json:"content"`
	Version  int    `json:"version"`
	FilePath string `json:"filePath"`
}

// PeerInfo describes a connected participant inside an init snapshot.
type PeerInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Color    string `json:"color"`
	Cursor   Cursor `json:"cursor"`
}

// Auth is the first frame a client sends after connecting.
type Auth struct {
	Password string `json:"password"`
	Username string `json:"username"`
}

// AuthFailed is sent to a client whose password did not match; the host
// closes the connection right after.
type AuthFailed struct {
	Error string `json:"error"`
}

// Init is sent exactly once to a freshly authenticated peer. Peers excludes
// the recipient itself.
type Init struct {
	PeerID string     `json:"peerId"`
	Color  string     `json:"color"`
	Doc    Document   `json:"doc"`
	Peers  []PeerInfo `json:"peers"`
}

// PeerJoined announces a new peer to everyone already in the session.
type PeerJoined struct {
	PeerID   string `json:"peerId"`
	Username string `json:"username"`
	Color    string `json:"color"`
}

// PeerLeft announces that a peer's connection closed.
type PeerLeft struct {
	PeerID   string `json:"peerId"`
	Username string `json:"username"`
}

// Edit replaces the whole document content. PeerID and Version are filled in
// by the host on rebroadcast; clients leave them zero when sending.
type Edit struct {
	PeerID    string     `json:"peerId,omitempty"`
	Content   string     `json:"content"`
	Version   int        `json:"version,omitempty"`
	Selection *Selection `json:"selection,omitempty"`
}

// CursorMove reports a peer's cursor position. PeerID is filled in by the
// host on rebroadcast.
type CursorMove struct {
	PeerID string `json:"peerId,omitempty"`
	Cursor Cursor `json:"cursor"`
}

// Chat carries a chat line. Username and Timestamp (unix milliseconds) are
// assigned by the host; the sender receives its own message back.
type Chat struct {
	PeerID    string `json:"peerId,omitempty"`
	Username  string `json:"username,omitempty"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

func (*Auth) Tag() string       { return TypeAuth }
func (*AuthFailed) Tag() string { return TypeAuthFailed }
func (*Init) Tag() string       { return TypeInit }
func (*PeerJoined) Tag() string { return TypePeerJoined }
func (*PeerLeft) Tag() string   { return TypePeerLeft }
func (*Edit) Tag() string       { return TypeEdit }
func (*CursorMove) Tag() string { return TypeCursor }
func (*Chat) Tag() string       { return TypeChat }
