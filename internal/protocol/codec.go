package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrUnknownType marks a frame whose "type" tag is not part of the protocol.
// Callers drop such frames instead of failing the connection.
var ErrUnknownType = errors.New("unknown message type")

// Encode marshals a message into a single flat JSON object with the "type"
// discriminator spliced in.
func Encode(m Message) ([]byte, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s message: %w", m.Tag(), err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to re-read %s message: %w", m.Tag(), err)
	}
	fields["type"] = json.RawMessage(strconv.Quote(m.Tag()))

	return json.Marshal(fields)
}

// Decode parses a frame into its typed message. Unknown tags return
// ErrUnknownType; anything unparseable returns a wrapped error. Decode never
// panics on hostile input.
func Decode(data []byte) (Message, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	var m Message
	switch head.Type {
	case TypeAuth:
		m = &Auth{}
	case TypeAuthFailed:
		m = &AuthFailed{}
	case TypeInit:
		m = &Init{}
	case TypePeerJoined:
		m = &PeerJoined{}
	case TypePeerLeft:
		m = &PeerLeft{}
	case TypeEdit:
		m = &Edit{}
	case TypeCursor:
		m = &CursorMove{}
	case TypeChat:
		m = &Chat{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, head.Type)
	}

	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("malformed %s frame: %w", head.Type, err)
	}
	return m, nil
}
