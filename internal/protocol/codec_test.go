package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeAddsTypeTag(t *testing.T) {
	data, err := Encode(&Chat{Message: "hi"})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "chat", fields["type"])
	assert.Equal(t, "hi", fields["message"])
}

func TestDecodeDispatchesByTag(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"auth","password":"secret","username":"ada"}`))
	require.NoError(t, err)

	auth, ok := msg.(*Auth)
	require.True(t, ok, "expected *Auth, got %T", msg)
	assert.Equal(t, "secret", auth.Password)
	assert.Equal(t, "ada", auth.Username)
}

func TestDecodeInitSnapshot(t *testing.T) {
	frame := []byte(`{
		"type": "init",
		"peerId": "p1",
		"color": "#61afef",
		"doc": {"content": "hello", "version": 3, "filePath": "notes.txt"},
		"peers": [{"id": "p2", "username": "bob", "color": "#98c379", "cursor": {"line": 4, "column": 7}}]
	}`)

	msg, err := Decode(frame)
	require.NoError(t, err)

	init, ok := msg.(*Init)
	require.True(t, ok)
	assert.Equal(t, "p1", init.PeerID)
	assert.Equal(t, 3, init.Doc.Version)
	assert.Equal(t, "hello", init.Doc.Content)
	require.Len(t, init.Peers, 1)
	assert.Equal(t, Cursor{Line: 4, Column: 7}, init.Peers[0].Cursor)
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"telemetry","payload":123}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestDecodeMalformedFrame(t *testing.T) {
	_, err := Decode([]byte(`{"type": "edit", "content": 42`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownType)
}

func TestDecodeWrongFieldShape(t *testing.T) {
	_, err := Decode([]byte(`{"type":"cursor","cursor":"nope"}`))
	require.Error(t, err)
}

func TestEditRoundTripWithSelection(t *testing.T) {
	in := &Edit{
		PeerID:  "p1",
		Content: "hello world",
		Version: 9,
		Selection: &Selection{
			Start: Cursor{Line: 1, Column: 1},
			End:   Cursor{Line: 1, Column: 6},
		},
	}

	data, err := Encode(in)
	require.NoError(t, err)

	msg, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, in, msg)
}

func TestEditOmitsEmptySelection(t *testing.T) {
	data, err := Encode(&Edit{Content: "x"})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	_, hasSelection := fields["selection"]
	assert.False(t, hasSelection)
	_, hasPeer := fields["peerId"]
	assert.False(t, hasPeer, "client-sent edits carry no peer id")
}
