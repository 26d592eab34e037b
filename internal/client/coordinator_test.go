package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/liveshare/internal/host"
	"github.com/codefionn/liveshare/internal/protocol"
)

const waitTimeout = 3 * time.Second

func startSession(t *testing.T, content string) (*host.Coordinator, *host.Info) {
	t.Helper()
	coord := host.New()
	info, err := coord.Start(host.Options{
		FilePath: "notes.txt",
		Content:  content,
		Port:     0,
		Announce: false,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = coord.Stop()
	})
	return coord, info
}

func TestJoinMirrorsSnapshot(t *testing.T) {
	_, info := startSession(t, "hello")

	c := New(Options{
		Host:     "127.0.0.1",
		Port:     info.Port,
		Password: info.Password,
		Username: "ada",
	})
	view, err := c.Join(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, view.PeerID)
	assert.NotEmpty(t, view.Color)
	assert.Equal(t, "hello", view.Doc.Content)
	assert.Equal(t, 0, view.Doc.Version)
	assert.Empty(t, view.Peers)
	assert.True(t, c.Joined())
}

func TestJoinWrongPassword(t *testing.T) {
	_, info := startSession(t, "hello")

	c := New(Options{
		Host:     "127.0.0.1",
		Port:     info.Port,
		Password: "wrong",
		Username: "mallory",
	})
	_, err := c.Join(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.False(t, c.Joined())
}

func TestJoinConnectError(t *testing.T) {
	c := New(Options{
		Host:     "127.0.0.1",
		Port:     1, // nothing listens here
		Password: "whatever",
		Timeout:  time.Second,
	})
	_, err := c.Join(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAuthFailed)
}

func TestSendsFailFastBeforeJoin(t *testing.T) {
	c := New(Options{})

	assert.ErrorIs(t, c.SendEdit("x", nil), ErrNotConnected)
	assert.ErrorIs(t, c.SendCursor(protocol.Cursor{Line: 1, Column: 1}), ErrNotConnected)
	assert.ErrorIs(t, c.SendChat("hi"), ErrNotConnected)
	assert.ErrorIs(t, c.Leave(), ErrNotConnected)

	_, err := c.View()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestDoubleJoinRejected(t *testing.T) {
	_, info := startSession(t, "hello")

	c := New(Options{
		Host:     "127.0.0.1",
		Port:     info.Port,
		Password: info.Password,
		Username: "ada",
	})
	_, err := c.Join(context.Background())
	require.NoError(t, err)

	_, err = c.Join(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyJoined)
}

func TestEventsUpdateLocalMirror(t *testing.T) {
	coord, info := startSession(t, "hello")

	events := make(chan protocol.Message, 16)
	c := New(Options{
		Host:     "127.0.0.1",
		Port:     info.Port,
		Password: info.Password,
		Username: "ada",
		OnEvent: func(msg protocol.Message) {
			events <- msg
		},
	})
	_, err := c.Join(context.Background())
	require.NoError(t, err)

	require.NoError(t, coord.UpdateDocument("hello world"))

	select {
	case msg := <-events:
		edit, ok := msg.(*protocol.Edit)
		require.True(t, ok, "expected edit, got %s", msg.Tag())
		assert.Equal(t, host.HostPeerID, edit.PeerID)
		assert.Equal(t, 1, edit.Version)
	case <-time.After(waitTimeout):
		t.Fatal("no edit event delivered")
	}

	view, err := c.View()
	require.NoError(t, err)
	assert.Equal(t, "hello world", view.Doc.Content)
	assert.Equal(t, 1, view.Doc.Version)
}

func TestPeerListFollowsJoinsAndLeaves(t *testing.T) {
	_, info := startSession(t, "hello")

	events := make(chan protocol.Message, 16)
	c := New(Options{
		Host:     "127.0.0.1",
		Port:     info.Port,
		Password: info.Password,
		Username: "ada",
		OnEvent: func(msg protocol.Message) {
			events <- msg
		},
	})
	_, err := c.Join(context.Background())
	require.NoError(t, err)

	other := New(Options{
		Host:     "127.0.0.1",
		Port:     info.Port,
		Password: info.Password,
		Username: "bob",
	})
	_, err = other.Join(context.Background())
	require.NoError(t, err)

	select {
	case msg := <-events:
		_, ok := msg.(*protocol.PeerJoined)
		require.True(t, ok, "expected peer-joined, got %s", msg.Tag())
	case <-time.After(waitTimeout):
		t.Fatal("no peer-joined event delivered")
	}

	view, err := c.View()
	require.NoError(t, err)
	require.Len(t, view.Peers, 1)
	assert.Equal(t, "bob", view.Peers[0].Username)

	require.NoError(t, other.Leave())

	select {
	case msg := <-events:
		_, ok := msg.(*protocol.PeerLeft)
		require.True(t, ok, "expected peer-left, got %s", msg.Tag())
	case <-time.After(waitTimeout):
		t.Fatal("no peer-left event delivered")
	}

	view, err = c.View()
	require.NoError(t, err)
	assert.Empty(t, view.Peers)
}

func TestDisconnectNotificationOnHostStop(t *testing.T) {
	coord, info := startSession(t, "hello")

	disconnected := make(chan struct{})
	c := New(Options{
		Host:     "127.0.0.1",
		Port:     info.Port,
		Password: info.Password,
		Username: "ada",
		OnDisconnect: func(err error) {
			close(disconnected)
		},
	})
	_, err := c.Join(context.Background())
	require.NoError(t, err)

	require.NoError(t, coord.Stop())

	select {
	case <-disconnected:
	case <-time.After(waitTimeout):
		t.Fatal("no disconnect notification")
	}

	assert.False(t, c.Joined())
	assert.ErrorIs(t, c.SendChat("hello?"), ErrNotConnected)
}

func TestLeaveDoesNotFireDisconnect(t *testing.T) {
	_, info := startSession(t, "hello")

	fired := make(chan struct{}, 1)
	c := New(Options{
		Host:     "127.0.0.1",
		Port:     info.Port,
		Password: info.Password,
		Username: "ada",
		OnDisconnect: func(err error) {
			fired <- struct{}{}
		},
	})
	_, err := c.Join(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.Leave())
	assert.False(t, c.Joined())

	select {
	case <-fired:
		t.Fatal("OnDisconnect fired for a deliberate leave")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestEditRoundTripBetweenClients(t *testing.T) {
	_, info := startSession(t, "hello")

	edits := make(chan *protocol.Edit, 4)
	receiver := New(Options{
		Host:     "127.0.0.1",
		Port:     info.Port,
		Password: info.Password,
		Username: "ada",
		OnEvent: func(msg protocol.Message) {
			if edit, ok := msg.(*protocol.Edit); ok {
				edits <- edit
			}
		},
	})
	_, err := receiver.Join(context.Background())
	require.NoError(t, err)

	sender := New(Options{
		Host:     "127.0.0.1",
		Port:     info.Port,
		Password: info.Password,
		Username: "bob",
	})
	senderView, err := sender.Join(context.Background())
	require.NoError(t, err)

	selection := &protocol.Selection{
		Start: protocol.Cursor{Line: 1, Column: 1},
		End:   protocol.Cursor{Line: 1, Column: 6},
	}
	require.NoError(t, sender.SendEdit("hello world", selection))

	select {
	case edit := <-edits:
		assert.Equal(t, senderView.PeerID, edit.PeerID)
		assert.Equal(t, "hello world", edit.Content)
		assert.Equal(t, 1, edit.Version)
		assert.Equal(t, selection, edit.Selection)
	case <-time.After(waitTimeout):
		t.Fatal("edit never reached the other client")
	}
}
