package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/actornet/actornet/logger"
	"github.com/actornet/actornet/util/socketpair"
)

func TestMuxExactReadsAndFlush(t *testing.T) {
	anc, bnc, err := socketpair.SocketPair()
	require.NoError(t, err)
	defer bnc.Close()

	events := make(chan Event, 16)
	m := NewMux(events, logger.NewTestLogger(t))

	h, err := m.AddConn(anc, 0)
	require.NoError(t, err)
	require.NotEqual(t, InvalidHandle, h)

	// nothing may be read before a read is armed
	_, err = bnc.Write([]byte("abcdef"))
	require.NoError(t, err)

	m.ConfigureRead(h, 4)
	ev := <-events
	nd, ok := ev.(NewData)
	require.True(t, ok)
	assert.Equal(t, h, nd.Handle)
	assert.Equal(t, []byte("abcd"), nd.Data)

	m.ConfigureRead(h, 2)
	ev = <-events
	nd = ev.(NewData)
	assert.Equal(t, []byte("ef"), nd.Data)

	// writes are buffered until flush
	require.NoError(t, m.Write(h, []byte("xy")))
	require.NoError(t, m.Flush(h))
	buf := make([]byte, 2)
	bnc.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, err = bnc.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("xy"), buf)
}

func TestMuxPeerCloseEmitsConnectionClosed(t *testing.T) {
	anc, bnc, err := socketpair.SocketPair()
	require.NoError(t, err)

	events := make(chan Event, 16)
	m := NewMux(events, logger.NewTestLogger(t))
	h, err := m.AddConn(anc, 0)
	require.NoError(t, err)

	m.ConfigureRead(h, 8)
	require.NoError(t, bnc.Close())

	ev := <-events
	cc, ok := ev.(ConnectionClosed)
	require.True(t, ok)
	assert.Equal(t, h, cc.Handle)
	assert.Error(t, cc.Err)

	// handle is gone now
	assert.Error(t, m.Write(h, []byte("z")))
}

func TestMuxBrokerCloseIsSilent(t *testing.T) {
	anc, bnc, err := socketpair.SocketPair()
	require.NoError(t, err)
	defer bnc.Close()

	events := make(chan Event, 16)
	m := NewMux(events, logger.NewTestLogger(t))
	h, err := m.AddConn(anc, 0)
	require.NoError(t, err)

	m.ConfigureRead(h, 1)
	m.Close(h)

	select {
	case ev := <-events:
		t.Fatalf("unexpected event after broker-initiated close: %#v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}
