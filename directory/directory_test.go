package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/actornet/actornet/logger"
	"github.com/actornet/actornet/node"
)

func TestRegisterLookupEnqueue(t *testing.T) {
	local := node.NewID()
	d := New(local, logger.NewTestLogger(t))

	var got []byte
	aid := d.Register(func(src node.Address, mid node.MessageID, payload []byte) {
		got = payload
	})
	require.True(t, aid.IsValid())

	rcpt, reason := d.Lookup(aid)
	require.NotNil(t, rcpt)
	assert.Equal(t, node.ReasonNotExited, reason)
	assert.Equal(t, node.Address{Node: local, Actor: aid}, rcpt.Addr())

	rcpt.Enqueue(node.InvalidAddress, node.NoMessageID, []byte("ping"))
	assert.Equal(t, []byte("ping"), got)
}

func TestLookupUnknownVsTerminated(t *testing.T) {
	d := New(node.NewID(), logger.NewTestLogger(t))

	rcpt, reason := d.Lookup(99)
	assert.Nil(t, rcpt)
	assert.Equal(t, node.ReasonNotExited, reason)

	aid := d.Register(func(node.Address, node.MessageID, []byte) {})
	d.Terminate(aid, node.ReasonNormal)

	rcpt, reason = d.Lookup(aid)
	assert.Nil(t, rcpt)
	assert.Equal(t, node.ReasonNormal, reason)
}

func TestObserveTermination(t *testing.T) {
	d := New(node.NewID(), logger.NewTestLogger(t))
	aid := d.Register(func(node.Address, node.MessageID, []byte) {})

	var seen []node.Reason
	require.NoError(t, d.ObserveTermination(aid, func(r node.Reason) { seen = append(seen, r) }))

	d.Terminate(aid, node.ReasonKill)
	require.Equal(t, []node.Reason{node.ReasonKill}, seen)

	// late observer fires immediately with the recorded reason
	require.NoError(t, d.ObserveTermination(aid, func(r node.Reason) { seen = append(seen, r) }))
	assert.Equal(t, []node.Reason{node.ReasonKill, node.ReasonKill}, seen)

	assert.Error(t, d.ObserveTermination(12345, func(node.Reason) {}))
}

func TestRegisterIDConflicts(t *testing.T) {
	d := New(node.NewID(), logger.NewTestLogger(t))
	require.NoError(t, d.RegisterID(7, func(node.Address, node.MessageID, []byte) {}))
	assert.Error(t, d.RegisterID(7, func(node.Address, node.MessageID, []byte) {}))
	assert.Error(t, d.RegisterID(node.InvalidActorID, func(node.Address, node.MessageID, []byte) {}))

	// fresh ids skip past explicitly registered ones
	aid := d.Register(func(node.Address, node.MessageID, []byte) {})
	assert.True(t, aid > 7)
}
