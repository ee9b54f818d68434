package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDRoundtrip(t *testing.T) {
	id := NewID()
	require.True(t, id.IsValid())
	parsed, err := ParseID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestInvalidSentinels(t *testing.T) {
	assert.False(t, InvalidID.IsValid())
	assert.False(t, InvalidActorID.IsValid())
	assert.False(t, Address{Node: NewID()}.IsValid())
	assert.False(t, Address{Actor: 7}.IsValid())
	assert.True(t, Address{Node: NewID(), Actor: 7}.IsValid())
}

func TestMessageIDZeroRequestDistinctFromNone(t *testing.T) {
	req := MakeRequest(0)
	assert.NotEqual(t, NoMessageID, req)
	assert.True(t, req.IsRequest())
	assert.False(t, NoMessageID.IsRequest())
	assert.Equal(t, uint64(0), req.ID())
}

func TestMessageIDResponseTo(t *testing.T) {
	req := MakeRequest(42)
	resp := req.ResponseTo()
	assert.True(t, resp.IsResponse())
	assert.False(t, resp.IsRequest())
	assert.Equal(t, uint64(42), resp.ID())
}
