package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/actornet/actornet/node"
)

func TestHeaderRoundtrip(t *testing.T) {
	in := Header{
		Operation:     OpDispatchMessage,
		PayloadLen:    512,
		OperationData: uint64(node.MakeRequest(99)),
		SourceNode:    node.NewID(),
		DestNode:      node.NewID(),
		SourceActor:   23,
		DestActor:     42,
	}
	buf := in.MarshalNew()
	require.Equal(t, HeaderSize, len(buf))

	var out Header
	require.NoError(t, out.Unmarshal(buf))
	assert.Equal(t, in, out)
	assert.True(t, out.MessageID().IsRequest())
	assert.Equal(t, uint64(99), out.MessageID().ID())
}

func TestHeaderUnmarshalRejectsUnknownOp(t *testing.T) {
	h := Header{Operation: OpServerHandshake}
	buf := h.MarshalNew()
	buf[3] = 0xff // clobber the operation tag

	var out Header
	err := out.Unmarshal(buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid operation tag")
}

func TestHeaderUnmarshalRejectsOversizedPayload(t *testing.T) {
	h := Header{Operation: OpDispatchMessage, PayloadLen: MaxPayloadLen + 1}
	var out Header
	err := out.Unmarshal(h.MarshalNew())
	require.Equal(t, ErrPayloadTooLarge, err)
}

func TestSignatures(t *testing.T) {
	sigs := []string{"calc@v1", "ping@v2", "admin@v1"}
	buf, err := MarshalSignatures(sigs)
	require.NoError(t, err)

	out, err := UnmarshalSignatures(buf)
	require.NoError(t, err)
	// canonical encoding sorts
	assert.Equal(t, []string{"admin@v1", "calc@v1", "ping@v2"}, out)

	assert.True(t, SignatureSubset([]string{"ping@v2"}, out))
	assert.True(t, SignatureSubset(nil, out))
	assert.False(t, SignatureSubset([]string{"pong@v1"}, out))
}

func TestSignaturesEmpty(t *testing.T) {
	buf, err := MarshalSignatures(nil)
	require.NoError(t, err)
	out, err := UnmarshalSignatures(buf)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestSignaturesRejectTrailingGarbage(t *testing.T) {
	buf, err := MarshalSignatures([]string{"a"})
	require.NoError(t, err)
	_, err = UnmarshalSignatures(append(buf, 0x00))
	require.Error(t, err)
}

func TestErrorPayload(t *testing.T) {
	buf := MarshalError(node.ReasonRemoteLinkUnreachable, "peer gone")
	reason, msg, err := UnmarshalError(buf)
	require.NoError(t, err)
	assert.Equal(t, node.ReasonRemoteLinkUnreachable, reason)
	assert.Equal(t, "peer gone", msg)
}
