// Package wire implements the binary framing of the actornet node-to-node
// protocol.
//
// Every frame starts with a fixed-size big-endian header; payload bytes
// follow if and only if the header declares PayloadLen > 0. The header is
// sized so that a reader can always arm an exact-size read for the next
// frame boundary.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	"github.com/actornet/actornet/node"
)

// ProtocolVersion is a wire constant, bump it on incompatible changes.
const ProtocolVersion uint64 = 1

type Op uint32

const (
	opInvalid Op = iota
	// OpServerHandshake is written by the accepting side immediately after
	// a new connection, advertising its node id, published actor and
	// application signatures.
	OpServerHandshake
	// OpClientHandshake is the initiating side's answer, advertising its
	// node id.
	OpClientHandshake
	// OpAnnounceProxy tells the destination node that the source node
	// created a proxy for one of the destination's actors.
	OpAnnounceProxy
	// OpKillProxy tells the destination node that the actor behind one of
	// its proxies terminated; operation data carries the exit reason.
	OpKillProxy
	// OpDispatchMessage carries an application payload; operation data
	// carries the message correlation id.
	OpDispatchMessage

	opMax
)

func (o Op) IsValid() bool { return o > opInvalid && o < opMax }

func (o Op) String() string {
	switch o {
	case OpServerHandshake:
		return "server_handshake"
	case OpClientHandshake:
		return "client_handshake"
	case OpAnnounceProxy:
		return "announce_proxy"
	case OpKillProxy:
		return "kill_proxy"
	case OpDispatchMessage:
		return "dispatch_message"
	default:
		return fmt.Sprintf("op(%d)", uint32(o))
	}
}

// HeaderSize is the exact number of bytes of a marshaled Header.
const HeaderSize = 4 + 4 + 8 + 16 + 16 + 8 + 8

// MaxPayloadLen bounds the per-frame payload a peer may declare, so a
// misbehaving peer cannot make us allocate unbounded buffers.
const MaxPayloadLen = 1 << 26

type Header struct {
	Operation Op
	PayloadLen uint32
	// OperationData is operation dependent: protocol version for
	// handshakes, node.MessageID for dispatch, node.Reason for kill-proxy.
	OperationData uint64
	SourceNode    node.ID
	DestNode      node.ID
	SourceActor   node.ActorID
	DestActor     node.ActorID
}

var ErrPayloadTooLarge = errors.New("wire: declared payload length exceeds limit")

func (h *Header) Marshal(buf []byte) {
	if len(buf) != HeaderSize {
		panic("wire: header buffer must be HeaderSize bytes")
	}
	binary.BigEndian.PutUint32(buf[0:4], uint32(h.Operation))
	binary.BigEndian.PutUint32(buf[4:8], h.PayloadLen)
	binary.BigEndian.PutUint64(buf[8:16], h.OperationData)
	copy(buf[16:32], h.SourceNode[:])
	copy(buf[32:48], h.DestNode[:])
	binary.BigEndian.PutUint64(buf[48:56], uint64(h.SourceActor))
	binary.BigEndian.PutUint64(buf[56:64], uint64(h.DestActor))
}

func (h *Header) MarshalNew() []byte {
	buf := make([]byte, HeaderSize)
	h.Marshal(buf)
	return buf
}

// Unmarshal validates the operation tag and payload length bound. A
// failure here is a protocol error and must close the connection.
func (h *Header) Unmarshal(buf []byte) error {
	if len(buf) != HeaderSize {
		return errors.Errorf("wire: header is %d bytes long, got %d", HeaderSize, len(buf))
	}
	h.Operation = Op(binary.BigEndian.Uint32(buf[0:4]))
	h.PayloadLen = binary.BigEndian.Uint32(buf[4:8])
	h.OperationData = binary.BigEndian.Uint64(buf[8:16])
	copy(h.SourceNode[:], buf[16:32])
	copy(h.DestNode[:], buf[32:48])
	h.SourceActor = node.ActorID(binary.BigEndian.Uint64(buf[48:56]))
	h.DestActor = node.ActorID(binary.BigEndian.Uint64(buf[56:64]))
	if !h.Operation.IsValid() {
		return errors.Errorf("wire: invalid operation tag %d", uint32(h.Operation))
	}
	if h.PayloadLen > MaxPayloadLen {
		return ErrPayloadTooLarge
	}
	return nil
}

func (h *Header) MessageID() node.MessageID { return node.MessageID(h.OperationData) }

func (h *Header) Reason() node.Reason { return node.Reason(h.OperationData) }
