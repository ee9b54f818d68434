package broker

import (
	"github.com/actornet/actornet/logger"
	"github.com/actornet/actornet/node"
	"github.com/actornet/actornet/transport"
	"github.com/actornet/actornet/wire"
)

type parseState int

const (
	awaitHeader parseState = iota
	awaitPayload
)

func (s parseState) String() string {
	switch s {
	case awaitHeader:
		return "await_header"
	case awaitPayload:
		return "await_payload"
	default:
		return "invalid"
	}
}

// connCtx tracks one connection's protocol state: parse phase, the
// header whose payload is pending, the peer identity once the handshake
// established it, and the pending connect callback on client-initiated
// connections.
type connCtx struct {
	hdl   transport.Handle
	state parseState
	hdr   wire.Header

	// set by the handshake; invalid until then
	peer node.ID
	// listener port for inbound connections, remote port for outbound
	localPort  uint16
	remotePort uint16

	// one-shot: nil after resolve
	callback     chan<- connectResult
	expectedSigs []string
}

// resolve delivers the connect result exactly once; later calls no-op.
func (cc *connCtx) resolve(addr node.Address, err error) {
	if cc.callback == nil {
		return
	}
	cc.callback <- connectResult{addr: addr, err: err}
	cc.callback = nil
	cc.expectedSigs = nil
}

// setContext returns the context for hdl, creating it in await_header
// state if none exists yet.
func (b *Broker) setContext(hdl transport.Handle) *connCtx {
	if cc, ok := b.ctxs[hdl]; ok {
		return cc
	}
	cc := &connCtx{hdl: hdl, state: awaitHeader}
	b.ctxs[hdl] = cc
	return cc
}

func (b *Broker) connLog(cc *connCtx) logger.Logger {
	log := b.log.WithField("handle", uint64(cc.hdl))
	if cc.peer.IsValid() {
		log = log.WithField("peer", cc.peer.String())
	}
	return log
}
