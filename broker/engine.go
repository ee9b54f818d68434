package broker

import (
	"github.com/pkg/errors"

	"github.com/actornet/actornet/node"
	"github.com/actornet/actornet/proxy"
	"github.com/actornet/actornet/transport"
	"github.com/actornet/actornet/wire"
)

// All functions in this file run on the broker goroutine.

func (b *Broker) handleNewConnection(ev transport.NewConnection) {
	cc := b.setContext(ev.Handle)
	cc.localPort = ev.LocalPort

	// server side speaks first: advertise node id, published actor and
	// its signatures, then wait for the client handshake
	pub := b.published[ev.LocalPort]
	payload, err := wire.MarshalSignatures(pub.sigs)
	if err != nil {
		b.connLog(cc).WithError(err).Error("cannot marshal published signatures, dropping connection")
		b.closeConnection(cc, err)
		return
	}
	hdr := wire.Header{
		Operation:     wire.OpServerHandshake,
		PayloadLen:    uint32(len(payload)),
		OperationData: wire.ProtocolVersion,
		SourceNode:    b.localNode,
		SourceActor:   pub.aid,
	}
	if err := b.writeFrame(cc.hdl, &hdr, payload); err != nil {
		b.connLog(cc).WithError(err).Error("cannot write server handshake")
		b.closeConnection(cc, err)
		return
	}
	b.mux.ConfigureRead(cc.hdl, wire.HeaderSize)
}

func (b *Broker) handleNewData(ev transport.NewData) {
	cc, ok := b.ctxs[ev.Handle]
	if !ok {
		// data raced with a close we already processed
		b.log.WithField("handle", uint64(ev.Handle)).Debug("data for unknown connection, dropping")
		return
	}
	b.currentCtx = cc
	defer func() { b.currentCtx = nil }()

	switch cc.state {
	case awaitHeader:
		if err := cc.hdr.Unmarshal(ev.Data); err != nil {
			b.connLog(cc).WithError(err).Error("protocol error in header")
			b.closeConnection(cc, err)
			return
		}
		if cc.hdr.PayloadLen > 0 {
			cc.state = awaitPayload
			b.mux.ConfigureRead(cc.hdl, int(cc.hdr.PayloadLen))
			return
		}
		if err := b.handleFrame(cc, &cc.hdr, nil); err != nil {
			b.connLog(cc).WithError(err).Error("protocol error, closing connection")
			b.closeConnection(cc, err)
			return
		}
	case awaitPayload:
		cc.state = awaitHeader
		if err := b.handleFrame(cc, &cc.hdr, ev.Data); err != nil {
			b.connLog(cc).WithError(err).Error("protocol error, closing connection")
			b.closeConnection(cc, err)
			return
		}
	}
	// connection may have been closed as a side effect of frame handling
	if _, open := b.ctxs[cc.hdl]; open {
		b.mux.ConfigureRead(cc.hdl, wire.HeaderSize)
	}
}

// handleFrame dispatches one complete frame. A returned error is a
// protocol violation and closes the connection.
func (b *Broker) handleFrame(cc *connCtx, hdr *wire.Header, payload []byte) error {
	prom.framesIn.WithLabelValues(hdr.Operation.String()).Inc()
	if debugEnabled {
		b.connLog(cc).
			WithField("op", hdr.Operation.String()).
			WithField("payload_len", hdr.PayloadLen).
			Debug("frame in")
	}

	switch hdr.Operation {
	case wire.OpServerHandshake:
		return b.handleServerHandshake(cc, hdr, payload)
	case wire.OpClientHandshake:
		return b.handleClientHandshake(cc, hdr)
	case wire.OpAnnounceProxy:
		if !cc.peer.IsValid() {
			return errors.New("broker: announce_proxy before handshake")
		}
		b.proxyAnnounced(hdr.SourceNode, hdr.DestActor)
		return nil
	case wire.OpKillProxy:
		if !cc.peer.IsValid() {
			return errors.New("broker: kill_proxy before handshake")
		}
		b.ns.Kill(hdr.SourceNode, hdr.SourceActor, hdr.Reason())
		return nil
	case wire.OpDispatchMessage:
		if !cc.peer.IsValid() {
			return errors.New("broker: dispatch_message before handshake")
		}
		if hdr.DestNode == b.localNode {
			b.deliver(hdr, payload)
		} else {
			b.forwardFrame(hdr, payload)
		}
		return nil
	default:
		return errors.Errorf("broker: unhandled operation %s", hdr.Operation)
	}
}

// handleServerHandshake runs on the client side of a connect: check the
// version, answer with our client handshake, then resolve the pending
// callback through finalizeHandshake.
func (b *Broker) handleServerHandshake(cc *connCtx, hdr *wire.Header, payload []byte) error {
	if cc.peer.IsValid() {
		return errors.New("broker: second handshake on established connection")
	}
	if hdr.OperationData != wire.ProtocolVersion {
		err := errors.Errorf("broker: protocol version mismatch: local %d, remote %d",
			wire.ProtocolVersion, hdr.OperationData)
		cc.resolve(node.InvalidAddress, err)
		prom.handshakeFailures.Inc()
		return err
	}
	if !hdr.SourceNode.IsValid() {
		err := errors.New("broker: server handshake without node id")
		cc.resolve(node.InvalidAddress, err)
		prom.handshakeFailures.Inc()
		return err
	}
	sigs, err := wire.UnmarshalSignatures(payload)
	if err != nil {
		cc.resolve(node.InvalidAddress, err)
		prom.handshakeFailures.Inc()
		return err
	}

	answer := wire.Header{
		Operation:     wire.OpClientHandshake,
		OperationData: wire.ProtocolVersion,
		SourceNode:    b.localNode,
		DestNode:      hdr.SourceNode,
	}
	if err := b.writeFrame(cc.hdl, &answer, nil); err != nil {
		cc.resolve(node.InvalidAddress, err)
		return err
	}

	return b.finalizeHandshake(cc, hdr.SourceNode, hdr.SourceActor, sigs)
}

// handleClientHandshake runs on the server side: it learns the peer's
// node id. Connecting to oneself is legal; the loopback connection then
// carries frames both ways within the same process.
func (b *Broker) handleClientHandshake(cc *connCtx, hdr *wire.Header) error {
	if cc.peer.IsValid() {
		return errors.New("broker: second handshake on established connection")
	}
	if hdr.OperationData != wire.ProtocolVersion {
		prom.handshakeFailures.Inc()
		return errors.Errorf("broker: protocol version mismatch: local %d, remote %d",
			wire.ProtocolVersion, hdr.OperationData)
	}
	if !hdr.SourceNode.IsValid() {
		prom.handshakeFailures.Inc()
		return errors.New("broker: client handshake without node id")
	}
	cc.peer = hdr.SourceNode
	if hdr.SourceNode != b.localNode {
		b.tbl.AddDirect(hdr.SourceNode, cc.hdl)
	}
	b.connLog(cc).Info("inbound connection established")
	return nil
}

// finalizeHandshake installs the peer identity and resolves the pending
// connect callback, if any. The callback fires at most once over the
// connection's lifetime.
func (b *Broker) finalizeHandshake(cc *connCtx, nid node.ID, aid node.ActorID, sigs []string) error {
	cc.peer = nid
	selfConnect := nid == b.localNode
	if !selfConnect {
		b.tbl.AddDirect(nid, cc.hdl)
	}
	b.connLog(cc).Info("outbound connection established")

	if cc.callback == nil {
		return nil
	}

	if !wire.SignatureSubset(cc.expectedSigs, sigs) {
		err := errors.Errorf("broker: expected signatures %v not offered by remote actor (has %v)",
			cc.expectedSigs, sigs)
		cc.resolve(node.InvalidAddress, err)
		prom.handshakeFailures.Inc()
		return err
	}

	if !aid.IsValid() {
		// nothing published on that port; connecting without an actor in
		// mind is fine, resolve with the invalid address
		cc.resolve(node.InvalidAddress, nil)
		return nil
	}

	if selfConnect {
		rcpt, _ := b.dir.Lookup(aid)
		if rcpt == nil {
			cc.resolve(node.InvalidAddress, nil)
			return nil
		}
		cc.resolve(rcpt.Addr(), nil)
		return nil
	}

	p := b.ns.GetOrPut(nid, aid)
	if p == nil {
		cc.resolve(node.InvalidAddress, errors.New("broker: cannot create proxy for handshake actor"))
		return nil
	}
	addr := p.Addr()
	b.knownRemotes[nid] = knownRemote{port: cc.remotePort, addr: addr}
	cc.resolve(addr, nil)
	return nil
}

// MakeProxy is the registry's creation backend. A nil return means "no
// route", which callers treat as recoverable. When the lookup happens
// while a frame from another node is being processed, the sender of that
// frame is recorded as an indirect route towards the proxy's node.
func (b *Broker) MakeProxy(nid node.ID, aid node.ActorID) *proxy.Proxy {
	if nid == b.localNode {
		panic("broker: proxies must never be created for local actors")
	}
	if cc := b.currentCtx; cc != nil && cc.peer.IsValid() && cc.peer != nid {
		b.tbl.AddIndirect(cc.peer, nid)
	}
	path, ok := b.tbl.Lookup(nid)
	if !ok {
		b.log.WithField("node", nid.String()).
			WithField("actor", uint64(aid)).
			Info("no route to node, cannot create proxy")
		return nil
	}

	p := proxy.New(node.Address{Node: nid, Actor: aid}, b, func() {
		b.Post(func() { b.ns.Erase(nid, aid) })
	})

	// tell the owning node that we hold a representative now
	hdr := wire.Header{
		Operation:  wire.OpAnnounceProxy,
		SourceNode: b.localNode,
		DestNode:   nid,
		DestActor:  aid,
	}
	if err := b.writeFrame(path.Handle, &hdr, nil); err != nil {
		b.log.WithField("node", nid.String()).WithError(err).Error("cannot announce proxy")
	}
	prom.proxiesCreated.Inc()
	return p
}

// proxyAnnounced handles a peer's announcement that it created a proxy
// for one of our actors: if the actor is already gone, answer with an
// immediate kill; otherwise subscribe to its termination.
func (b *Broker) proxyAnnounced(nid node.ID, aid node.ActorID) {
	if !nid.IsValid() || !aid.IsValid() {
		b.log.Error("announce_proxy with invalid node or actor id, ignoring")
		return
	}
	rcpt, reason := b.dir.Lookup(aid)
	if rcpt == nil {
		if reason == node.ReasonNotExited {
			// the peer guessed an id we never assigned
			reason = node.ReasonKill
		}
		b.sendKillProxy(nid, aid, reason)
		return
	}
	if err := b.dir.ObserveTermination(aid, func(rsn node.Reason) {
		b.Post(func() { b.sendKillProxy(nid, aid, rsn) })
	}); err != nil {
		// actor raced to termination between lookup and subscribe
		b.sendKillProxy(nid, aid, node.ReasonNormal)
	}
}

func (b *Broker) sendKillProxy(nid node.ID, aid node.ActorID, reason node.Reason) {
	path, ok := b.tbl.Lookup(nid)
	if !ok {
		b.log.WithField("node", nid.String()).Info("no route for kill_proxy, dropping")
		return
	}
	hdr := wire.Header{
		Operation:     wire.OpKillProxy,
		OperationData: uint64(reason),
		SourceNode:    b.localNode,
		DestNode:      nid,
		SourceActor:   aid,
	}
	if err := b.writeFrame(path.Handle, &hdr, nil); err != nil {
		b.log.WithField("node", nid.String()).WithError(err).Error("cannot send kill_proxy")
	}
}

// deliver hands a frame addressed to this node to the local directory.
// Undeliverable requests are bounced back to the source so callers never
// wait forever; all other undeliverable messages are dropped.
func (b *Broker) deliver(hdr *wire.Header, payload []byte) {
	var src node.Recipient
	srcAddr := node.InvalidAddress
	if hdr.SourceNode.IsValid() && hdr.SourceActor.IsValid() {
		srcAddr = node.Address{Node: hdr.SourceNode, Actor: hdr.SourceActor}
		if hdr.SourceNode == b.localNode {
			src, _ = b.dir.Lookup(hdr.SourceActor)
		} else if p := b.ns.GetOrPut(hdr.SourceNode, hdr.SourceActor); p != nil {
			src = p
		}
	}

	mid := hdr.MessageID()
	if mid.IsResponse() && hdr.SourceNode.IsValid() {
		if byID, ok := b.pendingReqs[hdr.SourceNode]; ok {
			delete(byID, mid.ID())
		}
	}

	rcpt, reason := b.dir.Lookup(hdr.DestActor)
	if rcpt == nil {
		b.log.WithField("actor", uint64(hdr.DestActor)).
			WithField("reason", reason.String()).
			Info("cannot deliver message to local actor")
		prom.undeliverable.Inc()
		if mid.IsRequest() && src != nil {
			if reason == node.ReasonNotExited {
				reason = node.ReasonRemoteLinkUnreachable
			}
			b.bounceRequest(src, mid, reason)
		}
		return
	}
	rcpt.Enqueue(srcAddr, mid, payload)
}

// forwardFrame relays a frame addressed to a third node. No route means
// drop; reliability across relays is the application's problem.
func (b *Broker) forwardFrame(hdr *wire.Header, payload []byte) {
	path, ok := b.tbl.Lookup(hdr.DestNode)
	if !ok {
		b.log.WithField("dest", hdr.DestNode.String()).Info("cannot forward frame, no route")
		prom.forwardDropped.Inc()
		return
	}
	if err := b.writeFrame(path.Handle, hdr, payload); err != nil {
		b.log.WithField("dest", hdr.DestNode.String()).WithError(err).Error("cannot forward frame")
		return
	}
	prom.framesForwarded.Inc()
}

// Forward implements proxy.Forwarder. Proxies enqueue from arbitrary
// goroutines, so this re-enters the broker first.
func (b *Broker) Forward(src, dest node.Address, mid node.MessageID, payload []byte) {
	b.Post(func() { b.dispatch(src, dest, mid, payload) })
}

// dispatch sends a locally originated envelope towards a remote actor.
func (b *Broker) dispatch(src, dest node.Address, mid node.MessageID, payload []byte) {
	if dest.Node == b.localNode {
		b.log.WithField("dest", dest.String()).Error("dispatch for local destination, dropping")
		return
	}
	path, ok := b.tbl.Lookup(dest.Node)
	if !ok {
		b.log.WithField("dest", dest.String()).Info("cannot dispatch, no route")
		prom.undeliverable.Inc()
		if mid.IsRequest() {
			if rcpt := b.resolveLocal(src); rcpt != nil {
				b.bounceRequest(rcpt, mid, node.ReasonRemoteLinkUnreachable)
			}
		}
		return
	}
	hdr := wire.Header{
		Operation:     wire.OpDispatchMessage,
		PayloadLen:    uint32(len(payload)),
		OperationData: uint64(mid),
		SourceNode:    src.Node,
		DestNode:      dest.Node,
		SourceActor:   src.Actor,
		DestActor:     dest.Actor,
	}
	if err := b.writeFrame(path.Handle, &hdr, payload); err != nil {
		b.log.WithField("dest", dest.String()).WithError(err).Error("cannot dispatch message")
		return
	}
	if mid.IsRequest() && src.Node == b.localNode {
		byID, ok := b.pendingReqs[dest.Node]
		if !ok {
			byID = make(map[uint64]node.Address)
			b.pendingReqs[dest.Node] = byID
		}
		byID[mid.ID()] = src
	}
}

// resolveLocal maps an address to a recipient without creating proxies.
func (b *Broker) resolveLocal(addr node.Address) node.Recipient {
	if !addr.IsValid() {
		return nil
	}
	if addr.Node == b.localNode {
		rcpt, _ := b.dir.Lookup(addr.Actor)
		return rcpt
	}
	if p := b.ns.Get(addr.Node, addr.Actor); p != nil {
		return p
	}
	return nil
}

// handleConnectionClosed purges all state tied to the connection: the
// pending handshake (if any), direct and dependent indirect routes,
// proxies of nodes that became unreachable, and in-flight requests to
// those nodes.
func (b *Broker) handleConnectionClosed(ev transport.ConnectionClosed) {
	cc, ok := b.ctxs[ev.Handle]
	if !ok {
		return
	}
	b.connLog(cc).WithError(ev.Err).Info("connection closed by peer")
	cc.resolve(node.InvalidAddress, errors.New("broker: disconnect during handshake"))
	delete(b.ctxs, ev.Handle)
	b.purgeHandle(ev.Handle)
}

// closeConnection is the broker-initiated variant: same purge, but it
// also tells the multiplexer to tear the socket down. Idempotent.
func (b *Broker) closeConnection(cc *connCtx, cause error) {
	if _, ok := b.ctxs[cc.hdl]; !ok {
		return
	}
	debug("handle %d: broker-initiated close: %s", cc.hdl, cause)
	cc.resolve(node.InvalidAddress, cause)
	delete(b.ctxs, cc.hdl)
	b.purgeHandle(cc.hdl)
	b.mux.Close(cc.hdl)
}

func (b *Broker) purgeHandle(hdl transport.Handle) {
	lost := b.tbl.EraseDirect(hdl)
	for _, nid := range lost {
		for _, p := range b.ns.GetAll(nid) {
			p.Kill(node.ReasonRemoteLinkUnreachable)
		}
		b.ns.EraseNode(nid)
		delete(b.knownRemotes, nid)
		b.bouncePending(nid)
		prom.nodesPurged.Inc()
	}
	if len(lost) > 0 {
		b.log.WithField("lost_nodes", len(lost)).Info("purged unreachable nodes")
	}
}

// bouncePending delivers exactly one error reply to each locally pending
// request whose destination node became unreachable.
func (b *Broker) bouncePending(nid node.ID) {
	byID, ok := b.pendingReqs[nid]
	if !ok {
		return
	}
	delete(b.pendingReqs, nid)
	for id, srcAddr := range byID {
		rcpt := b.resolveLocal(srcAddr)
		if rcpt == nil {
			continue
		}
		b.bounceRequest(rcpt, node.MakeRequest(id), node.ReasonRemoteLinkUnreachable)
	}
}

func (b *Broker) writeFrame(hdl transport.Handle, hdr *wire.Header, payload []byte) error {
	if err := b.mux.Write(hdl, hdr.MarshalNew()); err != nil {
		return err
	}
	if len(payload) > 0 {
		if err := b.mux.Write(hdl, payload); err != nil {
			return err
		}
	}
	prom.framesOut.WithLabelValues(hdr.Operation.String()).Inc()
	return b.mux.Flush(hdl)
}
