// Package broker implements the node-to-node protocol engine of
// actornet: the per-connection state machines, the handshake, remote
// proxy lifecycle, message dispatch and failure propagation.
//
// All broker-owned state (routing table, proxy registry, connection
// contexts) is mutated exclusively by the goroutine running Run. The
// transport layer and public API feed it through channels; code running
// on other goroutines re-enters via Post. That single-writer funneling
// is the concurrency model, there are no locks around broker state.
package broker

import (
	"context"

	"github.com/pkg/errors"

	"github.com/actornet/actornet/directory"
	"github.com/actornet/actornet/logger"
	"github.com/actornet/actornet/node"
	"github.com/actornet/actornet/proxy"
	"github.com/actornet/actornet/routing"
	"github.com/actornet/actornet/transport"
	"github.com/actornet/actornet/util/envconst"
	"github.com/actornet/actornet/wire"
)

type Params struct {
	LocalNode node.ID
	Directory directory.LocalDirectory
	Mux       transport.Multiplexer
	// Events is the channel the Mux posts into; Run drains it.
	Events <-chan transport.Event
	Log    logger.Logger
}

type publishedActor struct {
	aid  node.ActorID
	sigs []string
}

type knownRemote struct {
	port uint16
	addr node.Address
}

type Broker struct {
	log       logger.Logger
	localNode node.ID
	dir       directory.LocalDirectory
	mux       transport.Multiplexer

	events   <-chan transport.Event
	requests chan func()

	tbl  *routing.Table
	ns   *proxy.Registry
	ctxs map[transport.Handle]*connCtx
	// currentCtx is the context whose frame is being processed; it
	// parameterizes indirect-route learning during payload resolution.
	currentCtx *connCtx

	published    map[uint16]publishedActor
	knownRemotes map[node.ID]knownRemote
	// in-flight requests by destination node, bounced on node loss
	pendingReqs map[node.ID]map[uint64]node.Address
}

func New(p Params) *Broker {
	if !p.LocalNode.IsValid() {
		panic("broker: local node id must be assigned before construction")
	}
	if p.Log == nil {
		p.Log = logger.NewNullLogger()
	}
	b := &Broker{
		log:          p.Log,
		localNode:    p.LocalNode,
		dir:          p.Directory,
		mux:          p.Mux,
		events:       p.Events,
		requests:     make(chan func(), envconst.Int("ACTORNET_BROKER_REQUEST_QUEUE", 256)),
		tbl:          routing.NewTable(p.LocalNode),
		ctxs:         make(map[transport.Handle]*connCtx),
		published:    make(map[uint16]publishedActor),
		knownRemotes: make(map[node.ID]knownRemote),
		pendingReqs:  make(map[node.ID]map[uint64]node.Address),
	}
	b.ns = proxy.NewRegistry(b, p.Log)
	return b
}

func (b *Broker) LocalNode() node.ID { return b.localNode }

// Run is the broker mailbox loop. It owns all broker state until it
// returns; it returns when ctx is canceled, after resolving every
// pending handshake with an error.
func (b *Broker) Run(ctx context.Context) error {
	for {
		select {
		case ev := <-b.events:
			b.handleEvent(ev)
		case fn := <-b.requests:
			fn()
		case <-ctx.Done():
			for hdl, cc := range b.ctxs {
				cc.resolve(node.InvalidAddress, errors.New("broker shutting down"))
				delete(b.ctxs, hdl)
				b.mux.Close(hdl)
			}
			return ctx.Err()
		}
	}
}

// Post schedules fn onto the broker goroutine. It is the one primitive
// for cross-thread handoff: termination observers and proxy release
// hooks use it before touching any broker-owned map.
func (b *Broker) Post(fn func()) {
	b.requests <- fn
}

// call runs fn on the broker goroutine and waits for it to finish.
func (b *Broker) call(fn func()) {
	done := make(chan struct{})
	b.Post(func() {
		defer close(done)
		fn()
	})
	<-done
}

func (b *Broker) handleEvent(ev transport.Event) {
	switch ev := ev.(type) {
	case transport.NewConnection:
		b.handleNewConnection(ev)
	case transport.NewData:
		b.handleNewData(ev)
	case transport.ConnectionClosed:
		b.handleConnectionClosed(ev)
	case transport.AcceptorClosed:
		b.log.WithField("port", ev.LocalPort).WithError(ev.Err).Info("acceptor closed, unpublishing")
		delete(b.published, ev.LocalPort)
	default:
		// the event set is closed; anything else is a transport bug
		b.log.WithField("event", ev).Error("dropping unexpected transport event")
	}
}

// Publish exposes a local actor on the given listen port: its id and
// signatures are advertised in the server handshake of every connection
// accepted there.
func (b *Broker) Publish(port uint16, aid node.ActorID, sigs []string) error {
	if !aid.IsValid() {
		return errors.New("broker: cannot publish the invalid actor id")
	}
	rcpt, _ := b.dir.Lookup(aid)
	if rcpt == nil {
		return errors.Errorf("broker: cannot publish unknown or terminated actor %d", aid)
	}
	b.call(func() {
		b.published[port] = publishedActor{aid: aid, sigs: sigs}
	})
	return nil
}

// Unpublish removes the port's published actor. Reports whether a
// mapping existed.
func (b *Broker) Unpublish(port uint16) bool {
	var existed bool
	b.call(func() {
		_, existed = b.published[port]
		delete(b.published, port)
	})
	return existed
}

// EraseProxy drops the registry entry for (nid, aid), e.g. when the
// last local monitor of a remote actor is gone.
func (b *Broker) EraseProxy(nid node.ID, aid node.ActorID) {
	b.call(func() {
		b.ns.Erase(nid, aid)
	})
}

type connectResult struct {
	addr node.Address
	err  error
}

// Connect dials through c, registers the wire, and performs the client
// side of the handshake: await the server handshake frame, verify the
// protocol version and that expectedSigs is a subset of what the peer
// reports, then resolve the published actor to an address (a proxy, or
// a local lookup if the peer turns out to be this node itself).
//
// Exactly one of result or error is delivered, also on disconnect and
// on ctx cancellation.
func (b *Broker) Connect(ctx context.Context, c transport.Connecter, remotePort uint16, expectedSigs []string) (node.Address, error) {
	w, err := c.Connect(ctx)
	if err != nil {
		return node.InvalidAddress, errors.Wrap(err, "broker: connect")
	}
	hdl, err := b.mux.AddConn(w, 0)
	if err != nil {
		w.Close()
		return node.InvalidAddress, errors.Wrap(err, "broker: cannot register connection")
	}

	result := make(chan connectResult, 1)
	b.Post(func() {
		cc := b.setContext(hdl)
		cc.remotePort = remotePort
		cc.callback = result
		cc.expectedSigs = expectedSigs
		// client side: await the server handshake, write nothing yet
		b.mux.ConfigureRead(hdl, wire.HeaderSize)
	})

	select {
	case r := <-result:
		return r.addr, r.err
	case <-ctx.Done():
		b.Post(func() {
			if cc, ok := b.ctxs[hdl]; ok && cc.callback != nil {
				cc.resolve(node.InvalidAddress, ctx.Err())
				delete(b.ctxs, hdl)
				b.purgeHandle(hdl)
				b.mux.Close(hdl)
			}
		})
		return node.InvalidAddress, ctx.Err()
	}
}

// Reachable reports whether the broker currently has any route to nid.
func (b *Broker) Reachable(nid node.ID) bool {
	var ok bool
	b.call(func() {
		ok = b.tbl.Reachable(nid)
	})
	return ok
}
