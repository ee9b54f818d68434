// Package directory is the broker's seam to the local actor runtime: it
// resolves local actor ids to enqueueable handles and exposes explicit
// termination subscriptions.
//
// The broker depends only on the LocalDirectory interface; the scheduler
// of a full actor runtime would implement it. The in-memory Directory in
// this package backs the daemon's well-known actors and the tests.
package directory

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/actornet/actornet/logger"
	"github.com/actornet/actornet/node"
)

// LocalDirectory is what the protocol engine consumes.
//
// Lookup resolves an actor id: a live actor yields (recipient,
// ReasonNotExited); a terminated one yields (nil, recorded reason); an
// unknown id yields (nil, ReasonNotExited).
//
// ObserveTermination registers fn to run exactly once when the actor
// terminates; if it already terminated, fn runs immediately with the
// recorded reason. fn may run on an arbitrary goroutine — observers that
// touch broker state must re-enter the broker via its post primitive.
type LocalDirectory interface {
	Lookup(aid node.ActorID) (node.Recipient, node.Reason)
	ObserveTermination(aid node.ActorID, fn func(node.Reason)) error
}

// Handler consumes messages delivered to a local actor.
type Handler func(src node.Address, mid node.MessageID, payload []byte)

type localActor struct {
	addr    node.Address
	handler Handler
}

var _ node.Recipient = (*localActor)(nil)

func (a *localActor) Addr() node.Address { return a.addr }

func (a *localActor) Enqueue(src node.Address, mid node.MessageID, payload []byte) {
	a.handler(src, mid, payload)
}

// Directory is an in-memory LocalDirectory.
type Directory struct {
	log   logger.Logger
	local node.ID

	mtx      sync.Mutex
	nextID   node.ActorID
	actors   map[node.ActorID]*localActor
	exited   map[node.ActorID]node.Reason
	watchers map[node.ActorID][]func(node.Reason)
}

var _ LocalDirectory = (*Directory)(nil)

func New(local node.ID, log logger.Logger) *Directory {
	if !local.IsValid() {
		panic("directory: local node id must be assigned first")
	}
	return &Directory{
		log:      log,
		local:    local,
		actors:   make(map[node.ActorID]*localActor),
		exited:   make(map[node.ActorID]node.Reason),
		watchers: make(map[node.ActorID][]func(node.Reason)),
	}
}

func (d *Directory) LocalNode() node.ID { return d.local }

// Register installs handler under a freshly assigned actor id.
func (d *Directory) Register(handler Handler) node.ActorID {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	d.nextID++
	aid := d.nextID
	d.actors[aid] = &localActor{
		addr:    node.Address{Node: d.local, Actor: aid},
		handler: handler,
	}
	return aid
}

// RegisterID installs handler under a caller-chosen id (well-known
// actors from config use this).
func (d *Directory) RegisterID(aid node.ActorID, handler Handler) error {
	if !aid.IsValid() {
		return errors.New("directory: cannot register the invalid actor id")
	}
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if _, ok := d.actors[aid]; ok {
		return errors.Errorf("directory: actor id %d already registered", aid)
	}
	if _, ok := d.exited[aid]; ok {
		return errors.Errorf("directory: actor id %d already terminated", aid)
	}
	if aid > d.nextID {
		d.nextID = aid
	}
	d.actors[aid] = &localActor{
		addr:    node.Address{Node: d.local, Actor: aid},
		handler: handler,
	}
	return nil
}

// Terminate marks aid exited and delivers all termination subscriptions.
func (d *Directory) Terminate(aid node.ActorID, reason node.Reason) {
	d.mtx.Lock()
	if _, ok := d.actors[aid]; !ok {
		d.mtx.Unlock()
		d.log.WithField("actor", uint64(aid)).Debug("terminate for unknown or already-exited actor")
		return
	}
	delete(d.actors, aid)
	d.exited[aid] = reason
	watchers := d.watchers[aid]
	delete(d.watchers, aid)
	d.mtx.Unlock()
	for _, fn := range watchers {
		fn(reason)
	}
}

func (d *Directory) Lookup(aid node.ActorID) (node.Recipient, node.Reason) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if a, ok := d.actors[aid]; ok {
		return a, node.ReasonNotExited
	}
	if reason, ok := d.exited[aid]; ok {
		return nil, reason
	}
	return nil, node.ReasonNotExited
}

func (d *Directory) ObserveTermination(aid node.ActorID, fn func(node.Reason)) error {
	d.mtx.Lock()
	if reason, ok := d.exited[aid]; ok {
		d.mtx.Unlock()
		fn(reason)
		return nil
	}
	if _, ok := d.actors[aid]; !ok {
		d.mtx.Unlock()
		return errors.Errorf("directory: cannot observe unknown actor id %d", aid)
	}
	d.watchers[aid] = append(d.watchers[aid], fn)
	d.mtx.Unlock()
	return nil
}
