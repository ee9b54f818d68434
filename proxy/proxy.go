// Package proxy implements local stand-ins for remote actors and the
// registry ("namespace") that owns them, keyed by (node, actor id).
package proxy

import (
	"sync"

	"github.com/actornet/actornet/node"
)

// Forwarder relays a message envelope towards a remote destination. The
// broker implements it; proxies hold it so that enqueueing into a proxy
// re-enters the broker's serialized context.
type Forwarder interface {
	Forward(src, dest node.Address, mid node.MessageID, payload []byte)
}

// Proxy is the local representative of one remote actor. The registry
// exclusively owns the registry entry; the proxy object itself may be
// held concurrently by monitors and in-flight deliveries, so its own
// state carries a lock even though registry mutations are serialized by
// the broker.
type Proxy struct {
	addr node.Address
	fwd  Forwarder

	mtx       sync.Mutex
	dead      bool
	reason    node.Reason
	onDown    []func(node.Reason)
	holders   int
	onRelease func()
}

var _ node.Recipient = (*Proxy)(nil)

// New creates a live proxy with one holder (the creation reference).
// onRelease fires once when the last holder releases the proxy; the
// backend uses it to schedule the registry erase back onto the broker.
func New(addr node.Address, fwd Forwarder, onRelease func()) *Proxy {
	return &Proxy{
		addr:      addr,
		fwd:       fwd,
		holders:   1,
		onRelease: onRelease,
	}
}

func (p *Proxy) Addr() node.Address { return p.addr }

// Enqueue forwards the envelope towards the remote actor. A dead proxy
// still forwards; the broker or the remote side will bounce requests
// that can no longer be delivered.
func (p *Proxy) Enqueue(src node.Address, mid node.MessageID, payload []byte) {
	p.fwd.Forward(src, p.addr, mid, payload)
}

// Kill marks the proxy dead with the given reason and notifies all
// registered down-observers exactly once. Killing twice is a no-op;
// it returns whether this call was the effective one.
func (p *Proxy) Kill(reason node.Reason) bool {
	p.mtx.Lock()
	if p.dead {
		p.mtx.Unlock()
		return false
	}
	p.dead = true
	p.reason = reason
	observers := p.onDown
	p.onDown = nil
	p.mtx.Unlock()
	for _, fn := range observers {
		fn(reason)
	}
	return true
}

// Down reports the exit reason if the proxy was killed.
func (p *Proxy) Down() (node.Reason, bool) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.reason, p.dead
}

// OnDown registers fn to run when the proxy is killed. If the proxy is
// already dead, fn runs immediately with the recorded reason.
func (p *Proxy) OnDown(fn func(node.Reason)) {
	p.mtx.Lock()
	if p.dead {
		reason := p.reason
		p.mtx.Unlock()
		fn(reason)
		return
	}
	p.onDown = append(p.onDown, fn)
	p.mtx.Unlock()
}

// Acquire adds a holder reference.
func (p *Proxy) Acquire() {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if p.holders <= 0 {
		panic("proxy: acquire after last release")
	}
	p.holders++
}

// Release drops a holder reference. When the last holder is gone the
// onRelease hook fires (outside the lock); the proxy object stays usable
// until the scheduled registry erase is processed, so remote peers are
// never told about a proxy that no longer exists.
func (p *Proxy) Release() {
	p.mtx.Lock()
	if p.holders <= 0 {
		p.mtx.Unlock()
		panic("proxy: release without matching acquire")
	}
	p.holders--
	last := p.holders == 0
	hook := p.onRelease
	p.mtx.Unlock()
	if last && hook != nil {
		hook()
	}
}
