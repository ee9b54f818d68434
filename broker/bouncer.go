package broker

import (
	"github.com/actornet/actornet/node"
	"github.com/actornet/actornet/proxy"
	"github.com/actornet/actornet/wire"
)

// bounceRequest delivers a synthetic error reply for an undeliverable
// request so the caller's pending response resolves instead of hanging.
// Must only be invoked for requests; responses and one-way messages are
// dropped silently by the callers.
//
// Runs on the broker goroutine. A remote requester is reached through
// dispatch directly instead of the proxy's forwarder, which would
// re-enter the broker mailbox from within the broker itself.
func (b *Broker) bounceRequest(src node.Recipient, mid node.MessageID, reason node.Reason) {
	if !mid.IsRequest() {
		panic("broker: only requests may be bounced")
	}
	payload := wire.MarshalError(reason, "remote actor unreachable: "+reason.String())
	if p, ok := src.(*proxy.Proxy); ok {
		b.dispatch(node.InvalidAddress, p.Addr(), mid.ResponseTo(), payload)
	} else {
		src.Enqueue(node.InvalidAddress, mid.ResponseTo(), payload)
	}
	prom.bouncedRequests.Inc()
}
