package proxy

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/actornet/actornet/logger"
	"github.com/actornet/actornet/node"
)

// Backend is the creation policy hook: the broker implements MakeProxy,
// which may refuse (return nil) when there is no route to the node.
type Backend interface {
	MakeProxy(nid node.ID, aid node.ActorID) *Proxy
}

// Registry is the bidirectional (node, actor id) -> proxy map. It is
// owned by the broker goroutine and does no locking of its own.
type Registry struct {
	log     logger.Logger
	backend Backend
	proxies map[node.ID]map[node.ActorID]*Proxy
}

func NewRegistry(backend Backend, log logger.Logger) *Registry {
	return &Registry{
		log:     log,
		backend: backend,
		proxies: make(map[node.ID]map[node.ActorID]*Proxy),
	}
}

// GetOrPut returns the live proxy for (nid, aid), creating one through
// the backend if none exists. Returns nil if the backend refuses — a
// recoverable "no route" condition, not an error.
//
// Callers must special-case the local node and invalid ids first; the
// registry never holds entries for either.
func (r *Registry) GetOrPut(nid node.ID, aid node.ActorID) *Proxy {
	if !nid.IsValid() || !aid.IsValid() {
		panic("proxy: registry keys must be valid (node, actor id) pairs")
	}
	if p, ok := r.proxies[nid][aid]; ok {
		return p
	}
	p := r.backend.MakeProxy(nid, aid)
	if p == nil {
		return nil
	}
	byActor, ok := r.proxies[nid]
	if !ok {
		byActor = make(map[node.ActorID]*Proxy)
		r.proxies[nid] = byActor
	}
	byActor[aid] = p
	prom.liveProxies.Inc()
	return p
}

func (r *Registry) Get(nid node.ID, aid node.ActorID) *Proxy {
	return r.proxies[nid][aid]
}

// Erase drops the registry entry for (nid, aid). The proxy object itself
// lives on until all holders release it.
func (r *Registry) Erase(nid node.ID, aid node.ActorID) {
	byActor, ok := r.proxies[nid]
	if !ok {
		return
	}
	if _, ok := byActor[aid]; !ok {
		return
	}
	delete(byActor, aid)
	prom.liveProxies.Dec()
	if len(byActor) == 0 {
		delete(r.proxies, nid)
	}
}

// EraseNode drops every entry for nid (bulk, on node loss). Killing the
// proxies is the caller's responsibility, in broker mailbox order.
func (r *Registry) EraseNode(nid node.ID) {
	byActor, ok := r.proxies[nid]
	if !ok {
		return
	}
	prom.liveProxies.Sub(float64(len(byActor)))
	delete(r.proxies, nid)
}

func (r *Registry) GetAll(nid node.ID) []*Proxy {
	byActor := r.proxies[nid]
	if len(byActor) == 0 {
		return nil
	}
	all := make([]*Proxy, 0, len(byActor))
	for _, p := range byActor {
		all = append(all, p)
	}
	return all
}

func (r *Registry) Count() int {
	n := 0
	for _, byActor := range r.proxies {
		n += len(byActor)
	}
	return n
}

// Kill marks the proxy for (nid, aid) dead and erases its entry.
// Redundant kills for an already-removed proxy are a no-op.
func (r *Registry) Kill(nid node.ID, aid node.ActorID, reason node.Reason) {
	p := r.Get(nid, aid)
	if p == nil {
		r.log.WithField("node", nid.String()).
			WithField("actor", uint64(aid)).
			Debug("received kill for unknown proxy, ignoring")
		return
	}
	r.Erase(nid, aid)
	if !p.Kill(reason) {
		r.log.WithField("node", nid.String()).
			WithField("actor", uint64(aid)).
			Debug("proxy was already dead")
	}
}

var prom struct {
	liveProxies prometheus.Gauge
}

func init() {
	prom.liveProxies = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "actornet",
		Subsystem: "proxy",
		Name:      "live_proxies",
		Help:      "Number of proxies currently registered",
	})
}

func PrometheusRegister(registry prometheus.Registerer) error {
	return registry.Register(prom.liveProxies)
}
