// Package routing maintains the per-node reachability table of the
// broker: for every known remote node either a direct transport handle or
// an indirect path via another node.
//
// The table is owned by the broker goroutine, so it does no locking of
// its own. Invariants: exactly one entry per node, never an entry for the
// local node, and indirect chains always terminate at a direct entry.
package routing

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/actornet/actornet/node"
	"github.com/actornet/actornet/transport"
)

// Path describes the next hop towards a node: the handle to write to and
// the node the handle connects to directly. For a direct path, NextHop
// equals the target node.
type Path struct {
	NextHop node.ID
	Handle  transport.Handle
}

type entry struct {
	direct bool
	handle transport.Handle // valid iff direct
	via    node.ID          // valid iff !direct
}

type Table struct {
	local   node.ID
	entries map[node.ID]entry
	// reverse index for connection-closed handling
	byHandle map[transport.Handle]node.ID
}

func NewTable(local node.ID) *Table {
	if !local.IsValid() {
		panic("routing: local node id must be assigned before building a table")
	}
	return &Table{
		local:    local,
		entries:  make(map[node.ID]entry),
		byHandle: make(map[transport.Handle]node.ID),
	}
}

// AddDirect records that nid is reachable through hdl, overwriting any
// previous (direct or indirect) entry for nid.
func (t *Table) AddDirect(nid node.ID, hdl transport.Handle) {
	if nid == t.local {
		panic("routing: table must never contain a path to the local node")
	}
	if old, ok := t.entries[nid]; ok && old.direct {
		delete(t.byHandle, old.handle)
	}
	t.entries[nid] = entry{direct: true, handle: hdl}
	t.byHandle[hdl] = nid
	prom.tableSize.Set(float64(len(t.entries)))
}

// AddIndirect records that via offers a route to nid. It is a no-op if a
// direct entry for nid already exists or if the hop would not terminate
// at a direct entry. Returns whether the entry was added.
func (t *Table) AddIndirect(via, nid node.ID) bool {
	if nid == t.local || via == t.local || via == nid {
		return false
	}
	if e, ok := t.entries[nid]; ok && e.direct {
		return false
	}
	// the relay itself must be directly connected, otherwise chains could
	// cycle or dangle
	if e, ok := t.entries[via]; !ok || !e.direct {
		return false
	}
	if _, ok := t.entries[nid]; !ok {
		prom.indirectRoutes.Inc()
	}
	t.entries[nid] = entry{via: via}
	prom.tableSize.Set(float64(len(t.entries)))
	return true
}

// Lookup resolves nid to a writable path, following at most one indirect
// hop (chains terminate at a direct entry by construction).
func (t *Table) Lookup(nid node.ID) (Path, bool) {
	e, ok := t.entries[nid]
	if !ok {
		return Path{}, false
	}
	if e.direct {
		return Path{NextHop: nid, Handle: e.handle}, true
	}
	relay, ok := t.entries[e.via]
	if !ok || !relay.direct {
		return Path{}, false
	}
	return Path{NextHop: e.via, Handle: relay.handle}, true
}

// LookupDirect is the reverse lookup used on connection close: which node
// was directly connected through hdl. Returns node.InvalidID if none.
func (t *Table) LookupDirect(hdl transport.Handle) node.ID {
	return t.byHandle[hdl]
}

func (t *Table) Reachable(nid node.ID) bool {
	_, ok := t.Lookup(nid)
	return ok
}

// EraseDirect drops the direct entry reached through hdl and every
// indirect entry that relied on it. It returns all nodes that became
// unreachable, direct node first; empty if hdl was not tracked.
func (t *Table) EraseDirect(hdl transport.Handle) []node.ID {
	nid, ok := t.byHandle[hdl]
	if !ok {
		return nil
	}
	lost := []node.ID{nid}
	delete(t.byHandle, hdl)
	delete(t.entries, nid)
	for other, e := range t.entries {
		if !e.direct && e.via == nid {
			delete(t.entries, other)
			lost = append(lost, other)
		}
	}
	prom.tableSize.Set(float64(len(t.entries)))
	return lost
}

// Erase removes whatever entry exists for nid (used when a node is
// purged through an indirect loss).
func (t *Table) Erase(nid node.ID) {
	if e, ok := t.entries[nid]; ok && e.direct {
		delete(t.byHandle, e.handle)
	}
	delete(t.entries, nid)
	prom.tableSize.Set(float64(len(t.entries)))
}

func (t *Table) Len() int { return len(t.entries) }

var prom struct {
	tableSize      prometheus.Gauge
	indirectRoutes prometheus.Counter
}

func init() {
	prom.tableSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "actornet",
		Subsystem: "routing",
		Name:      "table_size",
		Help:      "Number of nodes with a known route",
	})
	prom.indirectRoutes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "actornet",
		Subsystem: "routing",
		Name:      "indirect_routes_learned",
		Help:      "Number of indirect routes learned from payload decoding",
	})
}

func PrometheusRegister(registry prometheus.Registerer) error {
	if err := registry.Register(prom.tableSize); err != nil {
		return err
	}
	return registry.Register(prom.indirectRoutes)
}
