package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/actornet/actornet/node"
	"github.com/actornet/actornet/transport"
)

func TestDirectRouteLifecycle(t *testing.T) {
	local := node.NewID()
	b := node.NewID()
	tbl := NewTable(local)

	tbl.AddDirect(b, transport.Handle(1))
	p, ok := tbl.Lookup(b)
	require.True(t, ok)
	assert.Equal(t, b, p.NextHop)
	assert.Equal(t, transport.Handle(1), p.Handle)
	assert.True(t, tbl.Reachable(b))
	assert.Equal(t, b, tbl.LookupDirect(transport.Handle(1)))

	lost := tbl.EraseDirect(transport.Handle(1))
	assert.Equal(t, []node.ID{b}, lost)
	assert.False(t, tbl.Reachable(b))
	_, ok = tbl.Lookup(b)
	assert.False(t, ok)
}

func TestIndirectRoute(t *testing.T) {
	local := node.NewID()
	b := node.NewID()
	c := node.NewID()
	tbl := NewTable(local)

	// cannot relay through an unknown node
	assert.False(t, tbl.AddIndirect(b, c))

	tbl.AddDirect(b, transport.Handle(1))
	require.True(t, tbl.AddIndirect(b, c))

	p, ok := tbl.Lookup(c)
	require.True(t, ok)
	assert.Equal(t, b, p.NextHop)
	assert.Equal(t, transport.Handle(1), p.Handle)
}

func TestIndirectDoesNotShadowDirect(t *testing.T) {
	local := node.NewID()
	b := node.NewID()
	c := node.NewID()
	tbl := NewTable(local)

	tbl.AddDirect(b, transport.Handle(1))
	tbl.AddDirect(c, transport.Handle(2))
	assert.False(t, tbl.AddIndirect(b, c))

	p, _ := tbl.Lookup(c)
	assert.Equal(t, c, p.NextHop)
}

func TestDirectOverwritesIndirect(t *testing.T) {
	local := node.NewID()
	b := node.NewID()
	c := node.NewID()
	tbl := NewTable(local)

	tbl.AddDirect(b, transport.Handle(1))
	require.True(t, tbl.AddIndirect(b, c))
	tbl.AddDirect(c, transport.Handle(2))

	p, ok := tbl.Lookup(c)
	require.True(t, ok)
	assert.Equal(t, c, p.NextHop)

	// losing b must not take c down anymore
	lost := tbl.EraseDirect(transport.Handle(1))
	assert.Equal(t, []node.ID{b}, lost)
	assert.True(t, tbl.Reachable(c))
}

func TestEraseDirectCascadesToIndirect(t *testing.T) {
	local := node.NewID()
	b := node.NewID()
	c := node.NewID()
	d := node.NewID()
	tbl := NewTable(local)

	tbl.AddDirect(b, transport.Handle(1))
	require.True(t, tbl.AddIndirect(b, c))
	require.True(t, tbl.AddIndirect(b, d))

	lost := tbl.EraseDirect(transport.Handle(1))
	require.Len(t, lost, 3)
	assert.Equal(t, b, lost[0]) // direct node first
	assert.ElementsMatch(t, []node.ID{b, c, d}, lost)
	assert.False(t, tbl.Reachable(c))
	assert.False(t, tbl.Reachable(d))
	assert.Equal(t, 0, tbl.Len())
}

func TestNeverRouteToSelf(t *testing.T) {
	local := node.NewID()
	b := node.NewID()
	tbl := NewTable(local)
	tbl.AddDirect(b, transport.Handle(1))

	assert.False(t, tbl.AddIndirect(b, local))
	assert.Panics(t, func() { tbl.AddDirect(local, transport.Handle(2)) })
}

func TestEraseDirectUnknownHandleIsNoop(t *testing.T) {
	tbl := NewTable(node.NewID())
	assert.Nil(t, tbl.EraseDirect(transport.Handle(99)))
}
