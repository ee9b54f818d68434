package proxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/actornet/actornet/logger"
	"github.com/actornet/actornet/node"
)

type recordingForwarder struct {
	src, dest node.Address
	mid       node.MessageID
	payload   []byte
	calls     int
}

func (f *recordingForwarder) Forward(src, dest node.Address, mid node.MessageID, payload []byte) {
	f.src, f.dest, f.mid, f.payload = src, dest, mid, payload
	f.calls++
}

type fakeBackend struct {
	fwd     Forwarder
	refuse  bool
	created int
}

func (b *fakeBackend) MakeProxy(nid node.ID, aid node.ActorID) *Proxy {
	if b.refuse {
		return nil
	}
	b.created++
	return New(node.Address{Node: nid, Actor: aid}, b.fwd, nil)
}

func newTestRegistry(t *testing.T) (*Registry, *fakeBackend, *recordingForwarder) {
	fwd := &recordingForwarder{}
	backend := &fakeBackend{fwd: fwd}
	return NewRegistry(backend, logger.NewTestLogger(t)), backend, fwd
}

func TestGetOrPutIdempotent(t *testing.T) {
	r, backend, _ := newTestRegistry(t)
	nid := node.NewID()

	p1 := r.GetOrPut(nid, 7)
	require.NotNil(t, p1)
	p2 := r.GetOrPut(nid, 7)
	assert.True(t, p1 == p2)
	assert.Equal(t, 1, backend.created)
	assert.Equal(t, 1, r.Count())
}

func TestGetOrPutBackendRefusal(t *testing.T) {
	r, backend, _ := newTestRegistry(t)
	backend.refuse = true

	assert.Nil(t, r.GetOrPut(node.NewID(), 7))
	assert.Equal(t, 0, r.Count())
}

func TestKillIdempotent(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	nid := node.NewID()
	p := r.GetOrPut(nid, 7)
	require.NotNil(t, p)

	var reasons []node.Reason
	p.OnDown(func(rsn node.Reason) { reasons = append(reasons, rsn) })

	r.Kill(nid, 7, node.ReasonRemoteLinkUnreachable)
	r.Kill(nid, 7, node.ReasonNormal) // no-op

	require.Len(t, reasons, 1)
	assert.Equal(t, node.ReasonRemoteLinkUnreachable, reasons[0])
	rsn, dead := p.Down()
	assert.True(t, dead)
	assert.Equal(t, node.ReasonRemoteLinkUnreachable, rsn)
	assert.Equal(t, 0, r.Count())
}

func TestOnDownAfterDeathFiresImmediately(t *testing.T) {
	fwd := &recordingForwarder{}
	p := New(node.Address{Node: node.NewID(), Actor: 1}, fwd, nil)
	p.Kill(node.ReasonNormal)

	fired := false
	p.OnDown(func(rsn node.Reason) {
		fired = true
		assert.Equal(t, node.ReasonNormal, rsn)
	})
	assert.True(t, fired)
}

func TestEnqueueForwards(t *testing.T) {
	fwd := &recordingForwarder{}
	dest := node.Address{Node: node.NewID(), Actor: 9}
	p := New(dest, fwd, nil)

	src := node.Address{Node: node.NewID(), Actor: 1}
	p.Enqueue(src, node.MakeRequest(5), []byte("hi"))

	assert.Equal(t, 1, fwd.calls)
	assert.Equal(t, src, fwd.src)
	assert.Equal(t, dest, fwd.dest)
	assert.Equal(t, []byte("hi"), fwd.payload)
}

func TestReleaseSchedulesErase(t *testing.T) {
	released := 0
	p := New(node.Address{Node: node.NewID(), Actor: 1}, &recordingForwarder{}, func() { released++ })

	p.Acquire()
	p.Release()
	assert.Equal(t, 0, released)
	p.Release() // creation reference
	assert.Equal(t, 1, released)

	assert.Panics(t, func() { p.Release() })
	assert.Panics(t, func() { p.Acquire() })
}

func TestEraseNodeBulk(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	nid := node.NewID()
	other := node.NewID()
	r.GetOrPut(nid, 1)
	r.GetOrPut(nid, 2)
	r.GetOrPut(other, 3)

	require.Len(t, r.GetAll(nid), 2)
	r.EraseNode(nid)
	assert.Nil(t, r.GetAll(nid))
	assert.Equal(t, 1, r.Count())
	assert.NotNil(t, r.Get(other, 3))
}
