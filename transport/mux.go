package transport

import (
	"bufio"
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/actornet/actornet/logger"
	"github.com/actornet/actornet/util/envconst"
)

// Mux is the production Multiplexer: one reader goroutine per
// connection, buffered writers, events posted into a single channel.
//
// Writes and flushes are only ever issued by the broker goroutine, so
// the per-connection write buffer needs no lock. The connection map is
// shared with reader goroutines and accept loops and is mutex-protected.
type Mux struct {
	log    logger.Logger
	events chan<- Event

	mtx   sync.Mutex
	conns map[Handle]*muxConn
	next  uint64
}

type muxConn struct {
	h    Handle
	wire Wire
	bw   *bufio.Writer
	// arm carries the size of the next exact read; capacity 1 because at
	// most one read may be armed at a time
	arm      chan int
	stop     chan struct{}
	stopOnce sync.Once
}

var _ Multiplexer = (*Mux)(nil)

func NewMux(events chan<- Event, log logger.Logger) *Mux {
	return &Mux{
		log:    log,
		events: events,
		conns:  make(map[Handle]*muxConn),
	}
}

func (m *Mux) AddConn(w Wire, localPort uint16) (Handle, error) {
	if w == nil {
		return InvalidHandle, errors.New("transport: cannot add nil wire")
	}
	m.mtx.Lock()
	m.next++
	c := &muxConn{
		h:    Handle(m.next),
		wire: w,
		bw:   bufio.NewWriterSize(w, envconst.Int("ACTORNET_TRANSPORT_WRITE_BUF", 1<<16)),
		arm:  make(chan int, 1),
		stop: make(chan struct{}),
	}
	m.conns[c.h] = c
	m.mtx.Unlock()
	prom.openConnections.Inc()
	go m.readLoop(c)
	return c.h, nil
}

func (m *Mux) getConn(h Handle) *muxConn {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.conns[h]
}

func (m *Mux) removeConn(c *muxConn) (removed bool) {
	m.mtx.Lock()
	if _, ok := m.conns[c.h]; ok {
		delete(m.conns, c.h)
		removed = true
	}
	m.mtx.Unlock()
	if removed {
		prom.openConnections.Dec()
	}
	return removed
}

func (m *Mux) readLoop(c *muxConn) {
	for {
		var n int
		select {
		case <-c.stop:
			return
		case n = <-c.arm:
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(c.wire, buf); err != nil {
			select {
			case <-c.stop:
				// broker-initiated close, it already forgot about us
				return
			default:
			}
			debug("handle %d: read error: %s", c.h, err)
			c.stopOnce.Do(func() { close(c.stop) })
			if m.removeConn(c) {
				c.wire.Close()
				m.events <- ConnectionClosed{Handle: c.h, Err: err}
			}
			return
		}
		prom.bytesRead.Add(float64(n))
		m.events <- NewData{Handle: c.h, Data: buf}
	}
}

// ConfigureRead arms the next exact-size read on h. Arming twice without
// an intervening NewData event violates the connection state machine and
// panics. Arming an already-closed handle is a harmless no-op (the close
// event may still be in flight towards the broker).
func (m *Mux) ConfigureRead(h Handle, n int) {
	c := m.getConn(h)
	if c == nil {
		debug("handle %d: configure read on unknown handle", h)
		return
	}
	select {
	case c.arm <- n:
	default:
		panic("transport: read already armed for this handle")
	}
}

func (m *Mux) Write(h Handle, p []byte) error {
	c := m.getConn(h)
	if c == nil {
		return errors.Errorf("transport: write to unknown handle %d", h)
	}
	n, err := c.bw.Write(p)
	prom.bytesWritten.Add(float64(n))
	return errors.Wrap(err, "transport: buffered write")
}

func (m *Mux) Flush(h Handle) error {
	c := m.getConn(h)
	if c == nil {
		return errors.Errorf("transport: flush of unknown handle %d", h)
	}
	return errors.Wrap(c.bw.Flush(), "transport: flush")
}

// Close tears down h at the broker's request. No ConnectionClosed event
// is emitted; the broker purges its own state before calling this.
func (m *Mux) Close(h Handle) {
	c := m.getConn(h)
	if c == nil {
		return
	}
	c.stopOnce.Do(func() { close(c.stop) })
	if m.removeConn(c) {
		c.wire.Close()
	}
}

// Serve runs the accept loop for l, registering every inbound wire and
// posting NewConnection events. It returns when ctx is canceled or the
// listener fails, emitting AcceptorClosed in the latter case.
func (m *Mux) Serve(ctx context.Context, l Listener, localPort uint16) error {
	go func() {
		<-ctx.Done()
		l.Close()
	}()
	for {
		w, err := l.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.log.WithError(err).Error("accept error, closing acceptor")
			m.events <- AcceptorClosed{LocalPort: localPort, Err: err}
			return err
		}
		h, err := m.AddConn(w, localPort)
		if err != nil {
			w.Close()
			continue
		}
		m.events <- NewConnection{Handle: h, LocalPort: localPort}
	}
}
