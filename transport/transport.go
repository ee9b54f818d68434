// Package transport defines the byte-level seam between the broker and
// the network: connection handles, the sealed set of events the broker
// consumes, and the Multiplexer that owns socket I/O goroutines.
//
// The broker never touches sockets directly. It arms exact-size reads and
// queues writes through the Multiplexer; the Multiplexer hands everything
// back as events posted into the broker's mailbox channel.
package transport

import (
	"context"
	"io"
	"net"

	"github.com/actornet/actornet/logger"
)

// Handle identifies one open connection. 0 is never assigned.
type Handle uint64

const InvalidHandle Handle = 0

// Wire is the minimal connection surface the multiplexer needs. net.Conn
// satisfies it.
type Wire interface {
	io.ReadWriteCloser
}

// Connecter dials the wire for an outbound connection.
type Connecter interface {
	Connect(ctx context.Context) (Wire, error)
}

// Listener accepts inbound wires; like net.Listener but context-aware.
type Listener interface {
	Accept(ctx context.Context) (Wire, error)
	Addr() net.Addr
	Close() error
}

type ListenerFactory func() (Listener, error)

// Event is the sealed set of notifications delivered to the broker
// mailbox. The broker dispatches over the concrete types exhaustively.
type Event interface {
	event()
}

// NewConnection: an inbound connection was accepted on the listener bound
// to LocalPort.
type NewConnection struct {
	Handle    Handle
	LocalPort uint16
}

// NewData: the previously armed exact-size read completed.
type NewData struct {
	Handle Handle
	Data   []byte
}

// ConnectionClosed: the peer closed the connection or reading failed.
// Not emitted for closes the broker itself requested.
type ConnectionClosed struct {
	Handle Handle
	Err    error
}

// AcceptorClosed: the listener on LocalPort stopped accepting.
type AcceptorClosed struct {
	LocalPort uint16
	Err       error
}

func (NewConnection) event()    {}
func (NewData) event()          {}
func (ConnectionClosed) event() {}
func (AcceptorClosed) event()   {}

// Multiplexer is the broker's view of the I/O layer.
//
// ConfigureRead arms exactly one read of n bytes; arming while a read is
// already armed is a programming error. Write only queues; callers must
// Flush a handle before they may assume delivery.
type Multiplexer interface {
	AddConn(w Wire, localPort uint16) (Handle, error)
	ConfigureRead(h Handle, n int)
	Write(h Handle, p []byte) error
	Flush(h Handle) error
	Close(h Handle)
	Serve(ctx context.Context, l Listener, localPort uint16) error
}

type contextKey int

const contextKeyLog contextKey = 0

type Logger = logger.Logger

func WithLogger(ctx context.Context, log Logger) context.Context {
	return context.WithValue(ctx, contextKeyLog, log)
}

func GetLogger(ctx context.Context) Logger {
	if log, ok := ctx.Value(contextKeyLog).(Logger); ok {
		return log
	}
	return logger.NewNullLogger()
}
