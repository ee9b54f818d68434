// Package tcp provides the TCP connecter and listener used by the
// actornet daemon.
package tcp

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/actornet/actornet/config"
	"github.com/actornet/actornet/transport"
)

type Connecter struct {
	Address     string
	DialTimeout time.Duration

	dialer net.Dialer
}

var _ transport.Connecter = (*Connecter)(nil)

func NewConnecter(address string) *Connecter {
	return &Connecter{Address: address}
}

func (c *Connecter) Connect(ctx context.Context) (transport.Wire, error) {
	if c.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.DialTimeout)
		defer cancel()
	}
	conn, err := c.dialer.DialContext(ctx, "tcp", c.Address)
	if err != nil {
		return nil, errors.Wrapf(err, "tcp: cannot dial %q", c.Address)
	}
	return conn, nil
}

type listener struct {
	nl net.Listener
}

var _ transport.Listener = (*listener)(nil)

func (l *listener) Accept(ctx context.Context) (transport.Wire, error) {
	conn, err := l.nl.Accept()
	if err != nil {
		return nil, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetKeepAlive(true)
	}
	return conn, nil
}

func (l *listener) Addr() net.Addr { return l.nl.Addr() }

func (l *listener) Close() error { return l.nl.Close() }

// ListenerFactoryFromConfig builds the listener factory for a tcp serve
// stanza and reports the port the broker should associate with it.
func ListenerFactoryFromConfig(in *config.TCPServe) (transport.ListenerFactory, uint16, error) {
	_, portStr, err := net.SplitHostPort(in.Listen)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "tcp: invalid listen address %q", in.Listen)
	}
	port64, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "tcp: invalid listen port %q", portStr)
	}
	lf := func() (transport.Listener, error) {
		nl, err := net.Listen("tcp", in.Listen)
		if err != nil {
			return nil, errors.Wrapf(err, "tcp: cannot listen on %q", in.Listen)
		}
		return &listener{nl}, nil
	}
	return lf, uint16(port64), nil
}
