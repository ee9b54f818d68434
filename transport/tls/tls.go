// Package tls provides the mutually-authenticated TLS connecter and
// listener. Both sides present certificates signed by a shared CA.
package tls

import (
	"context"
	"crypto/tls"
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/actornet/actornet/config"
	"github.com/actornet/actornet/tlsconf"
	"github.com/actornet/actornet/transport"
)

type Connecter struct {
	address   string
	dialer    net.Dialer
	tlsConfig *tls.Config
}

var _ transport.Connecter = (*Connecter)(nil)

// NewConnecter builds a connecter that dials address, verifies the
// server certificate against the CA in caFile under serverCN, and
// authenticates with the cert/key pair.
func NewConnecter(address, serverCN, caFile, certFile, keyFile string) (*Connecter, error) {
	ca, err := tlsconf.ParseCAFile(caFile)
	if err != nil {
		return nil, errors.Wrap(err, "tls: cannot parse ca file")
	}
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, errors.Wrap(err, "tls: cannot load cert/key pair")
	}
	tlsConfig, err := tlsconf.ClientAuthClient(serverCN, ca, cert)
	if err != nil {
		return nil, errors.Wrap(err, "tls: cannot build client tls config")
	}
	return &Connecter{address: address, tlsConfig: tlsConfig}, nil
}

func (c *Connecter) Connect(ctx context.Context) (transport.Wire, error) {
	conn, err := c.dialer.DialContext(ctx, "tcp", c.address)
	if err != nil {
		return nil, errors.Wrapf(err, "tls: cannot dial %q", c.address)
	}
	return tls.Client(conn, c.tlsConfig), nil
}

type listener struct {
	al *tlsconf.ClientAuthListener
}

var _ transport.Listener = (*listener)(nil)

func (l *listener) Accept(ctx context.Context) (transport.Wire, error) {
	conn, cn, err := l.al.Accept()
	if err != nil {
		return nil, err
	}
	transport.GetLogger(ctx).WithField("client_cn", cn).Debug("accepted authenticated connection")
	return conn, nil
}

func (l *listener) Addr() net.Addr { return l.al.Addr() }

func (l *listener) Close() error { return l.al.Close() }

// ListenerFactoryFromConfig builds the listener factory for a tls serve
// stanza and reports the port the broker should associate with it.
func ListenerFactoryFromConfig(in *config.TLSServe) (transport.ListenerFactory, uint16, error) {
	if in.Ca == "" || in.Cert == "" || in.Key == "" {
		return nil, 0, errors.New("tls: fields 'ca', 'cert' and 'key' must be specified")
	}
	_, portStr, err := net.SplitHostPort(in.Listen)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "tls: invalid listen address %q", in.Listen)
	}
	port64, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "tls: invalid listen port %q", portStr)
	}

	clientCA, err := tlsconf.ParseCAFile(in.Ca)
	if err != nil {
		return nil, 0, errors.Wrap(err, "tls: cannot parse ca file")
	}
	serverCert, err := tls.LoadX509KeyPair(in.Cert, in.Key)
	if err != nil {
		return nil, 0, errors.Wrap(err, "tls: cannot load cert/key pair")
	}
	handshakeTimeout := in.HandshakeTimeout
	if handshakeTimeout <= 0 {
		handshakeTimeout = 10 * time.Second
	}

	lf := func() (transport.Listener, error) {
		nl, err := net.Listen("tcp", in.Listen)
		if err != nil {
			return nil, errors.Wrapf(err, "tls: cannot listen on %q", in.Listen)
		}
		return &listener{tlsconf.NewClientAuthListener(nl, clientCA, serverCert, handshakeTimeout)}, nil
	}
	return lf, uint16(port64), nil
}
