// Package tlsconf builds the mutually-authenticated TLS configurations
// used by the tls transport: both sides present certificates signed by a
// shared CA, and the server maps the client certificate's common name to
// a peer identity.
package tlsconf

import (
	"crypto/tls"
	"crypto/x509"
	"io/ioutil"
	"net"
	"time"

	"github.com/pkg/errors"
)

func ParseCAFile(certfile string) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	pem, err := ioutil.ReadFile(certfile)
	if err != nil {
		return nil, err
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.Errorf("cannot parse PEM data in %q", certfile)
	}
	return pool, nil
}

// ClientAuthListener wraps a net.Listener with server-side TLS that
// requires and verifies a client certificate. Accept forces the
// handshake under a timeout so a stalling client cannot block the
// accept loop indefinitely.
type ClientAuthListener struct {
	l                net.Listener
	handshakeTimeout time.Duration
}

func NewClientAuthListener(l net.Listener, ca *x509.CertPool, serverCert tls.Certificate, handshakeTimeout time.Duration) *ClientAuthListener {
	if ca == nil {
		panic("tlsconf: listener requires a client CA")
	}
	if serverCert.Certificate == nil || serverCert.PrivateKey == nil {
		panic("tlsconf: listener requires a complete server certificate")
	}
	tlsConf := tls.Config{
		Certificates:             []tls.Certificate{serverCert},
		ClientCAs:                ca,
		ClientAuth:               tls.RequireAndVerifyClientCert,
		PreferServerCipherSuites: true,
	}
	return &ClientAuthListener{
		l:                tls.NewListener(l, &tlsConf),
		handshakeTimeout: handshakeTimeout,
	}
}

// Accept returns the connection and the client certificate's common
// name. The handshake has already completed when Accept returns.
func (l *ClientAuthListener) Accept() (net.Conn, string, error) {
	c, err := l.l.Accept()
	if err != nil {
		return nil, "", err
	}
	tlsConn, ok := c.(*tls.Conn)
	if !ok {
		c.Close()
		return nil, "", errors.New("tlsconf: accepted connection is not TLS")
	}
	cn, err := func() (string, error) {
		if err := tlsConn.SetDeadline(time.Now().Add(l.handshakeTimeout)); err != nil {
			return "", err
		}
		if err := tlsConn.Handshake(); err != nil {
			return "", errors.Wrap(err, "tls handshake")
		}
		if err := tlsConn.SetDeadline(time.Time{}); err != nil {
			return "", err
		}
		peerCerts := tlsConn.ConnectionState().PeerCertificates
		if len(peerCerts) != 1 {
			return "", errors.New("tlsconf: client must present exactly one certificate")
		}
		return peerCerts[0].Subject.CommonName, nil
	}()
	if err != nil {
		tlsConn.Close()
		return nil, "", err
	}
	return tlsConn, cn, nil
}

func (l *ClientAuthListener) Addr() net.Addr { return l.l.Addr() }

func (l *ClientAuthListener) Close() error { return l.l.Close() }

// ClientAuthClient builds the dialing-side config: present clientCert
// and verify the server against rootCA under serverName.
func ClientAuthClient(serverName string, rootCA *x509.CertPool, clientCert tls.Certificate) (*tls.Config, error) {
	if serverName == "" {
		panic("tlsconf: client requires the server name")
	}
	if rootCA == nil {
		panic("tlsconf: client requires a root CA")
	}
	if clientCert.Certificate == nil || clientCert.PrivateKey == nil {
		panic("tlsconf: client requires a complete client certificate")
	}
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{clientCert},
		RootCAs:      rootCA,
		ServerName:   serverName,
	}
	tlsConfig.BuildNameToCertificate()
	return tlsConfig, nil
}
