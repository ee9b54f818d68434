package config

import (
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, input string) *Config {
	t.Helper()
	conf, err := ParseConfigBytes([]byte(input))
	require.NoError(t, err)
	return conf
}

func TestSampleConfigsParse(t *testing.T) {
	paths, err := filepath.Glob("samples/*")
	require.NoError(t, err)
	require.NotEmpty(t, paths)
	for _, p := range paths {
		t.Run(p, func(t *testing.T) {
			bytes, err := ioutil.ReadFile(p)
			require.NoError(t, err)
			_, err = ParseConfigBytes(bytes)
			require.NoError(t, err)
		})
	}
}

func TestListenStanza(t *testing.T) {
	conf := testConfig(t, `
listen:
  - serve:
      type: tcp
      listen: ":7171"
    publish:
      actor: 42
      signatures: ["calc@v1"]
`)
	require.Len(t, conf.Listen, 1)
	tcp, ok := conf.Listen[0].Serve.Ret.(*TCPServe)
	require.True(t, ok)
	assert.Equal(t, ":7171", tcp.Listen)
	require.NotNil(t, conf.Listen[0].Publish)
	assert.Equal(t, uint64(42), conf.Listen[0].Publish.Actor)
}

func TestTLSServeStanza(t *testing.T) {
	conf := testConfig(t, `
listen:
  - serve:
      type: tls
      listen: ":7172"
      ca: /tmp/ca.crt
      cert: /tmp/node.crt
      key: /tmp/node.key
`)
	require.Len(t, conf.Listen, 1)
	tls, ok := conf.Listen[0].Serve.Ret.(*TLSServe)
	require.True(t, ok)
	assert.Equal(t, ":7172", tls.Listen)
	assert.Equal(t, "/tmp/ca.crt", tls.Ca)
	assert.Equal(t, 10*time.Second, tls.HandshakeTimeout)
}

func TestGlobalDefaults(t *testing.T) {
	conf := testConfig(t, `
listen: []
`)
	require.NotNil(t, conf.Global)
	require.NotNil(t, conf.Global.Broker)
	assert.Equal(t, 10*time.Second, conf.Global.Broker.ConnectTimeout)
	assert.Equal(t, 1024, conf.Global.Broker.MailboxSize)
	require.NotNil(t, conf.Global.Logging)
	require.Len(t, *conf.Global.Logging, 1)
}

func TestUnknownServeTypeRejected(t *testing.T) {
	_, err := ParseConfigBytes([]byte(`
listen:
  - serve:
      type: carrier-pigeon
`))
	require.Error(t, err)
}

func TestEmptyConfigRejected(t *testing.T) {
	_, err := ParseConfigBytes([]byte("# nothing here\n"))
	require.Error(t, err)
}
