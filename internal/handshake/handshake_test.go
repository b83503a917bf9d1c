package handshake

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hostkit/toolhost/internal/errors"
	"github.com/hostkit/toolhost/internal/wire"
)

// scriptedConn answers handshake requests from a per-method script and
// records every call it saw.
type scriptedConn struct {
	responses map[string]string
	errs      map[string]error
	notifyErr error

	requests []string
	notifies []string
}

func (s *scriptedConn) Request(
	_ context.Context, method string, _ any, _ time.Duration,
) (json.RawMessage, error) {
	s.requests = append(s.requests, method)

	if err := s.errs[method]; err != nil {
		return nil, err
	}

	resp, ok := s.responses[method]
	if !ok {
		return nil, fmt.Errorf("unscripted method %q", method)
	}

	return json.RawMessage(resp), nil
}

func (s *scriptedConn) Notify(method string, _ any) error {
	s.notifies = append(s.notifies, method)

	return s.notifyErr
}

const initializeOK = `{
	"protocolVersion": "2024-11-05",
	"capabilities": {"tools": {"listChanged": true}},
	"serverInfo": {"name": "test-provider", "version": "1.2.3"}
}`

func newTestSession(conn *scriptedConn) *Session {
	return New(slog.Default(), conn, time.Second)
}

// TestRun_Success tests the full happy path: initialize, initialized,
// tools/list, ending Ready with the provider's tools and identity.
func TestRun_Success(t *testing.T) {
	conn := &scriptedConn{responses: map[string]string{
		wire.MethodInitialize: initializeOK,
		wire.MethodToolsList:  `{"tools":[{"name":"echo","description":"Echoes input"}]}`,
	}}

	sess := newTestSession(conn)
	require.Equal(t, NotStarted, sess.State())

	tools, err := sess.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, Ready, sess.State())
	require.Len(t, tools, 1)
	require.Equal(t, "echo", tools[0].Name)

	// Strict message order: initialized goes out between the two requests.
	require.Equal(t, []string{wire.MethodInitialize, wire.MethodToolsList}, conn.requests)
	require.Equal(t, []string{wire.MethodInitialized}, conn.notifies)

	info := sess.ServerInfo()
	require.NotNil(t, info)
	require.Equal(t, "test-provider", info.Name)
	require.Equal(t, "1.2.3", info.Version)

	caps := sess.Capabilities()
	require.NotNil(t, caps)
	require.NotNil(t, caps.Tools)
	require.True(t, caps.Tools.ListChanged)
}

// TestRun_ZeroTools tests that an empty tool list is still a successful
// handshake.
func TestRun_ZeroTools(t *testing.T) {
	conn := &scriptedConn{responses: map[string]string{
		wire.MethodInitialize: initializeOK,
		wire.MethodToolsList:  `{"tools":[]}`,
	}}

	sess := newTestSession(conn)

	tools, err := sess.Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, tools)
	require.Equal(t, Ready, sess.State())
}

// TestRun_InitializeError tests that a failed initialize ends in Failed
// with a stage-tagged error and no further traffic.
func TestRun_InitializeError(t *testing.T) {
	conn := &scriptedConn{errs: map[string]error{
		wire.MethodInitialize: fmt.Errorf("method not supported"),
	}}

	sess := newTestSession(conn)

	_, err := sess.Run(context.Background())

	var hs *errors.HandshakeError
	require.ErrorAs(t, err, &hs)
	require.Equal(t, "initialize", hs.Stage)

	require.Equal(t, Failed, sess.State())
	require.Empty(t, conn.notifies, "initialized must not be sent after a failed initialize")
	require.Equal(t, []string{wire.MethodInitialize}, conn.requests)
}

// TestRun_MalformedInitializeResult tests that an unparseable or
// incomplete initialize result fails the handshake.
func TestRun_MalformedInitializeResult(t *testing.T) {
	for name, resp := range map[string]string{
		"not json":                `{{{`,
		"missing protocolVersion": `{"serverInfo":{"name":"x","version":"1"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			conn := &scriptedConn{responses: map[string]string{
				wire.MethodInitialize: resp,
			}}

			sess := newTestSession(conn)

			_, err := sess.Run(context.Background())

			var hs *errors.HandshakeError
			require.ErrorAs(t, err, &hs)
			require.Equal(t, "initialize", hs.Stage)
			require.Equal(t, Failed, sess.State())
		})
	}
}

// TestRun_InitializedNotifyError tests that a write failure on the
// initialized notification fails the handshake before discovery.
func TestRun_InitializedNotifyError(t *testing.T) {
	conn := &scriptedConn{
		responses: map[string]string{wire.MethodInitialize: initializeOK},
		notifyErr: fmt.Errorf("pipe closed"),
	}

	sess := newTestSession(conn)

	_, err := sess.Run(context.Background())

	var hs *errors.HandshakeError
	require.ErrorAs(t, err, &hs)
	require.Equal(t, "initialized", hs.Stage)
	require.Equal(t, Failed, sess.State())
	require.Equal(t, []string{wire.MethodInitialize}, conn.requests,
		"tools/list must not be sent after a failed notification")
}

// TestRun_DiscoverError tests that a failed tools/list fails the whole
// handshake even though initialization succeeded.
func TestRun_DiscoverError(t *testing.T) {
	conn := &scriptedConn{
		responses: map[string]string{wire.MethodInitialize: initializeOK},
		errs:      map[string]error{wire.MethodToolsList: fmt.Errorf("boom")},
	}

	sess := newTestSession(conn)

	_, err := sess.Run(context.Background())

	var hs *errors.HandshakeError
	require.ErrorAs(t, err, &hs)
	require.Equal(t, "discover", hs.Stage)
	require.Equal(t, Failed, sess.State())
}

// TestRediscover tests that a Ready session can refresh its tool list
// without re-initializing, and that Rediscover is rejected before Ready.
func TestRediscover(t *testing.T) {
	conn := &scriptedConn{responses: map[string]string{
		wire.MethodInitialize: initializeOK,
		wire.MethodToolsList:  `{"tools":[{"name":"a"}]}`,
	}}

	sess := newTestSession(conn)

	_, err := sess.Rediscover(context.Background())
	require.Error(t, err, "rediscover before Run must fail")

	_, err = sess.Run(context.Background())
	require.NoError(t, err)

	conn.responses[wire.MethodToolsList] = `{"tools":[{"name":"a"},{"name":"b"}]}`

	tools, err := sess.Rediscover(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 2)

	require.Equal(t, Ready, sess.State())
	require.Equal(t,
		[]string{wire.MethodInitialize, wire.MethodToolsList, wire.MethodToolsList},
		conn.requests)
	require.Equal(t, []string{wire.MethodInitialized}, conn.notifies,
		"rediscover must not repeat initialization")
}
