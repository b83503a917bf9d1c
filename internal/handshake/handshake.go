// Package handshake drives the fixed initialize/initialized/discovery
// exchange that gates every tool operation.
package handshake

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hostkit/toolhost/internal/errors"
	"github.com/hostkit/toolhost/internal/wire"
)

// State is the handshake progression. Failed is terminal and reachable
// from any non-terminal state.
type State int

const (
	NotStarted State = iota
	Initializing
	Initialized
	Discovering
	Ready
	Failed
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case Initializing:
		return "initializing"
	case Initialized:
		return "initialized"
	case Discovering:
		return "discovering"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Requester is the slice of a Connection the handshake needs.
type Requester interface {
	Request(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, error)
	Notify(method string, params any) error
}

// clientInfo identifies this host to providers.
var clientInfo = wire.ClientInfo{Name: "toolhost", Version: "0.1.0"}

// Session runs the handshake over one connection and remembers what the
// provider declared.
type Session struct {
	log     *slog.Logger
	conn    Requester
	timeout time.Duration

	mu    sync.Mutex
	state State
	info  *wire.ServerInfo
	caps  *wire.ServerCapabilities
}

// New creates a Session in NotStarted. timeout bounds each individual
// handshake request.
func New(log *slog.Logger, conn Requester, timeout time.Duration) *Session {
	return &Session{
		log:     log.With("component", "handshake"),
		conn:    conn,
		timeout: timeout,
		state:   NotStarted,
	}
}

// State returns the current handshake state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// ServerInfo returns what the provider reported during initialize, or nil
// before Ready.
func (s *Session) ServerInfo() *wire.ServerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.info
}

// Capabilities returns the provider's declared capabilities, or nil before
// Ready.
func (s *Session) Capabilities() *wire.ServerCapabilities {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.caps
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Run performs the full handshake: initialize request, initialized
// notification, then tool discovery. On success the session is Ready and
// the discovered tools are returned; zero tools is a valid success.
func (s *Session) Run(ctx context.Context) ([]wire.Tool, error) {
	s.setState(Initializing)

	params := wire.InitializeParams{
		ProtocolVersion: wire.ProtocolVersion,
		Capabilities:    wire.ClientCapabilities{},
		ClientInfo:      clientInfo,
	}

	raw, err := s.conn.Request(ctx, wire.MethodInitialize, params, s.timeout)
	if err != nil {
		s.setState(Failed)

		return nil, &errors.HandshakeError{Stage: "initialize", Err: err}
	}

	var result wire.InitializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		s.setState(Failed)

		return nil, &errors.HandshakeError{
			Stage: "initialize",
			Err:   fmt.Errorf("parse initialize result: %w", err),
		}
	}

	if result.ProtocolVersion == "" {
		s.setState(Failed)

		return nil, &errors.HandshakeError{
			Stage: "initialize",
			Err:   fmt.Errorf("response missing protocolVersion"),
		}
	}

	s.mu.Lock()
	s.state = Initialized
	s.info = &result.ServerInfo
	s.caps = &result.Capabilities
	s.mu.Unlock()

	s.log.Debug("Initialize complete",
		"server", result.ServerInfo.Name,
		"version", result.ServerInfo.Version,
		"protocol", result.ProtocolVersion)

	if err := s.conn.Notify(wire.MethodInitialized, nil); err != nil {
		s.setState(Failed)

		return nil, &errors.HandshakeError{Stage: "initialized", Err: err}
	}

	tools, err := s.discover(ctx)
	if err != nil {
		s.setState(Failed)

		return nil, err
	}

	s.setState(Ready)

	return tools, nil
}

// Rediscover refreshes the tool list without repeating initialization.
// Valid only once the session is Ready; used after a tools/list_changed
// notification.
func (s *Session) Rediscover(ctx context.Context) ([]wire.Tool, error) {
	if s.State() != Ready {
		return nil, fmt.Errorf("rediscover before handshake completed")
	}

	return s.discover(ctx)
}

// discover issues tools/list and decodes the descriptors.
func (s *Session) discover(ctx context.Context) ([]wire.Tool, error) {
	s.mu.Lock()
	if s.state != Ready {
		s.state = Discovering
	}
	s.mu.Unlock()

	raw, err := s.conn.Request(ctx, wire.MethodToolsList, nil, s.timeout)
	if err != nil {
		return nil, &errors.HandshakeError{Stage: "discover", Err: err}
	}

	var result wire.ToolsListResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &errors.HandshakeError{
			Stage: "discover",
			Err:   fmt.Errorf("parse tools/list result: %w", err),
		}
	}

	s.log.Debug("Discovery complete", "tools", len(result.Tools))

	return result.Tools, nil
}
