package supervisor

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/hostkit/toolhost/internal/config"
	"github.com/hostkit/toolhost/internal/conn"
	"github.com/hostkit/toolhost/internal/errors"
	"github.com/hostkit/toolhost/internal/handshake"
	"github.com/hostkit/toolhost/internal/subprocess"
	"github.com/hostkit/toolhost/internal/wire"
)

// Status is a server's lifecycle state.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusError    Status = "error"
)

// Transport is the process seam used by a Supervisor. Satisfied by
// *subprocess.Process; tests inject scripted fakes.
type Transport interface {
	conn.Transport

	// Start spawns the underlying process.
	Start() error

	// Stop terminates it: graceful signal, grace period, then force.
	Stop(grace time.Duration) error

	// Done is closed once the process has been reaped.
	Done() <-chan struct{}

	// Err reports how the process exited, if abnormally.
	Err() error

	// Stderr returns captured diagnostic output.
	Stderr() string
}

// Factory builds the transport for one start attempt.
type Factory func(log *slog.Logger, cfg config.ServerConfig) Transport

// DefaultFactory spawns a real child process.
func DefaultFactory(log *slog.Logger, cfg config.ServerConfig) Transport {
	return subprocess.New(log, cfg.Command, cfg.Args, cfg.Env)
}

// Snapshot is a copy of a server's observable state. Callers never see the
// live record.
type Snapshot struct {
	ID         string
	Name       string
	Status     Status
	Pid        int
	Tools      []wire.Tool
	ServerInfo *wire.ServerInfo
	LastError  string
}

// Supervisor owns one configured server: its process, connection,
// handshake session, and discovered tools.
type Supervisor struct {
	log      *slog.Logger
	cfg      config.ServerConfig
	timeouts config.Timeouts
	factory  Factory

	mu        sync.Mutex
	status    Status
	lastErr   string
	tools     []wire.Tool
	info      *wire.ServerInfo
	conn      *conn.Connection
	transport Transport
	session   session
	gen       int // start generation; stale watchers and rediscoveries bail out
}

// session is the slice of the handshake package the supervisor drives.
// Declared as an interface so handshake behavior can be scripted in tests.
type session interface {
	Run(ctx context.Context) ([]wire.Tool, error)
	Rediscover(ctx context.Context) ([]wire.Tool, error)
	ServerInfo() *wire.ServerInfo
}

// newSession is a seam so tests can script handshake behavior.
var newSession = func(log *slog.Logger, c *conn.Connection, timeout time.Duration) session {
	return handshake.New(log, c, timeout)
}

// New creates a Supervisor in the Stopped state.
func New(log *slog.Logger, cfg config.ServerConfig, timeouts config.Timeouts, factory Factory) *Supervisor {
	if factory == nil {
		factory = DefaultFactory
	}

	return &Supervisor{
		log:      log.With("component", "supervisor", "server", cfg.ID),
		cfg:      cfg,
		timeouts: timeouts.WithDefaults(),
		factory:  factory,
		status:   StatusStopped,
	}
}

// Config returns the immutable launch configuration.
func (s *Supervisor) Config() config.ServerConfig {
	return s.cfg
}

// Start spawns the process and runs the handshake. No-op when already
// Running. The whole attempt (spawn + handshake + discovery) is bounded by
// the start timeout; any failure leaves the server in Error with lastError
// set and no live process behind.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()

	switch s.status {
	case StatusRunning:
		s.mu.Unlock()

		return nil
	case StatusStarting:
		s.mu.Unlock()

		return errors.ErrStartInProgress
	}

	s.status = StatusStarting
	s.lastErr = ""
	s.gen++
	gen := s.gen
	transport := s.factory(s.log, s.cfg)
	s.transport = transport
	s.mu.Unlock()

	startCtx, cancel := context.WithTimeout(ctx, s.timeouts.Start)
	defer cancel()

	if err := transport.Start(); err != nil {
		s.failStart(gen, err, nil)

		return err
	}

	connection := conn.New(s.log, transport)
	sess := newSession(s.log, connection, s.timeouts.Handshake)

	connection.OnNotification(func(method string, _ json.RawMessage) {
		if method == wire.MethodToolsListChanged {
			go s.rediscover(gen)
		} else {
			s.log.Debug("Ignoring notification", "method", method)
		}
	})

	connection.Start()

	tools, err := sess.Run(startCtx)
	if err != nil {
		// The child may still be alive after a protocol-level failure;
		// it must not be leaked.
		s.failStart(gen, err, transport)

		return err
	}

	s.mu.Lock()

	if s.gen != gen {
		// A concurrent Stop or Remove won the race. Its own Stop may have
		// landed before the process was spawned, so terminate it here too
		// rather than leave an orphan running.
		s.mu.Unlock()

		_ = transport.Stop(s.timeouts.StopGrace)

		return errors.ErrConnectionClosed
	}

	s.status = StatusRunning
	s.tools = tools
	s.info = sess.ServerInfo()
	s.conn = connection
	s.session = sess
	s.mu.Unlock()

	s.log.Info("Server running", "tools", len(tools))

	go s.watchExit(gen, transport)

	return nil
}

// failStart records a failed start attempt and tears down whatever part of
// the process came up.
func (s *Supervisor) failStart(gen int, cause error, transport Transport) {
	if transport != nil {
		_ = transport.Stop(s.timeouts.StopGrace)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen {
		return
	}

	s.status = StatusError
	s.lastErr = cause.Error()
	s.tools = nil
	s.info = nil
	s.conn = nil
	s.session = nil
	s.transport = nil

	s.log.Warn("Server start failed", "error", cause)
}

// watchExit flips the server to Error if the process dies while it is
// supposed to be Running. Stops bump the generation first, so an expected
// exit is ignored here.
func (s *Supervisor) watchExit(gen int, transport Transport) {
	<-transport.Done()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen || s.status != StatusRunning {
		return
	}

	s.status = StatusError
	s.tools = nil
	s.conn = nil
	s.session = nil
	s.transport = nil

	if err := transport.Err(); err != nil {
		s.lastErr = err.Error()
	} else {
		s.lastErr = "process exited unexpectedly"
	}

	s.log.Warn("Server process exited unexpectedly", "error", s.lastErr)
}

// rediscover refreshes the tool registry after a tools/list_changed
// notification. The whole registry is replaced, never patched.
func (s *Supervisor) rediscover(gen int) {
	s.mu.Lock()

	if s.gen != gen || s.status != StatusRunning || s.session == nil {
		s.mu.Unlock()

		return
	}

	sess := s.session
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeouts.Handshake)
	defer cancel()

	tools, err := sess.Rediscover(ctx)
	if err != nil {
		s.log.Warn("Tool re-discovery failed", "error", err)

		return
	}

	s.mu.Lock()

	if s.gen == gen && s.status == StatusRunning {
		s.tools = tools
	}

	s.mu.Unlock()

	s.log.Debug("Tool registry refreshed", "tools", len(tools))
}

// Stop terminates the server. No-op when already Stopped. The server ends
// up Stopped with an empty tool registry whichever termination path ran.
func (s *Supervisor) Stop() error {
	s.mu.Lock()

	if s.status == StatusStopped {
		s.mu.Unlock()

		return nil
	}

	s.gen++
	transport := s.transport
	s.status = StatusStopped
	s.lastErr = ""
	s.tools = nil
	s.info = nil
	s.conn = nil
	s.session = nil
	s.transport = nil
	s.mu.Unlock()

	if transport != nil {
		_ = transport.Stop(s.timeouts.StopGrace)
	}

	s.log.Info("Server stopped")

	return nil
}

// Execute invokes a discovered tool. It fails fast, without touching the
// child process, when the server is not Running or the tool is unknown.
func (s *Supervisor) Execute(ctx context.Context, tool string, args map[string]any) (*wire.CallResult, error) {
	s.mu.Lock()

	if s.status != StatusRunning || s.conn == nil {
		s.mu.Unlock()

		return nil, errors.ErrNotRunning
	}

	found := false

	for _, t := range s.tools {
		if t.Name == tool {
			found = true

			break
		}
	}

	connection := s.conn
	s.mu.Unlock()

	if !found {
		return nil, &errors.ToolNotFoundError{Tool: tool, Server: s.cfg.ID}
	}

	params := wire.CallParams{Name: tool, Arguments: args}

	raw, err := connection.Request(ctx, wire.MethodToolsCall, params, s.timeouts.ToolCall)
	if err != nil {
		return nil, err
	}

	var result wire.CallResult
	if err := json.Unmarshal(raw, &result); err != nil {
		// Tool-defined payloads are not required to match the common
		// content shape; keep the raw result either way.
		s.log.Debug("Tool result did not match content shape", "tool", tool)
	}

	result.Raw = raw

	return &result, nil
}

// Snapshot returns a copy of the server's observable state.
func (s *Supervisor) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:        s.cfg.ID,
		Name:      s.cfg.DisplayName(),
		Status:    s.status,
		LastError: s.lastErr,
	}

	if s.tools != nil {
		snap.Tools = make([]wire.Tool, len(s.tools))
		copy(snap.Tools, s.tools)
	}

	if s.info != nil {
		info := *s.info
		snap.ServerInfo = &info
	}

	if p, ok := s.transport.(interface{ Pid() int }); ok {
		snap.Pid = p.Pid()
	}

	return snap
}

// Tools returns a copy of the discovered tool registry.
func (s *Supervisor) Tools() []wire.Tool {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]wire.Tool, len(s.tools))
	copy(out, s.tools)

	return out
}

// Status returns the current lifecycle state.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.status
}
