package toolhost

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hostkit/toolhost/internal/errors"
	"github.com/hostkit/toolhost/internal/supervisor"
)

// Host is the top-level registry of tool servers. It routes list/find/
// execute requests to the right server and keeps each server's failures
// isolated from its siblings.
//
// All methods are safe for concurrent use.
type Host struct {
	log      *slog.Logger
	timeouts Timeouts
	factory  TransportFactory

	mu      sync.RWMutex
	servers map[string]*supervisor.Supervisor
}

// New creates an empty Host.
func New(opts ...Option) *Host {
	h := &Host{
		log:      slog.Default(),
		timeouts: DefaultTimeouts(),
		servers:  make(map[string]*supervisor.Supervisor, 8),
	}

	for _, opt := range opts {
		opt(h)
	}

	h.timeouts = h.timeouts.WithDefaults()

	return h
}

// AddServer registers a server configuration. The server starts Stopped;
// use StartServer or StartAll to launch it. Re-adding a taken id fails
// with ErrAlreadyExists; callers wanting "ensure present" semantics check
// for that error explicitly.
func (h *Host) AddServer(cfg ServerConfig) error {
	if cfg.ID == "" {
		return fmt.Errorf("server config missing id")
	}

	if cfg.Command == "" {
		return fmt.Errorf("server config %q missing command", cfg.ID)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.servers[cfg.ID]; ok {
		return fmt.Errorf("add server %q: %w", cfg.ID, errors.ErrAlreadyExists)
	}

	h.servers[cfg.ID] = supervisor.New(h.log, cfg, h.timeouts, h.factory)

	h.log.Debug("Server added", "server", cfg.ID)

	return nil
}

// StartServer launches a server and runs the handshake. On failure the
// server is left in StatusError with its LastError set.
func (h *Host) StartServer(ctx context.Context, id string) error {
	sup, err := h.lookup(id)
	if err != nil {
		return err
	}

	return sup.Start(ctx)
}

// StopServer gracefully stops a server. No-op if already stopped.
func (h *Host) StopServer(id string) error {
	sup, err := h.lookup(id)
	if err != nil {
		return err
	}

	return sup.Stop()
}

// RemoveServer stops a server if necessary and discards its state. The
// underlying process is terminated before the server disappears from
// ListServers.
func (h *Host) RemoveServer(id string) error {
	sup, err := h.lookup(id)
	if err != nil {
		return err
	}

	if err := sup.Stop(); err != nil {
		return err
	}

	h.mu.Lock()
	delete(h.servers, id)
	h.mu.Unlock()

	h.log.Debug("Server removed", "server", id)

	return nil
}

// ListServers returns a snapshot of every registered server, sorted by id.
func (h *Host) ListServers() []ServerSnapshot {
	h.mu.RLock()

	sups := make([]*supervisor.Supervisor, 0, len(h.servers))
	for _, sup := range h.servers {
		sups = append(sups, sup)
	}

	h.mu.RUnlock()

	out := make([]ServerSnapshot, 0, len(sups))

	for _, sup := range sups {
		snap := sup.Snapshot()
		out = append(out, ServerSnapshot{
			ID:         snap.ID,
			Name:       snap.Name,
			Status:     snap.Status,
			Pid:        snap.Pid,
			ToolCount:  len(snap.Tools),
			ServerInfo: snap.ServerInfo,
			LastError:  snap.LastError,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}

// ListTools returns the discovered tools of one server, or of every server
// when serverID is empty. Results are copies, ordered by server id.
func (h *Host) ListTools(serverID string) ([]ToolDescriptor, error) {
	if serverID != "" {
		sup, err := h.lookup(serverID)
		if err != nil {
			return nil, err
		}

		return descriptors(sup), nil
	}

	var out []ToolDescriptor

	for _, sup := range h.sortedSupervisors() {
		out = append(out, descriptors(sup)...)
	}

	return out, nil
}

// FindTool returns the first tool with the given name. When serverID is
// empty the search spans all servers in id order; tool names are not
// globally unique, so an unscoped lookup is best-effort.
func (h *Host) FindTool(name, serverID string) (ToolDescriptor, error) {
	tools, err := h.ListTools(serverID)
	if err != nil {
		return ToolDescriptor{}, err
	}

	for _, tool := range tools {
		if tool.Name == name {
			return tool, nil
		}
	}

	return ToolDescriptor{}, &errors.ToolNotFoundError{Tool: name, Server: serverID}
}

// ExecuteTool routes a tool invocation to the named server. It fails fast
// with ErrNotRunning or a ToolNotFoundError before anything is sent to the
// child process.
func (h *Host) ExecuteTool(ctx context.Context, call ToolCall) (*ToolResult, error) {
	if call.Server == "" {
		return nil, fmt.Errorf("tool call missing server id")
	}

	if call.Tool == "" {
		return nil, fmt.Errorf("tool call missing tool name")
	}

	sup, err := h.lookup(call.Server)
	if err != nil {
		return nil, err
	}

	return sup.Execute(ctx, call.Tool, call.Arguments)
}

// StartAll starts every server whose config has AutoStart set, in
// parallel. A failed start leaves that server in StatusError; the first
// failure is returned after all attempts finish. No shared cancellation:
// one server failing must not abort its siblings' handshakes.
func (h *Host) StartAll(ctx context.Context) error {
	var g errgroup.Group

	for _, sup := range h.sortedSupervisors() {
		if !sup.Config().AutoStart {
			continue
		}

		g.Go(func() error {
			return sup.Start(ctx)
		})
	}

	return g.Wait()
}

// Close stops every server. The host can keep being used afterwards;
// Close exists so callers can defer a full shutdown.
func (h *Host) Close() error {
	var g errgroup.Group

	for _, sup := range h.sortedSupervisors() {
		g.Go(sup.Stop)
	}

	return g.Wait()
}

// lookup resolves a server id under the read lock.
func (h *Host) lookup(id string) (*supervisor.Supervisor, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sup, ok := h.servers[id]
	if !ok {
		return nil, fmt.Errorf("server %q: %w", id, errors.ErrServerNotFound)
	}

	return sup, nil
}

// sortedSupervisors snapshots the registry in id order.
func (h *Host) sortedSupervisors() []*supervisor.Supervisor {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.servers))
	for id := range h.servers {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	sups := make([]*supervisor.Supervisor, 0, len(ids))
	for _, id := range ids {
		sups = append(sups, h.servers[id])
	}

	return sups
}

// descriptors copies a supervisor's tool registry into the public shape.
func descriptors(sup *supervisor.Supervisor) []ToolDescriptor {
	tools := sup.Tools()

	out := make([]ToolDescriptor, 0, len(tools))
	for _, t := range tools {
		out = append(out, ToolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
			Server:      sup.Config().ID,
		})
	}

	return out
}
