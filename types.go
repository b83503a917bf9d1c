package toolhost

import (
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/hostkit/toolhost/internal/config"
	"github.com/hostkit/toolhost/internal/supervisor"
	"github.com/hostkit/toolhost/internal/wire"
)

// ServerConfig describes how to launch one tool provider process.
type ServerConfig = config.ServerConfig

// Timeouts bounds the host's blocking operations.
type Timeouts = config.Timeouts

// DefaultTimeouts returns the timeout values used when not overridden.
func DefaultTimeouts() Timeouts { return config.DefaultTimeouts() }

// ServerStatus is a server's lifecycle state.
type ServerStatus = supervisor.Status

// Server lifecycle states.
const (
	StatusStopped  = supervisor.StatusStopped
	StatusStarting = supervisor.StatusStarting
	StatusRunning  = supervisor.StatusRunning
	StatusError    = supervisor.StatusError
)

// ServerInfo identifies a provider implementation, as reported during the
// initialize handshake.
type ServerInfo = wire.ServerInfo

// ContentBlock is one item in a tool call result.
type ContentBlock = wire.ContentBlock

// ToolResult is the outcome of a tool invocation. Content holds the common
// content shape; Raw preserves the tool-defined payload verbatim.
type ToolResult = wire.CallResult

// ToolDescriptor describes one callable tool and the server that owns it.
// Tool names are unique within a server, not globally.
type ToolDescriptor struct {
	// Name identifies the tool within its server.
	Name string `json:"name"`

	// Description is the provider's human-readable summary.
	Description string `json:"description,omitempty"`

	// InputSchema structurally describes the accepted parameters.
	InputSchema *jsonschema.Schema `json:"inputSchema,omitempty"`

	// Server is the owning server's id.
	Server string `json:"server"`
}

// ToolCall names a tool invocation: which server, which tool, and the
// arguments matching the tool's schema. Ephemeral; never persisted.
type ToolCall struct {
	// Server is the target server id.
	Server string `json:"server"`

	// Tool is the tool name within that server.
	Tool string `json:"tool"`

	// Arguments is an opaque structured value matching the tool's schema.
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ServerSnapshot is a copy of one server's observable state. Mutating a
// snapshot never affects the host.
type ServerSnapshot struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Status     ServerStatus `json:"status"`
	Pid        int          `json:"pid,omitempty"`
	ToolCount  int          `json:"toolCount"`
	ServerInfo *ServerInfo  `json:"serverInfo,omitempty"`
	LastError  string       `json:"lastError,omitempty"`
}
