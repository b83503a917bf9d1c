package toolhost

import "github.com/hostkit/toolhost/internal/errors"

// Re-export error types from the internal package.

// ToolHostError is the base interface for all host errors.
type ToolHostError = errors.ToolHostError

// SpawnError indicates the tool provider process could not be launched.
type SpawnError = errors.SpawnError

// HandshakeError indicates the initialize/discovery exchange failed.
type HandshakeError = errors.HandshakeError

// ConnectionLostError indicates the provider's pipes closed or errored
// while requests were outstanding.
type ConnectionLostError = errors.ConnectionLostError

// ProcessError indicates the tool provider process exited abnormally.
type ProcessError = errors.ProcessError

// ToolNotFoundError indicates a tool name absent from a server's registry.
type ToolNotFoundError = errors.ToolNotFoundError

// MalformedMessageError indicates a line that could not be decoded as a
// protocol message.
type MalformedMessageError = errors.MalformedMessageError

// Re-export sentinel errors from the internal package.
var (
	// ErrAlreadyExists indicates a server id is already registered.
	ErrAlreadyExists = errors.ErrAlreadyExists

	// ErrServerNotFound indicates an operation addressed an unknown server id.
	ErrServerNotFound = errors.ErrServerNotFound

	// ErrNotRunning indicates an operation that requires a running server.
	ErrNotRunning = errors.ErrNotRunning

	// ErrRequestTimeout indicates a request did not receive a response in time.
	ErrRequestTimeout = errors.ErrRequestTimeout

	// ErrConnectionClosed indicates the connection is no longer usable.
	ErrConnectionClosed = errors.ErrConnectionClosed

	// ErrStartInProgress indicates a start attempt raced with another start.
	ErrStartInProgress = errors.ErrStartInProgress
)
