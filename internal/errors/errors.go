package errors

import (
	"errors"
	"fmt"
)

// ToolHostError is the base interface for all host errors.
type ToolHostError interface {
	error
	IsToolHostError() bool
}

// Compile-time verification that all error types implement ToolHostError.
var (
	_ ToolHostError = (*SpawnError)(nil)
	_ ToolHostError = (*HandshakeError)(nil)
	_ ToolHostError = (*ConnectionLostError)(nil)
	_ ToolHostError = (*ProcessError)(nil)
	_ ToolHostError = (*ToolNotFoundError)(nil)
	_ ToolHostError = (*MalformedMessageError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrAlreadyExists indicates a server id is already registered.
	ErrAlreadyExists = errors.New("server already exists")

	// ErrServerNotFound indicates an operation addressed an unknown server id.
	ErrServerNotFound = errors.New("server not found")

	// ErrNotRunning indicates an operation that requires a running server.
	ErrNotRunning = errors.New("server not running")

	// ErrRequestTimeout indicates a request did not receive a response in time.
	ErrRequestTimeout = errors.New("request timeout")

	// ErrConnectionClosed indicates the connection is no longer usable.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrStartInProgress indicates a start attempt raced with another start.
	ErrStartInProgress = errors.New("server start already in progress")
)

// SpawnError indicates the tool provider process could not be launched.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn %q: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// IsToolHostError implements ToolHostError.
func (e *SpawnError) IsToolHostError() bool { return true }

// HandshakeError indicates the initialize/discovery exchange failed.
type HandshakeError struct {
	// Stage names the handshake step that failed ("initialize",
	// "initialized", "discover").
	Stage string
	Err   error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("handshake failed at %s: %v", e.Stage, e.Err)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// IsToolHostError implements ToolHostError.
func (e *HandshakeError) IsToolHostError() bool { return true }

// ConnectionLostError indicates the provider's pipes closed or errored while
// requests were outstanding.
type ConnectionLostError struct {
	Err error
}

func (e *ConnectionLostError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("connection lost: %v", e.Err)
	}

	return "connection lost"
}

func (e *ConnectionLostError) Unwrap() error {
	return e.Err
}

// IsToolHostError implements ToolHostError.
func (e *ConnectionLostError) IsToolHostError() bool { return true }

// ProcessError indicates the tool provider process exited abnormally.
type ProcessError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("process failed (exit %d): %s", e.ExitCode, e.Stderr)
	}

	return fmt.Sprintf("process failed (exit %d): %v", e.ExitCode, e.Err)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// IsToolHostError implements ToolHostError.
func (e *ProcessError) IsToolHostError() bool { return true }

// ToolNotFoundError indicates a tool name absent from a server's registry.
type ToolNotFoundError struct {
	Tool   string
	Server string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool %q not found on server %q", e.Tool, e.Server)
}

// IsToolHostError implements ToolHostError.
func (e *ToolNotFoundError) IsToolHostError() bool { return true }

// MalformedMessageError indicates a line that could not be decoded as a
// protocol message. The framer recovers from these by discarding the line;
// the error type exists so the raw data survives into debug logs.
type MalformedMessageError struct {
	RawData string
	Err     error
}

func (e *MalformedMessageError) Error() string {
	return fmt.Sprintf("malformed message: %v", e.Err)
}

func (e *MalformedMessageError) Unwrap() error {
	return e.Err
}

// IsToolHostError implements ToolHostError.
func (e *MalformedMessageError) IsToolHostError() bool { return true }
