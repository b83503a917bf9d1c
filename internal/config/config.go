// Package config provides configuration types shared by the host packages.
package config

import "time"

// ServerConfig describes how to launch one tool provider process.
//
// Configs are created by the embedding application (or loaded from a host
// file) and passed in verbatim; the host never mutates them.
type ServerConfig struct {
	// ID uniquely identifies the server within the host.
	ID string `json:"id" yaml:"id"`

	// Name is a display name; defaults to ID when empty.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Description is optional human-readable context.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Command is the executable to spawn.
	Command string `json:"command" yaml:"command"`

	// Args are passed to the executable in order.
	Args []string `json:"args,omitempty" yaml:"args,omitempty"`

	// Env entries are merged over the inherited host environment.
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty"`

	// AutoStart marks the server for Host.StartAll.
	AutoStart bool `json:"autoStart,omitempty" yaml:"autoStart,omitempty"`
}

// DisplayName returns Name, falling back to ID.
func (c ServerConfig) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}

	return c.ID
}

// Timeouts bounds the host's blocking operations.
type Timeouts struct {
	// Handshake bounds each individual handshake request. Kept short
	// because a stuck handshake gates usability.
	Handshake time.Duration

	// Start bounds a whole start attempt: spawn, handshake, and discovery.
	Start time.Duration

	// ToolCall bounds a single tools/call request. Longer than Handshake
	// because tool work may legitimately be slow.
	ToolCall time.Duration

	// StopGrace is how long to wait after a graceful termination signal
	// before force-killing the process.
	StopGrace time.Duration
}

// DefaultTimeouts returns the timeout values used when the caller does not
// override them.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Handshake: 10 * time.Second,
		Start:     30 * time.Second,
		ToolCall:  2 * time.Minute,
		StopGrace: 5 * time.Second,
	}
}

// WithDefaults fills zero fields from DefaultTimeouts.
func (t Timeouts) WithDefaults() Timeouts {
	def := DefaultTimeouts()

	if t.Handshake <= 0 {
		t.Handshake = def.Handshake
	}

	if t.Start <= 0 {
		t.Start = def.Start
	}

	if t.ToolCall <= 0 {
		t.ToolCall = def.ToolCall
	}

	if t.StopGrace <= 0 {
		t.StopGrace = def.StopGrace
	}

	return t
}
